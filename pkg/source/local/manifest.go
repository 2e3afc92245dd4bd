package local

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/pkggather/pkg/core/packaging"
	"github.com/matzehuels/pkggather/pkg/errors"
)

type manifest struct {
	ID           string          `toml:"id"`
	Version      string          `toml:"version"`
	Listed       *bool           `toml:"listed,omitempty"`
	Dependencies []manifestDep   `toml:"dependency,omitempty"`
	Groups       []manifestGroup `toml:"group,omitempty"`
}

type manifestDep struct {
	ID    string `toml:"id"`
	Range string `toml:"range,omitempty"`
}

type manifestGroup struct {
	Framework    string        `toml:"framework"`
	Dependencies []manifestDep `toml:"dependency,omitempty"`
}

type parsedPackage struct {
	identity packaging.Identity
	groups   []packaging.DependencyGroup
}

func readManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if _, err := toml.Decode(string(data), &m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "decode %s", path)
	}
	return &m, nil
}

func (m *manifest) listed() bool { return m.Listed == nil || *m.Listed }

func (m *manifest) toPackage() (parsedPackage, error) {
	if m.Version == "" {
		return parsedPackage{}, errors.New(errors.ErrCodeInvalidManifest, "manifest for %s has no version", m.ID)
	}
	id, err := packaging.ParseIdentity(m.ID, m.Version)
	if err != nil {
		return parsedPackage{}, err
	}

	p := parsedPackage{identity: id}
	if len(m.Dependencies) > 0 || len(m.Groups) == 0 {
		deps, err := convertDeps(m.Dependencies)
		if err != nil {
			return parsedPackage{}, err
		}
		p.groups = append(p.groups, packaging.DependencyGroup{Framework: packaging.AnyFramework, Dependencies: deps})
	}
	for _, g := range m.Groups {
		fw, err := packaging.ParseFramework(g.Framework)
		if err != nil {
			return parsedPackage{}, err
		}
		deps, err := convertDeps(g.Dependencies)
		if err != nil {
			return parsedPackage{}, err
		}
		p.groups = append(p.groups, packaging.DependencyGroup{Framework: fw, Dependencies: deps})
	}
	return p, nil
}

func convertDeps(in []manifestDep) ([]packaging.Dependency, error) {
	out := make([]packaging.Dependency, 0, len(in))
	for _, d := range in {
		r, err := packaging.ParseVersionRange(d.Range)
		if err != nil {
			return nil, err
		}
		out = append(out, packaging.Dependency{ID: d.ID, Range: r})
	}
	return out, nil
}

// WriteManifest records an installed package version under root, creating
// the id and version directories as needed. Groups with the "any" framework
// are written as top-level dependencies.
func WriteManifest(root string, id packaging.Identity, groups ...packaging.DependencyGroup) (string, error) {
	if err := errors.ValidatePackageID(id.ID); err != nil {
		return "", err
	}
	if !id.HasVersion() {
		return "", errors.New(errors.ErrCodeInvalidVersion, "cannot write manifest for %s without a version", id.ID)
	}

	m := manifest{ID: id.ID, Version: id.Version.String()}
	for _, g := range groups {
		deps := make([]manifestDep, len(g.Dependencies))
		for i, d := range g.Dependencies {
			deps[i] = manifestDep{ID: d.ID, Range: d.Range.String()}
		}
		if g.Framework.IsAny() {
			m.Dependencies = append(m.Dependencies, deps...)
			continue
		}
		m.Groups = append(m.Groups, manifestGroup{Framework: g.Framework.String(), Dependencies: deps})
	}

	dir := filepath.Join(root, id.ID, id.Version.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, ManifestFile)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(m); err != nil {
		return "", err
	}
	return path, nil
}
