// Package local implements the packages-folder source: the directory where
// already-installed packages live, each described by a TOML manifest.
//
// # Layout
//
//	<root>/<id>/<version>/package.toml
//
// The id directory is matched case-insensitively. A manifest looks like:
//
//	id = "Foo"
//	version = "1.2.0"
//
//	[[dependency]]          # framework-independent dependencies
//	id = "Bar"
//	range = "[2.0, )"
//
//	[[group]]               # framework-specific dependencies
//	framework = "net8.0"
//	  [[group.dependency]]
//	  id = "Baz"
//	  range = "^1.0"
//
// Packages that are not installed are not an error: lookups return nothing,
// which lets the gatherer fall back to remote sources.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matzehuels/pkggather/pkg/core/packaging"
	"github.com/matzehuels/pkggather/pkg/errors"
	"github.com/matzehuels/pkggather/pkg/source"
)

// ManifestFile is the manifest filename inside each version directory.
const ManifestFile = "package.toml"

// Folder is a packages-folder source rooted at a directory.
type Folder struct {
	root string
}

// New creates a packages-folder source. The directory is not touched until
// [Folder.DependencyInfo] is called.
func New(root string) *Folder {
	return &Folder{root: filepath.Clean(root)}
}

// Name implements [source.Source]: the cleaned root path.
func (f *Folder) Name() string { return f.root }

// DependencyInfo implements [source.Source]. It fails if the root does not
// exist or is not a directory.
func (f *Folder) DependencyInfo(ctx context.Context) (source.DependencyInfoResource, error) {
	if err := errors.ValidatePath(f.root); err != nil {
		return nil, err
	}
	info, err := os.Stat(f.root)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSourceInit, err, "open packages folder %s", f.root)
	}
	if !info.IsDir() {
		return nil, errors.New(errors.ErrCodeSourceInit, "packages folder %s is not a directory", f.root)
	}
	return &resource{root: f.root}, nil
}

type resource struct {
	root string
}

// ResolvePackage implements [source.DependencyInfoResource].
func (r *resource) ResolvePackage(ctx context.Context, id packaging.Identity, fw packaging.Framework) (*packaging.SourcePackageDependencyInfo, error) {
	all, err := r.ResolvePackages(ctx, id.ID, fw)
	if err != nil {
		return nil, err
	}
	for _, p := range all {
		if p.Identity.Equal(id) {
			return p, nil
		}
	}
	return nil, nil
}

// ResolvePackages implements [source.DependencyInfoResource].
func (r *resource) ResolvePackages(ctx context.Context, id string, fw packaging.Framework) ([]*packaging.SourcePackageDependencyInfo, error) {
	if err := errors.ValidatePackageID(id); err != nil {
		return nil, err
	}
	dir, ok, err := r.findIDDir(id)
	if err != nil || !ok {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}

	var out []*packaging.SourcePackageDependencyInfo
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name(), ManifestFile)
		m, err := readManifest(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(m.ID, id) {
			return nil, errors.New(errors.ErrCodeInvalidManifest, "%s declares id %q, expected %q", path, m.ID, id)
		}
		pkg, err := m.toPackage()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse %s", path)
		}
		out = append(out, source.Flatten(pkg.identity, pkg.groups, fw, m.listed(), r.root))
	}
	packaging.SortInfos(out)
	return out, nil
}

// findIDDir locates the directory for id, matching its name case-insensitively.
func (r *resource) findIDDir(id string) (string, bool, error) {
	exact := filepath.Join(r.root, id)
	if info, err := os.Stat(exact); err == nil && info.IsDir() {
		return exact, true, nil
	}
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", r.root, err)
	}
	for _, e := range entries {
		if e.IsDir() && strings.EqualFold(e.Name(), id) {
			return filepath.Join(r.root, e.Name()), true, nil
		}
	}
	return "", false, nil
}

var _ source.Source = (*Folder)(nil)
