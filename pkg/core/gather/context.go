package gather

import (
	"github.com/matzehuels/pkggather/pkg/core/packaging"
	"github.com/matzehuels/pkggather/pkg/errors"
	"github.com/matzehuels/pkggather/pkg/source"
)

// Context configures one gather. It must not be modified while a gather
// using it is running.
type Context struct {
	// Framework selects the dependency group of every package. The zero
	// value is the framework-independent target.
	Framework packaging.Framework

	// PrimarySources must be able to serve the primary targets. Failures
	// against them are fatal.
	PrimarySources []source.Source

	// AllSources are consulted for everything else: discovered
	// dependencies and installed packages missing from the packages folder.
	AllSources []source.Source

	// PackagesFolder holds the installed packages. Optional.
	PackagesFolder source.Source

	// PrimaryTargets are the identities being installed or updated. An
	// identity without a version asks for every available version.
	PrimaryTargets []packaging.Identity

	// PrimaryTargetIDs are target ids without a known version.
	PrimaryTargetIDs []string

	// InstalledPackages are the identities already installed.
	InstalledPackages []packaging.Identity

	// AllowDowngrades keeps candidates older than the installed version.
	AllowDowngrades bool

	// IsUpdateAll tolerates primary targets that no source could serve.
	IsUpdateAll bool
}

// NewContext returns a Context with downgrades allowed.
func NewContext() *Context {
	return &Context{AllowDowngrades: true}
}

// Validate checks that the context describes a gather that can run: at
// least one target and one primary source, and well-formed target ids.
func (c *Context) Validate() error {
	if c == nil {
		return errors.New(errors.ErrCodeInvalidInput, "gather context is nil")
	}
	if len(c.PrimaryTargets) == 0 && len(c.PrimaryTargetIDs) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no primary targets")
	}
	if len(c.PrimarySources) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no primary sources")
	}
	for _, s := range c.PrimarySources {
		if s == nil {
			return errors.New(errors.ErrCodeInvalidInput, "nil primary source")
		}
	}
	for _, s := range c.AllSources {
		if s == nil {
			return errors.New(errors.ErrCodeInvalidInput, "nil source")
		}
	}
	for _, t := range c.PrimaryTargets {
		if err := errors.ValidatePackageID(t.ID); err != nil {
			return err
		}
	}
	for _, id := range c.PrimaryTargetIDs {
		if err := errors.ValidatePackageID(id); err != nil {
			return err
		}
	}
	for _, p := range c.InstalledPackages {
		if err := errors.ValidatePackageID(p.ID); err != nil {
			return err
		}
	}
	return nil
}

// distinctSources returns the sources in primary, folder, all order,
// keeping the first source of each name.
func (c *Context) distinctSources() []source.Source {
	var out []source.Source
	seen := make(map[string]bool)
	add := func(s source.Source) {
		if s == nil || seen[s.Name()] {
			return
		}
		seen[s.Name()] = true
		out = append(out, s)
	}
	for _, s := range c.PrimarySources {
		add(s)
	}
	add(c.PackagesFolder)
	for _, s := range c.AllSources {
		add(s)
	}
	return out
}

// targetIDs returns the set of all primary target ids.
func (c *Context) targetIDs() packaging.IDSet {
	ids := packaging.NewIDSet(c.PrimaryTargetIDs...)
	for _, t := range c.PrimaryTargets {
		ids.Add(t.ID)
	}
	return ids
}
