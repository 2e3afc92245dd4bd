package prune

import (
	"strings"

	"github.com/matzehuels/pkggather/pkg/core/packaging"
	"github.com/matzehuels/pkggather/pkg/errors"
)

// Constraints restrict updates relative to the installed version.
type Constraints uint8

const (
	// ExactMajor keeps the installed major version.
	ExactMajor Constraints = 1 << iota
	// ExactMinor keeps the installed minor version.
	ExactMinor
	// ExactPatch keeps the installed patch version.
	ExactPatch
	// ExactRelease keeps the installed prerelease label.
	ExactRelease

	// None places no restriction.
	None Constraints = 0
)

var constraintNames = []struct {
	flag Constraints
	name string
}{
	{ExactMajor, "major"},
	{ExactMinor, "minor"},
	{ExactPatch, "patch"},
	{ExactRelease, "release"},
}

// Has reports whether all flags in f are set.
func (c Constraints) Has(f Constraints) bool { return c&f == f }

// String lists the set flags, comma separated.
func (c Constraints) String() string {
	var parts []string
	for _, n := range constraintNames {
		if c.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}

// ParseConstraints parses names such as "major,minor". Empty and "none"
// give [None].
func ParseConstraints(names ...string) (Constraints, error) {
	var c Constraints
	for _, raw := range names {
		for _, name := range strings.Split(raw, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" || name == "none" {
				continue
			}
			found := false
			for _, n := range constraintNames {
				if n.name == name {
					c |= n.flag
					found = true
					break
				}
			}
			if !found {
				return 0, errors.New(errors.ErrCodeInvalidInput, "unknown update constraint %q", name)
			}
		}
	}
	return c, nil
}

// ByUpdateConstraints drops candidates of an installed id whose version
// differs from the installed one in a component the constraints pin.
func ByUpdateConstraints(pkgs []*Package, installed []packaging.Identity, c Constraints) []*Package {
	if c == None {
		return filter(pkgs, func(*Package) bool { return true })
	}
	current := make(map[string]packaging.Identity)
	for _, p := range installed {
		if p.HasVersion() {
			current[packaging.NormalizeID(p.ID)] = p
		}
	}
	return filter(pkgs, func(p *Package) bool {
		inst, ok := current[packaging.NormalizeID(p.ID)]
		if !ok || !p.HasVersion() {
			return true
		}
		iv, pv := inst.Version, p.Version
		switch {
		case c.Has(ExactMajor) && iv.Major() != pv.Major():
			return false
		case c.Has(ExactMinor) && iv.Minor() != pv.Minor():
			return false
		case c.Has(ExactPatch) && iv.Patch() != pv.Patch():
			return false
		case c.Has(ExactRelease) && !strings.EqualFold(iv.Prerelease(), pv.Prerelease()):
			return false
		}
		return true
	})
}
