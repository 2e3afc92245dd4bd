package packaging

import (
	"strings"
	"unicode"

	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/pkggather/pkg/errors"
)

// Framework is a target framework descriptor such as "net8.0" or
// "netstandard2.0". The zero value is the "any" framework, which dependency
// groups use to declare framework-independent dependencies.
type Framework struct {
	Family  string
	Version *semver.Version
}

// AnyFramework applies to every target.
var AnyFramework = Framework{}

// fallbackFamilies lists, per target family, the other families whose
// dependency groups a target can consume when it has no group of its own.
var fallbackFamilies = map[string][]string{
	"net":        {"netcoreapp", "netstandard"},
	"netcoreapp": {"netstandard"},
}

// ParseFramework parses a framework moniker. Dotted versions ("net8.0") and
// compact versions ("net472" = 4.7.2) are both accepted; "" and "any" give
// [AnyFramework].
func ParseFramework(s string) (Framework, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "any" {
		return AnyFramework, nil
	}

	i := strings.IndexFunc(s, unicode.IsDigit)
	if i <= 0 {
		return Framework{}, errors.New(errors.ErrCodeInvalidFramework, "invalid framework %q", s)
	}
	family, ver := s[:i], s[i:]
	if !strings.Contains(ver, ".") {
		ver = strings.Join(strings.Split(ver, ""), ".")
	}
	v, err := semver.NewVersion(ver)
	if err != nil {
		return Framework{}, errors.Wrap(errors.ErrCodeInvalidFramework, err, "invalid framework %q", s)
	}
	return Framework{Family: family, Version: v}, nil
}

// MustFramework is like [ParseFramework] but panics on error.
func MustFramework(s string) Framework {
	f, err := ParseFramework(s)
	if err != nil {
		panic(err)
	}
	return f
}

// IsAny reports whether f is the framework-independent "any" framework.
func (f Framework) IsAny() bool { return f.Family == "" }

// String renders the moniker, e.g. "net8.0" or "any".
func (f Framework) String() string {
	if f.IsAny() {
		return "any"
	}
	if f.Version == nil {
		return f.Family
	}
	s := f.Family
	s += trimZeroPatch(f.Version)
	return s
}

func trimZeroPatch(v *semver.Version) string {
	s := normalizeVersion(v)
	if v.Patch() == 0 && v.Prerelease() == "" {
		s = strings.TrimSuffix(s, ".0")
	}
	return s
}

// MarshalText implements encoding.TextMarshaler.
func (f Framework) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Framework) UnmarshalText(text []byte) error {
	parsed, err := ParseFramework(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// DependencyGroup is the dependency list a package declares for one target framework.
type DependencyGroup struct {
	Framework    Framework    `json:"framework" toml:"framework"`
	Dependencies []Dependency `json:"dependencies,omitempty" toml:"dependencies"`
}

// Nearest selects the dependency group that applies to target:
//  1. a group of the same family with the highest version not above the target
//  2. otherwise the highest group of a fallback family (e.g. netstandard for net)
//  3. otherwise the "any" group
//
// It returns false if no group applies.
func (f Framework) Nearest(groups []DependencyGroup) (DependencyGroup, bool) {
	if best, ok := highestInFamily(groups, f.Family, f.Version); ok {
		return best, true
	}
	for _, fam := range fallbackFamilies[f.Family] {
		if best, ok := highestInFamily(groups, fam, nil); ok {
			return best, true
		}
	}
	for _, g := range groups {
		if g.Framework.IsAny() {
			return g, true
		}
	}
	return DependencyGroup{}, false
}

// highestInFamily returns the highest-versioned group in family. When ceiling
// is non-nil, groups above it are skipped.
func highestInFamily(groups []DependencyGroup, family string, ceiling *semver.Version) (DependencyGroup, bool) {
	var best DependencyGroup
	found := false
	for _, g := range groups {
		if family == "" || g.Framework.Family != family {
			continue
		}
		if ceiling != nil && CompareVersions(g.Framework.Version, ceiling) > 0 {
			continue
		}
		if !found || CompareVersions(g.Framework.Version, best.Framework.Version) > 0 {
			best, found = g, true
		}
	}
	return best, found
}
