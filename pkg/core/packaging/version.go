package packaging

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/pkggather/pkg/errors"
)

// ParseVersion parses a semantic version leniently: "1", "1.2" and a leading
// "v" are accepted and normalized to three components.
func ParseVersion(s string) (*semver.Version, error) {
	v, err := semver.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidVersion, err, "invalid version %q", s)
	}
	return v, nil
}

// MustVersion is like [ParseVersion] but panics on error. Intended for tests
// and package-level literals.
func MustVersion(s string) *semver.Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// CompareVersions orders two possibly-nil versions. A nil version sorts
// before every concrete version.
func CompareVersions(a, b *semver.Version) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(b)
}

// IsPrerelease reports whether v carries a prerelease label.
func IsPrerelease(v *semver.Version) bool {
	return v != nil && v.Prerelease() != ""
}

// normalizeVersion renders v without build metadata, so that semantically
// equal versions produce the same string.
func normalizeVersion(v *semver.Version) string {
	if v == nil {
		return ""
	}
	s := fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
	if pre := v.Prerelease(); pre != "" {
		s += "-" + pre
	}
	return s
}
