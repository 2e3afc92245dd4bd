package packaging

import (
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/matzehuels/pkggather/pkg/errors"
)

// VersionRange describes the set of versions a dependency accepts.
//
// A range is either an interval (Min/Max with inclusive flags, either bound
// optional) or a Masterminds constraint expression. The zero value has no
// bounds and matches every version.
type VersionRange struct {
	Min          *semver.Version
	MinInclusive bool
	Max          *semver.Version
	MaxInclusive bool

	constraint *semver.Constraints
}

// AllVersions matches every version.
var AllVersions = VersionRange{}

// AtLeast returns the range ">= v".
func AtLeast(v *semver.Version) VersionRange {
	return VersionRange{Min: v, MinInclusive: true}
}

// Exactly returns the range "[v]".
func Exactly(v *semver.Version) VersionRange {
	return VersionRange{Min: v, MinInclusive: true, Max: v, MaxInclusive: true}
}

// ParseVersionRange parses interval notation ("[1.0,2.0)", "(,3.0]", "[1.2.3]"),
// a bare version ("1.0", meaning ">= 1.0"), or a constraint expression
// (">=1.0, <2.0", "^1.2", "~1.4"). Empty and "*" parse to [AllVersions].
func ParseVersionRange(s string) (VersionRange, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == "*":
		return AllVersions, nil
	case s[0] == '[' || s[0] == '(':
		return parseInterval(s)
	case strings.ContainsAny(s, "<>=~^!|, ") || strings.Contains(strings.ToLower(s), ".x"):
		c, err := semver.NewConstraint(s)
		if err != nil {
			return VersionRange{}, errors.Wrap(errors.ErrCodeInvalidRange, err, "invalid version range %q", s)
		}
		return VersionRange{constraint: c}, nil
	default:
		v, err := semver.NewVersion(s)
		if err != nil {
			return VersionRange{}, errors.Wrap(errors.ErrCodeInvalidRange, err, "invalid version range %q", s)
		}
		return AtLeast(v), nil
	}
}

// MustVersionRange is like [ParseVersionRange] but panics on error.
func MustVersionRange(s string) VersionRange {
	r, err := ParseVersionRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

func parseInterval(s string) (VersionRange, error) {
	last := s[len(s)-1]
	if len(s) < 3 || (last != ']' && last != ')') {
		return VersionRange{}, errors.New(errors.ErrCodeInvalidRange, "invalid version range %q: unterminated interval", s)
	}
	r := VersionRange{MinInclusive: s[0] == '[', MaxInclusive: last == ']'}
	inner := s[1 : len(s)-1]

	lo, hi, hasComma := strings.Cut(inner, ",")
	if !hasComma {
		// "[1.2.3]" pins a single version; "(1.2.3)" is meaningless.
		if !r.MinInclusive || !r.MaxInclusive {
			return VersionRange{}, errors.New(errors.ErrCodeInvalidRange, "invalid version range %q: exact version must use []", s)
		}
		hi = lo
	}

	var err error
	if r.Min, err = parseBound(s, lo); err != nil {
		return VersionRange{}, err
	}
	if r.Max, err = parseBound(s, hi); err != nil {
		return VersionRange{}, err
	}
	if r.Min == nil && r.Max == nil && hasComma && strings.TrimSpace(lo) == "" && strings.TrimSpace(hi) == "" {
		return AllVersions, nil
	}
	if r.Min != nil && r.Max != nil {
		switch c := r.Min.Compare(r.Max); {
		case c > 0:
			return VersionRange{}, errors.New(errors.ErrCodeInvalidRange, "invalid version range %q: lower bound exceeds upper bound", s)
		case c == 0 && !(r.MinInclusive && r.MaxInclusive):
			return VersionRange{}, errors.New(errors.ErrCodeInvalidRange, "invalid version range %q: empty interval", s)
		}
	}
	return r, nil
}

func parseBound(rng, s string) (*semver.Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRange, err, "invalid version range %q", rng)
	}
	return v, nil
}

// IsAll reports whether the range places no restriction on versions.
func (r VersionRange) IsAll() bool {
	return r.constraint == nil && r.Min == nil && r.Max == nil
}

// Satisfies reports whether v falls inside the range. A nil version never does.
func (r VersionRange) Satisfies(v *semver.Version) bool {
	if v == nil {
		return false
	}
	if r.constraint != nil {
		return r.constraint.Check(v)
	}
	if r.Min != nil {
		c := v.Compare(r.Min)
		if c < 0 || (c == 0 && !r.MinInclusive) {
			return false
		}
	}
	if r.Max != nil {
		c := v.Compare(r.Max)
		if c > 0 || (c == 0 && !r.MaxInclusive) {
			return false
		}
	}
	return true
}

// String renders the range in the notation it was parsed from:
// constraint expressions as-is, intervals in bracket notation.
func (r VersionRange) String() string {
	if r.constraint != nil {
		return r.constraint.String()
	}
	if r.IsAll() {
		return ""
	}
	if r.Min != nil && r.Max != nil && r.MinInclusive && r.MaxInclusive && r.Min.Equal(r.Max) {
		return "[" + r.Min.String() + "]"
	}

	var b strings.Builder
	if r.MinInclusive {
		b.WriteByte('[')
	} else {
		b.WriteByte('(')
	}
	if r.Min != nil {
		b.WriteString(r.Min.String())
	}
	b.WriteString(", ")
	if r.Max != nil {
		b.WriteString(r.Max.String())
	}
	if r.MaxInclusive {
		b.WriteByte(']')
	} else {
		b.WriteByte(')')
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler.
func (r VersionRange) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *VersionRange) UnmarshalText(text []byte) error {
	parsed, err := ParseVersionRange(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
