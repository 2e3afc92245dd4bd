package packaging

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Identity is a package id plus an optional exact version.
// A nil Version means "all available versions of this id".
type Identity struct {
	ID      string          `json:"id"`
	Version *semver.Version `json:"version,omitempty"`
}

// NewIdentity creates an identity from an id and an already parsed version.
func NewIdentity(id string, v *semver.Version) Identity {
	return Identity{ID: id, Version: v}
}

// ParseIdentity creates an identity from an id and a version string.
// An empty version string yields an id-only identity.
func ParseIdentity(id, version string) (Identity, error) {
	if strings.TrimSpace(version) == "" {
		return Identity{ID: id}, nil
	}
	v, err := ParseVersion(version)
	if err != nil {
		return Identity{}, err
	}
	return Identity{ID: id, Version: v}, nil
}

// MustIdentity is like [ParseIdentity] but panics on error.
func MustIdentity(id, version string) Identity {
	i, err := ParseIdentity(id, version)
	if err != nil {
		panic(err)
	}
	return i
}

// HasVersion reports whether the identity names an exact version.
func (i Identity) HasVersion() bool { return i.Version != nil }

// IsPrerelease reports whether the identity's version is a prerelease.
func (i Identity) IsPrerelease() bool { return IsPrerelease(i.Version) }

// SameID reports whether the identity has the given id, ignoring case.
func (i Identity) SameID(id string) bool { return strings.EqualFold(i.ID, id) }

// Equal reports whether both identities have the same id (case-insensitive)
// and the same exact version. Two id-only identities are equal when their ids are.
func (i Identity) Equal(o Identity) bool {
	if !i.SameID(o.ID) {
		return false
	}
	if i.Version == nil || o.Version == nil {
		return i.Version == nil && o.Version == nil
	}
	return i.Version.Equal(o.Version)
}

// Key returns the canonical dedup key: the lower-cased id and the normalized version.
func (i Identity) Key() string {
	return NormalizeID(i.ID) + "|" + normalizeVersion(i.Version)
}

// String renders "id version", or just "id" when no version is set.
func (i Identity) String() string {
	if i.Version == nil {
		return i.ID
	}
	return i.ID + " " + i.Version.String()
}

// NormalizeID returns the case-folded form of a package id used for map keys.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// IDSet is a case-insensitive set of package ids.
type IDSet map[string]struct{}

// NewIDSet builds a set from the given ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id into the set. It reports whether the id was newly added.
func (s IDSet) Add(id string) bool {
	k := NormalizeID(id)
	if _, ok := s[k]; ok {
		return false
	}
	s[k] = struct{}{}
	return true
}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[NormalizeID(id)]
	return ok
}

// Len returns the number of ids in the set.
func (s IDSet) Len() int { return len(s) }
