package prune

import (
	"reflect"
	"testing"

	"github.com/matzehuels/pkggather/pkg/core/packaging"
)

func pkg(id, version string, deps ...packaging.Dependency) *Package {
	return packaging.NewDependencyInfo(packaging.MustIdentity(id, version), "test", deps...)
}

func dep(id, rng string) packaging.Dependency {
	return packaging.Dependency{ID: id, Range: packaging.MustVersionRange(rng)}
}

func ids(v ...string) []packaging.Identity {
	out := make([]packaging.Identity, 0, len(v)/2)
	for i := 0; i+1 < len(v); i += 2 {
		out = append(out, packaging.MustIdentity(v[i], v[i+1]))
	}
	return out
}

func names(pkgs []*Package) []string {
	out := make([]string, len(pkgs))
	for i, p := range pkgs {
		out[i] = p.String()
	}
	return out
}

func assertNames(t *testing.T, got []*Package, want ...string) {
	t.Helper()
	if want == nil {
		want = []string{}
	}
	if g := names(got); !reflect.DeepEqual(g, want) {
		t.Errorf("got %v, want %v", g, want)
	}
}

func TestPrereleaseExceptAllowed(t *testing.T) {
	candidates := []*Package{
		pkg("Foo", "1.0.0-beta"),
		pkg("Foo", "1.0.0"),
		pkg("Bar", "2.0.0-beta"),
	}

	t.Run("installed prerelease allows its id", func(t *testing.T) {
		got := PrereleaseExceptAllowed(candidates, ids("Foo", "1.0.0-beta"), false)
		assertNames(t, got, "Foo 1.0.0-beta", "Foo 1.0.0")
	})

	t.Run("no installed prerelease", func(t *testing.T) {
		got := PrereleaseExceptAllowed(candidates, ids("Foo", "0.9.0"), false)
		assertNames(t, got, "Foo 1.0.0")
	})

	t.Run("update all with any installed prerelease allows all", func(t *testing.T) {
		got := PrereleaseExceptAllowed(candidates, ids("Foo", "1.0.0-beta"), true)
		assertNames(t, got, "Foo 1.0.0-beta", "Foo 1.0.0", "Bar 2.0.0-beta")
	})

	t.Run("update all without installed prerelease", func(t *testing.T) {
		got := PrereleaseExceptAllowed(candidates, nil, true)
		assertNames(t, got, "Foo 1.0.0")
	})

	t.Run("case insensitive", func(t *testing.T) {
		got := PrereleaseExceptAllowed(candidates, ids("bar", "1.0.0-rc.1"), false)
		assertNames(t, got, "Foo 1.0.0", "Bar 2.0.0-beta")
	})
}

func TestPassesDoNotModifyInput(t *testing.T) {
	in := []*Package{pkg("Foo", "1.0.0-beta"), pkg("Foo", "1.0.0")}
	before := append([]*Package(nil), in...)
	_ = PrereleaseExceptAllowed(in, nil, false)
	_ = AllButHighest(in, "Foo")
	if !reflect.DeepEqual(in, before) {
		t.Error("input slice was modified")
	}
}

func TestPrereleaseForStableTargets(t *testing.T) {
	candidates := []*Package{
		pkg("App", "2.0.0-preview", dep("Lib", "[1.0.0-beta, )")),
		pkg("Lib", "1.0.0-beta", dep("Core", "[1.0, )")),
		pkg("Lib", "1.0.0"),
		pkg("Core", "1.1.0-beta"),
		pkg("Other", "3.0.0-alpha"),
		pkg("Other", "2.0.0"),
	}

	got := PrereleaseForStableTargets(candidates, nil, ids("App", "2.0.0-preview"))
	assertNames(t, got,
		"App 2.0.0-preview",
		"Lib 1.0.0-beta",
		"Lib 1.0.0",
		"Core 1.1.0-beta",
		"Other 2.0.0",
	)

	t.Run("stable install allows nothing", func(t *testing.T) {
		got := PrereleaseForStableTargets(candidates, nil, ids("Lib", "1.0.0"))
		assertNames(t, got, "Lib 1.0.0", "Other 2.0.0")
	})

	t.Run("prerelease primary target", func(t *testing.T) {
		got := PrereleaseForStableTargets(candidates, ids("Other", "3.0.0-alpha"), nil)
		assertNames(t, got, "Lib 1.0.0", "Other 3.0.0-alpha", "Other 2.0.0")
	})
}

func TestPrereleaseForStableTargetsCycle(t *testing.T) {
	candidates := []*Package{
		pkg("A", "1.0.0-beta", dep("B", "")),
		pkg("B", "1.0.0-beta", dep("A", "")),
	}
	got := PrereleaseForStableTargets(candidates, nil, ids("A", "1.0.0-beta"))
	assertNames(t, got, "A 1.0.0-beta", "B 1.0.0-beta")
}

func TestDowngrades(t *testing.T) {
	candidates := []*Package{pkg("P", "1.0.0"), pkg("P", "2.0.0"), pkg("P", "3.0.0"), pkg("Q", "0.1.0")}
	assertNames(t, Downgrades(candidates, ids("p", "2.0.0")), "P 2.0.0", "P 3.0.0", "Q 0.1.0")
	assertNames(t, Downgrades(candidates, nil), "P 1.0.0", "P 2.0.0", "P 3.0.0", "Q 0.1.0")

	t.Run("highest installed wins", func(t *testing.T) {
		got := Downgrades(candidates, ids("P", "2.0.0", "P", "3.0.0"))
		assertNames(t, got, "P 3.0.0", "Q 0.1.0")
	})
}

func TestDisallowedVersions(t *testing.T) {
	candidates := []*Package{pkg("P", "1.0.0"), pkg("P", "1.5.0"), pkg("P", "2.0.0"), pkg("Q", "9.0.0")}
	got := DisallowedVersions(candidates, []packaging.Dependency{dep("P", "[1.0, 2.0)")})
	assertNames(t, got, "P 1.0.0", "P 1.5.0", "Q 9.0.0")

	got = DisallowedVersions(candidates, []packaging.Dependency{dep("P", "[1.0, 2.0)"), dep("P", "[1.2, )")})
	assertNames(t, got, "P 1.5.0", "Q 9.0.0")
}

func TestSingleIDFilters(t *testing.T) {
	candidates := []*Package{
		pkg("P", "1.0.0"),
		pkg("P", "2.0.0-beta"),
		pkg("P", "2.0.0"),
		pkg("Q", "1.0.0-beta"),
	}

	tests := []struct {
		name string
		got  []*Package
		want []string
	}{
		{
			name: "remove all versions except",
			got:  RemoveAllVersionsForIDExcept(candidates, packaging.MustIdentity("p", "2.0.0")),
			want: []string{"P 2.0.0", "Q 1.0.0-beta"},
		},
		{
			name: "remove prerelease for id",
			got:  RemoveAllPrereleaseVersionsForID(candidates, "P"),
			want: []string{"P 1.0.0", "P 2.0.0", "Q 1.0.0-beta"},
		},
		{
			name: "remove versions less than",
			got:  RemoveAllVersionsLessThan(candidates, packaging.MustIdentity("P", "2.0.0-beta")),
			want: []string{"P 2.0.0-beta", "P 2.0.0", "Q 1.0.0-beta"},
		},
		{
			name: "all but highest",
			got:  AllButHighest(candidates, "P"),
			want: []string{"P 2.0.0", "Q 1.0.0-beta"},
		},
		{
			name: "all but highest unknown id",
			got:  AllButHighest(candidates, "Z"),
			want: []string{"P 1.0.0", "P 2.0.0-beta", "P 2.0.0", "Q 1.0.0-beta"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertNames(t, tt.got, tt.want...)
		})
	}
}

func TestByPrimaryTargets(t *testing.T) {
	candidates := []*Package{pkg("P", "1.0.0"), pkg("P", "2.0.0"), pkg("Q", "1.0.0"), pkg("Q", "2.0.0")}
	targets := []packaging.Identity{packaging.MustIdentity("P", "2.0.0"), packaging.MustIdentity("Q", "")}
	assertNames(t, ByPrimaryTargets(candidates, targets), "P 2.0.0", "Q 1.0.0", "Q 2.0.0")
}

func TestByUpdateConstraints(t *testing.T) {
	candidates := []*Package{
		pkg("P", "1.2.3"),
		pkg("P", "1.2.4"),
		pkg("P", "1.3.0"),
		pkg("P", "2.0.0"),
		pkg("P", "1.2.3-beta"),
		pkg("Q", "5.0.0"),
	}
	installed := ids("P", "1.2.3")

	tests := []struct {
		name string
		c    Constraints
		want []string
	}{
		{"none", None, []string{"P 1.2.3", "P 1.2.4", "P 1.3.0", "P 2.0.0", "P 1.2.3-beta", "Q 5.0.0"}},
		{"major", ExactMajor, []string{"P 1.2.3", "P 1.2.4", "P 1.3.0", "P 1.2.3-beta", "Q 5.0.0"}},
		{"major minor", ExactMajor | ExactMinor, []string{"P 1.2.3", "P 1.2.4", "P 1.2.3-beta", "Q 5.0.0"}},
		{"major minor patch", ExactMajor | ExactMinor | ExactPatch, []string{"P 1.2.3", "P 1.2.3-beta", "Q 5.0.0"}},
		{"release", ExactRelease, []string{"P 1.2.3", "P 1.2.4", "P 1.3.0", "P 2.0.0", "Q 5.0.0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertNames(t, ByUpdateConstraints(candidates, installed, tt.c), tt.want...)
		})
	}
}

func TestParseConstraints(t *testing.T) {
	tests := []struct {
		in      []string
		want    Constraints
		wantErr bool
	}{
		{nil, None, false},
		{[]string{"none"}, None, false},
		{[]string{"major,minor"}, ExactMajor | ExactMinor, false},
		{[]string{"Major", " patch "}, ExactMajor | ExactPatch, false},
		{[]string{"release"}, ExactRelease, false},
		{[]string{"epoch"}, 0, true},
	}
	for _, tt := range tests {
		got, err := ParseConstraints(tt.in...)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseConstraints(%v) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseConstraints(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if s := (ExactMajor | ExactRelease).String(); s != "major,release" {
		t.Errorf("String() = %q", s)
	}
	if s := None.String(); s != "none" {
		t.Errorf("String() = %q", s)
	}
}

func TestUnlisted(t *testing.T) {
	hidden := pkg("P", "1.5.0")
	hidden.Listed = false
	candidates := []*Package{pkg("P", "1.0.0"), hidden, pkg("P", "2.0.0")}

	assertNames(t, Unlisted(candidates, nil), "P 1.0.0", "P 2.0.0")
	assertNames(t, Unlisted(candidates, ids("p", "1.5.0")), "P 1.0.0", "P 1.5.0", "P 2.0.0")
}
