package packaging

import (
	"encoding/json"
	"testing"

	"github.com/matzehuels/pkggather/pkg/errors"
)

func TestIdentityEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Identity
		want bool
	}{
		{"same", MustIdentity("Foo", "1.0.0"), MustIdentity("Foo", "1.0.0"), true},
		{"case-insensitive id", MustIdentity("Foo", "1.0.0"), MustIdentity("foo", "1.0.0"), true},
		{"short version", MustIdentity("Foo", "1.0"), MustIdentity("Foo", "1.0.0"), true},
		{"metadata ignored", MustIdentity("Foo", "1.0.0+abc"), MustIdentity("Foo", "1.0.0"), true},
		{"different version", MustIdentity("Foo", "1.0.0"), MustIdentity("Foo", "1.0.1"), false},
		{"prerelease differs", MustIdentity("Foo", "1.0.0-beta"), MustIdentity("Foo", "1.0.0"), false},
		{"different id", MustIdentity("Foo", "1.0.0"), MustIdentity("Bar", "1.0.0"), false},
		{"id only both", MustIdentity("Foo", ""), MustIdentity("FOO", ""), true},
		{"id only one side", MustIdentity("Foo", ""), MustIdentity("Foo", "1.0.0"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("%v.Equal(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if tt.want && tt.a.Key() != tt.b.Key() {
				t.Errorf("equal identities have different keys: %q vs %q", tt.a.Key(), tt.b.Key())
			}
		})
	}
}

func TestIdentityString(t *testing.T) {
	if got := MustIdentity("Foo", "1.2").String(); got != "Foo 1.2.0" {
		t.Errorf("String() = %q, want %q", got, "Foo 1.2.0")
	}
	if got := MustIdentity("Foo", "").String(); got != "Foo" {
		t.Errorf("String() = %q, want %q", got, "Foo")
	}
}

func TestParseIdentityInvalid(t *testing.T) {
	_, err := ParseIdentity("Foo", "not-a-version")
	if !errors.Is(err, errors.ErrCodeInvalidVersion) {
		t.Errorf("expected INVALID_VERSION, got %v", err)
	}
}

func TestIDSet(t *testing.T) {
	s := NewIDSet("Foo")
	if !s.Has("foo") {
		t.Error("Has should be case-insensitive")
	}
	if s.Add("FOO") {
		t.Error("Add of an existing id should report false")
	}
	if !s.Add("Bar") {
		t.Error("Add of a new id should report true")
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestParseVersionRange(t *testing.T) {
	tests := []struct {
		in      string
		in1     []string // satisfied
		out     []string // not satisfied
		wantErr bool
	}{
		{in: "", in1: []string{"0.0.1", "99.0.0"}},
		{in: "*", in1: []string{"1.0.0"}},
		{in: "1.0", in1: []string{"1.0.0", "2.5.0"}, out: []string{"0.9.0"}},
		{in: "[1.0,2.0)", in1: []string{"1.0.0", "1.9.9"}, out: []string{"0.9.9", "2.0.0"}},
		{in: "(1.0,2.0]", in1: []string{"1.0.1", "2.0.0"}, out: []string{"1.0.0", "2.0.1"}},
		{in: "(,3.0]", in1: []string{"0.1.0", "3.0.0"}, out: []string{"3.0.1"}},
		{in: "[1.5, )", in1: []string{"1.5.0", "10.0.0"}, out: []string{"1.4.0"}},
		{in: "[1.2.3]", in1: []string{"1.2.3"}, out: []string{"1.2.4", "1.2.2"}},
		{in: ">=1.0, <2.0", in1: []string{"1.0.0", "1.5.0"}, out: []string{"2.0.0"}},
		{in: "^1.2", in1: []string{"1.2.0", "1.9.0"}, out: []string{"2.0.0", "1.1.0"}},
		{in: "~1.4", in1: []string{"1.4.7"}, out: []string{"1.5.0"}},
		{in: "1.x", in1: []string{"1.3.0"}, out: []string{"2.0.0"}},

		{in: "[2.0,1.0]", wantErr: true},
		{in: "(1.0)", wantErr: true},
		{in: "[1.0,1.0)", wantErr: true},
		{in: "[1.0,2.0", wantErr: true},
		{in: "[abc,2.0]", wantErr: true},
		{in: "garbage", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, err := ParseVersionRange(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseVersionRange(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, errors.ErrCodeInvalidRange) {
					t.Errorf("expected INVALID_RANGE, got %v", err)
				}
				return
			}
			for _, v := range tt.in1 {
				if !r.Satisfies(MustVersion(v)) {
					t.Errorf("%q should be satisfied by %s", tt.in, v)
				}
			}
			for _, v := range tt.out {
				if r.Satisfies(MustVersion(v)) {
					t.Errorf("%q should not be satisfied by %s", tt.in, v)
				}
			}
		})
	}
}

func TestVersionRangeNilVersion(t *testing.T) {
	if AllVersions.Satisfies(nil) {
		t.Error("a nil version never satisfies a range")
	}
}

func TestVersionRangeRoundTrip(t *testing.T) {
	for _, in := range []string{"[1.0.0, 2.0.0)", "(, 3.0.0]", "[1.2.3]", "[1.5.0, )"} {
		r := MustVersionRange(in)
		text, err := r.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText: %v", err)
		}
		if string(text) != in {
			t.Errorf("MarshalText(%q) = %q", in, text)
		}
		var back VersionRange
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if back.String() != r.String() {
			t.Errorf("round trip %q -> %q", r.String(), back.String())
		}
	}
}

func TestDependencyInfoJSON(t *testing.T) {
	in := NewDependencyInfo(MustIdentity("Foo", "1.0.0-beta"), "feed",
		Dependency{ID: "Bar", Range: MustVersionRange("[2.0, )")})

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out SourcePackageDependencyInfo
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal(%s): %v", data, err)
	}
	if !out.Identity.Equal(in.Identity) {
		t.Errorf("identity = %v, want %v", out.Identity, in.Identity)
	}
	if out.Source != "feed" || !out.Listed {
		t.Errorf("unexpected provenance: %+v", out)
	}
	if len(out.Dependencies) != 1 || !out.Dependencies[0].Range.Satisfies(MustVersion("2.1.0")) {
		t.Errorf("dependencies not preserved: %+v", out.Dependencies)
	}
}

func TestSortInfos(t *testing.T) {
	pkgs := []*SourcePackageDependencyInfo{
		NewDependencyInfo(MustIdentity("foo", "2.0.0"), "s"),
		NewDependencyInfo(MustIdentity("Bar", "1.0.0"), "s"),
		NewDependencyInfo(MustIdentity("Foo", "1.0.0"), "s"),
	}
	SortInfos(pkgs)
	want := []string{"Bar 1.0.0", "Foo 1.0.0", "foo 2.0.0"}
	for i, p := range pkgs {
		if p.String() != want[i] {
			t.Errorf("pkgs[%d] = %q, want %q", i, p.String(), want[i])
		}
	}
}

func TestParseFramework(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"net8.0", "net8.0", false},
		{"NET8.0", "net8.0", false},
		{"netstandard2.0", "netstandard2.0", false},
		{"net472", "net4.7.2", false},
		{"", "any", false},
		{"any", "any", false},

		{"8.0", "", true},
		{"net", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f, err := ParseFramework(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFramework(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && f.String() != tt.want {
				t.Errorf("ParseFramework(%q) = %q, want %q", tt.in, f.String(), tt.want)
			}
		})
	}
}

func TestFrameworkNearest(t *testing.T) {
	group := func(fw, dep string) DependencyGroup {
		return DependencyGroup{Framework: MustFramework(fw), Dependencies: []Dependency{{ID: dep}}}
	}
	groups := []DependencyGroup{
		group("any", "AnyDep"),
		group("netstandard2.0", "StdDep"),
		group("net6.0", "Net6Dep"),
		group("net8.0", "Net8Dep"),
	}

	tests := []struct {
		target string
		groups []DependencyGroup
		want   string
		ok     bool
	}{
		{"net8.0", groups, "Net8Dep", true},
		{"net7.0", groups, "Net6Dep", true},
		{"net9.0", groups, "Net8Dep", true},
		{"net5.0", groups, "StdDep", true},
		{"netstandard2.1", groups, "StdDep", true},
		{"netcoreapp3.1", groups, "StdDep", true},
		{"net8.0", groups[:1], "AnyDep", true},
		{"net8.0", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			g, ok := MustFramework(tt.target).Nearest(tt.groups)
			if ok != tt.ok {
				t.Fatalf("Nearest ok = %v, want %v", ok, tt.ok)
			}
			if ok && g.Dependencies[0].ID != tt.want {
				t.Errorf("Nearest(%s) = %s, want %s", tt.target, g.Dependencies[0].ID, tt.want)
			}
		})
	}
}
