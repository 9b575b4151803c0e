package main

import (
	"testing"
)

func TestSplitList(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"campaign", []string{"campaign"}},
		{"campaign,adset", []string{"campaign", "adset"}},
		{" campaign , adset ,", []string{"campaign", "adset"}},
	}
	for _, c := range cases {
		got := splitList(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("splitList(%q) = %v; want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("splitList(%q) = %v; want %v", c.in, got, c.want)
			}
		}
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	if _, err := parseDate("", "--since"); err == nil {
		t.Fatal("empty date accepted")
	}
	if _, err := parseDate("01/02/2025", "--since"); err == nil {
		t.Fatal("wrong format accepted")
	}
	d, err := parseDate("2025-01-02", "--since")
	if err != nil {
		t.Fatalf("parseDate: %v", err)
	}
	if d.Format("2006-01-02") != "2025-01-02" {
		t.Fatalf("parsed %v", d)
	}
}

func TestBuildOverrides(t *testing.T) {
	t.Parallel()

	if _, err := buildOverrides(cliFlags{preset: "made-up"}); err == nil {
		t.Fatal("unknown preset accepted")
	}

	ov, err := buildOverrides(cliFlags{preset: "lean", levels: "ad"})
	if err != nil {
		t.Fatalf("buildOverrides: %v", err)
	}
	// The explicit flag replaces the preset's levels; the preset's other
	// dimensions survive.
	if len(ov.Levels) != 1 || ov.Levels[0] != "ad" {
		t.Fatalf("levels = %v; want [ad]", ov.Levels)
	}
	if len(ov.BreakdownKeys) != 1 || ov.BreakdownKeys[0] != "none" {
		t.Fatalf("breakdown keys = %v; want [none]", ov.BreakdownKeys)
	}
}
