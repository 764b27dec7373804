package kconfigextract

import (
	"strings"
	"testing"
)

const sample = `
config CONFIG_FOO bool
config CONFIG_BAR tristate
prompt CONFIG_FOO
def_nonbool CONFIG_BAZ

config CONFIG_BAZ string
`

func TestParse(t *testing.T) {
	ex, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ty, ok := ex.Type("CONFIG_FOO"); !ok || ty != "bool" {
		t.Errorf("CONFIG_FOO type = %q, %v", ty, ok)
	}
	if ty, ok := ex.Type("CONFIG_BAR"); !ok || ty != "tristate" {
		t.Errorf("CONFIG_BAR type = %q, %v", ty, ok)
	}
	if !ex.IsVisible("CONFIG_FOO") {
		t.Errorf("CONFIG_FOO should be visible")
	}
	if ex.IsVisible("CONFIG_BAR") {
		t.Errorf("CONFIG_BAR should not be visible")
	}
	if !ex.HasNonboolDefault("CONFIG_BAZ") {
		t.Errorf("CONFIG_BAZ should have a non-bool default")
	}
	if ex.HasNonboolDefault("CONFIG_FOO") {
		t.Errorf("CONFIG_FOO should not have a non-bool default")
	}
}

func TestAllowNonVisibles(t *testing.T) {
	ex, err := Parse(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ex.AllowNonVisibles()
	if !ex.IsVisible("CONFIG_BAR") {
		t.Errorf("CONFIG_BAR should be visible once non-visible options are allowed")
	}
}

func TestParseMalformed(t *testing.T) {
	bad := []string{"config CONFIG_FOO", "prompt", "def_nonbool"}
	for _, line := range bad {
		if _, err := Parse(strings.NewReader(line)); err == nil {
			t.Errorf("expected error parsing %q", line)
		}
	}
}

func TestParseEmpty(t *testing.T) {
	ex, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ex.Types) != 0 || len(ex.Visible) != 0 || len(ex.HasDefNonbool) != 0 {
		t.Errorf("expected empty extract, got %+v", ex)
	}
}
