package bf

import (
	"strings"
	"testing"
)

func TestParseSMT2(t *testing.T) {
	tests := map[string]string{
		"CONFIG_A":                     "CONFIG_A",
		"(not CONFIG_A)":               "not(CONFIG_A)",
		"(and CONFIG_A CONFIG_B)":      "and(CONFIG_A, CONFIG_B)",
		"(or CONFIG_A CONFIG_B)":       "or(CONFIG_A, CONFIG_B)",
		"(and CONFIG_A (not CONFIG_B))": "and(CONFIG_A, not(CONFIG_B))",
		"(= BITS 32)":                  "BITS=32",
		"true":                         "⊤",
		"false":                        "⊥",
	}
	for input, expected := range tests {
		f, err := ParseSMT2String(input)
		if err != nil {
			t.Errorf("could not parse %q: %v", input, err)
			continue
		}
		if f.String() != expected {
			t.Errorf("parsing %q: expected %q, got %q", input, expected, f.String())
		}
	}
}

func TestParseSMT2Chain(t *testing.T) {
	f, err := ParseSMT2(strings.NewReader("(and CONFIG_B (not (= CONFIG_A true)))"))
	if err != nil {
		t.Fatalf("could not parse chain formula: %v", err)
	}
	model := map[string]bool{"CONFIG_B": true, "CONFIG_A=true": false}
	if !f.Eval(model) {
		t.Errorf("expected formula to evaluate to true given model %v", model)
	}
}

func TestParseSMT2Errors(t *testing.T) {
	bad := []string{
		"(and CONFIG_A",
		"(foo CONFIG_A)",
		"(= CONFIG_A)",
		"",
	}
	for _, input := range bad {
		if _, err := ParseSMT2String(input); err == nil {
			t.Errorf("expected error parsing %q, got none", input)
		}
	}
}
