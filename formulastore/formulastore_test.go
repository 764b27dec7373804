package formulastore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadKbuildFormulasMissingFileIsEmpty(t *testing.T) {
	st, err := LoadKbuildFormulas(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(st.Formulas) != 0 {
		t.Errorf("expected empty store, got %v", st.Formulas)
	}
}

func TestPersistRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kmax")
	st := &Store{path: path, Formulas: map[string]string{"kernel/kcmp.o": "CONFIG_A"}}
	if err := st.Persist(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(path + ".pending"); !os.IsNotExist(err) {
		t.Errorf("pending file should not remain after a successful persist")
	}
	loaded, err := LoadKbuildFormulas(path)
	if err != nil {
		t.Fatalf("unexpected error reloading: %v", err)
	}
	if loaded.Formulas["kernel/kcmp.o"] != "CONFIG_A" {
		t.Errorf("round-tripped store missing expected entry: %v", loaded.Formulas)
	}
}

func TestFormulaForAbsentKeyIsTrue(t *testing.T) {
	st := &Store{Formulas: map[string]string{}}
	f, err := st.FormulaFor("nope/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.String() != "⊤" {
		t.Errorf("expected the true constant for an absent ancestor key, got %q", f.String())
	}
}

func TestChainFormulaConjoinsAncestors(t *testing.T) {
	st := &Store{Formulas: map[string]string{
		"a/":          "CONFIG_A",
		"a/b/":        "CONFIG_B",
		"a/b/c.o":     "CONFIG_C",
	}}
	f, err := st.ChainFormula("a/b/c.o", []string{"a/", "a/b/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	model := map[string]bool{"CONFIG_A": true, "CONFIG_B": true, "CONFIG_C": true}
	if !f.Eval(model) {
		t.Errorf("expected chain formula to hold when every ancestor and the CU itself are true")
	}
	model["CONFIG_B"] = false
	if f.Eval(model) {
		t.Errorf("expected chain formula to fail when an ancestor condition is false")
	}
}

func TestLoadKconfigForParsesBundle(t *testing.T) {
	dir := t.TempDir()
	bundleDir := filepath.Join(dir, "kclause", "x86_64")
	if err := os.MkdirAll(bundleDir, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bundle := KconfigBundle{"CONFIG_FOO": {"CONFIG_FOO", "(not CONFIG_BAR)"}}
	data, err := json.Marshal(bundle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(bundleDir, "kclause"), data, 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, err := LoadKconfigFor(dir, "x86_64")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed["CONFIG_FOO"]) != 2 {
		t.Errorf("expected 2 parsed clauses for CONFIG_FOO, got %d", len(parsed["CONFIG_FOO"]))
	}
}
