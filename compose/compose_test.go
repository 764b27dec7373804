package compose

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/kmax-go/kmaxconfig/formulastore"
	"github.com/kmax-go/kmaxconfig/kconfigextract"
)

func newStoreWithBundle(t *testing.T, arch string, bundle formulastore.KconfigBundle) (*formulastore.Store, string) {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "kclause", arch)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := json.Marshal(bundle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "kclause"), data, 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	st, err := formulastore.LoadKbuildFormulas(filepath.Join(root, "kmax"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return st, root
}

func TestComposeIncludesAllSteps(t *testing.T) {
	st, root := newStoreWithBundle(t, "x86_64", formulastore.KconfigBundle{
		"CONFIG_FOO": {"CONFIG_FOO"},
	})
	st.Formulas["kernel/kcmp.o"] = "CONFIG_FOO"

	req := Request{
		Store:        st,
		CUs:          []CU{{Key: "kernel/kcmp.o"}},
		Arch:         "x86_64",
		FormulasRoot: root,
		AdHoc:        []AdHoc{{Name: "CONFIG_BAR", Positive: true}, {Name: "CONFIG_BAZ", Positive: false}},
		Defines:      []string{"CONFIG_QUX"},
		Undefines:    []string{"CONFIG_QUUX"},
	}
	res, err := Compose(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Constraints) == 0 {
		t.Fatalf("expected a non-empty constraint list")
	}
	for _, name := range []string{"CONFIG_BAR", "CONFIG_BAZ", "CONFIG_QUX", "CONFIG_QUUX"} {
		if _, ok := res.UserSpecifiedNames[name]; !ok {
			t.Errorf("expected %s to be recorded as user-specified", name)
		}
	}
	foundConfigBroken := false
	for _, c := range res.Constraints {
		if c.String() == "not(CONFIG_BROKEN)" {
			foundConfigBroken = true
		}
	}
	if !foundConfigBroken {
		t.Errorf("expected the CONFIG_BROKEN guard to be present by default")
	}
}

func TestComposeAllowConfigBrokenSkipsGuard(t *testing.T) {
	st, root := newStoreWithBundle(t, "x86_64", formulastore.KconfigBundle{})
	req := Request{Store: st, Arch: "x86_64", FormulasRoot: root, AllowConfigBroken: true}
	res, err := Compose(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range res.Constraints {
		if c.String() == "not(CONFIG_BROKEN)" {
			t.Errorf("CONFIG_BROKEN guard should be absent when AllowConfigBroken is set")
		}
	}
}

func TestComposeStep2NegatesOnlyNamesAbsentFromExtractTypes(t *testing.T) {
	// CONFIG_FOO has no clause in this arch's bundle, but the extract
	// records its type: it must NOT be negated. CONFIG_BAR has neither a
	// clause nor a recorded type: it must be negated.
	st, root := newStoreWithBundle(t, "x86_64", formulastore.KconfigBundle{})
	st.Formulas["kernel/kcmp.o"] = "(and CONFIG_FOO CONFIG_BAR)"

	req := Request{
		Store:        st,
		CUs:          []CU{{Key: "kernel/kcmp.o"}},
		Arch:         "x86_64",
		FormulasRoot: root,
		Extract: &kconfigextract.Extract{
			Types: map[string]string{"CONFIG_FOO": "bool"},
		},
	}
	res, err := Compose(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var negatedFoo, negatedBar bool
	for _, c := range res.Constraints {
		if c.String() == "not(CONFIG_FOO)" {
			negatedFoo = true
		}
		if c.String() == "not(CONFIG_BAR)" {
			negatedBar = true
		}
	}
	if negatedFoo {
		t.Errorf("CONFIG_FOO is a known Kconfig type and must not be negated")
	}
	if !negatedBar {
		t.Errorf("CONFIG_BAR has no recorded Kconfig type and should be negated")
	}
}

func TestComposeArchProfileLiterals(t *testing.T) {
	st, root := newStoreWithBundle(t, "i386", formulastore.KconfigBundle{})
	req := Request{Store: st, Arch: "i386", FormulasRoot: root}
	res, err := Compose(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sawPositive, sawNegative bool
	for _, c := range res.Constraints {
		if c.String() == "CONFIG_X86_32" {
			sawPositive = true
		}
		if c.String() == "not(CONFIG_X86_64)" {
			sawNegative = true
		}
	}
	if !sawPositive || !sawNegative {
		t.Errorf("expected i386 profile literals in the constraint list")
	}
}
