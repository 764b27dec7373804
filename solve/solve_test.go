package solve

import (
	"errors"
	"testing"

	"github.com/kmax-go/kmaxconfig/bf"
)

func TestSingleSat(t *testing.T) {
	constraints := []bf.Formula{bf.Var("CONFIG_A"), bf.Not(bf.Var("CONFIG_B"))}
	model, err := Single(constraints, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !model.Values["CONFIG_A"] || model.Values["CONFIG_B"] {
		t.Errorf("unexpected model: %v", model)
	}
}

func TestSingleUnsatReportsCore(t *testing.T) {
	constraints := []bf.Formula{bf.Var("CONFIG_A"), bf.Not(bf.Var("CONFIG_A"))}
	_, err := Single(constraints, false)
	var unsat *ErrUnsat
	if !errors.As(err, &unsat) {
		t.Fatalf("expected ErrUnsat, got %v", err)
	}
}

func TestSingleConfigBroken(t *testing.T) {
	constraints := []bf.Formula{bf.Var("CONFIG_BROKEN"), bf.Not(bf.Var("CONFIG_BROKEN"))}
	_, err := Single(constraints, true)
	if !errors.As(err, new(ErrConfigBroken)) {
		t.Fatalf("expected ErrConfigBroken, got %v", err)
	}
}

func TestSampleNRequiresAtLeastTwo(t *testing.T) {
	if _, err := SampleN([]bf.Formula{bf.Var("CONFIG_A")}, false, 1, 0); err == nil {
		t.Errorf("expected an error for n < 2")
	}
}

func TestSampleNReturnsNModels(t *testing.T) {
	constraints := []bf.Formula{bf.Or(bf.Var("CONFIG_A"), bf.Var("CONFIG_B"))}
	models, err := SampleN(constraints, false, 3, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != 3 {
		t.Fatalf("expected 3 models, got %d", len(models))
	}
	for _, m := range models {
		if !m.Values["CONFIG_A"] && !m.Values["CONFIG_B"] {
			t.Errorf("model violates the disjunction: %v", m)
		}
	}
}

func TestApproximateKeepsSatisfiableReference(t *testing.T) {
	constraints := []bf.Formula{bf.Var("CONFIG_A")}
	reference := []ReferenceLiteral{{Name: "CONFIG_A", Positive: true}}
	model, err := Approximate(constraints, false, reference, map[string]struct{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !model.Values["CONFIG_A"] {
		t.Errorf("expected CONFIG_A to remain true")
	}
}

func TestApproximateDropsConflictingReferenceLiteral(t *testing.T) {
	constraints := []bf.Formula{bf.Not(bf.Var("CONFIG_A"))}
	reference := []ReferenceLiteral{{Name: "CONFIG_A", Positive: true}}
	model, err := Approximate(constraints, false, reference, map[string]struct{}{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if model.Values["CONFIG_A"] {
		t.Errorf("expected the conflicting reference literal to be dropped, not kept")
	}
}

func TestApproximateImmovableUserConstraintFailsInstead(t *testing.T) {
	constraints := []bf.Formula{bf.Not(bf.Var("CONFIG_A"))}
	reference := []ReferenceLiteral{{Name: "CONFIG_A", Positive: true}}
	_, err := Approximate(constraints, false, reference, map[string]struct{}{"CONFIG_A": {}})
	if err == nil {
		t.Errorf("expected failure when the only droppable literal is immovable")
	}
}
