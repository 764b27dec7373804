// Package compose builds the flat constraint list for a (CU-set, arch)
// attempt, conjoining Kbuild presence conditions, Kconfig clauses, ad-hoc
// constraints, and the architecture profile into a single list of formulas.
package compose

import (
	"fmt"
	"sort"

	"github.com/kmax-go/kmaxconfig/archprofile"
	"github.com/kmax-go/kmaxconfig/bf"
	"github.com/kmax-go/kmaxconfig/formulastore"
	"github.com/kmax-go/kmaxconfig/kconfigextract"
)

// CU is one resolved compilation unit: its canonical Kbuild key and the
// chain of enclosing directory keys.
type CU struct {
	Key   string
	Chain []string
}

// AdHoc is one ad-hoc constraint file entry: NAME (positive) or !NAME (negative).
type AdHoc struct {
	Name     string
	Positive bool
}

// Request bundles everything the composer needs for one (CU-set, arch) attempt.
type Request struct {
	Store             *formulastore.Store
	CUs               []CU
	Arch              string
	FormulasRoot      string
	AdHoc             []AdHoc
	Defines           []string
	Undefines         []string
	AllowConfigBroken bool
	// KconfigBundleFile, when set, overrides per-architecture bundle
	// resolution: the composer loads this file directly and skips the
	// architecture profile step (step 6), since no architecture was chosen.
	KconfigBundleFile string
	// Extract holds the Kconfig type table used by step 2's "unknown to this
	// arch" negation. Nil (or an extract with no recorded types) means
	// Kconfig types are unknown, and step 2 is skipped entirely.
	Extract *kconfigextract.Extract
}

// Result is the output of a single composition: the flat constraint list,
// plus the privileged user-constraint name set used by approximate mode.
type Result struct {
	Constraints        []bf.Formula
	UserSpecifiedNames map[string]struct{}
}

// Compose builds the flat constraint list per the composer's seven-step algorithm.
func Compose(req Request) (*Result, error) {
	res := &Result{UserSpecifiedNames: map[string]struct{}{}}

	// Step 1: Kbuild chain conjunctions, one independent contribution per CU.
	referenced := map[string]struct{}{}
	for _, cu := range req.CUs {
		f, err := req.Store.ChainFormula(cu.Key, cu.Chain)
		if err != nil {
			return nil, fmt.Errorf("compose: kbuild formula for %s: %w", cu.Key, err)
		}
		res.Constraints = append(res.Constraints, f)
		collectVarNames(f, referenced)
	}

	// Step 3 needs the Kconfig clause bundle, loaded here. Step 2 (below) uses
	// only the Kconfig *type* table: it negates names absent from it, while
	// step 3 includes every clause the selected bundle actually carries.
	var bundle map[string][]bf.Formula
	var err error
	if req.KconfigBundleFile != "" {
		bundle, err = formulastore.LoadKconfigBundleFile(req.KconfigBundleFile)
	} else {
		bundle, err = formulastore.LoadKconfigFor(req.FormulasRoot, req.Arch)
	}
	if err != nil {
		return nil, fmt.Errorf("compose: loading kconfig bundle: %w", err)
	}
	if req.Extract != nil && len(req.Extract.Types) > 0 {
		for name := range referenced {
			if _, known := req.Extract.Type(name); !known {
				res.Constraints = append(res.Constraints, bf.Not(bf.Var(name)))
			}
		}
	}

	// Step 3: append every clause from the selected Kconfig bundle.
	names := make([]string, 0, len(bundle))
	for name := range bundle {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic constraint ordering across runs
	for _, name := range names {
		res.Constraints = append(res.Constraints, bundle[name]...)
	}

	// Step 4: ad-hoc file literals.
	for _, a := range req.AdHoc {
		if a.Positive {
			res.Constraints = append(res.Constraints, bf.Var(a.Name))
		} else {
			res.Constraints = append(res.Constraints, bf.Not(bf.Var(a.Name)))
		}
		res.UserSpecifiedNames[a.Name] = struct{}{}
	}

	// Step 5: --define / --undefine.
	for _, name := range req.Defines {
		res.Constraints = append(res.Constraints, bf.Var(name))
		res.UserSpecifiedNames[name] = struct{}{}
	}
	for _, name := range req.Undefines {
		res.Constraints = append(res.Constraints, bf.Not(bf.Var(name)))
		res.UserSpecifiedNames[name] = struct{}{}
	}

	// Step 6: architecture profile literals. Skipped when no architecture was
	// chosen (an explicit --kconfig-bundle run): the bundle stands on its own.
	if req.Arch != "" {
		profile, err := archprofile.For(req.Arch)
		if err != nil {
			return nil, fmt.Errorf("compose: architecture profile for %s: %w", req.Arch, err)
		}
		for _, name := range profile.Positive {
			res.Constraints = append(res.Constraints, literalFor(name, true))
		}
		for _, name := range profile.Negative {
			res.Constraints = append(res.Constraints, literalFor(name, false))
		}
		for _, name := range profile.Disabled {
			res.Constraints = append(res.Constraints, bf.Not(bf.Var(name)))
		}
	}

	// Step 7: CONFIG_BROKEN guard.
	if !req.AllowConfigBroken {
		res.Constraints = append(res.Constraints, bf.Not(bf.Var("CONFIG_BROKEN")))
	}

	return res, nil
}

// literalFor turns an architecture-profile entry like "BITS=64" or
// "CONFIG_X86" into the matching formula, positive or negated.
func literalFor(name string, positive bool) bf.Formula {
	var f bf.Formula
	if eqName, eqValue, ok := splitEq(name); ok {
		f = bf.EqAtom(eqName, eqValue)
	} else {
		f = bf.Var(name)
	}
	if !positive {
		return bf.Not(f)
	}
	return f
}

func splitEq(s string) (name, value string, ok bool) {
	for i, r := range s {
		if r == '=' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

// collectVarNames walks f and records every variable name it references
// (CONFIG_* symbols and NAME=VALUE equality atoms alike), used to detect Kbuild-referenced variables absent from this
// architecture's Kconfig model (step 2).
func collectVarNames(f bf.Formula, out map[string]struct{}) {
	for _, name := range bf.AsCNF(f).VarNames() {
		out[name] = struct{}{}
	}
}

// UserConstraintList returns the logged-diagnostic-friendly ancestor/CU key
// list for a request, used by the orchestrator's --view-kbuild mode.
func UserConstraintList(cus []CU) []string {
	var out []string
	for _, cu := range cus {
		out = append(out, cu.Chain...)
		out = append(out, cu.Key)
	}
	return out
}
