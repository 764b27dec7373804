// Package solve drives the SAT backend over a composed constraint list:
// single-check, sample-N, and approximate (reference-config-guided) modes.
package solve

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/crillab/gophersat/explain"
	"github.com/crillab/gophersat/solver"
	"github.com/kmax-go/kmaxconfig/bf"
)

// ErrConfigBroken is returned when the CONFIG_BROKEN guard participates in
// the unsat core: the requested CU is inherently unbuildable, independent of
// architecture or Kconfig choices.
type ErrConfigBroken struct{}

func (ErrConfigBroken) Error() string {
	return "solve: requested compilation unit depends on CONFIG_BROKEN"
}

// ErrUnsat is returned when the composed constraints have no model.
type ErrUnsat struct {
	Core []string // names of the variables referenced by the unsat core, if known
}

func (e *ErrUnsat) Error() string {
	if len(e.Core) == 0 {
		return "solve: unsatisfiable"
	}
	return fmt.Sprintf("solve: unsatisfiable; unsat core touches %v", e.Core)
}

// Model is a satisfying assignment. Values is keyed by variable/equality-atom
// name; Names gives the same entries in the formula's first-discovery order,
// since the emitter must walk models without re-sorting.
type Model struct {
	Names  []string
	Values map[string]bool
}

// Get returns the binding for name (false, false if name is not in the model).
func (m Model) Get(name string) (bool, bool) {
	v, ok := m.Values[name]
	return v, ok
}

// compiled pairs a flat bf.Formula constraint list with the CNF used to feed
// the solver, so that model extraction and unsat-core translation can share
// one variable table.
type compiled struct {
	cnf          *bf.CNF
	clauses      [][]int
	brokenLit    int
	hasBrokenLit bool
}

func compile(constraints []bf.Formula, guardPresent bool) *compiled {
	whole := bf.And(constraints...)
	cnf := bf.AsCNF(whole)
	c := &compiled{cnf: cnf, clauses: cnf.ClauseInts()}
	if guardPresent {
		if idx, ok := cnf.IndexOf("CONFIG_BROKEN"); ok {
			c.brokenLit = -idx
			c.hasBrokenLit = true
		}
	}
	return c
}

func modelFromAssignment(cnf *bf.CNF, assign func(idx int) bool) Model {
	names := cnf.VarNames()
	values := make(map[string]bool, len(names))
	for _, name := range names {
		idx, _ := cnf.IndexOf(name)
		values[name] = assign(idx)
	}
	return Model{Names: names, Values: values}
}

// unsatCoreNames extracts, from the clause list plus any extra unit
// clauses (e.g. approximate mode's active assumptions), which of the named
// problem variables participate in an unsat core, and reports whether the
// CONFIG_BROKEN guard clause (a single unit clause, appended last by the
// composer) is among them.
func unsatCoreNames(c *compiled, extraUnits ...int) (names []string, brokenInCore bool, err error) {
	clauses := c.clauses
	if len(extraUnits) > 0 {
		clauses = make([][]int, 0, len(c.clauses)+len(extraUnits))
		clauses = append(clauses, c.clauses...)
		for _, u := range extraUnits {
			clauses = append(clauses, []int{u})
		}
	}
	pb, err := explain.ParseCNF(strings.NewReader(dimacs(clauses, c.cnf.NbAllVars())))
	if err != nil {
		return nil, false, fmt.Errorf("solve: building unsat-core problem: %w", err)
	}
	subset, err := pb.UnsatSubset()
	if err != nil {
		return nil, false, fmt.Errorf("solve: extracting unsat core: %w", err)
	}
	seen := map[int]struct{}{}
	for _, clause := range subset.Clauses {
		for _, lit := range clause {
			v := lit
			if v < 0 {
				v = -v
			}
			seen[v] = struct{}{}
		}
		if c.hasBrokenLit && len(clause) == 1 && clause[0] == c.brokenLit {
			brokenInCore = true
		}
	}
	for _, name := range c.cnf.VarNames() {
		idx, _ := c.cnf.IndexOf(name)
		if _, ok := seen[idx]; ok {
			names = append(names, name)
		}
	}
	return names, brokenInCore, nil
}

// Single checks satisfiability of the full constraint list and returns one
// model. guardPresent tells Single whether the composer appended the
// CONFIG_BROKEN guard, so a core containing it can be reported precisely.
func Single(constraints []bf.Formula, guardPresent bool) (Model, error) {
	c := compile(constraints, guardPresent)
	pb := solver.ParseSlice(c.clauses)
	s := solver.New(pb)
	if s.Solve() == solver.Sat {
		model := s.Model()
		return modelFromAssignment(c.cnf, func(idx int) bool {
			return model[idx-1]
		}), nil
	}
	names, broken, err := unsatCoreNames(c)
	if err != nil {
		return Model{}, err
	}
	if broken {
		return Model{}, ErrConfigBroken{}
	}
	return Model{}, &ErrUnsat{Core: names}
}

// SampleN requires n >= 2, performs n independent checks, and returns n
// models. Distinctness across attempts comes from permuting clause
// presentation order between attempts using a generator seeded with seed
// (0 included), so the same seed reproduces the same permutations; no
// blocking clauses are added.
func SampleN(constraints []bf.Formula, guardPresent bool, n int, seed int64) ([]Model, error) {
	if n < 2 {
		return nil, fmt.Errorf("solve: sample mode requires n >= 2, got %d", n)
	}
	c := compile(constraints, guardPresent)
	rng := rand.New(rand.NewSource(seed))
	models := make([]Model, 0, n)
	for i := 0; i < n; i++ {
		shuffled := make([][]int, len(c.clauses))
		copy(shuffled, c.clauses)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		pb := solver.ParseSlice(shuffled)
		s := solver.New(pb)
		if s.Solve() != solver.Sat {
			return nil, &ErrUnsat{}
		}
		model := s.Model()
		models = append(models, modelFromAssignment(c.cnf, func(idx int) bool {
			return model[idx-1]
		}))
	}
	return models, nil
}

// ReferenceLiteral is one parsed line of a reference .config file.
type ReferenceLiteral struct {
	Name     string
	Positive bool
}

// Approximate finds a model satisfying constraints that keeps as many of
// reference's literals as possible, treating them as assumptions rather than
// hard clauses. userConstraints names the privileged literal set (from
// compose steps 4-5) that the minimizer must never drop.
func Approximate(constraints []bf.Formula, guardPresent bool, reference []ReferenceLiteral, userConstraints map[string]struct{}) (Model, error) {
	c := compile(constraints, guardPresent)
	pb := solver.ParseSlice(c.clauses)
	s := solver.New(pb)

	active := make([]bool, len(reference))
	for i := range active {
		active[i] = true
	}

	for {
		var assumptions []solver.Lit
		var activeUnits []int
		for i, lit := range reference {
			if !active[i] {
				continue
			}
			idx, ok := c.cnf.IndexOf(lit.Name)
			if !ok {
				continue
			}
			signed := signedInt(idx, lit.Positive)
			assumptions = append(assumptions, solver.IntToLit(int32(signed)))
			activeUnits = append(activeUnits, signed)
		}
		s.Assume(assumptions)
		if s.Solve() == solver.Sat {
			model := s.Model()
			return modelFromAssignment(c.cnf, func(idx int) bool {
				return model[idx-1]
			}), nil
		}

		names, broken, err := unsatCoreNames(c, activeUnits...)
		if err != nil {
			return Model{}, err
		}
		if broken {
			return Model{}, ErrConfigBroken{}
		}
		coreNames := map[string]struct{}{}
		for _, n := range names {
			coreNames[n] = struct{}{}
		}
		progressed := false
		for i, lit := range reference {
			if !active[i] {
				continue
			}
			if _, inCore := coreNames[lit.Name]; !inCore {
				continue
			}
			if _, immovable := userConstraints[lit.Name]; immovable {
				continue
			}
			active[i] = false
			progressed = true
		}
		if !progressed {
			return Model{}, &ErrUnsat{Core: names}
		}
	}
}

// dimacs renders clauses in the DIMACS CNF syntax explain.ParseCNF expects,
// the only public way to hand an arbitrary clause set to that package.
func dimacs(clauses [][]int, nbVars int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "p cnf %d %d\n", nbVars, len(clauses))
	for _, clause := range clauses {
		for _, lit := range clause {
			b.WriteString(strconv.Itoa(lit))
			b.WriteByte(' ')
		}
		b.WriteString("0\n")
	}
	return b.String()
}

func signedInt(idx int, positive bool) int {
	if positive {
		return idx
	}
	return -idx
}
