// Package formulastore serves presence-condition formulas keyed by Kbuild
// key, and Kconfig clauses keyed by option name, regenerating them on demand
// via the extern package when they are missing from the on-disk cache.
package formulastore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kmax-go/kmaxconfig/archprofile"
	"github.com/kmax-go/kmaxconfig/bf"
	"github.com/kmax-go/kmaxconfig/extern"
	"github.com/kmax-go/kmaxconfig/logx"
)

// Store holds the Kbuild presence-condition cache: Kbuild key -> SMT-LIB 2 string.
type Store struct {
	path     string
	Formulas map[string]string
}

// LoadKbuildFormulas loads a persisted key->formula mapping. A missing file
// is not an error: it yields an empty store, since the cache is built
// incrementally on demand.
func LoadKbuildFormulas(path string) (*Store, error) {
	st := &Store{path: path, Formulas: map[string]string{}}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return st, nil
	}
	if err != nil {
		return nil, fmt.Errorf("formulastore: reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &st.Formulas); err != nil {
		return nil, fmt.Errorf("formulastore: parsing %s: %w", path, err)
	}
	return st, nil
}

// Keys returns the set of Kbuild keys currently in the store, for use with
// pathresolve.Resolve.
func (s *Store) Keys() map[string]struct{} {
	keys := make(map[string]struct{}, len(s.Formulas))
	for k := range s.Formulas {
		keys[k] = struct{}{}
	}
	return keys
}

// EnsureKbuildFor guarantees that key and every ancestor directory key named
// by chain has a formula in the store, regenerating missing ones via the
// external Kbuild extractor. srctree is the kernel source root used to
// locate each directory's Kbuild/Makefile.
func (s *Store) EnsureKbuildFor(srctree, key string, chain []string) error {
	for _, dirKey := range append(chain, key) {
		if _, ok := s.Formulas[dirKey]; ok {
			continue
		}
		dir := strings.TrimSuffix(dirKey, "/")
		if !hasKbuildFile(srctree, dir) {
			logx.Warnf("no Kbuild or Makefile under %s, treating %s as unconstrained", dir, dirKey)
			s.Formulas[dirKey] = "true"
			continue
		}
		out, err := extern.RunKbuildExtractor(srctree, dir)
		if err != nil {
			return err
		}
		var fragment map[string]string
		if err := json.Unmarshal(out, &fragment); err != nil {
			return fmt.Errorf("formulastore: parsing kbuild extractor output for %s: %w", dirKey, err)
		}
		for k, v := range fragment {
			s.Formulas[k] = v
		}
		if _, ok := s.Formulas[dirKey]; !ok {
			s.Formulas[dirKey] = "true"
		}
	}
	return nil
}

func hasKbuildFile(srctree, dir string) bool {
	for _, name := range []string{"Kbuild", "Makefile"} {
		if _, err := os.Stat(filepath.Join(srctree, dir, name)); err == nil {
			return true
		}
	}
	return false
}

// Persist writes the store back to disk via temp-file-rename, so a process
// killed mid-write never leaves a half-written cache in the real location.
func (s *Store) Persist() error {
	data, err := json.MarshalIndent(s.Formulas, "", "  ")
	if err != nil {
		return fmt.Errorf("formulastore: marshaling: %w", err)
	}
	pending := s.path + ".pending"
	if err := os.WriteFile(pending, data, 0o644); err != nil {
		return fmt.Errorf("formulastore: writing %s: %w", pending, err)
	}
	if err := os.Rename(pending, s.path); err != nil {
		return fmt.Errorf("formulastore: renaming %s to %s: %w", pending, s.path, err)
	}
	return nil
}

// FormulaFor returns the parsed presence-condition formula for key, or
// bf.True if the key is absent (an absent ancestor directory formula is
// semantically unconstrained).
func (s *Store) FormulaFor(key string) (bf.Formula, error) {
	raw, ok := s.Formulas[key]
	if !ok {
		return bf.True, nil
	}
	f, err := bf.ParseSMT2String(raw)
	if err != nil {
		return nil, fmt.Errorf("formulastore: parsing formula for %s: %w", key, err)
	}
	return f, nil
}

// ChainFormula returns the conjunction of the formulas for key and every
// entry of chain (its ancestor directory keys, from pathresolve.AncestorChain).
func (s *Store) ChainFormula(key string, chain []string) (bf.Formula, error) {
	subs := make([]bf.Formula, 0, len(chain)+1)
	for _, k := range append(append([]string{}, chain...), key) {
		f, err := s.FormulaFor(k)
		if err != nil {
			return nil, err
		}
		subs = append(subs, f)
	}
	return bf.And(subs...), nil
}

// KconfigBundle is a Kconfig option -> clause-formula-list mapping, the
// on-disk schema for a per-architecture Kconfig clause bundle.
type KconfigBundle map[string][]string

// LoadKconfigFor resolves the per-architecture Kconfig bundle file path and
// parses every clause string into a bf.Formula, keyed by option name.
func LoadKconfigFor(formulasRoot, arch string) (map[string][]bf.Formula, error) {
	return LoadKconfigBundleFile(archprofile.KconfigPath(formulasRoot, arch))
}

// LoadKconfigBundleFile parses a Kconfig clause bundle at an explicit path,
// bypassing per-architecture path resolution. Used for the --kconfig-bundle
// override, where the caller supplies the bundle directly.
func LoadKconfigBundleFile(path string) (map[string][]bf.Formula, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("formulastore: reading kconfig bundle %s: %w", path, err)
	}
	var bundle KconfigBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("formulastore: parsing kconfig bundle %s: %w", path, err)
	}
	out := make(map[string][]bf.Formula, len(bundle))
	for name, clauses := range bundle {
		parsed := make([]bf.Formula, 0, len(clauses))
		for _, c := range clauses {
			f, err := bf.ParseSMT2String(c)
			if err != nil {
				return nil, fmt.Errorf("formulastore: parsing clause for %s in %s: %w", name, path, err)
			}
			parsed = append(parsed, f)
		}
		out[name] = parsed
	}
	return out, nil
}
