// Package pathresolve maps a user-supplied compilation-unit path to its
// canonical Kbuild key and enumerates the chain of enclosing directory keys.
package pathresolve

import (
	"fmt"
	"path"
	"strings"
)

// ErrAmbiguous is returned when more than one Kbuild key normalizes to the
// same compilation-unit path. The CLI maps this to exit code 4.
type ErrAmbiguous struct {
	CU         string
	Candidates []string
}

func (e *ErrAmbiguous) Error() string {
	return fmt.Sprintf("ambiguous compilation unit %q: candidates are %v", e.CU, e.Candidates)
}

// ErrNotFound is returned when no Kbuild key matches the requested CU.
// The CLI maps this to exit code 3 (no formula for CU), since a CU that
// cannot even be resolved certainly has no formula.
type ErrNotFound struct {
	CU string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("no Kbuild key found for compilation unit %q", e.CU)
}

// normalize forces the ".o" extension (warning callers about the rewrite is
// their responsibility, via the bool return) and cleans the path while
// preserving a trailing slash, which is semantically significant for
// directory keys.
func normalize(p string) (cleaned string, changedExt bool) {
	hadSlash := strings.HasSuffix(p, "/")
	trimmed := strings.TrimSuffix(p, "/")
	if trimmed != "" && !strings.HasSuffix(trimmed, ".o") && !hadSlash {
		trimmed += ".o"
		changedExt = true
	}
	cleaned = path.Clean(trimmed)
	if hadSlash {
		cleaned += "/"
	}
	return cleaned, changedExt
}

// Resolve maps the user-supplied CU path p to a single canonical Kbuild key
// drawn from the keys present in the formula store. keys is the full set of
// known Kbuild keys (both CU and directory keys).
//
// Resolve returns (key, extensionWasForced, error). extensionWasForced tells
// the caller whether it should log the "forced .o extension" warning.
func Resolve(p string, keys map[string]struct{}) (key string, extensionForced bool, err error) {
	normalized, changedExt := normalize(p)
	if _, ok := keys[normalized]; ok {
		return normalized, changedExt, nil
	}
	if _, ok := keys[p]; ok {
		return p, false, nil
	}
	var candidates []string
	for k := range keys {
		ck, _ := normalize(k)
		if ck == normalized || ck == path.Base(normalized) || path.Base(ck) == normalized {
			candidates = append(candidates, k)
		}
	}
	switch len(candidates) {
	case 0:
		return "", changedExt, &ErrNotFound{CU: p}
	case 1:
		return candidates[0], changedExt, nil
	default:
		return "", changedExt, &ErrAmbiguous{CU: p, Candidates: candidates}
	}
}

// AncestorChain splits the resolved key on '/', returning the enclosing
// directory keys "d1/", "d1/d2/", ..., up to but not including key itself.
// Each element carries a required trailing slash.
func AncestorChain(key string) []string {
	trimmed := strings.TrimSuffix(key, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) <= 1 {
		return nil
	}
	chain := make([]string, 0, len(parts)-1)
	acc := ""
	for _, part := range parts[:len(parts)-1] {
		if acc == "" {
			acc = part
		} else {
			acc = acc + "/" + part
		}
		chain = append(chain, acc+"/")
	}
	return chain
}
