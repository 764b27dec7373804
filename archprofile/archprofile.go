// Package archprofile produces the hard-coded per-architecture constraint
// bundle (arch-defining options set/unset, word-size flags) used to pin the
// logical model to a single target architecture, and narrows the candidate
// architecture list from a CU's "arch/..." path.
package archprofile

import (
	"fmt"
	"strings"
)

// Profile is the literal set that pins the model to one architecture.
type Profile struct {
	Arch     string
	Positive []string // CONFIG_* names forced on
	Negative []string // CONFIG_* names forced off
	Disabled []string // every other arch-defining option, forced off
}

// archDefiningOptions lists every CONFIG_* option any Profile below treats as
// "the" selector for some architecture. Disabled sets are computed from this
// table so that adding an architecture only requires editing one place.
var archDefiningOptions = []string{
	"CONFIG_X86", "CONFIG_X86_64", "CONFIG_X86_32",
	"CONFIG_PPC", "CONFIG_PPC32", "CONFIG_PPC64",
	"CONFIG_SUPERH", "CONFIG_SUPERH32", "CONFIG_SUPERH64",
	"CONFIG_SPARC", "CONFIG_SPARC32", "CONFIG_SPARC64",
	"CONFIG_ARM", "CONFIG_ARM64",
	"CONFIG_MIPS",
	"CONFIG_UML",
}

// Architectures is the immutable, package-level table of canonical
// architecture tags, in declaration order. It is built once at package init
// and never mutated.
var Architectures = []string{
	"x86_64", "i386", "arm", "arm64", "sparc64", "sparc", "powerpc", "mips",
	"sh", "sh64", "um", "um32",
}

func disabledExcept(kept ...string) []string {
	keep := make(map[string]struct{}, len(kept))
	for _, k := range kept {
		keep[k] = struct{}{}
	}
	var out []string
	for _, opt := range archDefiningOptions {
		if _, ok := keep[opt]; !ok {
			out = append(out, opt)
		}
	}
	return out
}

// For builds the literal profile for the given architecture tag, per the
// exhaustive policy table.
func For(arch string) (Profile, error) {
	switch arch {
	case "x86_64":
		return Profile{
			Arch:     arch,
			Positive: []string{"CONFIG_X86", "CONFIG_X86_64", "BITS=64"},
			Negative: []string{"CONFIG_X86_32", "BITS=32"},
			Disabled: disabledExcept("CONFIG_X86", "CONFIG_X86_64"),
		}, nil
	case "i386":
		return Profile{
			Arch:     arch,
			Positive: []string{"CONFIG_X86", "CONFIG_X86_32", "BITS=32"},
			Negative: []string{"CONFIG_X86_64", "BITS=64"},
			Disabled: disabledExcept("CONFIG_X86", "CONFIG_X86_32"),
		}, nil
	case "powerpc":
		return Profile{
			Arch:     arch,
			Positive: []string{"CONFIG_PPC"},
			Disabled: disabledExcept("CONFIG_PPC", "CONFIG_PPC32", "CONFIG_PPC64"),
		}, nil
	case "sh":
		return Profile{
			Arch:     arch,
			Positive: []string{"CONFIG_SUPERH", "CONFIG_SUPERH32", "BITS=32"},
			Negative: []string{"CONFIG_SUPERH64", "BITS=64"},
			Disabled: disabledExcept("CONFIG_SUPERH", "CONFIG_SUPERH32"),
		}, nil
	case "sh64":
		return Profile{
			Arch:     arch,
			Positive: []string{"CONFIG_SUPERH", "CONFIG_SUPERH64", "BITS=64"},
			Negative: []string{"CONFIG_SUPERH32", "BITS=32"},
			Disabled: disabledExcept("CONFIG_SUPERH", "CONFIG_SUPERH64"),
		}, nil
	case "sparc":
		return Profile{
			Arch:     arch,
			Positive: []string{"CONFIG_SPARC", "CONFIG_SPARC32", "BITS=32"},
			Negative: []string{"CONFIG_SPARC64", "BITS=64"},
			Disabled: disabledExcept("CONFIG_SPARC", "CONFIG_SPARC32"),
		}, nil
	case "sparc64":
		return Profile{
			Arch:     arch,
			Positive: []string{"CONFIG_SPARC", "CONFIG_SPARC64", "BITS=64"},
			Negative: []string{"CONFIG_SPARC32", "BITS=32"},
			Disabled: disabledExcept("CONFIG_SPARC", "CONFIG_SPARC64"),
		}, nil
	case "um":
		return Profile{
			Arch:     arch,
			Positive: []string{"CONFIG_UML", "CONFIG_X86", "CONFIG_X86_64", "BITS=64"},
			Negative: []string{"CONFIG_X86_32", "BITS=32"},
			Disabled: disabledExcept("CONFIG_UML", "CONFIG_X86", "CONFIG_X86_64"),
		}, nil
	case "um32":
		return Profile{
			Arch:     arch,
			Positive: []string{"CONFIG_UML", "CONFIG_X86", "CONFIG_X86_32", "BITS=32"},
			Negative: []string{"CONFIG_X86_64", "BITS=64"},
			Disabled: disabledExcept("CONFIG_UML", "CONFIG_X86", "CONFIG_X86_32"),
		}, nil
	default:
		opt := "CONFIG_" + strings.ToUpper(arch)
		return Profile{
			Arch:     arch,
			Positive: []string{opt},
			Disabled: disabledExcept(opt),
		}, nil
	}
}

// KconfigPath returns the on-disk path to the per-architecture Kconfig
// bundle file, with UML variants aliased to their underlying X86 subdirectory.
func KconfigPath(formulasRoot, arch string) string {
	dir := arch
	switch arch {
	case "um":
		dir = "x86_64"
	case "um32":
		dir = "i386"
	}
	return fmt.Sprintf("%s/kclause/%s/kclause", formulasRoot, dir)
}

// KconfigExtractPath returns the on-disk path to the per-architecture
// Kconfig extract file (types/prompt/def_nonbool), with the same UML aliasing
// as KconfigPath.
func KconfigExtractPath(formulasRoot, arch string) string {
	dir := arch
	switch arch {
	case "um":
		dir = "x86_64"
	case "um32":
		dir = "i386"
	}
	return fmt.Sprintf("%s/kclause/%s/kconfig_extract", formulasRoot, dir)
}

// ForCU narrows the candidate architecture list for a CU whose path begins
// with "arch/". If the CU is not under arch/, candidates is returned as-is.
func ForCU(cu string, candidates []string) []string {
	if !strings.HasPrefix(cu, "arch/") {
		return candidates
	}
	rest := strings.TrimPrefix(cu, "arch/")
	sub := rest
	if idx := strings.Index(rest, "/"); idx >= 0 {
		sub = rest[:idx]
	}
	var wanted map[string]struct{}
	switch sub {
	case "um":
		wanted = set("um", "um32")
	case "x86":
		wanted = set("x86_64", "i386")
	case "powerpc":
		wanted = set("powerpc")
	case "sh":
		wanted = set("sh", "sh64")
	case "sparc":
		wanted = set("sparc", "sparc64")
	default:
		wanted = set(sub)
	}
	var out []string
	for _, c := range candidates {
		if _, ok := wanted[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

func set(items ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[it] = struct{}{}
	}
	return m
}
