// Package emit renders a satisfying model as kernel ".config" syntax,
// applying Kconfig visibility and type-driven formatting.
package emit

import (
	"fmt"
	"io"
	"regexp"

	"github.com/kmax-go/kmaxconfig/archprofile"
	"github.com/kmax-go/kmaxconfig/kconfigextract"
	"github.com/kmax-go/kmaxconfig/logx"
	"github.com/kmax-go/kmaxconfig/solve"
)

var configName = regexp.MustCompile(`^CONFIG_[A-Za-z0-9_]+$`)

// Options controls rendering details not determined by the model itself.
type Options struct {
	// Extract holds the Kconfig type/visibility/def_nonbool tables. Nil means
	// "no Kconfig extract was available": types and visibility are unknown.
	Extract *kconfigextract.Extract
	// UserSpecifiedNames is the set of option names the user explicitly
	// constrained (compose steps 4-5); it overrides the has_def_nonbool skip.
	UserSpecifiedNames map[string]struct{}
	// Modules selects "m" instead of "y" for tristate options assigned true.
	Modules bool
}

// Write renders model to w in kernel .config syntax. names gives the
// iteration order to honor (the model's own discovery order is preserved;
// callers should pass bf.CNF.VarNames() or equivalent, never a re-sorted list).
func Write(w io.Writer, names []string, model solve.Model, opts Options) error {
	for _, name := range names {
		if !configName.MatchString(name) {
			continue
		}
		assigned, ok := model.Get(name)
		if !ok {
			continue
		}
		if !opts.Extract.IsVisible(name) {
			continue
		}
		line, skip := renderLine(name, assigned, opts)
		if skip {
			continue
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("emit: writing %s: %w", name, err)
		}
	}
	return nil
}

func renderLine(name string, assigned bool, opts Options) (line string, skip bool) {
	ty, known := opts.Extract.Type(name)
	typesKnown := opts.Extract != nil && len(opts.Extract.Types) > 0
	if assigned {
		return renderTrue(name, ty, typesKnown, opts)
	}
	if !typesKnown || known || isArchDefining(name) {
		return fmt.Sprintf("# %s is not set", name), false
	}
	logx.Warnf("%s is unknown on this architecture, skipping", name)
	return "", true
}

func renderTrue(name, ty string, typesKnown bool, opts Options) (string, bool) {
	if !typesKnown {
		return name + "=y", false
	}
	if opts.Extract != nil && opts.Extract.HasNonboolDefault(name) {
		if _, userSet := opts.UserSpecifiedNames[name]; !userSet {
			return "", true
		}
	}
	switch ty {
	case "bool":
		return name + "=y", false
	case "tristate":
		if opts.Modules {
			return name + "=m", false
		}
		return name + "=y", false
	case "string":
		return name + "=", false
	case "number":
		return name + "=0", false
	case "hex":
		return name + "=0x0", false
	default:
		if !isArchDefining(name) {
			logx.Warnf("%s has unknown type on this architecture, skipping", name)
			return "", true
		}
		return name + "=y", false
	}
}

func isArchDefining(name string) bool {
	for _, arch := range archprofile.Architectures {
		profile, err := archprofile.For(arch)
		if err != nil {
			continue
		}
		for _, n := range append(append(profile.Positive, profile.Negative...), profile.Disabled...) {
			if n == name {
				return true
			}
		}
	}
	return false
}
