// Package orchestrate drives the top-level architecture try-loop: resolving
// CUs, ensuring formula availability, composing constraints, invoking the
// solver, and emitting a .config on success.
package orchestrate

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/kmax-go/kmaxconfig/archprofile"
	"github.com/kmax-go/kmaxconfig/compose"
	"github.com/kmax-go/kmaxconfig/emit"
	"github.com/kmax-go/kmaxconfig/extern"
	"github.com/kmax-go/kmaxconfig/formulastore"
	"github.com/kmax-go/kmaxconfig/kconfigextract"
	"github.com/kmax-go/kmaxconfig/logx"
	"github.com/kmax-go/kmaxconfig/pathresolve"
	"github.com/kmax-go/kmaxconfig/solve"
)

// Config is the fully-resolved set of CLI-derived options, built once by the
// CLI layer and threaded down by value — never a global.
type Config struct {
	FormulasRoot       string
	KmaxFile           string // explicit Kbuild cache override; "" means <FormulasRoot>/kmax
	KconfigBundleFile  string // explicit Kconfig bundle override; forces a single null-arch run
	KconfigExtractFile string // explicit Kconfig extract override
	AdHocFile          string
	SrcTree            string

	CUs  []string
	Arch []string
	All  bool

	ReportAll    bool
	SampleN      int
	SamplePrefix string
	RandomSeed   int64

	ModulesMode      bool
	ShowUnsatCore    bool
	AllowBroken      bool
	AllowNonVisibles bool
	ViewKbuild       bool

	Output          string
	ReferenceConfig string
	Defines         []string
	Undefines       []string
}

// Report is the orchestrator's return value.
type Report struct {
	SatisfiableArchs []string
	OutputFiles      []string
	UnsatCore        []string
	ModelsWritten    int
}

// Usage/precondition errors (exit 12).
type ErrUsage struct{ Msg string }

func (e *ErrUsage) Error() string { return "usage: " + e.Msg }

// ErrNoFormula: no formula for a requested CU (exit 3).
type ErrNoFormula struct{ CU string }

func (e *ErrNoFormula) Error() string { return fmt.Sprintf("no formula for compilation unit %q", e.CU) }

// ErrViewKbuildNoCU: --view-kbuild without a CU (exit 5).
type ErrViewKbuildNoCU struct{}

func (ErrViewKbuildNoCU) Error() string { return "--view-kbuild requires at least one compilation unit" }

// ErrKconfigBundleNotFound: exit 6.
type ErrKconfigBundleNotFound struct{ Path string }

func (e *ErrKconfigBundleNotFound) Error() string {
	return fmt.Sprintf("kconfig bundle not found: %s", e.Path)
}

// ErrNoKconfigBundles: no arch produced a loadable bundle at all (exit 7).
type ErrNoKconfigBundles struct{}

func (ErrNoKconfigBundles) Error() string { return "no kconfig bundles available for any candidate architecture" }

// ErrMultipleArchsNoCU: multiple archs requested without a target CU (exit 8).
type ErrMultipleArchsNoCU struct{}

func (ErrMultipleArchsNoCU) Error() string {
	return "multiple architectures requested but no compilation unit was given to disambiguate"
}

// ErrArchNotCandidate: CU's arch/ prefix excludes every requested arch (exit 9).
type ErrArchNotCandidate struct{ CU string }

func (e *ErrArchNotCandidate) Error() string {
	return fmt.Sprintf("compilation unit %q is not compiled under any requested architecture", e.CU)
}

// ErrNoSatisfyingConfiguration: every arch tried was UNSAT (exit 11).
type ErrNoSatisfyingConfiguration struct{}

func (ErrNoSatisfyingConfiguration) Error() string { return "no satisfying configuration found for any candidate architecture" }

var defaultArchPriority = []string{"x86_64", "i386", "arm", "arm64", "sparc64", "sparc", "powerpc", "mips"}

// buildArchList implements §4.9 steps 1-4.
func buildArchList(cfg Config) ([]string, error) {
	if cfg.KconfigBundleFile != "" {
		return []string{""}, nil
	}
	var archs []string
	if len(cfg.Arch) == 0 {
		archs = append(archs, defaultArchPriority...)
		archs = appendMissing(archs, archprofile.Architectures)
	} else {
		archs = append(archs, cfg.Arch...)
		if cfg.All {
			archs = appendMissing(archs, archprofile.Architectures)
		}
	}
	if len(cfg.Arch) > 1 && len(cfg.CUs) == 0 {
		return nil, &ErrMultipleArchsNoCU{}
	}
	for _, cu := range cfg.CUs {
		if !strings.HasPrefix(cu, "arch/") {
			continue
		}
		narrowed := archprofile.ForCU(cu, archs)
		if len(narrowed) == 0 {
			return nil, &ErrArchNotCandidate{CU: cu}
		}
		archs = narrowed
	}
	return archs, nil
}

func appendMissing(base []string, all []string) []string {
	present := make(map[string]struct{}, len(base))
	for _, a := range base {
		present[a] = struct{}{}
	}
	out := append([]string{}, base...)
	for _, a := range all {
		if _, ok := present[a]; !ok {
			out = append(out, a)
		}
	}
	return out
}

func kmaxPath(cfg Config) string {
	if cfg.KmaxFile != "" {
		return cfg.KmaxFile
	}
	return cfg.FormulasRoot + "/kmax"
}

// resolveCUs resolves every requested CU to its canonical key and ancestor
// chain, regenerating missing Kbuild formulas via the external extractor.
func resolveCUs(store *formulastore.Store, cfg Config) ([]compose.CU, error) {
	keys := store.Keys()
	var cus []compose.CU
	for _, p := range cfg.CUs {
		key, forcedExt, err := pathresolve.Resolve(p, keys)
		if err != nil {
			if _, ok := err.(*pathresolve.ErrNotFound); ok {
				return nil, &ErrNoFormula{CU: p}
			}
			return nil, err
		}
		if forcedExt {
			logx.Warnf("forced .o extension on %q", p)
		}
		chain := pathresolve.AncestorChain(key)
		if err := store.EnsureKbuildFor(cfg.SrcTree, key, chain); err != nil {
			return nil, err
		}
		cus = append(cus, compose.CU{Key: key, Chain: chain})
	}
	return cus, nil
}

func ensureKconfigBundle(cfg Config, arch string) error {
	bundlePath := cfg.KconfigBundleFile
	if bundlePath == "" {
		bundlePath = archprofile.KconfigPath(cfg.FormulasRoot, arch)
	}
	if _, err := os.Stat(bundlePath); err == nil {
		return nil
	}
	if cfg.KconfigBundleFile != "" {
		return &ErrKconfigBundleNotFound{Path: bundlePath}
	}
	extractPath := cfg.KconfigExtractFile
	if extractPath == "" {
		extractPath = archprofile.KconfigExtractPath(cfg.FormulasRoot, arch)
	}
	if _, err := os.Stat(extractPath); err != nil {
		if err := extern.RunKconfigExtract(arch, extractPath); err != nil {
			return err
		}
	}
	return extern.RunKclause(arch, bundlePath)
}

func loadExtract(cfg Config, arch string) *kconfigextract.Extract {
	path := cfg.KconfigExtractFile
	if path == "" {
		path = archprofile.KconfigExtractPath(cfg.FormulasRoot, arch)
	}
	f, err := os.Open(path)
	if err != nil {
		logx.Warnf("no kconfig extract available at %s: %v", path, err)
		return nil
	}
	defer f.Close()
	ex, err := kconfigextract.Parse(f)
	if err != nil {
		logx.Warnf("could not parse kconfig extract at %s: %v", path, err)
		return nil
	}
	if cfg.AllowNonVisibles {
		ex.AllowNonVisibles()
	}
	return ex
}

func loadAdHoc(path string) ([]compose.AdHoc, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("orchestrate: reading ad-hoc constraints file %s: %w", path, err)
	}
	defer f.Close()
	var out []compose.AdHoc
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "!") {
			out = append(out, compose.AdHoc{Name: line[1:], Positive: false})
		} else {
			out = append(out, compose.AdHoc{Name: line, Positive: true})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("orchestrate: reading ad-hoc constraints file %s: %w", path, err)
	}
	return out, nil
}

var configLine = regexp.MustCompile(`^(CONFIG_[A-Za-z0-9_]+)=(y|m)$|^# (CONFIG_[A-Za-z0-9_]+) is not set$`)

func loadReferenceConfig(path string) ([]solve.ReferenceLiteral, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("orchestrate: reading reference config %s: %w", path, err)
	}
	defer f.Close()
	var lits []solve.ReferenceLiteral
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m := configLine.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		if m[1] != "" {
			lits = append(lits, solve.ReferenceLiteral{Name: m[1], Positive: true})
		} else {
			lits = append(lits, solve.ReferenceLiteral{Name: m[3], Positive: false})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("orchestrate: reading reference config %s: %w", path, err)
	}
	return lits, nil
}

// Run executes the orchestration loop described in §4.9.
func Run(cfg Config) (*Report, error) {
	if cfg.ReportAll && cfg.SampleN > 0 {
		return nil, &ErrUsage{Msg: "--report-all and sample mode are mutually exclusive"}
	}
	if cfg.SampleN > 0 && cfg.ReferenceConfig != "" {
		return nil, &ErrUsage{Msg: "sample mode and approximate mode are mutually exclusive"}
	}
	if cfg.SampleN > 0 && cfg.SampleN < 2 {
		return nil, &ErrUsage{Msg: "sample mode requires N >= 2"}
	}
	if cfg.ViewKbuild && len(cfg.CUs) == 0 {
		return nil, &ErrViewKbuildNoCU{}
	}
	if len(cfg.Arch) > 0 && cfg.KconfigBundleFile != "" {
		return nil, &ErrUsage{Msg: "an explicit kconfig bundle and --arch are mutually exclusive"}
	}

	archs, err := buildArchList(cfg)
	if err != nil {
		return nil, err
	}

	store, err := formulastore.LoadKbuildFormulas(kmaxPath(cfg))
	if err != nil {
		return nil, err
	}
	cus, err := resolveCUs(store, cfg)
	if err != nil {
		return nil, err
	}
	defer store.Persist()

	if cfg.ViewKbuild {
		for _, key := range compose.UserConstraintList(cus) {
			f, err := store.FormulaFor(key)
			if err != nil {
				return nil, err
			}
			logx.Infof("%s %s", key, f)
		}
		return &Report{}, nil
	}

	adHoc, err := loadAdHoc(cfg.AdHocFile)
	if err != nil {
		return nil, err
	}
	var reference []solve.ReferenceLiteral
	if cfg.ReferenceConfig != "" {
		reference, err = loadReferenceConfig(cfg.ReferenceConfig)
		if err != nil {
			return nil, err
		}
	}

	report := &Report{}
	var lastCore []string
	bundlesSeen := 0

	for _, arch := range archs {
		if err := ensureKconfigBundle(cfg, arch); err != nil {
			if bundleErr, ok := err.(*ErrKconfigBundleNotFound); ok {
				return nil, bundleErr
			}
			logx.Warnf("skipping architecture %s: %v", arch, err)
			continue
		}
		bundlesSeen++

		extract := loadExtract(cfg, arch)
		req := compose.Request{
			Store:             store,
			CUs:               cus,
			Arch:              arch,
			FormulasRoot:      cfg.FormulasRoot,
			AdHoc:             adHoc,
			Defines:           cfg.Defines,
			Undefines:         cfg.Undefines,
			AllowConfigBroken: cfg.AllowBroken,
			KconfigBundleFile: cfg.KconfigBundleFile,
			Extract:           extract,
		}
		composed, err := compose.Compose(req)
		if err != nil {
			return nil, err
		}

		var model solve.Model
		switch {
		case cfg.ReferenceConfig != "":
			model, err = solve.Approximate(composed.Constraints, !cfg.AllowBroken, reference, composed.UserSpecifiedNames)
		case cfg.SampleN > 0:
			var models []solve.Model
			models, err = solve.SampleN(composed.Constraints, !cfg.AllowBroken, cfg.SampleN, cfg.RandomSeed)
			if err == nil {
				if writeErr := writeSamples(cfg, arch, models); writeErr != nil {
					return nil, writeErr
				}
				report.ModelsWritten = len(models)
				report.SatisfiableArchs = append(report.SatisfiableArchs, arch)
				return report, nil
			}
		default:
			model, err = solve.Single(composed.Constraints, !cfg.AllowBroken)
		}

		if err != nil {
			if brokenErr, ok := err.(solve.ErrConfigBroken); ok {
				_ = brokenErr
				return nil, &ErrConfigBrokenDependency{}
			}
			if unsatErr, ok := err.(*solve.ErrUnsat); ok {
				lastCore = unsatErr.Core
				continue
			}
			return nil, err
		}

		outputPath := cfg.Output
		if outputPath == "" {
			outputPath = ".config"
		}
		if err := writeConfig(outputPath, model.Names, model, extract, composed.UserSpecifiedNames, cfg.ModulesMode); err != nil {
			return nil, err
		}
		report.OutputFiles = append(report.OutputFiles, outputPath)
		report.SatisfiableArchs = append(report.SatisfiableArchs, arch)

		if !cfg.ReportAll {
			return report, nil
		}
	}

	if bundlesSeen == 0 {
		return nil, &ErrNoKconfigBundles{}
	}
	if len(report.SatisfiableArchs) == 0 {
		report.UnsatCore = lastCore
		return report, &ErrNoSatisfyingConfiguration{}
	}
	return report, nil
}

// ErrConfigBrokenDependency: exit 10.
type ErrConfigBrokenDependency struct{}

func (ErrConfigBrokenDependency) Error() string { return "requested compilation unit depends on CONFIG_BROKEN" }

func writeConfig(path string, names []string, model solve.Model, extract *kconfigextract.Extract, userNames map[string]struct{}, modules bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("orchestrate: writing %s: %w", path, err)
	}
	defer f.Close()
	return emit.Write(f, names, model, emit.Options{
		Extract:            extract,
		UserSpecifiedNames: userNames,
		Modules:            modules,
	})
}

func writeSamples(cfg Config, arch string, models []solve.Model) error {
	prefix := cfg.SamplePrefix
	if prefix == "" {
		prefix = "sample"
	}
	extract := loadExtract(cfg, arch)
	for i, m := range models {
		path := fmt.Sprintf("%s%d", prefix, i+1)
		if err := writeConfig(path, m.Names, m, extract, nil, cfg.ModulesMode); err != nil {
			return err
		}
	}
	return nil
}
