// Command kmaxconfig resolves a set of kernel compilation units to a
// satisfying .config, by composing Kbuild presence conditions and Kconfig
// constraints and handing the result to the SAT backend.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/kmax-go/kmaxconfig/extern"
	"github.com/kmax-go/kmaxconfig/orchestrate"
	"github.com/kmax-go/kmaxconfig/pathresolve"
)

const version = "kmaxconfig 0.1.0"

// archList collects repeatable -arch flags.
type archList []string

func (a *archList) String() string { return strings.Join(*a, ",") }
func (a *archList) Set(v string) error {
	*a = append(*a, v)
	return nil
}

func main() {
	var (
		formulasRoot       string
		kmaxFile           string
		kconfigBundleFile  string
		kconfigExtractFile string
		adHocFile          string
		srcTree            string
		archs              archList
		all                bool
		reportAll          bool
		output             string
		referenceConfig    string
		defines            archList
		undefines          archList
		modulesMode        bool
		showUnsatCore      bool
		allowBroken        bool
		allowNonVisibles   bool
		viewKbuild         bool
		sampleN            int
		samplePrefix       string
		randomSeed         int64
		showVersion        bool
	)

	flag.StringVar(&formulasRoot, "formulas-root", ".", "directory holding the Kbuild formula cache and Kconfig bundles")
	flag.StringVar(&kmaxFile, "kmax-file", "", "override the Kbuild formula cache path (default <formulas-root>/kmax)")
	flag.StringVar(&kconfigBundleFile, "kconfig-bundle", "", "use this Kconfig bundle file instead of resolving one per architecture")
	flag.StringVar(&kconfigExtractFile, "kconfig-extract", "", "override the Kconfig extract path")
	flag.StringVar(&adHocFile, "ad-hoc", "", "file of ad-hoc NAME/!NAME constraints")
	flag.StringVar(&srcTree, "srctree", ".", "kernel source tree root, passed to the Kbuild extractor")
	flag.Var(&archs, "arch", "target architecture (repeatable)")
	flag.BoolVar(&all, "all", false, "try every known architecture")
	flag.BoolVar(&reportAll, "report-all", false, "keep trying architectures after the first satisfiable one and report them all")
	flag.StringVar(&output, "o", "", "output .config path (default .config)")
	flag.StringVar(&referenceConfig, "reference-config", "", "approximate mode: keep as much of this .config as satisfiable")
	flag.Var(&defines, "define", "force NAME=y (repeatable)")
	flag.Var(&undefines, "undefine", "force NAME=n (repeatable)")
	flag.BoolVar(&modulesMode, "modules", false, "emit tristate options as =m instead of =y")
	flag.BoolVar(&showUnsatCore, "show-unsat-core", false, "print the unsat core's variable names on failure")
	flag.BoolVar(&allowBroken, "allow-config-broken", false, "do not guard against CONFIG_BROKEN")
	flag.BoolVar(&allowNonVisibles, "allow-non-visibles", false, "emit options even when visibility is unknown or false")
	flag.BoolVar(&viewKbuild, "view-kbuild", false, "print each compilation unit's Kbuild chain condition and exit")
	flag.IntVar(&sampleN, "sample", 0, "sample mode: generate N distinct models instead of one")
	flag.StringVar(&samplePrefix, "sample-prefix", "sample", "output path prefix for sample mode")
	flag.Int64Var(&randomSeed, "seed", 0, "random seed for sample mode's clause shuffling")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [cu...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg := orchestrate.Config{
		FormulasRoot:       formulasRoot,
		KmaxFile:           kmaxFile,
		KconfigBundleFile:  kconfigBundleFile,
		KconfigExtractFile: kconfigExtractFile,
		AdHocFile:          adHocFile,
		SrcTree:            srcTree,
		CUs:                flag.Args(),
		Arch:               archs,
		All:                all,
		ReportAll:          reportAll,
		SampleN:            sampleN,
		SamplePrefix:       samplePrefix,
		RandomSeed:         randomSeed,
		ModulesMode:        modulesMode,
		ShowUnsatCore:      showUnsatCore,
		AllowBroken:        allowBroken,
		AllowNonVisibles:   allowNonVisibles,
		ViewKbuild:         viewKbuild,
		Output:             output,
		ReferenceConfig:    referenceConfig,
		Defines:            defines,
		Undefines:          undefines,
	}

	report, err := orchestrate.Run(cfg)
	if err != nil {
		if showUnsatCore && report != nil && len(report.UnsatCore) > 0 {
			fmt.Fprintf(os.Stderr, "c unsat core: %s\n", strings.Join(report.UnsatCore, " "))
		}
		os.Exit(exitCode(err))
	}

	if len(report.SatisfiableArchs) > 0 {
		fmt.Println(strings.Join(report.SatisfiableArchs, " "))
	}
	for _, f := range report.OutputFiles {
		fmt.Printf("c wrote %s\n", f)
	}
	os.Exit(0)
}

// exitCode maps a Run error to one of the stable exit codes.
func exitCode(err error) int {
	var (
		usageErr            *orchestrate.ErrUsage
		noFormulaErr        *orchestrate.ErrNoFormula
		ambiguousErr        *pathresolve.ErrAmbiguous
		viewKbuildNoCUErr   *orchestrate.ErrViewKbuildNoCU
		bundleNotFoundErr   *orchestrate.ErrKconfigBundleNotFound
		noBundlesErr        *orchestrate.ErrNoKconfigBundles
		multiArchNoCUErr    *orchestrate.ErrMultipleArchsNoCU
		archNotCandidateErr *orchestrate.ErrArchNotCandidate
		brokenErr           *orchestrate.ErrConfigBrokenDependency
		noSatErr            *orchestrate.ErrNoSatisfyingConfiguration
		toolNotFoundErr     *extern.ErrToolNotFound
		subprocessErr       *extern.ErrSubprocess
	)

	switch {
	case errors.As(err, &noFormulaErr):
		fmt.Fprintln(os.Stderr, err)
		return 3
	case errors.As(err, &ambiguousErr):
		fmt.Fprintln(os.Stderr, err)
		return 4
	case errors.As(err, &viewKbuildNoCUErr):
		fmt.Fprintln(os.Stderr, err)
		return 5
	case errors.As(err, &bundleNotFoundErr):
		fmt.Fprintln(os.Stderr, err)
		return 6
	case errors.As(err, &noBundlesErr):
		fmt.Fprintln(os.Stderr, err)
		return 7
	case errors.As(err, &multiArchNoCUErr):
		fmt.Fprintln(os.Stderr, err)
		return 8
	case errors.As(err, &archNotCandidateErr):
		fmt.Fprintln(os.Stderr, err)
		return 9
	case errors.As(err, &brokenErr):
		fmt.Fprintln(os.Stderr, err)
		return 10
	case errors.As(err, &noSatErr):
		fmt.Fprintln(os.Stderr, err)
		return 11
	case errors.As(err, &usageErr):
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		return 12
	case errors.As(err, &toolNotFoundErr):
		fmt.Fprintln(os.Stderr, err)
		return 13
	case errors.As(err, &subprocessErr):
		fmt.Fprintln(os.Stderr, err)
		return 13
	default:
		fmt.Fprintf(os.Stderr, "kmaxconfig: %v\n", err)
		return 12
	}
}
