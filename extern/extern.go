// Package extern wraps the three external collaborators this tool shells
// out to (the Kbuild extractor, kconfig_extract, kclause), standardizing
// PATH lookup, blocking invocation, stderr capture, and the *.pending
// temp-file-rename pattern used to keep regenerated cache files crash-consistent.
package extern

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
)

// ErrToolNotFound is returned when an external binary cannot be located on PATH.
type ErrToolNotFound struct {
	Tool string
	Err  error
}

func (e *ErrToolNotFound) Error() string {
	return fmt.Sprintf("extern: %s not found on PATH: %v", e.Tool, e.Err)
}

func (e *ErrToolNotFound) Unwrap() error { return e.Err }

// ErrSubprocess is returned when an external tool exits non-zero.
type ErrSubprocess struct {
	Tool   string
	Args   []string
	Stderr string
	Err    error
}

func (e *ErrSubprocess) Error() string {
	tail := e.Stderr
	if len(tail) > 2000 {
		tail = tail[len(tail)-2000:]
	}
	return fmt.Sprintf("extern: %s %v failed: %v\n%s", e.Tool, e.Args, e.Err, tail)
}

func (e *ErrSubprocess) Unwrap() error { return e.Err }

func lookup(tool string) (string, error) {
	path, err := exec.LookPath(tool)
	if err != nil {
		return "", &ErrToolNotFound{Tool: tool, Err: err}
	}
	return path, nil
}

// RunKbuildExtractor invokes the kmax-style Kbuild extractor for directory
// dir relative to srctree, returning its stdout (a serialized key->formula
// mapping in the formulastore schema).
func RunKbuildExtractor(srctree, dir string) ([]byte, error) {
	path, err := lookup("kmax")
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(path, "--srctree="+srctree, "--src="+dir)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &ErrSubprocess{Tool: "kmax", Args: cmd.Args, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}

// RunKconfigExtract invokes kconfig_extract for arch, writing its output to
// outPath via a *.pending temp file renamed into place only on success, so a
// killed run leaves behind a harmless, idempotently-replaced leftover.
func RunKconfigExtract(arch, outPath string) error {
	return runToFile("kconfig_extract", []string{"--arch=" + arch}, outPath)
}

// RunKclause invokes kclause for arch, writing its output to outPath with the
// same crash-consistent temp-file-rename pattern as RunKconfigExtract.
func RunKclause(arch, outPath string) error {
	return runToFile("kclause", []string{"--arch=" + arch}, outPath)
}

func runToFile(tool string, args []string, outPath string) error {
	path, err := lookup(tool)
	if err != nil {
		return err
	}
	pending := outPath + ".pending"
	f, err := os.Create(pending)
	if err != nil {
		return fmt.Errorf("extern: could not create %s: %w", pending, err)
	}
	cmd := exec.Command(path, args...)
	cmd.Stdout = f
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	runErr := cmd.Run()
	closeErr := f.Close()
	if runErr != nil {
		os.Remove(pending)
		return &ErrSubprocess{Tool: tool, Args: cmd.Args, Stderr: stderr.String(), Err: runErr}
	}
	if closeErr != nil {
		os.Remove(pending)
		return fmt.Errorf("extern: could not close %s: %w", pending, closeErr)
	}
	if err := os.Rename(pending, outPath); err != nil {
		return fmt.Errorf("extern: could not rename %s to %s: %w", pending, outPath, err)
	}
	return nil
}
