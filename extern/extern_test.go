package extern

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRunKbuildExtractorMissingTool(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	_, err := RunKbuildExtractor(".", "kernel")
	var notFound *ErrToolNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
}

func TestRunKconfigExtractMissingTool(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	out := filepath.Join(t.TempDir(), "kconfig_extract")
	err := RunKconfigExtract("x86_64", out)
	var notFound *ErrToolNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrToolNotFound, got %v", err)
	}
	if _, statErr := os.Stat(out + ".pending"); !os.IsNotExist(statErr) {
		t.Errorf("no pending file should be left when the tool cannot even be found")
	}
}

func TestErrSubprocessTruncatesLongStderr(t *testing.T) {
	long := make([]byte, 5000)
	for i := range long {
		long[i] = 'x'
	}
	err := &ErrSubprocess{Tool: "kclause", Stderr: string(long), Err: errors.New("exit status 1")}
	if len(err.Error()) > 5200 {
		t.Errorf("ErrSubprocess.Error() should bound its stderr tail, got %d bytes", len(err.Error()))
	}
}
