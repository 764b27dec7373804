package pathresolve

import (
	"errors"
	"reflect"
	"testing"
)

func TestAncestorChain(t *testing.T) {
	tests := map[string][]string{
		"kernel/kcmp.o":        {"kernel/"},
		"a/b/c/d.o":            {"a/", "a/b/", "a/b/c/"},
		"top.o":                nil,
		"arch/x86/kernel/x.o":  {"arch/", "arch/x86/", "arch/x86/kernel/"},
	}
	for key, want := range tests {
		got := AncestorChain(key)
		if !reflect.DeepEqual(got, want) {
			t.Errorf("AncestorChain(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestResolveDirect(t *testing.T) {
	keys := map[string]struct{}{"kernel/kcmp.o": {}, "kernel/": {}}
	key, forced, err := Resolve("kernel/kcmp.o", keys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "kernel/kcmp.o" || forced {
		t.Errorf("got key=%q forced=%v", key, forced)
	}
}

func TestResolveForcedExtension(t *testing.T) {
	keys := map[string]struct{}{"kernel/kcmp.o": {}}
	key, forced, err := Resolve("kernel/kcmp", keys)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "kernel/kcmp.o" || !forced {
		t.Errorf("got key=%q forced=%v", key, forced)
	}
}

func TestResolveAmbiguous(t *testing.T) {
	keys := map[string]struct{}{"a/kcmp.o": {}, "b/kcmp.o": {}}
	_, _, err := Resolve("kcmp.o", keys)
	var ambiguous *ErrAmbiguous
	if !errors.As(err, &ambiguous) {
		t.Fatalf("expected ErrAmbiguous, got %v", err)
	}
}

func TestResolveNotFound(t *testing.T) {
	keys := map[string]struct{}{"a/kcmp.o": {}}
	_, _, err := Resolve("nope.o", keys)
	var notFound *ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
