package specfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFrozenMap_Lookup(t *testing.T) {
	fm := FrozenMap{
		"a": {
			"o": {
				"main":  "0123456789abcdef0123456789abcdef01234567",
				"empty": "",
			},
		},
	}

	if sha, ok := fm.Lookup("a", "o", "main"); !ok || sha != "0123456789abcdef0123456789abcdef01234567" {
		t.Errorf("Lookup(a,o,main) = (%q, %v), want a hit", sha, ok)
	}
	if _, ok := fm.Lookup("a", "o", "empty"); ok {
		t.Error("Lookup should treat an empty pinned value as absent")
	}
	if _, ok := fm.Lookup("missing", "o", "main"); ok {
		t.Error("Lookup should miss for an unknown slot")
	}

	var nilMap FrozenMap
	if _, ok := nilMap.Lookup("a", "o", "main"); ok {
		t.Error("Lookup on a nil FrozenMap should never panic or hit")
	}
}

func TestLoadFrozen_MissingFileIsEmpty(t *testing.T) {
	fm, err := LoadFrozen(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("LoadFrozen() err = %v, want nil for a missing file", err)
	}
	if len(fm) != 0 {
		t.Errorf("LoadFrozen() = %+v, want empty map", fm)
	}
}

func TestLoadFrozen_MalformedFileLogsAndIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frozen.yaml")
	if err := os.WriteFile(path, []byte("not: [valid: yaml"), 0o644); err != nil {
		t.Fatalf("unable to write frozen file: %v", err)
	}

	fm, err := LoadFrozen(path)
	if err == nil {
		t.Fatal("expected an error for a malformed frozen document")
	}
	if len(fm) != 0 {
		t.Errorf("LoadFrozen() = %+v, want empty map even on error", fm)
	}
}

func TestWriteFrozen_RoundTripAndStableOrdering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frozen.yaml")
	fm := FrozenMap{
		"b": {"o": {"main": "1111111111111111111111111111111111111111"}},
		"a": {
			"z": {"main": "2222222222222222222222222222222222222222"},
			"o": {"main": "3333333333333333333333333333333333333333"},
		},
	}

	if err := WriteFrozen(path, fm); err != nil {
		t.Fatalf("WriteFrozen() err = %v", err)
	}

	got, err := LoadFrozen(path)
	if err != nil {
		t.Fatalf("LoadFrozen() err = %v", err)
	}

	for slot, remotes := range fm {
		for remote, refs := range remotes {
			for ref, sha := range refs {
				if got[slot][remote][ref] != sha {
					t.Errorf("round-trip mismatch for %s/%s/%s: got %q want %q", slot, remote, ref, got[slot][remote][ref], sha)
				}
			}
		}
	}
}

func TestWriteFrozen_Idempotent(t *testing.T) {
	dir := t.TempDir()
	fm := FrozenMap{
		"a": {"o": {"main": "0123456789abcdef0123456789abcdef01234567"}},
	}

	path1 := filepath.Join(dir, "one.yaml")
	path2 := filepath.Join(dir, "two.yaml")

	if err := WriteFrozen(path1, fm); err != nil {
		t.Fatalf("WriteFrozen() err = %v", err)
	}
	if err := WriteFrozen(path2, fm); err != nil {
		t.Fatalf("WriteFrozen() err = %v", err)
	}

	b1, _ := os.ReadFile(path1)
	b2, _ := os.ReadFile(path2)
	if string(b1) != string(b2) {
		t.Errorf("expected two freezes of the same map to be byte-identical:\n%s\n---\n%s", b1, b2)
	}
}
