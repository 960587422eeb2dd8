package assembly

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPublishSymlink_CreatesRelativeLink(t *testing.T) {
	root := t.TempDir()
	linksDir := filepath.Join(root, "links")
	target := filepath.Join(root, "external-src", "a", "mod1")

	if err := os.MkdirAll(target, 0o755); err != nil {
		t.Fatalf("unable to create target dir: %v", err)
	}

	link := filepath.Join(linksDir, "mod1")
	if err := publishSymlink(link, target); err != nil {
		t.Fatalf("publishSymlink() err = %v", err)
	}

	dest, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("unable to read link: %v", err)
	}
	if filepath.IsAbs(dest) {
		t.Errorf("expected a relative symlink target, got %q", dest)
	}

	resolved := filepath.Join(linksDir, dest)
	if resolved != target {
		t.Errorf("resolved link = %q, want %q", resolved, target)
	}
}

func TestPublishSymlink_ReplacesExistingLink(t *testing.T) {
	root := t.TempDir()
	linksDir := filepath.Join(root, "links")
	oldTarget := filepath.Join(root, "old")
	newTarget := filepath.Join(root, "new")

	for _, d := range []string{oldTarget, newTarget} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("unable to create dir: %v", err)
		}
	}

	link := filepath.Join(linksDir, "mod1")
	if err := publishSymlink(link, oldTarget); err != nil {
		t.Fatalf("publishSymlink() err = %v", err)
	}
	if err := publishSymlink(link, newTarget); err != nil {
		t.Fatalf("publishSymlink() replace err = %v", err)
	}

	dest, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("unable to read link: %v", err)
	}
	if resolved := filepath.Join(linksDir, dest); resolved != newTarget {
		t.Errorf("expected link to now point at %q, got %q", newTarget, resolved)
	}
}

func TestIsRealDir(t *testing.T) {
	root := t.TempDir()

	realDir := filepath.Join(root, "real")
	if err := os.MkdirAll(realDir, 0o755); err != nil {
		t.Fatalf("unable to create dir: %v", err)
	}
	if !isRealDir(realDir) {
		t.Error("expected a plain directory to be reported as real")
	}

	target := filepath.Join(root, "target")
	if err := os.MkdirAll(target, 0o755); err != nil {
		t.Fatalf("unable to create dir: %v", err)
	}
	symlink := filepath.Join(root, "link")
	if err := os.Symlink(target, symlink); err != nil {
		t.Fatalf("unable to create symlink: %v", err)
	}
	if isRealDir(symlink) {
		t.Error("expected a symlink to not be reported as a real directory")
	}

	if isRealDir(filepath.Join(root, "missing")) {
		t.Error("expected a missing path to not be reported as a real directory")
	}
}
