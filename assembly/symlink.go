package assembly

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/franzpoize/bl/internal/utils"
)

// publishSymlink atomically sets link to point at target, expressed
// relative to link's directory so the links tree stays valid if workdir
// is moved. Both paths must be absolute.
func publishSymlink(link, target string) error {
	linkDir, linkFile := utils.SplitAbs(link)

	if err := os.MkdirAll(linkDir, 0o755); err != nil {
		return fmt.Errorf("error making symlink dir: %w", err)
	}

	targetRelative, err := filepath.Rel(linkDir, target)
	if err != nil {
		return fmt.Errorf("error converting to relative path: %w", err)
	}

	// link may already exist and point at a previous tree, so the new
	// symlink is created under a throwaway name and swapped in with a
	// rename rather than created in place.
	tmp := filepath.Join(linkDir, linkFile+"-"+nextRandom())
	if err := os.Symlink(targetRelative, tmp); err != nil {
		return fmt.Errorf("error creating symlink: %w", err)
	}

	if err := os.Rename(tmp, link); err != nil {
		return fmt.Errorf("error replacing symlink: %w", err)
	}

	return nil
}

func nextRandom() string {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	return strconv.Itoa(int(r.Uint32()))
}

// isRealDir reports whether path exists and is not a symlink: a
// locally-authored module the symlink filter must not touch.
func isRealDir(path string) bool {
	fi, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeSymlink == 0
}
