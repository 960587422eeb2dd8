package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/franzpoize/bl/internal/gitproc"
	"github.com/franzpoize/bl/internal/lock"
	"github.com/franzpoize/bl/specfile"
)

// Freeze resolves, for every slot and every declared reference, the
// commit id currently at the tip of that reference's local ref on the
// already-populated on-disk clone, and assembles the nested
// slot/remote/refspec-or-pinned-name -> commit map the caller should
// write via specfile.WriteFrozen. It does not fetch: a prior assembly
// run must already have populated each slot's tree.
func Freeze(ctx context.Context, project *specfile.Project, concurrency int, gitExec string, log *slog.Logger) (specfile.FrozenMap, error) {
	if log == nil {
		log = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 28
	}

	var mu lock.RWMutex
	fm := specfile.FrozenMap{}

	group, _ := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)

	for _, name := range project.Order {
		slot := project.Slots[name]
		group.Go(func() error {
			resolved, err := freezeSlot(ctx, project.WorkDir, slot, gitExec, log)
			if err != nil {
				log.Error("unable to freeze slot", "slot", name, "err", err)
				return nil
			}

			mu.Lock()
			fm[name] = resolved
			mu.Unlock()
			return nil
		})
	}

	_ = group.Wait()

	return fm, nil
}

func freezeSlot(ctx context.Context, workDir string, slot *specfile.Slot, gitExec string, log *slog.Logger) (map[string]map[string]string, error) {
	dir := specfile.ModulePath(workDir, slot)
	runner := &gitRunner{gitExec: gitExec, dir: dir, log: log.With("slot", slot.Name)}

	resolved := make(map[string]map[string]string)

	for _, ref := range slot.Refs {
		sha, err := resolveTip(ctx, runner, ref)
		if err != nil {
			return nil, fmt.Errorf("slot %q: unable to resolve %q err:%w", slot.Name, ref.LocalRef(), err)
		}

		key := ref.Refspec
		if ref.PinnedName != "" {
			key = ref.PinnedName
		}

		if resolved[ref.Remote] == nil {
			resolved[ref.Remote] = make(map[string]string)
		}
		resolved[ref.Remote][key] = sha
	}

	return resolved, nil
}

// resolveTip asks git for the single newest commit reachable from ref's
// local ref.
func resolveTip(ctx context.Context, runner *gitRunner, ref specfile.RefSpec) (string, error) {
	out, err := runner.git(ctx, "rev-list", "--max-count", "1", ref.LocalRef())
	if err != nil {
		var gitErr *gitproc.Error
		if errors.As(err, &gitErr) {
			return "", fmt.Errorf("err:%w stderr:%q", err, gitErr.Stderr)
		}
		return "", err
	}
	return out, nil
}
