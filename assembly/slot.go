package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/franzpoize/bl/internal/gitproc"
	"github.com/franzpoize/bl/progress"
	"github.com/franzpoize/bl/specfile"
)

// mergedBranch is the stable local branch name checked out after
// SPARSE_CFG and targeted by every merge, so rerunning a slot always
// produces a deterministic head name independent of the base ref.
const mergedBranch = "merged"

// Options configures a slotWorker run. GitExec defaults to "git" when
// empty. Concurrency is threaded into git's own parallel-fetch flag for
// FETCH_MULTI, matching the scheduler's semaphore capacity.
type Options struct {
	GitExec     string
	Concurrency int
	LinksDir    string
	Sink        progress.Sink
}

// slotWorker drives a single slot from nonexistent/dirty/existing through
// the states described by the engine's state machine. One instance is
// created per slot; instances never share state, so concurrency across
// slots requires no locking here.
type slotWorker struct {
	gitRunner

	slot     *specfile.Slot
	workDir  string
	linksDir string
	path     string

	concurrency int
	sink        progress.Sink
}

func newSlotWorker(slot *specfile.Slot, workDir string, opts Options, log *slog.Logger) *slotWorker {
	gitExec := opts.GitExec
	if gitExec == "" {
		gitExec = "git"
	}

	linksDir := opts.LinksDir
	if linksDir == "" {
		linksDir = filepath.Join(workDir, "links")
	}

	sink := opts.Sink
	if sink == nil {
		sink = progress.Noop{}
	}

	path := specfile.ModulePath(workDir, slot)

	return &slotWorker{
		gitRunner:   gitRunner{gitExec: gitExec, dir: path, log: log.With("slot", slot.Name)},
		slot:        slot,
		workDir:     workDir,
		linksDir:    linksDir,
		path:        path,
		concurrency: opts.Concurrency,
		sink:        sink,
	}
}

// status reports a human-readable status line for this slot to the
// configured sink, a no-op when no sink is set.
func (w *slotWorker) status(s string) {
	w.sink.SlotStatus(w.slot.Name, s)
}

// Run drives the slot through INSPECT..PUBLISH_LNK and returns the
// terminal error, nil on success. It is the single entry point a
// scheduler or a standalone caller should use.
func (w *slotWorker) Run(ctx context.Context) error {
	if len(w.slot.Refs) == 0 {
		return &ErrNoReferencesSlot{Slot: w.slot.Name}
	}

	modules, err := w.symlinkFilter()
	if err != nil {
		return err
	}

	existing, err := w.inspect()
	if err != nil {
		return err
	}

	if existing {
		w.status("resetting")
		if err := w.reset(ctx); err != nil {
			return err
		}
	} else {
		w.status("cloning")
		if err := w.clone(ctx); err != nil {
			return err
		}
	}

	w.status("configuring sparse checkout")
	if err := w.configureSparse(ctx, modules); err != nil {
		return err
	}

	w.status("adding remotes")
	if err := w.addRemotes(ctx); err != nil {
		return err
	}

	w.status("fetching")
	if err := w.fetchMulti(ctx); err != nil {
		return err
	}

	w.status("merging")
	if err := w.mergeLoop(ctx); err != nil {
		return err
	}

	w.status("applying patches")
	if err := w.patchLoop(ctx); err != nil {
		return err
	}

	w.status("publishing links")
	if err := w.publishLinks(modules); err != nil {
		return err
	}

	return nil
}

// inspect decides CLONE vs RESET by existence/directory-hood of the
// resolved module path.
func (w *slotWorker) inspect() (existing bool, err error) {
	fi, err := os.Stat(w.path)
	switch {
	case os.IsNotExist(err):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("slot %q: unable to inspect module path %q err:%w", w.slot.Name, w.path, err)
	case !fi.IsDir():
		return false, fmt.Errorf("slot %q: module path %q exists and is not a directory", w.slot.Name, w.path)
	default:
		return true, nil
	}
}

// clone executes the clone plan and creates a local branch for the base
// reference, so every later operation addresses it through the stable
// local-ref scheme even when the base was a named branch.
func (w *slotWorker) clone(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("slot %q: unable to create parent dir err:%w", w.slot.Name, err)
	}

	args := append(PlanClone(w.slot.Name, w.slot), w.path)

	if _, err := w.git(ctx, args...); err != nil {
		return fmt.Errorf("slot %q: clone failed err:%w", w.slot.Name, err)
	}

	base := w.slot.Base()
	if _, err := w.git(ctx, "branch", base.LocalRef(), "HEAD"); err != nil {
		return fmt.Errorf("slot %q: unable to create local base branch err:%w", w.slot.Name, err)
	}

	return nil
}

// reset requires a clean working tree, unshallows when needed and resets
// to the base's local ref, then removes stale local branches from a
// previous run's merged references (best effort).
func (w *slotWorker) reset(ctx context.Context) error {
	status, err := w.git(ctx, "status", "--porcelain")
	if err != nil {
		return fmt.Errorf("slot %q: unable to check working tree status err:%w", w.slot.Name, err)
	}
	if strings.TrimSpace(status) != "" {
		return fmt.Errorf("slot %q: %w", w.slot.Name, ErrDirtyWorkingTree)
	}

	if len(w.slot.Refs) > 1 {
		if shallow, _ := w.git(ctx, "rev-parse", "--is-shallow-repository"); strings.TrimSpace(shallow) == "true" {
			if _, err := w.git(ctx, "fetch", "--unshallow"); err != nil {
				return fmt.Errorf("slot %q: unable to unshallow repository err:%w", w.slot.Name, err)
			}
		}
	}

	base := w.slot.Base()
	if _, err := w.git(ctx, "reset", "--hard", base.LocalRef()); err != nil {
		return fmt.Errorf("slot %q: %w err:%v", w.slot.Name, ErrResetFailed, err)
	}

	for _, ref := range w.slot.Merges() {
		if _, err := w.git(ctx, "branch", "-D", ref.LocalRef()); err != nil {
			w.log.Warn("unable to delete stale local branch, continuing", "ref", ref.LocalRef(), "err", err)
		}
	}

	return nil
}

// configureSparse sets up sparse checkout per §4.4 and checks out the
// stable "merged" local branch that every subsequent merge targets.
func (w *slotWorker) configureSparse(ctx context.Context, modules []string) error {
	if w.slot.Name != odooSlot {
		if _, err := w.git(ctx, "sparse-checkout", "init", "--cone"); err != nil {
			return fmt.Errorf("slot %q: unable to init sparse checkout err:%w", w.slot.Name, err)
		}
		if len(modules) > 0 {
			args := append([]string{"sparse-checkout", "set"}, modules...)
			if _, err := w.git(ctx, args...); err != nil {
				return fmt.Errorf("slot %q: unable to set sparse checkout pattern err:%w", w.slot.Name, err)
			}
		}
	} else if len(w.slot.Locales) > 0 {
		if _, err := w.git(ctx, "sparse-checkout", "init", "--no-cone"); err != nil {
			return fmt.Errorf("slot %q: unable to init sparse checkout err:%w", w.slot.Name, err)
		}
		pattern := odooLocalePattern(modules, w.slot.Locales)
		args := append([]string{"sparse-checkout", "set"}, pattern...)
		if _, err := w.git(ctx, args...); err != nil {
			return fmt.Errorf("slot %q: unable to set sparse checkout pattern err:%w", w.slot.Name, err)
		}
	}

	if _, err := w.git(ctx, "checkout", "-B", mergedBranch); err != nil {
		return fmt.Errorf("slot %q: unable to checkout %q err:%w", w.slot.Name, mergedBranch, err)
	}

	return nil
}

// odooLocalePattern builds the no-cone sparse-checkout pattern for the
// "odoo" slot: root tree included, all of addons/ excluded, each listed
// module's addons/<module>/* re-included, all *.po excluded, each listed
// locale's <locale>.po re-included. Entry order is significant: later
// entries override earlier ones.
func odooLocalePattern(modules, locales []string) []string {
	pattern := []string{"/*", "!/addons/*"}
	for _, m := range modules {
		pattern = append(pattern, fmt.Sprintf("/addons/%s/*", m))
	}
	pattern = append(pattern, "!*.po")
	for _, l := range locales {
		pattern = append(pattern, fmt.Sprintf("%s.po", l))
	}
	return pattern
}

// addRemotes registers every remote in the slot's table and marks it for
// lazy object transfer during later merges.
func (w *slotWorker) addRemotes(ctx context.Context) error {
	for name, url := range w.slot.Remotes {
		if _, err := w.git(ctx, "remote", "add", name, url); err != nil {
			if !strings.Contains(err.Error(), "already exists") {
				return fmt.Errorf("slot %q: unable to add remote %q err:%w", w.slot.Name, name, err)
			}
		}

		if _, err := w.git(ctx, "config", fmt.Sprintf("remote.%s.partialCloneFilter", name), "tree:0"); err != nil {
			return fmt.Errorf("slot %q: unable to configure remote %q err:%w", w.slot.Name, name, err)
		}
		if _, err := w.git(ctx, "config", fmt.Sprintf("remote.%s.promisor", name), "true"); err != nil {
			return fmt.Errorf("slot %q: unable to configure remote %q err:%w", w.slot.Name, name, err)
		}
	}
	return nil
}

// fetchMulti groups the slot's references by remote and issues one
// fetch invocation per remote, mapping each refspec to its local ref, so
// a slot with N references against one remote costs one round trip.
func (w *slotWorker) fetchMulti(ctx context.Context) error {
	byRemote := make(map[string][]specfile.RefSpec)
	var order []string
	for _, ref := range w.slot.Refs {
		if _, ok := byRemote[ref.Remote]; !ok {
			order = append(order, ref.Remote)
		}
		byRemote[ref.Remote] = append(byRemote[ref.Remote], ref)
	}

	jobs := w.concurrency
	if jobs <= 0 {
		jobs = 1
	}

	for _, remote := range order {
		args := []string{"fetch", remote, "-j", fmt.Sprintf("%d", jobs)}
		for _, ref := range byRemote[remote] {
			args = append(args, fmt.Sprintf("%s:%s", ref.Refspec, ref.LocalRef()))
		}
		if _, err := w.git(ctx, args...); err != nil {
			return fmt.Errorf("slot %q: %w remote:%q err:%v", w.slot.Name, ErrFetchFailed, remote, err)
		}
	}

	return nil
}

// mergeLoop resets "merged" to the freshly fetched base, then merges every
// non-base reference onto it in declaration order, aborting and failing
// fast on the first conflict.
func (w *slotWorker) mergeLoop(ctx context.Context) error {
	base := w.slot.Base()
	if _, err := w.git(ctx, "reset", "--hard", base.LocalRef()); err != nil {
		return fmt.Errorf("slot %q: %w err:%v", w.slot.Name, ErrResetFailed, err)
	}

	for _, ref := range w.slot.Merges() {
		out, err := w.git(ctx, "merge", "--no-edit", ref.LocalRef())
		conflict := strings.Contains(out, "CONFLICT")
		if gitErr, ok := asGitError(err); ok {
			conflict = conflict || strings.Contains(gitErr.Stdout, "CONFLICT") || strings.Contains(gitErr.Stderr, "CONFLICT")
		}

		if conflict {
			if _, abortErr := w.git(ctx, "merge", "--abort"); abortErr != nil {
				w.log.Error("unable to abort conflicted merge", "ref", ref.Refspec, "err", abortErr)
			}
			return &MergeConflictError{Slot: w.slot.Name, Ref: refLabel(ref), Err: err}
		}

		if err != nil {
			return &MergeConflictError{Slot: w.slot.Name, Ref: refLabel(ref), Err: err}
		}
	}
	return nil
}

// patchLoop applies declared patch globs via mailbox-patch, or, for the
// deprecated legacy form, runs declared shell commands. Declaring both is
// not validated against here; patch globs take precedence.
func (w *slotWorker) patchLoop(ctx context.Context) error {
	if len(w.slot.PatchGlobs) > 0 {
		for _, glob := range w.slot.PatchGlobs {
			matches, err := filepath.Glob(filepath.Join(w.path, glob))
			if err != nil {
				return fmt.Errorf("slot %q: invalid patch glob %q err:%w", w.slot.Name, glob, err)
			}
			if len(matches) == 0 {
				continue
			}
			args := append([]string{"am"}, matches...)
			if _, err := w.git(ctx, args...); err != nil {
				if _, abortErr := w.git(ctx, "am", "--abort"); abortErr != nil {
					w.log.Error("unable to abort failed patch apply", "glob", glob, "err", abortErr)
				}
				return &PatchApplyError{Slot: w.slot.Name, Glob: glob, Err: err}
			}
		}
		return nil
	}

	if len(w.slot.ShellCmds) > 0 {
		w.log.Warn("slot uses deprecated shell_command_after, prefer patch_globs", "slot", w.slot.Name)
		return w.runLegacyShellCommands(ctx)
	}

	return nil
}

// runLegacyShellCommands runs each declared shell command under the
// normalized locale environment, aborting any in-progress mailbox-patch
// on a non-zero exit — a defensive measure for a shell command that
// itself started a git am and failed part-way through.
func (w *slotWorker) runLegacyShellCommands(ctx context.Context) error {
	for _, cmdStr := range w.slot.ShellCmds {
		_, err := gitproc.Run(ctx, w.log, []string{"LANG=en_US.UTF-8"}, w.path, "sh", "-c", cmdStr)
		if err != nil {
			if _, abortErr := w.git(ctx, "am", "--abort"); abortErr != nil {
				w.log.Debug("am --abort after shell command failure (expected if no am in progress)", "err", abortErr)
			}
			return &ShellCommandError{Slot: w.slot.Name, Cmd: cmdStr, Err: err}
		}
	}
	return nil
}

// publishLinks replaces links/<module> for every module surviving the
// symlink filter. It is a no-op for the "odoo" slot.
func (w *slotWorker) publishLinks(modules []string) error {
	if w.slot.Name == odooSlot {
		return nil
	}

	if err := os.MkdirAll(w.linksDir, 0o755); err != nil {
		return fmt.Errorf("slot %q: %w: unable to create links dir err:%v", w.slot.Name, ErrLinkFailed, err)
	}

	for _, module := range modules {
		link := filepath.Join(w.linksDir, module)
		target := filepath.Join(w.path, module)
		if err := publishSymlink(link, target); err != nil {
			return fmt.Errorf("slot %q: %w module:%q err:%v", w.slot.Name, ErrLinkFailed, module, err)
		}
	}

	return nil
}

// symlinkFilter inspects links/<module> for each declared module: a
// symlink or a missing path is included for fetch/publish; a real
// directory is excluded and warned about, since it indicates a
// locally-authored module that must not be overwritten. The odoo slot
// never publishes into links/ (publishLinks no-ops for it) and its
// modules list only scopes its own sparse-checkout pattern, so it is
// exempt: another slot's real directory under links/ must not shrink
// odoo's checkout.
func (w *slotWorker) symlinkFilter() ([]string, error) {
	if w.slot.Name == odooSlot {
		return w.slot.Modules, nil
	}

	var kept []string
	for _, module := range w.slot.Modules {
		link := filepath.Join(w.linksDir, module)
		if isRealDir(link) {
			w.log.Warn("module already present as a real directory under links/, excluding from fetch and publish", "module", module, "path", link)
			continue
		}
		kept = append(kept, module)
	}
	return kept, nil
}

func refLabel(ref specfile.RefSpec) string {
	if ref.PinnedName != "" {
		return ref.PinnedName
	}
	return ref.Refspec
}

func asGitError(err error) (*gitproc.Error, bool) {
	var gitErr *gitproc.Error
	if errors.As(err, &gitErr) {
		return gitErr, true
	}
	return nil, false
}
