package assembly

import (
	"errors"
	"fmt"
)

// Sentinel errors for the non-recoverable slot failures listed in the
// error handling design. Each is wrapped with slot/ref context by the
// worker before being returned from Run.
var (
	ErrDirtyWorkingTree = errors.New("working tree is dirty")
	ErrResetFailed      = errors.New("reset failed")
	ErrFetchFailed      = errors.New("fetch failed")
	ErrLinkFailed       = errors.New("unable to publish link")
	ErrNoReferences     = errors.New("slot declares no references")
)

// MergeConflictError reports a failed merge of ref onto the slot's base.
// When git reports a conflict, the merge is aborted before this is
// returned, so the working tree is left at its pre-merge head; a merge
// that fails without a conflict is reported with the same type and is
// not aborted.
type MergeConflictError struct {
	Slot string
	Ref  string
	Err  error
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("slot %q: merge conflict merging %q: %v", e.Slot, e.Ref, e.Err)
}

func (e *MergeConflictError) Unwrap() error { return e.Err }

// PatchApplyError reports a failed mailbox-patch application for one
// glob. The in-progress am is always aborted before this is returned.
type PatchApplyError struct {
	Slot string
	Glob string
	Err  error
}

func (e *PatchApplyError) Error() string {
	return fmt.Sprintf("slot %q: applying patches %q: %v", e.Slot, e.Glob, e.Err)
}

func (e *PatchApplyError) Unwrap() error { return e.Err }

// ShellCommandError reports a failed legacy shell_command_after entry.
type ShellCommandError struct {
	Slot string
	Cmd  string
	Err  error
}

func (e *ShellCommandError) Error() string {
	return fmt.Sprintf("slot %q: shell command %q failed: %v", e.Slot, e.Cmd, e.Err)
}

func (e *ShellCommandError) Unwrap() error { return e.Err }

// ErrNoReferencesSlot reports a slot declaring zero references, caught
// at the start of the worker's Run even though specfile.Load already
// rejects this shape, so a Project built by hand (as tests do) fails the
// same way.
type ErrNoReferencesSlot struct{ Slot string }

func (e *ErrNoReferencesSlot) Error() string {
	return fmt.Sprintf("slot %q declares no references", e.Slot)
}

func (e *ErrNoReferencesSlot) Is(target error) bool {
	return target == ErrNoReferences
}
