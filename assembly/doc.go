// Package assembly drives slots (the per-repository working trees
// described by a specfile.Project) through clone-or-reset, sparse
// checkout, multi-remote fetch, ordered merge, patch application and
// symlink publication, under a bounded-concurrency scheduler. It also
// implements the freeze mode that pins each slot's references to the
// commit currently checked out locally.
package assembly
