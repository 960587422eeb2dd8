// Package progress defines the narrow interface the assembly engine
// reports progress through, plus a terminal and a no-op implementation.
// The engine never imports a rendering library directly — it only
// depends on the Sink interface, so callers can swap in whatever
// reporting they like.
package progress

// Sink receives per-slot status updates and aggregate counters from a
// running scheduler. Implementations must be safe for
// concurrent use: every slot worker calls into the same Sink instance
// from its own goroutine.
type Sink interface {
	// Start is called once, before any slot work begins, with the total
	// number of slots that will be processed.
	Start(total int)

	// SlotStarted is called when a slot's worker acquires its
	// concurrency slot and begins work.
	SlotStarted(slot string)

	// SlotStatus reports a human-readable status line for a slot, e.g.
	// "Cloning origin/main" or "Merge conflict in refs/pull/7/head".
	SlotStatus(slot, status string)

	// SlotDone is called exactly once per slot, with the terminal
	// outcome. err is nil on success.
	SlotDone(slot string, err error)

	// Finish is called once after every slot has reported SlotDone.
	Finish()
}
