package assembly

import "github.com/franzpoize/bl/specfile"

// cloneFlags controls the shape of the clone plan's argument vector.
type cloneFlags uint8

const (
	cloneShallow cloneFlags = 1 << iota
	cloneSparse
)

// odooSlot is the special slot name that gets its own clone and
// sparse-checkout treatment throughout the state machine.
const odooSlot = "odoo"

// PlanClone is a pure function from a slot's name and descriptor to the
// git clone argument vector, not including the destination directory
// (the caller appends that). Shallow iff the slot is "odoo" or has
// exactly one reference: a single reference needs no history to merge
// others on top, and "odoo" is always shallow because of its size.
// Sparse iff the slot is not "odoo", or it is "odoo" with a non-empty
// locale list.
func PlanClone(slotName string, slot *specfile.Slot) []string {
	var flags cloneFlags
	if slotName == odooSlot || len(slot.Refs) == 1 {
		flags |= cloneShallow
	}
	if slotName != odooSlot || len(slot.Locales) > 0 {
		flags |= cloneSparse
	}

	base := slot.Base()
	url := slot.Remotes[base.Remote]

	args := []string{"clone", "--filter=tree:0"}

	if flags&cloneShallow != 0 {
		args = append(args, "--depth", "1")
	}
	if flags&cloneSparse != 0 {
		args = append(args, "--sparse")
	}

	if base.Type == specfile.Ref {
		args = append(args, "--revision", base.Refspec)
	} else {
		args = append(args, "--origin", base.Remote, "--branch", base.Refspec)
	}

	return append(args, url)
}
