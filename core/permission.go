package core

import "sort"

// Capability is a single action an actor may perform on a board.
type Capability string

const (
	CapView   Capability = "view"
	CapEdit   Capability = "edit"
	CapShare  Capability = "share"
	CapDelete Capability = "delete"
)

// CapabilitySet is the set of actions an actor is permitted for a
// given board. Represented as a set rather than booleans so "what
// exactly is allowed" stays auditable in one place.
type CapabilitySet map[Capability]bool

// Has reports whether the set contains c.
func (s CapabilitySet) Has(c Capability) bool { return s[c] }

// List returns the capabilities in stable order, for responses and logs.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve computes the capability set of actorID for board. It is a
// pure decision function: every operation in the service routes its
// access check through here, nothing checks ownership inline.
//
// Precedence:
//  1. The owner holds everything. share and delete are owner-exclusive
//     and never granted through the share list; sharing is not
//     transitive.
//  2. A public board grants view to any actor, including one with no
//     share entry at all. An explicit edit share still elevates.
//  3. A private board grants only what its share entry says, or
//     nothing.
func Resolve(board *Board, actorID string) CapabilitySet {
	if actorID != "" && actorID == board.OwnerID {
		return CapabilitySet{CapView: true, CapEdit: true, CapShare: true, CapDelete: true}
	}

	caps := CapabilitySet{}
	entry, shared := board.ShareFor(actorID)

	if board.Visibility == VisibilityPublic {
		caps[CapView] = true
	}
	if shared {
		caps[CapView] = true
		if entry.Permission == PermissionEdit {
			caps[CapEdit] = true
		}
	}
	return caps
}
