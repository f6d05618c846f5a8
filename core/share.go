package core

import "fmt"

// ShareBoard grants targetUserID access to the board with the given
// permission, upserting the share entry in place. Only the owner may
// share; delegated sharing is unsupported. Re-sharing an already
// shared user replaces the entry's permission rather than duplicating
// it. The owner can not be a share target: owner capabilities are
// derived, never stored.
//
// The mutation is applied to board.SharedWith so the caller holds a
// consistent copy; persistence goes through BoardStore.UpsertShare,
// which updates the single share row atomically.
func ShareBoard(board *Board, granterID, targetUserID string, permission SharePermission) (ShareEntry, error) {
	if !Resolve(board, granterID).Has(CapShare) {
		return ShareEntry{}, ErrForbidden
	}
	if !permission.Valid() {
		return ShareEntry{}, fmt.Errorf("invalid permission %q: %w", permission, ErrBadRequest)
	}
	if targetUserID == board.OwnerID {
		return ShareEntry{}, fmt.Errorf("cannot share a board with its owner: %w", ErrBadRequest)
	}

	entry := ShareEntry{UserID: targetUserID, Permission: permission}
	for i, existing := range board.SharedWith {
		if existing.UserID == targetUserID {
			board.SharedWith[i] = entry
			return entry, nil
		}
	}
	board.SharedWith = append(board.SharedWith, entry)
	return entry, nil
}

// UnshareBoard revokes targetUserID's share entry. Only the owner may
// unshare. Revoking a user that has no entry returns ErrNotFound and
// leaves the share list untouched.
func UnshareBoard(board *Board, requesterID, targetUserID string) error {
	if !Resolve(board, requesterID).Has(CapShare) {
		return ErrForbidden
	}
	for i, existing := range board.SharedWith {
		if existing.UserID == targetUserID {
			board.SharedWith = append(board.SharedWith[:i], board.SharedWith[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("no share entry for user %s: %w", targetUserID, ErrNotFound)
}
