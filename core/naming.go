package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultBoardName is used when a create request carries no name.
const DefaultBoardName = "Untitled"

// nameRetryLimit bounds how often a save is retried after the store's
// uniqueness constraint fires under a concurrent race.
const nameRetryLimit = 3

// NameExistsFunc is the existence-check collaborator for name
// resolution: it reports whether ownerID already has a board called
// name, ignoring excludeID when non-empty.
type NameExistsFunc func(ctx context.Context, ownerID, name, excludeID string) (bool, error)

// ResolveName computes a board name free of collisions among ownerID's
// boards as of the snapshot the exists collaborator observes. An empty
// desired name defaults to DefaultBoardName. Collisions are resolved
// by suffixing "<name> (1)", "<name> (2)", ... until a free name is
// found; suffix numbering starts at 1 on every call.
//
// excludeBoardID is supplied for rename so a board may keep a name
// that collides only with itself.
//
// The check-then-decide sequence is racy under concurrent creation;
// callers that persist the result must go through CreateWithUniqueName
// or RenameWithUniqueName, which close the race against the store's
// uniqueness constraint.
func ResolveName(ctx context.Context, exists NameExistsFunc, desired, ownerID, excludeBoardID string) (string, error) {
	if desired == "" {
		desired = DefaultBoardName
	}

	name := desired
	for suffix := 1; ; suffix++ {
		taken, err := exists(ctx, ownerID, name, excludeBoardID)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
		name = fmt.Sprintf("%s (%d)", desired, suffix)
	}
}

// CreateWithUniqueName resolves board.Name against the owner's
// existing boards and saves it. If a concurrent create steals the name
// between the check and the save, the store reports ErrNameTaken and
// the name is re-resolved from fresh state; after nameRetryLimit
// failed attempts the operation surfaces ErrConflict.
func CreateWithUniqueName(ctx context.Context, store BoardStore, board *Board) error {
	return saveWithUniqueName(ctx, store, board, board.Name, "")
}

// RenameWithUniqueName is CreateWithUniqueName for an existing board:
// the board's own id is excluded from the collision check so keeping
// the current name is never treated as a conflict. Uniqueness is
// scoped to the board's owner regardless of who performs the rename.
func RenameWithUniqueName(ctx context.Context, store BoardStore, board *Board, desired string) error {
	return saveWithUniqueName(ctx, store, board, desired, board.ID)
}

func saveWithUniqueName(ctx context.Context, store BoardStore, board *Board, desired, excludeID string) error {
	for attempt := 0; attempt < nameRetryLimit; attempt++ {
		name, err := ResolveName(ctx, store.NameExists, desired, board.OwnerID, excludeID)
		if err != nil {
			return err
		}
		board.Name = name
		board.UpdatedAt = time.Now()

		err = store.SaveBoard(ctx, board)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNameTaken) {
			return err
		}
	}
	return fmt.Errorf("resolving unique name for %q: %w", desired, ErrConflict)
}
