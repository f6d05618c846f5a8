package core

import (
	"context"
	"time"
)

// Visibility controls who may read a board without an explicit share.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// SharePermission is the access level granted by a share entry.
type SharePermission string

const (
	PermissionView SharePermission = "view"
	PermissionEdit SharePermission = "edit"
)

// Valid reports whether p is one of the accepted permission values.
func (p SharePermission) Valid() bool {
	return p == PermissionView || p == PermissionEdit
}

type (
	// ShareEntry grants a non-owner bounded access to a board. The
	// owner never appears here; ownership implies every capability.
	ShareEntry struct {
		UserID     string          `json:"userId"`
		Permission SharePermission `json:"permission"`
	}

	// Board represents a whiteboard and its access-control state.
	// IDs are supplied by the caller at creation, never minted by a
	// store. Data is either the inline editor document or a blob
	// reference (see BlobRef).
	Board struct {
		ID         string       `json:"id"`
		Name       string       `json:"name"`
		Data       string       `json:"data,omitempty"`
		OwnerID    string       `json:"ownerId"`
		Visibility Visibility   `json:"visibility"`
		SharedWith []ShareEntry `json:"sharedWith"`
		CreatedAt  time.Time    `json:"createdAt"`
		UpdatedAt  time.Time    `json:"updatedAt"`
	}

	// BoardStore defines the persistence layer for boards.
	//
	// SaveBoard enforces the per-owner name uniqueness constraint and
	// returns ErrNameTaken when a different board of the same owner
	// already holds the name; the caller is expected to re-resolve
	// and retry (see CreateWithUniqueName).
	//
	// UpsertShare and RemoveShare mutate a single share row
	// atomically so concurrent share calls on the same board cannot
	// lose each other's updates. RemoveShare returns ErrNotFound
	// when no entry exists for the user.
	BoardStore interface {
		GetBoard(ctx context.Context, id string) (*Board, error)
		SaveBoard(ctx context.Context, board *Board) error
		DeleteBoard(ctx context.Context, id string) error

		ListByOwner(ctx context.Context, ownerID string) ([]*Board, error)
		ListPublic(ctx context.Context) ([]*Board, error)
		ListSharedWith(ctx context.Context, userID string) ([]*Board, error)

		// NameExists reports whether ownerID already has a board
		// named name, ignoring the board with id excludeID when
		// excludeID is non-empty.
		NameExists(ctx context.Context, ownerID, name, excludeID string) (bool, error)

		UpsertShare(ctx context.Context, boardID string, entry ShareEntry) error
		RemoveShare(ctx context.Context, boardID, userID string) error
	}

	// BlobStore holds opaque board payloads too large to keep inline.
	// Keys are minted by Put. Get returns ErrNotFound for unknown keys.
	BlobStore interface {
		Put(ctx context.Context, data []byte) (key string, err error)
		Get(ctx context.Context, key string) ([]byte, error)
		Delete(ctx context.Context, key string) error
	}
)

// ShareFor returns the share entry for userID, if any.
func (b *Board) ShareFor(userID string) (ShareEntry, bool) {
	for _, entry := range b.SharedWith {
		if entry.UserID == userID {
			return entry, true
		}
	}
	return ShareEntry{}, false
}
