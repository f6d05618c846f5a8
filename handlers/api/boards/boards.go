package boards

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
	"whiteboard-complete/core"
	"whiteboard-complete/handlers/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// renderError maps the core error taxonomy onto HTTP statuses. Every
// handler in this package funnels failures through here so permission
// and uniqueness outcomes stay uniform across routes.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "Server error"
	switch {
	case errors.Is(err, core.ErrNotFound):
		status, message = http.StatusNotFound, "Not found"
	case errors.Is(err, core.ErrForbidden):
		status, message = http.StatusForbidden, "Forbidden"
	case errors.Is(err, core.ErrConflict), errors.Is(err, core.ErrNameTaken):
		status, message = http.StatusConflict, "Name conflict"
	case errors.Is(err, core.ErrBadRequest):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, core.ErrUnavailable):
		status, message = http.StatusServiceUnavailable, "Storage unavailable"
	default:
		logrus.WithError(err).Error("Unhandled board handler error")
	}
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": message})
}

// loadBoard fetches the board and checks the actor holds the required
// capability. A missing capability on an invisible board reads as 404
// rather than 403 so private board ids don't leak existence.
func loadBoard(r *http.Request, store core.BoardStore, required core.Capability) (*core.Board, error) {
	id := chi.URLParam(r, "id")
	if id == "" {
		return nil, core.ErrBadRequest
	}

	board, err := store.GetBoard(r.Context(), id)
	if err != nil {
		return nil, err
	}

	caps := core.Resolve(board, auth.ActorID(r))
	if !caps.Has(required) {
		if !caps.Has(core.CapView) {
			return nil, core.ErrNotFound
		}
		return nil, core.ErrForbidden
	}
	return board, nil
}

// HandleCreate creates a board owned by the caller. The id may be
// supplied by the client (editors mint their own) and defaults to a
// fresh UUID; the name defaults to "Untitled" and is de-conflicted
// against the owner's existing boards.
func HandleCreate(store core.BoardStore, blobs core.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID := auth.ActorID(r)

		var req struct {
			ID         string          `json:"id"`
			Name       string          `json:"name"`
			Data       string          `json:"data"`
			Visibility core.Visibility `json:"visibility"`
		}
		// An empty body is a valid "blank board" request; anything
		// else must parse.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			renderError(w, r, core.ErrBadRequest)
			return
		}

		if req.Visibility == "" {
			req.Visibility = core.VisibilityPrivate
		}
		if req.Visibility != core.VisibilityPrivate && req.Visibility != core.VisibilityPublic {
			renderError(w, r, core.ErrBadRequest)
			return
		}
		if req.ID == "" {
			req.ID = uuid.NewString()
		}

		now := time.Now()
		board := &core.Board{
			ID:         req.ID,
			Name:       req.Name,
			OwnerID:    actorID,
			Visibility: req.Visibility,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if _, err := storePayload(r.Context(), blobs, board, req.Data); err != nil {
			renderError(w, r, err)
			return
		}

		if err := core.CreateWithUniqueName(r.Context(), store, board); err != nil {
			renderError(w, r, err)
			return
		}

		logrus.WithFields(logrus.Fields{
			"board_id": board.ID,
			"owner_id": actorID,
			"name":     board.Name,
		}).Info("Board created")
		render.Status(r, http.StatusCreated)
		render.JSON(w, r, board)
	}
}

// HandleGet returns a single board, payload included, to any actor
// with view capability.
func HandleGet(store core.BoardStore, blobs core.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		board, err := loadBoard(r, store, core.CapView)
		if err != nil {
			renderError(w, r, err)
			return
		}
		if err := resolvePayload(r.Context(), blobs, board); err != nil {
			renderError(w, r, err)
			return
		}
		render.JSON(w, r, board)
	}
}

// HandleUpdate renames a board and/or replaces its payload. Requires
// edit capability; a rename is de-conflicted against the boards of the
// board's owner, not of the caller.
func HandleUpdate(store core.BoardStore, blobs core.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		board, err := loadBoard(r, store, core.CapEdit)
		if err != nil {
			renderError(w, r, err)
			return
		}

		var req struct {
			Name *string `json:"name"`
			Data *string `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			renderError(w, r, core.ErrBadRequest)
			return
		}

		// The old blob is released only after the row save succeeds;
		// a failed save must leave the persisted reference intact.
		oldRef := ""
		if req.Data != nil {
			oldRef, err = storePayload(r.Context(), blobs, board, *req.Data)
			if err != nil {
				renderError(w, r, err)
				return
			}
		}

		if req.Name != nil && *req.Name != board.Name {
			err = core.RenameWithUniqueName(r.Context(), store, board, *req.Name)
		} else {
			board.UpdatedAt = time.Now()
			err = store.SaveBoard(r.Context(), board)
		}
		if err != nil {
			if req.Data != nil && isBlobRef(board.Data) {
				if relErr := releaseRef(r.Context(), blobs, board.Data); relErr != nil {
					logrus.WithError(relErr).WithField("board_id", board.ID).Warn("Failed to release orphaned board blob")
				}
			}
			renderError(w, r, err)
			return
		}

		if oldRef != "" {
			if relErr := releaseRef(r.Context(), blobs, oldRef); relErr != nil {
				logrus.WithError(relErr).WithField("board_id", board.ID).Warn("Failed to release replaced board blob")
			}
		}

		logrus.WithFields(logrus.Fields{
			"board_id": board.ID,
			"actor_id": auth.ActorID(r),
		}).Info("Board updated")
		render.JSON(w, r, board)
	}
}

// HandleDelete removes a board and releases its external payload blob,
// if any. Owner only.
func HandleDelete(store core.BoardStore, blobs core.BlobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		board, err := loadBoard(r, store, core.CapDelete)
		if err != nil {
			renderError(w, r, err)
			return
		}

		if err := store.DeleteBoard(r.Context(), board.ID); err != nil {
			renderError(w, r, err)
			return
		}

		// Row first, blob second: if the release fails the leaked blob
		// is recoverable garbage, whereas a deleted blob behind a
		// surviving row would be lost data.
		if err := releaseRef(r.Context(), blobs, board.Data); err != nil {
			logrus.WithError(err).WithField("board_id", board.ID).Warn("Failed to release board blob")
		}

		logrus.WithFields(logrus.Fields{
			"board_id": board.ID,
			"owner_id": board.OwnerID,
		}).Info("Board deleted")
		render.JSON(w, r, map[string]bool{"success": true})
	}
}

// HandleList returns the caller's own boards, payloads omitted.
func HandleList(store core.BoardStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListByOwner(r.Context(), auth.ActorID(r))
		if err != nil {
			renderError(w, r, err)
			return
		}
		render.JSON(w, r, stripPayloads(list))
	}
}

// HandleListPublic returns every public board. No authentication
// required; public visibility grants view to anyone.
func HandleListPublic(store core.BoardStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListPublic(r.Context())
		if err != nil {
			renderError(w, r, err)
			return
		}
		render.JSON(w, r, stripPayloads(list))
	}
}

// HandleListShared returns boards other owners have shared with the
// caller.
func HandleListShared(store core.BoardStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListSharedWith(r.Context(), auth.ActorID(r))
		if err != nil {
			renderError(w, r, err)
			return
		}
		render.JSON(w, r, stripPayloads(list))
	}
}

func stripPayloads(list []*core.Board) []*core.Board {
	if list == nil {
		return []*core.Board{}
	}
	for _, board := range list {
		board.Data = ""
	}
	return list
}
