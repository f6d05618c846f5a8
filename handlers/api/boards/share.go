package boards

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
	"whiteboard-complete/core"
	"whiteboard-complete/handlers/auth"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// HandleShare grants a user access to a board by email. Owner only;
// re-sharing an already shared user replaces their permission. The
// share row is upserted atomically so two concurrent shares on the
// same board cannot lose each other.
func HandleShare(store core.BoardStore, users core.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		board, err := loadBoard(r, store, core.CapView)
		if err != nil {
			renderError(w, r, err)
			return
		}

		var req struct {
			Email      string               `json:"email"`
			Permission core.SharePermission `json:"permission"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
			renderError(w, r, core.ErrBadRequest)
			return
		}

		target, err := users.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
		if err != nil {
			renderError(w, r, err)
			return
		}

		entry, err := core.ShareBoard(board, auth.ActorID(r), target.ID, req.Permission)
		if err != nil {
			renderError(w, r, err)
			return
		}

		if err := store.UpsertShare(r.Context(), board.ID, entry); err != nil {
			renderError(w, r, err)
			return
		}

		logrus.WithFields(logrus.Fields{
			"board_id":   board.ID,
			"target_id":  target.ID,
			"permission": entry.Permission,
		}).Info("Board shared")
		render.JSON(w, r, map[string]any{"success": true, "sharedWith": board.SharedWith})
	}
}

// HandleUnshare revokes a user's access by email. Owner only; a target
// with no share entry is NotFound and the share list is untouched.
func HandleUnshare(store core.BoardStore, users core.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		board, err := loadBoard(r, store, core.CapView)
		if err != nil {
			renderError(w, r, err)
			return
		}

		var req struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
			renderError(w, r, core.ErrBadRequest)
			return
		}

		target, err := users.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
		if err != nil {
			renderError(w, r, err)
			return
		}

		if err := core.UnshareBoard(board, auth.ActorID(r), target.ID); err != nil {
			renderError(w, r, err)
			return
		}

		if err := store.RemoveShare(r.Context(), board.ID, target.ID); err != nil {
			renderError(w, r, err)
			return
		}

		logrus.WithFields(logrus.Fields{
			"board_id":  board.ID,
			"target_id": target.ID,
		}).Info("Board unshared")
		render.JSON(w, r, map[string]any{"success": true, "sharedWith": board.SharedWith})
	}
}

// HandleRecent records a visit to a board in the caller's recents
// list. Requires view capability. The read-modify-write on the user
// record is last-write-wins under concurrent visits, which is fine for
// a convenience list.
func HandleRecent(store core.BoardStore, users core.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		board, err := loadBoard(r, store, core.CapView)
		if err != nil {
			renderError(w, r, err)
			return
		}

		user, err := users.GetUser(r.Context(), auth.ActorID(r))
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "User not found"})
				return
			}
			renderError(w, r, err)
			return
		}

		user.Recents = core.VisitRecent(user.Recents, board.ID)
		user.UpdatedAt = time.Now()
		if err := users.SaveUser(r.Context(), user); err != nil {
			renderError(w, r, err)
			return
		}

		render.JSON(w, r, map[string]bool{"success": true})
	}
}
