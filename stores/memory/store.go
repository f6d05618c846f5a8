package memory

import (
	"context"
	"strings"
	"sync"
	"whiteboard-complete/core"

	"github.com/sirupsen/logrus"
)

// memStore implements BoardStore and UserStore in process memory. It
// enforces the same uniqueness rules as the sqlite schema, per-owner
// board names and unique user emails, so the naming retry loop behaves
// identically against either backend.
type memStore struct {
	mu     sync.RWMutex
	boards map[string]*core.Board
	users  map[string]*core.User
	email  map[string]string // lowercased email -> user id
}

// NewStore creates an empty in-memory store.
func NewStore() *memStore {
	return &memStore{
		boards: make(map[string]*core.Board),
		users:  make(map[string]*core.User),
		email:  make(map[string]string),
	}
}

func cloneBoard(b *core.Board) *core.Board {
	out := *b
	out.SharedWith = append([]core.ShareEntry(nil), b.SharedWith...)
	return &out
}

func cloneUser(u *core.User) *core.User {
	out := *u
	out.Recents = append([]string(nil), u.Recents...)
	return &out
}

// BoardStore implementation

func (s *memStore) GetBoard(ctx context.Context, id string) (*core.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	board, ok := s.boards[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneBoard(board), nil
}

func (s *memStore) SaveBoard(ctx context.Context, board *core.Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, other := range s.boards {
		if id != board.ID && other.OwnerID == board.OwnerID && other.Name == board.Name {
			return core.ErrNameTaken
		}
	}

	stored := cloneBoard(board)
	if existing, ok := s.boards[board.ID]; ok {
		// Shares are mutated only through UpsertShare/RemoveShare.
		stored.SharedWith = existing.SharedWith
		stored.CreatedAt = existing.CreatedAt
	}
	s.boards[board.ID] = stored

	logrus.WithFields(logrus.Fields{"board_id": board.ID, "owner_id": board.OwnerID}).Debug("Board saved")
	return nil
}

func (s *memStore) DeleteBoard(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.boards[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.boards, id)
	return nil
}

func (s *memStore) ListByOwner(ctx context.Context, ownerID string) ([]*core.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.Board
	for _, board := range s.boards {
		if board.OwnerID == ownerID {
			out = append(out, cloneBoard(board))
		}
	}
	return out, nil
}

func (s *memStore) ListPublic(ctx context.Context) ([]*core.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.Board
	for _, board := range s.boards {
		if board.Visibility == core.VisibilityPublic {
			out = append(out, cloneBoard(board))
		}
	}
	return out, nil
}

func (s *memStore) ListSharedWith(ctx context.Context, userID string) ([]*core.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*core.Board
	for _, board := range s.boards {
		if _, ok := board.ShareFor(userID); ok {
			out = append(out, cloneBoard(board))
		}
	}
	return out, nil
}

func (s *memStore) NameExists(ctx context.Context, ownerID, name, excludeID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, board := range s.boards {
		if board.OwnerID == ownerID && board.Name == name && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) UpsertShare(ctx context.Context, boardID string, entry core.ShareEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	board, ok := s.boards[boardID]
	if !ok {
		return core.ErrNotFound
	}
	for i, existing := range board.SharedWith {
		if existing.UserID == entry.UserID {
			board.SharedWith[i] = entry
			return nil
		}
	}
	board.SharedWith = append(board.SharedWith, entry)
	return nil
}

func (s *memStore) RemoveShare(ctx context.Context, boardID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	board, ok := s.boards[boardID]
	if !ok {
		return core.ErrNotFound
	}
	for i, existing := range board.SharedWith {
		if existing.UserID == userID {
			board.SharedWith = append(board.SharedWith[:i], board.SharedWith[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

// UserStore implementation

func (s *memStore) GetUser(ctx context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneUser(user), nil
}

func (s *memStore) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.email[strings.ToLower(email)]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *memStore) CreateUser(ctx context.Context, user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, taken := s.email[key]; taken {
		return core.ErrEmailTaken
	}
	s.users[user.ID] = cloneUser(user)
	s.email[key] = user.ID

	logrus.WithFields(logrus.Fields{"user_id": user.ID}).Debug("User created")
	return nil
}

func (s *memStore) SaveUser(ctx context.Context, user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return core.ErrNotFound
	}
	if !strings.EqualFold(existing.Email, user.Email) {
		delete(s.email, strings.ToLower(existing.Email))
		s.email[strings.ToLower(user.Email)] = user.ID
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}
