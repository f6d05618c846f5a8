package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"whiteboard-complete/core"

	"github.com/sirupsen/logrus"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore opens (and if needed initializes) a SQLite-backed store.
// The UNIQUE(owner_id, name) constraint on boards is what closes the
// check-then-act naming race: a concurrent create that slips past the
// resolver's existence check fails here and is retried by the caller.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS boards (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		data TEXT NOT NULL DEFAULT '',
		owner_id TEXT NOT NULL,
		visibility TEXT NOT NULL DEFAULT 'private',
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (owner_id, name)
	);
	CREATE TABLE IF NOT EXISTS board_shares (
		board_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		permission TEXT NOT NULL,
		PRIMARY KEY (board_id, user_id)
	);
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		oauth INTEGER NOT NULL DEFAULT 0,
		avatar_url TEXT NOT NULL DEFAULT '',
		recents TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME,
		updated_at DATETIME
	);`
	if _, err = db.Exec(schema); err != nil {
		log.Fatalf("failed to initialize schema: %v", err)
	}

	return &sqliteStore{db}
}

// isUniqueViolation reports whether err is the driver's unique
// constraint error.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// BoardStore implementation

func (s *sqliteStore) GetBoard(ctx context.Context, id string) (*core.Board, error) {
	var board core.Board
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, data, owner_id, visibility, created_at, updated_at FROM boards WHERE id = ?", id,
	).Scan(&board.ID, &board.Name, &board.Data, &board.OwnerID, &board.Visibility, &board.CreatedAt, &board.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}

	shares, err := s.loadShares(ctx, id)
	if err != nil {
		return nil, err
	}
	board.SharedWith = shares
	return &board, nil
}

func (s *sqliteStore) loadShares(ctx context.Context, boardID string) ([]core.ShareEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, permission FROM board_shares WHERE board_id = ?", boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shares []core.ShareEntry
	for rows.Next() {
		var entry core.ShareEntry
		if err := rows.Scan(&entry.UserID, &entry.Permission); err != nil {
			return nil, err
		}
		shares = append(shares, entry)
	}
	return shares, rows.Err()
}

func (s *sqliteStore) SaveBoard(ctx context.Context, board *core.Board) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO boards (id, name, data, owner_id, visibility, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			data = excluded.data,
			visibility = excluded.visibility,
			updated_at = excluded.updated_at`,
		board.ID, board.Name, board.Data, board.OwnerID, board.Visibility, board.CreatedAt, board.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrNameTaken
		}
		return err
	}

	logrus.WithFields(logrus.Fields{"board_id": board.ID, "owner_id": board.OwnerID}).Debug("Board saved")
	return nil
}

func (s *sqliteStore) DeleteBoard(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM boards WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	_, err = s.db.ExecContext(ctx, "DELETE FROM board_shares WHERE board_id = ?", id)
	return err
}

const boardColumns = "id, name, owner_id, visibility, created_at, updated_at"

// scanBoards reads metadata rows; Data is left empty for list views.
func scanBoards(rows *sql.Rows) ([]*core.Board, error) {
	var out []*core.Board
	for rows.Next() {
		var board core.Board
		if err := rows.Scan(&board.ID, &board.Name, &board.OwnerID, &board.Visibility, &board.CreatedAt, &board.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &board)
	}
	return out, rows.Err()
}

func (s *sqliteStore) ListByOwner(ctx context.Context, ownerID string) ([]*core.Board, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+boardColumns+" FROM boards WHERE owner_id = ? ORDER BY updated_at DESC", ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBoards(rows)
}

func (s *sqliteStore) ListPublic(ctx context.Context) ([]*core.Board, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+boardColumns+" FROM boards WHERE visibility = ? ORDER BY updated_at DESC", core.VisibilityPublic)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBoards(rows)
}

func (s *sqliteStore) ListSharedWith(ctx context.Context, userID string) ([]*core.Board, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.name, b.owner_id, b.visibility, b.created_at, b.updated_at
		FROM boards b
		JOIN board_shares sh ON sh.board_id = b.id
		WHERE sh.user_id = ?
		ORDER BY b.updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBoards(rows)
}

func (s *sqliteStore) NameExists(ctx context.Context, ownerID, name, excludeID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM boards WHERE owner_id = ? AND name = ? AND id <> ?", ownerID, name, excludeID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) UpsertShare(ctx context.Context, boardID string, entry core.ShareEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO board_shares (board_id, user_id, permission) VALUES (?, ?, ?)
		ON CONFLICT(board_id, user_id) DO UPDATE SET permission = excluded.permission`,
		boardID, entry.UserID, entry.Permission)
	return err
}

func (s *sqliteStore) RemoveShare(ctx context.Context, boardID, userID string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM board_shares WHERE board_id = ? AND user_id = ?", boardID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// UserStore implementation

const userColumns = "id, name, email, password_hash, oauth, avatar_url, recents, created_at, updated_at"

func (s *sqliteStore) scanUser(row *sql.Row) (*core.User, error) {
	var user core.User
	var recents string
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.OAuth, &user.AvatarURL, &recents, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(recents), &user.Recents); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *sqliteStore) GetUser(ctx context.Context, id string) (*core.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

func (s *sqliteStore) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?", strings.ToLower(email)))
}

func (s *sqliteStore) CreateUser(ctx context.Context, user *core.User) error {
	recents, err := json.Marshal(user.Recents)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, oauth, avatar_url, recents, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, strings.ToLower(user.Email), user.PasswordHash, user.OAuth, user.AvatarURL, string(recents), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrEmailTaken
		}
		return err
	}

	logrus.WithField("user_id", user.ID).Debug("User created")
	return nil
}

func (s *sqliteStore) SaveUser(ctx context.Context, user *core.User) error {
	recents, err := json.Marshal(user.Recents)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET name = ?, email = ?, password_hash = ?, oauth = ?, avatar_url = ?, recents = ?, updated_at = ?
		WHERE id = ?`,
		user.Name, strings.ToLower(user.Email), user.PasswordHash, user.OAuth, user.AvatarURL, string(recents), user.UpdatedAt, user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrEmailTaken
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}
