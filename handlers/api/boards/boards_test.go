package boards_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"whiteboard-complete/core"
	"whiteboard-complete/handlers/api/boards"
	"whiteboard-complete/handlers/auth"
	authMiddleware "whiteboard-complete/middleware"
	"whiteboard-complete/stores/memory"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type boardUserStore interface {
	core.BoardStore
	core.UserStore
}

type fixture struct {
	router http.Handler
	store  boardUserStore
	tokens map[string]string // user id -> bearer token
}

func newFixture(t *testing.T, userIDs ...string) *fixture {
	return newFixtureWith(t, memory.NewStore(), nil, userIDs...)
}

func newFixtureWith(t *testing.T, store boardUserStore, blobs core.BlobStore, userIDs ...string) *fixture {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")

	auth.InitAuth(store)

	r := chi.NewRouter()
	r.Route("/api/boards", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.OptionalAuthJWT)
			r.Get("/public", boards.HandleListPublic(store))
			r.Get("/{id}", boards.HandleGet(store, blobs))
		})
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthJWT)
			r.Post("/", boards.HandleCreate(store, blobs))
			r.Get("/", boards.HandleList(store))
			r.Get("/shared", boards.HandleListShared(store))
			r.Put("/{id}", boards.HandleUpdate(store, blobs))
			r.Delete("/{id}", boards.HandleDelete(store, blobs))
			r.Post("/{id}/share", boards.HandleShare(store, store))
			r.Post("/{id}/unshare", boards.HandleUnshare(store, store))
			r.Post("/{id}/recent", boards.HandleRecent(store, store))
		})
	})

	f := &fixture{router: r, store: store, tokens: map[string]string{}}
	for _, id := range userIDs {
		user := &core.User{ID: id, Name: id, Email: id + "@example.com"}
		require.NoError(t, store.CreateUser(context.Background(), user))
		token, err := auth.CreateJWT(user)
		require.NoError(t, err)
		f.tokens[id] = token
	}
	return f
}

func (f *fixture) do(t *testing.T, userID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+f.tokens[userID])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBoard(t *testing.T, rec *httptest.ResponseRecorder) core.Board {
	t.Helper()
	var board core.Board
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
	return board
}

func TestCreateDefaultsToUntitled(t *testing.T) {
	f := newFixture(t, "alice")

	rec := f.do(t, "alice", http.MethodPost, "/api/boards/", map[string]any{})
	require.Equal(t, http.StatusCreated, rec.Code)

	board := decodeBoard(t, rec)
	assert.Equal(t, "Untitled", board.Name)
	assert.Equal(t, "alice", board.OwnerID)
	assert.Equal(t, core.VisibilityPrivate, board.Visibility)
	assert.NotEmpty(t, board.ID)
}

func TestCreateDuplicateNamesGetSuffixed(t *testing.T) {
	f := newFixture(t, "alice")

	first := decodeBoard(t, f.do(t, "alice", http.MethodPost, "/api/boards/", map[string]any{"name": "Trip"}))
	second := decodeBoard(t, f.do(t, "alice", http.MethodPost, "/api/boards/", map[string]any{"name": "Trip"}))
	third := decodeBoard(t, f.do(t, "alice", http.MethodPost, "/api/boards/", map[string]any{"name": "Trip"}))

	assert.Equal(t, "Trip", first.Name)
	assert.Equal(t, "Trip (1)", second.Name)
	assert.Equal(t, "Trip (2)", third.Name)
}

func TestGetVisibility(t *testing.T) {
	f := newFixture(t, "alice", "bob")

	private := decodeBoard(t, f.do(t, "alice", http.MethodPost, "/api/boards/", map[string]any{"name": "Secret"}))
	public := decodeBoard(t, f.do(t, "alice", http.MethodPost, "/api/boards/", map[string]any{"name": "Open", "visibility": "public"}))

	// Anonymous actor: public readable, private hidden as 404.
	assert.Equal(t, http.StatusOK, f.do(t, "", http.MethodGet, "/api/boards/"+public.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "", http.MethodGet, "/api/boards/"+private.ID, nil).Code)

	// Unrelated authenticated user: same.
	assert.Equal(t, http.StatusOK, f.do(t, "bob", http.MethodGet, "/api/boards/"+public.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "bob", http.MethodGet, "/api/boards/"+private.ID, nil).Code)

	// Owner sees both.
	assert.Equal(t, http.StatusOK, f.do(t, "alice", http.MethodGet, "/api/boards/"+private.ID, nil).Code)
}

func TestUpdateForbiddenWithoutEdit(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	board := decodeBoard(t, f.do(t, "alice", http.MethodPost, "/api/boards/", map[string]any{"name": "Trip", "visibility": "public"}))

	rec := f.do(t, "bob", http.MethodPut, "/api/boards/"+board.ID, map[string]any{"name": "Hijacked"})

	assert.Equal(t, http.StatusForbidden, rec.Code, "public visibility grants view, never edit")
}

func TestShareUnshareFlow(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	board := decodeBoard(t, f.do(t, "alice", http.MethodPost, "/api/boards/", map[string]any{"name": "Trip"}))

	rec := f.do(t, "alice", http.MethodPost, "/api/boards/"+board.ID+"/share",
		map[string]any{"email": "bob@example.com", "permission": "view"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Bob can now read it and it shows up in his shared listing.
	assert.Equal(t, http.StatusOK, f.do(t, "bob", http.MethodGet, "/api/boards/"+board.ID, nil).Code)
	var shared []core.Board
	sharedRec := f.do(t, "bob", http.MethodGet, "/api/boards/shared", nil)
	require.NoError(t, json.Unmarshal(sharedRec.Body.Bytes(), &shared))
	require.Len(t, shared, 1)
	assert.Equal(t, board.ID, shared[0].ID)

	// Non-owner cannot share onward.
	rec = f.do(t, "bob", http.MethodPost, "/api/boards/"+board.ID+"/share",
		map[string]any{"email": "bob@example.com", "permission": "edit"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Invalid permission value.
	rec = f.do(t, "alice", http.MethodPost, "/api/boards/"+board.ID+"/share",
		map[string]any{"email": "bob@example.com", "permission": "admin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown target user.
	rec = f.do(t, "alice", http.MethodPost, "/api/boards/"+board.ID+"/share",
		map[string]any{"email": "nobody@example.com", "permission": "view"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusOK,
		f.do(t, "alice", http.MethodPost, "/api/boards/"+board.ID+"/unshare", map[string]any{"email": "bob@example.com"}).Code)

	// Second unshare: no entry left.
	rec = f.do(t, "alice", http.MethodPost, "/api/boards/"+board.ID+"/unshare", map[string]any{"email": "bob@example.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "bob", http.MethodGet, "/api/boards/"+board.ID, nil).Code)
}

func TestReshareReplacesPermission(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	board := decodeBoard(t, f.do(t, "alice", http.MethodPost, "/api/boards/", map[string]any{"name": "Trip"}))

	require.Equal(t, http.StatusOK, f.do(t, "alice", http.MethodPost, "/api/boards/"+board.ID+"/share",
		map[string]any{"email": "bob@example.com", "permission": "view"}).Code)
	require.Equal(t, http.StatusOK, f.do(t, "alice", http.MethodPost, "/api/boards/"+board.ID+"/share",
		map[string]any{"email": "bob@example.com", "permission": "edit"}).Code)

	got := decodeBoard(t, f.do(t, "alice", http.MethodGet, "/api/boards/"+board.ID, nil))
	require.Len(t, got.SharedWith, 1, "re-sharing must replace, not duplicate")
	assert.Equal(t, core.PermissionEdit, got.SharedWith[0].Permission)
}

func TestDeleteOwnerOnly(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	board := decodeBoard(t, f.do(t, "alice", http.MethodPost, "/api/boards/", map[string]any{"name": "Trip"}))
	require.Equal(t, http.StatusOK, f.do(t, "alice", http.MethodPost, "/api/boards/"+board.ID+"/share",
		map[string]any{"email": "bob@example.com", "permission": "edit"}).Code)

	rec := f.do(t, "bob", http.MethodDelete, "/api/boards/"+board.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code, "delete is owner-exclusive even for editors")

	require.Equal(t, http.StatusOK, f.do(t, "alice", http.MethodDelete, "/api/boards/"+board.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, "alice", http.MethodGet, "/api/boards/"+board.ID, nil).Code)
}

func TestRecentVisitRequiresView(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	board := decodeBoard(t, f.do(t, "alice", http.MethodPost, "/api/boards/", map[string]any{"name": "Trip"}))

	assert.Equal(t, http.StatusNotFound,
		f.do(t, "bob", http.MethodPost, "/api/boards/"+board.ID+"/recent", nil).Code)

	require.Equal(t, http.StatusOK,
		f.do(t, "alice", http.MethodPost, "/api/boards/"+board.ID+"/recent", nil).Code)

	user, err := f.store.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{board.ID}, user.Recents)
}

func TestRecentVisitsAreBoundedAndDeduplicated(t *testing.T) {
	f := newFixture(t, "alice")

	var ids []string
	for i := 0; i < core.MaxRecents+1; i++ {
		board := decodeBoard(t, f.do(t, "alice", http.MethodPost, "/api/boards/", map[string]any{"name": fmt.Sprintf("Board %d", i)}))
		ids = append(ids, board.ID)
		require.Equal(t, http.StatusOK, f.do(t, "alice", http.MethodPost, "/api/boards/"+board.ID+"/recent", nil).Code)
	}
	// Revisit the second board; it moves to the front without a duplicate.
	require.Equal(t, http.StatusOK, f.do(t, "alice", http.MethodPost, "/api/boards/"+ids[1]+"/recent", nil).Code)

	user, err := f.store.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, user.Recents, core.MaxRecents)
	assert.Equal(t, ids[1], user.Recents[0])
	assert.NotContains(t, user.Recents, ids[0], "oldest visit is evicted")
}

// The full lifecycle the system exists for: duplicate-name creation,
// view share, permission upgrade, rename by an editor, and the renamed
// board participating in later uniqueness checks.
func TestBoardLifecycleEndToEnd(t *testing.T) {
	f := newFixture(t, "alice", "bob")

	first := decodeBoard(t, f.do(t, "alice", http.MethodPost, "/api/boards/", map[string]any{"name": "Trip"}))
	second := decodeBoard(t, f.do(t, "alice", http.MethodPost, "/api/boards/", map[string]any{"name": "Trip"}))
	assert.Equal(t, "Trip", first.Name)
	assert.Equal(t, "Trip (1)", second.Name)

	require.Equal(t, http.StatusOK, f.do(t, "alice", http.MethodPost, "/api/boards/"+second.ID+"/share",
		map[string]any{"email": "bob@example.com", "permission": "view"}).Code)

	rec := f.do(t, "bob", http.MethodPut, "/api/boards/"+second.ID, map[string]any{"name": "Trip Plan"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	require.Equal(t, http.StatusOK, f.do(t, "alice", http.MethodPost, "/api/boards/"+second.ID+"/share",
		map[string]any{"email": "bob@example.com", "permission": "edit"}).Code)

	renamed := decodeBoard(t, f.do(t, "bob", http.MethodPut, "/api/boards/"+second.ID, map[string]any{"name": "Trip Plan"}))
	assert.Equal(t, "Trip Plan", renamed.Name)

	// The rename is visible to the owner's uniqueness scope.
	clash := decodeBoard(t, f.do(t, "alice", http.MethodPost, "/api/boards/", map[string]any{"name": "Trip Plan"}))
	assert.Equal(t, "Trip Plan (1)", clash.Name)
}

// flakyStore injects failures into single store operations so handler
// sequencing around them can be observed.
type flakyStore struct {
	boardUserStore
	saveErr   error
	deleteErr error
}

func (s *flakyStore) SaveBoard(ctx context.Context, board *core.Board) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.boardUserStore.SaveBoard(ctx, board)
}

func (s *flakyStore) DeleteBoard(ctx context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.boardUserStore.DeleteBoard(ctx, id)
}

type memBlobStore struct {
	blobs map[string][]byte
	next  int
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{blobs: map[string][]byte{}}
}

func (m *memBlobStore) Put(_ context.Context, data []byte) (string, error) {
	m.next++
	key := fmt.Sprintf("key-%d", m.next)
	m.blobs[key] = data
	return key, nil
}

func (m *memBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := m.blobs[key]
	if !ok {
		return nil, core.ErrNotFound
	}
	return data, nil
}

func (m *memBlobStore) Delete(_ context.Context, key string) error {
	delete(m.blobs, key)
	return nil
}

const largePayloadSize = 300 * 1024

func TestCreateRejectsMalformedBody(t *testing.T) {
	f := newFixture(t, "alice")

	req := httptest.NewRequest(http.MethodPost, "/api/boards/", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.tokens["alice"])
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// An empty body is still a valid blank-board request.
	assert.Equal(t, http.StatusCreated, f.do(t, "alice", http.MethodPost, "/api/boards/", nil).Code)
}

func TestCreateRejectsBlobReferenceData(t *testing.T) {
	blobs := newMemBlobStore()
	f := newFixtureWith(t, memory.NewStore(), blobs, "alice")

	rec := f.do(t, "alice", http.MethodPost, "/api/boards/",
		map[string]any{"name": "Trip", "data": "blob:../../etc/passwd"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "payload references are minted server-side only")
}

func TestUpdateKeepsOldBlobWhenSaveFails(t *testing.T) {
	flaky := &flakyStore{boardUserStore: memory.NewStore()}
	blobs := newMemBlobStore()
	f := newFixtureWith(t, flaky, blobs, "alice")

	first := strings.Repeat("x", largePayloadSize)
	board := decodeBoard(t, f.do(t, "alice", http.MethodPost, "/api/boards/",
		map[string]any{"name": "Trip", "data": first}))
	require.Len(t, blobs.blobs, 1)

	flaky.saveErr = errors.New("database is locked")
	rec := f.do(t, "alice", http.MethodPut, "/api/boards/"+board.ID,
		map[string]any{"data": strings.Repeat("y", largePayloadSize)})
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	// The failed save must not destroy the persisted payload, and the
	// blob written for the failed update must not linger.
	flaky.saveErr = nil
	got := decodeBoard(t, f.do(t, "alice", http.MethodGet, "/api/boards/"+board.ID, nil))
	assert.Equal(t, first, got.Data)
	assert.Len(t, blobs.blobs, 1)
}

func TestUpdateReleasesReplacedBlobAfterSave(t *testing.T) {
	blobs := newMemBlobStore()
	f := newFixtureWith(t, memory.NewStore(), blobs, "alice")

	board := decodeBoard(t, f.do(t, "alice", http.MethodPost, "/api/boards/",
		map[string]any{"name": "Trip", "data": strings.Repeat("x", largePayloadSize)}))

	second := strings.Repeat("y", largePayloadSize)
	rec := f.do(t, "alice", http.MethodPut, "/api/boards/"+board.ID, map[string]any{"data": second})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, blobs.blobs, 1, "the replaced blob is released once the save lands")

	got := decodeBoard(t, f.do(t, "alice", http.MethodGet, "/api/boards/"+board.ID, nil))
	assert.Equal(t, second, got.Data)
}

func TestDeleteKeepsBlobWhenRowDeleteFails(t *testing.T) {
	flaky := &flakyStore{boardUserStore: memory.NewStore()}
	blobs := newMemBlobStore()
	f := newFixtureWith(t, flaky, blobs, "alice")

	payload := strings.Repeat("x", largePayloadSize)
	board := decodeBoard(t, f.do(t, "alice", http.MethodPost, "/api/boards/",
		map[string]any{"name": "Trip", "data": payload}))

	flaky.deleteErr = errors.New("database is locked")
	rec := f.do(t, "alice", http.MethodDelete, "/api/boards/"+board.ID, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	// The surviving row must still resolve its payload.
	flaky.deleteErr = nil
	got := decodeBoard(t, f.do(t, "alice", http.MethodGet, "/api/boards/"+board.ID, nil))
	assert.Equal(t, payload, got.Data)
	require.Len(t, blobs.blobs, 1)

	require.Equal(t, http.StatusOK, f.do(t, "alice", http.MethodDelete, "/api/boards/"+board.ID, nil).Code)
	assert.Empty(t, blobs.blobs)
}
