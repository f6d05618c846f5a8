package boards

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"whiteboard-complete/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBlobStore struct {
	blobs map[string][]byte
	next  int
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: map[string][]byte{}}
}

func (f *fakeBlobStore) Put(_ context.Context, data []byte) (string, error) {
	f.next++
	key := fmt.Sprintf("blob-%d", f.next)
	f.blobs[key] = data
	return key, nil
}

func (f *fakeBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := f.blobs[key]
	if !ok {
		return nil, core.ErrNotFound
	}
	return data, nil
}

func (f *fakeBlobStore) Delete(_ context.Context, key string) error {
	delete(f.blobs, key)
	return nil
}

func TestStorePayloadKeepsSmallDataInline(t *testing.T) {
	blobs := newFakeBlobStore()
	board := &core.Board{ID: "b1"}

	oldRef, err := storePayload(context.Background(), blobs, board, `{"elements":[]}`)
	require.NoError(t, err)

	assert.Empty(t, oldRef)
	assert.Equal(t, `{"elements":[]}`, board.Data)
	assert.Empty(t, blobs.blobs)
}

func TestStorePayloadOffloadsLargeData(t *testing.T) {
	blobs := newFakeBlobStore()
	board := &core.Board{ID: "b1"}
	big := strings.Repeat("x", inlinePayloadLimit+1)

	_, err := storePayload(context.Background(), blobs, board, big)
	require.NoError(t, err)
	require.True(t, isBlobRef(board.Data))
	require.Len(t, blobs.blobs, 1)

	require.NoError(t, resolvePayload(context.Background(), blobs, board))
	assert.Equal(t, big, board.Data)
}

func TestStorePayloadReturnsReplacedRefWithoutDeleting(t *testing.T) {
	blobs := newFakeBlobStore()
	board := &core.Board{ID: "b1"}
	big := strings.Repeat("x", inlinePayloadLimit+1)

	_, err := storePayload(context.Background(), blobs, board, big)
	require.NoError(t, err)
	firstRef := board.Data

	// The replaced blob stays alive until the caller releases it, so a
	// failed row save cannot orphan the persisted reference.
	oldRef, err := storePayload(context.Background(), blobs, board, strings.Repeat("y", inlinePayloadLimit+1))
	require.NoError(t, err)
	assert.Equal(t, firstRef, oldRef)
	assert.NotEqual(t, firstRef, board.Data)
	assert.Len(t, blobs.blobs, 2)

	require.NoError(t, releaseRef(context.Background(), blobs, oldRef))
	assert.Len(t, blobs.blobs, 1)

	// Shrinking back to an inline payload reports the blob the same way.
	oldRef, err = storePayload(context.Background(), blobs, board, "small")
	require.NoError(t, err)
	assert.True(t, isBlobRef(oldRef))
	assert.Equal(t, "small", board.Data)
	require.NoError(t, releaseRef(context.Background(), blobs, oldRef))
	assert.Empty(t, blobs.blobs)
}

func TestStorePayloadRejectsReferenceScheme(t *testing.T) {
	blobs := newFakeBlobStore()
	board := &core.Board{ID: "b1"}

	_, err := storePayload(context.Background(), blobs, board, "blob:../../etc/passwd")
	assert.ErrorIs(t, err, core.ErrBadRequest)
	assert.Empty(t, board.Data, "rejected payloads must not touch the board")

	// Also rejected when no blob store is configured; the prefix would
	// otherwise round-trip as a dangling reference.
	_, err = storePayload(context.Background(), nil, board, "blob:anything")
	assert.ErrorIs(t, err, core.ErrBadRequest)
}

func TestStorePayloadWithoutBlobStore(t *testing.T) {
	board := &core.Board{ID: "b1"}
	big := strings.Repeat("x", inlinePayloadLimit+1)

	oldRef, err := storePayload(context.Background(), nil, board, big)
	require.NoError(t, err)
	assert.Empty(t, oldRef)
	assert.Equal(t, big, board.Data, "no blob store configured means inline, whatever the size")
}

func TestResolvePayloadWithoutBlobStore(t *testing.T) {
	board := &core.Board{ID: "b1", Data: "blob:orphaned"}

	err := resolvePayload(context.Background(), nil, board)
	assert.ErrorIs(t, err, core.ErrUnavailable)
}

func TestReleaseRef(t *testing.T) {
	blobs := newFakeBlobStore()
	board := &core.Board{ID: "b1"}
	_, err := storePayload(context.Background(), blobs, board, strings.Repeat("x", inlinePayloadLimit+1))
	require.NoError(t, err)

	require.NoError(t, releaseRef(context.Background(), blobs, board.Data))
	assert.Empty(t, blobs.blobs)

	require.NoError(t, releaseRef(context.Background(), blobs, "inline data"))
	require.NoError(t, releaseRef(context.Background(), nil, "blob:whatever"))
}
