package boards

import (
	"context"
	"fmt"
	"strings"
	"whiteboard-complete/core"
)

// Payloads above this size are offloaded to the blob store and the
// board row keeps a "blob:<key>" reference instead.
const inlinePayloadLimit = 256 * 1024

const blobRefPrefix = "blob:"

func isBlobRef(data string) bool {
	return strings.HasPrefix(data, blobRefPrefix)
}

// storePayload sets board.Data from an incoming payload, writing it to
// the blob store when one is configured and the payload is large.
// References are minted server-side only; incoming data using the
// reference scheme is rejected so a client can never point a board at
// an arbitrary key. The replaced blob reference, if any, is returned
// for the caller to release once the board row is saved.
func storePayload(ctx context.Context, blobs core.BlobStore, board *core.Board, data string) (string, error) {
	if isBlobRef(data) {
		return "", fmt.Errorf("payload may not use the %q prefix: %w", blobRefPrefix, core.ErrBadRequest)
	}

	oldRef := ""
	if isBlobRef(board.Data) {
		oldRef = board.Data
	}

	if blobs == nil || len(data) <= inlinePayloadLimit {
		board.Data = data
	} else {
		key, err := blobs.Put(ctx, []byte(data))
		if err != nil {
			return "", err
		}
		board.Data = blobRefPrefix + key
	}
	return oldRef, nil
}

// resolvePayload replaces a blob reference in board.Data with the
// stored payload so clients never see the reference scheme.
func resolvePayload(ctx context.Context, blobs core.BlobStore, board *core.Board) error {
	if !isBlobRef(board.Data) {
		return nil
	}
	if blobs == nil {
		return core.ErrUnavailable
	}
	data, err := blobs.Get(ctx, strings.TrimPrefix(board.Data, blobRefPrefix))
	if err != nil {
		return err
	}
	board.Data = string(data)
	return nil
}

// releaseRef frees the blob behind a reference once no board row
// points at it. A non-reference value is a no-op.
func releaseRef(ctx context.Context, blobs core.BlobStore, ref string) error {
	if blobs == nil || !isBlobRef(ref) {
		return nil
	}
	return blobs.Delete(ctx, strings.TrimPrefix(ref, blobRefPrefix))
}
