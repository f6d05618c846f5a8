package filesystem

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"whiteboard-complete/core"
)

type fsStore struct {
	basePath string
}

// NewStore creates a filesystem-backed blob store for board payloads.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

// validKey reports whether key is a ULID minted by Put. Anything else,
// path separators and ".." included, never reaches the filesystem.
func validKey(key string) bool {
	_, err := ulid.Parse(key)
	return err == nil
}

func (s *fsStore) Put(ctx context.Context, data []byte) (string, error) {
	key := ulid.Make().String()
	path := filepath.Join(s.basePath, key)

	if err := os.WriteFile(path, data, 0644); err != nil {
		logrus.WithError(err).WithField("blob_key", key).Error("Failed to write blob")
		return "", core.ErrUnavailable
	}

	logrus.WithFields(logrus.Fields{"blob_key": key, "size": len(data)}).Debug("Blob written")
	return key, nil
}

func (s *fsStore) Get(ctx context.Context, key string) ([]byte, error) {
	if !validKey(key) {
		return nil, core.ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.basePath, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrNotFound
		}
		logrus.WithError(err).WithField("blob_key", key).Error("Failed to read blob")
		return nil, core.ErrUnavailable
	}
	return data, nil
}

func (s *fsStore) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return core.ErrNotFound
	}
	err := os.Remove(filepath.Join(s.basePath, key))
	if err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).WithField("blob_key", key).Error("Failed to delete blob")
		return core.ErrUnavailable
	}
	return nil
}
