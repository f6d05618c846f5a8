package stores

import (
	"os"
	"whiteboard-complete/core"
	"whiteboard-complete/stores/aws"
	"whiteboard-complete/stores/filesystem"
	"whiteboard-complete/stores/memory"
	"whiteboard-complete/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// Store is the union of the board and user persistence interfaces; a
// single backend serves both so they share one database.
type Store interface {
	core.BoardStore
	core.UserStore
}

// GetStore selects the record store from STORAGE_TYPE.
func GetStore() Store {
	storageType := os.Getenv("STORAGE_TYPE")
	var store Store

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "whiteboard.db" // Default filename
		}
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewStore(dataSourceName)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}

// GetBlobStore selects the board payload blob backend from
// BLOB_STORAGE_TYPE. It returns nil when none is configured, in which
// case payloads of any size stay inline in the record store.
func GetBlobStore() core.BlobStore {
	storageType := os.Getenv("BLOB_STORAGE_TYPE")
	storageField := logrus.Fields{
		"blobStorageType": storageType,
	}

	switch storageType {
	case "filesystem":
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		if basePath == "" {
			basePath = "./data" // Default path
		}
		storageField["basePath"] = basePath
		logrus.WithFields(storageField).Info("Use blob storage")
		return filesystem.NewStore(basePath)
	case "s3":
		bucketName := os.Getenv("S3_BUCKET_NAME")
		if bucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 blob storage")
		}
		storageField["bucketName"] = bucketName
		logrus.WithFields(storageField).Info("Use blob storage")
		return aws.NewStore(bucketName)
	default:
		logrus.Info("No blob storage configured; board payloads stay inline")
		return nil
	}
}
