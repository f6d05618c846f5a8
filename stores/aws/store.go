package aws

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"whiteboard-complete/core"
)

type s3Store struct {
	s3Client *s3.Client
	bucket   string
}

// NewStore creates an S3-backed blob store for board payloads.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}
}

func (s *s3Store) Put(ctx context.Context, data []byte) (string, error) {
	key := ulid.Make().String()

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		logrus.WithError(err).WithField("blob_key", key).Error("Failed to upload blob")
		return "", core.ErrUnavailable
	}

	logrus.WithFields(logrus.Fields{"blob_key": key, "size": len(data)}).Debug("Blob uploaded")
	return key, nil
}

// validKey reports whether key is a ULID minted by Put; nothing else
// is addressable in the bucket.
func validKey(key string) bool {
	_, err := ulid.Parse(key)
	return err == nil
}

func (s *s3Store) Get(ctx context.Context, key string) ([]byte, error) {
	if !validKey(key) {
		return nil, core.ErrNotFound
	}
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, core.ErrNotFound
		}
		logrus.WithError(err).WithField("blob_key", key).Error("Failed to get blob")
		return nil, core.ErrUnavailable
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.ErrUnavailable
	}
	return data, nil
}

func (s *s3Store) Delete(ctx context.Context, key string) error {
	if !validKey(key) {
		return core.ErrNotFound
	}
	_, err := s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		logrus.WithError(err).WithField("blob_key", key).Error("Failed to delete blob")
		return core.ErrUnavailable
	}
	return nil
}
