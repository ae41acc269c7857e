package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// StoredObject describes a blob after a successful put.
type StoredObject struct {
	Key         string
	URL         string
	Size        int64
	ContentType string
	// DurationSec is the playback length when the store reports one
	// (Duration-Sec user metadata written by the media pipeline).
	DurationSec *float64
}

// MinIOClient represents a MinIO client
type MinIOClient struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinIOClient creates a new MinIO client and makes sure the bucket exists.
func NewMinIOClient(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, publicURL string) (*MinIOClient, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, client.EndpointURL().Host)
	}

	slog.Info("Successfully connected to MinIO", "endpoint", endpoint, "bucket", bucket)
	return &MinIOClient{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Put uploads r under key. metadata is stored as user metadata on the object.
func (m *MinIOClient) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, metadata map[string]string) (StoredObject, error) {
	info, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: metadata,
	})
	if err != nil {
		return StoredObject{}, fmt.Errorf("failed to upload object %s: %w", key, err)
	}

	obj := StoredObject{
		Key:         key,
		URL:         m.ObjectURL(key),
		Size:        info.Size,
		ContentType: contentType,
	}
	if isTimedMedia(contentType) {
		stat, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
		if err != nil {
			slog.Warn("Failed to stat uploaded object", "key", key, "error", err)
		} else {
			obj.DurationSec = durationFromMetadata(stat.UserMetadata)
		}
	}
	return obj, nil
}

func isTimedMedia(contentType string) bool {
	return strings.HasPrefix(contentType, "audio/") || strings.HasPrefix(contentType, "video/")
}

// durationFromMetadata reads a positive Duration-Sec value, nil otherwise.
func durationFromMetadata(meta map[string]string) *float64 {
	for k, v := range meta {
		if !strings.EqualFold(k, "Duration-Sec") {
			continue
		}
		d, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || d <= 0 {
			return nil
		}
		return &d
	}
	return nil
}

func (m *MinIOClient) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %s: %w", key, err)
	}
	return nil
}

// ObjectURL builds the public URL of key.
func (m *MinIOClient) ObjectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", m.publicURL, m.bucket, key)
}
