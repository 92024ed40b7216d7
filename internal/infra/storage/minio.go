package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// DefaultLinkExpiry is how long a presigned report link stays valid.
const DefaultLinkExpiry = 24 * time.Hour

type Store struct {
	client     *minio.Client
	bucketName string
	region     string
	expiry     time.Duration
}

// New buat koneksi MinIO
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool, expiry time.Duration) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, err
		}
	}
	if expiry <= 0 {
		expiry = DefaultLinkExpiry
	}

	return &Store{client: cli, bucketName: bucket, region: region, expiry: expiry}, nil
}

// PutReport uploads a rendered report and returns a presigned download link.
func (s *Store) PutReport(ctx context.Context, key string, data []byte) (string, time.Time, error) {
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType(key),
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("upload %s: %w", key, err)
	}

	// bucket private, jadi pakai presigned URL
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))
	expiresAt := time.Now().UTC().Add(s.expiry)
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, s.expiry, params)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), expiresAt, nil
}

// Check reports whether the bucket is reachable.
func (s *Store) Check(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}

// mimeType sederhana
func contentType(key string) string {
	switch path.Ext(key) {
	case ".pdf":
		return "application/pdf"
	case ".json":
		return "application/json"
	case ".html":
		return "text/html"
	}
	return "application/octet-stream"
}
