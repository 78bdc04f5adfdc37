// Package storage holds message attachments and profile avatars in
// S3-compatible object storage and hands back the file metadata the
// entity model embeds in direct messages.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"studyhive/pkg/domain"
	"studyhive/pkg/oid"
)

// Attachment download links stay valid long enough for a chat session.
const defaultLinkExpiry = 24 * time.Hour

// AttachmentStore uploads attachments and produces presigned download
// URLs for the stored objects.
type AttachmentStore interface {
	UploadAttachment(ctx context.Context, conversationID oid.ID, name string, r io.Reader, size int64, contentType string) (domain.FileMeta, error)
	UploadAvatar(ctx context.Context, userID oid.ID, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// MinioStore implements AttachmentStore for MinIO/S3 compatible storage.
type MinioStore struct {
	client     *minio.Client
	bucket     string
	linkExpiry time.Duration
}

// NewMinioStore connects to MinIO and ensures the bucket exists.
func NewMinioStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &MinioStore{client: client, bucket: bucket, linkExpiry: defaultLinkExpiry}, nil
}

// UploadAttachment stores an attachment under the owning conversation and
// returns the complete file metadata for the message record.
func (m *MinioStore) UploadAttachment(ctx context.Context, conversationID oid.ID, name string, r io.Reader, size int64, contentType string) (domain.FileMeta, error) {
	if size <= 0 {
		return domain.FileMeta{}, fmt.Errorf("attachment size required")
	}
	key := path.Join("attachments", conversationID.String(), oid.New().String()+"-"+path.Base(name))
	if _, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return domain.FileMeta{}, fmt.Errorf("put attachment: %w", err)
	}
	url, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.linkExpiry, nil)
	if err != nil {
		return domain.FileMeta{}, fmt.Errorf("presign attachment: %w", err)
	}
	return domain.FileMeta{URL: url.String(), Name: path.Base(name), Size: size}, nil
}

// UploadAvatar stores a user avatar and returns its presigned URL.
func (m *MinioStore) UploadAvatar(ctx context.Context, userID oid.ID, r io.Reader, size int64, contentType string) (string, error) {
	key := path.Join("avatars", userID.String())
	if _, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("put avatar: %w", err)
	}
	url, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.linkExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign avatar: %w", err)
	}
	return url.String(), nil
}

// Delete removes an object.
func (m *MinioStore) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
