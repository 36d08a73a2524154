package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/bloghub/apiserver/internal/storage"
	"github.com/bloghub/apiserver/types"
)

// ErrStorageDisabled is returned when no object-storage backend is
// configured for attachments.
var ErrStorageDisabled = errors.New("object storage is not configured")

// AttachmentRepository defines persistence operations for attachment metadata.
type AttachmentRepository interface {
	ListByPost(ctx context.Context, postID int) ([]types.Attachment, error)
	Get(ctx context.Context, id int) (types.Attachment, error)
	Create(ctx context.Context, attachment types.Attachment) (types.Attachment, error)
	Delete(ctx context.Context, id int) error
}

// AttachmentService stores attachment bytes in object storage and their
// metadata in the database. The storage backend may be nil, in which case
// every mutating operation fails with ErrStorageDisabled.
type AttachmentService struct {
	repo    AttachmentRepository
	storage storage.ObjectStorage
}

func NewAttachmentService(repo AttachmentRepository, backend storage.ObjectStorage) *AttachmentService {
	return &AttachmentService{repo: repo, storage: backend}
}

func (s *AttachmentService) ListByPost(ctx context.Context, postID int) ([]types.Attachment, error) {
	return s.repo.ListByPost(ctx, postID)
}

func (s *AttachmentService) Get(ctx context.Context, id int) (types.Attachment, error) {
	return s.repo.Get(ctx, id)
}

// Upload writes the file to object storage and records its metadata. If the
// metadata insert fails the stored object is removed again, best effort.
func (s *AttachmentService) Upload(ctx context.Context, postID int, filename, contentType string, data []byte) (types.Attachment, error) {
	if s.storage == nil {
		return types.Attachment{}, ErrStorageDisabled
	}

	key := objectKey(postID, filename)
	if err := s.storage.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return types.Attachment{}, err
	}

	attachment, err := s.repo.Create(ctx, types.Attachment{
		PostID:      postID,
		ObjectKey:   key,
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
	})
	if err != nil {
		_ = s.storage.Delete(ctx, key)
		return types.Attachment{}, err
	}
	return attachment, nil
}

// Open returns the attachment metadata and a reader over its bytes.
func (s *AttachmentService) Open(ctx context.Context, id int) (types.Attachment, io.ReadCloser, error) {
	if s.storage == nil {
		return types.Attachment{}, nil, ErrStorageDisabled
	}

	attachment, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Attachment{}, nil, err
	}

	reader, err := s.storage.Get(ctx, attachment.ObjectKey)
	if err != nil {
		return types.Attachment{}, nil, err
	}
	return attachment, reader, nil
}

// Delete removes the stored object, then the metadata row. A missing object
// does not block deleting the row.
func (s *AttachmentService) Delete(ctx context.Context, id int) error {
	if s.storage == nil {
		return ErrStorageDisabled
	}

	attachment, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	_ = s.storage.Delete(ctx, attachment.ObjectKey)
	return s.repo.Delete(ctx, id)
}

func objectKey(postID int, filename string) string {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("posts/%d/%s-%s", postID, hex.EncodeToString(buf[:]), path.Base(filename))
}
