package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/seiixin/gunwadex/internal/config"
)

// ErrNotFound is returned by Open when the key does not exist
var ErrNotFound = errors.New("attachment not found")

// AttachmentStore persists chat attachments under caller-derived keys.
// Implementations must be safe for concurrent use.
type AttachmentStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Ensure both backends implement AttachmentStore
var (
	_ AttachmentStore = (*S3Store)(nil)
	_ AttachmentStore = (*LocalStore)(nil)
)

// New builds the store selected by STORAGE_BACKEND
func New(ctx context.Context, cfg config.StorageConfig) (AttachmentStore, error) {
	switch cfg.Backend {
	case "s3":
		return NewS3Store(ctx, cfg.AWSRegion, cfg.Bucket)
	case "local", "":
		return NewLocalStore(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// ChatAttachmentKey derives the storage key of a chat attachment:
// chat/<conversation>/<message>_<unix seconds><lower-cased ext>
func ChatAttachmentKey(conversationID, messageID string, at time.Time, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("chat/%s/%s_%d%s", conversationID, messageID, at.Unix(), ext)
}

// ContentTypeFor returns the MIME type for a file extension
func ContentTypeFor(extension string) string {
	switch strings.ToLower(extension) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
