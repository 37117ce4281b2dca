package storage

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Storage defines the contract for document persistence backends.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Write stores data with the given key, replacing any previous value.
	Write(ctx context.Context, key string, data []byte) error

	// Read retrieves data for the given key.
	// Returns os.ErrNotExist if the key does not exist.
	Read(ctx context.Context, key string) ([]byte, error)

	// List returns keys matching the given prefix, sorted alphabetically descending.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data for the given key.
	// Returns nil if the key does not exist (idempotent).
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the storage backend.
	Close() error
}

const (
	TypeFilesystem = "filesystem"
	TypeBlob       = "blob"
	TypeSQLite     = "sqlite"
)

// supportedBlobSchemes lists the URL schemes supported by blob storage
var supportedBlobSchemes = []string{"gs://", "s3://", "azblob://", "file://"}

// Config selects and configures a storage backend
type Config struct {
	Type       string
	Dir        string
	BlobBucket string
	BlobPrefix string
	SQLitePath string
}

// New creates a storage backend based on the configuration
func New(ctx context.Context, l *zap.Logger, c Config) (Storage, error) {
	// Warn about ignored blob config
	if c.Type != TypeBlob && (c.BlobBucket != "" || c.BlobPrefix != "") {
		l.Warn("blob storage flags are set but storage type is not 'blob'; blob config will be ignored",
			zap.String("type", c.Type),
			zap.String("blob_bucket", c.BlobBucket),
			zap.String("blob_prefix", c.BlobPrefix),
		)
	}

	switch c.Type {
	case TypeBlob:
		if c.BlobBucket == "" {
			return nil, fmt.Errorf("blob bucket URL is required when storage type is 'blob' (supported schemes: %s)", strings.Join(supportedBlobSchemes, ", "))
		}
		if !IsValidBlobScheme(c.BlobBucket) {
			return nil, fmt.Errorf("unsupported blob storage URL scheme in %q; supported schemes: %s", c.BlobBucket, strings.Join(supportedBlobSchemes, ", "))
		}
		l.Info("using blob storage",
			zap.String("bucket", c.BlobBucket),
			zap.String("prefix", c.BlobPrefix),
			zap.String("provider", DetectBlobProvider(c.BlobBucket)),
		)
		return NewBlobStorage(ctx, c.BlobBucket, c.BlobPrefix)
	case TypeSQLite:
		l.Info("using sqlite storage", zap.String("path", c.SQLitePath))
		return NewSQLiteStorage(ctx, c.SQLitePath)
	case TypeFilesystem, "":
		l.Info("using filesystem storage", zap.String("dir", c.Dir))
		return NewFilesystemStorage(c.Dir)
	default:
		return nil, fmt.Errorf("unknown storage type: %s (supported: filesystem, blob, sqlite)", c.Type)
	}
}

// IsValidBlobScheme checks if the bucket URL has a supported scheme
func IsValidBlobScheme(bucketURL string) bool {
	for _, scheme := range supportedBlobSchemes {
		if strings.HasPrefix(bucketURL, scheme) {
			return true
		}
	}
	return false
}

// DetectBlobProvider returns a human-readable provider name from the URL scheme
func DetectBlobProvider(bucketURL string) string {
	switch {
	case strings.HasPrefix(bucketURL, "gs://"):
		return "Google Cloud Storage"
	case strings.HasPrefix(bucketURL, "s3://"):
		return "AWS S3"
	case strings.HasPrefix(bucketURL, "azblob://"):
		return "Azure Blob Storage"
	case strings.HasPrefix(bucketURL, "file://"):
		return "Local Filesystem"
	default:
		return "unknown"
	}
}
