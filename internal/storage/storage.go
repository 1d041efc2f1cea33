// Package storage provides durable blob persistence for uploaded files.
package storage

import (
	"errors"
	"fmt"

	"github.com/replate/replate-backend/internal/config"
)

// Folders used by the application.
const (
	FolderAnnouncements = "announcements"
	FolderUsers         = "users"
)

// ErrNotFound is returned by Load when the key does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Gateway is the narrow blob-persistence contract. Keys are opaque and
// generated by the gateway, never derived from caller input. Delete is
// idempotent: removing a missing key is not an error.
type Gateway interface {
	// Save stores data under folder and returns the generated key.
	// filename is only consulted for its extension.
	Save(folder, filename string, data []byte) (string, error)

	// Load returns the bytes stored under folder/key, or ErrNotFound.
	Load(folder, key string) ([]byte, error)

	// Delete removes folder/key. Deleting a missing key succeeds.
	Delete(folder, key string) error
}

// New builds the gateway selected by STORAGE_DRIVER.
func New(cfg *config.Config) (Gateway, error) {
	switch cfg.StorageDriver {
	case "s3":
		return NewS3Gateway(S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Endpoint:  cfg.S3Endpoint,
		})
	case "local", "":
		return NewLocalGateway(cfg.UploadDir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}
