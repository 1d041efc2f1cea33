package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalGateway stores blobs on the local filesystem under root/<folder>/<key>.
type LocalGateway struct {
	root string
}

// NewLocalGateway creates the root directory if needed and returns the gateway.
func NewLocalGateway(root string) (*LocalGateway, error) {
	if root == "" {
		return nil, fmt.Errorf("upload directory is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("cannot initialize storage directory: %w", err)
	}
	return &LocalGateway{root: root}, nil
}

func (g *LocalGateway) Save(folder, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("cannot store an empty file")
	}

	dir := filepath.Join(g.root, sanitizeFolder(folder))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", err
	}

	key := newObjectKey(filename)
	if err := os.WriteFile(filepath.Join(dir, key), data, 0o600); err != nil {
		return "", err
	}
	return key, nil
}

func (g *LocalGateway) Load(folder, key string) ([]byte, error) {
	if !validObjectKey(key) {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(g.root, sanitizeFolder(folder), key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (g *LocalGateway) Delete(folder, key string) error {
	if !validObjectKey(key) {
		return nil
	}
	err := os.Remove(filepath.Join(g.root, sanitizeFolder(folder), key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// newObjectKey generates an opaque collision-free key, keeping only the
// extension of the original filename. The key is never derived from user
// input so crafted filenames cannot traverse paths or collide.
func newObjectKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 10 || strings.ContainsAny(ext, "/\\") {
		ext = ""
	}
	return uuid.New().String() + ext
}

// validObjectKey rejects anything that does not look like a generated key.
func validObjectKey(key string) bool {
	if key == "" || len(key) > 64 {
		return false
	}
	for _, r := range key {
		ok := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || r == '-' || r == '.'
		if !ok {
			return false
		}
	}
	return !strings.Contains(key, "..")
}

func sanitizeFolder(folder string) string {
	return filepath.Base(strings.TrimSpace(folder))
}
