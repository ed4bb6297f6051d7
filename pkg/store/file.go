// Package store provides DocumentStore backends: plain JSON files on disk,
// a SQLite table, and an in-memory map for tests.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"embed-resolver/pkg/interfaces"
	"embed-resolver/pkg/logging"
	"embed-resolver/pkg/types"
)

// fileNames maps document keys to their on-disk names. Other keys are
// stored as <key>.json.
var fileNames = map[string]string{
	types.ConfigDocumentKey: "config.json",
	types.CacheDocumentKey:  "video_cache.json",
}

// FileStore keeps each document as an indented JSON file in one directory.
// Files stay human-readable and can be edited by hand while the service is
// stopped.
type FileStore struct {
	dir string
	log *logging.Logger
}

// NewFileStore creates the data directory if needed.
func NewFileStore(dir string, log *logging.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating data dir: %w", types.ErrStorage, err)
	}
	return &FileStore{
		dir: dir,
		log: log.WithComponent("file-store"),
	}, nil
}

// Path returns the file backing key.
func (s *FileStore) Path(key string) string {
	name, ok := fileNames[key]
	if !ok {
		name = key + ".json"
	}
	return filepath.Join(s.dir, name)
}

// Read decodes the document into dst. A missing or blank file leaves dst as is.
func (s *FileStore) Read(ctx context.Context, key string, dst any) error {
	if err := validKey(key); err != nil {
		return err
	}
	path := s.Path(key)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: reading %s: %w", types.ErrStorage, path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: decoding %s: %w", types.ErrStorage, path, err)
	}
	return nil
}

// documentMode keeps the JSON files readable and editable by hand.
const documentMode os.FileMode = 0o644

// Write replaces the document. It writes a temp file in the same directory
// and renames it over the old one.
func (s *FileStore) Write(ctx context.Context, key string, doc any) error {
	if err := validKey(key); err != nil {
		return err
	}
	path := s.Path(key)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %w", types.ErrStorage, key, err)
	}

	tmpFile, err := os.CreateTemp(s.dir, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %w", types.ErrStorage, err)
	}
	tmpPath := tmpFile.Name()

	if err := tmpFile.Chmod(documentMode); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: setting mode on %s: %w", types.ErrStorage, key, err)
	}

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: writing %s: %w", types.ErrStorage, key, err)
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: closing temp file: %w", types.ErrStorage, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: renaming %s: %w", types.ErrStorage, path, err)
	}

	s.log.Debug("document written", "key", key, "path", path, "bytes", len(data))
	return nil
}

// validKey rejects names that would escape the data directory.
func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return fmt.Errorf("%w: invalid document key %q", types.ErrStorage, key)
	}
	return nil
}

var _ interfaces.DocumentStore = (*FileStore)(nil)
