// Package store keeps snapshot record sets on disk.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/zappabad/stocksim/internal/snapshot"
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot saved")

// Store persists one record set, replacing the previous one on Save.
type Store interface {
	Save(ctx context.Context, recs []snapshot.Record) error
	Load(ctx context.Context) ([]snapshot.Record, error)
	Close() error
}

// Open returns the store for format at path.
func Open(format snapshot.Format, path string) (Store, error) {
	if format == snapshot.FormatSQLite {
		return OpenSQLite(path)
	}
	codec, err := snapshot.CodecFor(format)
	if err != nil {
		return nil, err
	}
	return NewFileStore(codec, path), nil
}

// FileStore writes a record set to a single file with a stream codec.
type FileStore struct {
	codec snapshot.Codec
	path  string
}

func NewFileStore(codec snapshot.Codec, path string) *FileStore {
	return &FileStore{codec: codec, path: path}
}

// Save writes to a temporary file next to the target and renames it into
// place, so a failed save keeps the previous snapshot.
func (s *FileStore) Save(ctx context.Context, recs []snapshot.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := s.codec.Encode(tmp, recs); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	log.Debug().Str("path", s.path).Int("records", len(recs)).Msg("snapshot written")
	return nil
}

func (s *FileStore) Load(ctx context.Context) ([]snapshot.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return s.codec.Decode(f)
}

func (s *FileStore) Close() error { return nil }
