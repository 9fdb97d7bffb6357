package seen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// FileStore keeps the set as a JSON array in a local file.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// NewFileStore returns a FileStore for path.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("seen file path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, logger: logger}, nil
}

// Path returns the file location.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the set. Missing, empty, or malformed files yield an empty set.
func (f *FileStore) Load(ctx context.Context) (Set, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load seen file: %w", err)
	}
	// #nosec G304 -- path comes from operator configuration.
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		f.logger.Info("seen file missing; starting empty", zap.String("path", f.path))
		return Set{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seen file %s: %w", f.path, err)
	}
	return decodeTolerant(data, f.logger.With(zap.String("path", f.path))), nil
}

// Save writes the set atomically via a sibling temp file.
func (f *FileStore) Save(ctx context.Context, set Set) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("save seen file: %w", err)
	}
	data, err := Encode(set)
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create seen dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp seen file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write seen file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close seen file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace seen file %s: %w", f.path, err)
	}
	return nil
}

// decodeTolerant treats corrupt state as absence of state.
func decodeTolerant(data []byte, logger *zap.Logger) Set {
	if len(bytes.TrimSpace(data)) == 0 {
		logger.Info("seen state empty; starting empty")
		return Set{}
	}
	set, err := Decode(data)
	if err != nil {
		logger.Warn("seen state unreadable; starting empty", zap.Error(err))
		return Set{}
	}
	return set
}
