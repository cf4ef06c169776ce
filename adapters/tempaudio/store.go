// Package tempaudio keeps recorded utterances as short-lived files so the
// transcription provider can read them as a stream.
package tempaudio

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/genui-relay/domain/repositories"
)

const (
	filePrefix = "voice-"
	fileSuffix = ".webm"
)

// FileStore implements repositories.AudioStore on the local file system
type FileStore struct {
	dir    string
	logger *zap.Logger
}

var _ repositories.AudioStore = (*FileStore)(nil)

// NewFileStore creates a store rooted at dir; an empty dir uses os.TempDir()
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create temp audio dir: %w", err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Dir returns the directory files are written to
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Save(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.dir, filePrefix+uuid.NewString()+fileSuffix)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		// a partial file may have been created
		_ = s.Remove(path)
		return "", fmt.Errorf("failed to write temp audio: %w", err)
	}

	s.logger.Debug("Saved temp audio", zap.String("path", path), zap.Int("bytes", len(data)))
	return path, nil
}

func (s *FileStore) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open temp audio: %w", err)
	}
	return f, nil
}

func (s *FileStore) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temp audio: %w", err)
	}
	return nil
}

// Sweep removes voice files older than maxAge and returns how many were deleted
func (s *FileStore) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list temp audio dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// removed concurrently by its turn
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := s.Remove(filepath.Join(s.dir, name)); err != nil {
			s.logger.Warn("Failed to remove orphaned temp audio", zap.String("file", name), zap.Error(err))
			continue
		}
		removed++
	}
	return removed, nil
}
