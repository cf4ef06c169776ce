package repositories

import (
	"context"
	"io"
)

// AudioStore holds recorded utterances on disk for the duration of one turn
type AudioStore interface {
	// Save writes data to a new, uniquely named file and returns its path
	Save(ctx context.Context, data []byte) (string, error)
	Open(path string) (io.ReadCloser, error)
	// Remove deletes the file. A file that is already gone is not an error.
	Remove(path string) error
}
