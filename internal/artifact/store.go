package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// Extension is appended to the artifact id to form the file name.
const Extension = ".png"

// ErrNotFound is returned when no artifact exists for an id, including ids
// that could never name a stored file.
var ErrNotFound = errors.New("artifact not found")

// ErrInvalidID is returned by Put for ids that cannot be stored.
var ErrInvalidID = errors.New("invalid artifact id")

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Artifact is a stored result.
type Artifact struct {
	ID       string
	Data     []byte
	ModTime  time.Time
	Location string
}

// Store is the contract shared by the gateway (read side) and the worker
// (write side).
type Store interface {
	Put(ctx context.Context, artifactID string, data []byte) (string, error)
	Get(ctx context.Context, artifactID string) (*Artifact, error)
	Location(artifactID string) string
}

// FileStore keeps artifacts under a single root directory.
type FileStore struct {
	root string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates root if needed and returns a store rooted there.
func NewFileStore(root string) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("artifact root directory cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Root returns the directory artifacts are written to.
func (s *FileStore) Root() string {
	return s.root
}

// Location returns the path an artifact with the given id is stored at.
// The result is only meaningful for valid ids.
func (s *FileStore) Location(artifactID string) string {
	return filepath.Join(s.root, artifactID+Extension)
}

// Put writes data for artifactID and returns its location. The file is
// written next to its final name and renamed into place, so readers see
// either nothing or the complete artifact.
func (s *FileStore) Put(ctx context.Context, artifactID string, data []byte) (string, error) {
	if !validID.MatchString(artifactID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, artifactID)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.root, "."+artifactID+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary artifact file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return "", fmt.Errorf("failed to sync artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to close artifact: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to set artifact permissions: %w", err)
	}

	location := s.Location(artifactID)
	if err := os.Rename(tmpName, location); err != nil {
		cleanup()
		return "", fmt.Errorf("failed to publish artifact: %w", err)
	}
	return location, nil
}

// Get reads the artifact for artifactID. Absent files and malformed ids
// both yield ErrNotFound.
func (s *FileStore) Get(ctx context.Context, artifactID string) (*Artifact, error) {
	if !validID.MatchString(artifactID) {
		return nil, ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	location := s.Location(artifactID)
	info, err := os.Stat(location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to stat artifact: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, ErrNotFound
	}

	data, err := os.ReadFile(location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	return &Artifact{
		ID:       artifactID,
		Data:     data,
		ModTime:  info.ModTime(),
		Location: location,
	}, nil
}
