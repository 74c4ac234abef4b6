package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrEmptyContent indicates nil or zero-length content was passed to Put
	ErrEmptyContent = errors.New("blobstore: content must not be empty")
	// ErrEmptyName indicates the display name was empty
	ErrEmptyName = errors.New("blobstore: display name must not be empty")
	// ErrInvalidPath indicates an empty storage path
	ErrInvalidPath = errors.New("blobstore: path must not be empty")
	// ErrBlobNotFound indicates no blob exists at the given path
	ErrBlobNotFound = errors.New("blobstore: blob not found")
	// ErrWriteFailed indicates a blob write failed
	ErrWriteFailed = errors.New("blobstore: failed to write blob")
)

// entry records one resident blob.
type entry struct {
	path string
	size int64
}

// Store is a content-addressable attachment store. Blobs are addressed by
// the sha256 hex digest of their full content, so byte-identical payloads
// map to one file regardless of display name or content type.
//
// The hash index is guarded by a mutex: the check-existing-else-write
// sequence must be atomic, or two concurrent stores of identical content
// would both write and corrupt the size accounting.
type Store struct {
	dir string

	mu        sync.Mutex
	byHash    map[string]entry
	totalSize int64
}

// PutResult reports where a payload lives and whether this call wrote it.
type PutResult struct {
	Path string
	Hash string
	Size int64
	New  bool
}

// New opens a store rooted at dir, creating it if needed and rebuilding
// the hash index from any blobs already on disk.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWriteFailed, err.Error())
	}

	s := &Store{
		dir:    dir,
		byHash: make(map[string]entry),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		hash := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if len(hash) != sha256.Size*2 {
			continue // not one of ours
		}
		s.byHash[hash] = entry{
			path: filepath.Join(dir, e.Name()),
			size: info.Size(),
		}
		s.totalSize += info.Size()
	}

	return s, nil
}

// Put stores content under its sha256 hash. If a blob with the same hash is
// already resident, the existing path is returned with New=false and nothing
// is written. The display name only contributes the file extension of the
// first write; later writers of identical content get the first path back.
func (s *Store) Put(displayName, contentType string, content []byte) (PutResult, error) {
	if len(content) == 0 {
		return PutResult{}, ErrEmptyContent
	}
	if strings.TrimSpace(displayName) == "" {
		return PutResult{}, ErrEmptyName
	}

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byHash[hash]; ok {
		return PutResult{Path: existing.path, Hash: hash, Size: existing.size, New: false}, nil
	}

	path := filepath.Join(s.dir, hash+extensionFor(displayName, contentType))
	if err := os.WriteFile(path, content, 0644); err != nil {
		return PutResult{}, fmt.Errorf("%w: %s", ErrWriteFailed, err.Error())
	}

	s.byHash[hash] = entry{path: path, size: int64(len(content))}
	s.totalSize += int64(len(content))

	return PutResult{Path: path, Hash: hash, Size: int64(len(content)), New: true}, nil
}

// OpenRead opens the blob at path for reading.
func (s *Store) OpenRead(path string) (io.ReadCloser, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrInvalidPath
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Delete removes the blob at path. Deleting a path that does not exist is
// a no-op, not an error.
func (s *Store) Delete(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrInvalidPath
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hash := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	existing, ok := s.byHash[hash]
	if !ok || existing.path != path {
		return nil
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}

	delete(s.byHash, hash)
	s.totalSize -= existing.size
	return nil
}

// TotalSize returns the byte length sum of all resident blobs.
func (s *Store) TotalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalSize
}

// Count returns the number of resident blobs.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byHash)
}

// extensionFor derives a file extension from the display name, falling back
// to the content type and then to a generic suffix.
func extensionFor(displayName, contentType string) string {
	if ext := filepath.Ext(filepath.Base(displayName)); ext != "" && ext != "." {
		return ext
	}
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return "." + strings.TrimPrefix(contentType, "image/")
	case contentType == "application/pdf":
		return ".pdf"
	case strings.HasPrefix(contentType, "text/"):
		return ".txt"
	default:
		return ".bin"
	}
}
