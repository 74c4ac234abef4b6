package blobstore

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store, dir
}

// Property: storing the same bytes twice yields the same hash and path,
// isNew=false the second time, and exactly one file on disk.
func TestProperty_PutDeduplicatesByContent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("identical_content_stored_once", prop.ForAll(
		func(content []byte, nameA, nameB string) bool {
			if len(content) == 0 || nameA == "" || nameB == "" {
				return true
			}

			dir, err := os.MkdirTemp("", "blobstore_test_*")
			if err != nil {
				return false
			}
			defer os.RemoveAll(dir)

			store, err := New(dir)
			if err != nil {
				return false
			}

			first, err := store.Put(nameA, "application/octet-stream", content)
			if err != nil || !first.New {
				return false
			}

			// Different display name, same bytes
			second, err := store.Put(nameB, "text/plain", content)
			if err != nil {
				return false
			}
			if second.New || second.Hash != first.Hash || second.Path != first.Path {
				return false
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				return false
			}
			return len(entries) == 1
		},
		gen.SliceOf(gen.UInt8()),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// Property: TotalSize after Delete equals TotalSize before minus the
// blob's byte length; deleting a nonexistent path changes nothing.
func TestProperty_TotalSizeAccounting(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("delete_decreases_total_by_blob_size", prop.ForAll(
		func(contents [][]byte) bool {
			dir, err := os.MkdirTemp("", "blobstore_size_test_*")
			if err != nil {
				return false
			}
			defer os.RemoveAll(dir)

			store, err := New(dir)
			if err != nil {
				return false
			}

			var paths []string
			sizes := make(map[string]int64)
			for _, content := range contents {
				if len(content) == 0 {
					continue
				}
				res, err := store.Put("file.dat", "application/octet-stream", content)
				if err != nil {
					return false
				}
				if res.New {
					paths = append(paths, res.Path)
					sizes[res.Path] = res.Size
				}
			}

			// Deleting a path that was never stored is a no-op
			before := store.TotalSize()
			if err := store.Delete(filepath.Join(dir, "0000000000000000000000000000000000000000000000000000000000000000.bin")); err != nil {
				return false
			}
			if store.TotalSize() != before {
				return false
			}

			for _, path := range paths {
				before := store.TotalSize()
				if err := store.Delete(path); err != nil {
					return false
				}
				if store.TotalSize() != before-sizes[path] {
					return false
				}
			}

			return store.TotalSize() == 0
		},
		gen.SliceOf(gen.SliceOf(gen.UInt8())),
	))

	properties.TestingRun(t)
}

func TestPutArgumentErrors(t *testing.T) {
	store, _ := newTestStore(t)

	if _, err := store.Put("a.txt", "text/plain", nil); err != ErrEmptyContent {
		t.Errorf("Put(nil) = %v, want ErrEmptyContent", err)
	}
	if _, err := store.Put("a.txt", "text/plain", []byte{}); err != ErrEmptyContent {
		t.Errorf("Put(empty) = %v, want ErrEmptyContent", err)
	}
	if _, err := store.Put("", "text/plain", []byte("x")); err != ErrEmptyName {
		t.Errorf("Put with empty name = %v, want ErrEmptyName", err)
	}
	if _, err := store.Put("   ", "text/plain", []byte("x")); err != ErrEmptyName {
		t.Errorf("Put with blank name = %v, want ErrEmptyName", err)
	}
}

func TestOpenReadErrors(t *testing.T) {
	store, dir := newTestStore(t)

	if _, err := store.OpenRead(""); err != ErrInvalidPath {
		t.Errorf("OpenRead(\"\") = %v, want ErrInvalidPath", err)
	}
	if _, err := store.OpenRead(filepath.Join(dir, "missing.bin")); err != ErrBlobNotFound {
		t.Errorf("OpenRead(missing) = %v, want ErrBlobNotFound", err)
	}
}

func TestOpenReadRoundtrip(t *testing.T) {
	store, _ := newTestStore(t)

	content := []byte("attachment payload")
	res, err := store.Put("report.pdf", "application/pdf", content)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if filepath.Ext(res.Path) != ".pdf" {
		t.Errorf("extension not preserved: %s", res.Path)
	}

	reader, err := store.OpenRead(res.Path)
	if err != nil {
		t.Fatalf("OpenRead failed: %v", err)
	}
	defer reader.Close()

	got, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("read back %q, want %q", got, content)
	}
}

func TestIndexRebuiltOnOpen(t *testing.T) {
	store, dir := newTestStore(t)

	res, err := store.Put("data.bin", "", []byte("hello world"))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Re-open the same directory: the blob must be resident without rewriting
	reopened, err := New(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if reopened.TotalSize() != int64(len("hello world")) {
		t.Errorf("TotalSize after reopen = %d, want %d", reopened.TotalSize(), len("hello world"))
	}

	again, err := reopened.Put("other-name.txt", "text/plain", []byte("hello world"))
	if err != nil {
		t.Fatalf("Put after reopen failed: %v", err)
	}
	if again.New {
		t.Error("blob re-written after reopen, want dedup against rescanned index")
	}
	if again.Path != res.Path {
		t.Errorf("path changed after reopen: %s != %s", again.Path, res.Path)
	}
}

func TestConcurrentPutIdenticalContent(t *testing.T) {
	store, dir := newTestStore(t)

	content := []byte("raced payload")
	const workers = 8
	results := make(chan PutResult, workers)
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		go func() {
			res, err := store.Put("race.bin", "application/octet-stream", content)
			results <- res
			errs <- err
		}()
	}

	newCount := 0
	for i := 0; i < workers; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if res := <-results; res.New {
			newCount++
		}
	}

	if newCount != 1 {
		t.Errorf("%d writers reported New, want exactly 1", newCount)
	}
	if store.TotalSize() != int64(len(content)) {
		t.Errorf("TotalSize = %d, want %d", store.TotalSize(), len(content))
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("%d files on disk, want 1", len(entries))
	}
}
