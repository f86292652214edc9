package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
var ErrNotFound = os.ErrNotExist

// CurrentName is the blob holding the name of the most recently published
// artifact.
const CurrentName = "CURRENT"

// Store is a flat namespace of immutable blobs.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Put writes a blob atomically, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names that start with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a stored blob.
type Blob interface {
	io.Closer
	// ReadAt reads len(p) bytes at off, with io.ReaderAt semantics.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// Size returns the size of the blob in bytes.
	Size() int64
}

// Mappable is implemented by blobs that can expose their content directly.
type Mappable interface {
	// Bytes returns the content. The slice is valid until the Blob is closed.
	Bytes() ([]byte, error)
}

// ReadAll returns a copy of the whole blob.
func ReadAll(ctx context.Context, b Blob) ([]byte, error) {
	if m, ok := b.(Mappable); ok {
		data, err := m.Bytes()
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), data...), nil
	}

	size := b.Size()
	buf := make([]byte, size)
	n, err := b.ReadAt(ctx, buf, 0)
	if err != nil && !(errors.Is(err, io.EOF) && int64(n) == size) {
		return nil, err
	}
	if int64(n) != size {
		return nil, fmt.Errorf("blobstore: short read: %d of %d bytes", n, size)
	}
	return buf, nil
}

// Get opens name, reads it fully and closes it.
func Get(ctx context.Context, s Store, name string) ([]byte, error) {
	b, err := s.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	return ReadAll(ctx, b)
}

// Publish writes data under name and then points CurrentName at it.
func Publish(ctx context.Context, s Store, name string, data []byte) error {
	if name == CurrentName {
		return fmt.Errorf("blobstore: %q is reserved", CurrentName)
	}
	if err := s.Put(ctx, name, data); err != nil {
		return err
	}
	return s.Put(ctx, CurrentName, []byte(name))
}

// Current resolves CurrentName and returns the name and content of the
// artifact it points at.
func Current(ctx context.Context, s Store) (string, []byte, error) {
	ptr, err := Get(ctx, s, CurrentName)
	if err != nil {
		return "", nil, err
	}
	name := string(ptr)
	data, err := Get(ctx, s, name)
	if err != nil {
		return "", nil, fmt.Errorf("blobstore: resolve %s -> %s: %w", CurrentName, name, err)
	}
	return name, data, nil
}
