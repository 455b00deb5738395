package storage

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// MemoryStorage implements ImageStorage in memory. The test suite uses
// it to observe uploads and deletions without a real bucket.
type MemoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte

	// Deleted records every public ID passed to Delete, in order.
	Deleted []string
	// FailUploads makes every Upload return an error.
	FailUploads bool
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte)}
}

// Upload stores the blob under a generated object name in folder.
func (s *MemoryStorage) Upload(_ context.Context, r io.Reader, folder string) (*StoredImage, error) {
	if s.FailUploads {
		return nil, fmt.Errorf("upload failed")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	objectName := folder + "/" + uuid.NewString()
	s.objects[objectName] = data
	return &StoredImage{URL: "memory://" + objectName, PublicID: objectName}, nil
}

// Delete removes the object and records the deletion.
func (s *MemoryStorage) Delete(_ context.Context, publicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, publicID)
	s.Deleted = append(s.Deleted, publicID)
	return nil
}

// Len returns the number of stored objects.
func (s *MemoryStorage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}
