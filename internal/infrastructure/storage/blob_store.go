package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// BlobStore is the attachment store used by file messages and avatars.
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	PublicURL(path string) string
}

var extensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"audio/mpeg":      ".mp3",
	"audio/ogg":       ".ogg",
	"audio/webm":      ".weba",
	"application/pdf": ".pdf",
}

// ObjectPath builds a unique object name under folder, e.g. chat/<conv>/<uuid>-20240501100000.pdf.
func ObjectPath(folder, contentType string, now time.Time) string {
	ext, ok := extensions[contentType]
	if !ok {
		ext = ".bin"
	}
	return fmt.Sprintf("%s/%s-%s%s", strings.Trim(folder, "/"), uuid.New().String(), now.Format("20060102150405"), ext)
}

// MemoryBlobStore keeps objects in memory. Used by the memory document store setup and tests.
type MemoryBlobStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]Object
}

type Object struct {
	Data        []byte
	ContentType string
}

func NewMemoryBlobStore(baseURL string) *MemoryBlobStore {
	if baseURL == "" {
		baseURL = "http://localhost/blobs"
	}
	return &MemoryBlobStore{baseURL: strings.TrimRight(baseURL, "/"), objects: make(map[string]Object)}
}

func (s *MemoryBlobStore) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	return nil
}

func (s *MemoryBlobStore) PublicURL(path string) string {
	return s.baseURL + "/" + path
}

func (s *MemoryBlobStore) Get(path string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[path]
	return obj, ok
}
