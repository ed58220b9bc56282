package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrTooLarge = errors.New("file too large")

// Object describes a stored blob.
type Object struct {
	Key      string
	URL      string
	Name     string
	MimeType string
	Size     int64
}

// BlobStore persists uploaded files and hands back a public URL for them.
type BlobStore interface {
	Put(ctx context.Context, name, mimeType string, r io.Reader, maxBytes int64) (*Object, error)
}

// LocalStore keeps blobs in a directory served under baseURL.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Put streams r to disk under a random key. The original file name only
// contributes its extension. Writes beyond maxBytes fail with ErrTooLarge
// and leave nothing behind.
func (s *LocalStore) Put(ctx context.Context, name, mimeType string, r io.Reader, maxBytes int64) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := uuid.NewString() + safeExt(name)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if n > maxBytes {
		return nil, ErrTooLarge
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, key)); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	return &Object{
		Key:      key,
		URL:      s.baseURL + "/" + key,
		Name:     path.Base(filepath.ToSlash(name)),
		MimeType: mimeType,
		Size:     n,
	}, nil
}

// Handler serves stored blobs; mount it at the store's base URL.
func (s *LocalStore) Handler() http.Handler {
	return http.StripPrefix(s.baseURL+"/", http.FileServer(http.Dir(s.dir)))
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 10 {
		return ""
	}
	for _, c := range ext[1:] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
