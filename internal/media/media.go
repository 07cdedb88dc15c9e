// Package media stores receipt and avatar images in a blob backend and
// derives their public URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"roomsplit/internal/core"
)

// Backend is the blob store underneath Store. Delete returns an error
// matching core.ErrNotFound when nothing exists at the path.
type Backend interface {
	Put(ctx context.Context, objectPath, contentType string, r io.Reader) error
	Delete(ctx context.Context, objectPath string) error
	URL(objectPath string) string
}

// File is an upload waiting to be stored.
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// Object identifies a stored blob.
type Object struct {
	URL  string
	Path string
}

// Store namespaces uploads by owner and wraps backend failures.
type Store struct {
	backend Backend
	now     func() time.Time
}

func NewStore(b Backend) *Store {
	return &Store{backend: b, now: time.Now}
}

// Store writes a receipt under receipts/{owner}/{unix millis}_{name}.
func (s *Store) Store(ctx context.Context, ownerID string, f File) (Object, error) {
	p := ReceiptPath(ownerID, s.now(), f.Name)
	return s.put(ctx, p, f)
}

// StoreAvatar writes a profile picture under avatars/{owner}/{name},
// replacing any previous upload with the same name.
func (s *Store) StoreAvatar(ctx context.Context, ownerID string, f File) (Object, error) {
	p := path.Join("avatars", safeSegment(ownerID), safeName(f.Name))
	return s.put(ctx, p, f)
}

func (s *Store) put(ctx context.Context, p string, f File) (Object, error) {
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	if err := s.backend.Put(ctx, p, ct, f.Body); err != nil {
		return Object{}, &core.StorageError{Op: "store", Path: p, Err: err}
	}
	slog.InfoContext(ctx, "Stored media object", "path", p, "content_type", ct)
	return Object{URL: s.backend.URL(p), Path: p}, nil
}

// Remove deletes the object at path. A missing object is not an error.
func (s *Store) Remove(ctx context.Context, objectPath string) error {
	if objectPath == "" {
		return nil
	}
	err := s.backend.Delete(ctx, objectPath)
	switch {
	case err == nil:
		slog.InfoContext(ctx, "Removed media object", "path", objectPath)
		return nil
	case errors.Is(err, core.ErrNotFound):
		slog.InfoContext(ctx, "Media object already absent", "path", objectPath)
		return nil
	default:
		return &core.StorageError{Op: "remove", Path: objectPath, Err: err}
	}
}

// ResolveURL derives the public URL of a stored path.
func (s *Store) ResolveURL(objectPath string) string {
	return s.backend.URL(objectPath)
}

// ReceiptPath builds the storage path of a receipt uploaded at t.
func ReceiptPath(ownerID string, t time.Time, name string) string {
	return path.Join("receipts", safeSegment(ownerID), fmt.Sprintf("%d_%s", t.UnixMilli(), safeName(name)))
}

// OwnedBy reports whether objectPath lives in ownerID's namespace.
func OwnedBy(objectPath, ownerID string) bool {
	clean := path.Clean(objectPath)
	if clean != objectPath || strings.Contains(objectPath, "..") {
		return false
	}
	parts := strings.Split(clean, "/")
	return len(parts) == 3 &&
		(parts[0] == "receipts" || parts[0] == "avatars") &&
		parts[1] == safeSegment(ownerID)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func safeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "_" {
		return "upload"
	}
	return name
}

func safeSegment(s string) string {
	s = unsafeChars.ReplaceAllString(s, "_")
	if s == "" {
		return "_"
	}
	return s
}
