// Package local is a filesystem media backend for development and
// single-host deployments. Files are served by the HTTP server under a
// public base URL.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"roomsplit/internal/core"
)

type Backend struct {
	root    string
	baseURL string
}

func New(root, baseURL string) (*Backend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &Backend{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root is the directory files are written to.
func (b *Backend) Root() string { return b.root }

func (b *Backend) resolve(objectPath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(objectPath))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	return filepath.Join(b.root, clean), nil
}

func (b *Backend) Put(ctx context.Context, objectPath, _ string, r io.Reader) error {
	full, err := b.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), full)
}

func (b *Backend) Delete(_ context.Context, objectPath string) error {
	full, err := b.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.ErrNotFound
		}
		return err
	}
	return nil
}

func (b *Backend) URL(objectPath string) string {
	return b.baseURL + "/" + strings.TrimLeft(objectPath, "/")
}
