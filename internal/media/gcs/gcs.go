// Package gcs stores media objects in a Google Cloud Storage bucket through
// the JSON API.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gstorage "google.golang.org/api/storage/v1"

	"roomsplit/internal/core"
)

const defaultPublicBase = "https://storage.googleapis.com"

type Backend struct {
	svc        *gstorage.Service
	bucket     string
	publicBase string
}

// New creates a backend writing to bucket. publicBase overrides the URL
// prefix used for links, e.g. a CDN in front of the bucket.
func New(ctx context.Context, bucket, publicBase string, opts ...option.ClientOption) (*Backend, error) {
	if bucket == "" {
		return nil, errors.New("gcs bucket is required")
	}
	svc, err := gstorage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	base := strings.TrimRight(publicBase, "/")
	if base == "" {
		base = defaultPublicBase + "/" + bucket
	}
	return &Backend{svc: svc, bucket: bucket, publicBase: base}, nil
}

func (b *Backend) Put(ctx context.Context, objectPath, contentType string, r io.Reader) error {
	obj := &gstorage.Object{Name: objectPath, ContentType: contentType}
	_, err := b.svc.Objects.Insert(b.bucket, obj).
		Media(r, googleapi.ContentType(contentType)).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("insert object: %w", err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, objectPath string) error {
	err := b.svc.Objects.Delete(b.bucket, objectPath).Context(ctx).Do()
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
		return core.ErrNotFound
	}
	return fmt.Errorf("delete object: %w", err)
}

func (b *Backend) URL(objectPath string) string {
	segs := strings.Split(objectPath, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return b.publicBase + "/" + strings.Join(segs, "/")
}
