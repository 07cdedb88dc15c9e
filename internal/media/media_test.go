package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roomsplit/internal/core"
	"roomsplit/internal/media/local"
)

type failingBackend struct{ *local.Backend }

func (failingBackend) Delete(context.Context, string) error { return errors.New("permission denied") }

func TestStoreAndRemove(t *testing.T) {
	dir := t.TempDir()
	b, err := local.New(dir, "http://localhost:8080/media/")
	require.NoError(t, err)
	s := NewStore(b)
	s.now = func() time.Time { return time.UnixMilli(1700000000123) }
	ctx := context.Background()

	obj, err := s.Store(ctx, "user-1", File{Name: "../my receipt.jpg", ContentType: "image/jpeg", Body: strings.NewReader("img")})
	require.NoError(t, err)
	assert.Equal(t, "receipts/user-1/1700000000123_my_receipt.jpg", obj.Path)
	assert.Equal(t, "http://localhost:8080/media/receipts/user-1/1700000000123_my_receipt.jpg", obj.URL)
	assert.Equal(t, obj.URL, s.ResolveURL(obj.Path))

	data, err := os.ReadFile(filepath.Join(dir, "receipts", "user-1", "1700000000123_my_receipt.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "img", string(data))

	require.NoError(t, s.Remove(ctx, obj.Path))
	// already gone
	require.NoError(t, s.Remove(ctx, obj.Path))
	require.NoError(t, s.Remove(ctx, ""))
}

func TestStoreAvatar(t *testing.T) {
	b, err := local.New(t.TempDir(), "/media")
	require.NoError(t, err)
	s := NewStore(b)

	obj, err := s.StoreAvatar(context.Background(), "u2", File{Name: "me.png", Body: strings.NewReader("png")})
	require.NoError(t, err)
	assert.Equal(t, "avatars/u2/me.png", obj.Path)
	assert.Equal(t, "/media/avatars/u2/me.png", obj.URL)
}

func TestRemoveFailureIsStorageError(t *testing.T) {
	b, err := local.New(t.TempDir(), "/media")
	require.NoError(t, err)
	s := NewStore(failingBackend{b})

	err = s.Remove(context.Background(), "receipts/u/1_x.jpg")
	var se *core.StorageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "remove", se.Op)
}

func TestOwnedBy(t *testing.T) {
	assert.True(t, OwnedBy("receipts/u1/1_a.jpg", "u1"))
	assert.True(t, OwnedBy("avatars/u1/me.png", "u1"))
	assert.False(t, OwnedBy("receipts/u2/1_a.jpg", "u1"))
	assert.False(t, OwnedBy("receipts/u1/../u2/1_a.jpg", "u1"))
	assert.False(t, OwnedBy("other/u1/x", "u1"))
}
