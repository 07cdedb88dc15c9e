package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"roomsplit/internal/core"
)

func newTestClient(t *testing.T, key string, h http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), Options{
		APIKey: key,
		Model:  "test-model",
		Extra:  []option.ClientOption{option.WithHTTPClient(srv.Client()), option.WithEndpoint(srv.URL + "/")},
	})
	require.NoError(t, err)
	return c, &hits
}

func modelReply(text string) map[string]any {
	return map[string]any{
		"candidates": []any{map[string]any{
			"content": map[string]any{
				"role":  "model",
				"parts": []any{map[string]any{"text": text}},
			},
		}},
	}
}

func TestCategorizeSuccess(t *testing.T) {
	c, hits := newTestClient(t, "k", func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/test-model:generateContent"), r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "contents")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(modelReply(`{"category":"Groceries","confidence":0.9}`))
	})

	res, err := c.Categorize(context.Background(), "SuperMart", "milk, bread")
	require.NoError(t, err)
	assert.Equal(t, "Groceries", res.Category)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestCategorizeMissingKey(t *testing.T) {
	c, hits := newTestClient(t, "", func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected without a key")
	})

	_, err := c.Categorize(context.Background(), "SuperMart", "milk")
	var ce *core.CategorizationError
	require.True(t, errors.As(err, &ce))
	assert.True(t, ce.Auth)
	assert.Contains(t, err.Error(), "API key")
	assert.Zero(t, atomic.LoadInt32(hits))
}

func TestCategorizeErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		auth   bool
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"code":401,"message":"unauthenticated"}}`, true},
		{"forbidden", http.StatusForbidden, `{"error":{"code":403,"message":"permission denied"}}`, true},
		{"invalid key", http.StatusBadRequest, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key."}}`, true},
		{"server error", http.StatusInternalServerError, `{"error":{"code":500,"message":"internal"}}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, hits := newTestClient(t, "k", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.Categorize(context.Background(), "Shop", "things")
			var ce *core.CategorizationError
			require.True(t, errors.As(err, &ce), "got %v", err)
			assert.Equal(t, tc.auth, ce.Auth)
			// single attempt, no retry
			assert.Equal(t, int32(1), atomic.LoadInt32(hits))
		})
	}
}

func TestCategorizeMalformedOutput(t *testing.T) {
	for _, text := range []string{"not json", `{"category":"  "}`} {
		c, _ := newTestClient(t, "k", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(modelReply(text))
		})
		_, err := c.Categorize(context.Background(), "Shop", "things")
		var ce *core.CategorizationError
		require.True(t, errors.As(err, &ce), "text %q: got %v", text, err)
		assert.False(t, ce.Auth)
	}
}

func TestParseOutput(t *testing.T) {
	res, err := parseOutput("```json\n{\"category\":\"Dining\",\"confidence\":1.7}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Dining", res.Category)
	assert.Equal(t, 1.0, res.Confidence)

	res, err = parseOutput(`{"category":"Health","confidence":-2}`)
	require.NoError(t, err)
	assert.Zero(t, res.Confidence)
}
