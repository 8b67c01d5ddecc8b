package narrative

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoice-reconciliation-service/internal/models"
	"invoice-reconciliation-service/pkg/errors"
)

func sampleRequest() *models.NarrativeRequest {
	return &models.NarrativeRequest{
		InvoiceNumber: "INV-1",
		InvoiceExists: true,
		Errors: []models.Finding{
			{Kind: models.KindDuplicateInvoice, Severity: models.SeverityCritical, Message: "duplicate"},
		},
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled())
	assert.NoError(t, cfg.Validate())

	cfg.URL = "ftp://example"
	assert.Error(t, cfg.Validate())

	cfg.URL = "https://narrative.internal/summarize"
	assert.NoError(t, cfg.Validate())

	cfg.Timeout = 0
	assert.Error(t, cfg.Validate())
}

func TestHTTPNarrator_Summarize(t *testing.T) {
	var got models.NarrativeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.NarrativeSummary{
			Summary:  "Duplicate submission",
			Errors:   []string{"duplicate"},
			Severity: "critical",
		})
	}))
	defer server.Close()

	n, err := NewHTTPNarrator(&Config{URL: server.URL, APIKey: "secret", Timeout: time.Second})
	require.NoError(t, err)

	summary, err := n.Summarize(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, "Duplicate submission", summary.Summary)
	assert.Equal(t, "critical", summary.Severity)
	assert.Equal(t, "INV-1", got.InvoiceNumber)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, models.KindDuplicateInvoice, got.Errors[0].Kind)
}

func TestHTTPNarrator_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		code    errors.ErrorCode
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "model overloaded", http.StatusInternalServerError)
			},
			code: errors.CodeNarrativeFailed,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
			code: errors.CodeNarrativeFailed,
		},
		{
			name: "slow service",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(time.Second):
				}
			},
			code: errors.CodeNarrativeTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			n, err := NewHTTPNarrator(&Config{URL: server.URL, Timeout: time.Second})
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			summary, err := n.Summarize(ctx, sampleRequest())
			require.Error(t, err)
			assert.Nil(t, summary)

			rerr, ok := errors.AsReconcilerError(err)
			require.True(t, ok)
			assert.Equal(t, errors.CategoryCollaborator, rerr.Category)
			assert.Equal(t, tt.code, rerr.Code)
		})
	}
}

func TestNewHTTPNarrator_RequiresURL(t *testing.T) {
	_, err := NewHTTPNarrator(DefaultConfig())
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

type memoryCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
	sets   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.data[key] = value
	return nil
}

type countingSummarizer struct {
	calls int
	err   error
}

func (s *countingSummarizer) Summarize(_ context.Context, req *models.NarrativeRequest) (*models.NarrativeSummary, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &models.NarrativeSummary{Summary: "summary for " + req.InvoiceNumber, Severity: "critical"}, nil
}

func TestCachedNarrator(t *testing.T) {
	ctx := context.Background()

	t.Run("second call served from cache", func(t *testing.T) {
		next := &countingSummarizer{}
		cache := newMemoryCache()
		n := NewCachedNarrator(next, cache, time.Minute)

		first, err := n.Summarize(ctx, sampleRequest())
		require.NoError(t, err)
		second, err := n.Summarize(ctx, sampleRequest())
		require.NoError(t, err)

		assert.Equal(t, 1, next.calls)
		assert.Equal(t, first, second)
		assert.Equal(t, "summary for INV-1", second.Summary)
	})

	t.Run("different requests use different keys", func(t *testing.T) {
		n := NewCachedNarrator(&countingSummarizer{}, newMemoryCache(), time.Minute)

		other := sampleRequest()
		other.InvoiceNumber = "INV-2"

		k1, err := n.Key(sampleRequest())
		require.NoError(t, err)
		k2, err := n.Key(other)
		require.NoError(t, err)

		assert.NotEqual(t, k1, k2)
		assert.Regexp(t, `^narrative:[0-9a-f]{64}$`, k1)
	})

	t.Run("cache errors degrade to a direct call", func(t *testing.T) {
		next := &countingSummarizer{}
		cache := newMemoryCache()
		cache.getErr = stderrors.New("redis down")
		cache.setErr = stderrors.New("redis down")
		n := NewCachedNarrator(next, cache, time.Minute)

		summary, err := n.Summarize(ctx, sampleRequest())
		require.NoError(t, err)
		assert.NotNil(t, summary)
		assert.Equal(t, 1, next.calls)
	})

	t.Run("failures are not cached", func(t *testing.T) {
		next := &countingSummarizer{err: stderrors.New("service down")}
		cache := newMemoryCache()
		n := NewCachedNarrator(next, cache, time.Minute)

		_, err := n.Summarize(ctx, sampleRequest())
		require.Error(t, err)
		assert.Zero(t, cache.sets)
	})

	t.Run("undecodable entry is replaced", func(t *testing.T) {
		next := &countingSummarizer{}
		cache := newMemoryCache()
		n := NewCachedNarrator(next, cache, time.Minute)

		key, err := n.Key(sampleRequest())
		require.NoError(t, err)
		cache.data[key] = []byte("{broken")

		summary, err := n.Summarize(ctx, sampleRequest())
		require.NoError(t, err)
		assert.Equal(t, "summary for INV-1", summary.Summary)
		assert.Equal(t, 1, next.calls)
	})
}

func TestRedisCache_Unreachable(t *testing.T) {
	_, err := NewRedisCache(context.Background(), RedisConfig{Addr: "127.0.0.1:1"})
	require.Error(t, err)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	cache := NewRedisCacheWithClient(client)
	defer cache.Close()

	assert.Error(t, cache.Ping(context.Background()))

	_, found, err := cache.Get(context.Background(), "narrative:x")
	assert.Error(t, err)
	assert.False(t, found)

	next := &countingSummarizer{}
	n := NewCachedNarrator(next, cache, time.Minute)
	summary, err := n.Summarize(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.NotNil(t, summary)
}
