package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vantage/internal/common"
	"github.com/ternarybob/vantage/internal/models"
)

func testConfig() common.CollectorConfig {
	return common.CollectorConfig{
		UserAgent:      "vantage-test",
		RequestTimeout: "5s",
		MaxRetries:     0,
		RateLimit:      "1ms",
		MaxBodySize:    1024 * 1024,
	}
}

func TestCollect_HTMLNormalizedToMarkdown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "vantage-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Acme Pricing</title><script>var x=1;</script></head>` +
			`<body><h1>Plans</h1><p>Starter plan is <strong>free</strong>.</p></body></html>`))
	}))
	defer server.Close()

	service := NewService(testConfig(), arbor.NewLogger())
	result, err := service.Collect(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "Acme Pricing", result.Title)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Contains(t, result.Content, "Plans")
	assert.Contains(t, result.Content, "**free**")
	assert.NotContains(t, result.Content, "var x=1")
	assert.False(t, result.CapturedAt.IsZero())
}

func TestCollect_PlainTextPassedThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("plain content"))
	}))
	defer server.Close()

	service := NewService(testConfig(), arbor.NewLogger())
	result, err := service.Collect(context.Background(), server.URL)

	require.NoError(t, err)
	assert.Equal(t, "plain content", result.Content)
	assert.Equal(t, int64(13), result.SizeBytes)
}

func TestCollect_ErrorStatusIsCollectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	service := NewService(testConfig(), arbor.NewLogger())
	result, err := service.Collect(context.Background(), server.URL)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, models.IsCode(err, models.ErrCollection))
}

func TestCollect_EmptyURL(t *testing.T) {
	service := NewService(testConfig(), arbor.NewLogger())
	_, err := service.Collect(context.Background(), "")

	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.ErrValidation))
}

func TestCollect_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer server.Close()

	service := NewService(testConfig(), arbor.NewLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := service.Collect(ctx, server.URL)
	require.Error(t, err)
	assert.True(t, models.IsCode(err, models.ErrCollection))
}

func TestCollect_BodySizeCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		for i := 0; i < 1000; i++ {
			w.Write([]byte("0123456789"))
		}
	}))
	defer server.Close()

	config := testConfig()
	config.MaxBodySize = 100
	service := NewService(config, arbor.NewLogger())

	result, err := service.Collect(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, int64(100), result.SizeBytes)
}
