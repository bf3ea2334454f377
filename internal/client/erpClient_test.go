package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"meal-order-backend/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer erp-key", r.Header.Get("Authorization"))
		assert.Equal(t, "ord-1:abc", r.Header.Get("Idempotency-Key"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"version":"1.1"}`, string(body))
		_, _ = w.Write([]byte(`{"id":"SO-1001"}`))
	}))
	defer srv.Close()

	c := NewErpClient(&config.Export{ErpURL: srv.URL, ApiKey: "erp-key", RatePerSec: 100})
	id, err := c.PushOrder(context.Background(), "ord-1", "abc", []byte(`{"version":"1.1"}`))
	require.NoError(t, err)
	assert.Equal(t, "SO-1001", id)
}

func TestPushOrderFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewErpClient(&config.Export{ErpURL: srv.URL, RatePerSec: 100})
	_, err := c.PushOrder(context.Background(), "ord-1", "abc", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=503")

	_, err = NewErpClient(&config.Export{}).PushOrder(context.Background(), "ord-1", "abc", []byte(`{}`))
	assert.Error(t, err)
}
