package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"meal-order-backend/internal/config"
	"meal-order-backend/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer mail-key", r.Header.Get("Authorization"))

		var req mailSendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sam@example.com", req.Personalizations[0].To[0].Email)
		assert.Equal(t, "orders@example.com", req.From.Email)
		assert.Len(t, req.Content, 2)

		w.Header().Set("X-Message-Id", "msg-1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewEmailClient(&config.Email{ApiURL: srv.URL, ApiKey: "mail-key", FromAddress: "orders@example.com"}, logger.Discard())
	id, err := c.Send(context.Background(), &EmailMessage{To: "sam@example.com", Subject: "hi", HTML: "<p>hi</p>", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
}

func TestSendEmailWithoutKeyOnlyLogs(t *testing.T) {
	c := NewEmailClient(&config.Email{}, logger.Discard())
	id, err := c.Send(context.Background(), &EmailMessage{To: "sam@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}
