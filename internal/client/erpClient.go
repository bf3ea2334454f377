package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"meal-order-backend/internal/config"

	"golang.org/x/time/rate"
)

type ErpClient interface {
	// PushOrder sends one canonical snapshot and returns the id the ERP assigned to it.
	PushOrder(ctx context.Context, orderID, checksum string, payload []byte) (string, error)
}

type erpClientImpl struct {
	httpClient *http.Client
	url        string
	apiKey     string
	limiter    *rate.Limiter
}

func NewErpClient(cfg *config.Export) ErpClient {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	return &erpClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		url:     cfg.ErpURL,
		apiKey:  cfg.ApiKey,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (c *erpClientImpl) PushOrder(ctx context.Context, orderID, checksum string, payload []byte) (string, error) {
	if c.url == "" {
		return "", fmt.Errorf("erp url not configured")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for erp rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create erp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", orderID+":"+checksum)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("erp request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("erp push failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var res struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("decode erp response: %w", err)
	}
	return res.ID, nil
}
