package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"meal-order-backend/internal/config"
)

type EmailClient interface {
	Send(ctx context.Context, msg *EmailMessage) (string, error)
}

type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

type emailClientImpl struct {
	httpClient  *http.Client
	apiURL      string
	apiKey      string
	fromAddress string
	fromName    string
	logger      *slog.Logger
}

// NewEmailClient talks to a SendGrid-style v3 mail API. Without an api key messages are only logged.
func NewEmailClient(cfg *config.Email, logger *slog.Logger) EmailClient {
	return &emailClientImpl{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		apiURL:      cfg.ApiURL,
		apiKey:      cfg.ApiKey,
		fromAddress: cfg.FromAddress,
		fromName:    cfg.FromName,
		logger:      logger,
	}
}

type mailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailPersonalization struct {
	To []mailAddress `json:"to"`
}

type mailSendRequest struct {
	Personalizations []mailPersonalization `json:"personalizations"`
	From             mailAddress           `json:"from"`
	Subject          string                `json:"subject"`
	Content          []mailContent         `json:"content"`
}

func (c *emailClientImpl) Send(ctx context.Context, msg *EmailMessage) (string, error) {
	c.logger.InfoContext(ctx, "sending email", "to", msg.To, "subject", msg.Subject)

	if c.apiKey == "" {
		return fmt.Sprintf("msg_log_%d", time.Now().UnixNano()), nil
	}

	payload := mailSendRequest{
		Personalizations: []mailPersonalization{{To: []mailAddress{{Email: msg.To, Name: msg.ToName}}}},
		From:             mailAddress{Email: c.fromAddress, Name: c.fromName},
		Subject:          msg.Subject,
		Content: []mailContent{
			{Type: "text/plain", Value: msg.Text},
			{Type: "text/html", Value: msg.HTML},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal mail payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create mail request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("mail request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("mail send failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	return resp.Header.Get("X-Message-Id"), nil
}
