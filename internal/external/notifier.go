package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// NotifierClient posts organizer notifications to the notification
// service. Failures are logged by callers and never block the payment
// flow.
type NotifierClient struct {
	baseURL    string
	httpClient *http.Client
}

type NotifierConfig struct {
	BaseURL string
	Timeout time.Duration
}

type OrganizerNotification struct {
	RegistrationID int64  `json:"registration_id"`
	UserID         int64  `json:"user_id"`
	Subject        string `json:"subject"`
	Message        string `json:"message"`
}

func NewNotifierClient(cfg NotifierConfig) *NotifierClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &NotifierClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (nc *NotifierClient) NotifyOrganizer(ctx context.Context, n OrganizerNotification) error {
	jsonBody, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		nc.baseURL+"/api/v1/notifications", bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := nc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}
