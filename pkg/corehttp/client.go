package corehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/o4o-platform/signage-agent/internal/constants"
	"github.com/o4o-platform/signage-agent/internal/models"
)

// Envelope is the normalized Core response shape. Transport-level failures
// are reshaped into a failed envelope so callers branch on Success alone.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// CoreHTTPClient defines the fallback (non-realtime) transport to Core.
type CoreHTTPClient interface {
	SetDisplayID(displayID string)
	Post(ctx context.Context, path string, body any) Envelope
	Get(ctx context.Context, path string) Envelope
	RegisterDisplay(ctx context.Context, req models.RegistrationRequest) Envelope
	SendHeartbeat(ctx context.Context, payload models.HeartbeatPayload) Envelope
	ReportActionStatus(ctx context.Context, update models.ActionStatusUpdate) Envelope
	FetchPendingActions(ctx context.Context, displayID string) Envelope
}

// Client talks to Core over plain HTTP. Used for registration and as the
// fallback path when the realtime socket is unavailable.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger

	mu        sync.RWMutex
	displayID string
}

// NewClient creates a Core HTTP client bound to the given base URL.
func NewClient(baseURL string, connectionTimeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: connectionTimeout,
		},
		logger: logger,
	}
}

// SetDisplayID records the display ID attached to all subsequent requests.
func (c *Client) SetDisplayID(displayID string) {
	c.mu.Lock()
	c.displayID = displayID
	c.mu.Unlock()
}

// Post sends a JSON body to the given path and returns the normalized envelope.
func (c *Client) Post(ctx context.Context, path string, body any) Envelope {
	payload, err := json.Marshal(body)
	if err != nil {
		return failed(fmt.Errorf("failed to serialize request body: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return failed(err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

// Get fetches the given path and returns the normalized envelope.
func (c *Client) Get(ctx context.Context, path string) Envelope {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return failed(err)
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) Envelope {
	c.mu.RLock()
	if c.displayID != "" {
		req.Header.Set(constants.DisplayIDHeader, c.displayID)
	}
	c.mu.RUnlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", req.URL.String()).Msg("Core HTTP request failed")
		return failed(err)
	}
	defer resp.Body.Close()

	var envelope Envelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		c.logger.Warn().Err(err).Int("status", resp.StatusCode).Msg("Failed to decode Core response")
		return failed(fmt.Errorf("invalid response from Core (status %d): %w", resp.StatusCode, err))
	}

	if !envelope.Success && envelope.Error == "" {
		envelope.Error = fmt.Sprintf("request failed with status %d", resp.StatusCode)
	}
	return envelope
}

// RegisterDisplay posts the registration handshake.
func (c *Client) RegisterDisplay(ctx context.Context, req models.RegistrationRequest) Envelope {
	return c.Post(ctx, constants.RegisterEndpoint, req)
}

// SendHeartbeat posts a heartbeat payload over the fallback path.
func (c *Client) SendHeartbeat(ctx context.Context, payload models.HeartbeatPayload) Envelope {
	return c.Post(ctx, constants.HeartbeatEndpoint, payload)
}

// ReportActionStatus posts one action status transition.
func (c *Client) ReportActionStatus(ctx context.Context, update models.ActionStatusUpdate) Envelope {
	path := fmt.Sprintf(constants.ActionStatusEndpoint, update.ActionExecutionID)
	body := map[string]string{"status": string(update.Status)}
	if update.ErrorMessage != "" {
		body["errorMessage"] = update.ErrorMessage
	}
	return c.Post(ctx, path, body)
}

// FetchPendingActions polls actions queued while the agent was offline.
func (c *Client) FetchPendingActions(ctx context.Context, displayID string) Envelope {
	return c.Get(ctx, constants.PendingActionsEndpoint+"?displayId="+displayID)
}

func failed(err error) Envelope {
	return Envelope{Success: false, Error: err.Error()}
}
