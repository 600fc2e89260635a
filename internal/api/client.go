// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"school-notifier/internal/models"
)

// HTTPError carries the backend's status and error body.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// Client is the thin persistence-sync client for the notification REST
// contract. A bearer credential is attached when available; its absence is
// tolerated and left for the server to reject.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
	}
}

// SetToken replaces the bearer credential, e.g. after re-authentication.
func (c *Client) SetToken(token string) {
	c.token = strings.TrimSpace(token)
}

// Fetch returns the persisted notification history for a scope.
func (c *Client) Fetch(ctx context.Context, scopeID string) ([]models.ServerRecord, error) {
	q := url.Values{}
	if scopeID != "" {
		q.Set("scopeId", scopeID)
	}
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/notifications?"+q.Encode(), nil, &raw); err != nil {
		return nil, err
	}

	// The backend returns either a bare array or a {notifications: [...]}
	// envelope depending on version.
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var records []models.ServerRecord
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("decode notification list: %w", err)
		}
		return records, nil
	}

	var envelope struct {
		Notifications []models.ServerRecord `json:"notifications"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode notification list: %w", err)
	}
	return envelope.Notifications, nil
}

// MarkRead persists the read flag for one notification.
func (c *Client) MarkRead(ctx context.Context, id, scopeID string) error {
	body := map[string]string{"scopeId": scopeID}
	path := fmt.Sprintf("/notifications/%s/read", url.PathEscape(id))
	return c.doJSON(ctx, http.MethodPut, path, body, nil)
}

// MarkAllRead persists the read flag for every notification in the scope.
func (c *Client) MarkAllRead(ctx context.Context, scopeID string) error {
	body := map[string]string{"scopeId": scopeID}
	return c.doJSON(ctx, http.MethodPut, "/notifications/read/all", body, nil)
}

// Delete removes one persisted notification.
func (c *Client) Delete(ctx context.Context, id, scopeID string) error {
	body := map[string]string{"scopeId": scopeID}
	path := fmt.Sprintf("/notifications/%s", url.PathEscape(id))
	return c.doJSON(ctx, http.MethodDelete, path, body, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeHTTPError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeHTTPError(resp *http.Response) error {
	httpErr := &HTTPError{StatusCode: resp.StatusCode, Message: resp.Status}
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		if body.Code != "" {
			httpErr.Code = body.Code
		}
		switch {
		case body.Message != "":
			httpErr.Message = body.Message
		case body.Error != "":
			httpErr.Message = body.Error
		}
	}
	return httpErr
}
