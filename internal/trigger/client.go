package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// APIError is returned for non-2xx responses from the trigger service.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("trigger %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client talks to a QStash-compatible HTTP API.
type Client struct {
	// BaseURL of the trigger service, e.g. https://qstash.upstash.io.
	BaseURL string
	// Token authenticates this service against the trigger service.
	Token string
	// Destination is the absolute URL of the processing endpoint.
	Destination string
	// Secret is forwarded as the bearer credential of every firing.
	Secret string

	HTTP *http.Client
	Now  func() time.Time
}

// NewClient returns a Client with a bounded HTTP timeout.
func NewClient(baseURL, token, destination, secret string) *Client {
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Token:       token,
		Destination: destination,
		Secret:      secret,
		HTTP:        &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// RegisterOnce publishes a delayed message.
func (c *Client) RegisterOnce(ctx context.Context, p Payload, fireAt time.Time) (Handle, error) {
	headers := map[string]string{
		"Upstash-Delay": strconv.FormatInt(delaySeconds(fireAt, c.now()), 10) + "s",
	}
	var out struct {
		MessageID string `json:"messageId"`
	}
	if err := c.do(ctx, "publish", http.MethodPost, "/v2/publish/"+c.Destination, p, headers, &out); err != nil {
		return "", err
	}
	if out.MessageID == "" {
		return "", fmt.Errorf("trigger publish: response without messageId")
	}
	return NewHandle(KindMessage, out.MessageID), nil
}

// RegisterRecurring creates a cron schedule.
func (c *Client) RegisterRecurring(ctx context.Context, p Payload, cronExpr string) (Handle, error) {
	headers := map[string]string{"Upstash-Cron": cronExpr}
	var out struct {
		ScheduleID string `json:"scheduleId"`
	}
	if err := c.do(ctx, "schedule", http.MethodPost, "/v2/schedules/"+c.Destination, p, headers, &out); err != nil {
		return "", err
	}
	if out.ScheduleID == "" {
		return "", fmt.Errorf("trigger schedule: response without scheduleId")
	}
	return NewHandle(KindSchedule, out.ScheduleID), nil
}

// Cancel deletes the message or schedule behind h. A 404 means it is
// already gone.
func (c *Client) Cancel(ctx context.Context, h Handle) error {
	if h == "" {
		return nil
	}
	kind, id, err := h.Parse()
	if err != nil {
		return err
	}
	path := "/v2/messages/" + id
	if kind == KindSchedule {
		path = "/v2/schedules/" + id
	}
	err = c.do(ctx, "cancel", http.MethodDelete, path, nil, nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, headers map[string]string, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("trigger %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Secret != "" && method == http.MethodPost {
		req.Header.Set("Upstash-Forward-Authorization", "Bearer "+c.Secret)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("trigger %s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("trigger %s: decode response: %w", op, err)
		}
	}
	return nil
}
