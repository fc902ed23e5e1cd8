// Package apiclient is the CLI's HTTP client for the scheduler API.
package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/crucial707/coach-scheduler/cmd/cli/config"
)

// Error is a non-2xx API response.
type Error struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return fmt.Sprintf("API error (%d): %s: %s", e.Status, e.Message, strings.Join(parts, "; "))
}

// Client calls the API with a bearer credential.
type Client struct {
	BaseURL string
	Bearer  string
	HTTP    *http.Client
}

// ForCoach returns a client authenticated with the saved coach token.
func ForCoach() (*Client, error) {
	token, err := config.Token()
	if err != nil || token == "" {
		return nil, fmt.Errorf("no coach token: run \"coachctl login --token <jwt>\" or set COACH_TOKEN")
	}
	return New(config.APIURL(), token), nil
}

// ForOperator returns a client authenticated with PROCESS_SECRET.
func ForOperator() (*Client, error) {
	secret := config.ProcessSecret()
	if secret == "" {
		return nil, fmt.Errorf("PROCESS_SECRET is not set")
	}
	return New(config.APIURL(), secret), nil
}

// New returns a client for baseURL.
func New(baseURL, bearer string) *Client {
	return &Client{BaseURL: baseURL, Bearer: bearer, HTTP: &http.Client{Timeout: 30 * time.Second}}
}

// Do sends body as JSON (when non-nil) and decodes the response into out
// (when non-nil).
func (c *Client) Do(method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.Bearer)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error  string            `json:"error"`
			Fields map[string]string `json:"fields"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &Error{Status: resp.StatusCode, Message: e.Error, Fields: e.Fields}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
