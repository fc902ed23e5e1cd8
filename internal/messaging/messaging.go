// Package messaging delivers message text to a recipient through the chat
// service. The chat transport itself lives outside this repository.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/crucial707/coach-scheduler/internal/models"
)

// Sender sends one message to one recipient. Implementations must honour ctx
// and return an error when the chat service does not confirm delivery.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is one outbound chat message.
type Message struct {
	ScheduleID string
	OwnerID    string
	Recipient  models.Recipient
	Content    string
}

// HTTPSender posts messages as JSON to a chat service webhook.
type HTTPSender struct {
	URL    string
	Token  string
	Client *http.Client
}

// NewHTTPSender returns an HTTPSender whose requests time out after timeout.
func NewHTTPSender(url, token string, timeout time.Duration) *HTTPSender {
	return &HTTPSender{
		URL:    url,
		Token:  token,
		Client: &http.Client{Timeout: timeout},
	}
}

type sendRequest struct {
	ScheduleID  string `json:"schedule_id"`
	CoachID     string `json:"coach_id"`
	RecipientID string `json:"recipient_id"`
	ChatID      string `json:"chat_id"`
	Text        string `json:"text"`
}

// Send implements Sender.
func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(sendRequest{
		ScheduleID:  msg.ScheduleID,
		CoachID:     msg.OwnerID,
		RecipientID: msg.Recipient.ID.String(),
		ChatID:      msg.Recipient.ChatID,
		Text:        msg.Content,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("chat service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("chat service: status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	return nil
}

// LogSender only logs messages. Used when no chat service is configured.
type LogSender struct {
	Logger *slog.Logger
}

// Send implements Sender.
func (s LogSender) Send(ctx context.Context, msg Message) error {
	s.Logger.InfoContext(ctx, "message send (log only)",
		"schedule_id", msg.ScheduleID,
		"recipient_id", msg.Recipient.ID,
		"chars", len(msg.Content))
	return nil
}
