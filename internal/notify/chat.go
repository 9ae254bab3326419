// Package notify posts attendance notifications to the chat service.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/techvaseegrah/gymsaas-sub001/internal/attendance"
)

// Chat sends system messages through the chat service REST API.
type Chat struct {
	BaseURL string
	HTTP    *http.Client
}

// NewChat creates a chat client.
func NewChat(baseURL string) *Chat {
	return &Chat{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

type systemMessage struct {
	RecipientID string `json:"recipientId"`
	Kind        string `json:"kind"`
	Text        string `json:"text"`
}

// Text renders the notification for a punch event.
func Text(evt attendance.Event) string {
	when := evt.At.Format("15:04")
	var msg string
	switch {
	case evt.Late:
		msg = fmt.Sprintf("Hi %s, your check-out for %s was recorded late at %s.", evt.FighterName, evt.Date, when)
	case evt.Action == attendance.ActionIn:
		msg = fmt.Sprintf("Hi %s, you checked in at %s.", evt.FighterName, when)
	default:
		msg = fmt.Sprintf("Hi %s, you checked out at %s.", evt.FighterName, when)
	}
	if evt.Missed {
		msg += " Your previous session had no check-out."
	}
	return msg
}

// PunchRecorded notifies the fighter about a committed punch.
func (c *Chat) PunchRecorded(ctx context.Context, evt attendance.Event) error {
	body, err := json.Marshal(systemMessage{RecipientID: evt.FighterID, Kind: "attendance", Text: Text(evt)})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/messages/system", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("chat service error %s: %s", resp.Status, string(b))
	}
	return nil
}
