package face

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client calls the face recognition microservice.
type Client struct {
	BaseURL   string
	Threshold float64
	HTTP      *http.Client
}

// NewClient creates a client with a bounded timeout.
func NewClient(baseURL string, threshold float64) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Threshold: threshold,
		HTTP: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Match asks the service to identify a descriptor against its gallery.
func (c *Client) Match(ctx context.Context, descriptor []float64) (Match, error) {
	payload := map[string]any{"descriptor": descriptor}
	if c.Threshold > 0 {
		payload["threshold"] = c.Threshold
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Match{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/match", bytes.NewReader(body))
	if err != nil {
		return Match{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Match{}, fmt.Errorf("face service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Match{}, ErrNoMatch
	}
	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return Match{}, fmt.Errorf("face service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Matched   bool    `json:"matched"`
		FighterID string  `json:"fighter_id"`
		Distance  float64 `json:"distance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Match{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if !out.Matched || out.FighterID == "" {
		return Match{}, ErrNoMatch
	}
	return Match{FighterID: out.FighterID, Distance: out.Distance}, nil
}

// Health checks if the face service is available.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("face service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("face service unhealthy: %s", resp.Status)
	}

	return nil
}
