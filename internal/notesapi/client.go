// Package notesapi is a thin client for the remote note-generation
// backend. The backend is an external collaborator: one opaque call, no
// retry, no streaming.
package notesapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Preference selects the requested note length.
type Preference string

const (
	PreferenceShort Preference = "short"
	PreferenceLong  Preference = "long"
)

// MaxTopicLength bounds the topic input.
const MaxTopicLength = 50

// ErrEmptyTopic is returned when no topic is supplied.
var ErrEmptyTopic = errors.New("topic must not be empty")

// Client calls the note-generation endpoint.
type Client struct {
	baseURL string
	hc      *http.Client
}

// NewClient creates a client for the backend at baseURL. Generation can
// be slow, hence the generous timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 120 * time.Second},
	}
}

type generateRequest struct {
	Topic      string `json:"topic"`
	Preference string `json:"preference"`
}

type generateResponse struct {
	PDFPath string `json:"pdf_path"`
	Error   string `json:"error"`
}

// Generate asks the backend for notes on the topic and returns the path
// of the produced PDF.
func (c *Client) Generate(ctx context.Context, topic string, pref Preference) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", ErrEmptyTopic
	}
	if len(topic) > MaxTopicLength {
		topic = topic[:MaxTopicLength]
	}

	body, err := json.Marshal(generateRequest{Topic: topic, Preference: string(pref)})
	if err != nil {
		return "", fmt.Errorf("failed to encode generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/generate_notes", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("note generation request failed: %w", err)
	}
	defer resp.Body.Close()

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode generation response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if out.Error != "" {
			return "", errors.New(out.Error)
		}
		return "", fmt.Errorf("note generation failed with status %d", resp.StatusCode)
	}

	if out.PDFPath == "" {
		if out.Error != "" {
			return "", errors.New(out.Error)
		}
		return "", errors.New("PDF path not found in response")
	}

	return out.PDFPath, nil
}
