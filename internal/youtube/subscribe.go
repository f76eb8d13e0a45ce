package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Subscriber asks a hub to deliver a topic's notifications to a callback
type Subscriber struct {
	HubURL      string
	CallbackURL string
	HTTPClient  *http.Client
}

// Subscribe requests a subscription to topic. The hub verifies it
// asynchronously with a GET to the callback.
func (s *Subscriber) Subscribe(ctx context.Context, topic string) error {
	return s.request(ctx, "subscribe", topic)
}

// Unsubscribe ends a subscription to topic
func (s *Subscriber) Unsubscribe(ctx context.Context, topic string) error {
	return s.request(ctx, "unsubscribe", topic)
}

func (s *Subscriber) request(ctx context.Context, mode, topic string) error {
	form := url.Values{
		"hub.mode":     {mode},
		"hub.topic":    {topic},
		"hub.callback": {s.CallbackURL},
		"hub.verify":   {"async"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.HubURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("hub %s rejected (status %d): %s", mode, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
