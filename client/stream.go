package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	streamInitialBackoff = time.Second
	streamMaxBackoff     = 30 * time.Second
)

// Subscribe opens the SSE stream and reconnects with exponential backoff
// until ctx is cancelled. The channel closes only when ctx is done, so a
// broken connection shows up to consumers as nothing more than a delivery
// gap, which the poll loop already covers.
func (b *HTTPBackend) Subscribe(ctx context.Context) (<-chan Notification, error) {
	out := make(chan Notification, 16)
	go func() {
		defer close(out)
		backoff := streamInitialBackoff
		for {
			err := b.readStream(ctx, out)
			if ctx.Err() != nil {
				return
			}
			if err == nil {
				backoff = streamInitialBackoff
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > streamMaxBackoff {
				backoff = streamMaxBackoff
			}
		}
	}()
	return out, nil
}

func (b *HTTPBackend) readStream(ctx context.Context, out chan<- Notification) error {
	// EventSource cannot set headers, so the server also accepts the token
	// as a query parameter; use the same form here for parity.
	url := b.BaseURL + "/api/events?access_token=" + b.Token
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	client := b.StreamClient
	if client == nil {
		client = b.HTTPClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream: unexpected status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), 64*1024)

	var eventType, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data != "" {
				if n, ok := parseNotification(eventType, data); ok {
					select {
					case out <- n:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
			eventType, data = "", ""
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case strings.HasPrefix(line, ":"):
			// heartbeat comment
		}
	}
	return scanner.Err()
}

func parseNotification(eventType, data string) (Notification, bool) {
	var n Notification
	if err := json.Unmarshal([]byte(data), &n); err != nil {
		return Notification{}, false
	}
	if n.Category == "" {
		n.Category = eventType
	}
	if n.ConversationID == "" {
		return Notification{}, false
	}
	return n, true
}
