package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"uk.co.dudmesh.bitlink/internal/model"
)

const DefaultHubTimeout = 10 * time.Second

// Hub is the push-mode channel: each message is serialized and POSTed to
// the hub webhook with the shared secret header. There is no retry; a
// non-2xx response or timeout fails the delivery and the message is lost.
type Hub struct {
	url    string
	secret string
	client *http.Client
}

func NewHub(url string, secret string, timeout time.Duration) *Hub {
	if timeout <= 0 {
		timeout = DefaultHubTimeout
	}
	return &Hub{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
	}
}

func (h *Hub) Deliver(ctx context.Context, message *model.InboundMessage) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshalling message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building hub request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shared-Secret", h.secret)

	res, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to hub: %w", err)
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("hub returned status %d: %w", res.StatusCode, model.ErrorDeliveryFailure)
	}
	return nil
}
