package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/therealutkarshpriyadarshi/watchswap/internal/config"
	"github.com/therealutkarshpriyadarshi/watchswap/pkg/models"
)

// ErrUnreachable is returned when the transport reports that the recipient
// can no longer be messaged
var ErrUnreachable = errors.New("recipient unreachable")

// IsUnreachable reports whether err means the recipient cannot be messaged
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}

// DeliveryError reports a non-success response from the gateway
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Body)
}

// Unwrap maps statuses that mean the user blocked or left to ErrUnreachable
func (e *DeliveryError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusForbidden, http.StatusNotFound, http.StatusGone:
		return ErrUnreachable
	}
	return nil
}

// Gateway posts notifications to the chat transport
type Gateway struct {
	client *http.Client
	url    string
	secret string
}

// NewGateway creates a gateway client
func NewGateway(cfg config.GatewayConfig) *Gateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{
		client: &http.Client{Timeout: timeout},
		url:    cfg.URL,
		secret: cfg.Secret,
	}
}

// Deliver sends one notification and waits for the transport to accept it
func (g *Gateway) Deliver(ctx context.Context, n *models.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "WatchSwap-Notifier/1.0")
	req.Header.Set("X-Notification-Kind", n.Kind)
	req.Header.Set("X-Notification-ID", n.ID)
	if g.secret != "" {
		req.Header.Set("X-Signature", generateSignature(payload, g.secret))
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &DeliveryError{StatusCode: resp.StatusCode, Body: string(body)}
}

// generateSignature generates an HMAC-SHA256 signature for payload
func generateSignature(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
