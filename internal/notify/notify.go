// Package notify sends outbound messages to users through the chat
// transport, either directly or via the queued outbox.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/therealutkarshpriyadarshi/watchswap/internal/logging"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/metrics"
	"github.com/therealutkarshpriyadarshi/watchswap/pkg/models"
)

// Notifier sends a notification. Implementations that deliver synchronously
// return ErrUnreachable when the recipient cannot be reached.
type Notifier interface {
	Notify(ctx context.Context, n *models.Notification) error
}

// Deliverer hands a notification to the transport
type Deliverer interface {
	Deliver(ctx context.Context, n *models.Notification) error
}

// Publisher queues a notification for later delivery
type Publisher interface {
	Publish(ctx context.Context, n *models.Notification) error
}

// New builds a notification with a fresh id
func New(userID int64, kind string, payload map[string]interface{}) *models.Notification {
	return &models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

// Router delivers proof_submitted synchronously, since the caller must
// know whether the owner can be reached, and queues every other kind
type Router struct {
	gateway   Deliverer
	publisher Publisher
	logger    *logging.Logger
}

// NewRouter creates a router. A nil publisher delivers every kind directly.
func NewRouter(gateway Deliverer, publisher Publisher, logger *logging.Logger) *Router {
	return &Router{
		gateway:   gateway,
		publisher: publisher,
		logger:    logger.WithComponent("notify"),
	}
}

// Notify routes n by kind
func (r *Router) Notify(ctx context.Context, n *models.Notification) error {
	if n.Kind == models.NotificationProofSubmitted || r.publisher == nil {
		err := r.gateway.Deliver(ctx, n)
		metrics.RecordNotification(n.Kind, deliveryStatus(err))
		r.logger.LogDelivery(n.Kind, n.UserID, err)
		return err
	}

	if err := r.publisher.Publish(ctx, n); err != nil {
		r.logger.WithError(err).WithUserID(n.UserID).Warn("Outbox unavailable, delivering directly")
		err = r.gateway.Deliver(ctx, n)
		metrics.RecordNotification(n.Kind, deliveryStatus(err))
		r.logger.LogDelivery(n.Kind, n.UserID, err)
		return err
	}
	metrics.RecordNotification(n.Kind, "queued")
	return nil
}

// DeliveryHandler returns an outbox consumer that hands each notification
// to gateway. Unreachable recipients are dropped since a retry cannot
// reach them either. Other failures are returned for the queue to retry.
func DeliveryHandler(gateway Deliverer, logger *logging.Logger) func(ctx context.Context, n *models.Notification) error {
	logger = logger.WithComponent("delivery")
	return func(ctx context.Context, n *models.Notification) error {
		err := gateway.Deliver(ctx, n)
		metrics.RecordNotification(n.Kind, deliveryStatus(err))
		logger.LogDelivery(n.Kind, n.UserID, err)
		if IsUnreachable(err) {
			return nil
		}
		return err
	}
}

func deliveryStatus(err error) string {
	switch {
	case err == nil:
		return "delivered"
	case IsUnreachable(err):
		return "unreachable"
	default:
		return "failed"
	}
}

// Recorder is an in-memory Notifier. Deliveries to users marked
// unreachable fail with ErrUnreachable.
type Recorder struct {
	mu          sync.Mutex
	sent        []*models.Notification
	unreachable map[int64]bool
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{unreachable: make(map[int64]bool)}
}

// SetUnreachable makes deliveries to userID fail
func (r *Recorder) SetUnreachable(userID int64, unreachable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unreachable[userID] = unreachable
}

// Notify records n
func (r *Recorder) Notify(ctx context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unreachable[n.UserID] {
		return &DeliveryError{StatusCode: 403, Body: "bot was blocked by the user"}
	}
	r.sent = append(r.sent, n)
	return nil
}

// Sent returns every recorded notification in order
func (r *Recorder) Sent() []*models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Notification, len(r.sent))
	copy(out, r.sent)
	return out
}

// For returns the notifications sent to userID
func (r *Recorder) For(userID int64) []*models.Notification {
	var out []*models.Notification
	for _, n := range r.Sent() {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// Kinds returns the kinds sent to userID in order
func (r *Recorder) Kinds(userID int64) []string {
	var kinds []string
	for _, n := range r.For(userID) {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

// Reset forgets every recorded notification
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
