package eventbus

import (
	"context"
	"sync"
)

// Publisher sends raw messages to the broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// Routing keys of the subscription domain events.
const (
	SubscriptionCreated     = "subscription.created"
	SubscriptionCancelled   = "subscription.cancelled"
	SubscriptionReactivated = "subscription.reactivated"
	SubscriptionPlanChanged = "subscription.plan_changed"
	SubscriptionTrialEnded  = "subscription.trial_ended"
	SubscriptionExpired     = "subscription.expired"
	SubscriptionRenewed     = "subscription.renewed"
	InvoiceCreated          = "invoice.created"
	InvoicePaid             = "invoice.paid"
)

// Message is a published message as seen by a Recorder.
type Message struct {
	RoutingKey string
	Payload    []byte
}

// Recorder keeps published messages in memory. Used in tests and local runs.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Publish(_ context.Context, routingKey string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{RoutingKey: routingKey, Payload: append([]byte(nil), payload...)})
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// RoutingKeys returns the routing keys in publish order.
func (r *Recorder) RoutingKeys() []string {
	msgs := r.Messages()
	keys := make([]string, 0, len(msgs))
	for _, m := range msgs {
		keys = append(keys, m.RoutingKey)
	}
	return keys
}
