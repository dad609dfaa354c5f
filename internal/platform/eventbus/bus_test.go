package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/broxiva/subscriptions/pkg/logctx"
)

func TestBus_EmitPublishesEnvelope(t *testing.T) {
	rec := NewRecorder()
	bus := NewBus(rec, zap.NewNop().Sugar())

	ctx := logctx.WithTraceID(context.Background(), "trace-1")
	bus.Emit(ctx, SubscriptionCreated, map[string]string{"id": "s1"})
	bus.Wait()

	msgs := rec.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, SubscriptionCreated, msgs[0].RoutingKey)

	var env struct {
		EventID    string            `json:"event_id"`
		RoutingKey string            `json:"routing_key"`
		TraceID    string            `json:"trace_id"`
		Data       map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &env))
	require.NotEmpty(t, env.EventID)
	require.Equal(t, "trace-1", env.TraceID)
	require.Equal(t, "s1", env.Data["id"])
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, []byte) error {
	return errors.New("broker down")
}
func (failingPublisher) Close() error { return nil }

func TestBus_PublishFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	bus := NewBus(failingPublisher{}, zap.New(core).Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	bus.Emit(ctx, InvoicePaid, struct{}{})
	cancel()
	bus.Wait()

	require.Equal(t, 1, logs.FilterMessage("failed to publish event").Len())
}
