package eventbus

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/broxiva/subscriptions/pkg/config"
	"github.com/broxiva/subscriptions/pkg/logctx"
	"github.com/broxiva/subscriptions/pkg/tool"
)

// Envelope wraps every domain event on the wire.
type Envelope struct {
	EventID    string    `json:"event_id"`
	RoutingKey string    `json:"routing_key"`
	OccurredAt time.Time `json:"occurred_at"`
	TraceID    string    `json:"trace_id,omitempty"`
	Data       any       `json:"data"`
}

// Emitter is what services depend on to announce domain events.
type Emitter interface {
	Emit(ctx context.Context, routingKey string, data any)
}

const publishTimeout = 5 * time.Second

// Bus publishes events in the background. Publish failures are logged and
// never reach the caller.
type Bus struct {
	pub Publisher
	log *zap.SugaredLogger
	wg  sync.WaitGroup
}

func NewBus(pub Publisher, log *zap.SugaredLogger) *Bus {
	return &Bus{pub: pub, log: log}
}

func (b *Bus) Emit(ctx context.Context, routingKey string, data any) {
	env := Envelope{
		EventID:    tool.GenerateUUIDV7(),
		RoutingKey: routingKey,
		OccurredAt: time.Now().UTC(),
		TraceID:    logctx.TraceID(ctx),
		Data:       data,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		logctx.FromCtx(ctx, b.log).Errorw("failed to marshal event", "routing_key", routingKey, "err", err)
		return
	}

	ctx = logctx.Detach(ctx)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := b.pub.Publish(pctx, routingKey, payload); err != nil {
			logctx.FromCtx(ctx, b.log).Errorw("failed to publish event",
				"routing_key", routingKey, "event_id", env.EventID, "err", err)
		}
	}()
}

// Wait blocks until every emitted event was handed to the publisher.
func (b *Bus) Wait() { b.wg.Wait() }

func NewPublisher(cfg *config.Config, log *zap.SugaredLogger) (Publisher, error) {
	if cfg.RabbitMQ.URL == "" {
		log.Infow("rabbitmq url not set, domain events are dropped")
		return NewNoopPublisher(log), nil
	}
	return NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, log)
}

func registerClose(lc fx.Lifecycle, bus *Bus, pub Publisher) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			bus.Wait()
			return pub.Close()
		},
	})
}

var Module = fx.Options(
	fx.Provide(NewPublisher),
	fx.Provide(NewBus),
	fx.Provide(func(b *Bus) Emitter { return b }),
	fx.Invoke(registerClose),
)
