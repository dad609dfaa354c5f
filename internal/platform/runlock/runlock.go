// Package runlock keeps two roll-forward runs from overlapping, across
// processes when Redis is configured and within the process otherwise.
package runlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/broxiva/subscriptions/pkg/config"
	"github.com/broxiva/subscriptions/pkg/tool"
)

// ErrHeld is returned by Acquire when another holder owns the lock.
var ErrHeld = errors.New("lock is held by another run")

// Release gives the lock back. It is safe to call after the TTL expired.
type Release func(ctx context.Context) error

type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// releaseScript deletes the key only while it still holds our token, so a run
// outliving its TTL cannot free a lock taken over by the next run.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis { return &Redis{client: client} }

func (l *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	token := tool.GenerateUUIDV7()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("failed to release lock %s: %w", key, err)
		}
		return nil
	}, nil
}

// Local is an in-process Locker. The TTL is ignored.
type Local struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocal() *Local { return &Local{held: map[string]bool{}} }

func (l *Local) Acquire(_ context.Context, key string, _ time.Duration) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, ErrHeld
	}
	l.held[key] = true
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
		return nil
	}, nil
}

// New connects to Redis when redis.url is set and falls back to Local.
func New(lc fx.Lifecycle, cfg *config.Config, log *zap.SugaredLogger) (Locker, error) {
	if cfg.Redis.URL == "" {
		log.Infow("redis url not set, using in-process run lock")
		return NewLocal(), nil
	}
	client, err := Connect(context.Background(), cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return client.Close() }})
	return NewRedis(client), nil
}

func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis not ready: %w", err)
	}
	return client, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
