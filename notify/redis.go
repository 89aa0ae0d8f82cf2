package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ChannelPrefix namespaces the Redis pub/sub channels.
const ChannelPrefix = "touradmin:changed:"

// NewRedisClient connects to url, which may be a redis:// URL or a bare
// host:port, and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	opts.PoolSize = 20
	opts.MinIdleConns = 2
	opts.MaxRetries = 3

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Redis publishes change signals on Redis so other instances see writes
// made here, and relays their signals to local listeners.
type Redis struct {
	client *redis.Client
	hub    *Hub
	origin string

	mu      sync.Mutex
	pubsubs map[string]*redis.PubSub
	wg      sync.WaitGroup
}

// NewRedis wraps client. Local listeners are served from an in-process hub.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		client:  client,
		hub:     NewHub(),
		origin:  uuid.NewString(),
		pubsubs: make(map[string]*redis.PubSub),
	}
}

// Origin identifies this instance in published messages.
func (r *Redis) Origin() string { return r.origin }

// Notify signals local listeners at once and publishes the change for the
// other instances.
func (r *Redis) Notify(ctx context.Context, topic string) error {
	r.hub.Notify(ctx, topic)
	if err := r.client.Publish(ctx, ChannelPrefix+topic, r.origin).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Listen implements Notifier. Remote signals only arrive for topics passed to
// Relay.
func (r *Redis) Listen(topic string) (<-chan struct{}, func()) {
	return r.hub.Listen(topic)
}

// Relay subscribes to topic on Redis and forwards signals published by other
// instances to local listeners until Close.
func (r *Redis) Relay(ctx context.Context, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pubsubs[topic]; ok {
		return nil
	}
	ps := r.client.Subscribe(ctx, ChannelPrefix+topic)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	r.pubsubs[topic] = ps

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for msg := range ps.Channel() {
			if msg.Payload == r.origin {
				continue
			}
			r.hub.Notify(context.Background(), topic)
		}
	}()
	return nil
}

// Close stops every relay.
func (r *Redis) Close() error {
	r.mu.Lock()
	var firstErr error
	for topic, ps := range r.pubsubs {
		if err := ps.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.pubsubs, topic)
	}
	r.mu.Unlock()
	r.wg.Wait()
	return firstErr
}
