package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisURL is used when neither env var is set.
const DefaultRedisURL = "redis://localhost:6379"

// ResolveRedisURL implements the documented precedence: REDIS_URL wins if
// set, else COMSRV_SERVICE_REDIS_URL, else the default.
func ResolveRedisURL() string {
	if v := os.Getenv("REDIS_URL"); v != "" {
		return v
	}
	if v := os.Getenv("COMSRV_SERVICE_REDIS_URL"); v != "" {
		return v
	}
	return DefaultRedisURL
}

// RedisBus is the KvBus backed by Redis GET/SET, and doubles as the
// CommandSubscriber transport via Redis pub/sub, one channel per comsrv
// channel id (topic "comsrv:commands:{channel_id}").
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(url string) (*RedisBus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("bus: parse redis url: %w", err)
	}
	return &RedisBus{client: redis.NewClient(opts)}, nil
}

func (r *RedisBus) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *RedisBus) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *RedisBus) Close() error {
	return r.client.Close()
}

// Subscribe implements CommandSubscriber over the same Redis client.
func (r *RedisBus) Subscribe(ctx context.Context, channelID uint16) (<-chan Command, error) {
	topic := fmt.Sprintf("comsrv:commands:%d", channelID)
	pubsub := r.client.Subscribe(ctx, topic)

	out := make(chan Command, 32)
	go func() {
		defer close(out)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var wire wireCommand
				if err := json.Unmarshal([]byte(msg.Payload), &wire); err != nil {
					continue
				}
				kind := Control
				if wire.Kind == "adjustment" {
					kind = Adjustment
				}
				select {
				case out <- Command{Kind: kind, PointID: wire.PointID, Value: wire.Value}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

type wireCommand struct {
	Kind    string `json:"kind"`
	PointID string `json:"point_id"`
	Value   string `json:"value"`
}
