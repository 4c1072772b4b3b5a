package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"gopherai-chat/internal/model"
)

const DefaultNamespace = "chatgpt-demo"

// MessageCache stores messages in Redis as JSON under "<namespace>:<id>".
// A zero ttl keeps entries until Redis evicts them.
type MessageCache struct {
	client    redisv9.UniversalClient
	namespace string
	ttl       time.Duration
}

func NewMessageCache(client redisv9.UniversalClient, namespace string, ttl time.Duration) *MessageCache {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if ttl < 0 {
		ttl = 0
	}
	return &MessageCache{
		client:    client,
		namespace: namespace,
		ttl:       ttl,
	}
}

func (c *MessageCache) Get(ctx context.Context, id string) (*model.Message, error) {
	raw, err := c.client.Get(ctx, c.messageKey(id)).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get message failed: %w", err)
	}

	var msg model.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("unmarshal cached message failed: %w", err)
	}
	return &msg, nil
}

func (c *MessageCache) Upsert(ctx context.Context, msg *model.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.messageKey(msg.ID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set message failed: %w", err)
	}
	return nil
}

func (c *MessageCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, c.messageKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete message failed: %w", err)
	}
	return nil
}

func (c *MessageCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *MessageCache) messageKey(id string) string {
	return c.namespace + ":" + id
}
