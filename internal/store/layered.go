// Package store composes message stores into the layered backend: Redis in
// front, a durable database behind, and writes carried to the database
// through a queue.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"gopherai-chat/internal/conversation"
	"gopherai-chat/internal/model"
)

var ErrPersistEnqueue = errors.New("message persist enqueue failed")

type Publisher interface {
	Publish(ctx context.Context, msg model.Message) error
}

// Cache is the front layer. Delete lets a write that never became durable be
// taken back out of it.
type Cache interface {
	conversation.MessageStore
	Delete(ctx context.Context, id string) error
}

// Layered serves reads from cache first and falls back to durable, writing
// misses back into cache. Writes go to cache synchronously; durability comes
// from publisher, or from a direct durable write when publisher is nil. A
// write that cannot be made durable is evicted from cache again.
type Layered struct {
	cache     Cache
	durable   conversation.MessageStore
	publisher Publisher
	logger    *zap.Logger
}

func NewLayered(cache Cache, durable conversation.MessageStore, publisher Publisher, logger *zap.Logger) *Layered {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Layered{
		cache:     cache,
		durable:   durable,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *Layered) Get(ctx context.Context, id string) (*model.Message, error) {
	msg, err := s.cache.Get(ctx, id)
	if err != nil {
		s.logger.Warn("cache read failed, falling back to durable store",
			zap.String("message_id", id),
			zap.Error(err),
		)
	} else if msg != nil {
		return msg, nil
	}

	msg, err = s.durable.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}
	if err := s.cache.Upsert(ctx, msg); err != nil {
		s.logger.Warn("cache backfill failed", zap.String("message_id", id), zap.Error(err))
	}
	return msg, nil
}

func (s *Layered) Upsert(ctx context.Context, msg *model.Message) error {
	if err := s.cache.Upsert(ctx, msg); err != nil {
		return err
	}
	if err := s.persist(ctx, msg); err != nil {
		if delErr := s.cache.Delete(ctx, msg.ID); delErr != nil {
			s.logger.Warn("cache rollback failed",
				zap.String("message_id", msg.ID),
				zap.Error(delErr),
			)
		}
		return err
	}
	return nil
}

func (s *Layered) persist(ctx context.Context, msg *model.Message) error {
	if s.publisher == nil {
		return s.durable.Upsert(ctx, msg)
	}
	if err := s.publisher.Publish(ctx, *msg); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistEnqueue, err)
	}
	return nil
}
