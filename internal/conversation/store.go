package conversation

import (
	"bytes"
	"context"
	"sync"

	"gopherai-chat/internal/model"
)

// MessageStore reads and writes messages by id. Get returns (nil, nil) when
// the id is unknown. Implementations must be safe for concurrent use.
type MessageStore interface {
	Get(ctx context.Context, id string) (*model.Message, error)
	Upsert(ctx context.Context, msg *model.Message) error
}

type (
	GetMessageFunc    func(ctx context.Context, id string) (*model.Message, error)
	UpsertMessageFunc func(ctx context.Context, msg *model.Message) error
)

// OverrideStore replaces either operation of base with a caller-supplied
// function. Nil functions fall through to base.
func OverrideStore(base MessageStore, get GetMessageFunc, upsert UpsertMessageFunc) MessageStore {
	if get == nil && upsert == nil {
		return base
	}
	s := &funcStore{get: get, upsert: upsert}
	if s.get == nil {
		s.get = base.Get
	}
	if s.upsert == nil {
		s.upsert = base.Upsert
	}
	return s
}

type funcStore struct {
	get    GetMessageFunc
	upsert UpsertMessageFunc
}

func (s *funcStore) Get(ctx context.Context, id string) (*model.Message, error) {
	return s.get(ctx, id)
}

func (s *funcStore) Upsert(ctx context.Context, msg *model.Message) error {
	return s.upsert(ctx, msg)
}

// MemoryStore keeps messages in process memory. Messages are lost on exit.
// Stored messages share no memory with the values passed in or handed out.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string]model.Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make(map[string]model.Message)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, nil
	}
	msg.ProviderMetadata = bytes.Clone(msg.ProviderMetadata)
	return &msg, nil
}

func (s *MemoryStore) Upsert(_ context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *msg
	stored.ProviderMetadata = bytes.Clone(msg.ProviderMetadata)
	s.messages[msg.ID] = stored
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
