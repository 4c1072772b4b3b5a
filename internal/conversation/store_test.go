package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopherai-chat/internal/model"
)

func TestMemoryStore_GetUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	got, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	msg := &model.Message{ID: "m1", Role: model.RoleUser, Content: "v1"}
	require.NoError(t, store.Upsert(ctx, msg))
	msg.Content = "mutated after write"

	got, err = store.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Content)

	require.NoError(t, store.Upsert(ctx, &model.Message{ID: "m1", Role: model.RoleUser, Content: "v2"}))
	got, err = store.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Content)
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_ProviderMetadataIsCopied(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	raw := json.RawMessage(`{"id":"x"}`)
	require.NoError(t, store.Upsert(ctx, &model.Message{ID: "x", Role: model.RoleAssistant, ProviderMetadata: raw}))
	raw[2] = 'X'

	got, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"x"}`, string(got.ProviderMetadata))

	got.ProviderMetadata[2] = 'Y'
	again, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"x"}`, string(again.ProviderMetadata))
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("m%d", i)
			_ = store.Upsert(ctx, &model.Message{ID: id, Content: id})
			_, _ = store.Get(ctx, id)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, store.Len())
}

func TestOverrideStore(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore()
	assert.Same(t, base, OverrideStore(base, nil, nil))

	var upserted []string
	s := OverrideStore(base, nil, func(ctx context.Context, msg *model.Message) error {
		upserted = append(upserted, msg.ID)
		return base.Upsert(ctx, msg)
	})
	require.NoError(t, s.Upsert(ctx, &model.Message{ID: "a"}))
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"a"}, upserted)
}
