package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopherai-chat/internal/model"
)

func newTestCache(t *testing.T, ttl time.Duration) (*MessageCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewMessageCache(client, "", ttl), mr
}

func TestMessageCache_GetUpsert(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, 0)

	got, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	msg := &model.Message{
		ID:               "chatcmpl-1",
		Role:             model.RoleAssistant,
		Content:          "hi",
		ParentID:         "u1",
		ProviderMetadata: json.RawMessage(`{"id":"chatcmpl-1"}`),
	}
	require.NoError(t, c.Upsert(ctx, msg))
	assert.True(t, mr.Exists("chatgpt-demo:chatcmpl-1"))

	got, err = c.Get(ctx, "chatcmpl-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.ParentID)
	assert.Equal(t, "hi", got.Content)
	assert.JSONEq(t, `{"id":"chatcmpl-1"}`, string(got.ProviderMetadata))

	require.NoError(t, c.Delete(ctx, "chatcmpl-1"))
	got, err = c.Get(ctx, "chatcmpl-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMessageCache_TTL(t *testing.T) {
	ctx := context.Background()
	c, mr := newTestCache(t, time.Minute)

	require.NoError(t, c.Upsert(ctx, &model.Message{ID: "m1", Role: model.RoleUser, Content: "x"}))
	assert.Equal(t, time.Minute, mr.TTL("chatgpt-demo:m1"))

	mr.FastForward(2 * time.Minute)
	got, err := c.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMessageCache_CorruptEntry(t *testing.T) {
	c, mr := newTestCache(t, 0)
	require.NoError(t, mr.Set("chatgpt-demo:bad", "not-json"))

	_, err := c.Get(context.Background(), "bad")
	assert.Error(t, err)
}

func TestMessageCache_Unavailable(t *testing.T) {
	c, mr := newTestCache(t, 0)
	mr.Close()

	_, err := c.Get(context.Background(), "m1")
	assert.Error(t, err)
	assert.Error(t, c.Upsert(context.Background(), &model.Message{ID: "m1"}))
}
