package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopherai-chat/internal/app"
	"gopherai-chat/internal/cache"
	"gopherai-chat/internal/config"
	"gopherai-chat/internal/conversation"
)

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			BaseURL:          "http://127.0.0.1:0",
			APIKey:           "sk-test",
			Model:            "gpt-3.5-turbo",
			ModelContextSize: 2048,
			ResponseReserve:  512,
		},
		Store: config.StoreConfig{Backend: config.StoreMemory},
	}
}

func TestNewWithConfig_Memory(t *testing.T) {
	a, err := NewWithConfig(context.Background(), testConfig(), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &conversation.MemoryStore{}, a.Store)
	assert.Equal(t, conversation.Budget{ModelContextSize: 2048, ResponseReserve: 512}, a.ChatService.Budget())
	assert.Nil(t, a.Redis)
	assert.Nil(t, a.DB)
}

func TestNewWithConfig_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Store.Backend = config.StoreRedis
	cfg.Redis.Addr = mr.Addr()

	a, err := NewWithConfig(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	assert.IsType(t, &cache.MessageCache{}, a.Store)
	assert.NotNil(t, a.Redis)
	assert.Same(t, a.Cache, a.Store)
}

func TestNewWithConfig_MissingAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.LLM.APIKey = ""

	_, err := NewWithConfig(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, app.ErrMissingAPIKey)
}

func TestNewWithConfig_UnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Backend = "etcd"

	_, err := NewWithConfig(context.Background(), cfg, nil)
	assert.Error(t, err)
}
