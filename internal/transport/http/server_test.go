package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopherai-chat/internal/bootstrap"
	"gopherai-chat/internal/config"
)

func newTestRouter(t *testing.T, provider http.HandlerFunc) *gin.Engine {
	t.Helper()
	return newTestRouterWithStore(t, provider, config.StoreConfig{Backend: config.StoreMemory}, config.RedisConfig{})
}

func newTestRouterWithStore(t *testing.T, provider http.HandlerFunc, storeCfg config.StoreConfig, redisCfg config.RedisConfig) *gin.Engine {
	t.Helper()
	llm := httptest.NewServer(provider)
	t.Cleanup(llm.Close)

	cfg := &config.Config{
		App: config.AppConfig{Name: "gopherai-chat", Env: "test", GinMode: gin.TestMode},
		LLM: config.LLMConfig{
			BaseURL: llm.URL,
			APIKey:  "sk-test",
			Model:   "gpt-3.5-turbo",
		},
		Store: storeCfg,
		Redis: redisCfg,
	}
	a, err := bootstrap.NewWithConfig(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return NewRouter(a)
}

func echoProvider(t *testing.T) http.HandlerFunc {
	calls := 0
	return func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		last := req.Messages[len(req.Messages)-1].Content
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "chatcmpl-" + strings.Repeat("x", calls),
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "echo: " + last}},
			},
		})
	}
}

func post(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestChat(t *testing.T) {
	router := newTestRouter(t, echoProvider(t))

	w := post(t, router, "/api/chat", `{"message":"hello"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var first struct {
		Reply   string `json:"reply"`
		Version string `json:"version"`
		Details struct {
			ID      string            `json:"id"`
			Role    string            `json:"role"`
			History []json.RawMessage `json:"history"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, "echo: hello", first.Reply)
	assert.Equal(t, "v1", first.Version)
	assert.Equal(t, "chatcmpl-x", first.Details.ID)
	assert.Equal(t, "assistant", first.Details.Role)
	assert.Len(t, first.Details.History, 1)

	w = post(t, router, "/api/chat", `{"message":"again","options":{"parentMessageId":"chatcmpl-x","prefixPrompt":"be terse"}}`)
	require.Equal(t, http.StatusOK, w.Code)

	var second struct {
		Details struct {
			History []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"history"`
		} `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	var contents []string
	for _, turn := range second.Details.History {
		contents = append(contents, turn.Content)
	}
	assert.Equal(t, []string{"hello", "echo: hello", "be terse", "again"}, contents)
}

func TestChat_BadRequest(t *testing.T) {
	router := newTestRouter(t, echoProvider(t))

	for _, body := range []string{`{`, `{"options":{}}`, `{"message":"   "}`} {
		w := post(t, router, "/api/chat", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestChat_ProviderFailure(t *testing.T) {
	router := newTestRouter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	w := post(t, router, "/api/chat", `{"message":"hello"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWidgetChat(t *testing.T) {
	router := newTestRouter(t, echoProvider(t))

	w := post(t, router, "/api/uchat", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"version":"v1","content":{"messages":[{"type":"text","text":"echo: hi"}]}}`, w.Body.String())
}

func TestWidgetChat_Failure(t *testing.T) {
	router := newTestRouter(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	w := post(t, router, "/api/uchat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"version":"v1","content":{"messages":[{"type":"text","text":"Something went wrong"}]}}`, w.Body.String())
}

func TestGetMessage(t *testing.T) {
	router := newTestRouter(t, echoProvider(t))
	require.Equal(t, http.StatusOK, post(t, router, "/api/chat", `{"message":"hello"}`).Code)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/messages/chatcmpl-x", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Code int `json:"code"`
		Data struct {
			ID       string `json:"id"`
			Content  string `json:"content"`
			ParentID string `json:"parentMessageId"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "echo: hello", resp.Data.Content)
	assert.NotEmpty(t, resp.Data.ParentID)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/messages/unknown", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(t, echoProvider(t))
	require.Equal(t, http.StatusOK, post(t, router, "/api/chat", `{"message":"hello"}`).Code)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"memory"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `chat_assemble_stops_total{reason="root"} 1`)
	assert.Contains(t, w.Body.String(), `chat_provider_requests_total{status="success"} 1`)
}

func TestHealth_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	router := newTestRouterWithStore(t, echoProvider(t),
		config.StoreConfig{Backend: config.StoreRedis},
		config.RedisConfig{Addr: mr.Addr()},
	)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":{"ok":true}`)

	mr.Close()

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":{"ok":false`)
}
