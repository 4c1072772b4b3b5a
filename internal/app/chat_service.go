package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"go.uber.org/zap"

	"gopherai-chat/internal/ai"
	"gopherai-chat/internal/conversation"
	"gopherai-chat/internal/metrics"
	"gopherai-chat/internal/model"
	"gopherai-chat/internal/tokenizer"
)

var (
	ErrMissingAPIKey  = errors.New("llm api key is required")
	ErrMessageEmpty   = errors.New("message content is empty")
	ErrMessageStore   = errors.New("message store failed")
	ErrMessageUnknown = errors.New("message not found")
)

const DefaultModel = "gpt-3.5-turbo"

type Completer interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, in ai.CompletionRequest) (*ai.Completion, error)
}

type ChatServiceConfig struct {
	LLM ai.ChatConfig
	// SystemMessage replaces the built-in instructions for every call.
	SystemMessage string
	// ProviderParams are sent with every request; per-call params override
	// them key by key.
	ProviderParams map[string]any
	Budget         conversation.Budget
	MaxWalkSteps   int

	Store         conversation.MessageStore
	GetMessage    conversation.GetMessageFunc
	UpsertMessage conversation.UpsertMessageFunc

	Estimator conversation.TokenEstimator
	Client    Completer
	Timeout   time.Duration
	Metrics   *metrics.Recorder
	Logger    *zap.Logger
	NewID     func() string
}

type ChatService struct {
	store         conversation.MessageStore
	assembler     *conversation.Assembler
	llmClient     Completer
	defaultLLM    ai.ChatConfig
	systemMessage *string
	params        map[string]any
	metrics       *metrics.Recorder
	logger        *zap.Logger
	newID         func() string
}

func NewChatService(cfg ChatServiceConfig) (*ChatService, error) {
	if strings.TrimSpace(cfg.LLM.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.NewID == nil {
		cfg.NewID = conversation.NewMessageID
	}
	if cfg.Store == nil {
		cfg.Store = conversation.NewMemoryStore()
	}
	if cfg.Estimator == nil {
		counter, err := tokenizer.NewTokenCounter(tokenizer.DefaultModel)
		if err != nil {
			return nil, err
		}
		cfg.Estimator = counter
	}
	if cfg.Client == nil {
		cfg.Client = ai.NewOpenAICompatibleClient(cfg.Timeout)
	}

	store := conversation.OverrideStore(cfg.Store, cfg.GetMessage, cfg.UpsertMessage)
	s := &ChatService{
		store: store,
		assembler: conversation.NewAssembler(store, cfg.Estimator, cfg.Budget,
			conversation.WithMaxWalkSteps(cfg.MaxWalkSteps),
			conversation.WithLogger(cfg.Logger.Named("assembler")),
		),
		llmClient:  cfg.Client,
		defaultLLM: cfg.LLM,
		params:     maps.Clone(cfg.ProviderParams),
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		newID:      cfg.NewID,
	}
	if cfg.SystemMessage != "" {
		system := cfg.SystemMessage
		s.systemMessage = &system
	}
	return s, nil
}

// SendMessage stores content as a new user message, assembles the context
// window from its ancestry, asks the provider for a reply and stores that
// reply as a child of the new message.
func (s *ChatService) SendMessage(ctx context.Context, content string, opts conversation.SendOptions) (*conversation.Output, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrMessageEmpty
	}

	opts, _, err := conversation.InjectPrefix(ctx, s.store, opts, s.newID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMessageStore, err)
	}

	userMessage := &model.Message{
		ID:        s.newID(),
		Role:      model.RoleUser,
		Content:   content,
		ParentID:  opts.ParentID,
		CreatedAt: time.Now(),
	}
	if err := s.store.Upsert(ctx, userMessage); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMessageStore, err)
	}

	assembleOpts := opts.AssembleOptions()
	if assembleOpts.SystemMessage == nil {
		assembleOpts.SystemMessage = s.systemMessage
	}
	window := s.assembler.Assemble(ctx, content, assembleOpts)
	if s.metrics != nil {
		s.metrics.ObserveWindow(window)
	}
	s.logger.Debug("sending message",
		zap.String("message_id", userMessage.ID),
		zap.Int("turns", len(window.Turns)),
		zap.Int("estimated_tokens", window.EstimatedTokens),
	)

	messages := make([]ai.ChatMessage, 0, len(window.Turns))
	for _, t := range window.Turns {
		messages = append(messages, ai.ChatMessage{Role: t.Role, Content: t.Content})
	}

	start := time.Now()
	completion, err := s.llmClient.Complete(ctx, s.defaultLLM, ai.CompletionRequest{
		Messages:  messages,
		MaxTokens: window.ResponseTokenCeiling,
		Params:    s.mergeParams(opts.ProviderParams),
	})
	if s.metrics != nil {
		s.metrics.ObserveRequest(err == nil, time.Since(start))
	}
	if err != nil {
		s.logger.Warn("llm request failed",
			zap.String("model", s.defaultLLM.Model),
			zap.String("api_key", maskSecret(s.defaultLLM.APIKey)),
			zap.Error(err),
		)
		return nil, err
	}

	reply := &model.Message{
		ID:               completion.ID,
		Role:             completion.Role,
		Content:          completion.Content,
		ParentID:         userMessage.ID,
		ProviderMetadata: completion.Raw,
		CreatedAt:        time.Now(),
	}
	if reply.ID == "" {
		reply.ID = s.newID()
	}
	if reply.Role == "" {
		reply.Role = model.RoleAssistant
	}
	if err := s.store.Upsert(ctx, reply); err != nil {
		s.logger.Error("store reply failed", zap.String("message_id", reply.ID), zap.Error(err))
	}

	out := conversation.FormatOutput(reply, window.Turns)
	return &out, nil
}

// GetMessage returns a stored message by id.
func (s *ChatService) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	msg, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMessageStore, err)
	}
	if msg == nil {
		return nil, ErrMessageUnknown
	}
	return msg, nil
}

func (s *ChatService) Budget() conversation.Budget {
	return s.assembler.Budget()
}

func (s *ChatService) mergeParams(override map[string]any) map[string]any {
	merged := maps.Clone(s.params)
	if merged == nil {
		merged = make(map[string]any, len(override))
	}
	maps.Copy(merged, override)
	return merged
}

func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}
