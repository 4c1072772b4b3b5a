package conversation

import (
	"context"
	"fmt"
	"time"

	"gopherai-chat/internal/model"
)

// SendOptions are the caller-facing per-call options.
type SendOptions struct {
	ParentID       string
	SystemMessage  *string
	Forget         bool
	PrefixPrompt   string
	ProviderParams map[string]any
}

func (o SendOptions) AssembleOptions() Options {
	return Options{
		ParentID:      o.ParentID,
		SystemMessage: o.SystemMessage,
		Forget:        o.Forget,
	}
}

// InjectPrefix stores opts.PrefixPrompt as a user message chained under
// opts.ParentID and returns a copy of opts re-anchored on it. The returned
// options carry no prefix, so applying them again is a no-op. When there is
// no prefix, opts is returned unchanged with a nil message.
func InjectPrefix(ctx context.Context, store MessageStore, opts SendOptions, newID func() string) (SendOptions, *model.Message, error) {
	if opts.PrefixPrompt == "" {
		return opts, nil, nil
	}

	prefix := &model.Message{
		ID:        newID(),
		Role:      model.RoleUser,
		Content:   opts.PrefixPrompt,
		ParentID:  opts.ParentID,
		CreatedAt: time.Now(),
	}
	if err := store.Upsert(ctx, prefix); err != nil {
		return opts, nil, fmt.Errorf("store prefix message failed: %w", err)
	}

	next := opts
	next.ParentID = prefix.ID
	next.PrefixPrompt = ""
	return next, prefix, nil
}
