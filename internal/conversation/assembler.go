package conversation

import (
	"context"

	"go.uber.org/zap"

	"gopherai-chat/internal/model"
)

const (
	DefaultModelContextSize = 4096
	DefaultResponseReserve  = 1000
	DefaultMaxWalkSteps     = 10000
)

// Budget splits the model context between the prompt and the reply.
type Budget struct {
	ModelContextSize int
	ResponseReserve  int
}

func (b Budget) PromptBudget() int {
	return b.ModelContextSize - b.ResponseReserve
}

// StopReason records why the ancestry walk ended.
type StopReason string

const (
	StopForget     StopReason = "forget"
	StopRoot       StopReason = "root"
	StopMissing    StopReason = "missing"
	StopStoreError StopReason = "store_error"
	StopBudget     StopReason = "budget"
	StopCycle      StopReason = "cycle"
	StopMaxSteps   StopReason = "max_steps"
)

// Options are the per-call inputs of Assemble.
type Options struct {
	// ParentID anchors the walk. Empty means the new message starts a chain.
	ParentID string
	// SystemMessage holds explicit instructions. Nil means the built-in
	// default applies, which is never sent.
	SystemMessage *string
	// Forget disables the walk: only the new message is considered.
	Forget bool
}

// Window is the result of one assembly.
type Window struct {
	Turns                []Turn
	EstimatedTokens      int
	ResponseTokenCeiling int
	Ancestors            int
	Stop                 StopReason
}

type Assembler struct {
	store     MessageStore
	estimator TokenEstimator
	budget    Budget
	labels    Labels
	maxSteps  int
	logger    *zap.Logger
}

type AssemblerOption func(*Assembler)

// WithMaxWalkSteps bounds how many ancestors a single walk may fetch.
func WithMaxWalkSteps(n int) AssemblerOption {
	return func(a *Assembler) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

func WithLogger(logger *zap.Logger) AssemblerOption {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func NewAssembler(store MessageStore, estimator TokenEstimator, budget Budget, opts ...AssemblerOption) *Assembler {
	if budget.ModelContextSize <= 0 {
		budget.ModelContextSize = DefaultModelContextSize
	}
	if budget.ResponseReserve <= 0 {
		budget.ResponseReserve = DefaultResponseReserve
	}
	a := &Assembler{
		store:     store,
		estimator: estimator,
		budget:    budget,
		labels:    DefaultLabels(),
		maxSteps:  DefaultMaxWalkSteps,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Assembler) Budget() Budget {
	return a.budget
}

// Assemble walks backward from opts.ParentID, prepending one ancestor at a
// time right after the system slot, and keeps the last candidate whose
// rendered text fits the prompt budget. Store misses and store errors end the
// walk; they are not returned.
//
// When content alone is over budget the returned window is empty.
func (a *Assembler) Assemble(ctx context.Context, content string, opts Options) Window {
	promptBudget := a.budget.PromptBudget()

	var head []Turn
	if opts.SystemMessage != nil && *opts.SystemMessage != "" {
		head = append(head, Turn{Role: model.RoleSystem, Content: *opts.SystemMessage})
	}
	offset := len(head)
	candidate := append(head, Turn{Role: model.RoleUser, Content: content})

	window := Window{Turns: []Turn{}}
	parentID := opts.ParentID
	visited := make(map[string]struct{})

	for {
		prompt := Render(candidate, a.labels)
		estimate := a.estimator.CountTokens(prompt)
		if prompt != "" && estimate > promptBudget {
			window.Stop = StopBudget
			break
		}

		window.Turns = candidate
		window.EstimatedTokens = estimate
		window.Ancestors = len(candidate) - offset - 1

		if opts.Forget {
			window.Stop = StopForget
			break
		}
		if parentID == "" {
			window.Stop = StopRoot
			break
		}
		if _, seen := visited[parentID]; seen {
			window.Stop = StopCycle
			break
		}
		if len(visited) >= a.maxSteps {
			window.Stop = StopMaxSteps
			break
		}

		parent, err := a.store.Get(ctx, parentID)
		if err != nil {
			a.logger.Warn("message lookup failed, truncating history",
				zap.String("message_id", parentID),
				zap.Error(err),
			)
			window.Stop = StopStoreError
			break
		}
		if parent == nil {
			window.Stop = StopMissing
			break
		}
		visited[parentID] = struct{}{}

		role := parent.Role
		if role == "" {
			role = model.RoleUser
		}
		next := make([]Turn, 0, len(candidate)+1)
		next = append(next, candidate[:offset]...)
		next = append(next, Turn{Role: role, Content: parent.Content})
		next = append(next, candidate[offset:]...)
		candidate = next
		parentID = parent.ParentID
	}

	// Use up to the full context (prompt + reply), leaving at most
	// ResponseReserve tokens for the reply.
	window.ResponseTokenCeiling = max(1, min(a.budget.ModelContextSize-window.EstimatedTokens, a.budget.ResponseReserve))

	a.logger.Debug("context assembled",
		zap.Int("turns", len(window.Turns)),
		zap.Int("ancestors", window.Ancestors),
		zap.Int("estimated_tokens", window.EstimatedTokens),
		zap.Int("response_token_ceiling", window.ResponseTokenCeiling),
		zap.String("stop", string(window.Stop)),
	)
	return window
}
