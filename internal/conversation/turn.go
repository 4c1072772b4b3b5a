package conversation

import (
	"strings"
	"time"

	"gopherai-chat/internal/model"
)

const (
	UserLabel         = "User"
	AssistantLabel    = "ChatGPT"
	InstructionsLabel = "Instructions"
)

// Turn is one role-labeled entry of a context window. It is also the wire
// shape of a chat-completions message.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Labels maps roles to the prefixes used when a window is flattened to text
// for token estimation.
type Labels struct {
	User      string
	Assistant string
}

func DefaultLabels() Labels {
	return Labels{User: UserLabel, Assistant: AssistantLabel}
}

// Render flattens turns into the text whose size is checked against the
// prompt budget. Unknown roles render with the assistant label.
func Render(turns []Turn, labels Labels) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteByte('\n')
		switch t.Role {
		case model.RoleSystem:
			b.WriteString(InstructionsLabel)
		case model.RoleUser:
			b.WriteString(labels.User)
		default:
			b.WriteString(labels.Assistant)
		}
		b.WriteString(":\n")
		b.WriteString(t.Content)
	}
	return b.String()
}

// DefaultSystemPrompt is the built-in instructions text. It is never sent:
// a window only carries a system turn when instructions were set explicitly.
func DefaultSystemPrompt(now time.Time) string {
	return "You are ChatGPT, a large language model trained by OpenAI. Answer as concisely as possible.\n" +
		"Current date: " + now.UTC().Format("2006-01-02") + "\n"
}
