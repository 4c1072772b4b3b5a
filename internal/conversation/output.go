package conversation

import (
	"encoding/json"

	"gopherai-chat/internal/model"
)

type Output struct {
	Reply   string  `json:"reply"`
	Details Details `json:"details"`
}

type Details struct {
	ID          string          `json:"id"`
	Role        string          `json:"role"`
	RawResponse json.RawMessage `json:"rawResponse,omitempty"`
	History     []Turn          `json:"history"`
}

// FormatOutput pairs a stored reply with the window that produced it.
func FormatOutput(reply *model.Message, window []Turn) Output {
	if window == nil {
		window = []Turn{}
	}
	out := Output{Details: Details{History: window}}
	if reply == nil {
		return out
	}
	out.Reply = reply.Content
	out.Details.ID = reply.ID
	out.Details.Role = reply.Role
	out.Details.RawResponse = reply.ProviderMetadata
	return out
}
