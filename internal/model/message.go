package model

import (
	"encoding/json"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one stored conversation turn. ParentID links to the previous
// turn; an empty ParentID marks the root of a chain.
type Message struct {
	ID               string          `gorm:"primaryKey;size:64" json:"id"`
	Role             string          `gorm:"size:16;not null" json:"role"`
	Content          string          `gorm:"type:text;not null" json:"content"`
	ParentID         string          `gorm:"size:64;index" json:"parentMessageId,omitempty"`
	ProviderMetadata json.RawMessage `gorm:"type:mediumblob" json:"providerMetadata,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}
