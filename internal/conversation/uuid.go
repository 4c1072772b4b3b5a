package conversation

import "github.com/google/uuid"

// NewMessageID returns a fresh random (version 4) message id.
func NewMessageID() string {
	return uuid.NewString()
}
