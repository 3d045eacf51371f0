package agent

import (
	"context"
)

// Conversational is implemented by agents that answer free-form messages.
// Implementations must honor ctx cancellation on any LLM or adapter call.
type Conversational interface {
	HandleMessage(ctx context.Context, message, conversationID, userID string) (*Response, error)
}

// Coordinator is implemented by agents that accept coordination messages
// from the executive.
type Coordinator interface {
	HandleCoordination(ctx context.Context, msg CoordinationMessage) (map[string]interface{}, error)
}

// Identified exposes an agent's registry identity
type Identified interface {
	AgentID() string
	AgentType() Type
	Capabilities() []string
}
