package persistence

import (
	"time"

	"github.com/google/uuid"
)

// AgentMessage is one agent's contribution to a completed turn.
type AgentMessage struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Command is a completed conversation turn: the user's transcript plus the
// ordered agent responses. Timestamp is always server-assigned at save time;
// any caller-supplied value is discarded.
type Command struct {
	ID             string         `json:"id"`
	Transcript     string         `json:"transcript"`
	Timestamp      time.Time      `json:"timestamp"`
	AgentResponses []AgentMessage `json:"agentResponses"`
}

// GenerateCommandID creates a unique command identifier.
func GenerateCommandID() string {
	return uuid.New().String()
}
