// Package negotiation implements the propose/discuss/agree protocol between
// an agent and a human, and the gated hand-off of agreed actions to an
// executor. Sessions live in memory and are owned by the Store.
package negotiation

import (
	"time"

	"github.com/quailyquaily/accord/guard"
)

// State is the lifecycle position of one negotiation session.
//
//	Proposed -> Discussing <-> (Agreed | Rejected); Agreed -> Completed.
//
// Rejected and Completed are re-entered only via a fresh proposal, which
// resets the session to Proposed.
type State string

const (
	StateProposed   State = "proposed"
	StateDiscussing State = "discussing"
	StateAgreed     State = "agreed"
	StateRejected   State = "rejected"
	StateCompleted  State = "completed"
)

type Speaker string

const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// Action describes one side-effecting operation the agent wants permission
// to perform.
type Action struct {
	Kind        guard.ActionKind `json:"kind"`
	Description string           `json:"description"`
	Details     map[string]any   `json:"details,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}

type ConversationEntry struct {
	Speaker   Speaker   `json:"speaker"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Note is a timestamped concern or suggestion raised during discussion.
type Note struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary is a read-only snapshot of a session, safe to serialize.
type Summary struct {
	SessionID      string    `json:"session_id"`
	State          State     `json:"state"`
	ProposedAction *Action   `json:"proposed_action,omitempty"`
	AgreedAction   *Action   `json:"agreed_action,omitempty"`
	Concerns       []Note    `json:"concerns"`
	Suggestions    []Note    `json:"suggestions"`
	MessageCount   int       `json:"messages_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// HistoryEntry records one completed action. The log is append-only and
// independent of live session state.
type HistoryEntry struct {
	SessionID string    `json:"session_id"`
	Action    Action    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}
