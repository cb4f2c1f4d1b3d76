package negotiation

import (
	"fmt"
	"sync"
	"time"
)

// Session is the stateful record of one proposal's back-and-forth to
// resolution. All mutating methods take the session's own lock; the Store
// lock is never held while a session method runs.
type Session struct {
	mu sync.Mutex

	id             string
	state          State
	proposedAction *Action
	agreedAction   *Action
	conversation   []ConversationEntry
	concerns       []Note
	suggestions    []Note
	createdAt      time.Time
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		id:        id,
		state:     StateDiscussing,
		createdAt: now,
	}
}

func (s *Session) ID() string { return s.id }

// CreatedAt is set at construction and never changes.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ProposeAction installs a new proposal and resets the session to Proposed.
// A later proposal on the same session overwrites the previous one, so a
// rejected or completed session is reusable.
func (s *Session) ProposeAction(action Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := cloneAction(action)
	s.proposedAction = &a
	s.state = StateProposed
}

// AddSuggestion appends an agent suggestion. Suggestions are append-only and
// survive until the whole session is deleted.
func (s *Session) AddSuggestion(text string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suggestions = append(s.suggestions, Note{Text: text, Timestamp: now})
}

// ResponseOutcome is the result of classifying one user response.
type ResponseOutcome struct {
	Intent  Intent
	Message string
	Action  *Action
}

// HandleResponse appends the response to the conversation, classifies it
// against the ordered rule table and applies the resulting transition, all
// under one critical section. The agent's reply is appended before returning.
func (s *Session) HandleResponse(text string, now time.Time) ResponseOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.conversation = append(s.conversation, ConversationEntry{
		Speaker:   SpeakerUser,
		Message:   text,
		Timestamp: now,
	})

	intent := ClassifyResponse(text)
	if intent == IntentAccept && s.proposedAction == nil {
		intent = IntentContinue
	}

	out := ResponseOutcome{Intent: intent}
	switch intent {
	case IntentAccept:
		agreed := cloneAction(*s.proposedAction)
		s.agreedAction = &agreed
		s.state = StateAgreed
		cp := cloneAction(agreed)
		out.Action = &cp
		out.Message = agreedMessage(agreed.Description)
	case IntentReject:
		s.state = StateRejected
		s.conversation = append(s.conversation, ConversationEntry{
			Speaker:   SpeakerUser,
			Message:   fmt.Sprintf("Rejected: %s", text),
			Timestamp: now,
		})
		out.Message = msgRejected
	case IntentModify:
		s.state = StateDiscussing
		s.concerns = append(s.concerns, Note{Text: text, Timestamp: now})
		out.Message = msgModify
	case IntentExplain:
		s.state = StateDiscussing
		s.concerns = append(s.concerns, Note{Text: text, Timestamp: now})
		out.Message = explanationFor(s.proposedAction)
	default:
		s.state = StateDiscussing
		out.Message = msgContinue
	}

	s.conversation = append(s.conversation, ConversationEntry{
		Speaker:   SpeakerAgent,
		Message:   out.Message,
		Timestamp: now,
	})
	return out
}

// AgreedSnapshot returns a copy of the agreed action if the session is
// currently in Agreed.
func (s *Session) AgreedSnapshot() (Action, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAgreed || s.agreedAction == nil {
		return Action{}, false
	}
	return cloneAction(*s.agreedAction), true
}

// Complete transitions Agreed to Completed. The agreed action is kept so the
// invariant "agreedAction non-empty iff Agreed or Completed" holds after
// completion.
func (s *Session) Complete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAgreed {
		return fmt.Errorf("cannot complete session in state %q", s.state)
	}
	s.state = StateCompleted
	return nil
}

func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := Summary{
		SessionID:    s.id,
		State:        s.state,
		Concerns:     append([]Note(nil), s.concerns...),
		Suggestions:  append([]Note(nil), s.suggestions...),
		MessageCount: len(s.conversation),
		CreatedAt:    s.createdAt,
	}
	if s.proposedAction != nil {
		a := cloneAction(*s.proposedAction)
		sum.ProposedAction = &a
	}
	if s.agreedAction != nil {
		a := cloneAction(*s.agreedAction)
		sum.AgreedAction = &a
	}
	return sum
}

// RecentConversation returns copies of the last n conversation entries.
func (s *Session) RecentConversation(n int) []ConversationEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || len(s.conversation) == 0 {
		return nil
	}
	start := len(s.conversation) - n
	if start < 0 {
		start = 0
	}
	return append([]ConversationEntry(nil), s.conversation[start:]...)
}

func cloneAction(a Action) Action {
	cp := a
	if a.Details != nil {
		cp.Details = make(map[string]any, len(a.Details))
		for k, v := range a.Details {
			cp.Details[k] = v
		}
	}
	return cp
}
