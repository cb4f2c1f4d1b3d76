package negotiation

import (
	"strings"
	"testing"
	"time"
)

func proposedSession(t *testing.T) *Session {
	t.Helper()
	s := newSession("s1", time.Now())
	s.ProposeAction(Action{
		Kind:        "create_file",
		Description: "write notes.txt",
		Details:     map[string]any{"path": "/tmp/notes.txt"},
		Timestamp:   time.Now(),
	})
	return s
}

func TestHandleResponseAccept(t *testing.T) {
	s := proposedSession(t)

	out := s.HandleResponse("yes, go ahead", time.Now())
	if out.Intent != IntentAccept {
		t.Fatalf("intent = %q, want accept", out.Intent)
	}
	if s.State() != StateAgreed {
		t.Fatalf("state = %q, want agreed", s.State())
	}
	if out.Action == nil || out.Action.Description != "write notes.txt" {
		t.Fatalf("agreed action not returned: %+v", out.Action)
	}

	sum := s.Summary()
	if sum.AgreedAction == nil {
		t.Fatal("agreedAction must be set in state agreed")
	}
	// User entry plus agent reply.
	if sum.MessageCount != 2 {
		t.Fatalf("message count = %d, want 2", sum.MessageCount)
	}
}

func TestHandleResponseReject(t *testing.T) {
	s := proposedSession(t)

	out := s.HandleResponse("no, stop", time.Now())
	if out.Intent != IntentReject {
		t.Fatalf("intent = %q, want reject", out.Intent)
	}
	if s.State() != StateRejected {
		t.Fatalf("state = %q, want rejected", s.State())
	}

	// The rejection notice is appended in addition to the raw response.
	notices := 0
	for _, m := range s.RecentConversation(5) {
		if m.Speaker == SpeakerUser && strings.HasPrefix(m.Message, "Rejected: ") {
			notices++
		}
	}
	if notices != 1 {
		t.Fatalf("rejection notices = %d, want 1", notices)
	}

	if sum := s.Summary(); sum.AgreedAction != nil {
		t.Fatal("agreedAction must stay empty outside agreed/completed")
	}
}

func TestHandleResponseModifyAddsConcern(t *testing.T) {
	s := proposedSession(t)

	out := s.HandleResponse("please change the filename", time.Now())
	if out.Intent != IntentModify {
		t.Fatalf("intent = %q, want modify", out.Intent)
	}
	if s.State() != StateDiscussing {
		t.Fatalf("state = %q, want discussing", s.State())
	}

	sum := s.Summary()
	if len(sum.Concerns) != 1 {
		t.Fatalf("concerns = %d, want 1", len(sum.Concerns))
	}
	// The proposal is untouched until a fresh propose call.
	if sum.ProposedAction == nil || sum.ProposedAction.Description != "write notes.txt" {
		t.Fatalf("proposed action mutated: %+v", sum.ProposedAction)
	}
}

func TestHandleResponseExplain(t *testing.T) {
	s := proposedSession(t)

	out := s.HandleResponse("why would you do that?", time.Now())
	if out.Intent != IntentExplain {
		t.Fatalf("intent = %q, want explain", out.Intent)
	}
	if s.State() != StateDiscussing {
		t.Fatalf("state = %q, want discussing", s.State())
	}
	if !strings.Contains(out.Message, "I'll create a new file.") {
		t.Fatalf("expected create_file explanation, got %q", out.Message)
	}
	if sum := s.Summary(); len(sum.Concerns) != 1 {
		t.Fatalf("concerns = %d, want 1", len(sum.Concerns))
	}
}

func TestHandleResponseContinue(t *testing.T) {
	s := proposedSession(t)

	out := s.HandleResponse("hmm, let me think about it", time.Now())
	if out.Intent != IntentContinue {
		t.Fatalf("intent = %q, want continue", out.Intent)
	}
	if s.State() != StateDiscussing {
		t.Fatalf("state = %q, want discussing", s.State())
	}
	if sum := s.Summary(); sum.MessageCount != 2 {
		t.Fatalf("message count = %d, want 2", sum.MessageCount)
	}
}

func TestCompleteOnlyFromAgreed(t *testing.T) {
	s := proposedSession(t)
	if err := s.Complete(); err == nil {
		t.Fatal("complete must fail outside agreed")
	}

	s.HandleResponse("yes", time.Now())
	if err := s.Complete(); err != nil {
		t.Fatalf("complete from agreed: %v", err)
	}
	if s.State() != StateCompleted {
		t.Fatalf("state = %q, want completed", s.State())
	}
	// The agreed action survives completion.
	if sum := s.Summary(); sum.AgreedAction == nil {
		t.Fatal("agreedAction must persist after completion")
	}
}

func TestReproposeResetsTerminalStates(t *testing.T) {
	s := proposedSession(t)
	s.HandleResponse("no", time.Now())
	if s.State() != StateRejected {
		t.Fatalf("state = %q, want rejected", s.State())
	}

	s.ProposeAction(Action{Kind: "create_file", Description: "second try", Timestamp: time.Now()})
	if s.State() != StateProposed {
		t.Fatalf("state = %q, want proposed after re-propose", s.State())
	}
	sum := s.Summary()
	if sum.ProposedAction == nil || sum.ProposedAction.Description != "second try" {
		t.Fatalf("proposal not overwritten: %+v", sum.ProposedAction)
	}
	// Conversation survives the reset; only whole-session deletion drops it.
	if sum.MessageCount == 0 {
		t.Fatal("conversation must survive re-propose")
	}
}

func TestRecentConversationLimit(t *testing.T) {
	s := proposedSession(t)
	for i := 0; i < 6; i++ {
		s.HandleResponse("thinking...", time.Now())
	}
	got := s.RecentConversation(5)
	if len(got) != 5 {
		t.Fatalf("recent = %d entries, want 5", len(got))
	}
}
