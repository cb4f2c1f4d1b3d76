package negotiation

import "testing"

func TestClassifyResponse(t *testing.T) {
	cases := []struct {
		name string
		text string
		want Intent
	}{
		{"plain_yes", "yes", IntentAccept},
		{"yes_sentence", "Yes, go ahead", IntentAccept},
		{"ok", "ok sounds good", IntentAccept},
		{"do_it", "just do it", IntentAccept},
		{"plain_no", "no", IntentReject},
		{"dont", "please don't", IntentReject},
		{"stop", "stop right there", IntentReject},
		{"modify", "can you modify the plan", IntentModify},
		{"instead", "use a different file instead", IntentModify},
		{"why", "why would you do that?", IntentExplain},
		{"explain", "explain what this does", IntentExplain},
		{"fallthrough", "hmm, let me think about it", IntentContinue},
		{"empty", "", IntentContinue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyResponse(tc.text); got != tc.want {
				t.Fatalf("ClassifyResponse(%q) = %q, want %q", tc.text, got, tc.want)
			}
		})
	}
}

func TestClassifyResponsePrecedence(t *testing.T) {
	// Accept keywords outrank reject keywords when both appear.
	if got := ClassifyResponse("yes, but no changes to the config"); got != IntentAccept {
		t.Fatalf("expected accept to win over reject, got %q", got)
	}
	// Reject outranks modify.
	if got := ClassifyResponse("no, change it"); got != IntentReject {
		t.Fatalf("expected reject to win over modify, got %q", got)
	}
	// Modify outranks explain.
	if got := ClassifyResponse("change it, and tell me why"); got != IntentModify {
		t.Fatalf("expected modify to win over explain, got %q", got)
	}
}

func TestExplanationFor(t *testing.T) {
	known := &Action{Kind: "create_file", Description: "write notes.txt"}
	if got := explanationFor(known); got == "" || got == "Action: write notes.txt" {
		t.Fatalf("expected kind-specific explanation, got %q", got)
	}

	unknown := &Action{Kind: "teleport", Description: "beam it up"}
	if got := explanationFor(unknown); got != "Action: beam it up" {
		t.Fatalf("expected generic explanation, got %q", got)
	}

	if got := explanationFor(nil); got == "" {
		t.Fatal("expected a message for nil action")
	}
}
