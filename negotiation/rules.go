package negotiation

import (
	"fmt"

	"github.com/quailyquaily/accord/guard"
	"github.com/quailyquaily/accord/internal/strutil"
)

// Intent is the classified meaning of a free-text user response.
type Intent string

const (
	IntentAccept   Intent = "accept"
	IntentReject   Intent = "reject"
	IntentModify   Intent = "modify"
	IntentExplain  Intent = "explain"
	IntentContinue Intent = "continue"
)

type responseRule struct {
	Intent   Intent
	Keywords []string
}

// responseRules is evaluated top to bottom against the case-folded response;
// the first rule whose keyword set matches wins. Keeping the precedence as
// data makes it auditable and testable in isolation.
var responseRules = []responseRule{
	{IntentAccept, []string{"yes", "ok", "agree", "do it", "go"}},
	{IntentReject, []string{"no", "reject", "don't", "stop"}},
	{IntentModify, []string{"modify", "change", "different", "instead"}},
	{IntentExplain, []string{"why", "explain", "how", "tell"}},
}

// ClassifyResponse maps a user response to an intent by substring
// containment. Responses matching no rule continue the discussion.
func ClassifyResponse(text string) Intent {
	for _, rule := range responseRules {
		if _, ok := strutil.FirstContainedFold(text, rule.Keywords); ok {
			return rule.Intent
		}
	}
	return IntentContinue
}

const (
	msgRejected = "Action cancelled. What would you like instead?"
	msgModify   = "I understand your concern. Let me adjust the proposal...\n\n" +
		"What specifically would you like me to change?"
	msgContinue = "I understand. Let me help you with that.\n\n" +
		"Do you want me to proceed with the action, or would you like to modify it?"
	msgExecuted = "Action completed successfully."
)

func proposalPrompt(description string) string {
	return fmt.Sprintf("Agent proposed: %s\n\nDo you agree? (yes/no/modify)", description)
}

func agreedMessage(description string) string {
	return fmt.Sprintf("Agreed! Executing: %s", description)
}

var explanations = map[guard.ActionKind]string{
	"fix_code": "I found and fixed issues in your code.\n\n%s\n\n" +
		"This will improve code quality, performance, and reliability.",
	"generate_code": "I'll create new code for you.\n\n%s\n\n" +
		"This follows best practices and will be fully functional.",
	"analyze": "I want to analyze your code.\n\n%s\n\n" +
		"This will identify potential issues and improvements.",
	"create_file": "I'll create a new file.\n\n%s\n\n" +
		"The file will be created with the proposed content.",
}

// explanationFor returns the canned explanation for an action, keyed by its
// kind; unknown kinds fall back to a generic line.
func explanationFor(action *Action) string {
	if action == nil {
		return "No action has been proposed yet."
	}
	if tmpl, ok := explanations[action.Kind]; ok {
		return fmt.Sprintf(tmpl, action.Description)
	}
	return fmt.Sprintf("Action: %s", action.Description)
}
