package negotiation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quailyquaily/accord/guard"
)

// Executor actually performs an agreed action. It lives outside this package
// and may enforce its own safety checks; the coordinator's permission and
// content checks run first either way.
type Executor interface {
	Execute(ctx context.Context, action Action) (string, error)
}

// Result statuses returned by coordinator operations.
const (
	StatusProposed   = "proposed"
	StatusAgreed     = "agreed"
	StatusRejected   = "rejected"
	StatusDiscussing = "discussing"
	StatusExecuted   = "executed"
)

type Result struct {
	Status    string  `json:"status"`
	SessionID string  `json:"session_id"`
	Action    *Action `json:"action,omitempty"`
	Message   string  `json:"message"`
}

// Status is the full read-only view of one session.
type SessionStatus struct {
	Summary      Summary             `json:"session"`
	Conversation []ConversationEntry `json:"conversation"`
}

// Coordinator orchestrates proposal creation, response classification and
// the gated execution hand-off. It is safe for concurrent use; the executor
// call is the only operation that may suspend, and it runs outside all locks.
type Coordinator struct {
	store   *Store
	gate    *guard.Gate
	exec    Executor
	history *HistoryLog
	log     *slog.Logger
}

func NewCoordinator(store *Store, gate *guard.Gate, exec Executor, history *HistoryLog, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		store:   store,
		gate:    gate,
		exec:    exec,
		history: history,
		log:     log,
	}
}

// Propose records an agent proposal, creating the session when needed. A
// proposal on an existing session overwrites the previous proposed action and
// resets the state to Proposed.
func (c *Coordinator) Propose(sessionID string, kind guard.ActionKind, description string, details map[string]any) Result {
	sess := c.store.GetOrCreate(sessionID)

	action := Action{
		Kind:        kind,
		Description: description,
		Details:     details,
		Timestamp:   time.Now(),
	}
	sess.ProposeAction(action)
	c.log.Info("action_proposed", "session_id", sess.ID(), "kind", string(kind))

	return Result{
		Status:    StatusProposed,
		SessionID: sess.ID(),
		Action:    &action,
		Message:   proposalPrompt(description),
	}
}

// Respond classifies a free-text user response and advances the session.
func (c *Coordinator) Respond(sessionID string, text string) (Result, error) {
	sess, ok := c.store.Get(sessionID)
	if !ok {
		return Result{}, newError(ErrSessionNotFound, "Session not found")
	}

	out := sess.HandleResponse(text, time.Now())
	status := StatusDiscussing
	switch out.Intent {
	case IntentAccept:
		status = StatusAgreed
		c.log.Info("action_agreed", "session_id", sessionID)
	case IntentReject:
		status = StatusRejected
		c.log.Info("action_rejected", "session_id", sessionID)
	}

	return Result{
		Status:    status,
		SessionID: sessionID,
		Action:    out.Action,
		Message:   out.Message,
	}, nil
}

// ExecuteAgreed hands an agreed action to the executor after the permission
// gate and the content scan both pass. The session state is left unchanged on
// every failure path, so a vetoed or failed execution stays Agreed and can be
// retried after remediation.
func (c *Coordinator) ExecuteAgreed(ctx context.Context, sessionID string) (Result, error) {
	sess, ok := c.store.Get(sessionID)
	if !ok {
		return Result{}, newError(ErrSessionNotFound, "Session not found")
	}

	action, agreed := sess.AgreedSnapshot()
	if !agreed {
		return Result{}, newError(ErrActionNotAgreed, "Action not agreed upon yet")
	}

	hash, _ := guard.ActionHash(action.Kind, action.Description, action.Details)

	if !c.gate.CheckPermission(action.Kind) {
		c.audit(ctx, sessionID, action, hash, false, "permission denied")
		return Result{}, newError(ErrPermissionDenied,
			fmt.Sprintf("Permission denied for action: %s", action.Kind))
	}

	if content, ok := executableContent(action); ok {
		if match, found := c.gate.DangerousMatch(content); found {
			c.audit(ctx, sessionID, action, hash, false, fmt.Sprintf("dangerous pattern: %s", match))
			return Result{}, newError(ErrUnsafeContent,
				"Action content contains dangerous patterns")
		}
	}

	// The executor may block for a while; no store or session lock is held
	// here so other sessions stay responsive.
	detail, err := c.exec.Execute(ctx, action)
	if err != nil {
		c.audit(ctx, sessionID, action, hash, false, "executor failure")
		c.log.Warn("executor_failed", "session_id", sessionID, "error", err.Error())
		return Result{}, &Error{Kind: ErrExecutorFailure, Message: "Action execution failed", Err: err}
	}

	now := time.Now()
	if err := sess.Complete(); err != nil {
		// The session left Agreed while the executor ran (e.g. a concurrent
		// re-proposal). The action did run, so record it in history anyway.
		c.log.Warn("complete_after_execute_failed", "session_id", sessionID, "error", err.Error())
	}
	c.history.Append(ctx, HistoryEntry{
		SessionID: sessionID,
		Action:    action,
		Timestamp: now,
	})
	c.audit(ctx, sessionID, action, hash, true, "")
	c.log.Info("action_executed", "session_id", sessionID, "kind", string(action.Kind))

	msg := msgExecuted
	if strings.TrimSpace(detail) != "" {
		msg = detail
	}
	return Result{
		Status:    StatusExecuted,
		SessionID: sessionID,
		Action:    &action,
		Message:   msg,
	}, nil
}

// Status returns a session summary plus its most recent conversation turns.
func (c *Coordinator) Status(sessionID string) (SessionStatus, error) {
	sess, ok := c.store.Get(sessionID)
	if !ok {
		return SessionStatus{}, newError(ErrSessionNotFound, "Session not found")
	}
	return SessionStatus{
		Summary:      sess.Summary(),
		Conversation: sess.RecentConversation(5),
	}, nil
}

// History returns the completed-action log in append order.
func (c *Coordinator) History() []HistoryEntry {
	return c.history.Entries()
}

// ClearOldSessions sweeps sessions older than maxAge regardless of state.
func (c *Coordinator) ClearOldSessions(maxAge time.Duration) int {
	return c.store.ClearOldSessions(maxAge)
}

func (c *Coordinator) audit(ctx context.Context, sessionID string, action Action, hash string, allowed bool, reason string) {
	e := guard.AuditEvent{
		SessionID:       sessionID,
		Check:           guard.CheckExecute,
		Kind:            action.Kind,
		Allowed:         allowed,
		ActionHash:      hash,
		SummaryRedacted: action.Description,
	}
	if reason != "" {
		e.Reasons = []string{reason}
	}
	c.gate.Audit(ctx, e)
}

// executableContent gathers the parts of an action that will be interpreted
// by a shell, runtime or filesystem write, for the dangerous-pattern scan.
func executableContent(action Action) (string, bool) {
	var parts []string
	for _, key := range []string{"code", "command", "script", "content"} {
		if v, ok := action.Details[key].(string); ok && strings.TrimSpace(v) != "" {
			parts = append(parts, v)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}
