// Package guard decides whether a negotiated action may execute: a per-kind
// permission table mutated only by explicit grants, a dangerous-content scan
// that can veto any action regardless of permission, and an allow-listed-root
// path check. It also owns the audit trail for those decisions.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/quailyquaily/accord/internal/pathutil"
	"github.com/quailyquaily/accord/internal/strutil"
)

const auditSummaryMaxBytes = 512

type Gate struct {
	mu    sync.RWMutex
	table map[ActionKind]bool

	patterns []string
	roots    []string

	sink     AuditSink
	redactor *Redactor
	log      *slog.Logger
}

func New(cfg Config, sink AuditSink, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}

	table := cfg.Permissions
	if table == nil {
		table = DefaultPermissions()
	} else {
		// Copy so the caller's map cannot be mutated behind the gate's lock.
		cp := make(map[ActionKind]bool, len(table))
		for k, v := range table {
			cp[k] = v
		}
		table = cp
	}

	patterns := cfg.DangerousPatterns
	if len(patterns) == 0 {
		patterns = DefaultDangerousPatterns()
	}
	lowered := make([]string, 0, len(patterns))
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			lowered = append(lowered, p)
		}
	}

	rootCfg := cfg.AllowedRoots
	if len(rootCfg) == 0 {
		rootCfg = DefaultAllowedRoots()
	}
	roots := make([]string, 0, len(rootCfg))
	for _, r := range rootCfg {
		canon, err := pathutil.Canonical(r)
		if err != nil {
			log.Warn("gate_root_ignored", "root", r, "error", err.Error())
			continue
		}
		roots = append(roots, canon)
	}

	return &Gate{
		table:    table,
		patterns: lowered,
		roots:    roots,
		sink:     sink,
		redactor: NewRedactor(cfg.Redaction),
		log:      log,
	}
}

// CheckPermission reports whether kind may execute without further approval.
// Unknown kinds are denied and never added to the table.
func (g *Gate) CheckPermission(kind ActionKind) bool {
	g.mu.RLock()
	allowed, known := g.table[kind]
	g.mu.RUnlock()
	if !known {
		g.log.Warn("gate_unknown_action_kind", "kind", string(kind))
		return false
	}
	return allowed
}

// RequestApproval builds a pending descriptor for a human to resolve. It has
// no effect on the permission table.
func (g *Gate) RequestApproval(kind ActionKind, details map[string]any) PendingApproval {
	g.log.Warn("gate_approval_requested", "kind", string(kind))
	return PendingApproval{
		Status:               "pending",
		Action:               kind,
		Details:              details,
		RequiresUserApproval: true,
		Message:              fmt.Sprintf("User approval required for: %s", kind),
	}
}

// GrantApproval sets the table entry for kind to the supplied value, so an
// explicit deny also revokes a prior grant. No caller identity is verified;
// actor is recorded in the audit trail as supplied.
func (g *Gate) GrantApproval(ctx context.Context, kind ActionKind, approved bool, actor string) {
	g.mu.Lock()
	g.table[kind] = approved
	g.mu.Unlock()

	if approved {
		g.log.Info("gate_action_approved", "kind", string(kind), "actor", actor)
	} else {
		g.log.Warn("gate_action_denied", "kind", string(kind), "actor", actor)
	}
	g.Audit(ctx, AuditEvent{
		Check:   CheckGrant,
		Kind:    kind,
		Allowed: approved,
		Actor:   actor,
	})
}

// Approved returns a snapshot of the current permission table.
func (g *Gate) Approved() map[ActionKind]bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	cp := make(map[ActionKind]bool, len(g.table))
	for k, v := range g.table {
		cp[k] = v
	}
	return cp
}

// IsSafeContent reports whether text is free of dangerous patterns. The scan
// is case-insensitive and independent of the permission table.
func (g *Gate) IsSafeContent(text string) bool {
	_, ok := g.dangerousMatch(text)
	return !ok
}

// DangerousMatch returns the first dangerous pattern contained in text.
func (g *Gate) DangerousMatch(text string) (string, bool) {
	return g.dangerousMatch(text)
}

func (g *Gate) dangerousMatch(text string) (string, bool) {
	match, ok := strutil.FirstContainedFold(text, g.patterns)
	if ok {
		g.log.Warn("gate_dangerous_pattern", "pattern", match)
	}
	return match, ok
}

// IsSafePath reports whether path canonicalizes to a descendant of an
// allowed root. Any resolution failure means unsafe.
func (g *Gate) IsSafePath(path string) bool {
	canon, err := pathutil.Canonical(path)
	if err != nil {
		g.log.Error("gate_path_resolve_error", "path", path, "error", err.Error())
		return false
	}
	for _, root := range g.roots {
		if pathutil.Contains(root, canon) {
			return true
		}
	}
	g.log.Warn("gate_unsafe_path", "path", path)
	return false
}

// SanitizePath strips literal "../" and "..\" sequences from the raw text.
// It is a textual filter only and does not catch encoded or repeated
// traversal variants; IsSafePath is the check execution relies on.
func (g *Gate) SanitizePath(path string) string {
	path = strings.ReplaceAll(path, "../", "")
	return strings.ReplaceAll(path, "..\\", "")
}

// Audit emits e to the configured sink, filling in event id and timestamp and
// scrubbing the summary. Sink failures are logged, never surfaced.
func (g *Gate) Audit(ctx context.Context, e AuditEvent) {
	if g.sink == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.EventID == "" {
		e.EventID = newEventID(e.SessionID, e.Timestamp)
	}
	if e.SummaryRedacted != "" {
		redacted, _ := g.redactor.Redact(e.SummaryRedacted)
		e.SummaryRedacted = strutil.TruncateUTF8(redacted, auditSummaryMaxBytes)
	}
	if err := g.sink.Emit(ctx, e); err != nil {
		g.log.Warn("gate_audit_emit_error", "error", err.Error())
	}
}

func (g *Gate) Close() error {
	if g.sink == nil {
		return nil
	}
	return g.sink.Close()
}
