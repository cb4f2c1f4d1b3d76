// Package executor provides ActionExecutor implementations for the
// negotiation coordinator. The real execution backends (shells, editors,
// package managers) live outside this repository; DryRun exists so the
// daemon can run the full negotiation flow without side effects.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quailyquaily/accord/guard"
	"github.com/quailyquaily/accord/negotiation"
)

// DryRun acknowledges approved actions without performing them. It still
// enforces the path allow-list for file actions, mirroring what a real
// backend is expected to do on its side of the boundary.
type DryRun struct {
	gate *guard.Gate
	log  *slog.Logger
}

func NewDryRun(gate *guard.Gate, log *slog.Logger) *DryRun {
	if log == nil {
		log = slog.Default()
	}
	return &DryRun{gate: gate, log: log}
}

func (d *DryRun) Execute(ctx context.Context, action negotiation.Action) (string, error) {
	_ = ctx
	if path, ok := actionPath(action); ok && d.gate != nil {
		sanitized := d.gate.SanitizePath(path)
		if !d.gate.IsSafePath(sanitized) {
			return "", fmt.Errorf("path outside allowed roots: %s", path)
		}
	}
	d.log.Info("dry_run_execute", "kind", string(action.Kind), "description", action.Description)
	return fmt.Sprintf("dry-run: would %s", action.Description), nil
}

func actionPath(action negotiation.Action) (string, bool) {
	for _, key := range []string{"path", "file", "filename"} {
		if v, ok := action.Details[key].(string); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}
