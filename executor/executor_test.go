package executor

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quailyquaily/accord/guard"
	"github.com/quailyquaily/accord/negotiation"
)

func newDryRun(t *testing.T, root string) *DryRun {
	t.Helper()
	gate := guard.New(guard.Config{AllowedRoots: []string{root}}, nil, nil)
	return NewDryRun(gate, nil)
}

func TestDryRunAllowsPathInsideRoot(t *testing.T) {
	root := t.TempDir()
	d := newDryRun(t, root)

	detail, err := d.Execute(context.Background(), negotiation.Action{
		Kind:        guard.ActionWriteFiles,
		Description: "write notes.txt",
		Details:     map[string]any{"path": filepath.Join(root, "notes.txt")},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.HasPrefix(detail, "dry-run: would ") {
		t.Fatalf("detail = %q", detail)
	}
}

func TestDryRunRefusesPathOutsideRoot(t *testing.T) {
	d := newDryRun(t, t.TempDir())

	_, err := d.Execute(context.Background(), negotiation.Action{
		Kind:        guard.ActionWriteFiles,
		Description: "write passwd",
		Details:     map[string]any{"path": "/etc/passwd"},
	})
	if err == nil {
		t.Fatal("expected error for path outside allowed roots")
	}
}

func TestDryRunRefusesTraversalOutOfRoot(t *testing.T) {
	root := t.TempDir()
	d := newDryRun(t, root)

	_, err := d.Execute(context.Background(), negotiation.Action{
		Kind:        guard.ActionWriteFiles,
		Description: "write escape",
		Details:     map[string]any{"file": filepath.Join(root, "..", "escape.txt")},
	})
	if err == nil {
		t.Fatal("expected error for traversal outside root")
	}
}

func TestDryRunIgnoresActionsWithoutPaths(t *testing.T) {
	d := newDryRun(t, t.TempDir())

	if _, err := d.Execute(context.Background(), negotiation.Action{
		Kind:        guard.ActionExecuteCode,
		Description: "run tests",
		Details:     map[string]any{"command": "make test"},
	}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}
