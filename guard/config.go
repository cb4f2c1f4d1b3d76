package guard

import (
	"os"
	"path/filepath"
)

type Config struct {
	// Permissions overrides the default per-kind table. Keys absent from the
	// effective table are always denied.
	Permissions map[ActionKind]bool

	// DangerousPatterns are case-insensitive substrings that veto content
	// regardless of permission state. Empty means DefaultDangerousPatterns.
	DangerousPatterns []string

	// AllowedRoots are filesystem roots under which paths are considered
	// safe. Empty means DefaultAllowedRoots.
	AllowedRoots []string

	Audit     AuditConfig
	Redaction RedactionConfig
}

type AuditConfig struct {
	JSONLPath      string
	RotateMaxBytes int64
}

type RedactionConfig struct {
	Enabled  bool
	Patterns []RegexPattern
}

type RegexPattern struct {
	Name string
	Re   string
}

// DefaultPermissions returns the built-in table: reading is pre-approved,
// everything side-effecting requires an explicit grant.
func DefaultPermissions() map[ActionKind]bool {
	return map[ActionKind]bool{
		ActionReadFiles:       true,
		ActionWriteFiles:      false,
		ActionExecuteCode:     false,
		ActionModifySystem:    false,
		ActionDeleteFiles:     false,
		ActionInstallPackages: false,
	}
}

func DefaultDangerousPatterns() []string {
	return []string{
		"rm -rf",
		"del /s /q",
		"drop database",
		"truncate table",
		"chmod 777",
		"sudo",
	}
}

func DefaultAllowedRoots() []string {
	roots := []string{"/tmp"}
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		roots = append([]string{
			filepath.Join(home, "projects"),
			filepath.Join(home, "code"),
		}, roots...)
	}
	return roots
}
