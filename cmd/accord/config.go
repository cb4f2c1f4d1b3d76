package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/quailyquaily/accord/guard"
	"github.com/quailyquaily/accord/internal/pathutil"
	"github.com/quailyquaily/accord/negotiation"
)

func setDefaults() {
	viper.SetDefault("log.level", "info")

	viper.SetDefault("server.addr", ":8791")

	viper.SetDefault("sessions.max_age", 24*time.Hour)
	viper.SetDefault("sessions.sweep_interval", time.Hour)

	viper.SetDefault("gate.redaction.enabled", true)
	viper.SetDefault("gate.audit.rotate_max_bytes", int64(100*1024*1024))

	viper.SetDefault("history.sqlite.enabled", true)
	viper.SetDefault("history.sqlite.path", "~/.accord/history.db")
}

func gateFromViper(log *slog.Logger) *guard.Gate {
	if log == nil {
		log = slog.Default()
	}

	cfg := guard.Config{
		DangerousPatterns: viper.GetStringSlice("gate.dangerous_patterns"),
		AllowedRoots:      viper.GetStringSlice("gate.allowed_roots"),
		Redaction: guard.RedactionConfig{
			Enabled: viper.GetBool("gate.redaction.enabled"),
		},
	}
	_ = viper.UnmarshalKey("gate.redaction.patterns", &cfg.Redaction.Patterns)

	if raw := viper.GetStringMap("gate.permissions"); len(raw) > 0 {
		perms := guard.DefaultPermissions()
		for k, v := range raw {
			if b, ok := v.(bool); ok {
				perms[guard.ActionKind(k)] = b
			}
		}
		cfg.Permissions = perms
	}

	if rulesPath := strings.TrimSpace(viper.GetString("gate.rules_file")); rulesPath != "" {
		rf, err := guard.LoadRulesFile(pathutil.ExpandHomePath(rulesPath))
		if err != nil {
			log.Warn("gate_rules_file_error", "path", rulesPath, "error", err.Error())
		} else {
			cfg.Apply(rf)
		}
	}

	jsonlPath := strings.TrimSpace(viper.GetString("gate.audit.jsonl_path"))
	if jsonlPath == "" {
		if home, err := os.UserHomeDir(); err == nil && strings.TrimSpace(home) != "" {
			jsonlPath = filepath.Join(home, ".accord", "gate_audit.jsonl")
		}
	}
	jsonlPath = pathutil.ExpandHomePath(jsonlPath)

	var sink guard.AuditSink
	if jsonlPath != "" {
		s, err := guard.NewJSONLAuditSink(jsonlPath, viper.GetInt64("gate.audit.rotate_max_bytes"))
		if err != nil {
			log.Warn("gate_audit_sink_error", "error", err.Error())
		} else {
			sink = s
		}
	}

	log.Info("gate_enabled",
		"dangerous_patterns", len(cfg.DangerousPatterns),
		"allowed_roots", len(cfg.AllowedRoots),
		"audit_jsonl", jsonlPath,
	)

	return guard.New(cfg, sink, log)
}

func historyFromViper(log *slog.Logger) *negotiation.HistoryLog {
	if !viper.GetBool("history.sqlite.enabled") {
		return negotiation.NewHistoryLog(nil, log)
	}

	path := pathutil.ExpandHomePath(viper.GetString("history.sqlite.path"))
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			log.Warn("history_dir_error", "dir", dir, "error", err.Error())
			return negotiation.NewHistoryLog(nil, log)
		}
	}

	store, err := negotiation.NewSQLiteHistoryStore(path)
	if err != nil {
		log.Warn("history_store_error", "path", path, "error", err.Error())
		return negotiation.NewHistoryLog(nil, log)
	}
	log.Info("history_store_enabled", "path", path)
	return negotiation.NewHistoryLog(store, log)
}
