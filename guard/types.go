package guard

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ActionKind identifies a class of side-effecting action an agent can
// propose. The permission table is keyed by kind; kinds not present in the
// table are always denied.
type ActionKind string

const (
	ActionReadFiles       ActionKind = "read_files"
	ActionWriteFiles      ActionKind = "write_files"
	ActionExecuteCode     ActionKind = "execute_code"
	ActionModifySystem    ActionKind = "modify_system"
	ActionDeleteFiles     ActionKind = "delete_files"
	ActionInstallPackages ActionKind = "install_packages"
)

type CheckType string

const (
	CheckPermission CheckType = "permission"
	CheckContent    CheckType = "content"
	CheckGrant      CheckType = "grant"
	CheckExecute    CheckType = "execute"
)

// PendingApproval describes an approval request that has been surfaced to a
// human but not yet resolved. Creating one does not change the permission
// table; only GrantApproval does.
type PendingApproval struct {
	Status               string         `json:"status"`
	Action               ActionKind     `json:"action"`
	Details              map[string]any `json:"details,omitempty"`
	RequiresUserApproval bool           `json:"requires_user_approval"`
	Message              string         `json:"message"`
}

type AuditEvent struct {
	EventID   string    `json:"event_id"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"ts"`

	Check   CheckType  `json:"check"`
	Kind    ActionKind `json:"action_kind,omitempty"`
	Allowed bool       `json:"allowed"`
	Reasons []string   `json:"reasons,omitempty"`

	SummaryRedacted string `json:"summary_redacted,omitempty"`
	ActionHash      string `json:"action_hash,omitempty"`
	Actor           string `json:"actor,omitempty"`
}

func newEventID(sessionID string, ts time.Time) string {
	seed := fmt.Sprintf("%s|%s", sessionID, ts.UTC().Format(time.RFC3339Nano))
	sum := sha256.Sum256([]byte(seed))
	return "evt_" + hex.EncodeToString(sum[:8])
}

// ActionHash returns a stable hash of an action descriptor so audit entries
// and history records can be correlated regardless of map iteration order.
func ActionHash(kind ActionKind, description string, details map[string]any) (string, error) {
	payload := map[string]any{
		"kind": string(kind),
	}
	if strings.TrimSpace(description) != "" {
		payload["description"] = description
	}
	if len(details) > 0 {
		payload["details"] = details
	}
	b, err := canonicalJSON(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// canonicalJSON encodes maps as sorted key/value sequences so equal values
// always produce equal bytes.
func canonicalJSON(v any) ([]byte, error) {
	cv, err := canonicalizeValue(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(cv)
}

func canonicalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]any, 0, len(keys)*2)
		for _, k := range keys {
			out = append(out, k)
			vv, err := canonicalizeValue(x[k])
			if err != nil {
				return nil, err
			}
			out = append(out, vv)
		}
		return out, nil
	case []any:
		out := make([]any, 0, len(x))
		for _, vv := range x {
			cv, err := canonicalizeValue(vv)
			if err != nil {
				return nil, err
			}
			out = append(out, cv)
		}
		return out, nil
	case string, float64, bool, nil, int, int64, json.Number:
		return x, nil
	default:
		// Best-effort for JSON-ish values.
		b, err := json.Marshal(x)
		if err != nil {
			return nil, fmt.Errorf("cannot canonicalize value of type %T", v)
		}
		var y any
		if err := json.Unmarshal(b, &y); err != nil {
			return nil, fmt.Errorf("cannot canonicalize value of type %T", v)
		}
		return canonicalizeValue(y)
	}
}
