package negotiation

import (
	"context"
	"log/slog"
	"sync"
)

// HistoryStore is an optional persistent backing for the history log.
type HistoryStore interface {
	Append(ctx context.Context, entry HistoryEntry) error
	List(ctx context.Context) ([]HistoryEntry, error)
	Close() error
}

// HistoryLog is the append-only record of completed actions. The in-memory
// list is authoritative for the process lifetime; the persistent store, when
// configured, is written best-effort so a storage hiccup never fails an
// otherwise completed action.
type HistoryLog struct {
	mu      sync.Mutex
	entries []HistoryEntry

	store HistoryStore
	log   *slog.Logger
}

func NewHistoryLog(store HistoryStore, log *slog.Logger) *HistoryLog {
	if log == nil {
		log = slog.Default()
	}
	return &HistoryLog{store: store, log: log}
}

func (h *HistoryLog) Append(ctx context.Context, entry HistoryEntry) {
	h.mu.Lock()
	h.entries = append(h.entries, entry)
	h.mu.Unlock()

	if h.store == nil {
		return
	}
	if err := h.store.Append(ctx, entry); err != nil {
		h.log.Warn("history_append_error", "session_id", entry.SessionID, "error", err.Error())
	}
}

// Entries returns a copy of the in-memory log in append order.
func (h *HistoryLog) Entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HistoryEntry(nil), h.entries...)
}

func (h *HistoryLog) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func (h *HistoryLog) Close() error {
	if h.store == nil {
		return nil
	}
	return h.store.Close()
}
