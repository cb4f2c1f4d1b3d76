package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const defaultRotateMaxBytes = 100 * 1024 * 1024

// JSONLAuditSink appends one JSON object per line to a local file, renaming
// the file aside once it would exceed the configured size.
type JSONLAuditSink struct {
	path     string
	maxBytes int64

	mu   sync.Mutex
	f    *os.File
	size int64
}

func NewJSONLAuditSink(path string, rotateMaxBytes int64) (*JSONLAuditSink, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("missing jsonl path")
	}
	if rotateMaxBytes <= 0 {
		rotateMaxBytes = defaultRotateMaxBytes
	}
	s := &JSONLAuditSink{path: path, maxBytes: rotateMaxBytes}
	if err := s.openLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *JSONLAuditSink) Emit(ctx context.Context, e AuditEvent) error {
	_ = ctx
	if s == nil {
		return nil
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	line := append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.rotateIfNeededLocked(int64(len(line))); err != nil {
		return err
	}
	if s.f == nil {
		return fmt.Errorf("audit sink is not initialized")
	}
	n, err := s.f.Write(line)
	s.size += int64(n)
	return err
}

func (s *JSONLAuditSink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	s.size = 0
	return err
}

func (s *JSONLAuditSink) openLocked() error {
	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if st, err := f.Stat(); err == nil {
		s.size = st.Size()
	}
	s.f = f
	return nil
}

func (s *JSONLAuditSink) rotateIfNeededLocked(addBytes int64) error {
	if s.size+addBytes <= s.maxBytes {
		return nil
	}
	if s.f != nil {
		_ = s.f.Close()
		s.f = nil
	}
	ts := time.Now().UTC().Format("20060102T150405Z")
	if err := os.Rename(s.path, s.path+"."+ts); err != nil {
		// Rename failed; keep appending to the oversized file rather than
		// dropping events.
		return s.openLocked()
	}
	s.size = 0
	return s.openLocked()
}
