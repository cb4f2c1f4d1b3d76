package guard

import (
	"regexp"
	"strings"
)

// Redactor scrubs secret-looking content from audit summaries before they
// reach disk. Patterns from config are applied after the built-ins.
type Redactor struct {
	custom []*regexp.Regexp
}

var (
	reBearer = regexp.MustCompile(`(?i)\bbearer\s+[A-Za-z0-9._-]{10,}\b`)
	reJWT    = regexp.MustCompile(`(?m)\b[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\b`)
	reKV     = regexp.MustCompile(`(?i)\b([A-Za-z0-9_-]{1,32})(\s*[:=]\s*)([A-Za-z0-9._-]{12,})`)
)

func NewRedactor(cfg RedactionConfig) *Redactor {
	r := &Redactor{}
	if !cfg.Enabled {
		return r
	}
	for _, p := range cfg.Patterns {
		if strings.TrimSpace(p.Re) == "" {
			continue
		}
		re, err := regexp.Compile(p.Re)
		if err != nil {
			continue
		}
		r.custom = append(r.custom, re)
	}
	return r
}

func (r *Redactor) Redact(s string) (string, bool) {
	if r == nil || strings.TrimSpace(s) == "" {
		return s, false
	}
	orig := s
	s = reBearer.ReplaceAllString(s, "Bearer [redacted]")
	s = reJWT.ReplaceAllString(s, "[redacted_jwt]")
	s = reKV.ReplaceAllStringFunc(s, func(m string) string {
		sub := reKV.FindStringSubmatch(m)
		if len(sub) != 4 || !sensitiveKey(sub[1]) {
			return m
		}
		return sub[1] + sub[2] + "[redacted]"
	})
	for _, re := range r.custom {
		s = re.ReplaceAllString(s, "[redacted]")
	}
	return s, s != orig
}

func sensitiveKey(key string) bool {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.ReplaceAll(strings.ReplaceAll(k, "-", ""), "_", "")
	for _, marker := range []string{"apikey", "authorization", "token", "secret", "password"} {
		if strings.Contains(k, marker) {
			return true
		}
	}
	return false
}
