package mcp

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/competence/internal/constants"
)

// AuditEntry records one MCP tool invocation without its content.
type AuditEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	Session    string            `json:"session"`
	Tool       string            `json:"tool"`
	Learner    string            `json:"learner"`
	DurationMs int64             `json:"duration_ms"`
	Status     string            `json:"status"` // "success" or "error"
	Error      string            `json:"error,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
}

// AuditLogger appends entries to .competence/audit.jsonl. It is safe for
// concurrent use, and a nil AuditLogger ignores every call.
type AuditLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewAuditLogger opens root/.competence/audit.jsonl for append. When the
// file cannot be opened a warning goes to stderr and nil is returned.
func NewAuditLogger(root string) *AuditLogger {
	dir := filepath.Join(root, constants.DirName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot create audit log directory %s: %v\n", dir, err)
		return nil
	}
	path := filepath.Join(dir, "audit.jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot open audit log %s: %v\n", path, err)
		return nil
	}
	return &AuditLogger{file: f}
}

// Log appends one entry.
func (a *AuditLogger) Log(entry AuditEntry) {
	if a == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		_, _ = a.file.Write(data)
	}
}

// Close closes the log file.
func (a *AuditLogger) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// auditParams summarises tool parameters for the audit log. Enumerated
// values are logged as is; free-form ones only by presence; slices by
// length. Unknown keys are dropped. "_param_count" is always set.
func auditParams(params map[string]any) map[string]string {
	if params == nil {
		return nil
	}

	safeValue := map[string]bool{
		"format":        true,
		"success":       true,
		"explain":       true,
		"confirm":       true,
		"mastered_only": true,
	}
	presenceOnly := map[string]bool{
		"unit_id": true,
	}

	result := make(map[string]string)
	for key, val := range params {
		switch {
		case safeValue[key]:
			result[key] = fmt.Sprintf("%v", val)
		case presenceOnly[key]:
			result[key] = "(set)"
		case key == "items":
			if items, ok := val.([]EvidenceItem); ok {
				result[key] = summarizeItems(items)
			}
		}
	}
	result["_param_count"] = fmt.Sprintf("%d", len(params))
	return result
}

// summarizeItems renders direction counts, e.g. "down=1 up=2".
func summarizeItems(items []EvidenceItem) string {
	counts := make(map[string]int)
	for _, it := range items {
		counts[strings.ToLower(it.Direction)]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}

// auditTool records a finished tool call in the audit log and the
// decision log.
func (s *Server) auditTool(tool string, start time.Time, err error, params map[string]string) {
	entry := AuditEntry{
		Timestamp:  start,
		Session:    s.sessionID,
		Tool:       tool,
		Learner:    s.session.LearnerID(),
		DurationMs: time.Since(start).Milliseconds(),
		Status:     "success",
		Params:     params,
	}
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	}
	s.audit.Log(entry)
	s.decisions.Log("tool_call", map[string]any{
		"session": s.sessionID,
		"tool":    tool,
		"status":  entry.Status,
	})
}
