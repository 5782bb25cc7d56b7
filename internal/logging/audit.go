package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType names an operation lifecycle event.
type AuditEventType string

const (
	AuditOpSubmit AuditEventType = "op_submit" // accepted into the work queue
	AuditOpReject AuditEventType = "op_reject" // refused at submission
	AuditOpCancel AuditEventType = "op_cancel" // cancel requested
	AuditOpDone   AuditEventType = "op_done"   // completed every item
	AuditOpShort  AuditEventType = "op_short"  // completed fewer items than requested
	AuditOpFailed AuditEventType = "op_failed" // failed or canceled
)

// AuditEvent is one line of the audit trail.
type AuditEvent struct {
	Timestamp  int64          `json:"ts"` // Unix milliseconds
	EventType  AuditEventType `json:"event"`
	OpID       string         `json:"op,omitempty"`
	Command    string         `json:"command"`
	Completed  int64          `json:"completed"`
	Total      int64          `json:"total"`
	Success    bool           `json:"success"`
	DurationMs int64          `json:"dur_ms,omitempty"`
	Error      string         `json:"error,omitempty"`
	Message    string         `json:"msg,omitempty"`
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger = &AuditLogger{}
)

// AuditLogger appends operation events as JSON lines to <logs>/<date>_audit.log.
// It writes nothing unless debug mode is on.
type AuditLogger struct{}

// InitAudit opens the audit file. Initialize calls it in debug mode.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	configMu.RLock()
	dir := logsDir
	configMu.RUnlock()

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(dir, fmt.Sprintf("%s_audit.log", date))
	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global audit logger
func Audit() *AuditLogger {
	return auditLogger
}

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// OpSubmit records an operation accepted into the queue.
func (a *AuditLogger) OpSubmit(id, command string, total int64) {
	a.Log(AuditEvent{EventType: AuditOpSubmit, OpID: id, Command: command, Total: total, Success: true})
}

// OpReject records a submission refused before queueing.
func (a *AuditLogger) OpReject(command string, err error) {
	a.Log(AuditEvent{EventType: AuditOpReject, Command: command, Error: errString(err)})
}

// OpCancel records a cancel request and the status it found.
func (a *AuditLogger) OpCancel(id, command, status string) {
	a.Log(AuditEvent{EventType: AuditOpCancel, OpID: id, Command: command, Success: true, Message: status})
}

// OpEnd records a terminal operation: done, short or failed.
func (a *AuditLogger) OpEnd(id, command string, completed, total int64, elapsed time.Duration, err error) {
	ev := AuditEvent{
		OpID:       id,
		Command:    command,
		Completed:  completed,
		Total:      total,
		DurationMs: elapsed.Milliseconds(),
	}
	switch {
	case err != nil:
		ev.EventType = AuditOpFailed
		ev.Error = err.Error()
	case completed < total:
		ev.EventType = AuditOpShort
		ev.Success = true
	default:
		ev.EventType = AuditOpDone
		ev.Success = true
	}
	a.Log(ev)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
