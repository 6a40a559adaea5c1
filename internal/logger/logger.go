package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// defaultMaxLogBytes is the file size at which the log is rotated (10 MB).
const defaultMaxLogBytes = 10 * 1024 * 1024

// ScanEvent is one JSONL record in the scan audit log.
type ScanEvent struct {
	Timestamp string `json:"timestamp"`
	ScanID    string `json:"scan_id"`
	Event     string `json:"event"` // "warning" or "scan-complete"
	Input     string `json:"input,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Classes   int    `json:"classes,omitempty"`
	Skipped   int    `json:"skipped,omitempty"`
	Findings  int    `json:"findings,omitempty"`
}

// AuditLogger appends scan events to a JSONL file, rotating it to <path>.1
// when it reaches defaultMaxLogBytes.
type AuditLogger struct {
	path string
	file *os.File
	mu   sync.Mutex
}

func New(path string) (*AuditLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	return &AuditLogger{path: path, file: file}, nil
}

// rotateIfNeeded rotates the log file once it reaches the size cap. Must be
// called with l.mu held.
func (l *AuditLogger) rotateIfNeeded() error {
	info, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() < defaultMaxLogBytes {
		return nil
	}

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close log before rotation: %w", err)
	}

	rotated := l.path + ".1"
	_ = os.Remove(rotated)
	if err := os.Rename(l.path, rotated); err != nil {
		return fmt.Errorf("rotate log: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open fresh log after rotation: %w", err)
	}
	l.file = f
	return nil
}

// Log writes one event. The timestamp is filled in when empty.
func (l *AuditLogger) Log(event ScanEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotateIfNeeded(); err != nil {
		fmt.Fprintf(os.Stderr, "[CryptoAudit] warning: log rotation failed: %v\n", err)
	}

	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = l.file.Write(data)
	return err
}

func (l *AuditLogger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
