package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventLog records API-level transaction events, one JSON object per line.
type EventLog interface {
	Append(event string, data map[string]interface{}) error
}

type NopEventLog struct{}

func (NopEventLog) Append(string, map[string]interface{}) error { return nil }

type FileEventLog struct {
	mu  sync.Mutex
	f   *os.File
	now func() time.Time
}

func NewFileEventLog(path string) (*FileEventLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileEventLog{f: f, now: time.Now}, nil
}

func (l *FileEventLog) Append(event string, data map[string]interface{}) error {
	line, err := json.Marshal(map[string]interface{}{
		"timestamp": l.now().UTC().Format(time.RFC3339),
		"event":     event,
		"data":      data,
	})
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write event %s: %w", event, err)
	}
	return nil
}

func (l *FileEventLog) Close() error { return l.f.Close() }

var _ EventLog = NopEventLog{}
var _ EventLog = (*FileEventLog)(nil)
