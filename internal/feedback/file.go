package feedback

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/abhorkarpet/deadline-agent/internal/models"
)

// FileLog stores records as newline-delimited JSON, one record per line.
// This is the default backend; the file format is part of the external
// contract and other tools may append to it.
type FileLog struct {
	path string
	mu   sync.Mutex
}

func NewFileLog(path string) *FileLog {
	return &FileLog{path: path}
}

func (l *FileLog) Append(rec models.FeedbackRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode feedback record: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open feedback log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write feedback record: %w", err)
	}
	return nil
}

func (l *FileLog) Load() ([]models.FeedbackRecord, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open feedback log: %w", err)
	}
	defer f.Close()

	var records []models.FeedbackRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec models.FeedbackRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			// Corrupt lines are skipped, not fatal.
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, fmt.Errorf("read feedback log: %w", err)
	}
	return records, nil
}

func (l *FileLog) Exists() bool {
	_, err := os.Stat(l.path)
	return err == nil
}

func (l *FileLog) Close() error { return nil }
