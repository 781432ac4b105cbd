package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/abhorkarpet/deadline-agent/internal/models"
)

// FileSource reads a scan's messages from a JSON mailbox file (an array of
// messages). It is the local/demo collaborator: it honors the scan window
// and cap the same way a real mail source would, keeping the newest
// messages when the cap bites.
type FileSource struct {
	path string
	now  func() time.Time
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, now: time.Now}
}

func (s *FileSource) Fetch(ctx context.Context, window Window, maxMessages int) ([]models.EmailMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read mailbox file: %w", err)
	}
	var all []models.EmailMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("decode mailbox file %s: %w", s.path, err)
	}

	cutoff := window.Cutoff(s.now())
	messages := make([]models.EmailMessage, 0, len(all))
	for _, msg := range all {
		if msg.Date.Before(cutoff) {
			continue
		}
		messages = append(messages, msg)
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Date.Before(messages[j].Date)
	})
	if maxMessages > 0 && len(messages) > maxMessages {
		messages = messages[len(messages)-maxMessages:]
	}
	return messages, nil
}
