package source

import (
	"context"
	"errors"
	"time"

	"github.com/abhorkarpet/deadline-agent/internal/models"
)

// Source supplies the messages for one scan. Protocol and authentication
// details stay behind this interface; the agent only consumes the typed
// sequence.
type Source interface {
	Fetch(ctx context.Context, window Window, maxMessages int) ([]models.EmailMessage, error)
}

// Window bounds a scan to recent messages: a rolling day count or an
// absolute start date, never both.
type Window struct {
	Days  int
	Since time.Time
}

func (w Window) Validate() error {
	if w.Days < 0 {
		return errors.New("scan window: days must be non-negative")
	}
	if w.Days > 0 && !w.Since.IsZero() {
		return errors.New("scan window: days and since are mutually exclusive")
	}
	return nil
}

// Cutoff resolves the window to an absolute start time.
func (w Window) Cutoff(now time.Time) time.Time {
	if !w.Since.IsZero() {
		return w.Since
	}
	return now.AddDate(0, 0, -w.Days)
}
