package feedback

import "github.com/abhorkarpet/deadline-agent/internal/models"

// Log is the durable, append-only store of correction records. An
// implementation never rewrites or drops records once written.
type Log interface {
	// Append stores one record.
	Append(rec models.FeedbackRecord) error
	// Load returns every readable record; corrupt entries are skipped,
	// never fatal.
	Load() ([]models.FeedbackRecord, error)
	// Exists reports whether any feedback has ever been recorded. The
	// learner uses it as a fast path to leave items untouched on systems
	// with no feedback history.
	Exists() bool
	Close() error
}
