package models

import "time"

// FeedbackRecord is one user correction ("this was not a real deadline").
// Records are append-only; nothing ever mutates or deletes them.
type FeedbackRecord struct {
	DeadlineAt string `json:"deadline_at"`
	Title      string `json:"title"`
	Source     string `json:"source"`
	Reason     string `json:"reason"`
	TS         string `json:"ts"`
}

// NewFeedbackRecord builds a record for an item the user rejected,
// stamped with the submission time.
func NewFeedbackRecord(item DeadlineItem, reason string, now time.Time) FeedbackRecord {
	return FeedbackRecord{
		DeadlineAt: item.DeadlineAt.Format("2006-01-02T15:04:05"),
		Title:      item.Title,
		Source:     item.Source,
		Reason:     reason,
		TS:         now.Format(time.RFC3339),
	}
}

// Sender returns the sender identity referenced by the record's source.
func (r FeedbackRecord) Sender() string {
	return DeadlineItem{Source: r.Source}.Sender()
}
