package extractor

import (
	"context"

	"github.com/abhorkarpet/deadline-agent/internal/models"
)

// Extractor turns one email message into deadline candidates. A nil error
// with an empty slice means "nothing found"; an error is reserved for
// failures the caller must act on, such as InsufficientFundsError.
type Extractor interface {
	ExtractFromMessage(ctx context.Context, msg models.EmailMessage) ([]models.DeadlineItem, error)
}

// dedupe collapses candidates sharing a (deadline, title, source) key,
// keeping the higher-confidence one. On equal confidence the first
// candidate encountered wins, which keeps a single run deterministic.
func dedupe(items []models.DeadlineItem) []models.DeadlineItem {
	seen := make(map[string]int, len(items))
	out := make([]models.DeadlineItem, 0, len(items))
	for _, item := range items {
		key := item.Key()
		if i, ok := seen[key]; ok {
			if item.Confidence > out[i].Confidence {
				out[i] = item
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, item)
	}
	return out
}
