package feedback

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/abhorkarpet/deadline-agent/internal/models"
)

// Stats is the aggregate view of the correction log, computed once per scan
// and cached until the next append invalidates it.
type Stats struct {
	TotalFeedback int
	// BySender counts feedback entries per sender identity.
	BySender map[string]int
	// ByKeyword counts entries whose title+reason mention a watch-list
	// keyword.
	ByKeyword map[string]int
	// CommonReasons counts reason texts, truncated to keep the map sane.
	CommonReasons map[string]int
}

// Watch-list of promotional terms. The keyword stats scan title and reason
// text; the penalty check deliberately scans only the item's own title.
var (
	watchKeywords   = []string{"promotional", "marketing", "sale", "discount", "offer", "deal", "promo"}
	penaltyKeywords = []string{"promotional", "marketing", "sale", "discount", "offer"}
)

const (
	// DefaultBlacklistThreshold answers advisory sender queries.
	DefaultBlacklistThreshold = 2
	// FilterBlacklistThreshold is the stricter bar that drives automatic
	// filtering during a scan.
	FilterBlacklistThreshold = 3
	// DefaultMinConfidence is the floor below which penalized items are
	// filtered out entirely.
	DefaultMinConfidence = 0.3

	confidenceFloor = 0.1
	maxReasonLen    = 100
)

// Learner derives filtering and confidence-penalty rules from the
// correction log. Stats are cached read-through; the write path must call
// InvalidateCache (or go through Record) after every append so no scan
// reads statistics older than the latest correction.
type Learner struct {
	log    Log
	logger *zap.Logger

	// Penalty tuning. The defaults are empirical, not derived from a
	// model; treat them as configuration.
	SenderPenaltyStep float64
	SenderPenaltyCap  float64
	KeywordPenalty    float64

	mu    sync.Mutex
	cache *Stats
}

func NewLearner(log Log, logger *zap.Logger) *Learner {
	return &Learner{
		log:               log,
		logger:            logger,
		SenderPenaltyStep: 0.1,
		SenderPenaltyCap:  0.5,
		KeywordPenalty:    0.15,
	}
}

// Stats returns the cached aggregate, loading and computing it on demand.
// A missing or unreadable log yields zero-valued stats, never an error.
func (l *Learner) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cache != nil {
		return *l.cache
	}

	records, err := l.log.Load()
	if err != nil {
		l.logger.Warn("failed to load feedback log", zap.Error(err))
	}
	stats := computeStats(records)
	l.cache = &stats
	return stats
}

// InvalidateCache drops the cached stats. Must be called synchronously
// after every append that bypasses Record.
func (l *Learner) InvalidateCache() {
	l.mu.Lock()
	l.cache = nil
	l.mu.Unlock()
}

// Record appends a correction and invalidates the cache in one step, so
// the next scan is guaranteed to see it.
func (l *Learner) Record(rec models.FeedbackRecord) error {
	if err := l.log.Append(rec); err != nil {
		return fmt.Errorf("append feedback: %w", err)
	}
	l.InvalidateCache()
	return nil
}

// IsBlacklistedSender reports whether the sender has accumulated at least
// threshold corrections. A non-positive threshold uses the advisory
// default, which is looser than the one scan filtering applies.
func (l *Learner) IsBlacklistedSender(sender string, threshold int) bool {
	if threshold <= 0 {
		threshold = DefaultBlacklistThreshold
	}
	return l.Stats().BySender[sender] >= threshold
}

// ConfidencePenalty computes the additive penalty for an item: the sender
// component is capped, but keyword components stack on top, so the total
// can exceed the sender cap.
func (l *Learner) ConfidencePenalty(item models.DeadlineItem) float64 {
	stats := l.Stats()
	penalty := 0.0

	if sender := item.Sender(); sender != "" {
		if n := stats.BySender[sender]; n > 0 {
			penalty += math.Min(float64(n)*l.SenderPenaltyStep, l.SenderPenaltyCap)
		}
	}

	title := strings.ToLower(item.Title)
	for _, keyword := range penaltyKeywords {
		if strings.Contains(title, keyword) && stats.ByKeyword[keyword] > 0 {
			penalty += l.KeywordPenalty
		}
	}
	return penalty
}

// ShouldFilter is a pure predicate: blacklisted sender, or confidence that
// falls under minConfidence once the penalty is applied.
func (l *Learner) ShouldFilter(item models.DeadlineItem, minConfidence float64) bool {
	if sender := item.Sender(); sender != "" {
		if l.IsBlacklistedSender(sender, FilterBlacklistThreshold) {
			return true
		}
	}
	return item.Confidence-l.ConfidencePenalty(item) < minConfidence
}

// Apply filters and penalizes candidates. Survivors keep their input order
// and never drop below the confidence floor. With no feedback recorded yet
// the input is returned untouched.
func (l *Learner) Apply(items []models.DeadlineItem) []models.DeadlineItem {
	if !l.log.Exists() {
		return items
	}

	kept := make([]models.DeadlineItem, 0, len(items))
	for _, item := range items {
		if l.ShouldFilter(item, DefaultMinConfidence) {
			continue
		}
		if penalty := l.ConfidencePenalty(item); penalty > 0 {
			item.Confidence = math.Max(confidenceFloor, item.Confidence-penalty)
		}
		kept = append(kept, item)
	}
	return kept
}

func computeStats(records []models.FeedbackRecord) Stats {
	stats := Stats{
		TotalFeedback: len(records),
		BySender:      make(map[string]int),
		ByKeyword:     make(map[string]int),
		CommonReasons: make(map[string]int),
	}
	for _, rec := range records {
		if sender := rec.Sender(); sender != "" {
			stats.BySender[sender]++
		}

		combined := strings.ToLower(rec.Title + " " + rec.Reason)
		for _, keyword := range watchKeywords {
			if strings.Contains(combined, keyword) {
				stats.ByKeyword[keyword]++
			}
		}

		if reason := strings.ToLower(strings.TrimSpace(rec.Reason)); reason != "" {
			if len(reason) > maxReasonLen {
				reason = reason[:maxReasonLen]
			}
			stats.CommonReasons[reason]++
		}
	}
	return stats
}
