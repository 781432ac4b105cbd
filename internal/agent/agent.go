package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhorkarpet/deadline-agent/internal/content"
	"github.com/abhorkarpet/deadline-agent/internal/extractor"
	"github.com/abhorkarpet/deadline-agent/internal/feedback"
	"github.com/abhorkarpet/deadline-agent/internal/models"
	"github.com/abhorkarpet/deadline-agent/internal/source"
)

// State tracks where a scan is. Interrupted is a resumable pause: fetched
// messages and collected candidates stay on the agent so the next call
// picks up processing without re-fetching.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateFetching
	StateProcessing
	StateFiltering
	StateDone
	StateInterrupted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateFetching:
		return "fetching"
	case StateProcessing:
		return "processing"
	case StateFiltering:
		return "filtering"
	case StateDone:
		return "done"
	case StateInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// ErrInterrupted reports a cooperative cancellation observed at a batch
// boundary. The agent keeps its fetched messages for resumption.
var ErrInterrupted = errors.New("scan interrupted")

const (
	batchSize          = 100
	sampleSubjectCount = 5
	sampleSubjectLen   = 60
)

// ProgressFunc receives advisory progress updates. Fractions are
// monotonically non-decreasing within one scan and span [0.0, 1.0]:
// 0.0 at connect, 0.1 once fetched, 0.1-0.9 across processing batches,
// 0.9 at filtering, 1.0 at completion.
type ProgressFunc func(message string, fraction float64)

// ScanStats summarizes one completed scan for downstream consumers.
type ScanStats struct {
	EmailsFetched   int      `json:"emails_fetched"`
	EmailsProcessed int      `json:"emails_processed"`
	DeadlinesFound  int      `json:"deadlines_found"`
	UniqueSenders   int      `json:"unique_senders"`
	SampleSubjects  []string `json:"sample_subjects"`
}

// Options configures one scan run.
type Options struct {
	Window      source.Window
	MaxMessages int
	// SkipAI disables the AI extractor for this run only.
	SkipAI   bool
	Progress ProgressFunc
}

// Agent drives the end-to-end scan: fetch, per-batch extraction with both
// strategies, feedback filtering, canonical sort, run statistics. Not safe
// for concurrent scans; run one at a time.
type Agent struct {
	source  source.Source
	pattern extractor.Extractor
	ai      extractor.Extractor // nil when AI extraction is disabled
	learner *feedback.Learner
	logger  *zap.Logger

	state     State
	fetched   []models.EmailMessage
	processed int
	pending   []models.DeadlineItem
}

func New(src source.Source, pattern, ai extractor.Extractor, learner *feedback.Learner, logger *zap.Logger) *Agent {
	return &Agent{
		source:  src,
		pattern: pattern,
		ai:      ai,
		learner: learner,
		logger:  logger,
		state:   StateIdle,
	}
}

func (a *Agent) State() State { return a.state }

// FetchedMessages exposes the retained messages of an interrupted scan.
func (a *Agent) FetchedMessages() []models.EmailMessage { return a.fetched }

// FetchMessages fetches without processing.
func (a *Agent) FetchMessages(ctx context.Context, opts Options) ([]models.EmailMessage, error) {
	return a.source.Fetch(ctx, opts.Window, opts.MaxMessages)
}

// CollectDeadlines runs one full scan. A previous interruption resumes from
// the retained messages instead of re-fetching. The returned error is
// ErrInterrupted on cancellation and the fatal extractor error when the AI
// service reports a billing failure; both leave the agent resumable.
func (a *Agent) CollectDeadlines(ctx context.Context, opts Options) ([]models.DeadlineItem, ScanStats, error) {
	log := a.logger.With(zap.String("run_id", uuid.NewString()))
	progress := opts.Progress
	if progress == nil {
		progress = func(string, float64) {}
	}

	if a.state == StateInterrupted && len(a.fetched) > 0 {
		log.Info("resuming interrupted scan",
			zap.Int("fetched", len(a.fetched)),
			zap.Int("already_processed", a.processed))
	} else {
		a.state = StateConnecting
		progress("Connecting to mail source...", 0.0)
		if err := ctx.Err(); err != nil {
			a.state = StateIdle
			return nil, ScanStats{}, fmt.Errorf("%w: %v", ErrInterrupted, err)
		}

		a.state = StateFetching
		messages, err := a.source.Fetch(ctx, opts.Window, opts.MaxMessages)
		if err != nil {
			if ctx.Err() != nil {
				a.state = StateInterrupted
				return nil, ScanStats{}, fmt.Errorf("%w: %v", ErrInterrupted, err)
			}
			a.state = StateIdle
			return nil, ScanStats{}, fmt.Errorf("fetch messages: %w", err)
		}
		a.fetched = messages
		a.processed = 0
		a.pending = nil
	}

	total := len(a.fetched)
	progress(fmt.Sprintf("Fetched %d emails. Processing...", total), 0.1)

	a.state = StateProcessing
	items := append([]models.DeadlineItem(nil), a.pending...)

	for start := a.processed; start < total; start += batchSize {
		// Cancellation is cooperative and checked at batch boundaries.
		if err := ctx.Err(); err != nil {
			a.interrupt(start, items)
			return nil, ScanStats{}, fmt.Errorf("%w: %v", ErrInterrupted, err)
		}

		end := min(start+batchSize, total)
		// Resumption replays the whole current batch, so an interrupt must
		// not carry items collected past this boundary.
		batchMark := len(items)
		progress(
			fmt.Sprintf("Processing emails %d-%d of %d...", start+1, end, total),
			0.1+0.8*float64(start)/float64(total),
		)

		for _, msg := range a.fetched[start:end] {
			patternItems, err := a.pattern.ExtractFromMessage(ctx, msg)
			if err != nil {
				log.Debug("pattern extraction failed",
					zap.String("uid", msg.UID), zap.Error(err))
			}
			items = append(items, patternItems...)

			if a.ai == nil || opts.SkipAI {
				continue
			}
			aiItems, err := a.ai.ExtractFromMessage(ctx, msg)
			if err != nil {
				if extractor.IsInsufficientFunds(err) {
					// Fatal: abort the scan, but keep fetched
					// messages so a later run can resume.
					a.interrupt(start, items[:batchMark])
					return nil, ScanStats{}, err
				}
				log.Debug("ai extraction failed",
					zap.String("uid", msg.UID), zap.Error(err))
				continue
			}
			items = append(items, aiItems...)
		}
		a.processed = end
	}

	progress(fmt.Sprintf("Found %d potential deadlines. Applying filters...", len(items)), 0.9)
	a.state = StateFiltering

	final := a.learner.Apply(items)
	models.SortItems(final)

	stats := a.buildStats(final)
	log.Info("scan complete",
		zap.Int("emails_fetched", stats.EmailsFetched),
		zap.Int("deadlines_found", stats.DeadlinesFound),
		zap.Int("filtered_out", len(items)-len(final)),
		zap.Int("unique_senders", stats.UniqueSenders))

	a.state = StateDone
	a.fetched = nil
	a.processed = 0
	a.pending = nil

	progress(fmt.Sprintf("Complete! Found %d deadlines.", len(final)), 1.0)
	return final, stats, nil
}

// interrupt records a resumable pause: fetched messages stay put and the
// candidates collected so far ride along for the next call.
func (a *Agent) interrupt(processed int, items []models.DeadlineItem) {
	a.state = StateInterrupted
	a.processed = processed
	a.pending = items
}

func (a *Agent) buildStats(final []models.DeadlineItem) ScanStats {
	senders := make(map[string]struct{}, len(a.fetched))
	samples := make([]string, 0, sampleSubjectCount)
	for _, msg := range a.fetched {
		senders[msg.Sender] = struct{}{}
		if len(samples) < sampleSubjectCount {
			samples = append(samples, content.Truncate(msg.Subject, sampleSubjectLen))
		}
	}
	return ScanStats{
		EmailsFetched:   len(a.fetched),
		EmailsProcessed: a.processed,
		DeadlinesFound:  len(final),
		UniqueSenders:   len(senders),
		SampleSubjects:  samples,
	}
}
