package agent

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/abhorkarpet/deadline-agent/internal/extractor"
	"github.com/abhorkarpet/deadline-agent/internal/feedback"
	"github.com/abhorkarpet/deadline-agent/internal/models"
	"github.com/abhorkarpet/deadline-agent/internal/source"
)

type stubSource struct {
	messages []models.EmailMessage
	err      error
	calls    int
}

func (s *stubSource) Fetch(ctx context.Context, window source.Window, maxMessages int) ([]models.EmailMessage, error) {
	s.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.messages, s.err
}

// stubExtractor returns canned items per message UID.
type stubExtractor struct {
	items map[string][]models.DeadlineItem
	errs  map[string]error
}

func (s *stubExtractor) ExtractFromMessage(ctx context.Context, msg models.EmailMessage) ([]models.DeadlineItem, error) {
	if err := s.errs[msg.UID]; err != nil {
		return nil, err
	}
	return s.items[msg.UID], nil
}

func newTestLearner(t *testing.T) *feedback.Learner {
	t.Helper()
	log := feedback.NewFileLog(filepath.Join(t.TempDir(), "feedback.jsonl"))
	return feedback.NewLearner(log, zap.NewNop())
}

func message(uid, subject, sender string) models.EmailMessage {
	return models.EmailMessage{
		UID:     uid,
		Subject: subject,
		Sender:  sender,
		Date:    time.Date(2025, 2, 20, 9, 0, 0, 0, time.UTC),
		Text:    "body",
	}
}

func deadline(title string, day int, confidence float64) models.DeadlineItem {
	return models.DeadlineItem{
		DeadlineAt: time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC),
		Title:      title,
		Source:     "email:billing@acme.example",
		Confidence: confidence,
		Category:   models.CategoryGeneral,
	}
}

func TestCollectDeadlines_EndToEnd(t *testing.T) {
	src := &stubSource{messages: []models.EmailMessage{
		message("1", "Your trial is ending", "billing@acme.example"),
		message("2", "Booking confirmed", "hotel@example.com"),
	}}
	pattern := &stubExtractor{items: map[string][]models.DeadlineItem{
		"1": {deadline("Trial ends", 10, 0.6)},
	}}
	ai := &stubExtractor{items: map[string][]models.DeadlineItem{
		"2": {deadline("Cancel hotel", 5, 0.9)},
	}}

	a := New(src, pattern, ai, newTestLearner(t), zap.NewNop())
	items, stats, err := a.CollectDeadlines(context.Background(), Options{})
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "Cancel hotel", items[0].Title, "earlier deadline sorts first")
	assert.Equal(t, "Trial ends", items[1].Title)

	assert.Equal(t, StateDone, a.State())
	assert.Equal(t, 2, stats.EmailsFetched)
	assert.Equal(t, 2, stats.EmailsProcessed)
	assert.Equal(t, 2, stats.DeadlinesFound)
	assert.Equal(t, 2, stats.UniqueSenders)
	assert.Equal(t, []string{"Your trial is ending", "Booking confirmed"}, stats.SampleSubjects)
	assert.Empty(t, a.FetchedMessages(), "completed scans release retained messages")
}

func TestCollectDeadlines_SkipAI(t *testing.T) {
	src := &stubSource{messages: []models.EmailMessage{message("1", "s", "a@example.com")}}
	pattern := &stubExtractor{}
	ai := &stubExtractor{errs: map[string]error{
		"1": &extractor.InsufficientFundsError{Detail: "quota"},
	}}

	a := New(src, pattern, ai, newTestLearner(t), zap.NewNop())
	_, _, err := a.CollectDeadlines(context.Background(), Options{SkipAI: true})
	require.NoError(t, err, "ai extractor must not be consulted when skipped")
	assert.Equal(t, StateDone, a.State())
}

func TestCollectDeadlines_NilAIExtractor(t *testing.T) {
	src := &stubSource{messages: []models.EmailMessage{message("1", "s", "a@example.com")}}
	pattern := &stubExtractor{items: map[string][]models.DeadlineItem{
		"1": {deadline("Trial ends", 10, 0.6)},
	}}

	a := New(src, pattern, nil, newTestLearner(t), zap.NewNop())
	items, _, err := a.CollectDeadlines(context.Background(), Options{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCollectDeadlines_RecoverableAIErrorSkipsMessage(t *testing.T) {
	src := &stubSource{messages: []models.EmailMessage{
		message("1", "s1", "a@example.com"),
		message("2", "s2", "b@example.com"),
	}}
	pattern := &stubExtractor{}
	ai := &stubExtractor{
		items: map[string][]models.DeadlineItem{"2": {deadline("Kept", 10, 0.9)}},
		errs:  map[string]error{"1": errors.New("rate limited")},
	}

	a := New(src, pattern, ai, newTestLearner(t), zap.NewNop())
	items, _, err := a.CollectDeadlines(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Kept", items[0].Title)
}

func TestCollectDeadlines_FatalAIErrorInterrupts(t *testing.T) {
	fatal := &extractor.InsufficientFundsError{Detail: "insufficient_quota"}
	src := &stubSource{messages: []models.EmailMessage{message("1", "s", "a@example.com")}}
	ai := &stubExtractor{errs: map[string]error{"1": fatal}}

	a := New(src, &stubExtractor{}, ai, newTestLearner(t), zap.NewNop())
	_, _, err := a.CollectDeadlines(context.Background(), Options{})
	require.Error(t, err)
	assert.True(t, extractor.IsInsufficientFunds(err))
	assert.Equal(t, StateInterrupted, a.State())
	assert.Len(t, a.FetchedMessages(), 1, "fetched messages are retained for resumption")
}

func TestCollectDeadlines_ResumeDoesNotRefetch(t *testing.T) {
	src := &stubSource{messages: []models.EmailMessage{
		message("1", "s1", "a@example.com"),
		message("2", "s2", "b@example.com"),
	}}
	pattern := &stubExtractor{items: map[string][]models.DeadlineItem{
		"1": {deadline("First", 5, 0.6)},
		"2": {deadline("Second", 10, 0.6)},
	}}
	ai := &stubExtractor{errs: map[string]error{
		"2": &extractor.InsufficientFundsError{Detail: "quota"},
	}}

	a := New(src, pattern, ai, newTestLearner(t), zap.NewNop())
	_, _, err := a.CollectDeadlines(context.Background(), Options{})
	require.Error(t, err)
	require.Equal(t, StateInterrupted, a.State())
	require.Equal(t, 1, src.calls)

	// The billing problem is gone on the next run.
	ai.errs = nil
	items, stats, err := a.CollectDeadlines(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "resume reuses the retained messages")
	assert.Equal(t, StateDone, a.State())
	assert.Equal(t, 2, stats.EmailsProcessed)

	require.Len(t, items, 2)
	assert.Equal(t, "First", items[0].Title)
	assert.Equal(t, "Second", items[1].Title)
}

func TestCollectDeadlines_CancellationAtBatchBoundary(t *testing.T) {
	src := &stubSource{messages: []models.EmailMessage{message("1", "s", "a@example.com")}}
	a := New(src, &stubExtractor{}, nil, newTestLearner(t), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	opts := Options{Progress: func(msg string, fraction float64) {
		if fraction == 0.1 {
			cancel()
		}
	}}

	_, _, err := a.CollectDeadlines(ctx, opts)
	require.ErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, StateInterrupted, a.State())
	assert.Len(t, a.FetchedMessages(), 1)
}

func TestCollectDeadlines_FetchErrorResetsToIdle(t *testing.T) {
	src := &stubSource{err: errors.New("mailbox unavailable")}
	a := New(src, &stubExtractor{}, nil, newTestLearner(t), zap.NewNop())

	_, _, err := a.CollectDeadlines(context.Background(), Options{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInterrupted)
	assert.Equal(t, StateIdle, a.State())
}

func TestCollectDeadlines_ProgressSpansFullRange(t *testing.T) {
	messages := make([]models.EmailMessage, 250)
	for i := range messages {
		messages[i] = message(fmt.Sprint(i), fmt.Sprintf("subject %d", i), "a@example.com")
	}
	src := &stubSource{messages: messages}
	a := New(src, &stubExtractor{}, nil, newTestLearner(t), zap.NewNop())

	var fractions []float64
	opts := Options{Progress: func(msg string, fraction float64) {
		fractions = append(fractions, fraction)
	}}

	_, stats, err := a.CollectDeadlines(context.Background(), opts)
	require.NoError(t, err)

	require.NotEmpty(t, fractions)
	assert.Equal(t, 0.0, fractions[0])
	assert.Equal(t, 1.0, fractions[len(fractions)-1])
	for i := 1; i < len(fractions); i++ {
		assert.GreaterOrEqual(t, fractions[i], fractions[i-1])
	}

	assert.Equal(t, 250, stats.EmailsFetched)
	assert.Len(t, stats.SampleSubjects, 5)
}

func TestCollectDeadlines_FeedbackFiltering(t *testing.T) {
	learner := newTestLearner(t)
	rejected := models.DeadlineItem{
		DeadlineAt: time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		Title:      "Flash sale",
		Source:     "email:promo@shop.com",
		Confidence: 0.9,
	}
	for i := 0; i < feedback.FilterBlacklistThreshold; i++ {
		require.NoError(t, learner.Record(models.NewFeedbackRecord(rejected, "promo noise", time.Now())))
	}

	src := &stubSource{messages: []models.EmailMessage{message("1", "s", "promo@shop.com")}}
	pattern := &stubExtractor{items: map[string][]models.DeadlineItem{
		"1": {{
			DeadlineAt: time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC),
			Title:      "Another sale",
			Source:     "email:promo@shop.com",
			Confidence: 0.9,
		}},
	}}

	a := New(src, pattern, nil, learner, zap.NewNop())
	items, stats, err := a.CollectDeadlines(context.Background(), Options{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, stats.DeadlinesFound)
}
