package extractor

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/abhorkarpet/deadline-agent/internal/content"
	"github.com/abhorkarpet/deadline-agent/internal/dates"
	"github.com/abhorkarpet/deadline-agent/internal/models"
)

// patternConfidence is the fixed score for rule-based matches; the rules
// are precise but cannot judge context the way the AI extractor can.
const patternConfidence = 0.6

const contextWindow = 80

type patternRule struct {
	re       *regexp.Regexp
	category models.Category
}

var deadlinePatterns = []patternRule{
	{regexp.MustCompile(`(?i)free trial ends on\s*([^.\n]+)`), models.CategoryTrial},
	{regexp.MustCompile(`(?i)trial period ends\s*(on|by)?\s*([^.\n]+)`), models.CategoryTrial},
	{regexp.MustCompile(`(?i)renew(s|al) on\s*([^.\n]+)`), models.CategorySubscription},
	{regexp.MustCompile(`(?i)subscription renew(s|al)\s*(on|by)?\s*([^.\n]+)`), models.CategorySubscription},
	{regexp.MustCompile(`(?i)next billing date\s*(is|:)\s*([^.\n]+)`), models.CategoryBilling},
	{regexp.MustCompile(`(?i)billing date\s*(is|:)\s*([^.\n]+)`), models.CategoryBilling},
	{regexp.MustCompile(`(?i)cancel by\s*([^.\n]+)`), models.CategoryGeneral},
	{regexp.MustCompile(`(?i)cancellation deadline\s*(is|:)\s*([^.\n]+)`), models.CategoryGeneral},
	{regexp.MustCompile(`(?i)fully refundable until\s*([^.\n]+)`), models.CategoryRefund},
	{regexp.MustCompile(`(?i)refund deadline\s*(is|:)\s*([^.\n]+)`), models.CategoryRefund},
	{regexp.MustCompile(`(?i)(hotel|flight|booking|reservation).*cancel.*(by|until|before)\s*([^.\n]+)`), models.CategoryTravel},
	{regexp.MustCompile(`(?i)cancel.*(hotel|flight|booking|reservation).*(by|until|before)\s*([^.\n]+)`), models.CategoryTravel},
}

// Promotional-content guard: a match surrounded by sale talk is dropped
// unless the same window also mentions a genuine obligation.
var (
	promoTerms  = []string{"sale", "discount", "off", "promo", "limited time", "deal expires"}
	actionTerms = []string{"subscription", "trial", "cancel"}
)

// PatternExtractor finds deadlines with a fixed rule table. It makes no
// external calls and is deterministic for a fixed reference date.
type PatternExtractor struct {
	referenceNow time.Time
}

func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{referenceNow: time.Now().UTC()}
}

// NewPatternExtractorAt pins the fallback reference date used for messages
// that carry no received date of their own.
func NewPatternExtractorAt(referenceNow time.Time) *PatternExtractor {
	return &PatternExtractor{referenceNow: referenceNow}
}

func (e *PatternExtractor) ExtractFromMessage(_ context.Context, msg models.EmailMessage) ([]models.DeadlineItem, error) {
	corpus := msg.Text
	if msg.HTML != "" {
		corpus = corpus + "\n" + content.FromHTML(msg.HTML)
	}

	ref := msg.Date
	if ref.IsZero() {
		ref = e.referenceNow
	}

	var candidates []models.DeadlineItem
	for _, rule := range deadlinePatterns {
		for _, loc := range rule.re.FindAllStringSubmatchIndex(corpus, -1) {
			phrase := lastCapturedGroup(corpus, loc)
			if phrase == "" {
				continue
			}
			deadline, ok := dates.Parse(phrase, ref)
			if !ok {
				continue
			}

			start, end := loc[0], loc[1]
			window := corpus[max(0, start-contextWindow):min(len(corpus), end+contextWindow)]
			if looksPromotional(window) {
				continue
			}

			title := msg.Subject
			if title == "" {
				title = "Deadline"
			}

			candidates = append(candidates, models.DeadlineItem{
				DeadlineAt:   deadline,
				Title:        title,
				Source:       models.EmailSource(msg.Sender),
				Confidence:   patternConfidence,
				Context:      window,
				Category:     rule.category,
				EmailDate:    msg.Date,
				EmailExcerpt: content.Around(corpus, start, end),
			})
		}
	}

	items := dedupe(candidates)
	models.SortItems(items)
	return items, nil
}

// lastCapturedGroup returns the last non-empty capture of a match, which by
// rule construction is always the raw date phrase.
func lastCapturedGroup(corpus string, loc []int) string {
	for i := len(loc) - 2; i >= 2; i -= 2 {
		if loc[i] >= 0 && loc[i+1] > loc[i] {
			return corpus[loc[i]:loc[i+1]]
		}
	}
	return ""
}

func looksPromotional(window string) bool {
	lower := strings.ToLower(window)
	promotional := false
	for _, term := range promoTerms {
		if strings.Contains(lower, term) {
			promotional = true
			break
		}
	}
	if !promotional {
		return false
	}
	for _, term := range actionTerms {
		if strings.Contains(lower, term) {
			return false
		}
	}
	return true
}
