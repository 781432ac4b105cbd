package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/abhorkarpet/deadline-agent/internal/content"
	"github.com/abhorkarpet/deadline-agent/internal/models"
)

// Content bounds keep prompt cost predictable: plain text, markup-derived
// text and the final prompt body each have their own ceiling.
const (
	maxTextChars    = 4000
	maxMarkupChars  = 2000
	maxPromptChars  = 3000
	aiExcerptLimit  = 400
	minAIConfidence = 0.5
	defaultAIConf   = 0.7
)

const systemPrompt = "You are a precise deadline extraction assistant. Always return valid JSON."

const extractionPrompt = `You are an expert at extracting deadline information from emails.

Analyze this email and extract ONLY actionable deadlines where the user must take action by a specific date to avoid charges, cancellations, or loss of benefits.

EXTRACT deadlines related to:
- Subscription renewals or cancellations (user must cancel by date X to avoid charge)
- Free trial end dates (trial expires on date X, user will be charged if not cancelled)
- Refund/cancellation deadlines (user can cancel/refund by date X)
- Billing dates (payment will be processed on date X)
- Travel/hotel booking cancellation deadlines (user can cancel booking for refund by date X)

CRITICAL RULES - DO NOT EXTRACT:
1. Promotional/marketing content:
   - Loyalty program promotions ("Earn status by staying X nights")
   - Marketing campaign deadlines
   - Promotional offers or deals
   - Discount expiration dates
   - Limited-time sales or special offers

2. Informational-only dates:
   - Dates when changes become effective (but no action required)
   - Dates when services start (but no cancellation deadline)
   - Investment changes effective dates (informational only)
   - Policy updates or notices (no deadline for action)

3. Incorrect categorization:
   - Do NOT mark as "travel" unless there's an actual hotel/flight booking with cancellation deadline
   - Do NOT mark as "subscription" unless there's an actual subscription renewal or cancellation deadline
   - Verify the category matches the actual content

4. Shopping/retail offers:
   - "Sale ends tomorrow"
   - "50%% off expires Jan 5"
   - "Limited time offer"
   - Any retail/promotional expiration dates

Email subject: %s
Email sender: %s
Email date: %s
Email content:
%s

Return a JSON array of deadline objects. Each object should have:
- "deadline_at": ISO 8601 date string (e.g., "2025-01-15T00:00:00")
- "title": Brief description (e.g., "Netflix subscription renews")
- "category": One of: "subscription" (renewals/cancellations), "trial" (free trial ends), "travel" (hotel/flight cancellations), "billing" (payment dates), "refund" (refund deadlines), "general" (other actionable deadlines)
- "confidence": 0.0-1.0 based on how explicit and actionable the deadline is (reduce confidence for promotional content, informational dates, or ambiguous deadlines)
- "summary": A brief 1-2 sentence summary explaining what action is required by the deadline

Examples of what to extract:
- "Your subscription renews on January 15, 2025. Cancel before then to avoid charges." -> {"deadline_at": "2025-01-15T00:00:00", "title": "Subscription renewal", "category": "subscription", "confidence": 0.9, "summary": "Subscription will automatically renew on January 15, 2025. Cancel before this date to avoid charges."}
- Invoice showing "Next billing: Feb 1" -> {"deadline_at": "2025-02-01T00:00:00", "title": "Next billing date", "category": "billing", "confidence": 0.8, "summary": "Next payment will be processed on February 1, 2025"}
- "Cancel hotel by Jan 10 for full refund" -> {"deadline_at": "2025-01-10T00:00:00", "title": "Hotel cancellation deadline", "category": "travel", "confidence": 0.9, "summary": "Hotel booking can be cancelled for full refund until January 10, 2025"}
- "Free trial ends February 5" -> {"deadline_at": "2025-02-05T00:00:00", "title": "Free trial ends", "category": "trial", "confidence": 0.9, "summary": "Free trial period expires on February 5, 2025. Cancel before then to avoid charges."}

Examples of what NOT to extract:
- "Earn Diamond status by staying 10 nights by Dec 15" -> [] (promotional/loyalty program)
- "Investment changes effective Jan 1" -> [] (informational only, no action required)
- "Sale ends tomorrow" -> [] (shopping promotion)
- "Hotel booking" email with no cancellation deadline mentioned -> [] (no actionable deadline)

If there are NO actionable deadlines (only promotional content, informational dates, or shopping offers), return an empty array: []

Return ONLY valid JSON, no other text.
`

// aiDeadline mirrors one object of the JSON array the service is asked to
// return. Confidence is a pointer so an omitted field is distinguishable
// from an explicit zero.
type aiDeadline struct {
	DeadlineAt string   `json:"deadline_at"`
	Title      string   `json:"title"`
	Category   string   `json:"category"`
	Confidence *float64 `json:"confidence"`
	Summary    string   `json:"summary"`
}

// OpenAIExtractor delegates interpretation to a chat-completion service.
// Higher recall than the pattern rules but each call costs money, so
// content is bounded before prompting.
type OpenAIExtractor struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	logger      *zap.Logger
}

func NewOpenAIExtractor(apiKey, model string, maxTokens int, temperature float64, logger *zap.Logger) *OpenAIExtractor {
	return NewOpenAIExtractorWithClient(openai.NewClient(apiKey), model, maxTokens, temperature, logger)
}

// NewOpenAIExtractorWithClient accepts a pre-built client, which lets tests
// point the extractor at a local HTTP server.
func NewOpenAIExtractorWithClient(client *openai.Client, model string, maxTokens int, temperature float64, logger *zap.Logger) *OpenAIExtractor {
	return &OpenAIExtractor{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(temperature),
		logger:      logger,
	}
}

func (e *OpenAIExtractor) ExtractFromMessage(ctx context.Context, msg models.EmailMessage) ([]models.DeadlineItem, error) {
	body := e.buildContent(msg)
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}

	emailDate := msg.Date
	if emailDate.IsZero() {
		emailDate = time.Now().UTC()
	}
	prompt := fmt.Sprintf(extractionPrompt,
		msg.Subject,
		msg.Sender,
		emailDate.Format("2006-01-02"),
		content.Truncate(body, maxPromptChars),
	)

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
	})
	if err != nil {
		if fatal := asInsufficientFunds(err); fatal != nil {
			return nil, fatal
		}
		e.logger.Debug("ai extraction failed",
			zap.String("uid", msg.UID),
			zap.Error(err))
		return nil, nil
	}
	if len(resp.Choices) == 0 {
		return nil, nil
	}
	return e.parseResponse(resp.Choices[0].Message.Content, msg), nil
}

func (e *OpenAIExtractor) buildContent(msg models.EmailMessage) string {
	body := content.Truncate(msg.Text, maxTextChars)
	if msg.HTML != "" {
		markupText := content.FromHTML(content.Truncate(msg.HTML, maxTextChars))
		body = body + "\n" + content.Truncate(markupText, maxMarkupChars)
	}
	return body
}

// parseResponse decodes the service reply defensively: a broken response
// yields no items, and malformed entries are skipped individually.
func (e *OpenAIExtractor) parseResponse(raw string, msg models.EmailMessage) []models.DeadlineItem {
	raw = stripCodeFence(strings.TrimSpace(raw))

	var entries []aiDeadline
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		e.logger.Debug("ai response was not a valid JSON array",
			zap.String("uid", msg.UID),
			zap.String("response", raw),
			zap.Error(err))
		return nil
	}

	var items []models.DeadlineItem
	for _, entry := range entries {
		deadline, ok := parseDeadlineTimestamp(entry.DeadlineAt)
		if !ok {
			continue
		}
		confidence := defaultAIConf
		if entry.Confidence != nil {
			confidence = *entry.Confidence
		}
		// Below this bar the service is usually describing a shopping
		// offer despite the instructions.
		if confidence < minAIConfidence {
			continue
		}

		title := entry.Title
		if title == "" {
			title = msg.Subject
		}
		if title == "" {
			title = "Deadline"
		}

		items = append(items, models.DeadlineItem{
			DeadlineAt:   deadline,
			Title:        title,
			Source:       models.EmailSource(msg.Sender),
			Confidence:   confidence,
			Category:     models.ParseCategory(entry.Category),
			EmailDate:    msg.Date,
			EmailExcerpt: e.excerpt(msg),
			EmailSummary: entry.Summary,
		})
	}
	return items
}

// excerpt is derived from the original message text, not the service
// output, so reviewers can verify claims against the actual email.
func (e *OpenAIExtractor) excerpt(msg models.EmailMessage) string {
	body := msg.Text
	if body == "" && msg.HTML != "" {
		body = content.FromHTML(content.Truncate(msg.HTML, maxMarkupChars))
	}
	return content.Leading(body, aiExcerptLimit)
}

// parseDeadlineTimestamp accepts RFC 3339 (including a "Z" suffix) and
// zone-less ISO forms, normalizing everything to UTC wall time so items
// from both extractors compare uniformly.
func parseDeadlineTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func stripCodeFence(raw string) string {
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	parts := strings.Split(raw, "```")
	if len(parts) < 2 {
		return raw
	}
	inner := strings.TrimSpace(parts[1])
	inner = strings.TrimPrefix(inner, "json")
	return strings.TrimSpace(inner)
}
