package models

import (
	"sort"
	"strings"
	"time"
)

// Category labels the kind of action a deadline demands.
type Category string

const (
	CategoryGeneral      Category = "general"
	CategorySubscription Category = "subscription"
	CategoryTravel       Category = "travel"
	CategoryTrial        Category = "trial"
	CategoryBilling      Category = "billing"
	CategoryRefund       Category = "refund"
)

var validCategories = map[Category]struct{}{
	CategoryGeneral:      {},
	CategorySubscription: {},
	CategoryTravel:       {},
	CategoryTrial:        {},
	CategoryBilling:      {},
	CategoryRefund:       {},
}

// ParseCategory maps free-form text onto the closed category set,
// defaulting to CategoryGeneral.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := validCategories[c]; ok {
		return c
	}
	return CategoryGeneral
}

// DeadlineItem is one actionable deadline extracted from an email.
type DeadlineItem struct {
	DeadlineAt   time.Time `json:"deadline_at"`
	Title        string    `json:"title"`
	Source       string    `json:"source"`
	Link         string    `json:"link,omitempty"`
	Confidence   float64   `json:"confidence"`
	Context      string    `json:"context,omitempty"`
	Category     Category  `json:"category"`
	EmailDate    time.Time `json:"email_date,omitempty"`
	EmailExcerpt string    `json:"email_excerpt,omitempty"`
	EmailSummary string    `json:"email_summary,omitempty"`
}

// EmailSource builds the provenance string for a sender identity.
func EmailSource(sender string) string {
	return "email:" + sender
}

// Sender returns the sender identity carried in the source string,
// or "" when the source does not follow the email convention.
func (d DeadlineItem) Sender() string {
	if i := strings.Index(d.Source, "email:"); i >= 0 {
		return strings.TrimSpace(d.Source[i+len("email:"):])
	}
	return ""
}

// Key identifies duplicates across extractors: same deadline, title and
// source means the same underlying obligation.
func (d DeadlineItem) Key() string {
	return d.DeadlineAt.Format(time.RFC3339) + "\x00" + d.Title + "\x00" + d.Source
}

// Compare orders two items by the full field tuple, deadline first.
// This is the canonical output order.
func Compare(a, b DeadlineItem) int {
	if c := compareTime(a.DeadlineAt, b.DeadlineAt); c != 0 {
		return c
	}
	if c := strings.Compare(a.Title, b.Title); c != 0 {
		return c
	}
	if c := strings.Compare(a.Source, b.Source); c != 0 {
		return c
	}
	if c := strings.Compare(a.Link, b.Link); c != 0 {
		return c
	}
	if c := compareFloat(a.Confidence, b.Confidence); c != 0 {
		return c
	}
	if c := strings.Compare(a.Context, b.Context); c != 0 {
		return c
	}
	if c := strings.Compare(string(a.Category), string(b.Category)); c != 0 {
		return c
	}
	if c := compareTime(a.EmailDate, b.EmailDate); c != 0 {
		return c
	}
	if c := strings.Compare(a.EmailExcerpt, b.EmailExcerpt); c != 0 {
		return c
	}
	return strings.Compare(a.EmailSummary, b.EmailSummary)
}

// SortItems sorts items in place into the canonical order.
func SortItems(items []DeadlineItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return Compare(items[i], items[j]) < 0
	})
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
