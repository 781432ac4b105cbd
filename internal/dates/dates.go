// Package dates turns the date phrases captured from email text into
// absolute timestamps. Phrases resolve relative to the message's received
// date, and ambiguous expressions prefer the future: "the 5th" means the
// next 5th on or after the anchor, not the most recent one.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var relative = func() *when.Parser {
	p := when.New(nil)
	p.Add(en.All...)
	p.Add(common.All...)
	return p
}()

var (
	ordinalDayRe = regexp.MustCompile(`^(?:the\s+)?(\d{1,2})(?:st|nd|rd|th)?$`)
	monthDayRe   = regexp.MustCompile(`^([a-z]+)\.?\s+(\d{1,2})(?:st|nd|rd|th)?$`)
	dayMonthRe   = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?([a-z]+)\.?$`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// Parse resolves a date phrase against the reference time. The boolean is
// false when the phrase cannot be understood; that is never an error.
func Parse(phrase string, ref time.Time) (time.Time, bool) {
	s := clean(phrase)
	if s == "" {
		return time.Time{}, false
	}
	lower := strings.ToLower(s)

	if m := ordinalDayRe.FindStringSubmatch(lower); m != nil {
		day, _ := strconv.Atoi(m[1])
		return nextDayOfMonth(ref, day)
	}
	if t, ok := parseMonthDay(lower, ref); ok {
		return t, true
	}
	if t, err := dateparse.ParseIn(s, ref.Location()); err == nil {
		return t, true
	}
	if r, err := relative.Parse(s, ref); err == nil && r != nil {
		return r.Time, true
	}
	return time.Time{}, false
}

// clean strips the noise that regex captures drag along: surrounding
// whitespace, trailing punctuation and quotes.
func clean(phrase string) string {
	s := strings.TrimSpace(phrase)
	s = strings.Trim(s, `"'`)
	s = strings.TrimRight(s, " .,;:!?)")
	return strings.TrimSpace(s)
}

// nextDayOfMonth resolves a bare day number to the next occurrence of that
// day on or after ref, skipping months too short to hold it.
func nextDayOfMonth(ref time.Time, day int) (time.Time, bool) {
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	year, month := ref.Year(), ref.Month()
	for i := 0; i < 12; i++ {
		t := time.Date(year, month, day, 0, 0, 0, 0, ref.Location())
		if t.Day() == day && !t.Before(anchorDate(ref)) {
			return t, true
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return time.Time{}, false
}

// parseMonthDay handles year-less "March 5" / "5 March" phrases with future
// preference: a date already past relative to ref rolls into next year.
func parseMonthDay(lower string, ref time.Time) (time.Time, bool) {
	var monthWord, dayStr string
	if m := monthDayRe.FindStringSubmatch(lower); m != nil {
		monthWord, dayStr = m[1], m[2]
	} else if m := dayMonthRe.FindStringSubmatch(lower); m != nil {
		dayStr, monthWord = m[1], m[2]
	} else {
		return time.Time{}, false
	}
	if len(monthWord) < 3 {
		return time.Time{}, false
	}
	month, ok := months[monthWord[:3]]
	if !ok || !strings.HasPrefix(monthName(month), monthWord) {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(dayStr)
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(ref.Year(), month, day, 0, 0, 0, 0, ref.Location())
	if t.Day() != day {
		return time.Time{}, false
	}
	if t.Before(anchorDate(ref)) {
		t = time.Date(ref.Year()+1, month, day, 0, 0, 0, 0, ref.Location())
		if t.Day() != day {
			return time.Time{}, false
		}
	}
	return t, true
}

func monthName(m time.Month) string {
	return strings.ToLower(m.String())
}

// anchorDate is ref truncated to midnight, so "on or after the anchor"
// compares at date resolution.
func anchorDate(ref time.Time) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
}
