package content

import "strings"

// Excerpt window constants. The windows and minimum boundary distances are
// tuned for typical transactional email bodies.
const (
	aroundWindow      = 250
	boundaryMinBefore = 50
	boundaryMinAfter  = 200
	aroundMaxLen      = 600
	fallbackLen       = 400
)

// Around builds a human-readable excerpt surrounding the match span
// [start, end) in corpus. It takes a ±250 character window, trims to the
// nearest sentence boundary when one exists far enough from the match,
// collapses whitespace and caps the result at 600 characters. When no
// excerpt can be formed it falls back to the first 400 characters of the
// corpus.
func Around(corpus string, start, end int) string {
	if start < 0 || end > len(corpus) || start > end {
		return ""
	}
	lo := max(0, start-aroundWindow)
	hi := min(len(corpus), end+aroundWindow)
	excerpt := strings.TrimSpace(corpus[lo:hi])

	if excerpt == "" {
		return Truncate(CollapseSpace(strings.TrimSpace(corpus)), fallbackLen)
	}

	// Last sentence start before the match, but only when it lies far
	// enough in that we are not chopping the excerpt down to a fragment.
	head := excerpt
	if len(head) > aroundWindow {
		head = head[:aroundWindow]
	}
	if idx := strings.LastIndex(head, ". "); idx > boundaryMinBefore {
		excerpt = strings.TrimSpace(excerpt[idx+2:])
	}

	// First sentence end after the match.
	if len(excerpt) > boundaryMinAfter {
		if idx := strings.Index(excerpt[boundaryMinAfter:], ". "); idx >= 0 {
			excerpt = strings.TrimSpace(excerpt[:boundaryMinAfter+idx+1])
		}
	}

	excerpt = CollapseSpace(excerpt)
	if len(excerpt) > aroundMaxLen {
		excerpt = excerpt[:aroundMaxLen-3] + "..."
	}
	return excerpt
}

// Leading builds an excerpt from the start of corpus, at most limit
// characters long, preferring to end at a sentence boundary once it lies
// past half the limit.
func Leading(corpus string, limit int) string {
	excerpt := strings.TrimSpace(Truncate(corpus, limit))
	if excerpt == "" {
		return ""
	}
	if idx := strings.LastIndex(excerpt, "."); idx > limit/2 {
		excerpt = excerpt[:idx+1]
	}
	return excerpt
}
