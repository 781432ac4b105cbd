package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompare_DeadlineFirst(t *testing.T) {
	early := DeadlineItem{DeadlineAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Title: "zzz"}
	late := DeadlineItem{DeadlineAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Title: "aaa"}

	assert.Negative(t, Compare(early, late))
	assert.Positive(t, Compare(late, early))
}

func TestCompare_TieBreaksByFieldTuple(t *testing.T) {
	at := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	a := DeadlineItem{DeadlineAt: at, Title: "Apple", Source: "email:b"}
	b := DeadlineItem{DeadlineAt: at, Title: "Banana", Source: "email:a"}
	assert.Negative(t, Compare(a, b), "title breaks the tie before source")

	c := DeadlineItem{DeadlineAt: at, Title: "Apple", Source: "email:a", Confidence: 0.9}
	d := DeadlineItem{DeadlineAt: at, Title: "Apple", Source: "email:b", Confidence: 0.1}
	assert.Negative(t, Compare(c, d), "source breaks the tie before confidence")

	assert.Zero(t, Compare(a, a))
}

func TestSortItems_AscendingByDeadline(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC) }
	items := []DeadlineItem{
		{DeadlineAt: day(20)},
		{DeadlineAt: day(1)},
		{DeadlineAt: day(10)},
	}
	SortItems(items)
	assert.Equal(t, day(1), items[0].DeadlineAt)
	assert.Equal(t, day(10), items[1].DeadlineAt)
	assert.Equal(t, day(20), items[2].DeadlineAt)
}

func TestSender(t *testing.T) {
	assert.Equal(t, "promo@shop.com", DeadlineItem{Source: "email:promo@shop.com"}.Sender())
	assert.Equal(t, "a@b.c", DeadlineItem{Source: "email: a@b.c "}.Sender())
	assert.Equal(t, "", DeadlineItem{Source: "webhook:xyz"}.Sender())
}

func TestParseCategory(t *testing.T) {
	assert.Equal(t, CategoryTrial, ParseCategory("Trial"))
	assert.Equal(t, CategoryRefund, ParseCategory(" refund "))
	assert.Equal(t, CategoryGeneral, ParseCategory("loyalty"))
	assert.Equal(t, CategoryGeneral, ParseCategory(""))
}

func TestKey_DistinguishesTuple(t *testing.T) {
	at := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	a := DeadlineItem{DeadlineAt: at, Title: "x", Source: "email:a"}
	b := DeadlineItem{DeadlineAt: at, Title: "x", Source: "email:a", Confidence: 0.9, Category: CategoryTrial}
	c := DeadlineItem{DeadlineAt: at, Title: "y", Source: "email:a"}

	assert.Equal(t, a.Key(), b.Key(), "confidence and category are not part of the key")
	assert.NotEqual(t, a.Key(), c.Key())
}
