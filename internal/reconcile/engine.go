package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/harshith-99/meat-shop/internal/domain"
)

// Facts holds the per-item scalars the reconciliation needs for one
// (item, date, branch). Opening, Purchased and Sold come from the fact
// aggregators; Closing is operator-entered (or previously persisted);
// Multiplier comes from the yield registry (1 when no row exists).
type Facts struct {
	ItemID     string
	IsLive     bool
	Multiplier decimal.Decimal
	Opening    decimal.Decimal
	Purchased  decimal.Decimal
	Sold       decimal.Decimal
	Closing    decimal.Decimal
}

// Line is one fully derived ledger row. Lines built by Derive (the live
// pre-save path) and lines rebuilt by FromEntry (the persisted report
// path) must summarize identically.
type Line struct {
	ItemID            string
	IsLive            bool
	Opening           decimal.Decimal
	Purchased         decimal.Decimal
	Total             decimal.Decimal
	Sold              decimal.Decimal
	LiveWeightUsed    decimal.Decimal
	Closing           decimal.Decimal
	LiveWeightClosing decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

func round3(d decimal.Decimal) decimal.Decimal {
	return d.Round(3)
}

// Derive computes the derived columns for one item.
//
// A live item's sales are consumption against the live stock, so the
// live-weight used is sales times the multiplier. A processed item may
// have been restocked by purchase today; purchased processed stock did
// not come from today's live consumption, so only the net additional
// sales are attributed back to live-weight usage.
func Derive(f Facts) Line {
	mult := f.Multiplier
	if mult.IsZero() {
		mult = decimal.NewFromInt(1)
	}

	var used decimal.Decimal
	if f.IsLive {
		used = round3(f.Sold.Mul(mult))
	} else {
		used = round3(f.Sold.Sub(f.Purchased).Mul(mult))
	}

	return Line{
		ItemID:            f.ItemID,
		IsLive:            f.IsLive,
		Opening:           f.Opening,
		Purchased:         f.Purchased,
		Total:             f.Opening.Add(f.Purchased),
		Sold:              f.Sold,
		LiveWeightUsed:    used,
		Closing:           f.Closing,
		LiveWeightClosing: round3(f.Closing.Mul(mult)),
	}
}

// FromEntry rebuilds a Line from a persisted ledger row, trusting the
// stored derived columns instead of recomputing them.
func FromEntry(e domain.DailyStockEntry, isLive bool) Line {
	return Line{
		ItemID:            e.ItemID,
		IsLive:            isLive,
		Opening:           e.Opening,
		Purchased:         e.Purchased,
		Total:             e.Total,
		Sold:              e.Sold,
		LiveWeightUsed:    e.LiveWeightUsed,
		Closing:           e.Closing,
		LiveWeightClosing: e.LiveWeightClosing,
	}
}

// Summarize folds a category's lines into the reconciliation summary.
//
// Two of the sub-sums are restricted to live items: the available live
// stock and the live-item closing weight. Everything consumed and every
// closing weight restated in live terms counts across all items.
func Summarize(categoryID string, categoryName string, lines []Line) domain.CategorySummary {
	s := domain.CategorySummary{
		CategoryID:   categoryID,
		CategoryName: categoryName,
	}

	for _, line := range lines {
		s.Opening = s.Opening.Add(line.Opening)
		s.Purchased = s.Purchased.Add(line.Purchased)
		s.Sold = s.Sold.Add(line.Sold)
		s.Closing = s.Closing.Add(line.Closing)
		s.LiveUsed = s.LiveUsed.Add(line.LiveWeightUsed)
		s.LiveClosing = s.LiveClosing.Add(line.LiveWeightClosing)
		if line.IsLive {
			s.TotalLiveAvailable = s.TotalLiveAvailable.Add(line.Total)
			s.LiveBirdClosing = s.LiveBirdClosing.Add(line.LiveWeightClosing)
		}
	}

	s.Expected = round3(s.TotalLiveAvailable.Sub(s.LiveUsed))
	s.Actual = round3(s.LiveBirdClosing.Add(s.LiveClosing))
	s.Loss = round3(s.Expected.Sub(s.Actual))
	s.Surplus = s.Loss.IsNegative()

	if s.TotalLiveAvailable.IsPositive() {
		pct := s.Loss.Div(s.TotalLiveAvailable).Mul(hundred)
		s.LossPercent = pct.StringFixed(2)
	} else {
		s.LossPercent = "0.00"
	}

	return s
}
