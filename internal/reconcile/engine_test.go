package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/harshith-99/meat-shop/internal/domain"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

func TestDeriveLiveItem(t *testing.T) {
	line := Derive(Facts{
		ItemID:     "itm-1",
		IsLive:     true,
		Multiplier: dec(t, "1.5"),
		Opening:    dec(t, "40"),
		Purchased:  dec(t, "60"),
		Sold:       dec(t, "10.000"),
		Closing:    dec(t, "90"),
	})

	if !line.Total.Equal(dec(t, "100")) {
		t.Fatalf("total = %s, want 100", line.Total)
	}
	if !line.LiveWeightUsed.Equal(dec(t, "15.000")) {
		t.Fatalf("live weight used = %s, want 15.000", line.LiveWeightUsed)
	}
}

func TestDeriveProcessedItem(t *testing.T) {
	line := Derive(Facts{
		ItemID:     "itm-2",
		IsLive:     false,
		Multiplier: dec(t, "0.7"),
		Sold:       dec(t, "20.000"),
		Purchased:  dec(t, "5.000"),
	})

	if !line.LiveWeightUsed.Equal(dec(t, "10.500")) {
		t.Fatalf("live weight used = %s, want 10.500", line.LiveWeightUsed)
	}
}

func TestDeriveClosingConversion(t *testing.T) {
	line := Derive(Facts{
		ItemID:     "itm-3",
		Multiplier: dec(t, "2.0"),
		Closing:    dec(t, "8.000"),
	})

	if !line.LiveWeightClosing.Equal(dec(t, "16.000")) {
		t.Fatalf("live weight closing = %s, want 16.000", line.LiveWeightClosing)
	}
}

func TestDeriveZeroMultiplierTreatedAsIdentity(t *testing.T) {
	line := Derive(Facts{
		ItemID:  "itm-4",
		IsLive:  true,
		Sold:    dec(t, "7.250"),
		Closing: dec(t, "3.125"),
	})

	if !line.LiveWeightUsed.Equal(dec(t, "7.250")) {
		t.Fatalf("live weight used = %s, want 7.250", line.LiveWeightUsed)
	}
	if !line.LiveWeightClosing.Equal(dec(t, "3.125")) {
		t.Fatalf("live weight closing = %s, want 3.125", line.LiveWeightClosing)
	}
}

func TestDeriveRoundsHalfUpToThreeDecimals(t *testing.T) {
	line := Derive(Facts{
		ItemID:     "itm-5",
		Multiplier: dec(t, "1"),
		Closing:    dec(t, "1.2345"),
	})

	if !line.LiveWeightClosing.Equal(dec(t, "1.235")) {
		t.Fatalf("live weight closing = %s, want 1.235", line.LiveWeightClosing)
	}
}

func TestSummarizeCategory(t *testing.T) {
	lines := []Line{
		{
			ItemID:            "broiler",
			IsLive:            true,
			Opening:           dec(t, "40"),
			Purchased:         dec(t, "60"),
			Total:             dec(t, "100"),
			Sold:              dec(t, "10"),
			LiveWeightUsed:    dec(t, "15.000"),
			Closing:           dec(t, "8"),
			LiveWeightClosing: dec(t, "16.000"),
		},
		{
			ItemID:            "dressed",
			IsLive:            false,
			Sold:              dec(t, "20"),
			Purchased:         dec(t, "5"),
			Total:             dec(t, "5"),
			LiveWeightUsed:    dec(t, "10.500"),
			Closing:           dec(t, "4.286"),
			LiveWeightClosing: dec(t, "3.000"),
		},
	}

	s := Summarize("cat-1", "Chicken", lines)

	if !s.TotalLiveAvailable.Equal(dec(t, "100")) {
		t.Fatalf("total live available = %s, want 100", s.TotalLiveAvailable)
	}
	if !s.LiveUsed.Equal(dec(t, "25.500")) {
		t.Fatalf("live used = %s, want 25.500", s.LiveUsed)
	}
	if !s.LiveBirdClosing.Equal(dec(t, "16.000")) {
		t.Fatalf("live bird closing = %s, want 16.000", s.LiveBirdClosing)
	}
	if !s.LiveClosing.Equal(dec(t, "19.000")) {
		t.Fatalf("live closing = %s, want 19.000", s.LiveClosing)
	}
	if !s.Expected.Equal(dec(t, "74.500")) {
		t.Fatalf("expected = %s, want 74.500", s.Expected)
	}
	if !s.Actual.Equal(dec(t, "35.000")) {
		t.Fatalf("actual = %s, want 35.000", s.Actual)
	}
	if !s.Loss.Equal(dec(t, "39.500")) {
		t.Fatalf("loss = %s, want 39.500", s.Loss)
	}
	if s.LossPercent != "39.50" {
		t.Fatalf("loss pct = %s, want 39.50", s.LossPercent)
	}
	if s.Surplus {
		t.Fatal("surplus flagged on a lossy day")
	}
}

func TestSummarizeZeroAvailabilityGuard(t *testing.T) {
	lines := []Line{
		{
			ItemID:            "dressed",
			IsLive:            false,
			Sold:              dec(t, "12"),
			LiveWeightUsed:    dec(t, "9.000"),
			Closing:           dec(t, "2"),
			LiveWeightClosing: dec(t, "1.500"),
		},
	}

	s := Summarize("cat-1", "Chicken", lines)
	if s.LossPercent != "0.00" {
		t.Fatalf("loss pct = %s, want 0.00 when no live stock was available", s.LossPercent)
	}
}

func TestSummarizeFlagsSurplus(t *testing.T) {
	lines := []Line{
		{
			ItemID:            "broiler",
			IsLive:            true,
			Total:             dec(t, "50"),
			LiveWeightUsed:    dec(t, "10.000"),
			LiveWeightClosing: dec(t, "45.000"),
		},
	}

	s := Summarize("cat-1", "Chicken", lines)
	// expected 50-10=40, actual 45+45=90, loss -50
	if !s.Loss.Equal(dec(t, "-50.000")) {
		t.Fatalf("loss = %s, want -50.000", s.Loss)
	}
	if !s.Surplus {
		t.Fatal("negative loss must raise the surplus flag")
	}
	if s.LossPercent != "-100.00" {
		t.Fatalf("loss pct = %s, want -100.00", s.LossPercent)
	}
}

func TestFromEntryMatchesDerivedLine(t *testing.T) {
	facts := Facts{
		ItemID:     "broiler",
		IsLive:     true,
		Multiplier: dec(t, "1.45"),
		Opening:    dec(t, "33.500"),
		Purchased:  dec(t, "120.250"),
		Sold:       dec(t, "98.765"),
		Closing:    dec(t, "55.125"),
	}
	derived := Derive(facts)

	entry := domain.DailyStockEntry{
		ItemID:            facts.ItemID,
		Opening:           derived.Opening,
		Purchased:         derived.Purchased,
		Total:             derived.Total,
		Sold:              derived.Sold,
		LiveWeightUsed:    derived.LiveWeightUsed,
		Closing:           derived.Closing,
		LiveWeightClosing: derived.LiveWeightClosing,
	}
	rebuilt := FromEntry(entry, true)

	fromLive := Summarize("cat-1", "Chicken", []Line{derived})
	fromStored := Summarize("cat-1", "Chicken", []Line{rebuilt})

	if !fromLive.Expected.Equal(fromStored.Expected) ||
		!fromLive.Actual.Equal(fromStored.Actual) ||
		!fromLive.Loss.Equal(fromStored.Loss) ||
		fromLive.LossPercent != fromStored.LossPercent {
		t.Fatalf("live path %+v != stored path %+v", fromLive, fromStored)
	}
}
