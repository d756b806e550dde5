package models

import (
	"fmt"
	"testing"
	"time"
)

func TestDayNormalizes(t *testing.T) {
	loc := time.FixedZone("X", 3600)
	d := Day(time.Date(2020, 1, 3, 17, 45, 12, 99, loc))
	want := time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)
	if !d.Equal(want) {
		t.Fatalf("Day() = %v, want %v", d, want)
	}
}

func TestMissingRoundTrip(t *testing.T) {
	if !IsMissing(Missing()) {
		t.Fatal("Missing() not recognized by IsMissing")
	}
	if IsMissing(0) || IsMissing(-1.5) {
		t.Fatal("real values flagged as missing")
	}
}

func TestPolicySlugAndVersion(t *testing.T) {
	cases := []struct {
		policy  AlignmentPolicy
		slug    string
		version string
	}{
		{AlignmentPolicy{Weekend: WeekendPresent}, "weekends_no_embedding", "v1"},
		{AlignmentPolicy{Weekend: WeekendPresent, WithEmbeddings: true}, "weekends_embedding", "v2"},
		{AlignmentPolicy{Weekend: WeekendAggregated}, "weekends_aggregated_no_embedding", "v3"},
		{AlignmentPolicy{Weekend: WeekendAggregated, WithEmbeddings: true}, "weekends_aggregated_embedding", "v4"},
	}
	for _, c := range cases {
		if got := c.policy.Slug(); got != c.slug {
			t.Errorf("Slug() = %q, want %q", got, c.slug)
		}
		if got := c.policy.Version(); got != c.version {
			t.Errorf("Version() = %q, want %q", got, c.version)
		}
		if err := c.policy.Validate(); err != nil {
			t.Errorf("Validate() = %v for %v", err, c.policy)
		}
	}
	if err := (AlignmentPolicy{Weekend: "sometimes"}).Validate(); err == nil {
		t.Fatal("expected error for unknown weekend policy")
	}
}

func TestErrorCategories(t *testing.T) {
	day := time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC)

	integrity := []error{
		&DuplicateDateError{Ticker: "XLE", Date: day},
		&UnsortedInputError{Ticker: "XLE", Index: 4},
		&MergeFanOutError{Sector: "XLE", Date: day, Rows: 2},
	}
	for _, err := range integrity {
		if !IsDataIntegrity(err) {
			t.Errorf("IsDataIntegrity(%T) = false", err)
		}
		if IsConfiguration(err) || IsCalendarGap(err) {
			t.Errorf("%T classified into the wrong category", err)
		}
	}

	config := []error{
		&UnknownSectorError{Sector: "XLQ", Known: []string{"XLE"}},
		&InvalidWeightsError{Weights: []float64{0, 0}, Reason: "weights sum to zero"},
		&InvalidPolicyError{Policy: "sometimes"},
	}
	for _, err := range config {
		if !IsConfiguration(err) {
			t.Errorf("IsConfiguration(%T) = false", err)
		}
	}

	gap := &NoTradingDayFoundError{After: day, Horizon: day.AddDate(0, 0, 10)}
	if !IsCalendarGap(gap) {
		t.Fatal("IsCalendarGap(NoTradingDayFoundError) = false")
	}

	// Categories survive wrapping.
	wrapped := fmt.Errorf("sector XLE: %w", gap)
	if !IsCalendarGap(wrapped) {
		t.Fatal("wrapped calendar gap not recognized")
	}
}

func TestAggregateSuppressed(t *testing.T) {
	agg := DailySectorAggregate{Count: 2, AvgPositive: Missing(), AvgNeutral: Missing(), AvgNegative: Missing(), SentIndex: Missing()}
	if !agg.Suppressed() {
		t.Fatal("expected suppressed aggregate")
	}
	agg = DailySectorAggregate{Count: 3, AvgPositive: 0.4, AvgNegative: 0.1, SentIndex: 0.3}
	if agg.Suppressed() {
		t.Fatal("unsuppressed aggregate flagged")
	}
}
