package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error taxonomy. Data-integrity and configuration errors are fatal for the
// affected sector run and propagate to the caller uncaught; a calendar gap is
// fatal but recoverable by widening the calendar horizon. Ordinary missing
// data (a date without headlines, the last trading day's absent successor) is
// never an error, it is a missing value in the output.

// DuplicateDateError reports two price rows sharing one date. Duplicates are
// an upstream data defect and must not be silently averaged.
type DuplicateDateError struct {
	Ticker string
	Date   time.Time
}

func (e *DuplicateDateError) Error() string {
	return fmt.Sprintf("duplicate price date %s for %s", e.Date.Format("2006-01-02"), e.Ticker)
}

// UnsortedInputError reports a price series that is not strictly ascending
// by date.
type UnsortedInputError struct {
	Ticker string
	Index  int
}

func (e *UnsortedInputError) Error() string {
	return fmt.Sprintf("price series for %s not sorted ascending at row %d", e.Ticker, e.Index)
}

// MergeFanOutError reports duplicate dates on the daily side of the
// headline-level merge, which would fan the one-to-many join out into
// many-to-many.
type MergeFanOutError struct {
	Sector string
	Date   time.Time
	Rows   int
}

func (e *MergeFanOutError) Error() string {
	return fmt.Sprintf("daily table for %s has %d rows for %s; merge would fan out",
		e.Sector, e.Rows, e.Date.Format("2006-01-02"))
}

// UnknownSectorError reports a sector identifier with no matching flag column
// in the headline data.
type UnknownSectorError struct {
	Sector string
	Known  []string
}

func (e *UnknownSectorError) Error() string {
	return fmt.Sprintf("unknown sector %q (known: %s)", e.Sector, strings.Join(e.Known, ", "))
}

// InvalidWeightsError reports an unusable lag-weight vector.
type InvalidWeightsError struct {
	Weights []float64
	Reason  string
}

func (e *InvalidWeightsError) Error() string {
	return fmt.Sprintf("invalid lag weights %v: %s", e.Weights, e.Reason)
}

// UnknownColumnError reports a feature spec referencing a column the daily
// dataset does not have.
type UnknownColumnError struct {
	Column string
	Known  []string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown feature column %q (known: %s)", e.Column, strings.Join(e.Known, ", "))
}

// UnknownIndicatorError reports an unsupported technical indicator kind.
type UnknownIndicatorError struct {
	Kind string
}

func (e *UnknownIndicatorError) Error() string {
	return fmt.Sprintf("unknown indicator kind %q", e.Kind)
}

// InvalidPolicyError reports an unrecognized alignment policy value.
type InvalidPolicyError struct {
	Policy string
}

func (e *InvalidPolicyError) Error() string {
	return fmt.Sprintf("unknown weekend policy %q", e.Policy)
}

// NoTradingDayFoundError reports that no trading day exists after the given
// date within the loaded calendar horizon. Callers widen the horizon; the
// resolver never substitutes a null or wrong date.
type NoTradingDayFoundError struct {
	After   time.Time
	Horizon time.Time
}

func (e *NoTradingDayFoundError) Error() string {
	return fmt.Sprintf("no trading day after %s within calendar horizon %s",
		e.After.Format("2006-01-02"), e.Horizon.Format("2006-01-02"))
}

// IsDataIntegrity reports whether err is a fatal data-integrity defect
// (duplicate dates, unsorted input, merge fan-out).
func IsDataIntegrity(err error) bool {
	var dup *DuplicateDateError
	var uns *UnsortedInputError
	var fan *MergeFanOutError
	return errors.As(err, &dup) || errors.As(err, &uns) || errors.As(err, &fan)
}

// IsConfiguration reports whether err is a caller mistake (unknown sector,
// invalid weights, unknown policy).
func IsConfiguration(err error) bool {
	var sec *UnknownSectorError
	var wts *InvalidWeightsError
	var pol *InvalidPolicyError
	var col *UnknownColumnError
	var ind *UnknownIndicatorError
	return errors.As(err, &sec) || errors.As(err, &wts) || errors.As(err, &pol) ||
		errors.As(err, &col) || errors.As(err, &ind)
}

// IsCalendarGap reports whether err is a calendar-horizon miss.
func IsCalendarGap(err error) bool {
	var gap *NoTradingDayFoundError
	return errors.As(err, &gap)
}
