package verify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sectorflow/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tradingRow(d time.Time, price, ret, retNext float64) models.MergedDailyRow {
	return models.MergedDailyRow{
		Date: d, IsTradingDay: true,
		Price: price, Return: ret, ReturnNextDay: retNext,
		Sign: models.Missing(), SignNextDay: models.Missing(),
		AvgPositive: models.Missing(), AvgNeutral: models.Missing(),
		AvgNegative: models.Missing(), HeadlineCount: models.Missing(),
		SentIndex: models.Missing(),
	}
}

func weekendRow(d time.Time) models.MergedDailyRow {
	r := tradingRow(d, models.Missing(), models.Missing(), models.Missing())
	r.IsTradingDay = false
	return r
}

func TestAlignmentAccepts(t *testing.T) {
	rows := []models.MergedDailyRow{
		tradingRow(day(2020, time.January, 2), 10, models.Missing(), 0),
		tradingRow(day(2020, time.January, 3), 10, 0, 0.10), // Friday
		weekendRow(day(2020, time.January, 4)),
		weekendRow(day(2020, time.January, 5)),
		tradingRow(day(2020, time.January, 6), 11, 0.10, models.Missing()), // Monday
	}
	report := Alignment(rows)
	assert.True(t, report.OK())
	assert.Equal(t, 3, report.TradingDays)
	assert.Equal(t, 2, report.NonTradingDays)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.WeekendGaps)
	assert.True(t, report.LastDayUnfilled)
}

func TestAlignmentDetectsCalendarNaiveShift(t *testing.T) {
	// A calendar-naive shift leaves Friday's target missing (shifted into
	// Saturday's empty row) or holding the wrong value. Both must be caught.
	rows := []models.MergedDailyRow{
		tradingRow(day(2020, time.January, 3), 10, 0, 0.05), // wrong target
		weekendRow(day(2020, time.January, 4)),
		tradingRow(day(2020, time.January, 6), 11, 0.10, models.Missing()),
	}
	report := Alignment(rows)
	require.False(t, report.OK())
	require.Len(t, report.Mismatches, 1)
	m := report.Mismatches[0]
	assert.Equal(t, day(2020, time.January, 3), m.Date)
	assert.Equal(t, day(2020, time.January, 6), m.NextDate)
	assert.Equal(t, 0.05, m.Got)
	assert.Equal(t, 0.10, m.Want)

	rows[0].ReturnNextDay = models.Missing()
	report = Alignment(rows)
	assert.False(t, report.OK())
	assert.Equal(t, 1, report.MissingTargets)
}

func TestAlignmentHolidayGapCounted(t *testing.T) {
	rows := []models.MergedDailyRow{
		tradingRow(day(2019, time.December, 31), 10, models.Missing(), -0.02),
		tradingRow(day(2020, time.January, 2), 9.8, -0.02, 0.01),
		tradingRow(day(2020, time.January, 3), 9.898, 0.01, models.Missing()),
	}
	report := Alignment(rows)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.WeekendGaps) // Dec 31 -> Jan 2
	assert.Equal(t, 0, report.HolidayGaps)

	long := []models.MergedDailyRow{
		tradingRow(day(2020, time.April, 9), 10, models.Missing(), 0.02), // before Good Friday + weekend
		tradingRow(day(2020, time.April, 13), 10.2, 0.02, models.Missing()),
	}
	report = Alignment(long)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.HolidayGaps)
}

func TestCountRoundTrip(t *testing.T) {
	flags := map[string]bool{"XLE": true}
	table := &models.HeadlineTable{
		Sectors: []string{"XLE"},
		Records: []models.HeadlineRecord{
			{Date: day(2020, time.January, 3), SectorFlags: flags},
			{Date: day(2020, time.January, 4), SectorFlags: flags},
			{Date: day(2020, time.January, 5), SectorFlags: flags},
			{Date: day(2020, time.January, 6), SectorFlags: flags},
		},
	}
	daily := []models.MergedDailyRow{
		tradingRow(day(2020, time.January, 3), 10, 0, 0.10),
		tradingRow(day(2020, time.January, 6), 11, 0.10, models.Missing()),
	}
	daily[0].HeadlineCount = 1
	daily[1].HeadlineCount = 3

	_, ok := CountRoundTrip(daily, table, "XLE")
	assert.True(t, ok)

	daily[1].HeadlineCount = 2
	date, ok := CountRoundTrip(daily, table, "XLE")
	assert.False(t, ok)
	assert.Equal(t, day(2020, time.January, 6), date)
}
