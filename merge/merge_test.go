package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sectorflow/calendar"
	"sectorflow/models"
	"sectorflow/returns"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testCalendar(t *testing.T) *calendar.Calendar {
	t.Helper()
	cal, err := calendar.New(day(2019, time.December, 1), day(2020, time.February, 15))
	require.NoError(t, err)
	return cal
}

// Fri Jan 3 price 10, Mon Jan 6 price 11: the canonical weekend fixture.
func fridayMondayReturns(t *testing.T) []models.ReturnRecord {
	t.Helper()
	recs, err := returns.Build("XLE", []models.PriceObservation{
		{Date: day(2020, time.January, 2), Price: 10},
		{Date: day(2020, time.January, 3), Price: 10},
		{Date: day(2020, time.January, 6), Price: 11},
		{Date: day(2020, time.January, 7), Price: 11},
	})
	require.NoError(t, err)
	return recs
}

func xle(d time.Time, pos, neu, neg float64, emb ...float64) models.HeadlineRecord {
	return models.HeadlineRecord{
		Date:        d,
		SectorFlags: map[string]bool{"XLE": true},
		Positive:    pos,
		Neutral:     neu,
		Negative:    neg,
		Embedding:   emb,
	}
}

func weekendTable() *models.HeadlineTable {
	return &models.HeadlineTable{
		Sectors:      []string{"XLE"},
		EmbeddingDim: 2,
		Records: []models.HeadlineRecord{
			xle(day(2020, time.January, 3), 0.6, 0.2, 0.2, 1, 1), // Friday
			xle(day(2020, time.January, 4), 0.9, 0.05, 0.05, 3, 3), // Saturday
			xle(day(2020, time.January, 5), 0.3, 0.3, 0.4, 5, 5), // Sunday
			xle(day(2020, time.January, 6), 0.5, 0.3, 0.2, 7, 7), // Monday
		},
	}
}

func TestDailyWeekendPresentKeepsCalendarDays(t *testing.T) {
	m := New(testCalendar(t))
	rows, err := m.Daily(fridayMondayReturns(t), weekendTable(), Options{
		Sector: "XLE",
		Policy: models.AlignmentPolicy{Weekend: models.WeekendPresent},
	})
	require.NoError(t, err)

	// Axis: Jan 2, 3 (trading), 4, 5 (headline-only), 6, 7 (trading).
	require.Len(t, rows, 6)

	sat := rows[2]
	assert.Equal(t, day(2020, time.January, 4), sat.Date)
	assert.False(t, sat.IsTradingDay)
	assert.True(t, models.IsMissing(sat.Price))
	assert.True(t, models.IsMissing(sat.ReturnNextDay))
	assert.InDelta(t, 0.9, sat.AvgPositive, 1e-12)
	assert.Equal(t, 1.0, sat.HeadlineCount)

	// Friday keeps its pre-shifted target: Monday's +10% return, untouched by
	// the weekend rows introduced here.
	fri := rows[1]
	assert.True(t, fri.IsTradingDay)
	assert.InDelta(t, 0.10, fri.ReturnNextDay, 1e-12)

	// No embedding columns under the no-embedding policy.
	for _, r := range rows {
		assert.Nil(t, r.AvgEmbedding)
	}
}

func TestDailyWeekendPresentWithEmbeddings(t *testing.T) {
	m := New(testCalendar(t))
	rows, err := m.Daily(fridayMondayReturns(t), weekendTable(), Options{
		Sector: "XLE",
		Policy: models.AlignmentPolicy{Weekend: models.WeekendPresent, WithEmbeddings: true},
	})
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, []float64{1, 1}, rows[1].AvgEmbedding)
	assert.Equal(t, []float64{3, 3}, rows[2].AvgEmbedding)
}

func TestDailyWeekendAggregatedFoldsForward(t *testing.T) {
	m := New(testCalendar(t))
	rows, err := m.Daily(fridayMondayReturns(t), weekendTable(), Options{
		Sector: "XLE",
		Policy: models.AlignmentPolicy{Weekend: models.WeekendAggregated},
	})
	require.NoError(t, err)

	// Trading days only.
	require.Len(t, rows, 4)
	for _, r := range rows {
		assert.True(t, r.IsTradingDay)
	}

	// Friday keeps only Friday's own headline.
	fri := rows[1]
	assert.Equal(t, day(2020, time.January, 3), fri.Date)
	assert.Equal(t, 1.0, fri.HeadlineCount)
	assert.InDelta(t, 0.6, fri.AvgPositive, 1e-12)

	// Monday absorbs Saturday, Sunday and Monday headlines.
	mon := rows[2]
	assert.Equal(t, day(2020, time.January, 6), mon.Date)
	assert.Equal(t, 3.0, mon.HeadlineCount)
	assert.InDelta(t, (0.9+0.3+0.5)/3, mon.AvgPositive, 1e-12)

	// Targets still correct after the fold.
	assert.InDelta(t, 0.10, fri.ReturnNextDay, 1e-12)
}

func TestDailyWeekendAggregatedCountRoundTrip(t *testing.T) {
	// Summing folded counts per trading day equals counting raw headlines in
	// (prev trading day, trading day].
	m := New(testCalendar(t))
	table := weekendTable()
	rows, err := m.Daily(fridayMondayReturns(t), table, Options{
		Sector: "XLE",
		Policy: models.AlignmentPolicy{Weekend: models.WeekendAggregated},
	})
	require.NoError(t, err)

	folded := 0.0
	for _, r := range rows {
		if !models.IsMissing(r.HeadlineCount) {
			folded += r.HeadlineCount
		}
	}
	assert.Equal(t, float64(len(table.Records)), folded)
}

func TestDailySuppressionFlowsThrough(t *testing.T) {
	m := New(testCalendar(t))
	rows, err := m.Daily(fridayMondayReturns(t), weekendTable(), Options{
		Sector:       "XLE",
		Policy:       models.AlignmentPolicy{Weekend: models.WeekendAggregated},
		MinHeadlines: 2,
	})
	require.NoError(t, err)

	fri := rows[1]
	assert.Equal(t, 1.0, fri.HeadlineCount) // count preserved
	assert.True(t, models.IsMissing(fri.AvgPositive))
	assert.True(t, models.IsMissing(fri.SentIndex))

	mon := rows[2]
	assert.Equal(t, 3.0, mon.HeadlineCount)
	assert.False(t, models.IsMissing(mon.AvgPositive))
}

func TestDailyUnknownSectorRejected(t *testing.T) {
	m := New(testCalendar(t))
	_, err := m.Daily(fridayMondayReturns(t), weekendTable(), Options{
		Sector: "XLB",
		Policy: models.AlignmentPolicy{Weekend: models.WeekendPresent},
	})
	require.Error(t, err)
	assert.True(t, models.IsConfiguration(err))
}

func TestHeadlineLevelJoin(t *testing.T) {
	m := New(testCalendar(t))
	table := weekendTable()
	daily, err := m.Daily(fridayMondayReturns(t), table, Options{
		Sector: "XLE",
		Policy: models.AlignmentPolicy{Weekend: models.WeekendPresent},
	})
	require.NoError(t, err)

	rows, err := m.HeadlineLevel("XLE", daily, table)
	require.NoError(t, err)
	require.Len(t, rows, len(table.Records))

	// Every headline gets its day's context; Friday's headline sees the
	// Friday daily row including the next-day target.
	require.NotNil(t, rows[0].Context)
	assert.Equal(t, day(2020, time.January, 3), rows[0].Context.Date)
	assert.InDelta(t, 0.10, rows[0].Context.ReturnNextDay, 1e-12)

	// Saturday's headline sees the weekend row with missing price.
	require.NotNil(t, rows[1].Context)
	assert.True(t, models.IsMissing(rows[1].Context.Price))
}

func TestHeadlineLevelFanOutGuard(t *testing.T) {
	m := New(testCalendar(t))
	dup := []models.MergedDailyRow{
		{Date: day(2020, time.January, 3)},
		{Date: day(2020, time.January, 3)},
	}
	_, err := m.HeadlineLevel("XLE", dup, weekendTable())
	require.Error(t, err)
	var fan *models.MergeFanOutError
	require.ErrorAs(t, err, &fan)
	assert.True(t, models.IsDataIntegrity(err))
}

func TestHeadlineLevelUnmatchedHeadlineKeepsNilContext(t *testing.T) {
	m := New(testCalendar(t))
	table := weekendTable()
	daily, err := m.Daily(fridayMondayReturns(t), table, Options{
		Sector: "XLE",
		Policy: models.AlignmentPolicy{Weekend: models.WeekendAggregated},
	})
	require.NoError(t, err)

	rows, err := m.HeadlineLevel("XLE", daily, table)
	require.NoError(t, err)

	// Saturday/Sunday headlines have no trading-day row of their own under
	// the weekend-aggregated policy.
	assert.Nil(t, rows[1].Context)
	assert.Nil(t, rows[2].Context)
	assert.NotNil(t, rows[0].Context)
	assert.NotNil(t, rows[3].Context)
}

func TestHeadlineLevelFiltersOtherSectors(t *testing.T) {
	m := New(testCalendar(t))
	table := weekendTable()
	table.Sectors = []string{"XLE", "XLF"}
	table.Records = append(table.Records, models.HeadlineRecord{
		Date:        day(2020, time.January, 3),
		SectorFlags: map[string]bool{"XLF": true},
		Positive:    0.5, Neutral: 0.25, Negative: 0.25,
	})

	daily, err := m.Daily(fridayMondayReturns(t), table, Options{
		Sector: "XLE",
		Policy: models.AlignmentPolicy{Weekend: models.WeekendPresent},
	})
	require.NoError(t, err)

	rows, err := m.HeadlineLevel("XLE", daily, table)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for _, r := range rows {
		assert.True(t, r.TaggedTo("XLE"))
	}
}
