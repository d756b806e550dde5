package returns

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

func TestBuildNextDayTargets(t *testing.T) {
	obs := []models.PriceObservation{
		{Date: day(2020, time.January, 2), Price: 10},
		{Date: day(2020, time.January, 3), Price: 10}, // Friday, flat
		{Date: day(2020, time.January, 6), Price: 11}, // Monday, +10%
		{Date: day(2020, time.January, 7), Price: 9.9}, // Tuesday, -10%
	}
	recs, err := Build("XLE", obs)
	require.NoError(t, err)
	require.Len(t, recs, 4)

	// First record: no previous trading day.
	assert.True(t, models.IsMissing(recs[0].Return))
	assert.True(t, models.IsMissing(recs[0].Sign))

	// Friday's next-day target is Monday's return, +10% exactly, even though
	// two calendar days separate them.
	assert.InDelta(t, 0.10, recs[1].ReturnNextDay, 1e-12)
	assert.Equal(t, 1.0, recs[1].SignNextDay)

	// Monday's target is Tuesday's return: an ordinary one-day gap behaves
	// identically to the weekend gap.
	assert.InDelta(t, recs[2].ReturnNextDay, recs[3].Return, 0)
	assert.Equal(t, -1.0, recs[2].SignNextDay)

	// Last record has no successor.
	assert.True(t, models.IsMissing(recs[3].ReturnNextDay))
	assert.True(t, models.IsMissing(recs[3].SignNextDay))
}

func TestBuildNextDayEqualsSuccessorReturn(t *testing.T) {
	obs := []models.PriceObservation{
		{Date: day(2019, time.December, 30), Price: 50},
		{Date: day(2019, time.December, 31), Price: 51},
		{Date: day(2020, time.January, 2), Price: 49}, // New Year's gap
		{Date: day(2020, time.January, 3), Price: 52},
		{Date: day(2020, time.January, 6), Price: 52.5}, // weekend gap
	}
	recs, err := Build("XLF", obs)
	require.NoError(t, err)

	for i := 0; i < len(recs)-1; i++ {
		if models.IsMissing(recs[i+1].Return) {
			assert.True(t, models.IsMissing(recs[i].ReturnNextDay))
			continue
		}
		assert.Equal(t, recs[i+1].Return, recs[i].ReturnNextDay,
			"row %d: target must equal successor's return", i)
		assert.Equal(t, recs[i+1].Sign, recs[i].SignNextDay)
	}
}

func TestBuildZeroReturnSign(t *testing.T) {
	obs := []models.PriceObservation{
		{Date: day(2020, time.March, 2), Price: 20},
		{Date: day(2020, time.March, 3), Price: 20},
	}
	recs, err := Build("XLK", obs)
	require.NoError(t, err)
	assert.Equal(t, 0.0, recs[1].Return)
	assert.Equal(t, 0.0, recs[1].Sign)
}

func TestBuildRejectsDuplicateDates(t *testing.T) {
	obs := []models.PriceObservation{
		{Date: day(2020, time.March, 2), Price: 20},
		{Date: day(2020, time.March, 2), Price: 21},
	}
	_, err := Build("XLK", obs)
	require.Error(t, err)
	assert.True(t, models.IsDataIntegrity(err))
	var dup *models.DuplicateDateError
	assert.ErrorAs(t, err, &dup)
}

func TestBuildRejectsUnsortedInput(t *testing.T) {
	obs := []models.PriceObservation{
		{Date: day(2020, time.March, 3), Price: 20},
		{Date: day(2020, time.March, 2), Price: 21},
	}
	_, err := Build("XLK", obs)
	require.Error(t, err)
	var uns *models.UnsortedInputError
	assert.ErrorAs(t, err, &uns)
}

func TestBuildEmptyAndSingle(t *testing.T) {
	recs, err := Build("XLV", nil)
	require.NoError(t, err)
	assert.Empty(t, recs)

	recs, err = Build("XLV", []models.PriceObservation{{Date: day(2020, time.March, 2), Price: 20}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, models.IsMissing(recs[0].Return))
	assert.True(t, models.IsMissing(recs[0].ReturnNextDay))
}
