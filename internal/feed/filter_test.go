package feed

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testLimits = Limits{DefaultLimit: 25, MaxLimit: 100}

func TestParseFilterDefaults(t *testing.T) {
	f, err := ParseFilter(FilterInput{}, testLimits)
	require.NoError(t, err)
	require.Equal(t, TypeAll, f.ActivityType)
	require.Equal(t, 1, f.Page)
	require.Equal(t, 25, f.Limit)
	require.Nil(t, f.From)
	require.Nil(t, f.To)
	require.Equal(t, ModeSearch, f.Mode())
}

func TestParseFilterAcceptsScheduleKinds(t *testing.T) {
	f, err := ParseFilter(FilterInput{ActivityType: "Schedule_Fitting"}, testLimits)
	require.NoError(t, err)
	require.Equal(t, "schedule_fitting", f.ActivityType)
}

func TestParseFilterClampsLimit(t *testing.T) {
	f, err := ParseFilter(FilterInput{Limit: "500"}, testLimits)
	require.NoError(t, err)
	require.Equal(t, 100, f.Limit)
}

func TestParseFilterParsesDatesInLocation(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	f, err := ParseFilter(FilterInput{StartDate: "2024-01-01", EndDate: "2024-01-31", ClientID: "C1"}, Limits{DefaultLimit: 10, Location: seoul})
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, seoul), *f.From)
	require.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, seoul), *f.To)
	require.Equal(t, ModeClient, f.Mode())
}

func TestParseFilterReportsEveryBadField(t *testing.T) {
	_, err := ParseFilter(FilterInput{
		ActivityType: "invoice",
		StartDate:    "2024-13-01",
		EndDate:      "yesterday",
		Page:         "-1",
		Limit:        "0",
	}, testLimits)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrValidation))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 5)
	for _, field := range []string{"activity_type", "start_date", "end_date", "page", "limit"} {
		require.Contains(t, verr.Fields, field)
	}
}

func TestParseFilterRejectsInvertedRange(t *testing.T) {
	_, err := ParseFilter(FilterInput{StartDate: "2024-02-01", EndDate: "2024-01-01"}, testLimits)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "end_date")
}

func TestParseFilterRejectsMalformedScheduleKind(t *testing.T) {
	_, err := ParseFilter(FilterInput{ActivityType: "schedule_"}, testLimits)
	require.ErrorIs(t, err, ErrValidation)
}
