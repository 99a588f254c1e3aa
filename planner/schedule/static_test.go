package schedule

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// A Tuesday and a Saturday, used as fixed reference dates.
var (
	tuesday  = time.Date(2026, time.January, 6, 7, 0, 0, 0, time.UTC)
	saturday = time.Date(2026, time.January, 10, 7, 0, 0, 0, time.UTC)
)

func loadStatic(t *testing.T) *StaticSource {
	t.Helper()

	data, err := os.ReadFile("testdata/gautrain_schedule.json")
	require.NoError(t, err)

	src, err := ParseStatic(zaptest.NewLogger(t), data)
	require.NoError(t, err)
	return src
}

func TestParseStaticRejectsBadDocuments(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, err := ParseStatic(logger, []byte("not json"))
	assert.Error(t, err)

	_, err = ParseStatic(logger, []byte("{}"))
	assert.Error(t, err)
}

func TestStaticTrips(t *testing.T) {
	src := loadStatic(t)

	trips, err := src.Trips(context.Background(), Query{
		Line:        LineNorthSouth,
		Direction:   DirectionForward,
		DayType:     DayWeekday,
		Origin:      "Sandton",
		Destination: "Pretoria",
		Reference:   tuesday,
	})
	require.NoError(t, err)
	require.NotEmpty(t, trips)

	for _, trip := range trips {
		assert.True(t, trip.Arrival.After(trip.Departure))
		assert.Equal(t, 28*time.Minute, trip.Arrival.Sub(trip.Departure))
	}

	// First train of the day leaves Park at 05:30, reaching Sandton at 05:39.
	first := trips[0]
	assert.Equal(t, time.Date(2026, time.January, 6, 5, 39, 0, 0, time.UTC), first.Departure)

	// Stops cover Sandton through Pretoria inclusive, in travel order.
	require.Len(t, first.Stops, 5)
	assert.Equal(t, "Sandton", first.Stops[0].Name)
	assert.Equal(t, "Pretoria", first.Stops[4].Name)
}

func TestStaticTripsReverseDirection(t *testing.T) {
	src := loadStatic(t)

	trips, err := src.Trips(context.Background(), Query{
		Line:        LineNorthSouth,
		Direction:   DirectionReverse,
		DayType:     DayWeekday,
		Origin:      "Pretoria",
		Destination: "Rosebank",
		Reference:   tuesday,
	})
	require.NoError(t, err)
	require.NotEmpty(t, trips)

	for _, trip := range trips {
		assert.True(t, trip.Arrival.After(trip.Departure))
	}
	require.NotEmpty(t, trips[0].Stops)
	assert.Equal(t, "Pretoria", trips[0].Stops[0].Name)
	assert.Equal(t, "Rosebank", trips[0].Stops[len(trips[0].Stops)-1].Name)
}

func TestStaticTripsWeekend(t *testing.T) {
	src := loadStatic(t)

	trips, err := src.Trips(context.Background(), Query{
		Line:        LineAirport,
		Direction:   DirectionForward,
		DayType:     DayWeekend,
		Origin:      "Sandton",
		Destination: "OR Tambo",
		Reference:   saturday,
	})
	require.NoError(t, err)
	require.NotEmpty(t, trips)

	for _, trip := range trips {
		assert.Equal(t, 14*time.Minute, trip.Arrival.Sub(trip.Departure))
		assert.False(t, trip.Is8Car)
	}
}

func TestStaticTripsUnknownStationYieldsNone(t *testing.T) {
	src := loadStatic(t)

	// Park is not served by the Airport line, so no airport train carries a
	// time for it.
	trips, err := src.Trips(context.Background(), Query{
		Line:        LineAirport,
		Direction:   DirectionForward,
		DayType:     DayWeekday,
		Origin:      "Park",
		Destination: "OR Tambo",
		Reference:   tuesday,
	})
	require.NoError(t, err)
	assert.Empty(t, trips)
}

func TestParseClock(t *testing.T) {
	ref := time.Date(2026, time.March, 3, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		clock   string
		want    time.Time
		wantErr bool
	}{
		{name: "hh:mm", clock: "07:03", want: time.Date(2026, time.March, 3, 7, 3, 0, 0, time.UTC)},
		{name: "hh:mm:ss", clock: "07:03:30", want: time.Date(2026, time.March, 3, 7, 3, 30, 0, time.UTC)},
		{name: "padded", clock: " 18:45 ", want: time.Date(2026, time.March, 3, 18, 45, 0, 0, time.UTC)},
		{name: "empty", clock: "", wantErr: true},
		{name: "no separator", clock: "0703", wantErr: true},
		{name: "out of range hour", clock: "25:00", wantErr: true},
		{name: "out of range minute", clock: "10:75", wantErr: true},
		{name: "not numeric", clock: "aa:bb", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseClock(tt.clock, ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDayTypeOf(t *testing.T) {
	assert.Equal(t, DayWeekday, DayTypeOf(tuesday))
	assert.Equal(t, DayWeekend, DayTypeOf(saturday))
	assert.Equal(t, DayWeekend, DayTypeOf(saturday.AddDate(0, 0, 1)))
	assert.Equal(t, DayWeekday, DayTypeOf(saturday.AddDate(0, 0, 2)))
}
