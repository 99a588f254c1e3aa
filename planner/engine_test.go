package planner

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gautrainza/gautrain/planner/schedule"
)

// Fixed clocks: 2026-01-06 is a Tuesday, 2026-01-10 a Saturday.
var (
	tuesdaySeven   = time.Date(2026, time.January, 6, 7, 0, 0, 0, time.UTC)
	tuesdayEight   = time.Date(2026, time.January, 6, 8, 0, 0, 0, time.UTC)
	tuesdayEvening = time.Date(2026, time.January, 6, 18, 0, 0, 0, time.UTC)
	saturdayNine   = time.Date(2026, time.January, 10, 9, 0, 0, 0, time.UTC)
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func newTestEngine(t *testing.T, now time.Time, opts ...EngineOption) *Engine {
	t.Helper()

	logger := zaptest.NewLogger(t)
	data, err := os.ReadFile("schedule/testdata/gautrain_schedule.json")
	require.NoError(t, err)
	src, err := schedule.ParseStatic(logger, data)
	require.NoError(t, err)

	opts = append([]EngineOption{WithClock(fixedClock(now))}, opts...)
	return NewEngine(logger, NewDirectory(), src, opts...)
}

type stubSource struct {
	trips []schedule.Trip
	err   error
}

func (s *stubSource) Trips(ctx context.Context, q schedule.Query) ([]schedule.Trip, error) {
	return s.trips, s.err
}

type stubDelayChecker struct {
	delay time.Duration
	found bool
	calls atomic.Int32
}

func (s *stubDelayChecker) CheckDelay(ctx context.Context, origin, destination Station, scheduled time.Time) *DelayInfo {
	s.calls.Add(1)
	if !s.found {
		return nil
	}
	return &DelayInfo{
		ObservedDeparture: scheduled.Add(s.delay),
		Delay:             s.delay,
	}
}

func TestPlanJourneyDepartAfter(t *testing.T) {
	e := newTestEngine(t, tuesdaySeven)

	itineraries, err := e.PlanJourney(context.Background(), JourneyRequest{
		Origin:      "Sandton",
		Destination: "Pretoria",
		Constraint:  DepartAfter,
	})
	require.NoError(t, err)
	require.NotEmpty(t, itineraries)

	threshold := tuesdaySeven.Add(time.Minute)
	for i, it := range itineraries {
		assert.True(t, it.DepartureTime.After(threshold))
		assert.True(t, it.ArrivalTime.After(it.DepartureTime))
		assert.Equal(t, "North-South Line", it.LineName)
		if i > 0 {
			assert.False(t, it.DepartureTime.Before(itineraries[i-1].DepartureTime))
		}
	}

	// Sandton to Pretoria runs about 28 minutes.
	first := itineraries[0]
	assert.GreaterOrEqual(t, first.Duration, 25*time.Minute)
	assert.LessOrEqual(t, first.Duration, 35*time.Minute)
}

// The first train after a 07:00 weekday departs Rosebank at 07:03:00,
// reaches Hatfield at 07:41, and runs with eight cars.
func TestPlanJourneyFirstTrainAfterSeven(t *testing.T) {
	e := newTestEngine(t, tuesdaySeven)

	itineraries, err := e.PlanJourney(context.Background(), JourneyRequest{
		Origin:      "Rosebank",
		Destination: "Hatfield",
		Constraint:  DepartAfter,
		MaxResults:  1,
	})
	require.NoError(t, err)
	require.Len(t, itineraries, 1)

	first := itineraries[0]
	assert.Equal(t, time.Date(2026, time.January, 6, 7, 3, 0, 0, time.UTC), first.DepartureTime)
	assert.Equal(t, time.Date(2026, time.January, 6, 7, 41, 0, 0, time.UTC), first.ArrivalTime)
	assert.Equal(t, 38*time.Minute, first.Duration)
	assert.True(t, first.Is8Car)

	// Stops cover Rosebank through Hatfield in travel order.
	require.Len(t, first.Stops, 7)
	assert.Equal(t, "Rosebank", first.Stops[0].Name)
	assert.Equal(t, "Hatfield", first.Stops[6].Name)
}

func TestPlanJourneyDepartWindow(t *testing.T) {
	e := newTestEngine(t, tuesdaySeven)

	window := &Window{
		Start:  tuesdayEight.Add(-30 * time.Minute),
		End:    tuesdayEight.Add(30 * time.Minute),
		Target: tuesdayEight,
	}

	itineraries, err := e.PlanJourney(context.Background(), JourneyRequest{
		Origin:      "Park",
		Destination: "Hatfield",
		Constraint:  DepartWindow,
		Window:      window,
		MaxResults:  10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, itineraries)

	for i, it := range itineraries {
		assert.False(t, it.DepartureTime.Before(window.Start))
		assert.False(t, it.DepartureTime.After(window.End))
		if i > 0 {
			prev := absDuration(itineraries[i-1].DepartureTime.Sub(window.Target))
			curr := absDuration(it.DepartureTime.Sub(window.Target))
			assert.GreaterOrEqual(t, curr, prev)
		}
	}

	// The 08:00 departure sits exactly on target and ranks first; the full
	// line runs about 42 minutes.
	first := itineraries[0]
	assert.Equal(t, tuesdayEight, first.DepartureTime)
	assert.Equal(t, 42*time.Minute, first.Duration)
}

func TestPlanJourneyArriveBefore(t *testing.T) {
	e := newTestEngine(t, tuesdaySeven)

	itineraries, err := e.PlanJourney(context.Background(), JourneyRequest{
		Origin:      "Sandton",
		Destination: "Pretoria",
		Constraint:  ArriveBefore,
		Time:        tuesdayEvening,
	})
	require.NoError(t, err)
	require.NotEmpty(t, itineraries)

	threshold := tuesdaySeven.Add(time.Minute)
	for i, it := range itineraries {
		assert.True(t, it.DepartureTime.After(threshold))
		assert.False(t, it.ArrivalTime.After(tuesdayEvening))
		if i > 0 {
			assert.False(t, it.ArrivalTime.After(itineraries[i-1].ArrivalTime),
				"arrivals must be non-increasing")
		}
	}

	// The latest qualifying arrival comes first: the 17:00 terminal
	// departure reaching Pretoria at 17:37.
	assert.Equal(t, time.Date(2026, time.January, 6, 17, 37, 0, 0, time.UTC), itineraries[0].ArrivalTime)
}

func TestPlanJourneyAirportLine(t *testing.T) {
	e := newTestEngine(t, tuesdaySeven)

	itineraries, err := e.PlanJourney(context.Background(), JourneyRequest{
		Origin:      "Sandton",
		Destination: "OR Tambo",
		Constraint:  DepartAfter,
	})
	require.NoError(t, err)
	require.NotEmpty(t, itineraries)

	first := itineraries[0]
	assert.Equal(t, "Airport Line", first.LineName)
	assert.GreaterOrEqual(t, first.Duration, 12*time.Minute)
	assert.LessOrEqual(t, first.Duration, 18*time.Minute)
}

func TestPlanJourneyWeekend(t *testing.T) {
	e := newTestEngine(t, saturdayNine)

	itineraries, err := e.PlanJourney(context.Background(), JourneyRequest{
		Origin:      "Sandton",
		Destination: "Pretoria",
		Constraint:  DepartAfter,
	})
	require.NoError(t, err)
	require.NotEmpty(t, itineraries)

	for _, it := range itineraries {
		assert.False(t, it.Is8Car)
	}
}

func TestPlanJourneyExplicitLine(t *testing.T) {
	e := newTestEngine(t, tuesdaySeven)

	// Sandton-Marlboro is served by both lines; the explicit selector pins
	// the journey to the Airport line.
	itineraries, err := e.PlanJourney(context.Background(), JourneyRequest{
		Origin:      "Sandton",
		Destination: "Marlboro",
		Constraint:  DepartAfter,
		Line:        schedule.LineAirport,
	})
	require.NoError(t, err)
	require.NotEmpty(t, itineraries)
	assert.Equal(t, "Airport Line", itineraries[0].LineName)
}

func TestPlanJourneyMaxResults(t *testing.T) {
	e := newTestEngine(t, tuesdaySeven)

	itineraries, err := e.PlanJourney(context.Background(), JourneyRequest{
		Origin:      "Park",
		Destination: "Hatfield",
		Constraint:  DepartAfter,
		MaxResults:  2,
	})
	require.NoError(t, err)
	assert.Len(t, itineraries, 2)

	// Zero means the default.
	itineraries, err = e.PlanJourney(context.Background(), JourneyRequest{
		Origin:      "Park",
		Destination: "Hatfield",
		Constraint:  DepartAfter,
	})
	require.NoError(t, err)
	assert.Len(t, itineraries, defaultMaxResults)
}

func TestPlanJourneyUnknownStation(t *testing.T) {
	e := newTestEngine(t, tuesdaySeven)

	_, err := e.PlanJourney(context.Background(), JourneyRequest{
		Origin:      "Soweto",
		Destination: "Pretoria",
		Constraint:  DepartAfter,
	})
	assert.True(t, errors.Is(err, ErrInvalidStation))

	_, err = e.PlanJourney(context.Background(), JourneyRequest{
		Origin:      "Sandton",
		Destination: "Soweto",
		Constraint:  DepartAfter,
	})
	assert.True(t, errors.Is(err, ErrInvalidStation))
}

func TestPlanJourneyInvalidRoute(t *testing.T) {
	e := newTestEngine(t, tuesdaySeven)

	// Park is not on the Airport line, which OR Tambo forces.
	_, err := e.PlanJourney(context.Background(), JourneyRequest{
		Origin:      "Park",
		Destination: "OR Tambo",
		Constraint:  DepartAfter,
	})
	assert.True(t, errors.Is(err, ErrInvalidRoute))

	_, err = e.PlanJourney(context.Background(), JourneyRequest{
		Origin:      "Sandton",
		Destination: "Sandton",
		Constraint:  DepartAfter,
	})
	assert.True(t, errors.Is(err, ErrInvalidRoute))
}

// A failing schedule source degrades to an empty result, not an error.
func TestPlanJourneyScheduleUnavailable(t *testing.T) {
	logger := zaptest.NewLogger(t)
	e := NewEngine(logger, NewDirectory(), &stubSource{err: errors.New("boom")}, WithClock(fixedClock(tuesdaySeven)))

	itineraries, err := e.PlanJourney(context.Background(), JourneyRequest{
		Origin:      "Sandton",
		Destination: "Pretoria",
		Constraint:  DepartAfter,
	})
	require.NoError(t, err)
	assert.Empty(t, itineraries)
}

func TestPlanJourneyDiscardsDegenerateTrips(t *testing.T) {
	logger := zaptest.NewLogger(t)
	src := &stubSource{trips: []schedule.Trip{
		{Departure: tuesdayEight, Arrival: tuesdayEight},                        // zero duration
		{Departure: tuesdayEight, Arrival: tuesdayEight.Add(-10 * time.Minute)}, // reversed
		{Departure: tuesdayEight, Arrival: tuesdayEight.Add(28 * time.Minute)},
	}}
	e := NewEngine(logger, NewDirectory(), src, WithClock(fixedClock(tuesdaySeven)))

	itineraries, err := e.PlanJourney(context.Background(), JourneyRequest{
		Origin:      "Sandton",
		Destination: "Pretoria",
		Constraint:  DepartAfter,
	})
	require.NoError(t, err)
	require.Len(t, itineraries, 1)
	assert.Equal(t, tuesdayEight, itineraries[0].DepartureTime)
}

func TestPlanJourneyDelayCorrection(t *testing.T) {
	checker := &stubDelayChecker{delay: 3 * time.Minute, found: true}
	e := newTestEngine(t, tuesdaySeven, WithDelayChecker(checker))

	itineraries, err := e.PlanJourney(context.Background(), JourneyRequest{
		Origin:      "Rosebank",
		Destination: "Hatfield",
		Constraint:  DepartAfter,
		MaxResults:  3,
	})
	require.NoError(t, err)
	require.Len(t, itineraries, 3)
	assert.Equal(t, int32(3), checker.calls.Load())

	first := itineraries[0]
	assert.Equal(t, time.Date(2026, time.January, 6, 7, 3, 0, 0, time.UTC), first.ScheduledDeparture)
	assert.Equal(t, time.Date(2026, time.January, 6, 7, 6, 0, 0, time.UTC), first.DepartureTime)
	assert.Equal(t, time.Date(2026, time.January, 6, 7, 44, 0, 0, time.UTC), first.ArrivalTime)
	assert.Equal(t, 3, first.DelayMinutes)
	assert.True(t, first.HasDelay)
	// The shift moves both ends; duration is unchanged.
	assert.Equal(t, 38*time.Minute, first.Duration)
}

func TestPlanJourneyDelayCheckerNoInformation(t *testing.T) {
	checker := &stubDelayChecker{found: false}
	e := newTestEngine(t, tuesdaySeven, WithDelayChecker(checker))

	itineraries, err := e.PlanJourney(context.Background(), JourneyRequest{
		Origin:      "Rosebank",
		Destination: "Hatfield",
		Constraint:  DepartAfter,
		MaxResults:  2,
	})
	require.NoError(t, err)
	require.Len(t, itineraries, 2)

	for _, it := range itineraries {
		assert.False(t, it.HasDelay)
		assert.Zero(t, it.DelayMinutes)
		assert.Equal(t, it.ScheduledDeparture, it.DepartureTime)
	}
}

// Planning twice with the same inputs and a frozen clock yields the same
// itineraries, IDs aside.
func TestPlanJourneyIdempotent(t *testing.T) {
	e := newTestEngine(t, tuesdaySeven)

	req := JourneyRequest{
		Origin:      "Sandton",
		Destination: "Pretoria",
		Constraint:  DepartAfter,
	}

	first, err := e.PlanJourney(context.Background(), req)
	require.NoError(t, err)
	second, err := e.PlanJourney(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.NotEqual(t, first[i].ID, second[i].ID)
		first[i].ID = ""
		second[i].ID = ""
		assert.Equal(t, first[i], second[i])
	}
}

// A request falling back to DepartAfter: DepartWindow with no window.
func TestPlanJourneyWindowFallback(t *testing.T) {
	e := newTestEngine(t, tuesdaySeven)

	itineraries, err := e.PlanJourney(context.Background(), JourneyRequest{
		Origin:      "Sandton",
		Destination: "Pretoria",
		Constraint:  DepartWindow,
	})
	require.NoError(t, err)
	require.NotEmpty(t, itineraries)

	for i := 1; i < len(itineraries); i++ {
		assert.False(t, itineraries[i].DepartureTime.Before(itineraries[i-1].DepartureTime))
	}
}
