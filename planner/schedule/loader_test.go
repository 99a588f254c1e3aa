package schedule

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCacheLoadsOnce(t *testing.T) {
	cache := NewCache(zaptest.NewLogger(t), VariantStatic, "testdata/gautrain_schedule.json")

	first, err := cache.Source(context.Background())
	require.NoError(t, err)
	second, err := cache.Source(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestCacheConcurrentFirstLoad(t *testing.T) {
	cache := NewCache(zaptest.NewLogger(t), VariantStatic, "testdata/gautrain_schedule.json")

	const callers = 16
	sources := make([]Source, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src, err := cache.Source(context.Background())
			assert.NoError(t, err)
			sources[i] = src
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Same(t, sources[0], sources[i])
	}
}

func TestCacheTripsDelegates(t *testing.T) {
	cache := NewCache(zaptest.NewLogger(t), VariantStatic, "testdata/gautrain_schedule.json")

	trips, err := cache.Trips(context.Background(), Query{
		Line:        LineNorthSouth,
		Direction:   DirectionForward,
		DayType:     DayWeekday,
		Origin:      "Park",
		Destination: "Hatfield",
		Reference:   tuesday,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, trips)
}

func TestCacheMissingFile(t *testing.T) {
	cache := NewCache(zaptest.NewLogger(t), VariantStatic, "testdata/no_such_file.json")

	_, err := cache.Source(context.Background())
	assert.Error(t, err)
}

func TestParseUnknownVariant(t *testing.T) {
	_, err := Parse(zaptest.NewLogger(t), Variant("yaml"), []byte("{}"))
	assert.Error(t, err)
}

func TestParseDispatch(t *testing.T) {
	logger := zaptest.NewLogger(t)

	doc := []byte(`{"north_south": {"south_to_north": {"weekday": [{"times": {"Park": "06:00"}}]}}}`)
	src, err := Parse(logger, VariantStatic, doc)
	require.NoError(t, err)
	assert.IsType(t, &StaticSource{}, src)

	doc = []byte(`[{"scheduleType": "timetable", "line": "north_south", "direction": "south_to_north", "dayType": "weekday", "stations": ["Park"], "trips": []}]`)
	src, err = Parse(logger, VariantTimetable, doc)
	require.NoError(t, err)
	assert.IsType(t, &TimetableSource{}, src)
}
