package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Document keys used by the static and timetable shapes. These follow the
// published timetable's naming rather than the Line/Direction enums.
const (
	keyNorthSouth = "north_south"
	keyAirport    = "airport"

	keySouthToNorth = "south_to_north"
	keyNorthToSouth = "north_to_south"
	keyWestToEast   = "west_to_east"
	keyEastToWest   = "east_to_west"
)

func lineKey(l Line) string {
	if l == LineAirport {
		return keyAirport
	}
	return keyNorthSouth
}

func directionKey(l Line, d Direction) string {
	if l == LineAirport {
		if d == DirectionReverse {
			return keyEastToWest
		}
		return keyWestToEast
	}
	if d == DirectionReverse {
		return keyNorthToSouth
	}
	return keySouthToNorth
}

// staticTrip is one train in the static document, with a clock time per
// station it serves.
type staticTrip struct {
	Times  map[string]string `json:"times"`
	Is8Car bool              `json:"is8Car"`
}

// staticDocument is the nested line → direction → day-type → trips shape.
type staticDocument map[string]map[string]map[string][]staticTrip

// StaticSource serves trips from a fully enumerated timetable document.
type StaticSource struct {
	logger *zap.Logger
	doc    staticDocument
}

// ParseStatic builds a StaticSource from the raw document bytes.
func ParseStatic(logger *zap.Logger, data []byte) (*StaticSource, error) {
	var doc staticDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing static schedule: %w", err)
	}
	if len(doc) == 0 {
		return nil, fmt.Errorf("static schedule document is empty")
	}

	return &StaticSource{
		logger: logger,
		doc:    doc,
	}, nil
}

// Trips implements Source.
func (s *StaticSource) Trips(ctx context.Context, q Query) ([]Trip, error) {
	trains := s.doc[lineKey(q.Line)][directionKey(q.Line, q.Direction)][string(q.DayType)]
	if len(trains) == 0 {
		s.logger.Info("no trains in static schedule",
			zap.String("line", string(q.Line)),
			zap.String("direction", string(q.Direction)),
			zap.String("day_type", string(q.DayType)),
		)
		return nil, nil
	}

	stationPath := path(q.Line, q.Direction, q.Origin, q.Destination)

	var trips []Trip
	for _, train := range trains {
		fromClock, ok := train.Times[q.Origin]
		if !ok {
			continue
		}
		toClock, ok := train.Times[q.Destination]
		if !ok {
			continue
		}

		departure, err := parseClock(fromClock, q.Reference)
		if err != nil {
			s.logger.Warn("skipping train with bad departure time",
				zap.String("station", q.Origin),
				zap.Error(err),
			)
			continue
		}
		arrival, err := parseClock(toClock, q.Reference)
		if err != nil {
			s.logger.Warn("skipping train with bad arrival time",
				zap.String("station", q.Destination),
				zap.Error(err),
			)
			continue
		}

		trips = append(trips, Trip{
			Departure: departure,
			Arrival:   arrival,
			Is8Car:    train.Is8Car,
			Stops:     stopsFromTimes(train.Times, stationPath, q.Reference),
		})
	}
	return trips, nil
}

// stopsFromTimes assembles the ordered stop list for the travelled path from
// a station → clock-time map. Stations the train skips are omitted.
func stopsFromTimes(times map[string]string, stationPath []string, ref time.Time) []StopTime {
	var stops []StopTime
	for _, name := range stationPath {
		clock, ok := times[name]
		if !ok {
			continue
		}
		at, err := parseClock(clock, ref)
		if err != nil {
			continue
		}
		stops = append(stops, StopTime{
			Name:      name,
			Arrival:   at,
			Departure: at,
		})
	}
	return stops
}
