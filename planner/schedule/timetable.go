package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// timetableEntry is one (line, direction, day-type) block of the explicit
// per-trip table shape. Each trip's times align positionally to Stations.
type timetableEntry struct {
	ScheduleType string   `json:"scheduleType"`
	Line         string   `json:"line"`
	Direction    string   `json:"direction"`
	DayType      string   `json:"dayType"`
	Stations     []string `json:"stations"`
	Trips        []struct {
		Times    []string `json:"times"`
		EightCar bool     `json:"eight_car"`
	} `json:"trips"`
}

// TimetableSource serves trips from the explicit per-trip table shape.
type TimetableSource struct {
	logger  *zap.Logger
	entries []timetableEntry
}

// ParseTimetable builds a TimetableSource from the raw document bytes.
func ParseTimetable(logger *zap.Logger, data []byte) (*TimetableSource, error) {
	var entries []timetableEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing timetable schedule: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("timetable schedule document is empty")
	}

	for i, e := range entries {
		if e.ScheduleType != "" && e.ScheduleType != "timetable" {
			return nil, fmt.Errorf("entry %d has schedule type %q, want timetable", i, e.ScheduleType)
		}
	}

	return &TimetableSource{
		logger:  logger,
		entries: entries,
	}, nil
}

// Trips implements Source.
func (s *TimetableSource) Trips(ctx context.Context, q Query) ([]Trip, error) {
	entry, ok := s.entry(q)
	if !ok {
		s.logger.Info("no timetable entry",
			zap.String("line", string(q.Line)),
			zap.String("direction", string(q.Direction)),
			zap.String("day_type", string(q.DayType)),
		)
		return nil, nil
	}

	oi := stationIndex(entry.Stations, q.Origin)
	di := stationIndex(entry.Stations, q.Destination)
	if oi < 0 || di < 0 {
		s.logger.Info("station not in timetable entry",
			zap.String("origin", q.Origin),
			zap.String("destination", q.Destination),
		)
		return nil, nil
	}

	var trips []Trip
	for _, t := range entry.Trips {
		if oi >= len(t.Times) || di >= len(t.Times) {
			continue
		}

		departure, err := parseClock(t.Times[oi], q.Reference)
		if err != nil {
			s.logger.Warn("skipping trip with bad time",
				zap.String("station", q.Origin),
				zap.Error(err),
			)
			continue
		}
		arrival, err := parseClock(t.Times[di], q.Reference)
		if err != nil {
			s.logger.Warn("skipping trip with bad time",
				zap.String("station", q.Destination),
				zap.Error(err),
			)
			continue
		}

		trips = append(trips, Trip{
			Departure: departure,
			Arrival:   arrival,
			Is8Car:    t.EightCar,
			Stops:     stopsFromIndexes(entry.Stations, t.Times, oi, di, q.Reference),
		})
	}
	return trips, nil
}

func (s *TimetableSource) entry(q Query) (timetableEntry, bool) {
	for _, e := range s.entries {
		if e.Line == lineKey(q.Line) &&
			e.Direction == directionKey(q.Line, q.Direction) &&
			e.DayType == string(q.DayType) {
			return e, true
		}
	}
	return timetableEntry{}, false
}

func stationIndex(stations []string, name string) int {
	for i, s := range stations {
		if strings.EqualFold(s, name) {
			return i
		}
	}
	return -1
}

// stopsFromIndexes assembles the stop list between the origin and
// destination indexes. The entry's station sequence is already in travel
// order for its direction, so oi < di holds for well-formed data.
func stopsFromIndexes(stations []string, times []string, oi, di int, ref time.Time) []StopTime {
	lo, hi := oi, di
	if lo > hi {
		lo, hi = hi, lo
	}

	var stops []StopTime
	for i := lo; i <= hi && i < len(times); i++ {
		at, err := parseClock(times[i], ref)
		if err != nil {
			continue
		}
		stops = append(stops, StopTime{Name: stations[i], Arrival: at, Departure: at})
	}
	if oi > di {
		for i, j := 0, len(stops)-1; i < j; i, j = i+1, j-1 {
			stops[i], stops[j] = stops[j], stops[i]
		}
	}
	return stops
}
