package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	// maxGeneratedTrips bounds the number of departures synthesized for a
	// single day, whatever the configured frequency.
	maxGeneratedTrips = 100

	// defaultLegMinutes is the travel time assumed for any adjacent station
	// pair without an entry in the legs table.
	defaultLegMinutes = 5
)

// frequencyLine holds the generation parameters for one line.
type frequencyLine struct {
	FirstDeparture   map[string]string `json:"firstDeparture"`
	LastDeparture    map[string]string `json:"lastDeparture"`
	FrequencyMinutes struct {
		Peak    int `json:"peak"`
		OffPeak int `json:"offPeak"`
		Weekend int `json:"weekend"`
	} `json:"frequencyMinutes"`
	// LegMinutes maps "From-To" adjacent pairs to travel minutes. Pairs are
	// looked up in both orders.
	LegMinutes map[string]int `json:"legMinutes"`
}

// frequencyDocument is the frequency-parameter shape, keyed by line.
type frequencyDocument struct {
	Lines map[string]frequencyLine `json:"lines"`
}

// FrequencySource synthesizes trips from a first departure and a
// frequency-in-minutes table instead of an enumerated timetable.
type FrequencySource struct {
	logger *zap.Logger
	doc    frequencyDocument
}

// ParseFrequency builds a FrequencySource from the raw document bytes.
func ParseFrequency(logger *zap.Logger, data []byte) (*FrequencySource, error) {
	var doc frequencyDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing frequency schedule: %w", err)
	}
	if len(doc.Lines) == 0 {
		return nil, fmt.Errorf("frequency schedule document has no lines")
	}

	return &FrequencySource{
		logger: logger,
		doc:    doc,
	}, nil
}

// Trips implements Source.
func (s *FrequencySource) Trips(ctx context.Context, q Query) ([]Trip, error) {
	line, ok := s.doc.Lines[lineKey(q.Line)]
	if !ok {
		s.logger.Info("line missing from frequency schedule",
			zap.String("line", string(q.Line)),
		)
		return nil, nil
	}

	first, err := parseClock(line.FirstDeparture[string(q.DayType)], q.Reference)
	if err != nil {
		return nil, fmt.Errorf("first departure for %s/%s: %w", q.Line, q.DayType, err)
	}
	last, err := parseClock(line.LastDeparture[string(q.DayType)], q.Reference)
	if err != nil {
		return nil, fmt.Errorf("last departure for %s/%s: %w", q.Line, q.DayType, err)
	}

	stationPath := path(q.Line, q.Direction, q.Origin, q.Destination)
	if len(stationPath) < 2 {
		s.logger.Info("no path between stations",
			zap.String("origin", q.Origin),
			zap.String("destination", q.Destination),
			zap.String("line", string(q.Line)),
		)
		return nil, nil
	}

	// Travel offset from the head of the line to the origin, so generated
	// departures reflect the origin rather than the terminal.
	fullPath := StationsForLine(q.Line)
	if q.Direction == DirectionReverse {
		for i, j := 0, len(fullPath)-1; i < j; i, j = i+1, j-1 {
			fullPath[i], fullPath[j] = fullPath[j], fullPath[i]
		}
	}
	headOffset := time.Duration(0)
	for i := 0; i < len(fullPath)-1 && fullPath[i] != stationPath[0]; i++ {
		headOffset += s.legTime(line, fullPath[i], fullPath[i+1])
	}

	var trips []Trip
	for terminal := first; !terminal.After(last) && len(trips) < maxGeneratedTrips; terminal = terminal.Add(s.headway(line, terminal, q.DayType)) {
		departure := terminal.Add(headOffset)

		stops := make([]StopTime, 0, len(stationPath))
		at := departure
		stops = append(stops, StopTime{Name: stationPath[0], Arrival: at, Departure: at})
		for i := 1; i < len(stationPath); i++ {
			at = at.Add(s.legTime(line, stationPath[i-1], stationPath[i]))
			stops = append(stops, StopTime{Name: stationPath[i], Arrival: at, Departure: at})
		}

		trips = append(trips, Trip{
			Departure: departure,
			Arrival:   at,
			Stops:     stops,
		})
	}
	return trips, nil
}

// headway returns the generation interval in effect at the supplied instant.
func (s *FrequencySource) headway(line frequencyLine, at time.Time, day DayType) time.Duration {
	minutes := line.FrequencyMinutes.OffPeak
	if day == DayWeekend {
		minutes = line.FrequencyMinutes.Weekend
	} else if inPeakBand(at) {
		minutes = line.FrequencyMinutes.Peak
	}
	if minutes <= 0 {
		minutes = defaultLegMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// legTime looks up the travel time between two adjacent stations, trying the
// pair in both orders before falling back to the default.
func (s *FrequencySource) legTime(line frequencyLine, from, to string) time.Duration {
	if m, ok := line.LegMinutes[from+"-"+to]; ok && m > 0 {
		return time.Duration(m) * time.Minute
	}
	if m, ok := line.LegMinutes[to+"-"+from]; ok && m > 0 {
		return time.Duration(m) * time.Minute
	}
	return defaultLegMinutes * time.Minute
}

// Weekday peak bands: 06:00-09:00 and 16:00-19:00.
func inPeakBand(t time.Time) bool {
	h := t.Hour()
	return (h >= 6 && h < 9) || (h >= 16 && h < 19)
}
