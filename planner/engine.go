package planner

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gautrainza/gautrain/planner/schedule"
)

// ConstraintKind selects how a journey request's time is interpreted.
type ConstraintKind string

// The three temporal constraints.
const (
	// DepartAfter plans trains leaving from now onwards.
	DepartAfter ConstraintKind = "DepartAfter"
	// DepartWindow plans trains inside a window around a target departure.
	DepartWindow ConstraintKind = "DepartWindow"
	// ArriveBefore plans trains arriving no later than a deadline.
	ArriveBefore ConstraintKind = "ArriveBefore"
)

// boardingBuffer keeps results that depart too soon to reach the platform
// out of DepartAfter and ArriveBefore plans.
const boardingBuffer = time.Minute

// defaultMaxResults applies when a request does not say how many
// itineraries it wants.
const defaultMaxResults = 5

// Window is an absolute departure window around a target instant. The
// caller resolves any "next Tuesday at 07:30" style request into absolute
// instants before building one.
type Window struct {
	Start  time.Time
	End    time.Time
	Target time.Time
}

// JourneyRequest describes one planning call.
type JourneyRequest struct {
	Origin      string
	Destination string
	Constraint  ConstraintKind

	// Time is the ArriveBefore deadline. Ignored for other constraints.
	Time time.Time
	// Window is required for DepartWindow.
	Window *Window

	// Line optionally pins the journey to a specific line; when empty the
	// line is inferred from station membership.
	Line schedule.Line

	MaxResults int
}

// ItineraryStop is one station visit on an itinerary.
type ItineraryStop struct {
	Name      string
	Arrival   time.Time
	Departure time.Time
}

// Itinerary is one ranked journey option.
type Itinerary struct {
	ID string

	// DepartureTime and ArrivalTime reflect the delay-corrected values when
	// delay information was available, and the scheduled values otherwise.
	DepartureTime      time.Time
	ArrivalTime        time.Time
	ScheduledDeparture time.Time
	Duration           time.Duration

	Origin      string
	Destination string
	LineName    string

	DelayMinutes int
	HasDelay     bool
	Is8Car       bool

	Stops []ItineraryStop
}

// DelayInfo is the observed-vs-scheduled offset for one departure.
type DelayInfo struct {
	ObservedDeparture time.Time
	Delay             time.Duration
}

// DelayChecker looks up live delay information for a single scheduled
// departure. A nil result means no information; implementations never
// return an error, the lookup is strictly best-effort.
type DelayChecker interface {
	CheckDelay(ctx context.Context, origin, destination Station, scheduled time.Time) *DelayInfo
}

// Engine is the journey planning engine.
type Engine struct {
	logger    *zap.Logger
	directory *Directory
	source    schedule.Source
	delays    DelayChecker

	now func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithDelayChecker enables best-effort delay correction of planned trips.
func WithDelayChecker(dc DelayChecker) EngineOption {
	return func(e *Engine) {
		e.delays = dc
	}
}

// WithClock overrides the engine's wall clock.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates a planning engine over the supplied directory and
// schedule source.
func NewEngine(logger *zap.Logger, directory *Directory, source schedule.Source, opts ...EngineOption) *Engine {
	e := &Engine{
		logger:    logger,
		directory: directory,
		source:    source,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// PlanJourney plans a journey and returns ranked itineraries.
//
// It fails only for malformed requests: unknown stations (ErrInvalidStation)
// or station pairs that don't form a single-line route (ErrInvalidRoute).
// "No trains found" is a valid outcome and comes back as an empty slice, as
// does a schedule source failure.
func (e *Engine) PlanJourney(ctx context.Context, req JourneyRequest) ([]Itinerary, error) {
	origin, err := e.directory.Resolve(req.Origin)
	if err != nil {
		return nil, err
	}
	destination, err := e.directory.Resolve(req.Destination)
	if err != nil {
		return nil, err
	}

	now := e.now()
	constraint, reference := e.resolveConstraint(req, now)
	dayType := schedule.DayTypeOf(reference)

	line := e.directory.LineFor(origin, destination, req.Line)
	direction, err := e.directory.Direction(line, origin, destination)
	if err != nil {
		return nil, err
	}

	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	trips, err := e.source.Trips(ctx, schedule.Query{
		Line:        line,
		Direction:   direction,
		DayType:     dayType,
		Origin:      origin.Name,
		Destination: destination.Name,
		Reference:   reference,
	})
	if err != nil {
		// Schedule unavailability degrades to "no trains found" rather than
		// surfacing to the caller.
		e.logger.Warn("schedule source failed",
			zap.String("line", string(line)),
			zap.String("direction", string(direction)),
			zap.String("day_type", string(dayType)),
			zap.Error(err),
		)
		return []Itinerary{}, nil
	}

	candidates := e.filter(trips, constraint, req, now)
	e.rank(candidates, constraint, req)
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}

	e.logger.Debug("planned journey",
		zap.String("origin", origin.Name),
		zap.String("destination", destination.Name),
		zap.String("line", string(line)),
		zap.String("direction", string(direction)),
		zap.String("day_type", string(dayType)),
		zap.String("constraint", string(constraint)),
		zap.Int("candidates", len(trips)),
		zap.Int("results", len(candidates)),
	)

	return e.assemble(ctx, candidates, origin, destination, line), nil
}

// resolveConstraint firms up the requested constraint and picks the
// reference date for schedule lookup. A DepartWindow request without a
// window, or an ArriveBefore without a deadline, falls back to DepartAfter.
func (e *Engine) resolveConstraint(req JourneyRequest, now time.Time) (ConstraintKind, time.Time) {
	switch {
	case req.Constraint == DepartWindow && req.Window != nil:
		return DepartWindow, req.Window.Target
	case req.Constraint == ArriveBefore && !req.Time.IsZero():
		return ArriveBefore, req.Time
	default:
		return DepartAfter, now
	}
}

// filter discards degenerate trips and applies the temporal constraint.
func (e *Engine) filter(trips []schedule.Trip, constraint ConstraintKind, req JourneyRequest, now time.Time) []schedule.Trip {
	threshold := now.Add(boardingBuffer)

	var kept []schedule.Trip
	for _, t := range trips {
		// Reverse or degenerate entries in the schedule data are dropped
		// here, not surfaced.
		if !t.Arrival.After(t.Departure) {
			continue
		}

		switch constraint {
		case DepartWindow:
			if t.Departure.Before(req.Window.Start) || t.Departure.After(req.Window.End) {
				continue
			}
		case ArriveBefore:
			if !t.Departure.After(threshold) || t.Arrival.After(req.Time) {
				continue
			}
		default:
			if !t.Departure.After(threshold) {
				continue
			}
		}
		kept = append(kept, t)
	}
	return kept
}

// rank orders the surviving trips per the constraint's ranking rule.
func (e *Engine) rank(trips []schedule.Trip, constraint ConstraintKind, req JourneyRequest) {
	switch constraint {
	case DepartWindow:
		target := req.Window.Target
		sort.SliceStable(trips, func(i, j int) bool {
			di := absDuration(trips[i].Departure.Sub(target))
			dj := absDuration(trips[j].Departure.Sub(target))
			if di == dj {
				return trips[i].Departure.Before(trips[j].Departure)
			}
			return di < dj
		})
	case ArriveBefore:
		sort.SliceStable(trips, func(i, j int) bool {
			return trips[i].Arrival.After(trips[j].Arrival)
		})
	default:
		sort.SliceStable(trips, func(i, j int) bool {
			return trips[i].Departure.Before(trips[j].Departure)
		})
	}
}

// assemble turns trips into itineraries, applying delay correction when a
// checker is configured. Delay lookups for the result set run concurrently
// and all complete (or time out) before results are returned.
func (e *Engine) assemble(ctx context.Context, trips []schedule.Trip, origin, destination Station, line schedule.Line) []Itinerary {
	delays := make([]*DelayInfo, len(trips))
	if e.delays != nil {
		var wg sync.WaitGroup
		for i, t := range trips {
			wg.Add(1)
			go func(i int, scheduled time.Time) {
				defer wg.Done()
				delays[i] = e.delays.CheckDelay(ctx, origin, destination, scheduled)
			}(i, t.Departure)
		}
		wg.Wait()
	}

	lineName := string(line)
	if info, ok := e.directory.LineInfoFor(line); ok {
		lineName = info.Name
	}

	itineraries := make([]Itinerary, 0, len(trips))
	for i, t := range trips {
		it := Itinerary{
			ID:                 uuid.New().String(),
			DepartureTime:      t.Departure,
			ArrivalTime:        t.Arrival,
			ScheduledDeparture: t.Departure,
			Duration:           t.Arrival.Sub(t.Departure),
			Origin:             origin.Name,
			Destination:        destination.Name,
			LineName:           lineName,
			Is8Car:             t.Is8Car,
			Stops:              stopsFromTrip(t),
		}

		if info := delays[i]; info != nil {
			it.DepartureTime = t.Departure.Add(info.Delay)
			it.ArrivalTime = t.Arrival.Add(info.Delay)
			it.DelayMinutes = int(math.Round(info.Delay.Minutes()))
			it.HasDelay = true
		}

		itineraries = append(itineraries, it)
	}
	return itineraries
}

func stopsFromTrip(t schedule.Trip) []ItineraryStop {
	stops := make([]ItineraryStop, 0, len(t.Stops))
	for _, s := range t.Stops {
		stops = append(stops, ItineraryStop{
			Name:      s.Name,
			Arrival:   s.Arrival,
			Departure: s.Departure,
		})
	}
	return stops
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
