package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/gautrainza/gautrain/planner"
	"github.com/gautrainza/gautrain/planner/schedule"
)

// windowHalf is the half-width of a "depart at around" window.
const windowHalf = 30 * time.Minute

// LivenessProber reports whether the upstream Gautrain API is reachable.
type LivenessProber interface {
	IsLive(ctx context.Context) bool
}

// Server is the HTTP presentation adapter over the planning engine. It owns
// request decoding, including resolving "next weekday at 07:30" style
// inputs into the absolute instants the engine expects.
type Server struct {
	logger    *zap.Logger
	directory *planner.Directory
	engine    *planner.Engine
	live      LivenessProber

	now func() time.Time
}

// NewServer creates the HTTP server.
func NewServer(logger *zap.Logger, directory *planner.Directory, engine *planner.Engine, live LivenessProber) *Server {
	return &Server{
		logger:    logger,
		directory: directory,
		engine:    engine,
		live:      live,
		now:       time.Now,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests, s.recoverPanics)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/lines", s.handleLines).Methods(http.MethodGet)
	api.HandleFunc("/lines/{id}/stations", s.handleLineStations).Methods(http.MethodGet)
	api.HandleFunc("/stations", s.handleStations).Methods(http.MethodGet)
	api.HandleFunc("/journeys", s.handleJourneys).Methods(http.MethodPost)
	api.HandleFunc("/fare", s.handleFare).Methods(http.MethodGet)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	return r
}

type lineJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Note        string `json:"note,omitempty"`
}

type stationJSON struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Aliases []string `json:"aliases,omitempty"`
	Lat     float64  `json:"lat"`
	Lon     float64  `json:"lon"`
	Line    string   `json:"line"`
	Order   int      `json:"order"`
}

type stopJSON struct {
	Name      string    `json:"name"`
	Arrival   time.Time `json:"arrival"`
	Departure time.Time `json:"departure"`
}

type fareJSON struct {
	Amount int  `json:"amount"`
	Peak   bool `json:"peak"`
}

type itineraryJSON struct {
	ID                 string     `json:"id"`
	DepartureTime      time.Time  `json:"departureTime"`
	ArrivalTime        time.Time  `json:"arrivalTime"`
	ScheduledDeparture time.Time  `json:"scheduledDeparture"`
	DurationSeconds    int        `json:"durationSeconds"`
	Origin             string     `json:"origin"`
	Destination        string     `json:"destination"`
	Line               string     `json:"line"`
	DelayMinutes       int        `json:"delayMinutes"`
	HasDelay           bool       `json:"hasDelay"`
	Is8Car             bool       `json:"is8Car"`
	Fare               fareJSON   `json:"fareEstimate"`
	Stops              []stopJSON `json:"stops"`
}

type journeyRequestJSON struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	Constraint  string `json:"constraint"`
	// Time is either an RFC 3339 instant or a bare "HH:MM" clock time. A
	// clock time is rolled forward to the next calendar day matching
	// DayType (when given) at that time.
	Time       string `json:"time,omitempty"`
	DayType    string `json:"dayType,omitempty"`
	Line       string `json:"line,omitempty"`
	MaxResults int    `json:"maxResults,omitempty"`
}

type errorJSON struct {
	Error string `json:"error"`
}

func (s *Server) handleLines(w http.ResponseWriter, r *http.Request) {
	var out []lineJSON
	for _, l := range s.directory.Lines() {
		out = append(out, lineJSON{
			ID:          string(l.ID),
			Name:        l.Name,
			Description: l.Description,
			Note:        l.Note,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLineStations(w http.ResponseWriter, r *http.Request) {
	line := schedule.Line(mux.Vars(r)["id"])
	if _, ok := s.directory.LineInfoFor(line); !ok {
		writeJSON(w, http.StatusNotFound, errorJSON{Error: "unknown line"})
		return
	}
	writeJSON(w, http.StatusOK, stationsJSON(s.directory.StationsOnLine(line)))
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stationsJSON(s.directory.Stations()))
}

func (s *Server) handleJourneys(w http.ResponseWriter, r *http.Request) {
	var body journeyRequestJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "malformed request body"})
		return
	}
	if body.Origin == "" || body.Destination == "" {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: "origin and destination are required"})
		return
	}

	req, err := s.buildRequest(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: err.Error()})
		return
	}

	itineraries, err := s.engine.PlanJourney(r.Context(), req)
	if err != nil {
		if errors.Is(err, planner.ErrInvalidStation) || errors.Is(err, planner.ErrInvalidRoute) {
			writeJSON(w, http.StatusBadRequest, errorJSON{Error: err.Error()})
			return
		}
		s.logger.Error("planning failed",
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal error"})
		return
	}

	out := make([]itineraryJSON, 0, len(itineraries))
	for _, it := range itineraries {
		origin, _ := s.directory.Resolve(it.Origin)
		destination, _ := s.directory.Resolve(it.Destination)
		peak := planner.IsPeakTime(it.DepartureTime)

		stops := make([]stopJSON, 0, len(it.Stops))
		for _, st := range it.Stops {
			stops = append(stops, stopJSON{Name: st.Name, Arrival: st.Arrival, Departure: st.Departure})
		}

		out = append(out, itineraryJSON{
			ID:                 it.ID,
			DepartureTime:      it.DepartureTime,
			ArrivalTime:        it.ArrivalTime,
			ScheduledDeparture: it.ScheduledDeparture,
			DurationSeconds:    int(it.Duration.Seconds()),
			Origin:             it.Origin,
			Destination:        it.Destination,
			Line:               it.LineName,
			DelayMinutes:       it.DelayMinutes,
			HasDelay:           it.HasDelay,
			Is8Car:             it.Is8Car,
			Fare: fareJSON{
				Amount: planner.EstimateFare(origin, destination, peak),
				Peak:   peak,
			},
			Stops: stops,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFare(w http.ResponseWriter, r *http.Request) {
	origin, err := s.directory.Resolve(r.URL.Query().Get("origin"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: err.Error()})
		return
	}
	destination, err := s.directory.Resolve(r.URL.Query().Get("destination"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorJSON{Error: err.Error()})
		return
	}

	at := s.now()
	if v := r.URL.Query().Get("at"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorJSON{Error: "at must be RFC 3339"})
			return
		}
		at = parsed
	}

	peak := planner.IsPeakTime(at)
	writeJSON(w, http.StatusOK, fareJSON{
		Amount: planner.EstimateFare(origin, destination, peak),
		Peak:   peak,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Status      string `json:"status"`
		UpstreamAPI string `json:"upstreamApi"`
	}{
		Status:      "ok",
		UpstreamAPI: "disabled",
	}
	if s.live != nil {
		resp.UpstreamAPI = "down"
		if s.live.IsLive(r.Context()) {
			resp.UpstreamAPI = "up"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// buildRequest converts the wire request into an engine request, resolving
// clock times into absolute instants. The engine never sees a recurring
// time expression.
func (s *Server) buildRequest(body journeyRequestJSON) (planner.JourneyRequest, error) {
	req := planner.JourneyRequest{
		Origin:      body.Origin,
		Destination: body.Destination,
		Line:        schedule.Line(body.Line),
		MaxResults:  body.MaxResults,
	}

	switch strings.ToLower(body.Constraint) {
	case "", "departafter", "now":
		req.Constraint = planner.DepartAfter

	case "departwindow", "departat":
		req.Constraint = planner.DepartWindow
		target, err := s.resolveTime(body.Time, body.DayType)
		if err != nil {
			return planner.JourneyRequest{}, err
		}
		req.Window = &planner.Window{
			Start:  target.Add(-windowHalf),
			End:    target.Add(windowHalf),
			Target: target,
		}

	case "arrivebefore", "arriveby":
		req.Constraint = planner.ArriveBefore
		deadline, err := s.resolveTime(body.Time, body.DayType)
		if err != nil {
			return planner.JourneyRequest{}, err
		}
		req.Time = deadline

	default:
		return planner.JourneyRequest{}, errors.New("constraint must be departAfter, departWindow or arriveBefore")
	}

	return req, nil
}

// resolveTime turns the wire time field into an absolute instant. An RFC
// 3339 value is used as-is. A bare clock time means "the next day of the
// requested day-type at this time": today if still ahead, otherwise rolled
// forward day by day until the day-type matches.
func (s *Server) resolveTime(value, dayType string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("time is required for this constraint")
	}

	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}

	clock, err := time.Parse("15:04", value)
	if err != nil {
		return time.Time{}, errors.New("time must be RFC 3339 or HH:MM")
	}

	now := s.now()
	t := time.Date(now.Year(), now.Month(), now.Day(), clock.Hour(), clock.Minute(), 0, 0, now.Location())
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}

	switch strings.ToLower(dayType) {
	case "":
		return t, nil
	case string(schedule.DayWeekday), string(schedule.DayWeekend):
		want := schedule.DayType(strings.ToLower(dayType))
		for schedule.DayTypeOf(t) != want {
			t = t.AddDate(0, 0, 1)
		}
		return t, nil
	default:
		return time.Time{}, errors.New("dayType must be weekday or weekend")
	}
}

func stationsJSON(stations []planner.Station) []stationJSON {
	out := make([]stationJSON, 0, len(stations))
	for _, st := range stations {
		out = append(out, stationJSON{
			ID:      st.ID,
			Name:    st.Name,
			Aliases: st.Aliases,
			Lat:     st.Lat,
			Lon:     st.Lon,
			Line:    string(st.Line),
			Order:   st.Order,
		})
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info("handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic handling request",
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
				)
				writeJSON(w, http.StatusInternalServerError, errorJSON{Error: "internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
