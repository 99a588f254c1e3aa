// Package gautrainapi is a client for the live Gautrain journey-planning
// API. The planner uses it as a best-effort delay corrector: a failed or
// slow lookup is simply "no delay information".
package gautrainapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/gautrainza/gautrain/planner"
)

const (
	// DefaultBaseURL is the public Gautrain API endpoint.
	DefaultBaseURL = "https://api.gautrain.co.za"

	// gautrainAgencyID scopes journey queries to Gautrain services.
	gautrainAgencyID = "edObkk6o-0WN3tNZBLqKPg"

	isLivePath        = "/user-service/api/0/mobile/isLive/1.0.0"
	journeyCreatePath = "/transport-api/api/0/journey/create"

	// defaultTimeout bounds every outbound call; delay enrichment must not
	// stall a planning call for longer than this.
	defaultTimeout = 3 * time.Second

	// Delay responses are memoized briefly so a burst of planning calls
	// doesn't re-query the live API per trip.
	cacheTTL       = 45 * time.Second
	cacheSweepTick = 5 * time.Minute
)

// Client calls the Gautrain API.
type Client struct {
	logger     *zap.Logger
	baseURL    string
	httpClient *http.Client
	delays     *gocache.Cache
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different API host.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a Gautrain API client.
func NewClient(logger *zap.Logger, opts ...ClientOption) *Client {
	c := &Client{
		logger:  logger,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		delays: gocache.New(cacheTTL, cacheSweepTick),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsLive reports whether the Gautrain API answers its liveness probe.
func (c *Client) IsLive(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+isLivePath, nil)
	if err != nil {
		c.logger.Warn("error creating isLive request",
			zap.Error(err),
		)
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Info("gautrain API unavailable",
			zap.Error(err),
		)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var live bool
	if err := json.NewDecoder(resp.Body).Decode(&live); err != nil {
		return false
	}
	return live
}

// journeyCreateRequest is the journey/create payload. Coordinates are
// lon/lat pairs, origin first.
type journeyCreateRequest struct {
	Geometry       multiPoint   `json:"geometry"`
	Profile        string       `json:"profile"`
	MaxItineraries int          `json:"maxItineraries"`
	TimeType       string       `json:"timeType"`
	Time           string       `json:"time"`
	Only           agencyFilter `json:"only"`
}

type multiPoint struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}

type agencyFilter struct {
	Agencies []string `json:"agencies"`
}

type journeyCreateResponse struct {
	ID          string `json:"id"`
	Itineraries []struct {
		DepartureTime string `json:"departureTime"`
		ArrivalTime   string `json:"arrivalTime"`
		Duration      int    `json:"duration"`
	} `json:"itineraries"`
}

// CheckDelay implements planner.DelayChecker. It asks the live API for the
// journey closest to the scheduled departure and reports the observed
// offset. Any failure, non-200 response, empty result, or timeout yields
// nil; nothing here ever fails a planning call.
func (c *Client) CheckDelay(ctx context.Context, origin, destination planner.Station, scheduled time.Time) *planner.DelayInfo {
	key := fmt.Sprintf("%s|%s|%d", origin.Name, destination.Name, scheduled.Unix())
	if cached, ok := c.delays.Get(key); ok {
		return cached.(*planner.DelayInfo)
	}

	payload := journeyCreateRequest{
		Geometry: multiPoint{
			Type: "MultiPoint",
			Coordinates: [][]float64{
				{origin.Lon, origin.Lat},
				{destination.Lon, destination.Lat},
			},
		},
		Profile:        "ClosestToTime",
		MaxItineraries: 1,
		TimeType:       "DepartAfter",
		Time:           scheduled.Format(time.RFC3339),
		Only:           agencyFilter{Agencies: []string{gautrainAgencyID}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn("error marshaling journey request",
			zap.Error(err),
		)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+journeyCreatePath, bytes.NewReader(body))
	if err != nil {
		c.logger.Warn("error creating journey request",
			zap.Error(err),
		)
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Info("delay check failed",
			zap.String("origin", origin.Name),
			zap.String("destination", destination.Name),
			zap.Error(err),
		)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Info("delay check received non-OK response",
			zap.Int("status_code", resp.StatusCode),
		)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("error reading journey response",
			zap.Error(err),
		)
		return nil
	}

	var journey journeyCreateResponse
	if err := json.Unmarshal(data, &journey); err != nil {
		c.logger.Warn("error unmarshaling journey response",
			zap.Error(err),
		)
		return nil
	}
	if len(journey.Itineraries) == 0 {
		return nil
	}

	observed, err := time.Parse(time.RFC3339, journey.Itineraries[0].DepartureTime)
	if err != nil {
		c.logger.Warn("error parsing observed departure",
			zap.String("departure_time", journey.Itineraries[0].DepartureTime),
			zap.Error(err),
		)
		return nil
	}

	info := &planner.DelayInfo{
		ObservedDeparture: observed,
		Delay:             observed.Sub(scheduled),
	}
	c.delays.Set(key, info, gocache.DefaultExpiration)
	return info
}
