package planner

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"

	"github.com/gautrainza/gautrain/planner/schedule"
)

// stationRecord is one row of a stations CSV, in a GTFS-flavoured layout.
// Aliases are semicolon-separated.
type stationRecord struct {
	ID      string  `csv:"stop_id"`
	Name    string  `csv:"stop_name"`
	Aliases string  `csv:"aliases"`
	Lat     float64 `csv:"stop_lat"`
	Lon     float64 `csv:"stop_lon"`
	Line    string  `csv:"line"`
	Order   int     `csv:"stop_sequence"`
}

// LoadDirectoryCSV builds a directory from a stations CSV file, replacing
// the built-in station table. Deployments use this to correct coordinates
// or add aliases without a rebuild; line metadata stays built in.
func LoadDirectoryCSV(logger *zap.Logger, path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening stations file: %w", err)
	}
	defer f.Close()

	var records []*stationRecord
	if err := gocsv.Unmarshal(f, &records); err != nil {
		return nil, fmt.Errorf("parsing stations file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("stations file %s has no rows", path)
	}

	var stations []Station
	for i, r := range records {
		line := schedule.Line(r.Line)
		if line != schedule.LineNorthSouth && line != schedule.LineAirport {
			return nil, fmt.Errorf("row %d: unknown line %q", i+1, r.Line)
		}
		if r.Name == "" || r.Order < 1 {
			return nil, fmt.Errorf("row %d: station needs a name and a 1-based order", i+1)
		}

		var aliases []string
		for _, a := range strings.Split(r.Aliases, ";") {
			if a = strings.TrimSpace(a); a != "" {
				aliases = append(aliases, a)
			}
		}

		stations = append(stations, Station{
			ID:      r.ID,
			Name:    r.Name,
			Aliases: aliases,
			Lat:     r.Lat,
			Lon:     r.Lon,
			Line:    line,
			Order:   r.Order,
		})
	}

	// North-South records first, order ascending within a line, so lookup
	// precedence matches the built-in table.
	sort.SliceStable(stations, func(i, j int) bool {
		if stations[i].Line != stations[j].Line {
			return stations[i].Line == schedule.LineNorthSouth
		}
		return stations[i].Order < stations[j].Order
	})

	logger.Info("loaded station directory",
		zap.String("path", path),
		zap.Int("stations", len(stations)),
	)

	return newDirectory(stations), nil
}
