package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gautrainza/gautrain/planner/schedule"
)

func main() {
	var (
		file      = flag.String("file", "data/gautrain_schedule.json", "schedule document to load")
		variant   = flag.String("variant", string(schedule.VariantStatic), "schedule variant (static, frequency, timetable)")
		line      = flag.String("line", string(schedule.LineNorthSouth), "line to dump (north-south, airport)")
		direction = flag.String("direction", string(schedule.DirectionForward), "direction (forward, reverse)")
		day       = flag.String("day", string(schedule.DayWeekday), "day type (weekday, weekend)")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}

	cache := schedule.NewCache(logger, schedule.Variant(*variant), *file)

	stations := schedule.StationsForLine(schedule.Line(*line))
	if len(stations) < 2 {
		logger.Fatal("unknown line",
			zap.String("line", *line),
		)
	}
	origin, destination := stations[0], stations[len(stations)-1]
	if schedule.Direction(*direction) == schedule.DirectionReverse {
		origin, destination = destination, origin
	}

	trips, err := cache.Trips(context.Background(), schedule.Query{
		Line:        schedule.Line(*line),
		Direction:   schedule.Direction(*direction),
		DayType:     schedule.DayType(*day),
		Origin:      origin,
		Destination: destination,
		Reference:   time.Now(),
	})
	if err != nil {
		logger.Fatal("error loading trips",
			zap.Error(err),
		)
	}

	fmt.Printf("%s %s %s: %d trips\n", *line, *direction, *day, len(trips))
	for _, trip := range trips {
		cars := ""
		if trip.Is8Car {
			cars = " (8-car)"
		}
		fmt.Printf("Trip %s -> %s%s:\n", trip.Departure.Format("15:04"), trip.Arrival.Format("15:04"), cars)
		for _, stop := range trip.Stops {
			fmt.Printf("  %-12s %s\n", stop.Name, stop.Departure.Format("15:04"))
		}
	}
}
