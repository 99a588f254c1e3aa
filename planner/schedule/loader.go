package schedule

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Variant names the schedule document shape a deployment uses.
type Variant string

// The three supported document shapes.
const (
	VariantStatic    Variant = "static"
	VariantFrequency Variant = "frequency"
	VariantTimetable Variant = "timetable"
)

// Parse builds a Source of the given variant from raw document bytes.
func Parse(logger *zap.Logger, variant Variant, data []byte) (Source, error) {
	switch variant {
	case VariantStatic:
		return ParseStatic(logger, data)
	case VariantFrequency:
		return ParseFrequency(logger, data)
	case VariantTimetable:
		return ParseTimetable(logger, data)
	default:
		return nil, fmt.Errorf("unknown schedule variant %q", variant)
	}
}

// Cache lazily loads a schedule document from disk on first use and serves
// it for the process lifetime. Concurrent first-time callers are collapsed
// into a single load. A fixed daily timetable is assumed not to change
// during a session, so there is no invalidation.
//
// Cache itself implements Source, so it can be handed directly to the
// planning engine.
type Cache struct {
	logger  *zap.Logger
	variant Variant
	path    string

	group singleflight.Group

	mu  sync.RWMutex
	src Source
}

// NewCache creates a cache over the document at path.
func NewCache(logger *zap.Logger, variant Variant, path string) *Cache {
	return &Cache{
		logger:  logger,
		variant: variant,
		path:    path,
	}
}

// Source returns the loaded schedule source, reading and parsing the
// document on first call.
func (c *Cache) Source(ctx context.Context) (Source, error) {
	c.mu.RLock()
	src := c.src
	c.mu.RUnlock()
	if src != nil {
		return src, nil
	}

	v, err, _ := c.group.Do(c.path, func() (interface{}, error) {
		data, err := os.ReadFile(c.path)
		if err != nil {
			return nil, fmt.Errorf("reading schedule document: %w", err)
		}

		loaded, err := Parse(c.logger, c.variant, data)
		if err != nil {
			return nil, err
		}

		c.logger.Info("loaded schedule document",
			zap.String("path", c.path),
			zap.String("variant", string(c.variant)),
		)

		c.mu.Lock()
		c.src = loaded
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Source), nil
}

// Trips implements Source, loading the document if required.
func (c *Cache) Trips(ctx context.Context, q Query) ([]Trip, error) {
	src, err := c.Source(ctx)
	if err != nil {
		return nil, err
	}
	return src.Trips(ctx, q)
}
