package ingest

import (
	"fmt"
	"time"

	"github.com/leynos/ghillie/internal/faults"
)

// Defaults for the ingestion run parameters.
const (
	DefaultInitialLookback  = 7 * 24 * time.Hour
	DefaultOverlap          = 5 * time.Minute
	DefaultMaxEventsPerKind = 500
)

// Config bounds one ingestion run. The initial lookback seeds the first
// run's since; the overlap is subtracted from every watermark to absorb
// clock skew (dedupe makes the re-observation safe); the per-kind cap
// is the sole backpressure throttle.
type Config struct {
	InitialLookback  time.Duration
	Overlap          time.Duration
	MaxEventsPerKind int
}

// DefaultConfig returns the stock run parameters.
func DefaultConfig() Config {
	return Config{
		InitialLookback:  DefaultInitialLookback,
		Overlap:          DefaultOverlap,
		MaxEventsPerKind: DefaultMaxEventsPerKind,
	}
}

// Validate rejects non-positive parameters.
func (c Config) Validate() error {
	if c.InitialLookback <= 0 {
		return faults.Wrap(fmt.Errorf("initial lookback must be positive, got %s", c.InitialLookback), faults.CategoryConfig)
	}
	if c.Overlap < 0 {
		return faults.Wrap(fmt.Errorf("overlap must be non-negative, got %s", c.Overlap), faults.CategoryConfig)
	}
	if c.MaxEventsPerKind <= 0 {
		return faults.Wrap(fmt.Errorf("max events per kind must be positive, got %d", c.MaxEventsPerKind), faults.CategoryConfig)
	}
	return nil
}
