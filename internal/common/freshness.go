// Package common provides shared utilities for Folio
package common

import "time"

// Freshness TTLs for cached market data
const (
	FreshnessQuote  = 15 * time.Minute
	FreshnessFxRate = 1 * time.Hour
)

// CoverageGapTolerance is the maximum calendar-day gap allowed between
// consecutive points of a cached daily series before it stops "covering" a
// range. Absorbs weekends and holiday runs without forcing a re-fetch for
// every non-trading day.
const CoverageGapTolerance = 10

// CursorLookbackDays is how far before a rebuild range daily series are
// preloaded, so as-of lookups at the range start can fill from an earlier
// session.
const CursorLookbackDays = 10

// IsFresh returns true if the given timestamp is within the TTL
func IsFresh(updated time.Time, ttl time.Duration) bool {
	if updated.IsZero() {
		return false
	}
	return time.Since(updated) < ttl
}
