package config

import (
	"sync/atomic"
	"time"
)

const defaultGeoLiteUpdateInterval = 7 * 24 * time.Hour

// MinQueryPace is the shortest pause allowed between two API calls.
const MinQueryPace = 500 * time.Millisecond

var (
	queryPace             atomic.Value
	requestTimeout        atomic.Value
	geoLiteUpdateInterval atomic.Value
)

// SetDurations derives the cached intervals from the current config.
func SetDurations() {
	cfg := GetConfig()
	pace := time.Duration(cfg.Query.PaceMs) * time.Millisecond
	if pace < MinQueryPace {
		pace = MinQueryPace
	}
	queryPace.Store(pace)
	requestTimeout.Store(time.Duration(cfg.API.TimeoutMs) * time.Millisecond)
	geoLiteUpdateInterval.Store(calculateGeoLiteUpdateInterval(cfg))
}

func CalculateMillisecondsOfPeriod(timer Timer) uint64 {
	return uint64(timer.Days)*24*60*60*1000 +
		uint64(timer.Hours)*60*60*1000 +
		uint64(timer.Minutes)*60*1000 +
		uint64(timer.Seconds)*1000
}

// CalculateBetweenTime converts timer to a duration of at least one second.
func CalculateBetweenTime(timer Timer) time.Duration {
	intervalMs := CalculateMillisecondsOfPeriod(timer)
	if intervalMs < 1000 {
		intervalMs = 1000
	}
	return time.Duration(intervalMs) * time.Millisecond
}

func calculateGeoLiteUpdateInterval(cfg Config) time.Duration {
	if CalculateMillisecondsOfPeriod(cfg.GeoLite.UpdateTimer) == 0 {
		return defaultGeoLiteUpdateInterval
	}
	return CalculateBetweenTime(cfg.GeoLite.UpdateTimer)
}

// GetQueryPace is the pause between two lookups, never below MinQueryPace.
func GetQueryPace() time.Duration {
	return queryPace.Load().(time.Duration)
}

// GetRequestTimeout is the per request timeout. Zero means none.
func GetRequestTimeout() time.Duration {
	return requestTimeout.Load().(time.Duration)
}

func GetGeoLiteUpdateInterval() time.Duration {
	return geoLiteUpdateInterval.Load().(time.Duration)
}

// GeoLiteUpdateDue reports whether auto update is on and the last update is
// older than the configured interval.
func GeoLiteUpdateDue(now time.Time) bool {
	cfg := GetConfig()
	if !cfg.GeoLite.AutoUpdate || cfg.GeoLite.LicenseKey == "" {
		return false
	}
	last, err := time.Parse(time.RFC3339, cfg.GeoLite.LastUpdatedAt)
	if err != nil {
		return true
	}
	return now.Sub(last) >= GetGeoLiteUpdateInterval()
}
