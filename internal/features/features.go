// Package features implements the Feature Store: a two-tier (hot cache +
// cold relational) feature-retrieval layer serving online point lookups and
// columnar batch exports (spec §4.2).
package features

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/correlator-io/trainhub/internal/storage"
)

const defaultCacheTTL = 300 * time.Second

// cacheClient is the subset of *redis.Client the Store depends on, named so
// tests can substitute an in-memory fake.
type cacheClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Store is the Feature Store (spec §4.2).
type Store struct {
	conn        *storage.Connection
	cache       cacheClient
	cacheTTL    time.Duration
	writeLimit  *rate.Limiter
	logger      *slog.Logger
	featureSets map[string][]string
}

// Option configures a Store at construction.
type Option func(*Store)

// WithCacheTTL overrides the default 300s hot-cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Store) { s.cacheTTL = ttl }
}

// WithFeatureSets supplies the named feature-set projections (loaded from
// YAML by the caller; see featuresets.yaml).
func WithFeatureSets(sets map[string][]string) Option {
	return func(s *Store) { s.featureSets = sets }
}

// New constructs a Store. cache may be nil — cache failures (including a
// wholly absent cache) are always swallowed (spec §4.2, §7).
func New(conn *storage.Connection, cache cacheClient, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		conn:     conn,
		cache:    cache,
		cacheTTL: defaultCacheTTL,
		logger:   logger,
		// A per-process token bucket bounding hot-cache write QPS during
		// bulk backfills, repurposing the rate limiter used elsewhere in
		// this codebase's ancestry for inbound HTTP throttling.
		writeLimit: rate.NewLimiter(rate.Limit(500), 100),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Vector is a (tenant, asset, timestamp) feature lookup result.
type Vector map[string]float64

// cacheKey builds the canonical cache key from (tenant, asset,
// feature-type-label, timestamp bucket), matching
// original_source/feature_store.py::_get_cache_key: the timestamp is
// bucketed to the hour so repeated lookups within the same hour hit cache.
func cacheKey(tenant, asset, label string, ts time.Time) string {
	return fmt.Sprintf("features:%s:%s:%s:%d", tenant, asset, label, ts.Truncate(time.Hour).Unix())
}

// Get returns the feature vector for (tenant, asset, ts), optionally
// projected to names. It attempts the hot cache first; on miss it computes
// from the cold store and writes through. Cache failures never fail the
// request (spec §4.2, §7 "Cache failures are always swallowed").
func (s *Store) Get(ctx context.Context, tenant, asset string, ts time.Time, names []string) (Vector, error) {
	key := cacheKey(tenant, asset, "all", ts)

	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var v Vector
			if jErr := json.Unmarshal([]byte(raw), &v); jErr == nil {
				return project(v, names), nil
			}
		}
	}

	v, err := s.compute(ctx, tenant, asset, ts)
	if err != nil {
		return nil, err
	}

	s.writeThrough(ctx, key, v)

	return project(v, names), nil
}

func (s *Store) writeThrough(ctx context.Context, key string, v Vector) {
	if s.cache == nil {
		return
	}

	if !s.writeLimit.Allow() {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("feature cache encode failed", slog.Any("error", err))

		return
	}

	if err := s.cache.Set(ctx, key, string(data), s.cacheTTL); err != nil {
		s.logger.Warn("feature cache write failed", slog.Any("error", err))
	}
}

// project applies a named feature-set selection to v; unknown names in the
// requested list simply don't appear (the feature-set name → member-list
// fallback-to-all-features lives in ComputeFeatureSet, not here).
func project(v Vector, names []string) Vector {
	if len(names) == 0 {
		return v
	}

	out := make(Vector, len(names))

	for _, n := range names {
		if val, ok := v[n]; ok {
			out[n] = val
		}
	}

	return out
}

// ComputeFeatureSet resolves a named feature-set projection over the full
// computed vector. Unknown feature-set names must not fail the request —
// they fall back to "all features" and log a warning (spec §4.2).
func (s *Store) ComputeFeatureSet(ctx context.Context, tenant, asset, setName string, ts time.Time) (Vector, error) {
	v, err := s.Get(ctx, tenant, asset, ts, nil)
	if err != nil {
		return nil, err
	}

	members, ok := s.featureSets[setName]
	if !ok {
		s.logger.Warn("unknown feature set, falling back to all features", slog.String("feature_set", setName))

		return v, nil
	}

	return project(v, members), nil
}

// compute layers time features (guaranteed floor), continuous aggregates,
// lag features, rolling windows, and weather — any DB error degrades the
// response to whatever tiers completed (spec §4.2).
func (s *Store) compute(ctx context.Context, tenant, asset string, ts time.Time) (Vector, error) {
	v := timeFeatures(ts)

	if s.conn == nil {
		return v, nil
	}

	s.addContinuousAggregates(ctx, tenant, asset, ts, v)
	s.addLagFeatures(ctx, tenant, asset, ts, v)
	s.addRollingFeatures(ctx, tenant, asset, ts, v)
	s.addWeather(ctx, tenant, asset, ts, v)

	return v, nil
}

// timeFeatures computes the guaranteed-floor tier, available even without a
// DB connection (spec §4.2).
func timeFeatures(ts time.Time) Vector {
	isWeekend := 0.0
	if ts.Weekday() == time.Saturday || ts.Weekday() == time.Sunday {
		isWeekend = 1.0
	}

	return Vector{
		"hour_of_day":  float64(ts.Hour()),
		"day_of_week":  float64(ts.Weekday()),
		"day_of_month": float64(ts.Day()),
		"month":        float64(ts.Month()),
		"quarter":      math.Ceil(float64(ts.Month()) / 3),
		"is_weekend":   isWeekend,
	}
}

func (s *Store) addContinuousAggregates(ctx context.Context, tenant, asset string, ts time.Time, v Vector) {
	const hourlyQ = `
		SELECT mean, std, min, max, median, cv FROM hourly_features
		WHERE tenant_id = $1 AND asset_id = $2 AND bucket = date_trunc('hour', $3::timestamptz)`

	s.scanAggregate(ctx, hourlyQ, tenant, asset, ts, "hourly", v)

	const dailyQ = `
		SELECT mean, std, min, max, median, cv FROM daily_features
		WHERE tenant_id = $1 AND asset_id = $2 AND bucket = date_trunc('day', $3::timestamptz)`

	s.scanAggregate(ctx, dailyQ, tenant, asset, ts, "daily", v)
}

func (s *Store) scanAggregate(ctx context.Context, q, tenant, asset string, ts time.Time, label string, v Vector) {
	var mean, std, minV, maxV, median, cv sql.NullFloat64

	err := s.conn.QueryRowContext(ctx, q, tenant, asset, ts).Scan(&mean, &std, &minV, &maxV, &median, &cv)
	if err != nil {
		s.logger.Debug("continuous aggregate degraded", slog.String("tier", label), slog.Any("error", err))

		return
	}

	setIfValid(v, label+"_mean", mean)
	setIfValid(v, label+"_std", std)
	setIfValid(v, label+"_min", minV)
	setIfValid(v, label+"_max", maxV)
	setIfValid(v, label+"_median", median)
	setIfValid(v, label+"_cv", cv)
}

func setIfValid(v Vector, key string, n sql.NullFloat64) {
	if n.Valid {
		v[key] = n.Float64
	}
}

var lagHours = []int{1, 24, 168}

func (s *Store) addLagFeatures(ctx context.Context, tenant, asset string, ts time.Time, v Vector) {
	const q = `SELECT lag_hours, value FROM get_lag_features($1, $2, $3, $4)`

	rows, err := s.conn.QueryContext(ctx, q, tenant, asset, ts, lagHoursArray())
	if err != nil {
		s.logger.Debug("lag features degraded", slog.Any("error", err))

		return
	}
	defer rows.Close()

	for rows.Next() {
		var (
			lag   int
			value sql.NullFloat64
		)

		if err := rows.Scan(&lag, &value); err != nil {
			continue
		}

		if value.Valid {
			v[fmt.Sprintf("lag_%dh", lag)] = value.Float64
		}
	}
}

func lagHoursArray() string {
	// pq encodes int arrays via pq.Array in real call sites; this helper is
	// kept deliberately simple since get_lag_features accepts an
	// INTEGER[] literal built from lagHours at the call site.
	s := "{"
	for i, h := range lagHours {
		if i > 0 {
			s += ","
		}

		s += fmt.Sprintf("%d", h)
	}

	return s + "}"
}

var rollingWindows = []int{24, 168}

func (s *Store) addRollingFeatures(ctx context.Context, tenant, asset string, ts time.Time, v Vector) {
	const q = `SELECT mean, std, min, max FROM get_rolling_features($1, $2, $3, $4)`

	for _, window := range rollingWindows {
		var mean, std, minV, maxV sql.NullFloat64

		err := s.conn.QueryRowContext(ctx, q, tenant, asset, ts, window).Scan(&mean, &std, &minV, &maxV)
		if err != nil {
			s.logger.Debug("rolling features degraded", slog.Int("window_hours", window), slog.Any("error", err))

			continue
		}

		label := fmt.Sprintf("rolling_%dh", window)
		setIfValid(v, label+"_mean", mean)
		setIfValid(v, label+"_std", std)
		setIfValid(v, label+"_min", minV)
		setIfValid(v, label+"_max", maxV)
	}
}

func (s *Store) addWeather(ctx context.Context, tenant, asset string, ts time.Time, v Vector) {
	const q = `
		SELECT temperature_c, humidity_pct, wind_mps FROM weather_features
		WHERE tenant_id = $1 AND asset_id = $2 AND ts <= $3
		ORDER BY ts DESC LIMIT 1`

	var temp, humidity, wind sql.NullFloat64

	err := s.conn.QueryRowContext(ctx, q, tenant, asset, ts).Scan(&temp, &humidity, &wind)
	if err != nil {
		s.logger.Debug("weather feature degraded", slog.Any("error", err))

		return
	}

	setIfValid(v, "weather_temperature_c", temp)
	setIfValid(v, "weather_humidity_pct", humidity)
	setIfValid(v, "weather_wind_mps", wind)
}
