package features

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCache is an in-memory cacheClient, substituted for *RedisCache so Get
// can be tested without a running Redis instance.
type fakeCache struct {
	values map[string]string
	setErr error
	getErr error
	sets   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]string)}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	if c.getErr != nil {
		return "", c.getErr
	}

	v, ok := c.values[key]
	if !ok {
		return "", assert.AnError
	}

	return v, nil
}

func (c *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.sets++

	if c.setErr != nil {
		return c.setErr
	}

	c.values[key] = value

	return nil
}

// fakeObjectStore is an in-memory exportObjectStore, recording every Put.
type fakeObjectStore struct {
	puts map[string][]byte
	err  error
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{puts: make(map[string][]byte)}
}

func (f *fakeObjectStore) Put(_ context.Context, key string, data []byte, _ string) error {
	if f.err != nil {
		return f.err
	}

	f.puts[key] = data

	return nil
}

func TestCacheKey_BucketsTimestampToTheHour(t *testing.T) {
	a := time.Date(2026, 7, 30, 10, 15, 0, 0, time.UTC)
	b := time.Date(2026, 7, 30, 10, 45, 0, 0, time.UTC)

	assert.Equal(t, cacheKey("acme", "asset-1", "all", a), cacheKey("acme", "asset-1", "all", b))
}

func TestTimeFeatures_FlagsWeekend(t *testing.T) {
	saturday := time.Date(2026, 8, 1, 14, 0, 0, 0, time.UTC)
	monday := time.Date(2026, 8, 3, 14, 0, 0, 0, time.UTC)

	satFeatures := timeFeatures(saturday)
	monFeatures := timeFeatures(monday)

	assert.Equal(t, 1.0, satFeatures["is_weekend"])
	assert.Equal(t, 0.0, monFeatures["is_weekend"])
	assert.Equal(t, 14.0, satFeatures["hour_of_day"])
	assert.Equal(t, 3.0, satFeatures["quarter"])
}

func TestProject_EmptyNamesReturnsFullVector(t *testing.T) {
	v := Vector{"a": 1, "b": 2}

	assert.Equal(t, v, project(v, nil))
}

func TestProject_FiltersToRequestedNamesOnly(t *testing.T) {
	v := Vector{"a": 1, "b": 2, "c": 3}

	got := project(v, []string{"a", "c", "missing"})

	assert.Equal(t, Vector{"a": 1, "c": 3}, got)
}

func TestGet_CacheHitSkipsComputeAndWriteThrough(t *testing.T) {
	cache := newFakeCache()
	ts := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)
	key := cacheKey("acme", "asset-1", "all", ts)

	cached, err := json.Marshal(Vector{"hour_of_day": 99})
	require.NoError(t, err)
	cache.values[key] = string(cached)

	store := New(nil, cache, nil)

	v, err := store.Get(context.Background(), "acme", "asset-1", ts, nil)

	require.NoError(t, err)
	assert.Equal(t, Vector{"hour_of_day": 99}, v)
	assert.Equal(t, 0, cache.sets)
}

func TestGet_CacheMissComputesAndWritesThrough(t *testing.T) {
	cache := newFakeCache()
	ts := time.Date(2026, 7, 30, 9, 0, 0, 0, time.UTC)

	store := New(nil, cache, nil)

	v, err := store.Get(context.Background(), "acme", "asset-1", ts, nil)

	require.NoError(t, err)
	assert.Equal(t, 9.0, v["hour_of_day"])
	assert.Equal(t, 1, cache.sets)
}

func TestGet_NilCacheNeverFailsTheRequest(t *testing.T) {
	store := New(nil, nil, nil)

	v, err := store.Get(context.Background(), "acme", "asset-1", time.Now(), nil)

	require.NoError(t, err)
	assert.NotEmpty(t, v)
}

func TestComputeFeatureSet_UnknownNameFallsBackToAllFeatures(t *testing.T) {
	store := New(nil, nil, nil, WithFeatureSets(map[string][]string{"known": {"hour_of_day"}}))

	v, err := store.ComputeFeatureSet(context.Background(), "acme", "asset-1", "unknown-set", time.Now())

	require.NoError(t, err)
	assert.Contains(t, v, "day_of_week")
}

func TestComputeFeatureSet_KnownNameProjectsToMembers(t *testing.T) {
	store := New(nil, nil, nil, WithFeatureSets(map[string][]string{"basic": {"hour_of_day", "is_weekend"}}))

	v, err := store.ComputeFeatureSet(context.Background(), "acme", "asset-1", "basic", time.Now())

	require.NoError(t, err)
	assert.Len(t, v, 2)
	assert.Contains(t, v, "hour_of_day")
	assert.Contains(t, v, "is_weekend")
}

func TestLoadFeatureSets_ParsesEmbeddedYAML(t *testing.T) {
	sets, err := LoadFeatureSets()

	require.NoError(t, err)
	assert.Contains(t, sets, "forecast_basic")
	assert.Contains(t, sets, "forecast_full")
	assert.Contains(t, sets, "anomaly_detection")
	assert.Contains(t, sets["forecast_basic"], "hour_of_day")
}

// Export now drives its row set off the forecast_basic_features /
// anomaly_detection_features materialized views (spec §4.2), so exercising
// the success/no_data paths needs a live *storage.Connection and belongs in
// the testcontainers-backed integration tier alongside the rest of the
// query-layer coverage. The unit tier below covers the parts Export can
// reach without a database: feature-set resolution and the conn==nil
// short-circuit.

func TestExport_UnknownFeatureSetFails(t *testing.T) {
	store := New(nil, nil, nil)
	objStore := newFakeObjectStore()

	start := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	result, err := store.Export(context.Background(), objStore, "acme", "not-a-feature-set", []string{"asset-1"}, start, end)

	require.NoError(t, err)
	assert.Equal(t, ExportFailed, result.Status)
	assert.Contains(t, result.Error, "unknown feature set")
	assert.Empty(t, objStore.puts)
}

func TestExport_NilConnectionFails(t *testing.T) {
	store := New(nil, nil, nil)
	objStore := newFakeObjectStore()

	start := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	result, err := store.Export(context.Background(), objStore, "acme", "forecast_basic", []string{"asset-1"}, start, end)

	require.NoError(t, err)
	assert.Equal(t, ExportFailed, result.Status)
	assert.Contains(t, result.Error, "database connection")
	assert.Empty(t, objStore.puts)
}

func TestLagHoursArray_FormatsAsPostgresIntArrayLiteral(t *testing.T) {
	assert.Equal(t, "{1,24,168}", lagHoursArray())
}
