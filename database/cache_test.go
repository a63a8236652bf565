package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	cache, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestCacheHashRoundTrip(t *testing.T) {
	cache := openTestCache(t)
	modTime := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	_, ok := cache.LookupHash("/photos/a.jpg", "dhash", modTime)
	assert.False(t, ok)

	require.NoError(t, cache.StoreHash("/photos/a.jpg", "dhash", modTime, "aabbccddeeff0011"))

	hash, ok := cache.LookupHash("/photos/a.jpg", "dhash", modTime)
	require.True(t, ok)
	assert.Equal(t, "aabbccddeeff0011", hash)
}

func TestCacheMissOnChangedModTime(t *testing.T) {
	cache := openTestCache(t)
	modTime := time.Now()

	require.NoError(t, cache.StoreHash("/photos/a.jpg", "dhash", modTime, "aabbccddeeff0011"))

	_, ok := cache.LookupHash("/photos/a.jpg", "dhash", modTime.Add(time.Second))
	assert.False(t, ok)
}

func TestCacheAlgorithmsAreIndependent(t *testing.T) {
	cache := openTestCache(t)
	modTime := time.Now()

	require.NoError(t, cache.StoreHash("/photos/a.jpg", "dhash", modTime, "1111111111111111"))
	require.NoError(t, cache.StoreHash("/photos/a.jpg", "ahash", modTime, "2222222222222222"))

	hash, ok := cache.LookupHash("/photos/a.jpg", "dhash", modTime)
	require.True(t, ok)
	assert.Equal(t, "1111111111111111", hash)

	hash, ok = cache.LookupHash("/photos/a.jpg", "ahash", modTime)
	require.True(t, ok)
	assert.Equal(t, "2222222222222222", hash)
}

func TestCacheStoreReplacesExistingRow(t *testing.T) {
	cache := openTestCache(t)
	modTime := time.Now()

	require.NoError(t, cache.StoreHash("/photos/a.jpg", "dhash", modTime, "1111111111111111"))
	require.NoError(t, cache.StoreHash("/photos/a.jpg", "dhash", modTime, "ffffffffffffffff"))

	hash, ok := cache.LookupHash("/photos/a.jpg", "dhash", modTime)
	require.True(t, ok)
	assert.Equal(t, "ffffffffffffffff", hash)

	stats, err := cache.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRows)
}

func TestCacheFeaturesRoundTrip(t *testing.T) {
	cache := openTestCache(t)
	modTime := time.Now()
	vec := []float64{0.25, 0.5, 0.75, 1.0, 0.0}

	_, ok := cache.LookupFeatures("/photos/a.jpg", modTime)
	assert.False(t, ok)

	require.NoError(t, cache.StoreFeatures("/photos/a.jpg", modTime, vec))

	got, ok := cache.LookupFeatures("/photos/a.jpg", modTime)
	require.True(t, ok)
	assert.Equal(t, vec, got)
}

func TestCacheStats(t *testing.T) {
	cache := openTestCache(t)
	modTime := time.Now()

	require.NoError(t, cache.StoreHash("/photos/a.jpg", "dhash", modTime, "aaaa"))
	require.NoError(t, cache.StoreHash("/photos/b.jpg", "dhash", modTime, "aaaa"))
	require.NoError(t, cache.StoreHash("/photos/c.jpg", "dhash", modTime, "bbbb"))
	require.NoError(t, cache.StoreFeatures("/photos/a.jpg", modTime, []float64{0.1}))

	stats, err := cache.Stats()
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalRows)
	assert.Equal(t, 2, stats.UniqueHashes)
}

func TestCachePrune(t *testing.T) {
	cache := openTestCache(t)
	modTime := time.Now()

	require.NoError(t, cache.StoreHash("/photos/a.jpg", "dhash", modTime, "aaaa"))
	require.NoError(t, cache.StoreFeatures("/photos/a.jpg", modTime, []float64{0.1}))
	require.NoError(t, cache.StoreHash("/photos/gone.jpg", "dhash", modTime, "bbbb"))

	removed, err := cache.Prune(map[string]bool{"/photos/a.jpg": true})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, ok := cache.LookupHash("/photos/a.jpg", "dhash", modTime)
	assert.True(t, ok)
	_, ok = cache.LookupHash("/photos/gone.jpg", "dhash", modTime)
	assert.False(t, ok)
}

func TestFeatureBlobEncoding(t *testing.T) {
	vec := []float64{-1.5, 0, 42.125}

	decoded, err := decodeFeatures(encodeFeatures(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, decoded)

	_, err = decodeFeatures([]byte{1, 2, 3})
	assert.Error(t, err)
}
