package detector

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagedup/types"
)

// writeSolid writes a uniform-color PNG. Note that every uniform image
// produces the all-zero difference hash regardless of color, so tests that
// need a non-matching image use writeGradient instead.
func writeSolid(t *testing.T, path string, c color.NRGBA) {
	t.Helper()
	require.NoError(t, imaging.Save(imaging.New(32, 32, c), path))
}

// writeGradient writes a left-to-right white-to-black ramp, whose
// difference hash is all ones.
func writeGradient(t *testing.T, path string) {
	t.Helper()
	img := imaging.New(32, 32, color.NRGBA{A: 255})
	for x := 0; x < 32; x++ {
		v := uint8(255 - x*8)
		for y := 0; y < 32; y++ {
			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}
	require.NoError(t, imaging.Save(img, path))
}

func record(path string) types.ImageRecord {
	return types.ImageRecord{Path: path, Size: 100, ModifiedAt: time.Now(), Extension: "png"}
}

func fixtureRecords(t *testing.T) []types.ImageRecord {
	t.Helper()
	dir := t.TempDir()
	red := color.NRGBA{R: 200, G: 30, B: 30, A: 255}

	paths := []string{
		filepath.Join(dir, "red1.png"),
		filepath.Join(dir, "red2.png"),
		filepath.Join(dir, "red3.png"),
	}
	for _, p := range paths {
		writeSolid(t, p, red)
	}
	odd := filepath.Join(dir, "ramp.png")
	writeGradient(t, odd)

	records := make([]types.ImageRecord, 0, 4)
	for _, p := range append(paths, odd) {
		records = append(records, record(p))
	}
	return records
}

func TestPipelineGroupsExactDuplicates(t *testing.T) {
	records := fixtureRecords(t)

	p := New(Config{HashAlgorithm: types.AlgorithmDHash, HashThreshold: 0}, nil)
	result, err := p.Run(context.Background(), records, nil)
	require.NoError(t, err)

	assert.Equal(t, types.StateCompleted, result.State)
	require.Len(t, result.Groups, 1)

	g := result.Groups[0]
	assert.Equal(t, "group_0", g.ID)
	assert.Equal(t, types.AlgorithmDHash, g.Algorithm)
	assert.Equal(t, 1.0, g.Score)
	require.Len(t, g.Images, 3)
	for _, img := range g.Images {
		assert.Contains(t, img.Record.Path, "red")
		assert.NotEmpty(t, img.Fingerprint)
	}

	assert.Equal(t, 4, result.Stats.TotalImages)
	assert.Equal(t, 4, result.Stats.HashedImages)
	assert.Equal(t, 1, result.Stats.TotalGroups)
	assert.Equal(t, 3, result.Stats.GroupedImages)
}

func TestPipelineEmptyInput(t *testing.T) {
	p := New(Config{}, nil)
	result, err := p.Run(context.Background(), nil, nil)
	require.NoError(t, err)

	assert.Equal(t, types.StateCompleted, result.State)
	assert.Empty(t, result.Groups)
	assert.Equal(t, 0, result.Stats.TotalImages)
}

func TestPipelineSkipsUnreadableImages(t *testing.T) {
	dir := t.TempDir()
	red := color.NRGBA{R: 200, G: 30, B: 30, A: 255}
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	writeSolid(t, a, red)
	writeSolid(t, b, red)

	records := []types.ImageRecord{
		record(a),
		record(filepath.Join(dir, "missing.png")),
		record(b),
	}

	p := New(Config{HashThreshold: 0}, nil)
	result, err := p.Run(context.Background(), records, nil)
	require.NoError(t, err)

	assert.Equal(t, types.StateCompleted, result.State)
	assert.Equal(t, 2, result.Stats.HashedImages)
	require.Len(t, result.Groups, 1)
	assert.Len(t, result.Groups[0].Images, 2)
}

func TestPipelineFailsWhenNothingHashes(t *testing.T) {
	dir := t.TempDir()
	bogus := filepath.Join(dir, "not-an-image.png")
	require.NoError(t, os.WriteFile(bogus, []byte("plain text"), 0644))

	records := []types.ImageRecord{
		record(bogus),
		record(filepath.Join(dir, "missing.png")),
	}

	p := New(Config{}, nil)
	result, err := p.Run(context.Background(), records, nil)
	require.ErrorIs(t, err, ErrNoFingerprints)
	assert.Equal(t, types.StateFailed, result.State)
}

func TestPipelineCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := fixtureRecords(t)
	p := New(Config{}, nil)
	result, err := p.Run(ctx, records, nil)
	require.NoError(t, err)

	assert.Equal(t, types.StateCancelled, result.State)
	assert.Empty(t, result.Groups)
}

func TestPipelineProgressSequence(t *testing.T) {
	records := fixtureRecords(t)

	var percents []int
	p := New(Config{}, nil)
	_, err := p.Run(context.Background(), records, func(percent int, message string) {
		percents = append(percents, percent)
		assert.NotEmpty(t, message)
	})
	require.NoError(t, err)

	require.NotEmpty(t, percents)
	assert.Equal(t, 0, percents[0])
	assert.Equal(t, 100, percents[len(percents)-1])
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
}

func TestPipelineCollapsesDuplicatePaths(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	writeSolid(t, a, color.NRGBA{R: 10, G: 200, B: 10, A: 255})

	records := []types.ImageRecord{record(a), record(a), record(a)}

	p := New(Config{}, nil)
	result, err := p.Run(context.Background(), records, nil)
	require.NoError(t, err)

	// One distinct image cannot form a group with itself.
	assert.Empty(t, result.Groups)
	assert.Equal(t, 1, result.Stats.HashedImages)
}

func TestPipelineAverageHashAlgorithm(t *testing.T) {
	records := fixtureRecords(t)

	p := New(Config{HashAlgorithm: types.AlgorithmAHash, HashThreshold: 0}, nil)
	result, err := p.Run(context.Background(), records, nil)
	require.NoError(t, err)

	require.Len(t, result.Groups, 1)
	assert.Equal(t, types.AlgorithmAHash, result.Groups[0].Algorithm)
	assert.Len(t, result.Groups[0].Images, 3)
}

func TestPipelineFeatureMatching(t *testing.T) {
	records := fixtureRecords(t)

	p := New(Config{
		HashThreshold:      0,
		UseFeatureMatching: true,
		FeatureThreshold:   0.99,
	}, nil)
	result, err := p.Run(context.Background(), records, nil)
	require.NoError(t, err)

	assert.Equal(t, types.StateCompleted, result.State)
	assert.Equal(t, 4, result.Stats.FeatureImages)

	var cnn *types.DuplicateGroup
	for i := range result.Groups {
		if result.Groups[i].Algorithm == types.AlgorithmCNN {
			cnn = &result.Groups[i]
			break
		}
	}
	require.NotNil(t, cnn, "expected a feature group")

	assert.Equal(t, "cnn_group_0", cnn.ID)
	assert.GreaterOrEqual(t, len(cnn.Images), 3)
	assert.InDelta(t, 1.0, cnn.Score, 0.01)
	assert.Equal(t, types.ConfidenceHigh, cnn.Confidence)
	for _, img := range cnn.Images {
		assert.GreaterOrEqual(t, img.Similarity, 0.99)
	}
}

func TestStatisticsMap(t *testing.T) {
	records := fixtureRecords(t)

	p := New(Config{HashThreshold: 0}, nil)
	result, err := p.Run(context.Background(), records, nil)
	require.NoError(t, err)

	m := result.Stats.Map()
	assert.Equal(t, 4, m["total_images_supplied"])
	assert.Equal(t, 4, m["total_images_hashed"])
	assert.Equal(t, 1, m["total_groups_found"])
	assert.Equal(t, 3, m["total_duplicate_images"])
	assert.Equal(t, types.AlgorithmDHash, m["algorithm_used"])
	assert.Greater(t, m["detection_time_seconds"].(float64), 0.0)
}

func TestPipelineInvalidConfig(t *testing.T) {
	assert.Error(t, Config{HashAlgorithm: "md5"}.Validate())
	assert.Error(t, Config{HashThreshold: 65}.Validate())
	assert.Error(t, Config{HashThreshold: -1}.Validate())
	assert.Error(t, Config{FeatureThreshold: 1.5}.Validate())
	assert.NoError(t, Config{HashAlgorithm: types.AlgorithmAHash, HashThreshold: 10}.Validate())
	assert.NoError(t, Config{}.Validate())
}

// memCache is an in-memory FingerprintCache for exercising the cache path
// without sqlite.
type memCache struct {
	mu      sync.Mutex
	hashes  map[string]string
	lookups int
	stores  int
}

func newMemCache() *memCache {
	return &memCache{hashes: make(map[string]string)}
}

func (c *memCache) key(path, algorithm string) string { return path + "|" + algorithm }

func (c *memCache) LookupHash(path, algorithm string, modTime time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups++
	hash, ok := c.hashes[c.key(path, algorithm)]
	return hash, ok
}

func (c *memCache) StoreHash(path, algorithm string, modTime time.Time, hash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stores++
	c.hashes[c.key(path, algorithm)] = hash
	return nil
}

func (c *memCache) LookupFeatures(path string, modTime time.Time) ([]float64, bool) {
	return nil, false
}

func (c *memCache) StoreFeatures(path string, modTime time.Time, features []float64) error {
	return nil
}

func TestPipelineUsesCache(t *testing.T) {
	records := fixtureRecords(t)
	cache := newMemCache()

	first := New(Config{HashThreshold: 0}, cache)
	_, err := first.Run(context.Background(), records, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, cache.stores)

	storesAfterFirst := cache.stores
	second := New(Config{HashThreshold: 0}, cache)
	result, err := second.Run(context.Background(), records, nil)
	require.NoError(t, err)

	// Every hash served from the cache, nothing recomputed.
	assert.Equal(t, storesAfterFirst, cache.stores)
	require.Len(t, result.Groups, 1)
	assert.Len(t, result.Groups[0].Images, 3)
}

func TestStartAndWait(t *testing.T) {
	records := fixtureRecords(t)

	var completed *Result
	p := New(Config{HashThreshold: 0}, nil)
	run := Start(context.Background(), p, records, Callbacks{
		Completed: func(result *Result) { completed = result },
	})

	result, err := run.Wait()
	require.NoError(t, err)
	require.NotNil(t, completed)
	assert.Equal(t, result, completed)
	assert.Equal(t, types.StateCompleted, run.State())
	require.Len(t, result.Groups, 1)
}

func TestStartErrorCallback(t *testing.T) {
	dir := t.TempDir()
	records := []types.ImageRecord{record(filepath.Join(dir, "missing.png"))}

	var errMsg string
	p := New(Config{}, nil)
	run := Start(context.Background(), p, records, Callbacks{
		Error: func(message string) { errMsg = message },
	})

	_, err := run.Wait()
	require.ErrorIs(t, err, ErrNoFingerprints)
	assert.Equal(t, ErrNoFingerprints.Error(), errMsg)
}

func TestStartCancel(t *testing.T) {
	records := fixtureRecords(t)

	p := New(Config{HashThreshold: 0}, nil)
	run := Start(context.Background(), p, records, Callbacks{})
	run.Cancel()

	result, err := run.Wait()
	require.NoError(t, err)
	// Cancellation racing completion is fine; either terminal state holds.
	assert.Contains(t,
		[]types.RunState{types.StateCancelled, types.StateCompleted},
		result.State)
}
