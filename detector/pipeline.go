package detector

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"imagedup/imageprocessor"
	"imagedup/logging"
	"imagedup/types"
)

// ErrNoFingerprints is returned when the mandatory hash phase produces no
// fingerprint for any supplied image. It is the only whole-run failure.
var ErrNoFingerprints = errors.New("no valid image hashes could be generated")

// FingerprintCache is consulted before decoding an image and updated with
// fresh fingerprints. Implemented by database.Cache. Lookups that miss or
// fail simply trigger recomputation; the cache can never fail a run.
type FingerprintCache interface {
	LookupHash(path, algorithm string, modTime time.Time) (string, bool)
	StoreHash(path, algorithm string, modTime time.Time, hash string) error
	LookupFeatures(path string, modTime time.Time) ([]float64, bool)
	StoreFeatures(path string, modTime time.Time, features []float64) error
}

// ProgressFunc receives monotonically non-decreasing percentages with a
// human-readable phase label. The terminal value is 100 on success.
type ProgressFunc func(percent int, message string)

// Config selects the algorithms and thresholds for a detection run.
type Config struct {
	HashAlgorithm      string  // "dhash" (default) or "ahash"
	HashThreshold      int     // max Hamming distance, 0..bit width
	UseFeatureMatching bool    // enable the optional feature phase
	FeatureThreshold   float64 // min cosine similarity in [0,1]
	HashSize           int     // hash edge length, default 8 (64-bit hashes)
	PatchSize          int     // feature patch edge length, default 8
	Workers            int     // fingerprinting fan-out, default NumCPU
}

func (c *Config) applyDefaults() {
	if c.HashAlgorithm == "" {
		c.HashAlgorithm = types.AlgorithmDHash
	}
	if c.HashSize < 1 {
		c.HashSize = imageprocessor.DefaultHashSize
	}
	if c.PatchSize < 1 {
		c.PatchSize = imageprocessor.DefaultPatchSize
	}
	if c.FeatureThreshold <= 0 {
		c.FeatureThreshold = 0.9
	}
	if c.Workers < 1 {
		c.Workers = runtime.NumCPU()
	}
}

// Validate rejects configurations the pipeline cannot run.
func (c Config) Validate() error {
	if c.HashAlgorithm != "" && c.HashAlgorithm != types.AlgorithmDHash && c.HashAlgorithm != types.AlgorithmAHash {
		return fmt.Errorf("unknown hash algorithm %q", c.HashAlgorithm)
	}
	size := c.HashSize
	if size == 0 {
		size = imageprocessor.DefaultHashSize
	}
	if c.HashThreshold < 0 || c.HashThreshold > size*size {
		return fmt.Errorf("hash threshold %d out of range [0,%d]", c.HashThreshold, size*size)
	}
	if c.FeatureThreshold < 0 || c.FeatureThreshold > 1 {
		return fmt.Errorf("feature threshold %g out of range [0,1]", c.FeatureThreshold)
	}
	return nil
}

// Result is the outcome of one detection run. On cancellation it carries the
// groups finalized before the cancel and statistics reflecting the partial
// work.
type Result struct {
	Groups []types.DuplicateGroup
	Stats  Statistics
	State  types.RunState
}

// Pipeline runs duplicate detection over a list of image records. A
// Pipeline serves a single run; runs never share mutable state.
type Pipeline struct {
	cfg   Config
	cache FingerprintCache

	mu    sync.Mutex
	state types.RunState
}

// New creates a pipeline for one detection run. cache may be nil.
func New(cfg Config, cache FingerprintCache) *Pipeline {
	cfg.applyDefaults()
	return &Pipeline{cfg: cfg, cache: cache, state: types.StateIdle}
}

// State reports the pipeline's current lifecycle state. Safe to call from
// another goroutine while the run is in flight.
func (p *Pipeline) State() types.RunState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s types.RunState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Run executes the detection pipeline: hash fingerprints and grouping for
// every record, then the optional feature-matching phase. Per-image decode
// failures are logged and skipped; a failed feature phase is logged and
// dropped; only a fully fruitless hash phase fails the run. Cancellation via
// ctx ends the run with whatever groups were already finalized and is
// reported through Result.State, not as an error.
func (p *Pipeline) Run(ctx context.Context, records []types.ImageRecord, progress ProgressFunc) (*Result, error) {
	start := time.Now()
	report := func(percent int, message string) {
		if progress != nil {
			progress(percent, message)
		}
	}
	finish := func(result *Result, state types.RunState) *Result {
		p.setState(state)
		result.State = state
		result.Stats.Elapsed = time.Since(start)
		return result
	}

	result := &Result{
		Stats: Statistics{
			TotalImages:      len(records),
			HashAlgorithm:    p.cfg.HashAlgorithm,
			HashThreshold:    p.cfg.HashThreshold,
			FeatureMatching:  p.cfg.UseFeatureMatching,
			FeatureThreshold: p.cfg.FeatureThreshold,
		},
	}

	report(0, "Initializing duplicate detection...")
	logging.LogInfo("starting duplicate detection for %d images (%s, threshold %d)",
		len(records), p.cfg.HashAlgorithm, p.cfg.HashThreshold)

	if len(records) == 0 {
		report(100, "Detection completed")
		return finish(result, types.StateCompleted), nil
	}

	// Input order drives grouping determinism; duplicates collapse to their
	// first occurrence.
	order := make([]string, 0, len(records))
	recordByPath := make(map[string]types.ImageRecord, len(records))
	for _, rec := range records {
		if _, seen := recordByPath[rec.Path]; seen {
			continue
		}
		order = append(order, rec.Path)
		recordByPath[rec.Path] = rec
	}

	// Phase 1: mandatory hash fingerprints and grouping.
	p.setState(types.StateGeneratingFingerprints)
	report(10, "Generating image hashes...")

	hashes := p.computeHashes(ctx, order, recordByPath)
	result.Stats.HashedImages = len(hashes)

	if ctx.Err() != nil {
		logging.LogInfo("detection cancelled during hash generation")
		return finish(result, types.StateCancelled), nil
	}
	if len(hashes) == 0 {
		logging.LogError("hash phase produced no fingerprints for %d images", len(records))
		return finish(result, types.StateFailed), ErrNoFingerprints
	}

	p.setState(types.StateGrouping)
	report(60, "Comparing images for duplicates...")

	bitWidth := p.cfg.HashSize * p.cfg.HashSize
	hashMatch := func(seed, candidate string) (bool, float64) {
		distance := imageprocessor.HammingDistance(seed, candidate)
		if distance > p.cfg.HashThreshold {
			return false, 0
		}
		return true, 1.0 - float64(distance)/float64(bitWidth)
	}
	hashGroups := groupFingerprints(ctx, order, hashes, "group_", hashMatch)
	result.Stats.HashGroups = len(hashGroups)
	result.Groups = append(result.Groups, p.buildHashGroups(hashGroups, hashes, recordByPath)...)

	if ctx.Err() != nil {
		logging.LogInfo("detection cancelled during grouping; %d groups finalized", len(result.Groups))
		p.tallyGroups(result)
		return finish(result, types.StateCancelled), nil
	}

	// Phase 2: optional feature matching, best-effort.
	if p.cfg.UseFeatureMatching {
		if err := p.runFeaturePhase(ctx, order, recordByPath, result); err != nil {
			logging.LogWarning("feature matching failed, keeping hash results only: %v", err)
		}
		if ctx.Err() != nil {
			logging.LogInfo("detection cancelled during feature matching")
			p.tallyGroups(result)
			return finish(result, types.StateCancelled), nil
		}
	}

	report(90, "Finalizing results...")
	p.tallyGroups(result)

	report(100, "Detection completed")
	logging.LogInfo("duplicate detection completed: %d groups, %d grouped images in %v",
		result.Stats.TotalGroups, result.Stats.GroupedImages, time.Since(start).Round(time.Millisecond))
	return finish(result, types.StateCompleted), nil
}

// computeHashes fans fingerprinting out across a bounded worker pool and
// returns the per-path hashes that could be computed. Grouping later walks
// the input order, so the map never affects determinism.
func (p *Pipeline) computeHashes(ctx context.Context, order []string, records map[string]types.ImageRecord) map[string]string {
	results := make([]string, len(order))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, path := range order {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			rec := records[path]
			if p.cache != nil {
				if hash, ok := p.cache.LookupHash(path, p.cfg.HashAlgorithm, rec.ModifiedAt); ok {
					results[i] = hash
					return nil
				}
			}

			hash, err := p.hashPath(path)
			if err != nil {
				// Per-image failure: skip for this phase only.
				logging.LogWarning("skipping %s for %s: %v", path, p.cfg.HashAlgorithm, err)
				return nil
			}
			results[i] = hash

			if p.cache != nil {
				if err := p.cache.StoreHash(path, p.cfg.HashAlgorithm, rec.ModifiedAt, hash); err != nil {
					logging.DebugLog("cache store failed for %s: %v", path, err)
				}
			}
			return nil
		})
	}
	// The only worker error is context cancellation, which the caller
	// inspects on ctx directly.
	_ = g.Wait()

	hashes := make(map[string]string, len(order))
	for i, path := range order {
		if results[i] != "" {
			hashes[path] = results[i]
		}
	}
	return hashes
}

func (p *Pipeline) hashPath(path string) (string, error) {
	if p.cfg.HashAlgorithm == types.AlgorithmAHash {
		return imageprocessor.AverageHashFile(path, p.cfg.HashSize)
	}
	return imageprocessor.DifferenceHashFile(path, p.cfg.HashSize)
}

func (p *Pipeline) buildHashGroups(groups []fingerprintGroup[string], hashes map[string]string, records map[string]types.ImageRecord) []types.DuplicateGroup {
	out := make([]types.DuplicateGroup, 0, len(groups))
	for _, g := range groups {
		// Exact matches score 1.0; near matches average the seed-relative
		// similarities.
		var sum float64
		for _, m := range g.members {
			sum += m.similarity
		}

		group := types.DuplicateGroup{
			ID:             g.id,
			Algorithm:      p.cfg.HashAlgorithm,
			Score:          sum / float64(len(g.members)),
			Representative: g.representative,
			Images:         make([]types.GroupImage, 0, len(g.members)),
		}
		for _, m := range g.members {
			group.Images = append(group.Images, types.GroupImage{
				Record:      records[m.id],
				Fingerprint: hashes[m.id],
			})
		}
		out = append(out, group)
	}
	return out
}

// runFeaturePhase computes feature vectors and groups them by cosine
// similarity. Any panic is converted into an error so a broken feature pass
// can never abort the whole run.
func (p *Pipeline) runFeaturePhase(ctx context.Context, order []string, records map[string]types.ImageRecord, result *Result) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("feature phase panicked: %v", r)
		}
	}()

	logging.LogInfo("starting feature matching for %d images (threshold %.2f)",
		len(order), p.cfg.FeatureThreshold)

	vectors := p.computeFeatures(ctx, order, records)
	result.Stats.FeatureImages = len(vectors)
	if ctx.Err() != nil {
		return nil
	}

	featureMatch := func(seed, candidate []float64) (bool, float64) {
		similarity := imageprocessor.Similarity(seed, candidate)
		if similarity < p.cfg.FeatureThreshold {
			return false, 0
		}
		return true, similarity
	}
	groups := groupFingerprints(ctx, order, vectors, "cnn_group_", featureMatch)
	result.Stats.FeatureGroups = len(groups)

	for _, g := range groups {
		// The aggregate score is a post-pass over the finalized group: the
		// mean of the seed-to-member similarities recorded while grouping.
		var sum float64
		for _, m := range g.members {
			sum += m.similarity
		}
		score := sum / float64(len(g.members))

		group := types.DuplicateGroup{
			ID:         g.id,
			Algorithm:  types.AlgorithmCNN,
			Score:      score,
			Confidence: types.ConfidenceLabel(score),
			Images:     make([]types.GroupImage, 0, len(g.members)),
		}
		for _, m := range g.members {
			group.Images = append(group.Images, types.GroupImage{
				Record:     records[m.id],
				Similarity: m.similarity,
			})
		}
		result.Groups = append(result.Groups, group)
	}
	return nil
}

func (p *Pipeline) computeFeatures(ctx context.Context, order []string, records map[string]types.ImageRecord) map[string][]float64 {
	results := make([][]float64, len(order))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for i, path := range order {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			rec := records[path]
			if p.cache != nil {
				if vec, ok := p.cache.LookupFeatures(path, rec.ModifiedAt); ok {
					results[i] = vec
					return nil
				}
			}

			vec, err := imageprocessor.ExtractFeaturesFile(path, p.cfg.PatchSize)
			if err != nil {
				logging.LogWarning("skipping %s for feature matching: %v", path, err)
				return nil
			}
			results[i] = vec

			if p.cache != nil {
				if err := p.cache.StoreFeatures(path, rec.ModifiedAt, vec); err != nil {
					logging.DebugLog("cache store failed for %s: %v", path, err)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	vectors := make(map[string][]float64, len(order))
	for i, path := range order {
		if results[i] != nil {
			vectors[path] = results[i]
		}
	}
	return vectors
}

func (p *Pipeline) tallyGroups(result *Result) {
	grouped := 0
	for i := range result.Groups {
		grouped += result.Groups[i].Size()
	}
	result.Stats.TotalGroups = len(result.Groups)
	result.Stats.GroupedImages = grouped
}
