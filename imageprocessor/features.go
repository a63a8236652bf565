package imageprocessor

import (
	"fmt"
	"image"
	"math"
	"math/rand"
)

const (
	// DefaultPatchSize gives feature vectors of length 4*8*8 = 256.
	DefaultPatchSize = 8

	// featureCanvasSize is the canonical resolution images are resized to
	// before patch sampling.
	featureCanvasSize = 64

	// featurePatchCount is how many patches are sampled per image. Random
	// position sampling keeps extraction cheap; the fixed seed keeps the
	// sample set identical for every image and every run.
	featurePatchCount = 100
	featureSampleSeed = 42
)

// ExtractFeatures computes a fixed-length feature vector from an image via
// patch sampling and statistical pooling.
//
// The image is converted to luminance, resized to 64x64 and normalized to
// [0,1]. 100 patches of patchSize x patchSize are sampled at positions drawn
// from a fixed-seed PRNG, then for each of the patchSize^2 pixel offsets the
// mean, standard deviation, minimum and maximum across all patches are
// pooled. The four pooled vectors are concatenated into one vector of length
// 4*patchSize^2. This is a cheap learned-feature proxy, not a neural
// network; the recipe must not be swapped for one.
func ExtractFeatures(img image.Image, patchSize int) ([]float64, error) {
	if img == nil {
		return nil, fmt.Errorf("cannot extract features from a nil image")
	}
	if patchSize < 1 || patchSize > featureCanvasSize {
		return nil, fmt.Errorf("patch size %d out of range [1,%d]", patchSize, featureCanvasSize)
	}

	gray := grayResize(img, featureCanvasSize, featureCanvasSize)

	var pixels [featureCanvasSize][featureCanvasSize]float64
	for y := 0; y < featureCanvasSize; y++ {
		for x := 0; x < featureCanvasSize; x++ {
			pixels[y][x] = float64(grayAt(gray, x, y)) / 255.0
		}
	}

	// Deterministic patch positions: x then y per patch.
	rng := rand.New(rand.NewSource(featureSampleSeed))
	span := featureCanvasSize - patchSize + 1
	area := patchSize * patchSize

	patches := make([][]float64, featurePatchCount)
	for p := range patches {
		px := rng.Intn(span)
		py := rng.Intn(span)

		patch := make([]float64, 0, area)
		for dy := 0; dy < patchSize; dy++ {
			for dx := 0; dx < patchSize; dx++ {
				patch = append(patch, pixels[py+dy][px+dx])
			}
		}
		patches[p] = patch
	}

	// Pool mean, stddev, min and max per pixel offset across all patches.
	means := make([]float64, area)
	stds := make([]float64, area)
	mins := make([]float64, area)
	maxs := make([]float64, area)

	for offset := 0; offset < area; offset++ {
		sum := 0.0
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, patch := range patches {
			v := patch[offset]
			sum += v
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		mean := sum / featurePatchCount

		variance := 0.0
		for _, patch := range patches {
			d := patch[offset] - mean
			variance += d * d
		}

		means[offset] = mean
		stds[offset] = math.Sqrt(variance / featurePatchCount)
		mins[offset] = lo
		maxs[offset] = hi
	}

	features := make([]float64, 0, 4*area)
	features = append(features, means...)
	features = append(features, stds...)
	features = append(features, mins...)
	features = append(features, maxs...)
	return features, nil
}

// ExtractFeaturesFile loads the image at path and extracts its feature
// vector.
func ExtractFeaturesFile(path string, patchSize int) ([]float64, error) {
	img, err := LoadImage(path)
	if err != nil {
		return nil, err
	}
	return ExtractFeatures(img, patchSize)
}

// Similarity computes the cosine similarity of two feature vectors remapped
// from [-1,1] to [0,1]. Degenerate input (mismatched lengths, zero norm)
// yields 0.0 rather than an error, so a bad pair can never be a match.
func Similarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return (cos + 1) / 2
}
