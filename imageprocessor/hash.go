package imageprocessor

import (
	"fmt"
	"image"
	"math"
	"math/big"
	"math/bits"
)

// DefaultHashSize yields 64-bit hashes rendered as 16 hex characters.
const DefaultHashSize = 8

// HammingInf is the sentinel distance for incomparable fingerprints
// (different lengths or malformed hex). It never matches any threshold.
const HammingInf = math.MaxInt

// ComputeDifferenceHash calculates the difference hash (dHash) of an image.
//
// The image is converted to luminance and resized to (size+1) x size so each
// row yields size adjacent-pixel comparisons: bit i is set when the left
// pixel is brighter than its right neighbour, in row-major order. dHash is
// resistant to uniform scaling and recompression while staying sensitive to
// structural change.
func ComputeDifferenceHash(img image.Image, size int) (string, error) {
	if img == nil || size < 1 {
		return "", fmt.Errorf("cannot compute dhash: need an image and a positive size")
	}

	gray := grayResize(img, size+1, size)

	hash := new(big.Int)
	bit := 0
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			if grayAt(gray, col, row) > grayAt(gray, col+1, row) {
				hash.SetBit(hash, bit, 1)
			}
			bit++
		}
	}

	return formatHash(hash, size*size), nil
}

// ComputeAverageHash calculates the average hash (aHash) of an image.
//
// The image is converted to luminance and resized to size x size; bit i is
// set when pixel i is brighter than the arithmetic mean of all pixels.
func ComputeAverageHash(img image.Image, size int) (string, error) {
	if img == nil || size < 1 {
		return "", fmt.Errorf("cannot compute ahash: need an image and a positive size")
	}

	gray := grayResize(img, size, size)

	var sum uint64
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			sum += uint64(grayAt(gray, x, y))
		}
	}
	mean := float64(sum) / float64(size*size)

	hash := new(big.Int)
	bit := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if float64(grayAt(gray, x, y)) > mean {
				hash.SetBit(hash, bit, 1)
			}
			bit++
		}
	}

	return formatHash(hash, size*size), nil
}

// DifferenceHashFile loads the image at path and computes its dHash.
func DifferenceHashFile(path string, size int) (string, error) {
	img, err := LoadImage(path)
	if err != nil {
		return "", err
	}
	return ComputeDifferenceHash(img, size)
}

// AverageHashFile loads the image at path and computes its aHash.
func AverageHashFile(path string, size int) (string, error) {
	img, err := LoadImage(path)
	if err != nil {
		return "", err
	}
	return ComputeAverageHash(img, size)
}

// HammingDistance counts the differing bits between two hex-encoded
// fingerprints. Fingerprints of different lengths (or that fail to parse)
// are incomparable and yield HammingInf rather than an error, so the
// grouping step treats them as "never a match".
func HammingDistance(a, b string) int {
	if len(a) != len(b) {
		return HammingInf
	}

	x, ok := new(big.Int).SetString(a, 16)
	if !ok {
		return HammingInf
	}
	y, ok := new(big.Int).SetString(b, 16)
	if !ok {
		return HammingInf
	}

	x.Xor(x, y)
	distance := 0
	for _, word := range x.Bits() {
		distance += bits.OnesCount(uint(word))
	}
	return distance
}

// formatHash renders a hash of bitCount bits as a fixed-width lowercase hex
// string of bitCount/4 characters.
func formatHash(hash *big.Int, bitCount int) string {
	return fmt.Sprintf("%0*x", bitCount/4, hash)
}
