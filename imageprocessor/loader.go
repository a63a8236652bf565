// Package imageprocessor computes perceptual fingerprints for images:
// difference/average hashes and patch-statistics feature vectors.
package imageprocessor

import (
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"

	// Register decoders for the supported still-image formats. RAW camera
	// formats have no pure-Go decoder; those files fail to decode and are
	// skipped by the caller.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeError reports a per-image failure: the file could not be opened or
// decoded. Callers treat it as "no fingerprint for this image", never as a
// batch failure.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode image %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// LoadImage opens and decodes an image file. Failures are wrapped in a
// DecodeError.
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	img, err := imaging.Decode(f)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return img, nil
}

// grayResize converts an image to single-channel luminance and resizes it to
// width x height with Lanczos resampling. The filter must stay fixed across a
// run so fingerprints are reproducible.
func grayResize(img image.Image, width, height int) *image.NRGBA {
	return imaging.Resize(imaging.Grayscale(img), width, height, imaging.Lanczos)
}

// grayAt reads the luminance of a grayscaled NRGBA pixel. After
// imaging.Grayscale the three color channels are equal, so the red channel
// is the luminance.
func grayAt(img *image.NRGBA, x, y int) uint8 {
	return img.Pix[y*img.Stride+x*4]
}
