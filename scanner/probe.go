package scanner

import (
	"github.com/barasher/go-exiftool"

	"imagedup/logging"
)

// DimensionProbe reads image dimensions from file metadata without decoding
// pixels. It wraps a long-lived exiftool process; RAW formats in particular
// carry their dimensions in metadata only.
type DimensionProbe struct {
	et *exiftool.Exiftool
}

// NewDimensionProbe starts the exiftool subprocess. Callers that cannot
// tolerate a missing exiftool binary should treat the error as advisory and
// scan without dimensions.
func NewDimensionProbe() (*DimensionProbe, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, err
	}
	return &DimensionProbe{et: et}, nil
}

// Close shuts the exiftool subprocess down.
func (p *DimensionProbe) Close() error {
	return p.et.Close()
}

// Dimensions returns the width and height recorded in the file's metadata,
// or zeros when the probe cannot read them.
func (p *DimensionProbe) Dimensions(path string) (width, height int) {
	metas := p.et.ExtractMetadata(path)
	if len(metas) == 0 {
		return 0, 0
	}
	meta := metas[0]
	if meta.Err != nil {
		logging.DebugLog("dimension probe failed for %s: %v", path, meta.Err)
		return 0, 0
	}

	w, err := meta.GetInt("ImageWidth")
	if err != nil {
		return 0, 0
	}
	h, err := meta.GetInt("ImageHeight")
	if err != nil {
		return 0, 0
	}
	return int(w), int(h)
}
