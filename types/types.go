package types

import "time"

// Hash algorithm tags. Feature-based groups are tagged AlgorithmCNN to match
// the reporting vocabulary of the desktop UI.
const (
	AlgorithmDHash = "dhash"
	AlgorithmAHash = "ahash"
	AlgorithmCNN   = "cnn"
)

// Confidence labels for feature-based groups, derived from the group score.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// ImageRecord identifies a candidate image discovered during a directory
// scan. It is created once by the scanner and never mutated afterwards.
type ImageRecord struct {
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
	Extension  string    `json:"extension"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
}

// GroupImage is one member of a duplicate group. Fingerprint carries the hex
// hash for hash-based groups and is empty for feature-based groups, where
// Similarity holds the member's cosine similarity to the group seed instead.
type GroupImage struct {
	Record      ImageRecord `json:"record"`
	Fingerprint string      `json:"fingerprint,omitempty"`
	Similarity  float64     `json:"similarity,omitempty"`
}

// DuplicateGroup is a cluster of at least two images judged duplicates under
// one algorithm. Groups are immutable once returned by a detection run.
type DuplicateGroup struct {
	ID             string       `json:"group_id"`
	Algorithm      string       `json:"algorithm"`
	Score          float64      `json:"similarity_score"`
	Confidence     string       `json:"confidence,omitempty"`
	Representative string       `json:"representative_fingerprint,omitempty"`
	Images         []GroupImage `json:"images"`
}

// Size returns the number of images in the group.
func (g *DuplicateGroup) Size() int {
	return len(g.Images)
}

// TotalBytes returns the combined file size of all group members.
func (g *DuplicateGroup) TotalBytes() int64 {
	var total int64
	for _, img := range g.Images {
		total += img.Record.Size
	}
	return total
}

// ConfidenceLabel maps a feature-based group score to its confidence label.
func ConfidenceLabel(score float64) string {
	switch {
	case score >= 0.95:
		return ConfidenceHigh
	case score >= 0.85:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// RunState tracks the lifecycle of one detection run.
type RunState int

const (
	StateIdle RunState = iota
	StateGeneratingFingerprints
	StateGrouping
	StateCompleted
	StateCancelled
	StateFailed
)

func (s RunState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateGeneratingFingerprints:
		return "generating_fingerprints"
	case StateGrouping:
		return "grouping"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
