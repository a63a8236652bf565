package detector

import "time"

// Statistics aggregates the outcome of one detection run. The struct is the
// internal representation; Map renders the string-keyed form handed to the
// presentation collaborator.
type Statistics struct {
	TotalImages      int
	HashedImages     int
	FeatureImages    int
	HashGroups       int
	FeatureGroups    int
	TotalGroups      int
	GroupedImages    int
	Elapsed          time.Duration
	HashAlgorithm    string
	HashThreshold    int
	FeatureMatching  bool
	FeatureThreshold float64
}

// Map returns the statistics as a generic string-keyed map for reporting.
func (s *Statistics) Map() map[string]interface{} {
	return map[string]interface{}{
		"total_images_supplied":    s.TotalImages,
		"total_images_hashed":      s.HashedImages,
		"total_images_featured":    s.FeatureImages,
		"hash_groups_found":        s.HashGroups,
		"feature_groups_found":     s.FeatureGroups,
		"total_groups_found":       s.TotalGroups,
		"total_duplicate_images":   s.GroupedImages,
		"detection_time_seconds":   s.Elapsed.Seconds(),
		"algorithm_used":           s.HashAlgorithm,
		"similarity_threshold":     s.HashThreshold,
		"feature_matching_enabled": s.FeatureMatching,
		"feature_threshold":        s.FeatureThreshold,
	}
}
