// Package scanner walks folders for image files and turns them into the
// records duplicate detection runs over.
package scanner

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"imagedup/logging"
	"imagedup/types"
)

// ScanOptions defines the options for scanning
type ScanOptions struct {
	FolderPath      string
	ProbeDimensions bool // read width/height via exiftool metadata
	DebugMode       bool
}

// ScanStats contains statistics from a scan operation
type ScanStats struct {
	TotalFiles int
	ImageFiles int
	RawFiles   int
	Skipped    int
	Errors     int
	TotalBytes int64
	Extensions map[string]int
	Elapsed    time.Duration
}

// ScanFolder walks the folder tree and returns a record for every image
// file found, in walk order. Inaccessible entries are counted and skipped;
// cancellation via ctx returns the records collected so far along with
// ctx.Err().
func ScanFolder(ctx context.Context, options ScanOptions) ([]types.ImageRecord, *ScanStats, error) {
	startTime := time.Now()
	stats := &ScanStats{Extensions: make(map[string]int)}

	if options.DebugMode {
		logging.DebugLog("Starting image scan on folder: %s", options.FolderPath)
	}

	// Count first so the tracker can show a denominator.
	stats.TotalFiles = countFilesToProcess(options.FolderPath)

	tracker := NewProgressTracker(stats.TotalFiles)
	defer tracker.Stop()

	var probe *DimensionProbe
	if options.ProbeDimensions {
		var err error
		probe, err = NewDimensionProbe()
		if err != nil {
			logging.LogWarning("exiftool unavailable, scanning without dimensions: %v", err)
			probe = nil
		} else {
			defer probe.Close()
		}
	}

	var records []types.ImageRecord
	err := filepath.WalkDir(options.FolderPath, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			stats.Errors++
			tracker.FileError(path, err)
			return nil
		}
		if d.IsDir() {
			if path != options.FolderPath && ShouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if ShouldSkipFile(d.Name()) || !IsImageFile(path) {
			stats.Skipped++
			tracker.FileSkipped()
			return nil
		}

		info, err := d.Info()
		if err != nil {
			stats.Errors++
			tracker.FileError(path, err)
			return nil
		}

		record := types.ImageRecord{
			Path:       path,
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
			Extension:  GetFileFormat(path),
		}
		if probe != nil {
			record.Width, record.Height = probe.Dimensions(path)
		}

		records = append(records, record)
		stats.ImageFiles++
		stats.TotalBytes += record.Size
		stats.Extensions[record.Extension]++
		isRaw := IsRawFormat(path)
		if isRaw {
			stats.RawFiles++
		}
		tracker.FileFound(path, isRaw)
		logging.LogImageProcessed(path, true, "")
		return nil
	})

	stats.Elapsed = time.Since(startTime)

	if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		return records, stats, err
	}
	if ctx.Err() != nil {
		logging.LogInfo("scan cancelled after %d images", len(records))
		return records, stats, ctx.Err()
	}

	if options.DebugMode {
		logging.DebugLog("Scan completed in %v. Found: %d, Skipped: %d, Errors: %d, RAW files: %d",
			stats.Elapsed, stats.ImageFiles, stats.Skipped, stats.Errors, stats.RawFiles)
	}

	return records, stats, nil
}

// countFilesToProcess counts the image files under the folder so progress
// can be displayed against a total.
func countFilesToProcess(folderPath string) int {
	count := 0
	filepath.WalkDir(folderPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != folderPath && ShouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !ShouldSkipFile(d.Name()) && IsImageFile(path) {
			count++
		}
		return nil
	})
	return count
}

// StatRecord builds an ImageRecord for a single known file path. Used when
// the caller already has explicit paths instead of a folder to walk.
func StatRecord(path string) (types.ImageRecord, error) {
	info, err := os.Stat(path)
	if err != nil {
		return types.ImageRecord{}, err
	}
	return types.ImageRecord{
		Path:       path,
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
		Extension:  GetFileFormat(path),
	}, nil
}
