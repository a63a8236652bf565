package scanner

import (
	"path/filepath"
	"strings"
)

// IsImageFile checks if a file extension belongs to an image file
func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp":
		return true
	case ".cr2", ".nef", ".arw", ".orf", ".rw2", ".pef", ".dng", ".raw", ".raf", ".cr3", ".nrw", ".srf":
		return true
	case ".tif", ".tiff":
		return true
	default:
		return false
	}
}

// IsRawFormat checks if a file is in RAW format
func IsRawFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedRawFormats() {
		if ext == format {
			return true
		}
	}
	return false
}

// GetFileFormat returns the lowercase file extension without the dot
func GetFileFormat(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// SupportedRawFormats returns a list of supported RAW formats
func SupportedRawFormats() []string {
	return []string{".dng", ".raf", ".arw", ".nef", ".cr2", ".cr3", ".nrw", ".srf", ".orf", ".rw2", ".pef", ".raw"}
}

// ShouldSkipFile reports whether a file is junk that never enters a scan,
// regardless of extension.
func ShouldSkipFile(name string) bool {
	switch name {
	case ".DS_Store", "Thumbs.db", "desktop.ini":
		return true
	}
	return strings.HasPrefix(name, ".")
}

// ShouldSkipDir reports whether a whole directory subtree is excluded from
// the walk.
func ShouldSkipDir(name string) bool {
	switch name {
	case "__pycache__", "node_modules", ".git", ".svn":
		return true
	}
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
