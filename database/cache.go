// Package database persists image fingerprints between runs so repeated
// detections over the same folders skip the decode and resample work.
package database

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"imagedup/logging"

	_ "github.com/mattn/go-sqlite3"
)

// featuresAlgorithm is the algorithm column value under which feature
// vectors are stored. Hash rows use the hash algorithm name instead.
const featuresAlgorithm = "features"

// Cache is a sqlite-backed fingerprint store keyed by (path, algorithm).
// A lookup hits only when the stored modification time still matches the
// file; otherwise the row is considered stale and recomputed. Lookup
// failures are logged and reported as misses, never as errors, so a broken
// cache degrades to recomputation.
type Cache struct {
	db *sql.DB
}

// Open opens (or creates) the cache database at dbPath.
func Open(dbPath string) (*Cache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cannot open cache database %s: %v", dbPath, err)
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS fingerprints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		modified_at TEXT NOT NULL,
		fingerprint TEXT,
		features BLOB,
		updated_at TEXT,
		UNIQUE(path, algorithm)
	);
	CREATE INDEX IF NOT EXISTS idx_fingerprints_path ON fingerprints(path);
	CREATE INDEX IF NOT EXISTS idx_fingerprints_hash ON fingerprints(fingerprint);`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot create fingerprints table: %v", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// LookupHash returns the cached hash for path under the given algorithm,
// if one exists for the same modification time.
func (c *Cache) LookupHash(path, algorithm string, modTime time.Time) (string, bool) {
	var hash string
	err := c.db.QueryRow(
		"SELECT fingerprint FROM fingerprints WHERE path = ? AND algorithm = ? AND modified_at = ?",
		path, algorithm, modTime.UTC().Format(time.RFC3339Nano),
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		logging.DebugLog("cache lookup failed for %s (%s): %v", path, algorithm, err)
		return "", false
	}
	if hash == "" {
		return "", false
	}
	return hash, true
}

// StoreHash saves or replaces the hash for path under the given algorithm.
func (c *Cache) StoreHash(path, algorithm string, modTime time.Time, hash string) error {
	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO fingerprints (path, algorithm, modified_at, fingerprint, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		path, algorithm, modTime.UTC().Format(time.RFC3339Nano), hash,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("cannot store hash for %s: %v", path, err)
	}
	return nil
}

// LookupFeatures returns the cached feature vector for path, if one exists
// for the same modification time.
func (c *Cache) LookupFeatures(path string, modTime time.Time) ([]float64, bool) {
	var blob []byte
	err := c.db.QueryRow(
		"SELECT features FROM fingerprints WHERE path = ? AND algorithm = ? AND modified_at = ?",
		path, featuresAlgorithm, modTime.UTC().Format(time.RFC3339Nano),
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		logging.DebugLog("cache lookup failed for %s (features): %v", path, err)
		return nil, false
	}

	vec, err := decodeFeatures(blob)
	if err != nil {
		logging.DebugLog("discarding corrupt feature row for %s: %v", path, err)
		return nil, false
	}
	return vec, true
}

// StoreFeatures saves or replaces the feature vector for path.
func (c *Cache) StoreFeatures(path string, modTime time.Time, features []float64) error {
	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO fingerprints (path, algorithm, modified_at, features, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		path, featuresAlgorithm, modTime.UTC().Format(time.RFC3339Nano), encodeFeatures(features),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("cannot store features for %s: %v", path, err)
	}
	return nil
}

// CacheStats contains statistics about the cache contents.
type CacheStats struct {
	TotalRows    int
	UniqueHashes int
}

// Stats reports row and distinct-hash counts for the cache.
func (c *Cache) Stats() (*CacheStats, error) {
	var stats CacheStats

	err := c.db.QueryRow("SELECT COUNT(*) FROM fingerprints").Scan(&stats.TotalRows)
	if err != nil {
		return nil, fmt.Errorf("failed to count cache rows: %v", err)
	}

	err = c.db.QueryRow(
		"SELECT COUNT(DISTINCT fingerprint) FROM fingerprints WHERE fingerprint IS NOT NULL AND fingerprint != ''",
	).Scan(&stats.UniqueHashes)
	if err != nil {
		return nil, fmt.Errorf("failed to count unique hashes: %v", err)
	}

	return &stats, nil
}

// Prune removes every cached row for paths not present in keep.
func (c *Cache) Prune(keep map[string]bool) (int, error) {
	rows, err := c.db.Query("SELECT DISTINCT path FROM fingerprints")
	if err != nil {
		return 0, fmt.Errorf("failed to list cached paths: %v", err)
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return 0, err
		}
		if !keep[path] {
			stale = append(stale, path)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range stale {
		if _, err := c.db.Exec("DELETE FROM fingerprints WHERE path = ?", path); err != nil {
			return removed, fmt.Errorf("failed to prune %s: %v", path, err)
		}
		removed++
	}
	return removed, nil
}

func encodeFeatures(features []float64) []byte {
	buf := make([]byte, 8*len(features))
	for i, v := range features {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

func decodeFeatures(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("feature blob length %d is not a multiple of 8", len(blob))
	}
	vec := make([]float64, len(blob)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return vec, nil
}
