package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"imagedup/database"
	"imagedup/scanner"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the fingerprint cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show fingerprint cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := openCache()
		if err != nil {
			return err
		}
		defer cache.Close()

		stats, err := cache.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("Rows:          %d\n", stats.TotalRows)
		fmt.Printf("Unique hashes: %d\n", stats.UniqueHashes)
		return nil
	},
}

var cachePruneFolder string

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop cached fingerprints for files no longer under a folder",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireFolder(cachePruneFolder); err != nil {
			return err
		}

		cache, err := openCache()
		if err != nil {
			return err
		}
		defer cache.Close()

		records, _, err := scanner.ScanFolder(context.Background(), scanner.ScanOptions{
			FolderPath: cachePruneFolder,
		})
		if err != nil {
			return err
		}

		keep := make(map[string]bool, len(records))
		for _, rec := range records {
			keep[rec.Path] = true
		}

		removed, err := cache.Prune(keep)
		if err != nil {
			return err
		}
		fmt.Printf("\nPruned %d stale paths from the cache.\n", removed)
		return nil
	},
}

func openCache() (*database.Cache, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	path, err := cachePath(cfg)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("caching is disabled")
	}
	return database.Open(path)
}

func init() {
	cachePruneCmd.Flags().StringVar(&cachePruneFolder, "folder", "", "folder whose files remain cached (required)")
	cachePruneCmd.MarkFlagRequired("folder")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePruneCmd)
}
