package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"imagedup/database"
	"imagedup/imageprocessor"
	"imagedup/logging"
	"imagedup/scanner"
	"imagedup/signalhandler"
	"imagedup/types"
	"imagedup/utils"
)

var (
	scanFolder    string
	scanAlgorithm string
	scanProbe     bool
	scanWorkers   int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Index a folder and warm the fingerprint cache",
	Long: `Scan walks a folder tree, lists every image file found and, unless
caching is disabled, precomputes perceptual hashes into the fingerprint
cache so later detect runs skip the decoding work.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireFolder(scanFolder); err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if scanAlgorithm == "" {
			scanAlgorithm = cfg.HashAlgorithm
		}
		if scanAlgorithm != types.AlgorithmDHash && scanAlgorithm != types.AlgorithmAHash {
			return fmt.Errorf("unknown hash algorithm %q", scanAlgorithm)
		}

		ctx, stop := signalhandler.SetupContext()
		defer stop()

		fmt.Printf("Scanning %s...\n", scanFolder)
		records, stats, err := scanner.ScanFolder(ctx, scanner.ScanOptions{
			FolderPath:      scanFolder,
			ProbeDimensions: scanProbe,
			DebugMode:       flagDebug,
		})
		if err != nil {
			return err
		}

		fmt.Println()
		color.New(color.FgGreen, color.Bold).Println("Scan complete.")
		fmt.Printf("Image files: %d (%d RAW)\n", stats.ImageFiles, stats.RawFiles)
		fmt.Printf("Skipped:     %d\n", stats.Skipped)
		if stats.Errors > 0 {
			color.Yellow("Errors:      %d (see log file)\n", stats.Errors)
		}
		fmt.Printf("Elapsed:     %v\n", stats.Elapsed.Round(time.Millisecond))
		fmt.Printf("Total size:  %s\n", utils.FormatBytes(stats.TotalBytes))

		if len(stats.Extensions) > 0 {
			exts := make([]string, 0, len(stats.Extensions))
			for ext := range stats.Extensions {
				exts = append(exts, ext)
			}
			sort.Strings(exts)
			fmt.Print("Extensions: ")
			for _, ext := range exts {
				fmt.Printf(" %s=%d", ext, stats.Extensions[ext])
			}
			fmt.Println()
		}

		path, err := cachePath(cfg)
		if err != nil {
			return err
		}
		if path == "" || len(records) == 0 {
			return nil
		}

		cache, err := database.Open(path)
		if err != nil {
			return fmt.Errorf("cannot open cache: %w", err)
		}
		defer cache.Close()

		fmt.Printf("\nWarming fingerprint cache (%s)...\n", scanAlgorithm)
		hashed, err := warmCache(ctx, cache, records, scanAlgorithm, scanWorkers)
		if err != nil {
			return err
		}
		fmt.Printf("Cached %d/%d fingerprints.\n", hashed, len(records))

		if cacheStats, err := cache.Stats(); err == nil {
			fmt.Printf("Cache now holds %d rows (%d unique hashes).\n",
				cacheStats.TotalRows, cacheStats.UniqueHashes)
		}
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanFolder, "folder", "", "folder to scan (required)")
	scanCmd.Flags().StringVar(&scanAlgorithm, "algorithm", "", "hash algorithm to precompute: dhash or ahash")
	scanCmd.Flags().BoolVar(&scanProbe, "probe-dimensions", false, "read image dimensions via exiftool metadata")
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 0, "fingerprinting workers (default: 3/4 of CPUs)")
	scanCmd.MarkFlagRequired("folder")
}

// warmCache computes and stores hashes for every record not already cached.
// Returns the number of records with a usable fingerprint afterwards.
func warmCache(ctx context.Context, cache *database.Cache, records []types.ImageRecord, algorithm string, workers int) (int, error) {
	if workers < 1 {
		workers = signalhandler.GetOptimalProcs()
	}

	hashed := make([]bool, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, rec := range records {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if _, ok := cache.LookupHash(rec.Path, algorithm, rec.ModifiedAt); ok {
				hashed[i] = true
				return nil
			}

			var hash string
			var err error
			if algorithm == types.AlgorithmAHash {
				hash, err = imageprocessor.AverageHashFile(rec.Path, imageprocessor.DefaultHashSize)
			} else {
				hash, err = imageprocessor.DifferenceHashFile(rec.Path, imageprocessor.DefaultHashSize)
			}
			if err != nil {
				logging.LogWarning("cannot fingerprint %s: %v", rec.Path, err)
				return nil
			}

			if err := cache.StoreHash(rec.Path, algorithm, rec.ModifiedAt, hash); err != nil {
				logging.DebugLog("cache store failed for %s: %v", rec.Path, err)
				return nil
			}
			hashed[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	count := 0
	for _, ok := range hashed {
		if ok {
			count++
		}
	}
	return count, nil
}
