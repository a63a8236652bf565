package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"imagedup/config"
	"imagedup/database"
	"imagedup/detector"
	"imagedup/scanner"
	"imagedup/signalhandler"
	"imagedup/types"
	"imagedup/utils"
)

var (
	detectFolder     string
	detectAlgorithm  string
	detectThreshold  int
	detectFeatures   bool
	detectFeatThresh float64
	detectWorkers    int
	detectProbe      bool
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Find duplicate images in a folder",
	Long: `Detect scans a folder, fingerprints every image and reports groups of
duplicates. The hash threshold is a Hamming distance: 0 finds exact
perceptual duplicates, higher values admit near-duplicates. With
--features enabled, a second pass groups remaining near-duplicates by
patch-statistics similarity.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireFolder(detectFolder); err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyDetectFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signalhandler.SetupContext()
		defer stop()

		fmt.Printf("Scanning %s...\n", detectFolder)
		records, scanStats, err := scanner.ScanFolder(ctx, scanner.ScanOptions{
			FolderPath:      detectFolder,
			ProbeDimensions: detectProbe,
			DebugMode:       flagDebug,
		})
		if err != nil {
			return err
		}
		fmt.Printf("\nFound %d image files.\n", scanStats.ImageFiles)

		var cache detector.FingerprintCache
		path, err := cachePath(cfg)
		if err != nil {
			return err
		}
		if path != "" {
			dbCache, err := database.Open(path)
			if err != nil {
				fmt.Printf("Warning: cannot open cache, continuing without: %v\n", err)
			} else {
				defer dbCache.Close()
				cache = dbCache
			}
		}

		pipeline := detector.New(detector.Config{
			HashAlgorithm:      cfg.HashAlgorithm,
			HashThreshold:      cfg.HashThreshold,
			UseFeatureMatching: cfg.UseFeatureMatching,
			FeatureThreshold:   cfg.FeatureThreshold,
			Workers:            cfg.Workers,
		}, cache)

		run := detector.Start(ctx, pipeline, records, detector.Callbacks{
			Progress: func(percent int, message string) {
				fmt.Printf("\r[%3d%%] %-45s", percent, message)
			},
		})

		result, err := run.Wait()
		fmt.Println()
		if err != nil {
			return err
		}
		if result.State == types.StateCancelled {
			color.Yellow("Detection cancelled; showing partial results.")
		}

		printGroups(result.Groups)
		printStats(&result.Stats)
		return nil
	},
}

func init() {
	detectCmd.Flags().StringVar(&detectFolder, "folder", "", "folder to scan for duplicates (required)")
	detectCmd.Flags().StringVar(&detectAlgorithm, "algorithm", "", "hash algorithm: dhash or ahash")
	detectCmd.Flags().IntVar(&detectThreshold, "threshold", 0, "max Hamming distance for a match (0-64)")
	detectCmd.Flags().BoolVar(&detectFeatures, "features", false, "enable the feature-matching pass")
	detectCmd.Flags().Float64Var(&detectFeatThresh, "feature-threshold", 0, "min feature similarity in [0,1]")
	detectCmd.Flags().IntVar(&detectWorkers, "workers", 0, "fingerprinting workers (default: number of CPUs)")
	detectCmd.Flags().BoolVar(&detectProbe, "probe-dimensions", false, "read image dimensions via exiftool metadata")
	detectCmd.MarkFlagRequired("folder")
}

// applyDetectFlags overlays explicitly set flags onto the loaded config.
func applyDetectFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("algorithm") {
		cfg.HashAlgorithm = detectAlgorithm
	}
	if cmd.Flags().Changed("threshold") {
		cfg.HashThreshold = detectThreshold
	}
	if cmd.Flags().Changed("features") {
		cfg.UseFeatureMatching = detectFeatures
	}
	if cmd.Flags().Changed("feature-threshold") {
		cfg.FeatureThreshold = detectFeatThresh
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers = detectWorkers
	}
}

func printGroups(groups []types.DuplicateGroup) {
	if len(groups) == 0 {
		color.Green("No duplicate groups found.")
		return
	}

	header := color.New(color.FgCyan, color.Bold)
	for _, g := range groups {
		header.Printf("\n%s  [%s]  score %.3f", g.ID, g.Algorithm, g.Score)
		if g.Confidence != "" {
			fmt.Printf("  confidence: %s", g.Confidence)
		}
		fmt.Println()

		for i, img := range g.Images {
			marker := "  "
			if i == 0 {
				marker = "* " // group seed
			}
			fmt.Printf("  %s%s (%s)", marker, utils.Truncate(img.Record.Path, 70),
				utils.FormatBytes(img.Record.Size))
			if img.Similarity > 0 && img.Similarity < 1 {
				fmt.Printf("  %.3f", img.Similarity)
			}
			fmt.Println()
		}
		fmt.Printf("  %d images, %s total\n", g.Size(), utils.FormatBytes(g.TotalBytes()))
	}
}

func printStats(stats *detector.Statistics) {
	fmt.Println()
	color.New(color.FgGreen, color.Bold).Println("Summary:")
	fmt.Printf("- Images supplied:   %d\n", stats.TotalImages)
	fmt.Printf("- Images hashed:     %d\n", stats.HashedImages)
	if stats.FeatureMatching {
		fmt.Printf("- Images featured:   %d\n", stats.FeatureImages)
	}
	fmt.Printf("- Hash groups:       %d\n", stats.HashGroups)
	if stats.FeatureMatching {
		fmt.Printf("- Feature groups:    %d\n", stats.FeatureGroups)
	}
	fmt.Printf("- Duplicate images:  %d\n", stats.GroupedImages)
	fmt.Printf("- Detection time:    %v\n", stats.Elapsed.Round(time.Millisecond))
	fmt.Printf("- Algorithm:         %s (threshold %d)\n", stats.HashAlgorithm, stats.HashThreshold)
}
