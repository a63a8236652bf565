// Package cli implements the imagedup command-line interface.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"imagedup/config"
	"imagedup/logging"
	"imagedup/signalhandler"
)

var (
	flagConfig  string
	flagCache   string
	flagNoCache bool
	flagDebug   bool
	flagLogfile string
)

var rootCmd = &cobra.Command{
	Use:   "imagedup",
	Short: "Find duplicate images with perceptual hashing",
	Long: `imagedup scans folders for images and groups duplicates using
perceptual hashes (dhash/ahash), with an optional feature-matching pass
for near-duplicates that hashing alone misses.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		runtime.GOMAXPROCS(signalhandler.GetOptimalProcs())

		if flagDebug || flagLogfile != "" {
			logPath := flagLogfile
			if logPath == "" {
				var err error
				logPath, err = config.DefaultLogPath()
				if err != nil {
					return err
				}
			}
			if err := logging.SetupLogger(logPath); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to set up logging: %v\n", err)
			} else if flagDebug {
				fmt.Printf("Debug mode enabled. Logging to: %s\n", logPath)
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseLogger()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default: ~/.imagedup/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flagCache, "cache", "", "path to fingerprint cache database (default: ~/.imagedup/fingerprints.db)")
	rootCmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false, "disable the fingerprint cache")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagLogfile, "logfile", "", "log file path")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(cacheCmd)
}

// loadConfig resolves the effective configuration from file and defaults.
func loadConfig() (*config.Config, error) {
	path := flagConfig
	if path == "" {
		appPath, err := config.AppPath()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(appPath, config.ConfigFile)
	}
	return config.Load(path)
}

// cachePath resolves the cache database location, honoring --cache and
// the config file. Returns "" when caching is disabled.
func cachePath(cfg *config.Config) (string, error) {
	if flagNoCache {
		return "", nil
	}
	if flagCache != "" {
		return flagCache, nil
	}
	if cfg.CachePath != "" {
		return cfg.CachePath, nil
	}
	return config.DefaultCachePath()
}

// requireFolder validates that the folder argument exists and is a
// directory.
func requireFolder(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("folder does not exist: %s", path)
		}
		return fmt.Errorf("cannot access folder %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}
	return nil
}
