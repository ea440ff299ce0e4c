package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/config"
	"github.com/ttf-1234/clms-hrsi-api-advanced-processing/log"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string
	workers    int

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "clmsprep",
	Short: "Acquire and prepare CLMS HR-S&I snow products for reference areas",
	Long: `clmsprep downloads Copernicus Land Monitoring Service high resolution
snow and ice products for the Sentinel-2 tiles covering each reference raster,
then mosaics, reclassifies, resamples and cloud-filters them.

Run "clmsprep run" for the whole chain or one of the stage commands to redo a
single step over an existing catalog.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		if cfg, err = config.Load(configPath); err != nil {
			return
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.LogFormat = logFormat
		}
		if cmd.Flags().Changed("workers") {
			if workers < 1 {
				return config.Error.New("workers must be at least 1, got %d", workers)
			}
			cfg.Workers = workers
		}
		if err = log.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
			return config.Error.New("log settings: %v", err)
		}
		return
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "console", "Log format (console, json)")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 1, "Parallel units per stage")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tilesCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(unzipCmd)
	rootCmd.AddCommand(mosaicCmd)
	rootCmd.AddCommand(reclassifyCmd)
	rootCmd.AddCommand(resampleCmd)
	rootCmd.AddCommand(filterCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
