package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/autocut/autocut-agent/internal/config"
	"github.com/autocut/autocut-agent/internal/export"
	"github.com/autocut/autocut-agent/internal/logging"
	"github.com/autocut/autocut-agent/internal/scene"
	"github.com/autocut/autocut-agent/internal/transcode"
	"github.com/autocut/autocut-agent/internal/video"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "autocut",
	Short: "Scene-cut detection and clip export",
	Long: `autocut finds scene boundaries in a video and exports the scenes you
pick as separate clips.

Run "autocut serve" for the local agent (HTTP API and tray), or use the
analyze and export commands directly from a terminal.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "autocut version %s (commit %s, built %s)\n",
			config.Version, config.GitCommit, config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides "+config.EnvLogLevel)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(timecodeCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadCLI loads configuration and a text logger on stderr for the one-shot commands.
func loadCLI() (*config.EnvConfig, *slog.Logger, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	level := cfg.LogLevel()
	if logLevel != "" {
		level = logLevel
	}
	// The progress bar owns the terminal; keep routine logs out of its way.
	if logLevel == "" && level == config.DefaultLogLevel {
		level = "warn"
	}
	return cfg, logging.NewCLILogger(level, os.Stderr), nil
}

// pipeline is the production wiring of detection and export.
type pipeline struct {
	prober    video.FFprobe
	extractor *scene.Extractor
	driver    *export.Driver
}

func newPipeline(cfg config.Config, logger *slog.Logger) *pipeline {
	prober := video.FFprobe{}
	decoder := video.NewDecoder(video.DecoderConfig{
		DetectWidth: cfg.DetectWidth(),
		Prober:      prober,
		Logger:      logging.WithComponent(logger, "decoder"),
	})
	transcoder := transcode.NewFFmpeg(transcode.DefaultConfig(logging.WithComponent(logger, "transcode")))

	return &pipeline{
		prober:    prober,
		extractor: scene.NewExtractor(decoder, prober, scene.NewAdaptiveDetector, logging.WithComponent(logger, "scene")),
		driver:    export.NewDriver(transcoder, prober, logging.WithComponent(logger, "export")),
	}
}
