package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/autocut/autocut-agent/internal/api"
	"github.com/autocut/autocut-agent/internal/config"
	"github.com/autocut/autocut-agent/internal/db"
	"github.com/autocut/autocut-agent/internal/logging"
	"github.com/autocut/autocut-agent/internal/session"
	"github.com/autocut/autocut-agent/internal/tools"
	"github.com/autocut/autocut-agent/internal/ui"
	"github.com/autocut/autocut-agent/internal/video"
)

var serveHeadless bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local agent",
	Long: `Run the agent: a loopback HTTP API for sessions, analysis and export,
plus a system tray showing progress with a Stop task item.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveHeadless, "headless", false, "do not show the system tray (also "+config.EnvHeadless+")")
}

func serve() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	level := cfg.LogLevel()
	if logLevel != "" {
		level = logLevel
	}
	logger := logging.NewLogger(level)
	logger.Info("starting autocut agent", "version", config.Version, "data_dir", logging.SanitizePath(cfg.DataDir()))

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := session.NewRepository(database.Conn())

	deviceID, err := ensureConfigSecret(repo, "device_id", 16)
	if err != nil {
		return fmt.Errorf("failed to ensure device ID: %w", err)
	}

	authToken, err := ensureConfigSecret(repo, "auth_token", 32)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║  AUTOCUT AGENT v%-42s║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Printf("║  Device ID:  %-45s ║\n", deviceID[:16]+"...")
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	doctor := tools.NewCachedDoctor(tools.NewExecDoctor(), logging.WithComponent(logger, "doctor"))
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if caps, err := doctor.Refresh(initCtx); err != nil {
		logger.Warn("initial doctor probe failed", "error", err)
	} else if !caps.OK() {
		logger.Warn("media tools missing, analysis and export will fail",
			"ffmpeg", caps.FFmpeg.Available,
			"ffprobe", caps.FFprobe.Available,
		)
	} else {
		logger.Info("media tools detected", "ffmpeg", caps.FFmpeg.Version, "ffprobe", caps.FFprobe.Version)
	}
	initCancel()

	pipe := newPipeline(cfg, logger)
	svc := session.NewService(repo, pipe.prober, logging.WithComponent(logger, "session"))
	runner := session.NewRunner(svc, repo, pipe.extractor, pipe.driver, logging.WithComponent(logger, "runner"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Service:    svc,
		Runner:     runner,
		Repository: repo,
		Doctor:     doctor,
		Still:      video.Still,
		Defaults: api.Defaults{
			Threshold:   cfg.Threshold(),
			MinSceneLen: cfg.MinSceneLen(),
			Container:   cfg.Container(),
			ClipPrefix:  cfg.ClipPrefix(),
			ExportDir:   cfg.ExportDir(),
		},
		Logger:    logger,
		StartTime: startTime,
		DeviceID:  deviceID,
		Version:   config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})
	var quitOnce sync.Once
	quit := func() { quitOnce.Do(func() { close(quitCh) }) }

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit()
		case <-quitCh:
		}
	}()

	if cfg.Headless() || serveHeadless {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Runner: runner,
			Logger: logging.WithComponent(logger, "tray"),
			CurrentVideo: func() string {
				sess, err := svc.CurrentSession(context.Background())
				if err != nil {
					return ""
				}
				return sess.VideoPath
			},
			OnQuit: quit,
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")
	if runner.Cancel() {
		logger.Info("waiting for running job to stop")
	}
	runner.Wait()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// ensureConfigSecret returns the stored value for key, generating and
// storing a random hex string of n bytes on first use.
func ensureConfigSecret(repo session.Repository, key string, n int) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, key)
	if err == nil && existing != "" {
		return existing, nil
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	value := hex.EncodeToString(buf)

	if err := repo.SetConfig(ctx, key, value); err != nil {
		return "", err
	}
	return value, nil
}
