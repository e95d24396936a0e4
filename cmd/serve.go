package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ignition/internal/config"
	"ignition/internal/container"
	"ignition/internal/runner"
	"ignition/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ignition HTTP server",
	Long:  `Start the HTTP server that accepts container run requests.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setLogLevel(cfg.Server.LogLevel)

	log.Info().Msg("Starting ignition...")
	log.Info().Str("platform", cfg.Server.Platform).Msg("Container platform")
	log.Info().Str("addr", cfg.Server.ListenAddr).Msg("Listen address")

	// The engine handle is created once and shared by every request.
	engine, err := container.CreateEngine(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create container engine")
	}
	defer engine.Close()

	if err := engine.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Container engine not available")
	}
	log.Info().Msg("Container engine connected")

	srv := server.New(cfg, runner.New(engine), engine)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Received signal, shutting down...")
	case err := <-errCh:
		log.Error().Err(err).Msg("Server error, shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shut down cleanly")
	}
	log.Info().Msg("Shutdown complete")
}

func setLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
