package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/dhondt-calculator/internal/application"
	"github.com/eugenenazirov/dhondt-calculator/internal/config"
	"github.com/eugenenazirov/dhondt-calculator/internal/logging"
)

var signalNotify = signal.Notify

func main() {
	kingpinApp := kingpin.New("dhondt-server", "D'Hondt seat allocation service - allocates constituency seats from vote distributions")
	overrides := parseFlags(kingpinApp, os.Args[1:])

	cfg, err := config.Load(overrides)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
}

// parseFlags registers the server flags on app and turns the ones that were
// set into configuration overrides.
func parseFlags(app *kingpin.Application, args []string) *config.CLIOverrides {
	configFile := app.Flag("config", "Path to YAML configuration file").String()
	envFile := app.Flag("env-file", "Path to a dotenv file loaded before environment variables are read").String()
	port := app.Flag("port", "HTTP port exposed by the service").String()
	referenceData := app.Flag("reference-data", "Path to a YAML reference data file (embedded data when empty)").String()
	maxSeats := app.Flag("max-seats", "Largest seat count accepted by /api/allocate").Default("0").Int()
	logLevel := app.Flag("log-level", "Log level (debug, info, warn, error)").String()
	rateLimitRPSFlag := app.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := app.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()

	kingpin.MustParse(app.Parse(args))

	overrides := &config.CLIOverrides{
		ConfigFile: *configFile,
		EnvFile:    *envFile,
	}

	if *port != "" {
		overrides.Port = port
	}

	if *referenceData != "" {
		overrides.ReferenceData = referenceData
	}

	if *maxSeats > 0 {
		overrides.MaxSeats = maxSeats
	}

	if *logLevel != "" {
		overrides.LogLevel = logLevel
	}

	if *rateLimitRPSFlag >= 0 {
		overrides.RateLimitRPS = rateLimitRPSFlag
	}

	if *rateLimitBurstFlag >= 0 {
		overrides.RateLimitBurst = rateLimitBurstFlag
	}

	return overrides
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
