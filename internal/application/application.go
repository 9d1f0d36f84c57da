package application

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/dhondt-calculator/internal/api"
	"github.com/eugenenazirov/dhondt-calculator/internal/config"
	"github.com/eugenenazirov/dhondt-calculator/internal/metrics"
	"github.com/eugenenazirov/dhondt-calculator/internal/registry"
)

const index = `D'Hondt seat allocation service

GET  /api/health
GET  /api/parties
GET  /api/constituencies
GET  /api/constituencies/{name}
GET  /api/baseline
PUT  /api/baseline
POST /api/allocate
POST /api/simulate
`

// App encapsulates the application dependencies and HTTP server.
type App struct {
	registry registry.Registry
	metrics  *metrics.Manager
	handler  *api.Handler
	router   http.Handler
	logger   *zap.Logger
	server   *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	reg, err := LoadRegistry(cfg.ReferenceDataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}
	logger.Info("reference data loaded",
		zap.String("source", referenceSource(cfg.ReferenceDataPath)),
		zap.Int("parties", len(reg.Parties())),
		zap.Int("constituencies", len(reg.Constituencies())),
	)

	var manager *metrics.Manager
	if cfg.EnableMetrics {
		manager = metrics.NewManager()
	}

	handler := api.NewHandler(reg,
		api.WithMaxSeats(cfg.MaxSeats),
		api.WithMetrics(manager),
	)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithRequestMetrics(manager),
	)

	var metricsHandler http.Handler
	if manager != nil {
		metricsHandler = manager.Handler()
	}

	return &App{
		registry: reg,
		metrics:  manager,
		handler:  handler,
		router:   apiRouter,
		logger:   logger,
		server:   NewServer(cfg, BuildRootHandler(apiRouter, metricsHandler)),
	}, nil
}

// LoadRegistry returns the embedded reference data when path is empty and
// otherwise reads path, resolving relative paths against the project tree.
func LoadRegistry(path string) (*registry.MemoryRegistry, error) {
	if path == "" {
		return registry.NewMemoryRegistry(), nil
	}
	resolved, err := resolveProjectPath(path)
	if err != nil {
		return nil, err
	}
	return registry.LoadFile(resolved)
}

// BuildRootHandler mounts the API under /api/ and, when metricsHandler is
// non-nil, the Prometheus exposition under /metrics.
func BuildRootHandler(apiHandler, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(index))
	}))
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

func referenceSource(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}

// resolveProjectPath returns path itself when it is absolute or exists
// relative to the working directory, and otherwise walks up the directory
// tree looking for it.
func resolveProjectPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, path)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("unable to locate %s", path)
}
