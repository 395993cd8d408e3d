// Package gateway exposes the daemon to the browser client: a REST
// surface over the session store, a websocket for streamed chat turns,
// the image-task endpoints, and Prometheus metrics.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/task"
)

// Gateway is the HTTP front of the daemon.
type Gateway struct {
	config    Config
	logger    *slog.Logger
	service   *session.Service
	tasks     *task.Controller
	taskAPI   *task.Client
	toaster   *UndoToaster
	metrics   *Metrics
	server    *http.Server
	startedAt time.Time
}

// New wires a Gateway. taskAPI may be nil when image generation is not
// configured; the task routes then answer 503.
func New(cfg Config, service *session.Service, tasks *task.Controller, taskAPI *task.Client, toaster *UndoToaster, logger *slog.Logger) *Gateway {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		config:  cfg,
		logger:  logger.With("component", "gateway"),
		service: service,
		tasks:   tasks,
		taskAPI: taskAPI,
		toaster: toaster,
		metrics: NewMetrics(),
	}
}

// Start begins serving. It returns once the listener is bound; serving
// continues in the background.
func (g *Gateway) Start() error {
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:        g.config.Bind,
		Handler:     g.buildRouter(),
		ReadTimeout: g.config.ReadTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}

	go func() {
		g.logger.Info("gateway listening", "addr", g.config.Bind)
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down gracefully.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
