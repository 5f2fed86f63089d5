package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gleanerhq/gleaner/pkg/scheduler"
)

// Server is the API server for observing turns and querying the scheduler.
type Server struct {
	config Config
	sched  *scheduler.Scheduler
	logger *zap.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The scheduler is injected to allow sharing with the cycle ticker.
func NewServer(config Config, sched *scheduler.Scheduler, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		sched:  sched,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/agents/:agent/observe", s.handleObserve)
	app.Get("/agents/:agent/state", s.handleAgentState)
	app.Get("/agents/:agent/candidates", s.handleListCandidates)
	app.Post("/agents/:agent/process", s.handleProcess)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
