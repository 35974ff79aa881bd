package api

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/caretide/caretide/internal/config"
	"github.com/caretide/caretide/internal/engine"
	"github.com/caretide/caretide/internal/metrics"
	"github.com/caretide/caretide/internal/store"
)

// Server handles the HTTP API and WebSocket dashboard feed
type Server struct {
	app       *fiber.App
	config    *config.Config
	store     *store.Store
	engine    *engine.Engine
	completer *engine.Completer
	metrics   *metrics.Metrics
	hub       *Hub
	logger    *zap.Logger
}

// New creates a new API server
func New(cfg *config.Config, st *store.Store, eng *engine.Engine, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	})

	s := &Server{
		app:       app,
		config:    cfg,
		store:     st,
		engine:    eng,
		completer: engine.NewCompleter(st, eng.Config(), logger),
		metrics:   metrics.Default(),
		hub:       NewHub(logger),
		logger:    logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Middleware
	s.app.Use(recover.New())
	s.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(s.config.Security.AllowOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	s.app.Use(s.rateLimitMiddleware())
	s.app.Use(s.timingMiddleware())

	// Health check and metrics
	s.app.Get("/api/health", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	api := s.app.Group("/api")

	// Public routes
	api.Post("/auth/login", s.handleLogin)

	// Protected routes
	protected := api.Use(s.authMiddleware())

	// Timeline and dashboard
	protected.Get("/dashboard", s.handleDashboard)
	protected.Get("/timeline", s.handleTimeline)

	// Care items
	protected.Post("/items", s.handleCreateItem)
	protected.Post("/items/:id/complete", s.handleCompleteItem)
	protected.Post("/items/:id/skip", s.handleSkipItem)
	protected.Post("/undo", s.handleUndo)

	// Medications
	protected.Get("/medications", s.handleListMedications)
	protected.Post("/medications", s.handleCreateMedication)
	protected.Get("/medications/adherence", s.handleAdherence)

	// Vitals, notes, mood
	protected.Get("/vitals", s.handleListVitals)
	protected.Post("/vitals", s.handleCreateVital)
	protected.Post("/notes", s.handleCreateNote)
	protected.Post("/mood", s.handleCreateMood)

	// Reports and insights
	protected.Get("/report", s.handleReport)
	protected.Get("/insights", s.handleListInsights)
	protected.Post("/insights/:id/dismiss", s.handleDismissInsight)

	// WebSocket dashboard feed
	s.app.Get("/ws/dashboard", websocket.New(s.hub.Serve))
}

// timingMiddleware records per-request latency under the matched route
// pattern, so path parameters don't explode label cardinality.
func (s *Server) timingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		s.metrics.RecordRequestDuration(route, strconv.Itoa(status), time.Since(start))
		return err
	}
}

// Start starts the server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Address, s.config.Server.Port)
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	s.hub.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"version":   "0.1.0",
		"timestamp": time.Now().Unix(),
	})
}
