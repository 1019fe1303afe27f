package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tessera/internal/cache"
	"tessera/internal/config"
	"tessera/internal/database"
	"tessera/internal/external"
	"tessera/internal/handlers"
	"tessera/internal/logger"
	"tessera/internal/messaging"
	"tessera/internal/middleware"
	"tessera/internal/repository"
	"tessera/internal/search"
	"tessera/internal/service"
)

// Server is the HTTP API server with all its wired dependencies.
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	valkey   *cache.ValkeyClient
	services *service.Services
	repos    *repository.Repositories
}

// NewServer wires the whole API: database, messaging, cache, search and
// the service stack. The cache and the search index are optional, the
// server degrades to DB-only behavior without them.
func NewServer(cfg *config.Config) *Server {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", "error", err)
	}

	valkeyClient, err := cache.NewValkeyClient()
	if err != nil {
		logger.Get().Warn("Valkey unavailable, running without cache", "error", err)
		valkeyClient = nil
	}

	ticketIndex, err := search.NewTicketIndex(config.LoadElasticsearchConfig())
	if err != nil {
		logger.Get().Warn("Elasticsearch unavailable, catalog search falls back to SQL", "error", err)
		ticketIndex = nil
	}

	paymentClient := external.NewPaymentClient(cfg.Payment)

	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, natsClient, paymentClient, ticketIndex, cfg.HoldTimeout)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics())

	server := &Server{
		router:   router,
		config:   cfg,
		db:       db,
		nats:     natsClient,
		valkey:   valkeyClient,
		services: services,
		repos:    repos,
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services, s.valkey)

	api := s.router.Group("/api")
	api.Use(middleware.BasicAuth(s.repos.Users, s.valkey))
	{
		areas := api.Group("/areas")
		{
			areas.POST("", h.CreateArea)
			areas.GET("", h.ListAreas)
			areas.GET("/:id", h.GetArea)
		}

		tickets := api.Group("/tickets")
		{
			tickets.POST("", h.CreateTicket)
			tickets.GET("", h.ListTickets)
			tickets.GET("/:id", h.GetTicket)
			tickets.PUT("/:id", h.UpdateTicket)
			tickets.DELETE("/:id", h.DeleteTicket)
			tickets.PATCH("/:id/status", h.SetTicketStatus)
		}

		registrations := api.Group("/registrations")
		{
			registrations.POST("", h.CreateRegistration)
			registrations.GET("", h.ListRegistrations)
			registrations.GET("/:id", h.GetRegistration)
			registrations.PUT("/:id", h.UpdateRegistration)
			registrations.DELETE("/:id", h.DeleteRegistration)
		}

		api.POST("/checkout", h.CreateCheckout)
	}

	// Gateway-facing endpoints stay outside Basic Auth.
	s.router.POST("/webhooks/payment", h.OnPaymentNotification)
	s.router.GET("/payments/success", h.PaymentSuccess)
	s.router.GET("/payments/fail", h.PaymentFail)

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

func (s *Server) healthCheck(c *gin.Context) {
	dbHealth := s.db.HealthCheck(c.Request.Context())
	status := http.StatusOK
	if dbHealth.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":   dbHealth.Status,
		"service":  "tessera-api",
		"database": dbHealth,
	})
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter exposes the router for tests.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup closes outbound connections.
func (s *Server) Cleanup() error {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			logger.Get().Error("Error closing NATS connection", "error", err)
		}
	}

	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			logger.Get().Error("Error closing Valkey connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			logger.Get().Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
