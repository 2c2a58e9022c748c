// Package api exposes the pricing engine over HTTP: the calculation
// endpoint plus the admin endpoints that feed rule-cache invalidation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/tpa-platform/pricing-engine/internal/engine"
	"github.com/tpa-platform/pricing-engine/internal/store"
)

// Server is the pricing HTTP server.
type Server struct {
	store  store.Store
	engine *engine.Engine
	router *gin.Engine
	server *http.Server
}

// New builds the server and its routes.
func New(st store.Store, eng *engine.Engine) *Server {
	s := &Server{store: st, engine: eng}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(requestLogger())

	s.router.GET("/health", s.healthHandler)

	api := s.router.Group("/api/v1")
	{
		api.POST("/pricing/calculate", s.calculateHandler)

		api.GET("/rules", s.listRulesHandler)
		api.POST("/rules", s.createRuleHandler)
		api.GET("/rules/:id", s.getRuleHandler)
		api.PUT("/rules/:id", s.updateRuleHandler)
		api.DELETE("/rules/:id", s.deleteRuleHandler)

		api.GET("/point-rates", s.listPointRatesHandler)
		api.POST("/point-rates", s.createPointRateHandler)
		api.DELETE("/point-rates/:id", s.deletePointRateHandler)

		api.GET("/period-discounts", s.listPeriodDiscountsHandler)
		api.POST("/period-discounts", s.createPeriodDiscountHandler)
		api.DELETE("/period-discounts/:id", s.deletePeriodDiscountHandler)
	}
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler { return s.router }

// Run starts the server and blocks until SIGINT/SIGTERM, then shuts down
// gracefully.
func (s *Server) Run(port string) error {
	s.server = &http.Server{
		Addr:         ":" + port,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("port", port).Info("Starting pricing engine server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("Server exited")
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("Request handled")
	}
}

func (s *Server) healthHandler(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
