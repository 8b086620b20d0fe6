package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Dhoini/billing-service/internal/config"
	"github.com/Dhoini/billing-service/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Server представляет HTTP сервер
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer создает новый HTTP сервер
func NewServer(router *gin.Engine, cfg config.HTTPConfig, log *logger.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
		log: log,
	}
}

// Start запускает HTTP сервер и блокируется до его остановки
func (s *Server) Start() error {
	s.log.Info("Starting server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown выполняет graceful shutdown сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Server is shutting down...")
	return s.httpServer.Shutdown(ctx)
}
