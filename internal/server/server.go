package server

import (
	"context"
	"os"

	"github.com/chatbridge/chatbot-backend/internal/config"
	"github.com/chatbridge/chatbot-backend/internal/models"
	"github.com/chatbridge/chatbot-backend/internal/openai"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// chatCompleter is the single upstream operation the chat endpoint needs.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, model string, messages []models.ChatCompletionMessage, temperature float64) (string, error)
}

// Server represents the API server
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	router *gin.Engine

	// newCompleter acquires a configured upstream client. It runs per
	// request so credential changes in the environment take effect
	// without a restart, and tests can swap in a stub.
	newCompleter func() (chatCompleter, error)
}

// New creates a new server instance
func New(cfg *config.Config, logger *zap.Logger) *Server {
	gin.SetMode(cfg.Server.Mode)

	s := &Server{
		cfg:    cfg,
		logger: logger,
		router: gin.New(),
	}
	s.newCompleter = s.defaultCompleter

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Router returns the gin engine
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) defaultCompleter() (chatCompleter, error) {
	return openai.New(s.cfg.OpenAI, os.Getenv("OPENAI_API_KEY"), s.logger)
}

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// Request ID middleware
	s.router.Use(s.requestIDMiddleware())

	// Logger middleware
	s.router.Use(s.loggerMiddleware())

	// CORS middleware
	if s.cfg.Security.EnableCORS {
		s.router.Use(s.corsMiddleware())
	}
}

func (s *Server) setupRoutes() {
	// 根路径返回简单状态
	s.router.GET("/", func(c *gin.Context) {
		c.String(200, "ok")
	})

	// Trailing slashes match the published API surface; gin redirects
	// the bare forms by default.
	s.router.GET("/health/", s.healthCheck)
	s.router.POST("/chat/", s.chat)
}
