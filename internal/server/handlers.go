package server

import (
	"context"
	"errors"

	"github.com/chatbridge/chatbot-backend/internal/models"
	"github.com/chatbridge/chatbot-backend/internal/openai"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// chatTemperature is fixed; sampling is not caller-tunable.
const chatTemperature = 0.7

// healthCheck handles GET /health/
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{"message": "Server is up!"})
}

// chat handles POST /chat/: validate the body, make one round trip to
// OpenAI, map the outcome to a status code and JSON body.
func (s *Server) chat(c *gin.Context) {
	// Non-object bodies are treated as empty and fail validation below
	var body map[string]interface{}
	if err := c.ShouldBindJSON(&body); err != nil {
		body = map[string]interface{}{}
	}

	req, err := models.ParseChatRequest(body)
	if err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	client, err := s.newCompleter()
	if err != nil {
		s.logger.Error("Failed to acquire OpenAI client", zap.Error(err))
		c.JSON(500, gin.H{"error": completerErrorMessage(err)})
		return
	}

	// The upstream call is deliberately not tied to the request context;
	// once issued it runs to completion or failure.
	answer, err := client.CreateChatCompletion(context.Background(), req.Model, req.Messages(), chatTemperature)
	if err != nil {
		if errors.Is(err, openai.ErrEmptyResponse) {
			s.logger.Warn("OpenAI returned no usable content", zap.String("model", req.Model))
			c.JSON(500, gin.H{"error": "Empty response from OpenAI."})
			return
		}

		s.logger.Error("OpenAI request failed",
			zap.String("model", req.Model),
			zap.Error(err))
		c.JSON(500, gin.H{"error": "Failed to retrieve response from OpenAI: " + err.Error()})
		return
	}

	c.JSON(200, gin.H{"answer": answer})
}

// completerErrorMessage keeps the three construction failures distinct
// for operators: disabled provider, missing credential, anything else.
func completerErrorMessage(err error) string {
	switch {
	case errors.Is(err, openai.ErrUnavailable):
		return "OpenAI client support is not enabled on this server."
	case errors.Is(err, openai.ErrMissingAPIKey):
		return "OPENAI_API_KEY environment variable is not set."
	default:
		return "Failed to initialize language model."
	}
}
