// Package httpserver is the local development front door. It serves the same
// chat contract as the API Gateway handler over plain HTTP.
package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dining-concierge/handler"
	"dining-concierge/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

type chatBody struct {
	SessionID string `json:"sessionId" binding:"omitempty,max=128"`
	Message   string `json:"message"`
	Utterance string `json:"utterance"`
}

// NewRouter wires the chat route, a health probe and CORS. An empty origin
// list allows every origin.
func NewRouter(chat handler.ChatUseCase, origins []string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	corsCfg := cors.Config{
		AllowMethods:  []string{http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", correlationHeader},
		ExposeHeaders: []string{correlationHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = origins
	}
	router.Use(cors.New(corsCfg))
	router.Use(gin.Recovery())
	router.Use(correlation())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})
	router.POST("/chat", chatHandler(chat))
	return router
}

func chatHandler(chat handler.ChatUseCase) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body chatBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, handler.ErrorResponse{
				Error:   string(usecase.ErrorInvalidInput),
				Message: "Request body must be JSON with a message field.",
			})
			return
		}

		req := handler.ChatRequest{SessionID: body.SessionID, Message: body.Message, Utterance: body.Utterance}
		out, err := chat.Chat(c.Request.Context(), req.Input())
		if err != nil {
			status, payload := handler.ErrorStatus(err)
			slog.ErrorContext(c.Request.Context(), "chat turn failed",
				"correlation_id", c.GetString(correlationHeader), "status", status, "err", err)
			c.JSON(status, payload)
			return
		}
		c.JSON(http.StatusOK, handler.ChatResponse{Response: out.Response, SessionID: out.SessionID})
	}
}

func correlation() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(correlationHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(correlationHeader, id)
		c.Header(correlationHeader, id)
		c.Next()
	}
}
