package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"legisbot/src/core/chat"
	"legisbot/src/core/conversation"
	"legisbot/src/core/rag"
	"legisbot/src/infrastructure/integrations/ollama"
	"legisbot/src/infrastructure/job"
	"legisbot/src/storage/minioctrl"
	"legisbot/src/storage/postgres/documentctrl"
	"legisbot/src/storage/postgres/historyctrl"
	"legisbot/src/storage/weaviate"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"

	roleAdmin = "admin"

	contextUserID   = "userID"
	contextUserRole = "userRole"
)

type Handler struct {
	chatService     *chat.Service
	ledger          *conversation.Ledger
	documentService *documentctrl.DocumentService
	minioService    *minioctrl.MinioService
	jobService      *job.JobService
	weaviateSDK     *weaviate.SDK
	ollamaClient    *ollama.Client
	pinger          Pinger
	stats           StatsProvider
}

// Pinger reports whether the relational store answers.
type Pinger interface {
	Ping() error
}

// StatsProvider aggregates usage analytics over the recorded
// conversations. Implemented by historyctrl.HistoryService.
type StatsProvider interface {
	UsageByDay(ctx context.Context) ([]historyctrl.DailyUsage, error)
	TopQueries(ctx context.Context, limit int) ([]historyctrl.QueryCount, error)
}

func NewHandler(
	chatService *chat.Service,
	ledger *conversation.Ledger,
	documentService *documentctrl.DocumentService,
	minioService *minioctrl.MinioService,
	jobService *job.JobService,
	weaviateSDK *weaviate.SDK,
	ollamaClient *ollama.Client,
	pinger Pinger,
	stats StatsProvider,
) *Handler {
	return &Handler{
		chatService:     chatService,
		ledger:          ledger,
		documentService: documentService,
		minioService:    minioService,
		jobService:      jobService,
		weaviateSDK:     weaviateSDK,
		ollamaClient:    ollamaClient,
		pinger:          pinger,
		stats:           stats,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")

	api.GET("/health", h.CheckHealth)

	authed := api.Group("", identity())

	// Chat routes
	authed.POST("/chat/query", h.Query)
	authed.GET("/chat/history", h.ListHistories)
	authed.POST("/chat/upload-context", requireAdmin(), h.UploadDocuments)

	// Document routes
	authed.GET("/documents", requireAdmin(), h.ListDocuments)

	// Usage analytics routes
	authed.GET("/stats/usage", requireAdmin(), h.UsageStats)
	authed.GET("/stats/top-queries", requireAdmin(), h.TopQueries)
}

// identity resolves the caller from gateway-injected headers. Requests
// without a numeric user id are rejected before reaching any handler.
func identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseInt(c.GetHeader(headerUserID), 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Code:    "UNAUTHORIZED",
				Message: "missing or invalid user identity",
			})
			return
		}

		c.Set(contextUserID, userID)
		c.Set(contextUserRole, c.GetHeader(headerUserRole))
		c.Next()
	}
}

func requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(contextUserRole) != roleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Code:    "FORBIDDEN",
				Message: "admin role required",
			})
			return
		}
		c.Next()
	}
}

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(contextUserID)
}

// Common error response structure
type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func sendError(c *gin.Context, status int, err error) {
	var code string
	switch {
	case errors.Is(err, rag.ErrNotFound):
		code = "NOT_FOUND"
		status = http.StatusNotFound
	case errors.Is(err, rag.ErrBadInput):
		code = "BAD_REQUEST"
		status = http.StatusBadRequest
	case errors.Is(err, rag.ErrServiceUnavailable), errors.Is(err, rag.ErrIndexUnavailable):
		code = "SERVICE_UNAVAILABLE"
		status = http.StatusServiceUnavailable
	default:
		if status == http.StatusBadRequest {
			code = "BAD_REQUEST"
		} else {
			code = "INTERNAL_ERROR"
			status = http.StatusInternalServerError
		}
	}

	c.JSON(status, ErrorResponse{
		Code:    code,
		Message: err.Error(),
	})
}

func sendJSON(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}
