package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"legisbot/src/core/chat"
	"legisbot/src/core/rag"
)

type queryRequest struct {
	Query     string `json:"query" binding:"required"`
	HistoryID int64  `json:"history_id"`
}

// Query godoc
// @Summary Answer a question against the ingested legislation
// @Tags chat
// @Accept json
// @Produce json
// @Param body body queryRequest true "Question and optional history"
// @Success 200 {object} chat.Answer
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} chat.Answer
// @Router /chat/query [post]
func (h *Handler) Query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	answer, err := h.chatService.Answer(c.Request.Context(), currentUserID(c), req.Query, req.HistoryID)
	if err != nil {
		// A generation outage still carries citations and a recorded
		// conversation turn, so the degraded answer goes out with the 503.
		if errors.Is(err, rag.ErrServiceUnavailable) && answer != nil {
			answer.Text = chat.UnavailableNotice
			sendJSON(c, http.StatusServiceUnavailable, answer)
			return
		}
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	sendJSON(c, http.StatusOK, answer)
}

// ListHistories godoc
// @Summary List the caller's conversation histories
// @Tags chat
// @Produce json
// @Success 200 {array} conversation.History
// @Failure 401 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /chat/history [get]
func (h *Handler) ListHistories(c *gin.Context) {
	histories, err := h.ledger.ListForUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	sendJSON(c, http.StatusOK, histories)
}
