package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const topQueriesLimit = 20

// UsageStats godoc
// @Summary Count user questions per day
// @Tags stats
// @Produce json
// @Success 200 {array} historyctrl.DailyUsage
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /stats/usage [get]
func (h *Handler) UsageStats(c *gin.Context) {
	usage, err := h.stats.UsageByDay(c.Request.Context())
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, usage)
}

// TopQueries godoc
// @Summary List the most frequently asked questions
// @Tags stats
// @Produce json
// @Success 200 {array} historyctrl.QueryCount
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /stats/top-queries [get]
func (h *Handler) TopQueries(c *gin.Context) {
	queries, err := h.stats.TopQueries(c.Request.Context(), topQueriesLimit)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, queries)
}
