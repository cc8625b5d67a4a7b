package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"legisbot/src/core/rag"
)

func TestIdentityMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/whoami", identity(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": currentUserID(c)})
	})

	tests := []struct {
		name       string
		userID     string
		wantStatus int
	}{
		{name: "valid user", userID: "42", wantStatus: http.StatusOK},
		{name: "missing header", userID: "", wantStatus: http.StatusUnauthorized},
		{name: "non numeric", userID: "abc", wantStatus: http.StatusUnauthorized},
		{name: "non positive", userID: "0", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.userID != "" {
				req.Header.Set(headerUserID, tt.userID)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/admin", identity(), requireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		name       string
		role       string
		wantStatus int
	}{
		{name: "admin allowed", role: "admin", wantStatus: http.StatusOK},
		{name: "plain user rejected", role: "user", wantStatus: http.StatusForbidden},
		{name: "missing role rejected", role: "", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set(headerUserID, "42")
			if tt.role != "" {
				req.Header.Set(headerUserRole, tt.role)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestSendErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "not found", err: fmt.Errorf("conversation 9: %w", rag.ErrNotFound), wantStatus: http.StatusNotFound},
		{name: "bad input", err: fmt.Errorf("empty question: %w", rag.ErrBadInput), wantStatus: http.StatusBadRequest},
		{name: "service unavailable", err: rag.ErrServiceUnavailable, wantStatus: http.StatusServiceUnavailable},
		{name: "index unavailable", err: rag.ErrIndexUnavailable, wantStatus: http.StatusServiceUnavailable},
		{name: "unexpected", err: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			sendError(c, http.StatusInternalServerError, tt.err)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
