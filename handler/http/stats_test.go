package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"legisbot/src/storage/postgres/historyctrl"
)

type fakeStats struct {
	usage    []historyctrl.DailyUsage
	queries  []historyctrl.QueryCount
	limit    int
	usageErr error
	queryErr error
}

func (s *fakeStats) UsageByDay(ctx context.Context) ([]historyctrl.DailyUsage, error) {
	return s.usage, s.usageErr
}

func (s *fakeStats) TopQueries(ctx context.Context, limit int) ([]historyctrl.QueryCount, error) {
	s.limit = limit
	return s.queries, s.queryErr
}

func newStatsRouter(stats *fakeStats) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &Handler{stats: stats}
	r := gin.New()
	r.GET("/stats/usage", identity(), requireAdmin(), h.UsageStats)
	r.GET("/stats/top-queries", identity(), requireAdmin(), h.TopQueries)
	return r
}

func adminGet(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(headerUserID, "42")
	req.Header.Set(headerUserRole, roleAdmin)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUsageStats(t *testing.T) {
	stats := &fakeStats{
		usage: []historyctrl.DailyUsage{
			{Day: "2026-08-30", Count: 12},
			{Day: "2026-08-29", Count: 3},
		},
	}
	r := newStatsRouter(stats)

	w := adminGet(r, "/stats/usage")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var got []historyctrl.DailyUsage
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("response does not decode: %v", err)
	}
	if len(got) != 2 || got[0].Day != "2026-08-30" || got[0].Count != 12 {
		t.Errorf("usage = %v, want %v", got, stats.usage)
	}
}

func TestTopQueries(t *testing.T) {
	stats := &fakeStats{
		queries: []historyctrl.QueryCount{
			{Content: "¿Qué dice el artículo 5?", Count: 7},
		},
	}
	r := newStatsRouter(stats)

	w := adminGet(r, "/stats/top-queries")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if stats.limit != topQueriesLimit {
		t.Errorf("limit = %d, want %d", stats.limit, topQueriesLimit)
	}

	var got []historyctrl.QueryCount
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("response does not decode: %v", err)
	}
	if len(got) != 1 || got[0].Count != 7 {
		t.Errorf("queries = %v, want %v", got, stats.queries)
	}
}

func TestStatsRequireAdmin(t *testing.T) {
	r := newStatsRouter(&fakeStats{})

	for _, path := range []string{"/stats/usage", "/stats/top-queries"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set(headerUserID, "42")
		req.Header.Set(headerUserRole, "user")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("GET %s status = %d, want %d", path, w.Code, http.StatusForbidden)
		}
	}
}

func TestUsageStatsFailure(t *testing.T) {
	r := newStatsRouter(&fakeStats{usageErr: fmt.Errorf("connection refused")})

	w := adminGet(r, "/stats/usage")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}
