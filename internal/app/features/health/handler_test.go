package health_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/stratachat/internal/app/features/health"
	"github.com/dalemusser/stratachat/internal/app/realtime/presence"
	"github.com/dalemusser/stratachat/internal/testutil"
	"go.uber.org/zap"
)

func TestServe_DatabaseConnected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	pres := presence.New()
	pres.Register("conn-1", "user-1")
	pres.Register("conn-2", "user-1")
	pres.Register("conn-3", "user-2")
	handler := health.NewHandler(db.Client(), pres, zap.NewNop())

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()

	handler.Serve(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want %q", ct, "application/json")
	}

	var response struct {
		Status      string `json:"status"`
		Database    string `json:"database"`
		OnlineUsers int    `json:"onlineUsers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if response.Status != "ok" {
		t.Errorf("status: got %q, want %q", response.Status, "ok")
	}
	if response.Database != "connected" {
		t.Errorf("database: got %q, want %q", response.Database, "connected")
	}
	if response.OnlineUsers != 2 {
		t.Errorf("onlineUsers: got %d, want 2", response.OnlineUsers)
	}
}
