package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/channels/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/channels/{id}", "418"))

	for _, id := range []string{"a", "b"} {
		req := httptest.NewRequest("GET", "/api/channels/"+id, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/channels/{id}", "418"))
	if after-before != 2 {
		t.Errorf("counter delta = %v, want 2", after-before)
	}
}

func TestChannelKind(t *testing.T) {
	if got := ChannelKind(true, "private"); got != "direct" {
		t.Errorf("ChannelKind(direct) = %q", got)
	}
	if got := ChannelKind(false, "public"); got != "public" {
		t.Errorf("ChannelKind(public) = %q", got)
	}
}
