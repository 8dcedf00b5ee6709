package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestCanonicalPathUsesRoutePattern(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Get("/api/v1/client/{id}", func(w http.ResponseWriter, req *http.Request) {
		got = CanonicalPath(req)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/client/42", nil))

	if got != "/api/v1/client/{id}" {
		t.Fatalf("CanonicalPath() = %q, want route pattern", got)
	}
}

func TestCanonicalPathWithoutRouter(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/whatever", nil)
	if got := CanonicalPath(req); got != "unmatched" {
		t.Fatalf("CanonicalPath() = %q, want unmatched", got)
	}
}

func TestInstrumentKeepsStatus(t *testing.T) {
	InitMetrics()
	h := Instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rr.Code)
	}
}
