package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics handler returned %d", rec.Code)
	}
	return rec.Body.String()
}

func TestObserveProposal(t *testing.T) {
	m := New()
	m.ObserveProposal(33, 7)
	m.ObserveProposalError()

	out := scrape(t, m)
	for _, want := range []string{
		"timely_slots_generated_total 33",
		"timely_slots_unavailable_total 7",
		`timely_proposals_total{outcome="error"} 1`,
		`timely_proposals_total{outcome="ok"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics output missing %q:\n%s", want, out)
		}
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/groups/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := m.Middleware(mux)

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/groups/"+id, nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("unexpected status %d", rec.Code)
		}
	}

	want := `timely_http_requests_total{method="DELETE",route="DELETE /api/groups/{id}",status="204"} 2`
	if out := scrape(t, m); !strings.Contains(out, want) {
		t.Fatalf("metrics output missing %q:\n%s", want, out)
	}
}
