package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/medications/search":  "/medications/search",
		"/medications/aspirin": "/medications/{slug}",
		"/medications":         "/medications",
		"/chat":                "/chat",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMiddlewareRecordsStatusAndPath(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/medications/aspirin", nil))

	out := scrape(t, m.Handler())
	want := `medfinder_http_requests_total{method="GET",path="/medications/{slug}",service="api",status="404"} 1`
	if !strings.Contains(out, want) {
		t.Fatalf("expected %q in:\n%s", want, out)
	}
}

func TestDomainCounters(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordSearch("api", "ranker", 3)
	m.RecordChat("api", "success", []string{"search_medication_data"}, 1)
	m.RecordAdmissionRejected("api", "chat")
	m.ObserveBreakerState("elastic.search", "closed", "open")

	out := scrape(t, m.Handler())
	for _, want := range []string{
		`medfinder_search_requests_total{service="api",source="ranker"} 1`,
		`medfinder_chat_runs_total{service="api",status="success"} 1`,
		`medfinder_chat_tool_calls_total{service="api",tool="search_medication_data"} 1`,
		`medfinder_admission_rejected_total{key="chat",service="api"} 1`,
		`medfinder_resilience_breaker_open{operation="elastic.search"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestWorkerMetrics(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartIndex()
	m.FinishIndex("worker", 10*time.Millisecond, errors.New("boom"))

	out := scrape(t, m.Handler())
	if !strings.Contains(out, `medfinder_worker_medication_index_total{service="worker",status="error"} 1`) {
		t.Fatalf("missing index counter in:\n%s", out)
	}
	if !strings.Contains(out, `medfinder_worker_medication_index_in_flight{service="worker"} 0`) {
		t.Fatalf("missing in-flight gauge in:\n%s", out)
	}
}
