package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"incnet/internal/learner"
)

func scrape(t *testing.T) []byte {
	t.Helper()
	mrr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if mrr.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", mrr.Code)
	}
	return mrr.Body.Bytes()
}

func preview(b []byte) string {
	if len(b) > 400 {
		b = b[:400]
	}
	return string(b)
}

func TestMetricsMiddleware_EmitsRequestCounters(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	rr := httptest.NewRecorder()
	MetricsMiddleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/test", http.MethodGet, "200")); got < 1 {
		t.Fatalf("requests_total{path=/test}=%v", got)
	}
	if body := scrape(t); !bytes.Contains(body, []byte("incnet_http_requests_total")) {
		t.Fatalf("expected incnet_http_requests_total in metrics; got: %q", preview(body))
	}
}

// The mux labels requests by route pattern, so unknown paths do not each get
// their own series.
func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	r := NewMux(&mockService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tasks/end", nil))
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("/tasks/end", http.MethodPost, "200")); got < 1 {
		t.Fatalf("requests_total{path=/tasks/end}=%v", got)
	}
}

func TestTaskConflictCounter(t *testing.T) {
	before := testutil.ToFloat64(taskConflictsTotal.WithLabelValues("end"))
	r := NewMux(&mockService{endErr: learner.ErrNoOpenTask("end task")})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/tasks/end", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("status=%d", w.Code)
	}
	if got := testutil.ToFloat64(taskConflictsTotal.WithLabelValues("end")); got != before+1 {
		t.Fatalf("task_conflicts_total{op=end}=%v, want %v", got, before+1)
	}
	IncrementTaskConflict("")
	if got := testutil.ToFloat64(taskConflictsTotal.WithLabelValues("unspecified")); got < 1 {
		t.Fatalf("unspecified conflicts=%v", got)
	}
}

func TestItoa(t *testing.T) {
	for n, want := range map[int]string{0: "0", 7: "7", 200: "200", 409: "409"} {
		if got := itoa(n); got != want {
			t.Fatalf("itoa(%d)=%q want %q", n, got, want)
		}
	}
}
