package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/flemzord/chatmem/internal/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Observe(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.Observe(memory.Event{Type: memory.EventMessageAdded, TokenCount: 120})
	m.Observe(memory.Event{Type: memory.EventMessageAdded, TokenCount: 300})
	m.Observe(memory.Event{Type: memory.EventCompressed, Dropped: 12})
	m.Observe(memory.Event{Type: memory.EventPersistFailed, Op: "set"})

	if got := testutil.ToFloat64(m.events.WithLabelValues(string(memory.EventMessageAdded))); got != 2 {
		t.Errorf("message events = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.droppedMessages); got != 12 {
		t.Errorf("dropped = %v, want 12", got)
	}
	if got := testutil.ToFloat64(m.persistFailures.WithLabelValues("set")); got != 1 {
		t.Errorf("persist failures = %v, want 1", got)
	}
}

func TestMetrics_EndpointAndRouteLabels(t *testing.T) {
	t.Parallel()
	tg := newTestGateway(t, authedConfig())

	_ = tg.do(t, http.MethodGet, "/api/conversations/abc/usage", nil)

	rr := httptest.NewRecorder()
	tg.g.metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()

	if !strings.Contains(body, `route="/api/conversations/{id}/usage"`) {
		t.Errorf("route pattern label missing:\n%s", body)
	}
	if !strings.Contains(body, `code="404"`) {
		t.Error("status code label missing")
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("go collector missing")
	}
}
