package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGaugesSampleOnScrape(t *testing.T) {
	clients, groups := 3, 1
	m := New(func() int { return clients }, func() int { return groups })

	m.Invocations.WithLabelValues("JoinGroup", "ok").Inc()
	m.DroppedFrames.Inc()

	if got := testutil.ToFloat64(m.Invocations.WithLabelValues("JoinGroup", "ok")); got != 1 {
		t.Errorf("invocations = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		"bridge_connected_clients 3",
		"bridge_active_groups 1",
		"bridge_dropped_frames_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}

	clients = 0
	rec = httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "bridge_connected_clients 0") {
		t.Error("gauge should follow the registry")
	}
}
