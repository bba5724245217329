package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/atra/internal/linkstate"
)

func TestMetricsServer(t *testing.T) {
	srv := Start(8888)
	// Give it a tiny bit of time to start up
	time.Sleep(100 * time.Millisecond)

	defer srv.Stop(context.Background())

	// Record a fetch to verify metrics format correctly
	RecordFetch(Fetch{
		Origin:     "https://example.com",
		StatusCode: 200,
		Duration:   1 * time.Second,
		Bytes:      11,
	})
	QueueDepth.Set(3)
	GuardContention.Inc()
	WarcRollovers.Inc()
	RecordLinkState(linkstate.ProcessedAndStored)

	resp, err := http.Get("http://localhost:8888/metrics")
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	output := string(body)

	if !strings.Contains(output, "atra_fetch_requests_total") {
		t.Errorf("expected atra_fetch_requests_total metric")
	}

	if !strings.Contains(output, `atra_fetch_duration_seconds_bucket`) {
		t.Errorf("expected atra_fetch_duration_seconds metric")
	}

	if !strings.Contains(output, `atra_fetch_bytes_total{origin="https://example.com"}`) {
		t.Errorf("expected atra_fetch_bytes_total metric for example.com")
	}

	if !strings.Contains(output, "atra_queue_depth") {
		t.Errorf("expected atra_queue_depth metric")
	}

	if !strings.Contains(output, `atra_link_state_transitions_total{kind="ProcessedAndStored"}`) {
		t.Errorf("expected atra_link_state_transitions_total metric")
	}
}
