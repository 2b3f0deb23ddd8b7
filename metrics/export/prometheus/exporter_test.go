package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/realtime"
)

type fakeSource struct {
	snapshot goSession.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goSession.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                       { return f.dropped }

type channelSource struct {
	fakeSource
	state realtime.State
}

func (c channelSource) RealtimeState() realtime.State { return c.state }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters:   map[goSession.MetricID]uint64{},
			Histograms: map[goSession.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCountersAndLatency(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricLoginSuccess:        7,
				goSession.MetricForcedLogoutApplied: 2,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricRequestLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"gosession_login_success_total 7",
		"gosession_forced_logout_applied_total 2",
		"gosession_logout_fallback_total 0",
		"gosession_request_latency_seconds_bucket{le=\"0.005\"} 1",
		"gosession_request_latency_seconds_bucket{le=\"+Inf\"} 36",
		"gosession_request_latency_seconds_count 36",
		"gosession_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "gosession_realtime_open ") {
		t.Fatalf("realtime gauge rendered for a source without a channel:\n%s", out)
	}
}

func TestRenderRealtimeGauge(t *testing.T) {
	src := channelSource{
		fakeSource: fakeSource{snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{goSession.MetricRealtimeOpened: 1},
		}},
		state: realtime.StateOpen,
	}
	out := NewPrometheusExporterFromSource(src).Render()
	if !strings.Contains(out, "# TYPE gosession_realtime_open gauge\ngosession_realtime_open 1\n") {
		t.Fatalf("expected open gauge, got:\n%s", out)
	}

	src.state = realtime.StateConnecting
	out = NewPrometheusExporterFromSource(src).Render()
	if !strings.Contains(out, "gosession_realtime_open 0\n") {
		t.Fatalf("expected closed gauge while connecting, got:\n%s", out)
	}
}

func TestRenderFromController(t *testing.T) {
	cfg := goSession.DefaultConfig()
	cfg.API.RuntimeBaseURL = "http://127.0.0.1:1"
	c, err := goSession.New().
		WithConfig(cfg).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Close()

	out := NewPrometheusExporter(c).Render()
	if !strings.Contains(out, "gosession_login_success_total 0") {
		t.Fatalf("expected zeroed counters from a fresh controller, got:\n%s", out)
	}
	if !strings.Contains(out, "gosession_realtime_open 0") {
		t.Fatalf("expected a closed realtime gauge before login, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters:   map[goSession.MetricID]uint64{goSession.MetricLoginSuccess: 1},
			Histograms: map[goSession.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricLoginSuccess:        1000,
				goSession.MetricLoginFailure:        40,
				goSession.MetricLogout:              800,
				goSession.MetricLogoutRetry:         10,
				goSession.MetricRealtimeOpened:      800,
				goSession.MetricSessionInvalidated:  20,
				goSession.MetricForcedLogoutApplied: 3,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricRequestLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
