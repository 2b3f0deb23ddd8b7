package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

type metricsSource interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	AuditDropped() uint64
}

// PrometheusExporter renders a controller's counters, request latency and
// channel state in the Prometheus text format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter reads from c. The realtime gauge is included.
func NewPrometheusExporter(c *goSession.Controller) *PrometheusExporter {
	return &PrometheusExporter{source: c}
}

// NewPrometheusExporterFromSource reads from source. The realtime gauge is
// only rendered when source also implements internaldefs.RealtimeReporter.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the exposition text, or "" while metrics are disabled on
// the source.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}

	w := &textWriter{}
	w.b.Grow(4096)
	for _, def := range internaldefs.CounterDefs {
		w.sample(def.Name, def.Help, "counter", snap.Counters[def.ID])
	}
	w.sample(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, "counter", dropped)
	for _, def := range internaldefs.HistogramDefs {
		w.histogram(def, internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[def.ID])))
	}
	if open, ok := internaldefs.RealtimeOpen(p.source); ok {
		w.sample(internaldefs.RealtimeOpenName, internaldefs.RealtimeOpenHelp, "gauge", uint64(open))
	}
	return w.b.String()
}

type textWriter struct {
	b strings.Builder
}

func (w *textWriter) header(name, help, kind string) {
	w.b.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	w.b.WriteString("# TYPE " + name + " " + kind + "\n")
}

func (w *textWriter) line(name string, v uint64) {
	w.b.WriteString(name)
	w.b.WriteByte(' ')
	w.b.WriteString(strconv.FormatUint(v, 10))
	w.b.WriteByte('\n')
}

func (w *textWriter) sample(name, help, kind string, v uint64) {
	w.header(name, help, kind)
	w.line(name, v)
}

func (w *textWriter) histogram(def internaldefs.HistogramDef, cumulative [8]uint64) {
	w.header(def.Name, def.Help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		w.line(def.Name+`_bucket{le="`+le+`"}`, cumulative[i])
	}
	w.line(def.Name+"_count", cumulative[len(cumulative)-1])
	// latency samples are bucketed only
	w.line(def.Name+"_sum", 0)
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}
