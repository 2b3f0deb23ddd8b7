package otel

import (
	"context"
	"errors"
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	AuditDropped() uint64
}

type latencyGauges struct {
	id      goSession.MetricID
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter publishes a controller's metrics as observable instruments.
// Values are read from the source on each collection; nothing is cached.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	counters     map[goSession.MetricID]metric.Int64ObservableCounter
	latency      []latencyGauges
	auditDropped metric.Int64ObservableCounter
	realtimeOpen metric.Int64ObservableGauge
	observables  []metric.Observable
}

// NewOTelExporter registers instruments on meter that read from c.
func NewOTelExporter(meter metric.Meter, c *goSession.Controller) (*OTelExporter, error) {
	if c == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, c)
}

// NewOTelExporterFromSource is NewOTelExporter for any snapshot source. The
// realtime gauge is registered only when source implements
// internaldefs.RealtimeReporter.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:   source,
		counters: make(map[goSession.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	if err := e.instrument(meter); err != nil {
		return nil, err
	}
	reg, err := meter.RegisterCallback(e.observe, e.observables...)
	if err != nil {
		return nil, fmt.Errorf("otel: register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *OTelExporter) instrument(meter metric.Meter) error {
	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return fmt.Errorf("otel: counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = ins
		e.observables = append(e.observables, ins)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return fmt.Errorf("otel: counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.auditDropped = dropped
	e.observables = append(e.observables, dropped)

	for _, def := range internaldefs.HistogramDefs {
		g := latencyGauges{id: def.ID}
		for i, suffix := range internaldefs.HistogramBoundSuffix {
			if g.buckets[i], err = e.gauge(meter, def.Name+"_bucket_le_"+suffix, "Requests at or under this bound."); err != nil {
				return err
			}
		}
		if g.count, err = e.gauge(meter, def.Name+"_count", "Requests observed."); err != nil {
			return err
		}
		e.latency = append(e.latency, g)
	}

	if _, ok := internaldefs.RealtimeOpen(e.source); ok {
		if e.realtimeOpen, err = e.gauge(meter, internaldefs.RealtimeOpenName, internaldefs.RealtimeOpenHelp); err != nil {
			return err
		}
	}
	return nil
}

func (e *OTelExporter) gauge(meter metric.Meter, name, help string) (metric.Int64ObservableGauge, error) {
	g, err := meter.Int64ObservableGauge(name, metric.WithDescription(help))
	if err != nil {
		return nil, fmt.Errorf("otel: gauge %s: %w", name, err)
	}
	e.observables = append(e.observables, g)
	return g, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for id, ins := range e.counters {
		o.ObserveInt64(ins, int64(snap.Counters[id]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))

	for _, g := range e.latency {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[g.id]))
		for i, v := range cumulative {
			o.ObserveInt64(g.buckets[i], int64(v))
		}
		o.ObserveInt64(g.count, int64(cumulative[len(cumulative)-1]))
	}

	if e.realtimeOpen != nil {
		if v, ok := internaldefs.RealtimeOpen(e.source); ok {
			o.ObserveInt64(e.realtimeOpen, v)
		}
	}
	return nil
}

// Close unregisters the collection callback. Instruments stay registered on
// the meter but report nothing further.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
