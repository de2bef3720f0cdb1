// Package stats provides the telemetry collaborators notified by the store
// after each database read and write.
package stats

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// Recorder receives one event per database round trip.
// Implementations must be safe for concurrent use.
type Recorder interface {
	RecordRead()
	RecordWrite()
}

type noopRecorder struct{}

func (noopRecorder) RecordRead()  {}
func (noopRecorder) RecordWrite() {}

// Noop discards all events.
var Noop Recorder = noopRecorder{}

// Rates holds events-per-second rates. The one minute averages are updated
// every five seconds and stay zero until the first update; the mean rates
// cover the whole lifetime of the Manager.
type Rates struct {
	ReadsPerSecond      float64 `json:"reads_per_second"`
	WritesPerSecond     float64 `json:"writes_per_second"`
	MeanReadsPerSecond  float64 `json:"mean_reads_per_second"`
	MeanWritesPerSecond float64 `json:"mean_writes_per_second"`
}

func (r Rates) String() string {
	return fmt.Sprintf("reads/s=%.2f (mean %.2f), writes/s=%.2f (mean %.2f)",
		r.ReadsPerSecond, r.MeanReadsPerSecond, r.WritesPerSecond, r.MeanWritesPerSecond)
}

// Manager counts reads and writes. Totals are kept as Prometheus counters,
// rates as exponentially weighted meters.
type Manager struct {
	set       *metrics.Set
	reads     *metrics.Counter
	writes    *metrics.Counter
	registry  gometrics.Registry
	readRate  gometrics.Meter
	writeRate gometrics.Meter
}

// NewManager creates a Manager whose metric names start with prefix (e.g. "dbkv").
func NewManager(prefix string) *Manager {
	set := metrics.NewSet()
	registry := gometrics.NewRegistry()

	m := &Manager{
		set:       set,
		reads:     set.NewCounter(fmt.Sprintf("%s_db_reads_total", prefix)),
		writes:    set.NewCounter(fmt.Sprintf("%s_db_writes_total", prefix)),
		registry:  registry,
		readRate:  gometrics.GetOrRegisterMeter("db.reads", registry),
		writeRate: gometrics.GetOrRegisterMeter("db.writes", registry),
	}

	// one minute rates, exported next to the counters
	set.NewGauge(fmt.Sprintf("%s_db_reads_per_second", prefix), m.readRate.Rate1)
	set.NewGauge(fmt.Sprintf("%s_db_writes_per_second", prefix), m.writeRate.Rate1)

	return m
}

func (m *Manager) RecordRead() {
	m.reads.Inc()
	m.readRate.Mark(1)
}

func (m *Manager) RecordWrite() {
	m.writes.Inc()
	m.writeRate.Mark(1)
}

// Totals returns the number of reads and writes recorded so far.
func (m *Manager) Totals() (reads, writes uint64) {
	return m.reads.Get(), m.writes.Get()
}

// Rates returns the current events-per-second rates.
func (m *Manager) Rates() Rates {
	return Rates{
		ReadsPerSecond:      m.readRate.Rate1(),
		WritesPerSecond:     m.writeRate.Rate1(),
		MeanReadsPerSecond:  m.readRate.RateMean(),
		MeanWritesPerSecond: m.writeRate.RateMean(),
	}
}

// WritePrometheus writes the counters and one minute rates in Prometheus text format.
func (m *Manager) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}

// Stop releases the meters. The Manager must not be used afterwards.
func (m *Manager) Stop() {
	m.readRate.Stop()
	m.writeRate.Stop()
	m.registry.UnregisterAll()
}
