// Package metrics exports cycle, publish and session metrics in the
// Prometheus exposition format.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/fret-sensor/internal/logic"
)

const namespace = "fret_sensor"

// Recorder turns cycle reports into Prometheus metrics.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	once          sync.Once
	reg           *prom.Registry
	cycles        prom.Counter
	skipped       *prom.CounterVec
	transitions   prom.Counter
	publishes     *prom.CounterVec
	raw           *prom.GaugeVec
	state         *prom.GaugeVec
	sessionReady  prom.Gauge
	cycleDuration prom.Histogram
}

// NewRecorder constructs and registers the metrics on reg. A nil reg gets a
// fresh registry that also carries the Go and process collectors.
func NewRecorder(reg *prom.Registry) *Recorder {
	r := &Recorder{reg: reg}
	if r.reg == nil {
		r.reg = prom.NewRegistry()
		r.reg.MustRegister(promcollect.NewGoCollector(), promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}))
	}
	r.once.Do(func() {
		r.cycles = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Executed sample cycles",
		})
		r.skipped = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_cycles_total",
			Help:      "Cycles skipped by the gate, by reason",
		}, []string{"reason"})
		r.transitions = prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Channel state transitions detected",
		})
		r.publishes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Remote writes by channel and result",
		}, []string{"channel", "result"})
		r.raw = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "raw_reading",
			Help:      "Last raw ADC reading per channel",
		}, []string{"channel"})
		r.state = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "channel_state",
			Help:      "Last committed channel state (1 = ON)",
		}, []string{"channel"})
		r.sessionReady = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "session_ready",
			Help:      "Whether the remote store session is ready (1 = ready)",
		})
		r.cycleDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time spent in executed cycles",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		})
		r.reg.MustRegister(r.cycles, r.skipped, r.transitions, r.publishes, r.raw, r.state, r.sessionReady, r.cycleDuration)
	})
	return r
}

// Registry returns the registry the metrics are registered on.
func (r *Recorder) Registry() *prom.Registry {
	if r == nil {
		return nil
	}
	return r.reg
}

// Observe records one cycle report. d is the time the cycle took.
func (r *Recorder) Observe(report logic.Report, d time.Duration) {
	if r == nil {
		return
	}
	if !report.Ran() {
		r.skipped.WithLabelValues(string(report.Skipped)).Inc()
		return
	}
	r.cycles.Inc()
	r.cycleDuration.Observe(d.Seconds())
	for _, res := range report.Channels {
		ch := strconv.Itoa(res.Channel.Index)
		r.raw.WithLabelValues(ch).Set(float64(res.Raw))
		if res.Outcome == logic.OutcomeUnchanged {
			continue
		}
		r.transitions.Inc()
		r.publishes.WithLabelValues(ch, string(res.Outcome)).Inc()
		r.state.WithLabelValues(ch).Set(boolValue(res.On))
	}
}

// SetSessionReady records the session state.
func (r *Recorder) SetSessionReady(ready bool) {
	if r == nil {
		return
	}
	r.sessionReady.Set(boolValue(ready))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
