package observ

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Metrics are created on first use. The label set of a metric is fixed by
// its first observation; later calls with different label keys are dropped.
type registry struct {
	mu       sync.Mutex
	reg      *prometheus.Registry
	counters map[string]*prometheus.CounterVec
	gauges   map[string]*prometheus.GaugeVec
	hist     map[string]*prometheus.HistogramVec
}

var reg = newRegistry()

func newRegistry() *registry {
	return &registry{
		reg:      prometheus.NewRegistry(),
		counters: map[string]*prometheus.CounterVec{},
		gauges:   map[string]*prometheus.GaugeVec{},
		hist:     map[string]*prometheus.HistogramVec{},
	}
}

// labelNames returns the sorted keys so registration order is stable.
func labelNames(lbl map[string]string) []string {
	keys := make([]string, 0, len(lbl))
	for k := range lbl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (r *registry) counter(name string, labels map[string]string) *prometheus.CounterVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.counters[name]
	if !ok {
		v = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: name}, labelNames(labels))
		if err := r.reg.Register(v); err != nil {
			return nil
		}
		r.counters[name] = v
	}
	return v
}

func (r *registry) gauge(name string, labels map[string]string) *prometheus.GaugeVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.gauges[name]
	if !ok {
		v = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: name}, labelNames(labels))
		if err := r.reg.Register(v); err != nil {
			return nil
		}
		r.gauges[name] = v
	}
	return v
}

func (r *registry) histogram(name string, labels map[string]string) *prometheus.HistogramVec {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.hist[name]
	if !ok {
		v = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: name, Buckets: prometheus.DefBuckets}, labelNames(labels))
		if err := r.reg.Register(v); err != nil {
			return nil
		}
		r.hist[name] = v
	}
	return v
}

func IncCounter(name string, labels map[string]string) {
	IncCounterBy(name, labels, 1.0)
}

func IncCounterBy(name string, labels map[string]string, value float64) {
	v := reg.counter(name, labels)
	if v == nil {
		return
	}
	if c, err := v.GetMetricWith(labels); err == nil {
		c.Add(value)
	}
}

func SetGauge(name string, value float64, labels map[string]string) {
	v := reg.gauge(name, labels)
	if v == nil {
		return
	}
	if g, err := v.GetMetricWith(labels); err == nil {
		g.Set(value)
	}
}

func Observe(name string, value float64, labels map[string]string) {
	v := reg.histogram(name, labels)
	if v == nil {
		return
	}
	if o, err := v.GetMetricWith(labels); err == nil {
		o.Observe(value)
	}
}

// RecordDuration observes d in seconds under name+"_seconds".
func RecordDuration(name string, d time.Duration, labels map[string]string) {
	Observe(name+"_seconds", d.Seconds(), labels)
}

// CounterValue reads back a counter; 0 if it was never incremented.
func CounterValue(name string, labels map[string]string) float64 {
	return read(name, labels, func(m *dto.Metric) float64 { return m.GetCounter().GetValue() })
}

// GaugeValue reads back a gauge; 0 if it was never set.
func GaugeValue(name string, labels map[string]string) float64 {
	return read(name, labels, func(m *dto.Metric) float64 { return m.GetGauge().GetValue() })
}

func read(name string, labels map[string]string, pick func(*dto.Metric) float64) float64 {
	families, err := reg.reg.Gather()
	if err != nil {
		return 0
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m.GetLabel(), labels) {
				return pick(m)
			}
		}
	}
	return 0
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(pairs) != len(want) {
		return false
	}
	for _, p := range pairs {
		if v, ok := want[p.GetName()]; !ok || v != p.GetValue() {
			return false
		}
	}
	return true
}

// Handler serves the registry in Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(reg.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
