// Package metrics provides a lightweight, Prometheus-compatible metrics
// collector for briefbot. It outputs text/plain in Prometheus exposition
// format without requiring the heavy prometheus/client_golang dependency.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the global metrics collector.
var Collector = NewMetricsCollector()

// MetricsCollector aggregates counters and gauges.
type MetricsCollector struct {
	counters  sync.Map // name -> *Counter
	gauges    sync.Map // name -> *Gauge
	startTime time.Time
}

// NewMetricsCollector creates a new collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{startTime: time.Now()}
}

// Uptime returns how long the collector has been running.
func (c *MetricsCollector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Counter is a monotonically increasing counter.
type Counter struct {
	name  string
	help  string
	value atomic.Int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value.Add(1) }

// Add increments the counter by n.
func (c *Counter) Add(n int64) { c.value.Add(n) }

// Value returns the current counter value.
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

// Set sets the gauge to the given value.
func (g *Gauge) Set(v int64) { g.value.Store(v) }

// Inc increments the gauge by 1.
func (g *Gauge) Inc() { g.value.Add(1) }

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() { g.value.Add(-1) }

// Value returns the current gauge value.
func (g *Gauge) Value() int64 { return g.value.Load() }

// Counter returns or creates a counter with the given name.
func (c *MetricsCollector) Counter(name, help string) *Counter {
	if v, ok := c.counters.Load(name); ok {
		return v.(*Counter)
	}
	ctr := &Counter{name: name, help: help}
	actual, _ := c.counters.LoadOrStore(name, ctr)
	return actual.(*Counter)
}

// Gauge returns or creates a gauge with the given name.
func (c *MetricsCollector) Gauge(name, help string) *Gauge {
	if v, ok := c.gauges.Load(name); ok {
		return v.(*Gauge)
	}
	g := &Gauge{name: name, help: help}
	actual, _ := c.gauges.LoadOrStore(name, g)
	return actual.(*Gauge)
}

// Handler returns an http.HandlerFunc that renders metrics in
// Prometheus text format.
func (c *MetricsCollector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(w, c.Render())
	}
}

// Render produces the Prometheus exposition text.
func (c *MetricsCollector) Render() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# HELP briefbot_uptime_seconds Time since start in seconds\n")
	fmt.Fprintf(&sb, "# TYPE briefbot_uptime_seconds gauge\n")
	fmt.Fprintf(&sb, "briefbot_uptime_seconds %d\n\n", int64(c.Uptime().Seconds()))

	var names []string
	byName := make(map[string]*Counter)
	c.counters.Range(func(key, value any) bool {
		ctr := value.(*Counter)
		names = append(names, ctr.name)
		byName[ctr.name] = ctr
		return true
	})
	sort.Strings(names)
	for _, name := range names {
		ctr := byName[name]
		fmt.Fprintf(&sb, "# HELP %s %s\n", ctr.name, ctr.help)
		fmt.Fprintf(&sb, "# TYPE %s counter\n", ctr.name)
		fmt.Fprintf(&sb, "%s %d\n", ctr.name, ctr.Value())
	}

	var gaugeNames []string
	gaugesByName := make(map[string]*Gauge)
	c.gauges.Range(func(key, value any) bool {
		g := value.(*Gauge)
		gaugeNames = append(gaugeNames, g.name)
		gaugesByName[g.name] = g
		return true
	})
	sort.Strings(gaugeNames)
	for _, name := range gaugeNames {
		g := gaugesByName[name]
		fmt.Fprintf(&sb, "# HELP %s %s\n", g.name, g.help)
		fmt.Fprintf(&sb, "# TYPE %s gauge\n", g.name)
		fmt.Fprintf(&sb, "%s %d\n", g.name, g.Value())
	}

	return sb.String()
}

// --- Pre-defined metrics used across the application ---

var (
	MessagesTotal      = Collector.Counter("briefbot_messages_total", "Total chat messages processed")
	LLMRequestsTotal   = Collector.Counter("briefbot_llm_requests_total", "Total LLM API requests")
	SearchRequests     = Collector.Counter("briefbot_search_requests_total", "Total news search requests")
	ValidationFailures = Collector.Counter("briefbot_validation_failures_total", "Total rejected inputs")
	InjectionAttempts  = Collector.Counter("briefbot_injection_attempts_total", "Total detected prompt injection attempts")
	TraversalBlocks    = Collector.Counter("briefbot_traversal_blocks_total", "Total blocked path traversal attempts")
	StorageOps         = Collector.Counter("briefbot_storage_ops_total", "Total successful storage operations")
	ActiveConversations = Collector.Gauge("briefbot_active_conversations", "Conversations currently held in memory")
)
