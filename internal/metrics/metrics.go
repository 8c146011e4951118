// Copyright (c) 2026 The Aeterno Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 3 as
// published by the Free Software Foundation.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package metrics is a minimal counter/gauge registry with a Prometheus
// text-exposition-format /metrics handler. It exists for operator
// observability only, alongside the line and binary protocols rather than
// inside them.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/gorilla/mux"
)

// collector is what a Registry needs from a CounterVec or GaugeVec: a way
// to render its current values in Prometheus text exposition format.
type collector interface {
	render(out *strings.Builder)
}

// Registry stores and renders every counter/gauge vector registered with
// it. The Master owns its own Registry instance rather than sharing a
// package-level one, so tests don't share global state.
type Registry struct {
	mu         sync.RWMutex
	collectors map[string]collector
}

// NewRegistry creates an empty metric registry.
func NewRegistry() *Registry {
	return &Registry{collectors: make(map[string]collector)}
}

func (r *Registry) register(name string, c collector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.collectors[name]; ok {
		panic(fmt.Sprintf("metric with name %s already registered", name))
	}
	r.collectors[name] = c
}

func formatLabelKey(labels, labelValues []string) string {
	pairs := make([]string, len(labels))
	for i := range labels {
		pairs[i] = fmt.Sprintf("%s=%q", labels[i], labelValues[i])
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func checkLabelArity(metricName string, labels, labelValues []string) {
	if len(labelValues) != len(labels) {
		panic(fmt.Sprintf(
			"%q has %d variable labels named %q but %d values %q were provided",
			metricName, len(labels), labels, len(labelValues), labelValues,
		))
	}
}

// CounterVec is a set of monotonically increasing int64 counters sharing a
// name, help text, and label set.
type CounterVec struct {
	metricName string
	help       string
	labels     []string

	mu     sync.RWMutex
	values map[string]*Counter
}

// Counter is a single monotonically increasing value within a CounterVec.
type Counter struct {
	mu    sync.Mutex
	value int64
}

// NewCounterVec creates and registers a new counter vector.
func (r *Registry) NewCounterVec(name, help string, labels []string) *CounterVec {
	v := &CounterVec{metricName: name, help: help, labels: labels, values: make(map[string]*Counter)}
	r.register(name, v)
	return v
}

// WithLabelValues gets or creates the counter for the given label values.
func (v *CounterVec) WithLabelValues(labelValues ...string) *Counter {
	checkLabelArity(v.metricName, v.labels, labelValues)
	key := formatLabelKey(v.labels, labelValues)

	v.mu.RLock()
	c, ok := v.values[key]
	v.mu.RUnlock()
	if ok {
		return c
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if c, ok := v.values[key]; ok {
		return c
	}
	c = &Counter{}
	v.values[key] = c
	return c
}

// Inc increments the counter by one.
func (c *Counter) Inc() { c.Add(1) }

// Add adds delta to the counter.
func (c *Counter) Add(delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value += delta
}

func (v *CounterVec) render(out *strings.Builder) {
	fmt.Fprintf(out, "# HELP %s %s\n", v.metricName, v.help)
	fmt.Fprintf(out, "# TYPE %s counter\n", v.metricName)
	v.mu.RLock()
	defer v.mu.RUnlock()
	for key, c := range v.values {
		c.mu.Lock()
		fmt.Fprintf(out, "%s{%s} %d\n", v.metricName, key, c.value)
		c.mu.Unlock()
	}
}

// GaugeVec is a set of float64 gauges sharing a name, help text, and label
// set.
type GaugeVec struct {
	metricName string
	help       string
	labels     []string

	mu     sync.RWMutex
	values map[string]*Gauge
}

// Gauge is a single arbitrarily-set value within a GaugeVec.
type Gauge struct {
	mu    sync.Mutex
	value float64
}

// NewGaugeVec creates and registers a new gauge vector.
func (r *Registry) NewGaugeVec(name, help string, labels []string) *GaugeVec {
	v := &GaugeVec{metricName: name, help: help, labels: labels, values: make(map[string]*Gauge)}
	r.register(name, v)
	return v
}

// WithLabelValues gets or creates the gauge for the given label values.
func (v *GaugeVec) WithLabelValues(labelValues ...string) *Gauge {
	checkLabelArity(v.metricName, v.labels, labelValues)
	key := formatLabelKey(v.labels, labelValues)

	v.mu.RLock()
	g, ok := v.values[key]
	v.mu.RUnlock()
	if ok {
		return g
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if g, ok := v.values[key]; ok {
		return g
	}
	g = &Gauge{}
	v.values[key] = g
	return g
}

// Set sets the gauge's value.
func (g *Gauge) Set(value float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = value
}

func (v *GaugeVec) render(out *strings.Builder) {
	fmt.Fprintf(out, "# HELP %s %s\n", v.metricName, v.help)
	fmt.Fprintf(out, "# TYPE %s gauge\n", v.metricName)
	v.mu.RLock()
	defer v.mu.RUnlock()
	for key, g := range v.values {
		g.mu.Lock()
		fmt.Fprintf(out, "%s{%s} %f\n", v.metricName, key, g.value)
		g.mu.Unlock()
	}
}

// Gather renders every metric in this registry in Prometheus text
// exposition format.
func (r *Registry) Gather() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out strings.Builder
	for _, c := range r.collectors {
		c.render(&out)
	}
	return out.String()
}

// Handler returns a mux-compatible handler serving r's metrics as plain
// text on GET /metrics.
func (r *Registry) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/metrics", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, r.Gather())
	}).Methods(http.MethodGet)
	return router
}
