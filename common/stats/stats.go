// Package stats is a small wrapper around a go-metrics registry,
// exposing only the instruments this tool needs. Hierarchical names use
// a '/' path separator, built up with Scope.
package stats

import (
	"strings"

	"github.com/rcrowley/go-metrics"
)

// Counter is an incrementing event count.
type Counter interface {
	Inc(int64)
	Count() int64
}

// Gauge holds an int64 value that can be set arbitrarily.
type Gauge interface {
	Update(int64)
	Value() int64
}

// StatsReceiver hands out named instruments, namespaced by scope.
type StatsReceiver interface {
	// Scope returns a receiver that prefixes instrument names with the
	// given scope elements:
	//
	//   statsReceiver.Scope("foo", "bar").Counter("baz")  // is equivalent to
	//   statsReceiver.Counter("foo", "bar", "baz")
	//
	Scope(scope ...string) StatsReceiver

	// Counter provides an event counter.
	Counter(name ...string) Counter

	// Gauge provides a settable int64 gauge.
	Gauge(name ...string) Gauge
}

// DefaultStatsReceiver returns a receiver over a fresh registry.
func DefaultStatsReceiver() StatsReceiver {
	return &defaultStatsReceiver{registry: metrics.NewRegistry()}
}

// NilStatsReceiver returns a receiver whose instruments go nowhere.
func NilStatsReceiver(scope ...string) StatsReceiver {
	return nilStatsReceiver{}
}

type defaultStatsReceiver struct {
	registry metrics.Registry
	scope    []string
}

func (s *defaultStatsReceiver) Scope(scope ...string) StatsReceiver {
	return &defaultStatsReceiver{s.registry, s.scoped(scope...)}
}

func (s *defaultStatsReceiver) Counter(name ...string) Counter {
	return s.registry.GetOrRegister(s.scopedName(name...), metrics.NewCounter).(metrics.Counter)
}

func (s *defaultStatsReceiver) Gauge(name ...string) Gauge {
	return s.registry.GetOrRegister(s.scopedName(name...), metrics.NewGauge).(metrics.Gauge)
}

func (s *defaultStatsReceiver) scoped(scope ...string) []string {
	return append(append([]string{}, s.scope...), scope...)
}

func (s *defaultStatsReceiver) scopedName(name ...string) string {
	// Dynamically generated name elements may contain '/'; strip rather
	// than fail.
	elems := s.scoped(name...)
	for i, e := range elems {
		elems[i] = strings.Replace(e, "/", "_SLASH_", -1)
	}
	return strings.Join(elems, "/")
}

type nilStatsReceiver struct{}

func (s nilStatsReceiver) Scope(scope ...string) StatsReceiver { return s }
func (s nilStatsReceiver) Counter(name ...string) Counter      { return metrics.NilCounter{} }
func (s nilStatsReceiver) Gauge(name ...string) Gauge          { return metrics.NilGauge{} }
