// Package telemetry is a fire-and-forget event sink. Sinks are never on the
// critical path: emission failures are invisible to callers.
package telemetry

import (
	"fmt"
	"log"
	"sort"
	"strings"
)

// Sink receives named events with string properties and numeric measurements.
type Sink interface {
	Event(name string, props map[string]string, measures map[string]float64)
}

// LogSink writes events to the standard logger.
type LogSink struct{}

func (LogSink) Event(name string, props map[string]string, measures map[string]float64) {
	var parts []string
	for _, k := range sortedKeys(props) {
		parts = append(parts, fmt.Sprintf("%s=%s", k, props[k]))
	}
	for _, k := range sortedKeys(measures) {
		parts = append(parts, fmt.Sprintf("%s=%g", k, measures[k]))
	}
	log.Printf("telemetry: %s %s", name, strings.Join(parts, " "))
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Event(string, map[string]string, map[string]float64) {}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
