// Package format renders metrics in the Prometheus text exposition format.
//
// The builder is deliberately literal: metric names, label values, and
// measurements are written exactly as given, with no escaping or reordering,
// so the bytes a collector produces are the bytes a scrape returns.
//
// A line is built fluently and terminated by Value:
//
//	format.Begin(w, "some_diff").
//		Label("label1", "a").
//		Label("label2", "b").
//		Value(123)
//
// produces
//
//	some_diff{label1="a",label2="b"} 123
//
// followed by a newline. Without labels the braces are omitted entirely.
package format

import (
	"fmt"
	"io"

	"github.com/samber/mo"
)

// Metric is an in-progress exposition line. Begin starts one, Label and
// LabelOpt append label pairs, Value terminates it. The first write error
// sticks and is reported by Value; later calls on a failed line are no-ops.
type Metric struct {
	w         io.Writer
	err       error
	hasLabels bool
}

// Begin starts a metric line with the given name.
func Begin(w io.Writer, name string) *Metric {
	m := &Metric{w: w}
	_, m.err = io.WriteString(w, name)
	return m
}

// Label appends a name="value" label pair. The value is rendered with %v and
// written verbatim.
func (m *Metric) Label(name string, value any) *Metric {
	if m.err == nil {
		sep := ","
		if !m.hasLabels {
			sep = "{"
		}
		_, m.err = fmt.Fprintf(m.w, `%s%s="%v"`, sep, name, value)
	}
	m.hasLabels = true
	return m
}

// LabelOpt appends the label pair only when the option holds a value.
func (m *Metric) LabelOpt(name string, value mo.Option[string]) *Metric {
	if v, ok := value.Get(); ok {
		return m.Label(name, v)
	}
	return m
}

// Value terminates the line with the measurement and a trailing newline.
// It returns the first error encountered while building the line.
func (m *Metric) Value(value any) error {
	if m.err == nil {
		sep := " "
		if m.hasLabels {
			sep = "} "
		}
		_, m.err = fmt.Fprintf(m.w, "%s%v\n", sep, value)
	}
	return m.err
}
