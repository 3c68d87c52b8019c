package promport

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the exporter lifecycle.
var (
	// ErrExporterClosed is returned when an exporter is used after Close.
	ErrExporterClosed = errors.New("promport: exporter is closed")

	// ErrWriterSpawned is returned when Spawn is called more than once.
	ErrWriterSpawned = errors.New("promport: writer already spawned")

	// ErrWatcherClosed is returned when a config watcher is used after Close.
	ErrWatcherClosed = errors.New("promport: config watcher is closed")
)

// ValidationError collects configuration validation problems.
// It implements the error interface and reports every problem found rather
// than stopping at the first one.
type ValidationError struct {
	Errors []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "config validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("config validation failed: %s", e.Errors[0])
	}
	return fmt.Sprintf("config validation failed with %d errors:\n  - %s",
		len(e.Errors), strings.Join(e.Errors, "\n  - "))
}

// Addf appends a formatted problem to the collection.
func (e *ValidationError) Addf(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// Add appends a problem to the collection.
func (e *ValidationError) Add(msg string) {
	e.Errors = append(e.Errors, msg)
}

// HasErrors returns true if any problem was recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ToError returns the collection as an error, or nil when empty.
func (e *ValidationError) ToError() error {
	if e.HasErrors() {
		return e
	}
	return nil
}
