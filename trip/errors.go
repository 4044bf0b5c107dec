// Package trip provides error handling for timelapse runs.
//
// A run that hits trouble "trips". Most trips are stumbles: a frame that
// failed to save, a mesh that could not be triangulated. The camera keeps
// rolling past those. A fall ends the take: the run stops and the trip is
// handed back to the caller with everything known about where it happened.
package trip

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Trip types used across a timelapse run.
const (
	TypeClassify  = "classify"  // entity could not be inspected
	TypeParameter = "parameter" // parameter write or restore failed
	TypeVisual    = "visual"    // image capture failed
	TypeMesh      = "mesh"      // OBJ export failed
	TypeCamera    = "camera"    // camera could not be steered
	TypeSystem    = "system"    // filesystem, config or host failure
	TypePanic     = "panic"
)

// Trip is an error raised during a run, with the context needed to debug it.
type Trip struct {
	Type      string    // Error category
	Message   string    // Human-readable description
	Context   Context   // Position, frame, path...
	Timestamp time.Time // When the error occurred
	Severity  Severity
	Cause     error
}

// Context provides structured debugging information for trips.
type Context map[string]interface{}

// Severity indicates how serious a trip is.
type Severity int

const (
	// Stumble is recoverable: the run continues with the next step.
	Stumble Severity = iota

	// Error is significant but does not by itself stop the run.
	Error

	// Fall ends the run.
	Fall
)

func (s Severity) String() string {
	switch s {
	case Stumble:
		return "stumble"
	case Error:
		return "error"
	case Fall:
		return "fall"
	default:
		return "unknown"
	}
}

// NewTrip creates a trip with Error severity.
func NewTrip(errorType, message string, context Context) *Trip {
	return &Trip{
		Type:      errorType,
		Message:   message,
		Context:   context,
		Timestamp: time.Now(),
		Severity:  Error,
	}
}

// NewStumble creates a recoverable trip.
func NewStumble(errorType, message string, context Context) *Trip {
	t := NewTrip(errorType, message, context)
	t.Severity = Stumble
	return t
}

// NewFall creates a trip that ends the run.
func NewFall(errorType, message string, context Context) *Trip {
	t := NewTrip(errorType, message, context)
	t.Severity = Fall
	return t
}

// Wrap turns err into a fall, keeping err as the cause. An err that already
// is a *Trip is promoted to a fall and returned as is.
func Wrap(err error, errorType, message string, context Context) *Trip {
	if t, ok := err.(*Trip); ok {
		t.Severity = Fall
		return t
	}
	t := NewFall(errorType, message, context)
	t.Cause = err
	return t
}

// WithCause attaches the underlying error.
func (t *Trip) WithCause(err error) *Trip {
	t.Cause = err
	return t
}

// WithSeverity sets the severity level for this trip.
func (t *Trip) WithSeverity(severity Severity) *Trip {
	t.Severity = severity
	return t
}

// Error implements the error interface.
func (t *Trip) Error() string {
	if t.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", t.Type, t.Severity, t.Message, t.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", t.Type, t.Severity, t.Message)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (t *Trip) Unwrap() error {
	return t.Cause
}

// CanRecover returns true if the run can continue despite this trip.
func (t *Trip) CanRecover() bool {
	return t.Severity == Stumble
}

// IsFall returns true if this trip ends the run.
func (t *Trip) IsFall() bool {
	return t.Severity == Fall
}

// GetContext returns a specific context value if it exists.
func (t *Trip) GetContext(key string) (interface{}, bool) {
	if t.Context == nil {
		return nil, false
	}
	val, exists := t.Context[key]
	return val, exists
}

// DetailedString returns the full diagnostic text, context keys sorted.
func (t *Trip) DetailedString() string {
	var details strings.Builder

	details.WriteString(t.Error())
	details.WriteString(fmt.Sprintf("\n  Time: %s", t.Timestamp.Format("15:04:05.000")))

	if len(t.Context) > 0 {
		keys := make([]string, 0, len(t.Context))
		for key := range t.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		details.WriteString("\n  Context:")
		for _, key := range keys {
			details.WriteString(fmt.Sprintf("\n    %s: %v", key, t.Context[key]))
		}
	}

	return details.String()
}
