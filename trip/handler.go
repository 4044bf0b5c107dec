package trip

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Policy decides which trips a run may shrug off.
type Policy struct {
	// RecoverableTypes lists trip types recorded as stumbles.
	RecoverableTypes []string
}

// DefaultPolicy treats failed frame and mesh saves as stumbles.
func DefaultPolicy() *Policy {
	return &Policy{
		RecoverableTypes: []string{TypeVisual, TypeMesh},
	}
}

// Handler collects the trips of one component during a run.
type Handler struct {
	component string
	trips     []*Trip
	stumbles  []*Trip
	policy    *Policy
}

// NewHandler creates a handler for a component. A nil policy means
// DefaultPolicy.
func NewHandler(component string, policy *Policy) *Handler {
	if policy == nil {
		policy = DefaultPolicy()
	}

	return &Handler{
		component: component,
		trips:     make([]*Trip, 0),
		stumbles:  make([]*Trip, 0),
		policy:    policy,
	}
}

// Record files a trip under stumbles or trips by severity.
func (h *Handler) Record(trip *Trip) {
	if trip.Severity == Stumble {
		h.stumbles = append(h.stumbles, trip)
	} else {
		h.trips = append(h.trips, trip)
	}
}

// Stumble records a recoverable trip of the given type. Types the policy
// does not list as recoverable are recorded with Error severity instead.
func (h *Handler) Stumble(errorType, message string, context Context, cause error) *Trip {
	t := NewStumble(errorType, message, context).WithCause(cause)
	if !h.CanRecover(errorType) {
		t.Severity = Error
	}
	h.Record(t)
	return t
}

// HasTrips returns true if any non-stumble trip was recorded.
func (h *Handler) HasTrips() bool {
	return len(h.trips) > 0
}

// HasStumbles returns true if any stumble was recorded.
func (h *Handler) HasStumbles() bool {
	return len(h.stumbles) > 0
}

// GetTrips returns all recorded non-stumble trips.
func (h *Handler) GetTrips() []*Trip {
	return h.trips
}

// GetStumbles returns all recorded stumbles.
func (h *Handler) GetStumbles() []*Trip {
	return h.stumbles
}

// CanRecover returns true if the given type is listed as recoverable.
func (h *Handler) CanRecover(errorType string) bool {
	for _, recoverableType := range h.policy.RecoverableTypes {
		if recoverableType == errorType {
			return true
		}
	}
	return false
}

// Summary provides a one-line overview.
func (h *Handler) Summary() string {
	if len(h.trips) == 0 && len(h.stumbles) == 0 {
		return fmt.Sprintf("[%s] clean run", h.component)
	}

	return fmt.Sprintf("[%s] %d trips, %d stumbles",
		h.component, len(h.trips), len(h.stumbles))
}

// DetailedReport lists every trip with its context.
func (h *Handler) DetailedReport() string {
	var report strings.Builder

	report.WriteString(fmt.Sprintf("=== %s ===\n", h.component))
	report.WriteString(h.Summary() + "\n")

	if len(h.trips) > 0 {
		report.WriteString("\nTrips:\n")
		for i, trip := range h.trips {
			report.WriteString(fmt.Sprintf("%d. %s\n", i+1, trip.DetailedString()))
		}
	}

	if len(h.stumbles) > 0 {
		report.WriteString("\nStumbles:\n")
		for i, stumble := range h.stumbles {
			report.WriteString(fmt.Sprintf("%d. %s\n", i+1, stumble.DetailedString()))
		}
	}

	return report.String()
}

// FromPanic converts a recovered panic value into a fall carrying the stack.
func FromPanic(r interface{}, context Context) *Trip {
	if context == nil {
		context = Context{}
	}
	context["stack"] = string(debug.Stack())
	t := NewFall(TypePanic, fmt.Sprintf("panic during run: %v", r), context)
	if err, ok := r.(error); ok {
		t.Cause = err
	}
	return t
}
