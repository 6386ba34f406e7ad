package anomaly

import (
	"errors"
	"fmt"
)

// Category classifies an anomaly. The set mirrors the cognitect
// anomaly taxonomy; request handlers map categories to HTTP status.
type Category string

const (
	CategoryIncorrect   Category = "incorrect"
	CategoryNotFound    Category = "not-found"
	CategoryForbidden   Category = "forbidden"
	CategoryConflict    Category = "conflict"
	CategoryFault       Category = "fault"
	CategoryUnavailable Category = "unavailable"
	CategoryBusy        Category = "busy"
	CategoryInterrupted Category = "interrupted"
)

// Anomaly is a structured error value with a category, a human-readable
// message, and optional extras (e.g. a validation explain map).
type Anomaly struct {
	Category Category       `json:"category"`
	Message  string         `json:"message"`
	Explain  any            `json:"explain,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
	cause    error
}

// Error implements the error interface.
func (a *Anomaly) Error() string {
	if a.cause != nil {
		return fmt.Sprintf("%s: %s: %v", a.Category, a.Message, a.cause)
	}
	return fmt.Sprintf("%s: %s", a.Category, a.Message)
}

// Unwrap exposes the wrapped cause, if any.
func (a *Anomaly) Unwrap() error {
	return a.cause
}

// WithCause attaches an underlying error without changing the anomaly
// reported to callers.
func (a *Anomaly) WithCause(err error) *Anomaly {
	a.cause = err
	return a
}

// WithExplain attaches a machine-readable explanation, typically a
// field → problem map produced by schema validation.
func (a *Anomaly) WithExplain(explain any) *Anomaly {
	a.Explain = explain
	return a
}

// New creates an anomaly with the given category and message.
func New(category Category, message string) *Anomaly {
	return &Anomaly{Category: category, Message: message}
}

// Incorrect signals invalid input; the caller can fix the request.
func Incorrect(message string) *Anomaly {
	return New(CategoryIncorrect, message)
}

// NotFound signals an unknown name or missing resource.
func NotFound(message string) *Anomaly {
	return New(CategoryNotFound, message)
}

// Forbidden signals a request the caller is not allowed to make.
func Forbidden(message string) *Anomaly {
	return New(CategoryForbidden, message)
}

// Conflict signals a request that lost a race with concurrent state.
func Conflict(message string) *Anomaly {
	return New(CategoryConflict, message)
}

// Fault signals an internal error; retrying without a fix is unlikely
// to help.
func Fault(message string) *Anomaly {
	return New(CategoryFault, message)
}

// Unavailable signals a dependency that is temporarily unreachable.
func Unavailable(message string) *Anomaly {
	return New(CategoryUnavailable, message)
}

// Busy signals a resource under too much load to serve the request.
func Busy(message string) *Anomaly {
	return New(CategoryBusy, message)
}

// Interrupted signals processing cut short, e.g. by shutdown.
func Interrupted(message string) *Anomaly {
	return New(CategoryInterrupted, message)
}

// From returns err as an *Anomaly, converting plain errors to faults.
// A nil err returns nil.
func From(err error) *Anomaly {
	if err == nil {
		return nil
	}
	var a *Anomaly
	if errors.As(err, &a) {
		return a
	}
	return Fault(err.Error()).WithCause(err)
}

// CategoryOf extracts the category of err, defaulting to fault for
// non-anomaly errors.
func CategoryOf(err error) Category {
	var a *Anomaly
	if errors.As(err, &a) {
		return a.Category
	}
	return CategoryFault
}

// Is reports whether err is an anomaly of the given category.
func Is(err error, category Category) bool {
	var a *Anomaly
	return errors.As(err, &a) && a.Category == category
}
