package binding

import (
	"errors"
	"log/slog"
)

var (
	ErrNotBound         = errors.New("binding: not bound")
	ErrUnknownMode      = errors.New("binding: unknown mode")
	ErrAmbiguousPattern = errors.New("binding: ambiguous attribute pattern")
	ErrNoPatternMatch   = errors.New("binding: no attribute pattern matches")
	ErrInvalidPattern   = errors.New("binding: invalid attribute pattern")
	ErrNotTwoWay        = errors.New("binding: source updates need from-view or two-way mode")
)

// Reportable is anything an ErrorReporter can be told about: a Binding or
// a ListenerBinding.
type Reportable interface {
	String() string
}

// ErrorReporter receives evaluation and target errors. Reporting never
// stops other bindings.
type ErrorReporter interface {
	Report(source Reportable, err error)
}

type ReporterFunc func(source Reportable, err error)

func (f ReporterFunc) Report(source Reportable, err error) { f(source, err) }

// LogReporter logs errors at Error level.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) Report(source Reportable, err error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("binding failed", "expr", source.String(), "error", err)
}
