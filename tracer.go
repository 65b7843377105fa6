package jcl

import "context"

// Tracer creates spans around pipeline stages. The observer package provides
// an OpenTelemetry implementation; a nil Tracer disables tracing.
type Tracer interface {
	// Start returns a child context carrying the new span. Callers must End it.
	Start(ctx context.Context, name string, attrs ...SpanAttr) (context.Context, Span)
}

// Span is one traced operation.
type Span interface {
	SetAttr(attrs ...SpanAttr)
	Event(name string, attrs ...SpanAttr)
	Error(err error)
	End()
}

// SpanAttr is a key-value attribute attached to a span or event.
type SpanAttr struct {
	Key   string
	Value any
}

func StringAttr(k, v string) SpanAttr { return SpanAttr{Key: k, Value: v} }

func IntAttr(k string, v int) SpanAttr { return SpanAttr{Key: k, Value: v} }

func BoolAttr(k string, v bool) SpanAttr { return SpanAttr{Key: k, Value: v} }

type nopSpan struct{}

func (nopSpan) SetAttr(...SpanAttr)        {}
func (nopSpan) Event(string, ...SpanAttr) {}
func (nopSpan) Error(error)                {}
func (nopSpan) End()                       {}

// startSpan starts a span on t, or returns a no-op span when t is nil.
func startSpan(ctx context.Context, t Tracer, name string, attrs ...SpanAttr) (context.Context, Span) {
	if t == nil {
		return ctx, nopSpan{}
	}
	return t.Start(ctx, name, attrs...)
}
