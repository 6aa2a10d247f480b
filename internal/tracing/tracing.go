package tracing

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultCapacity is the number of finished spans kept in memory.
const DefaultCapacity = 500

// CollectingExporter keeps the most recent finished spans in memory.
type CollectingExporter struct {
	mu       sync.Mutex
	capacity int
	spans    []sdktrace.ReadOnlySpan
}

// NewCollectingExporter creates an exporter holding at most capacity spans.
func NewCollectingExporter(capacity int) *CollectingExporter {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &CollectingExporter{capacity: capacity}
}

// ExportSpans appends spans, dropping the oldest beyond capacity.
func (e *CollectingExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	e.spans = append(e.spans, spans...)
	if over := len(e.spans) - e.capacity; over > 0 {
		e.spans = append([]sdktrace.ReadOnlySpan(nil), e.spans[over:]...)
	}
	e.mu.Unlock()
	return nil
}

// Shutdown is a no-op; collected spans stay readable.
func (e *CollectingExporter) Shutdown(_ context.Context) error { return nil }

// Spans returns a copy of the collected spans, oldest first.
func (e *CollectingExporter) Spans() []sdktrace.ReadOnlySpan {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]sdktrace.ReadOnlySpan(nil), e.spans...)
}

// SpanTiming is a flattened view of a finished span.
type SpanTiming struct {
	Name       string            `json:"name"`
	Start      time.Time         `json:"start"`
	DurationMS float64           `json:"duration_ms"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Timings returns the collected spans, slowest first.
func (e *CollectingExporter) Timings() []SpanTiming {
	spans := e.Spans()
	out := make([]SpanTiming, 0, len(spans))
	for _, s := range spans {
		t := SpanTiming{
			Name:       s.Name(),
			Start:      s.StartTime(),
			DurationMS: float64(s.EndTime().Sub(s.StartTime()).Microseconds()) / 1000,
		}
		if attrs := s.Attributes(); len(attrs) > 0 {
			t.Attributes = make(map[string]string, len(attrs))
			for _, kv := range attrs {
				t.Attributes[string(kv.Key)] = kv.Value.Emit()
			}
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DurationMS > out[j].DurationMS })
	return out
}

// Init installs the global tracer provider. When disabled a no-op provider is
// installed and the exporter is nil.
func Init(enabled bool) (*CollectingExporter, func(context.Context) error) {
	if !enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return nil, func(context.Context) error { return nil }
	}

	exp := NewCollectingExporter(DefaultCapacity)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exp)),
	)
	otel.SetTracerProvider(tp)
	return exp, tp.Shutdown
}

// Tracer returns the service tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer("commit-reporter")
}
