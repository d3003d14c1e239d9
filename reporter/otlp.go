package reporter

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/imattdu/tracectx/errorx"
	"github.com/imattdu/tracectx/tracex"
)

type otlpSender struct {
	exporter sdktrace.SpanExporter
	res      *resource.Resource
}

// NewOTLP 通过 OTLP/gRPC 发往 collector
func NewOTLP(ctx context.Context, endpoint string, insecure bool, opts ...Option) (tracex.Reporter, error) {
	clientOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if insecure {
		clientOpts = append(clientOpts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient(clientOpts...))
	if err != nil {
		return nil, errorx.Wrap(err, errorx.ErrReporter,
			errorx.WithService(errorx.ServiceReporter),
			errorx.WithMessage("create otlp exporter"),
			errorx.WithField("endpoint", endpoint))
	}
	return NewExporter(exporter, opts...), nil
}

// NewExporter 任意 sdktrace.SpanExporter 作为下游
func NewExporter(exporter sdktrace.SpanExporter, opts ...Option) tracex.Reporter {
	o := buildOptions(opts)
	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(o.service))
	return newBatcher("otlp", &otlpSender{exporter: exporter, res: res}, o)
}

func (s *otlpSender) send(ctx context.Context, spans []*tracex.Span) error {
	ro := make([]sdktrace.ReadOnlySpan, 0, len(spans))
	for _, sp := range spans {
		stub, ok := toStub(sp, s.res)
		if !ok {
			continue
		}
		ro = append(ro, stub.Snapshot())
	}
	if len(ro) == 0 {
		return nil
	}
	return s.exporter.ExportSpans(ctx, ro)
}

func (s *otlpSender) close(ctx context.Context) error {
	return s.exporter.Shutdown(ctx)
}

// toStub id 不是合法 hex 时返回 false
func toStub(sp *tracex.Span, res *resource.Resource) (tracetest.SpanStub, bool) {
	traceID, err := trace.TraceIDFromHex(leftPad(sp.TraceID, 32))
	if err != nil {
		return tracetest.SpanStub{}, false
	}
	spanID, err := trace.SpanIDFromHex(leftPad(sp.SpanID, 16))
	if err != nil {
		return tracetest.SpanStub{}, false
	}

	var flags trace.TraceFlags
	if sp.IsSampled() {
		flags = trace.FlagsSampled
	}
	stub := tracetest.SpanStub{
		Name: sp.Name,
		SpanContext: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID:    traceID,
			SpanID:     spanID,
			TraceFlags: flags,
		}),
		SpanKind:  trace.SpanKindInternal,
		StartTime: sp.Start,
		EndTime:   sp.End,
		Resource:  res,
	}
	if sp.ParentID != "" {
		if parentID, err := trace.SpanIDFromHex(leftPad(sp.ParentID, 16)); err == nil {
			stub.Parent = trace.NewSpanContext(trace.SpanContextConfig{
				TraceID:    traceID,
				SpanID:     parentID,
				TraceFlags: flags,
				Remote:     true,
			})
		}
	}

	for _, tag := range sp.Tags() {
		stub.Attributes = append(stub.Attributes, toAttribute(tag.Key, tag.Value))
		if tag.Key == tracex.TagError && tag.Value == true {
			stub.Status = sdktrace.Status{Code: codes.Error}
		}
	}
	for _, l := range sp.Logs() {
		stub.Events = append(stub.Events, sdktrace.Event{
			Name: l.Key,
			Time: l.Time,
			Attributes: []attribute.KeyValue{
				attribute.String("level", l.Level),
				attribute.String("value", l.Value),
			},
		})
	}
	return stub, true
}

func toAttribute(key string, v any) attribute.KeyValue {
	switch x := v.(type) {
	case string:
		return attribute.String(key, x)
	case bool:
		return attribute.Bool(key, x)
	case int:
		return attribute.Int(key, x)
	case int64:
		return attribute.Int64(key, x)
	case float64:
		return attribute.Float64(key, x)
	default:
		return attribute.String(key, fmt.Sprint(x))
	}
}

func leftPad(id string, n int) string {
	if len(id) >= n {
		return id
	}
	return strings.Repeat("0", n-len(id)) + id
}
