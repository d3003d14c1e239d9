package tracex

import (
	"context"
	"os"
	"time"

	"github.com/imattdu/tracectx/errorx"
)

// Format inject / extract 使用的载体格式
type Format string

const (
	FormatTextMap     Format = "text_map"
	FormatHTTPHeaders Format = "http_headers"
)

// Tracer 创建 / 结束 span，负责上下文的注入与提取。
// Context 从不直接构造 span，一律通过 Tracer。
type Tracer interface {
	Start(name string, tags map[string]any, parent *SpanContext) *Span
	Finish(span *Span)
	Inject(sc SpanContext, format Format, data Bag) error
	Extract(format Format, data Bag) (SpanContext, bool)
	// Flush 把已结束的 span 交给传输层，不等待结果
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}

// Reporter 传输层：接收已结束的 span。失败由实现自己处理，不向业务抛出。
type Reporter interface {
	Report(span *Span)
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}

// TracerBuilder 由配置构造进程级 tracer
type TracerBuilder interface {
	Build() (Tracer, error)
}

// BuilderFunc 方便测试和简单场景
type BuilderFunc func() (Tracer, error)

func (f BuilderFunc) Build() (Tracer, error) { return f() }

// NullReporter 丢弃所有 span
type NullReporter struct{}

func (NullReporter) Report(*Span)                {}
func (NullReporter) Flush(context.Context) error { return nil }
func (NullReporter) Close(context.Context) error { return nil }

// -------------------- 默认实现 --------------------

type TracerOption func(*tracer)

func WithSampler(s Sampler) TracerOption {
	return func(t *tracer) { t.sampler = s }
}

func WithReporter(r Reporter) TracerOption {
	return func(t *tracer) { t.reporter = r }
}

func WithTracerCodec(c Codec) TracerOption {
	return func(t *tracer) { t.codec = c }
}

// WithTracerTags 每个 span 启动时都会带上的进程级标签
func WithTracerTags(tags map[string]any) TracerOption {
	return func(t *tracer) {
		for k, v := range tags {
			t.tags[k] = v
		}
	}
}

func WithClock(now func() time.Time) TracerOption {
	return func(t *tracer) { t.now = now }
}

type tracer struct {
	service  string
	sampler  Sampler
	reporter Reporter
	codec    Codec
	tags     map[string]any
	now      func() time.Time
}

// NewTracer 默认 const(true) 采样、丢弃型 reporter
func NewTracer(service string, opts ...TracerOption) Tracer {
	t := &tracer{
		service:  service,
		sampler:  NewConstSampler(true),
		reporter: NullReporter{},
		codec:    DefaultCodec,
		tags:     make(map[string]any),
		now:      time.Now,
	}
	if host, err := os.Hostname(); err == nil {
		t.tags["hostname"] = host
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start parent 为空（或无效）时创建根 span。
// 只有根 span 和没有采样决定（flags 为 0）的远端 parent 才由本地 sampler 决定；
// 本地 child 原样继承 parent 的 flags
func (t *tracer) Start(name string, tags map[string]any, parent *SpanContext) *Span {
	span := &Span{
		SpanID:  newSpanID(),
		Name:    name,
		Service: t.service,
		Start:   t.now(),
	}
	if parent != nil && parent.IsValid() {
		span.TraceID = parent.TraceID
		span.ParentID = parent.SpanID
		span.Flags = parent.Flags
	} else {
		span.TraceID = newTraceID()
	}

	decide := parent == nil || !parent.IsValid() || parent.Remote
	if decide && span.Flags&(FlagSampled|FlagDebug) == 0 && t.sampler.IsSampled(span.TraceID, name) {
		span.Flags |= FlagSampled
		span.SetTag(TagSamplerType, t.sampler.Type())
		span.SetTag(TagSamplerParam, t.sampler.Param())
	}

	span.SetTags(t.tags)
	span.SetTags(tags)
	return span
}

// Finish 未采样的 span 不上报
func (t *tracer) Finish(span *Span) {
	if span == nil || !span.finish(t.now()) {
		return
	}
	if span.IsSampled() {
		t.reporter.Report(span)
	}
}

func (t *tracer) Inject(sc SpanContext, format Format, data Bag) error {
	if data == nil {
		return errorx.NewUsage(errorx.ErrDefault,
			errorx.WithService(errorx.ServiceTracex),
			errorx.WithMessage("nil data bag"))
	}
	switch format {
	case FormatTextMap, FormatHTTPHeaders:
		data[WireIDKey] = t.codec.Encode(sc)
		return nil
	default:
		return errorx.NewUsage(errorx.ErrDefault,
			errorx.WithService(errorx.ServiceTracex),
			errorx.WithMessage("unsupported format"),
			errorx.WithField("format", string(format)))
	}
}

// Extract 缺失或格式错误都返回 false，不报错
func (t *tracer) Extract(format Format, data Bag) (SpanContext, bool) {
	if format != FormatTextMap && format != FormatHTTPHeaders {
		return SpanContext{}, false
	}
	id, ok := data.WireID()
	if !ok {
		return SpanContext{}, false
	}
	sc, err := t.codec.Decode(id)
	if err != nil {
		return SpanContext{}, false
	}
	sc.Remote = true
	return sc, true
}

func (t *tracer) Flush(ctx context.Context) error {
	return t.reporter.Flush(ctx)
}

func (t *tracer) Close(ctx context.Context) error {
	return t.reporter.Close(ctx)
}
