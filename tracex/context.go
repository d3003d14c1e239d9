package tracex

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/imattdu/tracectx/errorx"
	"github.com/imattdu/tracectx/logclean"
)

// 每个工作单元的私有标签
const (
	TagCorrelationID = "uuid"
	TagEnvironment   = "environment"
	TagError         = "error"

	LevelInfo  = "info"
	LevelError = "error"
)

// State Context 的生命周期状态
type State int

const (
	StateUnbound  State = iota // 没有 tracer
	StateBound                 // 有 tracer，没有 span
	StateActive                // span 进行中
	StateFinished              // span 已结束
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBound:
		return "bound"
	case StateActive:
		return "active"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Context 一个工作单元（请求 / 命令）的追踪上下文，是该工作单元 span 身份的唯一持有者。
// 一个 Context 只在一个工作单元内使用，不能在并发的工作单元之间共享。
type Context struct {
	tracer     Tracer
	builder    TracerBuilder
	codec      Codec
	cleaner    *logclean.Cleaner
	propagator *TagPropagator
	env        string

	span          *Span
	correlationID string
	finished      bool
	ambient       *Ambient
}

type Option func(*Context)

// WithTracer 构造时直接绑定 tracer，Start 变为空操作
func WithTracer(t Tracer) Option {
	return func(c *Context) { c.tracer = t }
}

// WithBuilder Start 时通过 builder 取得 tracer
func WithBuilder(b TracerBuilder) Option {
	return func(c *Context) { c.builder = b }
}

func WithCodec(codec Codec) Option {
	return func(c *Context) { c.codec = codec }
}

// WithCleaner 不设置时日志值不截断
func WithCleaner(cl *logclean.Cleaner) Option {
	return func(c *Context) { c.cleaner = cl }
}

func WithEnvironment(env string) Option {
	return func(c *Context) { c.env = env }
}

func WithPropagator(p *TagPropagator) Option {
	return func(c *Context) { c.propagator = p }
}

func New(opts ...Option) *Context {
	c := &Context{codec: DefaultCodec}
	for _, opt := range opts {
		opt(c)
	}
	if c.propagator == nil {
		c.propagator = NewTagPropagator()
	}
	return c
}

// -------------------- 生命周期 --------------------

// Start 绑定 tracer，幂等
func (c *Context) Start() error {
	if c.tracer != nil {
		return nil
	}
	if c.builder == nil {
		return usageErr(ErrNoTracer, "start")
	}
	t, err := c.builder.Build()
	if err != nil {
		return errorx.Wrap(err, errorx.ErrNoTracer,
			errorx.WithService(errorx.ServiceTracex),
			errorx.WithOp("start"))
	}
	if t == nil {
		return usageErr(ErrNoTracer, "start")
	}
	c.tracer = t
	return nil
}

// Parse 由入站数据创建 span（根或 child-of），并打上 uuid / environment 私有标签。
// 已经有 span 时会被替换，旧 span 不会上报。
func (c *Context) Parse(name string, data Bag) error {
	if err := c.assertTracer("parse"); err != nil {
		return err
	}
	span := NewExtractor(c.tracer, c.propagator).Extract(name, data)
	c.activate(span)
	return nil
}

// FromUberID 入站只有一个 wire id 时使用：不足 4 段补 0，无法解码时创建根 span
func (c *Context) FromUberID(name, wireID string) error {
	if err := c.assertTracer("from_uber_id"); err != nil {
		return err
	}
	var parent *SpanContext
	if sc, err := c.codec.Decode(PadWireID(wireID)); err == nil {
		sc.Remote = true
		parent = &sc
	}
	c.activate(c.tracer.Start(name, nil, parent))
	return nil
}

func (c *Context) activate(span *Span) {
	c.span = span
	c.finished = false
	c.correlationID = newCorrelationID()
	span.SetTag(TagCorrelationID, c.correlationID)
	span.SetTag(TagEnvironment, c.env)
	c.propagator.Apply(span)
}

// Finish 结束 span 并通知传输层发送。
// 没有 span 时返回 ErrNoSpan；重复调用是空操作；传输失败不会返回给调用方。
func (c *Context) Finish(ctx context.Context) error {
	if err := c.assertTracer("finish"); err != nil {
		return err
	}
	if err := c.assertSpan("finish"); err != nil {
		return err
	}
	if c.finished {
		return nil
	}
	c.finished = true
	c.tracer.Finish(c.span)
	_ = c.tracer.Flush(ctx)
	return nil
}

// -------------------- 标签 / 日志 --------------------

// SetPrivateTags 只写到本地 span，不向下游透传
func (c *Context) SetPrivateTags(tags map[string]any) error {
	if err := c.assertActive("set_private_tags"); err != nil {
		return err
	}
	c.span.SetTags(tags)
	return nil
}

// SetPropagatedTags 写到 span，同时进入之后每一次 Inject
func (c *Context) SetPropagatedTags(tags map[string]string) error {
	if err := c.assertActive("set_propagated_tags"); err != nil {
		return err
	}
	c.propagator.AddTags(tags)
	c.span.SetTags(toAnyMap(tags))
	return nil
}

// Log 以 info 级别写 span 日志
func (c *Context) Log(fields map[string]any) error {
	return c.LogLevel(LevelInfo, fields)
}

// LogLevel 字段先经过 LogCleaner，每个字段一条日志（按 key 排序）
func (c *Context) LogLevel(level string, fields map[string]any) error {
	if err := c.assertActive("log"); err != nil {
		return err
	}
	cleaned := c.clean(fields)
	keys := make([]string, 0, len(cleaned))
	for k := range cleaned {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c.span.Log(level, k, cleaned[k])
	}
	return nil
}

func (c *Context) clean(fields map[string]any) map[string]string {
	if c.cleaner != nil {
		return c.cleaner.CleanFields(fields)
	}
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = logclean.ValueOf(v).Render()
	}
	return out
}

// -------------------- 出站 --------------------

// Inject 写入 wire id，再合并透传标签；data 里其它 key 不受影响
func (c *Context) Inject(data Bag) error {
	if err := c.assertActive("inject"); err != nil {
		return err
	}
	if err := c.tracer.Inject(c.span.Context(), FormatTextMap, data); err != nil {
		return err
	}
	return c.propagator.Inject(data)
}

// -------------------- 访问器 --------------------

func (c *Context) State() State {
	switch {
	case c.tracer == nil:
		return StateUnbound
	case c.span == nil:
		return StateBound
	case c.finished:
		return StateFinished
	default:
		return StateActive
	}
}

func (c *Context) Span() *Span                { return c.span }
func (c *Context) Tracer() Tracer             { return c.tracer }
func (c *Context) Propagator() *TagPropagator { return c.propagator }
func (c *Context) CorrelationID() string      { return c.correlationID }
func (c *Context) Environment() string        { return c.env }

func (c *Context) TraceID() string {
	if c.span == nil {
		return ""
	}
	return c.span.TraceID
}

func (c *Context) SpanID() string {
	if c.span == nil {
		return ""
	}
	return c.span.SpanID
}

// -------------------- 状态检查 --------------------

func (c *Context) assertTracer(op string) error {
	if c.tracer == nil {
		return usageErr(ErrNoTracer, op)
	}
	return nil
}

func (c *Context) assertSpan(op string) error {
	if c.span == nil {
		return usageErr(ErrNoSpan, op)
	}
	return nil
}

func (c *Context) assertActive(op string) error {
	if err := c.assertTracer(op); err != nil {
		return err
	}
	return c.assertSpan(op)
}

// newCorrelationID 按时间有序的 UUID v7
func newCorrelationID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
