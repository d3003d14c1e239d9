package tracex

import (
	"context"

	"github.com/imattdu/tracectx/cctx"
)

// AmbientKey cctx 中存放 *Ambient 的 key
const AmbientKey = "tracex.ambient"

// WithAmbient 把工作单元的 Ambient 写入 ctx
func WithAmbient(ctx context.Context, a *Ambient) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return cctx.With(ctx, AmbientKey, a)
}

// AmbientFromContext 取工作单元的 Ambient
func AmbientFromContext(ctx context.Context) *Ambient {
	if ctx == nil {
		return nil
	}
	a, _ := cctx.GetAs[*Ambient](ctx, AmbientKey)
	return a
}

// FromContext 取当前生效的 Context（子 Context 运行期间返回子 Context）
func FromContext(ctx context.Context) *Context {
	return AmbientFromContext(ctx).Current()
}

// SpanFromContext 取当前 span
func SpanFromContext(ctx context.Context) *Span {
	if c := FromContext(ctx); c != nil {
		return c.Span()
	}
	return nil
}

// TraceIDFromContext 直接取 TraceID（没有则返回空串）
func TraceIDFromContext(ctx context.Context) string {
	if s := SpanFromContext(ctx); s != nil {
		return s.TraceID
	}
	return ""
}

// SpanIDFromContext 取 SpanID
func SpanIDFromContext(ctx context.Context) string {
	if s := SpanFromContext(ctx); s != nil {
		return s.SpanID
	}
	return ""
}

// InjectContext 把当前 Context 注入出站数据包；ctx 中没有处于活动状态的 Context 时返回 ErrNoSpan
func InjectContext(ctx context.Context, data Bag) error {
	c := FromContext(ctx)
	if c == nil {
		return usageErr(ErrNoSpan, "inject")
	}
	return c.Inject(data)
}
