package tracex

import "github.com/imattdu/tracectx/errorx"

var (
	// ErrNoTracer 还没有绑定 tracer（没有调用 Start）
	ErrNoTracer = errorx.NewUsage(errorx.ErrNoTracer, errorx.WithService(errorx.ServiceTracex))
	// ErrNoSpan 绑定了 tracer，但还没有 Parse / FromUberID
	ErrNoSpan = errorx.NewUsage(errorx.ErrNoSpan, errorx.WithService(errorx.ServiceTracex))
	// ErrMalformedWireID 只在 Codec 层出现，Context 会降级为根 span
	ErrMalformedWireID = errorx.NewSys(errorx.ErrMalformedWireID, errorx.WithService(errorx.ServiceTracex))
)

func usageErr(base *errorx.Error, op string) error {
	return errorx.Wrap(base, base.Code, errorx.WithOp(op))
}
