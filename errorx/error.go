package errorx

import (
	"fmt"
	"maps"
	"strings"
)

// Error 统一错误类型。
// Service 是出错模块，Op 是出错的操作（finish / inject / end ...），
// 两者拼成 "tracex.finish" 这样的前缀。
type Error struct {
	Code    CodeEntry      `json:"code"`
	Type    CodeEntry      `json:"type"` // ErrTypeSys / ErrTypeUsage
	Service CodeEntry      `json:"service"`
	Op      string         `json:"op,omitempty"`
	Message string         `json:"message"` // 覆盖 Code.Message
	Cause   error          `json:"-"`
	Fields  map[string]any `json:"fields,omitempty"`
}

var _ error = (*Error)(nil)

// Error 形如 "tracex.finish: no active span (code=3002): cause"
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(e.Service.Message)
	if e.Op != "" {
		b.WriteByte('.')
		b.WriteString(e.Op)
	}
	msg := e.Message
	if msg == "" {
		msg = e.Code.Message
	}
	fmt.Fprintf(&b, ": %s (code=%d)", msg, e.Code.Code)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Msg 不带前缀和 cause 的文案
func (e *Error) Msg() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Code.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is 按错误码比较，errors.Is(err, tracex.ErrNoSpan) 对重新构造的实例同样成立
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code.Code == t.Code.Code
}

// -------------------- Option --------------------

type Option func(*Error)

func WithMessage(msg string) Option {
	return func(e *Error) { e.Message = msg }
}

func WithMessagef(format string, args ...any) Option {
	return func(e *Error) { e.Message = fmt.Sprintf(format, args...) }
}

func WithOp(op string) Option {
	return func(e *Error) { e.Op = op }
}

func WithCause(err error) Option {
	return func(e *Error) { e.Cause = err }
}

func WithType(t CodeEntry) Option {
	return func(e *Error) { e.Type = t }
}

func WithService(s CodeEntry) Option {
	return func(e *Error) { e.Service = s }
}

func WithField(k string, v any) Option {
	return func(e *Error) {
		if e.Fields == nil {
			e.Fields = make(map[string]any)
		}
		e.Fields[k] = v
	}
}

func WithFields(kv map[string]any) Option {
	return func(e *Error) {
		if len(kv) == 0 {
			return
		}
		if e.Fields == nil {
			e.Fields = make(map[string]any, len(kv))
		}
		maps.Copy(e.Fields, kv)
	}
}

// -------------------- 构造函数 --------------------

func New(code CodeEntry, opts ...Option) *Error {
	e := &Error{
		Code:    code,
		Type:    ErrTypeSys,
		Service: ServiceDefault,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func Newf(code CodeEntry, f string, args ...any) *Error {
	return New(code, WithMessagef(f, args...))
}

// NewUsage 调用顺序错误
func NewUsage(code CodeEntry, opts ...Option) *Error {
	opts = append([]Option{WithType(ErrTypeUsage)}, opts...)
	return New(code, opts...)
}

// NewSys 系统错误
func NewSys(code CodeEntry, opts ...Option) *Error {
	opts = append([]Option{WithType(ErrTypeSys)}, opts...)
	return New(code, opts...)
}
