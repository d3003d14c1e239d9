package errorx

import (
	"errors"
	"maps"

	"go.uber.org/multierr"
)

// Wrap err 已经是 *Error 时复制一份再应用 opts（哨兵错误不会被改写），code 被忽略；
// 否则以 err 为 cause 新建
func Wrap(err error, code CodeEntry, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	if e, ok := From(err); ok {
		cp := *e
		cp.Fields = maps.Clone(e.Fields)
		for _, opt := range opts {
			opt(&cp)
		}
		return &cp
	}
	return New(code, append([]Option{WithCause(err)}, opts...)...)
}

// From 错误链上第一个 *Error
func From(err error) (*Error, bool) {
	var e *Error
	if err == nil || !errors.As(err, &e) {
		return nil, false
	}
	return e, true
}

// All 展开 multierr 组合的错误，收集每一项上的 *Error
func All(err error) []*Error {
	var out []*Error
	for _, item := range multierr.Errors(err) {
		if e, ok := From(item); ok {
			out = append(out, e)
		}
	}
	return out
}

// ---------- 判断 ----------

// IsUsage 状态机被违反（NoTracer / NoSpan），不可重试
func IsUsage(err error) bool {
	e, ok := From(err)
	return ok && e.Type.Code == ErrTypeUsage.Code
}

func IsSys(err error) bool {
	e, ok := From(err)
	return ok && e.Type.Code == ErrTypeSys.Code
}

func HasCode(err error, code CodeEntry) bool {
	e, ok := From(err)
	return ok && e.Code.Code == code.Code
}

func ServiceOf(err error) CodeEntry {
	if e, ok := From(err); ok {
		return e.Service
	}
	return ServiceDefault
}

// OpOf 出错的操作名，未知时为空
func OpOf(err error) string {
	if e, ok := From(err); ok {
		return e.Op
	}
	return ""
}
