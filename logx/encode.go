package logx

import (
	"context"
	"log/slog"

	"github.com/imattdu/tracectx/cctx"
	"github.com/imattdu/tracectx/errorx"
	"github.com/imattdu/tracectx/tracex"
)

// encodeLog 字段顺序：tag、caller、trace、msg、cctx、kv；同名字段以后写的为准
func encodeLog(ctx context.Context, tag string, msg any, kv ...any) []slog.Attr {
	attrs := make([]slog.Attr, 0, 16)
	if tag != "" {
		attrs = append(attrs, slog.String("tag", tag))
	}

	c := getCaller()
	attrs = append(attrs,
		slog.String("file", c.file),
		slog.Int("line", c.line),
		slog.String("func", c.funcName),
	)

	attrs = appendTrace(attrs, ctx)
	attrs = appendMsg(attrs, msg)

	// Ambient 指针不输出
	for _, k := range cctx.Keys(ctx) {
		if k == tracex.AmbientKey {
			continue
		}
		v, _ := cctx.Get(ctx, k)
		attrs = append(attrs, slog.Any(k, v))
	}
	return appendKV(attrs, kv)
}

// appendTrace 当前生效 Context 的 trace_id / span_id / uuid
func appendTrace(attrs []slog.Attr, ctx context.Context) []slog.Attr {
	tc := tracex.FromContext(ctx)
	if tc == nil || tc.Span() == nil {
		return attrs
	}
	attrs = append(attrs,
		slog.String(TraceID, tc.TraceID()),
		slog.String(SpanID, tc.SpanID()),
	)
	if id := tc.CorrelationID(); id != "" {
		attrs = append(attrs, slog.String(UUID, id))
	}
	return attrs
}

// appendMsg map 平铺；错误链上有 *errorx.Error 时展开 code / service / op / fields
func appendMsg(attrs []slog.Attr, msg any) []slog.Attr {
	switch v := msg.(type) {
	case nil:
		return attrs
	case map[string]any:
		for k, vv := range v {
			attrs = append(attrs, slog.Any(k, vv))
		}
		return attrs
	case error:
		e, ok := errorx.From(v)
		if !ok {
			return append(attrs, slog.String("error", v.Error()))
		}
		attrs = append(attrs,
			slog.String("error", v.Error()),
			slog.Int("code", e.Code.Code),
			slog.String("err_type", e.Type.Message),
			slog.String("service", e.Service.Message),
			slog.String(Msg, e.Msg()),
		)
		if e.Op != "" {
			attrs = append(attrs, slog.String("op", e.Op))
		}
		for k, vv := range e.Fields {
			attrs = append(attrs, slog.Any(k, vv))
		}
		return attrs
	default:
		return append(attrs, slog.Any(Msg, v))
	}
}

// appendKV 成对解析，key 不是 string 的一对跳过，落单的最后一个丢弃
func appendKV(attrs []slog.Attr, kv []any) []slog.Attr {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			attrs = append(attrs, slog.Any(k, kv[i+1]))
		}
	}
	return attrs
}

// spanFields 镜像到 span 的字段：tag、msg 和额外 kv
func spanFields(tag string, msg any, kv ...any) map[string]any {
	fields := make(map[string]any, 2+len(kv)/2)
	if tag != "" {
		fields["tag"] = tag
	}
	switch v := msg.(type) {
	case nil:
	case error:
		fields["error"] = v.Error()
	case map[string]any:
		for k, vv := range v {
			fields[k] = vv
		}
	default:
		fields[Msg] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			fields[k] = kv[i+1]
		}
	}
	return fields
}
