package httpclient

import (
	"context"

	"github.com/imattdu/tracectx/logx"
)

// LogStats 把调用统计写成一条 logx 日志：成功 http_success，失败 http_failure
func LogStats(ctx context.Context, stats *CallStats) {
	if stats == nil {
		return
	}
	kv := []any{
		logx.Method, stats.Method,
		logx.URL, stats.URL,
		logx.Path, stats.Path,
		logx.Cost, stats.Cost.Milliseconds(),
		logx.Attempts, stats.Attempts,
		logx.MaxAttempts, stats.MaxAttempts,
		"status", stats.Status,
	}
	if stats.SpanID != "" {
		kv = append(kv, "call_span_id", stats.SpanID)
	}
	if stats.Failed() {
		kv = append(kv, logx.Err, stats.Err, "attempts_log", stats.AttemptsLog)
		logx.Warn(ctx, logx.TagHttpFailure, "http call failed", kv...)
		return
	}
	logx.Info(ctx, logx.TagHttpSuccess, "http call ok", kv...)
}
