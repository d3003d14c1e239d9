package reporter

import (
	"context"

	"github.com/imattdu/tracectx/logx"
	"github.com/imattdu/tracectx/tracex"
)

// logReporter 每个 span 一行 logx 日志，适合本地调试
type logReporter struct {
	opts options
}

// NewLog l 为 nil 时使用 logx 全局 logger
func NewLog(l logx.Logger) tracex.Reporter {
	o := defaultOptions()
	o.logger = l
	return &logReporter{opts: o}
}

func (r *logReporter) Report(s *tracex.Span) {
	if s == nil {
		return
	}
	rec := NewRecord(s)
	r.opts.info(context.Background(), logx.TagSpanFinished, rec.OperationName,
		logx.TraceID, rec.TraceID,
		logx.SpanID, rec.SpanID,
		"parent_id", rec.ParentSpanID,
		logx.Cost, s.Duration().Milliseconds(),
		"tags", rec.Tags,
		"logs", rec.Logs,
	)
}

func (r *logReporter) Flush(context.Context) error { return nil }
func (r *logReporter) Close(context.Context) error { return nil }
