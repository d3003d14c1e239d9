package logx

// tag：日志类别
const (
	TagUndef = "undef"

	// 入站请求 / 出站调用
	TagRequestIn   = "request_in"
	TagRequestOut  = "request_out"
	TagHttpSuccess = "http_success"
	TagHttpFailure = "http_failure"

	// span 生命周期与上报
	TagSpanFinished    = "span_finished"
	TagSpanDropped     = "span_dropped"
	TagReporterFailure = "reporter_failure"

	TagCommand = "command"
)

// 字段名
const (
	Cost = "cost"
	Msg  = "msg"
	Err  = "err"

	Remote   = "remote"
	Method   = "method"
	URL      = "url"
	Path     = "path"
	Query    = "query"
	Body     = "body"
	Response = "response"

	TraceID = "trace_id"
	SpanID  = "span_id"
	UUID    = "uuid"

	Attempts    = "attempts"
	MaxAttempts = "max_attempts"
)
