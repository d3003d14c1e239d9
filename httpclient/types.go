package httpclient

import (
	"context"
	"net/http"
	"time"
)

// CallAttempt 单次尝试
type CallAttempt struct {
	Attempt   int           `json:"attempt"`
	Status    int           `json:"status"`
	Err       string        `json:"err,omitempty"`
	Cost      time.Duration `json:"cost"`
	WillRetry bool          `json:"will_retry"`
}

// CallStats 一次 Do 调用（含全部重试）
type CallStats struct {
	Method string `json:"method"`
	URL    string `json:"url"`
	Path   string `json:"path"`
	Query  string `json:"query"`

	// 请求体不超过 1KB 时才记录内容
	Body     string `json:"body,omitempty"`
	BodySize int    `json:"body_size,omitempty"`

	MaxAttempts int           `json:"max_attempts"`
	Attempts    int           `json:"attempts"`
	AttemptsLog []CallAttempt `json:"attempts_log,omitempty"`

	Status int           `json:"status"`
	Err    string        `json:"err,omitempty"`
	Cost   time.Duration `json:"cost"`

	// SpanID 开启 tracing 时本次调用的子 span
	SpanID string `json:"span_id,omitempty"`
}

// Failed 网络错误或 5xx
func (s *CallStats) Failed() bool {
	return s.Err != "" || s.Status >= http.StatusInternalServerError
}

// BizErrorDecoder 从响应体解析业务错误
type BizErrorDecoder func(statusCode int, body []byte) error

type StatsHook func(ctx context.Context, stats *CallStats)

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func cloneHeader(h http.Header) http.Header {
	if h == nil {
		return nil
	}
	return h.Clone()
}
