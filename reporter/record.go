package reporter

import (
	"github.com/imattdu/tracectx/tracex"
)

// RefChildOf 父子关系
const RefChildOf = "CHILD_OF"

// Batch 一次发送的一组 span（UDP 一个包 / HTTP 一次请求）
type Batch struct {
	Service string    `json:"service"`
	Spans   []*Record `json:"spans"`
}

// Record span 的传输格式，时间单位为微秒
type Record struct {
	TraceID       string            `json:"traceId"`
	SpanID        string            `json:"spanId"`
	ParentSpanID  string            `json:"parentSpanId,omitempty"`
	Flags         byte              `json:"flags"`
	OperationName string            `json:"operationName"`
	StartTime     int64             `json:"startTime"`
	Duration      int64             `json:"duration"`
	Tags          []tracex.Tag      `json:"tags,omitempty"`
	Logs          []tracex.LogEntry `json:"logs,omitempty"`
	References    []*Reference      `json:"references,omitempty"`
}

type Reference struct {
	RefType string `json:"refType"`
	TraceID string `json:"traceId"`
	SpanID  string `json:"spanId"`
}

// NewRecord 只在 span 结束后调用
func NewRecord(s *tracex.Span) *Record {
	r := &Record{
		TraceID:       s.TraceID,
		SpanID:        s.SpanID,
		ParentSpanID:  s.ParentID,
		Flags:         s.Flags,
		OperationName: s.Name,
		StartTime:     s.Start.UnixMicro(),
		Duration:      s.Duration().Microseconds(),
		Tags:          s.Tags(),
		Logs:          s.Logs(),
	}
	if s.ParentID != "" {
		r.References = []*Reference{{RefType: RefChildOf, TraceID: s.TraceID, SpanID: s.ParentID}}
	}
	return r
}

func newBatch(service string, spans []*tracex.Span) *Batch {
	b := &Batch{Service: service, Spans: make([]*Record, 0, len(spans))}
	for _, s := range spans {
		b.Spans = append(b.Spans, NewRecord(s))
	}
	return b
}
