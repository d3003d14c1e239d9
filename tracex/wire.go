package tracex

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/imattdu/tracectx/errorx"
)

// wireFields trace_id:span_id:parent_id:flags
const wireFields = 4

// SpanContext 跨进程传递的 span 身份
type SpanContext struct {
	TraceID  string
	SpanID   string
	ParentID string
	Flags    byte
	// Remote 由入站数据解码而来；本地 child 的 parent 为 false
	Remote   bool
}

// IsValid 至少要有 trace id 和 span id 才能作为 parent
func (sc SpanContext) IsValid() bool {
	return sc.TraceID != "" && sc.SpanID != ""
}

func (sc SpanContext) IsSampled() bool {
	return sc.Flags&FlagSampled != 0
}

func (sc SpanContext) String() string {
	return DefaultCodec.Encode(sc)
}

// Codec 负责 wire id 与 SpanContext 的互相转换
type Codec interface {
	Encode(sc SpanContext) string
	Decode(wireID string) (SpanContext, error)
}

// TextCodec 冒号分隔的 4 段 hex 文本
type TextCodec struct{}

var DefaultCodec Codec = TextCodec{}

func (TextCodec) Encode(sc SpanContext) string {
	parent := sc.ParentID
	if parent == "" {
		parent = "0"
	}
	return fmt.Sprintf("%s:%s:%s:%x", sc.TraceID, sc.SpanID, parent, sc.Flags)
}

// Decode 必须正好 4 段；不足 4 段的请先 PadWireID
func (TextCodec) Decode(wireID string) (SpanContext, error) {
	parts := strings.Split(strings.TrimSpace(wireID), ":")
	if len(parts) != wireFields {
		return SpanContext{}, malformed(wireID, "field count")
	}
	for i := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(parts[i]))
	}

	traceID, spanID, parentID := parts[0], parts[1], parts[2]
	if !isHexID(traceID, 32) || isZeroID(traceID) {
		return SpanContext{}, malformed(wireID, "trace id")
	}
	if !isHexID(spanID, 16) || isZeroID(spanID) {
		return SpanContext{}, malformed(wireID, "span id")
	}
	if parentID != "" && !isHexID(parentID, 16) {
		return SpanContext{}, malformed(wireID, "parent id")
	}
	if isZeroID(parentID) {
		parentID = ""
	}
	flags, err := strconv.ParseUint(parts[3], 16, 8)
	if err != nil {
		return SpanContext{}, malformed(wireID, "flags")
	}

	return SpanContext{
		TraceID:  traceID,
		SpanID:   spanID,
		ParentID: parentID,
		Flags:    byte(flags),
	}, nil
}

// PadWireID 不足 4 段时在右侧补 "0"，多余的段不做处理
func PadWireID(wireID string) string {
	parts := strings.Split(wireID, ":")
	for len(parts) < wireFields {
		parts = append(parts, "0")
	}
	return strings.Join(parts, ":")
}

func malformed(wireID, field string) error {
	return errorx.Wrap(ErrMalformedWireID, errorx.ErrMalformedWireID,
		errorx.WithField("wire_id", wireID),
		errorx.WithField("field", field))
}

func isHexID(s string, maxLen int) bool {
	if s == "" || len(s) > maxLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

func isZeroID(s string) bool {
	return strings.Trim(s, "0") == ""
}
