package tracex

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Span 标志位
const (
	FlagSampled byte = 1 << 0
	FlagDebug   byte = 1 << 1
)

// Tag 是 span 上的一个标签，key 唯一，后写覆盖（保留首次写入的位置）
type Tag struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// LogEntry 是 span 上的一条日志
type LogEntry struct {
	Time  time.Time `json:"time"`
	Level string    `json:"level"`
	Key   string    `json:"key"`
	Value string    `json:"value"`
}

// Span 一次有名字、有起止时间的操作。
// 由 Tracer 创建；Finish 之后不可再修改，所有权交给 Reporter。
type Span struct {
	TraceID  string
	SpanID   string
	ParentID string
	Flags    byte
	Name     string
	Service  string

	Start time.Time
	End   time.Time

	mu     sync.Mutex
	tags   []Tag
	tagIdx map[string]int
	logs   []LogEntry
}

// -------------------- ID 生成 --------------------

// newTraceID 128 bit（32 位 hex）
func newTraceID() string {
	return randomHex(16)
}

// newSpanID 64 bit（16 位 hex）
func newSpanID() string {
	return randomHex(8)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return fallbackID(n)
	}
	// 全 0 是非法 id
	for _, c := range b {
		if c != 0 {
			return hex.EncodeToString(b)
		}
	}
	b[n-1] = 1
	return hex.EncodeToString(b)
}

func fallbackID(n int) string {
	b := make([]byte, n)
	seed := time.Now().UnixNano()
	for i := range b {
		b[i] = byte(int64(i*31+17) ^ (seed >> (uint(i) % 8 * 8)))
	}
	b[n-1] |= 1
	return hex.EncodeToString(b)
}
