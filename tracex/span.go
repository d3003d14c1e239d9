package tracex

import (
	"sort"
	"time"
)

// Context 返回 span 的传播上下文
func (s *Span) Context() SpanContext {
	return SpanContext{
		TraceID:  s.TraceID,
		SpanID:   s.SpanID,
		ParentID: s.ParentID,
		Flags:    s.Flags,
	}
}

func (s *Span) IsSampled() bool {
	return s.Flags&FlagSampled != 0
}

// Duration 返回 span 耗时
func (s *Span) Duration() time.Duration {
	if s == nil || s.Start.IsZero() || s.End.IsZero() {
		return 0
	}
	return s.End.Sub(s.Start)
}

// Finished span 是否已结束
func (s *Span) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.End.IsZero()
}

// finish 只生效一次，返回本次是否真的结束了 span
func (s *Span) finish(at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.End.IsZero() {
		return false
	}
	s.End = at
	return true
}

// -------------------- 标签 --------------------

// SetTag 已结束的 span 忽略写入
func (s *Span) SetTag(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTagLocked(key, value)
}

// SetTags 按 key 排序写入，保证标签顺序稳定
func (s *Span) SetTags(tags map[string]any) {
	if len(tags) == 0 {
		return
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		s.setTagLocked(k, tags[k])
	}
}

func (s *Span) setTagLocked(key string, value any) {
	if !s.End.IsZero() {
		return
	}
	if s.tagIdx == nil {
		s.tagIdx = make(map[string]int)
	}
	if i, ok := s.tagIdx[key]; ok {
		s.tags[i].Value = value
		return
	}
	s.tagIdx[key] = len(s.tags)
	s.tags = append(s.tags, Tag{Key: key, Value: value})
}

// Tag 读取单个标签
func (s *Span) Tag(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.tagIdx[key]
	if !ok {
		return nil, false
	}
	return s.tags[i].Value, true
}

// Tags 返回标签副本（写入顺序）
func (s *Span) Tags() []Tag {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Tag, len(s.tags))
	copy(out, s.tags)
	return out
}

// -------------------- 日志 --------------------

// Log 追加一条日志，已结束的 span 忽略
func (s *Span) Log(level, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.End.IsZero() {
		return
	}
	s.logs = append(s.logs, LogEntry{
		Time:  time.Now(),
		Level: level,
		Key:   key,
		Value: value,
	})
}

// Logs 返回日志副本
func (s *Span) Logs() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}
