package tracex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstSampler(t *testing.T) {
	on := NewConstSampler(true)
	off := NewConstSampler(false)
	assert.True(t, on.IsSampled("abc", "op"))
	assert.False(t, off.IsSampled("abc", "op"))
	assert.Equal(t, float64(1), on.Param())
	assert.Equal(t, float64(0), off.Param())
	assert.Equal(t, SamplerTypeConst, on.Type())
}

func TestProbabilisticSampler(t *testing.T) {
	assert.False(t, NewProbabilisticSampler(0).IsSampled("ffffffffffffffff", "op"))
	assert.True(t, NewProbabilisticSampler(1).IsSampled("0000000000000001", "op"))

	half := NewProbabilisticSampler(0.5)
	assert.True(t, half.IsSampled("00000000000000000000000000000001", "op"))
	assert.False(t, half.IsSampled("00000000000000007fffffffffffffff", "op"))

	// 同一个 trace id 的决策稳定
	id := newTraceID()
	assert.Equal(t, half.IsSampled(id, "a"), half.IsSampled(id, "b"))

	assert.Equal(t, float64(1), NewProbabilisticSampler(3).Param())
	assert.Equal(t, float64(0), NewProbabilisticSampler(-1).Param())
}

func TestRateLimitingSampler(t *testing.T) {
	s := NewRateLimitingSampler(2)
	assert.True(t, s.IsSampled("", "op"))
	assert.True(t, s.IsSampled("", "op"))
	assert.False(t, s.IsSampled("", "op"))

	assert.False(t, NewRateLimitingSampler(0).IsSampled("", "op"))
}

func TestAdaptiveSampler(t *testing.T) {
	s := NewAdaptiveSampler(NewRateLimitingSampler(1), NewProbabilisticSampler(0))
	assert.True(t, s.IsSampled("ffff", "op"))
	assert.False(t, s.IsSampled("ffff", "op"))
	assert.Equal(t, SamplerTypeAdaptive, s.Type())
}

func TestTracerSamplerTags(t *testing.T) {
	tr := NewTracer("svc", WithSampler(NewProbabilisticSampler(1)))
	span := tr.Start("op", nil, nil)
	assert.True(t, span.IsSampled())
	assert.Equal(t, SamplerTypeProbabilistic, tagValue(t, span, TagSamplerType))

	// 上游已经决定采样时不再打 sampler 标签
	child := tr.Start("op", nil, &SpanContext{TraceID: "a", SpanID: "b", Flags: FlagSampled})
	_, ok := child.Tag(TagSamplerType)
	assert.False(t, ok)
}
