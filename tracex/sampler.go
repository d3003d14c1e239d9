package tracex

import (
	"hash/fnv"
	"math"
	"strconv"

	"golang.org/x/time/rate"
)

const (
	SamplerTypeConst         = "const"
	SamplerTypeProbabilistic = "probabilistic"
	SamplerTypeRateLimiting  = "rate-limiting"
	SamplerTypeAdaptive      = "adaptive"

	TagSamplerType  = "sampler.type"
	TagSamplerParam = "sampler.param"
)

// Sampler 根 span 的采样决策，对 tracer 来说是不透明的能力
type Sampler interface {
	IsSampled(traceID, operation string) bool
	Type() string
	Param() float64
}

// -------------------- const --------------------

type ConstSampler struct {
	decision bool
}

func NewConstSampler(decision bool) *ConstSampler {
	return &ConstSampler{decision: decision}
}

func (s *ConstSampler) IsSampled(string, string) bool { return s.decision }
func (s *ConstSampler) Type() string                  { return SamplerTypeConst }

func (s *ConstSampler) Param() float64 {
	if s.decision {
		return 1
	}
	return 0
}

// -------------------- probabilistic --------------------

// maxRandom trace id 低 64 位去掉最高位后与 boundary 比较
const maxRandom = ^(uint64(1) << 63)

// ProbabilisticSampler 由 trace id 决定，同一个 trace 在各进程得到相同结果
type ProbabilisticSampler struct {
	rate     float64
	boundary uint64
}

func NewProbabilisticSampler(r float64) *ProbabilisticSampler {
	r = math.Max(0, math.Min(1, r))
	return &ProbabilisticSampler{
		rate:     r,
		boundary: uint64(float64(maxRandom) * r),
	}
}

func (s *ProbabilisticSampler) IsSampled(traceID, _ string) bool {
	return traceLow(traceID)&maxRandom < s.boundary
}

func (s *ProbabilisticSampler) Type() string   { return SamplerTypeProbabilistic }
func (s *ProbabilisticSampler) Param() float64 { return s.rate }

// traceLow 取 trace id 的低 64 位；不是 hex 时退化成 hash
func traceLow(traceID string) uint64 {
	low := traceID
	if len(low) > 16 {
		low = low[len(low)-16:]
	}
	if v, err := strconv.ParseUint(low, 16, 64); err == nil {
		return v
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(traceID))
	return h.Sum64()
}

// -------------------- rate-limiting --------------------

// RateLimitingSampler 每秒最多采样 n 个 trace
type RateLimitingSampler struct {
	perSecond float64
	limiter   *rate.Limiter
}

func NewRateLimitingSampler(perSecond float64) *RateLimitingSampler {
	if perSecond < 0 {
		perSecond = 0
	}
	burst := int(math.Ceil(perSecond))
	if burst < 1 {
		burst = 1
	}
	return &RateLimitingSampler{
		perSecond: perSecond,
		limiter:   rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (s *RateLimitingSampler) IsSampled(string, string) bool {
	if s.perSecond == 0 {
		return false
	}
	return s.limiter.Allow()
}

func (s *RateLimitingSampler) Type() string   { return SamplerTypeRateLimiting }
func (s *RateLimitingSampler) Param() float64 { return s.perSecond }

// -------------------- adaptive --------------------

// AdaptiveSampler 概率采样未命中时，由限速采样兜底保证最低吞吐
type AdaptiveSampler struct {
	lowerBound    *RateLimitingSampler
	probabilistic *ProbabilisticSampler
}

func NewAdaptiveSampler(lowerBound *RateLimitingSampler, probabilistic *ProbabilisticSampler) *AdaptiveSampler {
	return &AdaptiveSampler{lowerBound: lowerBound, probabilistic: probabilistic}
}

func (s *AdaptiveSampler) IsSampled(traceID, operation string) bool {
	if s.probabilistic.IsSampled(traceID, operation) {
		return true
	}
	return s.lowerBound.IsSampled(traceID, operation)
}

func (s *AdaptiveSampler) Type() string   { return SamplerTypeAdaptive }
func (s *AdaptiveSampler) Param() float64 { return s.probabilistic.Param() }
