package provider

import (
	"context"
	"net"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/imattdu/tracectx/config"
	"github.com/imattdu/tracectx/errorx"
	"github.com/imattdu/tracectx/logx"
	"github.com/imattdu/tracectx/reporter"
	"github.com/imattdu/tracectx/tracex"
)

// defaultLowerBound adaptive 采样未配置 lower_bound 时每秒至少采样 1 个
const defaultLowerBound = 1

// Builder 按配置构造进程级 tracer，只构造一次
type Builder struct {
	cfg      *config.Config
	reg      prometheus.Registerer
	logger   logx.Logger
	reporter tracex.Reporter

	once   sync.Once
	mu     sync.Mutex
	tracer tracex.Tracer
	err    error
}

var _ tracex.TracerBuilder = (*Builder)(nil)

type Option func(*Builder)

// WithRegisterer reporter 指标注册到 reg；不设置时不注册
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(b *Builder) { b.reg = reg }
}

// WithLogger reporter 失败日志使用的 logger，不设置时用 logx 全局 logger
func WithLogger(l logx.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithReporter 替换配置中的 reporter
func WithReporter(r tracex.Reporter) Option {
	return func(b *Builder) { b.reporter = r }
}

func NewBuilder(cfg *config.Config, opts ...Option) *Builder {
	b := &Builder{cfg: cfg}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build 并发安全；失败结果同样会被缓存
func (b *Builder) Build() (tracex.Tracer, error) {
	b.once.Do(b.build)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tracer, b.err
}

// Built 已经构造好的 tracer，没有时返回 nil，不会触发构造
func (b *Builder) Built() tracex.Tracer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tracer
}

func (b *Builder) build() {
	t, err := b.newTracer()
	b.mu.Lock()
	b.tracer, b.err = t, err
	b.mu.Unlock()
}

func (b *Builder) newTracer() (tracex.Tracer, error) {
	sampler, err := NewSampler(b.cfg.Sampler)
	if err != nil {
		return nil, err
	}
	rep := b.reporter
	if rep == nil {
		rep, err = NewReporter(context.Background(), b.cfg, b.logger)
		if err != nil {
			return nil, err
		}
	}
	return tracex.NewTracer(b.cfg.ServiceName,
		tracex.WithSampler(sampler),
		tracex.WithReporter(reporter.Instrument(rep, b.reg)),
	), nil
}

// NewSampler type 为空时按 const 处理
func NewSampler(cfg config.SamplerConfig) (tracex.Sampler, error) {
	switch cfg.Type {
	case tracex.SamplerTypeConst, "":
		return tracex.NewConstSampler(cfg.Param != 0), nil
	case tracex.SamplerTypeProbabilistic:
		return tracex.NewProbabilisticSampler(cfg.Param), nil
	case tracex.SamplerTypeRateLimiting:
		return tracex.NewRateLimitingSampler(cfg.Param), nil
	case tracex.SamplerTypeAdaptive:
		lower := cfg.LowerBound
		if lower <= 0 {
			lower = defaultLowerBound
		}
		return tracex.NewAdaptiveSampler(
			tracex.NewRateLimitingSampler(lower),
			tracex.NewProbabilisticSampler(cfg.Param),
		), nil
	default:
		return nil, errorx.NewSys(errorx.ErrInvalidConfig,
			errorx.WithService(errorx.ServiceProvider),
			errorx.WithMessage("unknown sampler type"),
			errorx.WithField("sampler.type", cfg.Type))
	}
}

// NewReporter 按 reporter.type 构造传输层
func NewReporter(ctx context.Context, cfg *config.Config, logger logx.Logger) (tracex.Reporter, error) {
	rc := cfg.Reporter
	opts := []reporter.Option{
		reporter.WithService(cfg.ServiceName),
		reporter.WithQueueSize(rc.QueueSize),
		reporter.WithFlushInterval(rc.FlushInterval),
		reporter.WithMaxPacketSize(rc.MaxPacketSize),
	}
	if logger != nil {
		opts = append(opts, reporter.WithLogger(logger))
	}

	switch rc.Type {
	case config.ReporterUDP, "":
		host, port := cfg.AgentAddr()
		return reporter.NewUDP(net.JoinHostPort(host, strconv.Itoa(port)), opts...)
	case config.ReporterHTTP:
		return reporter.NewHTTP(rc.Endpoint, opts...)
	case config.ReporterOTLP:
		return reporter.NewOTLP(ctx, rc.Endpoint, rc.Insecure, opts...)
	case config.ReporterLog:
		return reporter.NewLog(logger), nil
	case config.ReporterNone:
		return tracex.NullReporter{}, nil
	default:
		return nil, errorx.NewSys(errorx.ErrInvalidConfig,
			errorx.WithService(errorx.ServiceProvider),
			errorx.WithMessage("unknown reporter type"),
			errorx.WithField("reporter.type", rc.Type))
	}
}
