package reporter

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/imattdu/tracectx/tracex"
)

// dropCounter 由带队列的 reporter 实现
type dropCounter interface {
	Dropped() int64
}

// Metrics reporter 的 prometheus 指标
type Metrics struct {
	SpansReported prometheus.Counter
	FlushErrors   prometheus.Counter
	CloseErrors   prometheus.Counter
	SpanDuration  prometheus.Histogram
}

// NewMetrics 注册到 reg；reg 为 nil 时只创建不注册
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SpansReported: f.NewCounter(prometheus.CounterOpts{
			Name: "tracectx_spans_reported_total",
			Help: "Total number of finished spans handed to the reporter",
		}),
		FlushErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "tracectx_flush_errors_total",
			Help: "Total number of failed reporter flushes",
		}),
		CloseErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "tracectx_close_errors_total",
			Help: "Total number of failed reporter closes",
		}),
		SpanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracectx_span_duration_seconds",
			Help:    "Duration of reported spans",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

type instrumented struct {
	tracex.Reporter
	m *Metrics
}

// Instrument 给 reporter 加上指标；下游有队列时额外注册丢弃计数
func Instrument(r tracex.Reporter, reg prometheus.Registerer) tracex.Reporter {
	if d, ok := r.(dropCounter); ok {
		promauto.With(reg).NewCounterFunc(prometheus.CounterOpts{
			Name: "tracectx_spans_dropped_total",
			Help: "Total number of spans dropped by the reporter queue",
		}, func() float64 { return float64(d.Dropped()) })
	}
	return &instrumented{Reporter: r, m: NewMetrics(reg)}
}

func (i *instrumented) Report(s *tracex.Span) {
	if s == nil {
		return
	}
	i.m.SpansReported.Inc()
	i.m.SpanDuration.Observe(s.Duration().Seconds())
	i.Reporter.Report(s)
}

func (i *instrumented) Flush(ctx context.Context) error {
	err := i.Reporter.Flush(ctx)
	if err != nil {
		i.m.FlushErrors.Inc()
	}
	return err
}

func (i *instrumented) Close(ctx context.Context) error {
	err := i.Reporter.Close(ctx)
	if err != nil {
		i.m.CloseErrors.Inc()
	}
	return err
}
