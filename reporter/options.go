package reporter

import (
	"context"
	"time"

	"github.com/imattdu/tracectx/httpclient"
	"github.com/imattdu/tracectx/logx"
)

type options struct {
	service       string
	queueSize     int
	batchSize     int
	flushInterval time.Duration
	sendTimeout   time.Duration
	maxPacketSize int
	logger        logx.Logger
	client        *httpclient.Client
}

func defaultOptions() options {
	return options{
		service:       "app",
		queueSize:     1000,
		batchSize:     100,
		flushInterval: time.Second,
		sendTimeout:   5 * time.Second,
		maxPacketSize: 65000,
	}
}

type Option func(*options)

func WithService(name string) Option {
	return func(o *options) { o.service = name }
}

// WithQueueSize 队列满时丢弃最早的 span
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

func WithBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.flushInterval = d
		}
	}
}

func WithSendTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.sendTimeout = d
		}
	}
}

// WithMaxPacketSize UDP 单个包的上限（字节）
func WithMaxPacketSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxPacketSize = n
		}
	}
}

// WithLogger 不设置时使用 logx 全局 logger
func WithLogger(l logx.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHTTPClient HTTP reporter 使用的 client
func WithHTTPClient(c *httpclient.Client) Option {
	return func(o *options) { o.client = c }
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.batchSize > o.queueSize {
		o.batchSize = o.queueSize
	}
	return o
}

// ---------- 日志 ----------

func (o *options) warn(ctx context.Context, tag string, msg any, kv ...any) {
	if o.logger != nil {
		o.logger.Warn(ctx, tag, msg, kv...)
		return
	}
	logx.Warn(ctx, tag, msg, kv...)
}

func (o *options) info(ctx context.Context, tag string, msg any, kv ...any) {
	if o.logger != nil {
		o.logger.Info(ctx, tag, msg, kv...)
		return
	}
	logx.Info(ctx, tag, msg, kv...)
}
