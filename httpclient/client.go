package httpclient

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Hook 每次尝试前后执行（重试时会执行多次）
type BeforeFunc func(ctx context.Context, req *http.Request)
type AfterFunc func(ctx context.Context, req *http.Request, resp *http.Response, err error)

// Config Client 的初始化配置，New 之后不再修改
type Config struct {
	BaseURL string

	// 请求级默认超时，Request.Timeout 为 0 时使用
	DefaultTimeout time.Duration

	Conn ConnConfig

	Retry RetryPolicy

	// 业务错误解析
	BizErrDecoder BizErrorDecoder

	Before []BeforeFunc
	After  []AfterFunc

	// 调用结束后的统计回调（例如 LogStats）
	StatsHook StatsHook

	// Tracing 为 true 时每次调用在 ctx 当前 Context 下开一个子 span，并把它注入请求头
	Tracing bool

	// Transport 非空时替换默认连接池（测试或自定义 TLS）
	Transport http.RoundTripper
}

// ConnConfig 连接池与各阶段超时
type ConnConfig struct {
	DialTimeout           time.Duration
	DialKeepAlive         time.Duration
	TLSHandshakeTimeout   time.Duration
	ExpectContinueTimeout time.Duration
	MaxIdleConns          int
	MaxIdleConnsPerHost   int
	IdleConnTimeout       time.Duration
	// ReadWriteTimeout 每次 Read/Write 的 deadline
	ReadWriteTimeout time.Duration
}

func defaultConfig() Config {
	return Config{
		DefaultTimeout: 5 * time.Second,
		Conn: ConnConfig{
			DialTimeout:           3 * time.Second,
			DialKeepAlive:         60 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ExpectContinueTimeout: time.Second,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
			ReadWriteTimeout:      5 * time.Second,
		},
		Retry: RetryPolicy{MaxAttempts: 1},
	}
}

type Option func(*Config)

func WithBaseURL(s string) Option {
	return func(c *Config) { c.BaseURL = s }
}

func WithDefaultTimeout(t time.Duration) Option {
	return func(c *Config) { c.DefaultTimeout = t }
}

func WithReadWriteTimeout(t time.Duration) Option {
	return func(c *Config) { c.Conn.ReadWriteTimeout = t }
}

func WithBeforeHooks(h ...BeforeFunc) Option {
	return func(c *Config) { c.Before = append(c.Before, h...) }
}

func WithAfterHooks(h ...AfterFunc) Option {
	return func(c *Config) { c.After = append(c.After, h...) }
}

// WithRetry decider / backoff 为 nil 时使用默认策略
func WithRetry(max int, decider RetryDecider, backoff BackoffFunc) Option {
	return func(c *Config) {
		c.Retry = RetryPolicy{MaxAttempts: max, Decider: decider, Backoff: backoff}
	}
}

func WithBizErrorDecoder(dec BizErrorDecoder) Option {
	return func(c *Config) { c.BizErrDecoder = dec }
}

func WithStatsHook(h StatsHook) Option {
	return func(c *Config) { c.StatsHook = h }
}

func WithTracing() Option {
	return func(c *Config) { c.Tracing = true }
}

func WithTransport(rt http.RoundTripper) Option {
	return func(c *Config) { c.Transport = rt }
}

// Client 并发安全
type Client struct {
	hc      *http.Client
	baseURL *url.URL

	before []BeforeFunc
	after  []AfterFunc

	defaultTimeout time.Duration
	retry          RetryPolicy
	bizErrDecoder  BizErrorDecoder
	statsHook      StatsHook
	tracing        bool
}

func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var base *url.URL
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		base = u
	}

	rt := cfg.Transport
	if rt == nil {
		rt = buildTransport(cfg.Conn)
	}

	return &Client{
		hc:      &http.Client{Transport: rt},
		baseURL: base,

		before: append([]BeforeFunc(nil), cfg.Before...),
		after:  append([]AfterFunc(nil), cfg.After...),

		defaultTimeout: cfg.DefaultTimeout,
		retry:          cfg.Retry.normalize(),
		bizErrDecoder:  cfg.BizErrDecoder,
		statsHook:      cfg.StatsHook,
		tracing:        cfg.Tracing,
	}, nil
}
