package config

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"

	"github.com/imattdu/tracectx/errorx"
	"github.com/imattdu/tracectx/tracex"
)

// EnvPrefix 环境变量前缀：TRACE_SERVICE_NAME、TRACE_SAMPLER_TYPE、TRACE_REPORTER_FLUSH_INTERVAL
const EnvPrefix = "TRACE"

const (
	defaultAgentHost = "127.0.0.1"
	defaultAgentPort = 6831
)

// Config 追踪的全部配置
type Config struct {
	ServiceName      string         `yaml:"service_name" split_words:"true"`
	Environment      string         `yaml:"environment" split_words:"true"`
	Sampler          SamplerConfig  `yaml:"sampler" split_words:"true"`
	Reporter         ReporterConfig `yaml:"reporter" split_words:"true"`
	Log              LogConfig      `yaml:"log" split_words:"true"`
	EnableForConsole bool           `yaml:"enable_for_console" split_words:"true"`
}

// SamplerConfig type: const / probabilistic / rate-limiting / adaptive
type SamplerConfig struct {
	Type  string  `yaml:"type" split_words:"true"`
	Param float64 `yaml:"param" split_words:"true"`
	// LowerBound adaptive 使用：每秒最少采样数
	LowerBound float64 `yaml:"lower_bound" split_words:"true"`
}

// ReporterConfig type: udp / http / otlp / log / none
type ReporterConfig struct {
	Type          string        `yaml:"type" split_words:"true"`
	Host          string        `yaml:"host" split_words:"true"`
	Endpoint      string        `yaml:"endpoint" split_words:"true"`
	Insecure      bool          `yaml:"insecure" split_words:"true"`
	QueueSize     int           `yaml:"queue_size" split_words:"true"`
	FlushInterval time.Duration `yaml:"flush_interval" split_words:"true"`
	MaxPacketSize int           `yaml:"max_packet_size" split_words:"true"`
}

// LogConfig span 日志的截断规则
type LogConfig struct {
	MaxStringLength int    `yaml:"max_string_length" split_words:"true"`
	CutoffIndicator string `yaml:"cutoff_indicator" split_words:"true"`
}

const (
	ReporterUDP  = "udp"
	ReporterHTTP = "http"
	ReporterOTLP = "otlp"
	ReporterLog  = "log"
	ReporterNone = "none"
)

// Default 返回默认配置
func Default() *Config {
	return &Config{
		ServiceName: "app",
		Environment: "dev",
		Sampler: SamplerConfig{
			Type:  tracex.SamplerTypeConst,
			Param: 1,
		},
		Reporter: ReporterConfig{
			Type:          ReporterUDP,
			Host:          net.JoinHostPort(defaultAgentHost, strconv.Itoa(defaultAgentPort)),
			QueueSize:     1000,
			FlushInterval: time.Second,
			MaxPacketSize: 65000,
		},
		Log: LogConfig{
			MaxStringLength: 1000,
			CutoffIndicator: "...",
		},
	}
}

// Load 默认值 -> YAML 文件（path 为空时跳过）-> 环境变量 -> 校验
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, invalid(err, "read config file", "path", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, invalid(err, "parse config file", "path", path)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, invalid(err, "read env", "prefix", EnvPrefix)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return invalid(nil, "service_name is required", "service_name", c.ServiceName)
	}
	switch c.Sampler.Type {
	case tracex.SamplerTypeConst, tracex.SamplerTypeProbabilistic,
		tracex.SamplerTypeRateLimiting, tracex.SamplerTypeAdaptive:
	default:
		return invalid(nil, "unknown sampler type", "sampler.type", c.Sampler.Type)
	}
	if c.Sampler.Param < 0 {
		return invalid(nil, "sampler param must not be negative", "sampler.param", c.Sampler.Param)
	}
	switch c.Reporter.Type {
	case ReporterUDP, ReporterLog, ReporterNone:
	case ReporterHTTP, ReporterOTLP:
		if c.Reporter.Endpoint == "" {
			return invalid(nil, "reporter endpoint is required", "reporter.type", c.Reporter.Type)
		}
	default:
		return invalid(nil, "unknown reporter type", "reporter.type", c.Reporter.Type)
	}
	if c.Log.MaxStringLength <= 0 {
		return invalid(nil, "max_string_length must be positive", "log.max_string_length", c.Log.MaxStringLength)
	}
	if len([]rune(c.Log.CutoffIndicator)) >= c.Log.MaxStringLength {
		return invalid(nil, "cutoff_indicator must be shorter than max_string_length",
			"log.cutoff_indicator", c.Log.CutoffIndicator)
	}
	return nil
}

// AgentAddr 拆分 reporter.host；缺少的部分用默认 host / port 补齐
func (c *Config) AgentAddr() (string, int) {
	host, port := defaultAgentHost, defaultAgentPort
	raw := c.Reporter.Host
	if raw == "" {
		return host, port
	}
	h, p, err := net.SplitHostPort(raw)
	if err != nil {
		// 只有 host
		return raw, port
	}
	if h != "" {
		host = h
	}
	if n, err := strconv.Atoi(p); err == nil && n > 0 {
		port = n
	}
	return host, port
}

func invalid(cause error, msg string, kv ...any) error {
	opts := []errorx.Option{
		errorx.WithService(errorx.ServiceConfig),
		errorx.WithMessage(msg),
	}
	if cause != nil {
		opts = append(opts, errorx.WithCause(cause))
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			opts = append(opts, errorx.WithField(k, kv[i+1]))
		}
	}
	return errorx.NewSys(errorx.ErrInvalidConfig, opts...)
}
