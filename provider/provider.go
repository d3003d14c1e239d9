package provider

import (
	"context"
	"net/http"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/imattdu/tracectx/config"
	"github.com/imattdu/tracectx/errorx"
	"github.com/imattdu/tracectx/logclean"
	"github.com/imattdu/tracectx/tracex"
)

// Provider 进程级入口：持有唯一的 Builder，为每个工作单元创建新的 tracex.Context
type Provider struct {
	cfg     *config.Config
	builder *Builder
	cleaner *logclean.Cleaner
}

func New(cfg *config.Config, opts ...Option) (*Provider, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cleaner, err := logclean.New(logclean.Config{
		MaxLength:       cfg.Log.MaxStringLength,
		CutoffIndicator: cfg.Log.CutoffIndicator,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{
		cfg:     cfg,
		builder: NewBuilder(cfg, opts...),
		cleaner: cleaner,
	}, nil
}

func (p *Provider) Config() *config.Config { return p.cfg }

// NewContext 每个工作单元一个，不能共享
func (p *Provider) NewContext() *tracex.Context {
	return tracex.New(
		tracex.WithBuilder(p.builder),
		tracex.WithCleaner(p.cleaner),
		tracex.WithEnvironment(p.cfg.Environment),
	)
}

// Enabled 命令行工作单元只有在 enable_for_console 打开时才追踪
func (p *Provider) Enabled(console bool) bool {
	return !console || p.cfg.EnableForConsole
}

// Begin 开始一个工作单元：Start + Parse，并把 Ambient 放进返回的 ctx
func (p *Provider) Begin(ctx context.Context, name string, data tracex.Bag) (context.Context, *tracex.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	tc := p.NewContext()
	if err := tc.Start(); err != nil {
		return ctx, nil, err
	}
	if data == nil {
		data = tracex.Bag{}
	}
	if err := tc.Parse(name, data); err != nil {
		return ctx, nil, err
	}
	return tracex.WithAmbient(ctx, tracex.NewAmbient(tc)), tc, nil
}

// End 结束工作单元的根 span
func (p *Provider) End(ctx context.Context) error {
	root := tracex.AmbientFromContext(ctx).Root()
	if root == nil {
		return errorx.Wrap(tracex.ErrNoSpan, errorx.ErrNoSpan,
			errorx.WithService(errorx.ServiceProvider),
			errorx.WithOp("end"))
	}
	return root.Finish(ctx)
}

// Close 关闭 tracer（flush + 关闭 reporter）；tracer 从未构造时什么也不做
func (p *Provider) Close(ctx context.Context) error {
	t := p.builder.Built()
	if t == nil {
		return nil
	}
	return t.Close(ctx)
}

// -------------------- 请求处理完成 --------------------

// 未登录用户的占位
const anonymous = "-"

// RequestMeta 请求处理完成后写到根 span 的私有标签
type RequestMeta struct {
	UserID    string `mapstructure:"user_id"`
	CompanyID string `mapstructure:"company_id"`
	Host      string `mapstructure:"request_host"`
	Path      string `mapstructure:"request_path"`
	Method    string `mapstructure:"request_method"`
	API       bool   `mapstructure:"api"`
	Status    int    `mapstructure:"response_status"`
	Error     bool   `mapstructure:"error"`
}

// NewRequestMeta api 由路径是否包含 "api" 决定，error 由状态码是否为 2xx 决定
func NewRequestMeta(host, path, method string, status int) RequestMeta {
	return RequestMeta{
		UserID:    anonymous,
		CompanyID: anonymous,
		Host:      host,
		Path:      path,
		Method:    method,
		API:       strings.Contains(path, "api"),
		Status:    status,
		Error:     status < http.StatusOK || status >= http.StatusMultipleChoices,
	}
}

// Tags 转成标签 map
func (m RequestMeta) Tags() (map[string]any, error) {
	if m.UserID == "" {
		m.UserID = anonymous
	}
	if m.CompanyID == "" {
		m.CompanyID = anonymous
	}
	tags := make(map[string]any, 8)
	if err := mapstructure.Decode(m, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}

// RequestHandled 把请求结果写到根 span
func (p *Provider) RequestHandled(ctx context.Context, meta RequestMeta) error {
	root := tracex.AmbientFromContext(ctx).Root()
	if root == nil {
		return errorx.Wrap(tracex.ErrNoSpan, errorx.ErrNoSpan,
			errorx.WithService(errorx.ServiceProvider),
			errorx.WithOp("request_handled"))
	}
	tags, err := meta.Tags()
	if err != nil {
		return err
	}
	return root.SetPrivateTags(tags)
}
