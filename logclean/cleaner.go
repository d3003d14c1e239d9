package logclean

import (
	"unicode/utf8"

	"github.com/imattdu/tracectx/errorx"
)

// Config 两个字段都必须由调用方给出，这里不提供默认值
type Config struct {
	MaxLength       int    // 输出字符串的最大长度（按字符计）
	CutoffIndicator string // 截断后追加的标记
}

// Cleaner 把任意日志字段整理成有长度上限的字符串。
// Cleaner 不可变，可以在多个工作单元之间共享。
type Cleaner struct {
	cfg  Config
	logs map[string]any
}

func New(cfg Config) (*Cleaner, error) {
	if cfg.MaxLength <= 0 {
		return nil, errorx.NewSys(errorx.ErrInvalidConfig,
			errorx.WithService(errorx.ServiceCleaner),
			errorx.WithMessage("max length must be positive"),
			errorx.WithField("max_length", cfg.MaxLength))
	}
	if utf8.RuneCountInString(cfg.CutoffIndicator) >= cfg.MaxLength {
		return nil, errorx.NewSys(errorx.ErrInvalidConfig,
			errorx.WithService(errorx.ServiceCleaner),
			errorx.WithMessage("cutoff indicator must be shorter than max length"),
			errorx.WithField("cutoff_indicator", cfg.CutoffIndicator))
	}
	return &Cleaner{cfg: cfg}, nil
}

func (c *Cleaner) Config() Config { return c.cfg }

// SetLogs 返回携带待清理字段的副本
func (c *Cleaner) SetLogs(fields map[string]any) *Cleaner {
	cp := *c
	cp.logs = fields
	return &cp
}

// Clean 清理 SetLogs 保存的字段
func (c *Cleaner) Clean() map[string]string {
	return c.CleanFields(c.logs)
}

// CleanFields 非文本值先序列化，再统一按长度截断
func (c *Cleaner) CleanFields(fields map[string]any) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = c.Bound(ValueOf(v).Render())
	}
	return out
}

// Bound 超长时保留 MaxLength-len(cutoff) 个字符并追加 cutoff，结果长度恰好为 MaxLength
func (c *Cleaner) Bound(s string) string {
	if utf8.RuneCountInString(s) <= c.cfg.MaxLength {
		return s
	}
	keep := c.cfg.MaxLength - utf8.RuneCountInString(c.cfg.CutoffIndicator)
	runes := []rune(s)
	return string(runes[:keep]) + c.cfg.CutoffIndicator
}
