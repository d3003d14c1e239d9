package provider

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imattdu/tracectx/logx"
	"github.com/imattdu/tracectx/tracex"
)

// TagCommandError 命令执行失败时写到根 span
const TagCommandError = "command_error"

// Instrument 给命令树中每个可执行的命令加上追踪：
// 以完整命令行作为 span 名，数据包为空，命令返回后结束 span。
// enable_for_console 关闭时不做任何修改。
func (p *Provider) Instrument(root *cobra.Command) {
	if root == nil || !p.Enabled(true) {
		return
	}
	p.wrap(root)
	for _, sub := range root.Commands() {
		p.Instrument(sub)
	}
}

func (p *Provider) wrap(cmd *cobra.Command) {
	run := cmd.RunE
	if run == nil && cmd.Run != nil {
		plain := cmd.Run
		run = func(c *cobra.Command, args []string) error {
			plain(c, args)
			return nil
		}
		cmd.Run = nil
	}
	if run == nil {
		return
	}

	cmd.RunE = func(c *cobra.Command, args []string) error {
		ctx := c.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, tc, err := p.Begin(ctx, commandLine(c, args), tracex.Bag{})
		if err != nil {
			logx.Warn(ctx, logx.TagCommand, err, "command", c.CommandPath())
			return run(c, args)
		}
		c.SetContext(ctx)
		defer func() {
			if err := p.End(ctx); err != nil {
				logx.Warn(ctx, logx.TagCommand, err, "command", c.CommandPath())
			}
		}()

		runErr := run(c, args)
		if runErr != nil {
			_ = tc.SetPrivateTags(map[string]any{
				TagCommandError: runErr.Error(),
				tracex.TagError: true,
			})
		}
		return runErr
	}
}

func commandLine(c *cobra.Command, args []string) string {
	return strings.Join(append([]string{c.CommandPath()}, args...), " ")
}
