package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/imattdu/tracectx/config"
	"github.com/imattdu/tracectx/logx"
	"github.com/imattdu/tracectx/provider"
)

// EnvConfigPath 配置文件路径；instrument 要在解析参数之前完成，所以不用 flag
const EnvConfigPath = "TRACECTL_CONFIG"

func main() {
	os.Exit(run(context.Background(), os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	_ = logx.Init(logx.Config{
		AppName:        "tracectl",
		Level:          slog.LevelWarn,
		Rotate:         logx.RotateNone,
		ConsoleEnabled: true,
		Console:        os.Stderr,
		MirrorToSpan:   true,
	})

	cfg, err := config.Load(os.Getenv(EnvConfigPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	p, err := provider.New(cfg, provider.WithLogger(logx.L()))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	root := newRootCommand(p)
	p.Instrument(root)
	root.SetArgs(args)

	code := 0
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		code = 1
	}

	closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.Close(closeCtx); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	_ = logx.Flush(closeCtx)
	return code
}

func newRootCommand(p *provider.Provider) *cobra.Command {
	root := &cobra.Command{
		Use:           "tracectl",
		Short:         "inspect wire ids and emit spans with the configured tracer",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newDecodeCommand(),
		newInjectCommand(p),
		newEmitCommand(p),
		newConfigCommand(p),
	)
	return root
}
