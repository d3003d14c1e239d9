package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/imattdu/tracectx/errorx"
	"github.com/imattdu/tracectx/logx"
	"github.com/imattdu/tracectx/provider"
	"github.com/imattdu/tracectx/tracex"
)

// ---------- decode ----------

func newDecodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <wire-id>",
		Short: "decode a trace:span:parent:flags wire id, missing fields are padded with 0",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := tracex.DefaultCodec.Decode(tracex.PadWireID(args[0]))
			if err != nil {
				return err
			}
			out := map[string]any{
				"trace_id":  sc.TraceID,
				"span_id":   sc.SpanID,
				"parent_id": sc.ParentID,
				"flags":     sc.Flags,
				"sampled":   sc.IsSampled(),
			}
			return printYAML(cmd, out)
		},
	}
}

// ---------- inject ----------

func newInjectCommand(p *provider.Provider) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "inject [tag=value ...]",
		Short: "start a span and print the outbound headers carrying it",
		RunE: func(cmd *cobra.Command, args []string) error {
			tags, err := parseTags(args)
			if err != nil {
				return err
			}
			ctx, tc, done, err := current(cmd.Context(), p, name)
			if err != nil {
				return err
			}
			defer done()

			if err := tc.SetPropagatedTags(tags); err != nil {
				return err
			}
			bag := tracex.Bag{}
			if err := tracex.InjectContext(ctx, bag); err != nil {
				return err
			}
			headers := map[string]string{}
			if id, ok := bag.WireID(); ok {
				headers[tracex.WireIDKey] = id
			}
			for k, v := range bag.PropagatedTags() {
				headers[tracex.TagHeaderPrefix+k] = v
			}
			return printYAML(cmd, headers)
		},
	}
	cmd.Flags().StringVar(&name, "name", "tracectl inject", "span name when console tracing is disabled")
	return cmd
}

// ---------- emit ----------

func newEmitCommand(p *provider.Provider) *cobra.Command {
	var (
		parent string
		steps  int
	)
	cmd := &cobra.Command{
		Use:   "emit <operation>",
		Short: "emit a span (and child steps) through the configured reporter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tc := p.NewContext()
			if err := tc.Start(); err != nil {
				return err
			}
			if err := tc.FromUberID(args[0], parent); err != nil {
				return err
			}
			ctx := tracex.WithAmbient(cmd.Context(), tracex.NewAmbient(tc))

			for i := 0; i < steps; i++ {
				step := "step " + strconv.Itoa(i+1)
				err := tc.Run(ctx, step, func(ctx context.Context, child *tracex.Context) error {
					logx.Info(ctx, logx.TagCommand, step, "operation", args[0])
					return child.Log(map[string]any{"step": i + 1})
				})
				if err != nil {
					return err
				}
			}
			if err := tc.Finish(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tc.Span().Context().String())
			return nil
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "upstream wire id to continue")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of child spans")
	return cmd
}

// ---------- config ----------

func newConfigCommand(p *provider.Provider) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "print the effective configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printYAML(cmd, p.Config())
		},
	}
}

// ---------- helpers ----------

// current 命令被 instrument 时复用 ctx 中的根 Context，否则自己开一个
func current(ctx context.Context, p *provider.Provider, name string) (context.Context, *tracex.Context, func(), error) {
	if tc := tracex.FromContext(ctx); tc != nil && tc.State() == tracex.StateActive {
		return ctx, tc, func() {}, nil
	}
	ctx, tc, err := p.Begin(ctx, name, nil)
	if err != nil {
		return ctx, nil, nil, err
	}
	return ctx, tc, func() { _ = p.End(ctx) }, nil
}

func parseTags(args []string) (map[string]string, error) {
	tags := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, errorx.NewUsage(errorx.ErrDefault,
				errorx.WithMessage("invalid tag, want key=value"),
				errorx.WithField("tag", a))
		}
		tags[k] = v
	}
	return tags, nil
}

func printYAML(cmd *cobra.Command, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
