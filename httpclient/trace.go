package httpclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/imattdu/tracectx/tracex"
)

// tracedCall 一次调用对应的子 span；nil 表示不追踪
type tracedCall struct {
	child *tracex.ChildContext
}

// startSpan 只在开启 tracing 且 ctx 中有活动 Context 时创建子 span
func (c *Client) startSpan(ctx context.Context, r *Request, cl *call) *tracedCall {
	if !c.tracing {
		return nil
	}
	tc := tracex.FromContext(ctx)
	if tc == nil || tc.State() != tracex.StateActive {
		return nil
	}
	name := r.SpanName
	if name == "" {
		name = "HTTP " + cl.method + " " + r.Path
	}
	child, err := tc.Child(name)
	if err != nil {
		return nil
	}
	_ = child.SetPrivateTags(map[string]any{
		"http.method": cl.method,
		"http.url":    cl.url,
	})
	cl.stats.SpanID = child.SpanID()
	return &tracedCall{child: child}
}

// inject 每次尝试都重新写一遍 header
func (s *tracedCall) inject(req *http.Request) {
	if s == nil {
		return
	}
	bag := tracex.Bag{}
	if err := s.child.Inject(bag); err != nil {
		return
	}
	tracex.InjectHeader(bag, req.Header)
}

// finishSpan 在 Do 中 defer 调用：任何退出路径（包括 panic）都会结束子 span 并恢复父 Context，
// panic 记录到子 span 后继续向上抛
func (c *Client) finishSpan(ctx context.Context, s *tracedCall, stats *CallStats) {
	if s == nil {
		return
	}
	r := recover()

	tags := map[string]any{
		"http.status_code": stats.Status,
		"http.attempts":    stats.Attempts,
	}
	switch {
	case r != nil:
		tags[tracex.TagError] = true
		_ = s.child.LogLevel(tracex.LevelError, map[string]any{"error": fmt.Sprint(r)})
	case stats.Failed():
		tags[tracex.TagError] = true
		if stats.Err != "" {
			_ = s.child.LogLevel(tracex.LevelError, map[string]any{"error": stats.Err})
		}
	}
	_ = s.child.SetPrivateTags(tags)
	_ = s.child.Finish(ctx)

	if r != nil {
		panic(r)
	}
}
