package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imattdu/tracectx/logx"
	"github.com/imattdu/tracectx/provider"
	"github.com/imattdu/tracectx/tracex"
)

// HeaderTraceID 响应头中回写的 wire id
const HeaderTraceID = "Uber-Trace-Id"

// TraceMiddleware 每个请求一个工作单元：
// 入站数据 = query 参数 + header；span 名为 "METHOD 路由"；请求结束后写请求结果并结束 span
func TraceMiddleware(p *provider.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := c.Request
		ctx, tc, err := p.Begin(req.Context(), operationName(c), requestBag(req))
		if err != nil {
			logx.Warn(req.Context(), logx.TagUndef, err, logx.Path, req.URL.Path)
			c.Next()
			return
		}
		c.Request = req.WithContext(ctx)
		c.Header(HeaderTraceID, tc.Span().Context().String())

		defer func() {
			if err := p.End(ctx); err != nil {
				logx.Warn(ctx, logx.TagUndef, err)
			}
		}()

		c.Next()

		meta := provider.NewRequestMeta(req.Host, req.URL.Path, req.Method, c.Writer.Status())
		if uid := c.GetString(ContextUserID); uid != "" {
			meta.UserID = uid
		}
		if cid := c.GetString(ContextCompanyID); cid != "" {
			meta.CompanyID = cid
		}
		if err := p.RequestHandled(ctx, meta); err != nil {
			logx.Warn(ctx, logx.TagUndef, err)
		}
	}
}

// handler 可以通过 c.Set 写入这两个 key，请求结束时作为标签
const (
	ContextUserID    = "user_id"
	ContextCompanyID = "company_id"
)

func operationName(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	return c.Request.Method + " " + route
}

// requestBag query 参数在前，header 覆盖同名 key
func requestBag(req *http.Request) tracex.Bag {
	bag := tracex.Bag{}
	for k, v := range req.URL.Query() {
		if len(v) == 1 {
			bag[k] = v[0]
		} else {
			bag[k] = v
		}
	}
	for k, v := range tracex.BagFromHeader(req.Header) {
		bag[k] = v
	}
	return bag
}

// Traced 给 handler 包一层子 span，handler 出错时子 span 打上 error
func Traced(name string, fn func(c *gin.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		tc := tracex.FromContext(ctx)
		if tc == nil || tc.State() != tracex.StateActive {
			if err := fn(c); err != nil {
				_ = c.Error(err)
			}
			return
		}
		err := tc.Run(ctx, name, func(ctx context.Context, _ *tracex.Context) error {
			return fn(c)
		})
		if err != nil {
			_ = c.Error(err)
		}
	}
}
