package middleware

import (
	"context"
	"net/http"

	"github.com/imattdu/tracectx/httpclient"
	"github.com/imattdu/tracectx/tracex"
)

// InjectHTTP httpclient 的 before hook：每次尝试都把当前 Context 写到请求头
func InjectHTTP() httpclient.BeforeFunc {
	return func(ctx context.Context, req *http.Request) {
		bag := tracex.Bag{}
		if err := tracex.InjectContext(ctx, bag); err != nil {
			return
		}
		tracex.InjectHeader(bag, req.Header)
	}
}
