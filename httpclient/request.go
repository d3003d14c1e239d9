package httpclient

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request 一次调用的参数
type Request struct {
	Method  string
	Path    string      // 相对 BaseURL 的路径，或完整 URL
	Query   url.Values  // 追加到 URL 上的 query
	Headers http.Header // 请求头
	Body    any         // nil / io.Reader（不可重试）/ 其它按 JSON 编码

	// Timeout 覆盖 Config.DefaultTimeout，包含全部重试
	Timeout time.Duration

	// SpanName 开启 tracing 时的子 span 名，默认 "HTTP METHOD path"
	SpanName string
}

type RequestOption func(*Request)

func WithQuery(q url.Values) RequestOption {
	return func(r *Request) { r.Query = q }
}

func WithHeader(k, v string) RequestOption {
	return func(r *Request) {
		if r.Headers == nil {
			r.Headers = make(http.Header)
		}
		r.Headers.Add(k, v)
	}
}

func WithJSONBody(body any) RequestOption {
	return func(r *Request) { r.Body = body }
}

func WithTimeout(t time.Duration) RequestOption {
	return func(r *Request) { r.Timeout = t }
}

func WithPathTemplate(format string, args ...any) RequestOption {
	return func(r *Request) { r.Path = fmt.Sprintf(format, args...) }
}

func WithSpanName(name string) RequestOption {
	return func(r *Request) { r.SpanName = name }
}

// buildURL path 是完整 URL 时忽略 BaseURL；query 追加而不是覆盖
func (c *Client) buildURL(path string, q url.Values) (string, error) {
	pu, err := url.Parse(path)
	if err != nil {
		return "", err
	}

	u := pu
	if !pu.IsAbs() && c.baseURL != nil {
		base := *c.baseURL
		base.Path = joinPath(c.baseURL.Path, pu.Path)
		base.RawQuery = pu.RawQuery
		u = &base
	}

	if len(q) > 0 {
		qs := u.Query()
		for k, vs := range q {
			for _, v := range vs {
				qs.Add(k, v)
			}
		}
		u.RawQuery = qs.Encode()
	}
	return u.String(), nil
}

func joinPath(a, b string) string {
	switch {
	case a == "" || a == "/":
		return b
	case b == "":
		return a
	default:
		return strings.TrimSuffix(a, "/") + "/" + strings.TrimPrefix(b, "/")
	}
}
