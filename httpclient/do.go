package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
)

// 统计里最多保留的请求体长度
const maxStatsBody = 1024

// call 一次 Do 调用准备好的、可重放的请求
type call struct {
	method   string
	url      string
	headers  http.Header
	body     []byte
	reader   io.Reader // 不可重放的 body，只能尝试一次
	attempts int
	stats    *CallStats
}

func (c *call) newRequest(ctx context.Context) (*http.Request, error) {
	body := c.reader
	if c.body != nil {
		body = bytes.NewReader(c.body)
	}
	req, err := http.NewRequestWithContext(ctx, c.method, c.url, body)
	if err != nil {
		return nil, err
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

// Do 发起请求：重试、统计、子 span、业务错误解析。
// out：
//   - nil       ：调用方自己读取并关闭 resp.Body
//   - io.Writer ：响应体复制到 writer
//   - *[]byte   ：原始字节
//   - 其它      ：JSON 解码
func (c *Client) Do(ctx context.Context, r *Request, out any) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cl, err := c.prepare(r)
	if err != nil {
		return nil, err
	}

	span := c.startSpan(ctx, r, cl)
	defer c.finishSpan(ctx, span, cl.stats)
	resp, err := c.send(ctx, cl, span)

	if c.statsHook != nil {
		c.statsHook(ctx, cl.stats)
	}
	if resp == nil {
		return nil, err
	}
	return resp, c.decode(resp, out)
}

func (c *Client) prepare(r *Request) (*call, error) {
	u, err := c.buildURL(r.Path, r.Query)
	if err != nil {
		return nil, err
	}
	cl := &call{
		method:   r.Method,
		url:      u,
		headers:  cloneHeader(r.Headers),
		attempts: c.retry.MaxAttempts,
	}

	switch v := r.Body.(type) {
	case nil:
	case io.Reader:
		cl.reader = v
		cl.attempts = 1
	default:
		data, err := sonic.Marshal(v)
		if err != nil {
			return nil, err
		}
		cl.body = data
		if cl.headers == nil {
			cl.headers = make(http.Header)
		}
		if cl.headers.Get("Content-Type") == "" {
			cl.headers.Set("Content-Type", "application/json")
		}
	}

	cl.stats = &CallStats{
		Method:      r.Method,
		URL:         u,
		Query:       r.Query.Encode(),
		MaxAttempts: cl.attempts,
		BodySize:    len(cl.body),
	}
	if len(cl.body) <= maxStatsBody {
		cl.stats.Body = string(cl.body)
	}
	return cl, nil
}

// send 重试主循环；返回最后一次响应（或错误）
func (c *Client) send(ctx context.Context, cl *call, span *tracedCall) (*http.Response, error) {
	var (
		lastResp *http.Response
		lastErr  error
	)
	begin := time.Now()
	stats := cl.stats

retry:
	for attempt := 0; attempt < cl.attempts; attempt++ {
		req, err := cl.newRequest(ctx)
		if err != nil {
			lastResp, lastErr = nil, err
			break
		}
		if stats.Path == "" {
			stats.Path = req.URL.Path
		}

		span.inject(req)
		for _, h := range c.before {
			h(ctx, req)
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		elapsed := time.Since(start)

		for _, h := range c.after {
			h(ctx, req, resp, err)
		}
		lastResp, lastErr = resp, err

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		willRetry := attempt < cl.attempts-1 && c.retry.Decider(resp, err)
		stats.AttemptsLog = append(stats.AttemptsLog, CallAttempt{
			Attempt:   attempt + 1,
			Status:    status,
			Err:       errString(err),
			Cost:      elapsed,
			WillRetry: willRetry,
		})
		if !willRetry {
			break
		}

		// 丢弃 body 以复用连接
		if resp != nil && resp.Body != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}

		if sleep := c.retry.Backoff(attempt); sleep > 0 {
			timer := time.NewTimer(sleep)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				lastResp, lastErr = nil, ctx.Err()
				break retry
			}
		}
	}

	stats.Cost = time.Since(begin)
	stats.Attempts = len(stats.AttemptsLog)
	if lastResp != nil {
		stats.Status = lastResp.StatusCode
	}
	stats.Err = errString(lastErr)
	return lastResp, lastErr
}

func (c *Client) decode(resp *http.Response, out any) error {
	if out == nil {
		return nil
	}
	defer resp.Body.Close()

	if w, ok := out.(io.Writer); ok {
		_, err := io.Copy(w, resp.Body)
		return err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if c.bizErrDecoder != nil {
		if err := c.bizErrDecoder(resp.StatusCode, data); err != nil {
			return err
		}
	}
	if p, ok := out.(*[]byte); ok {
		*p = data
		return nil
	}
	return sonic.Unmarshal(data, out)
}

// -------- 便捷方法 --------

func (c *Client) GetJSON(ctx context.Context, path string, out any, opts ...RequestOption) (*http.Response, error) {
	req := &Request{Method: http.MethodGet, Path: path}
	for _, opt := range opts {
		opt(req)
	}
	return c.Do(ctx, req, out)
}

func (c *Client) PostJSON(ctx context.Context, path string, in any, out any, opts ...RequestOption) (*http.Response, error) {
	req := &Request{Method: http.MethodPost, Path: path, Body: in}
	for _, opt := range opts {
		opt(req)
	}
	return c.Do(ctx, req, out)
}
