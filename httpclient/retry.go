package httpclient

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"
)

// RetryDecider 决定某次尝试之后是否重试
type RetryDecider func(resp *http.Response, err error) bool

// BackoffFunc 第 attempt 次（从 0 开始）重试前等待的时间
type BackoffFunc func(attempt int) time.Duration

// RetryPolicy MaxAttempts 包含第一次请求
type RetryPolicy struct {
	MaxAttempts int
	Decider     RetryDecider
	Backoff     BackoffFunc
}

func (p RetryPolicy) normalize() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Decider == nil {
		p.Decider = defaultRetryDecider
	}
	if p.Backoff == nil {
		p.Backoff = defaultBackoff
	}
	return p
}

// 网络错误、429、5xx 重试；ctx 取消或超时不重试
func defaultRetryDecider(resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if resp == nil {
		return false
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
}

const (
	backoffBase = 100 * time.Millisecond
	backoffMax  = 2 * time.Second
)

// 指数退避 + 抖动：[d/2, d)，d = 100ms << attempt，最大 2s
func defaultBackoff(attempt int) time.Duration {
	d := backoffMax
	if attempt < 8 {
		d = min(backoffBase<<attempt, backoffMax)
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)))
}
