package reporter

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/imattdu/tracectx/errorx"
	"github.com/imattdu/tracectx/logx"
	"github.com/imattdu/tracectx/tracex"
)

// sender 把一批已结束的 span 发出去
type sender interface {
	send(ctx context.Context, spans []*tracex.Span) error
	close(ctx context.Context) error
}

// batcher 有界队列 + 后台发送循环，UDP / HTTP / OTLP 共用。
// Report 从不阻塞；队列满时丢弃最早的 span。
type batcher struct {
	name string
	opts options
	out  sender

	mu     sync.Mutex
	q      *queue.Queue
	closed bool

	dropped atomic.Int64
	sent    atomic.Int64

	flushCh   chan struct{}
	closeCh   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newBatcher(name string, out sender, opts options) *batcher {
	b := &batcher{
		name:    name,
		opts:    opts,
		out:     out,
		q:       queue.New(),
		flushCh: make(chan struct{}, 1),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go b.loop()
	return b
}

// Report 放入队列；满一批时唤醒发送循环
func (b *batcher) Report(span *tracex.Span) {
	if span == nil {
		return
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.dropped.Add(1)
		return
	}
	if b.q.Length() >= b.opts.queueSize {
		b.q.Remove()
		b.dropped.Add(1)
	}
	b.q.Add(span)
	full := b.q.Length() >= b.opts.batchSize
	b.mu.Unlock()

	if full {
		b.signal()
	}
}

// Flush 只唤醒发送循环，不等待结果
func (b *batcher) Flush(context.Context) error {
	b.signal()
	return nil
}

// Close 发完队列中剩余的 span 后关闭下游；ctx 到期时放弃等待
func (b *batcher) Close(ctx context.Context) error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		close(b.closeCh)
	})

	select {
	case <-b.done:
	case <-ctx.Done():
		return errorx.Wrap(ctx.Err(), errorx.ErrReporter,
			errorx.WithService(errorx.ServiceReporter),
			errorx.WithOp("close"),
			errorx.WithMessage("close timeout"),
			errorx.WithField("reporter", b.name))
	}
	if err := b.out.close(ctx); err != nil {
		return errorx.Wrap(err, errorx.ErrReporter,
			errorx.WithService(errorx.ServiceReporter),
			errorx.WithOp("close"),
			errorx.WithField("reporter", b.name))
	}
	return nil
}

// Dropped 因队列满或已关闭被丢弃的 span 数
func (b *batcher) Dropped() int64 { return b.dropped.Load() }

// Sent 已成功交给下游的 span 数
func (b *batcher) Sent() int64 { return b.sent.Load() }

func (b *batcher) signal() {
	select {
	case b.flushCh <- struct{}{}:
	default:
	}
}

func (b *batcher) loop() {
	defer close(b.done)

	ticker := time.NewTicker(b.opts.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.drain()
		case <-b.flushCh:
			b.drain()
		case <-b.closeCh:
			b.drain()
			return
		}
	}
}

// drain 按批发送，直到队列为空
func (b *batcher) drain() {
	for {
		spans := b.take()
		if len(spans) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), b.opts.sendTimeout)
		err := b.out.send(ctx, spans)
		cancel()
		if err != nil {
			b.opts.warn(context.Background(), logx.TagReporterFailure, err, "reporter", b.name, "spans", len(spans))
			continue
		}
		b.sent.Add(int64(len(spans)))
	}
}

func (b *batcher) take() []*tracex.Span {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := b.q.Length()
	if n > b.opts.batchSize {
		n = b.opts.batchSize
	}
	spans := make([]*tracex.Span, 0, n)
	for i := 0; i < n; i++ {
		spans = append(spans, b.q.Remove().(*tracex.Span))
	}
	return spans
}
