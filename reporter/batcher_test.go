package reporter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/eapache/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/imattdu/tracectx/tracex"
)

// ---------- 测试辅助 ----------

func finishedSpan(name string, parent *tracex.SpanContext) *tracex.Span {
	tr := tracex.NewTracer("orders")
	s := tr.Start(name, map[string]any{"user_id": "u-1"}, parent)
	s.Log(tracex.LevelInfo, "event", "cache miss")
	tr.Finish(s)
	return s
}

type fakeSender struct {
	mu      sync.Mutex
	batches [][]*tracex.Span
	err     error
	closed  bool
}

func (f *fakeSender) send(_ context.Context, spans []*tracex.Span) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, spans)
	return f.err
}

func (f *fakeSender) close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

type recordingLogger struct {
	mu   sync.Mutex
	tags []string
}

func (l *recordingLogger) record(tag string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tags = append(l.tags, tag)
}

func (l *recordingLogger) Tags() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.tags...)
}

func (l *recordingLogger) Debug(_ context.Context, tag string, _ any, _ ...any) { l.record(tag) }
func (l *recordingLogger) Info(_ context.Context, tag string, _ any, _ ...any)  { l.record(tag) }
func (l *recordingLogger) Warn(_ context.Context, tag string, _ any, _ ...any)  { l.record(tag) }
func (l *recordingLogger) Error(_ context.Context, tag string, _ any, _ ...any) { l.record(tag) }

// ---------- batcher ----------

func TestBatcherDropsOldestWhenFull(t *testing.T) {
	b := &batcher{
		opts:    buildOptions([]Option{WithQueueSize(2)}),
		q:       queue.New(),
		flushCh: make(chan struct{}, 1),
	}
	s1, s2, s3 := finishedSpan("a", nil), finishedSpan("b", nil), finishedSpan("c", nil)
	b.Report(s1)
	b.Report(s2)
	b.Report(s3)

	assert.EqualValues(t, 1, b.Dropped())
	assert.Equal(t, []*tracex.Span{s2, s3}, b.take())
	assert.Empty(t, b.take())
}

func TestBatcherFlushSendsInBackground(t *testing.T) {
	defer goleak.VerifyNone(t)

	out := &fakeSender{}
	b := newBatcher("fake", out, buildOptions([]Option{WithFlushInterval(time.Hour), WithBatchSize(10)}))
	for i := 0; i < 3; i++ {
		b.Report(finishedSpan("op", nil))
	}
	require.NoError(t, b.Flush(context.Background()))

	assert.Eventually(t, func() bool { return out.count() == 3 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return b.Sent() == 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, b.Close(context.Background()))
	assert.True(t, out.closed)
}

func TestBatcherCloseDrainsQueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	out := &fakeSender{}
	b := newBatcher("fake", out, buildOptions([]Option{WithFlushInterval(time.Hour), WithBatchSize(2)}))
	for i := 0; i < 5; i++ {
		b.Report(finishedSpan("op", nil))
	}
	require.NoError(t, b.Close(context.Background()))
	assert.Equal(t, 5, out.count())

	// 关闭之后的 span 直接丢弃
	b.Report(finishedSpan("late", nil))
	assert.EqualValues(t, 1, b.Dropped())
	require.NoError(t, b.Close(context.Background()))
}

func TestBatcherSendFailureIsLogged(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := &recordingLogger{}
	out := &fakeSender{err: errors.New("collector down")}
	b := newBatcher("fake", out, buildOptions([]Option{WithFlushInterval(time.Hour), WithLogger(l)}))
	b.Report(finishedSpan("op", nil))
	require.NoError(t, b.Close(context.Background()))

	assert.Contains(t, l.Tags(), "reporter_failure")
	assert.EqualValues(t, 0, b.Sent())
}

func TestBatcherCloseTimeout(t *testing.T) {
	release := make(chan struct{})
	out := &blockingSender{release: release}
	b := newBatcher("slow", out, buildOptions([]Option{WithFlushInterval(time.Hour)}))
	b.Report(finishedSpan("op", nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := b.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	<-b.done
}

type blockingSender struct {
	release chan struct{}
}

func (s *blockingSender) send(context.Context, []*tracex.Span) error {
	<-s.release
	return nil
}

func (s *blockingSender) close(context.Context) error { return nil }
