package reporter

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	"github.com/imattdu/tracectx/httpclient"
	"github.com/imattdu/tracectx/tracex"
)

// ---------- record ----------

func TestNewRecord(t *testing.T) {
	parent := &tracex.SpanContext{TraceID: "abc", SpanID: "def", Flags: tracex.FlagSampled}
	s := finishedSpan("GET /orders", parent)

	r := NewRecord(s)
	assert.Equal(t, "abc", r.TraceID)
	assert.Equal(t, "def", r.ParentSpanID)
	assert.Equal(t, "GET /orders", r.OperationName)
	assert.Equal(t, s.Start.UnixMicro(), r.StartTime)
	require.Len(t, r.References, 1)
	assert.Equal(t, RefChildOf, r.References[0].RefType)
	require.Len(t, r.Logs, 1)

	assert.Empty(t, NewRecord(finishedSpan("root", nil)).References)
}

// ---------- udp ----------

func TestUDPReporterSendsJSONBatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	r, err := NewUDP(pc.LocalAddr().String(), WithService("orders"), WithFlushInterval(time.Hour))
	require.NoError(t, err)

	s := finishedSpan("GET /orders", nil)
	r.Report(s)
	require.NoError(t, r.Flush(context.Background()))

	buf := make([]byte, 65535)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)

	var got Batch
	require.NoError(t, sonic.Unmarshal(buf[:n], &got))
	assert.Equal(t, "orders", got.Service)
	require.Len(t, got.Spans, 1)
	assert.Equal(t, s.TraceID, got.Spans[0].TraceID)
	assert.Equal(t, s.SpanID, got.Spans[0].SpanID)

	require.NoError(t, r.Close(context.Background()))
}

func TestUDPPackSplitsLargeBatches(t *testing.T) {
	spans := make([]*tracex.Span, 8)
	for i := range spans {
		spans[i] = finishedSpan("op", nil)
	}
	one, err := sonic.Marshal(newBatch("svc", spans[:1]))
	require.NoError(t, err)

	u := &udpSender{opts: buildOptions([]Option{WithService("svc"), WithMaxPacketSize(len(one) * 3)})}
	packets, dropped := u.pack(spans)
	assert.Empty(t, dropped)
	assert.Greater(t, len(packets), 1)

	total := 0
	for _, p := range packets {
		assert.LessOrEqual(t, len(p), len(one)*3)
		var b Batch
		require.NoError(t, sonic.Unmarshal(p, &b))
		total += len(b.Spans)
	}
	assert.Equal(t, len(spans), total)

	tiny := &udpSender{opts: buildOptions([]Option{WithMaxPacketSize(10)})}
	packets, dropped = tiny.pack(spans[:2])
	assert.Empty(t, packets)
	assert.Len(t, dropped, 2)
}

// ---------- http ----------

func TestHTTPReporterPostsBatch(t *testing.T) {
	var (
		mu  sync.Mutex
		got []Batch
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var b Batch
		if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&b); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		got = append(got, b)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := httpclient.New()
	require.NoError(t, err)
	r, err := NewHTTP(srv.URL+"/api/traces", WithService("orders"), WithHTTPClient(client), WithFlushInterval(time.Hour))
	require.NoError(t, err)

	r.Report(finishedSpan("a", nil))
	r.Report(finishedSpan("b", nil))
	require.NoError(t, r.Close(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "orders", got[0].Service)
	assert.Len(t, got[0].Spans, 2)
}

func TestHTTPReporterRejectedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	l := &recordingLogger{}
	r, err := NewHTTP(srv.URL, WithLogger(l), WithFlushInterval(time.Hour))
	require.NoError(t, err)
	r.Report(finishedSpan("a", nil))
	require.NoError(t, r.Close(context.Background()))
	assert.Contains(t, l.Tags(), "reporter_failure")
}

// ---------- otlp ----------

func TestExporterReporterConvertsSpans(t *testing.T) {
	defer goleak.VerifyNone(t)

	exp := keepExporter{tracetest.NewInMemoryExporter()}
	r := NewExporter(exp, WithService("orders"), WithFlushInterval(time.Hour))

	parent := &tracex.SpanContext{TraceID: "abc", SpanID: "def", Flags: tracex.FlagSampled}
	tr := tracex.NewTracer("orders")
	s := tr.Start("db.query", map[string]any{"rows": 3, tracex.TagError: true}, parent)
	s.Log(tracex.LevelError, "error", "timeout")
	tr.Finish(s)
	r.Report(s)
	require.NoError(t, r.Close(context.Background()))

	stubs := exp.GetSpans()
	require.Len(t, stubs, 1)
	got := stubs[0]
	assert.Equal(t, "db.query", got.Name)
	assert.Equal(t, "00000000000000000000000000000abc", got.SpanContext.TraceID().String())
	assert.Equal(t, "0000000000000def", got.Parent.SpanID().String())
	assert.Equal(t, codes.Error, got.Status.Code)
	assert.Equal(t, "orders", resourceService(got))
	require.Len(t, got.Events, 1)
	assert.Equal(t, "error", got.Events[0].Name)
}

func resourceService(s tracetest.SpanStub) string {
	if s.Resource == nil {
		return ""
	}
	v, _ := s.Resource.Set().Value("service.name")
	return v.AsString()
}

// keepExporter 内存 exporter 的 Shutdown 会清空已导出的 span
type keepExporter struct {
	*tracetest.InMemoryExporter
}

func (keepExporter) Shutdown(context.Context) error { return nil }

func TestToStub(t *testing.T) {
	parent := &tracex.SpanContext{TraceID: "abc", SpanID: "def", Flags: tracex.FlagSampled}
	s := finishedSpan("op", parent)

	stub, ok := toStub(s, nil)
	require.True(t, ok)
	assert.Equal(t, "00000000000000000000000000000abc", stub.SpanContext.TraceID().String())
	assert.True(t, stub.SpanContext.IsSampled())
	assert.True(t, stub.Parent.IsRemote())
	assert.Equal(t, s.End, stub.EndTime)

	bad := &tracex.Span{TraceID: "xyz", SpanID: "1"}
	_, ok = toStub(bad, nil)
	assert.False(t, ok)
}

// ---------- log / composite / metrics ----------

func TestLogReporter(t *testing.T) {
	l := &recordingLogger{}
	r := NewLog(l)
	r.Report(finishedSpan("op", nil))
	r.Report(nil)
	assert.Equal(t, []string{"span_finished"}, l.Tags())
	assert.NoError(t, r.Flush(context.Background()))
	assert.NoError(t, r.Close(context.Background()))
}

type failingReporter struct {
	tracex.NullReporter
	err error
}

func (f failingReporter) Flush(context.Context) error { return f.err }
func (f failingReporter) Close(context.Context) error { return f.err }

func TestCompositeCombinesErrors(t *testing.T) {
	l := &recordingLogger{}
	e1, e2 := errors.New("first"), errors.New("second")
	c := Composite(NewLog(l), failingReporter{err: e1}, nil, failingReporter{err: e2})

	c.Report(finishedSpan("op", nil))
	assert.Len(t, l.Tags(), 1)

	err := c.Flush(context.Background())
	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)
	assert.ErrorIs(t, c.Close(context.Background()), e2)
}

func TestInstrument(t *testing.T) {
	reg := prometheus.NewRegistry()
	out := &fakeSender{}
	b := newBatcher("fake", out, buildOptions([]Option{WithFlushInterval(time.Hour)}))
	r := Instrument(Composite(b, failingReporter{err: errors.New("x")}), reg)

	r.Report(finishedSpan("op", nil))
	r.Report(finishedSpan("op", nil))
	assert.Error(t, r.Flush(context.Background()))
	assert.Error(t, r.Close(context.Background()))

	m := r.(*instrumented).m
	assert.Equal(t, float64(2), testutil.ToFloat64(m.SpansReported))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FlushErrors))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CloseErrors))

	n, err := testutil.GatherAndCount(reg, "tracectx_spans_dropped_total", "tracectx_span_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, out.count())
}
