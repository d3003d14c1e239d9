package logx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imattdu/tracectx/cctx"
	"github.com/imattdu/tracectx/errorx"
	"github.com/imattdu/tracectx/tracex"
)

func activeContext(t *testing.T) (context.Context, *tracex.Context) {
	t.Helper()
	tc := tracex.New(tracex.WithTracer(tracex.NewTracer("logx-test")), tracex.WithEnvironment("test"))
	require.NoError(t, tc.Parse("op", tracex.Bag{}))
	return tracex.WithAmbient(context.Background(), tracex.NewAmbient(tc)), tc
}

func attrMap(attrs []slog.Attr) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, a := range attrs {
		out[a.Key] = a.Value.Any()
	}
	return out
}

func TestEncodeLogCarriesTraceIDs(t *testing.T) {
	ctx, tc := activeContext(t)
	ctx = cctx.With(ctx, "biz_tag", "orders")

	got := attrMap(encodeLog(ctx, TagRequestIn, "hello", "k", 1, 2, "dropped"))
	assert.Equal(t, tc.TraceID(), got[TraceID])
	assert.Equal(t, tc.SpanID(), got[SpanID])
	assert.Equal(t, tc.CorrelationID(), got[UUID])
	assert.Equal(t, "orders", got["biz_tag"])
	assert.Equal(t, TagRequestIn, got["tag"])
	assert.Equal(t, "hello", got["msg"])
	assert.EqualValues(t, 1, got["k"])
	assert.NotContains(t, got, tracex.AmbientKey)
}

func TestEncodeLogWithoutTrace(t *testing.T) {
	got := attrMap(encodeLog(context.Background(), "", errors.New("boom")))
	assert.NotContains(t, got, TraceID)
	assert.Equal(t, "boom", got["error"])
}

func TestMirrorToSpan(t *testing.T) {
	l, err := New(Config{AppName: "mirror", LogDir: t.TempDir(), MirrorToSpan: true})
	require.NoError(t, err)

	ctx, tc := activeContext(t)
	l.Warn(ctx, TagHttpFailure, "upstream slow", Cost, 1200)

	logs := tc.Span().Logs()
	require.Len(t, logs, 3)
	byKey := make(map[string]tracex.LogEntry, len(logs))
	for _, e := range logs {
		byKey[e.Key] = e
	}
	assert.Equal(t, "1200", byKey[Cost].Value)
	assert.Equal(t, "upstream slow", byKey["msg"].Value)
	assert.Equal(t, TagHttpFailure, byKey["tag"].Value)
	assert.Equal(t, "warn", byKey["tag"].Level)
}

func TestMirrorDisabledOrInactive(t *testing.T) {
	l, err := New(Config{AppName: "plain", LogDir: t.TempDir()})
	require.NoError(t, err)
	ctx, tc := activeContext(t)
	l.Info(ctx, TagUndef, "not mirrored")
	assert.Empty(t, tc.Span().Logs())

	m, err := New(Config{AppName: "mirror2", LogDir: t.TempDir(), MirrorToSpan: true})
	require.NoError(t, err)
	require.NoError(t, tc.Finish(ctx))
	m.Info(ctx, TagUndef, "after finish")
	assert.Empty(t, tc.Span().Logs())

	// 没有 Context 的 ctx 不受影响
	m.Info(context.Background(), TagUndef, "no trace")
}

func TestEncodeLogExpandsWrappedError(t *testing.T) {
	inner := errorx.NewUsage(errorx.ErrNoSpan,
		errorx.WithService(errorx.ServiceTracex),
		errorx.WithOp("finish"),
		errorx.WithField("name", "job"))
	got := attrMap(encodeLog(context.Background(), TagUndef, fmt.Errorf("end: %w", inner)))

	assert.Equal(t, "end: tracex.finish: no active span (code=3002)", got["error"])
	assert.EqualValues(t, errorx.ErrNoSpan.Code, got["code"])
	assert.Equal(t, "tracex", got["service"])
	assert.Equal(t, "finish", got["op"])
	assert.Equal(t, "no active span", got[Msg])
	assert.Equal(t, "job", got["name"])
}

func TestEncodeLogFlattensMap(t *testing.T) {
	got := attrMap(encodeLog(context.Background(), TagRequestIn, map[string]any{Method: "GET", Path: "/api/ping"}, Cost, 3))
	assert.Equal(t, "GET", got[Method])
	assert.Equal(t, "/api/ping", got[Path])
	assert.EqualValues(t, 3, got[Cost])
	assert.NotContains(t, got, Msg)
}
