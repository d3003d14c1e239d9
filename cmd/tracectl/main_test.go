package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imattdu/tracectx/config"
	"github.com/imattdu/tracectx/errorx"
	"github.com/imattdu/tracectx/provider"
	"github.com/imattdu/tracectx/tracex"
)

type recordingReporter struct {
	mu    sync.Mutex
	spans []*tracex.Span
}

func (r *recordingReporter) Report(s *tracex.Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, s)
}

func (r *recordingReporter) Flush(context.Context) error { return nil }
func (r *recordingReporter) Close(context.Context) error { return nil }

func (r *recordingReporter) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.spans))
	for _, s := range r.spans {
		out = append(out, s.Name)
	}
	return out
}

func execute(t *testing.T, console bool, args ...string) (string, *recordingReporter, error) {
	t.Helper()
	cfg := config.Default()
	cfg.EnableForConsole = console
	rep := &recordingReporter{}
	p, err := provider.New(cfg, provider.WithReporter(rep))
	require.NoError(t, err)

	root := newRootCommand(p)
	p.Instrument(root)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return out.String(), rep, err
}

func TestDecode(t *testing.T) {
	out, _, err := execute(t, false, "decode", "abc:def")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "abc", got["trace_id"])
	assert.Equal(t, "def", got["span_id"])
	assert.Equal(t, false, got["sampled"])

	_, _, err = execute(t, false, "decode", "a:b:c:d:e")
	assert.Error(t, err)
}

func TestInjectUsesCommandSpan(t *testing.T) {
	out, rep, err := execute(t, true, "inject", "tenant=acme")
	require.NoError(t, err)

	var headers map[string]string
	require.NoError(t, yaml.Unmarshal([]byte(out), &headers))
	assert.Equal(t, "acme", headers["uberctx-tenant"])
	assert.Len(t, strings.Split(headers["uber-trace-id"], ":"), 4)
	assert.Equal(t, []string{"tracectl inject tenant=acme"}, rep.Names())
}

func TestInjectWithoutConsoleTracing(t *testing.T) {
	_, rep, err := execute(t, false, "inject", "--name", "manual")
	require.NoError(t, err)
	assert.Equal(t, []string{"manual"}, rep.Names())

	_, _, err = execute(t, false, "inject", "broken")
	assert.Error(t, err)
}

func TestParseTagsRejectsMissingValue(t *testing.T) {
	tags, err := parseTags([]string{"tenant=acme", "region=eu=west"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"tenant": "acme", "region": "eu=west"}, tags)

	_, err = parseTags([]string{"=x"})
	require.Error(t, err)
	assert.True(t, errorx.IsUsage(err))
	e, ok := errorx.From(err)
	require.True(t, ok)
	assert.Equal(t, "=x", e.Fields["tag"])
}

func TestEmitContinuesParent(t *testing.T) {
	out, rep, err := execute(t, false, "emit", "nightly", "--parent", "abc:def:0:1", "--steps", "2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "abc:"))
	assert.Equal(t, []string{"step 1", "step 2", "nightly"}, rep.Names())
}

func TestConfigCommand(t *testing.T) {
	out, _, err := execute(t, false, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "service_name: app")
}
