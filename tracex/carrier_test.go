package tracex

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"
)

func TestBagWireID(t *testing.T) {
	id, ok := Bag{WireIDKey: "a:b:0:1"}.WireID()
	assert.True(t, ok)
	assert.Equal(t, "a:b:0:1", id)

	id, ok = Bag{WireIDKey: []string{"x:y:0:1", "ignored"}}.WireID()
	assert.True(t, ok)
	assert.Equal(t, "x:y:0:1", id)

	_, ok = Bag{WireIDKey: 12}.WireID()
	assert.False(t, ok)
	_, ok = Bag{}.WireID()
	assert.False(t, ok)
}

func TestHeaderRoundTrip(t *testing.T) {
	bag := Bag{
		WireIDKey:         "abc:def:0:1",
		PropagatedTagsKey: map[string]string{"tenant": "acme"},
	}
	h := http.Header{}
	InjectHeader(bag, h)
	assert.Equal(t, "abc:def:0:1", h.Get("Uber-Trace-Id"))
	assert.Equal(t, "acme", h.Get("Uberctx-Tenant"))

	back := BagFromHeader(h)
	id, ok := back.WireID()
	require.True(t, ok)
	assert.Equal(t, "abc:def:0:1", id)
	assert.Equal(t, map[string]string{"tenant": "acme"}, back.PropagatedTags())
}

func TestHeaderTagNamesComeBackLowercase(t *testing.T) {
	h := http.Header{}
	InjectHeader(Bag{PropagatedTagsKey: map[string]string{"Tenant": "acme"}}, h)
	assert.Equal(t, map[string]string{"tenant": "acme"}, BagFromHeader(h).PropagatedTags())
}

func TestBagFromHeaderEmpty(t *testing.T) {
	assert.Empty(t, BagFromHeader(nil))
	assert.Empty(t, BagFromHeader(http.Header{"Accept": {"*/*"}}))
}

func TestMetadataRoundTrip(t *testing.T) {
	bag := Bag{
		WireIDKey:         "abc:def:0:1",
		PropagatedTagsKey: map[string]string{"Tenant": "acme"},
	}
	md := metadata.MD{}
	InjectMetadata(bag, md)
	assert.Equal(t, []string{"abc:def:0:1"}, md.Get(WireIDKey))

	back := BagFromMetadata(md)
	assert.Equal(t, map[string]string{"tenant": "acme"}, back.PropagatedTags())
	id, _ := back.WireID()
	assert.Equal(t, "abc:def:0:1", id)
}

func TestTracerInjectExtract(t *testing.T) {
	tr := NewTracer("svc")
	sc := SpanContext{TraceID: "abc", SpanID: "def", Flags: FlagSampled}

	data := Bag{}
	require.NoError(t, tr.Inject(sc, FormatHTTPHeaders, data))
	got, ok := tr.Extract(FormatTextMap, data)
	require.True(t, ok)
	assert.True(t, got.Remote)
	got.Remote = false
	assert.Equal(t, sc, got)

	assert.Error(t, tr.Inject(sc, Format("binary"), Bag{}))
	assert.Error(t, tr.Inject(sc, FormatTextMap, nil))
	_, ok = tr.Extract(Format("binary"), data)
	assert.False(t, ok)
}
