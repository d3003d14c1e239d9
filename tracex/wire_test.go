package tracex

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPadWireID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc", "abc:0:0:0"},
		{"abc:def", "abc:def:0:0"},
		{"abc:def:1", "abc:def:1:0"},
		{"abc:def:1:1", "abc:def:1:1"},
		{"", ":0:0:0"},
		{"a:b:c:d:e", "a:b:c:d:e"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, PadWireID(tt.in))
		})
	}
}

func TestPadWireIDAlwaysFourFields(t *testing.T) {
	ids := []string{"1", "1:2", "1:2:3", "1:2:3:1", "ff", "ff:aa"}
	for _, id := range ids {
		padded := PadWireID(id)
		assert.Len(t, strings.Split(padded, ":"), 4, id)
	}
}

func TestDecode(t *testing.T) {
	sc, err := DefaultCodec.Decode("ABC:def:0:1")
	require.NoError(t, err)
	assert.Equal(t, SpanContext{TraceID: "abc", SpanID: "def", Flags: 1}, sc)
	assert.True(t, sc.IsSampled())

	sc, err = DefaultCodec.Decode("abc:def:123:3")
	require.NoError(t, err)
	assert.Equal(t, "123", sc.ParentID)
	assert.Equal(t, FlagSampled|FlagDebug, sc.Flags)
}

func TestDecodeMalformed(t *testing.T) {
	bad := []string{
		"",
		"abc",
		"abc:def",
		"abc:def:0:0:0",
		"xyz:def:0:0",
		"0:def:0:0",
		"abc:0:0:0",
		"abc:def:zz:0",
		"abc:def:0:1ff",
		strings.Repeat("a", 33) + ":def:0:0",
	}
	for _, id := range bad {
		_, err := DefaultCodec.Decode(id)
		assert.Error(t, err, id)
		assert.True(t, errors.Is(err, ErrMalformedWireID), id)
	}
}

func TestEncodeDecodeKeepsIdentity(t *testing.T) {
	sc := SpanContext{TraceID: newTraceID(), SpanID: newSpanID(), ParentID: newSpanID(), Flags: FlagSampled}
	got, err := DefaultCodec.Decode(DefaultCodec.Encode(sc))
	require.NoError(t, err)
	assert.Equal(t, sc, got)

	root := SpanContext{TraceID: "1", SpanID: "2"}
	assert.Equal(t, "1:2:0:0", root.String())
}
