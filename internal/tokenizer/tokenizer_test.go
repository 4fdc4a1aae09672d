package tokenizer

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, tok Tokenizer) []string {
	t.Helper()
	var out []string
	for tok.Next() {
		out = append(out, tok.Word())
	}
	require.NoError(t, tok.Err())
	require.NoError(t, tok.Close())
	return out
}

func reader(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func TestNew_Kinds(t *testing.T) {
	input := "Hello, wörld!\tfoo_bar parseHTTPRequest x 42"

	tests := []struct {
		kind   Kind
		expect []string
	}{
		{KindWhitespace, []string{"Hello,", "wörld!", "foo_bar", "parseHTTPRequest", "x", "42"}},
		{KindAlphanum, []string{"hello", "wörld", "foo", "bar", "parsehttprequest", "x", "42"}},
		{KindCode, []string{"hello", "wörld", "foo", "bar", "parse", "http", "request", "42"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.expect, collect(t, New(tt.kind, reader(input))))
		})
	}
}

func TestNew_AlphanumNormalizesToNFC(t *testing.T) {
	// "e" followed by a combining acute accent composes to "é".
	decomposed := "cafe\u0301"

	got := collect(t, New(KindAlphanum, reader(decomposed)))

	assert.Equal(t, []string{"caf\u00e9"}, got)
}

func TestNew_EmptyInput(t *testing.T) {
	for _, kind := range Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			assert.Empty(t, collect(t, New(kind, reader(""))))
			assert.Empty(t, collect(t, New(kind, reader(" \n\t ,.;"))))
		})
	}
}

func TestNew_TokenSpanningBufferBoundary(t *testing.T) {
	long := strings.Repeat("a", 100*1024)

	got := collect(t, New(KindAlphanum, reader("x "+long+" y")))

	require.Len(t, got, 3)
	assert.Equal(t, long, got[1])
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }
func (failingReader) Close() error             { return nil }

func TestNew_ReportsReadError(t *testing.T) {
	tok := New(KindAlphanum, failingReader{})

	assert.False(t, tok.Next())
	assert.ErrorContains(t, tok.Err(), "disk on fire")
}

type closeRecorder struct {
	io.Reader
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestTokenizer_CloseClosesInput(t *testing.T) {
	rc := &closeRecorder{Reader: strings.NewReader("a b")}

	require.NoError(t, New(KindCode, rc).Close())

	assert.True(t, rc.closed)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Code ")
	require.NoError(t, err)
	assert.Equal(t, KindCode, k)

	_, err = ParseKind("bigram")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "Hello,", Normalize(KindWhitespace, " Hello, "))
	assert.Equal(t, "café", Normalize(KindAlphanum, "CAFÉ"))
	assert.Equal(t, "parser", Normalize(KindCode, "Parser"))
}
