package yaml

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/objmap"
	eng "github.com/reoring/objmap/internal/engine"
)

func decode(t *testing.T, doc string) any {
	t.Helper()
	v, err := eng.DecodeAny(NewReader(strings.NewReader(doc)), false)
	require.NoError(t, err)
	return v
}

func TestReader_Scalars(t *testing.T) {
	v := decode(t, `
name: Abbott
count: 0x10
ratio: 7500.0
ok: true
none: ~
quoted: "true"
list: [1, two]
`)
	assert.Equal(t, map[string]any{
		"name":   "Abbott",
		"count":  float64(16),
		"ratio":  7500.0,
		"ok":     true,
		"none":   nil,
		"quoted": "true",
		"list":   []any{float64(1), "two"},
	}, v)
}

func TestReader_Aliases(t *testing.T) {
	v := decode(t, `
base: &b {x: 1}
copy: *b
`)
	assert.Equal(t, map[string]any{
		"base": map[string]any{"x": float64(1)},
		"copy": map[string]any{"x": float64(1)},
	}, v)
}

func TestReader_KeepsOrder(t *testing.T) {
	src := NewReader(strings.NewReader("b: 1\na: 2\n"))
	var keys []string
	for {
		tok, err := src.NextToken()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if tok.Kind == objmap.KindKey {
			keys = append(keys, tok.String)
		}
	}
	assert.Equal(t, []string{"b", "a"}, keys)
}

func TestReader_Empty(t *testing.T) {
	_, err := NewReader(strings.NewReader("")).NextToken()
	assert.Equal(t, io.EOF, err)
}

func TestReader_NonFinite(t *testing.T) {
	_, err := NewReader(strings.NewReader("x: .inf\n")).NextToken()
	assert.Error(t, err)
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := Format{}.NewWriter(&buf)
	toks := eng.NewBuffer(
		eng.BeginObject(),
		eng.Key("type"), eng.String("truck"),
		eng.Key("payload"), eng.Number("7500.0"),
		eng.Key("flag"), eng.String("true"),
		eng.Key("tags"), eng.BeginArray(), eng.Int(1), eng.Null(), eng.EndArray(),
		eng.EndObject(),
	)
	require.NoError(t, toks.WriteTo(w))
	require.NoError(t, w.Close())
	assert.Equal(t, "type: truck\npayload: 7500.0\nflag: \"true\"\ntags:\n  - 1\n  - null\n", buf.String())
}
