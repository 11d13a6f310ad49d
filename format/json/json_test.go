package json

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/objmap"
	eng "github.com/reoring/objmap/internal/engine"
)

func readAll(t *testing.T, src objmap.TokenSource) []objmap.Token {
	t.Helper()
	var out []objmap.Token
	for {
		tok, err := src.NextToken()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, tok)
	}
}

func TestReader_Tokens(t *testing.T) {
	toks := readAll(t, NewBytes([]byte(`{"a":[1,"x",true,null],"b":{"c":7500.0}}`)))
	kinds := make([]objmap.Kind, 0, len(toks))
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []objmap.Kind{
		objmap.KindBeginObject,
		objmap.KindKey, objmap.KindBeginArray, objmap.KindNumber, objmap.KindString, objmap.KindBool, objmap.KindNull, objmap.KindEndArray,
		objmap.KindKey, objmap.KindBeginObject, objmap.KindKey, objmap.KindNumber, objmap.KindEndObject,
		objmap.KindEndObject,
	}, kinds)
	assert.Equal(t, "7500.0", toks[11].Number, "number literal is preserved")
	assert.Equal(t, "x", toks[4].String)
}

func TestReader_Truncated(t *testing.T) {
	_, err := eng.DecodeAny(NewBytes([]byte(`{"a":`)), false)
	assert.Error(t, err)
}

func TestWriter_Compact(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, "")
	in := eng.NewBuffer(
		eng.BeginArray(),
		eng.BeginObject(), eng.Key("type"), eng.String("car"), eng.Key("seats"), eng.Int(5), eng.EndObject(),
		eng.String("a<b"), eng.Number("7500.0"), eng.Bool(false), eng.Null(),
		eng.EndArray(),
	)
	require.NoError(t, in.WriteTo(w))
	require.NoError(t, w.Close())
	assert.Equal(t, `[{"type":"car","seats":5},"a<b",7500.0,false,null]`, buf.String())
}

func TestWriter_Indent(t *testing.T) {
	var buf bytes.Buffer
	w := Format{Indent: "  "}.NewWriter(&buf)
	require.NoError(t, eng.NewBuffer(eng.BeginObject(), eng.Key("a"), eng.Int(1), eng.EndObject()).WriteTo(w))
	require.NoError(t, w.Close())
	assert.Equal(t, "{\n  \"a\": 1\n}", buf.String())
}

func TestWriter_StructureErrors(t *testing.T) {
	w := NewWriter(io.Discard, "")
	require.NoError(t, w.WriteToken(eng.BeginObject()))
	assert.Error(t, w.WriteToken(eng.Int(1)), "value without key")

	w = NewWriter(io.Discard, "")
	require.NoError(t, w.WriteToken(eng.Int(1)))
	assert.Error(t, w.WriteToken(eng.Int(2)), "second root")

	w = NewWriter(io.Discard, "")
	require.NoError(t, w.WriteToken(eng.BeginArray()))
	assert.Error(t, w.Close(), "unterminated array")

	w = NewWriter(io.Discard, "")
	assert.Error(t, w.WriteToken(eng.Number("NaN")))
}
