package cbor

import (
	"bytes"
	"testing"

	_cbor "github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eng "github.com/reoring/objmap/internal/engine"
)

func TestRoundtrip(t *testing.T) {
	var buf bytes.Buffer
	w := Format{}.NewWriter(&buf)
	toks := eng.NewBuffer(
		eng.BeginObject(),
		eng.Key("type"), eng.String("truck"),
		eng.Key("payload"), eng.Number("7500.0"),
		eng.Key("axles"), eng.Int(-3),
		eng.Key("big"), eng.Number("18446744073709551615"),
		eng.Key("list"), eng.BeginArray(), eng.Bool(true), eng.Null(), eng.EndArray(),
		eng.EndObject(),
	)
	require.NoError(t, toks.WriteTo(w))
	require.NoError(t, w.Close())

	v, err := eng.DecodeAny(Format{}.NewReader(bytes.NewReader(buf.Bytes())), true)
	require.NoError(t, err)
	m := v.(map[string]any)
	assert.Equal(t, "truck", m["type"])
	assert.EqualValues(t, "7500", m["payload"])
	assert.EqualValues(t, "-3", m["axles"])
	assert.EqualValues(t, "18446744073709551615", m["big"])
	assert.Equal(t, []any{true, nil}, m["list"])
}

func TestWriter_Deterministic(t *testing.T) {
	encode := func(keys ...string) []byte {
		var buf bytes.Buffer
		w := Format{}.NewWriter(&buf)
		require.NoError(t, w.WriteToken(eng.BeginObject()))
		for _, k := range keys {
			require.NoError(t, w.WriteToken(eng.Key(k)))
			require.NoError(t, w.WriteToken(eng.Int(1)))
		}
		require.NoError(t, w.WriteToken(eng.EndObject()))
		require.NoError(t, w.Close())
		return buf.Bytes()
	}
	assert.Equal(t, encode("b", "a", "cc"), encode("cc", "a", "b"))
}

func TestReader_ByteStrings(t *testing.T) {
	data, err := _cbor.Marshal(map[string]any{"raw": []byte("hi")})
	require.NoError(t, err)
	v, err := eng.DecodeAny(Format{}.NewReader(bytes.NewReader(data)), false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"raw": "aGk="}, v)
}

func TestWriter_Incomplete(t *testing.T) {
	w := Format{}.NewWriter(&bytes.Buffer{})
	require.NoError(t, w.WriteToken(eng.BeginArray()))
	assert.Error(t, w.Close())
}
