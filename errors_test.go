package objmap_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/objmap"
	"github.com/reoring/objmap/format/json"
	"github.com/reoring/objmap/i18n"
)

type order struct {
	ID  string `objmap:"mandatory"`
	Qty int
}

func TestUnknownProperties(t *testing.T) {
	ctx := context.Background()
	doc := []byte(`{"id":"o1","qty":2,"color":"red"}`)

	var out order
	err := objmap.New().Unmarshal(ctx, json.Format{}, doc, &out)
	var oe *objmap.Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, objmap.CodeUnrecognizedProperty, oe.Code)
	assert.Equal(t, "/color", oe.Path)

	out = order{}
	require.NoError(t, objmap.New().Unmarshal(ctx, json.Format{}, doc, &out, objmap.Config{UnknownProperties: objmap.UnknownStrip}))
	assert.Equal(t, order{ID: "o1", Qty: 2}, out)

	b := objmap.NewBuilder()
	objmap.Type[order](b).IgnoreUnknown()
	out = order{}
	require.NoError(t, build(t, b).Unmarshal(ctx, json.Format{}, doc, &out))
	assert.Equal(t, order{ID: "o1", Qty: 2}, out)

	b = objmap.NewBuilder()
	objmap.Type[order](b).IgnoreProperties("color", "qty")
	m := build(t, b)
	out = order{}
	require.NoError(t, m.Unmarshal(ctx, json.Format{}, doc, &out))
	assert.Equal(t, order{ID: "o1"}, out)
	assert.Equal(t, `{"id":"o1"}`, toJSON(t, m, order{ID: "o1", Qty: 9}))
}

func TestMandatory(t *testing.T) {
	var out order
	err := objmap.New().Unmarshal(context.Background(), json.Format{}, []byte(`{"qty":1}`), &out)
	assert.ErrorIs(t, err, objmap.ErrRequired)
	oe, ok := objmap.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "/id", oe.Path)

	type batch struct{ Orders []order }
	err = objmap.New().Unmarshal(context.Background(), json.Format{}, []byte(`{"orders":[{"id":"a"},{"qty":1}]}`), &batch{})
	oe, ok = objmap.AsError(err)
	require.True(t, ok)
	assert.Equal(t, objmap.CodeRequired, oe.Code)
	assert.Equal(t, "/orders/1/id", oe.Path)
}

func TestMaxDepth(t *testing.T) {
	m := objmap.New()
	ctx := context.Background()
	deep := [][][]int{{{1}}}
	shallow := objmap.Config{MaxDepth: 2}

	_, err := m.Marshal(ctx, json.Format{}, deep, shallow)
	assert.ErrorIs(t, err, objmap.ErrDepthExceeded)
	assert.Equal(t, `[[[1]]]`, toJSON(t, m, deep, objmap.Config{MaxDepth: 3}))
	assert.Equal(t, `[[[1]]]`, toJSON(t, m, deep, objmap.Config{MaxDepth: -1}))

	var out [][][]int
	err = m.Unmarshal(ctx, json.Format{}, []byte(`[[[1]]]`), &out, shallow)
	assert.ErrorIs(t, err, objmap.ErrDepthExceeded)
	fromJSON(t, m, `[[[1]]]`, &out, objmap.Config{MaxDepth: -1})
	assert.Equal(t, deep, out)
}

func TestMaxDepth_Cycle(t *testing.T) {
	n := &node{Name: "loop"}
	n.Next = n
	_, err := objmap.New().Marshal(context.Background(), json.Format{}, n, objmap.Config{MaxDepth: 64})
	assert.ErrorIs(t, err, objmap.ErrDepthExceeded)
}

func TestDuplicateKeys(t *testing.T) {
	m := objmap.New()
	doc := []byte(`{"street":"a","street":"b"}`)

	var out address
	require.NoError(t, m.Unmarshal(context.Background(), json.Format{}, doc, &out))
	assert.Equal(t, "b", out.Street)

	err := m.Unmarshal(context.Background(), json.Format{}, doc, &out, objmap.Config{FailOnDuplicateKeys: true})
	assert.ErrorIs(t, err, objmap.ErrDuplicateKey)
	oe, ok := objmap.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "/street", oe.Path)
}

func TestError_Rendering(t *testing.T) {
	err := &objmap.Error{Code: objmap.CodeInvalidType, Path: "/a/0", Message: "unexpected number", Cause: errors.New("boom")}
	assert.Equal(t, "objmap: invalid type at /a/0: unexpected number: boom", err.Error())
	assert.ErrorIs(t, err, objmap.ErrInvalidType)
	assert.NotErrorIs(t, err, objmap.ErrCodec)
	assert.NotErrorIs(t, objmap.ErrInvalidType, err)

	i18n.SetLanguage("ja")
	t.Cleanup(func() { i18n.SetLanguage("en") })
	assert.Equal(t, "objmap: 型が不正です at /a/0: unexpected number: boom", err.Error())
}

func TestError_Unwrap(t *testing.T) {
	b := objmap.NewBuilder()
	objmap.Type[level](b).Codec(objmap.Codec(func(*objmap.Encoder, level) error { return context.DeadlineExceeded }, nil))
	_, err := build(t, b).Marshal(context.Background(), json.Format{}, level(1))
	assert.ErrorIs(t, err, objmap.ErrCodec)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
