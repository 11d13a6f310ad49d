package objmap_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/objmap"
	"github.com/reoring/objmap/format/json"
)

type money struct {
	Amount   int64
	Currency string
	Note     string
}

func newMoney(amount int64, currency string) (*money, error) {
	if currency == "" {
		return nil, errors.New("currency required")
	}
	return &money{Amount: amount, Currency: currency, Note: "created"}, nil
}

func TestCreator(t *testing.T) {
	b := objmap.NewBuilder()
	objmap.Type[money](b).Creator(newMoney, "amount", "currency")
	m := build(t, b)

	var out money
	fromJSON(t, m, `{"note":"n","currency":"EUR","amount":5}`, &out)
	assert.Equal(t, money{Amount: 5, Currency: "EUR", Note: "n"}, out)

	fromJSON(t, m, `{"currency":"JPY","amount":7}`, &out)
	assert.Equal(t, money{Amount: 7, Currency: "JPY", Note: "created"}, out)

	err := m.Unmarshal(context.Background(), json.Format{}, []byte(`{"amount":5}`), &out)
	assert.ErrorIs(t, err, objmap.ErrCodec)

	err = m.Unmarshal(context.Background(), json.Format{}, []byte(`{"amount":5,"currency":"EUR","bogus":1}`), &out)
	assert.ErrorIs(t, err, objmap.ErrUnrecognizedProperty)
}

func TestCreator_FailureIsCodecError(t *testing.T) {
	b := objmap.NewBuilder()
	objmap.Type[money](b).Creator(newMoney, "amount", "currency")
	m := build(t, b)

	var out []money
	err := m.Unmarshal(context.Background(), json.Format{}, []byte(`[{"amount":1,"currency":"EUR"},{"amount":2}]`), &out)
	assert.ErrorIs(t, err, objmap.ErrCodec)
	assert.NotErrorIs(t, err, objmap.ErrEmptyType)
	oe, ok := objmap.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "/1", oe.Path)
	assert.Equal(t, reflect.TypeFor[money](), oe.Type)
	assert.EqualError(t, oe.Cause, "currency required")
}

func TestCreator_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		fn     any
		params []string
	}{
		{"arity", newMoney, []string{"amount"}},
		{"not a function", 42, nil},
		{"wrong result", func(int64, string) string { return "" }, []string{"amount", "currency"}},
		{"second result not error", func(int64, string) (money, bool) { return money{}, true }, []string{"amount", "currency"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := objmap.NewBuilder()
			objmap.Type[money](b).Creator(tt.fn, tt.params...)
			_, err := b.Build()
			assert.ErrorIs(t, err, objmap.ErrSchema)
		})
	}

	b := objmap.NewBuilder(objmap.WithVisibility(objmap.VisibilityPolicy{Creator: objmap.VisibilityNone}))
	objmap.Type[money](b).Creator(42)
	_, err := b.Build()
	assert.NoError(t, err, "creators are not discovered")
}

// vendorRecord stands for a type whose source cannot carry tags.
type vendorRecord struct {
	Key      string
	Internal string
	Count    int
}

type vendorRecordMixin struct {
	Key      string `json:"k"`
	Internal string `objmap:"-"`
}

func TestMixIn(t *testing.T) {
	b := objmap.NewBuilder()
	b.MixIn(reflect.TypeFor[vendorRecord](), reflect.TypeFor[vendorRecordMixin]())
	objmap.Type[vendorRecordMixin](b).Property("Count").Name("n").Mandatory()
	m := build(t, b)

	assert.Equal(t, `{"k":"a","n":2}`, toJSON(t, m, vendorRecord{Key: "a", Internal: "x", Count: 2}))

	var out vendorRecord
	fromJSON(t, m, `{"k":"b","n":3}`, &out)
	assert.Equal(t, vendorRecord{Key: "b", Count: 3}, out)

	err := m.Unmarshal(context.Background(), json.Format{}, []byte(`{"k":"b"}`), &out)
	assert.ErrorIs(t, err, objmap.ErrRequired)

	b = objmap.NewBuilder()
	b.MixIn(reflect.TypeFor[vendorRecord](), reflect.TypeFor[vendorRecordMixin]())
	objmap.Type[vendorRecord](b).Property("Key").Name("key")
	assert.Equal(t, `{"key":"a","count":2}`, toJSON(t, build(t, b), vendorRecord{Key: "a", Count: 2}), "target configuration wins over the mix-in")
}

type clock struct{ zone string }

type request struct {
	Body  string
	User  string `objmap:"inject=user"`
	Clock *clock `objmap:"inject"`
	Trace string `objmap:"inject=trace"`
}

func TestInjection(t *testing.T) {
	m := objmap.New()
	c := &clock{zone: "UTC"}
	ctx := objmap.WithInjected(context.Background(), c)
	ctx = objmap.WithInjectable(ctx, "trace", "t-1")
	ctx = objmap.WithInjectable(ctx, "user", "from-context")
	cfg := objmap.Config{Injectables: map[string]any{"user": "alice"}}

	var out request
	require.NoError(t, m.Unmarshal(ctx, json.Format{}, []byte(`{"body":"b"}`), &out, cfg))
	assert.Equal(t, "b", out.Body)
	assert.Equal(t, "alice", out.User)
	assert.Same(t, c, out.Clock)
	assert.Equal(t, "t-1", out.Trace)

	out = request{}
	require.NoError(t, m.Unmarshal(ctx, json.Format{}, []byte(`{"body":"b","user":"bob"}`), &out, cfg))
	assert.Equal(t, "bob", out.User, "document values win")

	out = request{}
	require.NoError(t, m.Unmarshal(context.Background(), json.Format{}, []byte(`{"body":"b"}`), &out))
	assert.Empty(t, out.User)
	assert.Nil(t, out.Clock)
}

type street struct {
	Line string
	City string
}

type shipment struct {
	ID   string
	To   street  `objmap:"unwrapped"`
	From *street `objmap:"unwrapped"`
}

func TestUnwrapped(t *testing.T) {
	b := objmap.NewBuilder()
	objmap.Type[shipment](b).Property("From").Ignore()
	m := build(t, b)

	in := shipment{ID: "s", To: street{Line: "1 Way", City: "Rome"}}
	doc := toJSON(t, m, in)
	assert.Equal(t, `{"id":"s","line":"1 Way","city":"Rome"}`, doc)

	var out shipment
	fromJSON(t, m, doc, &out)
	assert.Equal(t, in, out)
}

type event struct {
	Name  string
	Attrs map[string]any `objmap:"any"`
}

func TestAnyProperties(t *testing.T) {
	m := objmap.New()
	var out event
	fromJSON(t, m, `{"name":"deploy","region":"eu","count":3}`, &out)
	assert.Equal(t, event{Name: "deploy", Attrs: map[string]any{"region": "eu", "count": 3.0}}, out)
	assert.Equal(t, `{"name":"deploy","count":3.0,"region":"eu"}`, toJSON(t, m, out))

	b := objmap.NewBuilder()
	objmap.Type[money](b).Property("Note").AnyProperties()
	_, err := b.Build()
	assert.ErrorIs(t, err, objmap.ErrSchema)
}

func TestOrderAndRename(t *testing.T) {
	b := objmap.NewBuilder()
	objmap.Type[money](b).
		Order("currency", "amt").
		Property("Amount").Name("amt").Alias("value")
	m := build(t, b)

	assert.Equal(t, `{"currency":"EUR","amt":5,"note":""}`, toJSON(t, m, money{Amount: 5, Currency: "EUR"}))

	var out money
	fromJSON(t, m, `{"value":9}`, &out)
	assert.Equal(t, int64(9), out.Amount)
}

func TestIgnoreType(t *testing.T) {
	type secret struct{ Key string }
	type holder struct {
		Name   string
		Secret secret
		Ptr    *secret
	}
	b := objmap.NewBuilder()
	objmap.Type[secret](b).IgnoreType()
	m := build(t, b)
	assert.Equal(t, `{"name":"n"}`, toJSON(t, m, holder{Name: "n", Ptr: &secret{}}))
}

func TestDuplicatePropertyName(t *testing.T) {
	type clash struct {
		A string `objmap:"name=x"`
		B string `objmap:"name=x"`
	}
	b := objmap.NewBuilder()
	objmap.Type[clash](b)
	_, err := b.Build()
	assert.ErrorIs(t, err, objmap.ErrSchema)

	_, err = objmap.New().Marshal(context.Background(), json.Format{}, clash{})
	assert.ErrorIs(t, err, objmap.ErrSchema)
}
