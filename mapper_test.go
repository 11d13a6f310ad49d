package objmap_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/objmap"
	"github.com/reoring/objmap/format/json"
)

type address struct {
	Street string `json:"street"`
	City   string `json:"city"`
}

type person struct {
	Name     string            `json:"name"`
	Age      int               `json:"age"`
	Score    float64           `json:"score"`
	Admin    bool              `json:"admin"`
	Home     *address          `json:"home"`
	Tags     []string          `json:"tags"`
	Counts   map[string]int    `json:"counts"`
	Born     time.Time         `json:"born"`
	Timeout  time.Duration     `json:"timeout"`
	Raw      []byte            `json:"raw"`
	Extra    map[int]string    `json:"extra"`
	Skipped  string            `json:"-"`
	Optional *string           `json:"optional,omitempty"`
	Nested   [][2]int          `json:"nested"`
	Any      any               `json:"any"`
	Labels   map[string]string `json:"labels,omitempty"`
}

func TestRoundtrip_Acyclic(t *testing.T) {
	m := objmap.New()
	in := person{
		Name:    "Ada",
		Age:     36,
		Score:   99.5,
		Admin:   true,
		Home:    &address{Street: "1 Loop", City: "London"},
		Tags:    []string{"math", "code"},
		Counts:  map[string]int{"b": 2, "a": 1},
		Born:    time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC),
		Timeout: 90 * time.Second,
		Raw:     []byte("hi"),
		Extra:   map[int]string{2: "two", 10: "ten"},
		Skipped: "never",
		Nested:  [][2]int{{1, 2}, {3, 4}},
		Any:     map[string]any{"k": []any{"v", 1.5, nil}},
	}
	doc := toJSON(t, m, in)
	assert.Equal(t, `{"name":"Ada","age":36,"score":99.5,"admin":true,"home":{"street":"1 Loop","city":"London"},`+
		`"tags":["math","code"],"counts":{"a":1,"b":2},"born":"1815-12-10T00:00:00Z","timeout":"1m30s","raw":"aGk=",`+
		`"extra":{"10":"ten","2":"two"},"nested":[[1,2],[3,4]],"any":{"k":["v",1.5,null]}}`, doc)

	var out person
	fromJSON(t, m, doc, &out)
	in.Skipped = ""
	assert.Equal(t, in, out)
}

func TestSerialize_TokenStream(t *testing.T) {
	m := objmap.New()
	ts, err := m.Serialize(context.Background(), address{Street: "s", City: "c"}, nil)
	require.NoError(t, err)
	kinds := make([]objmap.Kind, 0, ts.Len())
	for _, tok := range ts.Tokens() {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []objmap.Kind{
		objmap.KindBeginObject, objmap.KindKey, objmap.KindString, objmap.KindKey, objmap.KindString, objmap.KindEndObject,
	}, kinds)

	v, err := m.Deserialize(context.Background(), ts, reflect.TypeFor[address]())
	require.NoError(t, err)
	assert.Equal(t, address{Street: "s", City: "c"}, v.Interface())
}

func TestDeserializeAs_Generic(t *testing.T) {
	m := objmap.New()
	ts, err := objmap.SerializeOf(context.Background(), m, []int{1, 2, 3})
	require.NoError(t, err)
	got, err := objmap.DeserializeAs[[]int](context.Background(), m, ts)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestSerialize_DeclaredTypeMismatch(t *testing.T) {
	m := objmap.New()
	_, err := m.Serialize(context.Background(), "text", reflect.TypeFor[int]())
	assert.Equal(t, objmap.CodeInvalidType, errCode(t, err))
}

func TestSerialize_CanceledContext(t *testing.T) {
	m := objmap.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Serialize(ctx, 1, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFloatFormatting(t *testing.T) {
	m := objmap.New()
	assert.Equal(t, `[7500.0,0.5,-2.0,1e+21,1e-7]`, toJSON(t, m, []float64{7500, 0.5, -2, 1e21, 1e-7}))
	_, err := m.Marshal(context.Background(), json.Format{}, []float64{1, nan()})
	assert.Equal(t, objmap.CodeCodec, errCode(t, err))
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}

func TestNumbers_IntegralFloatText(t *testing.T) {
	m := objmap.New()
	var n struct {
		A int   `json:"a"`
		B uint8 `json:"b"`
	}
	fromJSON(t, m, `{"a":5.0,"b":1e2}`, &n)
	assert.Equal(t, 5, n.A)
	assert.Equal(t, uint8(100), n.B)

	err := m.Unmarshal(context.Background(), json.Format{}, []byte(`{"a":5.5}`), &n)
	assert.Equal(t, objmap.CodeInvalidType, errCode(t, err))
	err = m.Unmarshal(context.Background(), json.Format{}, []byte(`{"b":300}`), &n)
	assert.Equal(t, objmap.CodeInvalidType, errCode(t, err))
}

func TestUseNumber(t *testing.T) {
	m := objmap.New()
	var v any
	fromJSON(t, m, `{"n":12345678901234567890}`, &v, objmap.Config{UseNumber: true})
	n := v.(map[string]any)["n"]
	assert.Equal(t, "12345678901234567890", reflect.ValueOf(n).String())
}

func TestNullHandling(t *testing.T) {
	m := objmap.New()
	out := person{Name: "x", Home: &address{City: "y"}, Tags: []string{"t"}}
	fromJSON(t, m, `{"name":null,"home":null,"tags":null}`, &out)
	assert.Empty(t, out.Name)
	assert.Nil(t, out.Home)
	assert.Nil(t, out.Tags)
}

func TestNaming(t *testing.T) {
	type server struct {
		HTTPServer string
		MaxConns   int
		ID         string
	}
	v := server{HTTPServer: "a", MaxConns: 2, ID: "i"}

	assert.Equal(t, `{"httpServer":"a","maxConns":2,"id":"i"}`, toJSON(t, objmap.New(), v))
	assert.Equal(t, `{"http_server":"a","max_conns":2,"id":"i"}`, toJSON(t, objmap.New(objmap.WithNaming(objmap.SnakeCase)), v))
	assert.Equal(t, `{"HTTPServer":"a","MaxConns":2,"ID":"i"}`, toJSON(t, objmap.New(objmap.WithNaming(objmap.UpperCamelCase)), v))

	b := objmap.NewBuilder()
	objmap.Type[server](b).Naming(objmap.KebabCase)
	assert.Equal(t, `{"http-server":"a","max-conns":2,"id":"i"}`, toJSON(t, build(t, b), v))
}

type tagged struct {
	ID       string  `objmap:"name=id"`
	Title    string  `json:"title" objmap:"alias=heading|caption"`
	Secret   string  `objmap:"writeonly"`
	Computed string  `objmap:"readonly"`
	Hidden   string  `objmap:"-"`
	Note     *string `objmap:"nonnull"`
	Empty    string  `objmap:"nonempty"`
	internal string
}

func TestTags(t *testing.T) {
	m := objmap.New()
	v := tagged{ID: "1", Title: "T", Secret: "s", Computed: "c", Hidden: "h", internal: "i"}
	assert.Equal(t, `{"id":"1","title":"T","computed":"c"}`, toJSON(t, m, v))

	var out tagged
	fromJSON(t, m, `{"id":"2","caption":"C","secret":"pw","computed":"ignored"}`, &out)
	assert.Equal(t, tagged{ID: "2", Title: "C", Secret: "pw"}, out)

	err := m.Unmarshal(context.Background(), json.Format{}, []byte(`{"hidden":"x"}`), &out)
	assert.ErrorIs(t, err, objmap.ErrUnrecognizedProperty)
}

type base struct {
	ID      string
	Created string
}

type derived struct {
	base
	Name    string
	Created int
}

func TestEmbeddedPromotion(t *testing.T) {
	m := objmap.New()
	v := derived{base: base{ID: "b", Created: "shadowed"}, Name: "n", Created: 7}
	assert.Equal(t, `{"id":"b","name":"n","created":7}`, toJSON(t, m, v))

	var out derived
	fromJSON(t, m, `{"id":"x","name":"y","created":3}`, &out)
	assert.Equal(t, derived{base: base{ID: "x"}, Name: "y", Created: 3}, out)
}

type thermometer struct {
	celsius float64
}

func (t *thermometer) GetFahrenheit() float64  { return t.celsius*9/5 + 32 }
func (t *thermometer) SetFahrenheit(f float64) { t.celsius = (f - 32) * 5 / 9 }

func TestGettersAndSetters(t *testing.T) {
	m := objmap.New()
	assert.Equal(t, `{"fahrenheit":212.0}`, toJSON(t, m, &thermometer{celsius: 100}))

	var out thermometer
	fromJSON(t, m, `{"fahrenheit":32}`, &out)
	assert.Equal(t, 0.0, out.celsius)
}

type private struct {
	name  string
	count int `objmap:"name=n"`
}

func TestVisibility(t *testing.T) {
	v := private{name: "x", count: 3}

	_, err := objmap.New().Marshal(context.Background(), json.Format{}, v)
	assert.ErrorIs(t, err, objmap.ErrEmptyType)

	protected := objmap.New(objmap.WithVisibility(objmap.VisibilityPolicy{Field: objmap.VisibilityProtected}))
	assert.Equal(t, `{"n":3}`, toJSON(t, protected, v))

	b := objmap.NewBuilder()
	objmap.Type[private](b).Visibility(objmap.MemberField, objmap.VisibilityAny)
	m := build(t, b)
	assert.Equal(t, `{"name":"x","n":3}`, toJSON(t, m, v))

	var out private
	fromJSON(t, m, `{"name":"y","n":4}`, &out)
	assert.Equal(t, private{name: "y", count: 4}, out)

	b = objmap.NewBuilder()
	objmap.Type[thermometer](b).Visibility(objmap.MemberGetter, objmap.VisibilityNone)
	_, err = build(t, b).Marshal(context.Background(), json.Format{}, &thermometer{})
	assert.ErrorIs(t, err, objmap.ErrEmptyType)
}

func TestEmptyTypes(t *testing.T) {
	type marker struct{}
	m := objmap.New()
	_, err := m.Marshal(context.Background(), json.Format{}, marker{})
	assert.ErrorIs(t, err, objmap.ErrEmptyType)
	assert.Equal(t, `{}`, toJSON(t, m, marker{}, objmap.Config{AllowEmptyTypes: true}))
}

func TestInclusion(t *testing.T) {
	type doc struct {
		A *int
		B string
		C []int
	}
	m := objmap.New()
	assert.Equal(t, `{"a":null,"b":"","c":null}`, toJSON(t, m, doc{}))
	assert.Equal(t, `{"b":""}`, toJSON(t, m, doc{}, objmap.Config{Inclusion: objmap.IncludeNonNull}))
	assert.Equal(t, `{}`, toJSON(t, m, doc{}, objmap.Config{Inclusion: objmap.IncludeNonEmpty, AllowEmptyTypes: true}))

	b := objmap.NewBuilder()
	objmap.Type[doc](b).Property("A").Include(objmap.IncludeAlways)
	assert.Equal(t, `{"a":null}`, toJSON(t, build(t, b), doc{}, objmap.Config{Inclusion: objmap.IncludeNonEmpty}))
}

func TestWrapRootValue(t *testing.T) {
	b := objmap.NewBuilder()
	objmap.Type[address](b).RootName("Address")
	m := build(t, b)
	cfg := objmap.Config{WrapRootValue: true}
	doc := toJSON(t, m, address{City: "Oslo"}, cfg)
	assert.Equal(t, `{"Address":{"street":"","city":"Oslo"}}`, doc)

	var out address
	fromJSON(t, m, doc, &out, cfg)
	assert.Equal(t, "Oslo", out.City)

	err := m.Unmarshal(context.Background(), json.Format{}, []byte(`{"Other":{}}`), &out, cfg)
	assert.ErrorIs(t, err, objmap.ErrInvalidType)
}

func TestConvert(t *testing.T) {
	type dto struct {
		Name string
		Age  int
	}
	type entity struct {
		Name string
		Age  int64
	}
	var out entity
	require.NoError(t, objmap.New().Convert(context.Background(), dto{Name: "n", Age: 4}, &out))
	assert.Equal(t, entity{Name: "n", Age: 4}, out)
}

func TestDecodeInto_Errors(t *testing.T) {
	m := objmap.New()
	var out address
	assert.ErrorIs(t, m.DecodeInto(context.Background(), objmap.NewTokenStream(), out), objmap.ErrSchema)

	err := m.Unmarshal(context.Background(), json.Format{}, []byte(`{"city":"a"} {"city":"b"}`), &out)
	assert.ErrorIs(t, err, objmap.ErrParse)

	err = m.Unmarshal(context.Background(), json.Format{}, []byte(`{"city":`), &out)
	assert.ErrorIs(t, err, objmap.ErrParse)

	err = m.Unmarshal(context.Background(), json.Format{}, []byte(`{"city":1}`), &out)
	var oe *objmap.Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, objmap.CodeInvalidType, oe.Code)
	assert.Equal(t, "/city", oe.Path)
	assert.Equal(t, reflect.TypeFor[string](), oe.Type)
}

func TestUnsupportedKinds(t *testing.T) {
	type withFunc struct{ F func() }
	m := objmap.New()
	_, err := m.Marshal(context.Background(), json.Format{}, withFunc{F: func() {}})
	assert.ErrorIs(t, err, objmap.ErrSchema)

	type withIface struct{ R interface{ Read() } }
	var out withIface
	err = m.Unmarshal(context.Background(), json.Format{}, []byte(`{"r":{}}`), &out)
	assert.ErrorIs(t, err, objmap.ErrSchema)
}

func TestConcurrentUse(t *testing.T) {
	m := objmap.New()
	done := make(chan string, 8)
	for i := 0; i < 8; i++ {
		go func() {
			out, err := m.Marshal(context.Background(), json.Format{}, address{City: "c"})
			if err != nil {
				done <- err.Error()
				return
			}
			done <- string(out)
		}()
	}
	for i := 0; i < 8; i++ {
		assert.Equal(t, `{"street":"","city":"c"}`, <-done)
	}
}
