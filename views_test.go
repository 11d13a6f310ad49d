package objmap_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/objmap"
	"github.com/reoring/objmap/format/json"
)

type profile struct {
	Name  string
	Email string `objmap:"view=internal"`
	Notes string `objmap:"view=admin"`
}

func viewMapper(t *testing.T) *objmap.Mapper {
	t.Helper()
	b := objmap.NewBuilder()
	b.RegisterView("public", "").
		RegisterView("internal", "public").
		RegisterView("admin", "internal")
	return build(t, b)
}

func TestViews_Hierarchy(t *testing.T) {
	m := viewMapper(t)
	p := profile{Name: "n", Email: "e", Notes: "x"}

	assert.Equal(t, `{"name":"n","email":"e","notes":"x"}`, toJSON(t, m, p))
	assert.Equal(t, `{"name":"n"}`, toJSON(t, m, p, objmap.Config{ActiveView: "public"}))
	assert.Equal(t, `{"name":"n","email":"e"}`, toJSON(t, m, p, objmap.Config{ActiveView: "internal"}))
	assert.Equal(t, `{"name":"n","email":"e","notes":"x"}`, toJSON(t, m, p, objmap.Config{ActiveView: "admin"}))
	assert.Equal(t, `{"email":"e"}`, toJSON(t, m, p, objmap.Config{ActiveView: "internal", ExcludeUntaggedFromViews: true}))

	assert.True(t, m.IsA("admin", "public"))
	assert.True(t, m.IsA("internal", "internal"))
	assert.False(t, m.IsA("public", "admin"))
}

func TestViews_AppliedOnRead(t *testing.T) {
	m := viewMapper(t)
	var out profile
	fromJSON(t, m, `{"name":"n","email":"e","notes":"x"}`, &out, objmap.Config{ActiveView: "public"})
	assert.Equal(t, profile{Name: "n"}, out)
}

func TestViews_Configured(t *testing.T) {
	b := objmap.NewBuilder()
	b.RegisterView("summary", "")
	objmap.Type[profile](b).Property("Notes").Views("summary")
	m := build(t, b)
	assert.Equal(t, `{"name":"n","notes":"x"}`, toJSON(t, m, profile{Name: "n", Email: "e", Notes: "x"}, objmap.Config{ActiveView: "summary"}))
}

func TestViews_InvalidRegistration(t *testing.T) {
	b := objmap.NewBuilder()
	b.RegisterView("a", "b").RegisterView("b", "a")
	_, err := b.Build()
	assert.ErrorIs(t, err, objmap.ErrSchema)

	b = objmap.NewBuilder()
	b.RegisterView("a", "").RegisterView("a", "other")
	_, err = b.Build()
	assert.ErrorIs(t, err, objmap.ErrSchema)
}

type account struct {
	ID      string
	Balance int
	Secret  string
}

type point struct {
	X, Y, Z int
}

func TestFilters(t *testing.T) {
	b := objmap.NewBuilder()
	objmap.Type[account](b).Filter("acct")
	m := build(t, b)
	a := account{ID: "a", Balance: 5, Secret: "s"}

	_, err := m.Marshal(context.Background(), json.Format{}, a)
	assert.ErrorIs(t, err, objmap.ErrMissingFilter)

	only := objmap.Config{Filters: objmap.Filters{"acct": objmap.FilterOutAllExcept("id", "balance")}}
	assert.Equal(t, `{"id":"a","balance":5}`, toJSON(t, m, a, only))
	except := objmap.Config{Filters: objmap.Filters{"acct": objmap.SerializeAllExcept("secret")}}
	assert.Equal(t, `{"id":"a","balance":5}`, toJSON(t, m, a, except))

	rich := objmap.FilterFunc(func(owner reflect.Value, p *objmap.PropertySchema) objmap.FilterDecision {
		if p.Name == "secret" && owner.FieldByName("Balance").Int() < 100 {
			return objmap.FilterOmit
		}
		return objmap.FilterInclude
	})
	cfg := objmap.Config{Filters: objmap.Filters{"acct": rich}}
	assert.Equal(t, `{"id":"a","balance":5}`, toJSON(t, m, a, cfg))
	assert.Equal(t, `{"id":"b","balance":500,"secret":"s"}`, toJSON(t, m, account{ID: "b", Balance: 500, Secret: "s"}, cfg))

	// filters never apply on read
	var out account
	fromJSON(t, m, `{"id":"a","balance":5,"secret":"s"}`, &out)
	assert.Equal(t, a, out)
}

func TestFilters_ReserveSlot(t *testing.T) {
	b := objmap.NewBuilder()
	objmap.Type[point](b).Filter("pt").AsArray()
	m := build(t, b)
	p := point{X: 1, Y: 2, Z: 3}

	decide := func(d objmap.FilterDecision) objmap.Config {
		return objmap.Config{Filters: objmap.Filters{"pt": objmap.FilterFunc(func(_ reflect.Value, p *objmap.PropertySchema) objmap.FilterDecision {
			if p.Name == "y" {
				return d
			}
			return objmap.FilterInclude
		})}}
	}
	assert.Equal(t, `[1,2,3]`, toJSON(t, m, p, decide(objmap.FilterInclude)))
	assert.Equal(t, `[1,null,3]`, toJSON(t, m, p, decide(objmap.FilterOmitReserveSlot)))
	assert.Equal(t, `[1,3]`, toJSON(t, m, p, decide(objmap.FilterOmit)))

	var out point
	fromJSON(t, m, `[1,null,3]`, &out)
	assert.Equal(t, point{X: 1, Z: 3}, out)

	err := m.Unmarshal(context.Background(), json.Format{}, []byte(`[1,2,3,4]`), &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, objmap.ErrInvalidType)
}
