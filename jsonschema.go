package objmap

import (
	"reflect"
	"slices"
	"sort"

	js "github.com/reoring/objmap/jsonschema"
)

// JSONSchema projects the document shape of t into a JSON Schema. Types with
// custom codecs are left unconstrained; recursive types are cut at their
// second occurrence with a bare object schema.
func (m *Mapper) JSONSchema(t reflect.Type) (*js.Schema, error) {
	g := &schemaGen{m: m, active: map[reflect.Type]bool{}}
	return g.schema(t, nil)
}

type schemaGen struct {
	m      *Mapper
	active map[reflect.Type]bool
}

func (g *schemaGen) schema(t reflect.Type, p *PropertySchema) (*js.Schema, error) {
	if g.m.encoderFor(t, p) != nil {
		return g.builtinSchema(t), nil
	}
	switch t.Kind() {
	case reflect.Bool:
		return &js.Schema{Type: "boolean"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return &js.Schema{Type: "integer"}, nil
	case reflect.Float32, reflect.Float64:
		return &js.Schema{Type: "number"}, nil
	case reflect.String:
		return &js.Schema{Type: "string"}, nil
	case reflect.Pointer:
		return g.schema(t.Elem(), p)
	case reflect.Interface:
		if fam, ok := g.m.families[t]; ok {
			return g.familySchema(fam)
		}
		return &js.Schema{}, nil
	case reflect.Map:
		items, err := g.schema(t.Elem(), nil)
		if err != nil {
			return nil, err
		}
		return &js.Schema{Type: "object", AdditionalProperties: items}, nil
	case reflect.Slice, reflect.Array:
		items, err := g.schema(t.Elem(), nil)
		if err != nil {
			return nil, err
		}
		return &js.Schema{Type: "array", Items: items}, nil
	case reflect.Struct:
		return g.structSchema(t, "", "")
	}
	return nil, newError(CodeSchema, "", t, "no schema for kind "+t.Kind().String())
}

// builtinSchema describes the document shape of the built-in codecs.
func (g *schemaGen) builtinSchema(t reflect.Type) *js.Schema {
	switch {
	case t == timeType:
		return &js.Schema{Type: "string", Format: "date-time"}
	case t == durationType:
		return &js.Schema{Type: "string", Format: "duration"}
	case t == numberType:
		return &js.Schema{Type: "number"}
	case isBytes(t):
		return &js.Schema{Type: "string", Format: "byte"}
	case builtinEncoder(t) != nil:
		return &js.Schema{Type: "string"}
	}
	return &js.Schema{}
}

// structSchema renders t as an object; a non-empty disc adds the
// discriminator property with the constant tag.
func (g *schemaGen) structSchema(t reflect.Type, disc, tag string) (*js.Schema, error) {
	if g.active[t] {
		return &js.Schema{Type: "object"}, nil
	}
	g.active[t] = true
	defer delete(g.active, t)

	ts, err := g.m.SchemaFor(t)
	if err != nil {
		return nil, err
	}
	out := &js.Schema{Type: "object", Title: t.Name(), Description: ts.Description}
	if ts.AsArray {
		out.Type = "array"
		for _, p := range ts.Properties {
			if !p.Readable() {
				continue
			}
			ps, err := g.schema(p.Type, p)
			if err != nil {
				return nil, err
			}
			out.PrefixItems = append(out.PrefixItems, ps)
		}
		return out, nil
	}
	out.Properties = map[string]*js.Schema{}
	if err := g.addProperties(out, ts); err != nil {
		return nil, err
	}
	if disc != "" {
		out.Properties[disc] = &js.Schema{Type: "string", Const: tag}
		if !slices.Contains(out.Required, disc) {
			out.Required = append(out.Required, disc)
		}
	}
	switch {
	case ts.AnyProperty != nil:
		items, err := g.schema(ts.AnyProperty.Type.Elem(), nil)
		if err != nil {
			return nil, err
		}
		out.AdditionalProperties = items
	case !ts.IgnoreUnknown:
		out.AdditionalProperties = false
	}
	sort.Strings(out.Required)
	return out, nil
}

func (g *schemaGen) addProperties(out *js.Schema, ts *TypeSchema) error {
	if id := ts.Identity; id != nil && id.SequenceKey != "" {
		out.Properties[id.SequenceKey] = &js.Schema{Type: "integer", ReadOnly: true}
	}
	for _, p := range ts.Properties {
		if p.Ref == RefBack {
			continue
		}
		ps, err := g.schema(p.Type, p)
		if err != nil {
			return err
		}
		ps.Description = p.Description
		ps.ReadOnly = !p.Writable()
		ps.WriteOnly = !p.Readable()
		out.Properties[p.Name] = ps
		if p.Mandatory {
			out.Required = append(out.Required, p.Name)
		}
	}
	for _, u := range ts.unwrapped {
		cts, err := g.m.SchemaFor(u.Type)
		if err != nil {
			return err
		}
		if err := g.addProperties(out, cts); err != nil {
			return err
		}
	}
	return nil
}

// familySchema lists the concrete types of a family with a static tag table.
func (g *schemaGen) familySchema(fam *family) (*js.Schema, error) {
	table, ok := fam.resolver.(*TagTable)
	if !ok {
		return &js.Schema{}, nil
	}
	out := &js.Schema{Title: fam.super.Name()}
	for _, e := range table.Entries() {
		var (
			s   *js.Schema
			err error
		)
		switch fam.placement.kind {
		case placeDiscriminator:
			if base := indirect(e.Type); base.Kind() == reflect.Struct && g.m.encoderFor(base, nil) == nil {
				s, err = g.structSchema(base, fam.placement.property, e.Tag)
				break
			}
			s, err = g.wrappedArray(e)
		case placeWrapperArray:
			s, err = g.wrappedArray(e)
		case placeWrapperObject:
			var inner *js.Schema
			if inner, err = g.schema(e.Type, nil); err == nil {
				s = &js.Schema{
					Type:                 "object",
					Properties:           map[string]*js.Schema{e.Tag: inner},
					Required:             []string{e.Tag},
					AdditionalProperties: false,
				}
			}
		}
		if err != nil {
			return nil, err
		}
		out.OneOf = append(out.OneOf, s)
	}
	return out, nil
}

func (g *schemaGen) wrappedArray(e TagEntry) (*js.Schema, error) {
	inner, err := g.schema(e.Type, nil)
	if err != nil {
		return nil, err
	}
	return &js.Schema{
		Type:        "array",
		PrefixItems: []*js.Schema{{Type: "string", Const: e.Tag}, inner},
	}, nil
}
