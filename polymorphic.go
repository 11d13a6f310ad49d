package objmap

import (
	"errors"
	"fmt"
	"reflect"
)

// TagResolver maps between concrete types and logical tags of one family.
type TagResolver interface {
	TagFor(t reflect.Type) (string, bool)
	TypeFor(tag string) (reflect.Type, bool)
}

// TagEntry is one row of a static tag table.
type TagEntry struct {
	Tag  string
	Type reflect.Type
}

// Tag builds a TagEntry for T.
func Tag[T any](tag string) TagEntry { return TagEntry{Tag: tag, Type: reflect.TypeFor[T]()} }

// TagTable is a static, injective tag mapping.
type TagTable struct {
	entries []TagEntry
	byTag   map[string]reflect.Type
	byType  map[reflect.Type]string
	err     error
}

// Tags builds a static table. A tag used twice, or a type given two tags, is
// reported when the family is built.
func Tags(entries ...TagEntry) *TagTable {
	t := &TagTable{
		entries: entries,
		byTag:   make(map[string]reflect.Type, len(entries)),
		byType:  make(map[reflect.Type]string, len(entries)),
	}
	var errs []error
	for _, e := range entries {
		if prev, ok := t.byTag[e.Tag]; ok {
			errs = append(errs, fmt.Errorf("tag %q maps to both %s and %s", e.Tag, prev, e.Type))
			continue
		}
		if prev, ok := t.byType[e.Type]; ok {
			errs = append(errs, fmt.Errorf("type %s has tags %q and %q", e.Type, prev, e.Tag))
			continue
		}
		t.byTag[e.Tag] = e.Type
		t.byType[e.Type] = e.Tag
	}
	t.err = errors.Join(errs...)
	return t
}

func (t *TagTable) TagFor(typ reflect.Type) (string, bool) {
	tag, ok := t.byType[typ]
	return tag, ok
}

func (t *TagTable) TypeFor(tag string) (reflect.Type, bool) {
	typ, ok := t.byTag[tag]
	return typ, ok
}

// Entries returns the table rows in registration order.
func (t *TagTable) Entries() []TagEntry { return t.entries }

type funcResolver struct {
	tagFor  func(reflect.Type) (string, bool)
	typeFor func(string) (reflect.Type, bool)
}

func (r funcResolver) TagFor(t reflect.Type) (string, bool)   { return r.tagFor(t) }
func (r funcResolver) TypeFor(tag string) (reflect.Type, bool) { return r.typeFor(tag) }

// DynamicTags builds a resolver from two functions evaluated at traversal
// time.
func DynamicTags(tagFor func(reflect.Type) (string, bool), typeFor func(string) (reflect.Type, bool)) TagResolver {
	return funcResolver{tagFor: tagFor, typeFor: typeFor}
}

type placementKind int

const (
	placeDiscriminator placementKind = iota
	placeWrapperArray
	placeWrapperObject
)

// Placement says where the tag goes in the document.
type Placement struct {
	kind     placementKind
	property string
}

// Discriminator writes the tag as a sibling property named name.
func Discriminator(name string) Placement {
	return Placement{kind: placeDiscriminator, property: name}
}

// WrapperArray writes [tag, value].
func WrapperArray() Placement { return Placement{kind: placeWrapperArray} }

// WrapperObject writes {tag: value}.
func WrapperObject() Placement { return Placement{kind: placeWrapperObject} }

func (p Placement) String() string {
	switch p.kind {
	case placeWrapperArray:
		return "wrapper-array"
	case placeWrapperObject:
		return "wrapper-object"
	}
	return "discriminator(" + p.property + ")"
}

// family is a registered polymorphic supertype.
type family struct {
	super     reflect.Type
	resolver  TagResolver
	placement Placement
}

// member reports whether the struct type t, or a pointer to it, has a tag in
// the family.
func (f *family) member(t reflect.Type) bool {
	if _, ok := f.resolver.TagFor(t); ok {
		return true
	}
	_, ok := f.resolver.TagFor(reflect.PointerTo(t))
	return ok
}

func (f *family) validate() error {
	if f.super.Kind() != reflect.Interface {
		return fmt.Errorf("polymorphic supertype %s must be an interface", f.super)
	}
	if f.resolver == nil {
		return fmt.Errorf("polymorphic family %s has no tag resolver", f.super)
	}
	if f.placement.kind == placeDiscriminator && f.placement.property == "" {
		return fmt.Errorf("polymorphic family %s: empty discriminator name", f.super)
	}
	table, ok := f.resolver.(*TagTable)
	if !ok {
		return nil
	}
	if table.err != nil {
		return fmt.Errorf("polymorphic family %s: %w", f.super, table.err)
	}
	for _, e := range table.entries {
		if !e.Type.Implements(f.super) && !reflect.PointerTo(e.Type).Implements(f.super) {
			return fmt.Errorf("polymorphic family %s: %s does not implement it", f.super, e.Type)
		}
	}
	return nil
}

// tagOf returns the tag of the runtime type t (T and *T both accepted).
func (f *family) tagOf(t reflect.Type) (string, bool) {
	if tag, ok := f.resolver.TagFor(t); ok {
		return tag, true
	}
	if t.Kind() == reflect.Pointer {
		return f.resolver.TagFor(t.Elem())
	}
	return "", false
}

// concrete resolves tag to the type to instantiate.
func (f *family) concrete(tag string) (reflect.Type, bool) {
	t, ok := f.resolver.TypeFor(tag)
	if !ok || t == nil {
		return nil, false
	}
	return t, true
}

// adapt turns a decoded concrete value (addressable) into a value assignable
// to the supertype.
func (f *family) adapt(v reflect.Value) (reflect.Value, bool) {
	switch {
	case v.Type().Implements(f.super):
		return v, true
	case v.CanAddr() && v.Addr().Type().Implements(f.super):
		return v.Addr(), true
	}
	return reflect.Value{}, false
}
