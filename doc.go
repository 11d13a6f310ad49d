// Package objmap maps Go object graphs to an abstract token stream and back.
//
// - A Type Model reflects over a Go type once and caches its property schema
// - Codecs are resolved property > type > module > built-in before falling back to reflection
// - Cycles are broken explicitly with ownership edges or identity substitution
// - Views and named filters decide which properties participate
// - Polymorphic families map concrete types to string tags
//
// Design policy:
// - Configure everything on a Builder, then Build an immutable Mapper that is safe for concurrent use.
// - The core never touches text. Formats live under format/ and adapt token streams to bytes.
// - Errors are *Error values carrying a code and a JSON Pointer path.
//
// Typical usage:
//
//	b := objmap.NewBuilder()
//	b.RegisterPolymorphicFamily(reflect.TypeFor[Vehicle](),
//		objmap.Tags(objmap.Tag[Car]("car"), objmap.Tag[Truck]("truck")),
//		objmap.Discriminator("type"))
//	m, err := b.Build()
//
//	data, err := m.Marshal(ctx, json.Format{}, vehicles)
//	err = m.Unmarshal(ctx, json.Format{}, data, &vehicles)
package objmap
