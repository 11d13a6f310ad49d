package objmap

import (
	"context"
	"reflect"
)

// injectKey is a unique context key per injection name.
type injectKey struct{ name string }

// typeInjectKey is a unique key per type parameter T for context storage.
type typeInjectKey struct{ t reflect.Type }

// WithInjectable stores a value in the context for properties declared with
// Inject(key). Config.Injectables takes precedence over the context.
func WithInjectable(ctx context.Context, key string, v any) context.Context {
	return context.WithValue(ctx, injectKey{key}, v)
}

// WithInjected stores a typed value in the context. It is used by properties
// declared with an empty Inject key whose type is T.
func WithInjected[T any](ctx context.Context, v T) context.Context {
	return context.WithValue(ctx, typeInjectKey{reflect.TypeFor[T]()}, any(v))
}

// lookupInjectable resolves the value injected into p, if any.
func lookupInjectable(ctx context.Context, cfg *Config, p *PropertySchema) (reflect.Value, bool) {
	var v any
	var ok bool
	if p.Inject != "" {
		v, ok = cfg.Injectables[p.Inject]
		if !ok {
			v = ctx.Value(injectKey{p.Inject})
			ok = v != nil
		}
	} else {
		v = ctx.Value(typeInjectKey{p.Type})
		ok = v != nil
	}
	if !ok || v == nil {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(p.Type):
		return rv, true
	case rv.Type().ConvertibleTo(p.Type) && rv.Kind() == p.Type.Kind():
		return rv.Convert(p.Type), true
	}
	return reflect.Value{}, false
}
