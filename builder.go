package objmap

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"sync"
)

// Builder collects configuration. It is not safe for concurrent use; Build
// freezes it into a Mapper.
type Builder struct {
	logger     *slog.Logger
	defaults   Config
	visibility VisibilityPolicy
	naming     NamingStrategy
	types      map[reflect.Type]*TypeConfig
	mixins     map[reflect.Type]reflect.Type
	codecs     []codecEntry
	views      map[string]string
	families   map[reflect.Type]*family
	errs       []error
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used for debug records. Nil means slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) { b.logger = logger }
}

// WithDefaults sets the Config used by calls that pass none.
func WithDefaults(cfg Config) Option {
	return func(b *Builder) { b.defaults = cfg }
}

// WithNaming sets the default naming strategy.
func WithNaming(n NamingStrategy) Option {
	return func(b *Builder) { b.naming = n }
}

// WithVisibility sets the default discovery levels.
func WithVisibility(p VisibilityPolicy) Option {
	return func(b *Builder) { b.visibility = p.merge(DefaultVisibility()) }
}

// NewBuilder returns a Builder with default settings.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		visibility: DefaultVisibility(),
		naming:     LowerCamelCase,
		types:      map[reflect.Type]*TypeConfig{},
		mixins:     map[reflect.Type]reflect.Type{},
		views:      map[string]string{},
		families:   map[reflect.Type]*family{},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.naming == nil {
		b.naming = LowerCamelCase
	}
	return b
}

// TypeFor returns the configuration of t, creating it on first use.
func (b *Builder) TypeFor(t reflect.Type) *TypeConfig {
	c, ok := b.types[t]
	if !ok {
		c = newTypeConfig(t)
		b.types[t] = c
	}
	return c
}

// Type returns the configuration of T.
func Type[T any](b *Builder) *TypeConfig { return b.TypeFor(reflect.TypeFor[T]()) }

// MixIn applies the struct tags and the TypeConfig of mixin to target.
func (b *Builder) MixIn(target, mixin reflect.Type) *Builder {
	b.mixins[target] = mixin
	b.logger.Debug("objmap: mix-in registered", "target", target.String(), "mixin", mixin.String())
	return b
}

// RegisterCodec adds a module-level codec. codec implements ValueEncoder,
// ValueDecoder or both, as dir requires; a CodecPair may leave the unused
// side nil.
func (b *Builder) RegisterCodec(m Matcher, dir Direction, codec any) *Builder {
	enc, dec := codecSides(codec)
	if dir&DirectionEncode != 0 && enc == nil || dir&DirectionDecode != 0 && dec == nil {
		b.errs = append(b.errs, fmt.Errorf("codec %T for %s does not serve direction %d", codec, m, dir))
		return b
	}
	if m.kind != matchAnnotated && m.t == nil {
		b.errs = append(b.errs, errors.New("codec matcher without type"))
		return b
	}
	b.codecs = append(b.codecs, codecEntry{matcher: m, dir: dir, enc: enc, dec: dec})
	b.logger.Debug("objmap: codec registered", "matcher", m.String(), "direction", int(dir))
	return b
}

// RegisterView declares view as a child of parent ("" for a root view).
func (b *Builder) RegisterView(view, parent string) *Builder {
	if view == "" {
		b.errs = append(b.errs, errors.New("empty view name"))
		return b
	}
	if prev, ok := b.views[view]; ok && prev != parent {
		b.errs = append(b.errs, fmt.Errorf("view %q already has parent %q", view, prev))
		return b
	}
	b.views[view] = parent
	return b
}

// RegisterPolymorphicFamily declares supertype (an interface) as polymorphic.
func (b *Builder) RegisterPolymorphicFamily(supertype reflect.Type, tags TagResolver, placement Placement) *Builder {
	if _, ok := b.families[supertype]; ok {
		b.errs = append(b.errs, fmt.Errorf("polymorphic family %s registered twice", supertype))
		return b
	}
	b.families[supertype] = &family{super: supertype, resolver: tags, placement: placement}
	b.logger.Debug("objmap: polymorphic family registered", "supertype", supertype.String(), "placement", placement.String())
	return b
}

// Build validates the configuration and returns an immutable Mapper.
// Registration errors are joined.
func (b *Builder) Build() (*Mapper, error) {
	errs := slices.Clone(b.errs)
	for v := range b.views {
		seen := map[string]bool{}
		for cur := v; cur != ""; cur = b.views[cur] {
			if seen[cur] {
				errs = append(errs, fmt.Errorf("view %q is part of a cycle", v))
				break
			}
			seen[cur] = true
		}
	}
	for _, f := range b.families {
		if err := f.validate(); err != nil {
			errs = append(errs, err)
		}
	}
	types := make(map[reflect.Type]*TypeConfig, len(b.types))
	for t, c := range b.types {
		errs = append(errs, c.errs...)
		types[t] = c.clone()
	}
	families := make(map[reflect.Type]*family, len(b.families))
	for t, f := range b.families {
		cp := *f
		families[t] = &cp
	}
	m := &Mapper{
		logger:     b.logger,
		defaults:   b.defaults,
		visibility: b.visibility,
		naming:     b.naming,
		types:      types,
		mixins:     maps.Clone(b.mixins),
		registry:   &registry{entries: slices.Clone(b.codecs)},
		views:      maps.Clone(b.views),
		families:   families,
	}
	if err := joinSchemaErrors(errs); err != nil {
		return nil, err
	}
	for t := range types {
		if indirect(t).Kind() != reflect.Struct {
			continue
		}
		if _, err := m.SchemaFor(t); err != nil {
			errs = append(errs, err)
		}
	}
	if err := joinSchemaErrors(errs); err != nil {
		return nil, err
	}
	return m, nil
}

// joinSchemaErrors joins configuration errors, reporting each as a schema
// error.
func joinSchemaErrors(errs []error) error {
	out := make([]error, 0, len(errs))
	for _, err := range errs {
		if _, ok := AsError(err); !ok {
			err = wrapError(CodeSchema, "", nil, err)
		}
		out = append(out, err)
	}
	return errors.Join(out...)
}

// Mapper maps values to token streams and back. It is immutable and safe
// for concurrent use.
type Mapper struct {
	logger     *slog.Logger
	defaults   Config
	visibility VisibilityPolicy
	naming     NamingStrategy
	types      map[reflect.Type]*TypeConfig
	mixins     map[reflect.Type]reflect.Type
	registry   *registry
	views      map[string]string
	families   map[reflect.Type]*family
	schemas    sync.Map // reflect.Type -> schemaResult
}

// New returns a Mapper with default settings.
func New(opts ...Option) *Mapper {
	m, err := NewBuilder(opts...).Build()
	if err != nil {
		panic(err)
	}
	return m
}

// Defaults returns the Config used by calls that pass none.
func (m *Mapper) Defaults() Config { return m.defaults }

func (m *Mapper) config(cfgs []Config) Config {
	if len(cfgs) > 0 {
		return cfgs[0]
	}
	return m.defaults
}
