package objmap

import (
	"fmt"
	"reflect"
	"slices"
)

// RefKind marks one side of an ownership edge.
type RefKind int

const (
	RefNone RefKind = iota
	// RefManaged is the forward side, written in full.
	RefManaged
	// RefBack is the mirror side, never written and restored on read.
	RefBack
)

type refSetting struct {
	kind RefKind
	name string
}

// propSettings is one layer of property configuration. Unset fields leave the
// lower layer untouched when layers are overlaid.
type propSettings struct {
	name        *string
	aliases     []string
	ignore      *bool
	views       []string
	inclusion   Inclusion
	readOnly    *bool
	writeOnly   *bool
	mandatory   *bool
	unwrapped   *bool
	anyProps    *bool
	ref         *refSetting
	inject      *string
	description *string
	markers     []string
	encoder     ValueEncoder
	decoder     ValueDecoder
}

// overlay applies the fields set in o on top of s.
func (s *propSettings) overlay(o *propSettings) {
	if o == nil {
		return
	}
	if o.name != nil {
		s.name = o.name
	}
	if o.aliases != nil {
		s.aliases = o.aliases
	}
	if o.ignore != nil {
		s.ignore = o.ignore
	}
	if o.views != nil {
		s.views = o.views
	}
	if o.inclusion != InclusionDefault {
		s.inclusion = o.inclusion
	}
	if o.readOnly != nil {
		s.readOnly = o.readOnly
	}
	if o.writeOnly != nil {
		s.writeOnly = o.writeOnly
	}
	if o.mandatory != nil {
		s.mandatory = o.mandatory
	}
	if o.unwrapped != nil {
		s.unwrapped = o.unwrapped
	}
	if o.anyProps != nil {
		s.anyProps = o.anyProps
	}
	if o.ref != nil {
		s.ref = o.ref
	}
	if o.inject != nil {
		s.inject = o.inject
	}
	if o.description != nil {
		s.description = o.description
	}
	if o.markers != nil {
		s.markers = o.markers
	}
	if o.encoder != nil {
		s.encoder = o.encoder
	}
	if o.decoder != nil {
		s.decoder = o.decoder
	}
}

func (s *propSettings) clone() *propSettings {
	c := *s
	c.aliases = slices.Clone(s.aliases)
	c.views = slices.Clone(s.views)
	c.markers = slices.Clone(s.markers)
	return &c
}

// PropertyConfig configures one property, addressed by its Go member name.
type PropertyConfig struct {
	s propSettings
}

// Name sets the document name.
func (p *PropertyConfig) Name(name string) *PropertyConfig { p.s.name = &name; return p }

// Alias adds names accepted on read.
func (p *PropertyConfig) Alias(names ...string) *PropertyConfig {
	p.s.aliases = append(slices.Clone(p.s.aliases), names...)
	return p
}

// Ignore drops the property in both directions.
func (p *PropertyConfig) Ignore() *PropertyConfig { p.s.ignore = ptr(true); return p }

// Views restricts the property to the given views and their descendants.
func (p *PropertyConfig) Views(views ...string) *PropertyConfig { p.s.views = views; return p }

// Include sets the inclusion rule.
func (p *PropertyConfig) Include(i Inclusion) *PropertyConfig { p.s.inclusion = i; return p }

// ReadOnly writes the property but skips it on read.
func (p *PropertyConfig) ReadOnly() *PropertyConfig { p.s.readOnly = ptr(true); return p }

// WriteOnly reads the property but never writes it.
func (p *PropertyConfig) WriteOnly() *PropertyConfig { p.s.writeOnly = ptr(true); return p }

// Mandatory makes a missing property a required error on read.
func (p *PropertyConfig) Mandatory() *PropertyConfig { p.s.mandatory = ptr(true); return p }

// Codec installs a property-level codec. codec implements ValueEncoder,
// ValueDecoder or both.
func (p *PropertyConfig) Codec(codec any) *PropertyConfig {
	if e, ok := codec.(ValueEncoder); ok {
		p.s.encoder = e
	}
	if d, ok := codec.(ValueDecoder); ok {
		p.s.decoder = d
	}
	return p
}

// ManagedReference marks the forward side of the ownership edge name.
func (p *PropertyConfig) ManagedReference(name string) *PropertyConfig {
	p.s.ref = &refSetting{kind: RefManaged, name: name}
	return p
}

// BackReference marks the mirror side of the ownership edge name.
func (p *PropertyConfig) BackReference(name string) *PropertyConfig {
	p.s.ref = &refSetting{kind: RefBack, name: name}
	return p
}

// Unwrapped inlines the properties of a nested struct into the parent object.
func (p *PropertyConfig) Unwrapped() *PropertyConfig { p.s.unwrapped = ptr(true); return p }

// AnyProperties makes a map property collect unknown keys on read and write
// its entries inline.
func (p *PropertyConfig) AnyProperties() *PropertyConfig { p.s.anyProps = ptr(true); return p }

// Inject fills the property from Config.Injectables or the context when the
// document does not supply it. An empty key looks the value up by type.
func (p *PropertyConfig) Inject(key string) *PropertyConfig { p.s.inject = &key; return p }

// Description documents the property in JSON Schema projections.
func (p *PropertyConfig) Description(d string) *PropertyConfig { p.s.description = &d; return p }

// Mark attaches markers that Annotated codec matchers look for.
func (p *PropertyConfig) Mark(markers ...string) *PropertyConfig {
	p.s.markers = append(slices.Clone(p.s.markers), markers...)
	return p
}

// IdentityConfig selects the identity-substitution token source of a type.
type IdentityConfig struct {
	// Property is the document name of the property used as token.
	Property string
	// SequenceKey is the key under which a generated integer token is written.
	SequenceKey string
}

// IdentityProperty uses the value of an existing property as token.
func IdentityProperty(name string) *IdentityConfig { return &IdentityConfig{Property: name} }

// IdentitySequence writes a traversal-scoped counter under key.
func IdentitySequence(key string) *IdentityConfig { return &IdentityConfig{SequenceKey: key} }

type creatorConfig struct {
	fn     reflect.Value
	params []string
}

// TypeConfig configures how one Go type is mapped.
type TypeConfig struct {
	t           reflect.Type
	props       map[string]*PropertyConfig
	ignored     []string
	ignoreUnk   *bool
	ignoreType  bool
	naming      NamingStrategy
	order       []string
	rootName    string
	filterID    string
	identity    *IdentityConfig
	asArray     bool
	encoder     ValueEncoder
	decoder     ValueDecoder
	markers     []string
	creator     *creatorConfig
	description string
	visibility  VisibilityPolicy
	errs        []error
}

func newTypeConfig(t reflect.Type) *TypeConfig {
	return &TypeConfig{t: t, props: map[string]*PropertyConfig{}}
}

// Property returns the configuration of the member goName (a field name, or
// Xxx for GetXxx/SetXxx methods).
func (c *TypeConfig) Property(goName string) *PropertyConfig {
	p, ok := c.props[goName]
	if !ok {
		p = &PropertyConfig{}
		c.props[goName] = p
	}
	return p
}

// IgnoreProperties drops properties by document name in both directions.
// On read the names are skipped rather than reported as unknown.
func (c *TypeConfig) IgnoreProperties(names ...string) *TypeConfig {
	c.ignored = append(c.ignored, names...)
	return c
}

// IgnoreUnknown skips unknown document properties for this type regardless
// of Config.UnknownProperties.
func (c *TypeConfig) IgnoreUnknown() *TypeConfig { c.ignoreUnk = ptr(true); return c }

// IgnoreType drops every property whose declared type is this type.
func (c *TypeConfig) IgnoreType() *TypeConfig { c.ignoreType = true; return c }

// Naming overrides the naming strategy for this type.
func (c *TypeConfig) Naming(n NamingStrategy) *TypeConfig { c.naming = n; return c }

// Order lists document names that are written first, in this order.
func (c *TypeConfig) Order(names ...string) *TypeConfig { c.order = names; return c }

// RootName is the wrapper key used with Config.WrapRootValue.
func (c *TypeConfig) RootName(name string) *TypeConfig { c.rootName = name; return c }

// Filter binds the type to the filter registered under id in Config.Filters.
func (c *TypeConfig) Filter(id string) *TypeConfig { c.filterID = id; return c }

// Identity enables identity substitution for pointers to this type.
func (c *TypeConfig) Identity(id *IdentityConfig) *TypeConfig { c.identity = id; return c }

// AsArray writes the type positionally as an array of property values.
func (c *TypeConfig) AsArray() *TypeConfig { c.asArray = true; return c }

// Codec installs a type-level codec. codec implements ValueEncoder,
// ValueDecoder or both.
func (c *TypeConfig) Codec(codec any) *TypeConfig {
	e, eok := codec.(ValueEncoder)
	d, dok := codec.(ValueDecoder)
	if !eok && !dok {
		c.errs = append(c.errs, fmt.Errorf("type %s: codec %T implements neither ValueEncoder nor ValueDecoder", c.t, codec))
		return c
	}
	if eok {
		c.encoder = e
	}
	if dok {
		c.decoder = d
	}
	return c
}

// Mark attaches markers that Annotated codec matchers look for.
func (c *TypeConfig) Mark(markers ...string) *TypeConfig {
	c.markers = append(c.markers, markers...)
	return c
}

// Creator registers a factory used on read instead of the zero value. fn
// takes one parameter per name in params (document names) and returns the
// type, a pointer to it, and optionally an error.
func (c *TypeConfig) Creator(fn any, params ...string) *TypeConfig {
	c.creator = &creatorConfig{fn: reflect.ValueOf(fn), params: params}
	return c
}

// Description documents the type in JSON Schema projections.
func (c *TypeConfig) Description(d string) *TypeConfig { c.description = d; return c }

// Visibility overrides discovery levels for this type.
func (c *TypeConfig) Visibility(kind MemberKind, level Visibility) *TypeConfig {
	c.visibility = c.visibility.With(kind, level)
	return c
}

func (c *TypeConfig) clone() *TypeConfig {
	cp := *c
	cp.props = make(map[string]*PropertyConfig, len(c.props))
	for k, p := range c.props {
		cp.props[k] = &PropertyConfig{s: *p.s.clone()}
	}
	cp.ignored = slices.Clone(c.ignored)
	cp.order = slices.Clone(c.order)
	cp.markers = slices.Clone(c.markers)
	return &cp
}

// validateCreator checks arity and result types against the configured type.
func (c *TypeConfig) validateCreator() error {
	cr := c.creator
	if cr == nil {
		return nil
	}
	if !cr.fn.IsValid() || cr.fn.Kind() != reflect.Func {
		return newError(CodeSchema, "", c.t, "creator must be a function")
	}
	ft := cr.fn.Type()
	if ft.NumIn() != len(cr.params) || ft.IsVariadic() {
		return newError(CodeSchema, "", c.t, fmt.Sprintf("creator takes %d parameters but %d names were given", ft.NumIn(), len(cr.params)))
	}
	switch ft.NumOut() {
	case 2:
		if ft.Out(1) != reflect.TypeFor[error]() {
			return newError(CodeSchema, "", c.t, "creator second result must be error")
		}
	case 1:
	default:
		return newError(CodeSchema, "", c.t, "creator must return the type and an optional error")
	}
	if out := ft.Out(0); out != c.t && out != reflect.PointerTo(c.t) {
		return newError(CodeSchema, "", c.t, fmt.Sprintf("creator returns %s", out))
	}
	return nil
}
