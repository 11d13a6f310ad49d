package objmap

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// PropertySchema describes one document property of a struct type.
type PropertySchema struct {
	Name        string // Document name, unique within the owning TypeSchema.
	GoName      string // Field name, or Xxx for GetXxx/SetXxx.
	Aliases     []string
	Type        reflect.Type // Declared value type.
	Views       []string
	Inclusion   Inclusion
	Mandatory   bool
	Ref         RefKind
	RefName     string
	Unwrapped   bool
	Injected    bool
	Inject      string // Injection key; empty means by type.
	Description string
	Markers     []string

	readOnly  bool
	writeOnly bool
	index     []int // struct field path, nil without a field
	getter    int   // method index in *T's method set, -1 without a getter
	setter    int
	encoder   ValueEncoder
	decoder   ValueDecoder
}

// Readable reports whether the property has a read path and is written.
func (p *PropertySchema) Readable() bool {
	return !p.writeOnly && p.Ref != RefBack && (p.index != nil || p.getter >= 0)
}

// Writable reports whether the property has a write path and is read.
func (p *PropertySchema) Writable() bool {
	return !p.readOnly && p.Ref != RefBack && (p.index != nil || p.setter >= 0)
}

// HasMarker reports whether marker is attached to the property.
func (p *PropertySchema) HasMarker(marker string) bool { return slices.Contains(p.Markers, marker) }

// TypeSchema is the cached property layout of one struct type.
type TypeSchema struct {
	Type          reflect.Type
	Properties    []*PropertySchema // In document order.
	AnyProperty   *PropertySchema   // Collects unknown keys, when set.
	IgnoreUnknown bool
	FilterID      string
	Identity      *IdentityConfig
	RootName      string
	AsArray       bool
	Description   string
	Markers       []string

	byName    map[string]*PropertySchema
	ignored   map[string]bool
	unwrapped []*PropertySchema
	idProp    *PropertySchema
	creator   *creatorConfig
	params    map[string]int
	needsAddr bool
}

// Property looks a property up by document name or alias.
func (ts *TypeSchema) Property(name string) (*PropertySchema, bool) {
	p, ok := ts.byName[name]
	return p, ok
}

// Ignored reports whether name is listed as ignored for the type.
func (ts *TypeSchema) Ignored(name string) bool { return ts.ignored[name] }

// HasMarker reports whether marker is attached to the type.
func (ts *TypeSchema) HasMarker(marker string) bool { return slices.Contains(ts.Markers, marker) }

// visibleCount is the number of properties that can be written.
func (ts *TypeSchema) visibleCount() int {
	n := 0
	for _, p := range ts.Properties {
		if p.Readable() {
			n++
		}
	}
	for _, p := range ts.unwrapped {
		if p.Readable() {
			n++
		}
	}
	if ts.AnyProperty != nil {
		n++
	}
	return n
}

// fieldInfo is one struct field reachable from a type, promoted fields
// included.
type fieldInfo struct {
	sf       reflect.StructField
	index    []int
	tagged   bool
	hidden   bool // reached through an unexported field
	settings *propSettings
}

// fieldCache memoizes the raw struct-field scan process-wide.
var fieldCache sync.Map // reflect.Type -> []fieldInfo

func scanFields(t reflect.Type) []fieldInfo {
	if v, ok := fieldCache.Load(t); ok {
		return v.([]fieldInfo)
	}
	type candidate struct {
		fieldInfo
		depth int
	}
	var (
		out     []candidate
		visited = map[reflect.Type]bool{}
	)
	var walk func(st reflect.Type, index []int, depth int, hidden bool)
	walk = func(st reflect.Type, index []int, depth int, hidden bool) {
		if visited[st] {
			return
		}
		visited[st] = true
		defer delete(visited, st)
		for i := 0; i < st.NumField(); i++ {
			sf := st.Field(i)
			idx := append(slices.Clone(index), i)
			settings, tagged := tagSettings(sf)
			if sf.Anonymous && settings.name == nil && (settings.ignore == nil || !*settings.ignore) {
				ft := sf.Type
				if ft.Kind() == reflect.Pointer {
					ft = ft.Elem()
				}
				if ft.Kind() == reflect.Struct && !isLeafStruct(ft) {
					walk(ft, idx, depth+1, hidden || !sf.IsExported())
					continue
				}
			}
			fi := fieldInfo{sf: sf, index: idx, tagged: tagged, hidden: hidden || !sf.IsExported(), settings: settings}
			out = append(out, candidate{fi, depth})
		}
	}
	walk(t, nil, 0, false)

	// shallower fields hide deeper ones; ties at the same depth hide each other
	best := map[string]int{}
	tie := map[string]bool{}
	for i, c := range out {
		j, ok := best[c.sf.Name]
		switch {
		case !ok || c.depth < out[j].depth:
			best[c.sf.Name] = i
			tie[c.sf.Name] = false
		case c.depth == out[j].depth:
			tie[c.sf.Name] = true
		}
	}
	var fields []fieldInfo
	for i, c := range out {
		if best[c.sf.Name] == i && !tie[c.sf.Name] {
			fields = append(fields, c.fieldInfo)
		}
	}
	v, _ := fieldCache.LoadOrStore(t, fields)
	return v.([]fieldInfo)
}

// isLeafStruct reports struct types that map to a scalar and must not be
// flattened when embedded.
func isLeafStruct(t reflect.Type) bool {
	return t == timeType || reflect.PointerTo(t).Implements(textMarshalerType)
}

// SchemaFor returns the cached schema of t (pointers are dereferenced).
func (m *Mapper) SchemaFor(t reflect.Type) (*TypeSchema, error) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if v, ok := m.schemas.Load(t); ok {
		r := v.(schemaResult)
		return r.ts, r.err
	}
	ts, err := m.buildSchema(t)
	v, _ := m.schemas.LoadOrStore(t, schemaResult{ts: ts, err: err})
	r := v.(schemaResult)
	return r.ts, r.err
}

type schemaResult struct {
	ts  *TypeSchema
	err error
}

func (m *Mapper) buildSchema(t reflect.Type) (*TypeSchema, error) {
	if t.Kind() != reflect.Struct {
		return nil, newError(CodeSchema, "", t, "only struct types have a property schema")
	}
	cfg := m.types[t]
	var mixCfg *TypeConfig
	mixin := m.mixins[t]
	if mixin != nil {
		mixCfg = m.types[mixin]
	}
	pick := func(get func(*TypeConfig) bool) *TypeConfig {
		if cfg != nil && get(cfg) {
			return cfg
		}
		if mixCfg != nil && get(mixCfg) {
			return mixCfg
		}
		return nil
	}

	vis := m.visibility
	if mixCfg != nil {
		vis = mixCfg.visibility.merge(vis)
	}
	if cfg != nil {
		vis = cfg.visibility.merge(vis)
	}
	naming := m.naming
	if c := pick(func(c *TypeConfig) bool { return c.naming != nil }); c != nil {
		naming = c.naming
	}

	ts := &TypeSchema{
		Type:     t,
		RootName: t.Name(),
		byName:   map[string]*PropertySchema{},
		ignored:  map[string]bool{},
	}
	if c := pick(func(c *TypeConfig) bool { return c.rootName != "" }); c != nil {
		ts.RootName = c.rootName
	}
	if c := pick(func(c *TypeConfig) bool { return c.filterID != "" }); c != nil {
		ts.FilterID = c.filterID
	}
	if c := pick(func(c *TypeConfig) bool { return c.identity != nil }); c != nil {
		ts.Identity = c.identity
	}
	if c := pick(func(c *TypeConfig) bool { return c.ignoreUnk != nil }); c != nil {
		ts.IgnoreUnknown = *c.ignoreUnk
	}
	if c := pick(func(c *TypeConfig) bool { return c.asArray }); c != nil {
		ts.AsArray = true
	}
	if c := pick(func(c *TypeConfig) bool { return c.description != "" }); c != nil {
		ts.Description = c.description
	}
	for _, c := range []*TypeConfig{mixCfg, cfg} {
		if c != nil {
			ts.Markers = append(ts.Markers, c.markers...)
			for _, n := range c.ignored {
				ts.ignored[n] = true
			}
		}
	}

	// mix-in field tags, matched by Go name
	mixTags := map[string]*propSettings{}
	if mixin != nil && mixin.Kind() == reflect.Struct {
		for _, fi := range scanFields(mixin) {
			mixTags[fi.sf.Name] = fi.settings
		}
	}
	layered := func(goName string, tags *propSettings) *propSettings {
		s := &propSettings{}
		s.overlay(tags)
		s.overlay(mixTags[goName])
		if mixCfg != nil {
			if pc, ok := mixCfg.props[goName]; ok {
				s.overlay(&pc.s)
			}
		}
		if cfg != nil {
			if pc, ok := cfg.props[goName]; ok {
				s.overlay(&pc.s)
			}
		}
		return s
	}

	type entry struct {
		p *PropertySchema
		s *propSettings
	}
	var entries []*entry
	byGo := map[string]*entry{}

	for _, fi := range scanFields(t) {
		if !fieldVisible(vis.Field, fi.sf, fi.tagged) {
			continue
		}
		e := &entry{
			p: &PropertySchema{GoName: fi.sf.Name, Type: fi.sf.Type, index: fi.index, getter: -1, setter: -1},
			s: layered(fi.sf.Name, fi.settings),
		}
		if fi.hidden {
			ts.needsAddr = true
		}
		entries = append(entries, e)
		byGo[strings.ToLower(fi.sf.Name)] = e
	}

	pt := reflect.PointerTo(t)
	for i := 0; i < pt.NumMethod(); i++ {
		mt := pt.Method(i)
		var goName string
		var vt reflect.Type
		getter := false
		switch {
		case methodVisible(vis.Getter) && strings.HasPrefix(mt.Name, "Get") && mt.Type.NumIn() == 1 && mt.Type.NumOut() == 1:
			goName, vt, getter = strings.TrimPrefix(mt.Name, "Get"), mt.Type.Out(0), true
		case methodVisible(vis.Setter) && strings.HasPrefix(mt.Name, "Set") && mt.Type.NumIn() == 2 && mt.Type.NumOut() == 0:
			goName, vt = strings.TrimPrefix(mt.Name, "Set"), mt.Type.In(1)
		default:
			continue
		}
		if r, _ := utf8.DecodeRuneInString(goName); !unicode.IsUpper(r) {
			continue
		}
		e, ok := byGo[strings.ToLower(goName)]
		if ok && e.p.Type != vt {
			continue
		}
		if !ok {
			e = &entry{
				p: &PropertySchema{GoName: goName, Type: vt, getter: -1, setter: -1},
				s: layered(goName, nil),
			}
			entries = append(entries, e)
			byGo[strings.ToLower(goName)] = e
		}
		if getter {
			e.p.getter = i
		} else {
			e.p.setter = i
		}
		ts.needsAddr = true
	}

	for _, e := range entries {
		p, s := e.p, e.s
		if s.ignore != nil && *s.ignore {
			continue
		}
		if s.name != nil && *s.name != "" {
			p.Name = *s.name
		} else {
			p.Name = naming(p.GoName)
		}
		if ts.ignored[p.Name] {
			continue
		}
		if m.ignoredType(p.Type) {
			continue
		}
		p.Aliases = s.aliases
		p.Views = s.views
		p.Inclusion = s.inclusion
		p.readOnly = s.readOnly != nil && *s.readOnly
		p.writeOnly = s.writeOnly != nil && *s.writeOnly
		p.Mandatory = s.mandatory != nil && *s.mandatory
		p.Unwrapped = s.unwrapped != nil && *s.unwrapped
		if s.ref != nil {
			p.Ref, p.RefName = s.ref.kind, s.ref.name
		}
		if s.inject != nil {
			p.Injected, p.Inject = true, *s.inject
		}
		if s.description != nil {
			p.Description = *s.description
		}
		p.Markers = s.markers
		p.encoder, p.decoder = s.encoder, s.decoder

		switch {
		case s.anyProps != nil && *s.anyProps:
			if p.index == nil || p.Type.Kind() != reflect.Map || p.Type.Key().Kind() != reflect.String {
				return nil, newError(CodeSchema, "", t, fmt.Sprintf("any-property %s must be a map field with string keys", p.GoName))
			}
			ts.AnyProperty = p
			continue
		case p.Unwrapped:
			if indirect(p.Type).Kind() != reflect.Struct {
				return nil, newError(CodeSchema, "", t, fmt.Sprintf("unwrapped property %s must be a struct", p.GoName))
			}
			ts.unwrapped = append(ts.unwrapped, p)
			continue
		}
		if _, dup := ts.byName[p.Name]; dup {
			return nil, newError(CodeSchema, "", t, fmt.Sprintf("duplicate property name %q", p.Name))
		}
		ts.byName[p.Name] = p
		ts.Properties = append(ts.Properties, p)
	}
	for _, p := range ts.Properties {
		for _, a := range p.Aliases {
			if _, dup := ts.byName[a]; !dup {
				ts.byName[a] = p
			}
		}
	}

	if c := pick(func(c *TypeConfig) bool { return len(c.order) > 0 }); c != nil {
		ts.Properties = orderProperties(ts.Properties, c.order)
	}

	if id := ts.Identity; id != nil && id.Property != "" {
		p, ok := ts.byName[id.Property]
		if !ok || !p.Readable() {
			return nil, newError(CodeSchema, "", t, fmt.Sprintf("identity property %q not found", id.Property))
		}
		ts.idProp = p
	}

	if cfg != nil && cfg.creator != nil && vis.Creator != VisibilityNone {
		if err := cfg.validateCreator(); err != nil {
			return nil, err
		}
		ts.creator = cfg.creator
		ts.params = make(map[string]int, len(cfg.creator.params))
		for i, n := range cfg.creator.params {
			ts.params[n] = i
		}
	}

	m.logger.Debug("objmap: schema built", "type", t.String(), "properties", len(ts.Properties))
	return ts, nil
}

func orderProperties(props []*PropertySchema, order []string) []*PropertySchema {
	out := make([]*PropertySchema, 0, len(props))
	used := map[*PropertySchema]bool{}
	for _, n := range order {
		for _, p := range props {
			if p.Name == n && !used[p] {
				out = append(out, p)
				used[p] = true
			}
		}
	}
	for _, p := range props {
		if !used[p] {
			out = append(out, p)
		}
	}
	return out
}

func (m *Mapper) ignoredType(t reflect.Type) bool {
	c, ok := m.types[indirect(t)]
	return ok && c.ignoreType
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// ---- member access ----

// addressable returns v, or an addressable copy of it.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v
	}
	c := reflect.New(v.Type()).Elem()
	c.Set(v)
	return c
}

// get reads p from the struct value v. ok is false when an embedded pointer
// on the path is nil. v must be addressable when the property has a getter
// or an unexported field.
func (p *PropertySchema) get(v reflect.Value) (reflect.Value, bool) {
	if p.getter >= 0 {
		return v.Addr().Method(p.getter).Call(nil)[0], true
	}
	for i, x := range p.index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = accessible(v.Field(x))
	}
	return v, true
}

// set writes x into p of the addressable struct value v, allocating nil
// embedded pointers on the way.
func (p *PropertySchema) set(v, x reflect.Value) {
	if p.setter >= 0 {
		v.Addr().Method(p.setter).Call([]reflect.Value{x})
		return
	}
	p.field(v).Set(x)
}

// field returns the settable field of p inside the addressable struct v.
func (p *PropertySchema) field(v reflect.Value) reflect.Value {
	for i, x := range p.index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = accessible(v.Field(x))
	}
	return v
}
