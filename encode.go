package objmap

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"

	eng "github.com/reoring/objmap/internal/engine"
)

// encodeState is the per-call state of a serialization.
type encodeState struct {
	ctx      context.Context
	m        *Mapper
	cfg      *Config
	w        TokenWriter
	tracker  *Tracker
	views    *viewEval
	path     pathStack
	depth    int
	maxDepth int
}

func (m *Mapper) newEncodeState(ctx context.Context, cfg *Config, w TokenWriter) *encodeState {
	return &encodeState{
		ctx:      ctx,
		m:        m,
		cfg:      cfg,
		w:        w,
		tracker:  trackerFor(cfg),
		views:    newViewEval(m.views, cfg),
		maxDepth: cfg.maxDepth(),
	}
}

func trackerFor(cfg *Config) *Tracker {
	if cfg.IdentityScope == IdentityExternal {
		return cfg.Tracker
	}
	return NewTracker()
}

func (s *encodeState) write(t Token) error {
	switch t.Kind {
	case KindBeginObject, KindBeginArray:
		s.depth++
		if s.maxDepth > 0 && s.depth > s.maxDepth {
			return newError(CodeDepthExceeded, s.path.Pointer(), nil, "max depth "+strconv.Itoa(s.maxDepth)+" exceeded")
		}
	case KindEndObject, KindEndArray:
		s.depth--
	}
	return s.w.WriteToken(t)
}

func (s *encodeState) codecError(t reflect.Type, err error) error {
	var oe *Error
	if errors.As(err, &oe) {
		return err
	}
	return wrapError(CodeCodec, s.path.Pointer(), t, err)
}

func isNilable(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	}
	return false
}

// encodeValue writes v. p is the property v belongs to, nil for container
// elements and the root.
func (s *encodeState) encodeValue(v reflect.Value, p *PropertySchema) error {
	if !v.IsValid() {
		return s.write(eng.Null())
	}
	t := v.Type()
	if isNilable(t.Kind()) && v.IsNil() {
		return s.write(eng.Null())
	}
	if enc := s.m.encoderFor(t, p); enc != nil {
		if err := enc.EncodeValue(&Encoder{s: s, p: p}, v); err != nil {
			return s.codecError(t, err)
		}
		return nil
	}
	switch t.Kind() {
	case reflect.Bool:
		return s.write(eng.Bool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return s.write(eng.Int(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return s.write(eng.Uint(v.Uint()))
	case reflect.Float32, reflect.Float64:
		text, err := formatFloat(v.Float(), t.Bits())
		if err != nil {
			return s.codecError(t, err)
		}
		return s.write(eng.Number(text))
	case reflect.String:
		return s.write(eng.String(v.String()))
	case reflect.Pointer:
		return s.encodeValue(v.Elem(), p)
	case reflect.Interface:
		if fam, ok := s.m.families[t]; ok {
			return s.encodePolymorphic(v.Elem(), fam)
		}
		return s.encodeValue(v.Elem(), p)
	case reflect.Struct:
		return s.encodeStruct(v, nil)
	case reflect.Map:
		return s.encodeMap(v)
	case reflect.Slice, reflect.Array:
		return s.encodeArray(v)
	}
	return newError(CodeSchema, s.path.Pointer(), t, "unsupported kind "+t.Kind().String())
}

// discriminator is the tag property written first into a polymorphic object.
type discriminator struct {
	key string
	tag string
}

func (s *encodeState) encodeStruct(v reflect.Value, disc *discriminator) error {
	ts, err := s.m.SchemaFor(v.Type())
	if err != nil {
		return err
	}
	shared := v.CanAddr()
	var idKey identityKey
	if shared {
		idKey = identityKey{t: ts.Type, p: v.Addr().Pointer()}
	}
	if ts.needsAddr {
		v = addressable(v)
	}

	var idTok *Token
	if ts.Identity != nil {
		if shared {
			if tok, ok := s.tracker.seen(idKey); ok {
				return s.write(tok)
			}
		}
		var tok Token
		if ts.idProp != nil {
			if tok, err = s.identityToken(v, ts); err != nil {
				return err
			}
		} else {
			tok = s.tracker.next()
		}
		idTok = &tok
		if shared {
			s.tracker.remember(idKey, tok)
		}
	}

	if ts.visibleCount() == 0 {
		if !s.cfg.AllowEmptyTypes {
			return newError(CodeEmptyType, s.path.Pointer(), ts.Type, "no properties to write")
		}
		s.m.logger.Debug("objmap: writing empty type", "type", ts.Type.String(), "path", s.path.Pointer())
	}

	if ts.AsArray {
		return s.encodeArrayShape(v, ts)
	}
	if err := s.write(eng.BeginObject()); err != nil {
		return err
	}
	skip := ""
	if disc != nil {
		skip = disc.key
		if err := s.writeKeyed(disc.key, eng.String(disc.tag)); err != nil {
			return err
		}
	}
	// identity before any property that may reference it
	var written *PropertySchema
	if idTok != nil {
		key := ts.Identity.SequenceKey
		if ts.idProp != nil {
			key, written = ts.idProp.Name, ts.idProp
		}
		if key == skip {
			written = nil
		} else if err := s.writeKeyed(key, *idTok); err != nil {
			return err
		}
	}
	if err := s.writeProperties(v, ts, skip, written); err != nil {
		return err
	}
	return s.write(eng.EndObject())
}

func (s *encodeState) writeKeyed(key string, tok Token) error {
	if err := s.write(eng.Key(key)); err != nil {
		return err
	}
	return s.write(tok)
}

// identityToken encodes the identity property of v into a single scalar.
func (s *encodeState) identityToken(v reflect.Value, ts *TypeSchema) (Token, error) {
	p := ts.idProp
	val, ok := p.get(v)
	if !ok || !val.IsValid() || isNilable(val.Kind()) && val.IsNil() {
		return Token{}, newError(CodeMissingIdentity, s.path.Pointer(), ts.Type, "identity property "+p.Name+" is absent")
	}
	var buf eng.Buffer
	w := s.w
	s.w = &buf
	s.path.field(p.Name)
	err := s.encodeValue(val, p)
	s.path.pop()
	s.w = w
	if err != nil {
		return Token{}, err
	}
	if buf.Len() != 1 || !buf.Tokens()[0].Kind.IsScalar() || buf.Tokens()[0].Kind == KindNull {
		return Token{}, newError(CodeMissingIdentity, s.path.Pointer(), ts.Type, "identity property "+p.Name+" must be a non-null scalar")
	}
	return buf.Tokens()[0], nil
}

func (s *encodeState) filterFor(ts *TypeSchema) (PropertyFilter, error) {
	if ts.FilterID == "" {
		return nil, nil
	}
	f, ok := s.cfg.Filters[ts.FilterID]
	if !ok || f == nil {
		return nil, newError(CodeMissingFilter, s.path.Pointer(), ts.Type, "no filter bound to id "+strconv.Quote(ts.FilterID))
	}
	return f, nil
}

// writeProperties writes the key/value pairs of v, unwrapped children and
// any-properties included. done is a property already written, or nil.
func (s *encodeState) writeProperties(v reflect.Value, ts *TypeSchema, skip string, done *PropertySchema) error {
	filter, err := s.filterFor(ts)
	if err != nil {
		return err
	}
	participates := func(p *PropertySchema) bool {
		if p == done || !p.Readable() || p.Name == skip || !s.views.include(p) {
			return false
		}
		return filter == nil || filter.Decide(v, p) == FilterInclude
	}
	for _, p := range ts.Properties {
		if !participates(p) {
			continue
		}
		val, ok := p.get(v)
		if !ok || !s.included(val, p) {
			continue
		}
		if err := s.write(eng.Key(p.Name)); err != nil {
			return err
		}
		s.path.field(p.Name)
		err := s.encodeValue(val, p)
		s.path.pop()
		if err != nil {
			return err
		}
	}
	for _, p := range ts.unwrapped {
		if !participates(p) {
			continue
		}
		val, ok := p.get(v)
		for ok && val.Kind() == reflect.Pointer {
			if val.IsNil() {
				ok = false
				break
			}
			val = val.Elem()
		}
		if !ok {
			continue
		}
		cts, err := s.m.SchemaFor(val.Type())
		if err != nil {
			return err
		}
		if cts.needsAddr {
			val = addressable(val)
		}
		if err := s.writeProperties(val, cts, skip, nil); err != nil {
			return err
		}
	}
	if ap := ts.AnyProperty; ap != nil && !ap.writeOnly {
		mv, ok := ap.get(v)
		if !ok || mv.IsNil() {
			return nil
		}
		keys := mv.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
		for _, k := range keys {
			name := k.String()
			if err := s.write(eng.Key(name)); err != nil {
				return err
			}
			s.path.field(name)
			err := s.encodeValue(mv.MapIndex(k), nil)
			s.path.pop()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// included applies the inclusion rule of p to val.
func (s *encodeState) included(val reflect.Value, p *PropertySchema) bool {
	incl := p.Inclusion
	if incl == InclusionDefault {
		incl = s.cfg.inclusion()
	}
	if incl == IncludeAlways {
		return true
	}
	if !val.IsValid() || isNilable(val.Kind()) && val.IsNil() {
		return false
	}
	if incl == IncludeNonEmpty {
		switch val.Kind() {
		case reflect.String, reflect.Map, reflect.Slice, reflect.Array:
			return val.Len() > 0
		}
	}
	return true
}

// encodeArrayShape writes v positionally. Omitted slots that reserve their
// position are written as null.
func (s *encodeState) encodeArrayShape(v reflect.Value, ts *TypeSchema) error {
	filter, err := s.filterFor(ts)
	if err != nil {
		return err
	}
	if err := s.write(eng.BeginArray()); err != nil {
		return err
	}
	i := 0
	for _, p := range ts.Properties {
		if !p.Readable() || !s.views.include(p) {
			continue
		}
		d := FilterInclude
		if filter != nil {
			d = filter.Decide(v, p)
		}
		switch d {
		case FilterOmit:
			continue
		case FilterOmitReserveSlot:
			if err := s.write(eng.Null()); err != nil {
				return err
			}
		default:
			val, ok := p.get(v)
			s.path.index(i)
			if ok {
				err = s.encodeValue(val, p)
			} else {
				err = s.write(eng.Null())
			}
			s.path.pop()
			if err != nil {
				return err
			}
		}
		i++
	}
	return s.write(eng.EndArray())
}

func (s *encodeState) encodeMap(v reflect.Value) error {
	type entry struct {
		key string
		val reflect.Value
	}
	entries := make([]entry, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		k, err := mapKeyString(iter.Key())
		if err != nil {
			return newError(CodeSchema, s.path.Pointer(), v.Type(), err.Error())
		}
		entries = append(entries, entry{k, iter.Value()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	if err := s.write(eng.BeginObject()); err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.write(eng.Key(e.key)); err != nil {
			return err
		}
		s.path.field(e.key)
		err := s.encodeValue(e.val, nil)
		s.path.pop()
		if err != nil {
			return err
		}
	}
	return s.write(eng.EndObject())
}

func mapKeyString(k reflect.Value) (string, error) {
	if k.Kind() == reflect.String {
		return k.String(), nil
	}
	if tm, ok := k.Interface().(encoding.TextMarshaler); ok {
		b, err := tm.MarshalText()
		return string(b), err
	}
	switch k.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	}
	return "", fmt.Errorf("unsupported map key type %s", k.Type())
}

func (s *encodeState) encodeArray(v reflect.Value) error {
	if err := s.write(eng.BeginArray()); err != nil {
		return err
	}
	for i := 0; i < v.Len(); i++ {
		s.path.index(i)
		err := s.encodeValue(v.Index(i), nil)
		s.path.pop()
		if err != nil {
			return err
		}
	}
	return s.write(eng.EndArray())
}

// encodePolymorphic writes the concrete value v of a family with its tag.
func (s *encodeState) encodePolymorphic(v reflect.Value, fam *family) error {
	tag, ok := fam.tagOf(v.Type())
	if !ok {
		return newError(CodePolymorphicResolution, s.path.Pointer(), v.Type(), "no tag for type in family "+fam.super.String())
	}
	switch fam.placement.kind {
	case placeWrapperObject:
		if err := s.write(eng.BeginObject()); err != nil {
			return err
		}
		if err := s.write(eng.Key(tag)); err != nil {
			return err
		}
		if err := s.encodeValue(v, nil); err != nil {
			return err
		}
		return s.write(eng.EndObject())
	case placeDiscriminator:
		if base, ok := s.objectShaped(v); ok {
			return s.encodeStruct(base, &discriminator{key: fam.placement.property, tag: tag})
		}
	}
	if err := s.write(eng.BeginArray()); err != nil {
		return err
	}
	if err := s.write(eng.String(tag)); err != nil {
		return err
	}
	if err := s.encodeValue(v, nil); err != nil {
		return err
	}
	return s.write(eng.EndArray())
}

// objectShaped returns the struct behind v when the default struct codec
// writes it as an object.
func (s *encodeState) objectShaped(v reflect.Value) (reflect.Value, bool) {
	for {
		if s.m.encoderFor(v.Type(), nil) != nil {
			return reflect.Value{}, false
		}
		if v.Kind() != reflect.Pointer {
			break
		}
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	ts, err := s.m.SchemaFor(v.Type())
	if err != nil || ts.AsArray {
		return reflect.Value{}, false
	}
	return v, true
}

// Encoder is handed to ValueEncoders. It writes into the traversal's token
// stream.
type Encoder struct {
	s *encodeState
	p *PropertySchema
}

// Context returns the context of the call.
func (e *Encoder) Context() context.Context { return e.s.ctx }

// Path returns the JSON Pointer of the value being written.
func (e *Encoder) Path() string { return e.s.path.Pointer() }

// Property returns the property being written, nil outside a property.
func (e *Encoder) Property() *PropertySchema { return e.p }

// ActiveView returns the view of the call.
func (e *Encoder) ActiveView() string { return e.s.cfg.ActiveView }

func (e *Encoder) WriteToken(t Token) error      { return e.s.write(t) }
func (e *Encoder) WriteString(v string) error    { return e.s.write(eng.String(v)) }
func (e *Encoder) WriteNumber(text string) error { return e.s.write(eng.Number(text)) }
func (e *Encoder) WriteInt(v int64) error        { return e.s.write(eng.Int(v)) }
func (e *Encoder) WriteUint(v uint64) error      { return e.s.write(eng.Uint(v)) }
func (e *Encoder) WriteBool(v bool) error        { return e.s.write(eng.Bool(v)) }
func (e *Encoder) WriteNull() error              { return e.s.write(eng.Null()) }
func (e *Encoder) WriteKey(k string) error       { return e.s.write(eng.Key(k)) }
func (e *Encoder) BeginObject() error            { return e.s.write(eng.BeginObject()) }
func (e *Encoder) EndObject() error              { return e.s.write(eng.EndObject()) }
func (e *Encoder) BeginArray() error             { return e.s.write(eng.BeginArray()) }
func (e *Encoder) EndArray() error               { return e.s.write(eng.EndArray()) }

// WriteFloat writes f with the same formatting as float properties.
func (e *Encoder) WriteFloat(f float64) error {
	text, err := formatFloat(f, 64)
	if err != nil {
		return err
	}
	return e.s.write(eng.Number(text))
}

// WriteValue writes v with regular codec resolution.
func (e *Encoder) WriteValue(v any) error {
	return e.s.encodeValue(reflect.ValueOf(v), nil)
}
