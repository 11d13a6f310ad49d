package objmap

import (
	"context"
	"encoding"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"strconv"

	"github.com/jinzhu/copier"

	eng "github.com/reoring/objmap/internal/engine"
)

// decodeState is the per-call state of a deserialization.
type decodeState struct {
	ctx     context.Context
	m       *Mapper
	cfg     *Config
	tracker *Tracker
	views   *viewEval
	path    pathStack
}

func (m *Mapper) newDecodeState(ctx context.Context, cfg *Config) *decodeState {
	return &decodeState{
		ctx:     ctx,
		m:       m,
		cfg:     cfg,
		tracker: trackerFor(cfg),
		views:   newViewEval(m.views, cfg),
	}
}

// read returns the next token of src, converting source failures into
// *Error values.
func (s *decodeState) read(src TokenSource) (Token, error) {
	tok, err := src.NextToken()
	if err != nil {
		return Token{}, s.readError(err)
	}
	return tok, nil
}

func (s *decodeState) readError(err error) error {
	var oe *Error
	if errors.As(err, &oe) {
		return err
	}
	var ie eng.IssueError
	if errors.As(err, &ie) {
		code := CodeParseError
		switch ie.Code {
		case eng.IssueDuplicateKey:
			code = CodeDuplicateKey
		case eng.IssueDepthExceeded:
			code = CodeDepthExceeded
		}
		path := ie.Path
		if path == "" {
			path = "/"
		}
		return newError(code, path, nil, ie.Message)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return newError(CodeParseError, s.path.Pointer(), nil, "unexpected end of input")
	}
	if errors.Is(err, eng.ErrUnexpectedToken) {
		return newError(CodeParseError, s.path.Pointer(), nil, "malformed token stream")
	}
	return wrapError(CodeParseError, s.path.Pointer(), nil, err)
}

func (s *decodeState) skip(src TokenSource, first Token) error {
	if err := eng.SkipValue(src, first); err != nil {
		return s.readError(err)
	}
	return nil
}

func (s *decodeState) invalid(t reflect.Type, tok Token) error {
	return newError(CodeInvalidType, s.path.Pointer(), t, "unexpected "+tok.Kind.String())
}

// decodeInto reads the value starting with first into the settable dst. p is
// the property dst belongs to, nil for container elements and the root.
func (s *decodeState) decodeInto(src TokenSource, dst reflect.Value, first Token, p *PropertySchema) error {
	t := dst.Type()
	if first.Kind == KindNull {
		dst.Set(reflect.Zero(t))
		return nil
	}
	if dec := s.m.decoderFor(t, p); dec != nil {
		return s.runDecoder(dec, src, dst, first, p)
	}
	switch t.Kind() {
	case reflect.Bool:
		if first.Kind != KindBool {
			return s.invalid(t, first)
		}
		dst.SetBool(first.Bool)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if first.Kind != KindNumber {
			return s.invalid(t, first)
		}
		n, err := parseInt(first.Number, t.Bits())
		if err != nil {
			return wrapError(CodeInvalidType, s.path.Pointer(), t, err)
		}
		dst.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if first.Kind != KindNumber {
			return s.invalid(t, first)
		}
		n, err := parseUint(first.Number, t.Bits())
		if err != nil {
			return wrapError(CodeInvalidType, s.path.Pointer(), t, err)
		}
		dst.SetUint(n)
	case reflect.Float32, reflect.Float64:
		if first.Kind != KindNumber {
			return s.invalid(t, first)
		}
		f, err := strconv.ParseFloat(first.Number, t.Bits())
		if err != nil {
			return wrapError(CodeInvalidType, s.path.Pointer(), t, err)
		}
		dst.SetFloat(f)
	case reflect.String:
		if first.Kind != KindString {
			return s.invalid(t, first)
		}
		dst.SetString(first.String)
	case reflect.Pointer:
		return s.decodePointer(src, dst, first, p)
	case reflect.Interface:
		return s.decodeInterface(src, dst, first)
	case reflect.Struct:
		return s.decodeStruct(src, dst, first)
	case reflect.Map:
		return s.decodeMap(src, dst, first)
	case reflect.Slice:
		return s.decodeSlice(src, dst, first)
	case reflect.Array:
		return s.decodeArray(src, dst, first)
	default:
		return newError(CodeSchema, s.path.Pointer(), t, "cannot deserialize kind "+t.Kind().String())
	}
	return nil
}

// parseInt accepts integral numbers written with a fraction or exponent
// ("5.0", "1e3").
func parseInt(text string, bits int) (int64, error) {
	n, err := strconv.ParseInt(text, 10, bits)
	if err == nil {
		return n, nil
	}
	f, ferr := strconv.ParseFloat(text, 64)
	if ferr != nil || f != math.Trunc(f) {
		return 0, err
	}
	n = int64(f)
	if float64(n) != f || bits < 64 && (n < -(1<<(bits-1)) || n >= 1<<(bits-1)) {
		return 0, err
	}
	return n, nil
}

func parseUint(text string, bits int) (uint64, error) {
	n, err := strconv.ParseUint(text, 10, bits)
	if err == nil {
		return n, nil
	}
	f, ferr := strconv.ParseFloat(text, 64)
	if ferr != nil || f != math.Trunc(f) || f < 0 || f >= math.Ldexp(1, bits) {
		return 0, err
	}
	return uint64(f), nil
}

func (s *decodeState) runDecoder(dec ValueDecoder, src TokenSource, dst reflect.Value, first Token, p *PropertySchema) error {
	t := dst.Type()
	sub := eng.NewPreloadedSource(src, first)
	v, err := dec.DecodeValue(&Decoder{s: s, src: sub, p: p}, t)
	if err != nil {
		var oe *Error
		if errors.As(err, &oe) {
			return err
		}
		return wrapError(CodeCodec, s.path.Pointer(), t, err)
	}
	if err := sub.Drain(); err != nil {
		return s.readError(err)
	}
	switch {
	case !v.IsValid():
		dst.Set(reflect.Zero(t))
	case v.Type().AssignableTo(t):
		dst.Set(v)
	case v.Kind() == reflect.Pointer && v.Type().Elem().AssignableTo(t):
		dst.Set(v.Elem())
	case v.Type().ConvertibleTo(t) && v.Kind() == t.Kind():
		dst.Set(v.Convert(t))
	default:
		return newError(CodeCodec, s.path.Pointer(), t, "decoder returned "+v.Type().String())
	}
	return nil
}

func (s *decodeState) decodePointer(src TokenSource, dst reflect.Value, first Token, p *PropertySchema) error {
	et := dst.Type().Elem()
	if first.Kind.IsScalar() && et.Kind() == reflect.Struct {
		if ts, err := s.m.SchemaFor(et); err == nil && ts.Identity != nil {
			ref, err := s.resolveIdentity(dst.Type(), first)
			if err != nil {
				return err
			}
			dst.Set(ref)
			return nil
		}
	}
	if dst.IsNil() {
		dst.Set(reflect.New(et))
	}
	return s.decodeInto(src, dst.Elem(), first, p)
}

// resolveIdentity returns the object bound to the scalar token tok, as a
// value assignable to want. Interface targets only consider the concrete
// types of their polymorphic family, if any.
func (s *decodeState) resolveIdentity(want reflect.Type, tok Token) (reflect.Value, error) {
	var member func(reflect.Type) bool
	if fam, ok := s.m.families[want]; ok {
		member = fam.member
	}
	ref, n := s.tracker.resolve(want, tok.Text(), member)
	switch {
	case n == 0:
		return reflect.Value{}, newError(CodeMissingIdentity, s.path.Pointer(), want, "unresolved identity "+strconv.Quote(tok.Text()))
	case n > 1:
		return reflect.Value{}, newError(CodeMissingIdentity, s.path.Pointer(), want, fmt.Sprintf("identity %q is ambiguous: %d objects of different types share it", tok.Text(), n))
	}
	if ref.Type().AssignableTo(want) {
		return ref, nil
	}
	return ref.Elem(), nil
}

func (s *decodeState) decodeInterface(src TokenSource, dst reflect.Value, first Token) error {
	t := dst.Type()
	if fam, ok := s.m.families[t]; ok {
		v, err := s.decodePolymorphic(src, first, fam)
		if err != nil {
			return err
		}
		dst.Set(v)
		return nil
	}
	if t.NumMethod() > 0 {
		return newError(CodeSchema, s.path.Pointer(), t, "cannot instantiate interface without a polymorphic family")
	}
	v, err := eng.DecodeAnyFrom(src, first, s.cfg.UseNumber)
	if err != nil {
		return s.readError(err)
	}
	if v == nil {
		dst.Set(reflect.Zero(t))
		return nil
	}
	dst.Set(reflect.ValueOf(v))
	return nil
}

func (s *decodeState) decodeStruct(src TokenSource, dst reflect.Value, first Token) error {
	ts, err := s.m.SchemaFor(dst.Type())
	if err != nil {
		return err
	}
	switch {
	case first.Kind.IsScalar() && ts.Identity != nil:
		ref, err := s.resolveIdentity(dst.Type(), first)
		if err != nil {
			return err
		}
		dst.Set(ref)
		return nil
	case first.Kind == KindBeginArray && ts.AsArray:
		return s.decodeArrayShape(src, dst, ts)
	case first.Kind != KindBeginObject:
		return s.invalid(dst.Type(), first)
	case ts.creator != nil:
		return s.decodeWithCreator(src, dst, ts)
	}
	seen := map[*PropertySchema]bool{}
	if err := s.decodeFields(src, dst, ts, seen, nil); err != nil {
		return err
	}
	return s.finishObject(dst, ts, seen)
}

// decodeFields binds the key/value pairs of an object until its end token.
// Keys matching a creator parameter go to args.
func (s *decodeState) decodeFields(src TokenSource, dst reflect.Value, ts *TypeSchema, seen map[*PropertySchema]bool, args []reflect.Value) error {
	for {
		tok, err := s.read(src)
		if err != nil {
			return err
		}
		if tok.Kind == KindEndObject {
			return nil
		}
		if tok.Kind != KindKey {
			return s.invalid(ts.Type, tok)
		}
		val, err := s.read(src)
		if err != nil {
			return err
		}
		s.path.field(tok.String)
		if i, ok := ts.params[tok.String]; ok && args != nil {
			err = s.decodeInto(src, args[i], val, nil)
			if p, ok := ts.byName[tok.String]; ok {
				seen[p] = true
			}
		} else {
			err = s.bindProperty(src, dst, ts, tok.String, val, seen)
		}
		s.path.pop()
		if err != nil {
			return err
		}
	}
}

// bindProperty routes one key/value pair of an object of type ts.
func (s *decodeState) bindProperty(src TokenSource, dst reflect.Value, ts *TypeSchema, key string, first Token, seen map[*PropertySchema]bool) error {
	if id := ts.Identity; id != nil && id.SequenceKey == key {
		if !first.Kind.IsScalar() {
			return s.invalid(ts.Type, first)
		}
		s.tracker.bind(ts.Type, first.Text(), dst.Addr())
		return nil
	}
	if p, ok := ts.byName[key]; ok {
		if !p.Writable() || !s.views.include(p) {
			return s.skip(src, first)
		}
		seen[p] = true
		if p == ts.idProp && first.Kind.IsScalar() {
			s.tracker.bind(ts.Type, first.Text(), dst.Addr())
		}
		return s.decodeProperty(src, dst, p, first)
	}
	if ts.ignored[key] {
		return s.skip(src, first)
	}
	for _, u := range ts.unwrapped {
		if !u.Writable() {
			continue
		}
		cts, err := s.m.SchemaFor(u.Type)
		if err != nil {
			return err
		}
		if !s.knows(cts, key) {
			continue
		}
		child := u.field(dst)
		for child.Kind() == reflect.Pointer {
			if child.IsNil() {
				child.Set(reflect.New(child.Type().Elem()))
			}
			child = child.Elem()
		}
		return s.bindProperty(src, child, cts, key, first, map[*PropertySchema]bool{})
	}
	if ap := ts.AnyProperty; ap != nil && !ap.readOnly {
		mv := ap.field(dst)
		if mv.IsNil() {
			mv.Set(reflect.MakeMap(mv.Type()))
		}
		ev := reflect.New(mv.Type().Elem()).Elem()
		if err := s.decodeInto(src, ev, first, nil); err != nil {
			return err
		}
		mv.SetMapIndex(reflect.ValueOf(key).Convert(mv.Type().Key()), ev)
		return nil
	}
	if ts.IgnoreUnknown || s.cfg.UnknownProperties == UnknownStrip {
		s.m.logger.Debug("objmap: ignoring unknown property", "type", ts.Type.String(), "path", s.path.Pointer())
		return s.skip(src, first)
	}
	return newError(CodeUnrecognizedProperty, s.path.Pointer(), ts.Type, "unrecognized property "+strconv.Quote(key))
}

// knows reports whether key is a property of ts or of one of its unwrapped
// children.
func (s *decodeState) knows(ts *TypeSchema, key string) bool {
	if _, ok := ts.byName[key]; ok || ts.ignored[key] {
		return true
	}
	if ts.Identity != nil && ts.Identity.SequenceKey == key {
		return true
	}
	for _, u := range ts.unwrapped {
		if cts, err := s.m.SchemaFor(u.Type); err == nil && s.knows(cts, key) {
			return true
		}
	}
	return false
}

func (s *decodeState) decodeProperty(src TokenSource, dst reflect.Value, p *PropertySchema, first Token) error {
	if p.index != nil && p.setter < 0 {
		val := p.field(dst)
		if err := s.decodeInto(src, val, first, p); err != nil {
			return err
		}
		if p.Ref == RefManaged {
			s.m.linkBack(dst.Addr(), p.RefName, val)
		}
		return nil
	}
	val := reflect.New(p.Type).Elem()
	if err := s.decodeInto(src, val, first, p); err != nil {
		return err
	}
	// link before the setter copies val into the owner
	if p.Ref == RefManaged {
		s.m.linkBack(dst.Addr(), p.RefName, val)
	}
	p.set(dst, val)
	return nil
}

// finishObject enforces mandatory properties and applies injection.
func (s *decodeState) finishObject(dst reflect.Value, ts *TypeSchema, seen map[*PropertySchema]bool) error {
	for _, p := range ts.Properties {
		if seen[p] {
			continue
		}
		if p.Injected && p.Writable() {
			if v, ok := lookupInjectable(s.ctx, s.cfg, p); ok {
				p.set(dst, v)
				continue
			}
		}
		if p.Mandatory {
			s.path.field(p.Name)
			err := newError(CodeRequired, s.path.Pointer(), ts.Type, "missing property "+strconv.Quote(p.Name))
			s.path.pop()
			return err
		}
	}
	return nil
}

// decodeWithCreator decodes creator parameters by name, the remaining
// properties into a shadow value, and copies the non-empty shadow fields onto
// the creator's result.
func (s *decodeState) decodeWithCreator(src TokenSource, dst reflect.Value, ts *TypeSchema) error {
	fn := ts.creator.fn
	ft := fn.Type()
	args := make([]reflect.Value, ft.NumIn())
	for i := range args {
		args[i] = reflect.New(ft.In(i)).Elem()
	}
	shadow := reflect.New(ts.Type)
	seen := map[*PropertySchema]bool{}
	if err := s.decodeFields(src, shadow.Elem(), ts, seen, args); err != nil {
		return err
	}
	out := fn.Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return wrapError(CodeCodec, s.path.Pointer(), ts.Type, out[1].Interface().(error))
	}
	res := out[0]
	if res.Kind() == reflect.Pointer {
		if res.IsNil() {
			return newError(CodeCodec, s.path.Pointer(), ts.Type, "creator returned nil")
		}
		res = res.Elem()
	}
	dst.Set(res)
	if err := copier.CopyWithOption(dst.Addr().Interface(), shadow.Interface(), copier.Option{IgnoreEmpty: true}); err != nil {
		return wrapError(CodeCodec, s.path.Pointer(), ts.Type, err)
	}
	if ts.Identity != nil {
		s.rebindIdentity(shadow, dst.Addr(), ts)
	}
	for _, p := range ts.Properties {
		if p.Ref == RefManaged && seen[p] {
			if v, ok := p.get(dst); ok {
				s.m.linkBack(dst.Addr(), p.RefName, v)
			}
		}
	}
	return s.finishObject(dst, ts, seen)
}

// rebindIdentity moves the identity registered for the shadow value to the
// creator's result.
func (s *decodeState) rebindIdentity(shadow, result reflect.Value, ts *TypeSchema) {
	for k, v := range s.tracker.byToken {
		if k.t == ts.Type && v.Pointer() == shadow.Pointer() {
			s.tracker.byToken[k] = result
		}
	}
}

// decodeArrayShape reads a positional array into the properties of ts.
func (s *decodeState) decodeArrayShape(src TokenSource, dst reflect.Value, ts *TypeSchema) error {
	var slots []*PropertySchema
	for _, p := range ts.Properties {
		if p.Readable() && s.views.include(p) {
			slots = append(slots, p)
		}
	}
	for i := 0; ; i++ {
		tok, err := s.read(src)
		if err != nil {
			return err
		}
		if tok.Kind == KindEndArray {
			return nil
		}
		s.path.index(i)
		switch {
		case i >= len(slots):
			err = newError(CodeInvalidType, s.path.Pointer(), ts.Type, "too many elements for positional shape")
		case !slots[i].Writable():
			err = s.skip(src, tok)
		default:
			err = s.decodeProperty(src, dst, slots[i], tok)
		}
		s.path.pop()
		if err != nil {
			return err
		}
	}
}

func (s *decodeState) decodeMap(src TokenSource, dst reflect.Value, first Token) error {
	t := dst.Type()
	if first.Kind != KindBeginObject {
		return s.invalid(t, first)
	}
	if dst.IsNil() {
		dst.Set(reflect.MakeMap(t))
	}
	for {
		tok, err := s.read(src)
		if err != nil {
			return err
		}
		if tok.Kind == KindEndObject {
			return nil
		}
		if tok.Kind != KindKey {
			return s.invalid(t, tok)
		}
		s.path.field(tok.String)
		k, err := parseMapKey(tok.String, t.Key())
		if err != nil {
			s.path.pop()
			return wrapError(CodeInvalidType, s.path.Pointer(), t, err)
		}
		first, err := s.read(src)
		if err == nil {
			ev := reflect.New(t.Elem()).Elem()
			if err = s.decodeInto(src, ev, first, nil); err == nil {
				dst.SetMapIndex(k, ev)
			}
		}
		s.path.pop()
		if err != nil {
			return err
		}
	}
}

func parseMapKey(key string, kt reflect.Type) (reflect.Value, error) {
	if reflect.PointerTo(kt).Implements(textUnmarshalerType) {
		k := reflect.New(kt)
		if err := k.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(key)); err != nil {
			return reflect.Value{}, err
		}
		return k.Elem(), nil
	}
	switch kt.Kind() {
	case reflect.String:
		return reflect.ValueOf(key).Convert(kt), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(key, 10, kt.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(n).Convert(kt), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := strconv.ParseUint(key, 10, kt.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(n).Convert(kt), nil
	}
	return reflect.Value{}, fmt.Errorf("unsupported map key type %s", kt)
}

func (s *decodeState) decodeSlice(src TokenSource, dst reflect.Value, first Token) error {
	t := dst.Type()
	if first.Kind != KindBeginArray {
		return s.invalid(t, first)
	}
	if t.Elem().Kind() == reflect.Struct {
		return s.decodeStructSlice(src, dst, first)
	}
	out := reflect.MakeSlice(t, 0, 0)
	for i := 0; ; i++ {
		tok, err := s.read(src)
		if err != nil {
			return err
		}
		if tok.Kind == KindEndArray {
			break
		}
		ev := reflect.New(t.Elem()).Elem()
		s.path.index(i)
		err = s.decodeInto(src, ev, tok, nil)
		s.path.pop()
		if err != nil {
			return err
		}
		out = reflect.Append(out, ev)
	}
	dst.Set(out)
	return nil
}

// decodeStructSlice buffers the array to size the slice up front and decodes
// every element in place, so identities and back references bound while
// reading an element point into the returned backing array.
func (s *decodeState) decodeStructSlice(src TokenSource, dst reflect.Value, first Token) error {
	var buf eng.Buffer
	if err := eng.CopyValue(src, first, &buf); err != nil {
		return s.readError(err)
	}
	n := buf.Elements()
	out := reflect.MakeSlice(dst.Type(), n, n)
	if _, err := buf.NextToken(); err != nil {
		return s.readError(err)
	}
	for i := range n {
		tok, err := s.read(&buf)
		if err != nil {
			return err
		}
		s.path.index(i)
		err = s.decodeInto(&buf, out.Index(i), tok, nil)
		s.path.pop()
		if err != nil {
			return err
		}
	}
	dst.Set(out)
	return nil
}

func (s *decodeState) decodeArray(src TokenSource, dst reflect.Value, first Token) error {
	t := dst.Type()
	if first.Kind != KindBeginArray {
		return s.invalid(t, first)
	}
	for i := 0; ; i++ {
		tok, err := s.read(src)
		if err != nil {
			return err
		}
		if tok.Kind == KindEndArray {
			for ; i < t.Len(); i++ {
				dst.Index(i).Set(reflect.Zero(t.Elem()))
			}
			return nil
		}
		s.path.index(i)
		if i < t.Len() {
			err = s.decodeInto(src, dst.Index(i), tok, nil)
		} else {
			err = s.skip(src, tok)
		}
		s.path.pop()
		if err != nil {
			return err
		}
	}
}

// decodePolymorphic resolves the concrete type of a family value and decodes
// it. With a discriminator, keys seen before the tag are buffered and
// replayed in front of the rest of the object.
func (s *decodeState) decodePolymorphic(src TokenSource, first Token, fam *family) (reflect.Value, error) {
	if first.Kind.IsScalar() {
		return s.resolveIdentity(fam.super, first)
	}
	switch fam.placement.kind {
	case placeWrapperObject:
		if first.Kind != KindBeginObject {
			return reflect.Value{}, s.invalid(fam.super, first)
		}
		key, err := s.read(src)
		if err != nil {
			return reflect.Value{}, err
		}
		if key.Kind != KindKey {
			return reflect.Value{}, newError(CodePolymorphicResolution, s.path.Pointer(), fam.super, "missing type wrapper key")
		}
		v, err := s.decodeTagged(src, fam, key.String)
		if err != nil {
			return reflect.Value{}, err
		}
		return v, s.expect(src, KindEndObject, fam.super)
	case placeDiscriminator:
		if first.Kind == KindBeginObject {
			return s.decodeDiscriminated(src, fam)
		}
	}
	if first.Kind != KindBeginArray {
		return reflect.Value{}, s.invalid(fam.super, first)
	}
	tag, err := s.read(src)
	if err != nil {
		return reflect.Value{}, err
	}
	if tag.Kind != KindString {
		return reflect.Value{}, newError(CodePolymorphicResolution, s.path.Pointer(), fam.super, "type tag must be a string")
	}
	v, err := s.decodeTagged(src, fam, tag.String)
	if err != nil {
		return reflect.Value{}, err
	}
	return v, s.expect(src, KindEndArray, fam.super)
}

func (s *decodeState) expect(src TokenSource, k Kind, t reflect.Type) error {
	tok, err := s.read(src)
	if err != nil {
		return err
	}
	if tok.Kind != k {
		return s.invalid(t, tok)
	}
	return nil
}

// decodeTagged decodes the next value of src as the concrete type of tag.
func (s *decodeState) decodeTagged(src TokenSource, fam *family, tag string) (reflect.Value, error) {
	ct, ok := fam.concrete(tag)
	if !ok {
		return reflect.Value{}, newError(CodePolymorphicResolution, s.path.Pointer(), fam.super, "unknown type tag "+strconv.Quote(tag))
	}
	first, err := s.read(src)
	if err != nil {
		return reflect.Value{}, err
	}
	return s.decodeConcrete(src, fam, ct, first)
}

func (s *decodeState) decodeConcrete(src TokenSource, fam *family, ct reflect.Type, first Token) (reflect.Value, error) {
	v := reflect.New(ct).Elem()
	if err := s.decodeInto(src, v, first, nil); err != nil {
		return reflect.Value{}, err
	}
	out, ok := fam.adapt(v)
	if !ok {
		return reflect.Value{}, newError(CodePolymorphicResolution, s.path.Pointer(), ct, "type does not implement "+fam.super.String())
	}
	return out, nil
}

func (s *decodeState) decodeDiscriminated(src TokenSource, fam *family) (reflect.Value, error) {
	disc := fam.placement.property
	prefix := []Token{eng.BeginObject()}
	var buf eng.Buffer
	for {
		key, err := s.read(src)
		if err != nil {
			return reflect.Value{}, err
		}
		if key.Kind == KindEndObject {
			return reflect.Value{}, newError(CodePolymorphicResolution, s.path.Pointer(), fam.super, "missing type property "+strconv.Quote(disc))
		}
		if key.Kind != KindKey {
			return reflect.Value{}, s.invalid(fam.super, key)
		}
		val, err := s.read(src)
		if err != nil {
			return reflect.Value{}, err
		}
		if key.String != disc {
			buf.Reset()
			if err := eng.CopyValue(src, val, &buf); err != nil {
				return reflect.Value{}, s.readError(err)
			}
			prefix = append(prefix, key)
			prefix = append(prefix, buf.Tokens()...)
			continue
		}
		if val.Kind != KindString {
			return reflect.Value{}, newError(CodePolymorphicResolution, s.path.Pointer(), fam.super, "type property must be a string")
		}
		ct, ok := fam.concrete(val.String)
		if !ok {
			return reflect.Value{}, newError(CodePolymorphicResolution, s.path.Pointer(), fam.super, "unknown type tag "+strconv.Quote(val.String))
		}
		// keep the tag when the concrete type declares a property of that name
		if ts, err := s.m.SchemaFor(ct); err == nil {
			if _, ok := ts.byName[disc]; ok {
				prefix = append(prefix, key, val)
			}
		}
		rs := eng.NewReplaySource(prefix, src)
		first, _ := rs.NextToken()
		return s.decodeConcrete(rs, fam, ct, first)
	}
}

// Decoder is handed to ValueDecoders. It is bounded to one value subtree.
type Decoder struct {
	s   *decodeState
	src *eng.PreloadedSource
	p   *PropertySchema
}

// Context returns the context of the call.
func (d *Decoder) Context() context.Context { return d.s.ctx }

// Path returns the JSON Pointer of the value being read.
func (d *Decoder) Path() string { return d.s.path.Pointer() }

// Property returns the property being read, nil outside a property.
func (d *Decoder) Property() *PropertySchema { return d.p }

// NextToken returns the next token of the subtree, io.EOF past its end.
func (d *Decoder) NextToken() (Token, error) {
	if d.src.Done() {
		return Token{}, io.EOF
	}
	return d.s.read(d.src)
}

func (d *Decoder) unexpected(tok Token, want string) error {
	return newError(CodeInvalidType, d.s.path.Pointer(), nil, "expected "+want+", got "+tok.Kind.String())
}

// ReadString reads a string scalar.
func (d *Decoder) ReadString() (string, error) {
	tok, err := d.NextToken()
	if err != nil {
		return "", err
	}
	if tok.Kind != KindString {
		return "", d.unexpected(tok, "string")
	}
	return tok.String, nil
}

// ReadNumber reads a number scalar as text.
func (d *Decoder) ReadNumber() (string, error) {
	tok, err := d.NextToken()
	if err != nil {
		return "", err
	}
	if tok.Kind != KindNumber {
		return "", d.unexpected(tok, "number")
	}
	return tok.Number, nil
}

// ReadInt reads an integral number.
func (d *Decoder) ReadInt() (int64, error) {
	text, err := d.ReadNumber()
	if err != nil {
		return 0, err
	}
	return parseInt(text, 64)
}

// ReadFloat reads a number.
func (d *Decoder) ReadFloat() (float64, error) {
	text, err := d.ReadNumber()
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(text, 64)
}

// ReadBool reads a boolean scalar.
func (d *Decoder) ReadBool() (bool, error) {
	tok, err := d.NextToken()
	if err != nil {
		return false, err
	}
	if tok.Kind != KindBool {
		return false, d.unexpected(tok, "bool")
	}
	return tok.Bool, nil
}

// ReadValue decodes the next value into dst, a non-nil pointer, with regular
// codec resolution.
func (d *Decoder) ReadValue(dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("ReadValue needs a non-nil pointer, got %T", dst)
	}
	first, err := d.NextToken()
	if err != nil {
		return err
	}
	return d.s.decodeInto(d.src, rv.Elem(), first, nil)
}

// ReadAny decodes the next value into maps, slices and scalars.
func (d *Decoder) ReadAny() (any, error) {
	var v any
	err := d.ReadValue(&v)
	return v, err
}
