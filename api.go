package objmap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"

	eng "github.com/reoring/objmap/internal/engine"
)

// Serialize converts v into a token stream. declared is the static type the
// value is seen as; it decides polymorphic handling of interface roots. A nil
// declared uses the dynamic type of v. Only the first Config is used; none
// means the Mapper defaults.
func (m *Mapper) Serialize(ctx context.Context, v any, declared reflect.Type, cfgs ...Config) (*TokenStream, error) {
	out := NewTokenStream()
	if err := m.SerializeTo(ctx, out, v, declared, cfgs...); err != nil {
		return nil, err
	}
	return out, nil
}

// SerializeTo is Serialize writing into w.
func (m *Mapper) SerializeTo(ctx context.Context, w TokenWriter, v any, declared reflect.Type, cfgs ...Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg := m.config(cfgs)
	if err := cfg.validate(); err != nil {
		return err
	}
	root := reflect.ValueOf(v)
	if declared != nil && root.IsValid() {
		if !root.Type().AssignableTo(declared) {
			return newError(CodeInvalidType, "/", declared, "value of type "+root.Type().String()+" is not assignable")
		}
		r := reflect.New(declared).Elem()
		r.Set(root)
		root = r
	}
	s := m.newEncodeState(ctx, &cfg, w)
	if !cfg.WrapRootValue || !root.IsValid() {
		return s.encodeValue(root, nil)
	}
	if err := s.write(eng.BeginObject()); err != nil {
		return err
	}
	if err := s.write(eng.Key(m.rootName(root.Type()))); err != nil {
		return err
	}
	if err := s.encodeValue(root, nil); err != nil {
		return err
	}
	return s.write(eng.EndObject())
}

// SerializeOf serializes v with T as the declared type.
func SerializeOf[T any](ctx context.Context, m *Mapper, v T, cfgs ...Config) (*TokenStream, error) {
	return m.Serialize(ctx, v, reflect.TypeFor[T](), cfgs...)
}

// Deserialize reads one value of type t from src.
func (m *Mapper) Deserialize(ctx context.Context, src TokenSource, t reflect.Type, cfgs ...Config) (reflect.Value, error) {
	if t == nil {
		return reflect.Value{}, newError(CodeSchema, "/", nil, "nil target type")
	}
	dst := reflect.New(t)
	if err := m.DecodeInto(ctx, src, dst.Interface(), cfgs...); err != nil {
		return reflect.Value{}, err
	}
	return dst.Elem(), nil
}

// DeserializeAs reads one value of type T from src.
func DeserializeAs[T any](ctx context.Context, m *Mapper, src TokenSource, cfgs ...Config) (T, error) {
	var out T
	err := m.DecodeInto(ctx, src, &out, cfgs...)
	return out, err
}

// DecodeInto reads one value from src into the value dst points to. Existing
// contents of dst are updated in place where the document allows it.
// Slice elements are decoded in place; map values are not addressable, so
// objects that carry an identity or own back references must be held by
// pointer in maps.
func (m *Mapper) DecodeInto(ctx context.Context, src TokenSource, dst any, cfgs ...Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return newError(CodeSchema, "/", reflect.TypeOf(dst), "destination must be a non-nil pointer")
	}
	cfg := m.config(cfgs)
	if err := cfg.validate(); err != nil {
		return err
	}
	opt := eng.GuardOptions{MaxDepth: cfg.maxDepth()}
	if cfg.FailOnDuplicateKeys {
		opt.OnDuplicate = eng.DupError
	}
	g := eng.NewGuard(src, opt)
	s := m.newDecodeState(ctx, &cfg)
	first, err := s.read(g)
	if err != nil {
		return err
	}
	target := rv.Elem()
	if cfg.WrapRootValue {
		if err := s.unwrapRoot(g, target.Type(), first); err != nil {
			return err
		}
		if first, err = s.read(g); err != nil {
			return err
		}
	}
	if err := s.decodeInto(g, target, first, nil); err != nil {
		return err
	}
	if cfg.WrapRootValue {
		if err := s.expect(g, KindEndObject, target.Type()); err != nil {
			return err
		}
	}
	if tok, err := g.NextToken(); err == nil {
		return newError(CodeParseError, "/", nil, "trailing "+tok.Kind.String()+" after value")
	} else if !errors.Is(err, io.EOF) {
		return s.readError(err)
	}
	return nil
}

// unwrapRoot consumes the opening of a root wrapper object and checks its key.
func (s *decodeState) unwrapRoot(src TokenSource, t reflect.Type, first Token) error {
	if first.Kind != KindBeginObject {
		return s.invalid(t, first)
	}
	key, err := s.read(src)
	if err != nil {
		return err
	}
	if key.Kind != KindKey {
		return s.invalid(t, key)
	}
	if want := s.m.rootName(t); key.String != want {
		return newError(CodeInvalidType, "/", t, "root name "+strconv.Quote(key.String)+", expected "+strconv.Quote(want))
	}
	return nil
}

// rootName is the configured root name of t or its Go type name.
func (m *Mapper) rootName(t reflect.Type) string {
	base := indirect(t)
	if base.Kind() == reflect.Struct {
		if ts, err := m.SchemaFor(base); err == nil && ts.RootName != "" {
			return ts.RootName
		}
	}
	if base.Name() != "" {
		return base.Name()
	}
	return base.String()
}

// Marshal renders v as a document of format f.
func (m *Mapper) Marshal(ctx context.Context, f Format, v any, cfgs ...Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := m.Encode(ctx, f, &buf, v, cfgs...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes v as a document of format f to w.
func (m *Mapper) Encode(ctx context.Context, f Format, w io.Writer, v any, cfgs ...Config) error {
	ts, err := m.Serialize(ctx, v, nil, cfgs...)
	if err != nil {
		return err
	}
	dw := f.NewWriter(w)
	if err := ts.WriteTo(dw); err != nil {
		return wrapError(CodeCodec, "/", nil, fmt.Errorf("%s writer: %w", f.Name(), err))
	}
	if err := dw.Close(); err != nil {
		return wrapError(CodeCodec, "/", nil, fmt.Errorf("%s writer: %w", f.Name(), err))
	}
	return nil
}

// Unmarshal parses data as a document of format f into dst.
func (m *Mapper) Unmarshal(ctx context.Context, f Format, data []byte, dst any, cfgs ...Config) error {
	return m.Decode(ctx, f, bytes.NewReader(data), dst, cfgs...)
}

// Decode reads one document of format f from r into dst.
func (m *Mapper) Decode(ctx context.Context, f Format, r io.Reader, dst any, cfgs ...Config) error {
	return m.DecodeInto(ctx, f.NewReader(r), dst, cfgs...)
}

// Convert maps src onto dst, a non-nil pointer, through a token stream.
func (m *Mapper) Convert(ctx context.Context, src, dst any, cfgs ...Config) error {
	ts, err := m.Serialize(ctx, src, nil, cfgs...)
	if err != nil {
		return err
	}
	return m.DecodeInto(ctx, ts, dst, cfgs...)
}
