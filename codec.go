package objmap

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// ValueEncoder writes one value. It has full control of the tokens of the
// subtree and must write exactly one value.
type ValueEncoder interface {
	EncodeValue(e *Encoder, v reflect.Value) error
}

// ValueDecoder reads one value of type t. The Decoder is bounded to the
// subtree of that value; unread tokens of it are skipped afterwards.
type ValueDecoder interface {
	DecodeValue(d *Decoder, t reflect.Type) (reflect.Value, error)
}

// EncoderFunc adapts a function to ValueEncoder.
type EncoderFunc func(e *Encoder, v reflect.Value) error

func (f EncoderFunc) EncodeValue(e *Encoder, v reflect.Value) error { return f(e, v) }

// DecoderFunc adapts a function to ValueDecoder.
type DecoderFunc func(d *Decoder, t reflect.Type) (reflect.Value, error)

func (f DecoderFunc) DecodeValue(d *Decoder, t reflect.Type) (reflect.Value, error) { return f(d, t) }

// EncodeWith adapts a typed function to ValueEncoder.
func EncodeWith[T any](fn func(e *Encoder, v T) error) ValueEncoder {
	return EncoderFunc(func(e *Encoder, v reflect.Value) error {
		tv, ok := v.Interface().(T)
		if !ok {
			return fmt.Errorf("encoder for %s got %s", reflect.TypeFor[T](), v.Type())
		}
		return fn(e, tv)
	})
}

// DecodeWith adapts a typed function to ValueDecoder.
func DecodeWith[T any](fn func(d *Decoder) (T, error)) ValueDecoder {
	return DecoderFunc(func(d *Decoder, _ reflect.Type) (reflect.Value, error) {
		v, err := fn(d)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(&v).Elem(), nil
	})
}

// CodecPair bundles an encoder and a decoder. Either side may be nil when
// the codec is registered for one direction only.
type CodecPair struct {
	Encoder ValueEncoder
	Decoder ValueDecoder
}

// Codec builds a CodecPair from typed functions.
func Codec[T any](enc func(e *Encoder, v T) error, dec func(d *Decoder) (T, error)) CodecPair {
	var cp CodecPair
	if enc != nil {
		cp.Encoder = EncodeWith(enc)
	}
	if dec != nil {
		cp.Decoder = DecodeWith(dec)
	}
	return cp
}

func (c CodecPair) EncodeValue(e *Encoder, v reflect.Value) error {
	if c.Encoder == nil {
		return errors.New("codec pair has no encoder")
	}
	return c.Encoder.EncodeValue(e, v)
}

func (c CodecPair) DecodeValue(d *Decoder, t reflect.Type) (reflect.Value, error) {
	if c.Decoder == nil {
		return reflect.Value{}, errors.New("codec pair has no decoder")
	}
	return c.Decoder.DecodeValue(d, t)
}

// codecSides splits codec into its encoder and decoder halves.
func codecSides(codec any) (ValueEncoder, ValueDecoder) {
	if cp, ok := codec.(CodecPair); ok {
		return cp.Encoder, cp.Decoder
	}
	e, _ := codec.(ValueEncoder)
	d, _ := codec.(ValueDecoder)
	return e, d
}

// Direction selects the traversal direction a codec serves.
type Direction int

const (
	DirectionEncode Direction = 1 << iota
	DirectionDecode
	DirectionBoth = DirectionEncode | DirectionDecode
)

type matcherKind int

const (
	// ordered by specificity, most specific first
	matchExact matcherKind = iota
	matchAnnotated
	matchAssignable
)

// Matcher selects the values a registered codec applies to.
type Matcher struct {
	kind   matcherKind
	t      reflect.Type
	marker string
}

// ExactType matches values whose type is exactly t.
func ExactType(t reflect.Type) Matcher { return Matcher{kind: matchExact, t: t} }

// Exact is ExactType for T.
func Exact[T any]() Matcher { return ExactType(reflect.TypeFor[T]()) }

// AssignableTo matches values whose type is assignable to t (for interfaces:
// implements t).
func AssignableTo(t reflect.Type) Matcher { return Matcher{kind: matchAssignable, t: t} }

// Assignable is AssignableTo for T.
func Assignable[T any]() Matcher { return AssignableTo(reflect.TypeFor[T]()) }

// Annotated matches values of properties or types carrying marker.
func Annotated(marker string) Matcher { return Matcher{kind: matchAnnotated, marker: marker} }

func (m Matcher) String() string {
	switch m.kind {
	case matchExact:
		return "exact(" + m.t.String() + ")"
	case matchAssignable:
		return "assignable(" + m.t.String() + ")"
	default:
		return "annotated(" + m.marker + ")"
	}
}

func (m Matcher) matches(t reflect.Type, marked func(string) bool) bool {
	switch m.kind {
	case matchExact:
		return t == m.t
	case matchAssignable:
		return t.AssignableTo(m.t)
	default:
		return marked(m.marker)
	}
}

type codecEntry struct {
	matcher Matcher
	dir     Direction
	enc     ValueEncoder
	dec     ValueDecoder
}

// registry holds module-level codecs. Entries are frozen at Build time.
type registry struct {
	entries []codecEntry
	cache   sync.Map // resolveKey -> *codecEntry (nil for no match)
}

type resolveKey struct {
	t       reflect.Type
	dir     Direction
	markers string
}

// resolve picks the best module entry: exact > annotated > assignable, and
// the later registration within one rank.
func (r *registry) resolve(t reflect.Type, dir Direction, markers []string) *codecEntry {
	if len(r.entries) == 0 {
		return nil
	}
	key := resolveKey{t: t, dir: dir, markers: strings.Join(markers, "|")}
	if v, ok := r.cache.Load(key); ok {
		return v.(*codecEntry)
	}
	marked := func(m string) bool {
		for _, x := range markers {
			if x == m {
				return true
			}
		}
		return false
	}
	var best *codecEntry
	for i := range r.entries {
		e := &r.entries[i]
		if e.dir&dir == 0 || !e.matcher.matches(t, marked) {
			continue
		}
		if best == nil || e.matcher.kind <= best.matcher.kind {
			best = e
		}
	}
	r.cache.Store(key, best)
	return best
}

// encoderFor resolves the encoder of a value of type t written for p (nil
// outside a property): property > type > module > built-in. A nil result
// means the reflective default.
func (m *Mapper) encoderFor(t reflect.Type, p *PropertySchema) ValueEncoder {
	if p != nil && p.encoder != nil {
		return p.encoder
	}
	if enc, _ := m.typeCodecs(t); enc != nil {
		return enc
	}
	if e := m.registry.resolve(t, DirectionEncode, m.markersFor(t, p)); e != nil {
		return e.enc
	}
	return builtinEncoder(t)
}

// decoderFor mirrors encoderFor for reads.
func (m *Mapper) decoderFor(t reflect.Type, p *PropertySchema) ValueDecoder {
	if p != nil && p.decoder != nil {
		return p.decoder
	}
	if _, dec := m.typeCodecs(t); dec != nil {
		return dec
	}
	if e := m.registry.resolve(t, DirectionDecode, m.markersFor(t, p)); e != nil {
		return e.dec
	}
	return builtinDecoder(t)
}

// typeCodecs returns the type-level codecs of t, falling back to its mix-in's.
func (m *Mapper) typeCodecs(t reflect.Type) (enc ValueEncoder, dec ValueDecoder) {
	for _, c := range []*TypeConfig{m.types[t], m.types[m.mixins[t]]} {
		if c == nil {
			continue
		}
		if enc == nil {
			enc = c.encoder
		}
		if dec == nil {
			dec = c.decoder
		}
	}
	return enc, dec
}

func (m *Mapper) markersFor(t reflect.Type, p *PropertySchema) []string {
	var out []string
	if p != nil {
		out = append(out, p.Markers...)
	}
	if c, ok := m.types[t]; ok {
		out = append(out, c.markers...)
	}
	if mix, ok := m.mixins[t]; ok {
		if c, ok := m.types[mix]; ok {
			out = append(out, c.markers...)
		}
	}
	return out
}
