package objmap

import (
	"encoding"
	"encoding/base64"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	j "github.com/goccy/go-json"
)

var (
	timeType            = reflect.TypeFor[time.Time]()
	durationType        = reflect.TypeFor[time.Duration]()
	numberType          = reflect.TypeFor[j.Number]()
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 && !t.Implements(textMarshalerType)
}

func builtinEncoder(t reflect.Type) ValueEncoder {
	switch {
	case t == timeType:
		return timeCodec{}
	case t == durationType:
		return durationCodec{}
	case t == numberType:
		return numberCodec{}
	case isBytes(t):
		return bytesCodec{}
	case t.Kind() != reflect.Interface && t.Implements(textMarshalerType):
		return textCodec{}
	case t.Kind() != reflect.Interface && t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(textMarshalerType):
		return textCodec{}
	}
	return nil
}

func builtinDecoder(t reflect.Type) ValueDecoder {
	switch {
	case t == timeType:
		return timeCodec{}
	case t == durationType:
		return durationCodec{}
	case t == numberType:
		return numberCodec{}
	case isBytes(t):
		return bytesCodec{}
	case t.Kind() != reflect.Interface && t.Kind() != reflect.Pointer && reflect.PointerTo(t).Implements(textUnmarshalerType):
		return textCodec{}
	}
	return nil
}

// timeCodec writes time.Time as RFC3339 text with nanoseconds.
type timeCodec struct{}

func (timeCodec) EncodeValue(e *Encoder, v reflect.Value) error {
	return e.WriteString(v.Interface().(time.Time).Format(time.RFC3339Nano))
}

func (timeCodec) DecodeValue(d *Decoder, t reflect.Type) (reflect.Value, error) {
	s, err := d.ReadString()
	if err != nil {
		return reflect.Value{}, err
	}
	tm, err := ParseRFC3339(s)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(tm), nil
}

// ParseRFC3339 accepts RFC3339 with or without fractional seconds.
func ParseRFC3339(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t2, nil
		}
		return time.Time{}, err
	}
	return t, nil
}

// durationCodec writes time.Duration as Go duration text ("1h30m0s"). Numbers
// are accepted on read as nanoseconds.
type durationCodec struct{}

func (durationCodec) EncodeValue(e *Encoder, v reflect.Value) error {
	return e.WriteString(time.Duration(v.Int()).String())
}

func (durationCodec) DecodeValue(d *Decoder, t reflect.Type) (reflect.Value, error) {
	tok, err := d.NextToken()
	if err != nil {
		return reflect.Value{}, err
	}
	var dur time.Duration
	switch tok.Kind {
	case KindString:
		dur, err = time.ParseDuration(tok.String)
	case KindNumber:
		var n int64
		n, err = strconv.ParseInt(tok.Number, 10, 64)
		dur = time.Duration(n)
	default:
		return reflect.Value{}, d.unexpected(tok, "duration")
	}
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(dur).Convert(t), nil
}

// numberCodec passes json.Number text through unchanged.
type numberCodec struct{}

func (numberCodec) EncodeValue(e *Encoder, v reflect.Value) error {
	s := v.String()
	if s == "" {
		s = "0"
	}
	return e.WriteNumber(s)
}

func (numberCodec) DecodeValue(d *Decoder, t reflect.Type) (reflect.Value, error) {
	tok, err := d.NextToken()
	if err != nil {
		return reflect.Value{}, err
	}
	switch tok.Kind {
	case KindNumber:
		return reflect.ValueOf(j.Number(tok.Number)), nil
	case KindString:
		if _, err := strconv.ParseFloat(tok.String, 64); err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(j.Number(tok.String)), nil
	}
	return reflect.Value{}, d.unexpected(tok, "number")
}

// bytesCodec writes byte slices as standard base64 text.
type bytesCodec struct{}

func (bytesCodec) EncodeValue(e *Encoder, v reflect.Value) error {
	return e.WriteString(base64.StdEncoding.EncodeToString(v.Bytes()))
}

func (bytesCodec) DecodeValue(d *Decoder, t reflect.Type) (reflect.Value, error) {
	s, err := d.ReadString()
	if err != nil {
		return reflect.Value{}, err
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(b).Convert(t), nil
}

// textCodec bridges encoding.TextMarshaler and encoding.TextUnmarshaler.
type textCodec struct{}

func (textCodec) EncodeValue(e *Encoder, v reflect.Value) error {
	if !v.Type().Implements(textMarshalerType) {
		v = addressable(v).Addr()
	}
	b, err := v.Interface().(encoding.TextMarshaler).MarshalText()
	if err != nil {
		return err
	}
	return e.WriteString(string(b))
}

func (textCodec) DecodeValue(d *Decoder, t reflect.Type) (reflect.Value, error) {
	tok, err := d.NextToken()
	if err != nil {
		return reflect.Value{}, err
	}
	if tok.Kind != KindString && tok.Kind != KindNumber && tok.Kind != KindBool {
		return reflect.Value{}, d.unexpected(tok, "text")
	}
	p := reflect.New(t)
	if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(tok.Text())); err != nil {
		return reflect.Value{}, err
	}
	return p.Elem(), nil
}

// formatFloat renders f the way documents expect: plain decimal notation
// within [1e-6, 1e21), exponent notation outside, and a trailing ".0" on
// integral values.
func formatFloat(f float64, bits int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("unsupported float value %v", f)
	}
	abs := math.Abs(f)
	fmtByte := byte('f')
	if abs != 0 {
		if bits == 64 && (abs < 1e-6 || abs >= 1e21) || bits == 32 && (float32(abs) < 1e-6 || float32(abs) >= 1e21) {
			fmtByte = 'e'
		}
	}
	s := strconv.FormatFloat(f, fmtByte, -1, bits)
	if fmtByte == 'e' {
		// clean up e-09 to e-9
		n := len(s)
		if n >= 4 && s[n-4] == 'e' && s[n-3] == '-' && s[n-2] == '0' {
			s = s[:n-2] + s[n-1:]
		}
		return s, nil
	}
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s, nil
}
