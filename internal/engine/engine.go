package engine

import (
	"errors"
	"io"
	"strconv"

	j "github.com/goccy/go-json"
)

// Kind represents token kinds from a generic source.
type Kind int

const (
	KindBeginObject Kind = iota
	KindEndObject
	KindBeginArray
	KindEndArray
	KindKey
	KindString
	KindNumber
	KindBool
	KindNull
)

func (k Kind) String() string {
	switch k {
	case KindBeginObject:
		return "begin-object"
	case KindEndObject:
		return "end-object"
	case KindBeginArray:
		return "begin-array"
	case KindEndArray:
		return "end-array"
	case KindKey:
		return "key"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindNull:
		return "null"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// IsScalar reports whether k is a single-token value.
func (k Kind) IsScalar() bool {
	switch k {
	case KindString, KindNumber, KindBool, KindNull:
		return true
	}
	return false
}

// Token represents a streaming token with approximate input offset.
type Token struct {
	Kind   Kind
	String string
	Number string
	Bool   bool
	Offset int64
}

// Text returns the scalar payload of the token as text.
func (t Token) Text() string {
	switch t.Kind {
	case KindString, KindKey:
		return t.String
	case KindNumber:
		return t.Number
	case KindBool:
		return strconv.FormatBool(t.Bool)
	case KindNull:
		return "null"
	}
	return ""
}

// TokenSource is a minimal interface required by the engine.
type TokenSource interface {
	NextToken() (Token, error)
	Location() int64
}

// TokenWriter receives tokens in document order.
type TokenWriter interface {
	WriteToken(Token) error
}

// DocumentWriter is a TokenWriter that renders a complete document on Close.
type DocumentWriter interface {
	TokenWriter
	Close() error
}

// ErrUnexpectedToken is returned when a token does not fit the structure
// being read.
var ErrUnexpectedToken = errors.New("engine: unexpected token")

func BeginObject() Token       { return Token{Kind: KindBeginObject, Offset: -1} }
func EndObject() Token         { return Token{Kind: KindEndObject, Offset: -1} }
func BeginArray() Token        { return Token{Kind: KindBeginArray, Offset: -1} }
func EndArray() Token          { return Token{Kind: KindEndArray, Offset: -1} }
func Key(s string) Token       { return Token{Kind: KindKey, String: s, Offset: -1} }
func String(s string) Token    { return Token{Kind: KindString, String: s, Offset: -1} }
func Number(text string) Token { return Token{Kind: KindNumber, Number: text, Offset: -1} }
func Bool(b bool) Token        { return Token{Kind: KindBool, Bool: b, Offset: -1} }
func Null() Token              { return Token{Kind: KindNull, Offset: -1} }
func Int(i int64) Token        { return Number(strconv.FormatInt(i, 10)) }
func Uint(u uint64) Token      { return Number(strconv.FormatUint(u, 10)) }

// DecodeAny builds an "any" value from the streaming token source. Numbers
// become float64, or go-json Numbers when useNumber is set.
func DecodeAny(src TokenSource, useNumber bool) (any, error) {
	tok, err := src.NextToken()
	if err != nil {
		return nil, err
	}
	return DecodeAnyFrom(src, tok, useNumber)
}

// DecodeAnyFrom is DecodeAny for a value whose first token was already read.
func DecodeAnyFrom(src TokenSource, tok Token, useNumber bool) (any, error) {
	conv := func(s string) (any, error) {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	if useNumber {
		conv = func(s string) (any, error) { return j.Number(s), nil }
	}
	return decodeValueWithConv(src, tok, conv)
}

type numberConv func(string) (any, error)

func decodeValueWithConv(src TokenSource, tok Token, conv numberConv) (any, error) {
	switch tok.Kind {
	case KindBeginObject:
		return decodeObjectWithConv(src, conv)
	case KindBeginArray:
		return decodeArrayWithConv(src, conv)
	case KindString:
		return tok.String, nil
	case KindNumber:
		return conv(tok.Number)
	case KindBool:
		return tok.Bool, nil
	case KindNull:
		return nil, nil
	default:
		return nil, ErrUnexpectedToken
	}
}

func decodeObjectWithConv(src TokenSource, conv numberConv) (any, error) {
	m := make(map[string]any)
	for {
		tok, err := src.NextToken()
		if err != nil {
			return nil, eofIsUnexpected(err)
		}
		if tok.Kind == KindEndObject {
			return m, nil
		}
		if tok.Kind != KindKey {
			return nil, ErrUnexpectedToken
		}
		vt, err := src.NextToken()
		if err != nil {
			return nil, eofIsUnexpected(err)
		}
		v, err := decodeValueWithConv(src, vt, conv)
		if err != nil {
			return nil, err
		}
		m[tok.String] = v
	}
}

func decodeArrayWithConv(src TokenSource, conv numberConv) (any, error) {
	arr := []any{}
	for {
		tok, err := src.NextToken()
		if err != nil {
			return nil, eofIsUnexpected(err)
		}
		if tok.Kind == KindEndArray {
			return arr, nil
		}
		v, err := decodeValueWithConv(src, tok, conv)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
}

// SkipValue consumes the rest of the value that starts with first.
func SkipValue(src TokenSource, first Token) error {
	return CopyValue(src, first, nil)
}

// CopyValue consumes the value that starts with first and forwards every
// token of it, first included, to w. A nil w discards the tokens.
func CopyValue(src TokenSource, first Token, w TokenWriter) error {
	emit := func(t Token) error {
		if w == nil {
			return nil
		}
		return w.WriteToken(t)
	}
	if err := emit(first); err != nil {
		return err
	}
	switch first.Kind {
	case KindBeginObject, KindBeginArray:
	case KindEndObject, KindEndArray, KindKey:
		return ErrUnexpectedToken
	default:
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err := src.NextToken()
		if err != nil {
			return eofIsUnexpected(err)
		}
		switch tok.Kind {
		case KindBeginObject, KindBeginArray:
			depth++
		case KindEndObject, KindEndArray:
			depth--
		}
		if err := emit(tok); err != nil {
			return err
		}
	}
	return nil
}

func eofIsUnexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
