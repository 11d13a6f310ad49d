package objmap

import (
	"io"

	eng "github.com/reoring/objmap/internal/engine"
)

// Token model shared with format packages.
type (
	Kind           = eng.Kind
	Token          = eng.Token
	TokenSource    = eng.TokenSource
	TokenWriter    = eng.TokenWriter
	DocumentWriter = eng.DocumentWriter
)

const (
	KindBeginObject = eng.KindBeginObject
	KindEndObject   = eng.KindEndObject
	KindBeginArray  = eng.KindBeginArray
	KindEndArray    = eng.KindEndArray
	KindKey         = eng.KindKey
	KindString      = eng.KindString
	KindNumber      = eng.KindNumber
	KindBool        = eng.KindBool
	KindNull        = eng.KindNull
)

// TokenStream is the in-memory token sequence produced by Serialize. It can be
// read back as a TokenSource or replayed into any TokenWriter.
type TokenStream = eng.Buffer

// NewTokenStream returns a stream holding toks.
func NewTokenStream(toks ...Token) *TokenStream { return eng.NewBuffer(toks...) }

// Format pairs a tokenizer with a document writer for one concrete encoding.
type Format interface {
	Name() string
	NewReader(r io.Reader) TokenSource
	NewWriter(w io.Writer) DocumentWriter
}
