package engine

import "io"

// Buffer is an in-memory token stream. Tokens written to it can be read back
// in order through NextToken; reading does not discard them.
type Buffer struct {
	toks []Token
	pos  int
}

// NewBuffer returns a Buffer holding toks.
func NewBuffer(toks ...Token) *Buffer {
	return &Buffer{toks: toks}
}

func (b *Buffer) WriteToken(t Token) error {
	b.toks = append(b.toks, t)
	return nil
}

func (b *Buffer) NextToken() (Token, error) {
	if b.pos >= len(b.toks) {
		return Token{}, io.EOF
	}
	t := b.toks[b.pos]
	b.pos++
	return t, nil
}

// Location reports the read position as a token index.
func (b *Buffer) Location() int64 { return int64(b.pos) }

// Tokens returns the buffered tokens. The slice must not be modified.
func (b *Buffer) Tokens() []Token { return b.toks }

// Elements counts the values directly inside the array or object the buffer
// starts with.
func (b *Buffer) Elements() int {
	n, depth := 0, 0
	for _, t := range b.toks {
		switch t.Kind {
		case KindBeginObject, KindBeginArray:
			if depth == 1 {
				n++
			}
			depth++
		case KindEndObject, KindEndArray:
			depth--
		case KindKey:
		default:
			if depth == 1 {
				n++
			}
		}
	}
	return n
}

// Len returns the number of buffered tokens.
func (b *Buffer) Len() int { return len(b.toks) }

// Rewind moves the read position back to the first token.
func (b *Buffer) Rewind() { b.pos = 0 }

// Reset drops all tokens.
func (b *Buffer) Reset() {
	b.toks = b.toks[:0]
	b.pos = 0
}

// WriteTo replays every buffered token into w. It does not close w.
func (b *Buffer) WriteTo(w TokenWriter) error {
	for _, t := range b.toks {
		if err := w.WriteToken(t); err != nil {
			return err
		}
	}
	return nil
}

// Pipe copies every token of src into w until src reports io.EOF.
func Pipe(src TokenSource, w TokenWriter) error {
	for {
		t, err := src.NextToken()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if err := w.WriteToken(t); err != nil {
			return err
		}
	}
}
