// Package json reads and writes JSON documents as objmap token streams using
// goccy/go-json.
package json

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"

	j "github.com/goccy/go-json"

	"github.com/reoring/objmap"
)

// Format is the JSON objmap.Format. A non-empty Indent pretty-prints output.
type Format struct {
	Indent string
}

func (Format) Name() string { return "json" }

func (Format) NewReader(r io.Reader) objmap.TokenSource { return NewReader(r) }

func (f Format) NewWriter(w io.Writer) objmap.DocumentWriter { return NewWriter(w, f.Indent) }

// ---- objmap.TokenSource implementation using go-json Decoder ----

type containerKind int

const (
	kindObject containerKind = iota
	kindArray
)

type frame struct {
	kind         containerKind
	expectingKey bool
}

type source struct {
	dec   *j.Decoder
	stack []frame
}

// NewReader wraps an io.Reader into a token source. Numbers keep their
// literal text.
func NewReader(r io.Reader) objmap.TokenSource {
	dec := j.NewDecoder(r)
	dec.UseNumber()
	return &source{dec: dec}
}

// NewBytes wraps a byte slice into a token source.
func NewBytes(b []byte) objmap.TokenSource { return NewReader(bytes.NewReader(b)) }

// valueDone marks the pending object member as complete.
func (s *source) valueDone() {
	if n := len(s.stack); n > 0 {
		top := &s.stack[n-1]
		if top.kind == kindObject && !top.expectingKey {
			top.expectingKey = true
		}
	}
}

func (s *source) NextToken() (objmap.Token, error) {
	tok, err := s.dec.Token()
	if err != nil {
		return objmap.Token{}, err
	}
	switch v := tok.(type) {
	case j.Delim:
		switch v {
		case '{':
			s.stack = append(s.stack, frame{kind: kindObject, expectingKey: true})
			return objmap.Token{Kind: objmap.KindBeginObject, Offset: -1}, nil
		case '[':
			s.stack = append(s.stack, frame{kind: kindArray})
			return objmap.Token{Kind: objmap.KindBeginArray, Offset: -1}, nil
		case '}', ']':
			if n := len(s.stack); n > 0 {
				s.stack = s.stack[:n-1]
			}
			s.valueDone()
			if v == '}' {
				return objmap.Token{Kind: objmap.KindEndObject, Offset: -1}, nil
			}
			return objmap.Token{Kind: objmap.KindEndArray, Offset: -1}, nil
		}
	case string:
		if n := len(s.stack); n > 0 {
			top := &s.stack[n-1]
			if top.kind == kindObject && top.expectingKey {
				top.expectingKey = false
				return objmap.Token{Kind: objmap.KindKey, String: v, Offset: -1}, nil
			}
		}
		s.valueDone()
		return objmap.Token{Kind: objmap.KindString, String: v, Offset: -1}, nil
	case bool:
		s.valueDone()
		return objmap.Token{Kind: objmap.KindBool, Bool: v, Offset: -1}, nil
	case j.Number:
		s.valueDone()
		return objmap.Token{Kind: objmap.KindNumber, Number: string(v), Offset: -1}, nil
	case float64:
		s.valueDone()
		return objmap.Token{Kind: objmap.KindNumber, Number: strconv.FormatFloat(v, 'g', -1, 64), Offset: -1}, nil
	}
	s.valueDone()
	return objmap.Token{Kind: objmap.KindNull, Offset: -1}, nil
}

func (s *source) Location() int64 { return -1 }

// ---- objmap.DocumentWriter ----

var errStructure = errors.New("json: token does not fit the document structure")

type wframe struct {
	kind  containerKind
	count int
	keyed bool
}

type writer struct {
	out    io.Writer
	buf    bytes.Buffer
	indent string
	stack  []wframe
	done   bool
}

// NewWriter returns a DocumentWriter that renders the document into w on
// Close. A non-empty indent pretty-prints with that unit.
func NewWriter(w io.Writer, indent string) objmap.DocumentWriter {
	return &writer{out: w, indent: indent}
}

// beginValue writes the separator a value needs at the current position.
func (w *writer) beginValue() error {
	n := len(w.stack)
	if n == 0 {
		if w.done {
			return errStructure
		}
		return nil
	}
	top := &w.stack[n-1]
	switch top.kind {
	case kindObject:
		if !top.keyed {
			return errStructure
		}
		top.keyed = false
	case kindArray:
		if top.count > 0 {
			w.buf.WriteByte(',')
		}
		top.count++
	}
	return nil
}

func (w *writer) endValue() {
	if len(w.stack) == 0 {
		w.done = true
	}
}

func (w *writer) writeString(s string) error {
	b, err := j.MarshalNoEscape(s)
	if err != nil {
		return err
	}
	w.buf.Write(b)
	return nil
}

func (w *writer) WriteToken(t objmap.Token) error {
	switch t.Kind {
	case objmap.KindKey:
		n := len(w.stack)
		if n == 0 || w.stack[n-1].kind != kindObject || w.stack[n-1].keyed {
			return errStructure
		}
		top := &w.stack[n-1]
		if top.count > 0 {
			w.buf.WriteByte(',')
		}
		top.count++
		top.keyed = true
		if err := w.writeString(t.String); err != nil {
			return err
		}
		w.buf.WriteByte(':')
		return nil
	case objmap.KindEndObject, objmap.KindEndArray:
		want := kindObject
		if t.Kind == objmap.KindEndArray {
			want = kindArray
		}
		n := len(w.stack)
		if n == 0 || w.stack[n-1].kind != want || w.stack[n-1].keyed {
			return errStructure
		}
		w.stack = w.stack[:n-1]
		if want == kindObject {
			w.buf.WriteByte('}')
		} else {
			w.buf.WriteByte(']')
		}
		w.endValue()
		return nil
	}
	if err := w.beginValue(); err != nil {
		return err
	}
	switch t.Kind {
	case objmap.KindBeginObject:
		w.stack = append(w.stack, wframe{kind: kindObject})
		w.buf.WriteByte('{')
		return nil
	case objmap.KindBeginArray:
		w.stack = append(w.stack, wframe{kind: kindArray})
		w.buf.WriteByte('[')
		return nil
	case objmap.KindString:
		if err := w.writeString(t.String); err != nil {
			return err
		}
	case objmap.KindNumber:
		if !j.Valid([]byte(t.Number)) {
			return errors.New("json: invalid number " + strconv.Quote(t.Number))
		}
		w.buf.WriteString(t.Number)
	case objmap.KindBool:
		w.buf.WriteString(strconv.FormatBool(t.Bool))
	default:
		w.buf.WriteString("null")
	}
	w.endValue()
	return nil
}

// Close checks the document is complete and writes it out.
func (w *writer) Close() error {
	if !w.done || len(w.stack) > 0 {
		return errors.New("json: incomplete document")
	}
	bw := bufio.NewWriter(w.out)
	if w.indent == "" {
		if _, err := bw.Write(w.buf.Bytes()); err != nil {
			return err
		}
		return bw.Flush()
	}
	var pretty bytes.Buffer
	if err := j.Indent(&pretty, w.buf.Bytes(), "", w.indent); err != nil {
		return err
	}
	if _, err := pretty.WriteTo(bw); err != nil {
		return err
	}
	return bw.Flush()
}
