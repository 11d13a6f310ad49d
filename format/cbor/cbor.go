// Package cbor reads and writes CBOR documents as objmap token streams using
// fxamacker/cbor.
package cbor

import (
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"math/big"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	_cbor "github.com/fxamacker/cbor/v2"

	"github.com/reoring/objmap"
	eng "github.com/reoring/objmap/internal/engine"
)

// Format is the CBOR objmap.Format. Maps are written with sorted keys
// (core deterministic encoding); byte strings are read as base64 text.
type Format struct{}

func (Format) Name() string { return "cbor" }

func (Format) NewReader(r io.Reader) objmap.TokenSource { return &source{r: r} }

func (Format) NewWriter(w io.Writer) objmap.DocumentWriter { return &writer{out: w} }

var (
	modesOnce sync.Once
	decMode   _cbor.DecMode
	encMode   _cbor.EncMode
	modesErr  error
)

func modes() (_cbor.DecMode, _cbor.EncMode, error) {
	modesOnce.Do(func() {
		decOptions := _cbor.DecOptions{
			DefaultMapType:  reflect.TypeOf(map[string]any(nil)),
			MaxNestedLevels: 256,
		}
		if decMode, modesErr = decOptions.DecMode(); modesErr != nil {
			return
		}
		encOptions := _cbor.EncOptions{
			// Make sure that maps have ordered keys
			Sort:          _cbor.SortCoreDeterministic,
			ShortestFloat: _cbor.ShortestFloat16,
		}
		encMode, modesErr = encOptions.EncMode()
	})
	return decMode, encMode, modesErr
}

// source decodes the whole data item on first use and replays its tokens.
type source struct {
	r    io.Reader
	buf  *eng.Buffer
	err  error
	read bool
}

func (s *source) NextToken() (objmap.Token, error) {
	if !s.read {
		s.read = true
		s.buf, s.err = tokenize(s.r)
	}
	if s.err != nil {
		return objmap.Token{}, s.err
	}
	return s.buf.NextToken()
}

func (s *source) Location() int64 {
	if s.buf == nil {
		return 0
	}
	return s.buf.Location()
}

func tokenize(r io.Reader) (*eng.Buffer, error) {
	dm, _, err := modes()
	if err != nil {
		return nil, err
	}
	var v any
	if err := dm.NewDecoder(r).Decode(&v); err != nil {
		if err == io.EOF {
			return eng.NewBuffer(), nil
		}
		return nil, err
	}
	buf := eng.NewBuffer()
	if err := emit(v, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func emit(v any, w *eng.Buffer) error {
	switch x := v.(type) {
	case nil:
		return w.WriteToken(eng.Null())
	case bool:
		return w.WriteToken(eng.Bool(x))
	case uint64:
		return w.WriteToken(eng.Uint(x))
	case int64:
		return w.WriteToken(eng.Int(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("cbor: %v is not a finite number", x)
		}
		return w.WriteToken(eng.Number(strconv.FormatFloat(x, 'g', -1, 64)))
	case big.Int:
		return w.WriteToken(eng.Number(x.String()))
	case string:
		return w.WriteToken(eng.String(x))
	case []byte:
		return w.WriteToken(eng.String(base64.StdEncoding.EncodeToString(x)))
	case time.Time:
		return w.WriteToken(eng.String(x.Format(time.RFC3339Nano)))
	case _cbor.Tag:
		return emit(x.Content, w)
	case []any:
		_ = w.WriteToken(eng.BeginArray())
		for _, e := range x {
			if err := emit(e, w); err != nil {
				return err
			}
		}
		return w.WriteToken(eng.EndArray())
	case map[string]any:
		_ = w.WriteToken(eng.BeginObject())
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			_ = w.WriteToken(eng.Key(k))
			if err := emit(x[k], w); err != nil {
				return err
			}
		}
		return w.WriteToken(eng.EndObject())
	}
	return fmt.Errorf("cbor: unsupported data item %T", v)
}

// ---- objmap.DocumentWriter ----

type writer struct {
	out  io.Writer
	tree eng.TreeWriter
}

func (w *writer) WriteToken(t objmap.Token) error { return w.tree.WriteToken(t) }

// Close encodes the assembled document as one data item.
func (w *writer) Close() error {
	root, err := w.tree.Root()
	if err != nil {
		return err
	}
	_, em, err := modes()
	if err != nil {
		return err
	}
	v, err := toValue(root)
	if err != nil {
		return err
	}
	return em.NewEncoder(w.out).Encode(v)
}

func toValue(n *eng.Node) (any, error) {
	switch n.Kind {
	case objmap.KindBeginObject:
		m := make(map[string]any, len(n.Children))
		for i, c := range n.Children {
			v, err := toValue(c)
			if err != nil {
				return nil, err
			}
			m[n.Keys[i]] = v
		}
		return m, nil
	case objmap.KindBeginArray:
		out := make([]any, 0, len(n.Children))
		for _, c := range n.Children {
			v, err := toValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	t := n.Scalar
	switch t.Kind {
	case objmap.KindString:
		return t.String, nil
	case objmap.KindBool:
		return t.Bool, nil
	case objmap.KindNumber:
		return number(t.Number)
	}
	return nil, nil
}

// number keeps integers integral and everything else a float.
func number(text string) (any, error) {
	if !strings.ContainsAny(text, ".eE") {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return i, nil
		}
		if u, err := strconv.ParseUint(text, 10, 64); err == nil {
			return u, nil
		}
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("cbor: invalid number %q", text)
	}
	return f, nil
}
