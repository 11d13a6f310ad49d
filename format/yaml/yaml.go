// Package yaml reads and writes YAML documents as objmap token streams using
// gopkg.in/yaml.v3 nodes.
package yaml

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	j "github.com/goccy/go-json"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/reoring/objmap"
	eng "github.com/reoring/objmap/internal/engine"
)

// Format is the YAML objmap.Format. Indent is the number of spaces per level,
// 2 when zero.
type Format struct {
	Indent int
}

func (Format) Name() string { return "yaml" }

func (Format) NewReader(r io.Reader) objmap.TokenSource { return NewReader(r) }

func (f Format) NewWriter(w io.Writer) objmap.DocumentWriter {
	indent := f.Indent
	if indent <= 0 {
		indent = 2
	}
	return &writer{out: w, indent: indent}
}

// source parses the whole document on first use and replays its tokens.
type source struct {
	r    io.Reader
	buf  *eng.Buffer
	err  error
	read bool
}

// NewReader returns a token source over the first YAML document of r.
func NewReader(r io.Reader) objmap.TokenSource { return &source{r: r} }

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
	var doc yamlv3.Node
	if err := yamlv3.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return eng.NewBuffer(), nil
		}
		return nil, err
	}
	buf := eng.NewBuffer()
	if err := emit(&doc, buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}

// maxAliasDepth bounds alias expansion.
const maxAliasDepth = 64

func emit(n *yamlv3.Node, w *eng.Buffer, aliases int) error {
	switch n.Kind {
	case yamlv3.DocumentNode:
		if len(n.Content) == 0 {
			return nil
		}
		return emit(n.Content[0], w, aliases)
	case yamlv3.AliasNode:
		if aliases >= maxAliasDepth {
			return fmt.Errorf("yaml: line %d: alias nesting too deep", n.Line)
		}
		return emit(n.Alias, w, aliases+1)
	case yamlv3.MappingNode:
		_ = w.WriteToken(eng.BeginObject())
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			if k.Kind == yamlv3.AliasNode {
				k = k.Alias
			}
			if k.Kind != yamlv3.ScalarNode {
				return fmt.Errorf("yaml: line %d: mapping keys must be scalars", k.Line)
			}
			if k.Tag == "!!merge" {
				return fmt.Errorf("yaml: line %d: merge keys are not supported", k.Line)
			}
			_ = w.WriteToken(eng.Key(k.Value))
			if err := emit(n.Content[i+1], w, aliases); err != nil {
				return err
			}
		}
		return w.WriteToken(eng.EndObject())
	case yamlv3.SequenceNode:
		_ = w.WriteToken(eng.BeginArray())
		for _, c := range n.Content {
			if err := emit(c, w, aliases); err != nil {
				return err
			}
		}
		return w.WriteToken(eng.EndArray())
	case yamlv3.ScalarNode:
		tok, err := scalar(n)
		if err != nil {
			return err
		}
		return w.WriteToken(tok)
	}
	return fmt.Errorf("yaml: line %d: unsupported node kind %d", n.Line, n.Kind)
}

func scalar(n *yamlv3.Node) (objmap.Token, error) {
	switch n.ShortTag() {
	case "!!null":
		return eng.Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return objmap.Token{}, err
		}
		return eng.Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return eng.Int(i), nil
		}
		var u uint64
		if err := n.Decode(&u); err != nil {
			return objmap.Token{}, err
		}
		return eng.Uint(u), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return objmap.Token{}, err
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return objmap.Token{}, fmt.Errorf("yaml: line %d: %s is not a finite number", n.Line, n.Value)
		}
		if j.Valid([]byte(n.Value)) {
			return eng.Number(n.Value), nil
		}
		return eng.Number(strconv.FormatFloat(f, 'g', -1, 64)), nil
	}
	return eng.String(n.Value), nil
}

// ---- objmap.DocumentWriter ----

type writer struct {
	out    io.Writer
	indent int
	tree   eng.TreeWriter
}

func (w *writer) WriteToken(t objmap.Token) error { return w.tree.WriteToken(t) }

// Close renders the assembled document.
func (w *writer) Close() error {
	root, err := w.tree.Root()
	if err != nil {
		return err
	}
	enc := yamlv3.NewEncoder(w.out)
	enc.SetIndent(w.indent)
	if err := enc.Encode(toNode(root)); err != nil {
		return err
	}
	return enc.Close()
}

func toNode(n *eng.Node) *yamlv3.Node {
	switch n.Kind {
	case objmap.KindBeginObject:
		out := &yamlv3.Node{Kind: yamlv3.MappingNode, Tag: "!!map"}
		for i, c := range n.Children {
			out.Content = append(out.Content,
				&yamlv3.Node{Kind: yamlv3.ScalarNode, Tag: "!!str", Value: n.Keys[i]},
				toNode(c))
		}
		return out
	case objmap.KindBeginArray:
		out := &yamlv3.Node{Kind: yamlv3.SequenceNode, Tag: "!!seq"}
		for _, c := range n.Children {
			out.Content = append(out.Content, toNode(c))
		}
		return out
	}
	t := n.Scalar
	switch t.Kind {
	case objmap.KindString:
		return &yamlv3.Node{Kind: yamlv3.ScalarNode, Tag: "!!str", Value: t.String}
	case objmap.KindNumber:
		tag := "!!int"
		if strings.ContainsAny(t.Number, ".eE") {
			tag = "!!float"
		}
		return &yamlv3.Node{Kind: yamlv3.ScalarNode, Tag: tag, Value: t.Number}
	case objmap.KindBool:
		return &yamlv3.Node{Kind: yamlv3.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(t.Bool)}
	}
	return &yamlv3.Node{Kind: yamlv3.ScalarNode, Tag: "!!null", Value: "null"}
}
