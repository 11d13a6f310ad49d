package engine

import (
	"errors"
	"io"
	"reflect"
	"testing"

	j "github.com/goccy/go-json"
)

func sample() []Token {
	return []Token{
		BeginObject(),
		Key("a"), Int(1),
		Key("b"), BeginArray(), String("x"), Bool(true), Null(), EndArray(),
		Key("c"), BeginObject(), Key("d"), Number("2.5"), EndObject(),
		EndObject(),
	}
}

func TestDecodeAny(t *testing.T) {
	v, err := DecodeAny(NewBuffer(sample()...), false)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	want := map[string]any{
		"a": float64(1),
		"b": []any{"x", true, nil},
		"c": map[string]any{"d": 2.5},
	}
	if !reflect.DeepEqual(v, want) {
		t.Fatalf("got %#v", v)
	}
}

func TestDecodeAny_UseNumber(t *testing.T) {
	v, err := DecodeAny(NewBuffer(Number("12345678901234567890")), true)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if n, ok := v.(j.Number); !ok || n.String() != "12345678901234567890" {
		t.Fatalf("got %#v", v)
	}
}

func TestDecodeAny_Truncated(t *testing.T) {
	_, err := DecodeAny(NewBuffer(BeginObject(), Key("a")), false)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected unexpected EOF, got %v", err)
	}
}

func TestCopyValue(t *testing.T) {
	src := NewBuffer(sample()...)
	first, _ := src.NextToken()
	var out Buffer
	if err := CopyValue(src, first, &out); err != nil {
		t.Fatalf("err: %v", err)
	}
	if out.Len() != len(sample()) {
		t.Fatalf("copied %d tokens, want %d", out.Len(), len(sample()))
	}
	if _, err := src.NextToken(); err != io.EOF {
		t.Fatalf("source not exhausted: %v", err)
	}
}

func TestBuffer_Elements(t *testing.T) {
	cases := []struct {
		name string
		toks []Token
		want int
	}{
		{"empty array", []Token{BeginArray(), EndArray()}, 0},
		{"nested", []Token{BeginArray(), BeginObject(), Key("a"), BeginArray(), Int(1), EndArray(), EndObject(), Null(), BeginArray(), EndArray(), EndArray()}, 3},
		{"object", sample(), 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewBuffer(tc.toks...).Elements(); got != tc.want {
				t.Fatalf("Elements() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestSkipValue_Scalar(t *testing.T) {
	src := NewBuffer(String("s"), Int(2))
	first, _ := src.NextToken()
	if err := SkipValue(src, first); err != nil {
		t.Fatalf("err: %v", err)
	}
	next, _ := src.NextToken()
	if next.Kind != KindNumber || next.Number != "2" {
		t.Fatalf("unexpected next token %v", next)
	}
}

func TestReplaySource(t *testing.T) {
	inner := NewBuffer(Key("b"), Int(2), EndObject())
	rs := NewReplaySource([]Token{BeginObject(), Key("a"), Int(1)}, inner)
	v, err := DecodeAny(rs, false)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if !reflect.DeepEqual(v, map[string]any{"a": float64(1), "b": float64(2)}) {
		t.Fatalf("got %#v", v)
	}
}

func TestPreloadedSource_StopsAtSubtreeEnd(t *testing.T) {
	inner := NewBuffer(Int(1), EndArray(), Int(9))
	ps := NewPreloadedSource(inner, BeginArray())
	var n int
	for {
		_, err := ps.NextToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		n++
	}
	if n != 3 || !ps.Done() {
		t.Fatalf("served %d tokens", n)
	}
	rest, _ := inner.NextToken()
	if rest.Number != "9" {
		t.Fatalf("inner advanced too far: %v", rest)
	}
}

func TestGuard_Path(t *testing.T) {
	g := NewGuard(NewBuffer(sample()...), GuardOptions{})
	var paths []string
	for {
		tok, err := g.NextToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("err: %v", err)
		}
		if tok.Kind.IsScalar() {
			paths = append(paths, g.Path())
		}
	}
	want := []string{"/a", "/b/0", "/b/1", "/b/2", "/c/d"}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("got %v", paths)
	}
}

func TestGuard_Duplicate(t *testing.T) {
	toks := []Token{BeginObject(), Key("a~/"), Int(1), Key("a~/"), Int(2), EndObject()}
	g := NewGuard(NewBuffer(toks...), GuardOptions{OnDuplicate: DupError})
	var err error
	for err == nil {
		_, err = g.NextToken()
	}
	var ie IssueError
	if !errors.As(err, &ie) {
		t.Fatalf("expected IssueError, got %v", err)
	}
	if ie.Code != IssueDuplicateKey || ie.Path != "/a~0~1" {
		t.Fatalf("unexpected issue %+v", ie.SimpleIssue)
	}

	g = NewGuard(NewBuffer(toks...), GuardOptions{})
	if err := Pipe(g, &Buffer{}); err != nil {
		t.Fatalf("ignore mode must pass: %v", err)
	}
}

func TestGuard_MaxDepth(t *testing.T) {
	toks := []Token{BeginArray(), BeginArray(), BeginArray(), EndArray(), EndArray(), EndArray()}
	if err := Pipe(NewGuard(NewBuffer(toks...), GuardOptions{MaxDepth: 3}), &Buffer{}); err != nil {
		t.Fatalf("depth 3 allowed: %v", err)
	}
	err := Pipe(NewGuard(NewBuffer(toks...), GuardOptions{MaxDepth: 2}), &Buffer{})
	var ie IssueError
	if !errors.As(err, &ie) || ie.Code != IssueDepthExceeded || ie.Path != "/0/0" {
		t.Fatalf("expected depth issue, got %v", err)
	}
}
