package engine

import (
	"strconv"
	"strings"
)

// Guard wraps a TokenSource to apply duplicate key handling and max depth
// checks in a streaming fashion. It also tracks the JSON pointer of the most
// recent token so callers can report where a failure happened.

// DuplicateStrictness controls how repeated object keys are treated.
type DuplicateStrictness int

const (
	DupIgnore DuplicateStrictness = iota
	DupError
)

// GuardOptions controls runtime enforcement behavior.
type GuardOptions struct {
	OnDuplicate DuplicateStrictness
	// MaxDepth bounds container nesting. Zero or negative disables the check.
	MaxDepth int
}

// SimpleIssue is the token-level failure reported by a Guard.
type SimpleIssue struct {
	Code    string
	Path    string
	Message string
}

const (
	IssueDuplicateKey  = "duplicate_key"
	IssueDepthExceeded = "depth_exceeded"
)

// IssueError is a lightweight error carrying a SimpleIssue.
type IssueError struct{ SimpleIssue }

func (e IssueError) Error() string { return e.SimpleIssue.Message }

type containerKind int

const (
	kindObject containerKind = iota
	kindArray
)

type frame struct {
	kind         containerKind
	keys         map[string]struct{}
	expectingKey bool
	path         string
	nextIndex    int
	pendingKey   string
}

// Guard is the enforcing TokenSource returned by NewGuard.
type Guard struct {
	inner TokenSource
	opt   GuardOptions
	stack []frame
	path  string
}

// NewGuard returns a Guard reading from inner.
func NewGuard(inner TokenSource, opt GuardOptions) *Guard {
	return &Guard{inner: inner, opt: opt}
}

// Path returns the JSON pointer of the last token read ("" for the root).
func (g *Guard) Path() string { return g.path }

// Depth returns the current container nesting.
func (g *Guard) Depth() int { return len(g.stack) }

func (g *Guard) NextToken() (Token, error) {
	tok, err := g.inner.NextToken()
	if err != nil {
		return Token{}, err
	}

	path := g.currentPathForToken(tok)

	switch tok.Kind {
	case KindBeginObject, KindBeginArray:
		f := frame{kind: kindArray, path: path}
		if tok.Kind == KindBeginObject {
			f = frame{kind: kindObject, keys: make(map[string]struct{}), expectingKey: true, path: path}
		}
		g.stack = append(g.stack, f)
		if g.opt.MaxDepth > 0 && len(g.stack) > g.opt.MaxDepth {
			return Token{}, IssueError{SimpleIssue{
				Code:    IssueDepthExceeded,
				Path:    path,
				Message: "max depth " + strconv.Itoa(g.opt.MaxDepth) + " exceeded",
			}}
		}
	case KindEndObject, KindEndArray:
		if n := len(g.stack); n > 0 {
			g.stack = g.stack[:n-1]
		}
		g.valueDone()
	case KindKey:
		if n := len(g.stack); n > 0 {
			top := &g.stack[n-1]
			if top.kind == kindObject && top.expectingKey {
				if g.opt.OnDuplicate == DupError {
					if _, ok := top.keys[tok.String]; ok {
						return Token{}, IssueError{SimpleIssue{
							Code:    IssueDuplicateKey,
							Path:    path,
							Message: "key '" + tok.String + "' duplicated",
						}}
					}
				}
				top.keys[tok.String] = struct{}{}
				top.expectingKey = false
				top.pendingKey = tok.String
			}
		}
	case KindString, KindNumber, KindBool, KindNull:
		g.valueDone()
	}
	return tok, nil
}

func (g *Guard) valueDone() {
	if n := len(g.stack); n > 0 {
		top := &g.stack[n-1]
		if top.kind == kindObject && !top.expectingKey {
			top.expectingKey = true
			top.pendingKey = ""
		}
	}
}

func (g *Guard) currentPathForToken(tok Token) string {
	if len(g.stack) == 0 {
		g.path = ""
		return ""
	}
	var path string
	top := &g.stack[len(g.stack)-1]
	switch tok.Kind {
	case KindKey:
		path = JoinPointer(top.path, tok.String)
	case KindBeginObject, KindBeginArray, KindString, KindNumber, KindBool, KindNull:
		if top.kind == kindArray {
			path = JoinPointer(top.path, strconv.Itoa(top.nextIndex))
			top.nextIndex++
		} else if !top.expectingKey {
			path = JoinPointer(top.path, top.pendingKey)
		} else {
			path = top.path
		}
	default:
		path = top.path
	}
	g.path = path
	return path
}

func (g *Guard) Location() int64 { return g.inner.Location() }

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// JoinPointer appends one reference token to a JSON pointer (RFC 6901).
func JoinPointer(base, token string) string {
	return base + "/" + pointerEscaper.Replace(token)
}
