package engine

import "io"

// PreloadedSource is a subtree source that first returns a preloaded token
// (typically the first token of a value) and then continues to stream the
// remaining tokens for the same subtree from the underlying source. It stops
// after the subtree end is reached, returning io.EOF afterwards.
type PreloadedSource struct {
	inner       TokenSource
	preloaded   Token
	depth       int
	done        bool
	firstServed bool
}

// NewPreloadedSource constructs a subtree source that will return first
// before consuming further tokens from inner.
func NewPreloadedSource(inner TokenSource, first Token) *PreloadedSource {
	return &PreloadedSource{inner: inner, preloaded: first}
}

func (p *PreloadedSource) NextToken() (Token, error) {
	if p.done {
		return Token{}, io.EOF
	}
	var tok Token
	if !p.firstServed {
		p.firstServed = true
		tok = p.preloaded
	} else {
		t, err := p.inner.NextToken()
		if err != nil {
			return Token{}, eofIsUnexpected(err)
		}
		tok = t
	}
	switch tok.Kind {
	case KindBeginObject, KindBeginArray:
		p.depth++
	case KindEndObject, KindEndArray:
		if p.depth > 0 {
			p.depth--
		}
	}
	// primitives at depth zero are single-token subtrees
	if p.depth == 0 {
		p.done = true
	}
	return tok, nil
}

func (p *PreloadedSource) Location() int64 { return p.inner.Location() }

// Done reports whether the whole subtree has been served.
func (p *PreloadedSource) Done() bool { return p.done }

// Drain consumes whatever is left of the subtree.
func (p *PreloadedSource) Drain() error {
	for !p.done {
		if _, err := p.NextToken(); err != nil {
			return err
		}
	}
	return nil
}

// ReplaySource serves buffered tokens before reading on from inner. It is
// used when a prefix of a value had to be looked at before knowing how to
// decode it (for example while searching a discriminator key).
type ReplaySource struct {
	prefix []Token
	inner  TokenSource
}

// NewReplaySource returns a source that yields prefix, then inner.
func NewReplaySource(prefix []Token, inner TokenSource) *ReplaySource {
	return &ReplaySource{prefix: prefix, inner: inner}
}

func (r *ReplaySource) NextToken() (Token, error) {
	if len(r.prefix) > 0 {
		t := r.prefix[0]
		r.prefix = r.prefix[1:]
		return t, nil
	}
	return r.inner.NextToken()
}

func (r *ReplaySource) Location() int64 { return r.inner.Location() }
