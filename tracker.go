package objmap

import (
	"reflect"

	eng "github.com/reoring/objmap/internal/engine"
)

// Tracker records object identities for identity substitution. A fresh
// Tracker is used for every top-level call unless Config.IdentityScope is
// IdentityExternal, in which case Config.Tracker is shared. A Tracker is not
// safe for concurrent use.
type Tracker struct {
	seq     int64
	written map[identityKey]Token
	byToken map[tokenKey]reflect.Value
}

// identityKey is reference equality: the address of the object and its type.
type identityKey struct {
	t reflect.Type
	p uintptr
}

type tokenKey struct {
	t   reflect.Type
	tok string
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		written: map[identityKey]Token{},
		byToken: map[tokenKey]reflect.Value{},
	}
}

// Reset forgets every identity.
func (t *Tracker) Reset() {
	t.seq = 0
	clear(t.written)
	clear(t.byToken)
}

// Len reports how many objects are known, written or read.
func (t *Tracker) Len() int { return len(t.written) + len(t.byToken) }

// next issues the next sequence token. Sequence tokens are unique across all
// types of one Tracker.
func (t *Tracker) next() Token {
	t.seq++
	return eng.Int(t.seq)
}

func (t *Tracker) seen(k identityKey) (Token, bool) {
	tok, ok := t.written[k]
	return tok, ok
}

func (t *Tracker) remember(k identityKey, tok Token) { t.written[k] = tok }

// bind registers ptr, a pointer to a struct of type typ, under token text.
func (t *Tracker) bind(typ reflect.Type, text string, ptr reflect.Value) {
	t.byToken[tokenKey{t: typ, tok: text}] = ptr
}

// resolve finds the object bound to text whose pointer or value is
// assignable to want. member, when non-nil, restricts the candidates to the
// struct types it accepts. n is the number of matching objects; the value is
// only meaningful when n is 1.
func (t *Tracker) resolve(want reflect.Type, text string, member func(reflect.Type) bool) (v reflect.Value, n int) {
	base := indirect(want)
	if base.Kind() == reflect.Struct {
		ref, ok := t.byToken[tokenKey{t: base, tok: text}]
		if !ok {
			return reflect.Value{}, 0
		}
		return ref, 1
	}
	for k, cand := range t.byToken {
		if k.tok != text || member != nil && !member(k.t) {
			continue
		}
		if cand.Type().AssignableTo(want) || cand.Elem().Type().AssignableTo(want) {
			v = cand
			n++
		}
	}
	return v, n
}
