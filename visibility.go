package objmap

import (
	"reflect"
	"unsafe"
)

// Visibility decides which members of a kind are discovered as properties.
type Visibility int

const (
	// VisibilityDefault defers to the builder-wide policy.
	VisibilityDefault Visibility = iota
	VisibilityNone
	// VisibilityPublic discovers exported members only.
	VisibilityPublic
	// VisibilityProtected adds unexported fields that carry an objmap tag.
	VisibilityProtected
	// VisibilityAny discovers every field, exported or not.
	VisibilityAny
)

// MemberKind selects the member kind a Visibility applies to.
type MemberKind int

const (
	MemberField MemberKind = iota
	MemberGetter
	MemberSetter
	MemberCreator
)

// VisibilityPolicy holds one level per member kind.
type VisibilityPolicy struct {
	Field   Visibility
	Getter  Visibility
	Setter  Visibility
	Creator Visibility
}

// DefaultVisibility discovers exported fields, getters, setters and registered
// creators.
func DefaultVisibility() VisibilityPolicy {
	return VisibilityPolicy{
		Field:   VisibilityPublic,
		Getter:  VisibilityPublic,
		Setter:  VisibilityPublic,
		Creator: VisibilityPublic,
	}
}

// With returns a copy of p with kind set to level.
func (p VisibilityPolicy) With(kind MemberKind, level Visibility) VisibilityPolicy {
	switch kind {
	case MemberField:
		p.Field = level
	case MemberGetter:
		p.Getter = level
	case MemberSetter:
		p.Setter = level
	case MemberCreator:
		p.Creator = level
	}
	return p
}

// merge fills unset levels of p from base.
func (p VisibilityPolicy) merge(base VisibilityPolicy) VisibilityPolicy {
	if p.Field == VisibilityDefault {
		p.Field = base.Field
	}
	if p.Getter == VisibilityDefault {
		p.Getter = base.Getter
	}
	if p.Setter == VisibilityDefault {
		p.Setter = base.Setter
	}
	if p.Creator == VisibilityDefault {
		p.Creator = base.Creator
	}
	return p
}

// fieldVisible applies the field level to one struct field.
func fieldVisible(level Visibility, sf reflect.StructField, tagged bool) bool {
	switch level {
	case VisibilityNone:
		return false
	case VisibilityProtected:
		return sf.IsExported() || tagged
	case VisibilityAny:
		return true
	default:
		return sf.IsExported()
	}
}

// methodVisible reports whether getters or setters are discovered. Methods
// found through reflection are always exported.
func methodVisible(level Visibility) bool { return level != VisibilityNone }

// accessible returns f itself, or an addressable alias that bypasses the
// export check for unexported fields. f must be addressable in that case.
func accessible(f reflect.Value) reflect.Value {
	if f.CanInterface() {
		return f
	}
	return reflect.NewAt(f.Type(), unsafe.Pointer(f.UnsafeAddr())).Elem()
}
