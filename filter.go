package objmap

import (
	"reflect"
	"slices"
)

// FilterDecision is the outcome of a PropertyFilter.
type FilterDecision int

const (
	FilterInclude FilterDecision = iota
	FilterOmit
	// FilterOmitReserveSlot omits the value but keeps its position (as null)
	// in positional shapes. Tree shapes treat it like FilterOmit.
	FilterOmitReserveSlot
)

// PropertyFilter decides per owning object and property whether the property
// is written. Filters apply when serializing only.
type PropertyFilter interface {
	Decide(owner reflect.Value, p *PropertySchema) FilterDecision
}

// FilterFunc adapts a function to PropertyFilter.
type FilterFunc func(owner reflect.Value, p *PropertySchema) FilterDecision

func (f FilterFunc) Decide(owner reflect.Value, p *PropertySchema) FilterDecision {
	return f(owner, p)
}

// Filters binds filter ids (see TypeConfig.Filter) to filters.
type Filters map[string]PropertyFilter

// FilterOutAllExcept keeps only the named properties.
func FilterOutAllExcept(names ...string) PropertyFilter {
	return FilterFunc(func(_ reflect.Value, p *PropertySchema) FilterDecision {
		if slices.Contains(names, p.Name) {
			return FilterInclude
		}
		return FilterOmit
	})
}

// SerializeAllExcept drops the named properties.
func SerializeAllExcept(names ...string) PropertyFilter {
	return FilterFunc(func(_ reflect.Value, p *PropertySchema) FilterDecision {
		if slices.Contains(names, p.Name) {
			return FilterOmit
		}
		return FilterInclude
	})
}
