package objmap

// viewEval decides view membership of properties for one traversal. Decisions
// are cached per property.
type viewEval struct {
	active      string
	defaultIncl bool
	lineage     map[string]bool // the active view and all its ancestors
	cache       map[*PropertySchema]bool
}

func newViewEval(views map[string]string, cfg *Config) *viewEval {
	e := &viewEval{active: cfg.ActiveView, defaultIncl: cfg.DefaultViewInclusion()}
	if e.active == "" {
		return e
	}
	e.lineage = map[string]bool{}
	e.cache = map[*PropertySchema]bool{}
	for v := e.active; v != "" && !e.lineage[v]; v = views[v] {
		e.lineage[v] = true
	}
	return e
}

// include reports whether p takes part under the active view. Without an
// active view every property does.
func (e *viewEval) include(p *PropertySchema) bool {
	if e.active == "" {
		return true
	}
	if len(p.Views) == 0 {
		return e.defaultIncl
	}
	if d, ok := e.cache[p]; ok {
		return d
	}
	d := false
	for _, v := range p.Views {
		if e.lineage[v] {
			d = true
			break
		}
	}
	e.cache[p] = d
	return d
}

// IsA reports whether view equals ancestor or descends from it.
func (m *Mapper) IsA(view, ancestor string) bool {
	seen := map[string]bool{}
	for v := view; v != "" && !seen[v]; v = m.views[v] {
		if v == ancestor {
			return true
		}
		seen[v] = true
	}
	return false
}
