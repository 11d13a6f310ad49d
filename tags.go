package objmap

import (
	"reflect"
	"strings"
)

// tagSettings resolves the struct tags of a field into property settings.
// Priority: objmap:"name=..." > json tag name > naming strategy; "-" disables
// the field. The second result reports whether an objmap tag is present.
func tagSettings(sf reflect.StructField) (*propSettings, bool) {
	s := &propSettings{}
	if jt, ok := sf.Tag.Lookup("json"); ok {
		if jt == "-" {
			s.ignore = ptr(true)
		} else {
			parts := strings.Split(jt, ",")
			if parts[0] != "" {
				s.name = ptr(parts[0])
			}
			for _, p := range parts[1:] {
				if strings.TrimSpace(p) == "omitempty" {
					s.inclusion = IncludeNonEmpty
				}
			}
		}
	}
	gt, tagged := sf.Tag.Lookup("objmap")
	if !tagged {
		return s, false
	}
	if gt == "-" {
		s.ignore = ptr(true)
		return s, true
	}
	for _, p := range strings.Split(gt, ",") {
		p = strings.TrimSpace(p)
		key, val, _ := strings.Cut(p, "=")
		switch key {
		case "":
		case "name":
			s.name = ptr(val)
		case "alias":
			s.aliases = splitList(val)
		case "view":
			s.views = splitList(val)
		case "always":
			s.inclusion = IncludeAlways
		case "nonnull":
			s.inclusion = IncludeNonNull
		case "nonempty":
			s.inclusion = IncludeNonEmpty
		case "readonly":
			s.readOnly = ptr(true)
		case "writeonly":
			s.writeOnly = ptr(true)
		case "mandatory":
			s.mandatory = ptr(true)
		case "unwrapped":
			s.unwrapped = ptr(true)
		case "any":
			s.anyProps = ptr(true)
		case "managed":
			s.ref = &refSetting{kind: RefManaged, name: val}
		case "back":
			s.ref = &refSetting{kind: RefBack, name: val}
		case "inject":
			s.inject = ptr(val)
		case "mark":
			s.markers = splitList(val)
		case "desc":
			s.description = ptr(val)
		}
	}
	return s, true
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	out := strings.Split(v, "|")
	for i := range out {
		out[i] = strings.TrimSpace(out[i])
	}
	return out
}

func ptr[T any](v T) *T { return &v }
