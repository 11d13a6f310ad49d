package objmap

import "reflect"

// linkBack restores back references after the forward side of the ownership
// edge name has been materialized into v. parent is a pointer to the owning
// object. Pointers, structs, slices, arrays and map values directly held by v
// are visited; deeper levels belong to other edges.
func (m *Mapper) linkBack(parent reflect.Value, name string, v reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if !v.IsNil() {
			m.linkBack(parent, name, v.Elem())
		}
	case reflect.Struct:
		ts, err := m.SchemaFor(v.Type())
		if err != nil || !v.CanAddr() {
			return
		}
		for _, p := range ts.Properties {
			if p.Ref != RefBack || p.RefName != name {
				continue
			}
			switch {
			case parent.Type().AssignableTo(p.Type):
				p.set(v, parent)
			case parent.Elem().Type().AssignableTo(p.Type):
				p.set(v, parent.Elem())
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			m.linkBack(parent, name, v.Index(i))
		}
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			e := iter.Value()
			if e.Kind() == reflect.Struct {
				c := reflect.New(e.Type()).Elem()
				c.Set(e)
				m.linkBack(parent, name, c)
				v.SetMapIndex(iter.Key(), c)
				continue
			}
			m.linkBack(parent, name, e)
		}
	}
}
