package lazyfield

import "reflect"

// Merge composes snapshots ordered from strongest to weakest, returning a new
// value that keeps explicit settings from stronger layers while filling any
// missing data from weaker ones. Nil pointers, nil maps and nil slices count
// as missing; zero scalars do not, so a strong layer can deliberately reset a
// number or flag.
func Merge[T any](layers ...T) T {
	var zero T
	if len(layers) == 0 {
		return zero
	}

	acc := cloneReflect(reflect.ValueOf(layers[len(layers)-1]))
	for i := len(layers) - 2; i >= 0; i-- {
		acc = overlay(reflect.ValueOf(layers[i]), acc)
	}

	if !acc.IsValid() {
		return zero
	}
	want := reflect.TypeOf(zero)
	if want != nil && acc.Type() != want {
		out := reflect.New(want).Elem()
		out.Set(acc.Convert(want))
		return out.Interface().(T)
	}
	return acc.Interface().(T)
}

// Clone deep copies a snapshot so callers can hand values across layer
// boundaries without sharing mutable state.
func Clone[T any](value T) T {
	cloned := cloneReflect(reflect.ValueOf(value))
	if !cloned.IsValid() {
		var zero T
		return zero
	}
	return cloned.Interface().(T)
}

// overlay merges strong over weak, recursing through containers.
func overlay(strong, weak reflect.Value) reflect.Value {
	if !strong.IsValid() {
		return cloneReflect(weak)
	}

	switch strong.Kind() {
	case reflect.Pointer:
		return overlayPointer(strong, weak)
	case reflect.Interface:
		return overlayInterface(strong, weak)
	case reflect.Struct:
		return overlayStruct(strong, weak)
	case reflect.Map:
		return overlayMap(strong, weak)
	case reflect.Slice:
		if strong.IsNil() {
			return cloneReflect(weak)
		}
		return cloneReflect(strong)
	case reflect.Array:
		return overlayArray(strong, weak)
	default:
		return cloneReflect(strong)
	}
}

func overlayPointer(strong, weak reflect.Value) reflect.Value {
	if strong.IsNil() {
		return cloneReflect(weak)
	}
	var under reflect.Value
	if weak.IsValid() && weak.Kind() == reflect.Pointer && !weak.IsNil() {
		under = weak.Elem()
	}
	out := reflect.New(strong.Type().Elem())
	out.Elem().Set(overlay(strong.Elem(), under))
	return out
}

func overlayInterface(strong, weak reflect.Value) reflect.Value {
	if strong.IsNil() {
		return cloneReflect(weak)
	}
	var under reflect.Value
	if weak.IsValid() && !weak.IsNil() {
		under = weak.Elem()
	}
	return overlay(strong.Elem(), under).Convert(strong.Type())
}

func overlayStruct(strong, weak reflect.Value) reflect.Value {
	out := reflect.New(strong.Type()).Elem()
	var under reflect.Value
	if weak.IsValid() && weak.Type() == strong.Type() {
		under = weak
	}
	for i := 0; i < strong.NumField(); i++ {
		field := out.Field(i)
		if !field.CanSet() {
			continue
		}
		var weakField reflect.Value
		if under.IsValid() {
			weakField = under.Field(i)
		}
		field.Set(overlay(strong.Field(i), weakField))
	}
	return out
}

func overlayMap(strong, weak reflect.Value) reflect.Value {
	if strong.IsNil() {
		return cloneReflect(weak)
	}
	out := reflect.MakeMapWithSize(strong.Type(), strong.Len())
	if weak.IsValid() && weak.Kind() == reflect.Map && !weak.IsNil() {
		iter := weak.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneReflect(iter.Value()))
		}
	}
	iter := strong.MapRange()
	for iter.Next() {
		key := iter.Key()
		value := iter.Value()
		if existing := out.MapIndex(key); existing.IsValid() {
			out.SetMapIndex(key, overlay(value, existing))
			continue
		}
		out.SetMapIndex(key, cloneReflect(value))
	}
	return out
}

func overlayArray(strong, weak reflect.Value) reflect.Value {
	out := reflect.New(strong.Type()).Elem()
	for i := 0; i < strong.Len(); i++ {
		var weakElem reflect.Value
		if weak.IsValid() && weak.Kind() == reflect.Array && weak.Len() > i {
			weakElem = weak.Index(i)
		}
		out.Index(i).Set(overlay(strong.Index(i), weakElem))
	}
	return out
}

func cloneReflect(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}

	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(cloneReflect(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		elem := cloneReflect(v.Elem())
		if !elem.IsValid() {
			return reflect.Zero(v.Type())
		}
		return elem.Convert(v.Type())
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			field := out.Field(i)
			if !field.CanSet() {
				continue
			}
			field.Set(cloneReflect(v.Field(i)))
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneReflect(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneReflect(v.Index(i)))
		}
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(cloneReflect(v.Index(i)))
		}
		return out
	default:
		return reflect.ValueOf(v.Interface())
	}
}
