// Package reflector derives stable type names from Go types and caches them.
package reflector

import (
	"reflect"
	"sync"
)

var (
	muCache sync.RWMutex
	cache   = make(map[reflect.Type]TypeInfo)
)

// TypeInfo describes a named Go type. Pointers are dereferenced.
type TypeInfo struct {
	Name     string // TypeName
	FullName string // pkg/path.TypeName
	Type     reflect.Type
}

func TypeInfoOf(x any) TypeInfo {
	return TypeInfoForType(reflect.TypeOf(x))
}

func TypeInfoFor[T any]() TypeInfo {
	return TypeInfoForType(reflect.TypeFor[T]())
}

func TypeInfoForType(t reflect.Type) TypeInfo {
	if t == nil {
		return TypeInfo{}
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	muCache.RLock()
	ti, ok := cache[t]
	muCache.RUnlock()
	if ok {
		return ti
	}

	name := t.Name()
	if name == "" {
		// unnamed types (maps, slices, ...) fall back to their literal
		name = t.String()
	}
	ti = TypeInfo{
		Name:     name,
		FullName: t.PkgPath() + "." + name,
		Type:     t,
	}

	muCache.Lock()
	cache[t] = ti
	muCache.Unlock()
	return ti
}
