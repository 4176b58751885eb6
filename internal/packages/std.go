// Package packages bundles the modules of host functions shipped with the
// engine.
package packages

import (
	"strings"

	ev "github.com/quill-lang/quill/internal/evaluator"
)

// StandardPackage builds the module of core functions that engines created
// with the embedding surface's New carry (NewRaw leaves it out): output,
// sizing, container access and the indexers the expression lowering
// dispatches to.
func StandardPackage() *ev.Module {
	m := ev.NewModule("")

	// print and debug return their rendering; the dispatch core routes the
	// result through the engine callbacks.
	m.RegisterNative("print", []ev.TypeID{ev.TypeDynamic}, true,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			return ev.NewString(args[0].String()), nil
		})
	m.RegisterNative("print", nil, true,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			return ev.NewString(""), nil
		})
	m.RegisterNative("debug", []ev.TypeID{ev.TypeDynamic}, true,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			return ev.NewString(args[0].DebugString()), nil
		})

	m.RegisterNative("to_string", []ev.TypeID{ev.TypeDynamic}, true,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			return ev.NewString(args[0].String()), nil
		})
	m.RegisterNative("to_debug", []ev.TypeID{ev.TypeDynamic}, true,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			return ev.NewString(args[0].DebugString()), nil
		})

	m.RegisterNative("len", []ev.TypeID{ev.TypeString}, true,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			s, _ := args[0].Str()
			return ev.NewInt(int64(len(s))), nil
		})
	m.RegisterNative("len", []ev.TypeID{ev.TypeArray}, true,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			arr, _ := args[0].Array()
			return ev.NewInt(int64(len(arr))), nil
		})
	m.RegisterNative("len", []ev.TypeID{ev.TypeMap}, true,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			mp, _ := args[0].Map()
			return ev.NewInt(int64(len(mp))), nil
		})

	m.RegisterNative("contains", []ev.TypeID{ev.TypeString, ev.TypeString}, true,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			s, _ := args[0].Str()
			sub, _ := args[1].Str()
			return ev.NewBool(strings.Contains(s, sub)), nil
		})
	m.RegisterNative("contains", []ev.TypeID{ev.TypeArray, ev.TypeDynamic}, true,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			arr, _ := args[0].Array()
			for i := range arr {
				if eq, ok := ev.Equals(&arr[i], args[1]); ok && eq {
					return ev.NewBool(true), nil
				}
			}
			return ev.NewBool(false), nil
		})
	m.RegisterNative("contains", []ev.TypeID{ev.TypeMap, ev.TypeString}, true,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			mp, _ := args[0].Map()
			k, _ := args[1].Str()
			_, found := mp[k]
			return ev.NewBool(found), nil
		})

	m.RegisterNative("to_upper", []ev.TypeID{ev.TypeString}, true,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			s, _ := args[0].Str()
			return ev.NewString(strings.ToUpper(s)), nil
		})
	m.RegisterNative("to_lower", []ev.TypeID{ev.TypeString}, true,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			s, _ := args[0].Str()
			return ev.NewString(strings.ToLower(s)), nil
		})
	m.RegisterNative("abs", []ev.TypeID{ev.TypeInt}, true,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			n, _ := args[0].Int()
			if n < 0 {
				n = -n
			}
			return ev.NewInt(n), nil
		})

	// Array mutators are plugin methods: a read-only receiver refuses them.
	m.RegisterPlugin("push", []ev.TypeID{ev.TypeArray, ev.TypeDynamic}, false,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			arr, _ := args[0].Array()
			args[0].SetArrayInPlace(append(arr, args[1].Clone()))
			return ev.Unit(), nil
		})
	m.RegisterPlugin("pop", []ev.TypeID{ev.TypeArray}, false,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			arr, _ := args[0].Array()
			if len(arr) == 0 {
				return ev.Unit(), nil
			}
			last := arr[len(arr)-1]
			args[0].SetArrayInPlace(arr[:len(arr)-1])
			return last, nil
		})
	m.RegisterPlugin("clear", []ev.TypeID{ev.TypeArray}, false,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			args[0].SetArrayInPlace(nil)
			return ev.Unit(), nil
		})

	// Indexers. Reads are pure; writes are plugin methods.
	m.RegisterNative(ev.FnIdxGet, []ev.TypeID{ev.TypeArray, ev.TypeInt}, true,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			arr, _ := args[0].Array()
			i, _ := args[1].Int()
			if i < 0 || i >= int64(len(arr)) {
				return ev.Unit(), ev.RuntimeError("array index %d out of bounds (len %d)", i, len(arr))
			}
			return arr[i].Clone(), nil
		})
	m.RegisterPlugin(ev.FnIdxSet, []ev.TypeID{ev.TypeArray, ev.TypeInt, ev.TypeDynamic}, false,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			arr, _ := args[0].Array()
			i, _ := args[1].Int()
			if i < 0 || i >= int64(len(arr)) {
				return ev.Unit(), ev.RuntimeError("array index %d out of bounds (len %d)", i, len(arr))
			}
			arr[i] = args[2].Clone()
			return ev.Unit(), nil
		})
	m.RegisterNative(ev.FnIdxGet, []ev.TypeID{ev.TypeMap, ev.TypeString}, true,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			mp, _ := args[0].Map()
			k, _ := args[1].Str()
			v, found := mp[k]
			if !found {
				return ev.Unit(), ev.RuntimeError("map key %q not found", k)
			}
			return v.Clone(), nil
		})
	m.RegisterPlugin(ev.FnIdxSet, []ev.TypeID{ev.TypeMap, ev.TypeString, ev.TypeDynamic}, false,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			mp, _ := args[0].Map()
			k, _ := args[1].Str()
			mp[k] = args[2].Clone()
			return ev.Unit(), nil
		})
	m.RegisterNative(ev.FnIdxGet, []ev.TypeID{ev.TypeString, ev.TypeInt}, true,
		func(ctx *ev.NativeCallContext, args []*ev.Dynamic) (ev.Dynamic, error) {
			s, _ := args[0].Str()
			i, _ := args[1].Int()
			runes := []rune(s)
			if i < 0 || i >= int64(len(runes)) {
				return ev.Unit(), ev.RuntimeError("string index %d out of bounds (len %d)", i, len(runes))
			}
			return ev.NewChar(runes[i]), nil
		})

	return m
}
