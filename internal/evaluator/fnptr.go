package evaluator

import (
	"strings"

	"github.com/quill-lang/quill/internal/token"
)

// FnPtr is a first-class function pointer: an immutable function name plus
// any curried argument values. Curried arguments are prepended, in order,
// before call-site arguments.
type FnPtr struct {
	name  string
	curry []Dynamic
}

// NewFnPtr creates a function pointer, validating the name. Names that are
// neither legal identifiers nor anonymous-prefixed are rejected.
func NewFnPtr(name string) (*FnPtr, error) {
	if !token.IsValidFunctionName(name) {
		return nil, errFunctionNotFound(name, token.None)
	}
	return &FnPtr{name: name}, nil
}

// newFnPtrUnchecked creates a function pointer without validating the name.
// Used when redirecting calls through names that are already established,
// such as punctuation-named operators.
func newFnPtrUnchecked(name string, curry []Dynamic) *FnPtr {
	return &FnPtr{name: name, curry: curry}
}

// FnName returns the name of the pointed-to function.
func (fp *FnPtr) FnName() string { return fp.name }

// Curry returns the curried arguments.
func (fp *FnPtr) Curry() []Dynamic { return fp.curry }

// IsCurried reports whether any arguments are curried.
func (fp *FnPtr) IsCurried() bool { return len(fp.curry) > 0 }

// IsAnonymous reports whether the pointer refers to an anonymous function.
func (fp *FnPtr) IsAnonymous() bool {
	return strings.HasPrefix(fp.name, token.AnonymousPrefix)
}

// AddCurry appends a curried argument.
func (fp *FnPtr) AddCurry(value Dynamic) *FnPtr {
	fp.curry = append(fp.curry, value)
	return fp
}

// SetCurry replaces the curried arguments.
func (fp *FnPtr) SetCurry(values []Dynamic) *FnPtr {
	fp.curry = values
	return fp
}

// TakeData consumes the pointer into its name and curried arguments.
func (fp *FnPtr) TakeData() (string, []Dynamic) {
	name, curry := fp.name, fp.curry
	fp.curry = nil
	return name, curry
}

// Call invokes the pointed-to function on an engine and compiled program.
// The program's statements are not executed; only its function library is
// made available.
func (fp *FnPtr) Call(e *Engine, program *Program, args []Dynamic) (Dynamic, error) {
	global := NewGlobalRuntimeState(e)
	lib := []*Module{}
	if program != nil && program.lib != nil && len(program.lib.records) > 0 {
		lib = append(lib, program.lib)
	}
	ctx := &NativeCallContext{
		engine: e,
		fnName: fp.name,
		global: global,
		lib:    lib,
		pos:    token.None,
	}
	return fp.CallRaw(ctx, nil, args)
}

// CallWithinContext invokes the pointed-to function from inside a native
// host function, reusing that call's context.
func (fp *FnPtr) CallWithinContext(ctx *NativeCallContext, args []Dynamic) (Dynamic, error) {
	return fp.CallRaw(ctx, nil, args)
}

// CallRaw is the low-level invocation path. Curried arguments are prepended
// (consuming the provided slots), and a non-nil this pointer is pushed as
// the first slot, making the invocation a method call.
//
// All argument values are consumed: they are replaced by unit.
func (fp *FnPtr) CallRaw(ctx *NativeCallContext, this *Dynamic, argValues []Dynamic) (Dynamic, error) {
	values := argValues
	if fp.IsCurried() {
		merged := make([]Dynamic, 0, len(fp.curry)+len(argValues))
		for i := range fp.curry {
			merged = append(merged, fp.curry[i].Clone())
		}
		for i := range argValues {
			merged = append(merged, take(&argValues[i]))
		}
		values = merged
	}

	isMethod := this != nil

	args := make([]*Dynamic, 0, len(values)+1)
	if this != nil {
		args = append(args, this)
	}
	for i := range values {
		args = append(args, &values[i])
	}

	return ctx.CallFnRaw(fp.name, isMethod, isMethod, args)
}
