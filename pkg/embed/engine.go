// Package quill is the public embedding surface of the Quill scripting
// engine.
package quill

import (
	"os"
	"reflect"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"

	"github.com/quill-lang/quill/internal/evaluator"
	"github.com/quill-lang/quill/internal/packages"
	"github.com/quill-lang/quill/internal/token"
)

// Core type aliases, so embedders need only this package.
type (
	Dynamic           = evaluator.Dynamic
	Scope             = evaluator.Scope
	Program           = evaluator.Program
	Module            = evaluator.Module
	FnPtr             = evaluator.FnPtr
	NativeCallContext = evaluator.NativeCallContext
	NativeFunc        = evaluator.NativeFunc
	TypeID            = evaluator.TypeID
	Limits            = evaluator.Limits
	ScriptError       = evaluator.ScriptError
	ModuleResolver    = evaluator.ModuleResolver
	Position          = token.Position
)

var (
	NewScope     = evaluator.NewScope
	NewModule    = evaluator.NewModule
	NewFnPtr     = evaluator.NewFnPtr
	NewInt       = evaluator.NewInt
	NewFloat     = evaluator.NewFloat
	NewBool      = evaluator.NewBool
	NewString    = evaluator.NewString
	NewArray     = evaluator.NewArray
	NewMapValue  = evaluator.NewMap
	Unit         = evaluator.Unit
	RuntimeError = evaluator.RuntimeError
)

// Engine is an embeddable scripting engine instance.
type Engine struct {
	core       *evaluator.Engine
	marshaller *Marshaller
}

// New creates an engine with the standard package registered. The default
// debug callback colorizes its output when standard error is a terminal.
func New() *Engine {
	e := NewRaw()
	e.core.RegisterGlobalModule(packages.StandardPackage())

	colored := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	e.core.OnDebug(func(text, source string, pos token.Position) {
		line := text
		if source != "" {
			line = source + " @ " + pos.String() + " | " + text
		} else if !pos.IsNone() {
			line = pos.String() + " | " + text
		}
		if colored {
			line = "\x1b[2m" + line + "\x1b[0m"
		}
		os.Stderr.WriteString(line + "\n")
	})
	return e
}

// NewRaw creates an engine without the standard package.
func NewRaw() *Engine {
	return &Engine{core: evaluator.NewEngine(), marshaller: NewMarshaller()}
}

// Core exposes the underlying engine for advanced configuration.
func (e *Engine) Core() *evaluator.Engine { return e.core }

// Compile parses source text into a program.
func (e *Engine) Compile(src string) (*Program, error) {
	return e.core.Compile(src)
}

// CompileWithSource parses source text into a program with a symbolic name.
func (e *Engine) CompileWithSource(src, source string) (*Program, error) {
	return e.core.CompileWithSource(src, source)
}

// Eval compiles and runs a script fragment, returning the value of its last
// statement as a Go value. The fragment is tagged with a unique source id.
func (e *Engine) Eval(scope *Scope, src string) (any, error) {
	program, err := e.core.CompileWithSource(src, "eval$"+uuid.NewString()[:8])
	if err != nil {
		return nil, err
	}
	result, err := e.core.Run(scope, program)
	if err != nil {
		return nil, err
	}
	return e.marshaller.FromDynamic(result, nil)
}

// Run executes a compiled program's top-level statements.
func (e *Engine) Run(scope *Scope, program *Program) (Dynamic, error) {
	return e.core.Run(scope, program)
}

// RegisterGlobalModule adds a module of host functions to the engine's
// global namespace.
func (e *Engine) RegisterGlobalModule(m *Module) {
	e.core.RegisterGlobalModule(m)
}

// RegisterStaticModule nests a module under a fixed namespace, reachable
// with qualified calls.
func (e *Engine) RegisterStaticModule(name string, m *Module) {
	e.core.RegisterStaticModule(name, m)
}

// SetModuleResolver installs the resolver used by import statements.
func (e *Engine) SetModuleResolver(r ModuleResolver) {
	e.core.SetModuleResolver(r)
}

// RegisterFn registers a plain Go function under name in the global
// namespace, deriving the parameter types by reflection. The function may
// return (T), (T, error) or nothing.
func (e *Engine) RegisterFn(name string, goFn any) error {
	fnVal := reflect.ValueOf(goFn)
	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func || fnType.IsVariadic() {
		return RuntimeError("RegisterFn requires a non-variadic Go function")
	}

	params := make([]TypeID, fnType.NumIn())
	for i := range params {
		params[i] = typeIDForGoType(fnType.In(i))
	}

	wrapper := func(ctx *NativeCallContext, args []*Dynamic) (Dynamic, error) {
		in := make([]reflect.Value, len(args))
		for i, a := range args {
			v, err := e.marshaller.FromDynamic(*a, fnType.In(i))
			if err != nil {
				return Unit(), err
			}
			if v == nil {
				in[i] = reflect.Zero(fnType.In(i))
			} else {
				in[i] = reflect.ValueOf(v)
			}
		}
		out := fnVal.Call(in)
		switch len(out) {
		case 0:
			return Unit(), nil
		case 1:
			if isErrorValue(out[0]) {
				return Unit(), errOrNil(out[0])
			}
			return e.marshaller.ToDynamic(out[0].Interface())
		default:
			if err := errOrNil(out[len(out)-1]); err != nil {
				return Unit(), err
			}
			return e.marshaller.ToDynamic(out[0].Interface())
		}
	}

	e.core.GlobalNamespace().RegisterNative(name, params, true, wrapper)
	return nil
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

func isErrorValue(v reflect.Value) bool {
	return v.Type().Implements(errType)
}

func errOrNil(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}

func typeIDForGoType(t reflect.Type) TypeID {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return evaluator.TypeInt
	case reflect.Float32, reflect.Float64:
		return evaluator.TypeFloat
	case reflect.Bool:
		return evaluator.TypeBool
	case reflect.String:
		return evaluator.TypeString
	case reflect.Slice:
		return evaluator.TypeArray
	case reflect.Map:
		return evaluator.TypeMap
	default:
		return evaluator.TypeDynamic
	}
}

// CallFnRaw is the untyped named-function entry point; all argument values
// are consumed.
func (e *Engine) CallFnRaw(
	scope *Scope,
	program *Program,
	evalAST, rewindScope bool,
	name string,
	this *Dynamic,
	args []Dynamic,
) (Dynamic, error) {
	return e.core.CallFnRaw(scope, program, evalAST, rewindScope, name, this, args)
}

// CallFn calls a named script function with Go argument values and casts the
// result to T. The cast failure carries both the expected and the actual
// type names.
func CallFn[T any](e *Engine, scope *Scope, program *Program, name string, args ...any) (T, error) {
	var zero T

	argValues := make([]Dynamic, len(args))
	for i, a := range args {
		v, err := e.marshaller.ToDynamic(a)
		if err != nil {
			return zero, err
		}
		argValues[i] = v
	}

	result, err := e.core.CallFnRaw(scope, program, true, true, name, nil, argValues)
	if err != nil {
		return zero, err
	}
	return castResult[T](e, result)
}

// CallFnPtr calls a function pointer against a compiled program and casts
// the result to T. The program's statements are not executed.
func CallFnPtr[T any](e *Engine, fp *FnPtr, program *Program, args ...any) (T, error) {
	var zero T

	argValues := make([]Dynamic, len(args))
	for i, a := range args {
		v, err := e.marshaller.ToDynamic(a)
		if err != nil {
			return zero, err
		}
		argValues[i] = v
	}

	result, err := fp.Call(e.core, program, argValues)
	if err != nil {
		return zero, err
	}
	return castResult[T](e, result)
}

func castResult[T any](e *Engine, result Dynamic) (T, error) {
	var zero T

	// Bail out early when no cast is needed.
	if out, ok := any(result).(T); ok {
		return out, nil
	}

	targetType := reflect.TypeOf(zero)
	if targetType == nil {
		// T is an interface type; hand back the natural Go value.
		v, err := e.marshaller.FromDynamic(result, nil)
		if err != nil {
			return zero, err
		}
		out, _ := v.(T)
		return out, nil
	}

	v, err := e.marshaller.FromDynamic(result, targetType)
	if err != nil {
		return zero, evaluator.MismatchOutputTypeError(targetType.String(), result.TypeName())
	}
	out, ok := v.(T)
	if !ok {
		return zero, evaluator.MismatchOutputTypeError(targetType.String(), result.TypeName())
	}
	return out, nil
}
