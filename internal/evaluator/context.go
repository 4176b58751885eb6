package evaluator

import "github.com/quill-lang/quill/internal/token"

// NativeCallContext is the context handed to native host functions: the
// engine, the identity of the call, the global runtime state, and the
// libraries of script functions in effect.
type NativeCallContext struct {
	engine *Engine
	fnName string
	source string
	global *GlobalRuntimeState
	lib    []*Module
	pos    token.Position
}

// Engine returns the calling engine.
func (c *NativeCallContext) Engine() *Engine { return c.engine }

// FnName returns the name the function was called as.
func (c *NativeCallContext) FnName() string { return c.fnName }

// Source returns the source of the current callable, falling back to the
// source of the running compilation unit.
func (c *NativeCallContext) Source() string {
	if c.source != "" {
		return c.source
	}
	return c.global.Source
}

// Position returns the call position.
func (c *NativeCallContext) Position() token.Position { return c.pos }

// Tag returns the custom user state value.
func (c *NativeCallContext) Tag() *Dynamic { return &c.global.Tag }

// IterImports returns the imports in effect, most recently imported first.
func (c *NativeCallContext) IterImports() []ImportEntry {
	imports := c.global.Imports()
	out := make([]ImportEntry, len(imports))
	for i := range imports {
		out[i] = imports[len(imports)-1-i]
	}
	return out
}

// CallFnRaw calls a named function from inside a native function, reusing
// the current global state. When isMethod is set, the first argument slot is
// bound as the method receiver.
//
// All argument slots except a method receiver are consumed.
func (c *NativeCallContext) CallFnRaw(name string, isMethod, isPure bool, args []*Dynamic) (Dynamic, error) {
	caches := NewCaches()

	var hashes FnCallHashes
	if isMethod {
		hashes = HashesFromAll(
			CalcFnHash(nil, name, len(args)-1),
			CalcFnHash(nil, name, len(args)),
		)
	} else {
		hashes = HashesFromHash(CalcFnHash(nil, name, len(args)))
	}

	result, _, err := c.engine.execFnCall(
		c.global, caches, c.lib, nil,
		name, 0, hashes, args, isMethod && isPure, isMethod, c.pos,
	)
	return result, err
}
