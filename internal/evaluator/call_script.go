package evaluator

import (
	"github.com/quill-lang/quill/internal/token"
)

// callScriptFn invokes a script-defined function.
//
// The receiver slot, when present, binds as `this`; the remaining slots bind
// positionally to the parameter names and are consumed. When rewindScope is
// set (the normal case) the scope is truncated back to its pre-call length
// on exit; otherwise variables declared by the body stay visible, which is
// what eval semantics and the raw do-not-rewind entry point rely on.
func (e *Engine) callScriptFn(
	global *GlobalRuntimeState,
	caches *Caches,
	lib []*Module,
	scope *Scope,
	this *Dynamic,
	fn *ScriptFn,
	args []*Dynamic,
	rewindScope bool,
	pos token.Position,
) (Dynamic, error) {
	if fn.Body == nil || len(fn.Body.Stmts) == 0 {
		return Unit(), nil
	}

	if err := e.trackOperation(global, pos); err != nil {
		return Unit(), err
	}

	if e.limits.MaxCallLevels > 0 && global.Lvl > e.limits.MaxCallLevels {
		return Unit(), errStackOverflow(pos)
	}

	if len(args) != len(fn.Params) {
		return Unit(), errFunctionNotFound(fn.Signature(), pos)
	}

	origScopeLen := scope.Len()
	defer func() {
		if rewindScope {
			scope.Rewind(origScopeLen)
		}
	}()

	// A function captured from another compilation unit executes inside its
	// encapsulated environment: its defining library, the imports in effect
	// at capture, and the captured global constants. All three are swapped
	// in under scoped save/restore.
	bodyLib := lib
	if env := fn.Environ; env != nil {
		if env.Lib != nil {
			bodyLib = []*Module{env.Lib}
		}

		origCachesLen := caches.Len()
		caches.Push()
		defer caches.Rewind(origCachesLen)

		origImportsLen := global.NumImports()
		for _, imp := range env.Imports {
			global.PushImport(imp.Alias, imp.Module)
		}
		defer global.TruncateImports(origImportsLen)

		origConstants := global.constants
		if env.Constants != nil {
			global.constants = env.Constants
		}
		defer func() { global.constants = origConstants }()
	}

	// Shared receivers stay borrowed for the duration of the call so that
	// aliases among the remaining arguments are caught as data races.
	if this != nil && this.IsShared() {
		this.lock()
		defer this.unlock()
	}

	for i, param := range fn.Params {
		scope.Push(param, take(args[i]))
	}

	result, err := e.evalStmts(global, caches, bodyLib, scope, this, fn.Body.Stmts, false)
	if err != nil {
		if rv, ok := err.(returnValue); ok {
			return rv.value, nil
		}
		switch {
		case IsKind(err, ErrStackOverflow),
			IsKind(err, ErrTooManyOperations),
			IsKind(err, ErrTerminated):
			return Unit(), err
		}
		src := global.Source
		return Unit(), errInFunctionCall(fn.Name, src, err, pos)
	}
	return result, nil
}
