package evaluator

import "github.com/quill-lang/quill/internal/token"

// Run executes a program's top-level statements against the given scope and
// returns the value of the last statement.
func (e *Engine) Run(scope *Scope, program *Program) (Dynamic, error) {
	global := NewGlobalRuntimeState(e)
	caches := NewCaches()
	lib := []*Module{program.lib}

	origResolver := global.embeddedModuleResolver
	global.embeddedModuleResolver = program.resolver
	defer func() { global.embeddedModuleResolver = origResolver }()

	global.Source = program.source

	return e.evalStmts(global, caches, lib, scope, nil, program.stmts, false)
}

// CallFn calls a named script function in a compiled program and returns the
// raw result. The program's top-level statements run first so imports and
// constants register, and the scope is rewound afterwards.
func (e *Engine) CallFn(scope *Scope, program *Program, name string, args []Dynamic) (Dynamic, error) {
	return e.CallFnRaw(scope, program, true, true, name, nil, args)
}

// CallFnRaw is the low-level named-function entry point.
//
// Options:
//   - evalAST: whether to execute the program's top-level statements first.
//   - rewindScope: whether to truncate the scope after the call; leaving it
//     unwound keeps top-level variables declared by the function visible.
//   - this: an optional receiver to bind for the duration of the call.
//
// All argument values are consumed: they are replaced by unit.
func (e *Engine) CallFnRaw(
	scope *Scope,
	program *Program,
	evalAST bool,
	rewindScope bool,
	name string,
	this *Dynamic,
	argValues []Dynamic,
) (Dynamic, error) {
	global := NewGlobalRuntimeState(e)
	caches := NewCaches()
	return e.callFnInternal(global, caches, scope, program, evalAST, rewindScope, name, this, argValues)
}

func (e *Engine) callFnInternal(
	global *GlobalRuntimeState,
	caches *Caches,
	scope *Scope,
	program *Program,
	evalAST bool,
	rewindScope bool,
	name string,
	this *Dynamic,
	argValues []Dynamic,
) (Dynamic, error) {
	lib := []*Module{program.lib}

	origScopeLen := scope.Len()

	origResolver := global.embeddedModuleResolver
	global.embeddedModuleResolver = program.resolver
	defer func() { global.embeddedModuleResolver = origResolver }()

	origSource := global.Source
	global.Source = program.source
	defer func() { global.Source = origSource }()

	if evalAST && len(program.stmts) > 0 {
		if _, err := e.evalStmts(global, caches, lib, scope, nil, program.stmts, false); err != nil {
			return Unit(), err
		}
		if rewindScope {
			scope.Rewind(origScopeLen)
		}
	}

	args := make([]*Dynamic, len(argValues))
	for i := range argValues {
		args[i] = &argValues[i]
	}

	if err := ensureNoDataRace(name, args, false); err != nil {
		return Unit(), err
	}

	fn := program.lib.GetScriptFn(name, len(args))
	if fn == nil {
		return Unit(), errFunctionNotFound(name, token.None)
	}

	result, err := e.callScriptFn(
		global, caches, lib, scope, this, fn, args, rewindScope, token.None)
	if err != nil {
		return Unit(), err
	}

	if e.debugStep != nil {
		global.debugger.Status = DebugTerminate
	}
	return result, nil
}
