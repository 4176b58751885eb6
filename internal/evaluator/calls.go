package evaluator

import (
	"math"
	"strings"

	"github.com/quill-lang/quill/internal/ast"
	"github.com/quill-lang/quill/internal/token"
)

// execFnCall performs an actual function call, native or scripted, after
// special-form redirection. Argument slots other than a mutable receiver are
// consumed.
func (e *Engine) execFnCall(
	global *GlobalRuntimeState,
	caches *Caches,
	lib []*Module,
	scope *Scope,
	fnName string,
	opToken token.Type,
	hashes FnCallHashes,
	args []*Dynamic,
	isRefMut bool,
	isMethodCall bool,
	pos token.Position,
) (Dynamic, bool, error) {
	noMethodErr := func(name string) (Dynamic, bool, error) {
		return Unit(), false, errRuntime(pos,
			"'%s' should not be called this way. Try %s(...);", name, name)
	}

	if err := ensureNoDataRace(fnName, args, isRefMut); err != nil {
		return Unit(), false, fillPos(err, pos)
	}

	global.Lvl++
	defer func() { global.Lvl-- }()

	// These may be redirected from method-style calls.
	if hashes.IsNativeOnly() {
		switch fnName {
		case KeywordTypeOf:
			if len(args) == 1 {
				return NewString(e.getInternedString(args[0].TypeName())), false, nil
			}

		case KeywordIsDefFn:
			if len(args) == 2 {
				fp, isFp := args[0].FnPtr()
				n, isInt := args[1].Int()
				if isFp && isInt {
					defined := false
					if n >= 0 && n <= math.MaxInt64 {
						hashScript := CalcFnHash(nil, fp.FnName(), int(n))
						defined = e.hasScriptFn(global, caches, lib, hashScript)
					}
					return NewBool(defined), false, nil
				}
			}

		case KeywordIsShared:
			if len(args) == 1 {
				return noMethodErr(fnName)
			}

		case KeywordFnPtr, KeywordEval, KeywordIsDefVar:
			if len(args) == 1 {
				return noMethodErr(fnName)
			}

		case KeywordFnPtrCall, KeywordFnPtrCurry:
			if len(args) > 0 {
				return noMethodErr(fnName)
			}
		}
	}

	if !hashes.IsNativeOnly() {
		// Script-defined function call?
		if entry := e.resolveFn(global, caches, lib, 0, hashes.Script(), nil, false, false); entry != nil && entry.Func.IsScript() {
			fn := entry.Func.ScriptFnDef()

			if fn.Body == nil || len(fn.Body.Stmts) == 0 {
				return Unit(), false, nil
			}

			callScope := scope
			if callScope == nil {
				callScope = NewScope()
			}

			origSource := global.Source
			global.Source = entry.Source
			defer func() { global.Source = origSource }()

			if isMethodCall {
				// Method call: the first argument slot becomes `this`.
				result, err := e.callScriptFn(
					global, caches, lib, callScope, args[0], fn, args[1:], true, pos)
				return result, false, err
			}

			// The first argument may be a live reference; protect it from
			// being consumed by parameter binding.
			backup := &argBackup{}
			swap := isRefMut && len(args) > 0
			if swap {
				backup.swapFirst(args)
			}

			result, err := e.callScriptFn(global, caches, lib, callScope, nil, fn, args, true, pos)

			if swap {
				backup.restoreFirst(args)
			}
			backup.assertRestored()
			return result, false, err
		}
	}

	// Native function call.
	result, isMethod, err := e.execNativeFnCall(
		global, caches, lib, fnName, opToken, hashes.Native(), args, isRefMut, pos)
	return result, isMethod, err
}

// getArgValue evaluates one argument expression. Operation accounting is
// charged per argument.
func (e *Engine) getArgValue(
	global *GlobalRuntimeState,
	caches *Caches,
	lib []*Module,
	scope *Scope,
	this *Dynamic,
	argExpr ast.Expr,
) (Dynamic, token.Position, error) {
	if err := e.trackOperation(global, argExpr.Pos()); err != nil {
		return Unit(), argExpr.Pos(), err
	}
	v, err := e.evalExpr(global, caches, lib, scope, this, argExpr)
	return v, argExpr.Pos(), err
}

// evalFnCallExpr lowers a free or operator call expression.
func (e *Engine) evalFnCallExpr(
	global *GlobalRuntimeState,
	caches *Caches,
	lib []*Module,
	scope *Scope,
	this *Dynamic,
	expr *ast.FnCallExpr,
) (Dynamic, error) {
	pos := expr.P

	// Short-circuit native binary operators under fast-operators mode.
	if expr.OpToken != 0 && e.fastOperators && len(expr.Args) == 2 {
		lhs, _, err := e.getArgValue(global, caches, lib, scope, this, expr.Args[0])
		if err != nil {
			return Unit(), err
		}
		lhs = lhs.Flatten()
		rhs, _, err := e.getArgValue(global, caches, lib, scope, this, expr.Args[1])
		if err != nil {
			return Unit(), err
		}
		rhs = rhs.Flatten()

		operands := []*Dynamic{&lhs, &rhs}

		if fn := getBuiltinBinaryOpFn(expr.OpToken, operands[0], operands[1]); fn != nil {
			global.Lvl++
			defer func() { global.Lvl-- }()

			ctx := &NativeCallContext{engine: e, fnName: expr.Name, global: global, lib: lib, pos: pos}
			return fn.fn(ctx, operands)
		}

		hashes := HashesFromNative(CalcFnHash(nil, expr.Name, 2))
		v, _, err := e.execFnCall(
			global, caches, lib, nil, expr.Name, expr.OpToken, hashes, operands, false, false, pos)
		return v, err
	}

	if len(expr.Namespace) > 0 {
		hash := CalcFnHash(expr.Namespace, expr.Name, len(expr.Args))
		return e.makeQualifiedFunctionCall(
			global, caches, lib, scope, this, expr.Namespace, expr.Name, expr.Args, hash, pos)
	}

	argc := len(expr.Args)
	var hashes FnCallHashes
	if expr.OpToken != 0 {
		hashes = HashesFromNative(CalcFnHash(nil, expr.Name, argc))
	} else {
		hashes = HashesFromHash(CalcFnHash(nil, expr.Name, argc))
	}

	return e.makeFunctionCall(
		global, caches, lib, scope, this,
		expr.Name, expr.OpToken, expr.Args, hashes, expr.CaptureScope, pos)
}

// makeFunctionCall lowers a call in normal function-call style, handling the
// special forms before general dispatch.
func (e *Engine) makeFunctionCall(
	global *GlobalRuntimeState,
	caches *Caches,
	lib []*Module,
	scope *Scope,
	this *Dynamic,
	fnName string,
	opToken token.Type,
	argExprs []ast.Expr,
	hashes FnCallHashes,
	captureScope bool,
	pos token.Position,
) (Dynamic, error) {
	name := fnName
	aExprs := argExprs
	totalArgs := len(aExprs)
	var curry []Dynamic

	if opToken == 0 {
		switch name {
		// call(fp, ...) redirects through the function pointer.
		case KeywordFnPtrCall:
			if totalArgs >= 1 {
				argValue, argPos, err := e.getArgValue(global, caches, lib, scope, this, aExprs[0])
				if err != nil {
					return Unit(), err
				}
				fp, ok := argValue.FnPtr()
				if !ok {
					return Unit(), errMismatchOutputType("Fn", argValue.TypeName(), argPos)
				}
				isAnon := fp.IsAnonymous()
				redirected, fnCurry := fp.TakeData()
				curry = append(curry, fnCurry...)

				name = redirected
				aExprs = aExprs[1:]
				totalArgs--

				argsLen := totalArgs + len(curry)
				if !isAnon && !token.IsValidFunctionName(name) {
					hashes = HashesFromNative(CalcFnHash(nil, name, argsLen))
				} else {
					hashes = HashesFromHash(CalcFnHash(nil, name, argsLen))
				}
			}

		// Fn(s) builds a function pointer from a string.
		case KeywordFnPtr:
			if totalArgs == 1 {
				argValue, argPos, err := e.getArgValue(global, caches, lib, scope, this, aExprs[0])
				if err != nil {
					return Unit(), err
				}
				s, ok := argValue.Str()
				if !ok {
					return Unit(), errMismatchOutputType("string", argValue.TypeName(), argPos)
				}
				fp, err := NewFnPtr(s)
				if err != nil {
					return Unit(), fillPos(err, argPos)
				}
				return NewFnPtrValue(fp), nil
			}

		// curry(fp, ...) extends the curried argument list.
		case KeywordFnPtrCurry:
			if totalArgs > 1 {
				argValue, argPos, err := e.getArgValue(global, caches, lib, scope, this, aExprs[0])
				if err != nil {
					return Unit(), err
				}
				fp, ok := argValue.FnPtr()
				if !ok {
					return Unit(), errMismatchOutputType("Fn", argValue.TypeName(), argPos)
				}
				fnName, fnCurry := fp.TakeData()
				for _, expr := range aExprs[1:] {
					v, _, err := e.getArgValue(global, caches, lib, scope, this, expr)
					if err != nil {
						return Unit(), err
					}
					fnCurry = append(fnCurry, v.Flatten())
				}
				return NewFnPtrValue(newFnPtrUnchecked(fnName, fnCurry)), nil
			}

		case KeywordIsShared:
			if totalArgs == 1 {
				argValue, _, err := e.getArgValue(global, caches, lib, scope, this, aExprs[0])
				if err != nil {
					return Unit(), err
				}
				return NewBool(argValue.IsShared()), nil
			}

		case KeywordIsDefFn:
			if totalArgs == 2 {
				argValue, argPos, err := e.getArgValue(global, caches, lib, scope, this, aExprs[0])
				if err != nil {
					return Unit(), err
				}
				s, ok := argValue.Str()
				if !ok {
					return Unit(), errMismatchOutputType("string", argValue.TypeName(), argPos)
				}
				argValue, argPos, err = e.getArgValue(global, caches, lib, scope, this, aExprs[1])
				if err != nil {
					return Unit(), err
				}
				n, ok := argValue.Int()
				if !ok {
					return Unit(), errMismatchOutputType("int", argValue.TypeName(), argPos)
				}
				defined := false
				if n >= 0 && n <= math.MaxInt64 {
					hashScript := CalcFnHash(nil, s, int(n))
					defined = e.hasScriptFn(global, caches, lib, hashScript)
				}
				return NewBool(defined), nil
			}

		case KeywordIsDefVar:
			if totalArgs == 1 {
				argValue, argPos, err := e.getArgValue(global, caches, lib, scope, this, aExprs[0])
				if err != nil {
					return Unit(), err
				}
				s, ok := argValue.Str()
				if !ok {
					return Unit(), errMismatchOutputType("string", argValue.TypeName(), argPos)
				}
				return NewBool(scope.Contains(s)), nil
			}

		case KeywordTypeOf:
			if totalArgs == 1 {
				argValue, _, err := e.getArgValue(global, caches, lib, scope, this, aExprs[0])
				if err != nil {
					return Unit(), err
				}
				return NewString(e.getInternedString(argValue.TypeName())), nil
			}

		// eval(s) compiles and runs text in the current scope.
		case KeywordEval:
			if totalArgs == 1 {
				origScopeLen := scope.Len()
				origImportsLen := global.NumImports()

				argValue, argPos, err := e.getArgValue(global, caches, lib, scope, this, aExprs[0])
				if err != nil {
					return Unit(), err
				}
				s, ok := argValue.Str()
				if !ok {
					return Unit(), errMismatchOutputType("string", argValue.TypeName(), argPos)
				}

				global.Lvl++
				result, err := e.evalScriptExprInPlace(global, caches, lib, scope, this, s, argPos)
				global.Lvl--

				// New variables or imports mis-align every later offset
				// shortcut; force full scope searches from here on.
				if scope.Len() != origScopeLen || global.NumImports() != origImportsLen {
					global.alwaysSearchScope = true
				}

				if err != nil {
					return Unit(), errInFunctionCall(KeywordEval, global.Source, err, argPos)
				}
				return result, nil
			}
		}
	}

	// Normal function call.
	var argValues []Dynamic
	var args []*Dynamic
	isRefMut := false

	// Capturing the parent scope means the first argument cannot be borrowed
	// mutably: everything is passed by value and the scope goes along.
	if captureScope && !scope.IsEmpty() {
		argValues = make([]Dynamic, 0, totalArgs)
		for _, expr := range aExprs {
			v, _, err := e.getArgValue(global, caches, lib, scope, this, expr)
			if err != nil {
				return Unit(), err
			}
			argValues = append(argValues, v.Flatten())
		}
		for i := range curry {
			args = append(args, &curry[i])
		}
		for i := range argValues {
			args = append(args, &argValues[i])
		}

		v, _, err := e.execFnCall(
			global, caches, lib, scope, name, opToken, hashes, args, false, false, pos)
		return v, err
	}

	if totalArgs == 0 && len(curry) == 0 {
		// No arguments.
	} else if len(curry) == 0 && totalArgs > 0 && ast.IsVariableAccess(aExprs[0]) {
		// If the first argument is a variable, convert to method-call style
		// to borrow it mutably instead of cloning.
		firstExpr := aExprs[0].(*ast.Ident)

		argValues = make([]Dynamic, 0, totalArgs-1)
		for _, expr := range aExprs[1:] {
			v, _, err := e.getArgValue(global, caches, lib, scope, this, expr)
			if err != nil {
				return Unit(), err
			}
			argValues = append(argValues, v.Flatten())
		}

		target, err := e.searchScope(global, scope, firstExpr)
		if err != nil {
			return Unit(), err
		}

		if err := e.trackOperation(global, firstExpr.P); err != nil {
			return Unit(), err
		}

		if target.isRef && target.ref.IsReadOnly() {
			// A constant is rebound to an owned copy so the caller's slot
			// can never be consumed; the read-only flag stays with it.
			target.temp = target.ref.Clone()
			target.ref = &target.temp
			target.isRef = false
		}

		if target.ref.IsShared() || !target.isRef {
			argValues = append([]Dynamic{target.ref.Flatten()}, argValues...)
		} else {
			// Borrow the caller's slot as the mutable first argument.
			isRefMut = true
			args = append(args, target.ref)
		}
		for i := range argValues {
			args = append(args, &argValues[i])
		}
	} else {
		argValues = make([]Dynamic, 0, totalArgs)
		for _, expr := range aExprs {
			v, _, err := e.getArgValue(global, caches, lib, scope, this, expr)
			if err != nil {
				return Unit(), err
			}
			argValues = append(argValues, v.Flatten())
		}
		for i := range curry {
			args = append(args, &curry[i])
		}
		for i := range argValues {
			args = append(args, &argValues[i])
		}
	}

	v, _, err := e.execFnCall(
		global, caches, lib, nil, name, opToken, hashes, args, isRefMut, false, pos)
	return v, err
}

// callTarget is the receiver of a method-style call: either a mutable
// reference into caller-owned storage or an owned temporary.
type callTarget struct {
	ref   *Dynamic
	isRef bool
	temp  Dynamic
}

// searchScope resolves a variable expression to a mutable target.
func (e *Engine) searchScope(global *GlobalRuntimeState, scope *Scope, ident *ast.Ident) (*callTarget, error) {
	if e.resolveVar != nil {
		if v, ok := e.resolveVar(ident.Name); ok {
			t := &callTarget{temp: v}
			t.ref = &t.temp
			return t, nil
		}
	}
	if i, ok := scope.index(ident.Name); ok {
		return &callTarget{ref: scope.valueRef(i), isRef: true}, nil
	}
	if v, ok := global.Constant(ident.Name); ok {
		t := &callTarget{temp: v.Clone()}
		t.ref = &t.temp
		return t, nil
	}
	return nil, errVariableNotFound(ident.Name, ident.P)
}

// makeMethodCall lowers a method-style call `target.name(args)`. Call
// arguments are evaluated before the receiver, which is borrowed last.
func (e *Engine) makeMethodCall(
	global *GlobalRuntimeState,
	caches *Caches,
	lib []*Module,
	fnName string,
	target *callTarget,
	callArgs []Dynamic,
	firstArgPos token.Position,
	pos token.Position,
) (Dynamic, error) {
	isRefMut := target.isRef

	if fp, ok := target.ref.FnPtr(); ok && fnName == KeywordFnPtrCall {
		// fp.call(...): the pointer itself is the callee, not a receiver.
		isAnon := fp.IsAnonymous()
		name := fp.FnName()
		argsLen := len(callArgs) + len(fp.Curry())

		var hashes FnCallHashes
		if !isAnon && !token.IsValidFunctionName(name) {
			hashes = HashesFromNative(CalcFnHash(nil, name, argsLen))
		} else {
			hashes = HashesFromHash(CalcFnHash(nil, name, argsLen))
		}

		curry := make([]Dynamic, len(fp.Curry()))
		for i, c := range fp.Curry() {
			curry[i] = c.Clone()
		}
		args := make([]*Dynamic, 0, len(curry)+len(callArgs))
		for i := range curry {
			args = append(args, &curry[i])
		}
		for i := range callArgs {
			args = append(args, &callArgs[i])
		}

		v, _, err := e.execFnCall(
			global, caches, lib, nil, name, 0, hashes, args, false, false, pos)
		return v, err
	}

	switch fnName {
	case KeywordFnPtrCall:
		// x.call(fp, ...): call fp with x as the bound receiver.
		if len(callArgs) == 0 {
			return Unit(), errMismatchOutputType("Fn", target.ref.TypeName(), pos)
		}
		fp, ok := callArgs[0].FnPtr()
		if !ok {
			return Unit(), errMismatchOutputType("Fn", callArgs[0].TypeName(), firstArgPos)
		}
		isAnon := fp.IsAnonymous()
		name, fnCurry := fp.TakeData()
		rest := callArgs[1:]
		argsLen := len(rest) + len(fnCurry)

		var hashes FnCallHashes
		if !isAnon && !token.IsValidFunctionName(name) {
			hashes = HashesFromNative(CalcFnHash(nil, name, argsLen+1))
		} else {
			hashes = HashesFromAll(
				CalcFnHash(nil, name, argsLen),
				CalcFnHash(nil, name, argsLen+1),
			)
		}

		args := make([]*Dynamic, 0, len(fnCurry)+len(rest)+1)
		args = append(args, target.ref)
		for i := range fnCurry {
			args = append(args, &fnCurry[i])
		}
		for i := range rest {
			args = append(args, &rest[i])
		}

		v, _, err := e.execFnCall(
			global, caches, lib, nil, name, 0, hashes, args, isRefMut, true, pos)
		return v, err

	case KeywordFnPtrCurry:
		fp, ok := target.ref.FnPtr()
		if !ok {
			return Unit(), errMismatchOutputType("Fn", target.ref.TypeName(), pos)
		}
		if len(callArgs) == 0 {
			return NewFnPtrValue(newFnPtrUnchecked(fp.FnName(), append([]Dynamic(nil), fp.Curry()...))), nil
		}
		curry := append([]Dynamic(nil), fp.Curry()...)
		for i := range callArgs {
			curry = append(curry, take(&callArgs[i]))
		}
		return NewFnPtrValue(newFnPtrUnchecked(fp.FnName(), curry)), nil

	case KeywordIsShared:
		if len(callArgs) == 0 {
			return NewBool(target.ref.IsShared()), nil
		}
	}

	name := fnName
	args := callArgs

	// Map method call: a map field holding a function pointer is called with
	// the pointer's own name and curry.
	if m, ok := target.ref.Map(); ok {
		if val, ok := m[name]; ok {
			if fp, ok := val.FnPtr(); ok {
				name = fp.FnName()
				if fp.IsCurried() {
					merged := make([]Dynamic, 0, len(fp.Curry())+len(args))
					for _, c := range fp.Curry() {
						merged = append(merged, c.Clone())
					}
					for i := range args {
						merged = append(merged, take(&args[i]))
					}
					args = merged
				}
			}
		}
	}

	argsLen := len(args)
	var hashes FnCallHashes
	if token.IsValidFunctionName(name) {
		hashes = HashesFromAll(
			CalcFnHash(nil, name, argsLen),
			CalcFnHash(nil, name, argsLen+1),
		)
	} else {
		hashes = HashesFromNative(CalcFnHash(nil, name, argsLen+1))
	}

	slots := make([]*Dynamic, 0, argsLen+1)
	slots = append(slots, target.ref)
	for i := range args {
		slots = append(slots, &args[i])
	}

	v, _, err := e.execFnCall(
		global, caches, lib, nil, name, 0, hashes, slots, isRefMut, true, pos)
	return v, err
}

// makeQualifiedFunctionCall lowers a namespace-qualified call. The qualified
// module carries its own function universe, so a fresh resolution cache is
// pushed for the duration and the stack rewound after.
func (e *Engine) makeQualifiedFunctionCall(
	global *GlobalRuntimeState,
	caches *Caches,
	lib []*Module,
	scope *Scope,
	this *Dynamic,
	namespace []string,
	fnName string,
	argExprs []ast.Expr,
	hash uint64,
	pos token.Position,
) (Dynamic, error) {
	var argValues []Dynamic
	var args []*Dynamic
	var firstArgValue *Dynamic

	if len(argExprs) > 0 {
		if ast.IsVariableAccess(argExprs[0]) {
			// func(x, ...) -> x.func(...) to borrow the first argument.
			argValues = append(argValues, Unit())
			for _, expr := range argExprs[1:] {
				v, _, err := e.getArgValue(global, caches, lib, scope, this, expr)
				if err != nil {
					return Unit(), err
				}
				argValues = append(argValues, v.Flatten())
			}

			firstExpr := argExprs[0].(*ast.Ident)
			target, err := e.searchScope(global, scope, firstExpr)
			if err != nil {
				return Unit(), err
			}
			if err := e.trackOperation(global, firstExpr.P); err != nil {
				return Unit(), err
			}

			if target.ref.IsShared() || !target.isRef {
				argValues[0] = target.ref.Flatten()
				for i := range argValues {
					args = append(args, &argValues[i])
				}
			} else {
				firstArgValue = &argValues[0]
				args = append(args, target.ref)
				for i := 1; i < len(argValues); i++ {
					args = append(args, &argValues[i])
				}
			}
		} else {
			for _, expr := range argExprs {
				v, _, err := e.getArgValue(global, caches, lib, scope, this, expr)
				if err != nil {
					return Unit(), err
				}
				argValues = append(argValues, v.Flatten())
			}
			for i := range argValues {
				args = append(args, &argValues[i])
			}
		}
	}

	// Resolve the root namespace through the imports stack, then the
	// engine's static sub-modules.
	module := global.FindImport(namespace[0])
	if module == nil {
		module = e.staticModules[namespace[0]]
	}
	if module == nil {
		return Unit(), errModuleNotFound(strings.Join(namespace, "::"), pos)
	}

	origCachesLen := caches.Len()
	caches.Push()
	defer caches.Rewind(origCachesLen)

	// Script functions first (they may override natives), then natives by
	// typed hash, then wildcard fallback.
	fn := module.GetQualifiedFn(hash)
	if fn == nil {
		if err := e.trackOperation(global, pos); err != nil {
			return Unit(), err
		}
		fn = module.GetQualifiedFn(CalcFnHashFull(hash, argTypeIDs(args)))
	}

	if fn == nil && len(args) > 0 {
		numArgs := len(args)
		n := numArgs
		if n > maxDynamicParams {
			n = maxDynamicParams
		}
		maxBitmask := 1 << n

		for bitmask := 1; bitmask < maxBitmask; bitmask++ {
			ids := make([]TypeID, numArgs)
			for i, a := range args {
				mask := 1 << (numArgs - i - 1)
				if bitmask&mask == 0 {
					ids[i] = a.TypeID()
				} else {
					ids[i] = TypeDynamic
				}
			}

			if err := e.trackOperation(global, pos); err != nil {
				return Unit(), err
			}

			if f := module.GetQualifiedFn(CalcFnHashFull(hash, ids)); f != nil {
				fn = f
				break
			}
		}
	}

	// When the resolved function turns out not to be a method, the borrowed
	// first argument must be handed over as a clone instead.
	if (fn == nil || !fn.IsMethod()) && firstArgValue != nil {
		*firstArgValue = args[0].Clone()
		args[0] = firstArgValue
	}

	global.Lvl++
	defer func() { global.Lvl-- }()

	switch {
	case fn == nil:
		sig := e.genFnCallSignature(fnName, args)
		if len(namespace) > 0 {
			sig = strings.Join(namespace, "::") + "::" + sig
		}
		return Unit(), errFunctionNotFound(sig, pos)

	case fn.IsScript():
		def := fn.ScriptFnDef()
		newScope := NewScope()

		origSource := global.Source
		global.Source = module.ID()
		defer func() { global.Source = origSource }()

		return e.callScriptFn(global, caches, lib, newScope, nil, def, args, true, pos)

	case fn.IsPluginFn():
		if fn.IsMethod() && len(args) > 0 && args[0].IsReadOnly() {
			return Unit(), errNonPureMethodCallOnConstant(fnName, pos)
		}
		ctx := &NativeCallContext{engine: e, fnName: fnName, source: module.ID(), global: global, lib: lib, pos: pos}
		result, err := fn.fn(ctx, args)
		return e.checkReturnValue(result, err, pos)

	default:
		ctx := &NativeCallContext{engine: e, fnName: fnName, source: module.ID(), global: global, lib: lib, pos: pos}
		result, err := fn.fn(ctx, args)
		return e.checkReturnValue(result, err, pos)
	}
}

// evalScriptExprInPlace compiles and runs script text inside the current
// scope, for the eval special form. Optimizations are disabled since the
// text runs once; declaring new functions inside it is an error.
func (e *Engine) evalScriptExprInPlace(
	global *GlobalRuntimeState,
	caches *Caches,
	lib []*Module,
	scope *Scope,
	this *Dynamic,
	script string,
	pos token.Position,
) (Dynamic, error) {
	if err := e.trackOperation(global, pos); err != nil {
		return Unit(), err
	}

	script = strings.TrimSpace(script)
	if script == "" {
		return Unit(), nil
	}

	program, err := e.compileWithOptions(script, global.Source, OptNone)
	if err != nil {
		return Unit(), err
	}

	if program.lib.Count() > 0 {
		return Unit(), errWrongFnDefinition(pos)
	}

	if len(program.stmts) == 0 {
		return Unit(), nil
	}

	return e.evalStmts(global, caches, lib, scope, this, program.stmts, false)
}
