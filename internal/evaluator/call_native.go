package evaluator

import (
	"strconv"
	"strings"

	"github.com/quill-lang/quill/internal/token"
)

// ensureNoDataRace verifies that no argument slot aliases a shared cell that
// is already borrowed. The first slot is skipped when it is the mutable
// receiver, since that borrow is the legitimate one.
func ensureNoDataRace(fnName string, args []*Dynamic, isRefMut bool) error {
	start := 0
	if isRefMut {
		start = 1
	}
	for i := start; i < len(args); i++ {
		if args[i].isLocked() {
			return errDataRace(
				"argument #"+strconv.Itoa(i+1)+" of function '"+fnName+"'",
				token.None,
			)
		}
	}
	return nil
}

// execNativeFnCall resolves and invokes a native (host-registered, plugin or
// built-in operator) function.
//
// Argument slots other than the first are consumed by the callee. When a
// pure function is invoked through a mutable first-argument reference, the
// slot is swapped for a clone for the duration of the call so the caller's
// storage survives; the swap is restored on every exit path.
func (e *Engine) execNativeFnCall(
	global *GlobalRuntimeState,
	caches *Caches,
	lib []*Module,
	name string,
	opToken token.Type,
	hash uint64,
	args []*Dynamic,
	isRefMut bool,
	pos token.Position,
) (Dynamic, bool, error) {
	if err := e.trackOperation(global, pos); err != nil {
		return Unit(), false, err
	}

	entry := e.resolveFn(global, caches, lib, opToken, hash, args, true, true)

	if entry != nil {
		fn := entry.Func
		isMethod := fn.IsMethod()

		backup := &argBackup{}
		swap := isRefMut && fn.IsPure() && len(args) > 0
		if swap {
			backup.swapFirst(args)
		}

		origCallStackLen := len(global.debugger.frames)
		if e.debugStep != nil {
			frameArgs := make([]Dynamic, len(args))
			for i, a := range args {
				frameArgs[i] = a.Clone()
			}
			src := entry.Source
			if src == "" {
				src = global.Source
			}
			global.debugger.pushFrame(CallFrame{FnName: name, Args: frameArgs, Source: src, Pos: pos})
		}

		ctx := &NativeCallContext{
			engine: e,
			fnName: name,
			source: entry.Source,
			global: global,
			lib:    lib,
			pos:    pos,
		}

		var result Dynamic
		var err error
		if fn.IsPluginFn() && fn.IsMethod() && len(args) > 0 && args[0].IsReadOnly() {
			err = errNonPureMethodCallOnConstant(name, pos)
		} else {
			result, err = fn.fn(ctx, args)
		}

		if e.debugStep != nil {
			if stepErr := e.debugStep(global.debugger.CallStack(), pos); stepErr != nil && err == nil {
				err = stepErr
			}
			global.debugger.rewindCallStack(origCallStackLen)
		}

		if swap {
			backup.restoreFirst(args)
		}
		backup.assertRestored()

		result, err = e.checkReturnValue(result, err, pos)
		if err != nil {
			return Unit(), false, err
		}

		// A mutated receiver may have grown past the data limits.
		if isRefMut && len(args) > 0 {
			if err := e.checkDataSize(args[0], pos); err != nil {
				return Unit(), false, err
			}
		}

		switch name {
		case KeywordPrint:
			text, ok := result.Str()
			if !ok {
				return Unit(), false, errMismatchOutputType("string", result.TypeName(), pos)
			}
			e.print(text)
			return Unit(), false, nil
		case KeywordDebug:
			text, ok := result.Str()
			if !ok {
				return Unit(), false, errMismatchOutputType("string", result.TypeName(), pos)
			}
			e.debug(text, global.Source, pos)
			return Unit(), false, nil
		}
		return result, isMethod, nil
	}

	// Nothing resolved: render the failure by what was being looked up.
	switch {
	case name == FnIdxGet && len(args) == 2:
		t0 := e.mapTypeName(args[0].TypeName())
		t1 := e.mapTypeName(args[1].TypeName())
		return Unit(), false, errIndexingType(t0+" ["+t1+"]", pos)

	case name == FnIdxSet && len(args) == 3:
		t0 := e.mapTypeName(args[0].TypeName())
		t1 := e.mapTypeName(args[1].TypeName())
		t2 := e.mapTypeName(args[2].TypeName())
		return Unit(), false, errIndexingType(t0+" ["+t1+"] = "+t2, pos)

	case strings.HasPrefix(name, FnGet) && len(args) == 1:
		prop := name[len(FnGet):]
		t0 := e.mapTypeName(args[0].TypeName())
		return Unit(), false, errDotExpr(
			"Unknown property '"+prop+"' - a getter is not registered for type '"+t0+"'", pos)

	case strings.HasPrefix(name, FnSet) && len(args) == 2:
		prop := name[len(FnSet):]
		t0 := e.mapTypeName(args[0].TypeName())
		t1 := e.mapTypeName(args[1].TypeName())
		return Unit(), false, errDotExpr(
			"No writable property '"+prop+"' - a setter is not registered for type '"+t0+"' to handle '"+t1+"'", pos)

	default:
		return Unit(), false, errFunctionNotFound(e.genFnCallSignature(name, args), pos)
	}
}
