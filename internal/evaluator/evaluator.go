package evaluator

import (
	"github.com/quill-lang/quill/internal/ast"
	"github.com/quill-lang/quill/internal/token"
)

// evalStmts runs a statement list. The value of the list is the value of its
// last statement; when rewind is set the scope is truncated back afterwards,
// giving block-local variable scoping.
func (e *Engine) evalStmts(
	global *GlobalRuntimeState,
	caches *Caches,
	lib []*Module,
	scope *Scope,
	this *Dynamic,
	stmts []ast.Stmt,
	rewind bool,
) (Dynamic, error) {
	origLen := scope.Len()
	result := Unit()
	for _, stmt := range stmts {
		var err error
		result, err = e.evalStmt(global, caches, lib, scope, this, stmt)
		if err != nil {
			if rewind {
				scope.Rewind(origLen)
			}
			return Unit(), err
		}
	}
	if rewind {
		scope.Rewind(origLen)
	}
	return result, nil
}

func (e *Engine) evalStmt(
	global *GlobalRuntimeState,
	caches *Caches,
	lib []*Module,
	scope *Scope,
	this *Dynamic,
	stmt ast.Stmt,
) (Dynamic, error) {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		return e.evalExpr(global, caches, lib, scope, this, s.E)

	case *ast.LetStmt:
		v, err := e.evalExpr(global, caches, lib, scope, this, s.Value)
		if err != nil {
			return Unit(), err
		}
		if e.defVarFilter != nil && !e.defVarFilter(s.Name, s.Const) {
			return Unit(), errRuntime(s.P, "definition of variable %q is not allowed", s.Name)
		}
		name := e.getInternedString(s.Name)
		if s.Const {
			scope.PushConstant(name, v)
			if global.Lvl == 0 {
				global.setConstant(name, v.Clone())
			}
		} else {
			scope.Push(name, v)
		}
		return Unit(), nil

	case *ast.ReturnStmt:
		v := Unit()
		if s.Value != nil {
			var err error
			v, err = e.evalExpr(global, caches, lib, scope, this, s.Value)
			if err != nil {
				return Unit(), err
			}
		}
		return Unit(), returnValue{value: v}

	case *ast.IfStmt:
		cond, err := e.evalExpr(global, caches, lib, scope, this, s.Cond)
		if err != nil {
			return Unit(), err
		}
		b, ok := cond.Bool()
		if !ok {
			return Unit(), errRuntime(s.P, "if condition is %s, not a boolean", cond.TypeName())
		}
		if b {
			return e.evalStmts(global, caches, lib, scope, this, s.Then.Stmts, true)
		}
		if s.Else != nil {
			return e.evalStmt(global, caches, lib, scope, this, s.Else)
		}
		return Unit(), nil

	case *ast.WhileStmt:
		for {
			cond, err := e.evalExpr(global, caches, lib, scope, this, s.Cond)
			if err != nil {
				return Unit(), err
			}
			b, ok := cond.Bool()
			if !ok {
				return Unit(), errRuntime(s.P, "while condition is %s, not a boolean", cond.TypeName())
			}
			if !b {
				return Unit(), nil
			}
			if _, err := e.evalStmts(global, caches, lib, scope, this, s.Body.Stmts, true); err != nil {
				if _, isBreak := err.(breakLoop); isBreak {
					return Unit(), nil
				}
				if _, isContinue := err.(continueLoop); isContinue {
					continue
				}
				return Unit(), err
			}
		}

	case *ast.BlockStmt:
		return e.evalStmts(global, caches, lib, scope, this, s.Stmts, true)

	case *ast.BreakStmt:
		return Unit(), breakLoop{}

	case *ast.ContinueStmt:
		return Unit(), continueLoop{}

	case *ast.ImportStmt:
		return e.evalImportStmt(global, scope, s)

	default:
		return Unit(), errRuntime(stmt.Pos(), "unsupported statement")
	}
}

func (e *Engine) evalImportStmt(global *GlobalRuntimeState, _ *Scope, s *ast.ImportStmt) (Dynamic, error) {
	if err := e.trackOperation(global, s.P); err != nil {
		return Unit(), err
	}
	resolver := global.embeddedModuleResolver
	if resolver == nil {
		resolver = e.moduleResolver
	}
	if resolver == nil {
		return Unit(), errModuleNotFound(s.Path, s.P)
	}
	if e.limits.MaxModules > 0 && global.NumImports() >= e.limits.MaxModules {
		return Unit(), errRuntime(s.P, "number of modules over maximum limit")
	}
	m, err := resolver.Resolve(e, s.Path, s.P)
	if err != nil {
		return Unit(), fillPos(err, s.P)
	}
	global.PushImport(e.getInternedString(s.Alias), m)
	return Unit(), nil
}

func (e *Engine) evalExpr(
	global *GlobalRuntimeState,
	caches *Caches,
	lib []*Module,
	scope *Scope,
	this *Dynamic,
	expr ast.Expr,
) (Dynamic, error) {
	switch x := expr.(type) {
	case *ast.IntLit:
		return NewInt(x.Value), nil
	case *ast.FloatLit:
		return NewFloat(x.Value), nil
	case *ast.BoolLit:
		return NewBool(x.Value), nil
	case *ast.StringLit:
		return NewString(e.getInternedString(x.Value)), nil
	case *ast.CharLit:
		return NewChar(x.Value), nil
	case *ast.UnitLit:
		return Unit(), nil

	case *ast.Ident:
		if e.resolveVar != nil {
			if v, ok := e.resolveVar(x.Name); ok {
				return v, nil
			}
		}
		if v, ok := scope.Get(x.Name); ok {
			return v, nil
		}
		if v, ok := global.Constant(x.Name); ok {
			return v.Clone(), nil
		}
		return Unit(), errVariableNotFound(x.Name, x.P)

	case *ast.ThisExpr:
		if this == nil {
			return Unit(), errRuntime(x.P, "'this' is not bound")
		}
		return this.Clone(), nil

	case *ast.ArrayLit:
		elems := make([]Dynamic, 0, len(x.Elems))
		for _, el := range x.Elems {
			v, err := e.evalExpr(global, caches, lib, scope, this, el)
			if err != nil {
				return Unit(), err
			}
			elems = append(elems, v.Flatten())
		}
		arr := NewArray(elems)
		if err := e.checkDataSize(&arr, x.P); err != nil {
			return Unit(), err
		}
		return arr, nil

	case *ast.MapLit:
		m := make(map[string]Dynamic, len(x.Keys))
		for i, key := range x.Keys {
			v, err := e.evalExpr(global, caches, lib, scope, this, x.Values[i])
			if err != nil {
				return Unit(), err
			}
			m[e.getInternedString(key)] = v.Flatten()
		}
		mv := NewMap(m)
		if err := e.checkDataSize(&mv, x.P); err != nil {
			return Unit(), err
		}
		return mv, nil

	case *ast.UnaryExpr:
		return e.evalUnary(global, caches, lib, scope, this, x)

	case *ast.AndExpr:
		l, err := e.evalExpr(global, caches, lib, scope, this, x.L)
		if err != nil {
			return Unit(), err
		}
		lb, ok := l.Bool()
		if !ok {
			return Unit(), errRuntime(x.P, "logical operand is %s, not a boolean", l.TypeName())
		}
		if !lb {
			return NewBool(false), nil
		}
		r, err := e.evalExpr(global, caches, lib, scope, this, x.R)
		if err != nil {
			return Unit(), err
		}
		rb, ok := r.Bool()
		if !ok {
			return Unit(), errRuntime(x.P, "logical operand is %s, not a boolean", r.TypeName())
		}
		return NewBool(rb), nil

	case *ast.OrExpr:
		l, err := e.evalExpr(global, caches, lib, scope, this, x.L)
		if err != nil {
			return Unit(), err
		}
		lb, ok := l.Bool()
		if !ok {
			return Unit(), errRuntime(x.P, "logical operand is %s, not a boolean", l.TypeName())
		}
		if lb {
			return NewBool(true), nil
		}
		r, err := e.evalExpr(global, caches, lib, scope, this, x.R)
		if err != nil {
			return Unit(), err
		}
		rb, ok := r.Bool()
		if !ok {
			return Unit(), errRuntime(x.P, "logical operand is %s, not a boolean", r.TypeName())
		}
		return NewBool(rb), nil

	case *ast.AssignExpr:
		return e.evalAssign(global, caches, lib, scope, this, x)

	case *ast.IndexExpr:
		idx, err := e.evalExpr(global, caches, lib, scope, this, x.Index)
		if err != nil {
			return Unit(), err
		}
		idx = idx.Flatten()
		target, isRefMut, err := e.evalTarget(global, caches, lib, scope, this, x.Target)
		if err != nil {
			return Unit(), err
		}
		args := []*Dynamic{target, &idx}
		v, _, err := e.execNativeFnCall(
			global, caches, lib, FnIdxGet, 0,
			CalcFnHash(nil, FnIdxGet, 2), args, isRefMut, x.P)
		return v, err

	case *ast.PropertyExpr:
		target, isRefMut, err := e.evalTarget(global, caches, lib, scope, this, x.Target)
		if err != nil {
			return Unit(), err
		}
		if m, ok := target.Map(); ok {
			if v, ok := m[x.Name]; ok {
				return v.Clone(), nil
			}
			return Unit(), errDotExpr("Unknown property '"+x.Name+"' in map", x.P)
		}
		args := []*Dynamic{target}
		v, _, err := e.execNativeFnCall(
			global, caches, lib, FnGet+x.Name, 0,
			CalcFnHash(nil, FnGet+x.Name, 1), args, isRefMut, x.P)
		return v, err

	case *ast.FnCallExpr:
		return e.evalFnCallExpr(global, caches, lib, scope, this, x)

	case *ast.MethodCallExpr:
		// Arguments evaluate left to right; the receiver is borrowed last.
		callArgs := make([]Dynamic, 0, len(x.Args))
		firstArgPos := token.None
		for i, argExpr := range x.Args {
			if i == 0 {
				firstArgPos = argExpr.Pos()
			}
			v, _, err := e.getArgValue(global, caches, lib, scope, this, argExpr)
			if err != nil {
				return Unit(), err
			}
			callArgs = append(callArgs, v.Flatten())
		}

		target, err := e.evalMethodTarget(global, caches, lib, scope, this, x.Target)
		if err != nil {
			return Unit(), err
		}
		return e.makeMethodCall(global, caches, lib, x.Name, target, callArgs, firstArgPos, x.P)

	case *ast.FnPtrLit:
		return NewFnPtrValue(newFnPtrUnchecked(x.Name, nil)), nil

	default:
		return Unit(), errRuntime(expr.Pos(), "unsupported expression")
	}
}

func (e *Engine) evalUnary(
	global *GlobalRuntimeState,
	caches *Caches,
	lib []*Module,
	scope *Scope,
	this *Dynamic,
	x *ast.UnaryExpr,
) (Dynamic, error) {
	v, err := e.evalExpr(global, caches, lib, scope, this, x.Operand)
	if err != nil {
		return Unit(), err
	}
	switch x.Op {
	case token.MINUS:
		if i, ok := v.Int(); ok {
			return NewInt(-i), nil
		}
		if f, ok := v.Float(); ok {
			return NewFloat(-f), nil
		}
		return Unit(), errRuntime(x.P, "cannot negate %s", v.TypeName())
	case token.BANG:
		if b, ok := v.Bool(); ok {
			return NewBool(!b), nil
		}
		return Unit(), errRuntime(x.P, "cannot apply '!' to %s", v.TypeName())
	}
	return Unit(), errRuntime(x.P, "unsupported unary operator")
}

// evalTarget resolves an expression into a first-argument slot, reporting
// whether the slot is a live mutable reference.
func (e *Engine) evalTarget(
	global *GlobalRuntimeState,
	caches *Caches,
	lib []*Module,
	scope *Scope,
	this *Dynamic,
	expr ast.Expr,
) (*Dynamic, bool, error) {
	t, err := e.evalMethodTarget(global, caches, lib, scope, this, expr)
	if err != nil {
		return nil, false, err
	}
	return t.ref, t.isRef, nil
}

// evalMethodTarget resolves the receiver of a method-style call. Variable
// receivers that are not shared are borrowed mutably, constants included
// (they keep their read-only flag for the dispatch checks); everything else
// is owned by a temporary.
func (e *Engine) evalMethodTarget(
	global *GlobalRuntimeState,
	caches *Caches,
	lib []*Module,
	scope *Scope,
	this *Dynamic,
	expr ast.Expr,
) (*callTarget, error) {
	switch x := expr.(type) {
	case *ast.Ident:
		target, err := e.searchScope(global, scope, x)
		if err != nil {
			return nil, err
		}
		if target.isRef && target.ref.IsShared() {
			// Shared receivers are cloned into the argument list; the cell
			// keeps aliasing the caller's storage.
			target.temp = target.ref.Clone()
			target.ref = &target.temp
			target.isRef = false
		}
		return target, nil
	case *ast.ThisExpr:
		if this == nil {
			return nil, errRuntime(x.P, "'this' is not bound")
		}
		return &callTarget{ref: this, isRef: true}, nil

	case *ast.IndexExpr:
		// Chained container access keeps referring into the parent so that
		// nested writes land in caller-owned storage.
		parent, err := e.evalMethodTarget(global, caches, lib, scope, this, x.Target)
		if err != nil {
			return nil, err
		}
		idx, err := e.evalExpr(global, caches, lib, scope, this, x.Index)
		if err != nil {
			return nil, err
		}
		if arr, ok := parent.ref.Array(); ok {
			if i, isInt := idx.Int(); isInt {
				if i < 0 || i >= int64(len(arr)) {
					return nil, errRuntime(x.P, "array index %d out of bounds (len %d)", i, len(arr))
				}
				return &callTarget{ref: &arr[i], isRef: parent.isRef}, nil
			}
		}
		if mp, ok := parent.ref.Map(); ok {
			if k, isStr := idx.Str(); isStr {
				if child, found := mp[k]; found {
					// The copy shares container payloads with the map entry,
					// so nested container writes remain visible.
					t := &callTarget{temp: child}
					t.ref = &t.temp
					return t, nil
				}
				return nil, errRuntime(x.P, "map key %q not found", k)
			}
		}
		v, err := e.evalExpr(global, caches, lib, scope, this, x)
		if err != nil {
			return nil, err
		}
		t := &callTarget{temp: v}
		t.ref = &t.temp
		return t, nil

	case *ast.PropertyExpr:
		parent, err := e.evalMethodTarget(global, caches, lib, scope, this, x.Target)
		if err != nil {
			return nil, err
		}
		if mp, ok := parent.ref.Map(); ok {
			if child, found := mp[x.Name]; found {
				t := &callTarget{temp: child}
				t.ref = &t.temp
				return t, nil
			}
			return nil, errDotExpr("Unknown property '"+x.Name+"' in map", x.P)
		}
		v, err := e.evalExpr(global, caches, lib, scope, this, x)
		if err != nil {
			return nil, err
		}
		t := &callTarget{temp: v}
		t.ref = &t.temp
		return t, nil

	default:
		v, err := e.evalExpr(global, caches, lib, scope, this, expr)
		if err != nil {
			return nil, err
		}
		t := &callTarget{temp: v.Flatten()}
		t.ref = &t.temp
		return t, nil
	}
}

func (e *Engine) evalAssign(
	global *GlobalRuntimeState,
	caches *Caches,
	lib []*Module,
	scope *Scope,
	this *Dynamic,
	x *ast.AssignExpr,
) (Dynamic, error) {
	rhs, err := e.evalExpr(global, caches, lib, scope, this, x.RHS)
	if err != nil {
		return Unit(), err
	}
	rhs = rhs.Flatten()

	switch lhs := x.LHS.(type) {
	case *ast.Ident:
		i, ok := scope.index(lhs.Name)
		if !ok {
			return Unit(), errVariableNotFound(lhs.Name, lhs.P)
		}
		if scope.isConstant(i) {
			return Unit(), errAssignmentToConstant(lhs.Name, lhs.P)
		}
		slot := scope.valueRef(i)
		return e.assignInto(global, caches, lib, slot, true, x.Op, rhs, x.P)

	case *ast.ThisExpr:
		if this == nil {
			return Unit(), errRuntime(lhs.P, "'this' is not bound")
		}
		return e.assignInto(global, caches, lib, this, true, x.Op, rhs, x.P)

	case *ast.IndexExpr:
		idx, err := e.evalExpr(global, caches, lib, scope, this, lhs.Index)
		if err != nil {
			return Unit(), err
		}
		idx = idx.Flatten()
		target, isRefMut, err := e.evalTarget(global, caches, lib, scope, this, lhs.Target)
		if err != nil {
			return Unit(), err
		}
		if x.Op.IsOpAssign() {
			idxCopy := idx.Clone()
			cur, _, err := e.execNativeFnCall(
				global, caches, lib, FnIdxGet, 0,
				CalcFnHash(nil, FnIdxGet, 2), []*Dynamic{target, &idxCopy}, isRefMut, x.P)
			if err != nil {
				return Unit(), err
			}
			rhs, err = e.applyBinary(global, caches, lib, x.Op.BaseOp(), cur, rhs, x.P)
			if err != nil {
				return Unit(), err
			}
		}
		_, _, err = e.execNativeFnCall(
			global, caches, lib, FnIdxSet, 0,
			CalcFnHash(nil, FnIdxSet, 3), []*Dynamic{target, &idx, &rhs}, isRefMut, x.P)
		return Unit(), err

	case *ast.PropertyExpr:
		target, isRefMut, err := e.evalTarget(global, caches, lib, scope, this, lhs.Target)
		if err != nil {
			return Unit(), err
		}
		if m, ok := target.Map(); ok {
			if target.IsReadOnly() {
				return Unit(), errAssignmentToConstant(lhs.Name, lhs.P)
			}
			if x.Op.IsOpAssign() {
				cur, ok := m[lhs.Name]
				if !ok {
					return Unit(), errDotExpr("Unknown property '"+lhs.Name+"' in map", lhs.P)
				}
				rhs, err = e.applyBinary(global, caches, lib, x.Op.BaseOp(), cur.Clone(), rhs, x.P)
				if err != nil {
					return Unit(), err
				}
			}
			m[e.getInternedString(lhs.Name)] = rhs
			return Unit(), nil
		}
		if x.Op.IsOpAssign() {
			cur, _, err := e.execNativeFnCall(
				global, caches, lib, FnGet+lhs.Name, 0,
				CalcFnHash(nil, FnGet+lhs.Name, 1), []*Dynamic{target}, isRefMut, x.P)
			if err != nil {
				return Unit(), err
			}
			rhs, err = e.applyBinary(global, caches, lib, x.Op.BaseOp(), cur, rhs, x.P)
			if err != nil {
				return Unit(), err
			}
		}
		_, _, err = e.execNativeFnCall(
			global, caches, lib, FnSet+lhs.Name, 0,
			CalcFnHash(nil, FnSet+lhs.Name, 2), []*Dynamic{target, &rhs}, isRefMut, x.P)
		return Unit(), err

	default:
		return Unit(), errRuntime(x.P, "invalid assignment target")
	}
}

// assignInto writes rhs into a live slot, dispatching compound assignment
// operators through the resolver so registered overloads win over the
// built-in table.
func (e *Engine) assignInto(
	global *GlobalRuntimeState,
	caches *Caches,
	lib []*Module,
	slot *Dynamic,
	isRefMut bool,
	op token.Type,
	rhs Dynamic,
	pos token.Position,
) (Dynamic, error) {
	if op == token.ASSIGN {
		slot.write(rhs)
		return Unit(), nil
	}
	name := op.Literal()
	args := []*Dynamic{slot, &rhs}
	_, _, err := e.execNativeFnCall(
		global, caches, lib, name, op, CalcFnHash(nil, name, 2), args, isRefMut, pos)
	return Unit(), err
}

// applyBinary computes a binary operator over two owned values through the
// normal dispatch pipeline.
func (e *Engine) applyBinary(
	global *GlobalRuntimeState,
	caches *Caches,
	lib []*Module,
	op token.Type,
	lhs, rhs Dynamic,
	pos token.Position,
) (Dynamic, error) {
	name := op.Literal()
	args := []*Dynamic{&lhs, &rhs}
	v, _, err := e.execFnCall(
		global, caches, lib, nil, name, op,
		HashesFromNative(CalcFnHash(nil, name, 2)), args, false, false, pos)
	return v, err
}
