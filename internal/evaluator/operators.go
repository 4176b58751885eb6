package evaluator

import "github.com/quill-lang/quill/internal/token"

// Built-in binary operator support. The resolver consults these tables only
// after every registered overload (exact and wildcard) has missed, so
// registered functions override a built-in operator when calls go through
// the resolver. The fast-operator shortcut in evalFnCallExpr (enabled by
// default) consults the binary table first, ahead of any registered overload.

func intBinaryOp(op token.Type) NativeFunc {
	return func(ctx *NativeCallContext, args []*Dynamic) (Dynamic, error) {
		x, _ := args[0].Int()
		y, _ := args[1].Int()
		switch op {
		case token.PLUS:
			return NewInt(x + y), nil
		case token.MINUS:
			return NewInt(x - y), nil
		case token.STAR:
			return NewInt(x * y), nil
		case token.SLASH:
			if y == 0 {
				return Unit(), errRuntime(ctx.pos, "division by zero")
			}
			return NewInt(x / y), nil
		case token.PERCENT:
			if y == 0 {
				return Unit(), errRuntime(ctx.pos, "modulo by zero")
			}
			return NewInt(x % y), nil
		case token.EQ:
			return NewBool(x == y), nil
		case token.NEQ:
			return NewBool(x != y), nil
		case token.LT:
			return NewBool(x < y), nil
		case token.GT:
			return NewBool(x > y), nil
		case token.LTE:
			return NewBool(x <= y), nil
		case token.GTE:
			return NewBool(x >= y), nil
		}
		return Unit(), errRuntime(ctx.pos, "unsupported operator %q", op.Literal())
	}
}

func floatBinaryOp(op token.Type) NativeFunc {
	return func(ctx *NativeCallContext, args []*Dynamic) (Dynamic, error) {
		x := asFloat(args[0])
		y := asFloat(args[1])
		switch op {
		case token.PLUS:
			return NewFloat(x + y), nil
		case token.MINUS:
			return NewFloat(x - y), nil
		case token.STAR:
			return NewFloat(x * y), nil
		case token.SLASH:
			return NewFloat(x / y), nil
		case token.EQ:
			return NewBool(x == y), nil
		case token.NEQ:
			return NewBool(x != y), nil
		case token.LT:
			return NewBool(x < y), nil
		case token.GT:
			return NewBool(x > y), nil
		case token.LTE:
			return NewBool(x <= y), nil
		case token.GTE:
			return NewBool(x >= y), nil
		}
		return Unit(), errRuntime(ctx.pos, "unsupported operator %q", op.Literal())
	}
}

func stringBinaryOp(op token.Type) NativeFunc {
	return func(ctx *NativeCallContext, args []*Dynamic) (Dynamic, error) {
		x, _ := args[0].Str()
		y, _ := args[1].Str()
		switch op {
		case token.PLUS:
			return NewString(x + y), nil
		case token.EQ:
			return NewBool(x == y), nil
		case token.NEQ:
			return NewBool(x != y), nil
		case token.LT:
			return NewBool(x < y), nil
		case token.GT:
			return NewBool(x > y), nil
		case token.LTE:
			return NewBool(x <= y), nil
		case token.GTE:
			return NewBool(x >= y), nil
		}
		return Unit(), errRuntime(ctx.pos, "unsupported operator %q", op.Literal())
	}
}

func charBinaryOp(op token.Type) NativeFunc {
	return func(ctx *NativeCallContext, args []*Dynamic) (Dynamic, error) {
		x, _ := args[0].Char()
		y, _ := args[1].Char()
		switch op {
		case token.EQ:
			return NewBool(x == y), nil
		case token.NEQ:
			return NewBool(x != y), nil
		case token.LT:
			return NewBool(x < y), nil
		case token.GT:
			return NewBool(x > y), nil
		case token.LTE:
			return NewBool(x <= y), nil
		case token.GTE:
			return NewBool(x >= y), nil
		}
		return Unit(), errRuntime(ctx.pos, "unsupported operator %q", op.Literal())
	}
}

func asFloat(d *Dynamic) float64 {
	if f, ok := d.Float(); ok {
		return f
	}
	i, _ := d.Int()
	return float64(i)
}

func isNumeric(t TypeID) bool { return t == TypeInt || t == TypeFloat }

// getBuiltinBinaryOpFn returns the built-in implementation of a binary
// operator for the given operand types, or nil when none applies.
func getBuiltinBinaryOpFn(op token.Type, a, b *Dynamic) *CallableFunction {
	ta, tb := a.TypeID(), b.TypeID()

	var fn NativeFunc
	switch {
	case ta == TypeInt && tb == TypeInt:
		fn = intBinaryOp(op)
	case isNumeric(ta) && isNumeric(tb):
		fn = floatBinaryOp(op)
	case ta == TypeString && tb == TypeString:
		fn = stringBinaryOp(op)
	case ta == TypeString && tb == TypeChar && op == token.PLUS:
		fn = func(ctx *NativeCallContext, args []*Dynamic) (Dynamic, error) {
			s, _ := args[0].Str()
			c, _ := args[1].Char()
			return NewString(s + string(c)), nil
		}
	case ta == TypeChar && tb == TypeString && op == token.PLUS:
		fn = func(ctx *NativeCallContext, args []*Dynamic) (Dynamic, error) {
			c, _ := args[0].Char()
			s, _ := args[1].Str()
			return NewString(string(c) + s), nil
		}
	case ta == TypeChar && tb == TypeChar:
		fn = charBinaryOp(op)
	case ta == TypeBool && tb == TypeBool && (op == token.EQ || op == token.NEQ):
		fn = func(ctx *NativeCallContext, args []*Dynamic) (Dynamic, error) {
			x, _ := args[0].Bool()
			y, _ := args[1].Bool()
			return NewBool((x == y) == (op == token.EQ)), nil
		}
	case ta == TypeUnit && tb == TypeUnit && (op == token.EQ || op == token.NEQ):
		fn = func(ctx *NativeCallContext, args []*Dynamic) (Dynamic, error) {
			return NewBool(op == token.EQ), nil
		}
	default:
		return nil
	}

	if !opSupported(op, ta, tb) {
		return nil
	}
	return newOperatorCallable(fn, true)
}

// opSupported filters out operator/type combinations the closures above
// would reject, so the resolver can cache a clean negative instead.
func opSupported(op token.Type, ta, tb TypeID) bool {
	switch op {
	case token.EQ, token.NEQ:
		return true
	case token.LT, token.GT, token.LTE, token.GTE:
		return (isNumeric(ta) && isNumeric(tb)) ||
			(ta == TypeString && tb == TypeString) ||
			(ta == TypeChar && tb == TypeChar)
	case token.PLUS:
		return (isNumeric(ta) && isNumeric(tb)) ||
			(ta == TypeString && (tb == TypeString || tb == TypeChar)) ||
			(ta == TypeChar && tb == TypeString)
	case token.MINUS, token.STAR, token.SLASH, token.PERCENT:
		if op == token.PERCENT && (ta == TypeFloat || tb == TypeFloat) {
			return false
		}
		return isNumeric(ta) && isNumeric(tb)
	}
	return false
}

// getBuiltinOpAssignmentFn returns the built-in implementation of a compound
// assignment operator for the given operand types, or nil. The returned
// callable is a method: it mutates its first argument in place.
func getBuiltinOpAssignmentFn(op token.Type, a, b *Dynamic) *CallableFunction {
	base := op.BaseOp()
	ta, tb := a.TypeID(), b.TypeID()

	switch {
	case ta == TypeInt && tb == TypeInt,
		ta == TypeFloat && isNumeric(tb):
		if !opSupported(base, ta, tb) {
			return nil
		}
	case ta == TypeString && (tb == TypeString || tb == TypeChar):
		if base != token.PLUS {
			return nil
		}
	case ta == TypeArray && op == token.PLUS_ASSIGN:
		fn := func(ctx *NativeCallContext, args []*Dynamic) (Dynamic, error) {
			arr, _ := args[0].Array()
			args[0].setArray(append(arr, take(args[1])))
			return Unit(), nil
		}
		return newOperatorCallable(fn, false)
	default:
		return nil
	}

	inner := getBuiltinBinaryOpFn(base, a, b)
	if inner == nil {
		return nil
	}
	fn := func(ctx *NativeCallContext, args []*Dynamic) (Dynamic, error) {
		result, err := inner.fn(ctx, args)
		if err != nil {
			return Unit(), err
		}
		args[0].write(result)
		return Unit(), nil
	}
	return newOperatorCallable(fn, false)
}
