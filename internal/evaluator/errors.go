package evaluator

import (
	"errors"
	"fmt"

	"github.com/quill-lang/quill/internal/token"
)

// ErrKind classifies runtime errors.
type ErrKind int

const (
	ErrRuntime ErrKind = iota
	ErrFunctionNotFound
	ErrModuleNotFound
	ErrVariableNotFound
	ErrMismatchOutputType
	ErrIndexingType
	ErrDotExpr
	ErrNonPureMethodCallOnConstant
	ErrDataRace
	ErrAssignmentToConstant
	ErrStackOverflow
	ErrTooManyOperations
	ErrTerminated
	ErrDataTooLarge
	ErrInFunctionCall
	ErrWrongFnDefinition
	ErrParse
)

// ScriptError is the single error type produced by the engine. Kind selects
// the failure class; Pos locates it in the source when known.
type ScriptError struct {
	Kind     ErrKind
	Msg      string
	Pos      token.Position
	Expected string // MismatchOutputType
	Actual   string // MismatchOutputType
	FnName   string // InFunctionCall
	Source   string // InFunctionCall
	Cause    error
}

func (e *ScriptError) Error() string {
	msg := e.Msg
	switch e.Kind {
	case ErrFunctionNotFound:
		msg = fmt.Sprintf("function not found: %s", e.Msg)
	case ErrModuleNotFound:
		msg = fmt.Sprintf("module not found: %s", e.Msg)
	case ErrVariableNotFound:
		msg = fmt.Sprintf("variable not found: %s", e.Msg)
	case ErrMismatchOutputType:
		msg = fmt.Sprintf("output type incorrect: expected %s, actual %s", e.Expected, e.Actual)
	case ErrIndexingType:
		msg = fmt.Sprintf("indexer not registered: %s", e.Msg)
	case ErrNonPureMethodCallOnConstant:
		msg = fmt.Sprintf("non-pure method %q cannot be called on a constant", e.Msg)
	case ErrDataRace:
		msg = fmt.Sprintf("data race detected on %s", e.Msg)
	case ErrAssignmentToConstant:
		msg = fmt.Sprintf("cannot assign to constant %q", e.Msg)
	case ErrStackOverflow:
		msg = "call stack over maximum limit"
	case ErrTooManyOperations:
		msg = "number of operations over maximum limit"
	case ErrTerminated:
		msg = "script terminated"
	case ErrDataTooLarge:
		msg = fmt.Sprintf("size of %s over maximum limit", e.Msg)
	case ErrWrongFnDefinition:
		msg = "functions can only be defined at global level"
	case ErrInFunctionCall:
		src := e.Source
		if src != "" {
			src = " @ " + src
		}
		return fmt.Sprintf("in call to function %q%s: %v", e.FnName, src, e.Cause)
	}
	if !e.Pos.IsNone() {
		return fmt.Sprintf("%s (%s)", msg, e.Pos)
	}
	return msg
}

func (e *ScriptError) Unwrap() error { return e.Cause }

// IsKind reports whether err, or any error it wraps, is a ScriptError of the
// given kind.
func IsKind(err error, kind ErrKind) bool {
	for err != nil {
		var se *ScriptError
		if errors.As(err, &se) {
			if se.Kind == kind {
				return true
			}
			err = se.Cause
			continue
		}
		return false
	}
	return false
}

func errRuntime(pos token.Position, format string, args ...any) *ScriptError {
	return &ScriptError{Kind: ErrRuntime, Msg: fmt.Sprintf(format, args...), Pos: pos}
}

// RuntimeError builds a runtime error for host functions to return.
func RuntimeError(format string, args ...any) error {
	return &ScriptError{Kind: ErrRuntime, Msg: fmt.Sprintf(format, args...)}
}

// MismatchOutputTypeError reports a failed cast at the engine boundary.
func MismatchOutputTypeError(expected, actual string) error {
	return &ScriptError{Kind: ErrMismatchOutputType, Expected: expected, Actual: actual}
}

func errFunctionNotFound(sig string, pos token.Position) *ScriptError {
	return &ScriptError{Kind: ErrFunctionNotFound, Msg: sig, Pos: pos}
}

func errModuleNotFound(name string, pos token.Position) *ScriptError {
	return &ScriptError{Kind: ErrModuleNotFound, Msg: name, Pos: pos}
}

func errVariableNotFound(name string, pos token.Position) *ScriptError {
	return &ScriptError{Kind: ErrVariableNotFound, Msg: name, Pos: pos}
}

func errMismatchOutputType(expected, actual string, pos token.Position) *ScriptError {
	return &ScriptError{Kind: ErrMismatchOutputType, Expected: expected, Actual: actual, Pos: pos}
}

func errIndexingType(desc string, pos token.Position) *ScriptError {
	return &ScriptError{Kind: ErrIndexingType, Msg: desc, Pos: pos}
}

func errDotExpr(msg string, pos token.Position) *ScriptError {
	return &ScriptError{Kind: ErrDotExpr, Msg: msg, Pos: pos}
}

func errNonPureMethodCallOnConstant(name string, pos token.Position) *ScriptError {
	return &ScriptError{Kind: ErrNonPureMethodCallOnConstant, Msg: name, Pos: pos}
}

func errDataRace(what string, pos token.Position) *ScriptError {
	return &ScriptError{Kind: ErrDataRace, Msg: what, Pos: pos}
}

func errAssignmentToConstant(name string, pos token.Position) *ScriptError {
	return &ScriptError{Kind: ErrAssignmentToConstant, Msg: name, Pos: pos}
}

func errStackOverflow(pos token.Position) *ScriptError {
	return &ScriptError{Kind: ErrStackOverflow, Pos: pos}
}

func errTooManyOperations(pos token.Position) *ScriptError {
	return &ScriptError{Kind: ErrTooManyOperations, Pos: pos}
}

func errTerminated(pos token.Position) *ScriptError {
	return &ScriptError{Kind: ErrTerminated, Pos: pos}
}

func errDataTooLarge(what string, pos token.Position) *ScriptError {
	return &ScriptError{Kind: ErrDataTooLarge, Msg: what, Pos: pos}
}

func errInFunctionCall(fnName, source string, cause error, pos token.Position) *ScriptError {
	return &ScriptError{Kind: ErrInFunctionCall, FnName: fnName, Source: source, Cause: cause, Pos: pos}
}

func errWrongFnDefinition(pos token.Position) *ScriptError {
	return &ScriptError{Kind: ErrWrongFnDefinition, Pos: pos}
}

// Control-flow signals. They travel as errors and are intercepted at the
// statement boundaries that understand them; they never escape the engine.

type returnValue struct{ value Dynamic }

func (returnValue) Error() string { return "return" }

type breakLoop struct{}

func (breakLoop) Error() string { return "break" }

type continueLoop struct{}

func (continueLoop) Error() string { return "continue" }

// fillPos stamps a position onto a ScriptError that has none.
func fillPos(err error, pos token.Position) error {
	var se *ScriptError
	if errors.As(err, &se) && se.Pos.IsNone() {
		se.Pos = pos
	}
	return err
}
