package evaluator

import (
	"fmt"
	"os"

	"github.com/quill-lang/quill/internal/parser"
	"github.com/quill-lang/quill/internal/token"
)

// Names carrying special meaning to the dispatch core.
const (
	KeywordPrint      = "print"
	KeywordDebug      = "debug"
	KeywordTypeOf     = "type_of"
	KeywordEval       = "eval"
	KeywordFnPtr      = "Fn"
	KeywordFnPtrCall  = "call"
	KeywordFnPtrCurry = "curry"
	KeywordIsShared   = "is_shared"
	KeywordIsDefVar   = "is_def_var"
	KeywordIsDefFn    = "is_def_fn"
	KeywordThis       = "this"
	KeywordGlobal     = "global"

	FnGet       = "get$"
	FnSet       = "set$"
	FnIdxGet    = "index$get$"
	FnIdxSet    = "index$set$"
	FnAnonymous = token.AnonymousPrefix
)

// Position locates a token in source text.
type Position = token.Position

// OptimizationLevel selects how aggressively compilation simplifies the
// program before execution.
type OptimizationLevel int

const (
	OptNone OptimizationLevel = iota
	OptSimple
	OptFull
)

// OnPrintCallback receives the output of the print statement.
type OnPrintCallback func(text string)

// OnDebugCallback receives the output of the debug statement.
type OnDebugCallback func(text, source string, pos token.Position)

// OnProgressCallback is consulted by operation tracking; returning false
// terminates the script.
type OnProgressCallback func(operations uint64) bool

// OnVarCallback resolves a variable before the scope is searched.
type OnVarCallback func(name string) (Dynamic, bool)

// OnDefVarFilter vets a variable definition; returning false refuses it.
type OnDefVarFilter func(name string, isConst bool) bool

// OnDebuggerStepCallback observes function-call boundaries when a debugger
// is attached. A returned error aborts the script.
type OnDebuggerStepCallback func(frames []CallFrame, pos token.Position) error

// Engine is the scripting engine: the registry of host modules plus the
// dispatch machinery. An Engine is re-entrant — a native function may call
// back into it — but is driven by one goroutine at a time.
type Engine struct {
	globalModules []*Module
	staticModules map[string]*Module

	moduleResolver ModuleResolver
	interner       *StringsInterner

	print    OnPrintCallback
	debug    OnDebugCallback
	progress OnProgressCallback

	resolveVar   OnVarCallback
	defVarFilter OnDefVarFilter
	tokenMapper  func(token.Token) token.Token

	debugInit func() Dynamic
	debugStep OnDebuggerStepCallback

	limits        Limits
	fastOperators bool
	optimization  OptimizationLevel
	defTag        Dynamic
}

// NewEngine creates an engine with no registered packages. The standard
// package is layered on by the embedding surface.
func NewEngine() *Engine {
	e := &Engine{
		staticModules: make(map[string]*Module),
		interner:      NewStringsInterner(),
		limits:        DefaultLimits(),
		fastOperators: true,
		optimization:  OptSimple,
		defTag:        Unit(),
	}
	// The global namespace module receives functions registered directly on
	// the engine.
	global := NewModule("")
	global.internal = true
	e.globalModules = append(e.globalModules, global)

	e.print = func(text string) { fmt.Fprintln(os.Stdout, text) }
	e.debug = func(text, source string, pos token.Position) {
		if source != "" {
			fmt.Fprintf(os.Stderr, "%s @ %s | %s\n", source, pos, text)
		} else if pos.IsNone() {
			fmt.Fprintln(os.Stderr, text)
		} else {
			fmt.Fprintf(os.Stderr, "%s | %s\n", pos, text)
		}
	}
	return e
}

// GlobalNamespace returns the module functions registered directly on the
// engine land in.
func (e *Engine) GlobalNamespace() *Module { return e.globalModules[0] }

// RegisterGlobalModule adds a module of host functions to the global
// namespace, searched after earlier registrations.
func (e *Engine) RegisterGlobalModule(m *Module) {
	e.globalModules = append(e.globalModules, m)
}

// RegisterStaticModule nests a module under a fixed namespace.
func (e *Engine) RegisterStaticModule(name string, m *Module) {
	e.staticModules[name] = m
}

// SetModuleResolver installs the resolver used by import statements.
func (e *Engine) SetModuleResolver(r ModuleResolver) { e.moduleResolver = r }

// OnPrint installs the print callback.
func (e *Engine) OnPrint(fn OnPrintCallback) { e.print = fn }

// OnDebug installs the debug callback.
func (e *Engine) OnDebug(fn OnDebugCallback) { e.debug = fn }

// OnProgress installs the progress callback consulted during operation
// tracking.
func (e *Engine) OnProgress(fn OnProgressCallback) { e.progress = fn }

// OnVar installs the variable-access resolver.
func (e *Engine) OnVar(fn OnVarCallback) { e.resolveVar = fn }

// OnDefVar installs the variable-definition filter.
func (e *Engine) OnDefVar(fn OnDefVarFilter) { e.defVarFilter = fn }

// OnParseToken installs the parse-token remapper.
func (e *Engine) OnParseToken(fn func(token.Token) token.Token) { e.tokenMapper = fn }

// OnDebuggerInit installs the hook producing the initial debugger state.
func (e *Engine) OnDebuggerInit(fn func() Dynamic) { e.debugInit = fn }

// OnDebuggerStep attaches the debugger stepping hook.
func (e *Engine) OnDebuggerStep(fn OnDebuggerStepCallback) { e.debugStep = fn }

// Limits returns the engine limits.
func (e *Engine) Limits() Limits { return e.limits }

// SetLimits replaces the engine limits.
func (e *Engine) SetLimits(l Limits) { e.limits = l }

// SetMaxCallLevels sets the maximum function-call nesting level.
func (e *Engine) SetMaxCallLevels(n int) { e.limits.MaxCallLevels = n }

// SetMaxExprDepth sets the maximum expression nesting depth.
func (e *Engine) SetMaxExprDepth(n int) { e.limits.MaxExprDepth = n }

// SetMaxOperations sets the operation budget; zero is unlimited.
func (e *Engine) SetMaxOperations(n uint64) { e.limits.MaxOperations = n }

// SetFastOperators toggles the built-in operator shortcut.
func (e *Engine) SetFastOperators(on bool) { e.fastOperators = on }

// FastOperators reports whether the built-in operator shortcut is active.
func (e *Engine) FastOperators() bool { return e.fastOperators }

// SetOptimizationLevel selects the compile-time optimization level.
func (e *Engine) SetOptimizationLevel(l OptimizationLevel) { e.optimization = l }

// SetDefaultTag sets the initial value of the custom state tag.
func (e *Engine) SetDefaultTag(v Dynamic) { e.defTag = v }

// getInternedString returns the interned copy of s.
func (e *Engine) getInternedString(s string) string {
	return e.interner.Get(s)
}

// Compile parses source text into a program.
func (e *Engine) Compile(src string) (*Program, error) {
	return e.CompileWithSource(src, "")
}

// CompileWithSource parses source text into a program carrying a symbolic
// source name for diagnostics.
func (e *Engine) CompileWithSource(src, source string) (*Program, error) {
	return e.compileWithOptions(src, source, e.optimization)
}

func (e *Engine) compileWithOptions(src, source string, _ OptimizationLevel) (*Program, error) {
	parsed, err := parser.Parse(src, parser.Options{
		MaxExprDepth: e.limits.MaxExprDepth,
		TokenMapper:  e.tokenMapper,
	})
	if err != nil {
		return nil, wrapParseError(err)
	}

	lib := NewModule(source)
	for _, decl := range parsed.Functions {
		lib.SetScriptFn(&ScriptFn{
			Name:   e.getInternedString(decl.Name),
			Params: decl.Params,
			Body:   decl.Body,
			Access: decl.Access,
		})
	}
	return &Program{stmts: parsed.Stmts, lib: lib, source: source, resolver: e.moduleResolver}, nil
}

func wrapParseError(err error) error {
	if pe, ok := err.(*parser.Error); ok {
		return &ScriptError{Kind: ErrParse, Msg: pe.Msg, Pos: pe.Pos, Cause: pe}
	}
	return err
}

// trackOperation charges one operation against the budget and consults the
// progress callback. Called before every function invocation, before every
// argument evaluation, and at every module-resolution hop.
func (e *Engine) trackOperation(global *GlobalRuntimeState, pos token.Position) error {
	global.opsCount++
	if e.limits.MaxOperations > 0 && global.opsCount > e.limits.MaxOperations {
		return errTooManyOperations(pos)
	}
	if e.progress != nil && !e.progress(global.opsCount) {
		return errTerminated(pos)
	}
	return nil
}

// checkDataSize verifies a value against the configured size limits.
func (e *Engine) checkDataSize(d *Dynamic, pos token.Position) error {
	if !e.limits.hasDataSizeLimits() {
		return nil
	}
	strLen, arrLen, mapLen := d.dataSizes()
	if e.limits.MaxStringSize > 0 && strLen > e.limits.MaxStringSize {
		return errDataTooLarge("string", pos)
	}
	if e.limits.MaxArraySize > 0 && arrLen > e.limits.MaxArraySize {
		return errDataTooLarge("array", pos)
	}
	if e.limits.MaxMapSize > 0 && mapLen > e.limits.MaxMapSize {
		return errDataTooLarge("map", pos)
	}
	return nil
}

// checkReturnValue validates a function result before it is handed on.
func (e *Engine) checkReturnValue(result Dynamic, err error, pos token.Position) (Dynamic, error) {
	if err != nil {
		return Unit(), fillPos(err, pos)
	}
	if sizeErr := e.checkDataSize(&result, pos); sizeErr != nil {
		return Unit(), sizeErr
	}
	return result, nil
}

// mapTypeName renders a type name for diagnostics.
func (e *Engine) mapTypeName(name string) string { return name }

// genFnCallSignature renders `name (T1, T2, ...)` for not-found errors.
func (e *Engine) genFnCallSignature(fnName string, args []*Dynamic) string {
	sig := fnName + " ("
	for i, a := range args {
		if i > 0 {
			sig += ", "
		}
		sig += e.mapTypeName(a.TypeName())
	}
	return sig + ")"
}

// hasScriptFn reports whether a script function resolvable under the given
// base hash exists in the active libraries.
func (e *Engine) hasScriptFn(global *GlobalRuntimeState, caches *Caches, lib []*Module, hashScript uint64) bool {
	entry := e.resolveFn(global, caches, lib, 0, hashScript, nil, false, false)
	return entry != nil && entry.Func.IsScript()
}
