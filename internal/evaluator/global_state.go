package evaluator

import "github.com/quill-lang/quill/internal/token"

// ImportEntry is one imported module under its alias.
type ImportEntry struct {
	Alias  string
	Module *Module
}

// DebuggerStatus is the stepping mode of the debugger interface.
type DebuggerStatus int

const (
	DebugContinue DebuggerStatus = iota
	DebugNext
	DebugFunctionExit
	DebugTerminate
)

// CallFrame is one frame of the debugger call stack.
type CallFrame struct {
	FnName string
	Args   []Dynamic
	Source string
	Pos    token.Position
}

// DebuggerState is the debugger's view of the running call stack.
type DebuggerState struct {
	Status DebuggerStatus
	// State is the custom debugger state produced by the init hook.
	State  Dynamic
	frames []CallFrame
}

// CallStack returns the current frames.
func (d *DebuggerState) CallStack() []CallFrame { return d.frames }

func (d *DebuggerState) pushFrame(f CallFrame) { d.frames = append(d.frames, f) }

func (d *DebuggerState) rewindCallStack(n int) {
	if n < len(d.frames) {
		d.frames = d.frames[:n]
	}
}

// GlobalRuntimeState is the mutable per-evaluation state threaded through
// every call. Each field that a nested call re-scopes is saved and restored
// at the boundary that changes it, on all exit paths.
type GlobalRuntimeState struct {
	// Source is the symbolic name of the currently running compilation unit.
	Source string
	// Lvl is the current function-call nesting level.
	Lvl int
	// Tag is the custom user state value.
	Tag Dynamic

	imports   []ImportEntry
	constants map[string]Dynamic

	embeddedModuleResolver ModuleResolver

	opsCount          uint64
	alwaysSearchScope bool

	debugger DebuggerState
	engine   *Engine
}

// NewGlobalRuntimeState creates a fresh state for one top-level call.
func NewGlobalRuntimeState(e *Engine) *GlobalRuntimeState {
	g := &GlobalRuntimeState{
		Tag:       e.defTag.Clone(),
		constants: make(map[string]Dynamic),
		engine:    e,
	}
	if e.debugInit != nil {
		g.debugger.State = e.debugInit()
	}
	return g
}

// Debugger returns the debugger state.
func (g *GlobalRuntimeState) Debugger() *DebuggerState { return &g.debugger }

// Operations returns the number of operations counted so far.
func (g *GlobalRuntimeState) Operations() uint64 { return g.opsCount }

// AlwaysSearchScope reports whether variable-offset shortcuts are disabled
// because an eval grew the scope or imports stack.
func (g *GlobalRuntimeState) AlwaysSearchScope() bool { return g.alwaysSearchScope }

// PushImport records an imported module under its alias.
func (g *GlobalRuntimeState) PushImport(alias string, m *Module) {
	g.imports = append(g.imports, ImportEntry{Alias: alias, Module: m})
}

// NumImports returns the number of imports in effect.
func (g *GlobalRuntimeState) NumImports() int { return len(g.imports) }

// TruncateImports rewinds the imports stack to n entries.
func (g *GlobalRuntimeState) TruncateImports(n int) {
	if n < len(g.imports) {
		g.imports = g.imports[:n]
	}
}

// Imports returns the imports in effect, most recent last.
func (g *GlobalRuntimeState) Imports() []ImportEntry { return g.imports }

// FindImport looks up an imported module by alias, most recently imported
// first.
func (g *GlobalRuntimeState) FindImport(alias string) *Module {
	for i := len(g.imports) - 1; i >= 0; i-- {
		if g.imports[i].Alias == alias {
			return g.imports[i].Module
		}
	}
	return nil
}

// getQualifiedFn searches the imported modules, most recently imported
// first, for a function under the given hash.
func (g *GlobalRuntimeState) getQualifiedFn(hash uint64) (*CallableFunction, string) {
	for i := len(g.imports) - 1; i >= 0; i-- {
		if f := g.imports[i].Module.GetQualifiedFn(hash); f != nil {
			return f, g.imports[i].Module.ID()
		}
	}
	return nil, ""
}

// mayContainDynamicFn reports whether any imported module declares a
// wildcard overload under the base hash.
func (g *GlobalRuntimeState) mayContainDynamicFn(hashBase uint64) bool {
	for i := len(g.imports) - 1; i >= 0; i-- {
		if g.imports[i].Module.MayContainDynamicFn(hashBase) {
			return true
		}
	}
	return false
}

// Constant returns a recorded global constant.
func (g *GlobalRuntimeState) Constant(name string) (Dynamic, bool) {
	v, ok := g.constants[name]
	return v, ok
}

// setConstant records a global constant for closure capture.
func (g *GlobalRuntimeState) setConstant(name string, v Dynamic) {
	g.constants[name] = v
}
