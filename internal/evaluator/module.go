package evaluator

// FuncKind discriminates the variants of a resolved callable.
type FuncKind uint8

const (
	// KindNative is a host function registered with the engine.
	KindNative FuncKind = iota
	// KindPlugin is a host function that additionally advertises whether it
	// is pure or a method; methods refuse read-only receivers.
	KindPlugin
	// KindScript is a script-defined function.
	KindScript
	// KindOperator is a built-in binary operator implementation.
	KindOperator
)

// NativeFunc is the shape of host functions: a call context plus the mutable
// argument slots. Arguments not in the first position are consumed.
type NativeFunc func(ctx *NativeCallContext, args []*Dynamic) (Dynamic, error)

// CallableFunction is a resolved callable of any variant.
type CallableFunction struct {
	kind   FuncKind
	fn     NativeFunc
	script *ScriptFn
	pure   bool
}

// NewNativeCallable wraps a host function.
func NewNativeCallable(fn NativeFunc, pure bool) *CallableFunction {
	return &CallableFunction{kind: KindNative, fn: fn, pure: pure}
}

// NewPluginCallable wraps a host function with an advertised purity mode.
func NewPluginCallable(fn NativeFunc, pure bool) *CallableFunction {
	return &CallableFunction{kind: KindPlugin, fn: fn, pure: pure}
}

// NewScriptCallable wraps a script function definition.
func NewScriptCallable(def *ScriptFn) *CallableFunction {
	return &CallableFunction{kind: KindScript, script: def, pure: true}
}

func newOperatorCallable(fn NativeFunc, pure bool) *CallableFunction {
	return &CallableFunction{kind: KindOperator, fn: fn, pure: pure}
}

// IsScript reports whether the callable is a script function.
func (f *CallableFunction) IsScript() bool { return f.kind == KindScript }

// IsNative reports whether the callable executes host code.
func (f *CallableFunction) IsNative() bool { return f.kind != KindScript }

// IsPluginFn reports whether the callable is a plugin function.
func (f *CallableFunction) IsPluginFn() bool { return f.kind == KindPlugin }

// IsPure reports whether the callable leaves its first argument untouched.
func (f *CallableFunction) IsPure() bool { return f.pure }

// IsMethod reports whether the callable mutates its receiver.
func (f *CallableFunction) IsMethod() bool { return !f.pure }

// ScriptFnDef returns the script definition, or nil for native callables.
func (f *CallableFunction) ScriptFnDef() *ScriptFn { return f.script }

type fnRecord struct {
	name   string
	params []TypeID // nil for script functions
	arity  int
	fn     *CallableFunction
}

// Module is a named collection of callables: host-registered functions,
// script functions gathered from a compiled unit, and nested sub-modules.
// The compiled program's function library is itself a Module.
type Module struct {
	id       string
	internal bool

	functions     map[uint64]*CallableFunction
	records       []fnRecord
	scriptFns     map[string]map[int]*ScriptFn
	dynamicHashes map[uint64]bool

	subModules map[string]*Module
	qualified  map[uint64]*CallableFunction
}

// NewModule creates an empty module with the given id. The id becomes the
// source name reported in diagnostics for callables resolved from it.
func NewModule(id string) *Module {
	return &Module{
		id:            id,
		functions:     make(map[uint64]*CallableFunction),
		scriptFns:     make(map[string]map[int]*ScriptFn),
		dynamicHashes: make(map[uint64]bool),
		subModules:    make(map[string]*Module),
		qualified:     make(map[uint64]*CallableFunction),
	}
}

// ID returns the module id.
func (m *Module) ID() string { return m.id }

// Count returns the number of registered callables.
func (m *Module) Count() int { return len(m.records) }

// RegisterNative registers a host function under name with the given
// parameter types. A TypeDynamic parameter makes the overload match any
// argument at that position via wildcard fallback.
func (m *Module) RegisterNative(name string, params []TypeID, pure bool, fn NativeFunc) {
	m.addNative(name, params, NewNativeCallable(fn, pure))
}

// RegisterPlugin registers a plugin function. Plugin methods (pure=false)
// refuse read-only receivers at call time.
func (m *Module) RegisterPlugin(name string, params []TypeID, pure bool, fn NativeFunc) {
	m.addNative(name, params, NewPluginCallable(fn, pure))
}

func (m *Module) addNative(name string, params []TypeID, callable *CallableFunction) {
	base := CalcFnHash(nil, name, len(params))
	m.functions[CalcFnHashFull(base, params)] = callable

	// Index for qualified access under the synthetic root component, which
	// namespace hashing skips just as it skips an import alias.
	qbase := CalcFnHash(rootPath, name, len(params))
	m.qualified[CalcFnHashFull(qbase, params)] = callable

	m.records = append(m.records, fnRecord{name: name, params: params, arity: len(params), fn: callable})
	for _, p := range params {
		if p == TypeDynamic {
			m.dynamicHashes[base] = true
			m.dynamicHashes[qbase] = true
			break
		}
	}
}

// rootPath is the synthetic skipped-first namespace component used when
// indexing a module's own functions for qualified lookup.
var rootPath = []string{"root"}

// SetScriptFn adds a script function definition, keyed by name and arity.
func (m *Module) SetScriptFn(def *ScriptFn) {
	base := CalcFnHash(nil, def.Name, len(def.Params))
	callable := NewScriptCallable(def)
	m.functions[base] = callable
	m.qualified[CalcFnHash(rootPath, def.Name, len(def.Params))] = callable
	m.records = append(m.records, fnRecord{name: def.Name, arity: len(def.Params), fn: callable})
	byArity, ok := m.scriptFns[def.Name]
	if !ok {
		byArity = make(map[int]*ScriptFn)
		m.scriptFns[def.Name] = byArity
	}
	byArity[len(def.Params)] = def
}

// GetScriptFn looks up a script function by name and exact arity.
func (m *Module) GetScriptFn(name string, arity int) *ScriptFn {
	if byArity, ok := m.scriptFns[name]; ok {
		return byArity[arity]
	}
	return nil
}

// GetFn looks up a callable by hash: typed hash for natives, base hash for
// script functions.
func (m *Module) GetFn(hash uint64) *CallableFunction {
	return m.functions[hash]
}

// GetQualifiedFn looks up a callable by hash, including functions indexed
// from nested sub-modules.
func (m *Module) GetQualifiedFn(hash uint64) *CallableFunction {
	if f, ok := m.functions[hash]; ok {
		return f
	}
	return m.qualified[hash]
}

// MayContainDynamicFn reports whether any overload registered under the base
// hash declares a wildcard parameter.
func (m *Module) MayContainDynamicFn(hashBase uint64) bool {
	return m.dynamicHashes[hashBase]
}

// SetSubModule nests a module under name and reindexes qualified lookups.
func (m *Module) SetSubModule(name string, sub *Module) {
	m.subModules[name] = sub
	m.rebuildQualifiedIndex()
}

// SubModule returns the nested module registered under name, if any.
func (m *Module) SubModule(name string) *Module {
	return m.subModules[name]
}

// rebuildQualifiedIndex flattens the sub-module tree so that qualified
// lookups resolve by a single hash. The synthetic leading component stands
// in for the import alias, which namespace hashing always skips.
func (m *Module) rebuildQualifiedIndex() {
	m.qualified = make(map[uint64]*CallableFunction)
	m.indexInto(m.qualified, m.dynamicHashes, rootPath)
}

func (m *Module) indexInto(out map[uint64]*CallableFunction, dyn map[uint64]bool, path []string) {
	for _, rec := range m.records {
		base := CalcFnHash(path, rec.name, rec.arity)
		if rec.fn.IsScript() {
			out[base] = rec.fn
			continue
		}
		out[CalcFnHashFull(base, rec.params)] = rec.fn
		for _, p := range rec.params {
			if p == TypeDynamic {
				dyn[base] = true
				break
			}
		}
	}
	for name, sub := range m.subModules {
		sub.indexInto(out, dyn, append(path, name))
	}
}
