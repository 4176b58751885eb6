package evaluator

import (
	"strings"

	"github.com/quill-lang/quill/internal/ast"
	"github.com/quill-lang/quill/internal/token"
)

// ScriptFn is a compiled script-defined function.
type ScriptFn struct {
	Name   string
	Params []string
	Body   *ast.BlockStmt
	Access ast.FnAccess
	// Environ is the encapsulated environment captured when the function was
	// defined in another compilation unit: its defining library, the imports
	// in effect, and the global constants at capture time. Nil for functions
	// of the active program.
	Environ *EncapEnviron
}

// Signature renders the function head for diagnostics.
func (f *ScriptFn) Signature() string {
	var sb strings.Builder
	if f.Access == ast.Private {
		sb.WriteString("private ")
	}
	sb.WriteString(f.Name)
	sb.WriteByte('(')
	sb.WriteString(strings.Join(f.Params, ", "))
	sb.WriteByte(')')
	return sb.String()
}

// EncapEnviron is the environment a script function carries across module
// boundaries. Invoking the function swaps these fields into the global
// runtime state under scoped save/restore.
type EncapEnviron struct {
	Lib       *Module
	Imports   []ImportEntry
	Constants map[string]Dynamic
}

// Program is an immutable compiled script: top-level statements plus the
// shared library of script functions, optionally with a bound module
// resolver.
type Program struct {
	stmts    []ast.Stmt
	lib      *Module
	resolver ModuleResolver
	source   string
}

// Statements returns the top-level statements.
func (p *Program) Statements() []ast.Stmt { return p.stmts }

// Lib returns the program's function library.
func (p *Program) Lib() *Module { return p.lib }

// Source returns the symbolic name of the program for diagnostics.
func (p *Program) Source() string { return p.source }

// Resolver returns the module resolver bound to the program, if any.
func (p *Program) Resolver() ModuleResolver { return p.resolver }

// SetResolver binds a module resolver to the program. Imports executed while
// this program runs resolve through it instead of the engine's own resolver.
func (p *Program) SetResolver(r ModuleResolver) { p.resolver = r }

// ClearStatements drops the top-level statements, leaving only function
// definitions. Useful for preparing a pure function library.
func (p *Program) ClearStatements() { p.stmts = nil }

// ModuleResolver resolves an import path to a module.
type ModuleResolver interface {
	Resolve(e *Engine, path string, pos token.Position) (*Module, error)
}

// StaticModuleResolver resolves imports from a fixed path-to-module map.
type StaticModuleResolver map[string]*Module

// Resolve implements ModuleResolver.
func (r StaticModuleResolver) Resolve(_ *Engine, path string, pos token.Position) (*Module, error) {
	if m, ok := r[path]; ok {
		return m, nil
	}
	return nil, errModuleNotFound(path, pos)
}
