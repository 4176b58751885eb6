package ast

import (
	"strings"

	"github.com/quill-lang/quill/internal/token"
)

// Node is any element of the syntax tree.
type Node interface {
	Pos() token.Position
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// FnAccess is the access mode of a script-defined function.
type FnAccess int

const (
	Public FnAccess = iota
	Private
)

// FuncDecl is a script-defined function.
type FuncDecl struct {
	P      token.Position
	Name   string
	Params []string
	Body   *BlockStmt
	Access FnAccess
}

func (f *FuncDecl) Pos() token.Position { return f.P }

// Signature renders the function head for diagnostics.
func (f *FuncDecl) Signature() string {
	var sb strings.Builder
	if f.Access == Private {
		sb.WriteString("private ")
	}
	sb.WriteString(f.Name)
	sb.WriteByte('(')
	sb.WriteString(strings.Join(f.Params, ", "))
	sb.WriteByte(')')
	return sb.String()
}

// Program is a parsed compilation unit: top-level statements plus the
// function declarations hoisted out of the source.
type Program struct {
	Stmts     []Stmt
	Functions []*FuncDecl
}

// Statements

type LetStmt struct {
	P     token.Position
	Name  string
	Value Expr
	Const bool
}

type ReturnStmt struct {
	P     token.Position
	Value Expr // nil for a bare return
}

type ExprStmt struct {
	E Expr
}

type IfStmt struct {
	P    token.Position
	Cond Expr
	Then *BlockStmt
	Else Stmt // nil, *BlockStmt or *IfStmt
}

type WhileStmt struct {
	P    token.Position
	Cond Expr
	Body *BlockStmt
}

type BlockStmt struct {
	P     token.Position
	Stmts []Stmt
}

type BreakStmt struct{ P token.Position }

type ContinueStmt struct{ P token.Position }

type ImportStmt struct {
	P     token.Position
	Path  string
	Alias string
}

func (s *LetStmt) Pos() token.Position      { return s.P }
func (s *ReturnStmt) Pos() token.Position   { return s.P }
func (s *ExprStmt) Pos() token.Position     { return s.E.Pos() }
func (s *IfStmt) Pos() token.Position       { return s.P }
func (s *WhileStmt) Pos() token.Position    { return s.P }
func (s *BlockStmt) Pos() token.Position    { return s.P }
func (s *BreakStmt) Pos() token.Position    { return s.P }
func (s *ContinueStmt) Pos() token.Position { return s.P }
func (s *ImportStmt) Pos() token.Position   { return s.P }

func (*LetStmt) stmtNode()      {}
func (*ReturnStmt) stmtNode()   {}
func (*ExprStmt) stmtNode()     {}
func (*IfStmt) stmtNode()       {}
func (*WhileStmt) stmtNode()    {}
func (*BlockStmt) stmtNode()    {}
func (*BreakStmt) stmtNode()    {}
func (*ContinueStmt) stmtNode() {}
func (*ImportStmt) stmtNode()   {}

// Expressions

type IntLit struct {
	P     token.Position
	Value int64
}

type FloatLit struct {
	P     token.Position
	Value float64
}

type BoolLit struct {
	P     token.Position
	Value bool
}

type StringLit struct {
	P     token.Position
	Value string
}

type CharLit struct {
	P     token.Position
	Value rune
}

type UnitLit struct{ P token.Position }

type Ident struct {
	P    token.Position
	Name string
}

type ThisExpr struct{ P token.Position }

type ArrayLit struct {
	P     token.Position
	Elems []Expr
}

type MapLit struct {
	P      token.Position
	Keys   []string
	Values []Expr
}

type UnaryExpr struct {
	P       token.Position
	Op      token.Type
	Operand Expr
}

// AndExpr and OrExpr short-circuit and are therefore not function calls.
type AndExpr struct {
	P    token.Position
	L, R Expr
}

type OrExpr struct {
	P    token.Position
	L, R Expr
}

type AssignExpr struct {
	P   token.Position
	LHS Expr // *Ident, *IndexExpr, *PropertyExpr or *ThisExpr
	Op  token.Type
	RHS Expr
}

type IndexExpr struct {
	P      token.Position
	Target Expr
	Index  Expr
}

type PropertyExpr struct {
	P      token.Position
	Target Expr
	Name   string
}

// FnCallExpr is a free or namespace-qualified function call. Binary operator
// applications are represented as calls with OpToken set.
type FnCallExpr struct {
	P            token.Position
	Namespace    []string
	Name         string
	Args         []Expr
	OpToken      token.Type // zero when not an operator call
	CaptureScope bool
}

// MethodCallExpr is a method-style call `target.name(args)`.
type MethodCallExpr struct {
	P      token.Position
	Target Expr
	Name   string
	Args   []Expr
}

// FnPtrLit evaluates to a function pointer to a script function, produced by
// closure syntax. The referenced function carries the reserved anonymous
// name prefix.
type FnPtrLit struct {
	P    token.Position
	Name string
}

func (e *IntLit) Pos() token.Position         { return e.P }
func (e *FloatLit) Pos() token.Position       { return e.P }
func (e *BoolLit) Pos() token.Position        { return e.P }
func (e *StringLit) Pos() token.Position      { return e.P }
func (e *CharLit) Pos() token.Position        { return e.P }
func (e *UnitLit) Pos() token.Position        { return e.P }
func (e *Ident) Pos() token.Position          { return e.P }
func (e *ThisExpr) Pos() token.Position       { return e.P }
func (e *ArrayLit) Pos() token.Position       { return e.P }
func (e *MapLit) Pos() token.Position         { return e.P }
func (e *UnaryExpr) Pos() token.Position      { return e.P }
func (e *AndExpr) Pos() token.Position        { return e.P }
func (e *OrExpr) Pos() token.Position         { return e.P }
func (e *AssignExpr) Pos() token.Position     { return e.P }
func (e *IndexExpr) Pos() token.Position      { return e.P }
func (e *PropertyExpr) Pos() token.Position   { return e.P }
func (e *FnCallExpr) Pos() token.Position     { return e.P }
func (e *MethodCallExpr) Pos() token.Position { return e.P }
func (e *FnPtrLit) Pos() token.Position       { return e.P }

func (*IntLit) exprNode()         {}
func (*FloatLit) exprNode()       {}
func (*BoolLit) exprNode()        {}
func (*StringLit) exprNode()      {}
func (*CharLit) exprNode()        {}
func (*UnitLit) exprNode()        {}
func (*Ident) exprNode()          {}
func (*ThisExpr) exprNode()       {}
func (*ArrayLit) exprNode()       {}
func (*MapLit) exprNode()         {}
func (*UnaryExpr) exprNode()      {}
func (*AndExpr) exprNode()        {}
func (*OrExpr) exprNode()         {}
func (*AssignExpr) exprNode()     {}
func (*IndexExpr) exprNode()      {}
func (*PropertyExpr) exprNode()   {}
func (*FnCallExpr) exprNode()     {}
func (*MethodCallExpr) exprNode() {}
func (*FnPtrLit) exprNode()       {}

// IsVariableAccess reports whether e is a plain, non-qualified variable
// reference. The method-call conversion in the dispatcher relies on this to
// decide whether the first argument can be borrowed mutably.
func IsVariableAccess(e Expr) bool {
	_, ok := e.(*Ident)
	return ok
}
