// internal/parser/ast.go
package parser

// Program is the result of parsing one source file.
type Program struct {
	Includes  []string
	Functions []*Function
}

// Find returns the function with the given name, or nil.
func (p *Program) Find(name string) *Function {
	for _, f := range p.Functions {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Function is one function-shaped region of the source.
type Function struct {
	ReturnType string
	Name       string
	Params     []Param
	Body       []Stmt
}

// Param is a single parameter; Pointer is set when a '*' sits next to the name.
type Param struct {
	Type    string
	Name    string
	Pointer bool
}

// Stmt is a recognized statement. Every block-bearing statement owns its
// nested statement lists exclusively.
type Stmt interface {
	stmtNode()
	// Text returns the raw source text the statement was recognized from,
	// for display alongside execution state.
	Text() string
}

// SizeKind tells how an array declaration's size was written.
type SizeKind int

const (
	SizeNumber SizeKind = iota
	SizeSymbol
	SizeInferred
)

// ArraySize is the declared size of an array: a literal count, an unresolved
// symbolic name, or inferred from the initializer.
type ArraySize struct {
	Kind   SizeKind
	Count  int
	Symbol string
}

type VariableDecl struct {
	VarType string
	Pointer bool
	Name    string
	Init    string // raw initializer expression, "" if absent
	Raw     string
}

type ArrayDecl struct {
	ElemType string
	Name     string
	Size     ArraySize
	Init     []string // element expressions from a brace list
	StrInit  string   // quoted string initializer (char arrays)
	IsStr    bool
	Raw      string
}

type Assignment struct {
	Target string
	Index  string // raw index expression for array element targets, "" otherwise
	Value  string
	Raw    string
}

type CallStmt struct {
	Name string
	Args []string
	Raw  string
}

type Return struct {
	Expr string
	// Recursive is set for the 'var * callee(args)' return shape.
	Recursive *RecursiveReturn
	Raw       string
}

type RecursiveReturn struct {
	Var    string
	Callee string
	Args   []string
}

type If struct {
	Cond string
	Then []Stmt
	Else []Stmt
	Raw  string
}

type While struct {
	Cond string
	Body []Stmt
	Raw  string
}

type For struct {
	Init Stmt // may be nil
	Cond string
	Incr string
	Body []Stmt
	Raw  string
}

// Unknown carries text no pattern recognized; surfaced as a diagnostic when
// reached, never fatal.
type Unknown struct {
	Raw string
}

func (*VariableDecl) stmtNode() {}
func (*ArrayDecl) stmtNode()    {}
func (*Assignment) stmtNode()   {}
func (*CallStmt) stmtNode()     {}
func (*Return) stmtNode()       {}
func (*If) stmtNode()           {}
func (*While) stmtNode()        {}
func (*For) stmtNode()          {}
func (*Unknown) stmtNode()      {}

func (s *VariableDecl) Text() string { return s.Raw }
func (s *ArrayDecl) Text() string    { return s.Raw }
func (s *Assignment) Text() string   { return s.Raw }
func (s *CallStmt) Text() string     { return s.Raw }
func (s *Return) Text() string       { return s.Raw }
func (s *If) Text() string           { return s.Raw }
func (s *While) Text() string        { return s.Raw }
func (s *For) Text() string          { return s.Raw }
func (s *Unknown) Text() string      { return s.Raw }
