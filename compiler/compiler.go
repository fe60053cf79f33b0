// Package compiler is used to compile a unit AST into its corresponding
// bytecode representation.
package compiler

import (
	"fmt"
	"math"

	"github.com/gofrs/uuid"
	"github.com/understudy-io/understudy/ast"
	"github.com/understudy-io/understudy/bytecode"
	"github.com/understudy-io/understudy/internal/token"
	"github.com/understudy-io/understudy/op"
)

const (
	// MaxArgs is the maximum number of arguments a method can have.
	MaxArgs = 255

	// Placeholder is a temporary operand written during compilation, which
	// is always replaced before compilation is complete.
	Placeholder = uint16(math.MaxUint16)
)

// Config holds compiler configuration options.
type Config struct {
	// Filename is the source filename, recorded in the compiled unit and
	// used in error messages.
	Filename string

	// CompilerVersion is stamped into the compiled unit. The toolchain
	// package supplies this for real compiles.
	CompilerVersion string

	// Builtins maps builtin names callable without qualification to their
	// arity. An arity of -1 marks a variadic builtin. Calls to names that
	// are neither unit methods nor listed here fail to compile.
	Builtins map[string]int

	// Units maps known unit names to their method arities, allowing
	// qualified calls to be checked at compile time. Calls to units not
	// listed here are resolved when the calling unit is linked.
	Units map[string]map[string]int
}

// Compile compiles a parsed unit and returns its bytecode. Pass nil for cfg
// to use default settings.
func Compile(node *ast.Unit, cfg *Config) (*bytecode.Unit, error) {
	return New(cfg).Compile(node)
}

// Compiler is used to compile a unit AST into bytecode. A Compiler is
// single-use: create one per unit compiled.
type Compiler struct {
	filename        string
	compilerVersion string
	builtins        map[string]int
	knownUnits      map[string]map[string]int

	// Unit being compiled
	unitName    string
	uses        []string
	aliases     map[string]string
	usedAliases map[string]bool
	methodSigs  map[string]int
	warnings    []string

	// Unit-level constant pool
	constants  []bytecode.Constant
	constIndex map[bytecode.Constant]uint16

	// State for the method currently being compiled
	instructions []op.Code
	locals       map[string]uint16
	localNames   []string

	// Set on the first compilation error
	failure *Error
}

// New creates and returns a new Compiler. Pass nil for cfg to use defaults.
func New(cfg *Config) *Compiler {
	c := &Compiler{
		aliases:     map[string]string{},
		usedAliases: map[string]bool{},
		methodSigs:  map[string]int{},
		constIndex:  map[bytecode.Constant]uint16{},
	}
	if cfg != nil {
		c.filename = cfg.Filename
		c.compilerVersion = cfg.CompilerVersion
		c.builtins = cfg.Builtins
		c.knownUnits = cfg.Units
	}
	return c
}

// Compile compiles the given unit AST and returns immutable bytecode.
func (c *Compiler) Compile(node *ast.Unit) (*bytecode.Unit, error) {
	c.unitName = node.Name.String()
	for _, use := range node.Uses {
		full := use.Name.String()
		alias := use.Alias()
		if existing, ok := c.aliases[alias]; ok {
			return nil, c.errorf(use.Pos(),
				"duplicate uses alias %q (%s and %s)", alias, existing, full)
		}
		c.aliases[alias] = full
		c.uses = append(c.uses, full)
	}
	// Collect method signatures first so methods can call each other
	// regardless of declaration order.
	for _, method := range node.Methods {
		name := method.Name.Name
		if _, ok := c.methodSigs[name]; ok {
			return nil, c.errorf(method.Pos(), "method %q redeclared", name)
		}
		if len(method.Params) > MaxArgs {
			return nil, c.errorf(method.Pos(),
				"method %q exceeds the %d parameter limit", name, MaxArgs)
		}
		c.methodSigs[name] = len(method.Params)
	}
	methods := make([]*bytecode.Method, 0, len(node.Methods))
	for _, method := range node.Methods {
		compiled, err := c.compileMethod(method)
		if err != nil {
			return nil, err
		}
		methods = append(methods, compiled)
	}
	for _, use := range node.Uses {
		if !c.usedAliases[use.Alias()] {
			c.warnf(use.Pos(), "unused uses declaration %s", use.Name.String())
		}
	}
	return bytecode.NewUnit(bytecode.UnitParams{
		ID:              uuid.Must(uuid.NewV4()).String(),
		Name:            c.unitName,
		CompilerVersion: c.compilerVersion,
		Filename:        c.filename,
		Uses:            c.uses,
		Constants:       c.constants,
		Methods:         methods,
	}), nil
}

func (c *Compiler) compileMethod(node *ast.Method) (*bytecode.Method, error) {
	c.instructions = nil
	c.locals = map[string]uint16{}
	c.localNames = nil
	for _, param := range node.Params {
		if _, ok := c.locals[param.Name]; ok {
			return nil, c.errorf(param.Pos(),
				"duplicate parameter %q in method %q", param.Name, node.Name.Name)
		}
		c.declareLocal(param.Name)
	}
	for _, stmt := range normalizeMethodBlock(node.Body) {
		if err := c.compileStmt(stmt); err != nil {
			return nil, err
		}
	}
	if c.failure != nil {
		return nil, c.failure
	}
	return bytecode.NewMethod(bytecode.MethodParams{
		Name:         node.Name.Name,
		NumParams:    len(node.Params),
		LocalNames:   c.localNames,
		Instructions: c.instructions,
	}), nil
}

// normalizeMethodBlock returns the statements of a method body with two
// guarantees: the slice ends with the first top-level return statement, and
// if there is no top-level return, a bare one is appended so the method
// evaluates to nil.
func normalizeMethodBlock(node *ast.Block) []ast.Stmt {
	statements := node.Stmts
	for i, stmt := range statements {
		if _, ok := stmt.(*ast.Return); ok {
			return statements[:i+1]
		}
	}
	out := make([]ast.Stmt, 0, len(statements)+1)
	out = append(out, statements...)
	return append(out, &ast.Return{})
}

func (c *Compiler) compileStmt(node ast.Stmt) error {
	switch node := node.(type) {
	case *ast.Let:
		return c.compileLet(node)
	case *ast.Assign:
		return c.compileAssign(node)
	case *ast.Return:
		return c.compileReturn(node)
	case *ast.If:
		return c.compileIf(node)
	case *ast.While:
		return c.compileWhile(node)
	case *ast.Block:
		return c.compileBlock(node)
	case *ast.ExprStmt:
		if err := c.compileExpr(node.X); err != nil {
			return err
		}
		c.emit(op.PopTop)
		return nil
	default:
		return c.errorf(node.Pos(), "unsupported statement type %T", node)
	}
}

func (c *Compiler) compileBlock(node *ast.Block) error {
	for _, stmt := range node.Stmts {
		if err := c.compileStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compiler) compileLet(node *ast.Let) error {
	if err := c.compileExpr(node.Value); err != nil {
		return err
	}
	name := node.Name.Name
	if _, ok := c.locals[name]; ok {
		return c.errorf(node.Name.Pos(), "variable %q already declared", name)
	}
	slot := c.declareLocal(name)
	c.emit(op.StoreFast, slot)
	return nil
}

func (c *Compiler) compileAssign(node *ast.Assign) error {
	slot, ok := c.locals[node.Name.Name]
	if !ok {
		return c.errorf(node.Name.Pos(), "undefined variable %q", node.Name.Name)
	}
	if err := c.compileExpr(node.Value); err != nil {
		return err
	}
	c.emit(op.StoreFast, slot)
	return nil
}

func (c *Compiler) compileReturn(node *ast.Return) error {
	if node.Value == nil {
		c.emit(op.Nil)
	} else if err := c.compileExpr(node.Value); err != nil {
		return err
	}
	c.emit(op.ReturnValue)
	return nil
}

func (c *Compiler) compileIf(node *ast.If) error {
	if err := c.compileExpr(node.Cond); err != nil {
		return err
	}
	jumpIfFalse := c.emit(op.PopJumpForwardIfFalse, Placeholder)
	if err := c.compileBlock(node.Cons); err != nil {
		return err
	}
	if node.Else == nil {
		return c.patchJump(jumpIfFalse)
	}
	jumpOver := c.emit(op.JumpForward, Placeholder)
	if err := c.patchJump(jumpIfFalse); err != nil {
		return err
	}
	if err := c.compileStmt(node.Else); err != nil {
		return err
	}
	return c.patchJump(jumpOver)
}

func (c *Compiler) compileWhile(node *ast.While) error {
	loopStart := len(c.instructions)
	if err := c.compileExpr(node.Cond); err != nil {
		return err
	}
	jumpOut := c.emit(op.PopJumpForwardIfFalse, Placeholder)
	if err := c.compileBlock(node.Body); err != nil {
		return err
	}
	delta := len(c.instructions) - loopStart
	if delta > math.MaxUint16 {
		return c.errorf(node.Pos(), "loop body is too large")
	}
	c.emit(op.JumpBackward, uint16(delta))
	return c.patchJump(jumpOut)
}

func (c *Compiler) compileExpr(node ast.Expr) error {
	switch node := node.(type) {
	case *ast.Int:
		c.emit(op.LoadConst, c.constant(bytecode.IntConstant(node.Value)))
	case *ast.String:
		c.emit(op.LoadConst, c.constant(bytecode.StringConstant(node.Literal)))
	case *ast.Bool:
		if node.Value {
			c.emit(op.True)
		} else {
			c.emit(op.False)
		}
	case *ast.Nil:
		c.emit(op.Nil)
	case *ast.Ident:
		slot, ok := c.locals[node.Name]
		if !ok {
			return c.errorf(node.Pos(), "undefined variable %q", node.Name)
		}
		c.emit(op.LoadFast, slot)
	case *ast.Prefix:
		return c.compilePrefix(node)
	case *ast.Infix:
		return c.compileInfix(node)
	case *ast.Call:
		return c.compileCall(node)
	case *ast.UnitCall:
		return c.compileUnitCall(node)
	default:
		return c.errorf(node.Pos(), "unsupported expression type %T", node)
	}
	return c.failureOrNil()
}

func (c *Compiler) compilePrefix(node *ast.Prefix) error {
	if err := c.compileExpr(node.X); err != nil {
		return err
	}
	switch node.Op {
	case "-":
		c.emit(op.UnaryNegative)
	case "!":
		c.emit(op.UnaryNot)
	default:
		return c.errorf(node.Pos(), "unknown prefix operator %q", node.Op)
	}
	return nil
}

func (c *Compiler) compileInfix(node *ast.Infix) error {
	// Short-circuit operators
	if node.Op == "&&" {
		return c.compileAnd(node)
	}
	if node.Op == "||" {
		return c.compileOr(node)
	}
	if err := c.compileExpr(node.X); err != nil {
		return err
	}
	if err := c.compileExpr(node.Y); err != nil {
		return err
	}
	switch node.Op {
	case "+":
		c.emit(op.BinaryOp, uint16(op.Add))
	case "-":
		c.emit(op.BinaryOp, uint16(op.Subtract))
	case "*":
		c.emit(op.BinaryOp, uint16(op.Multiply))
	case "/":
		c.emit(op.BinaryOp, uint16(op.Divide))
	case "%":
		c.emit(op.BinaryOp, uint16(op.Modulo))
	case "<":
		c.emit(op.CompareOp, uint16(op.LessThan))
	case "<=":
		c.emit(op.CompareOp, uint16(op.LessThanOrEqual))
	case "==":
		c.emit(op.CompareOp, uint16(op.Equal))
	case "!=":
		c.emit(op.CompareOp, uint16(op.NotEqual))
	case ">":
		c.emit(op.CompareOp, uint16(op.GreaterThan))
	case ">=":
		c.emit(op.CompareOp, uint16(op.GreaterThanOrEqual))
	default:
		return c.errorf(node.Pos(), "unknown operator %q", node.Op)
	}
	return c.failureOrNil()
}

func (c *Compiler) compileAnd(node *ast.Infix) error {
	if err := c.compileExpr(node.X); err != nil {
		return err
	}
	jumpFalse := c.emit(op.PopJumpForwardIfFalse, Placeholder)
	if err := c.compileExpr(node.Y); err != nil {
		return err
	}
	jumpEnd := c.emit(op.JumpForward, Placeholder)
	if err := c.patchJump(jumpFalse); err != nil {
		return err
	}
	c.emit(op.False)
	return c.patchJump(jumpEnd)
}

func (c *Compiler) compileOr(node *ast.Infix) error {
	if err := c.compileExpr(node.X); err != nil {
		return err
	}
	jumpTrue := c.emit(op.PopJumpForwardIfTrue, Placeholder)
	if err := c.compileExpr(node.Y); err != nil {
		return err
	}
	jumpEnd := c.emit(op.JumpForward, Placeholder)
	if err := c.patchJump(jumpTrue); err != nil {
		return err
	}
	c.emit(op.True)
	return c.patchJump(jumpEnd)
}

func (c *Compiler) compileCall(node *ast.Call) error {
	name := node.Fun.Name
	argc := len(node.Args)
	if argc > MaxArgs {
		return c.errorf(node.Pos(),
			"max args limit of %d exceeded (got %d)", MaxArgs, argc)
	}
	if arity, ok := c.methodSigs[name]; ok {
		if argc != arity {
			return c.errorf(node.Pos(),
				"method %q expects %d args, got %d", name, arity, argc)
		}
	} else if arity, ok := c.builtins[name]; ok {
		if arity >= 0 && argc != arity {
			return c.errorf(node.Pos(),
				"builtin %q expects %d args, got %d", name, arity, argc)
		}
	} else {
		return c.errorf(node.Fun.Pos(), "undefined method %q", name)
	}
	for _, arg := range node.Args {
		if err := c.compileExpr(arg); err != nil {
			return err
		}
	}
	c.emit(op.Call, c.constant(bytecode.StringConstant(name)), uint16(argc))
	return c.failureOrNil()
}

func (c *Compiler) compileUnitCall(node *ast.UnitCall) error {
	alias := node.Unit.Name
	full, ok := c.aliases[alias]
	if !ok {
		return c.errorf(node.Unit.Pos(),
			"unknown unit alias %q (missing uses declaration?)", alias)
	}
	c.usedAliases[alias] = true
	argc := len(node.Args)
	if argc > MaxArgs {
		return c.errorf(node.Pos(),
			"max args limit of %d exceeded (got %d)", MaxArgs, argc)
	}
	if iface, ok := c.knownUnits[full]; ok {
		arity, ok := iface[node.Method.Name]
		if !ok {
			return c.errorf(node.Method.Pos(),
				"unit %s has no method %q", full, node.Method.Name)
		}
		if arity >= 0 && argc != arity {
			return c.errorf(node.Pos(),
				"method %s.%s expects %d args, got %d",
				full, node.Method.Name, arity, argc)
		}
	}
	for _, arg := range node.Args {
		if err := c.compileExpr(arg); err != nil {
			return err
		}
	}
	c.emit(op.CallUnit,
		c.constant(bytecode.MethodRefConstant(full, node.Method.Name)),
		uint16(argc))
	return c.failureOrNil()
}

// declareLocal assigns the next local slot to the given name.
func (c *Compiler) declareLocal(name string) uint16 {
	slot := uint16(len(c.localNames))
	if len(c.localNames) >= math.MaxUint16 {
		c.setFailure(token.NoPos, "number of locals exceeded limits")
		return 0
	}
	c.locals[name] = slot
	c.localNames = append(c.localNames, name)
	return slot
}

// constant interns a constant pool entry, returning its index.
func (c *Compiler) constant(entry bytecode.Constant) uint16 {
	if idx, ok := c.constIndex[entry]; ok {
		return idx
	}
	if len(c.constants) >= math.MaxUint16 {
		c.setFailure(token.NoPos, "number of constants exceeded limits")
		return 0
	}
	idx := uint16(len(c.constants))
	c.constants = append(c.constants, entry)
	c.constIndex[entry] = idx
	return idx
}

// emit appends an instruction, returning the index of its opcode slot.
func (c *Compiler) emit(opcode op.Code, operands ...uint16) int {
	pos := len(c.instructions)
	c.instructions = append(c.instructions, opcode)
	for _, operand := range operands {
		c.instructions = append(c.instructions, op.Code(operand))
	}
	return pos
}

// patchJump rewrites the placeholder operand of the jump emitted at pos so
// that it targets the next instruction to be emitted.
func (c *Compiler) patchJump(pos int) error {
	delta := len(c.instructions) - pos
	if delta > math.MaxUint16 {
		return c.errorf(token.NoPos, "jump destination is too far away")
	}
	c.instructions[pos+1] = op.Code(delta)
	return nil
}

func (c *Compiler) errorf(pos token.Position, format string, args ...any) *Error {
	return c.setFailure(pos, format, args...)
}

func (c *Compiler) warnf(pos token.Position, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	switch {
	case !pos.IsValid():
		msg = fmt.Sprintf("warning: %s", msg)
	case c.filename != "":
		msg = fmt.Sprintf("warning: %s (%s, line %d, column %d)",
			msg, c.filename, pos.LineNumber(), pos.ColumnNumber())
	default:
		msg = fmt.Sprintf("warning: %s (line %d, column %d)",
			msg, pos.LineNumber(), pos.ColumnNumber())
	}
	c.warnings = append(c.warnings, msg)
}

// Warnings returns the diagnostics accumulated by the last Compile call
// that did not prevent compilation, such as unused uses declarations.
func (c *Compiler) Warnings() []string {
	return c.warnings
}

func (c *Compiler) setFailure(pos token.Position, format string, args ...any) *Error {
	if c.failure == nil {
		c.failure = &Error{
			message: fmt.Sprintf(format, args...),
			file:    c.filename,
			pos:     pos,
		}
	}
	return c.failure
}

func (c *Compiler) failureOrNil() error {
	if c.failure != nil {
		return c.failure
	}
	return nil
}
