package vm

import (
	"errors"
	"strconv"

	"github.com/funvibe/formula/internal/ast"
	"github.com/funvibe/formula/internal/evaluator"
	"github.com/funvibe/formula/internal/token"
	"github.com/funvibe/formula/internal/typesystem"
)

var (
	errNotCompilable   = errors.New("expression has no bytecode form")
	errTooManyConsts   = errors.New("too many constants")
	errJumpTooFar      = errors.New("jump too far")
	errTooManyElements = errors.New("too many elements")
)

// noSlotOperand encodes ast.NoSlot in a 2-byte slot operand.
const noSlotOperand = 0xffff

// Program is the bytecode of one expression. It implements
// evaluator.Program, so a CompiledExpression carrying it runs here
// instead of in the tree walker.
type Program struct {
	Chunk    *Chunk
	Source   string
	MaxStack int
}

// callSite is the constant an OP_CALL_BUILTIN refers to.
type callSite struct {
	builtin *evaluator.Builtin
	call    *ast.CallExpression
}

func (c *callSite) Type() evaluator.ObjectType   { return evaluator.BUILTIN_OBJ }
func (c *callSite) Inspect() string              { return c.builtin.Name + "/" + strconv.Itoa(len(c.call.Arguments)) }
func (c *callSite) RuntimeType() typesystem.Type { return typesystem.Function }

// subtree is the constant an OP_EVAL_EXPR refers to.
type subtree struct {
	expr ast.Expression
}

func (s *subtree) Type() evaluator.ObjectType   { return "AST" }
func (s *subtree) Inspect() string              { return s.expr.String() }
func (s *subtree) RuntimeType() typesystem.Type { return typesystem.Any }

// Compiler compiles AST to bytecode
type Compiler struct {
	chunk *Chunk

	// slotCount tracks the operand stack depth at the current instruction.
	slotCount int
	maxSlots  int

	// typeMap from the analyzer supplies the static type recorded on each
	// CompiledExpression.
	typeMap map[ast.Expression]typesystem.Type
}

// NewCompiler creates a compiler. typeMap may be nil.
func NewCompiler(typeMap map[ast.Expression]typesystem.Type) *Compiler {
	return &Compiler{typeMap: typeMap}
}

// Native reports whether the root of expr has an instruction of its
// own. Where clauses, function literals and user function calls do not;
// they run in the tree walker.
func Native(expr ast.Expression) bool {
	switch n := expr.(type) {
	case *ast.IntegerLiteral, *ast.DecimalLiteral, *ast.StringLiteral, *ast.BooleanLiteral,
		*ast.NullLiteral, *ast.Identifier, *ast.ListLiteral, *ast.MapLiteral,
		*ast.DotExpression, *ast.IndexExpression, *ast.IfExpression, *ast.SequenceExpression:
		return true
	case *ast.PrefixExpression:
		return n.Operator == "-" || n.Operator == "not"
	case *ast.InfixExpression:
		if n.Operator == "and" || n.Operator == "or" {
			return true
		}
		_, ok := binaryOperators[n.Operator]
		return ok
	case *ast.CallExpression:
		return builtinOf(n) != nil
	}
	return false
}

func builtinOf(call *ast.CallExpression) *evaluator.Builtin {
	id, ok := call.Function.(*ast.Identifier)
	if !ok || id.Slot != ast.NoSlot {
		return nil
	}
	b, ok := evaluator.LookupBuiltin(id.Value)
	if !ok {
		return nil
	}
	return b
}

// trivial expressions gain nothing from compilation.
func trivial(expr ast.Expression) bool {
	switch expr.(type) {
	case *ast.IntegerLiteral, *ast.DecimalLiteral, *ast.StringLiteral, *ast.BooleanLiteral,
		*ast.NullLiteral, *ast.Identifier:
		return true
	}
	return false
}

// Optimize replaces every maximal compilable subtree of expr with a
// CompiledExpression and returns the new root. Subtrees that cannot be
// compiled are optimized recursively and left to the tree walker.
func (c *Compiler) Optimize(expr ast.Expression) ast.Expression {
	if Native(expr) && !trivial(expr) {
		if prog, err := NewCompiler(c.typeMap).Compile(expr); err == nil {
			return &ast.CompiledExpression{
				Token:      expr.GetToken(),
				Original:   expr,
				Program:    prog,
				ReturnType: c.typeOf(expr),
			}
		}
	}
	ast.MapChildren(expr, c.Optimize)
	return expr
}

func (c *Compiler) typeOf(expr ast.Expression) typesystem.Type {
	if t, ok := c.typeMap[expr]; ok {
		return t
	}
	return typesystem.Any
}

// Compile translates expr into a Program.
func (c *Compiler) Compile(expr ast.Expression) (*Program, error) {
	if !Native(expr) {
		return nil, errNotCompilable
	}
	c.chunk = NewChunk()
	c.slotCount, c.maxSlots = 0, 0
	if err := c.compileExpression(expr); err != nil {
		return nil, err
	}
	c.emit(OP_RETURN, expr.GetToken())
	return &Program{Chunk: c.chunk, Source: expr.String(), MaxStack: c.maxSlots}, nil
}

func (c *Compiler) emit(op Opcode, tok token.Token) {
	c.chunk.WriteOpWithCol(op, tok.Line, tok.Column)
}

func (c *Compiler) emitUint16(v int, tok token.Token) {
	c.chunk.WriteUint16(v, tok.Line, tok.Column)
}

func (c *Compiler) grow(n int) {
	c.slotCount += n
	if c.slotCount > c.maxSlots {
		c.maxSlots = c.slotCount
	}
}

func (c *Compiler) addConstant(obj evaluator.Object) (int, error) {
	idx := c.chunk.AddConstant(obj)
	if idx < 0 {
		return 0, errTooManyConsts
	}
	return idx, nil
}

func (c *Compiler) emitConstant(obj evaluator.Object, tok token.Token) error {
	idx, err := c.addConstant(obj)
	if err != nil {
		return err
	}
	c.emit(OP_CONST, tok)
	c.emitUint16(idx, tok)
	c.grow(1)
	return nil
}

func (c *Compiler) emitJump(op Opcode, tok token.Token) int {
	c.emit(op, tok)
	c.emitUint16(0xffff, tok)
	return c.chunk.Len() - 2
}

func (c *Compiler) patchJump(offset int) error {
	jump := c.chunk.Len() - offset - 2
	if jump > 0xffff {
		return errJumpTooFar
	}
	c.chunk.Code[offset] = byte(jump >> 8)
	c.chunk.Code[offset+1] = byte(jump)
	return nil
}

func (c *Compiler) compileExpression(expr ast.Expression) error {
	tok := expr.GetToken()
	switch n := expr.(type) {
	case *ast.IntegerLiteral:
		return c.emitConstant(evaluator.NewInteger(n.Value), tok)
	case *ast.DecimalLiteral:
		return c.emitConstant(evaluator.NewFloat(n.Value), tok)
	case *ast.StringLiteral:
		return c.emitConstant(evaluator.NewString(n.Value), tok)
	case *ast.BooleanLiteral:
		if n.Value {
			c.emit(OP_TRUE, tok)
		} else {
			c.emit(OP_FALSE, tok)
		}
		c.grow(1)
		return nil
	case *ast.NullLiteral:
		c.emit(OP_NIL, tok)
		c.grow(1)
		return nil
	case *ast.Identifier:
		return c.compileIdentifier(n)
	case *ast.ListLiteral:
		return c.compileSequence(n.Elements, tok)
	case *ast.SequenceExpression:
		return c.compileSequence(n.Expressions, tok)
	case *ast.MapLiteral:
		return c.compileMapLiteral(n)
	case *ast.PrefixExpression:
		if err := c.compileExpression(n.Right); err != nil {
			return err
		}
		switch n.Operator {
		case "-":
			c.emit(OP_NEG, tok)
			return nil
		case "not":
			c.emit(OP_NOT, tok)
			return nil
		}
		return errNotCompilable
	case *ast.InfixExpression:
		return c.compileInfixExpression(n)
	case *ast.DotExpression:
		return c.compileMemberExpression(n)
	case *ast.IndexExpression:
		if err := c.compileExpression(n.Left); err != nil {
			return err
		}
		if err := c.compileExpression(n.Index); err != nil {
			return err
		}
		c.emit(OP_GET_INDEX, tok)
		c.grow(-1)
		return nil
	case *ast.IfExpression:
		return c.compileIfExpression(n)
	case *ast.CallExpression:
		if b := builtinOf(n); b != nil {
			return c.compileBuiltinCall(n, b)
		}
	}
	return c.compileFallback(expr)
}

// compileFallback embeds expr as a constant evaluated by the tree walker.
func (c *Compiler) compileFallback(expr ast.Expression) error {
	idx, err := c.addConstant(&subtree{expr: c.Optimize(expr)})
	if err != nil {
		return err
	}
	tok := expr.GetToken()
	c.emit(OP_EVAL_EXPR, tok)
	c.emitUint16(idx, tok)
	c.grow(1)
	return nil
}

func (c *Compiler) compileIdentifier(ident *ast.Identifier) error {
	if ident.Slot != ast.NoSlot && ident.Slot < noSlotOperand {
		c.emit(OP_GET_SLOT, ident.Token)
		c.emitUint16(ident.Slot, ident.Token)
		c.grow(1)
		return nil
	}
	if ident.Slot != ast.NoSlot {
		return c.compileFallback(ident)
	}
	idx, err := c.addConstant(evaluator.NewString(ident.Value))
	if err != nil {
		return err
	}
	c.emit(OP_GET_NAME, ident.Token)
	c.emitUint16(idx, ident.Token)
	c.grow(1)
	return nil
}

func (c *Compiler) compileSequence(elems []ast.Expression, tok token.Token) error {
	if len(elems) > 0xffff {
		return errTooManyElements
	}
	for _, el := range elems {
		if err := c.compileExpression(el); err != nil {
			return err
		}
	}
	c.emit(OP_MAKE_LIST, tok)
	c.emitUint16(len(elems), tok)
	c.grow(1 - len(elems))
	return nil
}

func (c *Compiler) compileMapLiteral(lit *ast.MapLiteral) error {
	if len(lit.Keys) > 0xffff {
		return errTooManyElements
	}
	for i := range lit.Keys {
		if err := c.compileExpression(lit.Keys[i]); err != nil {
			return err
		}
		if err := c.compileExpression(lit.Values[i]); err != nil {
			return err
		}
	}
	c.emit(OP_MAKE_MAP, lit.Token)
	c.emitUint16(len(lit.Keys), lit.Token)
	c.grow(1 - 2*len(lit.Keys))
	return nil
}

func (c *Compiler) compileInfixExpression(expr *ast.InfixExpression) error {
	if expr.Operator == "and" || expr.Operator == "or" {
		return c.compileLogicalOp(expr)
	}
	op, ok := binaryOperators[expr.Operator]
	if !ok {
		return errNotCompilable
	}
	if err := c.compileExpression(expr.Left); err != nil {
		return err
	}
	if err := c.compileExpression(expr.Right); err != nil {
		return err
	}
	c.emit(op, expr.Token)
	c.grow(-1)
	return nil
}

// compileLogicalOp short-circuits: the left operand stays on the stack
// when it decides the result.
func (c *Compiler) compileLogicalOp(expr *ast.InfixExpression) error {
	if err := c.compileExpression(expr.Left); err != nil {
		return err
	}
	jumpOp := OP_JUMP_IF_FALSE
	if expr.Operator == "or" {
		jumpOp = OP_JUMP_IF_TRUE
	}
	endJump := c.emitJump(jumpOp, expr.Token)
	c.emit(OP_POP, expr.Token)
	c.grow(-1)
	if err := c.compileExpression(expr.Right); err != nil {
		return err
	}
	return c.patchJump(endJump)
}

func (c *Compiler) compileMemberExpression(expr *ast.DotExpression) error {
	if err := c.compileExpression(expr.Left); err != nil {
		return err
	}
	idx, err := c.addConstant(evaluator.NewString(expr.Name))
	if err != nil {
		return err
	}
	slot := expr.Slot
	if slot == ast.NoSlot || slot >= noSlotOperand {
		slot = noSlotOperand
	}
	c.emit(OP_GET_MEMBER, expr.Token)
	c.emitUint16(idx, expr.Token)
	c.emitUint16(slot, expr.Token)
	return nil
}

func (c *Compiler) compileIfExpression(expr *ast.IfExpression) error {
	before := c.slotCount
	var endJumps []int
	for i, cond := range expr.Conditions {
		if err := c.compileExpression(cond); err != nil {
			return err
		}
		next := c.emitJump(OP_JUMP_IF_FALSE, expr.Token)
		c.emit(OP_POP, expr.Token)
		c.grow(-1)
		if err := c.compileExpression(expr.Results[i]); err != nil {
			return err
		}
		endJumps = append(endJumps, c.emitJump(OP_JUMP, expr.Token))
		if err := c.patchJump(next); err != nil {
			return err
		}
		// The failed condition is still on the stack here.
		c.slotCount = before + 1
		c.emit(OP_POP, expr.Token)
		c.grow(-1)
	}
	if expr.Else != nil {
		if err := c.compileExpression(expr.Else); err != nil {
			return err
		}
	} else {
		c.emit(OP_NIL, expr.Token)
		c.grow(1)
	}
	for _, j := range endJumps {
		if err := c.patchJump(j); err != nil {
			return err
		}
	}
	c.slotCount = before + 1
	return nil
}

// compileBuiltinCall pushes the arguments and calls b. Lazy arguments
// are pushed as constants carrying their optimized subtree.
func (c *Compiler) compileBuiltinCall(call *ast.CallExpression, b *evaluator.Builtin) error {
	argc := len(call.Arguments)
	if argc > 0xff {
		return errTooManyElements
	}
	idx, err := c.addConstant(&callSite{builtin: b, call: call})
	if err != nil {
		return err
	}
	for i, arg := range call.Arguments {
		if b.IsLazy(i) {
			lazy := &evaluator.LazyValue{Arg: &ast.LazyArgument{Expr: c.Optimize(arg), Base: call.ScopeBase}}
			if err := c.emitConstant(lazy, arg.GetToken()); err != nil {
				return err
			}
			continue
		}
		if err := c.compileExpression(arg); err != nil {
			return err
		}
	}
	c.emit(OP_CALL_BUILTIN, call.Token)
	c.emitUint16(idx, call.Token)
	c.chunk.WriteWithCol(byte(argc), call.Token.Line, call.Token.Column)
	c.grow(1 - argc)
	return nil
}
