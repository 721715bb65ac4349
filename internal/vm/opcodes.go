// Package vm compiles formula expressions to bytecode and runs them on a
// small stack machine. Subtrees the compiler cannot express are kept as
// AST and handed back to the tree-walking evaluator at run time.
package vm

// Opcode represents a single VM instruction
type Opcode byte

const (
	// Stack manipulation
	OP_CONST Opcode = iota // Push constant from pool
	OP_POP                 // Discard top of stack

	// Arithmetic
	OP_ADD // +
	OP_SUB // -
	OP_MUL // *
	OP_DIV // /
	OP_MOD // %
	OP_POW // ^
	OP_NEG // Unary minus

	// Comparison
	OP_EQ // =
	OP_NE // !=
	OP_LT // <
	OP_LE // <=
	OP_GT // >
	OP_GE // >=

	// Membership
	OP_IN     // in
	OP_NOT_IN // not in

	// Logic
	OP_NOT // not

	// Variables
	OP_GET_SLOT   // Read scope slot: [2-byte slot]
	OP_GET_NAME   // Read scope value by name: [2-byte name constant]
	OP_GET_MEMBER // obj.name: [2-byte name constant] [2-byte slot, 0xffff = by name]
	OP_GET_INDEX  // obj[index]

	// Control flow
	OP_JUMP          // Unconditional jump
	OP_JUMP_IF_FALSE // Jump if top of stack is falsy; leaves it in place
	OP_JUMP_IF_TRUE  // Jump if top of stack is truthy; leaves it in place

	// Data structures
	OP_MAKE_LIST // Create list: [2-byte count]
	OP_MAKE_MAP  // Create map: [2-byte pair count]

	// Calls
	OP_CALL_BUILTIN // Call builtin: [2-byte call constant] [1-byte argc]
	OP_EVAL_EXPR    // Evaluate AST subtree via evaluator: [2-byte constant]

	// Special
	OP_NIL   // Push nil
	OP_TRUE  // Push true
	OP_FALSE // Push false

	OP_RETURN // Return top of stack
)

// OpcodeNames maps opcodes to their string names (for debugging)
var OpcodeNames = map[Opcode]string{
	OP_CONST: "CONST",
	OP_POP:   "POP",

	OP_ADD: "ADD",
	OP_SUB: "SUB",
	OP_MUL: "MUL",
	OP_DIV: "DIV",
	OP_MOD: "MOD",
	OP_POW: "POW",
	OP_NEG: "NEG",

	OP_EQ: "EQ",
	OP_NE: "NE",
	OP_LT: "LT",
	OP_LE: "LE",
	OP_GT: "GT",
	OP_GE: "GE",

	OP_IN:     "IN",
	OP_NOT_IN: "NOT_IN",
	OP_NOT:    "NOT",

	OP_GET_SLOT:   "GET_SLOT",
	OP_GET_NAME:   "GET_NAME",
	OP_GET_MEMBER: "GET_MEMBER",
	OP_GET_INDEX:  "GET_INDEX",

	OP_JUMP:          "JUMP",
	OP_JUMP_IF_FALSE: "JUMP_IF_FALSE",
	OP_JUMP_IF_TRUE:  "JUMP_IF_TRUE",

	OP_MAKE_LIST: "MAKE_LIST",
	OP_MAKE_MAP:  "MAKE_MAP",

	OP_CALL_BUILTIN: "CALL_BUILTIN",
	OP_EVAL_EXPR:    "EVAL_EXPR",

	OP_NIL:   "NIL",
	OP_TRUE:  "TRUE",
	OP_FALSE: "FALSE",

	OP_RETURN: "RETURN",
}

// binaryOperators maps infix operators to their opcode.
var binaryOperators = map[string]Opcode{
	"+":      OP_ADD,
	"-":      OP_SUB,
	"*":      OP_MUL,
	"/":      OP_DIV,
	"%":      OP_MOD,
	"^":      OP_POW,
	"=":      OP_EQ,
	"!=":     OP_NE,
	"<":      OP_LT,
	"<=":     OP_LE,
	">":      OP_GT,
	">=":     OP_GE,
	"in":     OP_IN,
	"not in": OP_NOT_IN,
}

// operatorNames is the inverse of binaryOperators, used on the slow path.
var operatorNames = func() map[Opcode]string {
	m := make(map[Opcode]string, len(binaryOperators))
	for name, op := range binaryOperators {
		m[op] = name
	}
	return m
}()
