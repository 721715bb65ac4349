package vm

import "github.com/funvibe/formula/internal/evaluator"

// MaxConstants is the size of the constant pool a 2-byte index can address.
const MaxConstants = 1 << 16

// Chunk represents a sequence of bytecode instructions
type Chunk struct {
	// Code is the bytecode instructions
	Code []byte

	// Constants pool - literals, names, call sites and fallback subtrees
	Constants []evaluator.Object

	// Lines maps bytecode offset to source line number (for errors)
	Lines []int

	// Columns maps bytecode offset to source column number (for errors)
	Columns []int
}

// NewChunk creates a new empty chunk
func NewChunk() *Chunk {
	return &Chunk{
		Code:      make([]byte, 0, 64),
		Constants: make([]evaluator.Object, 0, 16),
		Lines:     make([]int, 0, 64),
		Columns:   make([]int, 0, 64),
	}
}

// WriteWithCol adds a byte to the chunk with line and column info
func (c *Chunk) WriteWithCol(b byte, line, col int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
	c.Columns = append(c.Columns, col)
}

// WriteOpWithCol writes an opcode to the chunk with column info
func (c *Chunk) WriteOpWithCol(op Opcode, line, col int) {
	c.WriteWithCol(byte(op), line, col)
}

// WriteUint16 writes a 2-byte big-endian operand.
func (c *Chunk) WriteUint16(v int, line, col int) {
	c.WriteWithCol(byte(v>>8), line, col)
	c.WriteWithCol(byte(v), line, col)
}

// AddConstant adds a constant to the pool and returns its index, or -1
// when the pool is full.
func (c *Chunk) AddConstant(value evaluator.Object) int {
	if len(c.Constants) >= MaxConstants {
		return -1
	}
	c.Constants = append(c.Constants, value)
	return len(c.Constants) - 1
}

// ReadUint16 reads a 2-byte operand at offset
func (c *Chunk) ReadUint16(offset int) int {
	return int(c.Code[offset])<<8 | int(c.Code[offset+1])
}

// Len returns the number of bytes in the chunk
func (c *Chunk) Len() int {
	return len(c.Code)
}
