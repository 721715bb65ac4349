package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable representation of the bytecode
func Disassemble(chunk *Chunk, name string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("== %s ==\n", name))

	offset := 0
	for offset < len(chunk.Code) {
		offset = disassembleInstruction(&sb, chunk, offset)
	}

	return sb.String()
}

// Disassemble renders the program's bytecode.
func (p *Program) Disassemble() string {
	return Disassemble(p.Chunk, p.Source)
}

func disassembleInstruction(sb *strings.Builder, chunk *Chunk, offset int) int {
	sb.WriteString(fmt.Sprintf("%04d ", offset))

	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		sb.WriteString("   | ")
	} else {
		sb.WriteString(fmt.Sprintf("%4d ", chunk.Lines[offset]))
	}

	op := Opcode(chunk.Code[offset])
	name, known := OpcodeNames[op]
	if !known {
		sb.WriteString(fmt.Sprintf("Unknown opcode %d\n", op))
		return offset + 1
	}

	switch op {
	case OP_CONST, OP_GET_NAME, OP_EVAL_EXPR:
		return constantInstruction(sb, name, chunk, offset)
	case OP_GET_SLOT, OP_MAKE_LIST, OP_MAKE_MAP:
		return shortInstruction(sb, name, chunk, offset)
	case OP_GET_MEMBER:
		return memberInstruction(sb, name, chunk, offset)
	case OP_JUMP, OP_JUMP_IF_FALSE, OP_JUMP_IF_TRUE:
		return jumpInstruction(sb, name, chunk, offset)
	case OP_CALL_BUILTIN:
		idx := chunk.ReadUint16(offset + 1)
		argc := chunk.Code[offset+3]
		sb.WriteString(fmt.Sprintf("%-16s %4d '%s' %d\n", name, idx, constantText(chunk, idx), argc))
		return offset + 4
	}
	return simpleInstruction(sb, name, offset)
}

func constantText(chunk *Chunk, idx int) string {
	if idx < len(chunk.Constants) {
		return chunk.Constants[idx].Inspect()
	}
	return "(invalid)"
}

func simpleInstruction(sb *strings.Builder, name string, offset int) int {
	sb.WriteString(fmt.Sprintf("%s\n", name))
	return offset + 1
}

func constantInstruction(sb *strings.Builder, name string, chunk *Chunk, offset int) int {
	idx := chunk.ReadUint16(offset + 1)
	sb.WriteString(fmt.Sprintf("%-16s %4d '%s'\n", name, idx, constantText(chunk, idx)))
	return offset + 3
}

func shortInstruction(sb *strings.Builder, name string, chunk *Chunk, offset int) int {
	sb.WriteString(fmt.Sprintf("%-16s %4d\n", name, chunk.ReadUint16(offset+1)))
	return offset + 3
}

func memberInstruction(sb *strings.Builder, name string, chunk *Chunk, offset int) int {
	idx := chunk.ReadUint16(offset + 1)
	slot := chunk.ReadUint16(offset + 3)
	if slot == noSlotOperand {
		sb.WriteString(fmt.Sprintf("%-16s %4d '%s'\n", name, idx, constantText(chunk, idx)))
	} else {
		sb.WriteString(fmt.Sprintf("%-16s %4d '%s' @%d\n", name, idx, constantText(chunk, idx), slot))
	}
	return offset + 5
}

func jumpInstruction(sb *strings.Builder, name string, chunk *Chunk, offset int) int {
	jump := chunk.ReadUint16(offset + 1)
	target := offset + 3 + jump
	sb.WriteString(fmt.Sprintf("%-16s %4d -> %d\n", name, jump, target))
	return offset + 3
}
