package vm

import (
	"errors"

	"github.com/funvibe/formula/internal/ast"
	"github.com/funvibe/formula/internal/evaluator"
)

var (
	errTruncatedBytecode = errors.New("truncated bytecode")
	errStackUnderflow    = errors.New("stack underflow")
	errBadConstant       = errors.New("invalid constant")
)

// VM runs one Program against one scope. It is created per run and
// never shared.
type VM struct {
	chunk *Chunk
	ip    int
	opIP  int // offset of the instruction being executed, for error positions

	stack []Value
	sp    int // Stack pointer (points to next free slot)

	eval  *evaluator.Evaluator
	scope evaluator.Callable
}

// Run executes the program. Errors come back as *evaluator.Error values
// positioned at the failing instruction, exactly as the tree walker
// reports them.
func (p *Program) Run(e *evaluator.Evaluator, scope evaluator.Callable) evaluator.Object {
	vm := &VM{
		chunk: p.Chunk,
		stack: make([]Value, p.MaxStack+1),
		eval:  e,
		scope: scope,
	}
	return vm.run()
}

func (vm *VM) push(v Value) {
	if vm.sp >= len(vm.stack) {
		vm.stack = append(vm.stack, v)
	} else {
		vm.stack[vm.sp] = v
	}
	vm.sp++
}

func (vm *VM) pop() Value {
	if vm.sp <= 0 {
		panic(errStackUnderflow)
	}
	vm.sp--
	v := vm.stack[vm.sp]
	vm.stack[vm.sp] = Value{}
	return v
}

func (vm *VM) peek(distance int) Value {
	idx := vm.sp - 1 - distance
	if idx < 0 {
		panic(errStackUnderflow)
	}
	return vm.stack[idx]
}

func (vm *VM) readByte() byte {
	if vm.ip >= len(vm.chunk.Code) {
		panic(errTruncatedBytecode)
	}
	b := vm.chunk.Code[vm.ip]
	vm.ip++
	return b
}

func (vm *VM) readUint16() int {
	high := vm.readByte()
	low := vm.readByte()
	return int(high)<<8 | int(low)
}

func (vm *VM) readConstant() evaluator.Object {
	idx := vm.readUint16()
	if idx >= len(vm.chunk.Constants) {
		panic(errBadConstant)
	}
	return vm.chunk.Constants[idx]
}

// fail positions err at the current instruction unless it already
// carries a position.
func (vm *VM) fail(obj evaluator.Object) evaluator.Object {
	if err, ok := obj.(*evaluator.Error); ok && err.Line == 0 && vm.opIP < len(vm.chunk.Lines) {
		err.Line, err.Column = vm.chunk.Lines[vm.opIP], vm.chunk.Columns[vm.opIP]
	}
	return obj
}

// pushObject pushes obj and reports whether it was an error.
func (vm *VM) pushObject(obj evaluator.Object) bool {
	if evaluator.IsError(obj) {
		return false
	}
	vm.push(ObjectToValue(obj))
	return true
}

func (vm *VM) run() evaluator.Object {
	for {
		vm.opIP = vm.ip
		op := Opcode(vm.readByte())
		switch op {
		case OP_CONST:
			vm.push(ObjectToValue(vm.readConstant()))

		case OP_NIL:
			vm.push(NilVal())

		case OP_TRUE:
			vm.push(BoolVal(true))

		case OP_FALSE:
			vm.push(BoolVal(false))

		case OP_POP:
			vm.pop()

		case OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_MOD, OP_POW,
			OP_EQ, OP_NE, OP_LT, OP_LE, OP_GT, OP_GE, OP_IN, OP_NOT_IN:
			b := vm.pop()
			a := vm.pop()
			res, errObj := binaryOp(op, a, b)
			if errObj != nil {
				return vm.fail(errObj)
			}
			vm.push(res)

		case OP_NEG:
			v := vm.pop()
			switch {
			case v.IsInt():
				vm.push(IntVal(-v.AsInt()))
			case v.IsFloat():
				vm.push(FloatVal(-v.AsFloat()))
			default:
				if obj := evaluator.UnaryOp("-", v.AsObject()); !vm.pushObject(obj) {
					return vm.fail(obj)
				}
			}

		case OP_NOT:
			vm.push(BoolVal(!vm.pop().Truthy()))

		case OP_GET_SLOT:
			slot := vm.readUint16()
			if obj := vm.scope.QueryValueBySlot(slot); !vm.pushObject(obj) {
				return vm.fail(obj)
			}

		case OP_GET_NAME:
			name := vm.readConstant().(*evaluator.String).Value
			if obj := evaluator.LookupName(vm.scope, name); !vm.pushObject(obj) {
				return vm.fail(obj)
			}

		case OP_GET_MEMBER:
			name := vm.readConstant().(*evaluator.String).Value
			slot := vm.readUint16()
			if slot == noSlotOperand {
				slot = ast.NoSlot
			}
			obj := evaluator.Member(vm.pop().AsObject(), name, slot)
			if !vm.pushObject(obj) {
				return vm.fail(obj)
			}

		case OP_GET_INDEX:
			index := vm.pop()
			left := vm.pop()
			if left.IsObj() && index.IsInt() {
				if l, ok := left.Obj.(*evaluator.List); ok {
					if i := index.AsInt(); i >= 0 && i < int64(len(l.Elements)) {
						vm.push(ObjectToValue(l.Elements[i]))
						continue
					}
				}
			}
			if obj := evaluator.Index(left.AsObject(), index.AsObject()); !vm.pushObject(obj) {
				return vm.fail(obj)
			}

		case OP_JUMP:
			offset := vm.readUint16()
			vm.ip += offset

		case OP_JUMP_IF_FALSE:
			offset := vm.readUint16()
			if !vm.peek(0).Truthy() {
				vm.ip += offset
			}

		case OP_JUMP_IF_TRUE:
			offset := vm.readUint16()
			if vm.peek(0).Truthy() {
				vm.ip += offset
			}

		case OP_MAKE_LIST:
			n := vm.readUint16()
			elems := make([]evaluator.Object, n)
			for i := n - 1; i >= 0; i-- {
				elems[i] = vm.pop().AsObject()
			}
			vm.push(ObjVal(evaluator.NewList(elems...)))

		case OP_MAKE_MAP:
			n := vm.readUint16()
			kv := make([]evaluator.Object, 2*n)
			for i := 2*n - 1; i >= 0; i-- {
				kv[i] = vm.pop().AsObject()
			}
			vm.push(ObjVal(evaluator.MapFromPairs(kv...)))

		case OP_CALL_BUILTIN:
			site := vm.readConstant().(*callSite)
			argc := int(vm.readByte())
			args := make([]evaluator.Object, argc)
			for i := argc - 1; i >= 0; i-- {
				args[i] = vm.pop().AsObject()
			}
			obj := vm.eval.CallBuiltin(site.builtin, site.call, vm.scope, args)
			if !vm.pushObject(obj) {
				return vm.fail(obj)
			}

		case OP_EVAL_EXPR:
			sub := vm.readConstant().(*subtree)
			obj := vm.eval.Eval(sub.expr, vm.scope)
			if !vm.pushObject(obj) {
				return vm.fail(obj)
			}

		case OP_RETURN:
			return vm.pop().AsObject()

		default:
			return vm.fail(evaluator.NewError("unknown opcode %d", op))
		}
	}
}
