package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/you-not-fish/regionc/internal/rtabi"
	"github.com/you-not-fish/regionc/internal/ssa"
)

// lowerFunc emits the LLVM IR for a single SSA function.
func (g *generator) lowerFunc(fn *ssa.Func) {
	g.e.emit("define %s %s(%s) {", llvmType(fn.Result), llvmGlobal(fn.Name), llvmParamList(fn, true))

	for _, b := range fn.Blocks {
		g.lowerBlock(b)
	}

	g.e.emit("}")
}

// lowerBlock emits the LLVM IR for a single basic block.
func (g *generator) lowerBlock(b *ssa.Block) {
	g.e.emitLabel(b)

	for _, v := range b.Values {
		g.lowerValue(v)
	}

	g.lowerTerminator(b)
}

// lowerValue emits the LLVM IR for a single SSA value.
func (g *generator) lowerValue(v *ssa.Value) {
	switch v.Op {
	// Constants and symbol addresses are inlined at use sites.
	case ssa.OpConst64, ssa.OpConstBool, ssa.OpConstNil, ssa.OpUndef,
		ssa.OpFuncAddr, ssa.OpGlobalAddr:
		return

	// Integer arithmetic
	case ssa.OpAdd64:
		g.emitBinOp("add", v)
	case ssa.OpSub64:
		g.emitBinOp("sub", v)
	case ssa.OpMul64:
		g.emitBinOp("mul", v)

	// Integer comparison
	case ssa.OpEq64:
		g.emitICmp("eq", v)
	case ssa.OpNeq64:
		g.emitICmp("ne", v)
	case ssa.OpLt64:
		g.emitICmp("slt", v)
	case ssa.OpLeq64:
		g.emitICmp("sle", v)
	case ssa.OpGt64:
		g.emitICmp("sgt", v)
	case ssa.OpGeq64:
		g.emitICmp("sge", v)

	// Pointer comparison
	case ssa.OpEqPtr:
		g.e.emitInst("%s = icmp eq ptr %s, %s", valueName(v), g.operand(v.Args[0]), g.operand(v.Args[1]))
	case ssa.OpNeqPtr:
		g.e.emitInst("%s = icmp ne ptr %s, %s", valueName(v), g.operand(v.Args[0]), g.operand(v.Args[1]))

	// Boolean
	case ssa.OpNot:
		g.e.emitInst("%s = xor i1 %s, true", valueName(v), g.operand(v.Args[0]))
	case ssa.OpAndBool:
		g.e.emitInst("%s = and i1 %s, %s", valueName(v), g.operand(v.Args[0]), g.operand(v.Args[1]))
	case ssa.OpOrBool:
		g.e.emitInst("%s = or i1 %s, %s", valueName(v), g.operand(v.Args[0]), g.operand(v.Args[1]))

	// Memory
	case ssa.OpAlloca:
		g.e.emitInst("%s = alloca %s", valueName(v), llvmType(v.ElemType()))
	case ssa.OpLoad:
		g.e.emitInst("%s = load %s, ptr %s", valueName(v), llvmType(v.Type), g.operand(v.Args[0]))
	case ssa.OpStore:
		g.e.emitInst("store %s, ptr %s", g.typedOperand(v.Args[1]), g.operand(v.Args[0]))

	// Struct/Array access
	case ssa.OpStructFieldPtr:
		st := v.Aux.(*ssa.StructType)
		g.e.emitInst("%s = getelementptr %s, ptr %s, i32 0, i32 %d",
			valueName(v), st, g.operand(v.Args[0]), v.AuxInt)
	case ssa.OpArrayIndexPtr:
		at := v.Aux.(*ssa.ArrayType)
		g.e.emitInst("%s = getelementptr %s, ptr %s, i64 0, %s",
			valueName(v), at, g.operand(v.Args[0]), g.typedOperand(v.Args[1]))

	// Atomics
	case ssa.OpAtomicAdd:
		g.e.emitInst("%s = atomicrmw add ptr %s, %s %s",
			valueName(v), g.operand(v.Args[0]), g.typedOperand(v.Args[1]), atomicOrdering(v))
	case ssa.OpAtomicLoad:
		g.e.emitInst("%s = load atomic %s, ptr %s %s, align %d",
			valueName(v), llvmType(v.Type), g.operand(v.Args[0]), atomicOrdering(v), alignOf(v.Type))
	case ssa.OpFence:
		g.e.emitInst("fence %s", atomicOrdering(v))

	// Aggregates
	case ssa.OpInsertValue:
		g.e.emitInst("%s = insertvalue %s, %s, %d",
			valueName(v), g.typedOperand(v.Args[0]), g.typedOperand(v.Args[1]), v.AuxInt)
	case ssa.OpExtractValue:
		g.e.emitInst("%s = extractvalue %s, %d", valueName(v), g.typedOperand(v.Args[0]), v.AuxInt)

	// SSA
	case ssa.OpPhi:
		g.lowerPhi(v)
	case ssa.OpCopy:
		// select on a constant condition is the identity for every
		// first-class type, aggregates included.
		x := g.typedOperand(v.Args[0])
		g.e.emitInst("%s = select i1 true, %s, %s", valueName(v), x, x)
	case ssa.OpArg:
		// Args are accessed via parameter names directly; operand() handles this.
		return

	// Traps
	case ssa.OpPanic:
		g.lowerPanic(v)

	// Heap allocation
	case ssa.OpNewAlloc:
		g.lowerNewAlloc(v)
	case ssa.OpFree:
		g.e.emitInst("call void @%s(ptr %s)", rtabi.FnFree, g.operand(v.Args[0]))

	// Calls
	case ssa.OpStaticCall:
		g.emitCall(v, llvmGlobal(v.Name()), v.Args)
	case ssa.OpCall:
		g.emitCall(v, g.operand(v.Args[0]), v.Args[1:])

	default:
		panic(fmt.Sprintf("codegen.lowerValue: unhandled op %s", v.Op))
	}
}

// lowerTerminator emits the block terminator instruction.
func (g *generator) lowerTerminator(b *ssa.Block) {
	switch b.Kind {
	case ssa.BlockPlain:
		if len(b.Succs) > 0 {
			g.e.emitInst("br label %%%s", blockName(b.Succs[0]))
		} else {
			g.e.emitInst("unreachable")
		}
	case ssa.BlockIf:
		cond := g.operand(b.Controls[0])
		g.e.emitInst("br i1 %s, label %%%s, label %%%s",
			cond, blockName(b.Succs[0]), blockName(b.Succs[1]))
	case ssa.BlockReturn:
		if len(b.Controls) > 0 && b.Controls[0] != nil {
			g.e.emitInst("ret %s", g.typedOperand(b.Controls[0]))
		} else {
			g.e.emitInst("ret void")
		}
	case ssa.BlockExit:
		g.e.emitInst("unreachable")
	default:
		g.e.emitInst("; unknown block kind")
		g.e.emitInst("unreachable")
	}
}

// operand returns the LLVM IR operand string for an SSA value.
// Constants are inlined, others use their %vN name.
func (g *generator) operand(v *ssa.Value) string {
	switch v.Op {
	case ssa.OpConst64:
		return strconv.FormatInt(v.AuxInt, 10)
	case ssa.OpConstBool:
		if v.AuxInt != 0 {
			return "true"
		}
		return "false"
	case ssa.OpConstNil:
		return "null"
	case ssa.OpUndef:
		return "undef"
	case ssa.OpFuncAddr, ssa.OpGlobalAddr:
		return llvmGlobal(v.Name())
	case ssa.OpArg:
		return paramName(v.Name(), int(v.AuxInt))
	}
	return valueName(v)
}

// typedOperand returns "T x" for v.
func (g *generator) typedOperand(v *ssa.Value) string {
	return llvmType(v.Type) + " " + g.operand(v)
}

// emitBinOp emits a binary integer operation in the result's width.
func (g *generator) emitBinOp(inst string, v *ssa.Value) {
	g.e.emitInst("%s = %s %s %s, %s", valueName(v), inst, llvmType(v.Type), g.operand(v.Args[0]), g.operand(v.Args[1]))
}

// emitICmp emits an integer comparison in the operands' width.
func (g *generator) emitICmp(cond string, v *ssa.Value) {
	g.e.emitInst("%s = icmp %s %s %s, %s", valueName(v), cond, llvmType(v.Args[0].Type), g.operand(v.Args[0]), g.operand(v.Args[1]))
}

// lowerPhi emits a phi node.
func (g *generator) lowerPhi(v *ssa.Value) {
	lt := llvmType(v.Type)
	parts := make([]string, len(v.Args))
	for i, arg := range v.Args {
		pred := v.Block.Preds[i]
		parts[i] = fmt.Sprintf("[ %s, %%%s ]", g.operand(arg), blockName(pred))
	}
	g.e.emitInst("%s = phi %s %s", valueName(v), lt, strings.Join(parts, ", "))
}

// lowerPanic emits the runtime panic call. The block's unreachable
// terminator follows.
func (g *generator) lowerPanic(v *ssa.Value) {
	msg := v.Name()
	idx := g.stringIndex(msg)
	g.e.emitInst("call void @%s(ptr @.str.%d, i64 %d)", rtabi.FnPanicString, idx, len(msg))
}

// emitCall emits a direct or indirect call. Argument types come from the
// argument values; the result type from v.
func (g *generator) emitCall(v *ssa.Value, callee string, args []*ssa.Value) {
	argStrs := make([]string, len(args))
	for i, a := range args {
		argStrs[i] = g.typedOperand(a)
	}
	if v.Type == nil {
		g.e.emitInst("call void %s(%s)", callee, strings.Join(argStrs, ", "))
		return
	}
	g.e.emitInst("%s = call %s %s(%s)", valueName(v), llvmType(v.Type), callee, strings.Join(argStrs, ", "))
}

// lowerNewAlloc emits a heap allocation via rt_alloc. The size is
// computed with the null-GEP idiom so it follows the target data layout.
// For a struct ending in [0 x T] the GEP indexes the trailing array by the
// run-time count, which yields header size plus count elements.
func (g *generator) lowerNewAlloc(v *ssa.Value) {
	t := v.ElemType()
	end := g.e.nextTmp()
	if len(v.Args) > 0 {
		st, ok := t.(*ssa.StructType)
		tail := -1
		if ok {
			tail = trailingArray(st)
		}
		if tail < 0 {
			panic(fmt.Sprintf("codegen.lowerNewAlloc: counted allocation of %s without trailing array", t))
		}
		g.e.emitInst("%s = getelementptr %s, ptr null, i32 0, i32 %d, %s",
			end, t, tail, g.typedOperand(v.Args[0]))
	} else {
		g.e.emitInst("%s = getelementptr %s, ptr null, i32 1", end, t)
	}
	size := g.e.nextTmp()
	g.e.emitInst("%s = ptrtoint ptr %s to i64", size, end)
	g.e.emitInst("%s = call ptr @%s(i64 %s)", valueName(v), rtabi.FnAlloc, size)
}

// atomicOrdering returns the LLVM ordering keyword of an atomic value.
func atomicOrdering(v *ssa.Value) string {
	ord := v.Ordering()
	if ord == ssa.NotAtomic {
		panic(fmt.Sprintf("codegen: atomic %s without an ordering", v.Op))
	}
	return ord.String()
}

// stringIndex returns the index of a string in the global string table,
// adding it if not present.
func (g *generator) stringIndex(s string) int {
	if idx, ok := g.stringMap[s]; ok {
		return idx
	}
	idx := len(g.strings)
	g.strings = append(g.strings, s)
	g.stringMap[s] = idx
	return idx
}

// llvmEscapeString returns an LLVM IR escaped string literal.
// Non-printable characters and backslash are escaped as \HH.
func llvmEscapeString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' || c == '"' || c < 0x20 || c >= 0x7f {
			fmt.Fprintf(&b, "\\%02X", c)
		} else {
			b.WriteByte(c)
		}
	}
	return b.String()
}
