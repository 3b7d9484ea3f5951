// Package ssa implements the SSA (Static Single Assignment) intermediate
// representation the region code generators emit into.
package ssa

// Op represents an SSA operation code.
type Op int

const (
	OpInvalid Op = iota

	// Constants
	OpConst64   // integer constant; AuxInt = value; Type = integer type
	OpConstBool // bool constant; AuxInt = 0 or 1
	OpConstNil  // null pointer
	OpUndef     // undefined aggregate, the seed of InsertValue chains

	// Integer arithmetic
	OpAdd64 // int + int
	OpSub64 // int - int
	OpMul64 // int * int

	// Integer comparison
	OpEq64  // int == int
	OpNeq64 // int != int
	OpLt64  // int < int
	OpLeq64 // int <= int
	OpGt64  // int > int
	OpGeq64 // int >= int

	// Pointer comparison
	OpEqPtr  // ptr == ptr
	OpNeqPtr // ptr != ptr

	// Boolean
	OpNot     // !bool
	OpAndBool // bool & bool (both sides evaluated)
	OpOrBool  // bool | bool (both sides evaluated)

	// Memory
	OpAlloca // stack slot; Type = ptr; Aux = element Type
	OpLoad   // load from pointer; Args[0] = ptr
	OpStore  // store to pointer; Args[0] = ptr, Args[1] = val; void

	// Struct/Array access
	OpStructFieldPtr // &s.field; Args[0] = ptr; Aux = *StructType; AuxInt = field index
	OpArrayIndexPtr  // &a[i]; Args[0] = ptr, Args[1] = index; Aux = *ArrayType

	// Atomics
	OpAtomicAdd  // fetch-and-add; Args[0] = ptr, Args[1] = delta; Aux = Ordering; result = old value
	OpAtomicLoad // atomic load; Args[0] = ptr; Aux = Ordering
	OpFence      // memory fence; Aux = Ordering; void

	// Aggregates
	OpInsertValue  // Args[0] = aggregate, Args[1] = val; AuxInt = field index
	OpExtractValue // Args[0] = aggregate; AuxInt = field index

	// Calls
	OpStaticCall // direct call; Aux = callee name; Args = arguments
	OpCall       // indirect call; Args[0] = func ptr, Args[1:] = arguments

	// Addresses of module-level symbols
	OpFuncAddr   // address of a function; Aux = name
	OpGlobalAddr // address of a global; Aux = name

	// Heap allocation
	OpNewAlloc // rt_alloc of Aux (Type); optional Args[0] = length of a trailing [0 x T]
	OpFree     // rt_free; Args[0] = ptr; void

	// SSA-specific
	OpPhi  // φ function; Args = one per predecessor
	OpCopy // value copy (identity)
	OpArg  // function argument; AuxInt = param index; Aux = param name

	// Traps
	OpPanic // rt_panic_string(msg); Aux = message; void; the block must be an exit block

	opCount // sentinel; must be last
)

// OpInfo holds metadata about an SSA operation.
type OpInfo struct {
	Name   string // human-readable name
	IsPure bool   // true if the op has no side effects and can be CSE'd/DCE'd
	IsVoid bool   // true if the op produces no value (Store, Fence, Panic, etc.)
}

// opInfoTable maps each Op to its OpInfo.
var opInfoTable = [opCount]OpInfo{
	OpInvalid: {Name: "Invalid"},

	OpConst64:   {Name: "Const64", IsPure: true},
	OpConstBool: {Name: "ConstBool", IsPure: true},
	OpConstNil:  {Name: "ConstNil", IsPure: true},
	OpUndef:     {Name: "Undef", IsPure: true},

	OpAdd64: {Name: "Add64", IsPure: true},
	OpSub64: {Name: "Sub64", IsPure: true},
	OpMul64: {Name: "Mul64", IsPure: true},

	OpEq64:  {Name: "Eq64", IsPure: true},
	OpNeq64: {Name: "Neq64", IsPure: true},
	OpLt64:  {Name: "Lt64", IsPure: true},
	OpLeq64: {Name: "Leq64", IsPure: true},
	OpGt64:  {Name: "Gt64", IsPure: true},
	OpGeq64: {Name: "Geq64", IsPure: true},

	OpEqPtr:  {Name: "EqPtr", IsPure: true},
	OpNeqPtr: {Name: "NeqPtr", IsPure: true},

	OpNot:     {Name: "Not", IsPure: true},
	OpAndBool: {Name: "AndBool", IsPure: true},
	OpOrBool:  {Name: "OrBool", IsPure: true},

	// Memory: not pure (side effects)
	OpAlloca: {Name: "Alloca"},
	OpLoad:   {Name: "Load"},
	OpStore:  {Name: "Store", IsVoid: true},

	// Address arithmetic is pure
	OpStructFieldPtr: {Name: "StructFieldPtr", IsPure: true},
	OpArrayIndexPtr:  {Name: "ArrayIndexPtr", IsPure: true},

	OpAtomicAdd:  {Name: "AtomicAdd"},
	OpAtomicLoad: {Name: "AtomicLoad"},
	OpFence:      {Name: "Fence", IsVoid: true},

	OpInsertValue:  {Name: "InsertValue", IsPure: true},
	OpExtractValue: {Name: "ExtractValue", IsPure: true},

	OpStaticCall: {Name: "StaticCall"},
	OpCall:       {Name: "Call"},

	OpFuncAddr:   {Name: "FuncAddr", IsPure: true},
	OpGlobalAddr: {Name: "GlobalAddr", IsPure: true},

	OpNewAlloc: {Name: "NewAlloc"},
	OpFree:     {Name: "Free", IsVoid: true},

	OpPhi:  {Name: "Phi", IsPure: true},
	OpCopy: {Name: "Copy", IsPure: true},
	OpArg:  {Name: "Arg", IsPure: true},

	OpPanic: {Name: "Panic", IsVoid: true},
}

// String returns the human-readable name of the op.
func (o Op) String() string {
	if o >= 0 && int(o) < len(opInfoTable) {
		return opInfoTable[o].Name
	}
	return "unknown"
}

// Info returns the OpInfo for this op.
func (o Op) Info() OpInfo {
	if o >= 0 && int(o) < len(opInfoTable) {
		return opInfoTable[o]
	}
	return OpInfo{Name: "unknown"}
}

// IsPure returns true if this op has no side effects.
func (o Op) IsPure() bool {
	if o >= 0 && int(o) < len(opInfoTable) {
		return opInfoTable[o].IsPure
	}
	return false
}

// IsVoid returns true if this op produces no value.
func (o Op) IsVoid() bool {
	if o >= 0 && int(o) < len(opInfoTable) {
		return opInfoTable[o].IsVoid
	}
	return false
}

// IsConst reports whether the op is a constant that codegen inlines at
// its use sites.
func (o Op) IsConst() bool {
	switch o {
	case OpConst64, OpConstBool, OpConstNil, OpUndef, OpFuncAddr, OpGlobalAddr:
		return true
	}
	return false
}

// Ordering is the memory ordering of an atomic operation or fence.
type Ordering uint8

const (
	NotAtomic Ordering = iota
	Monotonic
	Acquire
	Release
	AcqRel
	SeqCst
)

var orderingNames = [...]string{
	NotAtomic: "notatomic",
	Monotonic: "monotonic",
	Acquire:   "acquire",
	Release:   "release",
	AcqRel:    "acq_rel",
	SeqCst:    "seq_cst",
}

// String returns the LLVM spelling of the ordering.
func (o Ordering) String() string {
	if int(o) < len(orderingNames) {
		return orderingNames[o]
	}
	return "unknown"
}
