// Package rtabi defines the ABI constants shared between the compiler and runtime.
// These values must be kept in sync with the runtime's object and weak-table layouts.
package rtabi

// Target configuration
const (
	// TargetTriple is the LLVM target triple for code generation.
	TargetTriple = "arm64-apple-macosx26.0.0"

	// DataLayout is the LLVM data layout string matching the target.
	DataLayout = "e-m:o-i64:64-i128:128-n32:64-S128-Fn32"
)

// Basic type sizes in bytes
const (
	SizeInt  = 8 // int64_t
	SizeBool = 1 // int8_t (stored), i1 (SSA)
	SizePtr  = 8 // pointer

	// SizeFatRef is the size of an interface or weak reference (two words).
	SizeFatRef = 16

	// SizeWeakInterfaceRef is the size of a weak interface reference.
	SizeWeakInterfaceRef = 24
)

// Basic type alignments in bytes
const (
	AlignInt  = 8
	AlignBool = 1
	AlignPtr  = 8
)

// Control block layout.
//
// Every heap object starts with a control block, so the address of an
// object is also the address of its control block regardless of kind.
const (
	// CBTypeTagField is the field index of the type tag (i64).
	CBTypeTagField = 0

	// CBStrongRCField is the field index of the strong refcount (i64).
	CBStrongRCField = 1

	// CBWeakHandleField is the field index of the weak liveness handle (i64).
	// Only present in control blocks of weakable kinds.
	CBWeakHandleField = 2

	// CBNumFields is the number of fields in a non-weakable control block.
	CBNumFields = 2

	// CBWeakableNumFields is the number of fields in a weakable control block.
	CBWeakableNumFields = 3
)

// Object wrapper layout
const (
	// WrapperControlBlockField is the wrapper field holding the control block.
	WrapperControlBlockField = 0

	// WrapperFirstMemberField is the wrapper field of a struct's first member.
	WrapperFirstMemberField = 1

	// SSAElemsField is the wrapper field of a static-sized array's elements.
	SSAElemsField = 1

	// RSALengthField is the wrapper field of a runtime-sized array's length.
	RSALengthField = 1

	// RSAElemsField is the wrapper field of a runtime-sized array's elements.
	RSAElemsField = 2
)

// Fat reference layouts
const (
	// InterfaceRefObjField is the object pointer of an interface reference.
	InterfaceRefObjField = 0

	// InterfaceRefVtableField is the vtable pointer of an interface reference.
	InterfaceRefVtableField = 1

	// WeakRefObjField is the object pointer of a weak reference.
	WeakRefObjField = 0

	// WeakRefHandleField is the liveness handle of a weak reference.
	WeakRefHandleField = 1

	// WeakRefVtableField is the vtable pointer of a weak interface
	// reference, which extends the weak reference layout.
	WeakRefVtableField = 2
)

// Vtable layout
const (
	// VtableFreeSlot holds the free function of the concrete struct.
	VtableFreeSlot = 0

	// VtableMeasureSlot holds the edge's measure thunk: the word count of
	// the object's serialized form, edge index included.
	VtableMeasureSlot = 1

	// VtableSerializeSlot holds the edge's serialize thunk, which writes
	// the edge index and then the object.
	VtableSerializeSlot = 2

	// VtableFirstMethodSlot is the slot of the interface's first method.
	VtableFirstMethodSlot = 3
)

// NoWeakHandle is stored in the weak handle of a weak reference that was
// never attached to a liveness record.
const NoWeakHandle = -1

// LLVM type names for code generation
const (
	LLVMTypeInt    = "i64"
	LLVMTypeBool   = "i8" // in memory
	LLVMTypeBoolI1 = "i1" // in SSA
	LLVMTypePtr    = "ptr"
)
