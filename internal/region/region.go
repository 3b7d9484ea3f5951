// Package region implements the memory-management code generators. Every
// ownership-affecting operation of the compiled program (allocate, alias,
// dealias, weak lock, member and element access, upcast, crossing between
// regions) is emitted through the Region interface, and the backend that
// owns the operand's kind decides the instruction sequence.
//
// Two backends exist: the immutable shared reference-counted region and the
// mutable reference-counted region. They share one object layout: a control
// block of type tag, strong refcount and (for weakable kinds) weak liveness
// handle, followed by the payload.
package region

import (
	"fmt"

	"github.com/you-not-fish/regionc/internal/ssa"
	"github.com/you-not-fish/regionc/internal/types"
)

// Strategy names a memory-management policy. The set is closed.
type Strategy uint8

const (
	// RCMutable is reference counting over mutable objects.
	RCMutable Strategy = iota
	// ImmShared is reference counting over immutable objects that may be
	// shared between threads.
	ImmShared
	// Linear is arena allocation with linear ownership.
	Linear
	// Unsafe performs no memory management at all.
	Unsafe
)

var strategyNames = [...]string{
	RCMutable: "rcmut",
	ImmShared: "rcimm",
	Linear:    "linear",
	Unsafe:    "unsafe",
}

func (s Strategy) String() string {
	if int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return fmt.Sprintf("Strategy(%d)", uint8(s))
}

// ParseStrategy returns the strategy printed as name.
func ParseStrategy(name string) (Strategy, error) {
	for s, n := range strategyNames {
		if n == name {
			return Strategy(s), nil
		}
	}
	return 0, fmt.Errorf("region: unknown strategy %q", name)
}

// rcFamily reports whether s lays objects out with the shared
// reference-counting control block.
func rcFamily(s Strategy) bool {
	switch s {
	case RCMutable, ImmShared:
		return true
	}
	return false
}

// Ref is a value of the generated program together with the reference
// descriptor that types it.
type Ref struct {
	Type  *types.Reference
	Value *ssa.Value
}

func (r Ref) String() string {
	if r.Type == nil {
		return "<void>"
	}
	return fmt.Sprintf("%s(%s)", r.Type, r.Value)
}

// ThenFunc emits the code for a successful branch of LockWeak or
// AsSubtype. r is the reference the branch receives; the result is the
// branch's value, or the zero Ref when the construct has no result.
type ThenFunc func(b *ssa.Builder, r Ref) Ref

// ElseFunc emits the code for the failing branch of LockWeak or AsSubtype.
type ElseFunc func(b *ssa.Builder) Ref

// Region is the contract every memory-management backend implements. Each
// kind is owned by exactly one region; GlobalState.RegionFor finds it.
// Operations take the builder positioned where the code goes and emit
// into it immediately.
type Region interface {
	// Strategy returns the policy this backend implements.
	Strategy() Strategy

	// TranslateType returns the representation of values described by r.
	// Void and never have none and translate to nil.
	TranslateType(r *types.Reference) ssa.Type

	// Lifecycle.

	// Allocate constructs a struct from its member values. The members
	// are moved into the new object.
	Allocate(b *ssa.Builder, ref *types.Reference, members []Ref) Ref
	// ConstructRuntimeSizedArray allocates an array of size elements,
	// which the caller then initializes with InitializeElementInRSA.
	ConstructRuntimeSizedArray(b *ssa.Builder, ref *types.Reference, size Ref) Ref
	// ConstructStaticSizedArray allocates a fixed-size array.
	ConstructStaticSizedArray(b *ssa.Builder, ref *types.Reference) Ref
	// Deallocate destroys the object: its members are released, its weak
	// record is marked dead and its memory freed.
	Deallocate(b *ssa.Builder, ref Ref)

	// Ownership transfer.

	Alias(b *ssa.Builder, ref Ref)
	Dealias(b *ssa.Builder, ref Ref)
	DiscardOwningRef(b *ssa.Builder, ref Ref)

	// Weak references.

	WeakAlias(b *ssa.Builder, ref Ref) Ref
	AliasWeakRef(b *ssa.Builder, weak Ref)
	DiscardWeakRef(b *ssa.Builder, weak Ref)
	GetIsAliveFromWeakRef(b *ssa.Builder, weak Ref) Ref
	// LockWeak checks the liveness of weak and runs exactly one of onAlive
	// and onDead. onAlive receives a fresh strong reference that it must
	// release. result types the merged value, nil for none.
	LockWeak(b *ssa.Builder, weak Ref, result *types.Reference, onAlive ThenFunc, onDead ElseFunc) Ref

	// Access.

	LoadMember(b *ssa.Builder, structRef Ref, index int, target *types.Reference) Ref
	// StoreMember replaces a member and returns the previous occupant,
	// whose ownership passes to the caller.
	StoreMember(b *ssa.Builder, structRef Ref, index int, value Ref) Ref
	GetRuntimeSizedArrayLength(b *ssa.Builder, arr Ref) Ref
	LoadElementFromSSA(b *ssa.Builder, arr, index Ref, target *types.Reference) Ref
	LoadElementFromRSA(b *ssa.Builder, arr, index Ref, target *types.Reference) Ref
	InitializeElementInSSA(b *ssa.Builder, arr, index, value Ref)
	InitializeElementInRSA(b *ssa.Builder, arr, index, value Ref)
	StoreElementInSSA(b *ssa.Builder, arr, index, value Ref) Ref
	StoreElementInRSA(b *ssa.Builder, arr, index, value Ref) Ref
	// DeinitializeElementFromRSA removes the last element and returns it
	// to the caller; any other index traps.
	DeinitializeElementFromRSA(b *ssa.Builder, arr, index Ref) Ref
	// DeinitializeElementFromSSA moves an element out of the array. The
	// slot must be initialized again before the array is destroyed.
	DeinitializeElementFromSSA(b *ssa.Builder, arr, index Ref) Ref
	// UpgradeLoadResultToRefWithTargetOwnership turns a value just loaded
	// from a member or element into an independent reference of target's
	// ownership.
	UpgradeLoadResultToRefWithTargetOwnership(b *ssa.Builder, loaded Ref, target *types.Reference) Ref

	// Polymorphism.

	Upcast(b *ssa.Builder, structRef Ref, target *types.Reference) Ref
	// UpcastWeak is Upcast for a weak reference; the weak count is moved.
	UpcastWeak(b *ssa.Builder, weak Ref, target *types.Reference) Ref
	AsSubtype(b *ssa.Builder, iface Ref, target types.Kind, result *types.Reference, onMatch ThenFunc, onMismatch ElseFunc) Ref
	GetInterfaceMethodFunctionPtr(b *ssa.Builder, iface Ref, index int) *ssa.Value
	ExplodeInterfaceRef(b *ssa.Builder, iface Ref) (obj, vtable *ssa.Value)

	// Validation.

	// CheckValidReference traps if ref is dangling. It emits nothing
	// unless the configuration is checked.
	CheckValidReference(b *ssa.Builder, ref Ref)

	// Marshalling.

	// ReceiveUnencryptedAlienReference builds, from ref owned by region
	// from, an independent strong reference described by target. ref is
	// only borrowed.
	ReceiveUnencryptedAlienReference(b *ssa.Builder, from Region, ref Ref, target *types.Reference) Ref
	// ReceiveAndDecryptFamiliarReference adopts a handle sent by a region
	// with the same representation.
	ReceiveAndDecryptFamiliarReference(b *ssa.Builder, source *types.Reference, handle *ssa.Value) Ref
	// EncryptAndSendFamiliarReference turns ref into a handle carrying one
	// strong count.
	EncryptAndSendFamiliarReference(b *ssa.Builder, ref Ref) *ssa.Value

	// Declare/define.

	DeclareStruct(def *types.StructDefinition)
	DeclareStructExtraFunctions(def *types.StructDefinition)
	DefineStruct(def *types.StructDefinition)
	DefineStructExtraFunctions(def *types.StructDefinition)
	DeclareInterface(def *types.InterfaceDefinition)
	DeclareInterfaceExtraFunctions(def *types.InterfaceDefinition)
	DefineInterface(def *types.InterfaceDefinition)
	DefineInterfaceExtraFunctions(def *types.InterfaceDefinition)
	DeclareStaticSizedArray(def *types.StaticSizedArrayDefinition)
	DeclareStaticSizedArrayExtraFunctions(def *types.StaticSizedArrayDefinition)
	DefineStaticSizedArray(def *types.StaticSizedArrayDefinition)
	DefineStaticSizedArrayExtraFunctions(def *types.StaticSizedArrayDefinition)
	DeclareRuntimeSizedArray(def *types.RuntimeSizedArrayDefinition)
	DeclareRuntimeSizedArrayExtraFunctions(def *types.RuntimeSizedArrayDefinition)
	DefineRuntimeSizedArray(def *types.RuntimeSizedArrayDefinition)
	DefineRuntimeSizedArrayExtraFunctions(def *types.RuntimeSizedArrayDefinition)
	DeclareEdge(e *types.Edge)
	DefineEdge(e *types.Edge)
	DeclareExtraFunctions()
	DefineExtraFunctions()

	// Exports.

	// ExportName returns the C name of r's type. includeProject prefixes
	// the program name.
	ExportName(r *types.Reference, includeProject bool) string
	GenerateStructDefsC(def *types.StructDefinition) string
	GenerateInterfaceDefsC(def *types.InterfaceDefinition) string
	GenerateStaticSizedArrayDefsC(def *types.StaticSizedArrayDefinition) string
	GenerateRuntimeSizedArrayDefsC(def *types.RuntimeSizedArrayDefinition) string
}
