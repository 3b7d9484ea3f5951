package region

import (
	"github.com/you-not-fish/regionc/internal/rtabi"
	"github.com/you-not-fish/regionc/internal/ssa"
	"github.com/you-not-fish/regionc/internal/types"
)

// Trap messages of generated checks.
const (
	danglingMsg = "dangling reference"
	notLastMsg  = "Can only remove the last element!"
)

// rc is the reference-counting core shared by the RC backends. It
// implements every operation whose code does not depend on mutability;
// the backends add the rest.
type rc struct {
	gs       *GlobalState
	strategy Strategy
	atomic   bool
	life     lifecycle
}

func newRC(gs *GlobalState, s Strategy, atomic bool) *rc {
	return &rc{gs: gs, strategy: s, atomic: atomic, life: newLifecycle()}
}

// Strategy implements Region.
func (r *rc) Strategy() Strategy { return r.strategy }

// TranslateType implements Region.
func (r *rc) TranslateType(ref *types.Reference) ssa.Type {
	return translate(r.gs.Program, "TranslateType", ref)
}

func (r *rc) cache() *types.Cache { return r.gs.Program.Cache() }

// strongOwnership is the ownership of a counted reference this backend
// creates from a weak or borrowed one.
func (r *rc) strongOwnership() types.Ownership {
	if r.strategy == ImmShared {
		return types.Share
	}
	return types.Owning
}

// owns panics unless k belongs to this backend.
func (r *rc) owns(op string, k types.Kind) {
	if s := r.gs.RegionFor(k).Strategy(); s != r.strategy {
		internalf(op, "%s belongs to the %s region, not %s", k, s, r.strategy)
	}
}

func (r *rc) structDef(op string, k types.Kind) *types.StructDefinition {
	sk, ok := k.(*types.StructKind)
	if !ok {
		internalf(op, "%s is not a struct", k)
	}
	d := r.gs.Program.LookupStruct(sk)
	if d == nil {
		internalf(op, "%s is not defined", k)
	}
	return d
}

func (r *rc) interfaceDef(op string, k types.Kind) *types.InterfaceDefinition {
	ik, ok := k.(*types.InterfaceKind)
	if !ok {
		internalf(op, "%s is not an interface", k)
	}
	d := r.gs.Program.LookupInterface(ik)
	if d == nil {
		internalf(op, "%s is not defined", k)
	}
	return d
}

func (r *rc) rsaDef(op string, k types.Kind) *types.RuntimeSizedArrayDefinition {
	ak, ok := k.(*types.RuntimeSizedArrayKind)
	if !ok {
		internalf(op, "%s is not a runtime-sized array", k)
	}
	d := r.gs.Program.LookupRuntimeSizedArray(ak)
	if d == nil {
		internalf(op, "%s is not defined", k)
	}
	return d
}

func (r *rc) ssaDef(op string, k types.Kind) *types.StaticSizedArrayDefinition {
	ak, ok := k.(*types.StaticSizedArrayKind)
	if !ok {
		internalf(op, "%s is not a static-sized array", k)
	}
	d := r.gs.Program.LookupStaticSizedArray(ak)
	if d == nil {
		internalf(op, "%s is not defined", k)
	}
	return d
}

// requireHeap panics unless ref is a strong or borrowed pointer to an object.
func requireHeap(op string, ref *types.Reference) {
	if ref.Location != types.Yonder || ref.Ownership == types.Weak {
		internalf(op, "%s does not point to an object", ref)
	}
}

func requireWeak(op string, ref Ref) {
	if ref.Type.Ownership != types.Weak || ref.Type.Location != types.Yonder {
		internalf(op, "%s is not a weak reference", ref.Type)
	}
}

// objectOf returns the object pointer of a yonder reference.
func objectOf(b *ssa.Builder, ref Ref) *ssa.Value {
	switch {
	case ref.Type.Ownership == types.Weak:
		return b.Extract(ref.Value, rtabi.WeakRefObjField)
	case types.IsInterface(ref.Type):
		return b.Extract(ref.Value, rtabi.InterfaceRefObjField)
	}
	return ref.Value
}

// resultType translates the result of a branching construct.
func (r *rc) resultType(result *types.Reference) ssa.Type {
	if result == nil {
		return nil
	}
	return r.TranslateType(result)
}

// adjustStrongRC adds delta to the strong count of obj and returns the
// new count.
func (r *rc) adjustStrongRC(b *ssa.Builder, obj *ssa.Value, delta int64) *ssa.Value {
	p := cbFieldPtr(b, obj, rtabi.CBStrongRCField)
	if r.atomic {
		old := b.AtomicAdd(p, b.Int(delta), ssa.AcqRel)
		return b.Add(old, b.Int(delta))
	}
	n := b.Add(b.Load(ssa.I64, p), b.Int(delta))
	b.Store(p, n)
	return n
}

// retain and release dispatch one reference to the region of its kind.
func retain(gs *GlobalState, b *ssa.Builder, ref Ref) {
	reg := gs.RegionFor(ref.Type.Kind)
	if ref.Type.Ownership == types.Weak {
		reg.AliasWeakRef(b, ref)
		return
	}
	reg.Alias(b, ref)
}

func release(gs *GlobalState, b *ssa.Builder, ref Ref) {
	reg := gs.RegionFor(ref.Type.Kind)
	if ref.Type.Ownership == types.Weak {
		reg.DiscardWeakRef(b, ref)
		return
	}
	reg.Dealias(b, ref)
}

// needsRelease reports whether dropping a value of ref emits any code.
func needsRelease(prog *types.Program, ref *types.Reference) bool {
	if ref.Location == types.Yonder {
		return ref.Ownership != types.Constraint
	}
	if sk, ok := ref.Kind.(*types.StructKind); ok {
		if d := prog.LookupStruct(sk); d != nil {
			for _, m := range d.Members {
				if needsRelease(prog, m.Type) {
					return true
				}
			}
		}
	}
	return false
}

// eachInlineMember runs fn on every member of an inline struct value.
func (r *rc) eachInlineMember(b *ssa.Builder, ref Ref, fn func(m Ref)) {
	sk, ok := ref.Type.Kind.(*types.StructKind)
	if !ok {
		return
	}
	d := r.structDef("eachInlineMember", sk)
	for i, m := range d.Members {
		fn(Ref{Type: m.Type, Value: b.Extract(ref.Value, i)})
	}
}

// Alias implements Region. Borrowed references are not counted.
func (r *rc) Alias(b *ssa.Builder, ref Ref) {
	switch {
	case ref.Type.Ownership == types.Weak:
		internalf("Alias", "%s is weak; use AliasWeakRef", ref.Type)
	case ref.Type.Location == types.Inline:
		r.eachInlineMember(b, ref, func(m Ref) { retain(r.gs, b, m) })
	case types.IsStrong(ref.Type):
		r.adjustStrongRC(b, objectOf(b, ref), 1)
	}
}

// Dealias implements Region. Releasing the last strong reference
// deallocates the object.
func (r *rc) Dealias(b *ssa.Builder, ref Ref) {
	switch {
	case ref.Type.Ownership == types.Weak:
		internalf("Dealias", "%s is weak; use DiscardWeakRef", ref.Type)
	case ref.Type.Location == types.Inline:
		r.eachInlineMember(b, ref, func(m Ref) { release(r.gs, b, m) })
	case types.IsStrong(ref.Type):
		n := r.adjustStrongRC(b, objectOf(b, ref), -1)
		b.If(b.Cmp(ssa.OpEq64, n, b.Int(0)), nil, func() *ssa.Value {
			r.Deallocate(b, ref)
			return nil
		}, nil)
	}
}

// DiscardOwningRef implements Region.
func (r *rc) DiscardOwningRef(b *ssa.Builder, ref Ref) {
	if !types.IsStrong(ref.Type) && ref.Type.Location != types.Inline {
		internalf("DiscardOwningRef", "%s does not own its referent", ref.Type)
	}
	r.Dealias(b, ref)
}

// Deallocate implements Region. Interface references are destroyed
// through the free slot of their vtable.
func (r *rc) Deallocate(b *ssa.Builder, ref Ref) {
	requireHeap("Deallocate", ref.Type)
	if types.IsInterface(ref.Type) {
		ik := ref.Type.Kind.(*types.InterfaceKind)
		obj, vt := r.ExplodeInterfaceRef(b, ref)
		vtT := r.gs.vtableOf("Deallocate", ik).Vtable
		free := b.Load(ssa.Ptr, b.FieldPtr(vtT, vt, rtabi.VtableFreeSlot))
		b.CallPtr(free, nil, obj)
		return
	}
	b.Call(freeFuncName(ref.Type.Kind), nil, ref.Value)
}

// CheckValidReference implements Region.
func (r *rc) CheckValidReference(b *ssa.Builder, ref Ref) {
	if !r.gs.Config.Checked || ref.Type.Location == types.Inline || ref.Type.Ownership == types.Weak {
		return
	}
	obj := objectOf(b, ref)
	b.Assert(b.Not(b.IsNull(obj)), danglingMsg)
	p := cbFieldPtr(b, obj, rtabi.CBStrongRCField)
	var n *ssa.Value
	if r.atomic {
		n = b.AtomicLoad(ssa.I64, p, ssa.Monotonic)
	} else {
		n = b.Load(ssa.I64, p)
	}
	b.Assert(b.Cmp(ssa.OpGt64, n, b.Int(0)), danglingMsg)
}

// Allocate implements Region. An inline struct is built as a value with
// no control block.
func (r *rc) Allocate(b *ssa.Builder, ref *types.Reference, members []Ref) Ref {
	d := r.structDef("Allocate", ref.Kind)
	r.owns("Allocate", d.Kind)
	if len(members) != len(d.Members) {
		internalf("Allocate", "%s has %d members, got %d", d.Kind, len(d.Members), len(members))
	}
	for i, m := range d.Members {
		if members[i].Type != m.Type {
			internalf("Allocate", "member %s of %s is %s, got %s", m.Name, d.Kind, m.Type, members[i].Type)
		}
		r.gs.RegionFor(m.Type.Kind).CheckValidReference(b, members[i])
	}

	if ref.Location == types.Inline {
		st := r.TranslateType(ref).(*ssa.StructType)
		vals := make([]*ssa.Value, len(members))
		for i, m := range members {
			vals[i] = m.Value
		}
		return Ref{Type: ref, Value: b.Aggregate(st, vals...)}
	}
	if !types.IsStrong(ref) {
		internalf("Allocate", "a new object cannot be described by %s", ref)
	}
	l := r.gs.Layout(d.Kind)
	obj := b.NewAlloc(l.Wrapper, nil)
	initControlBlock(b, l, obj)
	for i, m := range members {
		b.Store(b.FieldPtr(l.Wrapper, obj, rtabi.WrapperFirstMemberField+i), m.Value)
	}
	return Ref{Type: ref, Value: obj}
}

// ConstructRuntimeSizedArray implements Region. The elements start
// uninitialized.
func (r *rc) ConstructRuntimeSizedArray(b *ssa.Builder, ref *types.Reference, size Ref) Ref {
	d := r.rsaDef("ConstructRuntimeSizedArray", ref.Kind)
	r.owns("ConstructRuntimeSizedArray", d.Kind)
	if !types.IsStrong(ref) {
		internalf("ConstructRuntimeSizedArray", "a new array cannot be described by %s", ref)
	}
	if t, ok := size.Value.Type.(*ssa.IntType); !ok || t.Bits != 64 {
		internalf("ConstructRuntimeSizedArray", "size %s is not an i64", size)
	}
	b.Assert(b.Cmp(ssa.OpGeq64, size.Value, b.Int(0)), "negative array size")
	l := r.gs.Layout(d.Kind)
	obj := b.NewAlloc(l.Wrapper, size.Value)
	initControlBlock(b, l, obj)
	b.Store(b.FieldPtr(l.Wrapper, obj, rtabi.RSALengthField), size.Value)
	return Ref{Type: ref, Value: obj}
}

// ConstructStaticSizedArray implements Region.
func (r *rc) ConstructStaticSizedArray(b *ssa.Builder, ref *types.Reference) Ref {
	d := r.ssaDef("ConstructStaticSizedArray", ref.Kind)
	r.owns("ConstructStaticSizedArray", d.Kind)
	if !types.IsStrong(ref) {
		internalf("ConstructStaticSizedArray", "a new array cannot be described by %s", ref)
	}
	l := r.gs.Layout(d.Kind)
	obj := b.NewAlloc(l.Wrapper, nil)
	initControlBlock(b, l, obj)
	return Ref{Type: ref, Value: obj}
}

// WeakAlias implements Region. Weak interface references are made from
// weak struct references with UpcastWeak.
func (r *rc) WeakAlias(b *ssa.Builder, ref Ref) Ref {
	requireHeap("WeakAlias", ref.Type)
	if types.IsInterface(ref.Type) {
		internalf("WeakAlias", "%s is an interface; upcast a weak reference to its struct instead", ref.Type.Kind)
	}
	if r.gs.Program.Weakability(ref.Type.Kind) != types.Weakable {
		internalf("WeakAlias", "%s is not weakable", ref.Type.Kind)
	}
	h := b.Load(ssa.I64, cbFieldPtr(b, ref.Value, rtabi.CBWeakHandleField))
	b.Call(rtabi.FnWeakAcquire, nil, h)
	weak := r.cache().Ref(types.Weak, types.Yonder, ref.Type.Kind)
	return Ref{Type: weak, Value: b.Aggregate(weakRefType, ref.Value, h)}
}

// AliasWeakRef implements Region.
func (r *rc) AliasWeakRef(b *ssa.Builder, weak Ref) {
	requireWeak("AliasWeakRef", weak)
	b.Call(rtabi.FnWeakAcquire, nil, b.Extract(weak.Value, rtabi.WeakRefHandleField))
}

// DiscardWeakRef implements Region.
func (r *rc) DiscardWeakRef(b *ssa.Builder, weak Ref) {
	requireWeak("DiscardWeakRef", weak)
	b.Call(rtabi.FnWeakRelease, nil, b.Extract(weak.Value, rtabi.WeakRefHandleField))
}

// GetIsAliveFromWeakRef implements Region.
func (r *rc) GetIsAliveFromWeakRef(b *ssa.Builder, weak Ref) Ref {
	requireWeak("GetIsAliveFromWeakRef", weak)
	alive := b.Call(rtabi.FnWeakIsAlive, ssa.I1, b.Extract(weak.Value, rtabi.WeakRefHandleField))
	return Ref{Type: r.cache().BoolRef(), Value: alive}
}

// LockWeak implements Region. The reference given to onAlive holds its
// own strong count: shared in the immutable region, owning in the mutable
// one. A weak interface reference locks to an interface reference. In the
// threaded configuration the liveness check and the increment happen
// under the weak-table lock.
func (r *rc) LockWeak(b *ssa.Builder, weak Ref, result *types.Reference, onAlive ThenFunc, onDead ElseFunc) Ref {
	requireWeak("LockWeak", weak)
	obj := b.Extract(weak.Value, rtabi.WeakRefObjField)
	h := b.Extract(weak.Value, rtabi.WeakRefHandleField)
	locked := obj
	if types.IsInterface(weak.Type) {
		locked = b.Aggregate(interfaceRefType, obj, b.Extract(weak.Value, rtabi.WeakRefVtableField))
	}
	var ok *ssa.Value
	if r.atomic {
		ok = b.Call(rtabi.FnWeakTryRetain, ssa.I1, h, obj)
	} else {
		ok = b.Call(rtabi.FnWeakIsAlive, ssa.I1, h)
	}
	strong := r.cache().Ref(r.strongOwnership(), types.Yonder, weak.Type.Kind)
	v := b.If(ok, r.resultType(result), func() *ssa.Value {
		if !r.atomic {
			r.adjustStrongRC(b, obj, 1)
		}
		return onAlive(b, Ref{Type: strong, Value: locked}).Value
	}, func() *ssa.Value {
		return onDead(b).Value
	})
	if result == nil {
		return Ref{}
	}
	return Ref{Type: result, Value: v}
}

// LoadMember implements Region.
func (r *rc) LoadMember(b *ssa.Builder, structRef Ref, index int, target *types.Reference) Ref {
	d := r.structDef("LoadMember", structRef.Type.Kind)
	if index < 0 || index >= len(d.Members) {
		internalf("LoadMember", "%s has no member %d", d.Kind, index)
	}
	m := d.Members[index]
	var v *ssa.Value
	if structRef.Type.Location == types.Inline {
		v = b.Extract(structRef.Value, index)
	} else {
		requireHeap("LoadMember", structRef.Type)
		r.CheckValidReference(b, structRef)
		l := r.gs.Layout(d.Kind)
		p := b.FieldPtr(l.Wrapper, structRef.Value, rtabi.WrapperFirstMemberField+index)
		v = b.Load(r.TranslateType(m.Type), p)
	}
	loaded := Ref{Type: m.Type, Value: v}
	return r.gs.RegionFor(m.Type.Kind).UpgradeLoadResultToRefWithTargetOwnership(b, loaded, target)
}

// storeMember replaces member index of a heap struct and returns the old
// value.
func (r *rc) storeMember(b *ssa.Builder, structRef Ref, index int, value Ref) Ref {
	d := r.structDef("StoreMember", structRef.Type.Kind)
	requireHeap("StoreMember", structRef.Type)
	if index < 0 || index >= len(d.Members) {
		internalf("StoreMember", "%s has no member %d", d.Kind, index)
	}
	m := d.Members[index]
	if value.Type != m.Type {
		internalf("StoreMember", "member %s of %s is %s, got %s", m.Name, d.Kind, m.Type, value.Type)
	}
	r.CheckValidReference(b, structRef)
	r.gs.RegionFor(m.Type.Kind).CheckValidReference(b, value)
	l := r.gs.Layout(d.Kind)
	p := b.FieldPtr(l.Wrapper, structRef.Value, rtabi.WrapperFirstMemberField+index)
	old := b.Load(r.TranslateType(m.Type), p)
	b.Store(p, value.Value)
	return Ref{Type: m.Type, Value: old}
}

// UpgradeLoadResultToRefWithTargetOwnership implements Region. A strong
// target is aliased, a weak target takes a weak count, and a borrowed
// target takes nothing. A nil target keeps the loaded ownership.
func (r *rc) UpgradeLoadResultToRefWithTargetOwnership(b *ssa.Builder, loaded Ref, target *types.Reference) Ref {
	const op = "UpgradeLoadResultToRefWithTargetOwnership"
	if target == nil {
		target = loaded.Type
	}
	if target.Kind != loaded.Type.Kind || target.Location != loaded.Type.Location {
		internalf(op, "cannot load %s as %s", loaded.Type, target)
	}
	switch {
	case target.Location == types.Inline:
		r.Alias(b, loaded)
	case target.Ownership == types.Weak:
		if loaded.Type.Ownership == types.Weak {
			r.AliasWeakRef(b, loaded)
		} else {
			return r.WeakAlias(b, loaded)
		}
	case loaded.Type.Ownership == types.Weak:
		internalf(op, "weak %s must be locked, not loaded as %s", loaded.Type, target)
	case types.IsStrong(target):
		r.adjustStrongRC(b, objectOf(b, loaded), 1)
	}
	return Ref{Type: target, Value: loaded.Value}
}

// rsaElements describes the elements of a runtime-sized array.
func (r *rc) rsaElements(b *ssa.Builder, op string, arr Ref) Elements {
	d := r.rsaDef(op, arr.Type.Kind)
	requireHeap(op, arr.Type)
	l := r.gs.Layout(d.Kind)
	n := b.Load(ssa.I64, b.FieldPtr(l.Wrapper, arr.Value, rtabi.RSALengthField))
	return Elements{
		Ptr:     b.FieldPtr(l.Wrapper, arr.Value, rtabi.RSAElemsField),
		Type:    l.Elems,
		Element: d.ElementType,
		Size:    Ref{Type: r.cache().IntRef(), Value: n},
	}
}

// ssaElements describes the elements of a static-sized array.
func (r *rc) ssaElements(b *ssa.Builder, op string, arr Ref) Elements {
	d := r.ssaDef(op, arr.Type.Kind)
	requireHeap(op, arr.Type)
	l := r.gs.Layout(d.Kind)
	return Elements{
		Ptr:     b.FieldPtr(l.Wrapper, arr.Value, rtabi.SSAElemsField),
		Type:    l.Elems,
		Element: d.ElementType,
		Size:    Ref{Type: r.cache().IntRef(), Value: b.Int(d.Size)},
	}
}

// GetRuntimeSizedArrayLength implements Region.
func (r *rc) GetRuntimeSizedArrayLength(b *ssa.Builder, arr Ref) Ref {
	r.CheckValidReference(b, arr)
	return r.rsaElements(b, "GetRuntimeSizedArrayLength", arr).Size
}

func (r *rc) loadElement(b *ssa.Builder, e Elements, index Ref, target *types.Reference) Ref {
	loaded := LoadElement(r.gs, b, e, index)
	return r.gs.RegionFor(e.Element.Kind).UpgradeLoadResultToRefWithTargetOwnership(b, loaded, target)
}

// LoadElementFromRSA implements Region.
func (r *rc) LoadElementFromRSA(b *ssa.Builder, arr, index Ref, target *types.Reference) Ref {
	r.CheckValidReference(b, arr)
	return r.loadElement(b, r.rsaElements(b, "LoadElementFromRSA", arr), index, target)
}

// LoadElementFromSSA implements Region.
func (r *rc) LoadElementFromSSA(b *ssa.Builder, arr, index Ref, target *types.Reference) Ref {
	r.CheckValidReference(b, arr)
	return r.loadElement(b, r.ssaElements(b, "LoadElementFromSSA", arr), index, target)
}

func (r *rc) initializeElement(b *ssa.Builder, op string, e Elements, index, value Ref) {
	if value.Type != e.Element {
		internalf(op, "elements are %s, got %s", e.Element, value.Type)
	}
	InitializeElement(r.gs, b, e, index, value)
}

// InitializeElementInRSA implements Region.
func (r *rc) InitializeElementInRSA(b *ssa.Builder, arr, index, value Ref) {
	r.CheckValidReference(b, arr)
	e := r.rsaElements(b, "InitializeElementInRSA", arr)
	r.initializeElement(b, "InitializeElementInRSA", e, index, value)
}

// InitializeElementInSSA implements Region.
func (r *rc) InitializeElementInSSA(b *ssa.Builder, arr, index, value Ref) {
	r.CheckValidReference(b, arr)
	e := r.ssaElements(b, "InitializeElementInSSA", arr)
	r.initializeElement(b, "InitializeElementInSSA", e, index, value)
}

// storeElement replaces an element and returns the old one. Inline
// elements carry no ownership and are overwritten in place; yonder ones
// are swapped.
func (r *rc) storeElement(b *ssa.Builder, op string, e Elements, index, value Ref) Ref {
	if value.Type != e.Element {
		internalf(op, "elements are %s, got %s", e.Element, value.Type)
	}
	if !types.IsInline(e.Element) {
		return SwapElement(r.gs, b, e, index, value)
	}
	idx := CheckIndexInBounds(b, e.Size, index)
	p := b.IndexPtr(e.Type, e.Ptr, idx)
	old := b.Load(e.Type.Elem, p)
	b.Store(p, value.Value)
	return Ref{Type: e.Element, Value: old}
}

// popElement moves the last element of a runtime-sized array out and
// shortens the array by one. index must name the last element.
func (r *rc) popElement(b *ssa.Builder, arr, index Ref) Ref {
	const op = "DeinitializeElementFromRSA"
	r.CheckValidReference(b, arr)
	e := r.rsaElements(b, op, arr)
	idx := CheckIndexInBounds(b, e.Size, index)
	last := b.Sub(e.Size.Value, b.Int(1))
	b.Assert(b.Cmp(ssa.OpEq64, idx, last), notLastMsg)
	v := b.Load(e.Type.Elem, b.IndexPtr(e.Type, e.Ptr, idx))
	l := r.gs.Layout(arr.Type.Kind)
	b.Store(b.FieldPtr(l.Wrapper, arr.Value, rtabi.RSALengthField), last)
	return Ref{Type: e.Element, Value: v}
}

// takeElement moves element index of e out with its ownership. The slot
// must be initialized again before the array is freed.
func (r *rc) takeElement(b *ssa.Builder, e Elements, index Ref) Ref {
	return LoadElement(r.gs, b, e, index)
}

// Upcast implements Region. The object is not copied and its ownership
// moves to the interface reference.
func (r *rc) Upcast(b *ssa.Builder, structRef Ref, target *types.Reference) Ref {
	sk, ok := structRef.Type.Kind.(*types.StructKind)
	if !ok {
		internalf("Upcast", "%s is not a struct", structRef.Type.Kind)
	}
	ik, ok := target.Kind.(*types.InterfaceKind)
	if !ok {
		internalf("Upcast", "%s is not an interface", target.Kind)
	}
	requireHeap("Upcast", structRef.Type)
	if target.Ownership != structRef.Type.Ownership || target.Location != types.Yonder {
		internalf("Upcast", "cannot upcast %s to %s", structRef.Type, target)
	}
	e := r.gs.Program.LookupEdge(sk, ik)
	if e == nil {
		internalf("Upcast", "%s does not implement %s", sk.Name(), ik.Name())
	}
	vt := b.GlobalAddr(vtableName(e))
	return Ref{Type: target, Value: b.Aggregate(interfaceRefType, structRef.Value, vt)}
}

// UpcastWeak implements Region. The weak count moves to the weak
// interface reference.
func (r *rc) UpcastWeak(b *ssa.Builder, weak Ref, target *types.Reference) Ref {
	requireWeak("UpcastWeak", weak)
	sk, ok := weak.Type.Kind.(*types.StructKind)
	if !ok {
		internalf("UpcastWeak", "%s is not a struct", weak.Type.Kind)
	}
	ik, ok := target.Kind.(*types.InterfaceKind)
	if !ok {
		internalf("UpcastWeak", "%s is not an interface", target.Kind)
	}
	if target.Ownership != types.Weak || target.Location != types.Yonder {
		internalf("UpcastWeak", "cannot upcast %s to %s", weak.Type, target)
	}
	e := r.gs.Program.LookupEdge(sk, ik)
	if e == nil {
		internalf("UpcastWeak", "%s does not implement %s", sk.Name(), ik.Name())
	}
	obj := b.Extract(weak.Value, rtabi.WeakRefObjField)
	h := b.Extract(weak.Value, rtabi.WeakRefHandleField)
	vt := b.GlobalAddr(vtableName(e))
	return Ref{Type: target, Value: b.Aggregate(weakInterfaceRefType, obj, h, vt)}
}

// AsSubtype implements Region. The control block's type tag is compared
// with the target's; on a match, onMatch receives the object as target
// with the interface reference's ownership.
func (r *rc) AsSubtype(b *ssa.Builder, iface Ref, target types.Kind, result *types.Reference, onMatch ThenFunc, onMismatch ElseFunc) Ref {
	r.interfaceDef("AsSubtype", iface.Type.Kind)
	requireHeap("AsSubtype", iface.Type)
	sk, ok := target.(*types.StructKind)
	if !ok {
		internalf("AsSubtype", "target %s is not a struct", target)
	}
	tag := r.gs.Layout(sk).Tag
	r.CheckValidReference(b, iface)

	obj := b.Extract(iface.Value, rtabi.InterfaceRefObjField)
	got := b.Load(ssa.I64, cbFieldPtr(b, obj, rtabi.CBTypeTagField))
	sub := r.cache().Ref(iface.Type.Ownership, types.Yonder, sk)
	v := b.If(b.Cmp(ssa.OpEq64, got, b.Int(tag)), r.resultType(result), func() *ssa.Value {
		return onMatch(b, Ref{Type: sub, Value: obj}).Value
	}, func() *ssa.Value {
		return onMismatch(b).Value
	})
	if result == nil {
		return Ref{}
	}
	return Ref{Type: result, Value: v}
}

// ExplodeInterfaceRef implements Region.
func (r *rc) ExplodeInterfaceRef(b *ssa.Builder, iface Ref) (obj, vtable *ssa.Value) {
	if !types.IsInterface(iface.Type) || iface.Type.Location != types.Yonder {
		internalf("ExplodeInterfaceRef", "%s is not an interface reference", iface.Type)
	}
	return b.Extract(iface.Value, rtabi.InterfaceRefObjField), b.Extract(iface.Value, rtabi.InterfaceRefVtableField)
}

// GetInterfaceMethodFunctionPtr implements Region.
func (r *rc) GetInterfaceMethodFunctionPtr(b *ssa.Builder, iface Ref, index int) *ssa.Value {
	d := r.interfaceDef("GetInterfaceMethodFunctionPtr", iface.Type.Kind)
	if index < 0 || index >= len(d.Methods) {
		internalf("GetInterfaceMethodFunctionPtr", "%s has no method %d", d.Kind, index)
	}
	r.CheckValidReference(b, iface)
	_, vt := r.ExplodeInterfaceRef(b, iface)
	vtT := r.gs.vtableOf("GetInterfaceMethodFunctionPtr", d.Kind).Vtable
	return b.Load(ssa.Ptr, b.FieldPtr(vtT, vt, rtabi.VtableFirstMethodSlot+index))
}

// EncryptAndSendFamiliarReference implements Region. An owned reference
// is moved as it is; a borrowed one is aliased so the handle always
// carries a strong count.
func (r *rc) EncryptAndSendFamiliarReference(b *ssa.Builder, ref Ref) *ssa.Value {
	if ref.Type.Location == types.Yonder && ref.Type.Ownership == types.Constraint {
		r.adjustStrongRC(b, objectOf(b, ref), 1)
	}
	return ref.Value
}

// ReceiveAndDecryptFamiliarReference implements Region.
func (r *rc) ReceiveAndDecryptFamiliarReference(b *ssa.Builder, source *types.Reference, handle *ssa.Value) Ref {
	t := source
	if source.Location == types.Yonder && source.Ownership == types.Constraint {
		t = r.cache().Ref(r.strongOwnership(), types.Yonder, source.Kind)
	}
	return Ref{Type: t, Value: handle}
}
