package region

import (
	"fmt"

	"github.com/you-not-fish/regionc/internal/rtabi"
	"github.com/you-not-fish/regionc/internal/ssa"
	"github.com/you-not-fish/regionc/internal/types"
)

// regionExtras keys the region-wide extra functions in the lifecycle.
type regionExtras struct{ s Strategy }

func (k regionExtras) String() string { return fmt.Sprintf("extra functions of %s", k.s) }

// DeclareStruct implements Region.
func (r *rc) DeclareStruct(d *types.StructDefinition) {
	r.owns("DeclareStruct", d.Kind)
	r.life.declare("DeclareStruct", d.Kind, false)
	l := r.gs.newKindLayout("DeclareStruct", d.Kind, d.Weakability == types.Weakable)
	r.gs.tracef("%s: declare struct %s (tag %d)", r.strategy, d.Kind.Name(), l.Tag)
}

// DefineStruct implements Region.
func (r *rc) DefineStruct(d *types.StructDefinition) {
	r.life.define("DefineStruct", d.Kind, false)
	l := r.gs.Layout(d.Kind)
	fields := []ssa.Type{l.ControlBlock}
	for _, m := range d.Members {
		fields = append(fields, r.TranslateType(m.Type))
	}
	l.Wrapper.SetBody(fields...)
	r.gs.tracef("%s: define struct %s", r.strategy, d.Kind.Name())
}

// DeclareInterface implements Region.
func (r *rc) DeclareInterface(d *types.InterfaceDefinition) {
	r.owns("DeclareInterface", d.Kind)
	r.life.declare("DeclareInterface", d.Kind, false)
	name := d.Kind.Name() + ".vtable"
	if r.gs.Module.LookupType(name) != nil {
		internalf("DeclareInterface", "type name %s is already taken", name)
	}
	r.gs.vtables[d.Kind] = &interfaceLayout{Kind: d.Kind, Vtable: r.gs.Module.NamedType(name)}
	r.gs.tracef("%s: declare interface %s", r.strategy, d.Kind.Name())
}

// DefineInterface implements Region. The vtable holds the free function,
// the measure and serialize thunks, then one pointer per method.
func (r *rc) DefineInterface(d *types.InterfaceDefinition) {
	r.life.define("DefineInterface", d.Kind, false)
	vt := r.gs.vtableOf("DefineInterface", d.Kind).Vtable
	slots := make([]ssa.Type, rtabi.VtableFirstMethodSlot+len(d.Methods))
	for i := range slots {
		slots[i] = ssa.Ptr
	}
	vt.SetBody(slots...)
	r.gs.tracef("%s: define interface %s", r.strategy, d.Kind.Name())
}

// DeclareStaticSizedArray implements Region.
func (r *rc) DeclareStaticSizedArray(d *types.StaticSizedArrayDefinition) {
	r.owns("DeclareStaticSizedArray", d.Kind)
	if d.Size < 0 {
		internalf("DeclareStaticSizedArray", "%s has negative size %d", d.Kind, d.Size)
	}
	r.life.declare("DeclareStaticSizedArray", d.Kind, false)
	l := r.gs.newKindLayout("DeclareStaticSizedArray", d.Kind, false)
	l.Elems = &ssa.ArrayType{Len: d.Size, Elem: r.TranslateType(d.ElementType)}
	r.gs.tracef("%s: declare array %s (tag %d)", r.strategy, d.Kind.Name(), l.Tag)
}

// DefineStaticSizedArray implements Region.
func (r *rc) DefineStaticSizedArray(d *types.StaticSizedArrayDefinition) {
	r.life.define("DefineStaticSizedArray", d.Kind, false)
	l := r.gs.Layout(d.Kind)
	l.Wrapper.SetBody(l.ControlBlock, l.Elems)
	r.gs.tracef("%s: define array %s", r.strategy, d.Kind.Name())
}

// DeclareRuntimeSizedArray implements Region.
func (r *rc) DeclareRuntimeSizedArray(d *types.RuntimeSizedArrayDefinition) {
	r.owns("DeclareRuntimeSizedArray", d.Kind)
	r.life.declare("DeclareRuntimeSizedArray", d.Kind, false)
	l := r.gs.newKindLayout("DeclareRuntimeSizedArray", d.Kind, false)
	l.Elems = &ssa.ArrayType{Elem: r.TranslateType(d.ElementType)}
	r.gs.tracef("%s: declare array %s (tag %d)", r.strategy, d.Kind.Name(), l.Tag)
}

// DefineRuntimeSizedArray implements Region.
func (r *rc) DefineRuntimeSizedArray(d *types.RuntimeSizedArrayDefinition) {
	r.life.define("DefineRuntimeSizedArray", d.Kind, false)
	l := r.gs.Layout(d.Kind)
	l.Wrapper.SetBody(l.ControlBlock, ssa.I64, l.Elems)
	r.gs.tracef("%s: define array %s", r.strategy, d.Kind.Name())
}

// DeclareEdge implements Region. The method implementations are declared
// so that the vtable can refer to them; their bodies come from the caller.
func (r *rc) DeclareEdge(e *types.Edge) {
	r.owns("DeclareEdge", e.Struct)
	r.life.requireDeclared("DeclareEdge", e.Struct)
	r.life.declare("DeclareEdge", edgeKey(e), false)
	for _, p := range e.Methods {
		r.declarePrototype(p)
	}
	r.gs.serial.declareEdgeThunks(e)
	r.gs.tracef("%s: declare edge %s", r.strategy, edgeKey(e))
}

// DefineEdge implements Region. It emits the edge's serialization thunks
// and the vtable global.
func (r *rc) DefineEdge(e *types.Edge) {
	r.life.define("DefineEdge", edgeKey(e), false)
	vt := r.gs.vtableOf("DefineEdge", e.Interface).Vtable
	r.gs.serial.defineEdgeThunks(e)
	init := []ssa.Const{
		ssa.ConstFunc{Name: freeFuncName(e.Struct)},
		ssa.ConstFunc{Name: measureThunkName(e)},
		ssa.ConstFunc{Name: serializeThunkName(e)},
	}
	for _, p := range e.Methods {
		init = append(init, ssa.ConstFunc{Name: p.Name})
	}
	if len(init) != len(vt.Fields) {
		internalf("DefineEdge", "%s fills %d vtable slots of %d", edgeKey(e), len(init), len(vt.Fields))
	}
	r.gs.Module.AddGlobal(&ssa.Global{Name: vtableName(e), Type: vt, Init: init})
	r.gs.tracef("%s: define edge %s", r.strategy, edgeKey(e))
}

func (r *rc) declarePrototype(p *types.Prototype) *ssa.Func {
	params := make([]*ssa.Param, len(p.Params))
	for i, t := range p.Params {
		params[i] = &ssa.Param{Name: fmt.Sprintf("p%d", i), Type: r.TranslateType(t)}
	}
	var result ssa.Type
	if p.Return != nil {
		result = r.TranslateType(p.Return)
	}
	f := r.gs.Module.DeclareFunc(p.Name, result, params...)
	if len(f.Params) != len(params) {
		internalf("DeclareEdge", "%s is already declared with %d params", p.Name, len(f.Params))
	}
	return f
}

// declareFree declares the free function of k.
func (r *rc) declareFree(op string, k types.Kind) {
	name := freeFuncName(k)
	if r.gs.Module.Func(name) != nil {
		internalf(op, "func %s is already declared", name)
	}
	r.gs.Module.AddFunc(ssa.NewDecl(name, nil, &ssa.Param{Name: "obj", Type: ssa.Ptr}))
}

// defineFree emits the free function of k. members releases the payload;
// the control block is then retired and the memory freed.
func (r *rc) defineFree(k types.Kind, members func(b *ssa.Builder, obj *ssa.Value)) {
	f := r.gs.Module.Func(freeFuncName(k))
	f.StartBody()
	b := ssa.NewBuilder(f)
	obj := b.Param(0)
	l := r.gs.Layout(k)

	members(b, obj)
	if l.Weakable {
		h := b.Load(ssa.I64, b.FieldPtr(l.ControlBlock, obj, rtabi.CBWeakHandleField))
		b.Call(rtabi.FnWeakMarkDead, nil, h)
	}
	if r.atomic {
		b.Fence(ssa.Release)
	}
	b.Free(obj)
	b.Return(nil)
}

// releaseElements releases every element of e, last first.
func (r *rc) releaseElements(b *ssa.Builder, e Elements) {
	if !needsRelease(r.gs.Program, e.Element) {
		return
	}
	IntRangeLoopReverse(b, e.Size, BodyFunc(func(b *ssa.Builder, i Ref) {
		v := b.Load(e.Type.Elem, b.IndexPtr(e.Type, e.Ptr, i.Value))
		release(r.gs, b, Ref{Type: e.Element, Value: v})
	}))
}

// DeclareStructExtraFunctions implements Region.
func (r *rc) DeclareStructExtraFunctions(d *types.StructDefinition) {
	r.life.requireDeclared("DeclareStructExtraFunctions", d.Kind)
	r.life.declare("DeclareStructExtraFunctions", d.Kind, true)
	r.declareFree("DeclareStructExtraFunctions", d.Kind)
}

// DefineStructExtraFunctions implements Region.
func (r *rc) DefineStructExtraFunctions(d *types.StructDefinition) {
	r.life.define("DefineStructExtraFunctions", d.Kind, true)
	l := r.gs.Layout(d.Kind)
	r.defineFree(d.Kind, func(b *ssa.Builder, obj *ssa.Value) {
		for i, m := range d.Members {
			if !needsRelease(r.gs.Program, m.Type) {
				continue
			}
			p := b.FieldPtr(l.Wrapper, obj, rtabi.WrapperFirstMemberField+i)
			release(r.gs, b, Ref{Type: m.Type, Value: b.Load(r.TranslateType(m.Type), p)})
		}
	})
}

// DeclareInterfaceExtraFunctions implements Region. Interfaces have no
// objects of their own, so there is nothing to emit.
func (r *rc) DeclareInterfaceExtraFunctions(d *types.InterfaceDefinition) {
	r.life.requireDeclared("DeclareInterfaceExtraFunctions", d.Kind)
	r.life.declare("DeclareInterfaceExtraFunctions", d.Kind, true)
}

// DefineInterfaceExtraFunctions implements Region.
func (r *rc) DefineInterfaceExtraFunctions(d *types.InterfaceDefinition) {
	r.life.define("DefineInterfaceExtraFunctions", d.Kind, true)
}

// DeclareStaticSizedArrayExtraFunctions implements Region.
func (r *rc) DeclareStaticSizedArrayExtraFunctions(d *types.StaticSizedArrayDefinition) {
	r.life.requireDeclared("DeclareStaticSizedArrayExtraFunctions", d.Kind)
	r.life.declare("DeclareStaticSizedArrayExtraFunctions", d.Kind, true)
	r.declareFree("DeclareStaticSizedArrayExtraFunctions", d.Kind)
}

// DefineStaticSizedArrayExtraFunctions implements Region.
func (r *rc) DefineStaticSizedArrayExtraFunctions(d *types.StaticSizedArrayDefinition) {
	r.life.define("DefineStaticSizedArrayExtraFunctions", d.Kind, true)
	ref := r.gs.ownedRef(d.Kind)
	r.defineFree(d.Kind, func(b *ssa.Builder, obj *ssa.Value) {
		r.releaseElements(b, r.ssaElements(b, "DefineStaticSizedArrayExtraFunctions", Ref{Type: ref, Value: obj}))
	})
}

// DeclareRuntimeSizedArrayExtraFunctions implements Region.
func (r *rc) DeclareRuntimeSizedArrayExtraFunctions(d *types.RuntimeSizedArrayDefinition) {
	r.life.requireDeclared("DeclareRuntimeSizedArrayExtraFunctions", d.Kind)
	r.life.declare("DeclareRuntimeSizedArrayExtraFunctions", d.Kind, true)
	r.declareFree("DeclareRuntimeSizedArrayExtraFunctions", d.Kind)
}

// DefineRuntimeSizedArrayExtraFunctions implements Region.
func (r *rc) DefineRuntimeSizedArrayExtraFunctions(d *types.RuntimeSizedArrayDefinition) {
	r.life.define("DefineRuntimeSizedArrayExtraFunctions", d.Kind, true)
	ref := r.gs.ownedRef(d.Kind)
	r.defineFree(d.Kind, func(b *ssa.Builder, obj *ssa.Value) {
		r.releaseElements(b, r.rsaElements(b, "DefineRuntimeSizedArrayExtraFunctions", Ref{Type: ref, Value: obj}))
	})
}

// DeclareExtraFunctions implements Region. The runtime entry points the
// backend calls are declared once per module.
func (r *rc) DeclareExtraFunctions() {
	r.life.declare("DeclareExtraFunctions", regionExtras{r.strategy}, true)
	m := r.gs.Module
	m.DeclareFunc(rtabi.FnWeakNew, ssa.I64)
	m.DeclareFunc(rtabi.FnWeakAcquire, nil, &ssa.Param{Name: "h", Type: ssa.I64})
	m.DeclareFunc(rtabi.FnWeakRelease, nil, &ssa.Param{Name: "h", Type: ssa.I64})
	m.DeclareFunc(rtabi.FnWeakMarkDead, nil, &ssa.Param{Name: "h", Type: ssa.I64})
	m.DeclareFunc(rtabi.FnWeakIsAlive, ssa.I1, &ssa.Param{Name: "h", Type: ssa.I64})
	if r.atomic {
		m.DeclareFunc(rtabi.FnWeakTryRetain, ssa.I1,
			&ssa.Param{Name: "h", Type: ssa.I64}, &ssa.Param{Name: "obj", Type: ssa.Ptr})
	}
}

// DefineExtraFunctions implements Region.
func (r *rc) DefineExtraFunctions() {
	r.life.define("DefineExtraFunctions", regionExtras{r.strategy}, true)
	r.gs.tracef("%s: extra functions defined", r.strategy)
}
