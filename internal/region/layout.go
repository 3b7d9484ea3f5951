package region

import (
	"github.com/you-not-fish/regionc/internal/rtabi"
	"github.com/you-not-fish/regionc/internal/ssa"
	"github.com/you-not-fish/regionc/internal/types"
)

// Control block and fat reference representations. The control block is
// the first field of every object wrapper, so a pointer to the object is a
// pointer to its control block whatever the kind.
var (
	controlBlockType         = ssa.NewStruct(ssa.I64, ssa.I64)
	weakableControlBlockType = ssa.NewStruct(ssa.I64, ssa.I64, ssa.I64)

	interfaceRefType     = ssa.NewStruct(ssa.Ptr, ssa.Ptr)
	weakRefType          = ssa.NewStruct(ssa.Ptr, ssa.I64)
	weakInterfaceRefType = ssa.NewStruct(ssa.Ptr, ssa.I64, ssa.Ptr)

	// serialBufferType holds a word count followed by the words.
	serialBufferType = ssa.NewStruct(ssa.I64, &ssa.ArrayType{Elem: ssa.I64})
)

// KindLayout is the in-memory shape of a struct or array kind. It is
// computed once, when the kind is declared, and cached on the GlobalState.
type KindLayout struct {
	Kind types.Kind

	// Wrapper is the named object type: control block then payload. Its
	// body is filled in when the kind is defined.
	Wrapper *ssa.StructType

	// ControlBlock is the control block type; Weakable selects the
	// three-field form.
	ControlBlock *ssa.StructType
	Weakable     bool

	// Tag identifies the kind at run time. Tags start at 1.
	Tag int64

	// Elems is the element storage type of array kinds.
	Elems *ssa.ArrayType
}

// interfaceLayout is the vtable shape of an interface kind.
type interfaceLayout struct {
	Kind   *types.InterfaceKind
	Vtable *ssa.StructType
}

// newKindLayout creates the layout of k with an opaque wrapper.
func (gs *GlobalState) newKindLayout(op string, k types.Kind, weakable bool) *KindLayout {
	if _, dup := gs.layouts[k]; dup {
		internalf(op, "%s already has a layout", k)
	}
	if gs.Module.LookupType(k.Name()) != nil {
		internalf(op, "type name %s is already taken", k.Name())
	}
	gs.nextTag++
	l := &KindLayout{
		Kind:         k,
		Wrapper:      gs.Module.NamedType(k.Name()),
		ControlBlock: controlBlockType,
		Weakable:     weakable,
		Tag:          gs.nextTag,
	}
	if weakable {
		l.ControlBlock = weakableControlBlockType
	}
	gs.layouts[k] = l
	return l
}

// Layout returns the cached layout of a struct or array kind. It panics
// with an internal error if the kind has not been declared.
func (gs *GlobalState) Layout(k types.Kind) *KindLayout {
	l, ok := gs.layouts[k]
	if !ok {
		internalf("Layout", "%s has no layout; declare it first", k)
	}
	return l
}

func (gs *GlobalState) vtableOf(op string, k *types.InterfaceKind) *interfaceLayout {
	l, ok := gs.vtables[k]
	if !ok {
		internalf(op, "%s has no vtable type; declare it first", k)
	}
	return l
}

// freeFuncName is the name of the function that destroys objects of k.
func freeFuncName(k types.Kind) string { return k.Name() + ".free" }

// vtableName is the name of the vtable global of an edge.
func vtableName(e *types.Edge) string {
	return e.Struct.Name() + ".vtable." + e.Interface.Name()
}

// edgeKey names an edge in lifecycle diagnostics.
func edgeKey(e *types.Edge) string {
	return e.Struct.Name() + "->" + e.Interface.Name()
}

// translate returns the representation of values described by r.
func translate(prog *types.Program, op string, r *types.Reference) ssa.Type {
	if r.Location == types.Yonder {
		switch {
		case r.Ownership == types.Weak && types.IsInterface(r):
			return weakInterfaceRefType
		case r.Ownership == types.Weak:
			return weakRefType
		case types.IsInterface(r):
			return interfaceRefType
		}
		return ssa.Ptr
	}
	switch k := r.Kind.(type) {
	case *types.Int:
		return ssa.IntOf(k.Bits())
	case *types.Bool:
		return ssa.I1
	case *types.Void, *types.Never:
		return nil
	case *types.StructKind:
		def := prog.LookupStruct(k)
		if def == nil {
			internalf(op, "inline %s is not defined", k)
		}
		fields := make([]ssa.Type, len(def.Members))
		for i, m := range def.Members {
			fields[i] = translate(prog, op, m.Type)
		}
		return ssa.NewStruct(fields...)
	}
	internalf(op, "%s cannot be stored inline", r)
	return nil
}

// cbFieldPtr returns the address of control block field i of obj. The
// two-field prefix is used unless the field needs the weakable form.
func cbFieldPtr(b *ssa.Builder, obj *ssa.Value, field int) *ssa.Value {
	cb := controlBlockType
	if field >= rtabi.CBNumFields {
		cb = weakableControlBlockType
	}
	return b.FieldPtr(cb, obj, field)
}

// initControlBlock fills in the control block of a fresh object: its tag,
// a strong count of one and, for weakable kinds, a new liveness record.
func initControlBlock(b *ssa.Builder, l *KindLayout, obj *ssa.Value) {
	b.Store(b.FieldPtr(l.ControlBlock, obj, rtabi.CBTypeTagField), b.Int(l.Tag))
	b.Store(b.FieldPtr(l.ControlBlock, obj, rtabi.CBStrongRCField), b.Int(1))
	if l.Weakable {
		h := b.Call(rtabi.FnWeakNew, ssa.I64)
		b.Store(b.FieldPtr(l.ControlBlock, obj, rtabi.CBWeakHandleField), h)
	}
}
