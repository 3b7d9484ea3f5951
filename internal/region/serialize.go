package region

import (
	"github.com/you-not-fish/regionc/internal/rtabi"
	"github.com/you-not-fish/regionc/internal/ssa"
	"github.com/you-not-fish/regionc/internal/types"
)

// serialWords is the word storage of a serial buffer.
var serialWords = serialBufferType.Fields[1].(*ssa.ArrayType)

// noSerialMsg is the trap message of a thunk whose struct has no
// serialized form, or of an unknown edge index in a buffer.
const noSerialMsg = "no serialized form"

// serializer deep copies values between regions through a flat buffer of
// 64-bit words. Integers and booleans take one word each, a
// runtime-sized array is preceded by its length, an interface value is
// the index of its edge among the interface's implementations followed
// by the object, and everything else is its members in order. Per-kind
// measure, serialize and unserialize functions are generated on first
// use; the per-edge thunks that interface values dispatch through are
// generated with the edge.
type serializer struct {
	gs *GlobalState
}

func newSerializer(gs *GlobalState) *serializer {
	return &serializer{gs: gs}
}

type kindPair struct{ src, dst types.Kind }

// check panics unless a value of src can be rebuilt as dst. Weak and
// borrowed members have no serialized form.
func (s *serializer) check(src, dst *types.Reference, seen map[kindPair]bool) {
	if src.Location != dst.Location {
		internalf("serialize", "cannot rebuild %s as %s", src, dst)
	}
	if types.IsInterface(src) || types.IsInterface(dst) {
		s.checkInterface(src, dst, seen)
		return
	}
	key := kindPair{src.Kind, dst.Kind}
	if seen[key] {
		return
	}
	seen[key] = true

	prog := s.gs.Program
	mismatch := func() { internalf("serialize", "cannot rebuild %s as %s", src, dst) }
	switch sk := src.Kind.(type) {
	case *types.Int:
		if src.Kind != dst.Kind {
			mismatch()
		}
		if sk.Bits() != 64 {
			internalf("serialize", "%s is not a 64-bit integer", sk)
		}
	case *types.Bool:
		if src.Kind != dst.Kind {
			mismatch()
		}
	case *types.StructKind:
		dk, ok := dst.Kind.(*types.StructKind)
		if !ok {
			mismatch()
		}
		sd, dd := prog.LookupStruct(sk), prog.LookupStruct(dk)
		if sd == nil || dd == nil || len(sd.Members) != len(dd.Members) {
			mismatch()
		}
		for i := range sd.Members {
			s.checkMember(sd.Members[i].Type, dd.Members[i].Type, seen)
		}
	case *types.StaticSizedArrayKind:
		dk, ok := dst.Kind.(*types.StaticSizedArrayKind)
		if !ok {
			mismatch()
		}
		sd, dd := prog.LookupStaticSizedArray(sk), prog.LookupStaticSizedArray(dk)
		if sd == nil || dd == nil || sd.Size != dd.Size {
			mismatch()
		}
		s.checkMember(sd.ElementType, dd.ElementType, seen)
	case *types.RuntimeSizedArrayKind:
		dk, ok := dst.Kind.(*types.RuntimeSizedArrayKind)
		if !ok {
			mismatch()
		}
		sd, dd := prog.LookupRuntimeSizedArray(sk), prog.LookupRuntimeSizedArray(dk)
		if sd == nil || dd == nil {
			mismatch()
		}
		s.checkMember(sd.ElementType, dd.ElementType, seen)
	default:
		internalf("serialize", "%s has no serialized form", src.Kind)
	}
}

// checkInterface pairs the implementations of two interfaces in
// declaration order. Each pair must rebuild.
func (s *serializer) checkInterface(src, dst *types.Reference, seen map[kindPair]bool) {
	si, ok := src.Kind.(*types.InterfaceKind)
	di, ok2 := dst.Kind.(*types.InterfaceKind)
	if !ok || !ok2 {
		internalf("serialize", "cannot rebuild %s as %s", src, dst)
	}
	key := kindPair{si, di}
	if seen[key] {
		return
	}
	seen[key] = true
	prog := s.gs.Program
	from, to := prog.Implementors(si), prog.Implementors(di)
	if len(from) != len(to) {
		internalf("serialize", "%s has %d implementations, %s has %d", si, len(from), di, len(to))
	}
	for i := range from {
		s.check(s.gs.ownedRef(from[i]), s.gs.ownedRef(to[i]), seen)
	}
}

// serializable reports whether objects of k can be serialized at all.
func (s *serializer) serializable(k types.Kind) bool {
	ref := s.gs.ownedRef(k)
	return catch(func() { s.check(ref, ref, make(map[kindPair]bool)) }) == nil
}

func (s *serializer) checkMember(src, dst *types.Reference, seen map[kindPair]bool) {
	for _, r := range []*types.Reference{src, dst} {
		switch {
		case r.Ownership == types.Weak:
			internalf("serialize", "weak reference %s has no serialized form", r)
		case r.Location == types.Yonder && r.Ownership == types.Constraint:
			internalf("serialize", "borrowed reference %s has no serialized form", r)
		}
	}
	s.check(src, dst, seen)
}

// transfer copies ref into a fresh value described by target, allocated
// in the region that owns target's kind. ref is only borrowed.
func (s *serializer) transfer(b *ssa.Builder, ref Ref, target *types.Reference) Ref {
	if ref.Type.Ownership == types.Weak {
		internalf("serialize", "weak reference %s has no serialized form", ref.Type)
	}
	if target.Location == types.Yonder && !types.IsStrong(target) {
		internalf("serialize", "copy must be received as owning or shared, not %s", target)
	}
	s.check(ref.Type, target, make(map[kindPair]bool))
	s.gs.tracef("serialize %s as %s", ref.Type, target)

	n := s.measureValue(b, ref.Type, ref.Value)
	buf := b.NewAlloc(serialBufferType, n)
	b.Store(b.FieldPtr(serialBufferType, buf, 0), n)
	cursor := b.Alloca(ssa.I64)
	b.Store(cursor, b.Int(0))
	s.serializeValue(b, ref.Type, ref.Value, buf, cursor)
	b.Store(cursor, b.Int(0))
	v := s.unserializeValue(b, target, buf, cursor)
	b.Free(buf)
	return Ref{Type: target, Value: v}
}

// function returns the named helper, generating it with emit the first
// time. The declaration is added before the body so recursive kinds
// call themselves. A helper whose generation fails is removed again.
func (s *serializer) function(name string, result ssa.Type, params []*ssa.Param, emit func(b *ssa.Builder)) string {
	if s.gs.Module.Func(name) != nil {
		return name
	}
	f := s.gs.Module.AddFunc(ssa.NewDecl(name, result, params...))
	f.StartBody()
	done := false
	defer func() {
		if !done {
			s.gs.Module.RemoveFunc(name)
		}
	}()
	emit(ssa.NewBuilder(f))
	done = true
	return name
}

// edgeIndex is the position of e among the implementations of its
// interface.
func edgeIndex(prog *types.Program, e *types.Edge) int {
	for i, sk := range prog.Implementors(e.Interface) {
		if sk == e.Struct {
			return i
		}
	}
	internalf("serialize", "%s is not an implementation of %s", e.Struct, e.Interface)
	return -1
}

func measureThunkName(e *types.Edge) string {
	return e.Struct.Name() + ".measure." + e.Interface.Name()
}

func serializeThunkName(e *types.Edge) string {
	return e.Struct.Name() + ".serialize." + e.Interface.Name()
}

// declareEdgeThunks declares the thunks that fill the measure and
// serialize slots of e's vtable.
func (s *serializer) declareEdgeThunks(e *types.Edge) {
	m := s.gs.Module
	for _, name := range []string{measureThunkName(e), serializeThunkName(e)} {
		if m.Func(name) != nil {
			internalf("DeclareEdge", "func %s is already declared", name)
		}
	}
	m.AddFunc(ssa.NewDecl(measureThunkName(e), ssa.I64, ptrParams("obj")...))
	m.AddFunc(ssa.NewDecl(serializeThunkName(e), nil, ptrParams("obj", "buf", "cursor")...))
}

// defineEdgeThunks emits the thunks of e. The measure thunk counts the
// edge index word plus the object; the serialize thunk writes both. A
// struct with no serialized form gets thunks that trap, and the
// serializer rejects its interfaces at generation time.
func (s *serializer) defineEdgeThunks(e *types.Edge) {
	ok := s.serializable(e.Struct)
	index := int64(edgeIndex(s.gs.Program, e))

	f := s.gs.Module.Func(measureThunkName(e))
	f.StartBody()
	b := ssa.NewBuilder(f)
	if ok {
		n := b.Call(s.measureFunc(e.Struct), ssa.I64, b.Param(0))
		b.Return(b.Add(n, b.Int(1)))
	} else {
		b.Panic(noSerialMsg)
	}

	f = s.gs.Module.Func(serializeThunkName(e))
	f.StartBody()
	b = ssa.NewBuilder(f)
	if ok {
		obj, buf, cursor := b.Param(0), b.Param(1), b.Param(2)
		writeWord(b, buf, cursor, b.Int(index))
		b.Call(s.serializeFunc(e.Struct), nil, obj, buf, cursor)
		b.Return(nil)
	} else {
		b.Panic(noSerialMsg)
	}
}

// vtableSlot loads slot of the vtable of interface value v.
func (s *serializer) vtableSlot(b *ssa.Builder, r *types.Reference, v *ssa.Value, slot int) (obj, fn *ssa.Value) {
	vtT := s.gs.vtableOf("serialize", r.Kind.(*types.InterfaceKind)).Vtable
	obj = b.Extract(v, rtabi.InterfaceRefObjField)
	vt := b.Extract(v, rtabi.InterfaceRefVtableField)
	return obj, b.Load(ssa.Ptr, b.FieldPtr(vtT, vt, slot))
}

func ptrParams(names ...string) []*ssa.Param {
	ps := make([]*ssa.Param, len(names))
	for i, n := range names {
		ps[i] = &ssa.Param{Name: n, Type: ssa.Ptr}
	}
	return ps
}

// fixedWords returns the word count of every value of r, if it does not
// depend on the value.
func (s *serializer) fixedWords(r *types.Reference) (int64, bool) {
	if r.Location == types.Yonder {
		return 0, false
	}
	switch k := r.Kind.(type) {
	case *types.Int, *types.Bool:
		return 1, true
	case *types.StructKind:
		var n int64
		for _, m := range s.gs.Program.LookupStruct(k).Members {
			w, ok := s.fixedWords(m.Type)
			if !ok {
				return 0, false
			}
			n += w
		}
		return n, true
	}
	return 0, false
}

// elements describes the elements of a heap array of kind k.
func (s *serializer) elements(b *ssa.Builder, k types.Kind, obj *ssa.Value) Elements {
	l := s.gs.Layout(k)
	cache := s.gs.Program.Cache()
	switch k := k.(type) {
	case *types.StaticSizedArrayKind:
		d := s.gs.Program.LookupStaticSizedArray(k)
		return Elements{
			Ptr:     b.FieldPtr(l.Wrapper, obj, rtabi.SSAElemsField),
			Type:    l.Elems,
			Element: d.ElementType,
			Size:    Ref{Type: cache.IntRef(), Value: b.Int(d.Size)},
		}
	case *types.RuntimeSizedArrayKind:
		d := s.gs.Program.LookupRuntimeSizedArray(k)
		return Elements{
			Ptr:     b.FieldPtr(l.Wrapper, obj, rtabi.RSAElemsField),
			Type:    l.Elems,
			Element: d.ElementType,
			Size:    Ref{Type: cache.IntRef(), Value: b.Load(ssa.I64, b.FieldPtr(l.Wrapper, obj, rtabi.RSALengthField))},
		}
	}
	internalf("serialize", "%s is not an array", k)
	return Elements{}
}

// measureValue returns the number of words v serializes to.
func (s *serializer) measureValue(b *ssa.Builder, r *types.Reference, v *ssa.Value) *ssa.Value {
	if n, ok := s.fixedWords(r); ok {
		return b.Int(n)
	}
	if r.Location == types.Inline {
		sk := r.Kind.(*types.StructKind)
		total := b.Int(0)
		for i, m := range s.gs.Program.LookupStruct(sk).Members {
			total = b.Add(total, s.measureValue(b, m.Type, b.Extract(v, i)))
		}
		return total
	}
	if types.IsInterface(r) {
		obj, fn := s.vtableSlot(b, r, v, rtabi.VtableMeasureSlot)
		return b.CallPtr(fn, ssa.I64, obj)
	}
	return b.Call(s.measureFunc(r.Kind), ssa.I64, v)
}

func (s *serializer) measureFunc(k types.Kind) string {
	return s.function(k.Name()+".measure", ssa.I64, ptrParams("obj"), func(b *ssa.Builder) {
		obj := b.Param(0)
		if sk, ok := k.(*types.StructKind); ok {
			l := s.gs.Layout(sk)
			total := b.Int(0)
			for i, m := range s.gs.Program.LookupStruct(sk).Members {
				p := b.FieldPtr(l.Wrapper, obj, rtabi.WrapperFirstMemberField+i)
				v := b.Load(translate(s.gs.Program, "serialize", m.Type), p)
				total = b.Add(total, s.measureValue(b, m.Type, v))
			}
			b.Return(total)
			return
		}

		e := s.elements(b, k, obj)
		header := int64(0)
		if _, ok := k.(*types.RuntimeSizedArrayKind); ok {
			header = 1
		}
		if w, ok := s.fixedWords(e.Element); ok {
			b.Return(b.Add(b.Int(header), b.Mul(e.Size.Value, b.Int(w))))
			return
		}
		acc := b.Alloca(ssa.I64)
		b.Store(acc, b.Int(header))
		IntRangeLoop(b, e.Size, BodyFunc(func(b *ssa.Builder, i Ref) {
			v := b.Load(e.Type.Elem, b.IndexPtr(e.Type, e.Ptr, i.Value))
			b.Store(acc, b.Add(b.Load(ssa.I64, acc), s.measureValue(b, e.Element, v)))
		}))
		b.Return(b.Load(ssa.I64, acc))
	})
}

func writeWord(b *ssa.Builder, buf, cursor, w *ssa.Value) {
	pos := b.Load(ssa.I64, cursor)
	b.Store(b.IndexPtr(serialWords, b.FieldPtr(serialBufferType, buf, 1), pos), w)
	b.Store(cursor, b.Add(pos, b.Int(1)))
}

func readWord(b *ssa.Builder, buf, cursor *ssa.Value) *ssa.Value {
	pos := b.Load(ssa.I64, cursor)
	w := b.Load(ssa.I64, b.IndexPtr(serialWords, b.FieldPtr(serialBufferType, buf, 1), pos))
	b.Store(cursor, b.Add(pos, b.Int(1)))
	return w
}

// serializeValue appends v to buf at cursor.
func (s *serializer) serializeValue(b *ssa.Builder, r *types.Reference, v, buf, cursor *ssa.Value) {
	if r.Location == types.Yonder {
		if types.IsInterface(r) {
			obj, fn := s.vtableSlot(b, r, v, rtabi.VtableSerializeSlot)
			b.CallPtr(fn, nil, obj, buf, cursor)
			return
		}
		b.Call(s.serializeFunc(r.Kind), nil, v, buf, cursor)
		return
	}
	switch k := r.Kind.(type) {
	case *types.Int:
		writeWord(b, buf, cursor, v)
	case *types.Bool:
		w := b.If(v, ssa.I64, func() *ssa.Value { return b.Int(1) }, func() *ssa.Value { return b.Int(0) })
		writeWord(b, buf, cursor, w)
	case *types.StructKind:
		for i, m := range s.gs.Program.LookupStruct(k).Members {
			s.serializeValue(b, m.Type, b.Extract(v, i), buf, cursor)
		}
	default:
		internalf("serialize", "%s has no serialized form", r)
	}
}

func (s *serializer) serializeFunc(k types.Kind) string {
	return s.function(k.Name()+".serialize", nil, ptrParams("obj", "buf", "cursor"), func(b *ssa.Builder) {
		obj, buf, cursor := b.Param(0), b.Param(1), b.Param(2)
		if sk, ok := k.(*types.StructKind); ok {
			l := s.gs.Layout(sk)
			for i, m := range s.gs.Program.LookupStruct(sk).Members {
				p := b.FieldPtr(l.Wrapper, obj, rtabi.WrapperFirstMemberField+i)
				v := b.Load(translate(s.gs.Program, "serialize", m.Type), p)
				s.serializeValue(b, m.Type, v, buf, cursor)
			}
			b.Return(nil)
			return
		}

		e := s.elements(b, k, obj)
		if _, ok := k.(*types.RuntimeSizedArrayKind); ok {
			writeWord(b, buf, cursor, e.Size.Value)
		}
		IntRangeLoop(b, e.Size, BodyFunc(func(b *ssa.Builder, i Ref) {
			v := b.Load(e.Type.Elem, b.IndexPtr(e.Type, e.Ptr, i.Value))
			s.serializeValue(b, e.Element, v, buf, cursor)
		}))
		b.Return(nil)
	})
}

// unserializeValue reads a value described by r from buf at cursor.
func (s *serializer) unserializeValue(b *ssa.Builder, r *types.Reference, buf, cursor *ssa.Value) *ssa.Value {
	if r.Location == types.Yonder {
		if ik, ok := r.Kind.(*types.InterfaceKind); ok {
			return b.Call(s.unserializeInterfaceFunc(ik), interfaceRefType, buf, cursor)
		}
		return b.Call(s.unserializeFunc(r.Kind), ssa.Ptr, buf, cursor)
	}
	switch k := r.Kind.(type) {
	case *types.Int:
		return readWord(b, buf, cursor)
	case *types.Bool:
		return b.Cmp(ssa.OpNeq64, readWord(b, buf, cursor), b.Int(0))
	case *types.StructKind:
		members := s.gs.Program.LookupStruct(k).Members
		vals := make([]*ssa.Value, len(members))
		for i, m := range members {
			vals[i] = s.unserializeValue(b, m.Type, buf, cursor)
		}
		st := translate(s.gs.Program, "unserialize", r).(*ssa.StructType)
		return b.Aggregate(st, vals...)
	}
	internalf("unserialize", "%s has no serialized form", r)
	return nil
}

// unserializeFunc generates the constructor of k from the buffer. The
// object is built through the region that owns k.
func (s *serializer) unserializeFunc(k types.Kind) string {
	return s.function(k.Name()+".unserialize", ssa.Ptr, ptrParams("buf", "cursor"), func(b *ssa.Builder) {
		buf, cursor := b.Param(0), b.Param(1)
		reg := s.gs.RegionFor(k)
		ref := s.gs.ownedRef(k)
		prog := s.gs.Program

		switch k := k.(type) {
		case *types.StructKind:
			members := prog.LookupStruct(k).Members
			vals := make([]Ref, len(members))
			for i, m := range members {
				vals[i] = Ref{Type: m.Type, Value: s.unserializeValue(b, m.Type, buf, cursor)}
			}
			b.Return(reg.Allocate(b, ref, vals).Value)
		case *types.StaticSizedArrayKind:
			d := prog.LookupStaticSizedArray(k)
			arr := reg.ConstructStaticSizedArray(b, ref)
			size := Ref{Type: prog.Cache().IntRef(), Value: b.Int(d.Size)}
			IntRangeLoop(b, size, BodyFunc(func(b *ssa.Builder, i Ref) {
				v := Ref{Type: d.ElementType, Value: s.unserializeValue(b, d.ElementType, buf, cursor)}
				reg.InitializeElementInSSA(b, arr, i, v)
			}))
			b.Return(arr.Value)
		case *types.RuntimeSizedArrayKind:
			d := prog.LookupRuntimeSizedArray(k)
			size := Ref{Type: prog.Cache().IntRef(), Value: readWord(b, buf, cursor)}
			arr := reg.ConstructRuntimeSizedArray(b, ref, size)
			IntRangeLoop(b, size, BodyFunc(func(b *ssa.Builder, i Ref) {
				v := Ref{Type: d.ElementType, Value: s.unserializeValue(b, d.ElementType, buf, cursor)}
				reg.InitializeElementInRSA(b, arr, i, v)
			}))
			b.Return(arr.Value)
		default:
			internalf("unserialize", "%s has no serialized form", k)
		}
	})
}

// unserializeInterfaceFunc generates the constructor of an interface
// value of ik: it reads the edge index, rebuilds that implementation and
// pairs it with the edge's vtable.
func (s *serializer) unserializeInterfaceFunc(ik *types.InterfaceKind) string {
	return s.function(ik.Name()+".unserialize", interfaceRefType, ptrParams("buf", "cursor"), func(b *ssa.Builder) {
		buf, cursor := b.Param(0), b.Param(1)
		index := readWord(b, buf, cursor)
		prog := s.gs.Program
		for i, sk := range prog.Implementors(ik) {
			e := prog.LookupEdge(sk, ik)
			b.If(b.Cmp(ssa.OpEq64, index, b.Int(int64(i))), nil, func() *ssa.Value {
				obj := b.Call(s.unserializeFunc(sk), ssa.Ptr, buf, cursor)
				b.Return(b.Aggregate(interfaceRefType, obj, b.GlobalAddr(vtableName(e))))
				return nil
			}, nil)
		}
		b.Panic(noSerialMsg)
	})
}
