package region

import (
	"fmt"
	"strings"
	"testing"

	"github.com/you-not-fish/regionc/internal/interp"
	"github.com/you-not-fish/regionc/internal/ssa"
	"github.com/you-not-fish/regionc/internal/types"
)

// pointProgram defines a mutable point kind in the mutable region and an
// identically shaped immutable one in the shared region, plus arrays of
// each. FPoint is an immutable point left in the mutable region.
type pointProgram struct {
	*progBuilder
	gs                     *GlobalState
	mut, imm               Region
	mpoint, ipoint, fpoint *types.StructDefinition
	mpoints                *types.RuntimeSizedArrayDefinition
	ipoints                *types.RuntimeSizedArrayDefinition
}

func newPointProgram(t *testing.T) *pointProgram {
	return newPointProgramThreaded(t, false)
}

func newPointProgramThreaded(t *testing.T, threaded bool) *pointProgram {
	p := newProg(t)
	intRef := p.c.IntRef()
	pp := &pointProgram{progBuilder: p}
	pp.mpoint = p.strukt("MPoint", types.Mutable, types.NonWeakable, member("x", intRef), member("y", intRef))
	pp.ipoint = p.strukt("IPoint", types.Immutable, types.NonWeakable, member("x", intRef), member("y", intRef))
	pp.fpoint = p.strukt("FPoint", types.Immutable, types.NonWeakable, member("x", intRef), member("y", intRef))
	pp.mpoints = p.rsa("MPoints", types.Mutable, p.c.Ref(types.Owning, types.Yonder, pp.mpoint.Kind))
	pp.ipoints = p.rsa("IPoints", types.Immutable, p.c.Ref(types.Share, types.Yonder, pp.ipoint.Kind))
	pp.gs = newGS(t, p.prog, Config{
		Default:  RCMutable,
		Threaded: threaded,
		Assign: map[types.Kind]Strategy{
			pp.ipoint.Kind:  ImmShared,
			pp.ipoints.Kind: ImmShared,
		},
	})
	pp.mut = pp.gs.Region(RCMutable)
	pp.imm = pp.gs.Region(ImmShared)
	return pp
}

func (pp *pointProgram) newMPoint(b *ssa.Builder, x, y *ssa.Value) Ref {
	intRef := pp.c.IntRef()
	return pp.mut.Allocate(b, pp.gs.ownedRef(pp.mpoint.Kind), []Ref{{Type: intRef, Value: x}, {Type: intRef, Value: y}})
}

// buildIPointGetters adds x(p), y(p) and drop(p) over immutable points.
func (pp *pointProgram) buildIPointGetters(t *testing.T) {
	borrowed := pp.c.Ref(types.Constraint, types.Yonder, pp.ipoint.Kind)
	for i, name := range []string{"x", "y"} {
		i := i
		mustBuild(t, pp.gs, name, ssa.I64, ptrParams("p"), func(b *ssa.Builder) {
			b.Return(pp.imm.LoadMember(b, Ref{Type: borrowed, Value: b.Param(0)}, i, pp.c.IntRef()).Value)
		})
	}
	mustBuild(t, pp.gs, "drop", nil, ptrParams("p"), func(b *ssa.Builder) {
		pp.imm.Dealias(b, Ref{Type: pp.gs.ownedRef(pp.ipoint.Kind), Value: b.Param(0)})
		b.Return(nil)
	})
}

func (pp *pointProgram) newFPoint(b *ssa.Builder, x, y *ssa.Value) Ref {
	intRef := pp.c.IntRef()
	return pp.mut.Allocate(b, pp.gs.ownedRef(pp.fpoint.Kind), []Ref{{Type: intRef, Value: x}, {Type: intRef, Value: y}})
}

func TestTransferIdentity(t *testing.T) {
	pp := newPointProgram(t)
	own := pp.gs.ownedRef(pp.mpoint.Kind)
	intRef := pp.c.IntRef()

	mustBuild(t, pp.gs, "f", ssa.Ptr, nil, func(b *ssa.Builder) {
		n := Ref{Type: intRef, Value: b.Int(4)}
		if got := Transfer(pp.gs, b, n, pp.imm, intRef); got.Value != n.Value {
			t.Errorf("integer transfer produced %v, want the same value", got.Value)
		}

		m := pp.newMPoint(b, b.Int(1), b.Int(2))
		same := Transfer(pp.gs, b, m, pp.mut, own)
		if same.Value != m.Value || same.Type != own {
			t.Errorf("same-region transfer = %v, want %v", same, m)
		}
		b.Return(same.Value)
	})

	mach := newMachine(t, pp.gs)
	mustCall(t, mach, "f")
	wantStats(t, mach, 1, 0)
}

func TestTransferFamiliar(t *testing.T) {
	pp := newPointProgram(t)
	share := pp.gs.ownedRef(pp.fpoint.Kind)

	mustBuild(t, pp.gs, "f", ssa.Ptr, nil, func(b *ssa.Builder) {
		fp := pp.newFPoint(b, b.Int(1), b.Int(2))
		got := Transfer(pp.gs, b, fp, pp.imm, share)
		if got.Value != fp.Value {
			t.Errorf("familiar transfer = %v, want the same object", got)
		}
		if got.Type != share {
			t.Errorf("familiar transfer typed %s, want %s", got.Type, share)
		}
		b.Return(got.Value)
	})
	buildRC(t, pp.gs)

	mach := newMachine(t, pp.gs)
	fp := mustCall(t, mach, "f")
	if got := mustCall(t, mach, "rc", fp).I; got != 1 {
		t.Errorf("rc = %d, want 1", got)
	}
	wantStats(t, mach, 1, 0)
}

func TestTransferCrossingRejected(t *testing.T) {
	tests := []struct {
		name     string
		threaded bool
		src      func(pp *pointProgram) *types.Reference
		to       func(pp *pointProgram) Region
		target   func(pp *pointProgram) *types.Reference
		msg      string
	}{
		{
			name:   "shared object into mutable region",
			src:    func(pp *pointProgram) *types.Reference { return pp.gs.ownedRef(pp.ipoint.Kind) },
			to:     func(pp *pointProgram) Region { return pp.mut },
			target: func(pp *pointProgram) *types.Reference { return pp.c.Ref(types.Owning, types.Yonder, pp.ipoint.Kind) },
			msg:    "cannot enter the rcmut region",
		},
		{
			name:   "mutable object into shared region",
			src:    func(pp *pointProgram) *types.Reference { return pp.gs.ownedRef(pp.mpoint.Kind) },
			to:     func(pp *pointProgram) Region { return pp.imm },
			target: func(pp *pointProgram) *types.Reference { return pp.c.Ref(types.Share, types.Yonder, pp.mpoint.Kind) },
			msg:    "cannot enter the rcimm region",
		},
		{
			name:     "plain counts into atomic region",
			threaded: true,
			src:      func(pp *pointProgram) *types.Reference { return pp.gs.ownedRef(pp.fpoint.Kind) },
			to:       func(pp *pointProgram) Region { return pp.imm },
			target:   func(pp *pointProgram) *types.Reference { return pp.gs.ownedRef(pp.fpoint.Kind) },
			msg:      "cannot enter the rcimm region",
		},
		{
			name:   "target owned elsewhere",
			src:    func(pp *pointProgram) *types.Reference { return pp.gs.ownedRef(pp.mpoint.Kind) },
			to:     func(pp *pointProgram) Region { return pp.mut },
			target: func(pp *pointProgram) *types.Reference { return pp.gs.ownedRef(pp.ipoint.Kind) },
			msg:    "belongs to the rcimm region",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pp := newPointProgramThreaded(t, tt.threaded)
			_, err := pp.gs.BuildFunc("xfer", nil, ptrParams("p"), func(b *ssa.Builder) {
				Transfer(pp.gs, b, Ref{Type: tt.src(pp), Value: b.Param(0)}, tt.to(pp), tt.target(pp))
				b.Return(nil)
			})
			ie := wantInternal(t, err, "Transfer")
			if !strings.Contains(ie.Msg, tt.msg) {
				t.Errorf("Msg = %q, want it to mention %q", ie.Msg, tt.msg)
			}
		})
	}
}

func TestMutableStoreRejectsForeignAndImmutableKinds(t *testing.T) {
	pp := newPointProgram(t)
	intRef := pp.c.IntRef()
	tests := []struct {
		name string
		op   string
		emit func(b *ssa.Builder)
	}{
		{"member of shared kind", "StoreMember", func(b *ssa.Builder) {
			pt := Ref{Type: pp.gs.ownedRef(pp.ipoint.Kind), Value: b.Param(0)}
			pp.mut.StoreMember(b, pt, 0, Ref{Type: intRef, Value: b.Int(1)})
		}},
		{"member of immutable kind", "StoreMember", func(b *ssa.Builder) {
			pt := Ref{Type: pp.gs.ownedRef(pp.fpoint.Kind), Value: b.Param(0)}
			pp.mut.StoreMember(b, pt, 0, Ref{Type: intRef, Value: b.Int(1)})
		}},
		{"element of shared array", "StoreElementInRSA", func(b *ssa.Builder) {
			arr := Ref{Type: pp.gs.ownedRef(pp.ipoints.Kind), Value: b.Param(0)}
			pt := Ref{Type: pp.gs.ownedRef(pp.ipoint.Kind), Value: b.Param(0)}
			pp.mut.StoreElementInRSA(b, arr, Ref{Type: intRef, Value: b.Int(0)}, pt)
		}},
		{"pop from shared array", "DeinitializeElementFromRSA", func(b *ssa.Builder) {
			arr := Ref{Type: pp.gs.ownedRef(pp.ipoints.Kind), Value: b.Param(0)}
			pp.mut.DeinitializeElementFromRSA(b, arr, Ref{Type: intRef, Value: b.Int(0)})
		}},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pp.gs.BuildFunc(fmt.Sprintf("store%d", i), nil, ptrParams("p"), func(b *ssa.Builder) {
				tt.emit(b)
				b.Return(nil)
			})
			wantInternal(t, err, tt.op)
		})
	}
}

func TestTransferAlienStruct(t *testing.T) {
	pp := newPointProgram(t)
	target := pp.gs.ownedRef(pp.ipoint.Kind)
	mustBuild(t, pp.gs, "xfer", ssa.Ptr, nil, func(b *ssa.Builder) {
		m := pp.newMPoint(b, b.Int(1), b.Int(2))
		b.Return(Transfer(pp.gs, b, m, pp.imm, target).Value)
	})
	pp.buildIPointGetters(t)

	mach := newMachine(t, pp.gs)
	ip := mustCall(t, mach, "xfer")
	// The source point and the serial buffer are gone; the copy remains.
	wantStats(t, mach, 3, 2)
	if x, y := mustCall(t, mach, "x", ip).I, mustCall(t, mach, "y", ip).I; x != 1 || y != 2 {
		t.Errorf("copy = (%d, %d), want (1, 2)", x, y)
	}
	mustCall(t, mach, "drop", ip)
	wantStats(t, mach, 3, 3)

	for _, name := range []string{"MPoint.measure", "MPoint.serialize", "IPoint.unserialize"} {
		if pp.gs.Module.Func(name) == nil {
			t.Errorf("no %s generated", name)
		}
	}
}

func TestTransferAlienArray(t *testing.T) {
	pp := newPointProgram(t)
	intRef := pp.c.IntRef()
	const n = 3

	mustBuild(t, pp.gs, "xfer", ssa.Ptr, nil, func(b *ssa.Builder) {
		arr := pp.mut.ConstructRuntimeSizedArray(b, pp.gs.ownedRef(pp.mpoints.Kind), Ref{Type: intRef, Value: b.Int(n)})
		for i := int64(0); i < n; i++ {
			pt := pp.newMPoint(b, b.Int(i), b.Int(i*10))
			pp.mut.InitializeElementInRSA(b, arr, Ref{Type: intRef, Value: b.Int(i)}, pt)
		}
		b.Return(Transfer(pp.gs, b, arr, pp.imm, pp.gs.ownedRef(pp.ipoints.Kind)).Value)
	})
	borrowedArr := pp.c.Ref(types.Constraint, types.Yonder, pp.ipoints.Kind)
	borrowedPt := pp.c.Ref(types.Constraint, types.Yonder, pp.ipoint.Kind)
	for field, name := range []string{"px", "py"} {
		field := field
		mustBuild(t, pp.gs, name, ssa.I64, []*ssa.Param{{Name: "a", Type: ssa.Ptr}, {Name: "i", Type: ssa.I64}}, func(b *ssa.Builder) {
			arr := Ref{Type: borrowedArr, Value: b.Param(0)}
			pt := pp.imm.LoadElementFromRSA(b, arr, Ref{Type: intRef, Value: b.Param(1)}, borrowedPt)
			b.Return(pp.imm.LoadMember(b, pt, field, intRef).Value)
		})
	}
	mustBuild(t, pp.gs, "len", ssa.I64, ptrParams("a"), func(b *ssa.Builder) {
		b.Return(pp.imm.GetRuntimeSizedArrayLength(b, Ref{Type: borrowedArr, Value: b.Param(0)}).Value)
	})
	mustBuild(t, pp.gs, "drop", nil, ptrParams("a"), func(b *ssa.Builder) {
		pp.imm.Dealias(b, Ref{Type: pp.gs.ownedRef(pp.ipoints.Kind), Value: b.Param(0)})
		b.Return(nil)
	})

	mach := newMachine(t, pp.gs)
	arr := mustCall(t, mach, "xfer")
	// Source array and points, buffer, copied array and points.
	wantStats(t, mach, 1+n+1+1+n, 1+n+1)
	if got := mustCall(t, mach, "len", arr).I; got != n {
		t.Fatalf("len = %d, want %d", got, n)
	}
	for i := int64(0); i < n; i++ {
		x := mustCall(t, mach, "px", arr, interp.Int(i)).I
		y := mustCall(t, mach, "py", arr, interp.Int(i)).I
		if x != i || y != i*10 {
			t.Errorf("element %d = (%d, %d), want (%d, %d)", i, x, y, i, i*10)
		}
	}
	mustCall(t, mach, "drop", arr)
	if live := mach.Stats().Live(); live != 0 {
		t.Errorf("%d objects live after drop", live)
	}
}

func TestReceiveImmutableShares(t *testing.T) {
	pp := newPointProgram(t)
	share := pp.gs.ownedRef(pp.ipoint.Kind)
	intRef := pp.c.IntRef()

	mustBuild(t, pp.gs, "new", ssa.Ptr, nil, func(b *ssa.Builder) {
		ip := pp.imm.Allocate(b, share, []Ref{{Type: intRef, Value: b.Int(5)}, {Type: intRef, Value: b.Int(6)}})
		b.Return(ip.Value)
	})
	mustBuild(t, pp.gs, "receive", ssa.Ptr, ptrParams("p"), func(b *ssa.Builder) {
		src := Ref{Type: share, Value: b.Param(0)}
		got := pp.imm.ReceiveUnencryptedAlienReference(b, pp.mut, src, share)
		if got.Value != src.Value {
			t.Errorf("receive = %v, want the same object", got)
		}
		b.Return(got.Value)
	})
	buildRC(t, pp.gs)

	mach := newMachine(t, pp.gs)
	ip := mustCall(t, mach, "new")
	got := mustCall(t, mach, "receive", ip)
	if !got.SamePointer(ip) {
		t.Errorf("receive returned %v, want %v", got, ip)
	}
	if rc := mustCall(t, mach, "rc", ip).I; rc != 2 {
		t.Errorf("rc = %d, want 2", rc)
	}
	wantStats(t, mach, 1, 0)
}

func TestTransferRejects(t *testing.T) {
	p := newProg(t)
	intRef := p.c.IntRef()
	shape := p.iface("Shape", types.Mutable)
	blank := p.iface("Blank", types.Mutable)
	box := p.strukt("Box", types.Mutable, types.NonWeakable, member("s", p.c.Ref(types.Owning, types.Yonder, shape.Kind)))
	box2 := p.strukt("Box2", types.Mutable, types.NonWeakable, member("s", p.c.Ref(types.Owning, types.Yonder, blank.Kind)))
	sq := p.strukt("Sq", types.Mutable, types.NonWeakable, member("side", intRef))
	p.edge(sq.Kind, shape.Kind)
	node := p.strukt("Node", types.Mutable, types.Weakable, member("v", intRef))
	node2 := p.strukt("Node2", types.Mutable, types.NonWeakable, member("v", intRef), member("w", intRef))
	gs := newGS(t, p.prog, Config{Default: RCMutable})
	mut := gs.Region(RCMutable)

	tests := []struct {
		name   string
		src    *types.Reference
		target *types.Reference
		op     string
	}{
		{"interface implementations differ", gs.ownedRef(box.Kind), gs.ownedRef(box2.Kind), "serialize"},
		{"shape mismatch", gs.ownedRef(node.Kind), gs.ownedRef(node2.Kind), "serialize"},
		{"weak source", p.c.Ref(types.Weak, types.Yonder, node.Kind), gs.ownedRef(node2.Kind), "Transfer"},
		{"borrowed target", gs.ownedRef(node.Kind), p.c.Ref(types.Constraint, types.Yonder, node2.Kind), "Transfer"},
		{"primitive mismatch", intRef, p.c.BoolRef(), "Transfer"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			param := &ssa.Param{Name: "x", Type: mut.TranslateType(tt.src)}
			_, err := gs.BuildFunc(fmt.Sprintf("xfer%d", i), nil, []*ssa.Param{param}, func(b *ssa.Builder) {
				Transfer(gs, b, Ref{Type: tt.src, Value: b.Param(0)}, mut, tt.target)
				b.Return(nil)
			})
			wantInternal(t, err, tt.op)
		})
	}
}

// shapeBoxes defines a box holding a mutable shape in the mutable region
// and an identically shaped immutable box in the shared region. Each
// interface has a square and a circle implementation.
type shapeBoxes struct {
	*progBuilder
	gs             *GlobalState
	mut, imm       Region
	mbox, ibox     *types.StructDefinition
	msq, mcircle   *types.StructDefinition
	isq, icircle   *types.StructDefinition
	mshape, ishape *types.InterfaceDefinition
}

func newShapeBoxes(t *testing.T) *shapeBoxes {
	p := newProg(t)
	intRef := p.c.IntRef()
	sb := &shapeBoxes{progBuilder: p}
	sb.mshape = p.iface("MShape", types.Mutable)
	sb.ishape = p.iface("IShape", types.Immutable)
	sb.msq = p.strukt("MSquare", types.Mutable, types.NonWeakable, member("side", intRef))
	sb.mcircle = p.strukt("MCircle", types.Mutable, types.NonWeakable, member("r", intRef), member("cx", intRef))
	sb.isq = p.strukt("ISquare", types.Immutable, types.NonWeakable, member("side", intRef))
	sb.icircle = p.strukt("ICircle", types.Immutable, types.NonWeakable, member("r", intRef), member("cx", intRef))
	p.edge(sb.msq.Kind, sb.mshape.Kind)
	p.edge(sb.mcircle.Kind, sb.mshape.Kind)
	p.edge(sb.isq.Kind, sb.ishape.Kind)
	p.edge(sb.icircle.Kind, sb.ishape.Kind)
	sb.mbox = p.strukt("MBox", types.Mutable, types.NonWeakable, member("s", p.c.Ref(types.Owning, types.Yonder, sb.mshape.Kind)))
	sb.ibox = p.strukt("IBox", types.Immutable, types.NonWeakable, member("s", p.c.Ref(types.Share, types.Yonder, sb.ishape.Kind)))
	assign := make(map[types.Kind]Strategy)
	for _, k := range []types.Kind{sb.ishape.Kind, sb.isq.Kind, sb.icircle.Kind, sb.ibox.Kind} {
		assign[k] = ImmShared
	}
	sb.gs = newGS(t, p.prog, Config{Default: RCMutable, Assign: assign})
	sb.mut = sb.gs.Region(RCMutable)
	sb.imm = sb.gs.Region(ImmShared)
	return sb
}

func TestTransferInterfaceMember(t *testing.T) {
	sb := newShapeBoxes(t)
	intRef := sb.c.IntRef()
	ownShape := sb.c.Ref(types.Owning, types.Yonder, sb.mshape.Kind)
	borrowedBox := sb.c.Ref(types.Constraint, types.Yonder, sb.ibox.Kind)
	borrowedShape := sb.c.Ref(types.Constraint, types.Yonder, sb.ishape.Kind)

	// xfer(circle) boxes a square or a circle and sends the box across.
	mustBuild(t, sb.gs, "xfer", ssa.Ptr, []*ssa.Param{{Name: "circle", Type: ssa.I1}}, func(b *ssa.Builder) {
		shape := b.If(b.Param(0), interfaceRefType, func() *ssa.Value {
			c := sb.mut.Allocate(b, sb.gs.ownedRef(sb.mcircle.Kind), []Ref{{Type: intRef, Value: b.Int(3)}, {Type: intRef, Value: b.Int(5)}})
			return sb.mut.Upcast(b, c, ownShape).Value
		}, func() *ssa.Value {
			s := sb.mut.Allocate(b, sb.gs.ownedRef(sb.msq.Kind), []Ref{{Type: intRef, Value: b.Int(7)}})
			return sb.mut.Upcast(b, s, ownShape).Value
		})
		box := sb.mut.Allocate(b, sb.gs.ownedRef(sb.mbox.Kind), []Ref{{Type: ownShape, Value: shape}})
		b.Return(Transfer(sb.gs, b, box, sb.imm, sb.gs.ownedRef(sb.ibox.Kind)).Value)
	})
	// sum(box) is the sum of the members of the boxed shape.
	mustBuild(t, sb.gs, "sum", ssa.I64, ptrParams("box"), func(b *ssa.Builder) {
		box := Ref{Type: borrowedBox, Value: b.Param(0)}
		shape := sb.imm.LoadMember(b, box, 0, borrowedShape)
		asSquare := func(b *ssa.Builder) Ref {
			return sb.imm.AsSubtype(b, shape, sb.isq.Kind, intRef, func(b *ssa.Builder, s Ref) Ref {
				return sb.imm.LoadMember(b, s, 0, intRef)
			}, func(b *ssa.Builder) Ref {
				b.Panic("unknown shape")
				return Ref{}
			})
		}
		v := sb.imm.AsSubtype(b, shape, sb.icircle.Kind, intRef, func(b *ssa.Builder, c Ref) Ref {
			r := sb.imm.LoadMember(b, c, 0, intRef)
			cx := sb.imm.LoadMember(b, c, 1, intRef)
			return Ref{Type: intRef, Value: b.Add(r.Value, cx.Value)}
		}, asSquare)
		b.Return(v.Value)
	})
	mustBuild(t, sb.gs, "drop", nil, ptrParams("box"), func(b *ssa.Builder) {
		sb.imm.Dealias(b, Ref{Type: sb.gs.ownedRef(sb.ibox.Kind), Value: b.Param(0)})
		b.Return(nil)
	})

	tests := []struct {
		name   string
		circle bool
		want   int64
	}{
		{"square", false, 7},
		{"circle", true, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mach := newMachine(t, sb.gs)
			box := mustCall(t, mach, "xfer", interp.Bool(tt.circle))
			// Source box and shape, buffer, copied box and shape.
			wantStats(t, mach, 5, 3)
			if got := mustCall(t, mach, "sum", box).I; got != tt.want {
				t.Errorf("sum = %d, want %d", got, tt.want)
			}
			mustCall(t, mach, "drop", box)
			wantStats(t, mach, 5, 5)
		})
	}

	for _, name := range []string{"MSquare.measure.MShape", "MCircle.serialize.MShape", "IShape.unserialize"} {
		if sb.gs.Module.Func(name) == nil {
			t.Errorf("no %s generated", name)
		}
	}
}

func TestUnserializableImplementationTraps(t *testing.T) {
	p := newProg(t)
	intRef := p.c.IntRef()
	shape := p.iface("Shape", types.Mutable)
	node := p.strukt("Node", types.Mutable, types.Weakable, member("v", intRef))
	link := p.strukt("Link", types.Mutable, types.NonWeakable, member("to", p.c.Ref(types.Weak, types.Yonder, node.Kind)))
	p.edge(link.Kind, shape.Kind)
	gs := newGS(t, p.prog, Config{Default: RCMutable})

	f := gs.Module.Func("Link.measure.Shape")
	if f == nil || f.IsDecl() {
		t.Fatal("Link.measure.Shape has no body")
	}
	if gs.Module.Func("Link.measure") != nil {
		t.Error("Link.measure generated for a struct with a weak member")
	}
	var trap string
	for _, blk := range f.Blocks {
		for _, v := range blk.Values {
			if v.Op == ssa.OpPanic {
				trap, _ = v.Aux.(string)
			}
		}
	}
	if trap != noSerialMsg {
		t.Errorf("thunk traps with %q, want %q", trap, noSerialMsg)
	}
}
