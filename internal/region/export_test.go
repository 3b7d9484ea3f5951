package region

import (
	"strings"
	"testing"

	"github.com/you-not-fish/regionc/internal/codegen"
	"github.com/you-not-fish/regionc/internal/ssa"
	"github.com/you-not-fish/regionc/internal/ssa/passes"
	"github.com/you-not-fish/regionc/internal/types"
)

func TestExportName(t *testing.T) {
	p := newProg(t)
	point := p.strukt("Point", types.Immutable, types.NonWeakable)
	gs, err := NewGlobalState(p.prog, DefaultConfig())
	if err != nil {
		t.Fatalf("NewGlobalState: %v", err)
	}
	r := gs.Region(ImmShared)

	tests := []struct {
		ref     *types.Reference
		project bool
		want    string
	}{
		{p.c.IntRef(), true, "int64_t"},
		{p.c.Ref(types.Share, types.Inline, p.c.Int(32)), false, "int32_t"},
		{p.c.BoolRef(), false, "int8_t"},
		{p.c.VoidRef(), false, "void"},
		{p.c.Ref(types.Share, types.Inline, point.Kind), true, "p_Point"},
		{p.c.Ref(types.Share, types.Inline, point.Kind), false, "Point"},
		{p.c.Ref(types.Share, types.Yonder, point.Kind), true, "p_PointRef"},
	}
	for _, tt := range tests {
		if got := r.ExportName(tt.ref, tt.project); got != tt.want {
			t.Errorf("ExportName(%s, %v) = %q, want %q", tt.ref, tt.project, got, tt.want)
		}
	}

	err = catch(func() { r.ExportName(p.c.Ref(types.Weak, types.Yonder, point.Kind), true) })
	wantInternal(t, err, "ExportName")
	err = catch(func() { r.ExportName(p.c.Ref(types.Share, types.Inline, p.c.Int(7)), true) })
	wantInternal(t, err, "ExportName")
}

func TestGenerateDefsC(t *testing.T) {
	p := newProg(t)
	intRef := p.c.IntRef()
	point := p.strukt("Point", types.Immutable, types.NonWeakable, member("x", intRef), member("ok", p.c.BoolRef()))
	node := p.strukt("Node", types.Mutable, types.NonWeakable, member("v", intRef))
	shape := p.iface("Shape", types.Immutable)
	trio := p.ssaArray("Trio", 3, types.Immutable, intRef)
	nums := p.rsa("Nums", types.Immutable, p.c.Ref(types.Share, types.Inline, point.Kind))
	gs, err := NewGlobalState(p.prog, Config{Default: ImmShared, Assign: map[types.Kind]Strategy{node.Kind: RCMutable}})
	if err != nil {
		t.Fatalf("NewGlobalState: %v", err)
	}
	imm := gs.Region(ImmShared)

	tests := []struct {
		name string
		got  string
		want []string
	}{
		{"immutable struct", imm.GenerateStructDefsC(point), []string{
			"typedef struct p_PointRef { void* unused; } p_PointRef;",
			"typedef struct p_Point {\n  int64_t x;\n  int8_t ok;\n} p_Point;",
			"_Static_assert(sizeof(p_Point) == 16, \"p_Point\");",
		}},
		{"mutable struct", gs.RegionFor(node.Kind).GenerateStructDefsC(node), []string{
			"typedef struct p_NodeRef { void* unused; } p_NodeRef;",
		}},
		{"interface", imm.GenerateInterfaceDefsC(shape), []string{
			"typedef struct p_ShapeRef { void* obj; void* vtable; } p_ShapeRef;",
		}},
		{"static array", imm.GenerateStaticSizedArrayDefsC(trio), []string{
			"typedef struct p_Trio { int64_t elements[3]; } p_Trio;",
			"_Static_assert(sizeof(p_Trio) == 24, \"p_Trio\");",
		}},
		{"runtime array", imm.GenerateRuntimeSizedArrayDefsC(nums), []string{
			"typedef struct p_Nums { uint64_t length; p_Point elements[]; } p_Nums;",
		}},
	}
	for _, tt := range tests {
		for _, want := range tt.want {
			if !strings.Contains(tt.got, want) {
				t.Errorf("%s: missing %q in\n%s", tt.name, want, tt.got)
			}
		}
	}
	if got := gs.RegionFor(node.Kind).GenerateStructDefsC(node); strings.Contains(got, "p_Node {") {
		t.Errorf("mutable struct exported by value:\n%s", got)
	}
}

// TestGeneratedModuleLowers runs the pass pipeline and the IR printer over
// a module using every backend feature.
func TestGeneratedModuleLowers(t *testing.T) {
	p := newProg(t)
	intRef := p.c.IntRef()
	shapeKind := p.c.Interface("Shape")
	area := &types.Prototype{Name: "Shape.area", Params: []*types.Reference{p.c.Ref(types.Constraint, types.Yonder, shapeKind)}, Return: intRef}
	shape := p.iface("Shape", types.Immutable, &types.InterfaceMethod{Prototype: area})
	sq := p.strukt("Square", types.Immutable, types.Weakable, member("side", intRef))
	sqArea := &types.Prototype{Name: "Square.area", Params: []*types.Reference{p.c.Ref(types.Constraint, types.Yonder, sq.Kind)}, Return: intRef}
	p.edge(sq.Kind, shape.Kind, sqArea)
	shapes := p.rsa("Shapes", types.Immutable, p.c.Ref(types.Share, types.Yonder, shape.Kind))

	cfg := DefaultConfig()
	cfg.Threaded = true
	cfg.Checked = true
	gs := newGS(t, p.prog, cfg)
	reg := gs.RegionFor(sq.Kind)
	share := gs.ownedRef(sq.Kind)
	shareShape := p.c.Ref(types.Share, types.Yonder, shape.Kind)

	mustBuild(t, gs, "Square.area", ssa.I64, ptrParams("p0"), func(b *ssa.Builder) {
		side := reg.LoadMember(b, Ref{Type: sqArea.Params[0], Value: b.Param(0)}, 0, intRef)
		b.Return(b.Mul(side.Value, side.Value))
	})
	mustBuild(t, gs, "main", ssa.I64, nil, func(b *ssa.Builder) {
		s := reg.Allocate(b, share, []Ref{{Type: intRef, Value: b.Int(4)}})
		w := reg.WeakAlias(b, s)
		arr := reg.ConstructRuntimeSizedArray(b, gs.ownedRef(shapes.Kind), Ref{Type: intRef, Value: b.Int(1)})
		reg.InitializeElementInRSA(b, arr, Ref{Type: intRef, Value: b.Int(0)}, reg.Upcast(b, s, shareShape))
		v := reg.LockWeak(b, w, intRef,
			func(b *ssa.Builder, r Ref) Ref {
				reg.Dealias(b, r)
				return Ref{Type: intRef, Value: b.Int(1)}
			},
			func(b *ssa.Builder) Ref { return Ref{Type: intRef, Value: b.Int(0)} })
		reg.DiscardWeakRef(b, w)
		reg.Dealias(b, arr)
		b.Return(v.Value)
	})

	if err := passes.RunModule(gs.Module, passes.Pipeline(), passes.Config{Verify: true}); err != nil {
		t.Fatalf("RunModule: %v", err)
	}
	var sb strings.Builder
	if err := codegen.Generate(&sb, gs.Module); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	ir := sb.String()
	for _, want := range []string{
		"%Square = type { { i64, i64, i64 }, i64 }",
		"%Shape.vtable = type { ptr, ptr, ptr, ptr }",
		"@Square.vtable.Shape",
		"define i64 @Square.measure.Shape(ptr",
		"define void @Square.serialize.Shape(ptr",
		"define void @Square.free(ptr",
		"define void @Shapes.free(ptr",
		"call void @rt_weak_mark_dead(",
		"call i1 @rt_weak_try_retain(",
		"atomicrmw add",
		"fence release",
	} {
		if !strings.Contains(ir, want) {
			t.Errorf("IR missing %q", want)
		}
	}

	mach := newMachine(t, gs)
	if got := mustCall(t, mach, "main").I; got != 1 {
		t.Errorf("main = %d, want 1", got)
	}
	if s := mach.Stats(); s.Live() != 0 || s.WeakRecords != 0 {
		t.Errorf("after main: %d live objects, %d weak records", s.Live(), s.WeakRecords)
	}
}
