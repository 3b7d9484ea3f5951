package region

import (
	"fmt"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/you-not-fish/regionc/internal/interp"
	"github.com/you-not-fish/regionc/internal/ssa"
	"github.com/you-not-fish/regionc/internal/types"
)

func TestRuntimeSizedArrayElements(t *testing.T) {
	p := newProg(t)
	intRef := p.c.IntRef()
	nums := p.rsa("Nums", types.Immutable, intRef)
	gs := newGS(t, p.prog, DefaultConfig())
	reg := gs.RegionFor(nums.Kind)
	own := gs.ownedRef(nums.Kind)
	borrowed := p.c.Ref(types.Constraint, types.Yonder, nums.Kind)

	mustBuild(t, gs, "make", ssa.Ptr, nil, func(b *ssa.Builder) {
		arr := reg.ConstructRuntimeSizedArray(b, own, Ref{Type: intRef, Value: b.Int(5)})
		for i := int64(0); i < 5; i++ {
			reg.InitializeElementInRSA(b, arr, Ref{Type: intRef, Value: b.Int(i)}, Ref{Type: intRef, Value: b.Int((i + 1) * 10)})
		}
		b.Return(arr.Value)
	})
	mustBuild(t, gs, "get", ssa.I64, []*ssa.Param{{Name: "arr", Type: ssa.Ptr}, {Name: "i", Type: ssa.I64}}, func(b *ssa.Builder) {
		arr := Ref{Type: borrowed, Value: b.Param(0)}
		b.Return(reg.LoadElementFromRSA(b, arr, Ref{Type: intRef, Value: b.Param(1)}, intRef).Value)
	})
	mustBuild(t, gs, "len", ssa.I64, ptrParams("arr"), func(b *ssa.Builder) {
		b.Return(reg.GetRuntimeSizedArrayLength(b, Ref{Type: borrowed, Value: b.Param(0)}).Value)
	})
	mustBuild(t, gs, "drop", nil, ptrParams("arr"), func(b *ssa.Builder) {
		reg.Dealias(b, Ref{Type: own, Value: b.Param(0)})
		b.Return(nil)
	})

	mach := newMachine(t, gs)
	arr := mustCall(t, mach, "make")
	if got := mustCall(t, mach, "len", arr).I; got != 5 {
		t.Errorf("len = %d, want 5", got)
	}
	for i, want := range []int64{10, 20, 30, 40, 50} {
		if got := mustCall(t, mach, "get", arr, interp.Int(int64(i))).I; got != want {
			t.Errorf("get(%d) = %d, want %d", i, got, want)
		}
	}
	for _, i := range []int64{-1, 5, 1 << 40} {
		_, err := mach.Call("get", arr, interp.Int(i))
		f := wantFault(t, err, interp.ErrPanic)
		if !strings.Contains(f.Msg, outOfBoundsMsg) {
			t.Errorf("get(%d): fault %q, want %q", i, f.Msg, outOfBoundsMsg)
		}
	}
	mustCall(t, mach, "drop", arr)
	wantStats(t, mach, 1, 1)
}

func TestStaticSizedArrayStore(t *testing.T) {
	p := newProg(t)
	intRef := p.c.IntRef()
	trio := p.ssaArray("Trio", 3, types.Mutable, intRef)
	gs := newGS(t, p.prog, Config{Default: RCMutable})
	reg := gs.RegionFor(trio.Kind)
	own := gs.ownedRef(trio.Kind)
	borrowed := p.c.Ref(types.Constraint, types.Yonder, trio.Kind)
	idxParams := []*ssa.Param{{Name: "arr", Type: ssa.Ptr}, {Name: "i", Type: ssa.I64}, {Name: "v", Type: ssa.I64}}

	mustBuild(t, gs, "make", ssa.Ptr, nil, func(b *ssa.Builder) {
		arr := reg.ConstructStaticSizedArray(b, own)
		for i := int64(0); i < 3; i++ {
			reg.InitializeElementInSSA(b, arr, Ref{Type: intRef, Value: b.Int(i)}, Ref{Type: intRef, Value: b.Int(i)})
		}
		b.Return(arr.Value)
	})
	mustBuild(t, gs, "store", ssa.I64, idxParams, func(b *ssa.Builder) {
		arr := Ref{Type: borrowed, Value: b.Param(0)}
		old := reg.StoreElementInSSA(b, arr, Ref{Type: intRef, Value: b.Param(1)}, Ref{Type: intRef, Value: b.Param(2)})
		b.Return(old.Value)
	})
	mustBuild(t, gs, "get", ssa.I64, idxParams[:2], func(b *ssa.Builder) {
		arr := Ref{Type: borrowed, Value: b.Param(0)}
		b.Return(reg.LoadElementFromSSA(b, arr, Ref{Type: intRef, Value: b.Param(1)}, intRef).Value)
	})

	mach := newMachine(t, gs)
	arr := mustCall(t, mach, "make")
	if old := mustCall(t, mach, "store", arr, interp.Int(1), interp.Int(42)).I; old != 1 {
		t.Errorf("store returned %d, want the old value 1", old)
	}
	if got := mustCall(t, mach, "get", arr, interp.Int(1)).I; got != 42 {
		t.Errorf("get(1) = %d, want 42", got)
	}
	_, err := mach.Call("store", arr, interp.Int(3), interp.Int(0))
	wantFault(t, err, interp.ErrPanic)
}

func TestRefCountPairing(t *testing.T) {
	p := newProg(t)
	intRef := p.c.IntRef()
	node := p.strukt("Node", types.Mutable, types.NonWeakable, member("v", intRef))
	gs := newGS(t, p.prog, Config{Default: RCMutable})
	reg := gs.RegionFor(node.Kind)
	own := gs.ownedRef(node.Kind)

	mustBuild(t, gs, "new", ssa.Ptr, nil, func(b *ssa.Builder) {
		b.Return(reg.Allocate(b, own, []Ref{{Type: intRef, Value: b.Int(7)}}).Value)
	})
	mustBuild(t, gs, "alias", nil, ptrParams("obj"), func(b *ssa.Builder) {
		reg.Alias(b, Ref{Type: own, Value: b.Param(0)})
		b.Return(nil)
	})
	mustBuild(t, gs, "release", nil, ptrParams("obj"), func(b *ssa.Builder) {
		reg.Dealias(b, Ref{Type: own, Value: b.Param(0)})
		b.Return(nil)
	})
	buildRC(t, gs)

	mach := newMachine(t, gs)
	obj := mustCall(t, mach, "new")
	if rc := mustCall(t, mach, "rc", obj).I; rc != 1 {
		t.Fatalf("rc after new = %d, want 1", rc)
	}
	mustCall(t, mach, "alias", obj)
	mustCall(t, mach, "alias", obj)
	if rc := mustCall(t, mach, "rc", obj).I; rc != 3 {
		t.Fatalf("rc after two aliases = %d, want 3", rc)
	}
	mustCall(t, mach, "release", obj)
	mustCall(t, mach, "release", obj)
	wantStats(t, mach, 1, 0)
	mustCall(t, mach, "release", obj)
	wantStats(t, mach, 1, 1)

	_, err := mach.Call("release", obj)
	wantFault(t, err, interp.ErrUseAfterFree)
}

func TestStoreMember(t *testing.T) {
	p := newProg(t)
	intRef := p.c.IntRef()
	leaf := p.strukt("Leaf", types.Mutable, types.NonWeakable, member("v", intRef))
	leafOwn := p.c.Ref(types.Owning, types.Yonder, leaf.Kind)
	box := p.strukt("Box", types.Mutable, types.NonWeakable, member("leaf", leafOwn))
	gs := newGS(t, p.prog, Config{Default: RCMutable})
	reg := gs.RegionFor(box.Kind)
	boxOwn := gs.ownedRef(box.Kind)

	newLeaf := func(b *ssa.Builder, v int64) Ref {
		return reg.Allocate(b, leafOwn, []Ref{{Type: intRef, Value: b.Int(v)}})
	}
	mustBuild(t, gs, "new", ssa.Ptr, nil, func(b *ssa.Builder) {
		b.Return(reg.Allocate(b, boxOwn, []Ref{newLeaf(b, 1)}).Value)
	})
	// swap puts a fresh leaf into the box and returns the old leaf's value.
	mustBuild(t, gs, "swap", ssa.I64, ptrParams("box"), func(b *ssa.Builder) {
		borrowed := Ref{Type: p.c.Ref(types.Constraint, types.Yonder, box.Kind), Value: b.Param(0)}
		old := reg.StoreMember(b, borrowed, 0, newLeaf(b, 2))
		v := reg.LoadMember(b, old, 0, intRef)
		reg.Dealias(b, old)
		b.Return(v.Value)
	})
	mustBuild(t, gs, "drop", nil, ptrParams("box"), func(b *ssa.Builder) {
		reg.Dealias(b, Ref{Type: boxOwn, Value: b.Param(0)})
		b.Return(nil)
	})

	mach := newMachine(t, gs)
	bx := mustCall(t, mach, "new")
	if got := mustCall(t, mach, "swap", bx).I; got != 1 {
		t.Errorf("first swap = %d, want 1", got)
	}
	if got := mustCall(t, mach, "swap", bx).I; got != 2 {
		t.Errorf("second swap = %d, want 2", got)
	}
	wantStats(t, mach, 4, 2)
	mustCall(t, mach, "drop", bx)
	wantStats(t, mach, 4, 4)
}

func TestImmutableStoreIsInternalError(t *testing.T) {
	p := newProg(t)
	intRef := p.c.IntRef()
	pt := p.strukt("Point", types.Immutable, types.NonWeakable, member("x", intRef))
	nums := p.rsa("Nums", types.Immutable, intRef)
	gs := newGS(t, p.prog, DefaultConfig())
	reg := gs.Region(ImmShared)

	_, err := gs.BuildFunc("set", nil, ptrParams("p"), func(b *ssa.Builder) {
		r := Ref{Type: gs.ownedRef(pt.Kind), Value: b.Param(0)}
		reg.StoreMember(b, r, 0, Ref{Type: intRef, Value: b.Int(1)})
	})
	ie := wantInternal(t, err, "StoreMember")
	if !strings.Contains(ie.Site, "rc_test.go") {
		t.Errorf("Site = %q, want the calling test", ie.Site)
	}

	_, err = gs.BuildFunc("setElem", nil, ptrParams("a"), func(b *ssa.Builder) {
		r := Ref{Type: gs.ownedRef(nums.Kind), Value: b.Param(0)}
		reg.StoreElementInRSA(b, r, Ref{Type: intRef, Value: b.Int(0)}, Ref{Type: intRef, Value: b.Int(1)})
	})
	wantInternal(t, err, "StoreElementInRSA")
}

func TestWeakLock(t *testing.T) {
	for _, threaded := range []bool{false, true} {
		t.Run(fmt.Sprintf("threaded=%v", threaded), func(t *testing.T) {
			p := newProg(t)
			intRef := p.c.IntRef()
			obj := p.strukt("Obj", types.Immutable, types.Weakable, member("v", intRef))
			cfg := DefaultConfig()
			cfg.Threaded = threaded
			gs := newGS(t, p.prog, cfg)
			reg := gs.RegionFor(obj.Kind)
			own := gs.ownedRef(obj.Kind)
			weak := p.c.Ref(types.Weak, types.Yonder, obj.Kind)
			weakParam := []*ssa.Param{{Name: "w", Type: weakRefType}}

			mustBuild(t, gs, "new", ssa.Ptr, nil, func(b *ssa.Builder) {
				b.Return(reg.Allocate(b, own, []Ref{{Type: intRef, Value: b.Int(7)}}).Value)
			})
			mustBuild(t, gs, "weak", weakRefType, ptrParams("obj"), func(b *ssa.Builder) {
				b.Return(reg.WeakAlias(b, Ref{Type: own, Value: b.Param(0)}).Value)
			})
			mustBuild(t, gs, "alive", ssa.I1, weakParam, func(b *ssa.Builder) {
				b.Return(reg.GetIsAliveFromWeakRef(b, Ref{Type: weak, Value: b.Param(0)}).Value)
			})
			mustBuild(t, gs, "lock", ssa.I64, weakParam, func(b *ssa.Builder) {
				v := reg.LockWeak(b, Ref{Type: weak, Value: b.Param(0)}, intRef,
					func(b *ssa.Builder, r Ref) Ref {
						v := reg.LoadMember(b, r, 0, intRef)
						reg.Dealias(b, r)
						return v
					},
					func(b *ssa.Builder) Ref {
						return Ref{Type: intRef, Value: b.Int(-1)}
					})
				b.Return(v.Value)
			})
			mustBuild(t, gs, "drop", nil, ptrParams("obj"), func(b *ssa.Builder) {
				reg.Dealias(b, Ref{Type: own, Value: b.Param(0)})
				b.Return(nil)
			})
			mustBuild(t, gs, "dropWeak", nil, weakParam, func(b *ssa.Builder) {
				reg.DiscardWeakRef(b, Ref{Type: weak, Value: b.Param(0)})
				b.Return(nil)
			})

			mach := newMachine(t, gs)
			o := mustCall(t, mach, "new")
			w := mustCall(t, mach, "weak", o)
			if !mustCall(t, mach, "alive", w).Truth() {
				t.Fatal("weak reference dead while its object lives")
			}
			if got := mustCall(t, mach, "lock", w).I; got != 7 {
				t.Errorf("lock = %d, want 7", got)
			}
			wantStats(t, mach, 1, 0)

			mustCall(t, mach, "drop", o)
			wantStats(t, mach, 1, 1)
			for i := 0; i < 2; i++ {
				if mustCall(t, mach, "alive", w).Truth() {
					t.Fatal("weak reference alive after its object died")
				}
				if got := mustCall(t, mach, "lock", w).I; got != -1 {
					t.Errorf("lock after death = %d, want -1", got)
				}
			}
			if n := mach.Stats().WeakRecords; n != 1 {
				t.Errorf("weak records = %d, want 1 while a weak reference remains", n)
			}
			mustCall(t, mach, "dropWeak", w)
			if n := mach.Stats().WeakRecords; n != 0 {
				t.Errorf("weak records = %d, want 0", n)
			}
		})
	}
}

func TestWeakAliasOfNonWeakable(t *testing.T) {
	p := newProg(t)
	plain := p.strukt("Plain", types.Immutable, types.NonWeakable)
	gs := newGS(t, p.prog, DefaultConfig())
	_, err := gs.BuildFunc("weak", weakRefType, ptrParams("obj"), func(b *ssa.Builder) {
		b.Return(gs.RegionFor(plain.Kind).WeakAlias(b, Ref{Type: gs.ownedRef(plain.Kind), Value: b.Param(0)}).Value)
	})
	wantInternal(t, err, "WeakAlias")
}

func TestIntRangeLoop(t *testing.T) {
	p := newProg(t)
	gs := newGS(t, p.prog, DefaultConfig())
	intRef := p.c.IntRef()
	gs.Module.DeclareFunc("visit", nil, &ssa.Param{Name: "i", Type: ssa.I64})
	nParam := []*ssa.Param{{Name: "n", Type: ssa.I64}}
	visit := BodyFunc(func(b *ssa.Builder, i Ref) { b.Call("visit", nil, i.Value) })

	mustBuild(t, gs, "up", nil, nParam, func(b *ssa.Builder) {
		IntRangeLoop(b, Ref{Type: intRef, Value: b.Param(0)}, visit)
		b.Return(nil)
	})
	mustBuild(t, gs, "down", nil, nParam, func(b *ssa.Builder) {
		IntRangeLoopReverse(b, Ref{Type: intRef, Value: b.Param(0)}, visit)
		b.Return(nil)
	})

	mach := newMachine(t, gs)
	var seen []int64
	mach.Register("visit", func(m *interp.Machine, args []interp.Value) (interp.Value, error) {
		seen = append(seen, args[0].I)
		return interp.Value{}, nil
	})

	tests := []struct {
		fn   string
		n    int64
		want string
	}{
		{"up", 4, "[0 1 2 3]"},
		{"down", 4, "[3 2 1 0]"},
		{"up", 0, "[]"},
		{"down", 0, "[]"},
		{"up", 1, "[0]"},
	}
	for _, tt := range tests {
		seen = nil
		mustCall(t, mach, tt.fn, interp.Int(tt.n))
		if got := fmt.Sprint(seen); got != tt.want {
			t.Errorf("%s(%d) visited %s, want %s", tt.fn, tt.n, got, tt.want)
		}
	}
}

func TestInterfaceDispatch(t *testing.T) {
	p := newProg(t)
	intRef := p.c.IntRef()
	animalKind := p.c.Interface("Animal")
	speak := &types.Prototype{
		Name:   "Animal.speak",
		Params: []*types.Reference{p.c.Ref(types.Constraint, types.Yonder, animalKind)},
		Return: intRef,
	}
	animal := p.iface("Animal", types.Mutable, &types.InterfaceMethod{Prototype: speak})
	dog := p.strukt("Dog", types.Mutable, types.NonWeakable, member("age", intRef))
	cat := p.strukt("Cat", types.Mutable, types.NonWeakable)
	dogSpeak := &types.Prototype{Name: "Dog.speak", Params: []*types.Reference{p.c.Ref(types.Constraint, types.Yonder, dog.Kind)}, Return: intRef}
	catSpeak := &types.Prototype{Name: "Cat.speak", Params: []*types.Reference{p.c.Ref(types.Constraint, types.Yonder, cat.Kind)}, Return: intRef}
	p.edge(dog.Kind, animal.Kind, dogSpeak)
	p.edge(cat.Kind, animal.Kind, catSpeak)
	gs := newGS(t, p.prog, Config{Default: RCMutable})
	reg := gs.RegionFor(animal.Kind)

	ownAnimal := p.c.Ref(types.Owning, types.Yonder, animal.Kind)
	borrowedAnimal := p.c.Ref(types.Constraint, types.Yonder, animal.Kind)
	ifaceParam := []*ssa.Param{{Name: "a", Type: interfaceRefType}}

	mustBuild(t, gs, "Dog.speak", ssa.I64, ptrParams("p0"), func(b *ssa.Builder) {
		self := Ref{Type: dogSpeak.Params[0], Value: b.Param(0)}
		age := reg.LoadMember(b, self, 0, intRef)
		b.Return(b.Mul(age.Value, b.Int(10)))
	})
	mustBuild(t, gs, "Cat.speak", ssa.I64, ptrParams("p0"), func(b *ssa.Builder) {
		b.Return(b.Int(1))
	})
	mustBuild(t, gs, "newDog", interfaceRefType, nil, func(b *ssa.Builder) {
		d := reg.Allocate(b, gs.ownedRef(dog.Kind), []Ref{{Type: intRef, Value: b.Int(3)}})
		b.Return(reg.Upcast(b, d, ownAnimal).Value)
	})
	mustBuild(t, gs, "newCat", interfaceRefType, nil, func(b *ssa.Builder) {
		c := reg.Allocate(b, gs.ownedRef(cat.Kind), nil)
		b.Return(reg.Upcast(b, c, ownAnimal).Value)
	})
	mustBuild(t, gs, "speak", ssa.I64, ifaceParam, func(b *ssa.Builder) {
		a := Ref{Type: borrowedAnimal, Value: b.Param(0)}
		fp := reg.GetInterfaceMethodFunctionPtr(b, a, 0)
		obj, _ := reg.ExplodeInterfaceRef(b, a)
		b.Return(b.CallPtr(fp, ssa.I64, obj))
	})
	mustBuild(t, gs, "dogAge", ssa.I64, ifaceParam, func(b *ssa.Builder) {
		a := Ref{Type: borrowedAnimal, Value: b.Param(0)}
		v := reg.AsSubtype(b, a, dog.Kind, intRef,
			func(b *ssa.Builder, d Ref) Ref { return reg.LoadMember(b, d, 0, intRef) },
			func(b *ssa.Builder) Ref { return Ref{Type: intRef, Value: b.Int(-1)} })
		b.Return(v.Value)
	})
	mustBuild(t, gs, "drop", nil, ifaceParam, func(b *ssa.Builder) {
		reg.Dealias(b, Ref{Type: ownAnimal, Value: b.Param(0)})
		b.Return(nil)
	})

	mach := newMachine(t, gs)
	d := mustCall(t, mach, "newDog")
	c := mustCall(t, mach, "newCat")
	tests := []struct {
		fn   string
		arg  interp.Value
		want int64
	}{
		{"speak", d, 30},
		{"speak", c, 1},
		{"dogAge", d, 3},
		{"dogAge", c, -1},
	}
	for _, tt := range tests {
		if got := mustCall(t, mach, tt.fn, tt.arg).I; got != tt.want {
			t.Errorf("%s = %d, want %d", tt.fn, got, tt.want)
		}
	}
	mustCall(t, mach, "drop", d)
	mustCall(t, mach, "drop", c)
	wantStats(t, mach, 2, 2)
}

func TestCheckedReferences(t *testing.T) {
	p := newProg(t)
	intRef := p.c.IntRef()
	node := p.strukt("Node", types.Mutable, types.NonWeakable, member("v", intRef))
	gs := newGS(t, p.prog, Config{Default: RCMutable, Checked: true})
	reg := gs.RegionFor(node.Kind)
	borrowed := p.c.Ref(types.Constraint, types.Yonder, node.Kind)

	mustBuild(t, gs, "get", ssa.I64, ptrParams("n"), func(b *ssa.Builder) {
		b.Return(reg.LoadMember(b, Ref{Type: borrowed, Value: b.Param(0)}, 0, intRef).Value)
	})
	mach := newMachine(t, gs)
	_, err := mach.Call("get", interp.Null())
	f := wantFault(t, err, interp.ErrPanic)
	if !strings.Contains(f.Msg, danglingMsg) {
		t.Errorf("fault %q, want %q", f.Msg, danglingMsg)
	}
}

func TestThreadedSharing(t *testing.T) {
	p := newProg(t)
	intRef := p.c.IntRef()
	obj := p.strukt("Shared", types.Immutable, types.NonWeakable, member("v", intRef))
	cfg := DefaultConfig()
	cfg.Threaded = true
	gs := newGS(t, p.prog, cfg)
	reg := gs.RegionFor(obj.Kind)
	own := gs.ownedRef(obj.Kind)

	mustBuild(t, gs, "new", ssa.Ptr, nil, func(b *ssa.Builder) {
		b.Return(reg.Allocate(b, own, []Ref{{Type: intRef, Value: b.Int(1)}}).Value)
	})
	mustBuild(t, gs, "alias", nil, ptrParams("obj"), func(b *ssa.Builder) {
		reg.Alias(b, Ref{Type: own, Value: b.Param(0)})
		b.Return(nil)
	})
	mustBuild(t, gs, "release", nil, ptrParams("obj"), func(b *ssa.Builder) {
		reg.Dealias(b, Ref{Type: own, Value: b.Param(0)})
		b.Return(nil)
	})
	buildRC(t, gs)

	mach := newMachine(t, gs)
	o := mustCall(t, mach, "new")
	const workers, iters = 8, 100
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := 0; i < iters; i++ {
				if _, err := mach.Call("alias", o); err != nil {
					return err
				}
			}
			for i := 0; i < iters; i++ {
				if _, err := mach.Call("release", o); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("workers: %v", err)
	}
	if rc := mustCall(t, mach, "rc", o).I; rc != 1 {
		t.Fatalf("rc = %d, want 1", rc)
	}
	wantStats(t, mach, 1, 0)
	mustCall(t, mach, "release", o)
	wantStats(t, mach, 1, 1)
}
