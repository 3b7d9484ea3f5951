package types

import "testing"

func TestKindNames(t *testing.T) {
	c := NewCache()
	tests := []struct {
		kind Kind
		name string
		str  string
	}{
		{c.Int(64), "i64", "i64"},
		{c.Int(32), "i32", "i32"},
		{c.Bool(), "bool", "bool"},
		{c.Void(), "void", "void"},
		{c.Never(), "never", "never"},
		{c.Struct("Point"), "Point", "struct Point"},
		{c.Interface("Shape"), "Shape", "interface Shape"},
		{c.StaticSizedArray("Arr5"), "Arr5", "ssa Arr5"},
		{c.RuntimeSizedArray("IntArr"), "IntArr", "rsa IntArr"},
	}

	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			if got := tt.kind.Name(); got != tt.name {
				t.Errorf("Name() = %q, want %q", got, tt.name)
			}
			if got := tt.kind.String(); got != tt.str {
				t.Errorf("String() = %q, want %q", got, tt.str)
			}
		})
	}
}

func TestCacheInterning(t *testing.T) {
	c := NewCache()

	if c.Int(64) != c.Int(64) {
		t.Error("Int(64) not interned")
	}
	if c.Int(64) == c.Int(32) {
		t.Error("Int(64) and Int(32) share identity")
	}
	if c.Struct("A") != c.Struct("A") {
		t.Error("Struct(A) not interned")
	}
	if Kind(c.Struct("A")) == Kind(c.Interface("A")) {
		t.Error("struct and interface of the same name share identity")
	}

	a := c.Ref(Share, Yonder, c.Struct("A"))
	b := c.Ref(Share, Yonder, c.Struct("A"))
	if a != b {
		t.Error("Ref not interned")
	}
	if a == c.Ref(Weak, Yonder, c.Struct("A")) {
		t.Error("refs with different ownership share identity")
	}
	if c.WithOwnership(a, Weak) != c.Ref(Weak, Yonder, c.Struct("A")) {
		t.Error("WithOwnership did not return the interned descriptor")
	}
	if c.IntRef().Kind != c.Int(64) || c.IntRef().Location != Inline {
		t.Errorf("IntRef() = %s, want share inl i64", c.IntRef())
	}
}

func TestReferenceString(t *testing.T) {
	c := NewCache()
	tests := []struct {
		ref  *Reference
		want string
	}{
		{c.Ref(Owning, Yonder, c.Struct("P")), "own yon P"},
		{c.Ref(Constraint, Yonder, c.Struct("P")), "& yon P"},
		{c.Ref(Weak, Yonder, c.Struct("P")), "&& yon P"},
		{c.Ref(Share, Inline, c.Int(64)), "share inl i64"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.ref.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProgramDefinitions(t *testing.T) {
	p := NewProgram("test")
	c := p.Cache()
	i64 := c.IntRef()

	point, err := p.AddStruct("Point", Immutable, NonWeakable,
		&StructMember{Name: "x", Type: i64},
		&StructMember{Name: "y", Type: i64})
	if err != nil {
		t.Fatalf("AddStruct: %v", err)
	}
	if _, err := p.AddStruct("Point", Immutable, NonWeakable); err == nil {
		t.Error("duplicate AddStruct succeeded")
	}
	if point.NumMembers() != 2 || point.Member(1).Name != "y" {
		t.Errorf("members = %d, want 2 with y second", point.NumMembers())
	}

	shape, err := p.AddInterface("Shape", Immutable, &InterfaceMethod{
		Prototype: &Prototype{Name: "area", Params: []*Reference{c.Ref(Share, Yonder, c.Interface("Shape"))}, Return: i64},
	})
	if err != nil {
		t.Fatalf("AddInterface: %v", err)
	}
	if _, err := p.AddRuntimeSizedArray("IntArr", Immutable, i64); err != nil {
		t.Fatalf("AddRuntimeSizedArray: %v", err)
	}
	if _, err := p.AddStaticSizedArray("Neg", -1, Immutable, i64); err == nil {
		t.Error("negative static-sized array accepted")
	}

	impl := &Prototype{Name: "Point.area", Params: []*Reference{c.Ref(Share, Yonder, point.Kind)}, Return: i64}
	if _, err := p.AddEdge(point.Kind, shape.Kind); err == nil {
		t.Error("edge with missing methods accepted")
	}
	if _, err := p.AddEdge(point.Kind, shape.Kind, impl); err != nil {
		t.Fatalf("AddEdge: %v", err)
	}
	if _, err := p.AddEdge(point.Kind, shape.Kind, impl); err == nil {
		t.Error("duplicate edge accepted")
	}

	if p.LookupEdge(point.Kind, shape.Kind) == nil {
		t.Error("LookupEdge(Point, Shape) = nil")
	}
	if got := p.Implementors(shape.Kind); len(got) != 1 || got[0] != point.Kind {
		t.Errorf("Implementors(Shape) = %v, want [Point]", got)
	}

	kinds := p.Kinds()
	want := []string{"struct Point", "interface Shape", "rsa IntArr"}
	if len(kinds) != len(want) {
		t.Fatalf("Kinds() = %v, want %v", kinds, want)
	}
	for i, k := range kinds {
		if k.String() != want[i] {
			t.Errorf("Kinds()[%d] = %s, want %s", i, k, want[i])
		}
	}
}

func TestProgramMutability(t *testing.T) {
	p := NewProgram("test")
	c := p.Cache()
	m, _ := p.AddStruct("M", Mutable, Weakable)
	im, _ := p.AddStruct("I", Immutable, NonWeakable)

	if p.Mutability(m.Kind) != Mutable {
		t.Error("M should be mutable")
	}
	if p.Mutability(im.Kind) != Immutable {
		t.Error("I should be immutable")
	}
	if p.Mutability(c.Int(64)) != Immutable {
		t.Error("primitives should be immutable")
	}
	if p.Weakability(m.Kind) != Weakable || p.Weakability(im.Kind) != NonWeakable {
		t.Error("weakability not recorded")
	}
}
