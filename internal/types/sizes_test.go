package types

import (
	"testing"

	"github.com/you-not-fish/regionc/internal/rtabi"
)

func TestSizeof(t *testing.T) {
	p := NewProgram("test")
	c := p.Cache()
	s := c.Struct("S")
	sizes := NewSizes(p)

	tests := []struct {
		ref  *Reference
		want int64
	}{
		{c.IntRef(), rtabi.SizeInt},
		{c.Ref(Share, Inline, c.Int(32)), 4},
		{c.BoolRef(), rtabi.SizeBool},
		{c.VoidRef(), 0},
		{c.Ref(Share, Yonder, s), rtabi.SizePtr},
		{c.Ref(Weak, Yonder, s), rtabi.SizeFatRef},
		{c.Ref(Share, Yonder, c.Interface("I")), rtabi.SizeFatRef},
		{c.Ref(Weak, Yonder, c.Interface("I")), rtabi.SizeWeakInterfaceRef},
	}

	for _, tt := range tests {
		t.Run(tt.ref.String(), func(t *testing.T) {
			if got := sizes.Sizeof(tt.ref); got != tt.want {
				t.Errorf("Sizeof(%s) = %d, want %d", tt.ref, got, tt.want)
			}
		})
	}
}

func TestStructLayout(t *testing.T) {
	p := NewProgram("test")
	c := p.Cache()

	// {bool, i64, bool} -> offsets 0, 8, 16; size 24
	mixed, _ := p.AddStruct("Mixed", Immutable, NonWeakable,
		&StructMember{Name: "a", Type: c.BoolRef()},
		&StructMember{Name: "b", Type: c.IntRef()},
		&StructMember{Name: "c", Type: c.BoolRef()})
	// {Mixed inline, ptr}
	outer, _ := p.AddStruct("Outer", Immutable, NonWeakable,
		&StructMember{Name: "m", Type: c.Ref(Share, Inline, mixed.Kind)},
		&StructMember{Name: "p", Type: c.Ref(Share, Yonder, mixed.Kind)})
	empty, _ := p.AddStruct("Empty", Immutable, NonWeakable)

	sizes := NewSizes(p)

	tests := []struct {
		kind    *StructKind
		size    int64
		align   int64
		offsets []int64
	}{
		{mixed.Kind, 24, 8, []int64{0, 8, 16}},
		{outer.Kind, 32, 8, []int64{0, 24}},
		{empty.Kind, 0, 1, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.kind.Name(), func(t *testing.T) {
			l := sizes.StructLayout(tt.kind)
			if l.Size != tt.size {
				t.Errorf("Size = %d, want %d", l.Size, tt.size)
			}
			if l.Align != tt.align {
				t.Errorf("Align = %d, want %d", l.Align, tt.align)
			}
			if len(l.Offsets) != len(tt.offsets) {
				t.Fatalf("len(Offsets) = %d, want %d", len(l.Offsets), len(tt.offsets))
			}
			for i, off := range tt.offsets {
				if got := sizes.Offsetof(tt.kind, i); got != off {
					t.Errorf("Offsetof(%d) = %d, want %d", i, got, off)
				}
			}
		})
	}

	if sizes.StructLayout(mixed.Kind) != sizes.StructLayout(mixed.Kind) {
		t.Error("StructLayout not cached")
	}
}

func TestStaticSizedArraySize(t *testing.T) {
	p := NewProgram("test")
	c := p.Cache()
	arr, _ := p.AddStaticSizedArray("Five", 5, Immutable, c.IntRef())
	zero, _ := p.AddStaticSizedArray("Zero", 0, Immutable, c.IntRef())
	sizes := NewSizes(p)

	if got := sizes.Sizeof(c.Ref(Share, Inline, arr.Kind)); got != 5*rtabi.SizeInt {
		t.Errorf("Sizeof(inline [5 x i64]) = %d, want %d", got, 5*rtabi.SizeInt)
	}
	if got := sizes.Alignof(c.Ref(Share, Inline, zero.Kind)); got != 1 {
		t.Errorf("Alignof(inline [0 x i64]) = %d, want 1", got)
	}
}
