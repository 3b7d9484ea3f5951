package types

import "github.com/you-not-fish/regionc/internal/rtabi"

// Layout is the external (C ABI) layout of a struct payload: the size,
// alignment and member offsets a foreign caller sees. The control block is
// not part of it.
type Layout struct {
	Size    int64
	Align   int64
	Offsets []int64
}

// Sizes computes external sizes and alignments against a program.
// Struct layouts are computed once and cached.
type Sizes struct {
	prog    *Program
	layouts map[Kind]*Layout
}

// NewSizes creates a Sizes for p.
func NewSizes(p *Program) *Sizes {
	return &Sizes{prog: p, layouts: make(map[Kind]*Layout)}
}

// Sizeof returns the size in bytes of a value described by r.
func (s *Sizes) Sizeof(r *Reference) int64 {
	if r.Location == Yonder {
		_, iface := r.Kind.(*InterfaceKind)
		switch {
		case r.Ownership == Weak && iface:
			return rtabi.SizeWeakInterfaceRef
		case isFat(r):
			return rtabi.SizeFatRef
		}
		return rtabi.SizePtr
	}
	switch k := r.Kind.(type) {
	case *Int:
		return int64(k.Bits()+7) / 8
	case *Bool:
		return rtabi.SizeBool
	case *Void, *Never:
		return 0
	case *StructKind:
		return s.StructLayout(k).Size
	case *StaticSizedArrayKind:
		if d := s.prog.LookupStaticSizedArray(k); d != nil {
			return d.Size * s.Sizeof(d.ElementType)
		}
	}
	return rtabi.SizePtr
}

// Alignof returns the alignment in bytes of a value described by r.
func (s *Sizes) Alignof(r *Reference) int64 {
	if r.Location == Yonder {
		return rtabi.AlignPtr
	}
	switch k := r.Kind.(type) {
	case *Int:
		a := int64(k.Bits()+7) / 8
		if a > rtabi.AlignInt {
			return rtabi.AlignInt
		}
		return a
	case *Bool:
		return rtabi.AlignBool
	case *Void, *Never:
		return 1
	case *StructKind:
		return s.StructLayout(k).Align
	case *StaticSizedArrayKind:
		d := s.prog.LookupStaticSizedArray(k)
		if d == nil || d.Size == 0 {
			return 1
		}
		return s.Alignof(d.ElementType)
	}
	return rtabi.AlignPtr
}

// Offsetof returns the offset of member i of struct k.
func (s *Sizes) Offsetof(k *StructKind, i int) int64 {
	return s.StructLayout(k).Offsets[i]
}

// StructLayout returns the cached external layout of struct k.
// An undefined struct has an empty layout.
func (s *Sizes) StructLayout(k *StructKind) *Layout {
	if l, ok := s.layouts[k]; ok {
		return l
	}
	l := &Layout{Align: 1}
	if d := s.prog.LookupStruct(k); d != nil {
		var offset int64
		l.Offsets = make([]int64, len(d.Members))
		for i, m := range d.Members {
			size := s.Sizeof(m.Type)
			a := s.Alignof(m.Type)
			offset = align(offset, a)
			l.Offsets[i] = offset
			offset += size
			if a > l.Align {
				l.Align = a
			}
		}
		l.Size = align(offset, l.Align)
	}
	s.layouts[k] = l
	return l
}

// isFat reports whether a yonder reference is two words wide.
func isFat(r *Reference) bool {
	if r.Ownership == Weak {
		return true
	}
	_, ok := r.Kind.(*InterfaceKind)
	return ok
}

// align returns x rounded up to a multiple of a.
func align(x, a int64) int64 {
	return (x + a - 1) &^ (a - 1)
}
