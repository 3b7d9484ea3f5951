package region

import (
	"fmt"
	"strings"

	"github.com/you-not-fish/regionc/internal/types"
)

// ExportName implements Region. Inline values are exported by value;
// objects cross the boundary as opaque handles named <Kind>Ref.
func (r *rc) ExportName(ref *types.Reference, includeProject bool) string {
	switch k := ref.Kind.(type) {
	case *types.Int:
		switch k.Bits() {
		case 8, 16, 32, 64:
			return fmt.Sprintf("int%d_t", k.Bits())
		}
		internalf("ExportName", "%s has no C equivalent", k)
	case *types.Bool:
		return "int8_t"
	case *types.Void:
		return "void"
	case *types.Never:
		internalf("ExportName", "never cannot be exported")
	}
	if ref.Ownership == types.Weak {
		internalf("ExportName", "weak reference %s cannot be exported", ref)
	}
	name := ref.Kind.Name()
	if includeProject {
		name = r.gs.Program.Name() + "_" + name
	}
	if ref.Location == types.Yonder {
		name += "Ref"
	}
	return name
}

func (r *rc) handleDefC(sb *strings.Builder, k types.Kind) {
	name := r.ExportName(r.cache().Ref(types.Share, types.Yonder, k), true)
	fmt.Fprintf(sb, "typedef struct %s { void* unused; } %s;\n", name, name)
}

func staticAssertC(sb *strings.Builder, name string, size int64) {
	fmt.Fprintf(sb, "_Static_assert(sizeof(%s) == %d, \"%s\");\n", name, size, name)
}

// GenerateStructDefsC implements Region. Immutable structs also get a
// by-value definition whose size is asserted against the layout the
// generated code uses.
func (r *rc) GenerateStructDefsC(d *types.StructDefinition) string {
	var sb strings.Builder
	r.handleDefC(&sb, d.Kind)
	if d.Mutability == types.Mutable {
		return sb.String()
	}
	name := r.ExportName(r.cache().Ref(types.Share, types.Inline, d.Kind), true)
	fmt.Fprintf(&sb, "typedef struct %s {\n", name)
	for _, m := range d.Members {
		fmt.Fprintf(&sb, "  %s %s;\n", r.gs.RegionFor(m.Type.Kind).ExportName(m.Type, true), m.Name)
	}
	fmt.Fprintf(&sb, "} %s;\n", name)
	staticAssertC(&sb, name, r.gs.Sizes.StructLayout(d.Kind).Size)
	return sb.String()
}

// GenerateInterfaceDefsC implements Region.
func (r *rc) GenerateInterfaceDefsC(d *types.InterfaceDefinition) string {
	name := r.ExportName(r.cache().Ref(types.Share, types.Yonder, d.Kind), true)
	return fmt.Sprintf("typedef struct %s { void* obj; void* vtable; } %s;\n", name, name)
}

// GenerateStaticSizedArrayDefsC implements Region.
func (r *rc) GenerateStaticSizedArrayDefsC(d *types.StaticSizedArrayDefinition) string {
	var sb strings.Builder
	r.handleDefC(&sb, d.Kind)
	if d.Mutability == types.Mutable || d.Size == 0 {
		return sb.String()
	}
	inline := r.cache().Ref(types.Share, types.Inline, d.Kind)
	name := r.ExportName(inline, true)
	elem := r.gs.RegionFor(d.ElementType.Kind).ExportName(d.ElementType, true)
	fmt.Fprintf(&sb, "typedef struct %s { %s elements[%d]; } %s;\n", name, elem, d.Size, name)
	staticAssertC(&sb, name, r.gs.Sizes.Sizeof(inline))
	return sb.String()
}

// GenerateRuntimeSizedArrayDefsC implements Region. The elements of an
// immutable array follow its length as a flexible array member.
func (r *rc) GenerateRuntimeSizedArrayDefsC(d *types.RuntimeSizedArrayDefinition) string {
	var sb strings.Builder
	r.handleDefC(&sb, d.Kind)
	if d.Mutability == types.Mutable {
		return sb.String()
	}
	name := r.ExportName(r.cache().Ref(types.Share, types.Inline, d.Kind), true)
	elem := r.gs.RegionFor(d.ElementType.Kind).ExportName(d.ElementType, true)
	fmt.Fprintf(&sb, "typedef struct %s { uint64_t length; %s elements[]; } %s;\n", name, elem, name)
	return sb.String()
}
