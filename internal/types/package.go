package types

import "fmt"

// Program is the type graph produced by the front end: every struct,
// interface and array definition plus the edges between structs and
// interfaces. Definitions are kept in insertion order so code generation
// is deterministic.
//
// A Program is built once and then treated as read-only by every backend.
type Program struct {
	name  string
	cache *Cache

	structs    []*StructDefinition
	interfaces []*InterfaceDefinition
	ssas       []*StaticSizedArrayDefinition
	rsas       []*RuntimeSizedArrayDefinition
	edges      []*Edge

	structByKind    map[*StructKind]*StructDefinition
	interfaceByKind map[*InterfaceKind]*InterfaceDefinition
	ssaByKind       map[*StaticSizedArrayKind]*StaticSizedArrayDefinition
	rsaByKind       map[*RuntimeSizedArrayKind]*RuntimeSizedArrayDefinition
}

// NewProgram creates an empty program with its own cache.
func NewProgram(name string) *Program {
	return &Program{
		name:            name,
		cache:           NewCache(),
		structByKind:    make(map[*StructKind]*StructDefinition),
		interfaceByKind: make(map[*InterfaceKind]*InterfaceDefinition),
		ssaByKind:       make(map[*StaticSizedArrayKind]*StaticSizedArrayDefinition),
		rsaByKind:       make(map[*RuntimeSizedArrayKind]*RuntimeSizedArrayDefinition),
	}
}

// Name returns the program (package) name.
func (p *Program) Name() string { return p.name }

// Cache returns the program's interning cache.
func (p *Program) Cache() *Cache { return p.cache }

// AddStruct defines a struct kind. It returns an error if the name is taken.
func (p *Program) AddStruct(name string, mut Mutability, weak Weakability, members ...*StructMember) (*StructDefinition, error) {
	k := p.cache.Struct(name)
	if _, dup := p.structByKind[k]; dup {
		return nil, fmt.Errorf("types: struct %s already defined", name)
	}
	def := &StructDefinition{Kind: k, Mutability: mut, Weakability: weak, Members: members}
	p.structs = append(p.structs, def)
	p.structByKind[k] = def
	return def, nil
}

// AddInterface defines an interface kind.
func (p *Program) AddInterface(name string, mut Mutability, methods ...*InterfaceMethod) (*InterfaceDefinition, error) {
	k := p.cache.Interface(name)
	if _, dup := p.interfaceByKind[k]; dup {
		return nil, fmt.Errorf("types: interface %s already defined", name)
	}
	def := &InterfaceDefinition{Kind: k, Mutability: mut, Methods: methods}
	p.interfaces = append(p.interfaces, def)
	p.interfaceByKind[k] = def
	return def, nil
}

// AddStaticSizedArray defines a fixed-size array kind.
func (p *Program) AddStaticSizedArray(name string, size int64, mut Mutability, elem *Reference) (*StaticSizedArrayDefinition, error) {
	if size < 0 {
		return nil, fmt.Errorf("types: static-sized array %s has negative size %d", name, size)
	}
	k := p.cache.StaticSizedArray(name)
	if _, dup := p.ssaByKind[k]; dup {
		return nil, fmt.Errorf("types: static-sized array %s already defined", name)
	}
	def := &StaticSizedArrayDefinition{Kind: k, Size: size, Mutability: mut, ElementType: elem}
	p.ssas = append(p.ssas, def)
	p.ssaByKind[k] = def
	return def, nil
}

// AddRuntimeSizedArray defines a variable-size array kind.
func (p *Program) AddRuntimeSizedArray(name string, mut Mutability, elem *Reference) (*RuntimeSizedArrayDefinition, error) {
	k := p.cache.RuntimeSizedArray(name)
	if _, dup := p.rsaByKind[k]; dup {
		return nil, fmt.Errorf("types: runtime-sized array %s already defined", name)
	}
	def := &RuntimeSizedArrayDefinition{Kind: k, Mutability: mut, ElementType: elem}
	p.rsas = append(p.rsas, def)
	p.rsaByKind[k] = def
	return def, nil
}

// AddEdge declares that s implements i. The number of method
// implementations must match the interface.
func (p *Program) AddEdge(s *StructKind, i *InterfaceKind, methods ...*Prototype) (*Edge, error) {
	sd, ok := p.structByKind[s]
	if !ok {
		return nil, fmt.Errorf("types: edge from undefined struct %s", s.Name())
	}
	id, ok := p.interfaceByKind[i]
	if !ok {
		return nil, fmt.Errorf("types: edge to undefined interface %s", i.Name())
	}
	if len(methods) != len(id.Methods) {
		return nil, fmt.Errorf("types: edge %s -> %s has %d methods, interface has %d",
			s.Name(), i.Name(), len(methods), len(id.Methods))
	}
	if p.LookupEdge(s, i) != nil {
		return nil, fmt.Errorf("types: edge %s -> %s already declared", s.Name(), i.Name())
	}
	e := &Edge{Struct: s, Interface: i, Methods: methods}
	p.edges = append(p.edges, e)
	sd.Edges = append(sd.Edges, e)
	return e, nil
}

// Structs returns all struct definitions in insertion order.
func (p *Program) Structs() []*StructDefinition { return p.structs }

// Interfaces returns all interface definitions in insertion order.
func (p *Program) Interfaces() []*InterfaceDefinition { return p.interfaces }

// StaticSizedArrays returns all static-sized array definitions.
func (p *Program) StaticSizedArrays() []*StaticSizedArrayDefinition { return p.ssas }

// RuntimeSizedArrays returns all runtime-sized array definitions.
func (p *Program) RuntimeSizedArrays() []*RuntimeSizedArrayDefinition { return p.rsas }

// Edges returns all edges in insertion order.
func (p *Program) Edges() []*Edge { return p.edges }

// LookupStruct returns the definition of k, or nil.
func (p *Program) LookupStruct(k *StructKind) *StructDefinition {
	return p.structByKind[k]
}

// LookupInterface returns the definition of k, or nil.
func (p *Program) LookupInterface(k *InterfaceKind) *InterfaceDefinition {
	return p.interfaceByKind[k]
}

// LookupStaticSizedArray returns the definition of k, or nil.
func (p *Program) LookupStaticSizedArray(k *StaticSizedArrayKind) *StaticSizedArrayDefinition {
	return p.ssaByKind[k]
}

// LookupRuntimeSizedArray returns the definition of k, or nil.
func (p *Program) LookupRuntimeSizedArray(k *RuntimeSizedArrayKind) *RuntimeSizedArrayDefinition {
	return p.rsaByKind[k]
}

// LookupEdge returns the edge from s to i, or nil if s does not implement i.
func (p *Program) LookupEdge(s *StructKind, i *InterfaceKind) *Edge {
	sd := p.structByKind[s]
	if sd == nil {
		return nil
	}
	for _, e := range sd.Edges {
		if e.Interface == i {
			return e
		}
	}
	return nil
}

// Implementors returns the structs that have an edge to i.
func (p *Program) Implementors(i *InterfaceKind) []*StructKind {
	var out []*StructKind
	for _, e := range p.edges {
		if e.Interface == i {
			out = append(out, e.Struct)
		}
	}
	return out
}

// Kinds returns every non-primitive kind defined in the program, structs
// first, then interfaces, static-sized arrays and runtime-sized arrays.
func (p *Program) Kinds() []Kind {
	var out []Kind
	for _, d := range p.structs {
		out = append(out, d.Kind)
	}
	for _, d := range p.interfaces {
		out = append(out, d.Kind)
	}
	for _, d := range p.ssas {
		out = append(out, d.Kind)
	}
	for _, d := range p.rsas {
		out = append(out, d.Kind)
	}
	return out
}

// Mutability returns the mutability of a kind. Primitives are immutable.
func (p *Program) Mutability(k Kind) Mutability {
	switch k := k.(type) {
	case *StructKind:
		if d := p.structByKind[k]; d != nil {
			return d.Mutability
		}
	case *InterfaceKind:
		if d := p.interfaceByKind[k]; d != nil {
			return d.Mutability
		}
	case *StaticSizedArrayKind:
		if d := p.ssaByKind[k]; d != nil {
			return d.Mutability
		}
	case *RuntimeSizedArrayKind:
		if d := p.rsaByKind[k]; d != nil {
			return d.Mutability
		}
	}
	return Immutable
}
