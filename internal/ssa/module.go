package ssa

import (
	"fmt"
	"io"
	"strings"
)

// Const is a module-level constant used in global initializers.
type Const interface {
	String() string
	aConst()
}

// ConstInt is an integer constant.
type ConstInt struct {
	Type  *IntType
	Value int64
}

// ConstFunc is the address of a function.
type ConstFunc struct {
	Name string
}

func (ConstInt) aConst() {}
func (ConstFunc) aConst() {}

func (c ConstInt) String() string { return fmt.Sprintf("%s %d", c.Type, c.Value) }
func (c ConstFunc) String() string { return "ptr @" + QuoteIdent(c.Name) }

// Global is a constant module-level variable, such as a vtable.
// Init holds one constant per field of a struct-typed global.
type Global struct {
	Name string
	Type Type
	Init []Const
}

// Module is a unit of generated code: named struct types, constant globals
// and functions, each kept in the order it was added.
type Module struct {
	Name    string
	Types   []*StructType
	Globals []*Global
	Funcs   []*Func

	types   map[string]*StructType
	globals map[string]*Global
	funcs   map[string]*Func
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{
		Name:    name,
		types:   make(map[string]*StructType),
		globals: make(map[string]*Global),
		funcs:   make(map[string]*Func),
	}
}

// NamedType returns the named struct type, creating an opaque one (no
// fields yet) on first use. Fields are filled in later with SetBody, which
// allows recursive and forward-declared types.
func (m *Module) NamedType(name string) *StructType {
	if t, ok := m.types[name]; ok {
		return t
	}
	t := &StructType{Name: name}
	m.types[name] = t
	m.Types = append(m.Types, t)
	return t
}

// LookupType returns the named struct type, or nil.
func (m *Module) LookupType(name string) *StructType {
	return m.types[name]
}

// AddGlobal adds a global. It panics on a duplicate name.
func (m *Module) AddGlobal(g *Global) *Global {
	if _, dup := m.globals[g.Name]; dup {
		panic(fmt.Sprintf("ssa.AddGlobal: duplicate global %s", g.Name))
	}
	m.globals[g.Name] = g
	m.Globals = append(m.Globals, g)
	return g
}

// Global returns the named global, or nil.
func (m *Module) Global(name string) *Global {
	return m.globals[name]
}

// AddFunc adds a function or declaration. It panics on a duplicate name.
func (m *Module) AddFunc(f *Func) *Func {
	if _, dup := m.funcs[f.Name]; dup {
		panic(fmt.Sprintf("ssa.AddFunc: duplicate func %s", f.Name))
	}
	m.funcs[f.Name] = f
	m.Funcs = append(m.Funcs, f)
	return f
}

// Func returns the named function, or nil.
func (m *Module) Func(name string) *Func {
	return m.funcs[name]
}

// RemoveFunc removes the named function, if present.
func (m *Module) RemoveFunc(name string) {
	if _, ok := m.funcs[name]; !ok {
		return
	}
	delete(m.funcs, name)
	for i, f := range m.Funcs {
		if f.Name == name {
			m.Funcs = append(m.Funcs[:i], m.Funcs[i+1:]...)
			break
		}
	}
}

// DeclareFunc returns the named function, declaring it first if needed.
func (m *Module) DeclareFunc(name string, result Type, params ...*Param) *Func {
	if f, ok := m.funcs[name]; ok {
		return f
	}
	return m.AddFunc(NewDecl(name, result, params...))
}

// Verify verifies every function with a body.
func (m *Module) Verify() error {
	var errs []string
	for _, f := range m.Funcs {
		if f.IsDecl() {
			continue
		}
		if err := Verify(f); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("module %s: %s", m.Name, strings.Join(errs, "\n"))
	}
	return nil
}

// FprintModule writes the named types, globals and functions of m to w.
func FprintModule(w io.Writer, m *Module) {
	fmt.Fprintf(w, "module %s\n", m.Name)
	for _, t := range m.Types {
		fmt.Fprintf(w, "type %s = %s\n", t, t.Body())
	}
	for _, g := range m.Globals {
		inits := make([]string, len(g.Init))
		for i, c := range g.Init {
			inits[i] = c.String()
		}
		fmt.Fprintf(w, "global %s <%s> {%s}\n", g.Name, g.Type, strings.Join(inits, ", "))
	}
	for _, f := range m.Funcs {
		if f.IsDecl() {
			fmt.Fprintf(w, "declare %s\n", funcHeader(f))
			continue
		}
		Fprint(w, f)
	}
}
