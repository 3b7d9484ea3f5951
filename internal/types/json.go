package types

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// jsonProgram is the JSON form of a type graph, the input format of the
// command-line driver. Kinds are immutable unless marked mutable.
type jsonProgram struct {
	Name          string             `json:"name"`
	Structs       []jsonStruct       `json:"structs"`
	Interfaces    []jsonInterface    `json:"interfaces"`
	StaticArrays  []jsonStaticArray  `json:"staticArrays"`
	RuntimeArrays []jsonRuntimeArray `json:"runtimeArrays"`
	Edges         []jsonEdge         `json:"edges"`
}

type jsonStruct struct {
	Name     string       `json:"name"`
	Mutable  bool         `json:"mutable"`
	Weakable bool         `json:"weakable"`
	Members  []jsonMember `json:"members"`
}

type jsonMember struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type jsonInterface struct {
	Name    string          `json:"name"`
	Mutable bool            `json:"mutable"`
	Methods []jsonPrototype `json:"methods"`
}

type jsonPrototype struct {
	Name    string   `json:"name"`
	Params  []string `json:"params"`
	Return  string   `json:"return"`
	Virtual int      `json:"virtual"`
}

type jsonStaticArray struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	Mutable bool   `json:"mutable"`
	Elem    string `json:"elem"`
}

type jsonRuntimeArray struct {
	Name    string `json:"name"`
	Mutable bool   `json:"mutable"`
	Elem    string `json:"elem"`
}

type jsonEdge struct {
	Struct    string          `json:"struct"`
	Interface string          `json:"interface"`
	Methods   []jsonPrototype `json:"methods"`
}

// DecodeProgram reads a type graph in JSON form.
//
// Reference types are written the way Reference.String prints them:
// an optional ownership ("own", "&", "&&", "share"), an optional location
// ("inl", "yon") and a kind name. Primitives default to "share inl";
// other kinds default to yonder, owned by "share" when immutable and by
// "own" when mutable.
func DecodeProgram(r io.Reader) (*Program, error) {
	var jp jsonProgram
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&jp); err != nil {
		return nil, fmt.Errorf("types: decode program: %w", err)
	}
	if jp.Name == "" {
		return nil, fmt.Errorf("types: program has no name")
	}
	d := &decoder{prog: NewProgram(jp.Name), kinds: make(map[string]Kind), muts: make(map[string]Mutability)}
	if err := d.program(&jp); err != nil {
		return nil, err
	}
	return d.prog, nil
}

type decoder struct {
	prog  *Program
	kinds map[string]Kind
	muts  map[string]Mutability
}

func mutability(mutable bool) Mutability {
	if mutable {
		return Mutable
	}
	return Immutable
}

func (d *decoder) name(name string, k Kind, mutable bool) error {
	if name == "" {
		return fmt.Errorf("types: %s has no name", k)
	}
	if d.primitive(name) != nil {
		return fmt.Errorf("types: %s redefines a primitive", name)
	}
	if _, dup := d.kinds[name]; dup {
		return fmt.Errorf("types: %s defined twice", name)
	}
	d.kinds[name] = k
	d.muts[name] = mutability(mutable)
	return nil
}

func (d *decoder) program(jp *jsonProgram) error {
	c := d.prog.Cache()
	for _, s := range jp.Structs {
		if err := d.name(s.Name, c.Struct(s.Name), s.Mutable); err != nil {
			return err
		}
	}
	for _, i := range jp.Interfaces {
		if err := d.name(i.Name, c.Interface(i.Name), i.Mutable); err != nil {
			return err
		}
	}
	for _, a := range jp.StaticArrays {
		if err := d.name(a.Name, c.StaticSizedArray(a.Name), a.Mutable); err != nil {
			return err
		}
	}
	for _, a := range jp.RuntimeArrays {
		if err := d.name(a.Name, c.RuntimeSizedArray(a.Name), a.Mutable); err != nil {
			return err
		}
	}

	for _, s := range jp.Structs {
		members := make([]*StructMember, len(s.Members))
		for i, m := range s.Members {
			ref, err := d.ref(m.Type)
			if err != nil {
				return fmt.Errorf("types: %s.%s: %w", s.Name, m.Name, err)
			}
			members[i] = &StructMember{Name: m.Name, Type: ref}
		}
		weak := NonWeakable
		if s.Weakable {
			weak = Weakable
		}
		if _, err := d.prog.AddStruct(s.Name, mutability(s.Mutable), weak, members...); err != nil {
			return err
		}
	}
	for _, i := range jp.Interfaces {
		methods := make([]*InterfaceMethod, len(i.Methods))
		for j := range i.Methods {
			m := &i.Methods[j]
			p, err := d.prototype(m)
			if err != nil {
				return fmt.Errorf("types: %s: %w", i.Name, err)
			}
			if m.Virtual < 0 || m.Virtual >= len(p.Params) {
				return fmt.Errorf("types: %s: virtual param %d of %s out of range", i.Name, m.Virtual, m.Name)
			}
			methods[j] = &InterfaceMethod{Prototype: p, VirtualParam: m.Virtual}
		}
		if _, err := d.prog.AddInterface(i.Name, mutability(i.Mutable), methods...); err != nil {
			return err
		}
	}
	for _, a := range jp.StaticArrays {
		elem, err := d.ref(a.Elem)
		if err != nil {
			return fmt.Errorf("types: %s: %w", a.Name, err)
		}
		if _, err := d.prog.AddStaticSizedArray(a.Name, a.Size, mutability(a.Mutable), elem); err != nil {
			return err
		}
	}
	for _, a := range jp.RuntimeArrays {
		elem, err := d.ref(a.Elem)
		if err != nil {
			return fmt.Errorf("types: %s: %w", a.Name, err)
		}
		if _, err := d.prog.AddRuntimeSizedArray(a.Name, mutability(a.Mutable), elem); err != nil {
			return err
		}
	}
	for _, e := range jp.Edges {
		s, ok := d.kinds[e.Struct].(*StructKind)
		if !ok {
			return fmt.Errorf("types: edge from %q: not a struct", e.Struct)
		}
		i, ok := d.kinds[e.Interface].(*InterfaceKind)
		if !ok {
			return fmt.Errorf("types: edge to %q: not an interface", e.Interface)
		}
		methods := make([]*Prototype, len(e.Methods))
		for j := range e.Methods {
			p, err := d.prototype(&e.Methods[j])
			if err != nil {
				return fmt.Errorf("types: edge %s -> %s: %w", e.Struct, e.Interface, err)
			}
			methods[j] = p
		}
		if _, err := d.prog.AddEdge(s, i, methods...); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) prototype(m *jsonPrototype) (*Prototype, error) {
	p := &Prototype{Name: m.Name, Params: make([]*Reference, len(m.Params))}
	for i, s := range m.Params {
		ref, err := d.ref(s)
		if err != nil {
			return nil, fmt.Errorf("%s param %d: %w", m.Name, i, err)
		}
		p.Params[i] = ref
	}
	ret := m.Return
	if ret == "" {
		ret = "void"
	}
	ref, err := d.ref(ret)
	if err != nil {
		return nil, fmt.Errorf("%s result: %w", m.Name, err)
	}
	p.Return = ref
	return p, nil
}

// primitive returns the primitive kind with the given name, or nil.
// "int" is i64.
func (d *decoder) primitive(name string) Kind {
	c := d.prog.Cache()
	switch name {
	case "int":
		return c.Int(64)
	case "bool":
		return c.Bool()
	case "void":
		return c.Void()
	case "never":
		return c.Never()
	}
	if strings.HasPrefix(name, "i") {
		if bits, err := strconv.Atoi(name[1:]); err == nil && bits > 0 {
			return c.Int(bits)
		}
	}
	return nil
}

var ownershipWords = map[string]Ownership{
	"own":   Owning,
	"&":     Constraint,
	"&&":    Weak,
	"share": Share,
}

var locationWords = map[string]Location{
	"inl": Inline,
	"yon": Yonder,
}

func (d *decoder) ref(s string) (*Reference, error) {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil, fmt.Errorf("empty type")
	}
	name := words[len(words)-1]
	words = words[:len(words)-1]

	own, hasOwn := Ownership(0), false
	if len(words) > 0 {
		if o, ok := ownershipWords[words[0]]; ok {
			own, hasOwn = o, true
			words = words[1:]
		}
	}
	loc, hasLoc := Location(0), false
	if len(words) > 0 {
		if l, ok := locationWords[words[0]]; ok {
			loc, hasLoc = l, true
			words = words[1:]
		}
	}
	if len(words) > 0 {
		return nil, fmt.Errorf("type %q: unexpected %q", s, words[0])
	}

	k := d.primitive(name)
	switch {
	case k != nil:
		if !hasOwn {
			own = Share
		}
		if !hasLoc {
			loc = Inline
		}
	case d.kinds[name] != nil:
		k = d.kinds[name]
		if !hasOwn {
			own = Owning
			if d.muts[name] == Immutable {
				own = Share
			}
		}
		if !hasLoc {
			loc = Yonder
		}
	default:
		return nil, fmt.Errorf("type %q: unknown kind %s", s, name)
	}
	return d.prog.Cache().Ref(own, loc, k), nil
}
