package types

// Cache interns kinds and reference descriptors. Every part of the code
// generator that needs "the i64 kind" or "a shared reference to Point" asks
// the cache, so identity comparison is enough to compare descriptors.
//
// A Cache is not safe for concurrent use; code generation is single-threaded.
type Cache struct {
	ints       map[int]*Int
	boolean    *Bool
	void       *Void
	never      *Never
	structs    map[string]*StructKind
	interfaces map[string]*InterfaceKind
	ssas       map[string]*StaticSizedArrayKind
	rsas       map[string]*RuntimeSizedArrayKind
	refs       map[Reference]*Reference
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		ints:       make(map[int]*Int),
		boolean:    &Bool{},
		void:       &Void{},
		never:      &Never{},
		structs:    make(map[string]*StructKind),
		interfaces: make(map[string]*InterfaceKind),
		ssas:       make(map[string]*StaticSizedArrayKind),
		rsas:       make(map[string]*RuntimeSizedArrayKind),
		refs:       make(map[Reference]*Reference),
	}
}

// Int returns the integer kind of the given width.
func (c *Cache) Int(bits int) *Int {
	if k, ok := c.ints[bits]; ok {
		return k
	}
	k := &Int{bits: bits}
	c.ints[bits] = k
	return k
}

// Bool returns the boolean kind.
func (c *Cache) Bool() *Bool { return c.boolean }

// Void returns the void kind.
func (c *Cache) Void() *Void { return c.void }

// Never returns the never kind.
func (c *Cache) Never() *Never { return c.never }

// Struct returns the struct kind with the given name.
func (c *Cache) Struct(name string) *StructKind {
	if k, ok := c.structs[name]; ok {
		return k
	}
	k := &StructKind{name: name}
	c.structs[name] = k
	return k
}

// Interface returns the interface kind with the given name.
func (c *Cache) Interface(name string) *InterfaceKind {
	if k, ok := c.interfaces[name]; ok {
		return k
	}
	k := &InterfaceKind{name: name}
	c.interfaces[name] = k
	return k
}

// StaticSizedArray returns the static-sized array kind with the given name.
func (c *Cache) StaticSizedArray(name string) *StaticSizedArrayKind {
	if k, ok := c.ssas[name]; ok {
		return k
	}
	k := &StaticSizedArrayKind{name: name}
	c.ssas[name] = k
	return k
}

// RuntimeSizedArray returns the runtime-sized array kind with the given name.
func (c *Cache) RuntimeSizedArray(name string) *RuntimeSizedArrayKind {
	if k, ok := c.rsas[name]; ok {
		return k
	}
	k := &RuntimeSizedArrayKind{name: name}
	c.rsas[name] = k
	return k
}

// Ref returns the interned reference descriptor.
func (c *Cache) Ref(own Ownership, loc Location, k Kind) *Reference {
	key := Reference{Ownership: own, Location: loc, Kind: k}
	if r, ok := c.refs[key]; ok {
		return r
	}
	r := &key
	c.refs[key] = r
	return r
}

// IntRef returns the shared inline reference to the 64-bit integer kind,
// the type of sizes and indices.
func (c *Cache) IntRef() *Reference {
	return c.Ref(Share, Inline, c.Int(64))
}

// BoolRef returns the shared inline reference to the boolean kind.
func (c *Cache) BoolRef() *Reference {
	return c.Ref(Share, Inline, c.boolean)
}

// VoidRef returns the shared inline reference to the void kind.
func (c *Cache) VoidRef() *Reference {
	return c.Ref(Share, Inline, c.void)
}

// WithOwnership returns r re-described with another ownership mode.
func (c *Cache) WithOwnership(r *Reference, own Ownership) *Reference {
	return c.Ref(own, r.Location, r.Kind)
}
