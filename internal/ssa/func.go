package ssa

import "fmt"

// Param is a named, typed function parameter.
type Param struct {
	Name string
	Type Type
}

// Func represents an SSA function.
// It contains a control flow graph of Blocks, each containing Values.
// A Func without blocks is a declaration whose body lives elsewhere
// (or has not been generated yet).
type Func struct {
	// Name is the function name.
	Name string

	// Params are the function parameters.
	Params []*Param

	// Result is the result type, nil for void functions.
	Result Type

	// Args holds one OpArg value per parameter, created with the entry block.
	Args []*Value

	// Blocks is the list of basic blocks. Blocks[0] is always the entry block.
	Blocks []*Block

	// Entry is the entry block (same as Blocks[0]).
	Entry *Block

	// nextValueID is the next available value ID.
	nextValueID ID

	// nextBlockID is the next available block ID.
	nextBlockID ID
}

// NewFunc creates a new SSA function with the given name and signature.
// An entry block is automatically created.
func NewFunc(name string, result Type, params ...*Param) *Func {
	f := NewDecl(name, result, params...)
	f.StartBody()
	return f
}

// NewDecl creates a function declaration with no body.
func NewDecl(name string, result Type, params ...*Param) *Func {
	return &Func{Name: name, Params: params, Result: result}
}

// IsDecl reports whether f has no body yet.
func (f *Func) IsDecl() bool { return f.Entry == nil }

// StartBody creates the entry block of a declared function along with its
// argument values. It panics if the function already has a body.
func (f *Func) StartBody() *Block {
	if f.Entry != nil {
		panic(fmt.Sprintf("ssa.StartBody: func %s already has a body", f.Name))
	}
	f.Entry = f.NewBlock(BlockPlain)
	f.Args = make([]*Value, len(f.Params))
	for i, p := range f.Params {
		a := f.NewValue(f.Entry, OpArg, p.Type)
		a.AuxInt = int64(i)
		a.Aux = p.Name
		f.Args[i] = a
	}
	return f.Entry
}

// DropBody discards the blocks and arguments of f, leaving a declaration.
func (f *Func) DropBody() {
	f.Entry = nil
	f.Blocks = nil
	f.Args = nil
	f.nextValueID = 0
	f.nextBlockID = 0
}

// NewBlock creates a new basic block with the given kind and appends it to the function.
func (f *Func) NewBlock(kind BlockKind) *Block {
	b := &Block{
		ID:   f.nextBlockID,
		Kind: kind,
		Func: f,
	}
	f.nextBlockID++
	f.Blocks = append(f.Blocks, b)
	return b
}

// NewValue creates a new Value in the given block.
func (f *Func) NewValue(b *Block, op Op, typ Type, args ...*Value) *Value {
	v := f.newValue(b, op, typ, args)
	b.Values = append(b.Values, v)
	return v
}

// NewValueAtFront creates a new Value at the start of the given block.
// Phis inserted by mem2reg go here.
func (f *Func) NewValueAtFront(b *Block, op Op, typ Type, args ...*Value) *Value {
	v := f.newValue(b, op, typ, args)
	b.Values = append([]*Value{v}, b.Values...)
	return v
}

func (f *Func) newValue(b *Block, op Op, typ Type, args []*Value) *Value {
	v := &Value{
		ID:    f.nextValueID,
		Op:    op,
		Type:  typ,
		Block: b,
	}
	f.nextValueID++
	for _, arg := range args {
		v.AddArg(arg)
	}
	return v
}

// ReplaceUses rewrites every use of old (as an argument or a block control)
// to new, keeping use counts in sync.
func (f *Func) ReplaceUses(old, new *Value) {
	if old == new {
		return
	}
	for _, b := range f.Blocks {
		for _, v := range b.Values {
			for i, arg := range v.Args {
				if arg == old {
					v.ReplaceArg(i, new)
				}
			}
		}
		for i, c := range b.Controls {
			if c == old {
				b.Controls[i] = new
				old.Uses--
				new.Uses++
			}
		}
	}
}

// RemoveBlock removes a block with no predecessors from the function.
func (f *Func) RemoveBlock(dead *Block) {
	for _, s := range dead.Succs {
		for i, p := range s.Preds {
			if p == dead {
				s.Preds = append(s.Preds[:i], s.Preds[i+1:]...)
				break
			}
		}
	}
	for i, blk := range f.Blocks {
		if blk == dead {
			f.Blocks = append(f.Blocks[:i], f.Blocks[i+1:]...)
			return
		}
	}
}

// NumBlocks returns the number of blocks in the function.
func (f *Func) NumBlocks() int { return len(f.Blocks) }

// NumValues returns the total number of values across all blocks.
func (f *Func) NumValues() int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Values)
	}
	return n
}
