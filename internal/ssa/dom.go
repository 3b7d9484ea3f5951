package ssa

// ReversePostOrder returns the blocks reachable from f.Entry in reverse
// post-order. Declarations yield nil.
func ReversePostOrder(f *Func) []*Block {
	if f.Entry == nil {
		return nil
	}
	type frame struct {
		b    *Block
		next int // index of the next successor to visit
	}
	seen := map[*Block]bool{f.Entry: true}
	stack := []frame{{b: f.Entry}}
	post := make([]*Block, 0, len(f.Blocks))
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.b.Succs) {
			s := top.b.Succs[top.next]
			top.next++
			if !seen[s] {
				seen[s] = true
				stack = append(stack, frame{b: s})
			}
			continue
		}
		post = append(post, top.b)
		stack = stack[:len(stack)-1]
	}

	rpo := make([]*Block, len(post))
	for i, b := range post {
		rpo[len(post)-1-i] = b
	}
	return rpo
}

// domState holds the working data of one dominator computation: blocks
// are numbered by their reverse post-order position and idom[i] is the
// number of block i's immediate dominator, or -1 while unknown.
type domState struct {
	rpo  []*Block
	num  map[*Block]int
	idom []int
}

func newDomState(rpo []*Block) *domState {
	d := &domState{rpo: rpo, num: make(map[*Block]int, len(rpo)), idom: make([]int, len(rpo))}
	for i, b := range rpo {
		d.num[b] = i
		d.idom[i] = -1
	}
	d.idom[0] = 0
	return d
}

// meet walks two dominator chains up to their closest common ancestor.
func (d *domState) meet(x, y int) int {
	for x != y {
		for x > y {
			x = d.idom[x]
		}
		for y > x {
			y = d.idom[y]
		}
	}
	return x
}

// solve iterates to the fixed point over the reachable blocks.
func (d *domState) solve() {
	for changed := true; changed; {
		changed = false
		for i := 1; i < len(d.rpo); i++ {
			cur := -1
			for _, p := range d.rpo[i].Preds {
				j, ok := d.num[p]
				if !ok || d.idom[j] < 0 {
					continue
				}
				if cur < 0 {
					cur = j
				} else {
					cur = d.meet(j, cur)
				}
			}
			if cur >= 0 && d.idom[i] != cur {
				d.idom[i] = cur
				changed = true
			}
		}
	}
}

// ComputeDom sets Block.Idom and Block.Dominees for every block of f,
// using the iterative scheme of Cooper, Harvey and Kennedy. The entry and
// unreachable blocks get a nil Idom.
func ComputeDom(f *Func) {
	for _, b := range f.Blocks {
		b.Idom = nil
		b.Dominees = nil
	}
	rpo := ReversePostOrder(f)
	if len(rpo) == 0 {
		return
	}
	d := newDomState(rpo)
	d.solve()
	for i := 1; i < len(rpo); i++ {
		b, parent := rpo[i], rpo[d.idom[i]]
		b.Idom = parent
		parent.Dominees = append(parent.Dominees, b)
	}
}

// ComputeDomFrontier returns the dominance frontier of each block of f
// that has one. ComputeDom must have run first.
func ComputeDomFrontier(f *Func) map[*Block][]*Block {
	df := make(map[*Block][]*Block)
	for _, join := range ReversePostOrder(f) {
		if len(join.Preds) < 2 {
			continue
		}
		for _, p := range join.Preds {
			for r := p; r != nil && r != join.Idom; r = r.Idom {
				if !containsBlock(df[r], join) {
					df[r] = append(df[r], join)
				}
			}
		}
	}
	return df
}

// Dominates reports whether a dominates b: a is b or lies on b's Idom
// chain. ComputeDom must have run first.
func Dominates(a, b *Block) bool {
	for ; b != nil; b = b.Idom {
		if b == a {
			return true
		}
	}
	return false
}
