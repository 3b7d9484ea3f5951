package region

import (
	"github.com/you-not-fish/regionc/internal/ssa"
	"github.com/you-not-fish/regionc/internal/types"
)

// RCMut is the region of mutable objects owned by one thread. Counts are
// plain loads and stores.
type RCMut struct {
	*rc
}

var _ Region = (*RCMut)(nil)

func newRCMut(gs *GlobalState) *RCMut {
	return &RCMut{rc: newRC(gs, RCMutable, false)}
}

// writable panics unless k is a mutable kind of this region. Immutable
// kinds may live here but are never written after construction.
func (r *RCMut) writable(op string, k types.Kind) {
	r.owns(op, k)
	if r.gs.Program.Mutability(k) == types.Immutable {
		internalf(op, "%s is immutable", k)
	}
}

// StoreMember implements Region. The previous value is returned with its
// ownership.
func (r *RCMut) StoreMember(b *ssa.Builder, structRef Ref, index int, value Ref) Ref {
	r.writable("StoreMember", structRef.Type.Kind)
	return r.storeMember(b, structRef, index, value)
}

// StoreElementInRSA implements Region.
func (r *RCMut) StoreElementInRSA(b *ssa.Builder, arr, index, value Ref) Ref {
	r.writable("StoreElementInRSA", arr.Type.Kind)
	r.CheckValidReference(b, arr)
	return r.storeElement(b, "StoreElementInRSA", r.rsaElements(b, "StoreElementInRSA", arr), index, value)
}

// StoreElementInSSA implements Region.
func (r *RCMut) StoreElementInSSA(b *ssa.Builder, arr, index, value Ref) Ref {
	r.writable("StoreElementInSSA", arr.Type.Kind)
	r.CheckValidReference(b, arr)
	return r.storeElement(b, "StoreElementInSSA", r.ssaElements(b, "StoreElementInSSA", arr), index, value)
}

// DeinitializeElementFromRSA implements Region.
func (r *RCMut) DeinitializeElementFromRSA(b *ssa.Builder, arr, index Ref) Ref {
	r.writable("DeinitializeElementFromRSA", arr.Type.Kind)
	return r.popElement(b, arr, index)
}

// DeinitializeElementFromSSA implements Region.
func (r *RCMut) DeinitializeElementFromSSA(b *ssa.Builder, arr, index Ref) Ref {
	r.writable("DeinitializeElementFromSSA", arr.Type.Kind)
	r.CheckValidReference(b, arr)
	return r.takeElement(b, r.ssaElements(b, "DeinitializeElementFromSSA", arr), index)
}

// ReceiveUnencryptedAlienReference implements Region. Mutable objects are
// never shared with another region, so the source is always deep copied.
func (r *RCMut) ReceiveUnencryptedAlienReference(b *ssa.Builder, from Region, ref Ref, target *types.Reference) Ref {
	return r.gs.serial.transfer(b, ref, target)
}
