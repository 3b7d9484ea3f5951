package region

import (
	"github.com/you-not-fish/regionc/internal/ssa"
	"github.com/you-not-fish/regionc/internal/types"
)

// RCImm is the region of immutable shared objects. Objects are counted,
// never written after construction, and may be shared across threads
// when the configuration is threaded.
type RCImm struct {
	*rc
}

var _ Region = (*RCImm)(nil)

func newRCImm(gs *GlobalState) *RCImm {
	return &RCImm{rc: newRC(gs, ImmShared, gs.Config.Threaded)}
}

// StoreMember implements Region. Members of immutable objects are only set
// by Allocate.
func (r *RCImm) StoreMember(b *ssa.Builder, structRef Ref, index int, value Ref) Ref {
	internalf("StoreMember", "%s is immutable", structRef.Type.Kind)
	return Ref{}
}

// StoreElementInRSA implements Region.
func (r *RCImm) StoreElementInRSA(b *ssa.Builder, arr, index, value Ref) Ref {
	internalf("StoreElementInRSA", "%s is immutable", arr.Type.Kind)
	return Ref{}
}

// StoreElementInSSA implements Region.
func (r *RCImm) StoreElementInSSA(b *ssa.Builder, arr, index, value Ref) Ref {
	internalf("StoreElementInSSA", "%s is immutable", arr.Type.Kind)
	return Ref{}
}

// DeinitializeElementFromRSA implements Region. Shared arrays keep their
// elements until they are freed.
func (r *RCImm) DeinitializeElementFromRSA(b *ssa.Builder, arr, index Ref) Ref {
	internalf("DeinitializeElementFromRSA", "%s is immutable", arr.Type.Kind)
	return Ref{}
}

// DeinitializeElementFromSSA implements Region.
func (r *RCImm) DeinitializeElementFromSSA(b *ssa.Builder, arr, index Ref) Ref {
	internalf("DeinitializeElementFromSSA", "%s is immutable", arr.Type.Kind)
	return Ref{}
}

// ReceiveUnencryptedAlienReference implements Region. An immutable object
// from another reference-counted region that counts the same way is
// shared as it is; anything else is copied through serialization.
func (r *RCImm) ReceiveUnencryptedAlienReference(b *ssa.Builder, from Region, ref Ref, target *types.Reference) Ref {
	k := ref.Type.Kind
	if rcFamily(from.Strategy()) && countsAtomically(from) == r.atomic &&
		k == target.Kind && r.gs.Program.Mutability(k) == types.Immutable &&
		ref.Type.Location == types.Yonder && ref.Type.Ownership != types.Weak {
		if !types.IsStrong(target) {
			internalf("ReceiveUnencryptedAlienReference", "received %s must be owning or shared", target)
		}
		r.adjustStrongRC(b, objectOf(b, ref), 1)
		return Ref{Type: target, Value: ref.Value}
	}
	return r.gs.serial.transfer(b, ref, target)
}
