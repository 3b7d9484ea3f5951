package region

import (
	"github.com/you-not-fish/regionc/internal/ssa"
	"github.com/you-not-fish/regionc/internal/types"
)

// Transfer moves ref, which must be owning or shared, into code governed
// by region to, where it is described by target. The source reference is
// consumed.
//
// Within one region and kind the value is passed through unchanged. The
// same kind crosses into another reference-counted region as a familiar
// reference, keeping its object, only when familiar allows it; any other
// same-kind crossing is an internal error. A different kind is received
// as an alien reference by the region owning it, which copies or shares
// the source, after which the source reference is released.
func Transfer(gs *GlobalState, b *ssa.Builder, ref Ref, to Region, target *types.Reference) Ref {
	if types.IsPrimitive(ref.Type.Kind) || types.IsPrimitive(target.Kind) {
		if ref.Type.Kind != target.Kind {
			internalf("Transfer", "cannot transfer %s as %s", ref.Type, target)
		}
		return Ref{Type: target, Value: ref.Value}
	}
	if ref.Type.Location == types.Yonder && !types.IsStrong(ref.Type) {
		internalf("Transfer", "%s does not own its referent", ref.Type)
	}
	if target.Location == types.Yonder && !types.IsStrong(target) {
		internalf("Transfer", "target %s must be owning or shared", target)
	}

	from := gs.RegionFor(ref.Type.Kind)
	if ref.Type.Kind == target.Kind {
		switch {
		case from.Strategy() == to.Strategy():
			return Ref{Type: target, Value: ref.Value}
		case familiar(gs, from, to, target.Kind):
			h := from.EncryptAndSendFamiliarReference(b, ref)
			got := to.ReceiveAndDecryptFamiliarReference(b, ref.Type, h)
			return Ref{Type: target, Value: got.Value}
		}
		internalf("Transfer", "%s of the %s region cannot enter the %s region", target.Kind, from.Strategy(), to.Strategy())
	}
	if owner := gs.RegionFor(target.Kind).Strategy(); owner != to.Strategy() {
		internalf("Transfer", "%s belongs to the %s region, not %s", target.Kind, owner, to.Strategy())
	}
	got := to.ReceiveUnencryptedAlienReference(b, from, ref, target)
	release(gs, b, ref)
	return got
}

// familiar reports whether an object of k owned by from may be handed to
// to without a copy. Only immutable kinds enter the shared region, nothing
// leaves it for a region that allows stores, and both sides must update
// counts the same way.
func familiar(gs *GlobalState, from, to Region, k types.Kind) bool {
	if !rcFamily(from.Strategy()) || to.Strategy() != ImmShared {
		return false
	}
	if gs.Program.Mutability(k) != types.Immutable {
		return false
	}
	return countsAtomically(from) == countsAtomically(to)
}

// countsAtomically reports whether reg updates reference counts with
// atomic instructions.
func countsAtomically(reg Region) bool {
	switch r := reg.(type) {
	case *RCImm:
		return r.atomic
	case *RCMut:
		return r.atomic
	}
	return false
}
