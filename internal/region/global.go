package region

import (
	"fmt"
	"io"

	"github.com/you-not-fish/regionc/internal/rtabi"
	"github.com/you-not-fish/regionc/internal/ssa"
	"github.com/you-not-fish/regionc/internal/types"
)

// Config selects the region of every kind and the code generation mode.
type Config struct {
	// Default owns every kind not listed in Assign, primitives included.
	Default Strategy

	// Assign overrides the region of individual kinds.
	Assign map[types.Kind]Strategy

	// Threaded makes refcount updates atomic and weak locks go through
	// the runtime's locked retain, so shared objects may cross threads.
	Threaded bool

	// Checked validates every reference before it is dereferenced.
	Checked bool

	// RuntimeVersion is the version of the runtime the code will link
	// against. Empty means the bundled runtime.
	RuntimeVersion string

	// Trace, if set, receives a line per declare and define step.
	Trace io.Writer
}

// DefaultConfig returns the configuration of a single-threaded program
// whose kinds all live in the immutable shared region.
func DefaultConfig() Config {
	return Config{Default: ImmShared}
}

// GlobalState is the state of one code generation: the type graph, the
// module being filled, the backends and the cached layouts. Generation is
// single-threaded.
type GlobalState struct {
	Program *types.Program
	Module  *ssa.Module
	Config  Config
	Sizes   *types.Sizes

	regions map[Strategy]Region
	order   []Region

	layouts map[types.Kind]*KindLayout
	vtables map[*types.InterfaceKind]*interfaceLayout
	nextTag int64

	serial *serializer
}

// NewGlobalState validates cfg against prog and creates the backends.
// It returns an error wrapping ErrStrategyUnavailable if a kind is
// assigned to a strategy without a backend.
func NewGlobalState(prog *types.Program, cfg Config) (*GlobalState, error) {
	if err := rtabi.CheckRuntimeVersion(cfg.RuntimeVersion); err != nil {
		return nil, fmt.Errorf("region: %w", err)
	}
	if err := checkStrategy(cfg.Default); err != nil {
		return nil, fmt.Errorf("region: default strategy: %w", err)
	}
	known := make(map[types.Kind]bool)
	for _, k := range prog.Kinds() {
		known[k] = true
	}
	for k, s := range cfg.Assign {
		if !known[k] {
			return nil, fmt.Errorf("region: %s is assigned to %s but not defined", k, s)
		}
	}
	for _, k := range prog.Kinds() {
		s := strategyOf(cfg, k)
		if err := checkStrategy(s); err != nil {
			return nil, fmt.Errorf("region: %s: %w", k, err)
		}
		if s == ImmShared && prog.Mutability(k) == types.Mutable {
			return nil, fmt.Errorf("region: %s: %w", k, ErrMutableShared)
		}
	}

	gs := &GlobalState{
		Program: prog,
		Module:  ssa.NewModule(prog.Name()),
		Config:  cfg,
		Sizes:   types.NewSizes(prog),
		regions: make(map[Strategy]Region),
		layouts: make(map[types.Kind]*KindLayout),
		vtables: make(map[*types.InterfaceKind]*interfaceLayout),
	}
	gs.serial = newSerializer(gs)
	gs.addRegion(newRCMut(gs))
	gs.addRegion(newRCImm(gs))
	return gs, nil
}

func (gs *GlobalState) addRegion(r Region) {
	gs.regions[r.Strategy()] = r
	gs.order = append(gs.order, r)
}

// checkStrategy returns an error if s has no backend.
func checkStrategy(s Strategy) error {
	switch s {
	case RCMutable, ImmShared:
		return nil
	case Linear, Unsafe:
		return fmt.Errorf("%s: %w", s, ErrStrategyUnavailable)
	}
	return fmt.Errorf("unknown strategy %s", s)
}

func strategyOf(cfg Config, k types.Kind) Strategy {
	if s, ok := cfg.Assign[k]; ok {
		return s
	}
	return cfg.Default
}

// RegionFor returns the backend that owns k.
func (gs *GlobalState) RegionFor(k types.Kind) Region {
	return gs.regions[strategyOf(gs.Config, k)]
}

// Region returns the backend implementing s, or nil.
func (gs *GlobalState) Region(s Strategy) Region {
	return gs.regions[s]
}

// tracef writes one trace line if tracing is enabled.
func (gs *GlobalState) tracef(format string, args ...interface{}) {
	if gs.Config.Trace != nil {
		fmt.Fprintf(gs.Config.Trace, "region: "+format+"\n", args...)
	}
}

// Generate declares, then defines, every kind and edge of the program in
// its owning region, with the extra functions of each kind after all
// kinds. A violated invariant is returned as an *InternalError.
func (gs *GlobalState) Generate() error {
	return catch(gs.generate)
}

func (gs *GlobalState) generate() {
	prog := gs.Program

	for _, d := range prog.Structs() {
		gs.RegionFor(d.Kind).DeclareStruct(d)
	}
	for _, d := range prog.Interfaces() {
		gs.RegionFor(d.Kind).DeclareInterface(d)
	}
	for _, d := range prog.StaticSizedArrays() {
		gs.RegionFor(d.Kind).DeclareStaticSizedArray(d)
	}
	for _, d := range prog.RuntimeSizedArrays() {
		gs.RegionFor(d.Kind).DeclareRuntimeSizedArray(d)
	}
	for _, e := range prog.Edges() {
		gs.RegionFor(e.Struct).DeclareEdge(e)
	}

	for _, d := range prog.Structs() {
		gs.RegionFor(d.Kind).DeclareStructExtraFunctions(d)
	}
	for _, d := range prog.Interfaces() {
		gs.RegionFor(d.Kind).DeclareInterfaceExtraFunctions(d)
	}
	for _, d := range prog.StaticSizedArrays() {
		gs.RegionFor(d.Kind).DeclareStaticSizedArrayExtraFunctions(d)
	}
	for _, d := range prog.RuntimeSizedArrays() {
		gs.RegionFor(d.Kind).DeclareRuntimeSizedArrayExtraFunctions(d)
	}
	for _, r := range gs.order {
		r.DeclareExtraFunctions()
	}

	for _, d := range prog.Structs() {
		gs.RegionFor(d.Kind).DefineStruct(d)
	}
	for _, d := range prog.Interfaces() {
		gs.RegionFor(d.Kind).DefineInterface(d)
	}
	for _, d := range prog.StaticSizedArrays() {
		gs.RegionFor(d.Kind).DefineStaticSizedArray(d)
	}
	for _, d := range prog.RuntimeSizedArrays() {
		gs.RegionFor(d.Kind).DefineRuntimeSizedArray(d)
	}
	for _, e := range prog.Edges() {
		gs.RegionFor(e.Struct).DefineEdge(e)
	}

	for _, d := range prog.Structs() {
		gs.RegionFor(d.Kind).DefineStructExtraFunctions(d)
	}
	for _, d := range prog.Interfaces() {
		gs.RegionFor(d.Kind).DefineInterfaceExtraFunctions(d)
	}
	for _, d := range prog.StaticSizedArrays() {
		gs.RegionFor(d.Kind).DefineStaticSizedArrayExtraFunctions(d)
	}
	for _, d := range prog.RuntimeSizedArrays() {
		gs.RegionFor(d.Kind).DefineRuntimeSizedArrayExtraFunctions(d)
	}
	for _, r := range gs.order {
		r.DefineExtraFunctions()
	}
}

// BuildFunc adds a function to the module and runs body to emit it. A
// function only declared so far, such as an edge method, gets its body
// here and keeps its declared parameters. A violated invariant inside body
// is returned as an *InternalError, and the module is left as it was: a
// new function is removed and a declared one stays a declaration.
func (gs *GlobalState) BuildFunc(name string, result ssa.Type, params []*ssa.Param, body func(b *ssa.Builder)) (*ssa.Func, error) {
	f := gs.Module.Func(name)
	added := false
	switch {
	case f == nil:
		f = gs.Module.AddFunc(ssa.NewDecl(name, result, params...))
		added = true
	case !f.IsDecl():
		return nil, fmt.Errorf("region: func %s already has a body", name)
	case len(f.Params) != len(params):
		return nil, fmt.Errorf("region: func %s declared with %d params, built with %d", name, len(f.Params), len(params))
	}
	f.StartBody()
	if err := catch(func() { body(ssa.NewBuilder(f)) }); err != nil {
		if added {
			gs.Module.RemoveFunc(name)
		} else {
			f.DropBody()
		}
		return nil, err
	}
	return f, nil
}

// ownedRef describes a fresh object of k: shared for immutable kinds,
// owning otherwise.
func (gs *GlobalState) ownedRef(k types.Kind) *types.Reference {
	own := types.Owning
	if gs.Program.Mutability(k) == types.Immutable {
		own = types.Share
	}
	return gs.Program.Cache().Ref(own, types.Yonder, k)
}
