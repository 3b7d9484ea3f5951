// Package main implements the regionc driver. It reads a type graph in JSON
// form, generates the memory-management code of every kind in its region
// and writes LLVM IR, SSA, C export definitions or layouts.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"sort"
	"strings"

	"github.com/you-not-fish/regionc/internal/codegen"
	"github.com/you-not-fish/regionc/internal/region"
	"github.com/you-not-fish/regionc/internal/rtabi"
	"github.com/you-not-fish/regionc/internal/ssa"
	"github.com/you-not-fish/regionc/internal/ssa/passes"
	"github.com/you-not-fish/regionc/internal/types"
)

// Compiler flags
var (
	emitSSA        = flag.Bool("emit-ssa", false, "Output SSA")
	emitHeader     = flag.Bool("emit-h", false, "Output C export definitions")
	emitLayout     = flag.Bool("emit-layout", false, "Output struct layouts")
	output         = flag.String("o", "", "Output file")
	doctor         = flag.Bool("doctor", false, "Check toolchain")
	version        = flag.Bool("version", false, "Print version")
	watchInput     = flag.Bool("watch", false, "Regenerate whenever the input changes")
	defaultRegion  = flag.String("region", "rcimm", "Region of kinds not listed by -assign")
	threaded       = flag.Bool("threaded", false, "Allow shared objects to cross threads")
	checked        = flag.Bool("checked", false, "Validate references before use")
	runtimeVersion = flag.String("runtime-version", "", "Version of the runtime to link against")
	trace          = flag.Bool("trace", false, "Trace declare and define steps")
	dumpFunc       = flag.String("dump-func", "", "Only dump specific function")
	ssaVerify      = flag.Bool("ssa-verify", false, "Verify SSA after each pass")
	dumpBefore     = flag.String("dump-before", "", "Dump SSA before pass (name or \"*\")")
	dumpAfter      = flag.String("dump-after", "", "Dump SSA after pass (name or \"*\")")

	assigns   []string // Kind=region
	transfers []string // From:To
)

// Version information
const Version = "0.1.0-dev"

func init() {
	flag.Func("assign", "Place a kind in a region (`Kind=region`, repeatable)", func(s string) error {
		if !strings.Contains(s, "=") {
			return fmt.Errorf("want Kind=region, got %q", s)
		}
		assigns = append(assigns, s)
		return nil
	})
	flag.Func("transfer", "Generate transfer.From.To for moving a From into To's region (`From:To`, repeatable)", func(s string) error {
		if !strings.Contains(s, ":") {
			return fmt.Errorf("want From:To, got %q", s)
		}
		transfers = append(transfers, s)
		return nil
	})
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "regionc %s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: regionc [options] <program.json>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *version {
		fmt.Printf("regionc version %s\n", Version)
		fmt.Printf("runtime abi %s\n", rtabi.Version)
		fmt.Printf("go version %s\n", runtime.Version())
		os.Exit(0)
	}

	if *doctor {
		os.Exit(runDoctor())
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "error: no input file")
		fmt.Fprintln(os.Stderr, "usage: regionc [options] <program.json>")
		os.Exit(1)
	}

	filename := args[0]
	run := runEmitLL
	switch {
	case *emitHeader:
		run = runEmitHeader
	case *emitLayout:
		run = runEmitLayout
	case *emitSSA:
		run = runEmitSSA
	}

	if *watchInput {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err := watch(ctx, filename, func() int { return run(filename) }); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	os.Exit(run(filename))
}

// loadProgram reads the type graph in filename.
func loadProgram(filename string) (*types.Program, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return types.DecodeProgram(f)
}

// kindsByName indexes the kinds of prog.
func kindsByName(prog *types.Program) map[string]types.Kind {
	m := make(map[string]types.Kind)
	for _, k := range prog.Kinds() {
		m[k.Name()] = k
	}
	return m
}

// buildConfig turns the region flags into a region configuration.
func buildConfig(prog *types.Program) (region.Config, error) {
	def, err := region.ParseStrategy(*defaultRegion)
	if err != nil {
		return region.Config{}, err
	}
	cfg := region.Config{
		Default:        def,
		Threaded:       *threaded,
		Checked:        *checked,
		RuntimeVersion: *runtimeVersion,
	}
	if *trace {
		cfg.Trace = os.Stderr
	}
	kinds := kindsByName(prog)
	for _, a := range assigns {
		name, strategy, _ := strings.Cut(a, "=")
		k, ok := kinds[name]
		if !ok {
			return region.Config{}, fmt.Errorf("-assign %s: no kind %s", a, name)
		}
		s, err := region.ParseStrategy(strategy)
		if err != nil {
			return region.Config{}, fmt.Errorf("-assign %s: %w", a, err)
		}
		if cfg.Assign == nil {
			cfg.Assign = make(map[types.Kind]region.Strategy)
		}
		cfg.Assign[k] = s
	}
	return cfg, nil
}

// ownedRef describes a fresh object of k.
func ownedRef(prog *types.Program, k types.Kind) *types.Reference {
	own := types.Owning
	if prog.Mutability(k) == types.Immutable {
		own = types.Share
	}
	return prog.Cache().Ref(own, types.Yonder, k)
}

// buildTransfer adds transfer.From.To(src), which moves an owned From
// into the region of To.
func buildTransfer(gs *region.GlobalState, arg string) error {
	kinds := kindsByName(gs.Program)
	from, to, _ := strings.Cut(arg, ":")
	fk, ok := kinds[from]
	if !ok {
		return fmt.Errorf("-transfer %s: no kind %s", arg, from)
	}
	tk, ok := kinds[to]
	if !ok {
		return fmt.Errorf("-transfer %s: no kind %s", arg, to)
	}
	src := ownedRef(gs.Program, fk)
	target := ownedRef(gs.Program, tk)
	dst := gs.RegionFor(tk)
	param := &ssa.Param{Name: "src", Type: gs.RegionFor(fk).TranslateType(src)}
	_, err := gs.BuildFunc("transfer."+from+"."+to, dst.TranslateType(target), []*ssa.Param{param}, func(b *ssa.Builder) {
		b.Return(region.Transfer(gs, b, region.Ref{Type: src, Value: b.Param(0)}, dst, target).Value)
	})
	return err
}

// generate runs code generation for filename and the pass pipeline over
// the result.
func generate(filename string) (*region.GlobalState, error) {
	prog, err := loadProgram(filename)
	if err != nil {
		return nil, err
	}
	cfg, err := buildConfig(prog)
	if err != nil {
		return nil, err
	}
	gs, err := region.NewGlobalState(prog, cfg)
	if err != nil {
		return nil, err
	}
	if err := gs.Generate(); err != nil {
		return nil, err
	}
	for _, t := range transfers {
		if err := buildTransfer(gs, t); err != nil {
			return nil, err
		}
	}
	passCfg := passes.Config{
		DumpBefore: *dumpBefore,
		DumpAfter:  *dumpAfter,
		Verify:     *ssaVerify,
		DumpFunc:   *dumpFunc,
	}
	if err := passes.RunModule(gs.Module, passes.Pipeline(), passCfg); err != nil {
		return nil, fmt.Errorf("pass pipeline failed: %w", err)
	}
	return gs, nil
}

// withOutput runs emit against the -o file, or stdout.
func withOutput(emit func(w io.Writer) error) int {
	w := io.Writer(os.Stdout)
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		defer f.Close()
		w = f
	}
	if err := emit(w); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// runEmitLL generates the program and outputs LLVM IR.
func runEmitLL(filename string) int {
	gs, err := generate(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return withOutput(func(w io.Writer) error {
		return codegen.Generate(w, gs.Module)
	})
}

// runEmitSSA generates the program and outputs SSA for every function
// with a body.
func runEmitSSA(filename string) int {
	gs, err := generate(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return withOutput(func(w io.Writer) error {
		first := true
		for _, fn := range gs.Module.Funcs {
			if fn.IsDecl() || (*dumpFunc != "" && fn.Name != *dumpFunc) {
				continue
			}
			if !first {
				fmt.Fprintln(w)
			}
			first = false
			ssa.Fprint(w, fn)
		}
		return nil
	})
}

// runEmitHeader outputs the C definitions of every exported kind.
func runEmitHeader(filename string) int {
	prog, err := loadProgram(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	cfg, err := buildConfig(prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	gs, err := region.NewGlobalState(prog, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return withOutput(func(w io.Writer) (err error) {
		var sb strings.Builder
		defer func() {
			if r := recover(); r != nil {
				ie, ok := r.(*region.InternalError)
				if !ok {
					panic(r)
				}
				err = ie
			}
		}()
		guard := strings.ToUpper(prog.Name()) + "_H"
		fmt.Fprintf(&sb, "#ifndef %s\n#define %s\n\n#include <stdint.h>\n\n", guard, guard)
		for _, d := range prog.Structs() {
			sb.WriteString(gs.RegionFor(d.Kind).GenerateStructDefsC(d))
		}
		for _, d := range prog.Interfaces() {
			sb.WriteString(gs.RegionFor(d.Kind).GenerateInterfaceDefsC(d))
		}
		for _, d := range prog.StaticSizedArrays() {
			sb.WriteString(gs.RegionFor(d.Kind).GenerateStaticSizedArrayDefsC(d))
		}
		for _, d := range prog.RuntimeSizedArrays() {
			sb.WriteString(gs.RegionFor(d.Kind).GenerateRuntimeSizedArrayDefsC(d))
		}
		fmt.Fprintf(&sb, "\n#endif // %s\n", guard)
		_, err = io.WriteString(w, sb.String())
		return err
	})
}

// runEmitLayout outputs the external layout and the region of every
// struct, in name order.
func runEmitLayout(filename string) int {
	prog, err := loadProgram(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	cfg, err := buildConfig(prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	gs, err := region.NewGlobalState(prog, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	structs := append([]*types.StructDefinition(nil), prog.Structs()...)
	sort.Slice(structs, func(i, j int) bool { return structs[i].Kind.Name() < structs[j].Kind.Name() })
	return withOutput(func(w io.Writer) error {
		fmt.Fprintln(w, "=== Struct Layouts ===")
		fmt.Fprintln(w)
		for _, d := range structs {
			l := gs.Sizes.StructLayout(d.Kind)
			fmt.Fprintf(w, "type %s struct { // %s, %s\n", d.Kind.Name(), d.Mutability, gs.RegionFor(d.Kind).Strategy())
			for i, m := range d.Members {
				fmt.Fprintf(w, "    %-10s %-20s // offset: %d, size: %d, align: %d\n",
					m.Name, m.Type, l.Offsets[i], gs.Sizes.Sizeof(m.Type), gs.Sizes.Alignof(m.Type))
			}
			fmt.Fprintf(w, "}\n")
			fmt.Fprintf(w, "// size: %d, align: %d\n", l.Size, l.Align)
			fmt.Fprintln(w)
		}
		return nil
	})
}

// runDoctor checks the toolchain and returns an exit code.
func runDoctor() int {
	fmt.Println("regionc Toolchain Doctor")
	fmt.Println("========================")
	fmt.Println()

	allOk := true

	fmt.Printf("Go:      %s\n", runtime.Version())
	fmt.Printf("Host:    %s\n", hostInfo())
	fmt.Printf("ABI:     %s (runtime %s)\n", rtabi.Version, rtabi.RuntimeConstraint)

	// Check clang (required)
	clangVersion, clangOk := checkTool("clang", "--version")
	fmt.Printf("clang:   %s", clangVersion)
	if clangOk {
		fmt.Println(" ✓")
	} else {
		fmt.Println(" ✗ (not found)")
		allOk = false
	}

	// Check llvm-as (optional)
	llvmAsVersion, llvmAsOk := checkTool("llvm-as", "--version")
	fmt.Printf("llvm-as: %s", llvmAsVersion)
	if llvmAsOk {
		fmt.Println(" ✓")
	} else {
		fmt.Println(" (optional, not found)")
	}

	fmt.Println()
	if allOk {
		fmt.Println("All required tools available!")
		return 0
	}
	fmt.Println("Some required tools are missing.")
	return 1
}

// checkTool runs a tool with the given arguments and returns the first line of output.
func checkTool(name string, args ...string) (string, bool) {
	cmd := exec.Command(name, args...)
	out, err := cmd.Output()
	if err != nil {
		return "", false
	}
	line, _, _ := strings.Cut(string(out), "\n")
	line = strings.TrimSpace(line)
	if len(line) > 60 {
		line = line[:57] + "..."
	}
	return line, true
}
