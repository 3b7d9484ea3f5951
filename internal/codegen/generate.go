// Package codegen lowers an SSA module to textual LLVM IR.
package codegen

import (
	"fmt"
	"io"

	"github.com/you-not-fish/regionc/internal/rtabi"
	"github.com/you-not-fish/regionc/internal/ssa"
)

// generator holds the state of one Generate call.
type generator struct {
	e         *emitter
	strings   []string       // panic messages, emitted as @.str.N
	stringMap map[string]int // message -> index in strings
}

// Generate writes m as an LLVM IR module to w. The module is verified
// first; a malformed module is reported as an error and nothing is written.
func Generate(w io.Writer, m *ssa.Module) error {
	if err := m.Verify(); err != nil {
		return fmt.Errorf("codegen: %w", err)
	}
	g := &generator{
		e:         &emitter{w: w},
		stringMap: make(map[string]int),
	}
	g.lowerModule(m)
	if g.e.err != nil {
		return fmt.Errorf("codegen: write: %w", g.e.err)
	}
	return nil
}

// lowerModule emits the header, types, globals, declarations, function
// bodies and finally the string table collected while lowering.
func (g *generator) lowerModule(m *ssa.Module) {
	g.e.emit("; ModuleID = '%s'", m.Name)
	g.e.emit("source_filename = \"%s\"", llvmEscapeString(m.Name))
	g.e.emit("target datalayout = \"%s\"", rtabi.DataLayout)
	g.e.emit("target triple = \"%s\"", rtabi.TargetTriple)
	g.e.emitComment(fmt.Sprintf("runtime abi %s", rtabi.Version))
	g.e.emitLine()

	if len(m.Types) > 0 {
		for _, t := range m.Types {
			g.e.emit("%s = type %s", t, t.Body())
		}
		g.e.emitLine()
	}

	if len(m.Globals) > 0 {
		for _, gl := range m.Globals {
			g.lowerGlobal(gl)
		}
		g.e.emitLine()
	}

	g.declareRuntime()
	for _, f := range m.Funcs {
		if !f.IsDecl() {
			continue
		}
		if _, ok := rtabi.Lookup(f.Name); ok {
			continue
		}
		g.e.emit("declare %s %s(%s)", llvmType(f.Result), llvmGlobal(f.Name), llvmParamList(f, false))
	}

	for _, f := range m.Funcs {
		if f.IsDecl() {
			continue
		}
		g.e.emitLine()
		g.lowerFunc(f)
	}

	if len(g.strings) > 0 {
		g.e.emitLine()
		for i, s := range g.strings {
			g.e.emit("@.str.%d = private unnamed_addr constant [%d x i8] c\"%s\"",
				i, len(s), llvmEscapeString(s))
		}
	}
}

// declareRuntime emits a declaration for every runtime function.
func (g *generator) declareRuntime() {
	g.e.emitComment("runtime")
	for _, sig := range rtabi.RuntimeFunctions() {
		attrs := ""
		if sig.NoReturn {
			attrs = " noreturn"
		}
		params := ""
		for i, p := range sig.ParamTypes {
			if i > 0 {
				params += ", "
			}
			params += p
		}
		g.e.emit("declare %s @%s(%s)%s", sig.ReturnType, sig.Name, params, attrs)
	}
}

// lowerGlobal emits a constant global such as a vtable.
func (g *generator) lowerGlobal(gl *ssa.Global) {
	init := "zeroinitializer"
	if len(gl.Init) > 0 {
		init = "{ "
		for i, c := range gl.Init {
			if i > 0 {
				init += ", "
			}
			init += c.String()
		}
		init += " }"
	}
	g.e.emit("%s = constant %s %s", llvmGlobal(gl.Name), llvmType(gl.Type), init)
}
