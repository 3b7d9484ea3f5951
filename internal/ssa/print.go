package ssa

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Fprint writes the SSA representation of a function to w.
//
// Format:
//
//	func name(n i64) i64:
//	  b0: (entry)
//	    v0 = Arg <i64> {n}
//	    v1 = Const64 <i64> [42]
//	    v2 = Add64 <i64> v0 v1
//	    Return v2
func Fprint(w io.Writer, f *Func) {
	fmt.Fprintf(w, "func %s:\n", funcHeader(f))

	// Blocks
	for _, b := range f.Blocks {
		fprintBlock(w, b, f)
	}
}

// fprintBlock writes a single block to w.
func fprintBlock(w io.Writer, b *Block, f *Func) {
	// Block header
	label := ""
	if b == f.Entry {
		label = " (entry)"
	}

	// Show predecessor list for non-entry blocks
	predsStr := ""
	if len(b.Preds) > 0 {
		preds := make([]string, len(b.Preds))
		for i, p := range b.Preds {
			preds[i] = p.String()
		}
		predsStr = " <- " + strings.Join(preds, " ")
	}

	fmt.Fprintf(w, "  %s:%s%s\n", b, label, predsStr)

	// Values
	for _, v := range b.Values {
		fmt.Fprintf(w, "    %s\n", formatValue(v))
	}

	// Terminator
	fmt.Fprintf(w, "    %s\n", formatTerminator(b))
}

// formatValue formats a value as a string.
func formatValue(v *Value) string {
	var sb strings.Builder

	// For void ops, don't print "vN = "
	if v.Op.IsVoid() {
		sb.WriteString(v.Op.String())
	} else {
		fmt.Fprintf(&sb, "v%d = %s", v.ID, v.Op)
	}

	// Type
	if v.Type != nil {
		fmt.Fprintf(&sb, " <%s>", v.Type)
	}

	// AuxInt (always show for const ops and specific ops, otherwise only if non-zero)
	switch v.Op {
	case OpConst64, OpConstBool, OpStructFieldPtr, OpInsertValue, OpExtractValue:
		fmt.Fprintf(&sb, " [%d]", v.AuxInt)
	default:
		// Show AuxInt for other ops only if non-zero
		if v.AuxInt != 0 {
			fmt.Fprintf(&sb, " [%d]", v.AuxInt)
		}
	}

	// Aux
	if v.Aux != nil {
		fmt.Fprintf(&sb, " {%s}", formatAux(v.Aux))
	}

	// Arguments
	for _, arg := range v.Args {
		fmt.Fprintf(&sb, " v%d", arg.ID)
	}

	return sb.String()
}

// formatTerminator formats a block terminator.
func formatTerminator(b *Block) string {
	switch b.Kind {
	case BlockPlain:
		if len(b.Succs) > 0 {
			return fmt.Sprintf("Plain -> %s", b.Succs[0])
		}
		return "Plain"
	case BlockIf:
		if len(b.Controls) > 0 && len(b.Succs) >= 2 {
			return fmt.Sprintf("If v%d -> %s %s", b.Controls[0].ID, b.Succs[0], b.Succs[1])
		}
		return "If (malformed)"
	case BlockReturn:
		if len(b.Controls) > 0 && b.Controls[0] != nil {
			return fmt.Sprintf("Return v%d", b.Controls[0].ID)
		}
		return "Return"
	case BlockExit:
		return "Exit"
	default:
		return "???"
	}
}

// Sprint returns the SSA representation of a function as a string.
func Sprint(f *Func) string {
	var sb strings.Builder
	Fprint(&sb, f)
	return sb.String()
}

// formatAux formats an Aux value for display.
func formatAux(aux interface{}) string {
	switch a := aux.(type) {
	case *StructType:
		if a.Name != "" {
			return a.Name
		}
		return a.Body()
	case Type:
		return a.String()
	case Ordering:
		return a.String()
	case string:
		return a
	default:
		return fmt.Sprintf("%v", aux)
	}
}

// funcHeader formats "name(p0 T0, p1 T1) R".
func funcHeader(f *Func) string {
	var sb strings.Builder
	sb.WriteString(f.Name)
	sb.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s %s", p.Name, p.Type)
	}
	sb.WriteByte(')')
	if f.Result != nil {
		fmt.Fprintf(&sb, " %s", f.Result)
	}
	return sb.String()
}

// Print writes the SSA representation of a function to stdout.
func Print(f *Func) {
	Fprint(os.Stdout, f)
}
