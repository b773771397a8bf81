package bytecode

import (
	"strings"
	"testing"

	"github.com/kristofer/gokart/pkg/ir"
)

func TestCodeStringDisassemblesOneInstructionPerLine(t *testing.T) {
	c := New()
	c.Emit(Push())
	c.Emit(Sys0(ir.NullOp{Kind: ir.NullIntLit, Int: 4}))
	c.Emit(Swap())
	c.Emit(Stop())

	out := c.String()
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), out)
	}
	if !strings.Contains(lines[1], "IntLit(4)") {
		t.Errorf("expected Sys0 line to mention IntLit(4), got %q", lines[1])
	}
	if !strings.HasPrefix(lines[0], "   0:") {
		t.Errorf("expected first line to carry label 0, got %q", lines[0])
	}
}

func TestInstrStringCoversLabelBearingOpcodes(t *testing.T) {
	cases := []struct {
		instr Instr
		want  string
	}{
		{Acc(3), "ACC 3"},
		{Rest(2), "REST 2"},
		{Cur(Label(5)), "CUR 5"},
		{Call(Label(7)), "CALL 7"},
		{GotoFalse(Label(1)), "GOTOFALSE 1"},
		{Goto(Label(9)), "GOTO 9"},
		{Pack(ir.Tag(2)), "PACK 2"},
		{Switch(ir.Tag(1), Label(4)), "SWITCH 1 4"},
	}
	for _, c := range cases {
		if got := instrString(c.instr); got != c.want {
			t.Errorf("instrString(%v) = %q, want %q", c.instr, got, c.want)
		}
	}
}

func TestInstrStringCoversPrimitiveCalls(t *testing.T) {
	if got := instrString(Sys1(ir.UnOp{Kind: ir.UnInt2Str})); got != "SYS1 Int2Str" {
		t.Errorf("Sys1 Int2Str rendered as %q", got)
	}
	if got := instrString(Sys2(ir.BinOp{Kind: ir.BinIntPlus})); got != "SYS2 IntPlus" {
		t.Errorf("Sys2 IntPlus rendered as %q", got)
	}
}

func TestInstrStringFallsBackToBareMnemonic(t *testing.T) {
	for _, instr := range []Instr{Cons(), App(), Return(), Clear(), Stop()} {
		if got := instrString(instr); got != instr.Op.String() {
			t.Errorf("instrString(%v) = %q, want %q", instr, got, instr.Op.String())
		}
	}
}
