package bytecode

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"

	"github.com/kristofer/gokart/pkg/ir"
)

// TestEncodeDecodeRoundTrip exercises a small but representative program
// (a closure adding the literal 4 to a value read from its env, the same
// listing as this package's doc example) through Encode then Decode and
// checks the result matches field-for-field.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := &Code{
		Instrs: []Instr{
			Push(),
			Sys0(ir.NullOp{Kind: ir.NullIntLit, Int: 4}),
			Swap(),
			Cur(6),
			App(),
			Stop(),
			Push(),
			Acc(0),
			Swap(),
			Acc(1),
			Sys2(ir.BinOp{Kind: ir.BinIntPlus}),
			Return(),
		},
	}

	var buf bytes.Buffer
	if err := Encode(original, &buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("no data was encoded")
	}

	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded.Instrs) != len(original.Instrs) {
		t.Fatalf("instruction count mismatch: got %d, want %d", len(decoded.Instrs), len(original.Instrs))
	}
	for i, instr := range decoded.Instrs {
		if instr != original.Instrs[i] {
			t.Errorf("instruction %d mismatch: got %+v, want %+v", i, instr, original.Instrs[i])
		}
	}
}

// TestEncodeDecodeAllOpcodes exercises every opcode at least once,
// including the ones with nested NullOp/UnOp/BinOp payloads.
func TestEncodeDecodeAllOpcodes(t *testing.T) {
	original := &Code{
		Instrs: []Instr{
			Acc(3),
			Rest(2),
			Push(),
			Swap(),
			Sys0(ir.NullOp{Kind: ir.NullDoubleLit, Double: 3.25}),
			Sys1(ir.UnOp{Kind: ir.UnInt2Str}),
			Sys2(ir.BinOp{Kind: ir.BinStrPlus}),
			Cur(42),
			Return(),
			Clear(),
			Cons(),
			App(),
			Pack(7),
			Skip(),
			Call(10),
			GotoFalse(11),
			Switch(1, 20),
			Goto(21),
			Stop(),
		},
	}

	var buf bytes.Buffer
	if err := Encode(original, &buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded.Instrs) != len(original.Instrs) {
		t.Fatalf("instruction count mismatch: got %d, want %d", len(decoded.Instrs), len(original.Instrs))
	}
	for i, instr := range decoded.Instrs {
		if instr != original.Instrs[i] {
			t.Errorf("instruction %d mismatch: got %+v, want %+v", i, instr, original.Instrs[i])
		}
	}
}

// TestEncodeDecodeStringLiteral exercises a Sys0 StrLit payload carrying
// non-ASCII text, to confirm the length-prefixed UTF-8 encoding survives
// a round trip intact.
func TestEncodeDecodeStringLiteral(t *testing.T) {
	original := &Code{
		Instrs: []Instr{
			Sys0(ir.NullOp{Kind: ir.NullStrLit, Str: "café, 世界"}),
			Return(),
		},
	}

	var buf bytes.Buffer
	if err := Encode(original, &buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Instrs[0].Op0.Str != original.Instrs[0].Op0.Str {
		t.Errorf("string literal mismatch: got %q, want %q",
			decoded.Instrs[0].Op0.Str, original.Instrs[0].Op0.Str)
	}
}

// TestDecodeRejectsBadMagic confirms a stream without the .gkc magic
// number is rejected rather than silently misparsed.
func TestDecodeRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBuffer([]byte{'X', 'X', 'X', 'X', 1, 0, 0, 0})
	if _, err := Decode(buf); err == nil {
		t.Fatal("expected error for bad magic, got nil")
	}
}

// TestDecodeRejectsUnsupportedVersion confirms a stream with a future
// format version is rejected rather than misread.
func TestDecodeRejectsUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(magic[:])
	buf.Write([]byte{99, 0, 0, 0})
	if _, err := Decode(&buf); err == nil {
		t.Fatal("expected error for unsupported version, got nil")
	}
}

// TestDecodeRejectsTruncatedStream confirms a stream that ends mid
// instruction surfaces ErrUnexpectedEOF rather than a panic or a
// silently wrong instruction.
func TestDecodeRejectsTruncatedStream(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(magic[:])
	buf.Write([]byte{1, 0, 0, 0}) // version 1
	buf.Write([]byte{1, 0, 0, 0, 0, 0, 0, 0}) // count = 1
	buf.Write([]byte{byte(OpAcc), 0, 0, 0})   // opcode tag, then truncate before the operand

	if _, err := Decode(&buf); errors.Cause(err) != ErrUnexpectedEOF {
		t.Fatalf("expected ErrUnexpectedEOF for truncated stream, got %v", err)
	}
}

// TestEmptyCode confirms a zero-instruction buffer round-trips cleanly.
func TestEmptyCode(t *testing.T) {
	original := &Code{}

	var buf bytes.Buffer
	if err := Encode(original, &buf); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded.Instrs) != 0 {
		t.Errorf("expected 0 instructions, got %d", len(decoded.Instrs))
	}
}
