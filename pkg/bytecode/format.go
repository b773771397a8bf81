// Package bytecode also provides serialization of Code buffers to and
// from the .gkc binary format.
//
// File Format Specification:
//
// The .gkc format is the on-disk form of a compiled Code buffer. gokartc
// writes it; gokart loads it and runs it without re-compiling.
//
// Binary Format Layout:
//
//	[Header]
//	  Magic (4 bytes): "GKC1"
//	  Version (4 bytes, LE uint32): format version, currently 1
//
//	[Instructions]
//	  Count (8 bytes, LE uint64)
//	  For each instruction:
//	    Opcode tag (4 bytes, LE uint32) — stable values, see OpCode
//	    Operands, little-endian, opcode-dependent:
//	      Acc, Rest, Cur, Call, GotoFalse, Goto, Pack: one 8-byte
//	        unsigned operand (A)
//	      Switch: two 8-byte unsigned operands (A, B)
//	      Push, Swap, Clear, Cons, App, Return, Skip, Stop: none
//	      Sys0: a NullOp — 4-byte tag, then payload (IntLit: 8-byte
//	        two's-complement; DoubleLit: 8-byte IEEE 754; StrLit:
//	        8-byte length + UTF-8 bytes)
//	      Sys1: a UnOp — 4-byte tag, no payload
//	      Sys2: a BinOp — 4-byte tag, no payload
//
// Stable tag values (both the outer OpCode tags and the nested NullOp/
// UnOp/BinOp tags) must be preserved across compiler/VM versions, or the
// format needs a version bump and a migration in Decode.
package bytecode

import (
	"encoding/binary"
	"io"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/kristofer/gokart/pkg/ir"
)

var (
	// ErrUnexpectedEOF is returned when a .gkc stream ends in the middle
	// of a record.
	ErrUnexpectedEOF = errors.New("bytecode: unexpected end of file")
	// ErrUnexpectedOpcode is returned when an opcode tag does not match
	// any value in the current OpCode set.
	ErrUnexpectedOpcode = errors.New("bytecode: unexpected opcode")
	// ErrInvalidUTF8 is returned when a decoded string constant is not
	// valid UTF-8.
	ErrInvalidUTF8 = errors.New("bytecode: invalid utf-8 in string constant")
	// ErrBadMagic is returned when a stream does not begin with the .gkc
	// magic number.
	ErrBadMagic = errors.New("bytecode: not a .gkc file")
	// ErrUnsupportedVersion is returned when a stream's format version is
	// newer than this package understands.
	ErrUnsupportedVersion = errors.New("bytecode: unsupported format version")
)

const (
	formatVersion = uint32(1)
)

var magic = [4]byte{'G', 'K', 'C', '1'}

// Encode writes code to w in the .gkc binary format.
func Encode(code *Code, w io.Writer) error {
	if _, err := w.Write(magic[:]); err != nil {
		return errors.Wrap(err, "write magic")
	}
	if err := binary.Write(w, binary.LittleEndian, formatVersion); err != nil {
		return errors.Wrap(err, "write version")
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(code.Instrs))); err != nil {
		return errors.Wrap(err, "write instruction count")
	}
	for i, instr := range code.Instrs {
		if err := encodeInstr(w, instr); err != nil {
			return errors.Wrapf(err, "encode instruction %d", i)
		}
	}
	return nil
}

// Decode reads a Code buffer from r in the .gkc binary format.
func Decode(r io.Reader) (*Code, error) {
	var gotMagic [4]byte
	if _, err := io.ReadFull(r, gotMagic[:]); err != nil {
		return nil, wrapEOF(err, "read magic")
	}
	if gotMagic != magic {
		return nil, ErrBadMagic
	}

	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, wrapEOF(err, "read version")
	}
	if version != formatVersion {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "got %d, want %d", version, formatVersion)
	}

	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, wrapEOF(err, "read instruction count")
	}

	instrs := make([]Instr, 0, count)
	for i := uint64(0); i < count; i++ {
		instr, err := decodeInstr(r)
		if err != nil {
			return nil, errors.Wrapf(err, "decode instruction %d", i)
		}
		instrs = append(instrs, instr)
	}
	return &Code{Instrs: instrs}, nil
}

func encodeInstr(w io.Writer, instr Instr) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(instr.Op)); err != nil {
		return err
	}
	switch instr.Op {
	case OpAcc, OpRest, OpCur, OpCall, OpGotoFalse, OpGoto, OpPack:
		return binary.Write(w, binary.LittleEndian, instr.A)
	case OpSwitch:
		if err := binary.Write(w, binary.LittleEndian, instr.A); err != nil {
			return err
		}
		return binary.Write(w, binary.LittleEndian, instr.B)
	case OpSys0:
		return encodeNullOp(w, instr.Op0)
	case OpSys1:
		return binary.Write(w, binary.LittleEndian, uint32(instr.Op1.Kind))
	case OpSys2:
		return binary.Write(w, binary.LittleEndian, uint32(instr.Op2.Kind))
	case OpPush, OpSwap, OpClear, OpCons, OpApp, OpReturn, OpSkip, OpStop:
		return nil
	default:
		return errors.Wrapf(ErrUnexpectedOpcode, "tag %d", instr.Op)
	}
}

func decodeInstr(r io.Reader) (Instr, error) {
	var opTag uint32
	if err := binary.Read(r, binary.LittleEndian, &opTag); err != nil {
		return Instr{}, wrapEOF(err, "read opcode tag")
	}
	op := OpCode(opTag)

	switch op {
	case OpAcc, OpRest, OpCur, OpCall, OpGotoFalse, OpGoto, OpPack:
		var a uint64
		if err := binary.Read(r, binary.LittleEndian, &a); err != nil {
			return Instr{}, wrapEOF(err, "read operand")
		}
		return Instr{Op: op, A: a}, nil
	case OpSwitch:
		var a, b uint64
		if err := binary.Read(r, binary.LittleEndian, &a); err != nil {
			return Instr{}, wrapEOF(err, "read switch tag")
		}
		if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
			return Instr{}, wrapEOF(err, "read switch label")
		}
		return Instr{Op: op, A: a, B: b}, nil
	case OpSys0:
		nullOp, err := decodeNullOp(r)
		if err != nil {
			return Instr{}, err
		}
		return Instr{Op: op, Op0: nullOp}, nil
	case OpSys1:
		var tag uint32
		if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
			return Instr{}, wrapEOF(err, "read unop tag")
		}
		return Instr{Op: op, Op1: ir.UnOp{Kind: ir.UnOpKind(tag)}}, nil
	case OpSys2:
		var tag uint32
		if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
			return Instr{}, wrapEOF(err, "read binop tag")
		}
		return Instr{Op: op, Op2: ir.BinOp{Kind: ir.BinOpKind(tag)}}, nil
	case OpPush, OpSwap, OpClear, OpCons, OpApp, OpReturn, OpSkip, OpStop:
		return Instr{Op: op}, nil
	default:
		return Instr{}, errors.Wrapf(ErrUnexpectedOpcode, "tag %d", opTag)
	}
}

func encodeNullOp(w io.Writer, op ir.NullOp) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(op.Kind)); err != nil {
		return err
	}
	switch op.Kind {
	case ir.NullIntLit:
		return binary.Write(w, binary.LittleEndian, op.Int)
	case ir.NullDoubleLit:
		return binary.Write(w, binary.LittleEndian, op.Double)
	case ir.NullStrLit:
		return writeString(w, op.Str)
	default:
		return errors.Wrapf(ErrUnexpectedOpcode, "nullop tag %d", op.Kind)
	}
}

func decodeNullOp(r io.Reader) (ir.NullOp, error) {
	var tag uint32
	if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
		return ir.NullOp{}, wrapEOF(err, "read nullop tag")
	}
	switch ir.NullOpKind(tag) {
	case ir.NullIntLit:
		var v int64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return ir.NullOp{}, wrapEOF(err, "read int literal")
		}
		return ir.NullOp{Kind: ir.NullIntLit, Int: v}, nil
	case ir.NullDoubleLit:
		var v float64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return ir.NullOp{}, wrapEOF(err, "read double literal")
		}
		return ir.NullOp{Kind: ir.NullDoubleLit, Double: v}, nil
	case ir.NullStrLit:
		s, err := readString(r)
		if err != nil {
			return ir.NullOp{}, err
		}
		return ir.NullOp{Kind: ir.NullStrLit, Str: s}, nil
	default:
		return ir.NullOp{}, errors.Wrapf(ErrUnexpectedOpcode, "nullop tag %d", tag)
	}
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var length uint64
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", wrapEOF(err, "read string length")
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", wrapEOF(err, "read string bytes")
	}
	if !utf8.Valid(buf) {
		return "", ErrInvalidUTF8
	}
	return string(buf), nil
}

func wrapEOF(err error, context string) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrap(ErrUnexpectedEOF, context)
	}
	return errors.Wrap(err, context)
}
