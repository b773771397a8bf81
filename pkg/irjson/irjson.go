// Package irjson is the JSON encoding of an ir.Exp tree used at the
// CLI boundary (cmd/gokartc's input format). It exists because ir.Exp
// and ir.Pat are closed interfaces — one struct per variant, with no
// exported discriminator field a generic encoding/json call could use
// to pick the right Go type back out of a JSON object — so decoding
// needs one explicit dispatch keyed on a "kind" string this package
// adds to the wire format.
//
// This is the only package under pkg/ that uses encoding/json (the
// other user is cmd/gokart's --env decoder): it is the IR interchange
// boundary a real
// lexer/parser/desugarer would produce, and no example in the
// retrieval pack carries a richer tree-interchange format (protobuf,
// msgpack) that would fit this shape better (see DESIGN.md).
package irjson

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/kristofer/gokart/pkg/ir"
)

// expDTO is the wire shape of one ir.Exp node. Only the fields
// relevant to Kind are populated; unused fields are omitted by the
// encoder and ignored by the decoder, mirroring bytecode.Instr's "only
// some fields apply" convention.
type expDTO struct {
	Kind string `json:"kind"`

	NullOp *nullOpDTO `json:"nullOp,omitempty"`
	UnOp   *unOpDTO   `json:"unOp,omitempty"`
	BinOp  *binOpDTO  `json:"binOp,omitempty"`

	Var *ir.Var `json:"var,omitempty"`
	Tag *ir.Tag `json:"tag,omitempty"`

	Arg       json.RawMessage `json:"arg,omitempty"`
	Left      json.RawMessage `json:"left,omitempty"`
	Right     json.RawMessage `json:"right,omitempty"`
	Fn        json.RawMessage `json:"fn,omitempty"`
	Param     json.RawMessage `json:"param,omitempty"`
	Body      json.RawMessage `json:"body,omitempty"`
	Cond      json.RawMessage `json:"cond,omitempty"`
	Then      json.RawMessage `json:"then,omitempty"`
	Else      json.RawMessage `json:"else,omitempty"`
	Scrutinee json.RawMessage `json:"scrutinee,omitempty"`
	Branches  []branchDTO     `json:"branches,omitempty"`
	Pat       json.RawMessage `json:"pat,omitempty"`
	Rhs       json.RawMessage `json:"rhs,omitempty"`
}

type branchDTO struct {
	Tag  ir.Tag          `json:"tag"`
	Pat  json.RawMessage `json:"pat"`
	Body json.RawMessage `json:"body"`
}

// patDTO is the wire shape of one ir.Pat node.
type patDTO struct {
	Kind  string          `json:"kind"`
	Var   *ir.Var         `json:"var,omitempty"`
	Left  json.RawMessage `json:"left,omitempty"`
	Right json.RawMessage `json:"right,omitempty"`
	Inner json.RawMessage `json:"inner,omitempty"`
}

type nullOpDTO struct {
	Kind   string  `json:"kind"`
	Int    int64   `json:"int,omitempty"`
	Double float64 `json:"double,omitempty"`
	Str    string  `json:"str,omitempty"`
}

type unOpDTO struct {
	Kind string `json:"kind"`
}

type binOpDTO struct {
	Kind string `json:"kind"`
}

// Decode reads one JSON-encoded ir.Exp tree from data.
func Decode(data []byte) (ir.Exp, error) {
	return decodeExp(data)
}

// Encode serializes exp as the JSON wire format Decode understands.
func Encode(exp ir.Exp) ([]byte, error) {
	dto, err := encodeExp(exp)
	if err != nil {
		return nil, err
	}
	return json.Marshal(dto)
}

func decodeExp(data json.RawMessage) (ir.Exp, error) {
	if len(data) == 0 {
		return nil, errors.New("irjson: empty Exp node")
	}
	var dto expDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, errors.Wrap(err, "irjson: decoding Exp node")
	}

	switch dto.Kind {
	case "Empty":
		return ir.Empty{}, nil

	case "Var":
		if dto.Var == nil {
			return nil, errors.New("irjson: Var node missing \"var\"")
		}
		return ir.Var_{V: *dto.Var}, nil

	case "Sys0":
		op, err := decodeNullOp(dto.NullOp)
		if err != nil {
			return nil, err
		}
		return ir.Sys0{Op: op}, nil

	case "Sys1":
		op, err := decodeUnOp(dto.UnOp)
		if err != nil {
			return nil, err
		}
		arg, err := decodeExp(dto.Arg)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: Sys1.arg")
		}
		return ir.Sys1{Op: op, Arg: arg}, nil

	case "Sys2":
		op, err := decodeBinOp(dto.BinOp)
		if err != nil {
			return nil, err
		}
		left, err := decodeExp(dto.Left)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: Sys2.left")
		}
		right, err := decodeExp(dto.Right)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: Sys2.right")
		}
		return ir.Sys2{Op: op, Left: left, Right: right}, nil

	case "Pair":
		left, err := decodeExp(dto.Left)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: Pair.left")
		}
		right, err := decodeExp(dto.Right)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: Pair.right")
		}
		return ir.Pair{Left: left, Right: right}, nil

	case "Con":
		if dto.Tag == nil {
			return nil, errors.New("irjson: Con node missing \"tag\"")
		}
		arg, err := decodeExp(dto.Arg)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: Con.arg")
		}
		return ir.Con{Tag: *dto.Tag, Arg: arg}, nil

	case "App":
		fn, err := decodeExp(dto.Fn)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: App.fn")
		}
		arg, err := decodeExp(dto.Arg)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: App.arg")
		}
		return ir.App{Fn: fn, Arg: arg}, nil

	case "Abs":
		param, err := decodePat(dto.Param)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: Abs.param")
		}
		body, err := decodeExp(dto.Body)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: Abs.body")
		}
		return ir.Abs{Param: param, Body: body}, nil

	case "Cond":
		cond, err := decodeExp(dto.Cond)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: Cond.cond")
		}
		then, err := decodeExp(dto.Then)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: Cond.then")
		}
		els, err := decodeExp(dto.Else)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: Cond.else")
		}
		return ir.Cond{Cond: cond, Then: then, Else: els}, nil

	case "Case":
		scrutinee, err := decodeExp(dto.Scrutinee)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: Case.scrutinee")
		}
		branches := make([]ir.CaseBranch, len(dto.Branches))
		for i, b := range dto.Branches {
			pat, err := decodePat(b.Pat)
			if err != nil {
				return nil, errors.Wrapf(err, "irjson: Case.branches[%d].pat", i)
			}
			body, err := decodeExp(b.Body)
			if err != nil {
				return nil, errors.Wrapf(err, "irjson: Case.branches[%d].body", i)
			}
			branches[i] = ir.CaseBranch{Tag: b.Tag, Pat: pat, Body: body}
		}
		return ir.Case{Scrutinee: scrutinee, Branches: branches}, nil

	case "Let":
		pat, err := decodePat(dto.Pat)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: Let.pat")
		}
		rhs, err := decodeExp(dto.Rhs)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: Let.rhs")
		}
		body, err := decodeExp(dto.Body)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: Let.body")
		}
		return ir.Let{Pat: pat, Rhs: rhs, Body: body}, nil

	case "Letrec":
		pat, err := decodePat(dto.Pat)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: Letrec.pat")
		}
		rhs, err := decodeExp(dto.Rhs)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: Letrec.rhs")
		}
		body, err := decodeExp(dto.Body)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: Letrec.body")
		}
		return ir.Letrec{Pat: pat, Rhs: rhs, Body: body}, nil

	default:
		return nil, errors.Errorf("irjson: unknown Exp kind %q", dto.Kind)
	}
}

func decodePat(data json.RawMessage) (ir.Pat, error) {
	if len(data) == 0 {
		return nil, errors.New("irjson: empty Pat node")
	}
	var dto patDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, errors.Wrap(err, "irjson: decoding Pat node")
	}

	switch dto.Kind {
	case "PEmpty":
		return ir.PEmpty{}, nil
	case "PVar":
		if dto.Var == nil {
			return nil, errors.New("irjson: PVar node missing \"var\"")
		}
		return ir.PVar{V: *dto.Var}, nil
	case "PPair":
		left, err := decodePat(dto.Left)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: PPair.left")
		}
		right, err := decodePat(dto.Right)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: PPair.right")
		}
		return ir.PPair{Left: left, Right: right}, nil
	case "PLayer":
		if dto.Var == nil {
			return nil, errors.New("irjson: PLayer node missing \"var\"")
		}
		inner, err := decodePat(dto.Inner)
		if err != nil {
			return nil, errors.Wrap(err, "irjson: PLayer.inner")
		}
		return ir.PLayer{V: *dto.Var, Inner: inner}, nil
	default:
		return nil, errors.Errorf("irjson: unknown Pat kind %q", dto.Kind)
	}
}

func decodeNullOp(dto *nullOpDTO) (ir.NullOp, error) {
	if dto == nil {
		return ir.NullOp{}, errors.New("irjson: Sys0 node missing \"nullOp\"")
	}
	switch dto.Kind {
	case "IntLit":
		return ir.NullOp{Kind: ir.NullIntLit, Int: dto.Int}, nil
	case "DoubleLit":
		return ir.NullOp{Kind: ir.NullDoubleLit, Double: dto.Double}, nil
	case "StrLit":
		return ir.NullOp{Kind: ir.NullStrLit, Str: dto.Str}, nil
	default:
		return ir.NullOp{}, errors.Errorf("irjson: unknown NullOp kind %q", dto.Kind)
	}
}

var unOpKinds = map[string]ir.UnOpKind{
	"Print":               ir.UnPrint,
	"Read":                ir.UnRead,
	"Int2Str":             ir.UnInt2Str,
	"Str2Int":             ir.UnStr2Int,
	"Double2Str":          ir.UnDouble2Str,
	"Str2Double":          ir.UnStr2Double,
	"Double2Int":          ir.UnDouble2Int,
	"Int2Double":          ir.UnInt2Double,
	"VectorIntLength":     ir.UnVectorIntLength,
	"VectorIntRandomFill": ir.UnVectorIntRandomFill,
}

func decodeUnOp(dto *unOpDTO) (ir.UnOp, error) {
	if dto == nil {
		return ir.UnOp{}, errors.New("irjson: Sys1 node missing \"unOp\"")
	}
	kind, ok := unOpKinds[dto.Kind]
	if !ok {
		return ir.UnOp{}, errors.Errorf("irjson: unknown UnOp kind %q", dto.Kind)
	}
	return ir.UnOp{Kind: kind}, nil
}

var binOpKinds = map[string]ir.BinOpKind{
	"IntPlus": ir.BinIntPlus, "IntMinus": ir.BinIntMinus, "IntMul": ir.BinIntMul, "IntDiv": ir.BinIntDiv,
	"IntLt": ir.BinIntLt, "IntLe": ir.BinIntLe, "IntEq": ir.BinIntEq, "IntNe": ir.BinIntNe, "IntGt": ir.BinIntGt, "IntGe": ir.BinIntGe,
	"DoublePlus": ir.BinDoublePlus, "DoubleMinus": ir.BinDoubleMinus, "DoubleMul": ir.BinDoubleMul, "DoubleDiv": ir.BinDoubleDiv,
	"DoubleLt": ir.BinDoubleLt, "DoubleLe": ir.BinDoubleLe, "DoubleEq": ir.BinDoubleEq, "DoubleNe": ir.BinDoubleNe, "DoubleGt": ir.BinDoubleGt, "DoubleGe": ir.BinDoubleGe,
	"StrPlus": ir.BinStrPlus, "StrEq": ir.BinStrEq, "StrNe": ir.BinStrNe,
	"VectorIntFill": ir.BinVectorIntFill, "VectorIntGet": ir.BinVectorIntGet,
	"VectorIntUpdate": ir.BinVectorIntUpdate, "VectorIntUpdateMut": ir.BinVectorIntUpdateMut,
}

func decodeBinOp(dto *binOpDTO) (ir.BinOp, error) {
	if dto == nil {
		return ir.BinOp{}, errors.New("irjson: Sys2 node missing \"binOp\"")
	}
	kind, ok := binOpKinds[dto.Kind]
	if !ok {
		return ir.BinOp{}, errors.Errorf("irjson: unknown BinOp kind %q", dto.Kind)
	}
	return ir.BinOp{Kind: kind}, nil
}

func encodeExp(exp ir.Exp) (*expDTO, error) {
	switch e := exp.(type) {
	case ir.Empty:
		return &expDTO{Kind: "Empty"}, nil

	case ir.Var_:
		v := e.V
		return &expDTO{Kind: "Var", Var: &v}, nil

	case ir.Sys0:
		return &expDTO{Kind: "Sys0", NullOp: encodeNullOp(e.Op)}, nil

	case ir.Sys1:
		arg, err := marshalExp(e.Arg)
		if err != nil {
			return nil, err
		}
		return &expDTO{Kind: "Sys1", UnOp: encodeUnOp(e.Op), Arg: arg}, nil

	case ir.Sys2:
		left, err := marshalExp(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := marshalExp(e.Right)
		if err != nil {
			return nil, err
		}
		return &expDTO{Kind: "Sys2", BinOp: encodeBinOp(e.Op), Left: left, Right: right}, nil

	case ir.Pair:
		left, err := marshalExp(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := marshalExp(e.Right)
		if err != nil {
			return nil, err
		}
		return &expDTO{Kind: "Pair", Left: left, Right: right}, nil

	case ir.Con:
		tag := e.Tag
		arg, err := marshalExp(e.Arg)
		if err != nil {
			return nil, err
		}
		return &expDTO{Kind: "Con", Tag: &tag, Arg: arg}, nil

	case ir.App:
		fn, err := marshalExp(e.Fn)
		if err != nil {
			return nil, err
		}
		arg, err := marshalExp(e.Arg)
		if err != nil {
			return nil, err
		}
		return &expDTO{Kind: "App", Fn: fn, Arg: arg}, nil

	case ir.Abs:
		param, err := marshalPat(e.Param)
		if err != nil {
			return nil, err
		}
		body, err := marshalExp(e.Body)
		if err != nil {
			return nil, err
		}
		return &expDTO{Kind: "Abs", Param: param, Body: body}, nil

	case ir.Cond:
		cond, err := marshalExp(e.Cond)
		if err != nil {
			return nil, err
		}
		then, err := marshalExp(e.Then)
		if err != nil {
			return nil, err
		}
		els, err := marshalExp(e.Else)
		if err != nil {
			return nil, err
		}
		return &expDTO{Kind: "Cond", Cond: cond, Then: then, Else: els}, nil

	case ir.Case:
		scrutinee, err := marshalExp(e.Scrutinee)
		if err != nil {
			return nil, err
		}
		branches := make([]branchDTO, len(e.Branches))
		for i, b := range e.Branches {
			pat, err := marshalPat(b.Pat)
			if err != nil {
				return nil, err
			}
			body, err := marshalExp(b.Body)
			if err != nil {
				return nil, err
			}
			branches[i] = branchDTO{Tag: b.Tag, Pat: pat, Body: body}
		}
		return &expDTO{Kind: "Case", Scrutinee: scrutinee, Branches: branches}, nil

	case ir.Let:
		pat, err := marshalPat(e.Pat)
		if err != nil {
			return nil, err
		}
		rhs, err := marshalExp(e.Rhs)
		if err != nil {
			return nil, err
		}
		body, err := marshalExp(e.Body)
		if err != nil {
			return nil, err
		}
		return &expDTO{Kind: "Let", Pat: pat, Rhs: rhs, Body: body}, nil

	case ir.Letrec:
		pat, err := marshalPat(e.Pat)
		if err != nil {
			return nil, err
		}
		rhs, err := marshalExp(e.Rhs)
		if err != nil {
			return nil, err
		}
		body, err := marshalExp(e.Body)
		if err != nil {
			return nil, err
		}
		return &expDTO{Kind: "Letrec", Pat: pat, Rhs: rhs, Body: body}, nil

	default:
		return nil, fmt.Errorf("irjson: unknown Exp variant %T", exp)
	}
}

func marshalExp(exp ir.Exp) (json.RawMessage, error) {
	dto, err := encodeExp(exp)
	if err != nil {
		return nil, err
	}
	return json.Marshal(dto)
}

func encodePat(pat ir.Pat) (*patDTO, error) {
	switch p := pat.(type) {
	case ir.PEmpty:
		return &patDTO{Kind: "PEmpty"}, nil
	case ir.PVar:
		v := p.V
		return &patDTO{Kind: "PVar", Var: &v}, nil
	case ir.PPair:
		left, err := marshalPat(p.Left)
		if err != nil {
			return nil, err
		}
		right, err := marshalPat(p.Right)
		if err != nil {
			return nil, err
		}
		return &patDTO{Kind: "PPair", Left: left, Right: right}, nil
	case ir.PLayer:
		v := p.V
		inner, err := marshalPat(p.Inner)
		if err != nil {
			return nil, err
		}
		return &patDTO{Kind: "PLayer", Var: &v, Inner: inner}, nil
	default:
		return nil, fmt.Errorf("irjson: unknown Pat variant %T", pat)
	}
}

func marshalPat(pat ir.Pat) (json.RawMessage, error) {
	dto, err := encodePat(pat)
	if err != nil {
		return nil, err
	}
	return json.Marshal(dto)
}

func encodeNullOp(op ir.NullOp) *nullOpDTO {
	switch op.Kind {
	case ir.NullIntLit:
		return &nullOpDTO{Kind: "IntLit", Int: op.Int}
	case ir.NullDoubleLit:
		return &nullOpDTO{Kind: "DoubleLit", Double: op.Double}
	case ir.NullStrLit:
		return &nullOpDTO{Kind: "StrLit", Str: op.Str}
	default:
		return &nullOpDTO{Kind: "Unknown"}
	}
}

var unOpNames = reverse(unOpKinds)
var binOpNames = reverseBinOp(binOpKinds)

func encodeUnOp(op ir.UnOp) *unOpDTO {
	if name, ok := unOpNames[op.Kind]; ok {
		return &unOpDTO{Kind: name}
	}
	return &unOpDTO{Kind: "Unknown"}
}

func encodeBinOp(op ir.BinOp) *binOpDTO {
	if name, ok := binOpNames[op.Kind]; ok {
		return &binOpDTO{Kind: name}
	}
	return &binOpDTO{Kind: "Unknown"}
}

func reverse(m map[string]ir.UnOpKind) map[ir.UnOpKind]string {
	out := make(map[ir.UnOpKind]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}

func reverseBinOp(m map[string]ir.BinOpKind) map[ir.BinOpKind]string {
	out := make(map[ir.BinOpKind]string, len(m))
	for k, v := range m {
		out[v] = k
	}
	return out
}
