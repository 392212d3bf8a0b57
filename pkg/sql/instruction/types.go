// Copyright 2022 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package instruction

import (
	"context"
	"strconv"
	"strings"

	"github.com/matrixorigin/blockmatrix/pkg/codegen"
	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
)

const (
	// InstructionDelim separates the instructions of a program.
	InstructionDelim = "‡"
	// OperandDelim separates the fields of one instruction.
	OperandDelim = "°"
	// ValueTypeDelim separates the parts of an operand field.
	ValueTypeDelim = "·"
)

// Kind is the instruction family an opcode belongs to.
type Kind uint8

const (
	UnknownKind Kind = iota
	AggregateBinary
	AggregateTertiary
	AggregateUnary
	ArithmeticBinary
	BooleanBinary
	BooleanUnary
	RelationalBinary
	File
	Builtin
	BuiltinBinary
	BuiltinUnary
	ParameterizedBuiltin
	Variable
	Reorg
	MatrixReshape
	External
	Append
	Rand
	StringInit
	Tertiary
	Sort
	MatrixIndexing
	MMTSJ
	PMMJ
	MultiReturnBuiltin
	Partition
	SpoofFused
	MMCJ
)

var kindNames = [...]string{
	UnknownKind:          "Unknown",
	AggregateBinary:      "AggregateBinary",
	AggregateTertiary:    "AggregateTertiary",
	AggregateUnary:       "AggregateUnary",
	ArithmeticBinary:     "ArithmeticBinary",
	BooleanBinary:        "BooleanBinary",
	BooleanUnary:         "BooleanUnary",
	RelationalBinary:     "RelationalBinary",
	File:                 "File",
	Builtin:              "Builtin",
	BuiltinBinary:        "BuiltinBinary",
	BuiltinUnary:         "BuiltinUnary",
	ParameterizedBuiltin: "ParameterizedBuiltin",
	Variable:             "Variable",
	Reorg:                "Reorg",
	MatrixReshape:        "MatrixReshape",
	External:             "External",
	Append:               "Append",
	Rand:                 "Rand",
	StringInit:           "StringInit",
	Tertiary:             "Tertiary",
	Sort:                 "Sort",
	MatrixIndexing:       "MatrixIndexing",
	MMTSJ:                "MMTSJ",
	PMMJ:                 "PMMJ",
	MultiReturnBuiltin:   "MultiReturnBuiltin",
	Partition:            "Partition",
	SpoofFused:           "SpoofFused",
	MMCJ:                 "MMCJ",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[UnknownKind]
}

// ExecType is the execution location tag carried in field 0.
type ExecType uint8

const (
	CP ExecType = iota
	CPFile
	Spark
	MR
)

var execTypeNames = [...]string{
	CP:     "CP",
	CPFile: "CP_FILE",
	Spark:  "SPARK",
	MR:     "MR",
}

func (t ExecType) String() string {
	if int(t) < len(execTypeNames) {
		return execTypeNames[t]
	}
	return "UNKNOWN"
}

func parseExecType(s string) (ExecType, bool) {
	for i, name := range execTypeNames {
		if s == name {
			return ExecType(i), true
		}
	}
	return CP, false
}

// Variant distinguishes opcodes whose meaning depends on the operand count.
type Variant uint8

const (
	DefaultVariant Variant = iota
	UnaryVariant
	BinaryVariant
)

var variantNames = [...]string{
	DefaultVariant: "default",
	UnaryVariant:   "unary",
	BinaryVariant:  "binary",
}

func (v Variant) String() string {
	if int(v) < len(variantNames) {
		return variantNames[v]
	}
	return "unknown"
}

// Operand is one typed operand field, name·DATATYPE·VALUETYPE[·LITERAL].
type Operand struct {
	Name      string
	DataType  types.DataType
	ValueType types.ValueType
	Literal   bool
}

func (o Operand) IsMatrix() bool {
	return o.DataType == types.Matrix
}

func (o Operand) IsScalar() bool {
	return o.DataType == types.Scalar
}

// LiteralValue parses a literal scalar operand. Booleans read as 1 and 0.
func (o Operand) LiteralValue(ctx context.Context) (float64, error) {
	if o.ValueType == types.Boolean {
		b, err := strconv.ParseBool(o.Name)
		if err != nil {
			return 0, moerr.NewInvalidArg(ctx, "boolean literal", o.Name)
		}
		if b {
			return 1, nil
		}
		return 0, nil
	}
	v, err := strconv.ParseFloat(o.Name, 64)
	if err != nil {
		return 0, moerr.NewInvalidArg(ctx, "numeric literal", o.Name)
	}
	return v, nil
}

// String renders the operand in its encoded form.
func (o Operand) String() string {
	s := o.Name + ValueTypeDelim + o.DataType.String() + ValueTypeDelim + o.ValueType.String()
	if o.Literal {
		s += ValueTypeDelim + "true"
	}
	return s
}

// Instruction is the typed form of one instruction string.
type Instruction struct {
	ExecType ExecType
	Opcode   string
	Kind     Kind
	Variant  Variant
	Inputs   []Operand
	Outputs  []Operand
	// Params are the plain fields in the order they appeared.
	Params []string
	// Fused is set for SpoofFused instructions only.
	Fused *codegen.Descriptor
	// FileBacked marks the CP_FILE variant of an opcode.
	FileBacked bool
	Raw        string
}

// Output returns the first output operand, or a zero operand.
func (ins *Instruction) Output() Operand {
	if len(ins.Outputs) == 0 {
		return Operand{}
	}
	return ins.Outputs[0]
}

func (ins *Instruction) String() string {
	if ins.Raw != "" {
		return ins.Raw
	}
	return Encode(ins.ExecType, ins.Opcode, ins.fields()...)
}

func (ins *Instruction) fields() []string {
	var fields []string
	if ins.Fused != nil {
		fields = append(fields, ins.Fused.Name, ins.Fused.EncodedPayload())
	}
	for _, op := range ins.Inputs {
		fields = append(fields, op.String())
	}
	for _, op := range ins.Outputs {
		fields = append(fields, op.String())
	}
	return append(fields, ins.Params...)
}

// Encode joins an instruction from its exec type, opcode and fields.
func Encode(et ExecType, opcode string, fields ...string) string {
	parts := make([]string, 0, len(fields)+2)
	parts = append(parts, et.String(), opcode)
	parts = append(parts, fields...)
	return strings.Join(parts, OperandDelim)
}

// EncodeList joins instructions into a program string.
func EncodeList(list ...string) string {
	return strings.Join(list, InstructionDelim)
}
