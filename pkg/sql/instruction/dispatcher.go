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
	"strings"

	"github.com/matrixorigin/blockmatrix/pkg/codegen"
	"github.com/matrixorigin/blockmatrix/pkg/common/moerr"
	"github.com/matrixorigin/blockmatrix/pkg/container/types"
	"golang.org/x/exp/maps"
)

// Dispatcher turns instruction strings into typed instructions. The opcode
// table is built once and never modified, so one Dispatcher may be shared
// by any number of goroutines.
type Dispatcher struct {
	table map[string]entry
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{table: buildTable()}
}

// Kinds returns a copy of the opcode table.
func (d *Dispatcher) Kinds() map[string]Kind {
	kinds := make(map[string]Kind, len(d.table))
	for opcode, e := range d.table {
		kinds[opcode] = e.kind
	}
	return kinds
}

func (d *Dispatcher) Lookup(opcode string) (Kind, bool) {
	e, ok := d.table[opcode]
	return e.kind, ok
}

// Opcodes lists every known opcode.
func (d *Dispatcher) Opcodes() []string {
	return maps.Keys(d.table)
}

// ParseList parses a program. Either every instruction parses or nothing
// is returned.
func (d *Dispatcher) ParseList(ctx context.Context, text string) ([]*Instruction, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	parts := strings.Split(text, InstructionDelim)
	list := make([]*Instruction, 0, len(parts))
	for i, part := range parts {
		ins, err := d.Parse(ctx, part)
		if err != nil {
			return nil, moerr.NewParseError(ctx, "instruction %d: %v", i, err)
		}
		list = append(list, ins)
	}
	return list, nil
}

func (d *Dispatcher) Parse(ctx context.Context, text string) (*Instruction, error) {
	text = strings.TrimSpace(text)
	fields := strings.Split(text, OperandDelim)
	if len(fields) < 2 {
		return nil, moerr.NewParseError(ctx, "'%s' has no opcode", text)
	}
	opcode := fields[1]
	e, ok := d.table[opcode]
	if !ok {
		return nil, moerr.NewParseError(ctx, "unknown opcode '%s'", opcode)
	}
	ins := &Instruction{
		Opcode: opcode,
		Kind:   e.kind,
		Raw:    text,
	}
	if err := checkExecType(ctx, ins, fields[0], e.shape.execs); err != nil {
		return nil, err
	}
	rest := fields[2:]
	if e.kind == SpoofFused {
		if len(rest) < 2 {
			return nil, moerr.NewParseError(ctx, "spoof without kernel descriptor")
		}
		desc, err := codegen.ParseDescriptor(ctx, rest[0], rest[1])
		if err != nil {
			return nil, moerr.NewParseError(ctx, "spoof: %v", err)
		}
		ins.Fused = &desc
		rest = rest[2:]
	}
	var operands []Operand
	for _, f := range rest {
		if f == "" {
			return nil, moerr.NewParseError(ctx, "%s: empty field", opcode)
		}
		if !strings.Contains(f, ValueTypeDelim) {
			ins.Params = append(ins.Params, f)
			continue
		}
		op, err := ParseOperand(ctx, f)
		if err != nil {
			return nil, err
		}
		operands = append(operands, op)
	}
	if err := bindOperands(ctx, ins, e.shape, operands); err != nil {
		return nil, err
	}
	if e.kind == Builtin {
		// log with one operand is the natural log, with two the second
		// operand is the base
		switch len(ins.Inputs) {
		case 1:
			ins.Variant = UnaryVariant
		case 2:
			ins.Variant = BinaryVariant
		default:
			return nil, moerr.NewParseError(ctx, "%s: invalid number of operands %d", opcode, len(ins.Inputs))
		}
	}
	return ins, nil
}

func checkExecType(ctx context.Context, ins *Instruction, tag string, execs execSet) error {
	et, ok := parseExecType(tag)
	if !ok {
		return moerr.NewParseError(ctx, "%s: unrecognized execution location '%s'", ins.Opcode, tag)
	}
	if !execs.has(et) {
		if et == CPFile {
			return moerr.NewParseError(ctx, "%s has no file-backed variant", ins.Opcode)
		}
		return moerr.NewParseError(ctx, "%s cannot run on %s", ins.Opcode, et)
	}
	ins.ExecType = et
	ins.FileBacked = et == CPFile
	return nil
}

func bindOperands(ctx context.Context, ins *Instruction, s shape, operands []Operand) error {
	n := len(operands)
	nin, nout := 0, 0
	if s.minOut == s.maxOut {
		nout = s.minOut
		nin = n - nout
	} else {
		nin = s.minIn
		nout = n - nin
	}
	if nin < s.minIn || (s.maxIn != unbounded && nin > s.maxIn) || nin < 0 {
		return moerr.NewParseError(ctx, "%s: invalid number of operands %d", ins.Opcode, n)
	}
	if nout < s.minOut || nout > s.maxOut {
		return moerr.NewParseError(ctx, "%s: invalid number of outputs %d", ins.Opcode, nout)
	}
	if s.maxParams != unbounded && len(ins.Params) > s.maxParams {
		return moerr.NewParseError(ctx, "%s: unexpected field '%s'", ins.Opcode, ins.Params[s.maxParams])
	}
	for i := 0; i < s.matrixInputs && i < nin; i++ {
		if !operands[i].IsMatrix() {
			return moerr.NewParseError(ctx, "%s: operand %s is not a matrix", ins.Opcode, operands[i].Name)
		}
	}
	ins.Inputs = operands[:nin:nin]
	ins.Outputs = operands[nin:]
	return nil
}

// ParseOperand parses name·DATATYPE·VALUETYPE[·LITERAL].
func ParseOperand(ctx context.Context, field string) (Operand, error) {
	parts := strings.Split(field, ValueTypeDelim)
	if len(parts) != 3 && len(parts) != 4 {
		return Operand{}, moerr.NewParseError(ctx, "malformed operand '%s'", field)
	}
	if parts[0] == "" {
		return Operand{}, moerr.NewParseError(ctx, "operand '%s' without name", field)
	}
	dt, ok := types.ParseDataType(parts[1])
	if !ok {
		return Operand{}, moerr.NewParseError(ctx, "operand '%s': unknown data type %s", field, parts[1])
	}
	vt, ok := types.ParseValueType(parts[2])
	if !ok {
		return Operand{}, moerr.NewParseError(ctx, "operand '%s': unknown value type %s", field, parts[2])
	}
	op := Operand{Name: parts[0], DataType: dt, ValueType: vt}
	if len(parts) == 4 {
		switch strings.ToLower(parts[3]) {
		case "true":
			op.Literal = true
		case "false":
		default:
			return Operand{}, moerr.NewParseError(ctx, "operand '%s': bad literal flag %s", field, parts[3])
		}
	}
	return op, nil
}

// MatrixOperand builds a double matrix operand.
func MatrixOperand(name string) Operand {
	return Operand{Name: name, DataType: types.Matrix, ValueType: types.Double}
}

// ScalarLiteral builds a double scalar literal operand.
func ScalarLiteral(v string) Operand {
	return Operand{Name: v, DataType: types.Scalar, ValueType: types.Double, Literal: true}
}
