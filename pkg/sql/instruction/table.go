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

const unbounded = -1

type execSet uint8

const (
	onCP execSet = 1 << iota
	onCPFile
	onSpark
	onMR
)

func (s execSet) has(et ExecType) bool {
	return s&(1<<et) != 0
}

// shape constrains the operands of an opcode. Either the output count or
// the input count is fixed, so the split between the two is never ambiguous.
type shape struct {
	minIn, maxIn   int
	minOut, maxOut int
	maxParams      int
	// leading inputs that must be matrices
	matrixInputs int
	execs        execSet
}

type entry struct {
	kind  Kind
	shape shape
}

func in(minIn, maxIn, out, params int) shape {
	return shape{minIn: minIn, maxIn: maxIn, minOut: out, maxOut: out, maxParams: params, execs: onCP}
}

var kindShapes = map[Kind]shape{
	AggregateBinary:      in(2, 3, 1, 1),
	AggregateTertiary:    in(3, 3, 1, 1),
	AggregateUnary:       in(1, 2, 1, 1),
	ArithmeticBinary:     in(2, 2, 1, 0),
	BooleanBinary:        in(2, 2, 1, 0),
	BooleanUnary:         in(1, 1, 1, 0),
	RelationalBinary:     in(2, 2, 1, 0),
	File:                 in(1, 2, 0, 0),
	Builtin:              in(1, 2, 1, 0),
	BuiltinBinary:        in(2, 2, 1, 0),
	BuiltinUnary:         in(1, 1, 1, 1),
	ParameterizedBuiltin: in(0, unbounded, 1, unbounded),
	Variable:             in(0, unbounded, 0, unbounded),
	Reorg:                in(1, 4, 1, 1),
	MatrixReshape:        in(1, 4, 1, 0),
	External:             in(0, unbounded, 0, unbounded),
	Append:               in(2, 3, 1, 0),
	Rand:                 in(0, unbounded, 1, unbounded),
	StringInit:           in(0, unbounded, 1, unbounded),
	Tertiary:             in(3, 6, 1, 2),
	Sort:                 in(1, 2, 1, 0),
	MatrixIndexing:       in(5, 6, 1, 0),
	MMTSJ:                {minIn: 1, maxIn: 1, minOut: 1, maxOut: 1, maxParams: 2, matrixInputs: 1, execs: onCP},
	PMMJ:                 in(3, 3, 1, 1),
	MultiReturnBuiltin:   {minIn: 1, maxIn: 1, minOut: 1, maxOut: 3, maxParams: 1, execs: onCP},
	Partition:            in(1, 1, 1, 2),
	SpoofFused:           {minIn: 1, maxIn: unbounded, minOut: 1, maxOut: 1, maxParams: 1, matrixInputs: 1, execs: onSpark},
	MMCJ:                 {minIn: 2, maxIn: 2, minOut: 1, maxOut: 1, maxParams: 1, matrixInputs: 2, execs: onSpark | onMR},
}

var kindOpcodes = map[Kind][]string{
	AggregateBinary:   {"ba+*", "cov"},
	AggregateTertiary: {"tak+*"},
	AggregateUnary: {
		"uak+", "uark+", "uack+", "uamean", "uarmean", "uacmean",
		"uamax", "uarmax", "uarimax", "uacmax", "uamin", "uarmin", "uarimin", "uacmin",
		"ua+", "uar+", "uac+", "ua*", "uatrace", "uaktrace",
		"nrow", "ncol", "length", "cm",
	},
	ArithmeticBinary: {"+", "-", "*", "/", "%%", "%/%", "^", "^2", "*2"},
	BooleanBinary:    {"&&", "||"},
	BooleanUnary:     {"!"},
	RelationalBinary: {"==", "!=", "<", ">", "<=", ">="},
	File:             {"rm", "mv"},
	Builtin:          {"log"},
	BuiltinBinary:    {"max", "min", "solve"},
	BuiltinUnary: {
		"exp", "abs", "sin", "cos", "tan", "asin", "acos", "atan", "sqrt", "plogp",
		"print", "round", "ceil", "floor", "ucumk+", "stop", "inverse", "sprop",
	},
	ParameterizedBuiltin: {"cdf", "invcdf", "groupedagg", "rmempty", "replace"},
	Variable: {
		"assignvar", "cpvar", "mvvar", "rmvar", "rmfilevar",
		"castdts", "castsdm", "castsd", "castsi", "castsb",
		"attachfiletovar", "read", "write", "createvar", "seqincr",
		"inmem-iqm", "mr-iqm", "valuepick", "inmem-valuepick", "median", "inmem-median",
	},
	Reorg:              {"r'", "rdiag", "rsort"},
	MatrixReshape:      {"rshape"},
	External:           {"extfunct"},
	Append:             {"append"},
	Rand:               {"rand", "seq"},
	StringInit:         {"sinit"},
	Tertiary:           {"ctable", "ctableexpand"},
	Sort:               {"sort"},
	MatrixIndexing:     {"rangeReIndex", "leftIndex"},
	MMTSJ:              {"tsmm"},
	PMMJ:               {"pmm"},
	MultiReturnBuiltin: {"qr", "lu", "eigen"},
	Partition:          {"partition"},
	SpoofFused:         {"spoof"},
	MMCJ:               {"mmcj"},
}

// opcodeShapes override the shape of their kind.
var opcodeShapes = map[string]shape{
	"ba+*":            {minIn: 2, maxIn: 2, minOut: 1, maxOut: 1, maxParams: 1, matrixInputs: 2, execs: onCP | onSpark | onMR},
	"createvar":       in(0, 0, 1, unbounded),
	"read":            in(0, 0, 1, unbounded),
	"write":           in(1, 1, 0, unbounded),
	"cpvar":           in(1, 1, 1, 0),
	"mvvar":           in(1, 1, 1, 0),
	"assignvar":       in(1, 1, 1, 0),
	"castdts":         in(1, 1, 1, 0),
	"castsdm":         in(1, 1, 1, 0),
	"castsd":          in(1, 1, 1, 0),
	"castsi":          in(1, 1, 1, 0),
	"castsb":          in(1, 1, 1, 0),
	"attachfiletovar": in(1, 1, 0, unbounded),
	"seqincr":         in(1, 3, 1, 0),
	"inmem-iqm":       in(1, 2, 1, 0),
	"mr-iqm":          in(1, 2, 1, 0),
	"valuepick":       in(1, 2, 1, 0),
	"inmem-valuepick": in(1, 2, 1, 0),
	"median":          in(1, 2, 1, 0),
	"inmem-median":    in(1, 2, 1, 0),
}

// fileKinds choose between the in-process and the file-backed variant
// through the exec tag.
var fileKinds = map[Kind]bool{
	ParameterizedBuiltin: true,
	MatrixIndexing:       true,
}

// fileOpcodes are the only opcodes with a file-backed variant.
var fileOpcodes = map[string]bool{
	"rmempty":      true,
	"rangeReIndex": true,
}

func buildTable() map[string]entry {
	table := make(map[string]entry)
	for kind, opcodes := range kindOpcodes {
		for _, opcode := range opcodes {
			s, ok := opcodeShapes[opcode]
			if !ok {
				s = kindShapes[kind]
			}
			if fileKinds[kind] {
				s.execs = onCP
				if fileOpcodes[opcode] {
					s.execs |= onCPFile
				}
			}
			table[opcode] = entry{kind: kind, shape: s}
		}
	}
	return table
}
