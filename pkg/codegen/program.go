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

package codegen

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type opCode uint8

const (
	opConst opCode = iota
	opVar
	opUnary
	opBinary
)

type unaryOp uint8

const (
	Exp unaryOp = iota
	Log
	Abs
	Sqrt
	Neg
)

type binaryOp uint8

const (
	Plus binaryOp = iota
	Minus
	Mult
	Div
	Pow
	Min
	Max
)

var unaryFunc = [...]func(float64) float64{
	Exp:  math.Exp,
	Log:  math.Log,
	Abs:  math.Abs,
	Sqrt: math.Sqrt,
	Neg:  func(v float64) float64 { return -v },
}

var binaryFunc = [...]func(float64, float64) float64{
	Plus:  func(a, b float64) float64 { return a + b },
	Minus: func(a, b float64) float64 { return a - b },
	Mult:  func(a, b float64) float64 { return a * b },
	Div:   func(a, b float64) float64 { return a / b },
	Pow:   math.Pow,
	Min:   math.Min,
	Max:   math.Max,
}

var unaryNames = map[string]unaryOp{
	"exp":  Exp,
	"log":  Log,
	"abs":  Abs,
	"sqrt": Sqrt,
	"neg":  Neg,
}

var binaryNames = map[string]binaryOp{
	"+":   Plus,
	"-":   Minus,
	"*":   Mult,
	"/":   Div,
	"^":   Pow,
	"min": Min,
	"max": Max,
}

type varKind uint8

const (
	varCell varKind = iota
	varSide
	varScalar
	varUV
)

// env holds the values a program reads for one cell.
type env struct {
	cell    float64
	sides   []float64
	scalars []float64
	uv      float64
}

type instr struct {
	code  opCode
	fn    uint8
	kind  varKind
	index int
	val   float64
}

// program is a compiled postfix expression.
type program struct {
	src    string
	instrs []instr
	depth  int
	// number of side inputs and scalars the expression reads
	sides   int
	scalars int
	// reads the primary cell
	usesCell bool
}

// compileProgram parses a whitespace separated postfix expression. vars
// resolves variable tokens for the kernel being built.
func compileProgram(src string, vars func(tok string) (varKind, int, bool)) (*program, error) {
	p := &program{src: src}
	depth := 0
	for _, tok := range strings.Fields(src) {
		var in instr
		if op, ok := binaryNames[tok]; ok {
			if depth < 2 {
				return nil, fmt.Errorf("operator %q needs two operands", tok)
			}
			in = instr{code: opBinary, fn: uint8(op)}
			depth--
		} else if op, ok := unaryNames[tok]; ok {
			if depth < 1 {
				return nil, fmt.Errorf("operator %q needs an operand", tok)
			}
			in = instr{code: opUnary, fn: uint8(op)}
		} else if kind, index, ok := vars(tok); ok {
			in = instr{code: opVar, kind: kind, index: index}
			switch kind {
			case varCell:
				p.usesCell = true
			case varSide:
				if index+1 > p.sides {
					p.sides = index + 1
				}
			case varScalar:
				if index+1 > p.scalars {
					p.scalars = index + 1
				}
			}
			depth++
		} else if v, err := strconv.ParseFloat(tok, 64); err == nil {
			in = instr{code: opConst, val: v}
			depth++
		} else {
			return nil, fmt.Errorf("unknown token %q", tok)
		}
		if depth > p.depth {
			p.depth = depth
		}
		p.instrs = append(p.instrs, in)
	}
	if depth != 1 {
		return nil, fmt.Errorf("expression %q leaves %d values", src, depth)
	}
	return p, nil
}

// indexedVar parses tokens such as b0 or s12.
func indexedVar(tok, prefix string) (int, bool) {
	if !strings.HasPrefix(tok, prefix) || len(tok) == len(prefix) {
		return 0, false
	}
	i, err := strconv.Atoi(tok[len(prefix):])
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// eval runs the program; stack must hold at least p.depth values.
func (p *program) eval(e *env, stack []float64) float64 {
	sp := 0
	for i := range p.instrs {
		in := &p.instrs[i]
		switch in.code {
		case opConst:
			stack[sp] = in.val
			sp++
		case opVar:
			switch in.kind {
			case varCell:
				stack[sp] = e.cell
			case varSide:
				stack[sp] = e.sides[in.index]
			case varScalar:
				stack[sp] = e.scalars[in.index]
			case varUV:
				stack[sp] = e.uv
			}
			sp++
		case opUnary:
			stack[sp-1] = unaryFunc[in.fn](stack[sp-1])
		case opBinary:
			stack[sp-2] = binaryFunc[in.fn](stack[sp-2], stack[sp-1])
			sp--
		}
	}
	return stack[0]
}

func (p *program) newStack() []float64 {
	return make([]float64, p.depth)
}
