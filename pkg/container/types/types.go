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

package types

import (
	"strings"
)

type DataType uint8

const (
	UnknownData DataType = iota
	Matrix
	Scalar
	Frame
)

var dataTypeNames = [...]string{
	UnknownData: "UNKNOWN",
	Matrix:      "MATRIX",
	Scalar:      "SCALAR",
	Frame:       "FRAME",
}

func (t DataType) String() string {
	if int(t) < len(dataTypeNames) {
		return dataTypeNames[t]
	}
	return "UNKNOWN"
}

// ParseDataType recognises the operand data type tags, case insensitive.
func ParseDataType(s string) (DataType, bool) {
	for i, name := range dataTypeNames {
		if strings.EqualFold(s, name) {
			return DataType(i), true
		}
	}
	return UnknownData, false
}

type ValueType uint8

const (
	UnknownValue ValueType = iota
	Double
	Int
	Boolean
	String
)

var valueTypeNames = [...]string{
	UnknownValue: "UNKNOWN",
	Double:       "DOUBLE",
	Int:          "INT",
	Boolean:      "BOOLEAN",
	String:       "STRING",
}

func (t ValueType) String() string {
	if int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return "UNKNOWN"
}

func ParseValueType(s string) (ValueType, bool) {
	for i, name := range valueTypeNames {
		if strings.EqualFold(s, name) {
			return ValueType(i), true
		}
	}
	return UnknownValue, false
}
