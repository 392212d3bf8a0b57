// Copyright 2021 - 2022 Matrix Origin
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

package moerr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"sync/atomic"
)

const (
	// 0 - 99 is OK. They do not contain info, and are special handled
	// using a static instance, no alloc.
	Ok             uint16 = 0
	OkExpectedEOF  uint16 = 2 // Expected End Of File
	OkMax          uint16 = 99
	ErrStart       uint16 = 20100
	ErrInternal    uint16 = 20101
	ErrNYI         uint16 = 20102
	ErrInterrupted uint16 = 20104

	// Group 2: arguments and kernels
	ErrInvalidArg          uint16 = 20203
	ErrUnsupportedKernel   uint16 = 20210
	ErrKernelInstantiation uint16 = 20211
	ErrRuntimeKernel       uint16 = 20212

	// Group 3: invalid input
	ErrBadConfig    uint16 = 20300
	ErrInvalidInput uint16 = 20301
	ErrParseError   uint16 = 20303

	// Group 4: unexpected state and io errors
	ErrInvalidState  uint16 = 20400
	ErrNoSuchMatrix  uint16 = 20403
	ErrUnexpectedEOF uint16 = 20407
	ErrSizeNotMatch  uint16 = 20409

	// Group 5: job execution
	ErrJobFailed    uint16 = 20500
	ErrRuntimeClose uint16 = 20502

	// Group End: max value of MOErrorCode
	ErrEnd uint16 = 65535
)

type moErrorMsgItem struct {
	errorMsgOrFormat string
}

var errorMsgRefer = map[uint16]moErrorMsgItem{
	OkExpectedEOF: {"ExpectedEOF"},

	// Group 1: Internal errors
	ErrStart:       {"internal error: error code start"},
	ErrInternal:    {"internal error: %s"},
	ErrNYI:         {"%s is not yet implemented"},
	ErrInterrupted: {"job interrupted"},

	// Group 2: arguments and kernels
	ErrInvalidArg:          {"invalid argument %s, bad value %s"},
	ErrUnsupportedKernel:   {"kernel %s of family %s is not supported"},
	ErrKernelInstantiation: {"cannot instantiate kernel %s: %s"},
	ErrRuntimeKernel:       {"kernel %s failed: %s"},

	// Group 3: invalid input
	ErrBadConfig:    {"invalid configuration: %s"},
	ErrInvalidInput: {"invalid input: %s"},
	ErrParseError:   {"invalid instruction: %s"},

	// Group 4: unexpected state and io errors
	ErrInvalidState:  {"invalid state %s"},
	ErrNoSuchMatrix:  {"no such matrix '%s'"},
	ErrUnexpectedEOF: {"unexpected end of file %s"},
	ErrSizeNotMatch:  {"size not match %s"},

	// Group 5: job execution
	ErrJobFailed:    {"job %s failed: %s"},
	ErrRuntimeClose: {"runtime is closed"},

	// Group End: max value of MOErrorCode
	ErrEnd: {"internal error: end of errcode code"},
}

func newError(ctx context.Context, code uint16, args ...any) *Error {
	item, has := errorMsgRefer[code]
	if !has {
		panic(NewInternalError(ctx, "not exist MOErrorCode: %d", code))
	}
	if len(args) == 0 {
		return &Error{
			code:    code,
			message: item.errorMsgOrFormat,
		}
	}
	return &Error{
		code:    code,
		message: fmt.Sprintf(item.errorMsgOrFormat, args...),
	}
}

type Error struct {
	code    uint16
	message string
	detail  string
	cause   error
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) Detail() string {
	return e.detail
}

func (e *Error) Display() string {
	if len(e.detail) == 0 {
		return e.message
	}
	return fmt.Sprintf("%s: %s", e.message, e.detail)
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

// Unwrap returns the error that caused a job level failure, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

func (e *Error) Succeeded() bool {
	return e.code < OkMax
}

// IsMoErrCode reports whether e, or any error it wraps, carries code rc.
func IsMoErrCode(e error, rc uint16) bool {
	if e == nil {
		return rc == Ok
	}
	var me *Error
	if !errors.As(e, &me) {
		// This is not a moerr
		return false
	}
	for {
		if me.code == rc {
			return true
		}
		var next *Error
		if me.cause == nil || !errors.As(me.cause, &next) {
			return false
		}
		me = next
	}
}

func DowncastError(e error) *Error {
	if err, ok := e.(*Error); ok {
		return err
	}
	return newError(Context(), ErrInternal, fmt.Sprintf("downcast error failed: %v", e))
}

// ConvertPanicError converts a runtime panic to internal error.
func ConvertPanicError(ctx context.Context, v interface{}) *Error {
	if e, ok := v.(*Error); ok {
		return e
	}
	return newError(ctx, ErrInternal, fmt.Sprintf("panic %v: %s", v, debug.Stack()))
}

// ConvertGoError converts a go error into mo error.
// Note here we must return error, because nil error
// is the same as nil *Error -- Go strangeness.
func ConvertGoError(ctx context.Context, err error) error {
	// nil is nil
	if err == nil {
		return err
	}

	// already a moerr, return it as is
	if _, ok := err.(*Error); ok {
		return err
	}

	// Convert a few well known os/go error.
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		// if io.EOF reaches here, we believe it is not expected.
		return NewUnexpectedEOF(ctx, err.Error())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return NewInterrupted(ctx)
	}

	return NewInternalError(ctx, "convert go error to mo error %v", err)
}

var errOkExpectedEOF = Error{code: OkExpectedEOF, message: "ExpectedEOF"}

func GetOkExpectedEOF() *Error {
	return &errOkExpectedEOF
}

func NewInternalError(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInternal, xmsg)
}

func NewNYI(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrNYI, xmsg)
}

func NewInterrupted(ctx context.Context) *Error {
	return newError(ctx, ErrInterrupted)
}

func NewInvalidArg(ctx context.Context, arg string, val any) *Error {
	return newError(ctx, ErrInvalidArg, arg, fmt.Sprintf("%v", val))
}

func NewUnsupportedKernel(ctx context.Context, name string, family string) *Error {
	return newError(ctx, ErrUnsupportedKernel, name, family)
}

func NewKernelInstantiation(ctx context.Context, name string, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrKernelInstantiation, name, xmsg)
}

func NewRuntimeKernel(ctx context.Context, name string, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrRuntimeKernel, name, xmsg)
}

func NewBadConfig(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrBadConfig, xmsg)
}

func NewInvalidInput(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInvalidInput, xmsg)
}

func NewParseError(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrParseError, xmsg)
}

func NewInvalidState(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInvalidState, xmsg)
}

func NewNoSuchMatrix(ctx context.Context, name string) *Error {
	return newError(ctx, ErrNoSuchMatrix, name)
}

func NewUnexpectedEOF(ctx context.Context, f string) *Error {
	return newError(ctx, ErrUnexpectedEOF, f)
}

func NewSizeNotMatch(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrSizeNotMatch, xmsg)
}

// NewJobFailed wraps the first task failure of a job. The cause stays reachable
// through errors.Unwrap and IsMoErrCode.
func NewJobFailed(ctx context.Context, jobID string, cause error) *Error {
	msg := "unknown cause"
	if cause != nil {
		msg = cause.Error()
	}
	err := newError(ctx, ErrJobFailed, jobID, msg)
	err.cause = cause
	return err
}

func NewRuntimeClosed(ctx context.Context) *Error {
	return newError(ctx, ErrRuntimeClose)
}

var contextFunc atomic.Value

func SetContextFunc(f func() context.Context) {
	contextFunc.Store(f)
}

func Context() context.Context {
	return contextFunc.Load().(func() context.Context)()
}

func init() {
	SetContextFunc(func() context.Context { return context.Background() })
}
