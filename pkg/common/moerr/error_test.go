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

package moerr

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsMoErrCode(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		err      error
		code     uint16
		expected bool
	}{
		{
			name:     "nil error is ok",
			err:      nil,
			code:     Ok,
			expected: true,
		},
		{
			name:     "parse error",
			err:      NewParseError(ctx, "unknown opcode %s", "foo"),
			code:     ErrParseError,
			expected: true,
		},
		{
			name:     "standard error",
			err:      errors.New("some error"),
			code:     ErrInternal,
			expected: false,
		},
		{
			name:     "job failure keeps its cause",
			err:      NewJobFailed(ctx, "j1", NewRuntimeKernel(ctx, "k", "bad")),
			code:     ErrRuntimeKernel,
			expected: true,
		},
		{
			name:     "job failure code",
			err:      NewJobFailed(ctx, "j1", errors.New("x")),
			code:     ErrJobFailed,
			expected: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, IsMoErrCode(tt.err, tt.code))
		})
	}
}

func TestConvertGoError(t *testing.T) {
	ctx := context.Background()
	require.Nil(t, ConvertGoError(ctx, nil))
	require.True(t, IsMoErrCode(ConvertGoError(ctx, io.EOF), ErrUnexpectedEOF))
	require.True(t, IsMoErrCode(ConvertGoError(ctx, context.Canceled), ErrInterrupted))
	require.True(t, IsMoErrCode(ConvertGoError(ctx, errors.New("x")), ErrInternal))

	e := NewBadConfig(ctx, "reducers %d", 0)
	require.Equal(t, e, ConvertGoError(ctx, e))
	require.Equal(t, "invalid configuration: reducers 0", e.Error())
}

func TestConvertPanicError(t *testing.T) {
	ctx := context.Background()
	e := NewInvalidState(ctx, "x")
	require.Equal(t, e, ConvertPanicError(ctx, e))
	require.Equal(t, ErrInternal, ConvertPanicError(ctx, "boom").ErrorCode())
	require.True(t, errors.Is(NewJobFailed(ctx, "j", io.EOF), io.EOF))
}

func TestErrorCodes(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		err  *Error
		code uint16
	}{
		{NewInternalError(ctx, "x"), ErrInternal},
		{NewNYI(ctx, "log"), ErrNYI},
		{NewInterrupted(ctx), ErrInterrupted},
		{NewInvalidArg(ctx, "s0", "abc"), ErrInvalidArg},
		{NewUnsupportedKernel(ctx, "k", "CELLWISE"), ErrUnsupportedKernel},
		{NewKernelInstantiation(ctx, "k", "x"), ErrKernelInstantiation},
		{NewRuntimeKernel(ctx, "k", "x"), ErrRuntimeKernel},
		{NewBadConfig(ctx, "x"), ErrBadConfig},
		{NewInvalidInput(ctx, "x"), ErrInvalidInput},
		{NewParseError(ctx, "x"), ErrParseError},
		{NewInvalidState(ctx, "x"), ErrInvalidState},
		{NewNoSuchMatrix(ctx, "A"), ErrNoSuchMatrix},
		{NewUnexpectedEOF(ctx, "f"), ErrUnexpectedEOF},
		{NewSizeNotMatch(ctx, "x"), ErrSizeNotMatch},
		{NewJobFailed(ctx, "j", io.EOF), ErrJobFailed},
		{NewRuntimeClosed(ctx), ErrRuntimeClose},
	}
	for _, tt := range tests {
		require.Equal(t, tt.code, tt.err.ErrorCode(), tt.err.Error())
		_, ok := errorMsgRefer[tt.code]
		require.True(t, ok)
	}
	require.Equal(t, "job interrupted", NewInterrupted(ctx).Error())
	require.True(t, IsMoErrCode(ConvertGoError(ctx, context.DeadlineExceeded), ErrInterrupted))
}
