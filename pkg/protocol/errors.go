// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"errors"
	"fmt"
)

// ErrorCode is a JSON-RPC error code.
type ErrorCode int

// Standard JSON-RPC error codes.
const (
	CodeParseError     ErrorCode = -32700
	CodeInvalidRequest ErrorCode = -32600
	CodeMethodNotFound ErrorCode = -32601
	CodeInvalidParams  ErrorCode = -32602
	CodeInternalError  ErrorCode = -32603
)

// Implementation-defined codes. They are synthesised locally and never
// expected on the wire from a server, but they may be re-exported to callers.
const (
	CodeRequestTimeout   ErrorCode = -32001
	CodeConnectionClosed ErrorCode = -32002

	// codeServerErrorMin and codeServerErrorMax bound the range reserved for
	// implementation-defined server errors.
	codeServerErrorMin ErrorCode = -32099
	codeServerErrorMax ErrorCode = -32000
)

// IsServerError reports whether code falls in the implementation-defined range.
func (c ErrorCode) IsServerError() bool {
	return c >= codeServerErrorMin && c <= codeServerErrorMax
}

func (c ErrorCode) String() string {
	switch c {
	case CodeParseError:
		return "parse error"
	case CodeInvalidRequest:
		return "invalid request"
	case CodeMethodNotFound:
		return "method not found"
	case CodeInvalidParams:
		return "invalid params"
	case CodeInternalError:
		return "internal error"
	case CodeRequestTimeout:
		return "request timeout"
	case CodeConnectionClosed:
		return "connection closed"
	}
	if c.IsServerError() {
		return "server error"
	}
	return fmt.Sprintf("error %d", int(c))
}

// ErrorObject is the error member of a Response. It implements error so a
// peer's error can be returned directly to callers.
type ErrorObject struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func (e *ErrorObject) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, int(e.Code), e.Message)
}

// NewError returns an ErrorObject without data.
func NewError(code ErrorCode, format string, args ...any) *ErrorObject {
	return &ErrorObject{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the JSON-RPC code from err, or CodeInternalError when err
// carries none.
func CodeOf(err error) ErrorCode {
	var obj *ErrorObject
	if errors.As(err, &obj) {
		return obj.Code
	}
	var decErr *DecodeError
	if errors.As(err, &decErr) {
		return decErr.Object.Code
	}
	return CodeInternalError
}

// DecodeError is returned by Decode when a wire unit is not a valid message.
// ID is set when the unit carried a usable request id.
type DecodeError struct {
	ID     *int64
	Object *ErrorObject
}

func (e *DecodeError) Error() string {
	return "decode message: " + e.Object.Error()
}

// Unwrap exposes the underlying error object.
func (e *DecodeError) Unwrap() error {
	return e.Object
}

// Response returns the error response a server sends back for the bad unit.
func (e *DecodeError) Response() *Response {
	return &Response{ID: e.ID, Error: e.Object}
}

func parseError(format string, args ...any) *DecodeError {
	return &DecodeError{Object: NewError(CodeParseError, format, args...)}
}

func invalidRequest(id *int64, format string, args ...any) *DecodeError {
	return &DecodeError{ID: id, Object: NewError(CodeInvalidRequest, format, args...)}
}
