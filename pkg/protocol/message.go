// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package protocol implements the line-delimited JSON-RPC message format
// spoken between the agent and its MCP tool servers.
//
// A wire unit is exactly one JSON object terminated by a newline. Every unit
// decodes to one of three variants: a Request (carries an id and expects a
// Response), a Response (carries the id of the Request it answers and either
// a result or an error) or a Notification (no id, no reply).
package protocol

// JSONRPCVersion is the version tag written on every encoded message.
const JSONRPCVersion = "2.0"

// ProtocolVersion is the MCP protocol revision negotiated during initialize.
const ProtocolVersion = "2024-11-05"

// Method names understood by clients and servers.
const (
	MethodInitialize       = "initialize"
	MethodInitialized      = "notifications/initialized"
	MethodListTools        = "list_tools"
	MethodCallTool         = "call_tool"
	MethodPing             = "ping"
	MethodToolsListChanged = "notifications/tools/list_changed"
)

// Message is one decoded wire unit. The concrete type is *Request, *Response
// or *Notification.
type Message interface {
	isMessage()
}

// Request asks the peer to perform Method and reply with a Response that
// carries the same ID.
type Request struct {
	ID     int64
	Method string
	Params map[string]any
}

// Response answers the Request with the matching ID. Exactly one of Result
// and Error is set. ID is nil only for errors raised before the request id
// could be read.
type Response struct {
	ID     *int64
	Result map[string]any
	Error  *ErrorObject
}

// Notification is a one-way message; the peer never answers it.
type Notification struct {
	Method string
	Params map[string]any
}

func (*Request) isMessage()      {}
func (*Response) isMessage()     {}
func (*Notification) isMessage() {}

// NewRequest builds a request, converting params to the open mapping form.
func NewRequest(id int64, method string, params any) (*Request, error) {
	m, err := ToMap(params)
	if err != nil {
		return nil, err
	}
	return &Request{ID: id, Method: method, Params: m}, nil
}

// NewNotification builds a notification, converting params to the open
// mapping form.
func NewNotification(method string, params any) (*Notification, error) {
	m, err := ToMap(params)
	if err != nil {
		return nil, err
	}
	return &Notification{Method: method, Params: m}, nil
}

// NewResult builds a successful response for the request with the given id.
func NewResult(id int64, result any) (*Response, error) {
	m, err := ToMap(result)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return &Response{ID: &id, Result: m}, nil
}

// NewErrorResponse builds an error response. A nil id encodes as null.
func NewErrorResponse(id *int64, code ErrorCode, message string, data any) *Response {
	return &Response{ID: id, Error: &ErrorObject{Code: code, Message: message, Data: data}}
}

// IDPtr returns a pointer to id, for use in Response literals.
func IDPtr(id int64) *int64 {
	return &id
}
