// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type wireRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int64          `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitzero"`
}

type wireNotification struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitzero"`
}

type wireResult struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      *int64         `json:"id"`
	Result  map[string]any `json:"result"`
}

type wireError struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      *int64       `json:"id"`
	Error   *ErrorObject `json:"error"`
}

// Encode serialises msg as a single JSON object. The output never contains a
// raw newline, so callers may frame it by appending one.
func Encode(msg Message) ([]byte, error) {
	var v any
	switch m := msg.(type) {
	case *Request:
		if m.Method == "" {
			return nil, errors.New("encode request: empty method")
		}
		v = wireRequest{JSONRPC: JSONRPCVersion, ID: m.ID, Method: m.Method, Params: m.Params}
	case *Notification:
		if m.Method == "" {
			return nil, errors.New("encode notification: empty method")
		}
		v = wireNotification{JSONRPC: JSONRPCVersion, Method: m.Method, Params: m.Params}
	case *Response:
		if m.Error != nil {
			if m.Result != nil {
				return nil, errors.New("encode response: both result and error set")
			}
			v = wireError{JSONRPC: JSONRPCVersion, ID: m.ID, Error: m.Error}
			break
		}
		if m.ID == nil {
			return nil, errors.New("encode response: result without id")
		}
		result := m.Result
		if result == nil {
			result = map[string]any{}
		}
		v = wireResult{JSONRPC: JSONRPCVersion, ID: m.ID, Result: result}
	case nil:
		return nil, errors.New("encode: nil message")
	default:
		return nil, fmt.Errorf("encode: unsupported message type %T", msg)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return data, nil
}

// Decode parses one wire unit. A malformed unit yields a *DecodeError whose
// Response method produces the reply a server should send back: ParseError
// with a null id for unparsable input, InvalidRequest for valid JSON that is
// not a well-formed message. The "jsonrpc" member is accepted when absent.
func Decode(data []byte) (Message, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, parseError("empty message")
	}
	if !json.Valid(data) {
		return nil, parseError("invalid JSON")
	}
	if data[0] != '{' {
		return nil, invalidRequest(nil, "message must be a JSON object")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, parseError("%v", err)
	}

	if v, ok := raw["jsonrpc"]; ok {
		var version string
		if err := json.Unmarshal(v, &version); err != nil || version != JSONRPCVersion {
			return nil, invalidRequest(nil, "unsupported jsonrpc version %s", string(v))
		}
	}

	id, hasID, err := decodeID(raw["id"])
	if err != nil {
		return nil, invalidRequest(nil, "%v", err)
	}

	if rawMethod, ok := raw["method"]; ok {
		var method string
		if err := json.Unmarshal(rawMethod, &method); err != nil || strings.TrimSpace(method) == "" {
			return nil, invalidRequest(id, "method must be a non-empty string")
		}
		params, err := decodeObject(raw["params"])
		if err != nil {
			return nil, invalidRequest(id, "params: %v", err)
		}
		if !hasID {
			return &Notification{Method: method, Params: params}, nil
		}
		if id == nil {
			return nil, invalidRequest(nil, "request id must not be null")
		}
		return &Request{ID: *id, Method: method, Params: params}, nil
	}

	rawResult, hasResult := raw["result"]
	rawError, hasError := raw["error"]
	switch {
	case hasResult && hasError:
		return nil, invalidRequest(id, "response carries both result and error")
	case hasError:
		var obj ErrorObject
		if err := json.Unmarshal(rawError, &obj); err != nil {
			return nil, invalidRequest(id, "error: %v", err)
		}
		return &Response{ID: id, Error: &obj}, nil
	case hasResult:
		if id == nil {
			return nil, invalidRequest(nil, "result response requires an id")
		}
		result, err := decodeObject(rawResult)
		if err != nil {
			return nil, invalidRequest(id, "result: %v", err)
		}
		if result == nil {
			result = map[string]any{}
		}
		return &Response{ID: id, Result: result}, nil
	default:
		return nil, invalidRequest(id, "message has no method, result or error")
	}
}

// decodeID reads the id member. hasID is true when the member is present,
// even if null.
func decodeID(raw json.RawMessage) (id *int64, hasID bool, err error) {
	if raw == nil {
		return nil, false, nil
	}
	if bytes.Equal(raw, []byte("null")) {
		return nil, true, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, true, fmt.Errorf("id: %w", err)
	}
	num, ok := v.(json.Number)
	if !ok {
		return nil, true, errors.New("id must be an integer")
	}
	n, err := num.Int64()
	if err != nil {
		return nil, true, fmt.Errorf("id must be an integer: %s", num)
	}
	return &n, true, nil
}

func decodeObject(raw json.RawMessage) (map[string]any, error) {
	if raw == nil || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.New("must be a JSON object")
	}
	return m, nil
}
