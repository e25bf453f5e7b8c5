// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package errors provides HTTP error handling utilities for the API.
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/stacklok/toolhive-core/httperr"

	"github.com/wanquanY/Plan-A-sub001/pkg/logger"
)

// HandlerWithError is an HTTP handler that can return an error.
type HandlerWithError func(http.ResponseWriter, *http.Request) error

// Response is the JSON body written for failed requests.
type Response struct {
	Error string `json:"error"`
}

// ErrorHandler wraps a HandlerWithError and converts returned errors into
// JSON error responses. The status comes from httperr.Code. Server errors
// are logged and answered with the generic status text only.
//
// Usage:
//
//	r.Get("/{id}", apierrors.ErrorHandler(routes.getSession))
func ErrorHandler(fn HandlerWithError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		code := httperr.Code(err)
		if code == 0 {
			code = http.StatusInternalServerError
		}

		msg := err.Error()
		if code >= http.StatusInternalServerError {
			logger.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "status", code, "error", err)
			msg = http.StatusText(code)
		}
		Write(w, code, msg)
	}
}

// Write sends a JSON error body with the given status.
func Write(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(Response{Error: msg})
}
