// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"errors"
	"net/http"

	"github.com/stacklok/toolhive-core/httperr"
)

// Server record errors carry the HTTP status the API answers with.
var (
	// ErrNotFound means no record exists for the server name.
	ErrNotFound = httperr.WithCode(errors.New("server record not found"), http.StatusNotFound)

	// ErrAlreadyExists means a record with the server name is already stored.
	ErrAlreadyExists = httperr.WithCode(errors.New("server record already exists"), http.StatusConflict)

	// ErrInvalidRecord means the record cannot be stored as given.
	ErrInvalidRecord = httperr.WithCode(errors.New("invalid server record"), http.StatusBadRequest)
)
