// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package storage_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stacklok/toolhive-core/httperr"
	"github.com/stretchr/testify/assert"

	"github.com/wanquanY/Plan-A-sub001/pkg/storage"
)

func TestRecordErrorCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		code int
	}{
		{storage.ErrNotFound, http.StatusNotFound},
		{storage.ErrAlreadyExists, http.StatusConflict},
		{storage.ErrInvalidRecord, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			t.Parallel()
			wrapped := fmt.Errorf("server %q: %w", "web", tt.err)
			assert.Equal(t, tt.code, httperr.Code(wrapped))
			assert.ErrorIs(t, wrapped, tt.err)
		})
	}
}
