// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wanquanY/Plan-A-sub001/pkg/catalog"
)

// ToolsRouter lists the aggregated tool catalog.
func ToolsRouter(tools ToolLister) http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		entries := tools.Tools()
		if entries == nil {
			entries = []catalog.Entry{}
		}
		writeJSON(w, http.StatusOK, toolListResponse{Tools: entries})
	})
	return r
}

type toolListResponse struct {
	Tools []catalog.Entry `json:"tools"`
}
