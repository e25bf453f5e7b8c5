// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wanquanY/Plan-A-sub001/pkg/connection"
	"github.com/wanquanY/Plan-A-sub001/pkg/versions"
)

// healthTimeout bounds the memory ping.
const healthTimeout = 2 * time.Second

// Pinger reports backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthcheckRouter sets up the health route. The gateway stays healthy
// while memory is unreachable; the response reports it as degraded.
func HealthcheckRouter(manager ServerManager, memory Pinger) http.Handler {
	routes := &healthcheckRoutes{manager: manager, memory: memory}
	r := chi.NewRouter()
	r.Get("/", routes.getHealthcheck)
	return r
}

type healthcheckRoutes struct {
	manager ServerManager
	memory  Pinger
}

type healthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Memory       string `json:"memory"`
	Servers      int    `json:"servers"`
	ReadyServers int    `json:"ready_servers"`
}

func (h *healthcheckRoutes) getHealthcheck(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Version: versions.GetVersionInfo().Version, Memory: "ok"}

	if h.memory != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := h.memory.Ping(ctx); err != nil {
			resp.Memory = "degraded"
		}
	}
	for _, st := range h.manager.Statuses() {
		resp.Servers++
		if st.State == connection.StateReady {
			resp.ReadyServers++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
