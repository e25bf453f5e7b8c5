// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stacklok/toolhive-core/httperr"

	apierrors "github.com/wanquanY/Plan-A-sub001/pkg/api/errors"
	"github.com/wanquanY/Plan-A-sub001/pkg/config"
	"github.com/wanquanY/Plan-A-sub001/pkg/connection"
	"github.com/wanquanY/Plan-A-sub001/pkg/logger"
	"github.com/wanquanY/Plan-A-sub001/pkg/storage"
)

// ServerRoutes manages tool server connections.
type ServerRoutes struct {
	manager   ServerManager
	store     storage.ServerStore
	separator string
}

// ServerRouter creates the servers router. Servers added through the API
// are persisted in store.
func ServerRouter(manager ServerManager, store storage.ServerStore, separator string) http.Handler {
	if store == nil {
		store = &storage.NoopServerStore{}
	}
	routes := ServerRoutes{manager: manager, store: store, separator: separator}
	r := chi.NewRouter()
	r.Get("/", apierrors.ErrorHandler(routes.listServers))
	r.Post("/", apierrors.ErrorHandler(routes.addServer))
	r.Delete("/{name}", apierrors.ErrorHandler(routes.removeServer))
	r.Post("/{name}/refresh", apierrors.ErrorHandler(routes.refreshServer))
	return r
}

type serverListResponse struct {
	Servers []connection.Status `json:"servers"`
}

func (s *ServerRoutes) listServers(w http.ResponseWriter, _ *http.Request) error {
	writeJSON(w, http.StatusOK, serverListResponse{Servers: s.manager.Statuses()})
	return nil
}

// addServer stores the record and connects it. A failed connection still
// answers 201; the returned status carries the error.
func (s *ServerRoutes) addServer(w http.ResponseWriter, r *http.Request) error {
	var sc config.ServerConfig
	if err := decodeJSON(w, r, &sc); err != nil {
		return err
	}
	if err := config.NewValidator().ValidateServer(sc, s.separator); err != nil {
		return httperr.WithCode(err, http.StatusBadRequest)
	}

	ctx := r.Context()
	if err := s.store.Create(ctx, sc); err != nil {
		return err
	}

	if err := s.manager.AddServer(ctx, sc); err != nil {
		if errors.Is(err, connection.ErrAlreadyExists) {
			if delErr := s.store.Delete(ctx, sc.Name); delErr != nil {
				logger.Warnw("failed to roll back server record", "server", sc.Name, "error", delErr)
			}
			return httperr.WithCode(err, http.StatusConflict)
		}
		logger.Warnw("added server failed to connect", "server", sc.Name, "error", err)
	}

	status, _ := s.status(sc.Name)
	writeJSON(w, http.StatusCreated, status)
	return nil
}

func (s *ServerRoutes) removeServer(w http.ResponseWriter, r *http.Request) error {
	name := chi.URLParam(r, "name")
	ctx := r.Context()

	managerErr := s.manager.RemoveServer(ctx, name)
	if managerErr != nil && !errors.Is(managerErr, connection.ErrUnknownServer) {
		return managerErr
	}
	storeErr := s.store.Delete(ctx, name)
	if storeErr != nil && !errors.Is(storeErr, storage.ErrNotFound) {
		return storeErr
	}
	if managerErr != nil && storeErr != nil {
		return httperr.WithCode(fmt.Errorf("server %q not found", name), http.StatusNotFound)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *ServerRoutes) refreshServer(w http.ResponseWriter, r *http.Request) error {
	name := chi.URLParam(r, "name")
	status, ok := s.status(name)
	if !ok {
		return httperr.WithCode(fmt.Errorf("server %q not found", name), http.StatusNotFound)
	}
	if err := s.manager.RefreshCatalog(r.Context(), name); err != nil {
		return httperr.WithCode(fmt.Errorf("refreshing %s: %w", name, err), http.StatusBadGateway)
	}
	writeJSON(w, http.StatusOK, status)
	return nil
}

func (s *ServerRoutes) status(name string) (connection.Status, bool) {
	for _, st := range s.manager.Statuses() {
		if st.Name == name {
			return st, true
		}
	}
	return connection.Status{}, false
}
