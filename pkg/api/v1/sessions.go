// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/wanquanY/Plan-A-sub001/pkg/api/errors"
	"github.com/wanquanY/Plan-A-sub001/pkg/chat"
	"github.com/wanquanY/Plan-A-sub001/pkg/memory"
)

// SessionRoutes exposes session memory.
type SessionRoutes struct {
	store memory.Store
}

// SessionRouter creates the sessions router.
func SessionRouter(store memory.Store) http.Handler {
	routes := SessionRoutes{store: store}
	r := chi.NewRouter()
	r.Get("/", apierrors.ErrorHandler(routes.listSessions))
	r.Get("/{id}", apierrors.ErrorHandler(routes.getSession))
	r.Delete("/{id}", apierrors.ErrorHandler(routes.deleteSession))
	return r
}

type sessionListResponse struct {
	Sessions []string `json:"sessions"`
}

type sessionResponse struct {
	ID       string         `json:"id"`
	Messages []chat.Message `json:"messages"`
}

// listSessions returns the caller's sessions, most recent first.
func (s *SessionRoutes) listSessions(w http.ResponseWriter, r *http.Request) error {
	userID := r.Header.Get(UserIDHeader)
	if userID == "" {
		return badRequest("%s header is required", UserIDHeader)
	}
	sessions := s.store.Sessions(r.Context(), userID)
	if sessions == nil {
		sessions = []string{}
	}
	writeJSON(w, http.StatusOK, sessionListResponse{Sessions: sessions})
	return nil
}

func (s *SessionRoutes) getSession(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	messages := s.store.Read(r.Context(), id)
	if messages == nil {
		messages = []chat.Message{}
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: id, Messages: messages})
	return nil
}

func (s *SessionRoutes) deleteSession(w http.ResponseWriter, r *http.Request) error {
	s.store.Clear(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
	return nil
}
