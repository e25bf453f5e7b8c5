// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package v1

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stacklok/toolhive-core/httperr"

	"github.com/wanquanY/Plan-A-sub001/pkg/agent"
	apierrors "github.com/wanquanY/Plan-A-sub001/pkg/api/errors"
	"github.com/wanquanY/Plan-A-sub001/pkg/chat"
)

// ChatRoutes defines the chat endpoint.
type ChatRoutes struct {
	runner TurnRunner
}

// ChatRouter creates the chat router.
func ChatRouter(runner TurnRunner) http.Handler {
	routes := ChatRoutes{runner: runner}
	r := chi.NewRouter()
	r.Post("/", apierrors.ErrorHandler(routes.postChat))
	return r
}

type chatRequest struct {
	// SessionID continues a conversation. A new session is started when empty.
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string       `json:"session_id"`
	Message   chat.Message `json:"message"`
}

func (s *ChatRoutes) postChat(w http.ResponseWriter, r *http.Request) error {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Message) == "" {
		return badRequest("message is required")
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	reply, err := s.runner.RunTurn(r.Context(), req.SessionID, r.Header.Get(UserIDHeader), req.Message)
	if err != nil {
		return turnError(err)
	}
	writeJSON(w, http.StatusOK, chatResponse{SessionID: req.SessionID, Message: reply})
	return nil
}

// turnError attaches the HTTP status matching an agent failure.
func turnError(err error) error {
	switch {
	case errors.Is(err, agent.ErrTurnTimeout):
		return httperr.WithCode(err, http.StatusGatewayTimeout)
	case errors.Is(err, agent.ErrModelUnavailable):
		return httperr.WithCode(err, http.StatusBadGateway)
	default:
		return err
	}
}
