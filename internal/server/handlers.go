package server

import (
	"encoding/json"
	"net/http"

	"github.com/teemow/calassist/internal/instrumentation"
	"github.com/teemow/calassist/internal/logging"
)

const maxChatBodyBytes = 64 << 10

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response"`
}

type authStatusResponse struct {
	Authorized bool `json:"authorized"`
}

// handleChat runs one chat turn. The reply is always a 200; a body that
// does not decode is answered like an empty message.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		s.logger.Debug("undecodable chat request", logging.Err(err))
		req.Message = ""
	}

	ctx := instrumentation.WithAuditSource(r.Context(), instrumentation.AuditSourceChat)
	writeJSON(w, http.StatusOK, chatResponse{Response: s.assistant.Chat(ctx, req.Message)})
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, authStatusResponse{Authorized: s.creds.Authorized(r.Context())})
}
