package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/repochat/internal/auth"
	"github.com/sakif/repochat/internal/service"
)

// ChatHandler answers repository questions.
type ChatHandler struct {
	chat   *service.ChatService
	logger *slog.Logger
}

func NewChatHandler(chat *service.ChatService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, logger: logger}
}

type chatRequest struct {
	Email      string `json:"email"`
	Question   string `json:"question"`
	Repository string `json:"repository"`
}

type chatResponse struct {
	Answer string `json:"answer"`
	Logged bool   `json:"logged"`
}

// HandleChat asks the assistant. The session email, when there is one, wins
// over the body email.
//
// HTTP: POST /api/chat {"email", "question", "repository"?} → {"answer", "logged"}
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	email := req.Email
	if session, ok := auth.SessionFromContext(r.Context()); ok {
		email = session.Email
	}

	answer, err := h.chat.Ask(r.Context(), service.ChatRequest{
		Email:      email,
		Question:   req.Question,
		Repository: req.Repository,
	})
	if err != nil {
		logFailure(h.logger, "chat failed", err, slog.String("email", email))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Answer: answer.Answer, Logged: answer.Logged})
}
