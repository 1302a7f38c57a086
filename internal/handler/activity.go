package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/repochat/internal/model"
	"github.com/sakif/repochat/internal/service"
)

// debugQuestion is logged by the debug harness when no question is given.
const debugQuestion = "Debug test question"

// ActivityHandler serves the activity logging endpoints. Every write goes
// through the one ActivityService.Log entry point.
type ActivityHandler struct {
	activity *service.ActivityService
	signups  *service.SignupService
	logger   *slog.Logger
}

func NewActivityHandler(activity *service.ActivityService, signups *service.SignupService, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{
		activity: activity,
		signups:  signups,
		logger:   logger,
	}
}

type emailRequest struct {
	Email string `json:"email"`
}

type loginRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type chatLogRequest struct {
	Email    string `json:"email"`
	Question string `json:"question"`
}

// HandleCheckUserExists reports whether an email has signed up.
//
// HTTP: POST /api/check-user-exists {"email": "..."} → {"exists": bool}
func (h *ActivityHandler) HandleCheckUserExists(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	exists, err := h.activity.UserExists(r.Context(), req.Email)
	if err != nil {
		logFailure(h.logger, "check-user-exists failed", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

// HandleLogLogin records a named login.
//
// HTTP: POST /api/log-login {"email", "name"}
func (h *ActivityHandler) HandleLogLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	h.log(w, r, model.Event{
		Kind:      model.EventLogin,
		Email:     req.Email,
		Name:      req.Name,
		IPAddress: clientIP(r),
	})
}

// HandleLogLoginInfo records a login known only by email.
//
// HTTP: POST /api/log-login-info {"email"}
func (h *ActivityHandler) HandleLogLoginInfo(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	h.log(w, r, model.Event{
		Kind:      model.EventLoginInfo,
		Email:     req.Email,
		IPAddress: clientIP(r),
	})
}

// HandleLogChat records a chat question without asking it.
//
// HTTP: POST /api/log-chat {"email", "question"}
func (h *ActivityHandler) HandleLogChat(w http.ResponseWriter, r *http.Request) {
	var req chatLogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	h.log(w, r, model.Event{
		Kind:     model.EventChatQuestion,
		Email:    req.Email,
		Question: req.Question,
	})
}

// HandleDebugLogChat writes one chat row and reports the raw outcome, so an
// operator can check the sink credentials from a browser or curl. A sink
// failure is part of the answer, not an HTTP error.
//
// HTTP: POST /api/debug/log-chat {"email", "question"?}
func (h *ActivityHandler) HandleDebugLogChat(w http.ResponseWriter, r *http.Request) {
	var req chatLogRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Question == "" {
		req.Question = debugQuestion
	}

	res := h.activity.Log(r.Context(), model.Event{
		Kind:     model.EventChatQuestion,
		Email:    req.Email,
		Question: req.Question,
	})
	if res.IsValidation() {
		writeError(w, res.Err)
		return
	}

	body := map[string]any{"success": res.Success}
	if res.Err != nil {
		body["error"] = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

// HandleUserData stores a signup.
//
// HTTP: POST /api/user-data {"name", "email", "username", "organization", "purpose"}
func (h *ActivityHandler) HandleUserData(w http.ResponseWriter, r *http.Request) {
	var req model.SignupRecord
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.signups.Register(r.Context(), req); err != nil {
		logFailure(h.logger, "user-data failed", err, slog.String("email", req.Email))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// HandleEnsureSheetStructure creates any missing tabs and header rows.
//
// HTTP: GET /api/ensure-sheet-structure → {"success": true, "message": "..."}
func (h *ActivityHandler) HandleEnsureSheetStructure(w http.ResponseWriter, r *http.Request) {
	report, err := h.activity.EnsureStructure(r.Context())
	if err != nil {
		logFailure(h.logger, "ensure-sheet-structure failed", err)
		writeError(w, err)
		return
	}

	message := "Sheet structure already up to date"
	if report.Changed() {
		message = "Sheet structure created"
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": message})
}

func (h *ActivityHandler) log(w http.ResponseWriter, r *http.Request, ev model.Event) {
	res := h.activity.Log(r.Context(), ev)
	if !res.Success {
		logFailure(h.logger, "activity log failed", res.Err, slog.String("kind", string(ev.Kind)))
		writeError(w, res.Err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
