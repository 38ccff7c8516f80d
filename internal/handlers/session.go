package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tutorhub/apiserver/internal/services"
	"github.com/tutorhub/apiserver/types"
)

// SessionHandler provides HTTP handlers for bookings and payments.
type SessionHandler struct {
	sessionService *services.SessionService
}

// NewSessionHandler constructs a handler with the provided service.
func NewSessionHandler(sessionService *services.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// SessionRouter registers session routes. All of them require authentication.
func SessionRouter(r chi.Router, handler *SessionHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.With(RequireRole(types.RoleStudent)).Post("/", handler.CreateSession)
	r.Get("/mine", handler.ListMine)
	r.Get("/mine/detailed", handler.ListMineDetailed)
	r.With(RequireRole(types.RoleTutor)).Post("/{sessionID}/complete", handler.CompleteSession)
}

// PaymentRouter registers the mock payment route.
func PaymentRouter(r chi.Router, handler *SessionHandler, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware, RequireRole(types.RoleStudent)).Post("/mock", handler.PayMock)
}

func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req SessionCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.sessionService.Create(r.Context(), identity, services.CreateSessionInput{
		TutorID:   req.TutorID,
		ProfileID: req.ProfileID,
		DateTime:  req.DateTime,
		Duration:  int(req.Duration),
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to create session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	sessions, err := h.sessionService.ListMine(r.Context(), identity.ID)
	if err != nil {
		writeServiceError(w, r, err, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *SessionHandler) ListMineDetailed(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	sessions, err := h.sessionService.ListMineDetailed(r.Context(), identity.ID)
	if err != nil {
		writeServiceError(w, r, err, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (h *SessionHandler) CompleteSession(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	session, err := h.sessionService.Complete(r.Context(), identity.ID, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeServiceError(w, r, err, "failed to complete session")
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Message: "Session marked as completed", Session: session})
}

func (h *SessionHandler) PayMock(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.sessionService.Pay(r.Context(), identity.ID, req.SessionID)
	if err != nil {
		writeServiceError(w, r, err, "failed to process payment")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type SessionCreateRequest struct {
	TutorID   string  `json:"tutorId" validate:"required"`
	ProfileID string  `json:"profileId"`
	DateTime  string  `json:"dateTime" validate:"required"`
	Duration  flexInt `json:"duration" validate:"min=1,max=4"`
}

type SessionResponse struct {
	Message string        `json:"message"`
	Session types.Session `json:"session"`
}

type PaymentRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
}
