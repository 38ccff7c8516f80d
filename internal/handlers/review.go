package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tutorhub/apiserver/internal/services"
	"github.com/tutorhub/apiserver/types"
)

// ReviewHandler provides HTTP handlers for reviews.
type ReviewHandler struct {
	reviewService *services.ReviewService
}

func NewReviewHandler(reviewService *services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

// ReviewRouter registers review routes on the given router.
func ReviewRouter(r chi.Router, handler *ReviewHandler, authMiddleware func(http.Handler) http.Handler) {
	r.With(authMiddleware, RequireRole(types.RoleStudent)).Post("/", handler.CreateReview)
	r.Get("/{tutorID}", handler.ListByTutor)
}

func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req ReviewCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	review, err := h.reviewService.Create(r.Context(), identity.ID, services.CreateReviewInput{
		SessionID: req.SessionID,
		Rating:    int(req.Rating),
		Comment:   req.Comment,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to create review")
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (h *ReviewHandler) ListByTutor(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.reviewService.ListByTutor(r.Context(), chi.URLParam(r, "tutorID"))
	if err != nil {
		writeServiceError(w, r, err, "failed to list reviews")
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}

type ReviewCreateRequest struct {
	SessionID string  `json:"sessionId" validate:"required"`
	Rating    flexInt `json:"rating" validate:"min=1,max=5"`
	Comment   string  `json:"comment"`
}
