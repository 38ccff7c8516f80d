package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tutorhub/apiserver/internal/services"
	"github.com/tutorhub/apiserver/types"
)

const (
	defaultPage  = 1
	defaultLimit = services.DefaultPageSize
	maxLimit     = services.MaxPageSize
)

// ProfileHandler provides HTTP handlers for tutor profiles.
type ProfileHandler struct {
	profileService *services.ProfileService
	defaultLimit   int
}

// NewProfileHandler constructs a handler with the provided service.
func NewProfileHandler(profileService *services.ProfileService, pageSize int) *ProfileHandler {
	if pageSize < 1 {
		pageSize = defaultLimit
	}
	return &ProfileHandler{profileService: profileService, defaultLimit: pageSize}
}

// ProfileRouter registers profile routes on the given router.
func ProfileRouter(r chi.Router, handler *ProfileHandler, authMiddleware func(http.Handler) http.Handler) {
	tutorOnly := RequireRole(types.RoleTutor)

	r.Get("/", handler.ListProfiles)
	r.With(authMiddleware, tutorOnly).Post("/", handler.CreateProfile)
	r.With(authMiddleware, tutorOnly).Get("/mine", handler.ListMine)
	r.Route("/{profileID}", func(r chi.Router) {
		r.Get("/detail", handler.GetProfileDetail)
		r.With(authMiddleware).Put("/", handler.UpdateProfile)
		r.With(authMiddleware).Delete("/", handler.DeleteProfile)
	})
}

func (h *ProfileHandler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	filter, err := parseProfileFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, limit := parsePagination(r, h.defaultLimit)

	result, err := h.profileService.List(r.Context(), filter, page, limit)
	if err != nil {
		writeServiceError(w, r, err, "failed to list profiles")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *ProfileHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req ProfileCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.profileService.Create(r.Context(), identity, services.CreateProfileInput{
		Subject:        req.Subject,
		Bio:            req.Bio,
		Location:       req.Location,
		PricePerHour:   int64(req.PricePerHour),
		AvailableTimes: req.AvailableTimes,
	})
	if err != nil {
		writeServiceError(w, r, err, "failed to create profile")
		return
	}
	writeJSON(w, http.StatusCreated, profile)
}

func (h *ProfileHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	profiles, err := h.profileService.ListMine(r.Context(), identity.ID)
	if err != nil {
		writeServiceError(w, r, err, "failed to list profiles")
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (h *ProfileHandler) GetProfileDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := h.profileService.Detail(r.Context(), chi.URLParam(r, "profileID"))
	if err != nil {
		writeServiceError(w, r, err, "failed to fetch profile")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req ProfilePatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	input := services.PatchProfileInput{
		Subject:        req.Subject,
		Bio:            req.Bio,
		Location:       req.Location,
		AvailableTimes: req.AvailableTimes,
	}
	if req.PricePerHour != nil {
		price := int64(*req.PricePerHour)
		input.PricePerHour = &price
	}

	profile, err := h.profileService.Patch(r.Context(), identity.ID, chi.URLParam(r, "profileID"), input)
	if err != nil {
		writeServiceError(w, r, err, "failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	profile, err := h.profileService.Delete(r.Context(), identity.ID, chi.URLParam(r, "profileID"))
	if err != nil {
		// Blocking sessions are reported as a bad request on this route.
		var svcErr *services.Error
		if errors.As(err, &svcErr) && errors.Is(err, services.ErrConflict) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: svcErr.Message, Details: svcErr.Details})
			return
		}
		writeServiceError(w, r, err, "failed to delete profile")
		return
	}
	writeJSON(w, http.StatusOK, ProfileDeleteResponse{Message: "Profile deleted", Profile: profile})
}

type ProfileCreateRequest struct {
	Subject        string           `json:"subject" validate:"required"`
	Bio            string           `json:"bio"`
	Location       string           `json:"location"`
	PricePerHour   flexInt          `json:"pricePerHour" validate:"gt=0"`
	AvailableTimes []types.TimeSlot `json:"availableTimes"`
}

// ProfilePatchRequest only carries editable fields; ownership and rating
// fields in the body are ignored.
type ProfilePatchRequest struct {
	Subject        *string          `json:"subject"`
	Bio            *string          `json:"bio"`
	Location       *string          `json:"location"`
	PricePerHour   *flexInt         `json:"pricePerHour"`
	AvailableTimes []types.TimeSlot `json:"availableTimes"`
}

type ProfileDeleteResponse struct {
	Message string             `json:"message"`
	Profile types.TutorProfile `json:"profile"`
}

func parseProfileFilter(r *http.Request) (types.ProfileFilter, error) {
	query := r.URL.Query()
	filter := types.ProfileFilter{
		Subject:  strings.TrimSpace(query.Get("subject")),
		Location: strings.TrimSpace(query.Get("location")),
	}

	if raw := strings.TrimSpace(query.Get("minPrice")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return types.ProfileFilter{}, errors.New("invalid minPrice")
		}
		filter.MinPrice = &value
	}
	if raw := strings.TrimSpace(query.Get("maxPrice")); raw != "" {
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return types.ProfileFilter{}, errors.New("invalid maxPrice")
		}
		filter.MaxPrice = &value
	}
	if raw := strings.TrimSpace(query.Get("time")); raw != "" {
		slot := types.TimeSlot(strings.ToLower(raw))
		if !slot.Valid() {
			return types.ProfileFilter{}, errors.New("invalid time")
		}
		filter.TimeSlot = slot
	}
	if raw := strings.TrimSpace(query.Get("ratingMin")); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return types.ProfileFilter{}, errors.New("invalid ratingMin")
		}
		filter.MinRating = &value
	}
	return filter, nil
}

// parsePagination is lenient: an unparsable page falls back to the first
// page and an unparsable limit to the default. Clamping happens in the service.
func parsePagination(r *http.Request, fallbackLimit int) (page, limit int) {
	page = defaultPage
	limit = fallbackLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			page = value
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			limit = value
		}
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
