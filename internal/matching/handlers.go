package matching

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/pairupapp/pairup-backend/internal/auth"
	"github.com/pairupapp/pairup-backend/internal/common/utils"
	"github.com/pairupapp/pairup-backend/internal/profile"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) FindMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var dto FindMatchDTO
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
			return
		}
	}

	if err := utils.ValidateStruct(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.FindOrCreateMatch(r.Context(), userID, dto.RadiusKm)
	if err != nil {
		respondMatchingError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) RespondToMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	matchID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid match ID")
		return
	}

	var dto RespondMatchDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := utils.ValidateStruct(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	match, err := h.service.RespondToMatch(r.Context(), matchID, userID, *dto.Accept)
	if err != nil {
		respondMatchingError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, match)
}

func (h *Handler) GetMatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	matches, err := h.service.GetMatches(r.Context(), userID)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to get matches")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, matches)
}

// respondMatchingError maps service errors onto HTTP statuses. Transient
// store failures get a 503 so callers know the request is safe to resubmit.
func respondMatchingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRadius),
		errors.Is(err, ErrProfileIncomplete):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrProfileNotFound), errors.Is(err, ErrMatchNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotParticipant):
		utils.RespondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrMatchNotPending):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, profile.ErrStoreUnavailable):
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Profile store unavailable, retry later")
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
