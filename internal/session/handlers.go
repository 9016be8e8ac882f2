package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/pairupapp/pairup-backend/internal/auth"
	"github.com/pairupapp/pairup-backend/internal/common/utils"
	"github.com/pairupapp/pairup-backend/internal/matching"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	var dto CreateSessionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := utils.ValidateStruct(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.service.CreateSession(r.Context(), userID, &dto)
	if err != nil {
		respondSessionError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusCreated, sess)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	sessionID, err := parseID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	sess, err := h.service.GetSession(r.Context(), sessionID, userID)
	if err != nil {
		respondSessionError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, sess)
}

func (h *Handler) ConfirmCompletion(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	sessionID, err := parseID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	var dto ConfirmCompletionDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := utils.ValidateStruct(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.ConfirmCompletion(r.Context(), sessionID, userID, dto.TargetUserID)
	if err != nil {
		respondSessionError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	sessionID, err := parseID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	var dto UpdateNotesDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	sess, err := h.service.UpdateNotes(r.Context(), sessionID, userID, dto.Notes)
	if err != nil {
		respondSessionError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, sess)
}

func (h *Handler) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing user context")
		return
	}

	sessionID, err := parseID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid session ID")
		return
	}

	var dto MarkNoShowDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := utils.ValidateStruct(&dto); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.service.MarkNoShow(r.Context(), sessionID, userID, dto.NoShowUserID)
	if err != nil {
		respondSessionError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, sess)
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidScheduledTime),
		errors.Is(err, ErrScheduledTimeNotFuture),
		errors.Is(err, ErrNotesTooLong),
		errors.Is(err, ErrCannotConfirmSelf):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotParticipant):
		utils.RespondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, matching.ErrMatchNotFound):
		utils.RespondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrMatchNotAccepted),
		errors.Is(err, ErrActiveSessionExists),
		errors.Is(err, ErrTooEarly),
		errors.Is(err, ErrSessionNotDue),
		errors.Is(err, ErrSessionTerminal):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
