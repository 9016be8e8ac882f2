package reputation

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/pairupapp/pairup-backend/internal/common/utils"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) GetReputation(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(mux.Vars(r)["userId"], 10, 64)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	useCache := r.URL.Query().Get("fresh") != "true"

	score, err := h.service.GetReputation(r.Context(), userID, useCache)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to compute reputation")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, score)
}
