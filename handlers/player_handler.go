package handlers

import (
	"context"
	"net/http"
	"time"

	"baseQuestAPI/services"
)

type PlayerHandler struct {
	game *services.GameService
}

func NewPlayerHandler(game *services.GameService) *PlayerHandler {
	return &PlayerHandler{game: game}
}

func (h *PlayerHandler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	addr, ok := pathAddress(r, "address")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid address")
		return
	}

	rec, err := h.game.GetPlayerData(ctx, addr)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, rec)
}

func (h *PlayerHandler) GetPlayerStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	addr, ok := pathAddress(r, "address")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid address")
		return
	}

	status, err := h.game.GetPlayerStatus(ctx, addr)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, status)
}

func (h *PlayerHandler) GetDayReset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	addr, ok := pathAddress(r, "address")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid address")
		return
	}

	remaining, err := h.game.GetTimeUntilDayReset(ctx, addr)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]int64{
		"time_until_day_reset": int64(remaining / time.Second),
	})
}
