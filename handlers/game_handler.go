package handlers

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"baseQuestAPI/internal/chain"
	"baseQuestAPI/middleware"
	"baseQuestAPI/services"
)

type GameHandler struct {
	game *services.GameService
}

func NewGameHandler(game *services.GameService) *GameHandler {
	return &GameHandler{game: game}
}

func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	info, err := h.game.GetGameInfo(ctx)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, info)
}

type joinRequest struct {
	TxHash    string `json:"tx_hash"`
	AmountWei string `json:"amount_wei"`
}

func (h *GameHandler) JoinWeek(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	caller, ok := middleware.GetCaller(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Wallet not authenticated")
		return
	}

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	proof := chain.Payment{TxHash: strings.TrimSpace(req.TxHash)}
	if req.AmountWei != "" {
		amount, ok := new(big.Int).SetString(req.AmountWei, 10)
		if !ok {
			respondWithError(w, http.StatusBadRequest, "amount_wei must be a base 10 integer")
			return
		}
		proof.AmountWei = amount
	}
	if proof.TxHash == "" && proof.AmountWei == nil {
		respondWithError(w, http.StatusBadRequest, "tx_hash is required")
		return
	}

	rec, err := h.game.JoinWithPayment(ctx, caller, proof)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, rec)
}

func (h *GameHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var viewer *common.Address
	if caller, ok := middleware.GetCaller(ctx); ok {
		viewer = &caller.Address
	}

	board, err := h.game.GetLeaderboard(ctx, viewer)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "arrays" {
		respondWithJSON(w, http.StatusOK, board.Arrays())
		return
	}
	respondWithJSON(w, http.StatusOK, board)
}

func (h *GameHandler) GetWeekSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	wk, err := strconv.ParseUint(mux.Vars(r)["week"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid week")
		return
	}

	snap, err := h.game.GetWeekSnapshot(ctx, wk)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, snap)
}

func (h *GameHandler) GetEvents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	since, _ := strconv.ParseInt(q.Get("since"), 10, 64)
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 100
	}

	list, err := h.game.Events(ctx, since, limit)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, list)
}
