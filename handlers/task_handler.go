package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"baseQuestAPI/internal/task"
	"baseQuestAPI/internal/wallet"
	"baseQuestAPI/middleware"
	"baseQuestAPI/services"
)

type TaskHandler struct {
	game *services.GameService
}

func NewTaskHandler(game *services.GameService) *TaskHandler {
	return &TaskHandler{game: game}
}

func (h *TaskHandler) GetCurrentTasks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	wk, tasks, err := h.game.GetCurrentWeekTasks(ctx)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"week":  wk,
		"tasks": tasks,
	})
}

func (h *TaskHandler) GetWeekTasks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	wk, err := strconv.ParseUint(mux.Vars(r)["week"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid week")
		return
	}

	tasks, err := h.game.GetTasks(ctx, wk)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tasks)
}

// GetDailyTasks serves the caller's daily pick, or the pick of ?address=.
func (h *TaskHandler) GetDailyTasks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	caller, authed := middleware.GetCaller(ctx)
	addr := caller.Address
	if raw := q.Get("address"); raw != "" {
		parsed, err := wallet.UnifyAddress(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid address")
			return
		}
		addr = parsed
	} else if !authed {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'address' is required")
		return
	}

	count := 3
	if raw := q.Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid count")
			return
		}
		count = n
	}

	tasks, err := h.game.DailyTasks(ctx, addr, count)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tasks)
}

type completeRequest struct {
	Attestation *wallet.Attestation `json:"attestation,omitempty"`
}

func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	caller, ok := middleware.GetCaller(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Wallet not authenticated")
		return
	}
	taskID, ok := pathInt(r, "taskID")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid task id")
		return
	}

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	res, err := h.game.CompleteTask(ctx, caller, caller.Address, taskID, req.Attestation)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (h *TaskHandler) AttestTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	caller, ok := middleware.GetCaller(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Wallet not authenticated")
		return
	}
	player, ok := pathAddress(r, "player")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid player address")
		return
	}
	taskID, ok := pathInt(r, "taskID")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid task id")
		return
	}

	res, err := h.game.AttestTask(ctx, caller, player, taskID)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, res)
}

func (h *TaskHandler) AddTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	caller, ok := middleware.GetCaller(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Wallet not authenticated")
		return
	}

	var req task.NewTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := h.game.AddTask(ctx, caller, req)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *TaskHandler) SetTaskActive(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	caller, ok := middleware.GetCaller(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Wallet not authenticated")
		return
	}
	taskID, ok := pathInt(r, "taskID")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid task id")
		return
	}

	var req task.SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.game.SetTaskActive(ctx, caller, taskID, req.IsActive)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}
