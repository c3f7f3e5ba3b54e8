package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"baseQuestAPI/internal/logger"
	"baseQuestAPI/internal/wallet"
	"baseQuestAPI/middleware"
	"baseQuestAPI/services"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

type errorMapping struct {
	target error
	status int
	reason string
}

var serviceErrors = []errorMapping{
	{services.ErrInsufficientFee, http.StatusPaymentRequired, "insufficient_fee"},
	{services.ErrPaymentRejected, http.StatusPaymentRequired, "payment_rejected"},
	{services.ErrAlreadyJoined, http.StatusConflict, "already_joined"},
	{services.ErrTaskInactive, http.StatusConflict, "task_inactive"},
	{services.ErrSettlementAlreadyDone, http.StatusConflict, "settlement_done"},
	{services.ErrNotActive, http.StatusForbidden, "not_active"},
	{services.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{services.ErrTaskNotFound, http.StatusNotFound, "task_not_found"},
	{services.ErrNotFound, http.StatusNotFound, "not_found"},
	{services.ErrDailyLimitReached, http.StatusTooManyRequests, "daily_limit"},
	{services.ErrInvalidTask, http.StatusBadRequest, "invalid_task"},
}

// respondWithServiceError maps game rule errors to status codes. Anything
// else is logged and reported as a 500.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			middleware.RecordRejection(m.reason)
			respondWithError(w, m.status, err.Error())
			return
		}
	}

	logger.WithContext(r.Context()).Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	respondWithError(w, http.StatusInternalServerError, "Internal server error")
}

func pathAddress(r *http.Request, name string) (common.Address, bool) {
	addr, err := wallet.UnifyAddress(mux.Vars(r)[name])
	return addr, err == nil
}

func pathInt(r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(mux.Vars(r)[name])
	return v, err == nil && v >= 0
}
