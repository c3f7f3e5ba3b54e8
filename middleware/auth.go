package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"baseQuestAPI/internal/logger"
	"baseQuestAPI/internal/wallet"
	"baseQuestAPI/services"
)

type contextKey string

const CallerKey contextKey = "caller"

const (
	HeaderAddress   = "X-Wallet-Address"
	HeaderTimestamp = "X-Wallet-Timestamp"
	HeaderSignature = "X-Wallet-Signature"
)

// WalletAuth verifies an EIP-191 signature over wallet.AuthMessage and
// puts the resolved services.Caller into the request context.
type WalletAuth struct {
	roles  services.Roles
	maxAge time.Duration
	now    func() time.Time
}

func NewWalletAuth(roles services.Roles, maxAge time.Duration) *WalletAuth {
	return &WalletAuth{roles: roles, maxAge: maxAge, now: time.Now}
}

func (a *WalletAuth) authenticate(r *http.Request) (services.Caller, string) {
	rawAddr := r.Header.Get(HeaderAddress)
	rawTs := r.Header.Get(HeaderTimestamp)
	sig := r.Header.Get(HeaderSignature)
	if rawAddr == "" || rawTs == "" || sig == "" {
		return services.Caller{}, "wallet signature headers required"
	}

	addr, err := wallet.UnifyAddress(rawAddr)
	if err != nil {
		return services.Caller{}, "invalid wallet address"
	}
	ts, err := strconv.ParseInt(rawTs, 10, 64)
	if err != nil {
		return services.Caller{}, "invalid timestamp"
	}
	if err := wallet.VerifyAuth(addr, time.Unix(ts, 0), sig, a.now(), a.maxAge); err != nil {
		logger.WithContext(r.Context()).Debug("wallet auth rejected", zap.String("address", addr.Hex()), zap.Error(err))
		return services.Caller{}, "invalid wallet signature"
	}
	return a.roles.CallerFor(addr), ""
}

// Required rejects requests without a valid wallet signature.
func (a *WalletAuth) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, reason := a.authenticate(r)
		if reason != "" {
			respondWithError(w, http.StatusUnauthorized, reason)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

// Optional attaches the caller when the signature is valid and otherwise
// lets the request through anonymously.
func (a *WalletAuth) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(HeaderSignature) != "" {
			if caller, reason := a.authenticate(r); reason == "" {
				r = r.WithContext(WithCaller(r.Context(), caller))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func WithCaller(ctx context.Context, c services.Caller) context.Context {
	ctx = context.WithValue(ctx, CallerKey, c)
	return logger.NewContext(ctx, logger.WithContext(ctx).With(zap.String("caller", c.Address.Hex())))
}

// GetCaller extracts the authenticated wallet from context.
func GetCaller(ctx context.Context) (services.Caller, bool) {
	c, ok := ctx.Value(CallerKey).(services.Caller)
	return c, ok
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
