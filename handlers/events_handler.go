package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"baseQuestAPI/internal/logger"
	"baseQuestAPI/services"
)

type EventsHandler struct {
	hub      *services.EventHub
	upgrader websocket.Upgrader
}

// NewEventsHandler accepts websocket upgrades from allowedOrigins; "*"
// allows any origin.
func NewEventsHandler(hub *services.EventHub, allowedOrigins []string) *EventsHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &EventsHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

func (h *EventsHandler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithContext(r.Context()).Warn("could not upgrade connection", zap.Error(err))
		return
	}
	h.hub.Serve(conn)
}
