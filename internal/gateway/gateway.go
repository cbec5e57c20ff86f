// Package gateway exposes the inbound webhook over HTTP. Payloads arrive
// already parsed into the dispatcher's message shape; OCR and WhatsApp
// payload unwrapping happen upstream.
package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pmonasterio/vaquita/internal/service"
)

// Server wires the message dispatcher to HTTP routes.
type Server struct {
	dispatcher *service.Dispatcher
}

func New(d *service.Dispatcher) *Server {
	return &Server{dispatcher: d}
}

// Router builds the HTTP routes: the webhook, a health probe, and
// Prometheus metrics.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/webhooks/messages", s.receiveMessage)

	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// receiveMessage handles one webhook delivery. The message is processed
// synchronously; replies go out through the dispatcher's sender, so the
// webhook body only acknowledges receipt.
func (s *Server) receiveMessage(w http.ResponseWriter, r *http.Request) {
	var msg service.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if msg.From == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing sender"})
		return
	}

	s.dispatcher.Handle(r.Context(), msg)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
