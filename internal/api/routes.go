package api

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Processes
	mux.Handle("GET /api/v1/processes/{id}", chain(http.HandlerFunc(h.GetProcess)))
	if h.rescheduler != nil {
		mux.Handle("POST /api/v1/processes/{id}/reschedule", chain(http.HandlerFunc(h.RescheduleProcess)))
	}

	// Messages
	mux.Handle("POST /api/v1/messages", chain(http.HandlerFunc(h.SubmitMessage)))

	// Definitions
	mux.Handle("GET /api/v1/definitions", chain(http.HandlerFunc(h.ListDefinitions)))
	mux.Handle("GET /api/v1/definitions/{name}", chain(http.HandlerFunc(h.GetDefinition)))

	// Health и metrics
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}

// Healthz сообщает, что узел жив и его зависимости доступны.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	for _, name := range slices.Sorted(maps.Keys(h.checks)) {
		if err := h.checks[name](); err != nil {
			Unavailable(w, fmt.Sprintf("%s: %v", name, err))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "ok %s %s", h.node, time.Since(h.startedAt).Round(time.Second))
}
