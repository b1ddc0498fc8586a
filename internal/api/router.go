package api

import "net/http"

func Router(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)

	mux.Handle("POST /{$}", h.requireAuth(h.Submit))
	mux.Handle("GET /status", h.requireAuth(h.Status))

	return mux
}
