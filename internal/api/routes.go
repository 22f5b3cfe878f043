package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"clinic-sync-service/internal/config"
	"clinic-sync-service/internal/facade"
	"clinic-sync-service/internal/store"
	"clinic-sync-service/internal/sync"
)

type Handler struct {
	svc   *facade.Service
	queue *sync.Manager
	cfg   config.ServerConfig
}

func NewHandler(svc *facade.Service, queue *sync.Manager, cfg config.ServerConfig) *Handler {
	return &Handler{
		svc:   svc,
		queue: queue,
		cfg:   cfg,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CorsMiddleware)

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.Get("/status", h.GetOnlineStatus)
		r.Post("/sync/trigger", h.TriggerSync)
		r.Get("/sync/status", h.GetSyncStatus)
		r.Get("/sync/pending", h.GetPendingCount)

		r.Route("/data/{partition}", func(r chi.Router) {
			r.Get("/", h.GetData)
			r.Post("/", h.SaveData)
		})
	})

	return r
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) GetOnlineStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"online": h.svc.OnlineStatus()})
}

func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	go h.queue.Flush(context.Background())
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "flush triggered"})
}

func (h *Handler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	pending, err := h.queue.PendingCount(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  h.queue.Status(),
		"online":  h.svc.OnlineStatus(),
		"pending": pending,
	})
}

func (h *Handler) GetPendingCount(w http.ResponseWriter, r *http.Request) {
	pending, err := h.svc.PendingSyncCount(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pending": pending})
}

// GetData serves a partition through the facade: remote when reachable,
// local cache otherwise. The remote endpoint mirrors the partition name.
func (h *Handler) GetData(w http.ResponseWriter, r *http.Request) {
	partition := chi.URLParam(r, "partition")

	records, err := h.svc.GetData(r.Context(), partition, "/"+partition)
	if err != nil {
		if errors.Is(err, store.ErrUnknownPartition) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) SaveData(w http.ResponseWriter, r *http.Request) {
	partition := chi.URLParam(r, "partition")

	method := r.URL.Query().Get("method")
	if method == "" {
		method = http.MethodPost
	}
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete:
	default:
		http.Error(w, "method must be POST, PUT or DELETE", http.StatusBadRequest)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	saved, err := h.svc.SaveData(r.Context(), partition, "/"+partition, payload, method)
	if err != nil {
		if errors.Is(err, store.ErrUnknownPartition) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, json.RawMessage(saved))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")

		if r.Method == "OPTIONS" {
			return
		}

		next.ServeHTTP(w, r)
	})
}

// AuthMiddleware checks the bearer token when one is configured.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.cfg.AuthToken != "" {
			if r.Header.Get("Authorization") != "Bearer "+h.cfg.AuthToken {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
