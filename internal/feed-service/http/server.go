package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// SnapshotReader é satisfeito por *cache.Cache
type SnapshotReader interface {
	Bet(ctx context.Context, betID string) ([]byte, bool, error)
	Account(ctx context.Context, agentID string) ([]byte, bool, error)
}

// API expõe os snapshots ao vivo e o endpoint WebSocket
type API struct {
	Cache SnapshotReader
	WS    http.HandlerFunc
	Log   *zap.Logger
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/v1/bets/{id}/live", a.live(a.Cache.Bet))
	r.Get("/v1/agents/{id}/live", a.live(a.Cache.Account))
	if a.WS != nil {
		r.Get("/ws", a.WS)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) live(get func(context.Context, string) ([]byte, bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		b, ok, err := get(r.Context(), id)
		if err != nil {
			if a.Log != nil {
				a.Log.Error("snapshot read failed", zap.String("id", id), zap.Error(err))
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no live snapshot"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
	}
}
