package httpapi

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/radieske/wager-marketplace/internal/wager-service/dto"
)

// Limiter aplica um token bucket global à API; estoura com 429
type Limiter struct {
	l *rate.Limiter
}

// NewLimiter retorna nil (sem limite) quando rps <= 0
func NewLimiter(rps float64, burst int) *Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{l: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.l.Allow() {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, dto.ErrorResponse{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
