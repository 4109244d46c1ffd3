package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/wager-marketplace/internal/wager-service/apperr"
	"github.com/radieske/wager-marketplace/internal/wager-service/dto"
	"github.com/radieske/wager-marketplace/internal/wager-service/ledger"
	"github.com/radieske/wager-marketplace/internal/wager-service/repo"
	"github.com/radieske/wager-marketplace/internal/wager-service/service"
)

// WagerService é o conjunto de casos de uso exposto pela API (implementado por *service.Service)
type WagerService interface {
	ConnectAgent(ctx context.Context, agentID, payoutDestination string) (ledger.Account, error)
	GetAgent(ctx context.Context, agentID string) (ledger.Account, error)
	Fund(ctx context.Context, in service.FundInput) (service.FundResult, error)
	CreateBet(ctx context.Context, in service.CreateBetInput) (repo.Bet, error)
	ListBets(ctx context.Context) ([]repo.Bet, error)
	GetBet(ctx context.Context, id int64) (repo.Bet, error)
	TakeBet(ctx context.Context, id int64, taker string) (repo.Bet, error)
	SettleBet(ctx context.Context, id int64, winner string) (repo.Bet, error)
	ResolveBet(ctx context.Context, id int64) (repo.Bet, error)
	SweepDue(ctx context.Context, asOf time.Time) ([]repo.Bet, error)
	Reconcile(ctx context.Context) ([]ledger.Drift, error)
}

// API expõe o marketplace em /api
type API struct {
	svc     WagerService
	log     *zap.Logger
	limiter *Limiter
	now     func() time.Time
}

func NewAPI(svc WagerService, log *zap.Logger, limiter *Limiter) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{svc: svc, log: log, limiter: limiter, now: time.Now}
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if a.limiter != nil {
		r.Use(a.limiter.Middleware)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/agents/connect", a.connectAgent)
		r.Get("/agents/{id}", a.getAgent)
		r.Post("/agents/{id}/fund", a.fundAgent)

		r.Get("/bets", a.listBets)
		r.Post("/bets", a.createBet)
		r.Post("/bets/resolve-due", a.resolveDue) // rota estática tem prioridade sobre {id}
		r.Get("/bets/{id}", a.getBet)
		r.Post("/bets/{id}/take", a.takeBet)
		r.Post("/bets/{id}/settle", a.settleBet)
		r.Post("/bets/{id}/resolve", a.resolveBet)

		r.Get("/admin/reconcile", a.reconcile)
	})
	return r
}

func (a *API) connectAgent(w http.ResponseWriter, r *http.Request) {
	var req dto.ConnectAgentRequest
	if !a.decode(w, r, &req) {
		return
	}
	acc, err := a.svc.ConnectAgent(r.Context(), req.AgentID, req.PayoutDestination)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromAccount(acc))
}

func (a *API) getAgent(w http.ResponseWriter, r *http.Request) {
	acc, err := a.svc.GetAgent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromAccount(acc))
}

func (a *API) fundAgent(w http.ResponseWriter, r *http.Request) {
	var req dto.FundRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.svc.Fund(r.Context(), service.FundInput{
		AgentID:  chi.URLParam(r, "id"),
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.FundResponse{Account: dto.FromAccount(res.Account), ChargeID: res.ChargeID})
}

func (a *API) listBets(w http.ResponseWriter, r *http.Request) {
	bets, err := a.svc.ListBets(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromBets(bets))
}

func (a *API) createBet(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBetRequest
	if !a.decode(w, r, &req) {
		return
	}
	bet, err := a.svc.CreateBet(r.Context(), service.CreateBetInput{
		CreatorAgent: req.CreatorAgent,
		Event:        req.Event,
		WagerAmount:  req.WagerAmount,
		Odds:         req.Odds,
		EndsAt:       req.EndsAt,
		Currency:     req.Currency,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.FromBet(bet))
}

func (a *API) getBet(w http.ResponseWriter, r *http.Request) {
	id, ok := a.betID(w, r)
	if !ok {
		return
	}
	bet, err := a.svc.GetBet(r.Context(), id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromBet(bet))
}

func (a *API) takeBet(w http.ResponseWriter, r *http.Request) {
	id, ok := a.betID(w, r)
	if !ok {
		return
	}
	var req dto.TakeBetRequest
	if !a.decode(w, r, &req) {
		return
	}
	bet, err := a.svc.TakeBet(r.Context(), id, req.SideTakenBy)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromBet(bet))
}

func (a *API) settleBet(w http.ResponseWriter, r *http.Request) {
	id, ok := a.betID(w, r)
	if !ok {
		return
	}
	var req dto.SettleBetRequest
	if !a.decode(w, r, &req) {
		return
	}
	bet, err := a.svc.SettleBet(r.Context(), id, req.Winner)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromBet(bet))
}

func (a *API) resolveBet(w http.ResponseWriter, r *http.Request) {
	id, ok := a.betID(w, r)
	if !ok {
		return
	}
	bet, err := a.svc.ResolveBet(r.Context(), id)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromBet(bet))
}

func (a *API) resolveDue(w http.ResponseWriter, r *http.Request) {
	bets, err := a.svc.SweepDue(r.Context(), a.now())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ResolveDueResponse{Resolved: dto.FromBets(bets)})
}

func (a *API) reconcile(w http.ResponseWriter, r *http.Request) {
	drifts, err := a.svc.Reconcile(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ReconcileResponse{Drifts: dto.FromDrifts(drifts)})
}

// betID converte o parâmetro da rota; id não numérico é tratado como aposta inexistente
func (a *API) betID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		a.writeError(w, apperr.ErrBetNotFound)
		return 0, false
	}
	return id, true
}

// decode aceita corpo vazio (os campos obrigatórios são validados no service)
func (a *API) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	a.writeError(w, apperr.Validationf("invalid JSON body: %v", err))
	return false
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	msg := err.Error()
	if kind == apperr.Internal {
		a.log.Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, statusFor(kind), dto.ErrorResponse{Error: msg})
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.Validation:
		return http.StatusBadRequest
	case apperr.NotFound:
		return http.StatusNotFound
	case apperr.Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
