package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/radieske/wager-marketplace/internal/wager-service/ledger"
	"github.com/radieske/wager-marketplace/internal/wager-service/repo"
)

// Jobs é satisfeito por *service.Service
type Jobs interface {
	SweepDue(ctx context.Context, asOf time.Time) ([]repo.Bet, error)
	Reconcile(ctx context.Context) ([]ledger.Drift, error)
}

// Scheduler agenda o sweep de apostas vencidas e a reconciliação do ledger
// Expressões cron aceitam segundos (ex.: "*/30 * * * * *") e descritores ("@every 30s")
type Scheduler struct {
	cron    *cron.Cron
	jobs    Jobs
	log     *zap.Logger
	baseCtx context.Context
	timeout time.Duration
	now     func() time.Time
}

func New(baseCtx context.Context, jobs Jobs, log *zap.Logger) *Scheduler {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if log == nil {
		log = zap.NewNop()
	}
	cl := cronLogger{log}
	return &Scheduler{
		// um sweep lento nunca se sobrepõe ao próximo
		cron:    cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		jobs:    jobs,
		log:     log,
		baseCtx: baseCtx,
		timeout: time.Minute,
		now:     time.Now,
	}
}

// Register valida e registra as duas agendas; schedule vazio desabilita o job
func (s *Scheduler) Register(sweepSpec, reconcileSpec string) error {
	if sweepSpec != "" {
		if _, err := s.cron.AddFunc(sweepSpec, func() { s.Sweep() }); err != nil {
			return fmt.Errorf("sweep schedule %q: %w", sweepSpec, err)
		}
	}
	if reconcileSpec != "" {
		if _, err := s.cron.AddFunc(reconcileSpec, func() { s.Reconcile() }); err != nil {
			return fmt.Errorf("reconcile schedule %q: %w", reconcileSpec, err)
		}
	}
	return nil
}

// Sweep resolve as apostas vencidas até agora; retorna quantas foram liquidadas
func (s *Scheduler) Sweep() int {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.timeout)
	defer cancel()

	resolved, err := s.jobs.SweepDue(ctx, s.now())
	if err != nil {
		s.log.Error("sweep failed", zap.Error(err))
		return 0
	}
	if len(resolved) > 0 {
		s.log.Info("sweep resolved bets", zap.Int("count", len(resolved)))
	}
	return len(resolved)
}

// Reconcile retorna o número de contas com divergência (-1 em erro)
func (s *Scheduler) Reconcile() int {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.timeout)
	defer cancel()

	drifts, err := s.jobs.Reconcile(ctx)
	if err != nil {
		s.log.Error("reconcile failed", zap.Error(err))
		return -1
	}
	s.log.Debug("reconcile done", zap.Int("drifts", len(drifts)))
	return len(drifts)
}

func (s *Scheduler) Start() {
	s.log.Info("cron started", zap.Int("jobs", len(s.cron.Entries())))
	s.cron.Start()
}

// Stop espera os jobs em andamento terminarem
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("cron stopped")
}
