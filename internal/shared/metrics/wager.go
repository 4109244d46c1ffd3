package metrics

import "github.com/prometheus/client_golang/prometheus"

// Wager agrupa os coletores do core de ledger/liquidação
type Wager struct {
	AccountsFunded prometheus.Counter
	BetsCreated    prometheus.Counter
	BetsTaken      prometheus.Counter
	Settlements    *prometheus.CounterVec // por origem: manual | heuristic | sweep
	SweepOutcomes  *prometheus.CounterVec // por resultado: settled | skipped | failed
	Rejections     *prometheus.CounterVec // por kind de erro: validation | not_found | conflict | internal
	ReconcileDrift prometheus.Gauge
}

// NewWager cria e registra os coletores no registerer informado
func NewWager(reg prometheus.Registerer) *Wager {
	m := &Wager{
		AccountsFunded: prometheus.NewCounter(prometheus.CounterOpts{Name: "wager_accounts_funded_total", Help: "depósitos aplicados"}),
		BetsCreated:    prometheus.NewCounter(prometheus.CounterOpts{Name: "wager_bets_created_total", Help: "apostas criadas (stake do criador bloqueado)"}),
		BetsTaken:      prometheus.NewCounter(prometheus.CounterOpts{Name: "wager_bets_taken_total", Help: "apostas aceitas (stake do tomador bloqueado)"}),
		Settlements:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: "wager_settlements_total", Help: "liquidações por origem"}, []string{"source"}),
		SweepOutcomes:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "wager_sweep_outcomes_total", Help: "resultado por aposta no sweep"}, []string{"outcome"}),
		Rejections:     prometheus.NewCounterVec(prometheus.CounterOpts{Name: "wager_rejections_total", Help: "operações rejeitadas por tipo de erro"}, []string{"kind"}),
		ReconcileDrift: prometheus.NewGauge(prometheus.GaugeOpts{Name: "wager_reconcile_drift_accounts", Help: "contas com saldo divergente do log de auditoria"}),
	}
	reg.MustRegister(m.AccountsFunded, m.BetsCreated, m.BetsTaken, m.Settlements, m.SweepOutcomes, m.Rejections, m.ReconcileDrift)
	return m
}

// Feed agrupa os coletores do pipeline de feed (kafka -> redis -> ws)
type Feed struct {
	Consumed  prometheus.Counter
	Cached    prometheus.Counter
	Broadcast prometheus.Counter
	Errors    *prometheus.CounterVec
	WSClients prometheus.Gauge
}

func NewFeed(reg prometheus.Registerer) *Feed {
	m := &Feed{
		Consumed:  prometheus.NewCounter(prometheus.CounterOpts{Name: "feed_proc_messages_consumed_total", Help: "mensagens consumidas"}),
		Cached:    prometheus.NewCounter(prometheus.CounterOpts{Name: "feed_proc_cache_sets_total", Help: "sets no cache"}),
		Broadcast: prometheus.NewCounter(prometheus.CounterOpts{Name: "feed_proc_broadcasts_total", Help: "publicações no pub/sub"}),
		Errors:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: "feed_proc_errors_total", Help: "erros por estágio"}, []string{"stage"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{Name: "feed_ws_connections", Help: "clientes WebSocket conectados"}),
	}
	reg.MustRegister(m.Consumed, m.Cached, m.Broadcast, m.Errors, m.WSClients)
	return m
}
