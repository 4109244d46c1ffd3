package resolver

import "github.com/radieske/wager-marketplace/internal/wager-service/repo"

// Outcome é o vencedor escolhido e a justificativa gravada em resolutionSummary
type Outcome struct {
	Winner    string
	Rationale string
}

// Strategy decide o vencedor de uma aposta active com tomador.
// Implementações devem ser puras: o mesmo snapshot sempre gera o mesmo Outcome.
type Strategy interface {
	Name() string
	Resolve(b repo.Bet) Outcome
}

const ManualRationale = "Manual settlement."

// Manual usa o vencedor informado pelo chamador
type Manual struct {
	Winner    string
	Rationale string
}

func (Manual) Name() string { return "manual" }

func (m Manual) Resolve(repo.Bet) Outcome {
	r := m.Rationale
	if r == "" {
		r = ManualRationale
	}
	return Outcome{Winner: m.Winner, Rationale: r}
}
