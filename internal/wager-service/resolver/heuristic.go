package resolver

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/radieske/wager-marketplace/internal/wager-service/repo"
)

var (
	upsideLexicon   = regexp.MustCompile(`above|higher|rise|increase|growth|bull`)
	downsideLexicon = regexp.MustCompile(`below|lower|drop|decrease|decline|bear`)
)

const (
	lexiconWeight  = 0.1
	stakeCap       = 0.15
	stakeDivisor   = 2000.0
	stakeThreshold = 0.02
)

// Heuristic é o resolvedor determinístico: sentimento do texto + tamanho do stake + seed do snapshot
type Heuristic struct{}

func (Heuristic) Name() string { return "heuristic" }

func (Heuristic) Resolve(b repo.Bet) Outcome {
	var (
		signals   []string
		sentiment float64
	)
	text := strings.ToLower(b.Event)

	if upsideLexicon.MatchString(text) {
		sentiment += lexiconWeight
		signals = append(signals, "upside momentum")
	}
	if downsideLexicon.MatchString(text) {
		sentiment -= lexiconWeight
		signals = append(signals, "downside pressure")
	}

	stake := math.Min(stakeCap, b.WagerAmount.InexactFloat64()/stakeDivisor)
	if stake > stakeThreshold {
		sentiment += stake
		signals = append(signals, "high-stake confidence")
	}

	seed := hashSnapshot(fmt.Sprintf("%s|%s|%s|%s|%s",
		b.Event, b.EndsAtRaw, b.WagerAmount.String(), b.Odds.String(), b.CreatorAgent))
	base := float64(seed%1000) / 1000

	// conversões explícitas impedem FMA e mantêm o resultado idêntico entre arquiteturas
	spread := float64((base - 0.5) * 0.2)
	p := math.Min(0.9, math.Max(0.1, float64(0.5+sentiment)+spread))

	winner := b.SideTakenBy
	if base < p {
		winner = b.CreatorAgent
	}
	confidence := int(math.Floor(float64(p*100) + 0.5))

	if len(signals) == 0 {
		return Outcome{
			Winner:    winner,
			Rationale: fmt.Sprintf("AI resolver forecasted %d%% confidence for %s.", confidence, winner),
		}
	}
	return Outcome{
		Winner: winner,
		Rationale: fmt.Sprintf("AI resolver noted %s and forecasted %d%% confidence for %s.",
			strings.Join(signals, ", "), confidence, winner),
	}
}

// hashSnapshot: h = h*31 + c sobre unidades UTF-16, com overflow de int32; retorna |h|
func hashSnapshot(s string) int64 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}
