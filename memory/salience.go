package memory

import "math"

// SalienceParams bundles the decay formula's tunable constants so the
// function stays pure and exhaustively table-testable without any
// config or store dependency.
type SalienceParams struct {
	BaseTau       float64 // days
	LTPMultiplier float64
	Alpha         float64
	Beta          float64
}

// DefaultSalienceParams matches the spec's literal defaults.
func DefaultSalienceParams() SalienceParams {
	return SalienceParams{
		BaseTau:       7,
		LTPMultiplier: 1.5,
		Alpha:         0.3,
		Beta:          0.2,
	}
}

// DecayInput is everything the salience function needs to compute a new
// score for one memory row.
type DecayInput struct {
	CurrentScore   float64 // S0: importance, salience, or confidence depending on tier
	DaysSinceTouch float64 // t: days since last_accessed ?? created_at
	DaysAlive      float64 // days since created_at
	RetrievalCount int
	EmotionalTone  float64 // raw; clamped internally to [0,1]
}

// Decay applies the salience/decay formula:
//
//	t     = days since (last_accessed ?? created_at)
//	τ_eff = base_τ × ltp_multiplier^retrieval_count
//	f     = min(retrieval_count / max(days_alive, 1), 1)
//	E     = clamp(emotional_tone, 0, 1)
//	new   = clamp(S0 × exp(−t/τ_eff) × (1 + α·f) × (1 + β·E), 0, 1)
func Decay(in DecayInput, p SalienceParams) float64 {
	daysAlive := in.DaysAlive
	if daysAlive < 1 {
		daysAlive = 1
	}

	tauEff := p.BaseTau * math.Pow(p.LTPMultiplier, float64(in.RetrievalCount))
	if tauEff <= 0 {
		tauEff = p.BaseTau
	}

	f := float64(in.RetrievalCount) / daysAlive
	if f > 1 {
		f = 1
	}

	e := clamp01(in.EmotionalTone)

	newScore := in.CurrentScore * math.Exp(-in.DaysSinceTouch/tauEff) * (1 + p.Alpha*f) * (1 + p.Beta*e)
	return clamp01(newScore)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// DefaultPruneThreshold is the score below which a decayed row is
// tombstoned.
const DefaultPruneThreshold = 0.05

// LTP boost factors applied fire-and-forget on retrieval, per spec §4.5.
const (
	ltpEpisodeSalienceBoost   = 1.1
	ltpFactConfidenceDelta    = 0.02
	ltpFactSalienceBoost      = 1.1
	ltpVectorImportanceBoost  = 1.05
)

func boostCapped(v, factor float64) float64 {
	return clamp01(v * factor)
}

func boostAdd(v, delta float64) float64 {
	return clamp01(v + delta)
}
