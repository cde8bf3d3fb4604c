package models

import (
	"fmt"
	"math"
	"math/rand"
)

// BetaBernoulliHypers holds the Beta(alpha, beta) prior on a per-cell
// Bernoulli success probability.
type BetaBernoulliHypers struct {
	Alpha float64
	Beta  float64
}

// NewBetaBernoulliHypers returns hypers with the given Beta prior shape
// parameters. Both must be strictly positive.
func NewBetaBernoulliHypers(alpha, beta float64) *BetaBernoulliHypers {
	return &BetaBernoulliHypers{Alpha: alpha, Beta: beta}
}

func (h *BetaBernoulliHypers) CreateGroup(rng *rand.Rand) Suffstat {
	return &BetaBernoulliSuffstat{}
}

func (h *BetaBernoulliHypers) GetHP() HyperBag {
	return HyperBag{"alpha": h.Alpha, "beta": h.Beta}
}

func (h *BetaBernoulliHypers) SetHP(b HyperBag) {
	if v, ok := b["alpha"]; ok {
		h.Alpha = v
	}
	if v, ok := b["beta"]; ok {
		h.Beta = v
	}
}

func (h *BetaBernoulliHypers) GetHPMutator(key string) (HPMutator, error) {
	switch key {
	case "alpha":
		return &float64Mutator{&h.Alpha}, nil
	case "beta":
		return &float64Mutator{&h.Beta}, nil
	default:
		return nil, fmt.Errorf("betabernoulli: unknown hyperparameter %q", key)
	}
}

// BetaBernoulliSuffstat accumulates the observed heads/count for one block
// tuple under a Beta-Bernoulli model.
type BetaBernoulliSuffstat struct {
	Heads float64
	Count float64
}

func (s *BetaBernoulliSuffstat) AddValue(hp Hypers, v Value, rng *rand.Rand) {
	bv := v.(BoolValue)
	if bv.V {
		s.Heads++
	}
	s.Count++
}

func (s *BetaBernoulliSuffstat) RemoveValue(hp Hypers, v Value, rng *rand.Rand) {
	bv := v.(BoolValue)
	if bv.V {
		s.Heads--
	}
	s.Count--
}

func (s *BetaBernoulliSuffstat) ScoreValue(hp Hypers, v Value, rng *rand.Rand) float64 {
	h := hp.(*BetaBernoulliHypers)
	bv := v.(BoolValue)
	pHeads := (s.Heads + h.Alpha) / (s.Count + h.Alpha + h.Beta)
	if bv.V {
		return math.Log(pHeads)
	}
	return math.Log1p(-pHeads)
}

func (s *BetaBernoulliSuffstat) ScoreData(hp Hypers, rng *rand.Rand) float64 {
	h := hp.(*BetaBernoulliHypers)
	return logBeta(s.Heads+h.Alpha, s.Count-s.Heads+h.Beta) - logBeta(h.Alpha, h.Beta)
}

func (s *BetaBernoulliSuffstat) GetSS() SuffstatBag {
	return SuffstatBag{"heads": s.Heads, "count": s.Count}
}

func (s *BetaBernoulliSuffstat) SetSS(b SuffstatBag) {
	s.Heads = b["heads"]
	s.Count = b["count"]
}

func logBeta(a, b float64) float64 {
	la, _ := math.Lgamma(a)
	lb, _ := math.Lgamma(b)
	lab, _ := math.Lgamma(a + b)
	return la + lb - lab
}

type float64Mutator struct {
	p *float64
}

func (m *float64Mutator) Get() float64  { return *m.p }
func (m *float64Mutator) Set(v float64) { *m.p = v }
