package models

import (
	"fmt"
	"math"
	"math/rand"
)

// NormalInverseChiSqHypers holds the Normal-Inverse-Chi-Squared prior
// (mu, kappa, sigmasq, nu) on a per-cell Gaussian with unknown mean and
// variance.
type NormalInverseChiSqHypers struct {
	Mu      float64
	Kappa   float64
	Sigmasq float64
	Nu      float64
}

func NewNormalInverseChiSqHypers(mu, kappa, sigmasq, nu float64) *NormalInverseChiSqHypers {
	return &NormalInverseChiSqHypers{Mu: mu, Kappa: kappa, Sigmasq: sigmasq, Nu: nu}
}

func (h *NormalInverseChiSqHypers) CreateGroup(rng *rand.Rand) Suffstat {
	return &NormalInverseChiSqSuffstat{}
}

func (h *NormalInverseChiSqHypers) GetHP() HyperBag {
	return HyperBag{"mu": h.Mu, "kappa": h.Kappa, "sigmasq": h.Sigmasq, "nu": h.Nu}
}

func (h *NormalInverseChiSqHypers) SetHP(b HyperBag) {
	if v, ok := b["mu"]; ok {
		h.Mu = v
	}
	if v, ok := b["kappa"]; ok {
		h.Kappa = v
	}
	if v, ok := b["sigmasq"]; ok {
		h.Sigmasq = v
	}
	if v, ok := b["nu"]; ok {
		h.Nu = v
	}
}

func (h *NormalInverseChiSqHypers) GetHPMutator(key string) (HPMutator, error) {
	switch key {
	case "mu":
		return &float64Mutator{&h.Mu}, nil
	case "kappa":
		return &float64Mutator{&h.Kappa}, nil
	case "sigmasq":
		return &float64Mutator{&h.Sigmasq}, nil
	case "nu":
		return &float64Mutator{&h.Nu}, nil
	default:
		return nil, fmt.Errorf("normalinversechisq: unknown hyperparameter %q", key)
	}
}

// NormalInverseChiSqSuffstat tracks the running mean and the sum of squared
// deviations from it (Welford's online algorithm), which together with
// Count are sufficient for the NIX2 posterior.
type NormalInverseChiSqSuffstat struct {
	Mean               float64
	CountTimesVariance float64 // sum of squared deviations from Mean (M2)
	Count              float64
}

func (s *NormalInverseChiSqSuffstat) AddValue(hp Hypers, v Value, rng *rand.Rand) {
	x := v.(Float64Value).V
	s.Count++
	delta := x - s.Mean
	s.Mean += delta / s.Count
	s.CountTimesVariance += delta * (x - s.Mean)
}

func (s *NormalInverseChiSqSuffstat) RemoveValue(hp Hypers, v Value, rng *rand.Rand) {
	x := v.(Float64Value).V
	if s.Count <= 1 {
		s.Count = 0
		s.Mean = 0
		s.CountTimesVariance = 0
		return
	}
	countBefore := s.Count
	s.Count--
	meanBefore := (s.Mean*countBefore - x) / s.Count
	delta := x - meanBefore
	s.CountTimesVariance -= delta * (x - s.Mean)
	s.Mean = meanBefore
}

// posterior returns the updated (kappa_n, mu_n, nu_n, sigmasq_n) of the
// NIX2 posterior given this suffstat's observations.
func (s *NormalInverseChiSqSuffstat) posterior(h *NormalInverseChiSqHypers) (kappaN, muN, nuN, sigmasqN float64) {
	n := s.Count
	kappaN = h.Kappa + n
	nuN = h.Nu + n
	muN = (h.Kappa*h.Mu + n*s.Mean) / kappaN
	meanDiff := s.Mean - h.Mu
	nuTimesSigmasqN := h.Nu*h.Sigmasq + s.CountTimesVariance + (h.Kappa*n/kappaN)*meanDiff*meanDiff
	sigmasqN = nuTimesSigmasqN / nuN
	return
}

func (s *NormalInverseChiSqSuffstat) ScoreValue(hp Hypers, v Value, rng *rand.Rand) float64 {
	h := hp.(*NormalInverseChiSqHypers)
	x := v.(Float64Value).V
	kappaN, muN, nuN, sigmasqN := s.posterior(h)
	scaleSq := sigmasqN * (kappaN + 1) / kappaN
	return studentTLogPDF(x, muN, scaleSq, nuN)
}

func (s *NormalInverseChiSqSuffstat) ScoreData(hp Hypers, rng *rand.Rand) float64 {
	h := hp.(*NormalInverseChiSqHypers)
	n := s.Count
	kappaN, _, nuN, sigmasqN := s.posterior(h)

	lgNuN2, _ := math.Lgamma(nuN / 2)
	lgNu02, _ := math.Lgamma(h.Nu / 2)

	return lgNuN2 - lgNu02 +
		0.5*math.Log(h.Kappa/kappaN) +
		(h.Nu/2)*math.Log(h.Nu*h.Sigmasq) -
		(nuN/2)*math.Log(nuN*sigmasqN) -
		(n/2)*math.Log(math.Pi)
}

func (s *NormalInverseChiSqSuffstat) GetSS() SuffstatBag {
	return SuffstatBag{
		"mean":                 s.Mean,
		"count_times_variance": s.CountTimesVariance,
		"count":                s.Count,
	}
}

func (s *NormalInverseChiSqSuffstat) SetSS(b SuffstatBag) {
	s.Mean = b["mean"]
	s.CountTimesVariance = b["count_times_variance"]
	s.Count = b["count"]
}

// studentTLogPDF is the log density of a (non-standardized) Student's t
// distribution with location mu, squared scale scaleSq, and nu degrees of
// freedom, evaluated at x.
func studentTLogPDF(x, mu, scaleSq, nu float64) float64 {
	lgNuP1 := mustLgamma((nu + 1) / 2)
	lgNu := mustLgamma(nu / 2)
	z := (x - mu) * (x - mu) / scaleSq
	return lgNuP1 - lgNu - 0.5*math.Log(nu*math.Pi*scaleSq) -
		(nu+1)/2*math.Log1p(z/nu)
}

func mustLgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}
