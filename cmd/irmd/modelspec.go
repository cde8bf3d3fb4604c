package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"

	"github.com/MycelicMemory/irm"
	"github.com/MycelicMemory/irm/dataview"
	"github.com/MycelicMemory/irm/models"
)

// relationSpec describes one relation's JSON shape: which domains it spans,
// its likelihood family and hyperparameters, and its dense observed data.
type relationSpec struct {
	Domains    []int     `json:"domains"`
	Likelihood string    `json:"likelihood"` // "bernoulli" or "normal"
	AlphaBeta  []float64 `json:"alpha_beta,omitempty"`   // bernoulli: [alpha, beta]
	NIXParams  []float64 `json:"nix_params,omitempty"`   // normal: [mu, kappa, sigmasq, nu]
	Shape      []int     `json:"shape"`
	BoolData   []bool    `json:"bool_data,omitempty"`
	RealData   []float64 `json:"real_data,omitempty"`
}

// modelSpec is the on-disk JSON format accepted by `irmd run`: a full
// irm.Definition plus initial alphas, assignments, and observed data.
type modelSpec struct {
	ModelID     string         `json:"model_id"`
	Domains     []int          `json:"domains"`
	Relations   []relationSpec `json:"relations"`
	Alphas      []float64      `json:"alphas"`
	Assignments [][]int64      `json:"assignments"`
}

func loadModelSpec(path string) (*modelSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model spec: %w", err)
	}
	var spec modelSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("failed to parse model spec: %w", err)
	}
	return &spec, nil
}

// build constructs the irm.Definition and dataviews this spec describes,
// and initializes a *irm.State from them.
func (m *modelSpec) build(rng *rand.Rand) (*irm.State, irm.Definition, []dataview.Dataview, error) {
	defn := irm.Definition{Domains: m.Domains}
	data := make([]dataview.Dataview, len(m.Relations))

	for i, r := range m.Relations {
		var hypers models.Hypers
		switch r.Likelihood {
		case "bernoulli":
			if len(r.AlphaBeta) != 2 {
				return nil, irm.Definition{}, nil, fmt.Errorf("relation %d: bernoulli requires alpha_beta=[a,b]", i)
			}
			hypers = models.NewBetaBernoulliHypers(r.AlphaBeta[0], r.AlphaBeta[1])
			data[i] = dataview.NewDenseBool(r.Shape, r.BoolData, nil)
		case "normal":
			if len(r.NIXParams) != 4 {
				return nil, irm.Definition{}, nil, fmt.Errorf("relation %d: normal requires nix_params=[mu,kappa,sigmasq,nu]", i)
			}
			hypers = models.NewNormalInverseChiSqHypers(r.NIXParams[0], r.NIXParams[1], r.NIXParams[2], r.NIXParams[3])
			data[i] = dataview.NewDenseFloat64(r.Shape, r.RealData, nil)
		default:
			return nil, irm.Definition{}, nil, fmt.Errorf("relation %d: unknown likelihood %q", i, r.Likelihood)
		}
		defn.Relations = append(defn.Relations, irm.RelationDef{Domains: r.Domains, Hypers: hypers})
	}

	state, err := irm.Initialize(defn, m.Alphas, nil, m.Assignments, data, rng)
	if err != nil {
		return nil, irm.Definition{}, nil, fmt.Errorf("failed to initialize model: %w", err)
	}
	return state, defn, data, nil
}
