package api

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MycelicMemory/irm"
	"github.com/MycelicMemory/irm/internal/sampler"
)

// healthHandler reports server liveness.
func (s *Server) healthHandler(c *gin.Context) {
	SuccessResponse(c, "ok", gin.H{
		"status": "healthy",
		"time":   time.Now().UTC(),
	})
}

// listModels returns every model id known to the snapshot store, not just
// the ones currently loaded in memory.
func (s *Server) listModels(c *gin.Context) {
	ids, err := s.store.ListModelIDs()
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		seen[id] = true
	}
	for _, id := range s.registry.IDs() {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	SuccessResponse(c, "models listed", gin.H{"models": ids})
}

// domainSummary is the per-domain shape reported by getModel.
type domainSummary struct {
	Index     int   `json:"index"`
	NEntities int   `json:"n_entities"`
	NGroups   int   `json:"n_groups"`
}

// getModel reports a loaded model's domain shapes and group counts. If the
// model is not currently loaded, it falls back to the persisted
// DefinitionSummary's static shape.
func (s *Server) getModel(c *gin.Context) {
	modelID := c.Param("id")

	if h, err := s.registry.Get(modelID); err == nil {
		domains := make([]domainSummary, len(h.Bound))
		for i, b := range h.Bound {
			domains[i] = domainSummary{Index: i, NEntities: b.NEntities(), NGroups: b.NGroups()}
		}
		SuccessResponse(c, "model loaded", gin.H{"model_id": modelID, "loaded": true, "domains": domains})
		return
	}

	defn, _, err := s.store.Load(modelID)
	if err != nil {
		NotFoundErrorWithID(c, modelID)
		return
	}
	SuccessResponse(c, "model not loaded, reporting persisted shape", gin.H{
		"model_id": modelID,
		"loaded":   false,
		"domains":  defn.DomainSizes,
	})
}

// getDomain reports one loaded domain's current assignment vector and
// active group ids.
func (s *Server) getDomain(c *gin.Context) {
	modelID := c.Param("id")
	domainIdx, ok := parseDomainParam(c)
	if !ok {
		return
	}

	h, err := s.registry.Get(modelID)
	if err != nil {
		NotFoundErrorWithID(c, modelID)
		return
	}
	if domainIdx < 0 || domainIdx >= len(h.Bound) {
		BadRequestError(c, "domain index out of range")
		return
	}

	b := h.Bound[domainIdx]
	SuccessResponse(c, "domain reported", gin.H{
		"model_id":    modelID,
		"domain":      domainIdx,
		"n_entities":  b.NEntities(),
		"n_groups":    b.NGroups(),
		"assignments": b.Assignments(),
		"empty_groups": b.EmptyGroups(),
	})
}

// saveModelSnapshot forces an immediate persist of a loaded model's current
// state, independent of any in-progress sweep.
func (s *Server) saveModelSnapshot(c *gin.Context) {
	modelID := c.Param("id")
	h, err := s.registry.Get(modelID)
	if err != nil {
		NotFoundErrorWithID(c, modelID)
		return
	}
	if err := s.store.Save(modelID, h.Defn, h.State.Serialize()); err != nil {
		InternalError(c, err.Error())
		return
	}
	SuccessResponse(c, "snapshot saved", gin.H{"model_id": modelID})
}

// sweepRequest is the request body for runSweep.
type sweepRequest struct {
	Domains    []int `json:"domains"`
	Iterations int   `json:"iterations"`
	Seed       int64 `json:"seed"`
	Verbose    bool  `json:"verbose"`
}

// runSweep starts a synchronous Gibbs sweep run over a loaded model's
// domains and returns the completed RunResults. Large iteration counts can
// make this a slow request; callers needing progress reporting should poll
// getModel between smaller sweep batches instead.
func (s *Server) runSweep(c *gin.Context) {
	modelID := c.Param("id")

	var req sweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequestError(c, "invalid request body: "+err.Error())
		return
	}
	if err := validateIterations(req.Iterations); err != nil {
		BadRequestError(c, err.Error())
		return
	}

	h, err := s.registry.Get(modelID)
	if err != nil {
		NotFoundErrorWithID(c, modelID)
		return
	}

	domains := req.Domains
	if len(domains) == 0 {
		domains = make([]int, len(h.Bound))
		for i := range h.Bound {
			domains[i] = i
		}
	}
	bound, err := selectBound(h.Bound, domains)
	if err != nil {
		BadRequestError(c, err.Error())
		return
	}

	seed := req.Seed
	if seed == 0 {
		seed = s.config.Sampler.DefaultSeed
	}
	config := &sampler.RunConfig{
		ModelID:    modelID,
		Domains:    domains,
		Iterations: req.Iterations,
		Seed:       seed,
		Verbose:    req.Verbose,
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Minute)
	defer cancel()

	results, err := s.sampler.Run(ctx, h.State, h.Defn, bound, config)
	if err != nil {
		if results != nil {
			SuccessResponse(c, "sweep failed", results)
			return
		}
		InternalError(c, err.Error())
		return
	}
	SuccessResponse(c, "sweep completed", results)
}

// selectBound returns the subset of bound matching domains, in the given
// order, for passing to a sampler run.
func selectBound(bound []*irm.BoundState, domains []int) ([]*irm.BoundState, error) {
	out := make([]*irm.BoundState, 0, len(domains))
	for _, d := range domains {
		if d < 0 || d >= len(bound) {
			return nil, fmt.Errorf("domain index out of range: %d", d)
		}
		out = append(out, bound[d])
	}
	return out, nil
}

// parseDomainParam extracts and validates the :domain path parameter,
// writing an error response and returning ok=false on failure.
func parseDomainParam(c *gin.Context) (int, bool) {
	idx, err := strconv.Atoi(c.Param("domain"))
	if err != nil {
		BadRequestError(c, "invalid domain index")
		return 0, false
	}
	return idx, true
}
