package api

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MycelicMemory/irm"
	"github.com/MycelicMemory/irm/dataview"
	"github.com/MycelicMemory/irm/internal/snapshot"
	"github.com/MycelicMemory/irm/models"
	"github.com/MycelicMemory/irm/pkg/config"
)

func oneDomainBinaryDefinition(n int) irm.Definition {
	return irm.Definition{
		Domains: []int{n},
		Relations: []irm.RelationDef{
			{Domains: []int{0, 0}, Hypers: models.NewBetaBernoulliHypers(1, 1)},
		},
	}
}

func denseSquareBool(n int, fill func(i, j int) bool) *dataview.DenseBool {
	values := make([]bool, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			values[i*n+j] = fill(i, j)
		}
	}
	return dataview.NewDenseBool([]int{n, n}, values, nil)
}

func newTestServer(t *testing.T) (*Server, *ModelHandle) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.RestAPI.CORS = false
	cfg.RateLimit.Enabled = false
	cfg.Logging.Level = "debug"

	store, err := snapshot.Open(filepath.Join(t.TempDir(), "model.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	srv := NewServer(store, cfg)

	n := 6
	defn := oneDomainBinaryDefinition(n)
	data := []dataview.Dataview{denseSquareBool(n, func(i, j int) bool { return (i+j)%2 == 0 })}
	assignment := []int64{0, 0, 0, 1, 1, 1}
	rng := rand.New(rand.NewSource(1))

	state, err := irm.Initialize(defn, []float64{1.0}, nil, [][]int64{assignment}, data, rng)
	if err != nil {
		t.Fatal(err)
	}
	bound, err := irm.NewBoundState(state, 0, data)
	if err != nil {
		t.Fatal(err)
	}

	handle := &ModelHandle{
		State: state,
		Defn:  snapshot.DefinitionSummary{DomainSizes: defn.Domains, RelationDomains: [][]int{{0, 0}}},
		Bound: []*irm.BoundState{bound},
	}
	srv.Registry().Put("test-model", handle)
	return srv, handle
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body: %v (%s)", err, w.Body.String())
	}
	return body
}

func TestHealthHandler(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestListModelsIncludesLoadedModel(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/models", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	data, _ := body["data"].(map[string]any)
	ids, _ := data["models"].([]any)
	found := false
	for _, id := range ids {
		if id == "test-model" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected test-model among listed models, got %v", body)
	}
}

func TestGetModelReturnsLoadedDomains(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/models/test-model", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	data, ok := body["data"].(map[string]any)
	if !ok || data["loaded"] != true {
		t.Fatalf("expected loaded=true in response, got %v", body)
	}
}

func TestGetModelUnknownReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/models/nope", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetDomainReturnsAssignments(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/models/test-model/domains/0", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestGetDomainOutOfRangeReturnsBadRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/models/test-model/domains/9", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRunSweepCompletesAndPersists(t *testing.T) {
	srv, handle := newTestServer(t)

	body := `{"iterations": 2, "seed": 7}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/models/test-model/sweep", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if handle.Bound[0].NEntities() != 6 {
		t.Fatalf("entity count changed across sweep: %d", handle.Bound[0].NEntities())
	}
	if _, _, err := srv.store.Load("test-model"); err != nil {
		t.Fatalf("expected swept model to be persisted: %v", err)
	}
}

func TestRunSweepRejectsZeroIterations(t *testing.T) {
	srv, _ := newTestServer(t)

	body := `{"iterations": 0}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/models/test-model/sweep", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSaveModelSnapshotPersistsToStore(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/models/test-model/snapshot", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	ids, err := srv.store.ListModelIDs()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, id := range ids {
		if id == "test-model" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected test-model among persisted ids, got %v", ids)
	}
}
