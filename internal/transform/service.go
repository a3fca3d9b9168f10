// Package transform provides the HTTP handlers and orchestration for
// running the parity transformation, persisting runs, and serving the
// stored tables back out as JSON or CSV.
//
// All quantities and values use shopspring/decimal — never float64 for money.
package transform

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/synthview/parity-engine/internal/metrics"
	"github.com/synthview/parity-engine/internal/model"
	"github.com/synthview/parity-engine/internal/parity"
	"github.com/synthview/parity-engine/internal/position"
	"github.com/synthview/parity-engine/internal/risk"
	"github.com/synthview/parity-engine/internal/store"
)

// Service handles transformation runs. The core is a pure function, so
// there is no shared mutable state to serialize; the store handles its own
// locking.
type Service struct {
	store store.Store
	wsHub *WSHub // optional WebSocket hub for run-completed broadcasts
}

// NewService creates a new transform service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, hub *WSHub) *Service {
	return &Service{store: st, wsHub: hub}
}

// --- Request/Response types ---

// TransformRequest is the JSON body for POST /transform.
type TransformRequest struct {
	Positions []model.Position `json:"positions"`
}

// TransformResponse is the JSON body returned from both transform endpoints.
type TransformResponse struct {
	Run            model.Run                   `json:"run"`
	SyntheticCalls []model.SyntheticCallLot    `json:"synthetic_calls"`
	Log            []model.TransformationStep  `json:"log"`
	Portfolio      []model.FinalPortfolioEntry `json:"portfolio"`
	Summary        risk.Summary                `json:"summary"`
}

// --- HTTP Handlers ---

// TransformJSON handles POST /api/v1/transform
func (s *Service) TransformJSON(w http.ResponseWriter, r *http.Request) {
	var req TransformRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Positions) == 0 {
		writeError(w, "positions are required", http.StatusBadRequest)
		return
	}
	if err := position.Validate(req.Positions); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.run(w, r, req.Positions)
}

// TransformCSV handles POST /api/v1/transform/csv
// The request body is the raw position table in the input CSV schema.
func (s *Service) TransformCSV(w http.ResponseWriter, r *http.Request) {
	positions, err := position.ParseCSV(r.Body)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(positions) == 0 {
		writeError(w, "no recognizable positions in input", http.StatusBadRequest)
		return
	}

	s.run(w, r, positions)
}

// run executes the core transformation, persists the result, and writes the
// response. Shared by the JSON and CSV paths.
func (s *Service) run(w http.ResponseWriter, r *http.Request, positions []model.Position) {
	start := time.Now()

	res, err := parity.Transform(positions)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("rejected").Inc()
		if errors.Is(err, parity.ErrNoUnderlyingPrice) {
			writeError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	run := &model.Run{
		ID:               uuid.New().String(),
		CreatedAt:        time.Now().UTC(),
		UnderlyingPrice:  res.UnderlyingPrice,
		RemainingFutures: res.RemainingFutures,
		RemainingCash:    res.RemainingCash,
		PositionCount:    len(positions),
		StepCount:        len(res.Log),
		EntryCount:       len(res.Portfolio),
	}

	if err := s.store.InsertRun(r.Context(), run, res.Log, res.Portfolio); err != nil {
		metrics.RunsTotal.WithLabelValues("store_error").Inc()
		writeError(w, "failed to persist run", http.StatusInternalServerError)
		return
	}

	unmatched := decimal.Zero
	for _, step := range res.Log {
		switch step.Action {
		case model.ActionCreateSyntheticCall:
			metrics.SyntheticCallSteps.WithLabelValues(step.Source).Inc()
		case model.ActionUnmatchedPuts:
			unmatched = unmatched.Add(step.Amount)
		}
	}
	metrics.UnmatchedPutQuantity.Add(unmatched.InexactFloat64())
	metrics.RunsTotal.WithLabelValues("ok").Inc()
	metrics.RunDuration.Observe(time.Since(start).Seconds())

	slog.Info("transformation run complete",
		"run_id", run.ID,
		"positions", run.PositionCount,
		"underlying", run.UnderlyingPrice.String(),
		"synthetic_calls", len(res.SyntheticCalls),
		"unmatched_puts", unmatched.String(),
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:              "run_completed",
			RunID:             run.ID,
			UnderlyingPrice:   run.UnderlyingPrice.String(),
			SyntheticCallLots: len(res.SyntheticCalls),
			UnmatchedQuantity: unmatched.String(),
		})
	}

	resp := TransformResponse{
		Run:            *run,
		SyntheticCalls: res.SyntheticCalls,
		Log:            res.Log,
		Portfolio:      res.Portfolio,
		Summary:        risk.Summarize(res.Portfolio),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

// Sample handles GET /api/v1/sample
func (s *Service) Sample(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TransformRequest{Positions: position.SamplePositions()})
}

// ListRuns handles GET /api/v1/runs
func (s *Service) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context())
	if err != nil {
		writeError(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(runs)
}

// GetRun handles GET /api/v1/runs/{runID}
func (s *Service) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

// GetRunLog handles GET /api/v1/runs/{runID}/log
func (s *Service) GetRunLog(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	steps, err := s.store.GetSteps(r.Context(), run.ID)
	if err != nil {
		writeError(w, "failed to load transformation log", http.StatusInternalServerError)
		return
	}
	if steps == nil {
		steps = []model.TransformationStep{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(steps)
}

// GetRunPortfolio handles GET /api/v1/runs/{runID}/portfolio
func (s *Service) GetRunPortfolio(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	entries, err := s.store.GetEntries(r.Context(), run.ID)
	if err != nil {
		writeError(w, "failed to load portfolio", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.FinalPortfolioEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// GetRunSummary handles GET /api/v1/runs/{runID}/summary
func (s *Service) GetRunSummary(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	entries, err := s.store.GetEntries(r.Context(), run.ID)
	if err != nil {
		writeError(w, "failed to load portfolio", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(risk.Summarize(entries))
}

// ExportRunPortfolio handles GET /api/v1/runs/{runID}/portfolio/export
// Returns the final portfolio table as a CSV download.
func (s *Service) ExportRunPortfolio(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	entries, err := s.store.GetEntries(r.Context(), run.ID)
	if err != nil {
		writeError(w, "failed to load portfolio", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="transformed_portfolio_%s.csv"`, run.ID))
	if err := position.WritePortfolioCSV(w, entries); err != nil {
		slog.Error("portfolio export failed", "run_id", run.ID, "err", err)
	}
}

// ExportRunLog handles GET /api/v1/runs/{runID}/log/export
// Returns the transformation log table as a CSV download.
func (s *Service) ExportRunLog(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookupRun(w, r)
	if !ok {
		return
	}

	steps, err := s.store.GetSteps(r.Context(), run.ID)
	if err != nil {
		writeError(w, "failed to load transformation log", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="transformation_log_%s.csv"`, run.ID))
	if err := position.WriteLogCSV(w, steps); err != nil {
		slog.Error("log export failed", "run_id", run.ID, "err", err)
	}
}

// lookupRun resolves {runID} and writes a 404 if it is unknown.
func (s *Service) lookupRun(w http.ResponseWriter, r *http.Request) (*model.Run, bool) {
	runID := chi.URLParam(r, "runID")

	run, err := s.store.GetRun(r.Context(), runID)
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, "run not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		writeError(w, "failed to load run", http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
