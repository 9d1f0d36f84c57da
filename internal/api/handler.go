package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/eugenenazirov/dhondt-calculator/internal/hondt"
	"github.com/eugenenazirov/dhondt-calculator/internal/metrics"
	"github.com/eugenenazirov/dhondt-calculator/internal/registry"
	"github.com/eugenenazirov/dhondt-calculator/internal/scenario"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const defaultMaxSeats = 1000

// Handler wires the registry and the allocation pipeline into HTTP handlers.
type Handler struct {
	registry registry.Registry
	metrics  *metrics.Manager
	maxSeats int

	clock func() time.Time

	mu                sync.RWMutex
	baselineUpdatedAt time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithMaxSeats caps the seats a single allocation request may ask for.
func WithMaxSeats(maxSeats int) HandlerOption {
	return func(h *Handler) {
		if maxSeats > 0 {
			h.maxSeats = maxSeats
		}
	}
}

// WithMetrics records allocation outcomes on m.
func WithMetrics(m *metrics.Manager) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(reg registry.Registry, opts ...HandlerOption) *Handler {
	h := &Handler{
		registry: reg,
		maxSeats: defaultMaxSeats,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	h.baselineUpdatedAt = h.clock()
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleParties(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, partiesResponse{Parties: h.registry.Parties()})
}

func (h *Handler) handleConstituencies(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, constituenciesResponse{Constituencies: h.registry.Constituencies()})
}

func (h *Handler) handleConstituency(w http.ResponseWriter, r *http.Request) {
	c, err := h.registry.Constituency(r.PathValue("name"))
	if err != nil {
		if errors.Is(err, registry.ErrUnknownConstituency) {
			writeError(w, http.StatusNotFound, "Unknown constituency", err.Error(), "GET /api/constituencies lists the registered constituencies")
			return
		}
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) handleGetBaseline(w http.ResponseWriter, r *http.Request) {
	_ = r
	shares, err := h.registry.Baseline()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := baselineResponse{
		Baseline:  shares,
		UpdatedAt: h.currentBaselineUpdatedAt(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePutBaseline(w http.ResponseWriter, r *http.Request) {
	var req baselineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	if len(req.Baseline) == 0 {
		writeError(w, http.StatusBadRequest, "Invalid baseline", "baseline must contain at least one party")
		return
	}

	if err := h.registry.SetBaseline(req.Baseline); err != nil {
		switch {
		case errors.Is(err, registry.ErrUnknownParty):
			writeError(w, http.StatusBadRequest, "Invalid baseline", err.Error(), "GET /api/parties lists the registered parties")
		case errors.Is(err, registry.ErrInvalidBaseline):
			writeError(w, http.StatusBadRequest, "Invalid baseline", err.Error())
		default:
			writeInternalError(w, err)
		}
		return
	}

	h.markBaselineUpdated()

	shares, err := h.registry.Baseline()
	if err != nil {
		writeInternalError(w, err)
		return
	}

	resp := baselineResponse{
		Baseline:  shares,
		UpdatedAt: h.currentBaselineUpdatedAt(),
		Message:   "Baseline updated successfully",
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAllocate(w http.ResponseWriter, r *http.Request) {
	const kind = "allocate"

	var req allocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.ObserveAllocationError(kind, "bad_payload")
		writeError(w, http.StatusBadRequest, "Invalid request", fmt.Sprintf("unable to parse JSON payload: %v", err))
		return
	}

	if req.Seats > h.maxSeats {
		h.metrics.ObserveAllocationError(kind, "too_many_seats")
		writeError(w, http.StatusBadRequest, "Invalid request",
			fmt.Sprintf("seats must not exceed %d, got %d", h.maxSeats, req.Seats))
		return
	}

	start := time.Now()
	result, err := hondt.Allocate(req.Votes, req.Seats)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, hondt.ErrInvalidInput) {
			h.metrics.ObserveAllocationError(kind, "invalid_input")
			writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}
	h.metrics.ObserveAllocation(kind, result.Tally.Total(), result.Degenerate, elapsed)

	resp := allocateResponse{
		Result:            result,
		CalculationTimeMs: elapsed.Milliseconds(),
	}
	if result.Degenerate {
		resp.Warning = "no votes were cast, seats were handed out by party order"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleSimulate(w http.ResponseWriter, r *http.Request) {
	const kind = "simulate"

	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.ObserveAllocationError(kind, "bad_payload")
		writeError(w, http.StatusBadRequest, "Invalid request", fmt.Sprintf("unable to parse JSON payload: %v", err))
		return
	}

	state := scenario.NewState(h.registry)
	if err := state.SelectConstituency(req.Constituency); err != nil {
		if errors.Is(err, registry.ErrUnknownConstituency) {
			h.metrics.ObserveAllocationError(kind, "unknown_constituency")
			writeError(w, http.StatusNotFound, "Unknown constituency", err.Error(), "GET /api/constituencies lists the registered constituencies")
			return
		}
		writeInternalError(w, err)
		return
	}

	for _, entry := range req.Shares {
		if err := state.SetShare(entry.Party, entry.Share); err != nil {
			switch {
			case errors.Is(err, registry.ErrUnknownParty):
				h.metrics.ObserveAllocationError(kind, "unknown_party")
				writeError(w, http.StatusBadRequest, "Invalid shares", err.Error(), "GET /api/parties lists the registered parties")
			case errors.Is(err, hondt.ErrInvalidInput):
				h.metrics.ObserveAllocationError(kind, "invalid_input")
				writeError(w, http.StatusBadRequest, "Invalid shares", err.Error())
			default:
				writeInternalError(w, err)
			}
			return
		}
	}
	state.SetShowAll(req.ShowAll)

	start := time.Now()
	outcome, err := state.Outcome()
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, hondt.ErrInvalidInput) {
			h.metrics.ObserveAllocationError(kind, "invalid_input")
			writeError(w, http.StatusBadRequest, "Invalid request", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}
	h.metrics.ObserveAllocation(kind, outcome.Allocation.Tally.Total(), outcome.Allocation.Degenerate, elapsed)

	writeJSON(w, http.StatusOK, simulateResponse{
		Outcome:           outcome,
		CalculationTimeMs: elapsed.Milliseconds(),
	})
}

func (h *Handler) currentBaselineUpdatedAt() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.baselineUpdatedAt
}

func (h *Handler) markBaselineUpdated() {
	h.mu.Lock()
	h.baselineUpdatedAt = h.clock()
	h.mu.Unlock()
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type allocateRequest struct {
	Votes hondt.Distribution `json:"votes"`
	Seats int                `json:"seats"`
}

type allocateResponse struct {
	hondt.Result
	Warning           string `json:"warning,omitempty"`
	CalculationTimeMs int64  `json:"calculationTimeMs"`
}

type simulateRequest struct {
	Constituency string       `json:"constituency"`
	Shares       hondt.Shares `json:"shares"`
	ShowAll      bool         `json:"showAll"`
}

type simulateResponse struct {
	scenario.Outcome
	CalculationTimeMs int64 `json:"calculationTimeMs"`
}

type baselineRequest struct {
	Baseline hondt.Shares `json:"baseline"`
}

type baselineResponse struct {
	Baseline  hondt.Shares `json:"baseline"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Message   string       `json:"message,omitempty"`
}

type partiesResponse struct {
	Parties []hondt.Party `json:"parties"`
}

type constituenciesResponse struct {
	Constituencies []registry.Constituency `json:"constituencies"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
