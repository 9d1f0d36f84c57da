package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/dhondt-calculator/internal/hondt"
	"github.com/eugenenazirov/dhondt-calculator/internal/registry"
)

const testReference = `
parties: [A, B, C]
constituencies:
  - {name: Test, electors: 100000, seats: 5}
  - {name: Tiny, electors: 1000, seats: 1}
baseline: {A: 0.3, B: 0.2, C: 0}
`

type controllableClock struct {
	mu  sync.RWMutex
	now time.Time
}

func newControllableClock(initial time.Time) *controllableClock {
	return &controllableClock{now: initial}
}

func (c *controllableClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *controllableClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRegistry(t *testing.T) *registry.MemoryRegistry {
	t.Helper()
	reg, err := registry.Load(strings.NewReader(testReference))
	if err != nil {
		t.Fatalf("load registry: %v", err)
	}
	return reg
}

func setupTestRouter(t *testing.T, opts ...HandlerOption) (http.Handler, *controllableClock) {
	t.Helper()

	clock := newControllableClock(time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC))

	handler := NewHandler(newTestRegistry(t), append([]HandlerOption{WithClock(clock.Now)}, opts...)...)
	logger := zaptest.NewLogger(t)
	router := NewRouter(handler, logger, WithLogging(false))

	return router, clock
}

func doJSON(t *testing.T, router http.Handler, method, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		switch p := payload.(type) {
		case string:
			body.WriteString(p)
		default:
			if err := json.NewEncoder(&body).Encode(p); err != nil {
				t.Fatalf("failed to marshal payload: %v", err)
			}
		}
	}

	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(target); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	if got := requestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %s", got)
	}
	resp := httptest.NewRecorder()
	writeInternalError(resp, assertError("boom"))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 status, got %d", resp.Code)
	}
}

type assertError string

func (a assertError) Error() string { return string(a) }

func TestHealthEndpoint(t *testing.T) {
	router, clock := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	decodeBody(t, rec, &body)

	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %s", body.Status)
	}
	if !body.Timestamp.Equal(clock.Now()) {
		t.Fatalf("expected timestamp %s, got %s", clock.Now(), body.Timestamp)
	}
}

func TestRegistryEndpoints(t *testing.T) {
	router, _ := setupTestRouter(t)

	t.Run("parties", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/parties", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var body struct {
			Parties []string `json:"parties"`
		}
		decodeBody(t, rec, &body)
		if strings.Join(body.Parties, ",") != "A,B,C" {
			t.Fatalf("expected parties in registry order, got %v", body.Parties)
		}
	})

	t.Run("constituencies", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/constituencies", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var body struct {
			Constituencies []registry.Constituency `json:"constituencies"`
		}
		decodeBody(t, rec, &body)
		if len(body.Constituencies) != 2 || body.Constituencies[0].Name != "Test" {
			t.Fatalf("unexpected constituencies: %+v", body.Constituencies)
		}
	})

	t.Run("constituency by name ignores case", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/constituencies/tiny", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var body registry.Constituency
		decodeBody(t, rec, &body)
		if body != (registry.Constituency{Name: "Tiny", Electors: 1000, Seats: 1}) {
			t.Fatalf("unexpected constituency: %+v", body)
		}
	})

	t.Run("unknown constituency", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/constituencies/Atlantis", nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
		var body errorResponse
		decodeBody(t, rec, &body)
		if body.Suggestion == "" {
			t.Fatalf("expected suggestion to be populated")
		}
	})
}

func TestBaselineEndpoints(t *testing.T) {
	router, clock := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/baseline", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var initial struct {
		Baseline  hondt.Shares `json:"baseline"`
		UpdatedAt time.Time    `json:"updatedAt"`
	}
	decodeBody(t, rec, &initial)
	if len(initial.Baseline) != 3 || initial.Baseline.Of("A") != 0.3 {
		t.Fatalf("unexpected baseline: %+v", initial.Baseline)
	}
	if !initial.UpdatedAt.Equal(clock.Now()) {
		t.Fatalf("expected updatedAt %s, got %s", clock.Now(), initial.UpdatedAt)
	}

	clock.Advance(time.Hour)

	rec = doJSON(t, router, http.MethodPut, "/api/baseline", `{"baseline": {"C": 0.4, "A": 0.1}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated struct {
		Baseline  hondt.Shares `json:"baseline"`
		UpdatedAt time.Time    `json:"updatedAt"`
		Message   string       `json:"message"`
	}
	decodeBody(t, rec, &updated)

	if updated.Message == "" {
		t.Fatalf("expected success message, got empty string")
	}
	want := hondt.Shares{{Party: "A", Share: 0.1}, {Party: "B", Share: 0}, {Party: "C", Share: 0.4}}
	if len(updated.Baseline) != len(want) {
		t.Fatalf("expected %d shares, got %d", len(want), len(updated.Baseline))
	}
	for i, share := range want {
		if updated.Baseline[i] != share {
			t.Fatalf("expected %+v at position %d, got %+v", share, i, updated.Baseline[i])
		}
	}
	if !updated.UpdatedAt.Equal(clock.Now()) {
		t.Fatalf("expected updatedAt %s, got %s", clock.Now(), updated.UpdatedAt)
	}
}

func TestPutBaselineValidatesInput(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{name: "malformed", payload: `{"baseline":`},
		{name: "empty", payload: `{"baseline": {}}`},
		{name: "unknown party", payload: `{"baseline": {"Z": 0.1}}`},
		{name: "share above one", payload: `{"baseline": {"A": 1.5}}`},
		{name: "negative share", payload: `{"baseline": {"A": -0.2}}`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			router, _ := setupTestRouter(t)
			rec := doJSON(t, router, http.MethodPut, "/api/baseline", tc.payload)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
		})
	}
}

func TestAllocateEndpointSuccess(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/allocate", `{"votes": {"A": 12000, "B": 9000}, "seats": 3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Seats      int                    `json:"seats"`
		TotalVotes int                    `json:"totalVotes"`
		Ranked     []hondt.Quotient       `json:"ranked"`
		Tally      map[string]int         `json:"tally"`
		Degenerate bool                   `json:"degenerate"`
		Quotients  []hondt.PartyQuotients `json:"quotients"`
	}
	decodeBody(t, rec, &body)

	if body.Seats != 3 || body.TotalVotes != 21000 {
		t.Fatalf("unexpected totals: seats %d votes %d", body.Seats, body.TotalVotes)
	}
	if body.Tally["A"] != 2 || body.Tally["B"] != 1 {
		t.Fatalf("unexpected tally: %v", body.Tally)
	}
	if len(body.Ranked) != 3 || body.Ranked[2] != (hondt.Quotient{Party: "A", Divisor: 2, Value: 6000}) {
		t.Fatalf("unexpected ranking: %+v", body.Ranked)
	}
	if len(body.Quotients) != 2 || body.Quotients[1].Party != "B" {
		t.Fatalf("expected quotients in distribution order, got %+v", body.Quotients)
	}
	if body.Degenerate {
		t.Fatalf("expected non-degenerate result")
	}
}

func TestAllocateEndpointDegenerate(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/allocate", `{"votes": [{"party": "A", "votes": 0}, {"party": "B", "votes": 0}], "seats": 2}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Degenerate bool   `json:"degenerate"`
		Warning    string `json:"warning"`
	}
	decodeBody(t, rec, &body)
	if !body.Degenerate || body.Warning == "" {
		t.Fatalf("expected degenerate result with warning, got %+v", body)
	}
}

func TestAllocateEndpointLargeVotes(t *testing.T) {
	router, _ := setupTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/allocate", `{"votes": {"A": 9223372036854775807, "B": 1}, "seats": 1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		TotalVotes int              `json:"totalVotes"`
		Ranked     []hondt.Quotient `json:"ranked"`
		Tally      map[string]int   `json:"tally"`
		Degenerate bool             `json:"degenerate"`
	}
	decodeBody(t, rec, &body)

	if body.Tally["A"] != 1 || body.Tally["B"] != 0 {
		t.Fatalf("expected A to win the seat, got %v", body.Tally)
	}
	if len(body.Ranked) != 1 || body.Ranked[0].Value != math.MaxInt {
		t.Fatalf("unexpected ranking: %+v", body.Ranked)
	}
	if body.TotalVotes != math.MaxInt || body.Degenerate {
		t.Fatalf("expected a saturated, non-degenerate total, got %d degenerate %v", body.TotalVotes, body.Degenerate)
	}
}

func TestAllocateEndpointRejectsInvalidInput(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{name: "malformed", payload: `{"votes": [`},
		{name: "negative seats", payload: `{"votes": {"A": 10}, "seats": -1}`},
		{name: "negative votes", payload: `{"votes": {"A": -10}, "seats": 1}`},
		{name: "duplicate party", payload: `{"votes": [{"party": "A", "votes": 1}, {"party": "A", "votes": 2}], "seats": 1}`},
		{name: "above max seats", payload: `{"votes": {"A": 10}, "seats": 11}`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			router, _ := setupTestRouter(t, WithMaxSeats(10))
			rec := doJSON(t, router, http.MethodPost, "/api/allocate", tc.payload)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
		})
	}
}

func TestSimulateEndpoint(t *testing.T) {
	router, _ := setupTestRouter(t)

	t.Run("baseline", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/simulate", map[string]any{"constituency": "Test"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var body struct {
			Allocation struct {
				Tally map[string]int `json:"tally"`
			} `json:"allocation"`
			Rows []struct {
				Party string `json:"party"`
			} `json:"rows"`
			Divisors          int `json:"divisors"`
			UnassignedPercent int `json:"unassignedPercent"`
		}
		decodeBody(t, rec, &body)

		if body.Allocation.Tally["A"] != 3 || body.Allocation.Tally["B"] != 2 {
			t.Fatalf("unexpected tally: %v", body.Allocation.Tally)
		}
		if len(body.Rows) != 2 || body.Divisors != 4 || body.UnassignedPercent != 50 {
			t.Fatalf("unexpected outcome: %+v", body)
		}
	})

	t.Run("share overrides and show all", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/simulate", `{"constituency": "test", "shares": {"C": 0.25}, "showAll": true}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var body struct {
			Allocation struct {
				Tally map[string]int `json:"tally"`
			} `json:"allocation"`
			Rows []struct {
				Party string `json:"party"`
				Seats int    `json:"seats"`
			} `json:"rows"`
		}
		decodeBody(t, rec, &body)

		if body.Allocation.Tally["C"] != 2 {
			t.Fatalf("expected C to win 2 seats, got %v", body.Allocation.Tally)
		}
		if len(body.Rows) != 3 || body.Rows[1].Party != "C" {
			t.Fatalf("expected rows sorted by votes, got %+v", body.Rows)
		}
	})

	t.Run("unknown constituency", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/simulate", `{"constituency": "Atlantis"}`)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("invalid shares", func(t *testing.T) {
		for _, payload := range []string{
			`{"constituency": "Test", "shares": {"Z": 0.1}}`,
			`{"constituency": "Test", "shares": {"A": -0.1}}`,
			`{"constituency": "Test", "shares": {"A": 1e300}}`,
			`{"constituency": "Test", "shares": [`,
		} {
			rec := doJSON(t, router, http.MethodPost, "/api/simulate", payload)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400 for %s, got %d", payload, rec.Code)
			}
		}
	})
}

func TestCorsPreflight(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/allocate", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatalf("expected Access-Control-Allow-Origin header to be set")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	router, _ := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("X-Request-ID", "test-request-id")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "test-request-id" {
		t.Fatalf("expected X-Request-ID header to be echoed, got %s", got)
	}
}
