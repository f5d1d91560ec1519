package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"tokensale-coordinator/internal/coordinator"
	"tokensale-coordinator/internal/domain"
	"tokensale-coordinator/internal/ledger"
	"tokensale-coordinator/internal/observability"
)

// api exposes the coordinator's read and command surface over HTTP.
type api struct {
	coord   *coordinator.SaleCoordinator
	logger  *log.Logger
	started time.Time
}

func newAPI(coord *coordinator.SaleCoordinator, logger *log.Logger) *api {
	return &api{
		coord:   coord,
		logger:  logger,
		started: time.Now(),
	}
}

func (a *api) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("GET /metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("GET /status", a.handleStatus)

	// Read endpoints
	mux.HandleFunc("GET /api/phase/current", a.handleCurrentPhase)
	mux.HandleFunc("GET /api/phase/overview", a.handlePhaseOverview)
	mux.HandleFunc("GET /api/phase/remaining", a.handleRemaining)
	mux.HandleFunc("GET /api/buyers", a.handleBuyers)
	mux.HandleFunc("GET /api/buyers/{address}", a.handleBuyer)
	mux.HandleFunc("GET /api/applicants/pending", a.handlePending)
	mux.HandleFunc("GET /api/applicants/allowed", a.handleAllowed)
	mux.HandleFunc("GET /api/addresses", a.handleAddresses)
	mux.HandleFunc("GET /api/totals", a.handleTotals)
	mux.HandleFunc("GET /api/seed/active", a.handleSeedActive)

	// Command endpoints
	mux.HandleFunc("POST /api/phase/advance", a.handleAdvance)
	mux.HandleFunc("POST /api/phase/extend", a.handleExtend)
	mux.HandleFunc("POST /api/phase/end", a.handleEnd)
	mux.HandleFunc("POST /api/applicants/{address}/confirm", a.handleConfirm)
	mux.HandleFunc("POST /api/applicants/{address}/cancel", a.handleCancel)
	mux.HandleFunc("POST /api/purchase", a.handlePurchase)
	mux.HandleFunc("POST /api/seed/apply", a.handleSeedApply)
	mux.HandleFunc("POST /api/sale/finalize", a.handleFinalize)

	return mux
}

// ---- Wire types ----

type phaseResponse struct {
	Index         int    `json:"index"`
	Name          string `json:"name"`
	CoinDenom     string `json:"coin_denom"`
	Allotted      uint64 `json:"allotted"`
	Remaining     uint64 `json:"remaining"`
	Target        uint64 `json:"target"`
	Price         uint64 `json:"price"`
	StartTime     int64  `json:"start_time"`
	EndTime       int64  `json:"end_time"`
	Active        bool   `json:"active"`
	CollectedFund uint64 `json:"collected_fund"`
}

func toPhaseResponse(p domain.Phase) phaseResponse {
	return phaseResponse{
		Index:         int(p.Index),
		Name:          p.Name,
		CoinDenom:     p.CoinDenom,
		Allotted:      uint64(p.Allotted),
		Remaining:     uint64(p.Remaining),
		Target:        uint64(p.Target),
		Price:         uint64(p.Price),
		StartTime:     p.StartTime,
		EndTime:       p.EndTime,
		Active:        p.Active,
		CollectedFund: uint64(p.CollectedFund),
	}
}

type buyerResponse struct {
	Address        string `json:"address"`
	CoinsPurchased uint64 `json:"coins_purchased"`
	AmountSpent    uint64 `json:"amount_spent"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type resultResponse struct {
	Result string `json:"result"`
}

// ---- Read handlers ----

func (a *api) handleCurrentPhase(w http.ResponseWriter, r *http.Request) {
	p := a.coord.CurrentPhase()
	if p == nil {
		writeError(w, http.StatusServiceUnavailable, "no phase snapshot yet")
		return
	}
	writeJSON(w, http.StatusOK, toPhaseResponse(*p))
}

func (a *api) handlePhaseOverview(w http.ResponseWriter, r *http.Request) {
	phases := a.coord.PhaseOverview()
	out := make([]phaseResponse, 0, len(phases))
	for _, p := range phases {
		out = append(out, toPhaseResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) handleRemaining(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"remaining": a.coord.RemainingTimeLabel()})
}

func (a *api) handleBuyers(w http.ResponseWriter, r *http.Request) {
	buyers := a.coord.Buyers()
	out := make([]buyerResponse, 0, len(buyers))
	for _, b := range buyers {
		out = append(out, buyerResponse{
			Address:        b.Address,
			CoinsPurchased: uint64(b.CoinsPurchased),
			AmountSpent:    uint64(b.AmountSpent),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) handleBuyer(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	rec, ok := a.coord.Buyer(address)
	if !ok {
		writeError(w, http.StatusNotFound, "buyer not tracked")
		return
	}
	writeJSON(w, http.StatusOK, buyerResponse{
		Address:        rec.Address,
		CoinsPurchased: uint64(rec.CoinsPurchased),
		AmountSpent:    uint64(rec.AmountSpent),
	})
}

func (a *api) handlePending(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"pending": a.coord.PendingApplicants()})
}

func (a *api) handleAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"allowed": a.coord.AllowedApplicants()})
}

func (a *api) handleAddresses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"addresses": a.coord.StoredAddresses()})
}

func (a *api) handleTotals(w http.ResponseWriter, r *http.Request) {
	totals := a.coord.SaleTotals()
	writeJSON(w, http.StatusOK, map[string]uint64{
		"collected_funds": uint64(totals.CollectedFunds),
		"coins_sold":      uint64(totals.CoinsSold),
	})
}

func (a *api) handleSeedActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"seed_active": a.coord.IsSeedPhaseActive()})
}

// ---- Command handlers ----

func (a *api) handleAdvance(w http.ResponseWriter, r *http.Request) {
	a.commandResult(w, a.coord.AdvancePhase(r.Context()))
}

func (a *api) handleExtend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seconds int64 `json:"seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a.commandResult(w, a.coord.ExtendPhase(r.Context(), req.Seconds))
}

func (a *api) handleEnd(w http.ResponseWriter, r *http.Request) {
	a.commandResult(w, a.coord.EndPhase(r.Context()))
}

func (a *api) handleConfirm(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	applied, err := a.coord.ConfirmApplicant(r.Context(), address)
	if err != nil {
		a.commandResult(w, err)
		return
	}
	if !applied {
		writeJSON(w, http.StatusOK, resultResponse{Result: "aborted"})
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: "confirmed"})
}

func (a *api) handleCancel(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	applied, err := a.coord.CancelApplicant(r.Context(), address)
	if err != nil {
		a.commandResult(w, err)
		return
	}
	if !applied {
		writeJSON(w, http.StatusOK, resultResponse{Result: "aborted"})
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Result: "cancelled"})
}

func (a *api) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count uint64 `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a.commandResult(w, a.coord.RecordPurchase(r.Context(), domain.CoinCount(req.Count)))
}

func (a *api) handleSeedApply(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	a.commandResult(w, a.coord.ApplySeedRound(r.Context(), req.Address))
}

func (a *api) handleFinalize(w http.ResponseWriter, r *http.Request) {
	a.commandResult(w, a.coord.FinalizeSale(r.Context()))
}

// ---- Status ----

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status        string    `json:"status"`
	Uptime        string    `json:"uptime"`
	RefreshedAt   time.Time `json:"refreshed_at"`
	CurrentPhase  string    `json:"current_phase,omitempty"`
	Remaining     string    `json:"remaining,omitempty"`
	TrackedBuyers int       `json:"tracked_buyers"`
	PendingCount  int       `json:"pending_applicants"`
	Finalized     bool      `json:"finalized"`
}

func (a *api) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:        "running",
		Uptime:        time.Since(a.started).String(),
		RefreshedAt:   a.coord.RefreshedAt(),
		Remaining:     a.coord.RemainingTimeLabel(),
		TrackedBuyers: len(a.coord.Buyers()),
		PendingCount:  len(a.coord.PendingApplicants()),
		Finalized:     a.coord.Finalized(),
	}
	if p := a.coord.CurrentPhase(); p != nil {
		resp.CurrentPhase = p.Name
	}
	writeJSON(w, http.StatusOK, resp)
}

// ---- Helpers ----

// commandResult maps a command error to the HTTP surface. The benign
// idempotent rejections report success with the reason in the body so
// an operator's repeated click is not an alarming failure.
func (a *api) commandResult(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resultResponse{Result: "ok"})
	case errors.Is(err, ledger.ErrAlreadyEnded), errors.Is(err, ledger.ErrAlreadyFinalized):
		writeJSON(w, http.StatusOK, resultResponse{Result: err.Error()})
	case errors.Is(err, ledger.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrStaleView):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrUnreachable):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		if rej, ok := ledger.IsRejection(err); ok {
			writeError(w, http.StatusUnprocessableEntity, rej.Reason)
			return
		}
		a.logger.Printf("command failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
