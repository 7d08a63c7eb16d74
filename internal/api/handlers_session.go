package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/scenario-simulator/internal/models"
	"github.com/scenario-simulator/internal/report"
	"github.com/scenario-simulator/internal/simulator"
	"github.com/scenario-simulator/internal/types"
	"github.com/shopspring/decimal"
)

// handleCreateSession handles POST /api/sessions - start a simulation
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InitialCapital *decimal.Decimal `json:"initialCapital,omitempty"`
	}

	// An empty body starts a session with the default capital
	if r.ContentLength != 0 {
		if err := parseJSONBody(r, &req); err != nil {
			respondInvalidInput(w, "Invalid request body", nil)
			return
		}
	}

	info, err := s.sessions.Create(r.Context(), req.InitialCapital)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, info)
}

// handleListSessions handles GET /api/sessions
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.sessions.List()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// handleGetSession handles GET /api/sessions/{id}
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// handleDeleteSession handles DELETE /api/sessions/{id}
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(mux.Vars(r)["id"]); err != nil {
		respondServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReset handles POST /api/sessions/{id}/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	state, err := s.sessions.Reset(mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// handleGetState handles GET /api/sessions/{id}/state
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	state, err := s.sessions.State(mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

// handleBuy handles POST /api/sessions/{id}/buy
func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FundCode string          `json:"fundCode"`
		Amount   decimal.Decimal `json:"amount"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondInvalidInput(w, "Invalid request body", nil)
		return
	}
	if req.FundCode == "" {
		respondInvalidInput(w, "fundCode is required", nil)
		return
	}

	result, err := s.sessions.Buy(mux.Vars(r)["id"], req.FundCode, req.Amount)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleSell handles POST /api/sessions/{id}/sell
func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FundCode   string           `json:"fundCode"`
		Shares     *decimal.Decimal `json:"shares,omitempty"`
		Percentage *decimal.Decimal `json:"percentage,omitempty"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondInvalidInput(w, "Invalid request body", nil)
		return
	}
	if req.FundCode == "" {
		respondInvalidInput(w, "fundCode is required", nil)
		return
	}

	result, err := s.sessions.Sell(mux.Vars(r)["id"], req.FundCode, simulator.SellRequest{
		Shares:     req.Shares,
		Percentage: req.Percentage,
	})
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleNextDay handles POST /api/sessions/{id}/next
func (s *Server) handleNextDay(w http.ResponseWriter, r *http.Request) {
	result, err := s.sessions.NextDay(mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleSnapshot handles GET /api/sessions/{id}/snapshot?days_ago=&date=&fund_code=
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var q simulator.SnapshotQuery
	if v := query.Get("days_ago"); v != "" {
		daysAgo, err := strconv.Atoi(v)
		if err != nil {
			respondInvalidInput(w, "days_ago must be an integer", map[string]interface{}{"days_ago": v})
			return
		}
		q.DaysAgo = daysAgo
	}
	if v := query.Get("date"); v != "" {
		date, err := types.ParseDate(v)
		if err != nil {
			respondInvalidInput(w, "date must be YYYY-MM-DD", map[string]interface{}{"date": v})
			return
		}
		q.TargetDate = &date
	}
	q.FundCode = query.Get("fund_code")

	snap, err := s.sessions.Snapshot(mux.Vars(r)["id"], q)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// handleFundHistory handles GET /api/sessions/{id}/history/{code}?days=
func (s *Server) handleFundHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	days := simulator.DefaultHistoryDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondInvalidInput(w, "days must be a positive integer", map[string]interface{}{"days": v})
			return
		}
		days = n
	}

	history, err := s.sessions.FundHistory(vars["id"], vars["code"], days)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// handleSummary handles GET /api/sessions/{id}/summary
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.sessions.Summary(mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// handleExport handles POST /api/sessions/{id}/export
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.sessions.Export(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, outcome)
}

// handleExportFile handles POST /api/sessions/{id}/export/file
func (s *Server) handleExportFile(w http.ResponseWriter, r *http.Request) {
	result, err := s.sessions.ExportToFile(mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleImport handles POST /api/sessions/{id}/import.
// Unknown fields are tolerated so documents from older exports still load.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var doc models.HistoryDocument
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		respondInvalidInput(w, "Invalid history document", map[string]interface{}{"reason": err.Error()})
		return
	}

	result, err := s.sessions.Import(mux.Vars(r)["id"], &doc)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleChart handles GET /api/sessions/{id}/chart - PNG of net worth against the domestic index
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	doc, err := s.sessions.Document(mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	tl := s.sessions.Timeline()
	png, err := report.RenderNetWorth(doc, report.BenchmarkFromTimeline(tl, tl.DomesticIndex()), "Net worth")
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
