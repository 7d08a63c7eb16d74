package api

import (
	"net/http"

	"github.com/scenario-simulator/internal/types"
)

// ScenarioView describes the loaded scenario
type ScenarioView struct {
	Description   string     `json:"description"`
	FirstDate     types.Date `json:"firstDate"`
	LastDate      types.Date `json:"lastDate"`
	Floor         types.Date `json:"floor"`
	TradingDays   int        `json:"tradingDays"`
	FundCodes     []string   `json:"fundCodes"`
	DomesticIndex string     `json:"domesticIndex"`
	ForeignIndex  string     `json:"foreignIndex"`
}

// handleGetScenario handles GET /api/scenario
func (s *Server) handleGetScenario(w http.ResponseWriter, r *http.Request) {
	tl := s.sessions.Timeline()
	respondJSON(w, http.StatusOK, ScenarioView{
		Description:   tl.Description(),
		FirstDate:     tl.First(),
		LastDate:      tl.Last(),
		Floor:         tl.Floor(),
		TradingDays:   tl.Len(),
		FundCodes:     tl.FundCodes(),
		DomesticIndex: tl.DomesticIndex(),
		ForeignIndex:  tl.ForeignIndex(),
	})
}
