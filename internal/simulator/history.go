package simulator

import (
	"strconv"

	"github.com/scenario-simulator/internal/errors"
	"github.com/scenario-simulator/internal/models"
	"github.com/scenario-simulator/internal/storage"
	"github.com/scenario-simulator/internal/types"
	"github.com/shopspring/decimal"
)

// ExportResult describes a history document written to disk
type ExportResult struct {
	Path        string          `json:"path"`
	Actions     int             `json:"actions"`
	FinalAssets decimal.Decimal `json:"finalAssets"`
	ReturnRate  float64         `json:"returnRate"`
}

// ImportResult describes a restored simulation
type ImportResult struct {
	EndDate  types.Date                 `json:"endDate"`
	Cash     decimal.Decimal            `json:"cash"`
	Holdings map[string]decimal.Decimal `json:"holdings"`
	Actions  int                        `json:"actions"`
	Ended    bool                       `json:"ended"`
}

// ExportDocument captures the simulation as a history document
func (s *Simulator) ExportDocument() *models.HistoryDocument {
	initial := s.cfg.InitialCapital
	final := s.finalAssets()

	var returnRate float64
	if initial.IsPositive() {
		returnRate = final.Sub(initial).Div(initial).InexactFloat64()
	}

	var start types.Date
	if day, ok := s.tl.Day(s.startIndex); ok {
		start = day.Date
	}

	actions := make([]models.ActionRecord, len(s.actions))
	copy(actions, s.actions)
	netWorth := make([]models.NetWorthSnapshot, len(s.netWorth))
	copy(netWorth, s.netWorth)

	return &models.HistoryDocument{
		SimulationInfo: &models.SimulationInfo{
			StartDate:      start,
			EndDate:        s.CurrentDate(),
			InitialCapital: initial,
			FinalAssets:    final,
			ReturnRate:     returnRate,
			Ended:          s.ended,
		},
		Actions:         actions,
		NetWorthHistory: netWorth,
	}
}

// ExportActions writes the history document to path
func (s *Simulator) ExportActions(path string) (*ExportResult, error) {
	doc := s.ExportDocument()
	if err := storage.WriteHistoryFile(path, doc); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"path":    path,
		"actions": len(doc.Actions),
	}).Info("Exported simulation history")

	return &ExportResult{
		Path:        path,
		Actions:     len(doc.Actions),
		FinalAssets: doc.SimulationInfo.FinalAssets,
		ReturnRate:  doc.SimulationInfo.ReturnRate,
	}, nil
}

// ImportHistory restores the simulation from a history document on disk
func (s *Simulator) ImportHistory(path string) (*ImportResult, error) {
	doc, err := storage.ReadHistoryFile(path)
	if err != nil {
		return nil, err
	}
	return s.ImportDocument(doc)
}

// ImportDocument restores cash, holdings, cursor and logs from a history document.
// Holdings are rebuilt by replaying the action log; cash comes from the last valuation.
// The simulator is left untouched when the document is rejected.
func (s *Simulator) ImportDocument(doc *models.HistoryDocument) (*ImportResult, error) {
	if doc == nil || doc.SimulationInfo == nil {
		return nil, errors.NewInvalidFormatError("missing simulation_info", nil)
	}
	if doc.Actions == nil {
		return nil, errors.NewInvalidFormatError("missing actions", nil)
	}
	if doc.NetWorthHistory == nil {
		return nil, errors.NewInvalidFormatError("missing net_worth_history", nil)
	}
	if len(doc.NetWorthHistory) == 0 {
		return nil, errors.NewInvalidFormatError("net_worth_history is empty", nil)
	}
	info := doc.SimulationInfo
	if info.EndDate.IsZero() {
		return nil, errors.NewInvalidFormatError("missing end_date", nil)
	}
	if info.InitialCapital.IsNegative() {
		return nil, errors.NewInvalidFormatError("initial_capital must be positive", nil)
	}

	endIndex, ok := s.tl.IndexOf(info.EndDate)
	if !ok {
		return nil, errors.NewDateNotFoundError(info.EndDate)
	}

	actions := make([]models.ActionRecord, 0, len(doc.Actions))
	holdings := make(map[string]decimal.Decimal)
	for i, action := range doc.Actions {
		kind, ok := types.ParseActionKind(string(action.Kind))
		if !ok {
			return nil, errors.NewInvalidFormatError("unknown action_type "+string(action.Kind)+" at position "+strconv.Itoa(i), nil)
		}
		action.Kind = kind

		switch kind {
		case types.ActionBuy, types.ActionSell:
			if action.Details.FundCode == "" || action.Details.Shares == nil || !action.Details.Shares.IsPositive() {
				return nil, errors.NewInvalidFormatError("trade without fund_code or positive shares at position "+strconv.Itoa(i), nil)
			}
			replayTrade(holdings, kind, action.Details.FundCode, *action.Details.Shares)
		}
		actions = append(actions, action)
	}

	netWorth := make([]models.NetWorthSnapshot, len(doc.NetWorthHistory))
	copy(netWorth, doc.NetWorthHistory)

	cursor := endIndex
	ended := info.Ended && endIndex == s.tl.Len()-1
	if ended {
		cursor = s.tl.Len()
	}

	// returns are measured against the capital the imported run started with
	if info.InitialCapital.IsPositive() {
		s.cfg.InitialCapital = info.InitialCapital.Round(CashScale)
	}
	s.cash = netWorth[len(netWorth)-1].Cash
	s.holdings = holdings
	s.cursor = cursor
	s.ended = ended
	s.actions = actions
	s.netWorth = netWorth

	s.logger.WithFields(map[string]interface{}{
		"end_date": info.EndDate.String(),
		"actions":  len(actions),
		"cash":     s.cash.String(),
		"holdings": len(holdings),
	}).Info("Imported simulation history")

	return &ImportResult{
		EndDate:  info.EndDate,
		Cash:     s.cash,
		Holdings: s.Holdings(),
		Actions:  len(actions),
		Ended:    ended,
	}, nil
}

// replayTrade applies a logged trade to holdings. Sells of positions that are not
// held are ignored; positions that reach zero are removed.
func replayTrade(holdings map[string]decimal.Decimal, kind types.ActionKind, fundCode string, shares decimal.Decimal) {
	switch kind {
	case types.ActionBuy:
		holdings[fundCode] = holdings[fundCode].Add(shares)
	case types.ActionSell:
		held, ok := holdings[fundCode]
		if !ok {
			return
		}
		remaining := held.Sub(shares)
		if remaining.IsPositive() {
			holdings[fundCode] = remaining
		} else {
			delete(holdings, fundCode)
		}
	}
}
