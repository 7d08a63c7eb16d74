package simulator

import (
	"github.com/scenario-simulator/internal/models"
	"github.com/scenario-simulator/internal/types"
	"github.com/shopspring/decimal"
)

// State is the view of the simulation on the current trading day
type State struct {
	Status        types.SimulationStatus       `json:"status"`
	Message       string                       `json:"message,omitempty"`
	Date          types.Date                   `json:"date"`
	Cash          decimal.Decimal              `json:"cash"`
	HoldingsValue decimal.Decimal              `json:"holdingsValue"`
	TotalAssets   decimal.Decimal              `json:"totalAssets"`
	Indices       map[string]models.IndexLevel `json:"indices,omitempty"`
	Funds         map[string]models.FundLevel  `json:"funds,omitempty"`
	Holdings      []HoldingView                `json:"holdings"`
	News          []string                     `json:"news"`
}

// CurrentState values the portfolio on the current trading day and records the valuation.
// Once the simulation has ended it returns an ended marker carrying the final cash.
func (s *Simulator) CurrentState() *State {
	day, ok := s.currentDay()
	if !ok {
		s.ended = true
		return &State{
			Status:      types.StatusEnded,
			Message:     "simulation has ended",
			Date:        s.tl.Last(),
			Cash:        s.cash,
			TotalAssets: s.finalAssets(),
			Holdings:    []HoldingView{},
			News:        []string{},
		}
	}

	holdingsValue, views := s.valuation(day)
	s.recordNetWorth()

	indices := make(map[string]models.IndexLevel, len(day.Indices))
	for key, level := range day.Indices {
		indices[key] = level
	}
	funds := make(map[string]models.FundLevel, len(day.Funds))
	for code, level := range day.Funds {
		funds[code] = level
	}

	return &State{
		Status:        types.StatusActive,
		Date:          day.Date,
		Cash:          s.cash,
		HoldingsValue: holdingsValue,
		TotalAssets:   s.cash.Add(holdingsValue),
		Indices:       indices,
		Funds:         funds,
		Holdings:      views,
		News:          append([]string{}, day.News...),
	}
}

// finalAssets is the latest recorded total, or the current cash when nothing was valued
func (s *Simulator) finalAssets() decimal.Decimal {
	if n := len(s.netWorth); n > 0 {
		return s.netWorth[n-1].TotalAssets
	}
	return s.cash
}
