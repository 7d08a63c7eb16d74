package models

import (
	"github.com/scenario-simulator/internal/types"
	"github.com/shopspring/decimal"
)

// ActionDetails holds the parameters of a recorded action
type ActionDetails struct {
	FundCode string           `json:"fund_code,omitempty"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	NAV      *decimal.Decimal `json:"nav,omitempty"`
	Shares   *decimal.Decimal `json:"shares,omitempty"`
	FromDate *types.Date      `json:"from_date,omitempty"`
}

// ActionRecord is one entry of the append-only action log
type ActionRecord struct {
	ID        string           `json:"id,omitempty"`
	Date      types.Date       `json:"date"`
	Kind      types.ActionKind `json:"action_type"`
	Details   ActionDetails    `json:"details"`
	CashAfter decimal.Decimal  `json:"cash_after"`
	Timestamp string           `json:"timestamp"`
}

// NetWorthSnapshot is a mark-to-market valuation at a point in the simulation
type NetWorthSnapshot struct {
	Date          types.Date      `json:"date"`
	Cash          decimal.Decimal `json:"cash"`
	HoldingsValue decimal.Decimal `json:"holdings_value"`
	TotalAssets   decimal.Decimal `json:"total_assets"`
}

// SimulationInfo summarizes a simulation in a history document
type SimulationInfo struct {
	StartDate      types.Date      `json:"start_date"`
	EndDate        types.Date      `json:"end_date"`
	InitialCapital decimal.Decimal `json:"initial_capital"`
	FinalAssets    decimal.Decimal `json:"final_assets"`
	ReturnRate     float64         `json:"return_rate"`
	Ended          bool            `json:"ended,omitempty"`
}

// HistoryDocument is the export/import format of a simulation
type HistoryDocument struct {
	SimulationInfo  *SimulationInfo    `json:"simulation_info"`
	Actions         []ActionRecord     `json:"actions"`
	NetWorthHistory []NetWorthSnapshot `json:"net_worth_history"`
}
