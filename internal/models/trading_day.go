package models

import (
	"github.com/scenario-simulator/internal/types"
	"github.com/shopspring/decimal"
)

// IndexLevel is an index close and its percent change on a trading day
type IndexLevel struct {
	Close     float64 `json:"close"`
	ChangePct float64 `json:"changePct"`
}

// FundLevel is a fund NAV and its percent change on a trading day
type FundLevel struct {
	NAV       decimal.Decimal `json:"nav"`
	ChangePct float64         `json:"changePct"`
}

// TradingDay is one reconciled calendar day of the scenario
type TradingDay struct {
	Date    types.Date            `json:"date"`
	Indices map[string]IndexLevel `json:"indices"`
	Funds   map[string]FundLevel  `json:"funds"`
	News    []string              `json:"news"`
}

// TimelineSnapshot is the serializable form of a built timeline
type TimelineSnapshot struct {
	Days          []TradingDay `json:"days"`
	Floor         types.Date   `json:"floor"`
	Description   string       `json:"description"`
	FundCodes     []string     `json:"fundCodes"`
	DomesticIndex string       `json:"domesticIndex"`
	ForeignIndex  string       `json:"foreignIndex"`
}
