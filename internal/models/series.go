package models

import (
	"time"

	"github.com/scenario-simulator/internal/types"
	"github.com/shopspring/decimal"
)

// RawFundNAV is a fund valuation row as stored, before normalization
type RawFundNAV struct {
	FundCode       string
	Date           string
	UnitNAV        string
	AccNAV         string
	DailyGrowth    string
	StatusPurchase string
	StatusRedeem   string
}

// IndexInfo names an index series in storage
type IndexInfo struct {
	Code string
	Name string
}

// RawIndexRow is an index row as stored, before normalization
type RawIndexRow struct {
	IndexCode string
	Date      string
	Close     string
	Open      string
	High      string
	Low       string
	Volume    string
	ChangePct string
}

// RawNews is a dated news item as stored
type RawNews struct {
	Date    string `json:"date"`
	Content string `json:"content"`
}

// FundQuote is a normalized fund valuation for one day
type FundQuote struct {
	FundCode       string          `json:"fundCode"`
	Date           types.Date      `json:"date"`
	UnitNAV        decimal.Decimal `json:"unitNav"`
	AccNAV         decimal.Decimal `json:"accNav"`
	ChangePct      float64         `json:"changePct"`
	PurchaseStatus string          `json:"purchaseStatus,omitempty"`
	RedeemStatus   string          `json:"redeemStatus,omitempty"`
}

// IndexQuote is a normalized index observation for one day
type IndexQuote struct {
	IndexCode string     `json:"indexCode"`
	Key       string     `json:"key"`
	Date      types.Date `json:"date"`
	Close     float64    `json:"close"`
	Open      float64    `json:"open"`
	High      float64    `json:"high"`
	Low       float64    `json:"low"`
	Volume    float64    `json:"volume"`
	ChangePct float64    `json:"changePct"`
}

// NewsEvent is a dated piece of narrative content
type NewsEvent struct {
	Date    types.Date `json:"date"`
	Content string     `json:"content"`
}

// RunSummary describes an archived simulation run
type RunSummary struct {
	RunID          string
	SessionID      string
	StartDate      types.Date
	EndDate        types.Date
	InitialCapital decimal.Decimal
	FinalAssets    decimal.Decimal
	ReturnRate     float64
	ActionCount    int
	ArchivedAt     time.Time
}
