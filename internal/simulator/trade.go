package simulator

import (
	"fmt"

	"github.com/scenario-simulator/internal/errors"
	"github.com/scenario-simulator/internal/models"
	"github.com/scenario-simulator/internal/types"
	"github.com/shopspring/decimal"
)

// TradeResult describes an executed buy or sell
type TradeResult struct {
	Kind     types.ActionKind `json:"kind"`
	FundCode string           `json:"fundCode"`
	Date     types.Date       `json:"date"`
	Amount   decimal.Decimal  `json:"amount"`
	Shares   decimal.Decimal  `json:"shares"`
	NAV      decimal.Decimal  `json:"nav"`
	Cash     decimal.Decimal  `json:"cash"`
	// Remaining is the position left in the fund after the trade
	Remaining decimal.Decimal `json:"remaining"`
	ActionID  string          `json:"actionId"`
	Message   string          `json:"message"`
}

// SellRequest selects how much of a position to sell; exactly one field must be set
type SellRequest struct {
	Shares     *decimal.Decimal `json:"shares,omitempty"`
	Percentage *decimal.Decimal `json:"percentage,omitempty"`
}

// Buy purchases amount of cash worth of a fund at the current day's NAV.
// The amount is rounded to cents; shares are rounded to ShareScale places.
func (s *Simulator) Buy(fundCode string, amount decimal.Decimal) (*TradeResult, error) {
	day, ok := s.currentDay()
	if !ok {
		return nil, errors.NewAlreadyEndedError()
	}
	if !s.tl.IsFund(fundCode) {
		return nil, errors.NewInvalidTargetError(fundCode)
	}

	amount = amount.Round(CashScale)
	if !amount.IsPositive() {
		return nil, errors.NewInvalidAmountError("purchase amount must be positive", map[string]interface{}{
			"amount": amount.String(),
		})
	}
	if amount.GreaterThan(s.cash) {
		return nil, errors.NewInsufficientFundsError(amount.StringFixed(CashScale), s.cash.StringFixed(CashScale))
	}

	quote, ok := day.Funds[fundCode]
	if !ok || !quote.NAV.IsPositive() {
		return nil, errors.NewNoQuoteError(fundCode, day.Date)
	}

	shares := amount.DivRound(quote.NAV, ShareScale)
	if !shares.IsPositive() {
		return nil, errors.NewInvalidAmountError("purchase amount buys no shares", map[string]interface{}{
			"amount": amount.String(),
			"nav":    quote.NAV.String(),
		})
	}

	s.holdings[fundCode] = s.holdings[fundCode].Add(shares)
	s.cash = s.cash.Sub(amount)

	record := s.recordAction(types.ActionBuy, day.Date, models.ActionDetails{
		FundCode: fundCode,
		Amount:   decimalPtr(amount),
		NAV:      decimalPtr(quote.NAV),
		Shares:   decimalPtr(shares),
	})
	s.recordNetWorth()

	s.logger.WithFields(map[string]interface{}{
		"fund_code": fundCode,
		"date":      day.Date.String(),
		"amount":    amount.String(),
		"shares":    shares.String(),
		"cash":      s.cash.String(),
	}).Debug("Bought fund")

	return &TradeResult{
		Kind:      types.ActionBuy,
		FundCode:  fundCode,
		Date:      day.Date,
		Amount:    amount,
		Shares:    shares,
		NAV:       quote.NAV,
		Cash:      s.cash,
		Remaining: s.holdings[fundCode],
		ActionID:  record.ID,
		Message:   fmt.Sprintf("bought %s shares of %s for %s", shares.String(), fundCode, amount.StringFixed(CashScale)),
	}, nil
}

// Sell redeems part or all of a position at the current day's NAV.
// Proceeds are rounded to cents. A position sold down to zero is removed.
func (s *Simulator) Sell(fundCode string, req SellRequest) (*TradeResult, error) {
	day, ok := s.currentDay()
	if !ok {
		return nil, errors.NewAlreadyEndedError()
	}

	held, ok := s.holdings[fundCode]
	if !ok || !held.IsPositive() {
		return nil, errors.NewNotHeldError(fundCode)
	}

	shares, err := sharesToSell(held, req)
	if err != nil {
		return nil, err
	}

	quote, ok := day.Funds[fundCode]
	if !ok || !quote.NAV.IsPositive() {
		return nil, errors.NewNoQuoteError(fundCode, day.Date)
	}

	proceeds := shares.Mul(quote.NAV).Round(CashScale)
	remaining := held.Sub(shares)
	if remaining.IsPositive() {
		s.holdings[fundCode] = remaining
	} else {
		delete(s.holdings, fundCode)
		remaining = decimal.Zero
	}
	s.cash = s.cash.Add(proceeds)

	record := s.recordAction(types.ActionSell, day.Date, models.ActionDetails{
		FundCode: fundCode,
		Amount:   decimalPtr(proceeds),
		NAV:      decimalPtr(quote.NAV),
		Shares:   decimalPtr(shares),
	})
	s.recordNetWorth()

	s.logger.WithFields(map[string]interface{}{
		"fund_code": fundCode,
		"date":      day.Date.String(),
		"shares":    shares.String(),
		"proceeds":  proceeds.String(),
		"cash":      s.cash.String(),
	}).Debug("Sold fund")

	return &TradeResult{
		Kind:      types.ActionSell,
		FundCode:  fundCode,
		Date:      day.Date,
		Amount:    proceeds,
		Shares:    shares,
		NAV:       quote.NAV,
		Cash:      s.cash,
		Remaining: remaining,
		ActionID:  record.ID,
		Message:   fmt.Sprintf("sold %s shares of %s for %s", shares.String(), fundCode, proceeds.StringFixed(CashScale)),
	}, nil
}

func sharesToSell(held decimal.Decimal, req SellRequest) (decimal.Decimal, error) {
	switch {
	case req.Shares != nil && req.Percentage != nil:
		return decimal.Zero, errors.NewInvalidAmountError("specify either shares or percentage, not both", nil)

	case req.Shares != nil:
		shares := *req.Shares
		if !shares.IsPositive() || shares.GreaterThan(held) {
			return decimal.Zero, errors.NewInvalidAmountError("shares must be positive and no more than held", map[string]interface{}{
				"shares": shares.String(),
				"held":   held.String(),
			})
		}
		return shares, nil

	case req.Percentage != nil:
		pct := *req.Percentage
		if !pct.IsPositive() || pct.GreaterThan(decimal.NewFromInt(1)) {
			return decimal.Zero, errors.NewInvalidAmountError("percentage must be in (0, 1]", map[string]interface{}{
				"percentage": pct.String(),
			})
		}
		if pct.Equal(decimal.NewFromInt(1)) {
			return held, nil
		}
		shares := held.Mul(pct).Round(ShareScale)
		if !shares.IsPositive() {
			return decimal.Zero, errors.NewInvalidAmountError("percentage sells no shares", map[string]interface{}{
				"percentage": pct.String(),
				"held":       held.String(),
			})
		}
		return shares, nil

	default:
		return decimal.Zero, errors.NewInvalidAmountError("specify shares or percentage to sell", nil)
	}
}
