// Package simulator runs a single-portfolio investment simulation over a Timeline.
//
// A Simulator is not safe for concurrent use; callers that share one across
// goroutines must serialize access (see service.SessionService).
package simulator

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/scenario-simulator/internal/errors"
	"github.com/scenario-simulator/internal/logging"
	"github.com/scenario-simulator/internal/models"
	"github.com/scenario-simulator/internal/timeline"
	"github.com/scenario-simulator/internal/types"
	"github.com/shopspring/decimal"
)

const (
	// CashScale is the number of decimal places of cash and trade amounts
	CashScale int32 = 2
	// ShareScale is the number of decimal places of fund shares
	ShareScale int32 = 10
)

// DefaultInitialCapital is the starting cash when none is configured
var DefaultInitialCapital = decimal.NewFromInt(100000)

// Config configures a Simulator
type Config struct {
	InitialCapital decimal.Decimal
	// Clock stamps action records; defaults to time.Now
	Clock func() time.Time
}

// Simulator owns the cash, holdings, cursor and logs of one simulation
type Simulator struct {
	tl     *timeline.Timeline
	cfg    Config
	logger *logging.Logger

	startIndex int
	cash       decimal.Decimal
	holdings   map[string]decimal.Decimal
	cursor     int
	ended      bool
	actions    []models.ActionRecord
	netWorth   []models.NetWorthSnapshot
}

// New creates a simulator positioned at the first trading day on or after the timeline floor
func New(tl *timeline.Timeline, cfg Config, logger *logging.Logger) (*Simulator, error) {
	if tl == nil {
		return nil, errors.NewInternalError("simulator requires a timeline", nil)
	}
	if cfg.InitialCapital.IsZero() {
		cfg.InitialCapital = DefaultInitialCapital
	}
	cfg.InitialCapital = cfg.InitialCapital.Round(CashScale)
	if !cfg.InitialCapital.IsPositive() {
		return nil, errors.NewInvalidAmountError("initial capital must be positive", map[string]interface{}{
			"initial_capital": cfg.InitialCapital.String(),
		})
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	s := &Simulator{
		tl:         tl,
		cfg:        cfg,
		logger:     logger.WithComponent("simulator"),
		startIndex: tl.FirstIndexAtOrAfter(tl.Floor()),
	}
	s.Reset()
	return s, nil
}

// Reset discards all trading and returns to the start of the timeline with the initial capital
func (s *Simulator) Reset() {
	s.cash = s.cfg.InitialCapital
	s.holdings = make(map[string]decimal.Decimal)
	s.cursor = s.startIndex
	s.ended = s.cursor >= s.tl.Len()
	s.actions = nil
	s.netWorth = nil
	s.recordNetWorth()

	s.logger.WithFields(map[string]interface{}{
		"initial_capital": s.cash.String(),
		"start_index":     s.startIndex,
		"days":            s.tl.Len(),
	}).Debug("Simulation reset")
}

// Timeline returns the timeline this simulator runs over
func (s *Simulator) Timeline() *timeline.Timeline {
	return s.tl
}

// InitialCapital returns the configured starting cash
func (s *Simulator) InitialCapital() decimal.Decimal {
	return s.cfg.InitialCapital
}

// Cash returns the current cash balance
func (s *Simulator) Cash() decimal.Decimal {
	return s.cash
}

// Holdings returns a copy of the share counts per fund
func (s *Simulator) Holdings() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(s.holdings))
	for code, shares := range s.holdings {
		out[code] = shares
	}
	return out
}

// Cursor returns the index of the current trading day; equals Len() once ended
func (s *Simulator) Cursor() int {
	return s.cursor
}

// Ended reports whether the simulation moved past the last trading day
func (s *Simulator) Ended() bool {
	return s.ended
}

// Actions returns a copy of the action log
func (s *Simulator) Actions() []models.ActionRecord {
	return append([]models.ActionRecord(nil), s.actions...)
}

// NetWorthHistory returns a copy of the recorded valuations
func (s *Simulator) NetWorthHistory() []models.NetWorthSnapshot {
	return append([]models.NetWorthSnapshot(nil), s.netWorth...)
}

// CurrentDate returns the date of the current trading day, or the last day once ended
func (s *Simulator) CurrentDate() types.Date {
	if day, ok := s.currentDay(); ok {
		return day.Date
	}
	return s.tl.Last()
}

func (s *Simulator) currentDay() (models.TradingDay, bool) {
	if s.ended {
		return models.TradingDay{}, false
	}
	return s.tl.Day(s.cursor)
}

// lastValuedIndex is the newest day a query may look at
func (s *Simulator) lastValuedIndex() int {
	if s.cursor >= s.tl.Len() {
		return s.tl.Len() - 1
	}
	return s.cursor
}

// HoldingView is one position marked to market
type HoldingView struct {
	FundCode  string          `json:"fundCode"`
	Shares    decimal.Decimal `json:"shares"`
	NAV       decimal.Decimal `json:"nav"`
	Value     decimal.Decimal `json:"value"`
	ChangePct float64         `json:"changePct"`
}

// valuation marks every position to market on day
func (s *Simulator) valuation(day models.TradingDay) (decimal.Decimal, []HoldingView) {
	codes := make([]string, 0, len(s.holdings))
	for code := range s.holdings {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	total := decimal.Zero
	views := make([]HoldingView, 0, len(codes))
	for _, code := range codes {
		shares := s.holdings[code]
		quote, ok := day.Funds[code]
		if !ok {
			// unreachable for timelines produced by the builder
			s.logger.WithField("fund_code", code).WithField("date", day.Date.String()).Warn("Held fund has no NAV, valued at zero")
			views = append(views, HoldingView{FundCode: code, Shares: shares})
			continue
		}
		value := shares.Mul(quote.NAV)
		total = total.Add(value)
		views = append(views, HoldingView{
			FundCode:  code,
			Shares:    shares,
			NAV:       quote.NAV,
			Value:     value,
			ChangePct: quote.ChangePct,
		})
	}
	return total, views
}

// recordNetWorth appends a valuation for the current day while the simulation is active
func (s *Simulator) recordNetWorth() {
	day, ok := s.currentDay()
	if !ok {
		return
	}
	holdingsValue, _ := s.valuation(day)
	s.netWorth = append(s.netWorth, models.NetWorthSnapshot{
		Date:          day.Date,
		Cash:          s.cash,
		HoldingsValue: holdingsValue,
		TotalAssets:   s.cash.Add(holdingsValue),
	})
}

func (s *Simulator) recordAction(kind types.ActionKind, date types.Date, details models.ActionDetails) models.ActionRecord {
	record := models.ActionRecord{
		ID:        uuid.NewString(),
		Date:      date,
		Kind:      kind,
		Details:   details,
		CashAfter: s.cash,
		Timestamp: s.cfg.Clock().UTC().Format(time.RFC3339Nano),
	}
	s.actions = append(s.actions, record)
	return record
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
