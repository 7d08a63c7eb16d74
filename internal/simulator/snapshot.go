package simulator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/scenario-simulator/internal/errors"
	"github.com/scenario-simulator/internal/models"
	"github.com/scenario-simulator/internal/types"
)

// DefaultHistoryDays is the window of FundHistory when none is given
const DefaultHistoryDays = 30

// SnapshotQuery selects a past trading day, either by offset from the cursor or by date.
// TargetDate wins when both are set. FundCode narrows the fund section to one fund.
type SnapshotQuery struct {
	DaysAgo    int
	TargetDate *types.Date
	FundCode   string
}

// DaySnapshot is the market data of one trading day
type DaySnapshot struct {
	Date          types.Date                   `json:"date"`
	RequestedDate *types.Date                  `json:"requestedDate,omitempty"`
	Approximate   bool                         `json:"approximate"`
	Indices       map[string]models.IndexLevel `json:"indices"`
	Funds         map[string]models.FundLevel  `json:"funds"`
	News          []string                     `json:"news"`
	Message       string                       `json:"message,omitempty"`
}

// GetSnapshot returns market data of a past or current trading day without changing state.
// A target date that is not a trading day resolves to the closest preceding trading day.
func (s *Simulator) GetSnapshot(q SnapshotQuery) (*DaySnapshot, error) {
	if s.tl.Len() == 0 {
		return nil, errors.NewOutOfRangeError("snapshot", s.tl.First(), s.tl.Last())
	}

	var (
		index       int
		approximate bool
	)

	if q.TargetDate != nil {
		target := types.DateOf(q.TargetDate.Time)
		if target.Before(s.tl.First()) || target.After(s.tl.Last()) {
			return nil, errors.NewOutOfRangeError(target.String(), s.tl.First(), s.tl.Last())
		}
		i, exact, ok := s.tl.AtOrBefore(target)
		if !ok {
			return nil, errors.NewOutOfRangeError(target.String(), s.tl.First(), s.tl.Last())
		}
		index, approximate = i, !exact
	} else {
		base := s.lastValuedIndex()
		if q.DaysAgo < 0 || q.DaysAgo > base {
			return nil, errors.NewOutOfRangeError(strconv.Itoa(q.DaysAgo)+" days ago", s.tl.First(), s.tl.Last())
		}
		index = base - q.DaysAgo
	}

	day, _ := s.tl.Day(index)
	snap := &DaySnapshot{
		Date:        day.Date,
		Approximate: approximate,
		Indices:     make(map[string]models.IndexLevel, len(day.Indices)),
		Funds:       make(map[string]models.FundLevel, len(day.Funds)),
		News:        append([]string{}, day.News...),
	}
	for key, level := range day.Indices {
		snap.Indices[key] = level
	}

	if q.FundCode != "" {
		if level, ok := day.Funds[q.FundCode]; ok {
			snap.Funds[q.FundCode] = level
		} else {
			snap.Message = fmt.Sprintf("no data for fund %s on %s", q.FundCode, day.Date)
		}
	} else {
		for code, level := range day.Funds {
			snap.Funds[code] = level
		}
	}

	if approximate {
		requested := types.DateOf(q.TargetDate.Time)
		snap.RequestedDate = &requested
		if snap.Message == "" {
			snap.Message = fmt.Sprintf("%s is not a trading day, showing %s", requested, day.Date)
		}
	}

	return snap, nil
}

// HistoryPoint is one observation of a fund or index
type HistoryPoint struct {
	Date      types.Date `json:"date"`
	Value     float64    `json:"value"`
	ChangePct float64    `json:"changePct"`
}

// FundHistory is the recent series of a fund or index, newest first
type FundHistory struct {
	Code         string         `json:"code"`
	IsIndex      bool           `json:"isIndex"`
	Points       []HistoryPoint `json:"points"`
	PeriodReturn float64        `json:"periodReturn"`
}

// FundHistory returns up to days trading days of a fund or index ending at the cursor.
// Index aliases such as "SH000001" or "DJI" resolve to the canonical keys.
func (s *Simulator) FundHistory(code string, days int) (*FundHistory, error) {
	if days == 0 {
		days = DefaultHistoryDays
	}
	if days < 0 {
		return nil, errors.NewInvalidAmountError("days must be positive", map[string]interface{}{"days": days})
	}
	if s.tl.Len() == 0 {
		return nil, errors.NewOutOfRangeError("history", s.tl.First(), s.tl.Last())
	}

	key, isIndex := s.resolveSeries(code)
	if key == "" {
		return nil, errors.NewInvalidTargetError(code)
	}

	end := s.lastValuedIndex()
	start := end - days + 1
	if start < 0 {
		start = 0
	}

	history := &FundHistory{Code: key, IsIndex: isIndex, Points: make([]HistoryPoint, 0, end-start+1)}
	for i := end; i >= start; i-- {
		day, _ := s.tl.Day(i)
		if isIndex {
			level, ok := day.Indices[key]
			if !ok {
				continue
			}
			history.Points = append(history.Points, HistoryPoint{Date: day.Date, Value: level.Close, ChangePct: level.ChangePct})
			continue
		}
		level, ok := day.Funds[key]
		if !ok {
			continue
		}
		history.Points = append(history.Points, HistoryPoint{Date: day.Date, Value: level.NAV.InexactFloat64(), ChangePct: level.ChangePct})
	}

	if n := len(history.Points); n >= 2 {
		newest, oldest := history.Points[0].Value, history.Points[n-1].Value
		if oldest != 0 {
			history.PeriodReturn = (newest - oldest) / oldest
		}
	}

	return history, nil
}

func (s *Simulator) resolveSeries(code string) (key string, isIndex bool) {
	if s.tl.IsFund(code) {
		return code, false
	}

	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "SH_INDEX", "SH000001", "000001.SH", "上证指数":
		return s.tl.DomesticIndex(), true
	case "DJ_INDEX", "DJI", "^DJI", "道琼斯指数":
		return s.tl.ForeignIndex(), true
	}

	if day, ok := s.tl.Day(0); ok {
		if _, ok := day.Indices[code]; ok {
			return code, true
		}
	}
	return "", false
}
