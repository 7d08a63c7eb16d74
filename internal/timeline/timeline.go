package timeline

import (
	"sort"

	"github.com/scenario-simulator/internal/models"
	"github.com/scenario-simulator/internal/types"
)

// Timeline is the ordered, immutable calendar of trading days of a scenario.
// It is safe for concurrent readers.
type Timeline struct {
	days          []models.TradingDay
	positions     map[types.Date]int
	floor         types.Date
	description   string
	fundCodes     []string
	fundSet       map[string]struct{}
	domesticIndex string
	foreignIndex  string
}

// FromSnapshot rebuilds a Timeline from its serialized form.
// Days are sorted by date; a later duplicate date replaces an earlier one.
func FromSnapshot(snap models.TimelineSnapshot) *Timeline {
	days := make([]models.TradingDay, 0, len(snap.Days))
	seen := make(map[types.Date]int, len(snap.Days))
	for _, day := range snap.Days {
		if i, ok := seen[day.Date]; ok {
			days[i] = day
			continue
		}
		seen[day.Date] = len(days)
		days = append(days, day)
	}
	sort.SliceStable(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })

	fundCodes := append([]string(nil), snap.FundCodes...)
	if len(fundCodes) == 0 && len(days) > 0 {
		for code := range days[0].Funds {
			fundCodes = append(fundCodes, code)
		}
	}
	sort.Strings(fundCodes)

	tl := &Timeline{
		days:          days,
		positions:     make(map[types.Date]int, len(days)),
		floor:         snap.Floor,
		description:   snap.Description,
		fundCodes:     fundCodes,
		fundSet:       make(map[string]struct{}, len(fundCodes)),
		domesticIndex: orDefault(snap.DomesticIndex, DefaultDomesticIndex),
		foreignIndex:  orDefault(snap.ForeignIndex, DefaultForeignIndex),
	}
	for i, day := range days {
		tl.positions[day.Date] = i
	}
	for _, code := range fundCodes {
		tl.fundSet[code] = struct{}{}
	}
	return tl
}

// Snapshot returns the serializable form of the timeline
func (t *Timeline) Snapshot() models.TimelineSnapshot {
	return models.TimelineSnapshot{
		Days:          t.Days(),
		Floor:         t.floor,
		Description:   t.description,
		FundCodes:     t.FundCodes(),
		DomesticIndex: t.domesticIndex,
		ForeignIndex:  t.foreignIndex,
	}
}

// Len returns the number of trading days
func (t *Timeline) Len() int {
	return len(t.days)
}

// Day returns the trading day at position i.
// The returned maps are shared and must not be modified.
func (t *Timeline) Day(i int) (models.TradingDay, bool) {
	if i < 0 || i >= len(t.days) {
		return models.TradingDay{}, false
	}
	return t.days[i], true
}

// Days returns a copy of the ordered trading days
func (t *Timeline) Days() []models.TradingDay {
	out := make([]models.TradingDay, len(t.days))
	copy(out, t.days)
	return out
}

// First returns the earliest trading date, or the zero date when empty
func (t *Timeline) First() types.Date {
	if len(t.days) == 0 {
		return types.Date{}
	}
	return t.days[0].Date
}

// Last returns the latest trading date, or the zero date when empty
func (t *Timeline) Last() types.Date {
	if len(t.days) == 0 {
		return types.Date{}
	}
	return t.days[len(t.days)-1].Date
}

// IndexOf returns the position of an exact trading date
func (t *Timeline) IndexOf(date types.Date) (int, bool) {
	i, ok := t.positions[types.DateOf(date.Time)]
	return i, ok
}

// AtOrBefore returns the position of the latest trading day not after date.
// exact reports whether that day is date itself; ok is false when date precedes the timeline.
func (t *Timeline) AtOrBefore(date types.Date) (index int, exact bool, ok bool) {
	date = types.DateOf(date.Time)
	if i, found := t.positions[date]; found {
		return i, true, true
	}
	// first day strictly after date
	i := sort.Search(len(t.days), func(i int) bool { return t.days[i].Date.After(date) })
	if i == 0 {
		return 0, false, false
	}
	return i - 1, false, true
}

// FirstIndexAtOrAfter returns the position of the first trading day on or after date,
// or Len() when every day precedes it
func (t *Timeline) FirstIndexAtOrAfter(date types.Date) int {
	date = types.DateOf(date.Time)
	return sort.Search(len(t.days), func(i int) bool { return !t.days[i].Date.Before(date) })
}

// Floor returns the earliest valid date the timeline was cut at
func (t *Timeline) Floor() types.Date {
	return t.floor
}

// Description returns the scene narrative
func (t *Timeline) Description() string {
	return t.description
}

// FundCodes returns the tracked fund codes in ascending order
func (t *Timeline) FundCodes() []string {
	return append([]string(nil), t.fundCodes...)
}

// IsFund reports whether code is a tracked, tradable fund
func (t *Timeline) IsFund(code string) bool {
	_, ok := t.fundSet[code]
	return ok
}

// DomesticIndex returns the key of the benchmark index
func (t *Timeline) DomesticIndex() string {
	return t.domesticIndex
}

// ForeignIndex returns the key of the secondary required index
func (t *Timeline) ForeignIndex() string {
	return t.foreignIndex
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
