// Package timeline reconciles stored fund, index and news series into the
// trading calendar driven by the simulator.
package timeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/scenario-simulator/internal/errors"
	"github.com/scenario-simulator/internal/logging"
	"github.com/scenario-simulator/internal/models"
	"github.com/scenario-simulator/internal/types"
	"github.com/shopspring/decimal"
)

const (
	// DefaultDomesticIndex is the key of the benchmark index
	DefaultDomesticIndex = "sh_index"
	// DefaultForeignIndex is the key of the secondary required index
	DefaultForeignIndex = "dj_index"
	// DefaultPlaceholderScene is used when no scene narrative is stored
	DefaultPlaceholderScene = "No scenario description is available."
)

// SeriesSource reads raw scenario series from storage.
// Numeric fields are returned as stored; normalization happens in the Builder.
type SeriesSource interface {
	FundCodes(ctx context.Context) ([]string, error)
	FundNAV(ctx context.Context, fundCode string) ([]models.RawFundNAV, error)
	Indices(ctx context.Context) ([]models.IndexInfo, error)
	IndexData(ctx context.Context, indexCode string) ([]models.RawIndexRow, error)
	News(ctx context.Context) ([]models.RawNews, error)
	SceneDescription(ctx context.Context) (string, error)
}

// BuilderConfig configures index naming and the scene fallback
type BuilderConfig struct {
	DomesticIndex    string
	ForeignIndex     string
	IndexRules       []IndexNameRule
	PlaceholderScene string
}

// DefaultBuilderConfig returns the configuration of the bundled scenarios
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		DomesticIndex:    DefaultDomesticIndex,
		ForeignIndex:     DefaultForeignIndex,
		IndexRules:       DefaultIndexRules(),
		PlaceholderScene: DefaultPlaceholderScene,
	}
}

// Builder loads and normalizes series and assembles the Timeline
type Builder struct {
	source SeriesSource
	cfg    BuilderConfig
	logger *logging.Logger

	funds     map[string][]models.FundQuote
	indices   map[string][]models.IndexQuote
	news      []models.NewsEvent
	scene     string
	sceneRead bool
}

// NewBuilder creates a new timeline builder
func NewBuilder(source SeriesSource, cfg BuilderConfig, logger *logging.Logger) *Builder {
	if cfg.DomesticIndex == "" {
		cfg.DomesticIndex = DefaultDomesticIndex
	}
	if cfg.ForeignIndex == "" {
		cfg.ForeignIndex = DefaultForeignIndex
	}
	if cfg.IndexRules == nil {
		cfg.IndexRules = DefaultIndexRules()
	}
	if cfg.PlaceholderScene == "" {
		cfg.PlaceholderScene = DefaultPlaceholderScene
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Builder{
		source:  source,
		cfg:     cfg,
		logger:  logger.WithComponent("timeline"),
		funds:   make(map[string][]models.FundQuote),
		indices: make(map[string][]models.IndexQuote),
	}
}

// LoadFundSeries loads and normalizes the NAV series of every stored fund.
// Funds without a single usable row are not tracked.
func (b *Builder) LoadFundSeries(ctx context.Context) map[string][]models.FundQuote {
	b.funds = make(map[string][]models.FundQuote)

	codes, err := b.source.FundCodes(ctx)
	if err != nil {
		b.logger.WithError(errors.NewLoadError("funds", err)).Warn("Failed to list funds, fund series left empty")
		return b.funds
	}

	for _, code := range codes {
		if ctx.Err() != nil {
			return b.funds
		}

		rows, err := b.source.FundNAV(ctx, code)
		if err != nil {
			b.logger.WithError(errors.NewLoadError("fund "+code, err)).WithField("fund_code", code).Warn("Failed to load fund NAV series")
			continue
		}

		quotes := b.normalizeFundRows(code, rows)
		if len(quotes) == 0 {
			b.logger.WithField("fund_code", code).Warn("Fund has no usable NAV rows and is not tracked")
			continue
		}
		b.funds[code] = quotes
	}

	b.logger.WithField("funds", len(b.funds)).Info("Loaded fund series")
	return b.funds
}

func (b *Builder) normalizeFundRows(code string, rows []models.RawFundNAV) []models.FundQuote {
	log := b.logger.WithField("fund_code", code)
	series := "fund " + code
	quotes := make([]models.FundQuote, 0, len(rows))

	for _, row := range rows {
		date, err := types.ParseDate(row.Date)
		if err != nil {
			log.WithError(errors.NewLoadError(series, err)).Warn("Skipping fund row with invalid date")
			continue
		}
		nav, err := ParseDecimal(row.UnitNAV)
		if err == nil && !nav.IsPositive() {
			err = fmt.Errorf("unit NAV %s is not positive", nav)
		}
		if err != nil {
			log.WithError(errors.NewLoadError(series, err)).WithField("date", row.Date).Warn("Skipping fund row with invalid NAV")
			continue
		}
		changePct, err := ParsePercent(row.DailyGrowth)
		if err != nil {
			log.WithError(errors.NewLoadError(series, err)).WithField("date", row.Date).Warn("Skipping fund row with invalid daily growth")
			continue
		}
		accNAV, err := ParseDecimal(row.AccNAV)
		if err != nil {
			accNAV = decimal.Zero
		}

		quotes = append(quotes, models.FundQuote{
			FundCode:       code,
			Date:           date,
			UnitNAV:        nav,
			AccNAV:         accNAV,
			ChangePct:      changePct,
			PurchaseStatus: row.StatusPurchase,
			RedeemStatus:   row.StatusRedeem,
		})
	}

	return dedupeFundQuotes(quotes, log)
}

// LoadIndexSeries loads and normalizes every stored index, keyed by canonical name
func (b *Builder) LoadIndexSeries(ctx context.Context) map[string][]models.IndexQuote {
	b.indices = make(map[string][]models.IndexQuote)

	infos, err := b.source.Indices(ctx)
	if err != nil {
		b.logger.WithError(errors.NewLoadError("indices", err)).Warn("Failed to list indices, index series left empty")
		return b.indices
	}

	for _, info := range infos {
		if ctx.Err() != nil {
			return b.indices
		}

		key := CanonicalIndexKey(info.Code, info.Name, b.cfg.IndexRules)
		rows, err := b.source.IndexData(ctx, info.Code)
		if err != nil {
			b.logger.WithError(errors.NewLoadError("index "+info.Code, err)).WithField("index_code", info.Code).Warn("Failed to load index series")
			continue
		}

		quotes := b.normalizeIndexRows(info.Code, key, rows)
		if _, dup := b.indices[key]; dup {
			b.logger.WithFields(map[string]interface{}{
				"index_code": info.Code,
				"key":        key,
			}).Warn("Index key already loaded, keeping the first series")
			continue
		}
		b.indices[key] = quotes
	}

	b.logger.WithField("indices", len(b.indices)).Info("Loaded index series")
	return b.indices
}

func (b *Builder) normalizeIndexRows(code, key string, rows []models.RawIndexRow) []models.IndexQuote {
	log := b.logger.WithField("index_code", code)
	series := "index " + code
	quotes := make([]models.IndexQuote, 0, len(rows))

	for _, row := range rows {
		date, err := types.ParseDate(row.Date)
		if err != nil {
			log.WithError(errors.NewLoadError(series, err)).Warn("Skipping index row with invalid date")
			continue
		}
		closeValue, err := ParseFloat(row.Close)
		if err != nil {
			log.WithError(errors.NewLoadError(series, err)).WithField("date", row.Date).Warn("Skipping index row with invalid close")
			continue
		}
		changePct, err := ParsePercent(row.ChangePct)
		if err != nil {
			log.WithError(errors.NewLoadError(series, err)).WithField("date", row.Date).Warn("Skipping index row with invalid change")
			continue
		}
		// open/high/low/volume are informational only
		open, _ := ParseOptionalFloat(row.Open)
		high, _ := ParseOptionalFloat(row.High)
		low, _ := ParseOptionalFloat(row.Low)
		volume, _ := ParseOptionalFloat(row.Volume)

		quotes = append(quotes, models.IndexQuote{
			IndexCode: code,
			Key:       key,
			Date:      date,
			Close:     closeValue,
			Open:      open,
			High:      high,
			Low:       low,
			Volume:    volume,
			ChangePct: changePct,
		})
	}

	return dedupeIndexQuotes(quotes, log)
}

// LoadNews loads dated news, ascending by date
func (b *Builder) LoadNews(ctx context.Context) []models.NewsEvent {
	b.news = nil

	raw, err := b.source.News(ctx)
	if err != nil {
		b.logger.WithError(errors.NewLoadError("news", err)).Warn("Failed to load news, news left empty")
		return b.news
	}

	events := make([]models.NewsEvent, 0, len(raw))
	for _, item := range raw {
		date, err := types.ParseDate(item.Date)
		if err != nil {
			b.logger.WithError(errors.NewLoadError("news", err)).WithField("date", item.Date).Warn("Skipping news item with invalid date")
			continue
		}
		content := strings.TrimSpace(item.Content)
		if content == "" {
			continue
		}
		events = append(events, models.NewsEvent{Date: date, Content: content})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })

	b.news = events
	b.logger.WithField("news", len(events)).Info("Loaded news")
	return b.news
}

// LoadSceneDescription loads the scene narrative, falling back to the placeholder
func (b *Builder) LoadSceneDescription(ctx context.Context) string {
	b.sceneRead = true

	scene, err := b.source.SceneDescription(ctx)
	if err != nil {
		b.logger.WithError(errors.NewLoadError("scene description", err)).Warn("Failed to load scene description, using placeholder")
		b.scene = b.cfg.PlaceholderScene
		return b.scene
	}
	if strings.TrimSpace(scene) == "" {
		b.scene = b.cfg.PlaceholderScene
		return b.scene
	}

	b.scene = scene
	return b.scene
}

// EarliestValidDate returns the first date on which both required indices have
// started reporting, or the zero date when either has no data
func (b *Builder) EarliestValidDate() types.Date {
	domestic := b.indices[b.cfg.DomesticIndex]
	foreign := b.indices[b.cfg.ForeignIndex]
	if len(domestic) == 0 || len(foreign) == 0 {
		return types.Date{}
	}

	// series are sorted ascending
	floor := domestic[0].Date
	if foreign[0].Date.After(floor) {
		floor = foreign[0].Date
	}
	return floor
}

// BuildTimeline assembles trading days from the loaded series. A candidate date is
// kept only when both required indices and every tracked fund have a quote on it.
func (b *Builder) BuildTimeline(ctx context.Context) (*Timeline, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !b.sceneRead {
		b.LoadSceneDescription(ctx)
	}

	floor := b.EarliestValidDate()

	fundByDate := make(map[string]map[types.Date]models.FundQuote, len(b.funds))
	fundCodes := make([]string, 0, len(b.funds))
	candidates := make(map[types.Date]struct{})
	for code, quotes := range b.funds {
		fundCodes = append(fundCodes, code)
		byDate := make(map[types.Date]models.FundQuote, len(quotes))
		for _, q := range quotes {
			byDate[q.Date] = q
			candidates[q.Date] = struct{}{}
		}
		fundByDate[code] = byDate
	}
	sort.Strings(fundCodes)

	newsByDate := make(map[types.Date][]string)
	for _, event := range b.news {
		newsByDate[event.Date] = append(newsByDate[event.Date], event.Content)
		candidates[event.Date] = struct{}{}
	}

	indexByDate := make(map[string]map[types.Date]models.IndexQuote, len(b.indices))
	for key, quotes := range b.indices {
		byDate := make(map[types.Date]models.IndexQuote, len(quotes))
		for _, q := range quotes {
			byDate[q.Date] = q
		}
		indexByDate[key] = byDate
	}

	dates := make([]types.Date, 0, len(candidates))
	for d := range candidates {
		if !floor.IsZero() && d.Before(floor) {
			continue
		}
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	required := []string{b.cfg.DomesticIndex, b.cfg.ForeignIndex}
	days := make([]models.TradingDay, 0, len(dates))
	skipped := 0

dateLoop:
	for _, date := range dates {
		day := models.TradingDay{
			Date:    date,
			Indices: make(map[string]models.IndexLevel, len(indexByDate)),
			Funds:   make(map[string]models.FundLevel, len(fundCodes)),
			News:    append([]string{}, newsByDate[date]...),
		}

		for _, key := range required {
			if _, ok := indexByDate[key][date]; !ok {
				skipped++
				continue dateLoop
			}
		}
		for _, code := range fundCodes {
			q, ok := fundByDate[code][date]
			if !ok {
				skipped++
				continue dateLoop
			}
			day.Funds[code] = models.FundLevel{NAV: q.UnitNAV, ChangePct: q.ChangePct}
		}
		for key, byDate := range indexByDate {
			if q, ok := byDate[date]; ok {
				day.Indices[key] = models.IndexLevel{Close: q.Close, ChangePct: q.ChangePct}
			}
		}

		days = append(days, day)
	}

	tl := FromSnapshot(models.TimelineSnapshot{
		Days:          days,
		Floor:         floor,
		Description:   b.scene,
		FundCodes:     fundCodes,
		DomesticIndex: b.cfg.DomesticIndex,
		ForeignIndex:  b.cfg.ForeignIndex,
	})

	fields := map[string]interface{}{
		"days":       tl.Len(),
		"candidates": len(dates),
		"skipped":    skipped,
		"funds":      len(fundCodes),
	}
	if tl.Len() > 0 {
		fields["first"] = tl.First().String()
		fields["last"] = tl.Last().String()
	}
	if tl.Len() == 0 {
		b.logger.WithFields(fields).Warn("Timeline is empty")
	} else {
		b.logger.WithFields(fields).Info("Built timeline")
	}

	return tl, nil
}

// Build runs every loader and assembles the Timeline
func (b *Builder) Build(ctx context.Context) (*Timeline, error) {
	b.LoadFundSeries(ctx)
	b.LoadIndexSeries(ctx)
	b.LoadNews(ctx)
	b.LoadSceneDescription(ctx)
	return b.BuildTimeline(ctx)
}

func dedupeFundQuotes(quotes []models.FundQuote, log *logging.Logger) []models.FundQuote {
	sort.SliceStable(quotes, func(i, j int) bool { return quotes[i].Date.Before(quotes[j].Date) })
	out := quotes[:0]
	for i, q := range quotes {
		if i > 0 && q.Date.Equal(out[len(out)-1].Date) {
			log.WithField("date", q.Date.String()).Warn("Dropping duplicate fund row")
			continue
		}
		out = append(out, q)
	}
	return out
}

func dedupeIndexQuotes(quotes []models.IndexQuote, log *logging.Logger) []models.IndexQuote {
	sort.SliceStable(quotes, func(i, j int) bool { return quotes[i].Date.Before(quotes[j].Date) })
	out := quotes[:0]
	for i, q := range quotes {
		if i > 0 && q.Date.Equal(out[len(out)-1].Date) {
			log.WithField("date", q.Date.String()).Warn("Dropping duplicate index row")
			continue
		}
		out = append(out, q)
	}
	return out
}
