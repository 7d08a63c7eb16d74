package timeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// IndexNameRule maps an index display name fragment to a canonical key
type IndexNameRule struct {
	Contains string `yaml:"contains"`
	Key      string `yaml:"key"`
}

// DefaultIndexRules covers the Shanghai Composite and the Dow Jones Industrial Average
func DefaultIndexRules() []IndexNameRule {
	return []IndexNameRule{
		{Contains: "上证", Key: DefaultDomesticIndex},
		{Contains: "Shanghai", Key: DefaultDomesticIndex},
		{Contains: "道琼斯", Key: DefaultForeignIndex},
		{Contains: "Dow Jones", Key: DefaultForeignIndex},
	}
}

// CanonicalIndexKey derives the timeline key of an index from its display name.
// Indexes matching no rule keep their storage code.
func CanonicalIndexKey(code, name string, rules []IndexNameRule) string {
	for _, rule := range rules {
		if rule.Contains != "" && strings.Contains(name, rule.Contains) {
			return rule.Key
		}
	}
	return code
}

// ParsePercent converts "-2.65%" to -2.65. Blank values count as no change.
func ParsePercent(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" || s == "--" {
		return 0, nil
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid percent %q: %w", raw, err)
	}
	return v, nil
}

// ParseFloat converts a stored numeric field, tolerating thousands separators
func ParseFloat(raw string) (float64, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return 0, fmt.Errorf("empty number")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", raw, err)
	}
	return v, nil
}

// ParseOptionalFloat is ParseFloat with blank treated as zero
func ParseOptionalFloat(raw string) (float64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	return ParseFloat(raw)
}

// ParseDecimal converts a stored price field to an exact decimal
func ParseDecimal(raw string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty number")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q: %w", raw, err)
	}
	return d, nil
}
