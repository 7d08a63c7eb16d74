// Package types provides common type definitions for the scenario simulator.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the canonical calendar date format used in storage and documents
const DateLayout = "2006-01-02"

// ActionKind represents the kind of a recorded simulator action
type ActionKind string

const (
	// ActionBuy records a fund purchase
	ActionBuy ActionKind = "buy"
	// ActionSell records a fund redemption
	ActionSell ActionKind = "sell"
	// ActionAdvance records a move to the next trading day
	ActionAdvance ActionKind = "advance"
)

// legacyAdvanceKind is accepted on import for documents written by older tooling
const legacyAdvanceKind ActionKind = "next_day"

// ParseActionKind normalizes a kind read from a history document
func ParseActionKind(s string) (ActionKind, bool) {
	switch ActionKind(strings.ToLower(strings.TrimSpace(s))) {
	case ActionBuy:
		return ActionBuy, true
	case ActionSell:
		return ActionSell, true
	case ActionAdvance, legacyAdvanceKind:
		return ActionAdvance, true
	default:
		return "", false
	}
}

// SimulationStatus represents the lifecycle state of a simulation
type SimulationStatus string

const (
	// StatusActive means the cursor points at a trading day
	StatusActive SimulationStatus = "active"
	// StatusEnded means the cursor moved past the last trading day
	StatusEnded SimulationStatus = "ended"
)

// Date is a calendar day in UTC without a time component
type Date struct {
	time.Time
}

// NewDate creates a Date from its components
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time to its calendar day
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses "2006-01-02" and the datetime variants found in scenario databases
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, fmt.Errorf("empty date")
	}

	layouts := []string{
		DateLayout,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		time.RFC3339,
		"2006/01/02",
		"20060102",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}

	return Date{}, fmt.Errorf("unrecognized date format: %q", s)
}

// MustParseDate parses a date and panics on failure; intended for tests and constants
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String formats the date as YYYY-MM-DD
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Before reports whether d is strictly earlier than o
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

// After reports whether d is strictly later than o
func (d Date) After(o Date) bool {
	return d.Time.After(o.Time)
}

// Equal reports whether both dates name the same day
func (d Date) Equal(o Date) bool {
	return d.Time.Equal(o.Time)
}

// MarshalJSON encodes the date as "YYYY-MM-DD", or null when zero
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts any format understood by ParseDate
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}

	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML encodes the date as "YYYY-MM-DD"
func (d Date) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// ServiceError represents a service-level error
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
