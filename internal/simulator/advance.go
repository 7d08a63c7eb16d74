package simulator

import (
	"github.com/scenario-simulator/internal/errors"
	"github.com/scenario-simulator/internal/models"
	"github.com/scenario-simulator/internal/types"
)

// AdvanceResult describes a move to the next trading day
type AdvanceResult struct {
	FromDate types.Date `json:"fromDate"`
	Date     types.Date `json:"date"`
	Ended    bool       `json:"ended"`
	Message  string     `json:"message"`
}

// NextDay moves the cursor to the next trading day. Advancing past the last day
// ends the simulation; advancing an ended simulation fails.
func (s *Simulator) NextDay() (*AdvanceResult, error) {
	day, ok := s.currentDay()
	if !ok {
		s.ended = true
		return nil, errors.NewAlreadyEndedError()
	}

	from := day.Date
	s.recordAction(types.ActionAdvance, from, models.ActionDetails{FromDate: &from})
	s.cursor++

	if s.cursor >= s.tl.Len() {
		s.cursor = s.tl.Len()
		s.ended = true
		s.logger.WithFields(map[string]interface{}{
			"last_date":    from.String(),
			"final_assets": s.finalAssets().String(),
		}).Info("Simulation ended")
		return &AdvanceResult{
			FromDate: from,
			Ended:    true,
			Message:  "simulation has ended",
		}, nil
	}

	s.recordNetWorth()
	next, _ := s.tl.Day(s.cursor)
	return &AdvanceResult{
		FromDate: from,
		Date:     next.Date,
		Message:  "advanced to " + next.Date.String(),
	}, nil
}
