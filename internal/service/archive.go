package service

import (
	"context"

	"github.com/scenario-simulator/internal/circuitbreaker"
	"github.com/scenario-simulator/internal/models"
)

// BreakerArchive stops calling an archive that keeps failing so exports do not wait on it
type BreakerArchive struct {
	archive RunArchiver
	breaker *circuitbreaker.CircuitBreaker
}

// NewBreakerArchive guards archive with breaker
func NewBreakerArchive(archive RunArchiver, breaker *circuitbreaker.CircuitBreaker) *BreakerArchive {
	return &BreakerArchive{archive: archive, breaker: breaker}
}

// SaveRun archives the run unless the circuit is open
func (a *BreakerArchive) SaveRun(ctx context.Context, runID, sessionID string, doc *models.HistoryDocument) error {
	return a.breaker.Execute(ctx, func(ctx context.Context) error {
		return a.archive.SaveRun(ctx, runID, sessionID, doc)
	})
}

// Stats reports the breaker state
func (a *BreakerArchive) Stats() *circuitbreaker.Stats {
	return a.breaker.GetStats()
}
