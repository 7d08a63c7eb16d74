package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/scenario-simulator/internal/circuitbreaker"
	"github.com/scenario-simulator/internal/logging"
	"github.com/scenario-simulator/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type archiveFunc func(ctx context.Context, runID string) error

func (f archiveFunc) SaveRun(ctx context.Context, runID, sessionID string, doc *models.HistoryDocument) error {
	return f(ctx, runID)
}

func TestBreakerArchiveStopsCallingFailingArchive(t *testing.T) {
	errDown := stderrors.New("clickhouse down")
	calls := 0
	counted := archiveFunc(func(ctx context.Context, runID string) error {
		calls++
		return errDown
	})

	cfg := circuitbreaker.DefaultConfig("run_archive")
	cfg.ConsecutiveFails = 2
	cfg.Timeout = time.Hour
	guarded := NewBreakerArchive(counted, circuitbreaker.NewCircuitBreaker(cfg, logging.Discard()))

	svc := newTestService(t, SessionOptions{Archive: guarded})
	info, err := svc.Create(context.Background(), nil)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		out, err := svc.Export(context.Background(), info.ID)
		require.NoError(t, err)
		assert.False(t, out.Archived)
	}

	assert.Equal(t, 2, calls, "open circuit skips the archive")
	assert.Equal(t, circuitbreaker.StateOpen, guarded.Stats().State)
}
