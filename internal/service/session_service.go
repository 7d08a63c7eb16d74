// Package service hosts independent simulator sessions over one shared timeline.
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scenario-simulator/internal/errors"
	"github.com/scenario-simulator/internal/logging"
	"github.com/scenario-simulator/internal/models"
	"github.com/scenario-simulator/internal/simulator"
	"github.com/scenario-simulator/internal/timeline"
	"github.com/scenario-simulator/internal/types"
	"github.com/shopspring/decimal"
)

// RunArchiver stores exported runs for later analysis
type RunArchiver interface {
	SaveRun(ctx context.Context, runID, sessionID string, doc *models.HistoryDocument) error
}

// SessionOptions configures a SessionService
type SessionOptions struct {
	DefaultCapital decimal.Decimal
	MaxSessions    int
	ExportDir      string
	Archive        RunArchiver
	Clock          func() time.Time
}

// SessionService owns many simulators over one timeline.
// Every operation on a session holds that session's lock.
type SessionService struct {
	tl     *timeline.Timeline
	opts   SessionOptions
	logger *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*session
}

type session struct {
	id        string
	createdAt time.Time

	mu       sync.Mutex
	sim      *simulator.Simulator
	lastUsed time.Time
}

// SessionInfo describes a session without exposing its simulator
type SessionInfo struct {
	ID             string                 `json:"id"`
	CreatedAt      time.Time              `json:"createdAt"`
	LastUsed       time.Time              `json:"lastUsed"`
	InitialCapital decimal.Decimal        `json:"initialCapital"`
	Date           types.Date             `json:"date"`
	Status         types.SimulationStatus `json:"status"`
	Actions        int                    `json:"actions"`
}

// ExportOutcome is the exported document of a session and where it was archived
type ExportOutcome struct {
	RunID    string                  `json:"runId"`
	Document *models.HistoryDocument `json:"document"`
	Archived bool                    `json:"archived"`
}

// NewSessionService creates a session service over tl
func NewSessionService(tl *timeline.Timeline, opts SessionOptions, logger *logging.Logger) *SessionService {
	if opts.DefaultCapital.IsZero() {
		opts.DefaultCapital = simulator.DefaultInitialCapital
	}
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 100
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &SessionService{
		tl:       tl,
		opts:     opts,
		logger:   logger.WithComponent("session_service"),
		sessions: make(map[string]*session),
	}
}

// Timeline returns the shared timeline
func (s *SessionService) Timeline() *timeline.Timeline {
	return s.tl
}

// Create starts a new session. A nil capital uses the configured default.
func (s *SessionService) Create(ctx context.Context, capital *decimal.Decimal) (*SessionInfo, error) {
	initial := s.opts.DefaultCapital
	if capital != nil {
		if !capital.IsPositive() {
			return nil, errors.NewInvalidAmountError("initial capital must be positive", map[string]interface{}{
				"initial_capital": capital.String(),
			})
		}
		initial = *capital
	}

	id := uuid.NewString()
	sim, err := simulator.New(s.tl, simulator.Config{InitialCapital: initial, Clock: s.opts.Clock}, s.logger.WithField("session_id", id))
	if err != nil {
		return nil, err
	}

	now := s.opts.Clock()
	sess := &session{id: id, createdAt: now, lastUsed: now, sim: sim}
	info := sess.info()

	s.mu.Lock()
	if len(s.sessions) >= s.opts.MaxSessions {
		s.mu.Unlock()
		return nil, errors.NewInvalidParameterError("session", fmt.Sprintf("session limit of %d reached", s.opts.MaxSessions))
	}
	s.sessions[id] = sess
	s.mu.Unlock()

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"session_id":      id,
		"initial_capital": sim.InitialCapital().String(),
	}).Info("Created simulation session")

	return info, nil
}

// Get describes a session
func (s *SessionService) Get(id string) (*SessionInfo, error) {
	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.info(), nil
}

// List describes every session, oldest first
func (s *SessionService) List() []SessionInfo {
	s.mu.RLock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		sess.mu.Lock()
		infos = append(infos, *sess.info())
		sess.mu.Unlock()
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Delete removes a session
func (s *SessionService) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return errors.NewNotFoundError("session", id)
	}
	delete(s.sessions, id)
	s.logger.WithField("session_id", id).Info("Deleted simulation session")
	return nil
}

// State returns the session's current state
func (s *SessionService) State(id string) (*simulator.State, error) {
	var state *simulator.State
	err := s.withSession(id, func(sim *simulator.Simulator) error {
		state = sim.CurrentState()
		return nil
	})
	return state, err
}

// Buy invests amount in a fund
func (s *SessionService) Buy(id, fundCode string, amount decimal.Decimal) (*simulator.TradeResult, error) {
	var result *simulator.TradeResult
	err := s.withSession(id, func(sim *simulator.Simulator) error {
		var err error
		result, err = sim.Buy(fundCode, amount)
		return err
	})
	return result, err
}

// Sell redeems shares of a fund
func (s *SessionService) Sell(id, fundCode string, req simulator.SellRequest) (*simulator.TradeResult, error) {
	var result *simulator.TradeResult
	err := s.withSession(id, func(sim *simulator.Simulator) error {
		var err error
		result, err = sim.Sell(fundCode, req)
		return err
	})
	return result, err
}

// NextDay advances the session one trading day
func (s *SessionService) NextDay(id string) (*simulator.AdvanceResult, error) {
	var result *simulator.AdvanceResult
	err := s.withSession(id, func(sim *simulator.Simulator) error {
		var err error
		result, err = sim.NextDay()
		return err
	})
	return result, err
}

// Snapshot looks up a past trading day
func (s *SessionService) Snapshot(id string, q simulator.SnapshotQuery) (*simulator.DaySnapshot, error) {
	var snap *simulator.DaySnapshot
	err := s.withSession(id, func(sim *simulator.Simulator) error {
		var err error
		snap, err = sim.GetSnapshot(q)
		return err
	})
	return snap, err
}

// FundHistory returns recent values of a fund or index
func (s *SessionService) FundHistory(id, code string, days int) (*simulator.FundHistory, error) {
	var history *simulator.FundHistory
	err := s.withSession(id, func(sim *simulator.Simulator) error {
		var err error
		history, err = sim.FundHistory(code, days)
		return err
	})
	return history, err
}

// Summary computes the session's performance statistics
func (s *SessionService) Summary(id string) (*simulator.PerformanceSummary, error) {
	var summary *simulator.PerformanceSummary
	err := s.withSession(id, func(sim *simulator.Simulator) error {
		var err error
		summary, err = sim.PerformanceSummary()
		return err
	})
	return summary, err
}

// Reset restarts the session from its initial capital
func (s *SessionService) Reset(id string) (*simulator.State, error) {
	var state *simulator.State
	err := s.withSession(id, func(sim *simulator.Simulator) error {
		sim.Reset()
		state = sim.CurrentState()
		return nil
	})
	return state, err
}

// Document returns the session's history document without archiving it
func (s *SessionService) Document(id string) (*models.HistoryDocument, error) {
	var doc *models.HistoryDocument
	err := s.withSession(id, func(sim *simulator.Simulator) error {
		doc = sim.ExportDocument()
		return nil
	})
	return doc, err
}

// Export returns the session's history document and archives it when an archive is configured.
// Archive failures are logged and reported through Archived; they do not fail the export.
func (s *SessionService) Export(ctx context.Context, id string) (*ExportOutcome, error) {
	doc, err := s.Document(id)
	if err != nil {
		return nil, err
	}

	outcome := &ExportOutcome{RunID: uuid.NewString(), Document: doc}
	if s.opts.Archive == nil {
		return outcome, nil
	}

	log := logging.FromContext(ctx).WithFields(map[string]interface{}{"session_id": id, "run_id": outcome.RunID})
	if err := s.opts.Archive.SaveRun(ctx, outcome.RunID, id, doc); err != nil {
		log.WithError(err).Warn("Failed to archive simulation run")
		return outcome, nil
	}
	outcome.Archived = true
	log.Info("Archived simulation run")
	return outcome, nil
}

// ExportToFile writes the session's history document into the export directory
func (s *SessionService) ExportToFile(id string) (*simulator.ExportResult, error) {
	if s.opts.ExportDir == "" {
		return nil, errors.NewInvalidParameterError("export_dir", "no export directory is configured")
	}

	name := fmt.Sprintf("%s-%s.json", id, s.opts.Clock().UTC().Format("20060102T150405"))
	path := filepath.Join(s.opts.ExportDir, name)

	var result *simulator.ExportResult
	err := s.withSession(id, func(sim *simulator.Simulator) error {
		var err error
		result, err = sim.ExportActions(path)
		return err
	})
	return result, err
}

// Import replaces the session's state with a history document
func (s *SessionService) Import(id string, doc *models.HistoryDocument) (*simulator.ImportResult, error) {
	var result *simulator.ImportResult
	err := s.withSession(id, func(sim *simulator.Simulator) error {
		var err error
		result, err = sim.ImportDocument(doc)
		return err
	})
	return result, err
}

func (s *SessionService) lookup(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, errors.NewNotFoundError("session", id)
	}
	return sess, nil
}

func (s *SessionService) withSession(id string, fn func(sim *simulator.Simulator) error) error {
	sess, err := s.lookup(id)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.lastUsed = s.opts.Clock()
	return fn(sess.sim)
}

func (sess *session) info() *SessionInfo {
	status := types.StatusActive
	if sess.sim.Ended() {
		status = types.StatusEnded
	}
	return &SessionInfo{
		ID:             sess.id,
		CreatedAt:      sess.createdAt,
		LastUsed:       sess.lastUsed,
		InitialCapital: sess.sim.InitialCapital(),
		Date:           sess.sim.CurrentDate(),
		Status:         status,
		Actions:        len(sess.sim.Actions()),
	}
}
