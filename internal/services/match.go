package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lostradar/lostradar-backend/internal/modules/matching"
	"github.com/lostradar/lostradar-backend/internal/platform/logger"
	"github.com/lostradar/lostradar-backend/internal/repos"
	"github.com/lostradar/lostradar-backend/internal/types"
)

// ErrInvalidTransition is returned for a lifecycle move the state machine
// does not allow.
var ErrInvalidTransition = errors.New("invalid match status transition")

// Lifecycle: candidate is the only machine-created state. Review moves it
// to promoted, suppressed, or dismissed; only an admin reopen goes back.
var allowedTransitions = map[string]map[string]bool{
	types.MatchStatusCandidate: {
		types.MatchStatusPromoted:   true,
		types.MatchStatusSuppressed: true,
		types.MatchStatusDismissed:  true,
	},
	types.MatchStatusPromoted:   {types.MatchStatusCandidate: true},
	types.MatchStatusSuppressed: {types.MatchStatusCandidate: true},
	types.MatchStatusDismissed:  {types.MatchStatusCandidate: true},
}

type MatchService interface {
	// PersistCandidates materializes pipeline output as candidate matches,
	// skipping pairs that already have a match. Only newly created rows are
	// returned, so callers notify exactly once per pair.
	PersistCandidates(ctx context.Context, cands []matching.MatchCandidate) ([]*types.Match, error)
	Promote(ctx context.Context, id uuid.UUID) (*types.Match, error)
	Suppress(ctx context.Context, id uuid.UUID) (*types.Match, error)
	Dismiss(ctx context.Context, id uuid.UUID) (*types.Match, error)
	// Reopen is the admin path back to candidate.
	Reopen(ctx context.Context, id uuid.UUID) (*types.Match, error)
	MarkNotified(ctx context.Context, id uuid.UUID) error
}

type matchService struct {
	db      *gorm.DB
	log     *logger.Logger
	matches repos.MatchRepo
}

func NewMatchService(db *gorm.DB, baseLog *logger.Logger, matches repos.MatchRepo) MatchService {
	return &matchService{
		db:      db,
		log:     baseLog.With("service", "MatchService"),
		matches: matches,
	}
}

func (s *matchService) PersistCandidates(ctx context.Context, cands []matching.MatchCandidate) ([]*types.Match, error) {
	created := make([]*types.Match, 0, len(cands))
	for _, c := range cands {
		// Required precondition, not best-effort: check the unordered pair
		// before creating. The unique index still backstops races.
		existing, err := s.matches.FindByPair(ctx, nil, c.SourceReportID, c.CandidateReportID)
		if err != nil {
			return created, err
		}
		if existing != nil {
			s.log.Debug("match already exists for pair, skipping",
				"report_a_id", existing.ReportAID,
				"report_b_id", existing.ReportBID,
			)
			continue
		}

		a, b := types.NormalizePair(c.SourceReportID, c.CandidateReportID)
		m := &types.Match{
			ReportAID:      a,
			ReportBID:      b,
			SourceReportID: c.SourceReportID,
			TextScore:      signalPtr(c.Signals.Text),
			ImageScore:     signalPtr(c.Signals.Image),
			GeoScore:       signalPtr(c.Signals.Geo),
			TimeScore:      signalPtr(c.Signals.Time),
			TotalScore:     c.Score,
			Explanation:    c.Explanation,
			Status:         types.MatchStatusCandidate,
		}
		row, err := s.matches.Create(ctx, nil, m)
		if errors.Is(err, repos.ErrDuplicateMatch) {
			// Lost the race to the other direction of the pair.
			s.log.Debug("concurrent match creation for pair, skipping",
				"report_a_id", a,
				"report_b_id", b,
			)
			continue
		}
		if err != nil {
			return created, err
		}
		created = append(created, row)
	}
	return created, nil
}

func (s *matchService) Promote(ctx context.Context, id uuid.UUID) (*types.Match, error) {
	return s.transition(ctx, id, types.MatchStatusPromoted)
}

func (s *matchService) Suppress(ctx context.Context, id uuid.UUID) (*types.Match, error) {
	return s.transition(ctx, id, types.MatchStatusSuppressed)
}

func (s *matchService) Dismiss(ctx context.Context, id uuid.UUID) (*types.Match, error) {
	return s.transition(ctx, id, types.MatchStatusDismissed)
}

func (s *matchService) Reopen(ctx context.Context, id uuid.UUID) (*types.Match, error) {
	return s.transition(ctx, id, types.MatchStatusCandidate)
}

func (s *matchService) MarkNotified(ctx context.Context, id uuid.UUID) error {
	return s.matches.MarkNotified(ctx, nil, id)
}

func (s *matchService) transition(ctx context.Context, id uuid.UUID, to string) (*types.Match, error) {
	if !types.ValidMatchStatus(to) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	m, err := s.matches.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if m.Status == to {
		return m, nil
	}
	if !allowedTransitions[m.Status][to] {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.Status, to)
	}
	if err := s.matches.UpdateStatus(ctx, nil, id, to); err != nil {
		return nil, err
	}
	m.Status = to
	s.log.Info("match status changed", "match_id", id, "status", to)
	return m, nil
}

func signalPtr(s matching.Signal) *float64 {
	if !s.Present() {
		return nil
	}
	v := s.Value()
	return &v
}
