package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lostradar/lostradar-backend/internal/modules/matching"
	"github.com/lostradar/lostradar-backend/internal/platform/logger"
	"github.com/lostradar/lostradar-backend/internal/repos"
	"github.com/lostradar/lostradar-backend/internal/types"
)

// The production schema relies on postgres defaults, so the sqlite test
// schema is spelled out by hand. The unique pair index is what matters.
const matchTableDDL = `
CREATE TABLE "match" (
	id TEXT PRIMARY KEY,
	report_a_id TEXT NOT NULL,
	report_b_id TEXT NOT NULL,
	source_report_id TEXT NOT NULL,
	text_score REAL,
	image_score REAL,
	geo_score REAL,
	time_score REAL,
	total_score REAL NOT NULL,
	explanation TEXT,
	status TEXT NOT NULL DEFAULT 'candidate',
	notified INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME,
	updated_at DATETIME,
	UNIQUE (report_a_id, report_b_id)
)`

func newTestService(t *testing.T) (MatchService, repos.MatchRepo) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec(matchTableDDL).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	log, err := logger.New("production")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	repo := repos.NewMatchRepo(db, log)
	return NewMatchService(db, log, repo), repo
}

func candidateFor(src, cand uuid.UUID, score float64) matching.MatchCandidate {
	return matching.MatchCandidate{
		SourceReportID:    src,
		CandidateReportID: cand,
		Signals: matching.Signals{
			Text: matching.SignalOf(0.9),
			Time: matching.SignalOf(0.8),
		},
		Score:       score,
		Explanation: "Text similarity: 90% | Time recency: 80%",
	}
}

func TestPersistCandidatesCreatesNormalizedPair(t *testing.T) {
	svc, repo := newTestService(t)
	src, cand := uuid.New(), uuid.New()

	created, err := svc.PersistCandidates(context.Background(), []matching.MatchCandidate{
		candidateFor(src, cand, 0.82),
	})
	if err != nil {
		t.Fatalf("PersistCandidates: %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("want 1 created match, got %d", len(created))
	}

	m := created[0]
	a, b := types.NormalizePair(src, cand)
	if m.ReportAID != a || m.ReportBID != b {
		t.Fatalf("pair not normalized: got (%v,%v), want (%v,%v)", m.ReportAID, m.ReportBID, a, b)
	}
	if m.SourceReportID != src {
		t.Fatalf("want source %v, got %v", src, m.SourceReportID)
	}
	if m.Status != types.MatchStatusCandidate {
		t.Fatalf("want candidate status, got %q", m.Status)
	}
	if m.TextScore == nil || *m.TextScore != 0.9 {
		t.Fatalf("want text score 0.9, got %v", m.TextScore)
	}
	if m.ImageScore != nil {
		t.Fatalf("absent signal must be stored as NULL, got %v", *m.ImageScore)
	}

	stored, err := repo.FindByPair(context.Background(), nil, cand, src)
	if err != nil {
		t.Fatalf("FindByPair: %v", err)
	}
	if stored == nil || stored.ID != m.ID {
		t.Fatalf("reversed pair lookup failed: %+v", stored)
	}
}

func TestPersistCandidatesSkipsExistingPair(t *testing.T) {
	svc, _ := newTestService(t)
	src, cand := uuid.New(), uuid.New()

	first, err := svc.PersistCandidates(context.Background(), []matching.MatchCandidate{
		candidateFor(src, cand, 0.82),
	})
	if err != nil {
		t.Fatalf("first persist: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("want 1 created, got %d", len(first))
	}

	// The reverse direction of the same pair must create nothing.
	second, err := svc.PersistCandidates(context.Background(), []matching.MatchCandidate{
		candidateFor(cand, src, 0.82),
	})
	if err != nil {
		t.Fatalf("second persist: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("want 0 created for duplicate pair, got %d", len(second))
	}
}

func TestCreateDuplicatePairRejected(t *testing.T) {
	_, repo := newTestService(t)
	a, b := types.NormalizePair(uuid.New(), uuid.New())

	m := &types.Match{ReportAID: a, ReportBID: b, SourceReportID: a, TotalScore: 0.7, Status: types.MatchStatusCandidate}
	if _, err := repo.Create(context.Background(), nil, m); err != nil {
		t.Fatalf("first create: %v", err)
	}
	dup := &types.Match{ReportAID: a, ReportBID: b, SourceReportID: b, TotalScore: 0.8, Status: types.MatchStatusCandidate}
	_, err := repo.Create(context.Background(), nil, dup)
	if !errors.Is(err, repos.ErrDuplicateMatch) {
		t.Fatalf("want ErrDuplicateMatch, got %v", err)
	}
}

func TestMatchLifecycleTransitions(t *testing.T) {
	svc, _ := newTestService(t)
	src, cand := uuid.New(), uuid.New()
	created, err := svc.PersistCandidates(context.Background(), []matching.MatchCandidate{
		candidateFor(src, cand, 0.82),
	})
	if err != nil || len(created) != 1 {
		t.Fatalf("setup: %v (%d created)", err, len(created))
	}
	id := created[0].ID

	m, err := svc.Promote(context.Background(), id)
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if m.Status != types.MatchStatusPromoted {
		t.Fatalf("want promoted, got %q", m.Status)
	}

	// Promoted cannot move sideways to suppressed.
	if _, err := svc.Suppress(context.Background(), id); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}

	// Reopen goes back to candidate, after which dismissal works.
	if m, err = svc.Reopen(context.Background(), id); err != nil || m.Status != types.MatchStatusCandidate {
		t.Fatalf("Reopen: %v (status %q)", err, m.Status)
	}
	if m, err = svc.Dismiss(context.Background(), id); err != nil || m.Status != types.MatchStatusDismissed {
		t.Fatalf("Dismiss: %v (status %q)", err, m.Status)
	}
}

func TestTransitionSameStatusIsNoOp(t *testing.T) {
	svc, _ := newTestService(t)
	src, cand := uuid.New(), uuid.New()
	created, err := svc.PersistCandidates(context.Background(), []matching.MatchCandidate{
		candidateFor(src, cand, 0.82),
	})
	if err != nil || len(created) != 1 {
		t.Fatalf("setup: %v", err)
	}

	m, err := svc.Reopen(context.Background(), created[0].ID)
	if err != nil {
		t.Fatalf("Reopen on candidate: %v", err)
	}
	if m.Status != types.MatchStatusCandidate {
		t.Fatalf("want candidate, got %q", m.Status)
	}
}

func TestMarkNotified(t *testing.T) {
	svc, repo := newTestService(t)
	src, cand := uuid.New(), uuid.New()
	created, err := svc.PersistCandidates(context.Background(), []matching.MatchCandidate{
		candidateFor(src, cand, 0.82),
	})
	if err != nil || len(created) != 1 {
		t.Fatalf("setup: %v", err)
	}
	if created[0].Notified {
		t.Fatalf("new match must start unnotified")
	}

	if err := svc.MarkNotified(context.Background(), created[0].ID); err != nil {
		t.Fatalf("MarkNotified: %v", err)
	}
	m, err := repo.GetByID(context.Background(), nil, created[0].ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !m.Notified {
		t.Fatalf("want notified flag set")
	}
}
