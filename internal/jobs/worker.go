package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/lostradar/lostradar-backend/internal/clients/openai"
	redisclient "github.com/lostradar/lostradar-backend/internal/clients/redis"
	"github.com/lostradar/lostradar-backend/internal/modules/matching"
	"github.com/lostradar/lostradar-backend/internal/platform/logger"
	"github.com/lostradar/lostradar-backend/internal/platform/vector"
	"github.com/lostradar/lostradar-backend/internal/repos"
	"github.com/lostradar/lostradar-backend/internal/services"
	"github.com/lostradar/lostradar-backend/internal/types"
)

// Worker sweeps approved reports that have not been matched yet: backfills
// a missing embedding (and index entry), runs the pipeline, persists new
// candidate matches, publishes created events, and stamps the report.
// Everything is best-effort background work; a failed sweep is retried on
// the next tick.
type Worker struct {
	db       *gorm.DB
	log      *logger.Logger
	reports  repos.ReportRepo
	pipeline *matching.Pipeline
	matches  services.MatchService
	embedder openai.Client
	vec      vector.VectorStore
	bus      redisclient.MatchBus
	interval time.Duration
}

func NewWorker(
	db *gorm.DB,
	baseLog *logger.Logger,
	reports repos.ReportRepo,
	pipeline *matching.Pipeline,
	matches services.MatchService,
	embedder openai.Client,
	vec vector.VectorStore,
	bus redisclient.MatchBus,
) *Worker {
	return &Worker{
		db:       db,
		log:      baseLog.With("component", "MatchWorker"),
		reports:  reports,
		pipeline: pipeline,
		matches:  matches,
		embedder: embedder,
		vec:      vec,
		bus:      bus,
		interval: 2 * time.Second,
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report, err := w.reports.NextUnmatched(ctx, w.db)
				if err != nil {
					w.log.Warn("NextUnmatched failed", "error", err)
					continue
				}
				if report == nil {
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							w.log.Error("match sweep panic", "report_id", report.ID, "panic", r)
						}
					}()
					if err := w.sweep(ctx, report); err != nil {
						w.log.Warn("match sweep failed", "report_id", report.ID, "error", err)
					}
				}()
			}
		}
	}()
}

func (w *Worker) sweep(ctx context.Context, report *types.Report) error {
	if len(report.EmbeddingVector()) == 0 {
		if err := w.backfillEmbedding(ctx, report); err != nil {
			return fmt.Errorf("embedding backfill: %w", err)
		}
		if len(report.EmbeddingVector()) == 0 {
			// No embedding provider is configured. The stamp is what
			// advances the queue, so this report stays out of matching
			// for good rather than blocking everything behind it.
			if err := w.reports.MarkMatched(ctx, w.db, report.ID, time.Now().UTC()); err != nil {
				return err
			}
			w.log.Warn("no embedding and no provider configured; report permanently excluded from matching",
				"report_id", report.ID,
			)
			return nil
		}
	}

	cands, err := w.pipeline.FindMatches(ctx, report, 0)
	if err != nil {
		return err
	}

	created, err := w.matches.PersistCandidates(ctx, cands)
	if err != nil {
		return err
	}
	for _, m := range created {
		w.publishCreated(ctx, m)
	}

	if err := w.reports.MarkMatched(ctx, w.db, report.ID, time.Now().UTC()); err != nil {
		return err
	}
	w.log.Info("match sweep complete",
		"report_id", report.ID,
		"candidates", len(cands),
		"created", len(created),
	)
	return nil
}

func (w *Worker) backfillEmbedding(ctx context.Context, report *types.Report) error {
	if w.embedder == nil {
		return nil
	}
	vectors, err := w.embedder.Embed(ctx, []string{report.Title + ": " + report.Description})
	if err != nil {
		return err
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return fmt.Errorf("embedding provider returned no vector")
	}

	raw, err := json.Marshal(vectors[0])
	if err != nil {
		return err
	}
	if err := w.reports.SaveEmbedding(ctx, w.db, report.ID, raw); err != nil {
		return err
	}
	report.Embedding = datatypes.JSON(raw)

	if w.vec != nil {
		err := w.vec.Upsert(ctx, matching.ReportsNamespace, []vector.Vector{{
			ID:     report.ID.String(),
			Values: vectors[0],
			Metadata: map[string]any{
				matching.PayloadKeyType:      report.Type,
				matching.PayloadKeyStatus:    report.Status,
				matching.PayloadKeyCreatedAt: report.CreatedAt.Unix(),
			},
		}})
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) publishCreated(ctx context.Context, m *types.Match) {
	if w.bus == nil {
		return
	}
	ev := redisclient.MatchCreatedEvent{
		MatchID:        m.ID,
		ReportAID:      m.ReportAID,
		ReportBID:      m.ReportBID,
		SourceReportID: m.SourceReportID,
		TotalScore:     m.TotalScore,
		CreatedAt:      m.CreatedAt,
	}
	if err := w.bus.PublishCreated(ctx, ev); err != nil {
		w.log.Warn("publish match.created failed", "match_id", m.ID, "error", err)
		return
	}
	if err := w.matches.MarkNotified(ctx, m.ID); err != nil {
		w.log.Warn("mark notified failed", "match_id", m.ID, "error", err)
	}
}
