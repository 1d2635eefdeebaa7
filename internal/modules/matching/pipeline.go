package matching

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lostradar/lostradar-backend/internal/platform/logger"
	"github.com/lostradar/lostradar-backend/internal/platform/qdrant"
	"github.com/lostradar/lostradar-backend/internal/types"
)

// MatchCandidate is one explained, scored candidate from a pipeline run.
// It is ephemeral; the caller decides whether to materialize it as a Match.
type MatchCandidate struct {
	SourceReportID    uuid.UUID
	CandidateReportID uuid.UUID
	Signals           Signals
	Score             float64
	Explanation       string
}

// Pipeline runs the full matching flow for one source report. It is a pure
// query: nothing is written, so a half-finished run can be discarded and
// concurrent runs for both directions of a pair cannot race on creation.
type Pipeline struct {
	log       *logger.Logger
	cfg       Config
	retriever *Retriever
}

func NewPipeline(baseLog *logger.Logger, cfg Config, retriever *Retriever) *Pipeline {
	return &Pipeline{
		log:       baseLog.With("component", "MatchingPipeline"),
		cfg:       cfg,
		retriever: retriever,
	}
}

// FindMatches returns up to maxResults candidates for src, best first.
// An ineligible source (not approved, no embedding) yields an empty result;
// a vector index failure is downgraded to zero candidates because matching
// is best-effort background work.
func (p *Pipeline) FindMatches(ctx context.Context, src *types.Report, maxResults int) ([]MatchCandidate, error) {
	if maxResults <= 0 {
		maxResults = p.cfg.MaxResults
	}
	if !src.Matchable() || len(src.EmbeddingVector()) == 0 {
		return nil, nil
	}

	candidates, err := p.retriever.Candidates(ctx, src)
	if err != nil {
		msg := "candidate retrieval failed; treating as zero candidates"
		if qdrant.IsTimeout(err) {
			msg = "candidate retrieval timed out; treating as zero candidates"
		}
		p.log.Warn(msg,
			"source_report_id", src.ID,
			"error", err,
		)
		return nil, nil
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	results := make([]MatchCandidate, len(candidates))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.cfg.ScoreConcurrency)
	for i, cand := range candidates {
		i, cand := i, cand
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			results[i] = p.scoreCandidate(src, cand)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	kept := make([]MatchCandidate, 0, len(results))
	for _, mc := range results {
		if mc.Score >= p.cfg.MinMatchScore {
			kept = append(kept, mc)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Score == kept[j].Score {
			return kept[i].CandidateReportID.String() < kept[j].CandidateReportID.String()
		}
		return kept[i].Score > kept[j].Score
	})
	if len(kept) > maxResults {
		kept = kept[:maxResults]
	}
	return kept, nil
}

func (p *Pipeline) scoreCandidate(src *types.Report, cand Candidate) MatchCandidate {
	sig := Signals{
		Text:  SignalOf(cand.TextScore),
		Image: ImageScore(p.cfg, src.ImageHashes, cand.Report.ImageHashes),
		Geo:   GeoScore(p.cfg, GeoInputFromReport(src), GeoInputFromReport(cand.Report)),
		Time:  TimeScore(p.cfg, src.OccurredAt, cand.Report.OccurredAt),
	}
	score, _ := Composite(p.cfg, sig)
	return MatchCandidate{
		SourceReportID:    src.ID,
		CandidateReportID: cand.Report.ID,
		Signals:           sig,
		Score:             score,
		Explanation:       explain(sig),
	}
}

// explain renders one clause per available signal, e.g.
// "Text similarity: 82% | Geo proximity: 95% | Time recency: 65%".
func explain(s Signals) string {
	clauses := make([]string, 0, 4)
	add := func(label string, sig Signal) {
		if !sig.Present() {
			return
		}
		clauses = append(clauses, fmt.Sprintf("%s: %.0f%%", label, sig.Value()*100))
	}
	add("Text similarity", s.Text)
	add("Image similarity", s.Image)
	add("Geo proximity", s.Geo)
	add("Time recency", s.Time)
	return strings.Join(clauses, " | ")
}
