package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lostradar/lostradar-backend/internal/platform/logger"
	"github.com/lostradar/lostradar-backend/internal/platform/vector"
	"github.com/lostradar/lostradar-backend/internal/repos"
	"github.com/lostradar/lostradar-backend/internal/types"
)

// ReportsNamespace is the vector index namespace holding report embeddings.
const ReportsNamespace = "reports"

// Payload keys the retriever filters on; the worker writes the same keys
// when it upserts report vectors.
const (
	PayloadKeyType      = "type"
	PayloadKeyStatus    = "status"
	PayloadKeyCreatedAt = "created_at"
)

// RetrievalError wraps a vector index failure. The pipeline downgrades it
// to an empty candidate set; callers of the retriever itself still see it.
type RetrievalError struct {
	Cause error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("candidate retrieval failed: %v", e.Cause)
}

func (e *RetrievalError) Unwrap() error { return e.Cause }

// Candidate is one ANN neighbor that survived the exact text re-score.
type Candidate struct {
	Report    *types.Report
	TextScore float64
}

// Retriever produces the bounded candidate set for one source report:
// a cheap ANN prefilter over the index, then the exact blended text score,
// then the relaxed threshold gate. The expensive multi-signal scoring that
// follows is thereby bounded to at most K candidates.
type Retriever struct {
	log     *logger.Logger
	cfg     Config
	vec     vector.VectorStore
	reports repos.ReportRepo
	now     func() time.Time
}

func NewRetriever(baseLog *logger.Logger, cfg Config, vec vector.VectorStore, reports repos.ReportRepo) *Retriever {
	return &Retriever{
		log:     baseLog.With("component", "CandidateRetriever"),
		cfg:     cfg,
		vec:     vec,
		reports: reports,
		now:     time.Now,
	}
}

// Candidates returns up to cfg.ANNTopK opposite-type candidates for src,
// ordered by text score descending (report id ascending on ties).
func (r *Retriever) Candidates(ctx context.Context, src *types.Report) ([]Candidate, error) {
	srcInput := TextInputFromReport(src)
	if len(srcInput.Embedding) == 0 {
		return nil, nil
	}

	// Twice the matching window keeps recall high; the composite minimum is
	// the real cutoff downstream.
	extendedWindow := time.Duration(2*r.cfg.TimeWindowDays*24) * time.Hour
	cutoff := r.now().Add(-extendedWindow).Unix()
	filter := map[string]any{
		PayloadKeyType:      types.OppositeType(src.Type),
		PayloadKeyStatus:    types.ReportStatusApproved,
		PayloadKeyCreatedAt: map[string]any{"$gte": cutoff},
	}

	queryCtx, cancel := context.WithTimeout(ctx, r.cfg.RetrievalTimeout)
	defer cancel()
	neighbors, err := r.vec.QueryMatches(queryCtx, ReportsNamespace, srcInput.Embedding, r.cfg.ANNTopK*2, filter)
	if err != nil {
		return nil, &RetrievalError{Cause: err}
	}

	ids := make([]uuid.UUID, 0, len(neighbors))
	for _, n := range neighbors {
		id, err := uuid.Parse(n.ID)
		if err != nil || id == src.ID {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	records, err := r.reports.GetByIDs(ctx, nil, ids)
	if err != nil {
		return nil, &RetrievalError{Cause: err}
	}

	oppositeType := types.OppositeType(src.Type)
	relaxed := r.cfg.RelaxedTextThreshold()
	out := make([]Candidate, 0, len(records))
	for _, rec := range records {
		// Index payloads can lag the store; re-verify eligibility on the
		// authoritative record.
		if !rec.Matchable() || rec.Type != oppositeType || rec.ID == src.ID {
			continue
		}
		candInput := TextInputFromReport(rec)
		if len(candInput.Embedding) == 0 {
			continue
		}
		s := TextScore(srcInput, candInput)
		if !s.Present() || s.Value() < relaxed {
			continue
		}
		out = append(out, Candidate{Report: rec, TextScore: s.Value()})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TextScore == out[j].TextScore {
			return out[i].Report.ID.String() < out[j].Report.ID.String()
		}
		return out[i].TextScore > out[j].TextScore
	})
	if len(out) > r.cfg.ANNTopK {
		out = out[:r.cfg.ANNTopK]
	}
	return out, nil
}
