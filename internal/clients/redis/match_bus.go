package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/lostradar/lostradar-backend/internal/platform/logger"
)

// MatchCreatedEvent is published for every newly materialized match so the
// external notification service can pick it up. The engine never delivers
// notifications itself.
type MatchCreatedEvent struct {
	MatchID        uuid.UUID `json:"match_id"`
	ReportAID      uuid.UUID `json:"report_a_id"`
	ReportBID      uuid.UUID `json:"report_b_id"`
	SourceReportID uuid.UUID `json:"source_report_id"`
	TotalScore     float64   `json:"total_score"`
	CreatedAt      time.Time `json:"created_at"`
}

type MatchBus interface {
	PublishCreated(ctx context.Context, ev MatchCreatedEvent) error
	Close() error
}

type matchBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewMatchBus(log *logger.Logger) (MatchBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ch := strings.TrimSpace(os.Getenv("REDIS_MATCH_CHANNEL"))
	if ch == "" {
		ch = "matches"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &matchBus{
		log:     log.With("service", "RedisMatchBus"),
		rdb:     rdb,
		channel: ch,
	}, nil
}

func (b *matchBus) PublishCreated(ctx context.Context, ev MatchCreatedEvent) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis match bus not initialized")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *matchBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
