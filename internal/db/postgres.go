package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/lostradar/lostradar-backend/internal/platform/envutil"
	"github.com/lostradar/lostradar-backend/internal/platform/logger"
	"github.com/lostradar/lostradar-backend/internal/types"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(log *logger.Logger) (*PostgresService, error) {
	serviceLog := log.With("service", "PostgresService")

	host := envutil.String("POSTGRES_HOST", "localhost")
	port := envutil.String("POSTGRES_PORT", "5432")
	user := envutil.String("POSTGRES_USER", "postgres")
	password := envutil.String("POSTGRES_PASSWORD", "")
	name := envutil.String("POSTGRES_NAME", "lostradar")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)

	serviceLog.Info("Connecting to Postgres...")
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		serviceLog.Error("Failed to connect to Postgres", "error", err)
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		serviceLog.Error("Failed to enable uuid-ossp extension", "error", err)
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}

	return &PostgresService{db: gdb, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB {
	return s.db
}

func (s *PostgresService) AutoMigrateAll() error {
	s.log.Info("Auto migrating postgres tables...")
	err := s.db.AutoMigrate(
		&types.Report{},
		&types.ReportImageHash{},
		&types.Match{},
	)
	if err != nil {
		s.log.Error("Auto migration failed for postgres tables", "error", err)
		return err
	}

	// Reports keep their image hash rows; matches reference reports on both
	// sides of the pair.
	stmts := []string{
		`ALTER TABLE "report_image_hash"
		 ADD CONSTRAINT "fk_report_image_hash_report_id"
		 FOREIGN KEY ("report_id") REFERENCES "report"("id") ON DELETE CASCADE`,
		`ALTER TABLE "match"
		 ADD CONSTRAINT "fk_match_report_a_id"
		 FOREIGN KEY ("report_a_id") REFERENCES "report"("id") ON DELETE CASCADE`,
		`ALTER TABLE "match"
		 ADD CONSTRAINT "fk_match_report_b_id"
		 FOREIGN KEY ("report_b_id") REFERENCES "report"("id") ON DELETE CASCADE`,
	}
	for _, stmt := range stmts {
		if err := s.db.Exec(stmt).Error; err != nil {
			s.log.Warn("Foreign key constraint setup failed (may already exist)", "error", err)
		}
	}
	return nil
}
