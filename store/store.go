// Package store persists generation history in a relational database.
// Drivers: postgres, mysql and sqlite (pure Go). The store is optional; a
// nil *Store disables persistence without touching the pipeline.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/meshflow/config"
	"github.com/BaSui01/meshflow/internal/database"
	"github.com/BaSui01/meshflow/types"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Store wraps the generation history tables.
type Store struct {
	db     *gorm.DB
	pool   *database.PoolManager
	logger *zap.Logger
}

// Open connects to the configured database and wires the connection pool.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.DSN())
	case "mysql":
		dialector = mysql.Open(cfg.DSN())
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.Driver, err)
	}

	poolCfg := database.DefaultPoolConfig()
	if cfg.MaxIdleConns > 0 {
		poolCfg.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxOpenConns = cfg.MaxOpenConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.ConnMaxLifetime = cfg.ConnMaxLifetime
	}
	pool, err := database.NewPoolManager(db, poolCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("configure database pool: %w", err)
	}

	return &Store{
		db:     db,
		pool:   pool,
		logger: logger.With(zap.String("component", "store")),
	}, nil
}

// NewStore wraps an existing gorm handle. Used by tests and callers that
// manage the connection themselves.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger.With(zap.String("component", "store"))}
}

// AutoMigrate creates or updates the history tables. Production deployments
// use the versioned migrations instead; this covers sqlite and tests.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&GenerationRecord{}, &StageRecord{})
}

// Ping reports database reachability for readiness checks.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool != nil {
		return s.pool.Ping(ctx)
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connections.
func (s *Store) Close() error {
	if s.pool != nil {
		return s.pool.Close()
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Pool exposes the pool manager for stats endpoints. Nil when the store was
// built from a raw handle.
func (s *Store) Pool() *database.PoolManager { return s.pool }

// Create inserts a record, assigning an ID and queued status when missing.
func (s *Store) Create(ctx context.Context, rec *GenerationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = StatusQueued
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("create generation record: %w", err)
	}
	s.logger.Debug("generation recorded",
		zap.String("id", rec.ID),
		zap.String("status", string(rec.Status)))
	return nil
}

// Save writes the full record back, bumping UpdatedAt.
func (s *Store) Save(ctx context.Context, rec *GenerationRecord) error {
	if rec.ID == "" {
		return errors.New("record has no id")
	}
	if err := s.db.WithContext(ctx).Save(rec).Error; err != nil {
		return fmt.Errorf("save generation record: %w", err)
	}
	return nil
}

// UpdateStatus moves a record to a new status, storing the error message
// when one is given.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status, errMsg string) error {
	res := s.db.WithContext(ctx).
		Model(&GenerationRecord{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "error": errMsg})
	if res.Error != nil {
		return fmt.Errorf("update generation status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AttachStages stores the per-stage usage rows for a generation.
func (s *Store) AttachStages(ctx context.Context, generationID string, stages []types.StageUsage) error {
	records := StageRecordsFor(generationID, stages)
	if len(records) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&records).Error; err != nil {
		return fmt.Errorf("attach stage records: %w", err)
	}
	return nil
}

// Finalize writes the finished record and its stage rows in one transaction.
func (s *Store) Finalize(ctx context.Context, rec *GenerationRecord, stages []types.StageUsage) error {
	if rec.ID == "" {
		return errors.New("record has no id")
	}
	fn := func(tx *gorm.DB) error {
		if err := tx.Save(rec).Error; err != nil {
			return fmt.Errorf("save generation record: %w", err)
		}
		records := StageRecordsFor(rec.ID, stages)
		if len(records) == 0 {
			return nil
		}
		if err := tx.Create(&records).Error; err != nil {
			return fmt.Errorf("attach stage records: %w", err)
		}
		return nil
	}
	if s.pool != nil {
		return s.pool.WithTransaction(ctx, fn)
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// Get loads one record with its stages.
func (s *Store) Get(ctx context.Context, id string) (*GenerationRecord, error) {
	var rec GenerationRecord
	err := s.db.WithContext(ctx).
		Preload("Stages").
		First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load generation record: %w", err)
	}
	return &rec, nil
}

// ListOptions filter and page List.
type ListOptions struct {
	Status Status
	Limit  int
	Offset int
}

// List returns records newest first plus the total count for the filter.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]GenerationRecord, int64, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	q := s.db.WithContext(ctx).Model(&GenerationRecord{})
	if opts.Status != "" {
		q = q.Where("status = ?", opts.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count generation records: %w", err)
	}

	var records []GenerationRecord
	err := q.Order("created_at DESC").
		Limit(limit).
		Offset(opts.Offset).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list generation records: %w", err)
	}
	return records, total, nil
}

// Stats aggregates stored generations by status plus the average completed
// run duration.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByStatus: make(map[Status]int64)}

	var rows []struct {
		Status Status
		Count  int64
	}
	err := s.db.WithContext(ctx).
		Model(&GenerationRecord{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate generation stats: %w", err)
	}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
		stats.Total += row.Count
	}

	var avg *float64
	err = s.db.WithContext(ctx).
		Model(&GenerationRecord{}).
		Where("status = ?", StatusCompleted).
		Select("AVG(duration_ms)").
		Scan(&avg).Error
	if err != nil {
		return nil, fmt.Errorf("average generation duration: %w", err)
	}
	if avg != nil {
		stats.AvgDurationMS = *avg
	}
	return stats, nil
}
