// Package pgstore implements store.StrategySourceStore on PostgreSQL using
// gorm.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/hotswap/internal/model"
	"github.com/vk/hotswap/internal/store"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sourceRow is the strategy_sources table.
type sourceRow struct {
	ID               string    `gorm:"column:id;primaryKey"`
	SourceText       string    `gorm:"column:source_text;not null"`
	LastCompileError *string   `gorm:"column:last_compile_error"`
	UpdateVersion    uint64    `gorm:"column:update_version;not null;default:0"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (r *sourceRow) toModel() *model.StrategySource {
	return &model.StrategySource{
		ID:               r.ID,
		SourceText:       r.SourceText,
		LastCompileError: r.LastCompileError,
		UpdateVersion:    r.UpdateVersion,
		UpdatedAt:        r.UpdatedAt,
	}
}

// Store is a gorm-backed strategy source store.
type Store struct {
	db    *gorm.DB
	table string
}

var _ store.StrategySourceStore = (*Store)(nil)

// Open connects to PostgreSQL and, if requested, migrates the schema.
func Open(ctx context.Context, opt Option) (*Store, error) {
	db, err := gorm.Open(postgres.Open(opt.dsn()), opt.gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	s := &Store{db: db, table: opt.table()}
	if opt.Migrate {
		if err := s.query(ctx).AutoMigrate(&sourceRow{}); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to migrate %s: %w", s.table, err)
		}
	}
	return s, nil
}

func (s *Store) query(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Find(ctx context.Context, id string) (*model.StrategySource, error) {
	var row sourceRow
	err := s.query(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find strategy %q: %w", id, err)
	}
	return row.toModel(), nil
}

func (s *Store) FindAllWithSource(ctx context.Context) ([]*model.StrategySource, error) {
	var rows []sourceRow
	err := s.query(ctx).
		Where("btrim(source_text, E' \\t\\r\\n') <> ''").
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list strategies: %w", err)
	}
	out := make([]*model.StrategySource, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

func (s *Store) Save(ctx context.Context, id, sourceText string) (*model.StrategySource, error) {
	var saved sourceRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		row := sourceRow{ID: id, SourceText: sourceText, UpdateVersion: 1, UpdatedAt: now}
		err := tx.Table(s.table).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"source_text":    sourceText,
				"update_version": gorm.Expr("? + 1", clause.Column{Table: s.table, Name: "update_version"}),
				"updated_at":     now,
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
		return tx.Table(s.table).Where("id = ?", id).Take(&saved).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save strategy %q: %w", id, err)
	}
	return saved.toModel(), nil
}

func (s *Store) SaveCompileError(ctx context.Context, id string, version uint64, text string) error {
	return s.setCompileError(ctx, id, version, &text)
}

func (s *Store) ClearCompileError(ctx context.Context, id string, version uint64) error {
	return s.setCompileError(ctx, id, version, nil)
}

func (s *Store) setCompileError(ctx context.Context, id string, version uint64, text *string) error {
	res := s.query(ctx).
		Where("id = ? AND update_version <= ?", id, version).
		Update("last_compile_error", text)
	if res.Error != nil {
		return fmt.Errorf("failed to update compile error of %q: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var rows int64
	if err := s.query(ctx).Where("id = ?", id).Count(&rows).Error; err != nil {
		return fmt.Errorf("failed to look up strategy %q: %w", id, err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return store.ErrStaleVersion
}
