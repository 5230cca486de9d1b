package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tolppa-client/internal/model"
)

// KV is a durable string key/value store. Multi-key writes and deletes are
// applied atomically.
type KV interface {
	Load(ctx context.Context, keys ...string) (map[string]string, error)
	Put(ctx context.Context, fields map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// Store is the KV plus access to the underlying database for the handlers
// that manage push subscriptions.
type Store interface {
	KV
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying connection.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// Load returns the stored values for keys. Missing keys are absent from the map.
func (s *gormStore) Load(ctx context.Context, keys ...string) (map[string]string, error) {
	var rows []model.SessionField
	if err := s.db.WithContext(ctx).Where("name IN ?", keys).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load session fields: %w", err)
	}
	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[r.Key] = r.Value
	}
	return values, nil
}

// Put upserts every field in a single transaction.
func (s *gormStore) Put(ctx context.Context, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]model.SessionField, 0, len(fields))
	for k, v := range fields {
		rows = append(rows, model.SessionField{Key: k, Value: v, UpdatedAt: now})
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to upsert session fields: %w", err)
		}
		return nil
	})
}

// Delete removes keys in a single transaction. Deleting absent keys is not an error.
func (s *gormStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("name IN ?", keys).Delete(&model.SessionField{}).Error; err != nil {
			return fmt.Errorf("failed to delete session fields: %w", err)
		}
		return nil
	})
}
