package repository

import (
	"context"
	"time"

	"github.com/GoPolymarket/hookgate/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresAuditRepo struct {
	db *gorm.DB
}

func NewPostgresAuditRepo(db *gorm.DB) *PostgresAuditRepo {
	return &PostgresAuditRepo{db: db}
}

func (r *PostgresAuditRepo) Insert(ctx context.Context, entry *model.SecurityAuditEvent) error {
	if entry == nil {
		return nil
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entry).Error
}

// List returns the newest entries of a tenant first.
func (r *PostgresAuditRepo) List(ctx context.Context, tenantID string, limit int) ([]*model.SecurityAuditEvent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var records []*model.SecurityAuditEvent
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *PostgresAuditRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-olderThan)
	return r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&model.SecurityAuditEvent{}).Error
}
