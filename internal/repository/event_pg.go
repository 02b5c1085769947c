package repository

import (
	"context"
	"errors"
	"time"

	"github.com/GoPolymarket/hookgate/internal/model"
	"gorm.io/gorm"
)

type PostgresEventRepo struct {
	db *gorm.DB
}

func NewPostgresEventRepo(db *gorm.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

// Insert stores e. The (tenant_id, event_id) primary key turns a concurrent
// duplicate into ErrDuplicateEvent.
func (r *PostgresEventRepo) Insert(ctx context.Context, e *model.Event) error {
	if err := r.db.WithContext(ctx).Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEvent
		}
		return err
	}
	return nil
}

func (r *PostgresEventRepo) Exists(ctx context.Context, tenantID, eventID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Event{}).
		Where("tenant_id = ? AND event_id = ?", tenantID, eventID).
		Limit(1).Count(&n).Error
	return n > 0, err
}

func (r *PostgresEventRepo) Get(ctx context.Context, tenantID, eventID string) (*model.Event, error) {
	var e model.Event
	err := r.db.WithContext(ctx).First(&e, "tenant_id = ? AND event_id = ?", tenantID, eventID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *PostgresEventRepo) ListSince(ctx context.Context, tenantID string, since time.Time, limit int) ([]*model.Event, error) {
	var events []*model.Event
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND received_at >= ?", tenantID, since).
		Order("received_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *PostgresEventRepo) UpdateDelivery(ctx context.Context, tenantID, eventID string, res model.DeliveryResult) error {
	out := r.db.WithContext(ctx).Model(&model.Event{}).
		Where("tenant_id = ? AND event_id = ?", tenantID, eventID).
		Updates(map[string]any{
			"status":             res.Status,
			"forwarded_to":       model.StringList(res.ForwardedTo),
			"last_response_code": res.LastResponseCode,
			"retry_count":        res.RetryCount,
			"updated_at":         time.Now().UTC(),
		})
	if out.Error != nil {
		return out.Error
	}
	if out.RowsAffected == 0 {
		return ErrEventNotFound
	}
	return nil
}
