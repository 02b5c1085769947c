package repository

import (
	"context"
	"errors"

	"github.com/GoPolymarket/hookgate/internal/model"
	"gorm.io/gorm"
)

type PostgresEndpointRepo struct {
	db *gorm.DB
}

func NewPostgresEndpointRepo(db *gorm.DB) *PostgresEndpointRepo {
	return &PostgresEndpointRepo{db: db}
}

func (r *PostgresEndpointRepo) List(ctx context.Context, tenantID string) ([]*model.Endpoint, error) {
	var eps []*model.Endpoint
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("created_at").Find(&eps).Error
	return eps, err
}

func (r *PostgresEndpointRepo) ListActive(ctx context.Context, tenantID string) ([]*model.Endpoint, error) {
	var eps []*model.Endpoint
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND active", tenantID).Order("created_at").Find(&eps).Error
	return eps, err
}

func (r *PostgresEndpointRepo) Get(ctx context.Context, tenantID, id string) (*model.Endpoint, error) {
	var ep model.Endpoint
	err := r.db.WithContext(ctx).First(&ep, "tenant_id = ? AND id = ?", tenantID, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrEndpointNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ep, nil
}

func (r *PostgresEndpointRepo) Create(ctx context.Context, ep *model.Endpoint) error {
	if err := r.db.WithContext(ctx).Create(ep).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrEndpointConflict
		}
		return err
	}
	return nil
}

func (r *PostgresEndpointRepo) Update(ctx context.Context, ep *model.Endpoint) error {
	res := r.db.WithContext(ctx).Model(ep).
		Where("tenant_id = ?", ep.TenantID).
		Select("name", "url", "active", "rate_limit", "updated_at").
		Updates(ep)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return ErrEndpointConflict
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEndpointNotFound
	}
	return nil
}

func (r *PostgresEndpointRepo) Delete(ctx context.Context, tenantID, id string) error {
	res := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).Delete(&model.Endpoint{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrEndpointNotFound
	}
	return nil
}
