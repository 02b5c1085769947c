package repository

import (
	"context"
	"errors"

	"github.com/GoPolymarket/hookgate/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PostgresTenantRepo struct {
	db *gorm.DB
}

func NewPostgresTenantRepo(db *gorm.DB) *PostgresTenantRepo {
	return &PostgresTenantRepo{db: db}
}

func (r *PostgresTenantRepo) Get(ctx context.Context, id string) (*model.Tenant, error) {
	var t model.Tenant
	err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PostgresTenantRepo) Create(ctx context.Context, t *model.Tenant) error {
	return r.db.WithContext(ctx).Create(t).Error
}

// IncrementUsage adds delta in a single UPDATE ... RETURNING so concurrent
// ingestions never lose an increment.
func (r *PostgresTenantRepo) IncrementUsage(ctx context.Context, id string, delta int64) (int64, error) {
	var t model.Tenant
	res := r.db.WithContext(ctx).Model(&t).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "usage"}}}).
		Where("id = ?", id).
		UpdateColumn("usage", gorm.Expr("usage + ?", delta))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrTenantNotFound
	}
	return t.Usage, nil
}

// UpdatePlan applies upd under a row lock. When the tenant is already on the
// requested plan nothing is written and changed is false.
func (r *PostgresTenantRepo) UpdatePlan(ctx context.Context, id string, upd model.PlanUpdate) (old model.Plan, changed bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t model.Tenant
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTenantNotFound
			}
			return err
		}
		old = t.Plan
		if t.Plan == upd.Plan {
			return nil
		}
		upd.Apply(&t)
		if err := tx.Select("plan", "subscription_state", "subscription_expires_at",
			"grace_period_ends_at", "billing_customer_id", "updated_at").Save(&t).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.APIKey{}).Where("tenant_id = ?", id).
			Update("plan", upd.Plan).Error; err != nil {
			return err
		}
		changed = true
		return nil
	})
	return old, changed, err
}
