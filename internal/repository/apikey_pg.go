package repository

import (
	"context"
	"errors"

	"github.com/GoPolymarket/hookgate/internal/model"
	"gorm.io/gorm"
)

type PostgresKeyRepo struct {
	db *gorm.DB
}

func NewPostgresKeyRepo(db *gorm.DB) *PostgresKeyRepo {
	return &PostgresKeyRepo{db: db}
}

func (r *PostgresKeyRepo) GetKey(ctx context.Context, key string) (*model.APIKey, error) {
	var k model.APIKey
	err := r.db.WithContext(ctx).First(&k, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (r *PostgresKeyRepo) CreateKey(ctx context.Context, k *model.APIKey) error {
	return r.db.WithContext(ctx).Create(k).Error
}

func (r *PostgresKeyRepo) RevokeKey(ctx context.Context, key string) error {
	res := r.db.WithContext(ctx).Model(&model.APIKey{}).Where("key = ?", key).Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrKeyNotFound
	}
	return nil
}
