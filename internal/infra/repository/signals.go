package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"trading_simulator/internal/domain"
)

type GormSignalRepository struct {
	db *gorm.DB
}

func NewGormSignalRepository(db *gorm.DB) (*GormSignalRepository, error) {
	if db == nil {
		return nil, errors.New("db handle required")
	}
	return &GormSignalRepository{db: db}, nil
}

func (r *GormSignalRepository) SignalsAt(ctx context.Context, ts time.Time) ([]domain.Signal, error) {
	var models []SignalModel
	err := r.db.WithContext(ctx).
		Where("timestamp_senal = ?", ts.UTC()).
		Order("id_senal ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("signals at %s: %w", ts, err)
	}
	signals := make([]domain.Signal, 0, len(models))
	for i := range models {
		signals = append(signals, models[i].toDomain())
	}
	return signals, nil
}
