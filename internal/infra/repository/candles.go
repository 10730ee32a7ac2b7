package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"trading_simulator/internal/domain"
)

type GormCandleRepository struct {
	db *gorm.DB
}

func NewGormCandleRepository(db *gorm.DB) (*GormCandleRepository, error) {
	if db == nil {
		return nil, errors.New("db handle required")
	}
	return &GormCandleRepository{db: db}, nil
}

func (r *GormCandleRepository) CandleExtremes(ctx context.Context, ticker string, ts time.Time) (domain.Candle, bool, error) {
	var model CandleModel
	err := r.db.WithContext(ctx).
		Where("ticker = ? AND timestamp = ?", ticker, ts.UTC()).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Candle{}, false, nil
	}
	if err != nil {
		return domain.Candle{}, false, fmt.Errorf("candle %s@%s: %w", ticker, ts, err)
	}
	return model.toDomain(), true, nil
}

func (r *GormCandleRepository) CandleID(ctx context.Context, ticker string, ts time.Time) (int64, bool, error) {
	var model CandleModel
	err := r.db.WithContext(ctx).
		Select("id").
		Where("ticker = ? AND timestamp = ?", ticker, ts.UTC()).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("candle id %s@%s: %w", ticker, ts, err)
	}
	return model.ID, true, nil
}
