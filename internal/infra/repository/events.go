package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"trading_simulator/internal/domain"
)

const eventInsertBatch = 200

type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) (*GormEventRepository, error) {
	if db == nil {
		return nil, errors.New("db handle required")
	}
	return &GormEventRepository{db: db}, nil
}

func (r *GormEventRepository) AppendEvents(ctx context.Context, events []domain.SimEvent) error {
	if len(events) == 0 {
		return nil
	}
	models := make([]SimEventModel, 0, len(events))
	for _, ev := range events {
		models = append(models, toSimEventModel(ev))
	}
	if err := r.db.WithContext(ctx).CreateInBatches(models, eventInsertBatch).Error; err != nil {
		return fmt.Errorf("append events: %w", err)
	}
	return nil
}
