package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"trading_simulator/internal/domain"
)

type GormInvestorRepository struct {
	db *gorm.DB
}

func NewGormInvestorRepository(db *gorm.DB) (*GormInvestorRepository, error) {
	if db == nil {
		return nil, errors.New("db handle required")
	}
	return &GormInvestorRepository{db: db}, nil
}

func (r *GormInvestorRepository) ListActive(ctx context.Context) ([]domain.Investor, error) {
	var models []InvestorModel
	err := r.db.WithContext(ctx).
		Where("activo = ?", true).
		Order("id_inversionista ASC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("list active investors: %w", err)
	}
	investors := make([]domain.Investor, 0, len(models))
	for i := range models {
		investors = append(investors, models[i].toDomain())
	}
	return investors, nil
}

func (r *GormInvestorRepository) PersistCapital(ctx context.Context, investorID int64, capital float64) error {
	result := r.db.WithContext(ctx).Model(&InvestorModel{}).
		Where("id_inversionista = ?", investorID).
		Update("capital_actual", capital)
	if result.Error != nil {
		return fmt.Errorf("persist capital for investor %d: %w", investorID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("investor %d not found", investorID)
	}
	return nil
}
