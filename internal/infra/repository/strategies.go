package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gorm.io/gorm"

	"trading_simulator/internal/domain"
)

// GormStrategyRepository loads exit-rule parameters. Retrace limits are
// stored as percentages and converted to fractions on load; the partial
// liquidation share stays in percent units because that is how the close
// path consumes it. Rows are cached for the life of the process since
// strategies do not change mid-simulation.
type GormStrategyRepository struct {
	db *gorm.DB

	mu    sync.RWMutex
	cache map[int64]domain.StrategyParams
}

func NewGormStrategyRepository(db *gorm.DB) (*GormStrategyRepository, error) {
	if db == nil {
		return nil, errors.New("db handle required")
	}
	return &GormStrategyRepository{
		db:    db,
		cache: make(map[int64]domain.StrategyParams),
	}, nil
}

func (r *GormStrategyRepository) Params(ctx context.Context, strategyID int64) (domain.StrategyParams, error) {
	r.mu.RLock()
	if params, ok := r.cache[strategyID]; ok {
		r.mu.RUnlock()
		return params, nil
	}
	r.mu.RUnlock()

	var model StrategyModel
	err := r.db.WithContext(ctx).
		Where("id_estrategia = ?", strategyID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.StrategyParams{}, fmt.Errorf("strategy %d not found", strategyID)
	}
	if err != nil {
		return domain.StrategyParams{}, fmt.Errorf("load strategy %d: %w", strategyID, err)
	}
	if !model.Activa {
		return domain.StrategyParams{}, fmt.Errorf("strategy %d is inactive", strategyID)
	}
	if model.RetrocesoAperturaPct == nil || model.RetrocesoMaximoPct == nil ||
		model.UmbralLiquidacionPct == nil || model.PorcentajeLiquidacion == nil {
		return domain.StrategyParams{}, fmt.Errorf("strategy %d has incomplete exit parameters", strategyID)
	}

	params := domain.StrategyParams{
		EntryRetraceLimit:       *model.RetrocesoAperturaPct / 100,
		PeakRetraceLimit:        *model.RetrocesoMaximoPct / 100,
		PartialRetraceThreshold: *model.UmbralLiquidacionPct / 100,
		PartialLiquidatePct:     *model.PorcentajeLiquidacion,
	}

	r.mu.Lock()
	r.cache[strategyID] = params
	r.mu.Unlock()
	return params, nil
}
