package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"trading_simulator/internal/domain"
)

type GormOperationRepository struct {
	db *gorm.DB
}

func NewGormOperationRepository(db *gorm.DB) (*GormOperationRepository, error) {
	if db == nil {
		return nil, errors.New("db handle required")
	}
	return &GormOperationRepository{db: db}, nil
}

func (r *GormOperationRepository) CreateOperation(ctx context.Context, op *domain.Operation) (int64, error) {
	model := toOperationModel(op)
	model.ID = 0
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return 0, fmt.Errorf("create operation: %w", err)
	}
	return model.ID, nil
}

func (r *GormOperationRepository) UpdateDCA(ctx context.Context, op *domain.Operation) error {
	return r.db.WithContext(ctx).Model(&OperationModel{}).
		Where("id_operacion = ?", op.ID).
		Updates(map[string]interface{}{
			"precio_entrada":       op.EntryPrice,
			"cantidad":             op.Quantity,
			"numero_entradas":      op.EntryCount,
			"capital_riesgo_usado": op.RiskCapitalUsed,
			"exposicion_total":     op.TotalExposure,
		}).Error
}

func (r *GormOperationRepository) UpdateClose(ctx context.Context, op *domain.Operation) error {
	updates := map[string]interface{}{
		"estado":          string(op.Status),
		"precio_cierre":   op.ClosePrice,
		"resultado":       op.Result,
		"motivo_cierre":   op.CloseReason,
		"cantidad":        op.Quantity,
		"precio_maximo":   op.PeakPrice,
		"precio_minimo":   op.TroughPrice,
	}
	if !op.ClosedAt.IsZero() {
		updates["fecha_cierre"] = op.ClosedAt
		updates["duracion_minutos"] = op.DurationMinutes
	}
	if op.ClosingCandleID != 0 {
		updates["id_vela_cierre"] = op.ClosingCandleID
	}
	return r.db.WithContext(ctx).Model(&OperationModel{}).
		Where("id_operacion = ?", op.ID).
		Updates(updates).Error
}

func (r *GormOperationRepository) UpdateExtremes(ctx context.Context, operationID int64, peak, trough float64) error {
	return r.db.WithContext(ctx).Model(&OperationModel{}).
		Where("id_operacion = ?", operationID).
		Updates(map[string]interface{}{
			"precio_maximo": peak,
			"precio_minimo": trough,
		}).Error
}

func (r *GormOperationRepository) UpdateUnrealizedPnL(ctx context.Context, operationID int64, pnl float64) error {
	return r.db.WithContext(ctx).Model(&OperationModel{}).
		Where("id_operacion = ?", operationID).
		Update("pyg_no_realizado", pnl).Error
}
