package db

import (
	"fmt"

	"gorm.io/gorm"

	"trading_simulator/internal/infra/repository"
)

// Migrate creates or extends every table the simulator touches.
func Migrate(conn *gorm.DB) error {
	err := conn.AutoMigrate(
		&repository.InvestorModel{},
		&repository.StrategyModel{},
		&repository.SignalModel{},
		&repository.CandleModel{},
		&repository.OperationModel{},
		&repository.SimEventModel{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
