// Package infra holds infrastructure wiring shared by the persistence
// implementations.
package infra

import (
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tapyield/cashout/config"
	ledgerrepo "github.com/tapyield/cashout/infra/repository/ledger"
	reviewrepo "github.com/tapyield/cashout/infra/repository/review"
	txrepo "github.com/tapyield/cashout/infra/repository/transaction"
)

// NewDBConnection opens the postgres connection used by the gorm
// repositories.
func NewDBConnection(cnf config.DBConfig, appEnv string) (*gorm.DB, error) {
	databaseUrl := cnf.Url
	if databaseUrl == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}

	var logMode logger.LogLevel
	if appEnv == "development" {
		logMode = logger.Info
	} else {
		logMode = logger.Silent
	}

	connection, err := gorm.Open(postgres.Open(databaseUrl), &gorm.Config{
		Logger:                 logger.Default.LogMode(logMode),
		SkipDefaultTransaction: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := connection.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	return connection, nil
}

// AutoMigrate creates or updates the payout core schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&ledgerrepo.Balance{},
		&ledgerrepo.Adjustment{},
		&txrepo.Transaction{},
		&txrepo.Attempt{},
		&reviewrepo.ReviewItem{},
	)
}
