// Package db opens the local sqlite database this core uses for
// channel/point configuration, registered calculations, and settings.
package db

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fieldwave/comsrv/internal/config"
	"github.com/fieldwave/comsrv/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Open opens the sqlite database under cfg.DataPath.
func Open(cfg *config.Config, errorLogger *logrus.Logger) (*gorm.DB, error) {
	if err := config.EnsureDir(cfg.DataPath); err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{
		Logger: models.NewLogrusLogger(errorLogger),
	}

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(cfg.DataPath, "comsrv.db")), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite failed: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return gdb, nil
}

// SeedDefaultSettings inserts the baseline Setting rows if they are not
// already present; it never overwrites an operator-edited value.
func SeedDefaultSettings(gdb *gorm.DB) error {
	mustJSON := func(v any) models.ScalarJSON {
		b, _ := json.Marshal(v)
		return models.ScalarJSON(b)
	}

	defaults := []models.Setting{
		{Name: "site_name", ValueType: "string", ValueJSON: mustJSON("comsrv")},
		{Name: "log_level", ValueType: "string", ValueJSON: mustJSON("info")},
		{Name: "default_polling_interval_ms", ValueType: "int", ValueJSON: mustJSON(1000)},
	}

	return gdb.Transaction(func(tx *gorm.DB) error {
		for _, d := range defaults {
			var existing models.Setting
			err := tx.Where("name = ?", d.Name).First(&existing).Error
			if err == nil {
				continue
			}
			if err != gorm.ErrRecordNotFound {
				return err
			}
			if err := tx.Create(&d).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
