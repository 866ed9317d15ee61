package models

import "gorm.io/gorm"

// Migrate runs auto migrations for every table this core service owns:
// channels, their point mappings, registered calculations, and settings.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Channel{}, &PointConfig{}, &CalculationRow{}, &Setting{})
}
