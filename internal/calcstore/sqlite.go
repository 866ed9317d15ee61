// Package calcstore loads CalculationDefinitions from the calculations
// sqlite table into a calc.Registry at startup.
package calcstore

import (
	"encoding/json"

	"github.com/fieldwave/comsrv/internal/calc"
	"github.com/fieldwave/comsrv/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LoadFromSQLite reads every enabled row of the calculations table,
// parses its calculation_type JSON tagged union, registers it against
// reg, and returns the count of definitions successfully loaded. A row
// whose calculation_type fails to parse is logged and skipped; it never
// aborts the rest of the load.
func LoadFromSQLite(pool *gorm.DB, reg *calc.Registry, log logrus.FieldLogger) (int, error) {
	var rows []models.CalculationRow
	if err := pool.Where("enabled = ?", true).Find(&rows).Error; err != nil {
		return 0, err
	}

	loaded := 0
	for _, row := range rows {
		var ct calc.CalculationType
		if err := json.Unmarshal(row.CalculationType, &ct); err != nil {
			log.WithField("calculation_name", row.CalculationName).WithError(err).
				Warn("skipping calculation with unparsable calculation_type")
			continue
		}

		def := calc.CalculationDefinition{
			ID:          row.ID,
			Name:        row.CalculationName,
			Description: row.Description,
			Type:        ct,
			OutputInst:  row.OutputInst,
			OutputType:  row.OutputType,
			OutputID:    row.OutputID,
			Enabled:     true,
			Trigger:     calc.TriggerManual,
		}
		reg.Register(def)
		loaded++
	}
	return loaded, nil
}
