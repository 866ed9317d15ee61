package models

import "time"

// CalculationRow is the `calculations` table row calcstore.LoadFromSQLite
// reads. calculation_type is stored as the raw JSON tagged union; calc
// itself decides how to interpret it, this package only moves bytes.
type CalculationRow struct {
	ID              string `gorm:"primaryKey;type:char(36)" json:"id"`
	CalculationName string `gorm:"column:calculation_name;size:128;not null" json:"calculation_name"`
	Description     string `gorm:"column:description;size:512" json:"description"`
	CalculationType []byte `gorm:"column:calculation_type;type:jsonb;not null" json:"calculation_type"`
	OutputInst      string `gorm:"column:output_inst;size:64;not null" json:"output_inst"`
	OutputType      string `gorm:"column:output_type;size:64;not null" json:"output_type"`
	OutputID        string `gorm:"column:output_id;size:64;not null" json:"output_id"`
	Enabled         bool   `gorm:"column:enabled;not null;default:true" json:"enabled"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CalculationRow) TableName() string { return "calculations" }
