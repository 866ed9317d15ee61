package calcstore

import (
	"testing"

	"github.com/fieldwave/comsrv/internal/calc"
	"github.com/fieldwave/comsrv/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.AutoMigrate(&models.CalculationRow{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestLoadFromSQLiteSkipsBadJSONWithoutAborting(t *testing.T) {
	db := openTestDB(t)
	rows := []models.CalculationRow{
		{ID: "1", CalculationName: "good", CalculationType: []byte(`{"type":"Expression","formula":"a+1","variables":{"a":"k"}}`), OutputInst: "s", OutputType: "t", OutputID: "1", Enabled: true},
		{ID: "2", CalculationName: "bad", CalculationType: []byte(`not json`), OutputInst: "s", OutputType: "t", OutputID: "2", Enabled: true},
		{ID: "3", CalculationName: "disabled", CalculationType: []byte(`{"type":"Expression","formula":"1"}`), OutputInst: "s", OutputType: "t", OutputID: "3", Enabled: false},
	}
	for _, r := range rows {
		if err := db.Create(&r).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	reg := calc.NewRegistry()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	count, err := LoadFromSQLite(db, reg, log)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if count != 1 {
		t.Errorf("want 1 loaded (bad json skipped, disabled excluded) got %d", count)
	}
	if _, ok := reg.Get("1"); !ok {
		t.Error("expected calculation 1 to be registered")
	}
	if _, ok := reg.Get("2"); ok {
		t.Error("calculation 2 should not be registered")
	}
}
