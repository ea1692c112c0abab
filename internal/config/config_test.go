package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Skotchmaster/school_canteen/internal/money"
)

func TestCSV(t *testing.T) {
	assert.Nil(t, CSV(""))
	assert.Equal(t, []string{"kafka:9092", "kafka2:9092"}, CSV(" kafka:9092, ,kafka2:9092 "))
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("CANTEEN_TEST_INT", "not-a-number")
	t.Setenv("CANTEEN_TEST_DUR", "90s")
	t.Setenv("CANTEEN_TEST_AMOUNT", "-5")

	assert.Equal(t, 7, EnvIntDefault("CANTEEN_TEST_INT", 7))
	assert.Equal(t, 90*time.Second, EnvDurationDefault("CANTEEN_TEST_DUR", time.Minute))
	assert.Equal(t, money.FromUnits(1000), EnvAmountDefault("CANTEEN_TEST_AMOUNT", money.FromUnits(1000)))
	assert.Equal(t, "fallback", EnvDefault("CANTEEN_TEST_MISSING", "fallback"))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("MAX_TOPUP", "")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("ACCESS_TTL", "")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, money.FromUnits(1000), cfg.MaxTopUp)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
}
