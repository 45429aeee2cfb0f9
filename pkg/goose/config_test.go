package goose

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Configuration {
	cfg := DefaultConfiguration()
	cfg.Host = "http://example.com"
	return cfg
}

func TestConfigValidateDefaultsOK(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestConfigValidateHatchRateMustBePositive(t *testing.T) {
	cfg := validConfig()
	cfg.HatchRate = 0
	assert.Error(t, cfg.Validate())
}

func TestConfigValidateNoStatsConflicts(t *testing.T) {
	cfg := validConfig()
	cfg.NoStats = true
	cfg.StatusCodes = true
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.NoStats = true
	cfg.OnlySummary = true
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.NoStats = true
	cfg.StatsLogFile = "stats.log"
	assert.Error(t, cfg.Validate())
}

func TestConfigValidateStatsLogFormatRequiresFile(t *testing.T) {
	cfg := validConfig()
	cfg.StatsLogFormat = "csv"
	assert.Error(t, cfg.Validate())

	cfg.StatsLogFile = "stats.log"
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidateThrottleRange(t *testing.T) {
	cfg := validConfig()
	cfg.ThrottleRequests = -1
	assert.Error(t, cfg.Validate())

	cfg.ThrottleRequests = MaxThrottleRequests + 1
	assert.Error(t, cfg.Validate())

	cfg.ThrottleRequests = 100
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidateGaggleRules(t *testing.T) {
	cfg := validConfig()
	cfg.Manager = true
	cfg.Worker = true
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Manager = true
	cfg.ExpectWorkers = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Manager = true
	cfg.Users = 4
	cfg.ExpectWorkers = 10
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Worker = true
	cfg.ExpectWorkers = 2
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Manager = true
	cfg.Users = 10
	cfg.ExpectWorkers = 2
	assert.NoError(t, cfg.Validate())
}
