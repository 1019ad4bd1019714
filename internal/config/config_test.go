package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		ChainID: 1,
		Postgres: PostgresConfig{DSN: "postgres://localhost/indexer"},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		Queue: QueueConfig{
			MaxAttempts:            5,
			MakerUpdateConcurrency: 30,
			JobTimeout:             60 * time.Second,
		},
		MaxFeeBPS: 1000,
	}
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_MissingChainID(t *testing.T) {
	c := validConfig()
	c.ChainID = 0
	assert.Error(t, c.Validate())
}

func TestValidate_MissingDSN(t *testing.T) {
	c := validConfig()
	c.Postgres.DSN = ""
	assert.Error(t, c.Validate())
}

func TestValidate_BadQueueConcurrency(t *testing.T) {
	c := validConfig()
	c.Queue.MakerUpdateConcurrency = 0
	assert.Error(t, c.Validate())
}
