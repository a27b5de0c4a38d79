package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	DebugMode      bool
	HttpConfig     *HttpConfig
	RedisConfig    *RedisConfig
	PostgresConfig *PostgresConfig
	JwtConfig      *JwtConfig
	QueueConfig    *QueueConfig
	NatsConfig     *NatsConfig
	SandboxConfig  *SandboxConfig
	WorkerConfig   *WorkerConfig
	SweepConfig    *SweepConfig
}

func NewSystemConfig() *AppConfig {
	return &AppConfig{
		DebugMode:      os.Getenv("DEBUG_MODE") == "true",
		HttpConfig:     NewHttpConfig(),
		RedisConfig:    NewRedisConfig(),
		PostgresConfig: NewPostgresConfig(),
		JwtConfig:      NewJwtConfig(),
		QueueConfig:    NewQueueConfig(),
		NatsConfig:     NewNatsConfig(),
		SandboxConfig:  NewSandboxConfig(),
		WorkerConfig:   NewWorkerConfig(),
		SweepConfig:    NewSweepConfig(),
	}
}

// Validate rejects settings under which the sweep would reset a submission
// that is still inside one sandbox call.
func (c *AppConfig) Validate() error {
	if worst := c.SandboxConfig.WorstCaseExecution(); c.SweepConfig.StaleAfter <= worst {
		return fmt.Errorf("SWEEP_STALE_AFTER (%s) must exceed the worst-case sandbox time per test case (%s)",
			c.SweepConfig.StaleAfter, worst)
	}
	return nil
}

// LoadEnvFile loads "<name>.env" (or name itself when it already ends in .env).
// Variables already set in the environment win.
func LoadEnvFile(name string) error {
	if name == "" {
		return nil
	}
	if !strings.HasSuffix(name, ".env") {
		name += ".env"
	}
	return godotenv.Load(name)
}
