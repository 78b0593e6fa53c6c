package config

import (
	"os"
	"strings"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName        string
	PostgresDSN        string
	WorkerPollInterval string
	StrikeSweepSpec    string

	EnableConflictDetection   bool
	EnablePromotionConsumer   bool
	EnableStrikeExpirySweep   bool
	EnableOrchestratorEffects bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "termbase"
	}

	poll := os.Getenv("WORKER_POLL_INTERVAL")
	if poll == "" {
		poll = "5s"
	}

	sweep := os.Getenv("STRIKE_SWEEP_SPEC")
	if sweep == "" {
		// Hourly is frequent enough; strike expiry is day-granular.
		sweep = "@hourly"
	}

	return Config{
		ServiceName:        service,
		PostgresDSN:        os.Getenv("POSTGRES_DSN"),
		WorkerPollInterval: poll,
		StrikeSweepSpec:    sweep,

		EnableConflictDetection:   envBool("ENABLE_CONFLICT_DETECTION", true),
		EnablePromotionConsumer:   envBool("ENABLE_PROMOTION_CONSUMER", true),
		EnableStrikeExpirySweep:   envBool("ENABLE_STRIKE_EXPIRY_SWEEP", true),
		EnableOrchestratorEffects: envBool("ENABLE_ORCHESTRATOR_EFFECTS", true),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
