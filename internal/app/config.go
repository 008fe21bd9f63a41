package app

import (
	"github.com/yungbote/educhat-backend/internal/platform/logger"
	"github.com/yungbote/educhat-backend/internal/utils"
)

type Config struct {
	JWTSecretKey string
	Port         string

	// SeedOnBoot applies the built-in tutor personas at startup (idempotent).
	SeedOnBoot bool

	// RedisAddr enables the cross-instance SSE bus when non-empty.
	RedisAddr string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		JWTSecretKey: utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log),
		Port:         utils.GetEnv("PORT", "8080", log),
		SeedOnBoot:   utils.GetEnvAsInt("SEED_ON_BOOT", 1, log) != 0,
		RedisAddr:    utils.GetEnv("REDIS_ADDR", "", log),
	}
}
