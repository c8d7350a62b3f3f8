package config

import (
	"errors"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spacetask/spacetask/internal/flagx"
)

const defaultEnvFile = ".env"

// parseEnv overlays SPACETASK_* environment variables onto config. A dotenv
// file (-env-file, or ./.env) is loaded first when present; variables
// already set in the process environment win over the file.
// Unset variables leave fields untouched. Malformed values panic.
func parseEnv(config *Config) {
	envFile := flagx.EnvFileFlag()
	if envFile == "" {
		envFile = defaultEnvFile
	}

	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	if err := env.Parse(config); err != nil {
		panic(err)
	}
}
