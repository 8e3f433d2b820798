package config

import (
	"github.com/dmitrijs2005/secureshare/internal/flagx"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every variable name, e.g. SHARE_HTTP_ADDR.
const EnvPrefix = "SHARE"

// parseEnv loads the dotenv file named by -env-file (or ./.env when present)
// into the process environment and then overlays SHARE_* variables. Only
// variables that are set override the current values.
func parseEnv(config *Config) {
	if path := flagx.EnvFileFlag(); path != "" {
		if err := godotenv.Load(path); err != nil {
			panic(err)
		}
	} else {
		// a missing ./.env is normal outside development
		_ = godotenv.Load()
	}

	if err := envconfig.Process(EnvPrefix, config); err != nil {
		panic(err)
	}
}
