package config

import (
	"log"

	"github.com/spf13/viper"
)

var envBindings = map[string]string{
	"database.host":     "DATABASE_HOST",
	"database.port":     "DATABASE_PORT",
	"database.user":     "DATABASE_USER",
	"database.password": "DATABASE_PASSWORD",
	"database.name":     "DATABASE_NAME",
	"database.ssl_mode": "DATABASE_SSL_MODE",

	"redis.host":     "REDIS_HOST",
	"redis.port":     "REDIS_PORT",
	"redis.password": "REDIS_PASSWORD",
	"redis.db":       "REDIS_DB",

	"jwt.secret_key":   "JWT_SECRET_KEY",
	"jwt.expiry_hours": "JWT_EXPIRY_HOURS",
	"operator.api_key": "OPERATOR_API_KEY",

	"security.salt":     "PIN_SALT",
	"argon2.time":       "ARGON2_TIME",
	"argon2.memory":     "ARGON2_MEMORY",
	"argon2.threads":    "ARGON2_THREADS",
	"argon2.key_length": "ARGON2_KEY_LENGTH",

	"ledger.driver": "LEDGER_DRIVER",
	"server.port":   "PORT",

	"atm.min_initial_deposit":  "ATM_MIN_INITIAL_DEPOSIT",
	"atm.min_retained_balance": "ATM_MIN_RETAINED_BALANCE",
	"atm.amount_step":          "ATM_AMOUNT_STEP",
	"atm.max_pin_attempts":     "ATM_MAX_PIN_ATTEMPTS",
	"atm.generation_retries":   "ATM_GENERATION_RETRIES",
	"atm.default_nationality":  "ATM_DEFAULT_NATIONALITY",
	"atm.statement_size":       "ATM_STATEMENT_SIZE",
}

// Init reads file (usually .env) and binds every supported environment variable.
// A missing file is not an error; environment variables and defaults still apply.
func Init(file string) {
	viper.SetConfigFile(file)
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	for key, env := range envBindings {
		viper.BindEnv(key, env)
	}

	viper.SetDefault("ledger.driver", "postgres")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("jwt.expiry_hours", 8)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}
}
