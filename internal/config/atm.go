package config

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type ATMConfig struct {
	MinInitialDeposit  decimal.Decimal
	MinRetainedBalance decimal.Decimal
	AmountStep         decimal.Decimal
	MaxPINAttempts     int
	GenerationRetries  int
	DefaultNationality string
	StatementSize      int
}

func LoadATMConfig() *ATMConfig {
	viper.SetDefault("atm.min_initial_deposit", "500")
	viper.SetDefault("atm.min_retained_balance", "500")
	viper.SetDefault("atm.amount_step", "500")
	viper.SetDefault("atm.max_pin_attempts", 3)
	viper.SetDefault("atm.generation_retries", 100)
	viper.SetDefault("atm.default_nationality", "Bangladeshi")
	viper.SetDefault("atm.statement_size", 5)

	return &ATMConfig{
		MinInitialDeposit:  getDecimal("atm.min_initial_deposit", 500),
		MinRetainedBalance: getDecimal("atm.min_retained_balance", 500),
		AmountStep:         getDecimal("atm.amount_step", 500),
		MaxPINAttempts:     getPositiveInt("atm.max_pin_attempts", 3),
		GenerationRetries:  getPositiveInt("atm.generation_retries", 100),
		DefaultNationality: viper.GetString("atm.default_nationality"),
		StatementSize:      getPositiveInt("atm.statement_size", 5),
	}
}

// DefaultATMConfig returns the built-in rules without consulting viper.
func DefaultATMConfig() *ATMConfig {
	return &ATMConfig{
		MinInitialDeposit:  decimal.NewFromInt(500),
		MinRetainedBalance: decimal.NewFromInt(500),
		AmountStep:         decimal.NewFromInt(500),
		MaxPINAttempts:     3,
		GenerationRetries:  100,
		DefaultNationality: "Bangladeshi",
		StatementSize:      5,
	}
}

func getDecimal(key string, defaultVal int64) decimal.Decimal {
	if d, err := decimal.NewFromString(viper.GetString(key)); err == nil && d.IsPositive() {
		return d
	}
	return decimal.NewFromInt(defaultVal)
}

func getPositiveInt(key string, defaultVal int) int {
	if v := viper.GetInt(key); v > 0 {
		return v
	}
	return defaultVal
}
