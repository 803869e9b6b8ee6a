// Package config carries the financial constants of the bank and the
// runtime settings of the server process. Defaults match the documented
// product terms; every value can be overridden through the environment
// (load a .env file first with godotenv if present).
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Config bundles everything the engine and the wiring layer need.
type Config struct {
	// Product terms.
	QuarterlyFee     decimal.Decimal
	CreditFee        decimal.Decimal
	MinCredit        decimal.Decimal
	MaxCredit        decimal.Decimal
	CreditRatePA     decimal.Decimal
	PenaltyRatePA    decimal.Decimal
	CreditTermMonths int
	// WriteOffMissedPayments is the number of consecutive missed monthly
	// cycles after which a blocked credit is written off.
	WriteOffMissedPayments int

	// Process settings.
	HTTPAddr     string
	PostgresDSN  string
	KafkaBrokers []string
	KafkaTopic   string
}

// Load builds a Config from defaults and environment overrides.
func Load() Config {
	annualFee := getDecimal("ANNUAL_FEE", "100.00")
	return Config{
		QuarterlyFee:           annualFee.Div(decimal.NewFromInt(4)).Round(2),
		CreditFee:              getDecimal("CREDIT_FEE", "250.00"),
		MinCredit:              getDecimal("MIN_CREDIT", "1000.00"),
		MaxCredit:              getDecimal("MAX_CREDIT", "15000.00"),
		CreditRatePA:           getDecimal("CREDIT_INTEREST_RATE_PA", "0.15"),
		PenaltyRatePA:          getDecimal("PENALTY_INTEREST_RATE_PA", "0.30"),
		CreditTermMonths:       getInt("CREDIT_TERM_MONTHS", 12),
		WriteOffMissedPayments: getInt("WRITE_OFF_MISSED_PAYMENTS", 3),

		HTTPAddr:     getEnv("HTTP_ADDR", ":8080"),
		PostgresDSN:  getEnv("POSTGRES_DSN", ""),
		KafkaBrokers: getEnvSlice("KAFKA_BROKERS", nil),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "transaction_completed"),
	}
}

// MonthlyRate is the per-period credit interest rate.
func (c Config) MonthlyRate() decimal.Decimal {
	return c.CreditRatePA.Div(decimal.NewFromInt(12))
}

// DailyPenaltyRate is the per-day penalty rate applied to blocked credits.
func (c Config) DailyPenaltyRate() decimal.Decimal {
	return c.PenaltyRatePA.Div(decimal.NewFromInt(365))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		return strings.Split(v, ",")
	}
	return fallback
}

func getDecimal(key, fallback string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(fallback)
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
