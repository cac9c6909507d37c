package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"

	"billing-agent/internal/ledger"
)

const AppModeProduction = "PROD"
const AppModeDevelop = "DEV"

type Config struct {
	Database *Database
	Ledger   *ledger.Config
	App      *App
	Billing  *Billing
}

type App struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Mode     string `env:"APP_MODE" envDefault:"DEV"`
}

type Database struct {
	DSN string `env:"DATABASE_URL"`
}

// Billing carries the seller-side invoicing parameters: the home VAT
// jurisdiction the regime rules pivot on and the code of the sales journal
// invoices are created in.
type Billing struct {
	HomeCountry  string `env:"HOME_COUNTRY" envDefault:"NL"`
	SalesJournal string `env:"SALES_JOURNAL" envDefault:"INV"`
}

func NewConfig() (*Config, error) {
	var db Database
	var lg ledger.Config
	var app App
	var billing Billing

	if err := env.Parse(&db); err != nil {
		return nil, fmt.Errorf("error parsing database config: %w", err)
	}
	if err := env.Parse(&lg); err != nil {
		return nil, fmt.Errorf("error parsing ledger config: %w", err)
	}
	if err := env.Parse(&app); err != nil {
		return nil, fmt.Errorf("error parsing app config: %w", err)
	}
	if err := env.Parse(&billing); err != nil {
		return nil, fmt.Errorf("error parsing billing config: %w", err)
	}

	return &Config{
		Database: &db,
		Ledger:   &lg,
		App:      &app,
		Billing:  &billing,
	}, nil
}
