package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into the provided struct using `env`
// tags. A parse failure (missing required variable, bad type) is a
// configuration error and should be treated as fatal at startup.
//
// Example:
//
//	type Config struct {
//	    SourceURL string `env:"SOURCE_URL,required"`
//	    PageSize  int    `env:"SOURCE_PAGE_SIZE" envDefault:"100"`
//	}
func Load(cfg any) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
