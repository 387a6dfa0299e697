package config

import (
	"fmt"
	"os"

	intconfig "github.com/leapstack-labs/polyglot/internal/config"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := intconfig.ValidateTarget(c.Target); err != nil {
		return fmt.Errorf("invalid target configuration: %w", err)
	}
	return intconfig.ValidateLanguages(c.Languages)
}

// ValidateCatalog checks that the catalog file exists.
func (c *Config) ValidateCatalog() error {
	if _, err := os.Stat(c.Catalog); os.IsNotExist(err) {
		return fmt.Errorf("catalog file does not exist: %s\nHint: create it or use --catalog to specify a different path", c.Catalog)
	}
	return nil
}
