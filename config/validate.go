package config

import (
	"errors"
	"fmt"

	"github.com/joshi-prasad/quant"
)

// Validate checks that all values are usable. Call after applyDefaults.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return errors.New("server.address is required")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return errors.New("server timeouts must not be negative")
	}
	if c.Server.MaxUploadBytes < 1 {
		return fmt.Errorf("server.max_upload_bytes must be >= 1, got %d",
			c.Server.MaxUploadBytes)
	}

	if c.Pricing.Precision == nil {
		return errors.New("pricing.precision is required")
	}
	if *c.Pricing.Precision < 0 || *c.Pricing.Precision > 15 {
		return fmt.Errorf("pricing.precision must be between 0 and 15, got %d",
			*c.Pricing.Precision)
	}
	if c.Pricing.CurvePoints < 2 {
		return fmt.Errorf("pricing.curve_points must be >= 2, got %d",
			c.Pricing.CurvePoints)
	}
	if !(c.Pricing.SpotMin > 0) || !(c.Pricing.SpotMax > c.Pricing.SpotMin) {
		return fmt.Errorf("pricing spot range must satisfy 0 < spot_min < spot_max, got [%g, %g]",
			c.Pricing.SpotMin, c.Pricing.SpotMax)
	}

	if _, err := quant.ParseLayout(c.Bootstrap.Layout); err != nil {
		return fmt.Errorf("bootstrap.layout: %w", err)
	}
	if !(c.Bootstrap.TenorTolerance > 0) {
		return fmt.Errorf("bootstrap.tenor_tolerance must be positive, got %g",
			c.Bootstrap.TenorTolerance)
	}
	return nil
}

// Layout returns the configured table layout. Validate has already checked it.
func (c *Config) Layout() quant.Layout {
	layout, _ := quant.ParseLayout(c.Bootstrap.Layout)
	return layout
}
