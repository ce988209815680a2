package config

import (
	"time"

	"github.com/joshi-prasad/quant"
)

// Default values for optional configuration fields.
const (
	DefaultAddress        = ":8080"
	DefaultReadTimeout    = 10 * time.Second
	DefaultWriteTimeout   = 30 * time.Second
	DefaultMaxUploadBytes = 1 << 20
	DefaultPrecision      = 6
	DefaultCurvePoints    = 199
	DefaultSpotMin        = 0.01
	DefaultSpotMax        = 1.99
	DefaultLayout         = "columns"
	DefaultTenorTolerance = quant.DefaultTenorTolerance
	DefaultChartWidth     = "600px"
	DefaultChartHeight    = "400px"
)

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = DefaultMaxUploadBytes
	}

	if c.Pricing.Precision == nil {
		precision := DefaultPrecision
		c.Pricing.Precision = &precision
	}
	if c.Pricing.CurvePoints == 0 {
		c.Pricing.CurvePoints = DefaultCurvePoints
	}
	if c.Pricing.SpotMin == 0 && c.Pricing.SpotMax == 0 {
		c.Pricing.SpotMin = DefaultSpotMin
		c.Pricing.SpotMax = DefaultSpotMax
	}

	if c.Bootstrap.Layout == "" {
		c.Bootstrap.Layout = DefaultLayout
	}
	if c.Bootstrap.TenorTolerance == 0 {
		c.Bootstrap.TenorTolerance = DefaultTenorTolerance
	}

	if c.Chart.Width == "" {
		c.Chart.Width = DefaultChartWidth
	}
	if c.Chart.Height == "" {
		c.Chart.Height = DefaultChartHeight
	}
}
