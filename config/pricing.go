package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pricing holds the registration fee tiers. Amounts are in the currency's minor unit (cents).
type Pricing struct {
	Currency              string   `yaml:"currency"`
	StudentCents          int64    `yaml:"student_cents"`
	StandardCents         int64    `yaml:"standard_cents"`
	DiscountedOccupations []string `yaml:"discounted_occupations"`
}

// DefaultPricing returns the two tiers used when nothing is configured.
func DefaultPricing() Pricing {
	return Pricing{
		Currency:              "USD",
		StudentCents:          5000,
		StandardCents:         10000,
		DiscountedOccupations: []string{"student_undergraduate", "student_graduate"},
	}
}

// LoadPricing builds the pricing tiers from defaults, then the optional YAML file at path,
// then the PRICE_* environment variables (highest precedence).
func LoadPricing(path string) (Pricing, error) {
	p := DefaultPricing()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Pricing{}, fmt.Errorf("read pricing file: %w", err)
		}
		var fileCfg Pricing
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return Pricing{}, fmt.Errorf("parse pricing file: %w", err)
		}
		if fileCfg.Currency != "" {
			p.Currency = fileCfg.Currency
		}
		if fileCfg.StudentCents > 0 {
			p.StudentCents = fileCfg.StudentCents
		}
		if fileCfg.StandardCents > 0 {
			p.StandardCents = fileCfg.StandardCents
		}
		if len(fileCfg.DiscountedOccupations) > 0 {
			p.DiscountedOccupations = fileCfg.DiscountedOccupations
		}
	}

	if v := os.Getenv("PRICE_CURRENCY"); v != "" {
		p.Currency = strings.ToUpper(strings.TrimSpace(v))
	}
	if v := getEnvInt("PRICE_STUDENT_CENTS", 0); v > 0 {
		p.StudentCents = int64(v)
	}
	if v := getEnvInt("PRICE_STANDARD_CENTS", 0); v > 0 {
		p.StandardCents = int64(v)
	}

	if len(p.Currency) != 3 {
		return Pricing{}, fmt.Errorf("pricing currency must be a 3-letter code, got %q", p.Currency)
	}
	return p, nil
}
