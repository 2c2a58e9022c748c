package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tpa-platform/pricing-engine/internal/types"
)

// Fixture is a JSON reference-data set for the one-shot CLI and tests.
type Fixture struct {
	Factors         []types.Factor         `json:"factors"`
	Rules           []types.Rule           `json:"rules"`
	PointRates      []types.PointRate      `json:"pointRates"`
	PeriodDiscounts []types.PeriodDiscount `json:"periodDiscounts"`
	PolicyBindings  []types.PolicyBinding  `json:"policyBindings"`
}

// FromFixture builds an in-memory store seeded with the fixture data.
func FromFixture(f Fixture) (*Memory, error) {
	m := NewMemory()
	for _, factor := range f.Factors {
		m.SeedFactor(factor)
	}
	for _, r := range f.Rules {
		if _, err := m.CreateRule(context.Background(), r); err != nil {
			return nil, err
		}
	}
	for _, r := range f.PointRates {
		if _, err := m.CreatePointRate(context.Background(), r); err != nil {
			return nil, err
		}
	}
	for _, d := range f.PeriodDiscounts {
		if _, err := m.CreatePeriodDiscount(context.Background(), d); err != nil {
			return nil, err
		}
	}
	for _, b := range f.PolicyBindings {
		m.SeedPolicyBinding(b)
	}
	return m, nil
}

// LoadFixture reads a fixture file and builds a seeded in-memory store.
func LoadFixture(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return FromFixture(f)
}
