package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tpa-platform/pricing-engine/internal/types"
)

// Memory is an in-memory Store for tests, fixtures and the one-shot CLI.
type Memory struct {
	mu sync.RWMutex

	rules           map[int64]types.Rule
	factors         map[string]types.Factor
	pointRates      map[int64]types.PointRate
	periodDiscounts map[int64]types.PeriodDiscount
	policyBindings  map[int64]types.PolicyBinding

	nextRuleID     int64
	nextRateID     int64
	nextDiscountID int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		rules:           map[int64]types.Rule{},
		factors:         map[string]types.Factor{},
		pointRates:      map[int64]types.PointRate{},
		periodDiscounts: map[int64]types.PeriodDiscount{},
		policyBindings:  map[int64]types.PolicyBinding{},
	}
}

// Seed helpers for fixtures and tests.

func (m *Memory) SeedFactor(f types.Factor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.factors[f.Key] = f
}

func (m *Memory) SeedPolicyBinding(b types.PolicyBinding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policyBindings[b.ID] = b
}

func (m *Memory) RulesFor(_ context.Context, procedureID, priceListID int64) ([]types.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []types.Rule{}
	for _, r := range m.rules {
		if r.ProcedureID == procedureID && r.PriceListID == priceListID {
			out = append(out, r)
		}
	}
	// Map iteration order is random; match the repository's ORDER BY id.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Factors(_ context.Context) (map[string]types.Factor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]types.Factor, len(m.factors))
	for k, v := range m.factors {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) PointRates(_ context.Context, insuranceDegreeID int64) ([]types.PointRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []types.PointRate{}
	for _, r := range m.pointRates {
		if r.InsuranceDegree == nil || r.InsuranceDegree.ID == insuranceDegreeID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) PeriodDiscounts(_ context.Context, procedureID int64) ([]types.PeriodDiscount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []types.PeriodDiscount{}
	for _, d := range m.periodDiscounts {
		if d.ProcedureID == procedureID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) PolicyBindings(_ context.Context, procedureID, priceListID int64) ([]types.PolicyBinding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []types.PolicyBinding{}
	for _, b := range m.policyBindings {
		if b.ProcedureID != 0 && b.ProcedureID != procedureID {
			continue
		}
		if b.PriceListID != 0 && b.PriceListID != priceListID {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetRule(_ context.Context, id int64) (types.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rules[id]
	if !ok {
		return types.Rule{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) CreateRule(_ context.Context, r types.Rule) (types.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		m.nextRuleID++
		r.ID = m.nextRuleID
	} else if r.ID > m.nextRuleID {
		m.nextRuleID = r.ID
	}
	r.UpdatedAt = time.Now().UTC()
	m.rules[r.ID] = r
	return r, nil
}

func (m *Memory) UpdateRule(_ context.Context, r types.Rule) (types.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[r.ID]; !ok {
		return types.Rule{}, ErrNotFound
	}
	r.UpdatedAt = time.Now().UTC()
	m.rules[r.ID] = r
	return r, nil
}

func (m *Memory) DeleteRule(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return ErrNotFound
	}
	delete(m.rules, id)
	return nil
}

func (m *Memory) CreatePointRate(_ context.Context, r types.PointRate) (types.PointRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		m.nextRateID++
		r.ID = m.nextRateID
	} else if r.ID > m.nextRateID {
		m.nextRateID = r.ID
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = now
	}
	m.pointRates[r.ID] = r
	return r, nil
}

func (m *Memory) DeletePointRate(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pointRates[id]; !ok {
		return ErrNotFound
	}
	delete(m.pointRates, id)
	return nil
}

func (m *Memory) CreatePeriodDiscount(_ context.Context, d types.PeriodDiscount) (types.PeriodDiscount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == 0 {
		m.nextDiscountID++
		d.ID = m.nextDiscountID
	} else if d.ID > m.nextDiscountID {
		m.nextDiscountID = d.ID
	}
	m.periodDiscounts[d.ID] = d
	return d, nil
}

func (m *Memory) DeletePeriodDiscount(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.periodDiscounts[id]; !ok {
		return ErrNotFound
	}
	delete(m.periodDiscounts, id)
	return nil
}

func (m *Memory) Ping(_ context.Context) error { return nil }

func (m *Memory) Close() {}
