// Package store provides reference-data access for the evaluator: rules,
// factors, point rates, period discounts and policy bindings, backed by
// PostgreSQL with an optional Redis rule-snapshot cache and an in-memory
// implementation for tests and embedded use.
package store

import (
	"context"
	"errors"

	"github.com/tpa-platform/pricing-engine/internal/types"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is the reference-data contract the engine evaluates against.
// Read methods return point-in-time snapshots; rules are never pre-filtered
// by date, so validity windows are always re-applied at evaluation time.
type Store interface {
	RulesFor(ctx context.Context, procedureID, priceListID int64) ([]types.Rule, error)
	Factors(ctx context.Context) (map[string]types.Factor, error)
	PointRates(ctx context.Context, insuranceDegreeID int64) ([]types.PointRate, error)
	PeriodDiscounts(ctx context.Context, procedureID int64) ([]types.PeriodDiscount, error)
	PolicyBindings(ctx context.Context, procedureID, priceListID int64) ([]types.PolicyBinding, error)

	GetRule(ctx context.Context, id int64) (types.Rule, error)
	CreateRule(ctx context.Context, r types.Rule) (types.Rule, error)
	UpdateRule(ctx context.Context, r types.Rule) (types.Rule, error)
	DeleteRule(ctx context.Context, id int64) error

	CreatePointRate(ctx context.Context, r types.PointRate) (types.PointRate, error)
	DeletePointRate(ctx context.Context, id int64) error

	CreatePeriodDiscount(ctx context.Context, d types.PeriodDiscount) (types.PeriodDiscount, error)
	DeletePeriodDiscount(ctx context.Context, id int64) error

	Ping(ctx context.Context) error
	Close()
}
