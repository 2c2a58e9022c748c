// Package pricing computes the final price for a selected rule: base price
// per pricing mode, point conversion, adjustments, discounts and clamps.
// All arithmetic runs on decimals; float64 appears only at the boundary.
package pricing

import (
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tpa-platform/pricing-engine/internal/types"
)

// ResolvePointRate returns the active point rate for the insurance degree
// at the given date, or nil. Rates bound to the exact degree are preferred
// over degree-less (wildcard) rates. When several rates of equal
// specificity overlap, which is a data error, the most recently updated
// wins and the overlap is logged as an anomaly, never averaged.
func ResolvePointRate(rates []types.PointRate, insuranceDegreeID int64, asOf time.Time) *types.PointRate {
	var exact, wildcard []types.PointRate
	for _, r := range rates {
		if !r.ActiveAt(asOf) {
			continue
		}
		switch {
		case r.InsuranceDegree != nil && r.InsuranceDegree.ID == insuranceDegreeID:
			exact = append(exact, r)
		case r.InsuranceDegree == nil:
			wildcard = append(wildcard, r)
		}
	}

	pool := exact
	if len(pool) == 0 {
		pool = wildcard
	}
	if len(pool) == 0 {
		return nil
	}

	if len(pool) > 1 {
		sort.Slice(pool, func(i, j int) bool {
			ti, tj := pool[i].UpdatedAt, pool[j].UpdatedAt
			if ti.IsZero() {
				ti = pool[i].CreatedAt
			}
			if tj.IsZero() {
				tj = pool[j].CreatedAt
			}
			if !ti.Equal(tj) {
				return ti.After(tj)
			}
			return pool[i].ID > pool[j].ID
		})
		log.WithFields(log.Fields{
			"insurance_degree": insuranceDegreeID,
			"date":             asOf.Format(types.DateLayout),
			"overlapping":      len(pool),
			"selected_rate":    pool[0].ID,
		}).Warn("Overlapping point rates; most recently updated wins")
	}
	return &pool[0]
}

// EffectivePointPrice is the per-point rate after the min/max point-price
// clamp.
func EffectivePointPrice(r types.PointRate) float64 {
	price := r.PointPrice
	if r.MinPointPrice != nil && price < *r.MinPointPrice {
		price = *r.MinPointPrice
	}
	if r.MaxPointPrice != nil && price > *r.MaxPointPrice {
		price = *r.MaxPointPrice
	}
	return price
}

// ConvertPoints turns a point count into currency via the rate, applying
// the point-price clamp and then the result clamp.
func ConvertPoints(r types.PointRate, points float64) float64 {
	amount := points * EffectivePointPrice(r)
	if r.ResultMin != nil && amount < *r.ResultMin {
		amount = *r.ResultMin
	}
	if r.ResultMax != nil && amount > *r.ResultMax {
		amount = *r.ResultMax
	}
	return amount
}
