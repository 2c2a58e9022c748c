package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tpa-platform/pricing-engine/internal/types"
)

// Postgres is the pgx-backed Store. Rule bodies live in a jsonb column and
// are parsed on read; validation happens above this layer.
type Postgres struct {
	pool *pgxpool.Pool
}

// Connect opens a pgx pool and verifies the connection.
func Connect(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) RulesFor(ctx context.Context, procedureID, priceListID int64) ([]types.Rule, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, procedure_id, price_list_id, priority, rule_json,
		       valid_from, valid_to, updated_at
		FROM pricing_rules
		WHERE procedure_id = $1 AND price_list_id = $2
		ORDER BY priority, id
	`, procedureID, priceListID)
	if err != nil {
		return nil, fmt.Errorf("rule query failed: %w", err)
	}
	defer rows.Close()

	var out []types.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) GetRule(ctx context.Context, id int64) (types.Rule, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, procedure_id, price_list_id, priority, rule_json,
		       valid_from, valid_to, updated_at
		FROM pricing_rules
		WHERE id = $1
	`, id)
	if err != nil {
		return types.Rule{}, fmt.Errorf("rule query failed: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return types.Rule{}, ErrNotFound
	}
	return scanRule(rows)
}

func scanRule(rows pgx.Rows) (types.Rule, error) {
	var r types.Rule
	var body []byte
	if err := rows.Scan(&r.ID, &r.ProcedureID, &r.PriceListID, &r.Priority,
		&body, &r.ValidFrom, &r.ValidTo, &r.UpdatedAt); err != nil {
		return types.Rule{}, fmt.Errorf("rule scan failed: %w", err)
	}
	if err := json.Unmarshal(body, &r.Body); err != nil {
		return types.Rule{}, fmt.Errorf("rule %d has malformed rule_json: %w", r.ID, err)
	}
	return r, nil
}

func (p *Postgres) CreateRule(ctx context.Context, r types.Rule) (types.Rule, error) {
	body, err := json.Marshal(r.Body)
	if err != nil {
		return types.Rule{}, fmt.Errorf("failed to encode rule body: %w", err)
	}
	err = p.pool.QueryRow(ctx, `
		INSERT INTO pricing_rules (procedure_id, price_list_id, priority, rule_json, valid_from, valid_to, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING id, updated_at
	`, r.ProcedureID, r.PriceListID, r.Priority, body, r.ValidFrom, r.ValidTo).Scan(&r.ID, &r.UpdatedAt)
	if err != nil {
		return types.Rule{}, fmt.Errorf("rule insert failed: %w", err)
	}
	return r, nil
}

func (p *Postgres) UpdateRule(ctx context.Context, r types.Rule) (types.Rule, error) {
	body, err := json.Marshal(r.Body)
	if err != nil {
		return types.Rule{}, fmt.Errorf("failed to encode rule body: %w", err)
	}
	tag, err := p.pool.Exec(ctx, `
		UPDATE pricing_rules
		SET procedure_id = $2, price_list_id = $3, priority = $4,
		    rule_json = $5, valid_from = $6, valid_to = $7, updated_at = now()
		WHERE id = $1
	`, r.ID, r.ProcedureID, r.PriceListID, r.Priority, body, r.ValidFrom, r.ValidTo)
	if err != nil {
		return types.Rule{}, fmt.Errorf("rule update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.Rule{}, ErrNotFound
	}
	return r, nil
}

func (p *Postgres) DeleteRule(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM pricing_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("rule delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) Factors(ctx context.Context) (map[string]types.Factor, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT key, name_en, name_ar, data_type, allowed_values
		FROM factors
	`)
	if err != nil {
		return nil, fmt.Errorf("factor query failed: %w", err)
	}
	defer rows.Close()

	out := map[string]types.Factor{}
	for rows.Next() {
		var f types.Factor
		if err := rows.Scan(&f.Key, &f.NameEn, &f.NameAr, &f.DataType, &f.AllowedValues); err != nil {
			return nil, fmt.Errorf("factor scan failed: %w", err)
		}
		out[f.Key] = f
	}
	return out, rows.Err()
}

func (p *Postgres) PointRates(ctx context.Context, insuranceDegreeID int64) ([]types.PointRate, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT pr.id, pr.context, pr.insurance_degree_id, d.name_en, d.name_ar,
		       pr.point_price, pr.min_point_price, pr.max_point_price,
		       pr.result_min, pr.result_max, pr.valid_from, pr.valid_to,
		       pr.created_at, pr.updated_at
		FROM point_rates pr
		LEFT JOIN insurance_degrees d ON d.id = pr.insurance_degree_id
		WHERE pr.insurance_degree_id = $1 OR pr.insurance_degree_id IS NULL
		ORDER BY pr.updated_at DESC, pr.id DESC
	`, insuranceDegreeID)
	if err != nil {
		return nil, fmt.Errorf("point rate query failed: %w", err)
	}
	defer rows.Close()

	var out []types.PointRate
	for rows.Next() {
		var r types.PointRate
		var degreeID *int64
		var nameEn, nameAr *string
		if err := rows.Scan(&r.ID, &r.Context, &degreeID, &nameEn, &nameAr,
			&r.PointPrice, &r.MinPointPrice, &r.MaxPointPrice,
			&r.ResultMin, &r.ResultMax, &r.ValidFrom, &r.ValidTo,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("point rate scan failed: %w", err)
		}
		if degreeID != nil {
			r.InsuranceDegree = &types.DegreeSummary{ID: *degreeID}
			if nameEn != nil {
				r.InsuranceDegree.NameEn = *nameEn
			}
			if nameAr != nil {
				r.InsuranceDegree.NameAr = *nameAr
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) CreatePointRate(ctx context.Context, r types.PointRate) (types.PointRate, error) {
	var degreeID *int64
	if r.InsuranceDegree != nil {
		degreeID = &r.InsuranceDegree.ID
	}
	err := p.pool.QueryRow(ctx, `
		INSERT INTO point_rates (context, insurance_degree_id, point_price,
		                         min_point_price, max_point_price, result_min, result_max,
		                         valid_from, valid_to, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now(), now())
		RETURNING id, created_at, updated_at
	`, r.Context, degreeID, r.PointPrice, r.MinPointPrice, r.MaxPointPrice,
		r.ResultMin, r.ResultMax, r.ValidFrom, r.ValidTo).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return types.PointRate{}, fmt.Errorf("point rate insert failed: %w", err)
	}
	return r, nil
}

func (p *Postgres) DeletePointRate(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM point_rates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("point rate delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) PeriodDiscounts(ctx context.Context, procedureID int64) ([]types.PeriodDiscount, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, procedure_id, context, period, period_unit, discount_pct,
		       valid_from, valid_to
		FROM period_discounts
		WHERE procedure_id = $1
		ORDER BY id
	`, procedureID)
	if err != nil {
		return nil, fmt.Errorf("period discount query failed: %w", err)
	}
	defer rows.Close()

	var out []types.PeriodDiscount
	for rows.Next() {
		var d types.PeriodDiscount
		if err := rows.Scan(&d.ID, &d.ProcedureID, &d.Context, &d.Period,
			&d.PeriodUnit, &d.DiscountPct, &d.ValidFrom, &d.ValidTo); err != nil {
			return nil, fmt.Errorf("period discount scan failed: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) CreatePeriodDiscount(ctx context.Context, d types.PeriodDiscount) (types.PeriodDiscount, error) {
	err := p.pool.QueryRow(ctx, `
		INSERT INTO period_discounts (procedure_id, context, period, period_unit,
		                              discount_pct, valid_from, valid_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, d.ProcedureID, d.Context, d.Period, d.PeriodUnit, d.DiscountPct,
		d.ValidFrom, d.ValidTo).Scan(&d.ID)
	if err != nil {
		return types.PeriodDiscount{}, fmt.Errorf("period discount insert failed: %w", err)
	}
	return d, nil
}

func (p *Postgres) DeletePeriodDiscount(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM period_discounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("period discount delete failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) PolicyBindings(ctx context.Context, procedureID, priceListID int64) ([]types.PolicyBinding, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, binding_type, procedure_id, price_list_id, reason,
		       threshold_amount, deductible_amount, override_price_list_id,
		       conditions, valid_from, valid_to
		FROM policy_bindings
		WHERE (procedure_id = 0 OR procedure_id = $1)
		  AND (price_list_id = 0 OR price_list_id = $2)
		ORDER BY id
	`, procedureID, priceListID)
	if err != nil {
		return nil, fmt.Errorf("policy binding query failed: %w", err)
	}
	defer rows.Close()

	var out []types.PolicyBinding
	for rows.Next() {
		var b types.PolicyBinding
		var conditions []byte
		if err := rows.Scan(&b.ID, &b.Type, &b.ProcedureID, &b.PriceListID, &b.Reason,
			&b.ThresholdAmount, &b.DeductibleAmount, &b.OverridePriceListID,
			&conditions, &b.ValidFrom, &b.ValidTo); err != nil {
			return nil, fmt.Errorf("policy binding scan failed: %w", err)
		}
		if len(conditions) > 0 {
			if err := json.Unmarshal(conditions, &b.Conditions); err != nil {
				return nil, fmt.Errorf("binding %d has malformed conditions: %w", b.ID, err)
			}
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
