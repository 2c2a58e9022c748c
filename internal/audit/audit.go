// Package audit writes a JSON record per calculation for offline review.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/tpa-platform/pricing-engine/internal/types"
)

// Trail writes calculation audit records to a directory.
type Trail struct {
	dir string
}

func New(dir string) *Trail {
	return &Trail{dir: dir}
}

// Record is one persisted calculation outcome. RequestHash ties the record
// back to the exact request for determinism checks.
type Record struct {
	ID             string                     `json:"id"`
	Timestamp      time.Time                  `json:"timestamp"`
	RequestHash    string                     `json:"request_hash"`
	Request        types.CalculationRequest   `json:"request"`
	Covered        bool                       `json:"covered"`
	FinalPrice     *float64                   `json:"final_price"`
	SelectedRuleID *int64                     `json:"selected_rule_id"`
	RulesEvaluated int                        `json:"rules_evaluated"`
	Response       *types.CalculationResponse `json:"response"`
}

// LogCalculation persists one calculation. Failures are the caller's to
// log; the calculation result is never blocked on audit I/O.
func (t *Trail) LogCalculation(req types.CalculationRequest, resp *types.CalculationResponse) error {
	record := Record{
		ID:             uuid.New().String(),
		Timestamp:      time.Now().UTC(),
		RequestHash:    HashRequest(req),
		Request:        req,
		Covered:        resp.Covered,
		FinalPrice:     resp.FinalPrice,
		SelectedRuleID: resp.SelectedRuleID,
		RulesEvaluated: len(resp.EvaluatedRules),
		Response:       resp,
	}

	if err := os.MkdirAll(t.dir, 0755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	filename := fmt.Sprintf("calc_%s_%s.json", record.ID, record.Timestamp.Format("20060102_150405"))
	path := filepath.Join(t.dir, filename)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create audit file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(record); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}

	log.WithField("file", path).Debug("Audit record written")
	return nil
}

// HashRequest returns a stable sha256 of the request. Map keys marshal in
// sorted order, so identical requests hash identically.
func HashRequest(req types.CalculationRequest) string {
	encoded, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(encoded)
	return "sha256:" + hex.EncodeToString(sum[:])
}
