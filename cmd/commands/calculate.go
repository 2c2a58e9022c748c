package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tpa-platform/pricing-engine/internal/engine"
	"github.com/tpa-platform/pricing-engine/internal/store"
	"github.com/tpa-platform/pricing-engine/internal/types"
)

var (
	requestFile string
	fixtureFile string
)

var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Evaluate one calculation request against a reference-data fixture",
	Long: `Run a single price resolution without a database.

Examples:
  # Evaluate request.json against the reference data in fixture.json
  pricing-engine calculate --request request.json --fixture fixture.json`,
	RunE: runCalculate,
}

func init() {
	calculateCmd.Flags().StringVar(&requestFile, "request", "", "Path to calculation request JSON")
	calculateCmd.Flags().StringVar(&fixtureFile, "fixture", "", "Path to reference-data fixture JSON")
}

func runCalculate(cmd *cobra.Command, args []string) error {
	if requestFile == "" || fixtureFile == "" {
		return fmt.Errorf("both --request and --fixture must be specified")
	}

	data, err := os.ReadFile(requestFile)
	if err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	var req types.CalculationRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("failed to parse request: %w", err)
	}

	st, err := store.LoadFixture(fixtureFile)
	if err != nil {
		return err
	}

	eng := engine.New(st, nil)
	resp, err := eng.Calculate(context.Background(), req)
	if err != nil {
		return fmt.Errorf("calculation failed: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}
