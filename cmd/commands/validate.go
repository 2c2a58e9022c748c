package commands

import (
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tpa-platform/pricing-engine/internal/rules"
	"github.com/tpa-platform/pricing-engine/internal/types"
)

var ruleFile string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a rule JSON file",
	Long: `Check a rule definition for unknown operators, unknown pricing
modes and missing mode fields before it is stored.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&ruleFile, "rule", "", "Path to rule JSON")
}

func runValidate(cmd *cobra.Command, args []string) error {
	if ruleFile == "" {
		return fmt.Errorf("--rule must be specified")
	}

	data, err := os.ReadFile(ruleFile)
	if err != nil {
		return fmt.Errorf("failed to read rule: %w", err)
	}
	var rule types.Rule
	if err := json.Unmarshal(data, &rule); err != nil {
		return fmt.Errorf("failed to parse rule: %w", err)
	}

	if err := rules.ValidateRule(rule); err != nil {
		return err
	}
	log.WithField("file", ruleFile).Info("Rule is valid")
	return nil
}
