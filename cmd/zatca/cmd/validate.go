package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/invoice"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
)

var validateCmd = &cobra.Command{
	Use:   "validate [files...]",
	Short: "Validate invoice input files",
	Long: `Validate one or more invoice input files (JSON) without building them.

Checks performed:
  - Device and seller identity present and well formed
  - VAT numbers: 15 digits starting and ending with 3
  - VAT rates 0, 5% or 15%; category required at 0%
  - Line items present, counters non-negative
  - Billing reference on debit and credit notes

Every violation is reported, with its path.

Examples:
  zatca validate invoice.json
  zatca validate a.json b.json -f json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// ValidationResult holds the result of validating one file
type ValidationResult struct {
	File   string   `json:"file"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

func runValidate(cmd *cobra.Command, args []string) error {
	results := make([]*ValidationResult, 0, len(args))
	allValid := true

	for _, file := range args {
		result := &ValidationResult{File: file, Valid: true}
		props, err := readProps(file)
		if err == nil {
			err = invoice.Validate(props)
		}
		if err != nil {
			result.Valid = false
			allValid = false
			if verrs := model.AsValidationErrors(err); len(verrs) > 0 {
				for _, e := range verrs {
					result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", e.Path, e.Message))
				}
			} else {
				result.Errors = append(result.Errors, err.Error())
			}
		}
		results = append(results, result)
	}

	if outputFormat == "json" {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Valid {
				fmt.Printf("✓ %s: VALID\n", r.File)
				continue
			}
			fmt.Printf("✗ %s: INVALID\n", r.File)
			for _, e := range r.Errors {
				fmt.Printf("  - %s\n", e)
			}
		}
	}

	if !allValid {
		return fmt.Errorf("validation failed for some files")
	}
	return nil
}
