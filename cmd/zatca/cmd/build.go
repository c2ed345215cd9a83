package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	money "github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/decimal"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/hashchain"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/invoice"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/qr"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/tax"
)

var (
	outputFile      string
	precisionFlag   string
	aggregationFlag string
	roundingFlag    string
	acknowledgeFlag bool
)

var buildCmd = &cobra.Command{
	Use:   "build [file]",
	Short: "Build the unsigned UBL invoice",
	Long: `Build the unsigned UBL 2.1 invoice XML from invoice input (JSON).

The invoice hash and QR payload are printed to stderr.

Rounding policy:
  --precision strict     round every figure to 2 places (default)
  --precision extended   keep full precision; needs --acknowledge-non-compliant
  --aggregation line     sum rounded line figures (default)
  --aggregation document round once per tax group

Examples:
  zatca build invoice.json -o invoice.xml
  cat invoice.json | zatca build -`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default stdout)")
	addPolicyFlags(buildCmd)
}

func addPolicyFlags(c *cobra.Command) {
	c.Flags().StringVar(&precisionFlag, "precision", "strict", "Precision: strict or extended")
	c.Flags().StringVar(&aggregationFlag, "aggregation", "line", "Aggregation: line or document")
	c.Flags().StringVar(&roundingFlag, "rounding", "half-up", "Rounding mode: half-up, half-even or down")
	c.Flags().BoolVar(&acknowledgeFlag, "acknowledge-non-compliant", false, "Accept non-compliant output of extended precision")
}

func policyFromFlags() (tax.Policy, error) {
	policy := tax.DefaultPolicy()

	switch precisionFlag {
	case "", "strict":
	case "extended":
		policy.Precision = tax.PrecisionExtended
	default:
		return policy, fmt.Errorf("unknown precision %q", precisionFlag)
	}

	switch aggregationFlag {
	case "", "line":
	case "document":
		policy.Aggregation = tax.DocumentLevel
	default:
		return policy, fmt.Errorf("unknown aggregation %q", aggregationFlag)
	}

	mode, err := money.ParseRoundingMode(roundingFlag)
	if err != nil {
		return policy, err
	}
	policy.Rounding = mode
	policy.AcknowledgeNonCompliant = acknowledgeFlag

	if err := policy.Validate(); err != nil {
		return policy, err
	}
	return policy, nil
}

// buildInvoice reads props from path and builds them under the flag policy
func buildInvoice(path string) (*invoice.Invoice, error) {
	policy, err := policyFromFlags()
	if err != nil {
		return nil, err
	}
	props, err := readProps(path)
	if err != nil {
		return nil, err
	}
	printVerbose("Building %s with %s\n", path, policy)

	inv, err := invoice.Build(props, policy)
	if err != nil {
		if printValidationErrors(err) {
			return nil, fmt.Errorf("invalid invoice input")
		}
		return nil, err
	}
	return inv, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	inv, err := buildInvoice(args[0])
	if err != nil {
		return err
	}

	data, err := inv.XML()
	if err != nil {
		return err
	}
	hash, err := hashchain.Digest(inv)
	if err != nil {
		return err
	}
	payload, err := qr.Encode(inv)
	if err != nil {
		return err
	}

	if err := writeOutput(outputFile, data); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Invoice hash: %s\n", hash)
	fmt.Fprintf(os.Stderr, "QR:           %s\n", payload)
	return nil
}
