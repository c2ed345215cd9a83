package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/parser/ubl"
)

var infoCmd = &cobra.Command{
	Use:   "info [files...]",
	Short: "Show information about invoice documents",
	Long: `Display the facts of UBL invoice XML files, signed or not.

Shows:
  - Document kind, serial number and UUID
  - Invoice counter and previous invoice hash
  - Seller, buyer and totals
  - Whether the document is signed

Examples:
  zatca info signed.xml
  zatca info *.xml -f json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	parser := ubl.NewParser()
	summaries := make(map[string]*model.InvoiceSummary, len(args))
	failed := false

	for _, file := range args {
		data, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", file, err)
			failed = true
			continue
		}
		summary, err := parser.ParseBytes(cmd.Context(), data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", file, err)
			failed = true
			continue
		}
		summaries[file] = summary

		if outputFormat != "json" {
			printSummary(file, summary)
			fmt.Println()
		}
	}

	if outputFormat == "json" {
		if err := printJSON(summaries); err != nil {
			return err
		}
	}
	if failed {
		return fmt.Errorf("some files could not be read")
	}
	return nil
}

func printSummary(file string, s *model.InvoiceSummary) {
	fmt.Printf("File: %s\n", file)
	fmt.Printf("  Kind:      %s\n", s.Kind())
	fmt.Printf("  Number:    %s\n", s.SerialNumber)
	fmt.Printf("  UUID:      %s\n", s.UUID)
	fmt.Printf("  Issued:    %s %s\n", s.IssueDate, s.IssueTime)
	fmt.Printf("  Counter:   %d\n", s.Counter)
	fmt.Printf("  Prev hash: %s\n", s.PreviousHash)
	if s.BillingReference != "" {
		fmt.Printf("  Reference: %s\n", s.BillingReference)
	}
	fmt.Printf("  Seller:    %s (%s)\n", s.Seller.Name, s.Seller.VATNumber)
	if s.Buyer != nil {
		fmt.Printf("  Buyer:     %s\n", s.Buyer.Name)
	}
	fmt.Printf("  Lines:     %d\n", s.LineCount)
	fmt.Printf("  Net:       %s %s\n", s.TaxExclusive.StringFixed(2), s.Currency)
	fmt.Printf("  VAT:       %s %s\n", s.TaxAmount.StringFixed(2), s.Currency)
	fmt.Printf("  Total:     %s %s\n", s.TaxInclusive.StringFixed(2), s.Currency)
	fmt.Printf("  Signed:    %t\n", s.Signed)
}
