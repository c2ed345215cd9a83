package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/processor"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/render"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/store"
)

var (
	issueOutDir string
	issueReport bool
	issuePDF    bool
)

var issueCmd = &cobra.Command{
	Use:   "issue [files...]",
	Short: "Issue chained invoices for a device",
	Long: `Issue invoices: assign each the next counter and previous invoice hash of
its device (egs_info.id), build, sign and record it in the chain database.

Counter, previous hash, UUID, serial number and issue date/time in the input
are filled in when missing; counter and previous hash are always taken from
the chain. Files are issued in argument order.

With --report, simplified invoices are reported and standard invoices are
cleared right after issuance. A failed submission leaves the invoice issued;
resubmit with "zatca report".

Examples:
  zatca issue sale.json --db chain.db --cert cert.pem --key key.pem
  zatca issue a.json b.json --out-dir signed/ --pdf --report --env simulation`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIssue,
}

func init() {
	rootCmd.AddCommand(issueCmd)

	issueCmd.Flags().StringVar(&issueOutDir, "out-dir", ".", "Directory for signed XML (and PDF) files")
	issueCmd.Flags().BoolVar(&issueReport, "report", false, "Report or clear each invoice after issuance")
	issueCmd.Flags().BoolVar(&issuePDF, "pdf", false, "Also write a printable PDF per invoice")
	issueCmd.Flags().BoolVar(&phaseTwoQR, "phase2-qr", false, "Include hash, signature and key records in the QR")
	addPolicyFlags(issueCmd)
}

// IssueOutput is the summary of one issued invoice
type IssueOutput struct {
	File         string `json:"file"`
	EGSID        string `json:"egs_id"`
	Counter      int64  `json:"counter"`
	SerialNumber string `json:"serial_number"`
	UUID         string `json:"uuid"`
	InvoiceHash  string `json:"invoice_hash"`
	Status       string `json:"status"`
	Output       string `json:"output"`
	SubmitError  string `json:"submit_error,omitempty"`
}

func newPipeline() (*processor.Pipeline, *store.BoltStore, error) {
	creds, err := loadCredentials()
	if err != nil {
		return nil, nil, err
	}
	policy, err := policyFromFlags()
	if err != nil {
		return nil, nil, err
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}
	printVerbose("Chain database: %s\n", dbPath)

	var signerOpts []signature.Option
	if phaseTwoQR {
		signerOpts = append(signerOpts, signature.WithPhaseTwoQR())
	}
	opts := []processor.Option{
		processor.WithPolicy(policy),
		processor.WithSigner(signature.NewSigner(signerOpts...)),
	}
	if issueReport {
		api, apiCreds, err := newAPIClient()
		if err != nil {
			st.Close()
			return nil, nil, err
		}
		opts = append(opts, processor.WithReporter(api, apiCreds))
	}
	return processor.NewPipeline(st, creds, opts...), st, nil
}

func runIssue(cmd *cobra.Command, args []string) error {
	pipeline, st, err := newPipeline()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := os.MkdirAll(issueOutDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	outputs := make([]*IssueOutput, 0, len(args))
	submitFailed := false
	for _, file := range args {
		props, err := readProps(file)
		if err != nil {
			return err
		}
		result, err := pipeline.Issue(cmd.Context(), props)
		if err != nil {
			if printValidationErrors(err) {
				return fmt.Errorf("%s: invalid invoice input", file)
			}
			return fmt.Errorf("%s: %w", file, err)
		}

		rec := result.Record
		base := render.AttachmentName(rec.SerialNumber)
		xmlPath := filepath.Join(issueOutDir, base)
		if err := writeOutput(xmlPath, []byte(rec.SignedXML)); err != nil {
			return err
		}
		if issuePDF {
			pdf, err := render.NewRenderer().PDF(result.Invoice, result.Signed)
			if err != nil {
				return err
			}
			pdfPath := xmlPath[:len(xmlPath)-len(".xml")] + ".pdf"
			if err := writeOutput(pdfPath, pdf); err != nil {
				return err
			}
		}

		out := &IssueOutput{
			File:         file,
			EGSID:        rec.EGSID,
			Counter:      rec.Counter,
			SerialNumber: rec.SerialNumber,
			UUID:         rec.UUID,
			InvoiceHash:  rec.InvoiceHash,
			Status:       rec.Status,
			Output:       xmlPath,
		}
		if result.SubmitError != nil {
			out.SubmitError = result.SubmitError.Error()
			submitFailed = true
		}
		outputs = append(outputs, out)
	}

	if outputFormat == "json" {
		if err := printJSON(outputs); err != nil {
			return err
		}
	} else {
		for _, o := range outputs {
			fmt.Printf("✓ %s: #%d %s %s\n", o.File, o.Counter, o.SerialNumber, o.Status)
			fmt.Printf("  Hash:   %s\n", o.InvoiceHash)
			fmt.Printf("  Output: %s\n", o.Output)
			if o.SubmitError != "" {
				fmt.Printf("  ✗ %s\n", o.SubmitError)
			}
		}
	}

	if submitFailed {
		return fmt.Errorf("some invoices were issued but not accepted by the platform")
	}
	return nil
}
