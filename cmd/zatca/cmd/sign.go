package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/render"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature"
)

var (
	phaseTwoQR bool
	pdfFile    string
)

var signCmd = &cobra.Command{
	Use:   "sign [file]",
	Short: "Build and sign an invoice",
	Long: `Build an invoice from input (JSON) and sign it with the EGS certificate.

The signed XML is written to --output (default stdout). The invoice hash,
QR payload and signing time are printed to stderr. With --pdf, a printable
invoice with the QR code is written, carrying the signed XML as an attachment.

Examples:
  zatca sign invoice.json --cert cert.pem --key key.pem -o signed.xml
  zatca sign invoice.json -o signed.xml --pdf invoice.pdf --phase2-qr`,
	Args: cobra.ExactArgs(1),
	RunE: runSign,
}

func init() {
	rootCmd.AddCommand(signCmd)

	signCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default stdout)")
	signCmd.Flags().BoolVar(&phaseTwoQR, "phase2-qr", false, "Include hash, signature and key records in the QR")
	signCmd.Flags().StringVar(&pdfFile, "pdf", "", "Also write a printable PDF")
	addPolicyFlags(signCmd)
}

func runSign(cmd *cobra.Command, args []string) error {
	creds, err := loadCredentials()
	if err != nil {
		return err
	}
	inv, err := buildInvoice(args[0])
	if err != nil {
		return err
	}

	var opts []signature.Option
	if phaseTwoQR {
		opts = append(opts, signature.WithPhaseTwoQR())
	}
	signed, err := signature.NewSigner(opts...).SignWith(inv, creds)
	if err != nil {
		return err
	}

	if err := writeOutput(outputFile, []byte(signed.SignedXML)); err != nil {
		return err
	}
	if pdfFile != "" {
		pdf, err := render.NewRenderer().PDF(inv, signed)
		if err != nil {
			return err
		}
		if err := writeOutput(ensureSuffix(pdfFile, ".pdf"), pdf); err != nil {
			return err
		}
	}

	fmt.Fprintf(os.Stderr, "Invoice hash: %s\n", signed.InvoiceHash)
	fmt.Fprintf(os.Stderr, "QR:           %s\n", signed.QR)
	fmt.Fprintf(os.Stderr, "Signed at:    %s\n", signed.SigningTime)
	return nil
}
