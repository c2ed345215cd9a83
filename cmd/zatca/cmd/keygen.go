package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature"
)

var (
	keyCurve  string
	keyOutput string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an EGS signing key",
	Long: `Generate an EC private key for an EGS unit, PEM encoded (SEC1).

The key is used for the certificate signing request submitted for a
compliance CSID. The platform issues secp256k1 certificates; P-256 is
accepted for local testing.

Examples:
  zatca keygen -o egs.key
  zatca keygen --curve P-256`,
	Args: cobra.NoArgs,
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().StringVar(&keyCurve, "curve", string(signature.CurveSecp256k1), "Curve: secp256k1 or P-256")
	keygenCmd.Flags().StringVarP(&keyOutput, "output", "o", "", "Output file (default stdout)")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	curve := signature.Curve(keyCurve)
	if curve != signature.CurveSecp256k1 && curve != signature.CurveP256 {
		return fmt.Errorf("unsupported curve %q", keyCurve)
	}
	key, err := signature.GeneratePrivateKey(curve)
	if err != nil {
		return err
	}
	pem, err := key.PEM()
	if err != nil {
		return err
	}
	if keyOutput == "" {
		_, err = os.Stdout.WriteString(pem)
		return err
	}
	if err := os.WriteFile(keyOutput, []byte(pem), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", keyOutput, err)
	}
	printVerbose("Wrote %s\n", keyOutput)
	return nil
}
