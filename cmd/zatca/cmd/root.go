package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/logger"
)

var (
	version = "1.0.0"

	// Global flags
	verbose      bool
	outputFormat string
	envFile      string
	certFile     string
	keyFile      string
	dbPath       string
	environment  string
	apiToken     string
	apiSecret    string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "zatca",
	Short: "Build, sign and report Saudi e-invoices",
	Long: `zatca is a CLI tool for producing e-invoices for the ZATCA mandate.

Supports:
  - Validating and building UBL 2.1 invoices from JSON input
  - Hash chaining, QR payloads and XAdES signatures
  - Verifying signed invoices
  - Issuing chained invoices per device and reporting them

Configuration is read from flags, then ZATCA_* environment variables,
then a .env file in the working directory.

Examples:
  # Validate invoice input
  zatca validate invoice.json

  # Sign an invoice
  zatca sign invoice.json --cert cert.pem --key key.pem -o signed.xml

  # Issue the next invoice of a device and report it
  zatca issue invoice.json --db chain.db --report

  # Verify a signed invoice
  zatca verify signed.xml`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logLevel
		if verbose {
			level = "debug"
		}
		return logger.Init(logger.Config{Level: level, Development: verbose})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "format", "f", "table", "Output format (json, table)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load")
	rootCmd.PersistentFlags().StringVar(&certFile, "cert", "", "Signing certificate, PEM (env: ZATCA_CERT)")
	rootCmd.PersistentFlags().StringVar(&keyFile, "key", "", "Signing private key, PEM (env: ZATCA_KEY)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Chain database file (env: ZATCA_DB)")
	rootCmd.PersistentFlags().StringVar(&environment, "env", "", "Platform environment: sandbox, simulation, production (env: ZATCA_ENV)")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", "", "API token, the issued binary security token (env: ZATCA_API_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&apiSecret, "secret", "", "API secret (env: ZATCA_API_SECRET)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (env: ZATCA_LOG_LEVEL)")

	// Load from environment variables if not set via flags
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: could not load %s: %v\n", envFile, err)
	}

	fromEnv(&certFile, "ZATCA_CERT")
	fromEnv(&keyFile, "ZATCA_KEY")
	fromEnv(&dbPath, "ZATCA_DB")
	fromEnv(&environment, "ZATCA_ENV")
	fromEnv(&apiToken, "ZATCA_API_TOKEN")
	fromEnv(&apiSecret, "ZATCA_API_SECRET")
	fromEnv(&logLevel, "ZATCA_LOG_LEVEL")

	if dbPath == "" {
		dbPath = "zatca.db"
	}
	if logLevel == "" {
		logLevel = "warn"
	}
}

func fromEnv(target *string, key string) {
	if *target == "" {
		*target = strings.TrimSpace(os.Getenv(key))
	}
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
