package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/logger"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/server"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature/trust"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
	corsOrigins  string
	serveCAFiles []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for building and checking invoices.

The API provides endpoints for:
  - POST /api/v1/invoices/validate - Validate invoice input (JSON)
  - POST /api/v1/invoices/build    - Build unsigned XML, hash and QR
  - POST /api/v1/invoices/sign     - Build and sign (needs --cert/--key)
  - POST /api/v1/qr/decode         - Decode a QR payload
  - POST /api/v1/verify            - Verify a signed invoice
  - POST /api/v1/info              - Summarize an invoice document
  - GET  /health                   - Health check

Examples:
  # Start server on default port
  zatca serve

  # Enable signing and restrict CORS
  zatca serve --cert cert.pem --key key.pem --cors-origins https://pos.example.com

  # Start in debug mode
  zatca serve --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", ":8080", "Server listen address (env: ZATCA_ADDRESS)")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", time.Minute, "HTTP write timeout")
	serveCmd.Flags().StringVar(&corsOrigins, "cors-origins", "", "Comma separated allowed origins, empty for all (env: ZATCA_CORS_ORIGINS)")
	serveCmd.Flags().StringSliceVar(&serveCAFiles, "ca-file", nil, "Trusted CA certificate bundle (PEM) for verify")
}

func runServe(cmd *cobra.Command, args []string) error {
	if !cmd.Flags().Changed("address") {
		fromEnv(&serverAddr, "ZATCA_ADDRESS")
		if serverAddr == "" {
			serverAddr = ":8080"
		}
	}
	fromEnv(&corsOrigins, "ZATCA_CORS_ORIGINS")

	config := server.DefaultConfig()
	config.Address = serverAddr
	config.ReadTimeout = readTimeout
	config.WriteTimeout = writeTimeout
	config.Debug = serverDebug
	if corsOrigins != "" {
		config.AllowedOrigins = strings.Split(corsOrigins, ",")
	}

	var opts []server.Option
	if certFile != "" || keyFile != "" {
		creds, err := loadCredentials()
		if err != nil {
			return err
		}
		opts = append(opts, server.WithCredentials(creds))
		fmt.Printf("Signing enabled for %s\n", creds.Certificate.Subject)
	} else {
		fmt.Println("Signing disabled (no --cert/--key)")
	}
	if len(serveCAFiles) > 0 {
		ts, err := trust.LoadTrustStore(serveCAFiles, trust.WithSoftFail())
		if err != nil {
			return fmt.Errorf("failed to create trust store: %w", err)
		}
		opts = append(opts, server.WithTrustStore(ts))
	}
	opts = append(opts, server.WithLogger(logger.Named("server")))

	srv := server.NewServer(config, opts...)
	fmt.Printf("Starting server on %s\n", serverAddr)
	return srv.Run(cmd.Context())
}
