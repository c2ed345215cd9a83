package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/client"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature"
)

// readInput reads a file, or stdin when path is "-"
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// readProps decodes invoice input JSON
func readProps(path string) (model.InvoiceProps, error) {
	var props model.InvoiceProps
	data, err := readInput(path)
	if err != nil {
		return props, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &props); err != nil {
		return props, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return props, nil
}

// writeOutput writes data to path, or stdout when path is empty or "-"
func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	printVerbose("Wrote %s (%d bytes)\n", path, len(data))
	return nil
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// loadCredentials reads the signing certificate and key named by --cert/--key
func loadCredentials() (*signature.Credentials, error) {
	if certFile == "" || keyFile == "" {
		return nil, errors.New("signing needs --cert and --key (or ZATCA_CERT and ZATCA_KEY)")
	}
	cert, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate: %w", err)
	}
	key, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	return signature.LoadCredentials(string(cert), string(key))
}

// newAPIClient returns a platform client for --env and the API credentials
func newAPIClient() (*client.Client, client.Credentials, error) {
	baseURL, err := client.EnvironmentURL(environment)
	if err != nil {
		return nil, client.Credentials{}, err
	}
	if apiToken == "" || apiSecret == "" {
		return nil, client.Credentials{}, errors.New("reporting needs --token and --secret (or ZATCA_API_TOKEN and ZATCA_API_SECRET)")
	}
	cfg := client.DefaultConfig()
	cfg.BaseURL = baseURL
	printVerbose("Platform: %s\n", baseURL)
	return client.New(cfg), client.Credentials{Token: apiToken, Secret: apiSecret}, nil
}

// printValidationErrors prints each failed rule on its own line
func printValidationErrors(err error) bool {
	verrs := model.AsValidationErrors(err)
	if len(verrs) == 0 {
		return false
	}
	for _, e := range verrs {
		fmt.Printf("  - %s: %s\n", e.Path, e.Message)
	}
	return true
}

func ensureSuffix(path, suffix string) string {
	if strings.HasSuffix(strings.ToLower(path), suffix) {
		return path
	}
	return path + suffix
}
