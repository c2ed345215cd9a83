package client

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/signature"
)

// Platform environments
const (
	SandboxURL    = "https://gw-fatoora.zatca.gov.sa/e-invoicing/developer-portal"
	SimulationURL = "https://gw-fatoora.zatca.gov.sa/e-invoicing/simulation"
	ProductionURL = "https://gw-fatoora.zatca.gov.sa/e-invoicing/core"
)

// API paths
const (
	PathComplianceCSID     = "/compliance"
	PathComplianceInvoices = "/compliance/invoices"
	PathProductionCSID     = "/production/csids"
	PathReporting          = "/invoices/reporting/single"
	PathClearance          = "/invoices/clearance/single"
)

// EnvironmentURL maps an environment name to its base URL
func EnvironmentURL(name string) (string, error) {
	switch name {
	case "", "sandbox", "developer-portal":
		return SandboxURL, nil
	case "simulation":
		return SimulationURL, nil
	case "production", "core":
		return ProductionURL, nil
	default:
		return "", fmt.Errorf("unknown environment %q", name)
	}
}

// ValidationMessage is one info, warning or error entry of a validation result
type ValidationMessage struct {
	Type     string `json:"type"`
	Code     string `json:"code"`
	Category string `json:"category"`
	Message  string `json:"message"`
	Status   string `json:"status"`
}

func (m ValidationMessage) String() string {
	if m.Code == "" {
		return m.Message
	}
	return m.Code + ": " + m.Message
}

// ValidationResults is the platform's verdict on a submitted invoice
type ValidationResults struct {
	InfoMessages    []ValidationMessage `json:"infoMessages"`
	WarningMessages []ValidationMessage `json:"warningMessages"`
	ErrorMessages   []ValidationMessage `json:"errorMessages"`
	Status          string              `json:"status"`
}

// CSIDRequest asks for a compliance certificate
type CSIDRequest struct {
	CSR string `json:"csr"`
}

// ProductionCSIDRequest exchanges a compliance request id for a production
// certificate
type ProductionCSIDRequest struct {
	ComplianceRequestID string `json:"compliance_request_id"`
}

// CSIDResponse carries an issued certificate and the API secret paired with it
type CSIDResponse struct {
	RequestID           FlexString `json:"requestID"`
	DispositionMessage  string     `json:"dispositionMessage"`
	BinarySecurityToken string     `json:"binarySecurityToken"`
	Secret              string     `json:"secret"`
	TokenType           string     `json:"tokenType,omitempty"`
}

// CertificatePEM decodes the security token into a PEM certificate
func (r *CSIDResponse) CertificatePEM() (string, error) {
	body, err := base64.StdEncoding.DecodeString(r.BinarySecurityToken)
	if err != nil {
		return "", fmt.Errorf("decoding security token: %w", err)
	}
	// the token is the base64 of the base64 certificate body
	return "-----BEGIN CERTIFICATE-----\n" + string(body) + "\n-----END CERTIFICATE-----\n", nil
}

// FlexString accepts a JSON string or number
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = ""
	case len(b) > 0 && b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
	default:
		*s = FlexString(b)
	}
	return nil
}

// Credentials authenticates invoice submissions
type Credentials struct {
	Token  string
	Secret string
}

// CredentialsFrom builds submission credentials from an issued certificate
func CredentialsFrom(r *CSIDResponse) Credentials {
	return Credentials{Token: r.BinarySecurityToken, Secret: r.Secret}
}

// InvoiceRequest submits one signed invoice
type InvoiceRequest struct {
	InvoiceHash string `json:"invoiceHash"`
	UUID        string `json:"uuid"`
	Invoice     string `json:"invoice"`
}

// NewInvoiceRequest wraps a signed invoice for submission
func NewInvoiceRequest(uuid string, res *signature.SignedInvoiceResult) InvoiceRequest {
	return InvoiceRequest{
		InvoiceHash: res.InvoiceHash,
		UUID:        uuid,
		Invoice:     base64.StdEncoding.EncodeToString([]byte(res.SignedXML)),
	}
}

// InvoiceResponse is the answer to compliance, reporting and clearance calls
type InvoiceResponse struct {
	ValidationResults ValidationResults `json:"validationResults"`
	ReportingStatus   string            `json:"reportingStatus,omitempty"`
	ClearanceStatus   string            `json:"clearanceStatus,omitempty"`
	ClearedInvoice    string            `json:"clearedInvoice,omitempty"`
	QRSellerStatus    string            `json:"qrSellertStatus,omitempty"`
	QRBuyerStatus     string            `json:"qrBuyertStatus,omitempty"`
}

// Status returns the reporting or clearance status, whichever is set
func (r *InvoiceResponse) Status() string {
	if r.ClearanceStatus != "" {
		return r.ClearanceStatus
	}
	if r.ReportingStatus != "" {
		return r.ReportingStatus
	}
	return r.ValidationResults.Status
}

// ClearedXML decodes the platform-stamped invoice of a clearance answer
func (r *InvoiceResponse) ClearedXML() ([]byte, error) {
	if r.ClearedInvoice == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(r.ClearedInvoice)
}

// errorBody is the union of the error shapes the platform returns
type errorBody struct {
	ValidationResults *ValidationResults  `json:"validationResults"`
	Errors            []ValidationMessage `json:"errors"`
	Code              string              `json:"code"`
	Message           string              `json:"message"`
}
