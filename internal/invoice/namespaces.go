package invoice

// UBL 2.1 namespaces used by the invoice body.
const (
	NSInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	NSCAC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	NSCBC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	NSEXT     = "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"
)

// Fixed document values.
const (
	ProfileID = "reporting:1.0"
	Currency  = "SAR"
	Country   = "SA"
	UnitCode  = "PCE"

	// AdditionalDocumentReference IDs
	RefDevice       = "EGS"
	RefCounter      = "ICV"
	RefPreviousHash = "PIH"
	RefQR           = "QR"
)

// Paths queried by the hash, QR and signing steps.
const (
	PathSellerName      = "cac:AccountingSupplierParty/cac:Party/cac:PartyLegalEntity/cbc:RegistrationName"
	PathSellerVAT       = "cac:AccountingSupplierParty/cac:Party/cac:PartyTaxScheme/cbc:CompanyID"
	PathIssueDate       = "cbc:IssueDate"
	PathIssueTime       = "cbc:IssueTime"
	PathTaxInclusive    = "cac:LegalMonetaryTotal/cbc:TaxInclusiveAmount"
	PathTaxAmount       = "cac:TaxTotal/cbc:TaxAmount"
	PathTaxSubtotals    = "cac:TaxTotal/cac:TaxSubtotal"
	PathDocumentRefs    = "cac:AdditionalDocumentReference"
	PathInvoiceLines    = "cac:InvoiceLine"
	PathMonetaryTotal   = "cac:LegalMonetaryTotal"
	PathInvoiceTypeCode = "cbc:InvoiceTypeCode"
)
