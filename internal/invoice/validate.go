package invoice

import (
	"encoding/base64"
	"regexp"
	"time"

	"github.com/google/uuid"

	money "github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/decimal"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/tax"
)

var (
	vatNumberRe   = regexp.MustCompile(`^3[0-9]{13}3$`)
	crnRe         = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	invoiceTypeRe = regexp.MustCompile(`^0[12][01]{5}$`)
	buildingRe    = regexp.MustCompile(`^[0-9]{4}$`)
	postalZoneRe  = regexp.MustCompile(`^[0-9]{5}$`)
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// A validator inspects one part of the props and records every problem it
// finds. Validators never stop at the first error.
type validator func(p *model.InvoiceProps, errs *model.ValidationErrors)

var validators = []validator{
	validateEGS,
	validateHeader,
	validateCustomer,
	validateCancellation,
	validateLineItems,
}

// Validate runs every validator and returns all violations together as
// model.ValidationErrors, or nil.
func Validate(props model.InvoiceProps) error {
	var errs model.ValidationErrors
	for _, v := range validators {
		v(&props, &errs)
	}
	return errs.Err()
}

// ValidVATNumber reports whether s is a 15-digit VAT number starting and
// ending with 3.
func ValidVATNumber(s string) bool {
	return vatNumberRe.MatchString(s)
}

func required(path, value string) *model.ValidationError {
	if value == "" {
		return model.NewValidationError(path, nil, "required", "is required")
	}
	return nil
}

func vatNumber(path, value string) *model.ValidationError {
	if value == "" {
		return model.NewValidationError(path, nil, "required", "is required")
	}
	if !ValidVATNumber(value) {
		return model.NewValidationError(path, value, "vat_number",
			"VAT number must be exactly 15 digits and begin and end with 3")
	}
	return nil
}

func uuidField(path, value string) *model.ValidationError {
	if _, err := uuid.Parse(value); err != nil {
		return model.NewValidationError(path, value, "uuid", "must be a valid UUID")
	}
	return nil
}

func matches(path, value string, re *regexp.Regexp, rule, message string) *model.ValidationError {
	if !re.MatchString(value) {
		return model.NewValidationError(path, value, rule, message)
	}
	return nil
}

func validateEGS(p *model.InvoiceProps, errs *model.ValidationErrors) {
	egs := p.EGS
	if egs.ID == "" {
		errs.Add(required("egs_info.id", egs.ID))
	} else {
		errs.Add(uuidField("egs_info.id", egs.ID))
	}
	errs.Add(required("egs_info.name", egs.Name))
	errs.Add(required("egs_info.vat_name", egs.VATName))
	errs.Add(vatNumber("egs_info.vat_number", egs.VATNumber))
	errs.Add(required("egs_info.branch_name", egs.BranchName))
	errs.Add(required("egs_info.branch_industry", egs.BranchIndustry))
	errs.Add(required("egs_info.model", egs.Model))
	if egs.Location != nil {
		validateAddress("egs_info.location", egs.Location, errs)
	}

	if p.CRNNumber == "" {
		errs.Add(required("crn_number", p.CRNNumber))
	} else {
		errs.Add(matches("crn_number", p.CRNNumber, crnRe, "crn_number", "must be alphanumeric"))
	}
}

func validateAddress(path string, a *model.Address, errs *model.ValidationErrors) {
	errs.Add(required(path+".street", a.Street))
	errs.Add(required(path+".city", a.City))
	errs.Add(matches(path+".building", a.Building, buildingRe, "building_number", "must be 4 digits"))
	errs.Add(matches(path+".postal_zone", a.PostalZone, postalZoneRe, "postal_zone", "must be 5 digits"))
}

func validateHeader(p *model.InvoiceProps, errs *model.ValidationErrors) {
	if p.InvoiceUUID != "" {
		errs.Add(uuidField("invoice_uuid", p.InvoiceUUID))
	}
	errs.Add(matches("invoice_type", p.InvoiceType, invoiceTypeRe, "invoice_type",
		"must be a 7 character subtype such as 0211010"))

	switch p.InvoiceCode {
	case model.CodeTaxInvoice, model.CodeDebitNote, model.CodeCreditNote:
	default:
		errs.Add(model.NewValidationError("invoice_code", string(p.InvoiceCode), "invoice_code",
			"must be 388 (invoice), 383 (debit note) or 381 (credit note)"))
	}

	if p.InvoiceCounterNumber < 0 {
		errs.Add(model.NewValidationError("invoice_counter_number", p.InvoiceCounterNumber, "non_negative",
			"must be a non-negative integer"))
	}
	errs.Add(required("invoice_serial_number", p.InvoiceSerialNumber))

	if _, err := time.Parse(dateLayout, p.IssueDate); err != nil {
		errs.Add(model.NewValidationError("issue_date", p.IssueDate, "date", "must be formatted YYYY-MM-DD"))
	}
	if _, err := time.Parse(timeLayout, p.IssueTime); err != nil {
		errs.Add(model.NewValidationError("issue_time", p.IssueTime, "time", "must be formatted HH:MM:SS"))
	}

	if p.PreviousInvoiceHash == "" {
		errs.Add(required("previous_invoice_hash", p.PreviousInvoiceHash))
	} else if _, err := base64.StdEncoding.DecodeString(p.PreviousInvoiceHash); err != nil {
		errs.Add(model.NewValidationError("previous_invoice_hash", p.PreviousInvoiceHash, "base64",
			"must be standard base64"))
	}

	switch p.PaymentMethod {
	case model.PaymentUnspecified, model.PaymentCash, model.PaymentCredit,
		model.PaymentBankAccount, model.PaymentBankCard:
	default:
		errs.Add(model.NewValidationError("payment_method", string(p.PaymentMethod), "payment_method",
			"must be one of 1, 10, 30, 42 or 48"))
	}
}

func validateCustomer(p *model.InvoiceProps, errs *model.ValidationErrors) {
	c := p.Customer
	if c == nil {
		return
	}
	errs.Add(required("customer_info.name", c.Name))
	if c.VATNumber != "" {
		errs.Add(vatNumber("customer_info.vat_number", c.VATNumber))
	}
	if c.Address != nil {
		validateAddress("customer_info.address", c.Address, errs)
	}
}

func validateCancellation(p *model.InvoiceProps, errs *model.ValidationErrors) {
	if !p.InvoiceCode.IsNote() {
		return
	}
	if p.Cancellation == nil {
		errs.Add(model.NewValidationError("cancellation", nil, "required",
			"debit and credit notes must reference the original invoice"))
		return
	}
	errs.Add(required("cancellation.billing_reference_id", p.Cancellation.BillingReferenceID))
	errs.Add(required("cancellation.reason", p.Cancellation.Reason))
}

func validateLineItems(p *model.InvoiceProps, errs *model.ValidationErrors) {
	if len(p.LineItems) == 0 {
		errs.Add(model.NewValidationError("line_items", nil, "required", "at least one line item is required"))
		return
	}
	for i := range p.LineItems {
		validateLineItem(i, &p.LineItems[i], errs)
	}
}

func validateLineItem(i int, li *model.LineItem, errs *model.ValidationErrors) {
	itemErr := func(field string, value interface{}, rule, message string) {
		errs.Add(model.NewItemValidationError("line_items", i, field, value, rule, message))
	}

	if li.ID == "" {
		itemErr("id", nil, "required", "id is required")
	}
	if li.Name == "" {
		itemErr("name", nil, "required", "name is required")
	}
	if !money.IsPositive(li.Quantity) {
		itemErr("quantity", li.Quantity.String(), "positive", "quantity must be greater than zero")
	}
	if !money.IsNonNegative(li.TaxExclusiveUnitPrice) {
		itemErr("tax_exclusive_price", li.TaxExclusiveUnitPrice.String(), "non_negative", "price must not be negative")
	}
	if !tax.IsSupportedRate(li.VATRate) {
		itemErr("vat_rate", li.VATRate.String(), "vat_rate", "VAT rate must be one of 0, 0.05 or 0.15")
		return
	}

	zero := li.VATRate.IsZero()
	cat := li.VATCategory
	if cat == nil || cat.Code == "" {
		if zero {
			itemErr("vat_category", nil, "zero_rate_category", tax.MsgZeroRateCategory)
		}
		return
	}

	switch cat.Code {
	case model.CategoryStandard:
		if zero {
			itemErr("vat_category.code", cat.Code, "category_rate", "category S requires a non-zero VAT rate")
		}
	case model.CategoryZeroRated, model.CategoryExempt, model.CategoryOutOfScope:
		if !zero {
			itemErr("vat_category.code", cat.Code, "category_rate",
				"category "+cat.Code+" is only allowed with a zero VAT rate")
		}
		if cat.Reason == "" {
			itemErr("vat_category.reason", nil, "required", "zero-tax items must give an exemption reason")
		}
		if cat.ReasonCode == "" {
			itemErr("vat_category.reason_code", nil, "required", "zero-tax items must give an exemption reason code")
		}
	default:
		itemErr("vat_category.code", cat.Code, "category_code", "VAT category code must be one of S, Z, E or O")
	}
}
