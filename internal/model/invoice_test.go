package model_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
)

func TestInvoiceProps_Clone(t *testing.T) {
	props := model.InvoiceProps{
		EGS: model.EGSInfo{
			ID:       "6f4d20e0-6bfe-4a80-9389-7dabe6620f12",
			Location: &model.Address{City: "Riyadh"},
		},
		Customer:     &model.CustomerInfo{Name: "Buyer", Address: &model.Address{City: "Jeddah"}},
		Cancellation: &model.Cancellation{BillingReferenceID: "SME00001", Reason: "returned"},
		LineItems: []model.LineItem{
			{
				ID:          "1",
				Quantity:    decimal.NewFromInt(1),
				VATCategory: &model.VATCategory{Code: "E", Reason: "exempt", ReasonCode: "VATEX-SA-29"},
			},
		},
	}

	clone := props.Clone()
	clone.EGS.Location.City = "Dammam"
	clone.Customer.Name = "Other"
	clone.Customer.Address.City = "Mecca"
	clone.Cancellation.Reason = "changed"
	clone.LineItems[0].VATCategory.Code = "Z"
	clone.LineItems[0].ID = "2"

	assert.Equal(t, "Riyadh", props.EGS.Location.City)
	assert.Equal(t, "Buyer", props.Customer.Name)
	assert.Equal(t, "Jeddah", props.Customer.Address.City)
	assert.Equal(t, "returned", props.Cancellation.Reason)
	assert.Equal(t, "E", props.LineItems[0].VATCategory.Code)
	assert.Equal(t, "1", props.LineItems[0].ID)
}

func TestInvoiceProps_DocumentUUID(t *testing.T) {
	props := model.InvoiceProps{EGS: model.EGSInfo{ID: "device"}}
	assert.Equal(t, "device", props.DocumentUUID())

	props.InvoiceUUID = "invoice"
	assert.Equal(t, "invoice", props.DocumentUUID())
}

func TestInvoiceCode_IsNote(t *testing.T) {
	assert.False(t, model.CodeTaxInvoice.IsNote())
	assert.True(t, model.CodeDebitNote.IsNote())
	assert.True(t, model.CodeCreditNote.IsNote())
}

func TestValidationError(t *testing.T) {
	err := model.NewValidationError("egs_info.vat_number", "12345", "vat_number", "must be 15 digits")

	require.Contains(t, err.Error(), "egs_info.vat_number")
	require.Contains(t, err.Error(), "12345")
	require.Contains(t, err.Error(), "15 digits")
	assert.Equal(t, model.NoIndex, err.Index)
}

func TestItemValidationError(t *testing.T) {
	err := model.NewItemValidationError("line_items", 2, "vat_category", nil, "zero_rate_category",
		"zero-tax items must specify a VAT category code")

	assert.Equal(t, "line_items[2].vat_category", err.Path)
	assert.Equal(t, 2, err.Index)
	assert.Contains(t, err.Message, "[2]")
	assert.Contains(t, err.Error(), "must specify a VAT category code")
}

func TestValidationErrors(t *testing.T) {
	var errs model.ValidationErrors
	require.NoError(t, errs.Err())

	errs.Add(nil)
	errs.Add(model.NewValidationError("crn_number", "", "required", "is required"))
	errs.Add(model.NewItemValidationError("line_items", 0, "quantity", "0", "positive", "must be positive"))
	require.Len(t, errs, 2)

	err := fmt.Errorf("build: %w", errs.Err())
	assert.Contains(t, err.Error(), "2 validation errors")

	var one *model.ValidationError
	require.True(t, errors.As(err, &one))
	assert.Equal(t, "crn_number", one.Path)

	flat := model.AsValidationErrors(err)
	assert.Len(t, flat, 2)

	single := model.AsValidationErrors(model.NewValidationError("x", nil, "r", "m"))
	assert.Len(t, single, 1)
	assert.Nil(t, model.AsValidationErrors(assert.AnError))
}

func TestEncodingError(t *testing.T) {
	err := model.NewEncodingError(1, "seller_name", 300, "value exceeds 255 bytes")

	require.Contains(t, err.Error(), "tag 1")
	require.Contains(t, err.Error(), "seller_name")
	require.Contains(t, err.Error(), "300")
}

func TestParseError_WithCause(t *testing.T) {
	cause := assert.AnError
	err := model.NewParseError("IssueDate", "parse failed", cause)

	require.Contains(t, err.Error(), "IssueDate")
	require.ErrorIs(t, err, cause)
}
