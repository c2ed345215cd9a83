package invoice

import (
	"strconv"

	money "github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/decimal"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/doctree"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/tax"
)

var (
	leaf   = doctree.Leaf
	group  = doctree.Group
	attr   = doctree.A
	optLf  = doctree.Optional
	sarAtt = doctree.A("currencyID", Currency)
)

func assemble(p *model.InvoiceProps, res *tax.Result) *doctree.Node {
	root := []*doctree.Node{
		leaf("cbc:ProfileID", ProfileID),
		leaf("cbc:ID", p.InvoiceSerialNumber),
		leaf("cbc:UUID", p.DocumentUUID()),
		leaf("cbc:IssueDate", p.IssueDate),
		leaf("cbc:IssueTime", p.IssueTime),
		leaf("cbc:InvoiceTypeCode", string(p.InvoiceCode), attr("name", p.InvoiceType)),
		leaf("cbc:DocumentCurrencyCode", Currency),
		leaf("cbc:TaxCurrencyCode", Currency),
		billingReference(p),
		deviceReference(p.EGS),
		group("cac:AdditionalDocumentReference",
			leaf("cbc:ID", RefCounter),
			leaf("cbc:UUID", strconv.FormatInt(p.InvoiceCounterNumber, 10)),
		),
		group("cac:AdditionalDocumentReference",
			leaf("cbc:ID", RefPreviousHash),
			group("cac:Attachment",
				leaf("cbc:EmbeddedDocumentBinaryObject", p.PreviousInvoiceHash, attr("mimeCode", "text/plain")),
			),
		),
		supplierParty(p),
		customerParty(p.Customer),
		paymentMeans(p),
	}
	root = append(root, taxTotals(res)...)
	root = append(root, monetaryTotal(res))
	for _, line := range res.Lines {
		root = append(root, invoiceLine(res, line))
	}

	return doctree.Element("Invoice", []doctree.Attr{
		attr("xmlns", NSInvoice),
		attr("xmlns:cac", NSCAC),
		attr("xmlns:cbc", NSCBC),
		attr("xmlns:ext", NSEXT),
	}, root...)
}

func billingReference(p *model.InvoiceProps) *doctree.Node {
	if !p.InvoiceCode.IsNote() || p.Cancellation == nil {
		return nil
	}
	return group("cac:BillingReference",
		group("cac:InvoiceDocumentReference",
			leaf("cbc:ID", p.Cancellation.BillingReferenceID),
		),
	)
}

// deviceReference records the issuing device so its identity is covered by
// the invoice hash.
func deviceReference(egs model.EGSInfo) *doctree.Node {
	return group("cac:AdditionalDocumentReference",
		leaf("cbc:ID", RefDevice),
		leaf("cbc:UUID", egs.ID),
		leaf("cbc:DocumentType", egs.Model),
		leaf("cbc:DocumentDescription", egs.Name),
	)
}

func postalAddress(a *model.Address) *doctree.Node {
	if a == nil {
		return nil
	}
	country := a.CountryCode
	if country == "" {
		country = Country
	}
	return group("cac:PostalAddress",
		leaf("cbc:StreetName", a.Street),
		leaf("cbc:BuildingNumber", a.Building),
		optLf("cbc:PlotIdentification", a.PlotIdentification),
		optLf("cbc:CitySubdivisionName", a.CitySubdivision),
		leaf("cbc:CityName", a.City),
		leaf("cbc:PostalZone", a.PostalZone),
		group("cac:Country", leaf("cbc:IdentificationCode", country)),
	)
}

func vatScheme() *doctree.Node {
	return group("cac:TaxScheme", leaf("cbc:ID", "VAT"))
}

func supplierParty(p *model.InvoiceProps) *doctree.Node {
	return group("cac:AccountingSupplierParty",
		group("cac:Party",
			leaf("cbc:IndustryClassificationCode", p.EGS.BranchIndustry),
			group("cac:PartyIdentification",
				leaf("cbc:ID", p.CRNNumber, attr("schemeID", "CRN")),
			),
			group("cac:PartyName",
				leaf("cbc:Name", p.EGS.BranchName),
			),
			postalAddress(p.EGS.Location),
			group("cac:PartyTaxScheme",
				leaf("cbc:CompanyID", p.EGS.VATNumber),
				vatScheme(),
			),
			group("cac:PartyLegalEntity",
				leaf("cbc:RegistrationName", p.EGS.VATName),
			),
		),
	)
}

func customerParty(c *model.CustomerInfo) *doctree.Node {
	if c == nil {
		return group("cac:AccountingCustomerParty")
	}
	var taxScheme *doctree.Node
	if c.VATNumber != "" {
		taxScheme = group("cac:PartyTaxScheme",
			leaf("cbc:CompanyID", c.VATNumber),
			vatScheme(),
		)
	}
	return group("cac:AccountingCustomerParty",
		group("cac:Party",
			postalAddress(c.Address),
			taxScheme,
			group("cac:PartyLegalEntity",
				leaf("cbc:RegistrationName", c.Name),
			),
		),
	)
}

func paymentMeans(p *model.InvoiceProps) *doctree.Node {
	var note *doctree.Node
	if p.InvoiceCode.IsNote() && p.Cancellation != nil {
		note = leaf("cbc:InstructionNote", p.Cancellation.Reason)
	}
	return group("cac:PaymentMeans",
		leaf("cbc:PaymentMeansCode", string(p.PaymentMethod)),
		note,
	)
}

func taxCategory(tag string, rate, code, reason, reasonCode string) *doctree.Node {
	return group(tag,
		leaf("cbc:ID", code, attr("schemeID", "UN/ECE 5305"), attr("schemeAgencyID", "6")),
		leaf("cbc:Percent", rate),
		optLf("cbc:TaxExemptionReasonCode", reasonCode),
		optLf("cbc:TaxExemptionReason", reason),
		group("cac:TaxScheme",
			leaf("cbc:ID", "VAT", attr("schemeID", "UN/ECE 5153"), attr("schemeAgencyID", "6")),
		),
	)
}

func taxTotals(res *tax.Result) []*doctree.Node {
	amount := res.Format(res.TaxTotal.TaxAmount)

	withSubtotals := []*doctree.Node{leaf("cbc:TaxAmount", amount, sarAtt)}
	for _, s := range res.TaxTotal.Subtotals {
		withSubtotals = append(withSubtotals, group("cac:TaxSubtotal",
			leaf("cbc:TaxableAmount", res.Format(s.TaxableAmount), sarAtt),
			leaf("cbc:TaxAmount", res.Format(s.TaxAmount), sarAtt),
			taxCategory("cac:TaxCategory", money.Percent(s.Rate),
				s.Category.Code, s.Category.Reason, s.Category.ReasonCode),
		))
	}

	return []*doctree.Node{
		group("cac:TaxTotal", withSubtotals...),
		group("cac:TaxTotal", leaf("cbc:TaxAmount", amount, sarAtt)),
	}
}

func monetaryTotal(res *tax.Result) *doctree.Node {
	mt := res.MonetaryTotal
	return group("cac:LegalMonetaryTotal",
		leaf("cbc:LineExtensionAmount", res.Format(mt.LineExtensionAmount), sarAtt),
		leaf("cbc:TaxExclusiveAmount", res.Format(mt.TaxExclusiveAmount), sarAtt),
		leaf("cbc:TaxInclusiveAmount", res.Format(mt.TaxInclusiveAmount), sarAtt),
		leaf("cbc:PayableAmount", res.Format(mt.PayableAmount), sarAtt),
	)
}

func invoiceLine(res *tax.Result, line tax.Line) *doctree.Node {
	return group("cac:InvoiceLine",
		leaf("cbc:ID", line.ID),
		leaf("cbc:InvoicedQuantity", line.Quantity.String(), attr("unitCode", UnitCode)),
		leaf("cbc:LineExtensionAmount", res.Format(line.LineExtension), sarAtt),
		group("cac:TaxTotal",
			leaf("cbc:TaxAmount", res.Format(line.TaxAmount), sarAtt),
			leaf("cbc:RoundingAmount", res.Format(line.RoundingAmount()), sarAtt),
		),
		group("cac:Item",
			leaf("cbc:Name", line.Name),
			group("cac:ClassifiedTaxCategory",
				leaf("cbc:ID", line.Category.Code),
				leaf("cbc:Percent", money.Percent(line.Rate)),
				vatScheme(),
			),
		),
		group("cac:Price",
			leaf("cbc:PriceAmount", money.Exact(line.UnitPrice, money.MinorUnits), sarAtt),
		),
	)
}
