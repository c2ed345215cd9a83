package invoice

import (
	"golang.org/x/text/unicode/norm"

	"github.com/Jaicome/jaicome-zatca-sdk-sub001/internal/model"
)

// normalize rewrites every free-text field of p to NFC so the document tree,
// its hash, the QR payload and verification all see the same bytes.
func normalize(p *model.InvoiceProps) {
	nfc := norm.NFC.String

	p.EGS.Name = nfc(p.EGS.Name)
	p.EGS.VATName = nfc(p.EGS.VATName)
	p.EGS.BranchName = nfc(p.EGS.BranchName)
	p.EGS.BranchIndustry = nfc(p.EGS.BranchIndustry)
	p.EGS.Model = nfc(p.EGS.Model)
	normalizeAddress(p.EGS.Location)

	if p.Customer != nil {
		p.Customer.Name = nfc(p.Customer.Name)
		normalizeAddress(p.Customer.Address)
	}
	if p.Cancellation != nil {
		p.Cancellation.Reason = nfc(p.Cancellation.Reason)
	}
	for i := range p.LineItems {
		item := &p.LineItems[i]
		item.Name = nfc(item.Name)
		if item.VATCategory != nil {
			item.VATCategory.Reason = nfc(item.VATCategory.Reason)
		}
	}
}

func normalizeAddress(a *model.Address) {
	if a == nil {
		return
	}
	nfc := norm.NFC.String
	a.Street = nfc(a.Street)
	a.Building = nfc(a.Building)
	a.PlotIdentification = nfc(a.PlotIdentification)
	a.CitySubdivision = nfc(a.CitySubdivision)
	a.City = nfc(a.City)
	a.PostalZone = nfc(a.PostalZone)
}
